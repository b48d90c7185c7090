package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/service"
)

// UserHandler serves user account and key management endpoints.
type UserHandler struct {
	userService *service.UserService
	logger      zerolog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService *service.UserService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.With().Str("handler", "user").Logger(),
	}
}

type createUserRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Tel       string `json:"tel"`
	Role      string `json:"role"`
	Password  string `json:"password"`
}

// Create registers a user account. Accounts created without a password
// start in the setup-required state.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.userService.Create(r.Context(), service.CreateUserInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Tel:       req.Tel,
		Role:      domain.Role(req.Role),
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, out.User)
}

// List returns a page of users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	out, err := h.userService.List(r.Context(), service.ListUsersInput{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, out.Users, out.TotalCount, limit, offset)
}

// Get returns a user by ID.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, user)
}

type updateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Tel       string `json:"tel"`
}

// UpdateProfile updates the caller's display fields.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req updateProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), service.UpdateProfileInput{
		UserID:    user.ID,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Tel:       req.Tel,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

type completeSetupRequest struct {
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

// CompleteSetup runs the one-time onboarding flow: sets the password and
// provisions the caller's key pair.
func (h *UserHandler) CompleteSetup(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req completeSetupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.userService.CompleteSetup(r.Context(), service.CompleteSetupInput{
		UserID:          user.ID,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, out.User)
}

type passwordRequest struct {
	Password string `json:"password"`
}

// ExportPrivateKey unwraps and returns the caller's private key PEM.
// Requires the account password even on an authenticated call.
func (h *UserHandler) ExportPrivateKey(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req passwordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	privateKey, err := h.userService.GetPrivateKey(r.Context(), user.ID, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"private_key": privateKey})
}

// RotateKeys replaces the caller's key pair.
func (h *UserHandler) RotateKeys(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req passwordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	updated, err := h.userService.RotateKeys(r.Context(), user.ID, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, updated)
}

// Ping records a presence heartbeat for the caller.
func (h *UserHandler) Ping(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	if err := h.userService.Ping(r.Context(), user.ID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "pong")
}

// ListOnline returns users seen within the presence window.
func (h *UserHandler) ListOnline(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListOnline(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, users)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole changes a user's role.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	var req setRoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.userService.SetRole(r.Context(), id, domain.Role(req.Role)); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "role updated")
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetActive enables or disables a user account.
func (h *UserHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	var req setActiveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.userService.SetActive(r.Context(), id, req.IsActive); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "account updated")
}

// Delete removes a user account.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.userService.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "user deleted")
}
