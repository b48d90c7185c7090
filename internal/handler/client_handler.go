package handler

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/service"
)

// ClientHandler serves client and project endpoints.
type ClientHandler struct {
	clientService *service.ClientService
	logger        zerolog.Logger
}

// NewClientHandler creates a new ClientHandler.
func NewClientHandler(clientService *service.ClientService, logger zerolog.Logger) *ClientHandler {
	return &ClientHandler{
		clientService: clientService,
		logger:        logger.With().Str("handler", "client").Logger(),
	}
}

type clientRequest struct {
	Name            string `json:"name"`
	ContactPerson   string `json:"contact_person"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	Type            string `json:"type"`
	DefaultSLAHours int    `json:"default_sla_hours"`
	BillingContact  string `json:"billing_contact"`
	BillingEmail    string `json:"billing_email"`
}

// Create registers a client.
func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req clientRequest
	if !decodeBody(w, r, &req) {
		return
	}

	client, err := h.clientService.CreateClient(r.Context(), service.CreateClientInput{
		Name:            req.Name,
		ContactPerson:   req.ContactPerson,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		Type:            domain.ClientType(req.Type),
		DefaultSLAHours: req.DefaultSLAHours,
		BillingContact:  req.BillingContact,
		BillingEmail:    req.BillingEmail,
		CreatedBy:       user.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, client)
}

// List returns a page of clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	out, err := h.clientService.ListClients(r.Context(), service.ListClientsInput{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, out.Clients, out.TotalCount, limit, offset)
}

// Get returns a client by ID.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	client, err := h.clientService.GetClient(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, client)
}

// Update replaces a client's details.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	var req clientRequest
	if !decodeBody(w, r, &req) {
		return
	}

	client, err := h.clientService.UpdateClient(r.Context(), service.UpdateClientInput{
		ClientID:        id,
		Name:            req.Name,
		ContactPerson:   req.ContactPerson,
		Email:           req.Email,
		Phone:           req.Phone,
		Address:         req.Address,
		Type:            domain.ClientType(req.Type),
		DefaultSLAHours: req.DefaultSLAHours,
		BillingContact:  req.BillingContact,
		BillingEmail:    req.BillingEmail,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, client)
}

// ToggleActive flips a client's active flag.
func (h *ClientHandler) ToggleActive(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	client, err := h.clientService.ToggleActive(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, client)
}

// Delete removes a client. Blocked with a 409 when dependent projects,
// batches or samples exist.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	if err := h.clientService.DeleteClient(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "client deleted")
}

// Stats returns a client's aggregate counters.
func (h *ClientHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	stats, err := h.clientService.Stats(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateProject creates a project under a client.
func (h *ClientHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	clientID, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req createProjectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.clientService.CreateProject(r.Context(), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		ClientID:    clientID,
		CreatedBy:   user.ID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, project)
}

// ListProjects lists a client's projects.
func (h *ClientHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	clientID, ok := urlUUID(w, r, "clientID")
	if !ok {
		return
	}
	projects, err := h.clientService.ListProjects(r.Context(), clientID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, projects)
}

// GetProject returns a project by ID.
func (h *ClientHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "projectID")
	if !ok {
		return
	}
	project, err := h.clientService.GetProject(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

type setProjectStatusRequest struct {
	Status string `json:"status"`
}

// SetProjectStatus changes a project's status.
func (h *ClientHandler) SetProjectStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "projectID")
	if !ok {
		return
	}
	var req setProjectStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	project, err := h.clientService.SetProjectStatus(r.Context(), id, domain.ProjectStatus(strings.ToUpper(req.Status)))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, project)
}

// DeleteProject removes a project. Blocked with a 409 when batches
// reference it.
func (h *ClientHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "projectID")
	if !ok {
		return
	}
	if err := h.clientService.DeleteProject(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "project deleted")
}
