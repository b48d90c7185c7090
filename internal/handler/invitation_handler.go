package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/service"
)

// InvitationHandler serves group invitation endpoints.
type InvitationHandler struct {
	invitationService *service.InvitationService
	logger            zerolog.Logger
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(invitationService *service.InvitationService, logger zerolog.Logger) *InvitationHandler {
	return &InvitationHandler{
		invitationService: invitationService,
		logger:            logger.With().Str("handler", "invitation").Logger(),
	}
}

type inviteRequest struct {
	GroupID       uuid.UUID `json:"group_id"`
	InvitedUserID uuid.UUID `json:"invited_user_id"`
	Message       string    `json:"message"`
}

// Invite issues a pending invitation from the caller.
func (h *InvitationHandler) Invite(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req inviteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	invitation, err := h.invitationService.Invite(r.Context(), service.InviteInput{
		GroupID:       req.GroupID,
		InvitedUserID: req.InvitedUserID,
		InvitedBy:     user.ID,
		Message:       req.Message,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, invitation)
}

// ListPending returns the caller's pending invitations.
func (h *InvitationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	invitations, err := h.invitationService.ListPendingByUser(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, invitations)
}

// Accept accepts an invitation and enrolls the invitee.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "invitationID")
	if !ok {
		return
	}
	membership, err := h.invitationService.Accept(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, membership)
}

// Decline declines an invitation.
func (h *InvitationHandler) Decline(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "invitationID")
	if !ok {
		return
	}
	if err := h.invitationService.Decline(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "invitation declined")
}
