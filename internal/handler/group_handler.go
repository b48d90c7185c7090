package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/service"
)

// GroupHandler serves group and membership endpoints.
type GroupHandler struct {
	groupService *service.GroupService
	logger       zerolog.Logger
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(groupService *service.GroupService, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		groupService: groupService,
		logger:       logger.With().Str("handler", "group").Logger(),
	}
}

type createGroupRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Type              string `json:"type"`
	MaxMembers        int    `json:"max_members"`
	AllowMemberInvite bool   `json:"allow_member_invite"`
}

// Create creates a group owned by the caller.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req createGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}

	out, err := h.groupService.Create(r.Context(), service.CreateGroupInput{
		Name:              req.Name,
		Description:       req.Description,
		Type:              domain.GroupType(req.Type),
		CreatedBy:         user.ID,
		MaxMembers:        req.MaxMembers,
		AllowMemberInvite: req.AllowMemberInvite,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, out.Group)
}

// List returns a page of groups.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	out, err := h.groupService.List(r.Context(), service.ListGroupsInput{Limit: limit, Offset: offset})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeList(w, out.Groups, out.TotalCount, limit, offset)
}

// Get returns a group by ID.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "groupID")
	if !ok {
		return
	}
	group, err := h.groupService.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, group)
}

// Mine returns the groups the caller belongs to.
func (h *GroupHandler) Mine(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	groups, err := h.groupService.ListByMember(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, groups)
}

// Members lists a group's memberships.
func (h *GroupHandler) Members(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "groupID")
	if !ok {
		return
	}
	members, err := h.groupService.Members(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, members)
}

type addMemberRequest struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// AddMember adds a user to a group directly, bypassing the invitation flow.
func (h *GroupHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "groupID")
	if !ok {
		return
	}
	caller, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return
	}
	var req addMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}

	membership, err := h.groupService.AddMember(r.Context(), service.AddMemberInput{
		GroupID: groupID,
		UserID:  req.UserID,
		AddedBy: &caller.ID,
		Role:    domain.MembershipRole(req.Role),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, membership)
}

// RemoveMember removes a user from a group.
func (h *GroupHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	groupID, ok := urlUUID(w, r, "groupID")
	if !ok {
		return
	}
	userID, ok := urlUUID(w, r, "userID")
	if !ok {
		return
	}
	if err := h.groupService.RemoveMember(r.Context(), groupID, userID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "member removed")
}
