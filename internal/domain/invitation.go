package domain

import (
	"time"

	"github.com/google/uuid"
)

// InvitationStatus is the lifecycle state of a group invitation.
type InvitationStatus string

// Invitation statuses. ACCEPTED, DECLINED and EXPIRED are terminal;
// the only transition out of PENDING besides an explicit response is the
// expiry sweep.
const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationDeclined InvitationStatus = "DECLINED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// DefaultInvitationTTL is applied when no expiry is provided at creation.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// GroupInvitation invites a user into a group. The (group, invited user)
// pair is unique while pending.
type GroupInvitation struct {
	// ID is the unique identifier for the invitation.
	ID uuid.UUID `json:"id"`

	// GroupID is the target group.
	GroupID uuid.UUID `json:"group_id"`

	// InvitedUserID is the invitee; InvitedBy is the inviter.
	InvitedUserID uuid.UUID `json:"invited_user_id"`
	InvitedBy     uuid.UUID `json:"invited_by"`

	// Status is the invitation lifecycle state.
	Status InvitationStatus `json:"status"`

	// Message is an optional note from the inviter.
	Message string `json:"message,omitempty"`

	// CreatedAt is when the invitation was issued.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the acceptance deadline.
	ExpiresAt time.Time `json:"expires_at"`

	// RespondedAt is when the invitee accepted or declined.
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// NewGroupInvitation creates a pending invitation. A zero expiresAt
// defaults to creation time plus DefaultInvitationTTL.
func NewGroupInvitation(groupID, invitedUser, invitedBy uuid.UUID, message string, expiresAt time.Time) *GroupInvitation {
	now := time.Now().UTC()
	if expiresAt.IsZero() {
		expiresAt = now.Add(DefaultInvitationTTL)
	}
	return &GroupInvitation{
		ID:            uuid.New(),
		GroupID:       groupID,
		InvitedUserID: invitedUser,
		InvitedBy:     invitedBy,
		Status:        InvitationPending,
		Message:       message,
		CreatedAt:     now,
		ExpiresAt:     expiresAt,
	}
}

// IsExpired reports whether the invitation is past its deadline.
func (i *GroupInvitation) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// MarkResponded sets a terminal status with the response timestamp.
func (i *GroupInvitation) MarkResponded(status InvitationStatus, now time.Time) {
	t := now.UTC()
	i.Status = status
	i.RespondedAt = &t
}
