package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupType classifies a group's visibility.
type GroupType string

// Group types.
const (
	GroupPublic  GroupType = "PUBLIC"
	GroupPrivate GroupType = "PRIVATE"
	GroupSystem  GroupType = "SYSTEM"
)

// Valid reports whether t is a known group type.
func (t GroupType) Valid() bool {
	switch t {
	case GroupPublic, GroupPrivate, GroupSystem:
		return true
	}
	return false
}

// DefaultMaxMembers is the membership cap applied when none is given.
const DefaultMaxMembers = 50

// Group is a membership-capped collection of users with its own RSA key
// pair. Group keys are stored in clear PEM: a group has no password to
// derive a wrapping key from, so encryption at rest is not possible here.
type Group struct {
	// ID is the unique identifier for the group.
	ID uuid.UUID `json:"id"`

	// Name is the display name.
	Name string `json:"name"`

	// Description is free-form text.
	Description string `json:"description,omitempty"`

	// Type classifies the group (PUBLIC, PRIVATE, SYSTEM).
	Type GroupType `json:"group_type"`

	// CreatedBy is the user who created the group.
	CreatedBy uuid.UUID `json:"created_by"`

	// AdminIDs are users who can manage the group.
	AdminIDs []uuid.UUID `json:"admins,omitempty"`

	// IsActive indicates whether the group is enabled.
	IsActive bool `json:"is_active"`

	// MaxMembers caps simultaneous membership. The member count never
	// exceeds this at successful add time.
	MaxMembers int `json:"max_members"`

	// AllowMemberInvite lets non-admin members send invitations.
	AllowMemberInvite bool `json:"allow_member_invite"`

	// Key pair (PEM). PrivateKey is intentionally unencrypted; see type doc.
	PrivateKey string `json:"-"`
	PublicKey  string `json:"public_key,omitempty"`

	// Timestamps.
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// NewGroup creates a new Group with default values. Keys are provisioned
// by the service on first save.
func NewGroup(name string, groupType GroupType, createdBy uuid.UUID) *Group {
	now := time.Now().UTC()
	if groupType == "" {
		groupType = GroupPrivate
	}
	return &Group{
		ID:         uuid.New(),
		Name:       name,
		Type:       groupType,
		CreatedBy:  createdBy,
		AdminIDs:   []uuid.UUID{createdBy},
		IsActive:   true,
		MaxMembers: DefaultMaxMembers,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// HasKeys reports whether the group's key pair has been generated.
func (g *Group) HasKeys() bool {
	return g.PrivateKey != "" && g.PublicKey != ""
}

// IsAdmin reports whether the user administers this group.
func (g *Group) IsAdmin(userID uuid.UUID) bool {
	for _, id := range g.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// TouchActivity stamps the last-activity timestamp.
func (g *Group) TouchActivity(now time.Time) {
	t := now.UTC()
	g.LastActivity = &t
}

// MembershipRole is a user's role within a group.
type MembershipRole string

// Membership roles.
const (
	MembershipAdmin     MembershipRole = "ADMIN"
	MembershipModerator MembershipRole = "MODERATOR"
	MembershipMember    MembershipRole = "MEMBER"
)

// Valid reports whether r is a known membership role.
func (r MembershipRole) Valid() bool {
	switch r {
	case MembershipAdmin, MembershipModerator, MembershipMember:
		return true
	}
	return false
}

// GroupMembership links a user to a group. The (group, user) pair is unique.
type GroupMembership struct {
	// ID is the unique identifier for the membership row.
	ID uuid.UUID `json:"id"`

	// GroupID and UserID form the unique pair.
	GroupID uuid.UUID `json:"group_id"`
	UserID  uuid.UUID `json:"user_id"`

	// Role is the member's role within the group.
	Role MembershipRole `json:"role"`

	// AddedBy is the user who added this member; nil once that user is deleted.
	AddedBy *uuid.UUID `json:"added_by,omitempty"`

	// JoinedAt is when the membership was created.
	JoinedAt time.Time `json:"joined_at"`

	// LastSeen is the member's most recent activity within the group.
	LastSeen *time.Time `json:"last_seen,omitempty"`

	// IsMuted silences notifications for the member.
	IsMuted bool `json:"is_muted"`
}

// NewGroupMembership creates a membership with default values.
func NewGroupMembership(groupID, userID uuid.UUID, addedBy *uuid.UUID, role MembershipRole) *GroupMembership {
	if role == "" {
		role = MembershipMember
	}
	return &GroupMembership{
		ID:       uuid.New(),
		GroupID:  groupID,
		UserID:   userID,
		Role:     role,
		AddedBy:  addedBy,
		JoinedAt: time.Now().UTC(),
	}
}

// TouchLastSeen stamps the last-seen timestamp.
func (m *GroupMembership) TouchLastSeen(now time.Time) {
	t := now.UTC()
	m.LastSeen = &t
}
