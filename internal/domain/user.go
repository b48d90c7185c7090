// Package domain contains the core business entities for drlab.
// These are pure Go structs with no external dependencies beyond UUIDs,
// representing the fundamental concepts of the laboratory system.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a user's system-wide access role.
type Role string

// User roles, ordered from most to least privileged.
const (
	RoleAdmin      Role = "ADMIN"
	RoleManager    Role = "MANAGER"
	RoleTechnician Role = "TECHNICIAN"
	RoleOperator   Role = "OPERATOR"
	RoleViewer     Role = "VIEWER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTechnician, RoleOperator, RoleViewer:
		return true
	}
	return false
}

// DefaultPresenceWindow is the trailing window within which a heartbeat
// ping counts as "online".
const DefaultPresenceWindow = 5 * time.Minute

// User represents a registered user of the laboratory system.
// Users are created either with a password or unauthenticated; in the
// latter case SetupRequired is true until the one-time setup flow sets a
// password and provisions the encrypted key pair.
type User struct {
	// ID is the unique identifier for the user.
	ID uuid.UUID `json:"id"`

	// Email is the unique login identity.
	Email string `json:"email"`

	// FirstName and LastName are optional display fields.
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// Tel is an optional phone number.
	Tel string `json:"tel,omitempty"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Empty until setup completes for unauthenticated users.
	PasswordHash string `json:"-"`

	// Role controls what the user may do system-wide.
	Role Role `json:"role"`

	// IsActive indicates whether the account may authenticate.
	IsActive bool `json:"is_active"`

	// SetupRequired is true until the user completes the one-time setup
	// flow (password + key generation). It transitions to false exactly once.
	SetupRequired    bool       `json:"setup_required"`
	SetupCompletedAt *time.Time `json:"setup_completed_at,omitempty"`

	// Key material. The private key is stored only encrypted; the wrapping
	// key is derived from the user's password and never persisted.
	EncryptedPrivateKey string `json:"-"`
	KeySalt             string `json:"-"`
	PublicKey           string `json:"public_key,omitempty"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login,omitempty"`

	// LastPing is the most recent heartbeat timestamp, driving presence.
	LastPing *time.Time `json:"last_ping,omitempty"`

	// CreatedAt is the timestamp when the user was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with default values. An empty passwordHash
// marks the account as requiring setup.
func NewUser(email string, role Role, passwordHash string) *User {
	now := time.Now().UTC()
	if role == "" {
		role = RoleViewer
	}
	return &User{
		ID:            uuid.New(),
		Email:         email,
		PasswordHash:  passwordHash,
		Role:          role,
		IsActive:      true,
		SetupRequired: passwordHash == "",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// FullName returns first and last name joined, falling back to the email.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	}
	return u.Email
}

// CanAuthenticate returns true if the user is allowed to authenticate.
// Accounts pending first-time setup have no password yet and cannot log in.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.SetupRequired
}

// HasKeys reports whether the user has provisioned key material.
func (u *User) HasKeys() bool {
	return u.EncryptedPrivateKey != "" && u.PublicKey != ""
}

// HasRole reports whether the user has the given role.
func (u *User) HasRole(r Role) bool {
	return u.Role == r
}

// IsAdmin reports whether the user holds the ADMIN role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanManageUsers reports whether the user may administer other accounts.
func (u *User) CanManageUsers() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

// CanModifySamples reports whether the user may create or update samples.
func (u *User) CanModifySamples() bool {
	switch u.Role {
	case RoleAdmin, RoleManager, RoleTechnician, RoleOperator:
		return true
	}
	return false
}

// IsOnline reports whether the user's last heartbeat falls within the
// trailing window ending at now. A zero window uses DefaultPresenceWindow.
func (u *User) IsOnline(now time.Time, window time.Duration) bool {
	if u.LastPing == nil {
		return false
	}
	if window <= 0 {
		window = DefaultPresenceWindow
	}
	return u.LastPing.After(now.Add(-window))
}
