package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenLength is the length in characters of an API auth token.
const TokenLength = 40

// AuthToken is an opaque bearer credential. Each user holds at most one
// token; repeated logins reuse it until it is revoked.
type AuthToken struct {
	// Key is the opaque token string presented by clients.
	Key string `json:"key"`

	// UserID is the token owner.
	UserID uuid.UUID `json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

// NewAuthToken binds a token key to a user.
func NewAuthToken(key string, userID uuid.UUID, now time.Time) *AuthToken {
	return &AuthToken{
		Key:       key,
		UserID:    userID,
		CreatedAt: now.UTC(),
	}
}

// UserSession records a login with its client metadata. Sessions are
// deactivated on logout rather than deleted, preserving the audit trail.
type UserSession struct {
	// ID is the unique identifier for the session.
	ID uuid.UUID `json:"id"`

	// UserID is the session owner.
	UserID uuid.UUID `json:"user_id"`

	// SessionKey identifies the session to clients.
	SessionKey string `json:"session_key"`

	// Client metadata captured at login.
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`

	// IsActive is cleared on logout.
	IsActive bool `json:"is_active"`

	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// NewUserSession creates an active session.
func NewUserSession(userID uuid.UUID, sessionKey, ip, userAgent string, now time.Time) *UserSession {
	now = now.UTC()
	return &UserSession{
		ID:           uuid.New(),
		UserID:       userID,
		SessionKey:   sessionKey,
		IPAddress:    ip,
		UserAgent:    userAgent,
		IsActive:     true,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// Touch records activity on the session.
func (s *UserSession) Touch(now time.Time) {
	s.LastActivity = now.UTC()
}

// Deactivate ends the session.
func (s *UserSession) Deactivate() {
	s.IsActive = false
}
