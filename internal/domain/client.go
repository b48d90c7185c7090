package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClientType classifies a client's engagement model.
type ClientType string

// Client types.
const (
	ClientContracted ClientType = "CONTRACTED"
	ClientOneTime    ClientType = "ONE_TIME"
	ClientLongTerm   ClientType = "LONG_TERM"
)

// Valid reports whether t is a known client type.
func (t ClientType) Valid() bool {
	switch t {
	case ClientContracted, ClientOneTime, ClientLongTerm:
		return true
	}
	return false
}

// DefaultSLAHours is the turnaround applied when a client has no explicit SLA.
const DefaultSLAHours = 72

// Client is a contracted customer submitting samples for testing.
type Client struct {
	// ID is the unique identifier for the client.
	ID uuid.UUID `json:"id"`

	// Name is the client company name.
	Name string `json:"name"`

	// Contact details.
	ContactPerson string `json:"contact_person,omitempty"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`

	// Type classifies the engagement (CONTRACTED, ONE_TIME, LONG_TERM).
	Type ClientType `json:"client_type"`

	// IsActive gates new work; deactivation is the safe alternative to
	// deletion for clients with existing projects or samples.
	IsActive bool `json:"is_active"`

	// DefaultSLAHours is the contractual turnaround applied to new batches.
	DefaultSLAHours int `json:"default_sla_hours"`

	// Billing contacts.
	BillingContact string `json:"billing_contact,omitempty"`
	BillingEmail   string `json:"billing_email,omitempty"`

	// CreatedBy is the user who registered the client.
	CreatedBy uuid.UUID `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewClient creates a client with default values.
func NewClient(name, email string, createdBy uuid.UUID) *Client {
	now := time.Now().UTC()
	return &Client{
		ID:              uuid.New(),
		Name:            name,
		Email:           email,
		Type:            ClientOneTime,
		IsActive:        true,
		DefaultSLAHours: DefaultSLAHours,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
