package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

// Project statuses.
const (
	ProjectActive    ProjectStatus = "ACTIVE"
	ProjectCompleted ProjectStatus = "COMPLETED"
	ProjectOnHold    ProjectStatus = "ON_HOLD"
	ProjectCancelled ProjectStatus = "CANCELLED"
)

// Valid reports whether s is a known project status.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold, ProjectCancelled:
		return true
	}
	return false
}

// Project groups sample batches under a client engagement.
type Project struct {
	// ID is the unique identifier for the project.
	ID uuid.UUID `json:"id"`

	// Name is the project name.
	Name string `json:"name"`

	// Description is free-form text.
	Description string `json:"description,omitempty"`

	// ClientID is the owning client.
	ClientID uuid.UUID `json:"client_id"`

	// Status is the project lifecycle state. CompletedAt is set exactly
	// when Status is COMPLETED and cleared on any other status.
	Status      ProjectStatus `json:"status"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	// CreatedBy is the user who created the project.
	CreatedBy uuid.UUID `json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates an active project under a client.
func NewProject(name string, clientID, createdBy uuid.UUID) *Project {
	now := time.Now().UTC()
	return &Project{
		ID:        uuid.New(),
		Name:      name,
		ClientID:  clientID,
		Status:    ProjectActive,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetStatus applies a status change, keeping the completion timestamp
// coupled: COMPLETED sets it (if unset), any other status clears it.
func (p *Project) SetStatus(status ProjectStatus, now time.Time) {
	p.Status = status
	if status == ProjectCompleted {
		if p.CompletedAt == nil {
			t := now.UTC()
			p.CompletedAt = &t
		}
		return
	}
	p.CompletedAt = nil
}
