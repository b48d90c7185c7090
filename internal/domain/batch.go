package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Department is a testing department.
type Department string

// Testing departments.
const (
	DeptChemistry    Department = "CHEMISTRY"
	DeptMicrobiology Department = "MICROBIOLOGY"
	DeptMetals       Department = "METALS"
)

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	switch d {
	case DeptChemistry, DeptMicrobiology, DeptMetals:
		return true
	}
	return false
}

// Prefix returns the 4-letter worksheet prefix (CHEM, MICR, META).
func (d Department) Prefix() string {
	s := string(d)
	if len(s) > 4 {
		s = s[:4]
	}
	return strings.ToUpper(s)
}

// BatchStatus is the lifecycle state of a sample batch.
type BatchStatus string

// Batch statuses, in workflow order.
const (
	BatchReceived   BatchStatus = "RECEIVED"
	BatchInProgress BatchStatus = "IN_PROGRESS"
	BatchTesting    BatchStatus = "TESTING"
	BatchReview     BatchStatus = "REVIEW"
	BatchCompleted  BatchStatus = "COMPLETED"
	BatchDelivered  BatchStatus = "DELIVERED"
)

// batchTransitions is the allowed-edge table for batch statuses. The
// workflow moves forward only; REVIEW may fall back to TESTING for rework.
// DELIVERED is terminal.
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchReceived:   {BatchInProgress, BatchTesting},
	BatchInProgress: {BatchTesting},
	BatchTesting:    {BatchReview, BatchCompleted},
	BatchReview:     {BatchTesting, BatchCompleted},
	BatchCompleted:  {BatchDelivered},
	BatchDelivered:  {},
}

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	_, ok := batchTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, t := range batchTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// SampleBatch groups samples received together; one test report is issued
// per batch. Due date and batch number are fixed at creation.
type SampleBatch struct {
	// ID is the unique identifier for the batch.
	ID uuid.UUID `json:"id"`

	// BatchNumber is the human-readable identifier, B-{year}-{seq:04d},
	// sequenced per calendar year.
	BatchNumber string `json:"batch_number"`

	// ClientID is the owning client; ProjectID is optional.
	ClientID  uuid.UUID  `json:"client_id"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`

	// Department is the testing department the client selected.
	Department Department `json:"testing_department"`

	// SLAHours is the contractual turnaround; DueDate is CreatedAt plus
	// SLAHours, computed once at creation and never recomputed. A promised
	// deadline does not silently move.
	SLAHours int       `json:"sla_hours"`
	DueDate  time.Time `json:"due_date"`

	// Status is the batch lifecycle state.
	Status BatchStatus `json:"status"`

	// CreatedBy is the user who registered the batch.
	CreatedBy uuid.UUID `json:"created_by"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewSampleBatch creates a batch in RECEIVED state with its due date
// computed from the SLA.
func NewSampleBatch(batchNumber string, clientID uuid.UUID, projectID *uuid.UUID, dept Department, slaHours int, createdBy uuid.UUID, now time.Time) *SampleBatch {
	now = now.UTC()
	return &SampleBatch{
		ID:          uuid.New(),
		BatchNumber: batchNumber,
		ClientID:    clientID,
		ProjectID:   projectID,
		Department:  dept,
		SLAHours:    slaHours,
		DueDate:     DueDate(now, slaHours),
		Status:      BatchReceived,
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition applies a status change through the transition table.
// COMPLETED stamps the completion timestamp if absent.
func (b *SampleBatch) Transition(next BatchStatus, now time.Time) error {
	if !next.Valid() {
		return NewDomainError(ErrInvalidStatusTransition, "unknown status "+string(next), b.BatchNumber)
	}
	if !b.Status.CanTransitionTo(next) {
		return NewDomainError(ErrInvalidStatusTransition, string(b.Status)+" -> "+string(next), b.BatchNumber)
	}
	b.Status = next
	if next == BatchCompleted && b.CompletedAt == nil {
		t := now.UTC()
		b.CompletedAt = &t
	}
	return nil
}

// IsOverdue reports whether the batch is past its SLA due date.
func (b *SampleBatch) IsOverdue(now time.Time) bool {
	return now.After(b.DueDate) && b.Status != BatchDelivered
}

// DueDate computes an SLA deadline from a creation time and SLA hours.
func DueDate(createdAt time.Time, slaHours int) time.Time {
	return createdAt.Add(time.Duration(slaHours) * time.Hour)
}
