package domain

import (
	"time"

	"github.com/google/uuid"
)

// WorksheetStatus is the lifecycle state of a worksheet.
type WorksheetStatus string

// Worksheet statuses, in workflow order.
const (
	WorksheetDraft      WorksheetStatus = "DRAFT"
	WorksheetActive     WorksheetStatus = "ACTIVE"
	WorksheetInProgress WorksheetStatus = "IN_PROGRESS"
	WorksheetCompleted  WorksheetStatus = "COMPLETED"
	WorksheetReviewed   WorksheetStatus = "REVIEWED"
)

// worksheetTransitions is the allowed-edge table for worksheet statuses.
// COMPLETED may fall back to IN_PROGRESS for rework; REVIEWED is terminal.
var worksheetTransitions = map[WorksheetStatus][]WorksheetStatus{
	WorksheetDraft:      {WorksheetActive},
	WorksheetActive:     {WorksheetInProgress},
	WorksheetInProgress: {WorksheetCompleted},
	WorksheetCompleted:  {WorksheetInProgress, WorksheetReviewed},
	WorksheetReviewed:   {},
}

// Valid reports whether s is a known worksheet status.
func (s WorksheetStatus) Valid() bool {
	_, ok := worksheetTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s WorksheetStatus) CanTransitionTo(next WorksheetStatus) bool {
	for _, t := range worksheetTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// SampleWorksheet is a department work assignment grouping samples for a
// testing run.
type SampleWorksheet struct {
	// ID is the unique identifier for the worksheet.
	ID uuid.UUID `json:"id"`

	// WorksheetNumber is the human-readable identifier,
	// WS-{DEPT}-{year}-{seq:04d}, where DEPT is the 4-letter department
	// prefix and the sequence is per department per calendar year.
	WorksheetNumber string `json:"worksheet_number"`

	// Department owns the worksheet; only samples assigned to the same
	// department may be attached.
	Department Department `json:"department"`

	// Title and notes are free-form.
	Title string `json:"title,omitempty"`
	Notes string `json:"notes,omitempty"`

	// SampleIDs are the attached samples, in attachment order.
	SampleIDs []uuid.UUID `json:"sample_ids"`

	// TechnicianIDs are the users assigned to carry out the run.
	TechnicianIDs []uuid.UUID `json:"technician_ids"`

	// Status is the worksheet lifecycle state.
	Status WorksheetStatus `json:"status"`

	// CreatedBy is the user who opened the worksheet.
	CreatedBy uuid.UUID `json:"created_by"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy  *uuid.UUID `json:"reviewed_by,omitempty"`
}

// NewSampleWorksheet creates a worksheet in DRAFT state.
func NewSampleWorksheet(worksheetNumber string, dept Department, title string, createdBy uuid.UUID, now time.Time) *SampleWorksheet {
	now = now.UTC()
	return &SampleWorksheet{
		ID:              uuid.New(),
		WorksheetNumber: worksheetNumber,
		Department:      dept,
		Title:           title,
		Status:          WorksheetDraft,
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// HasSample reports whether the sample is already attached.
func (w *SampleWorksheet) HasSample(sampleID uuid.UUID) bool {
	for _, id := range w.SampleIDs {
		if id == sampleID {
			return true
		}
	}
	return false
}

// AddSample attaches a sample; duplicates are ignored.
func (w *SampleWorksheet) AddSample(sampleID uuid.UUID) {
	if w.HasSample(sampleID) {
		return
	}
	w.SampleIDs = append(w.SampleIDs, sampleID)
}

// RemoveSample detaches a sample if present.
func (w *SampleWorksheet) RemoveSample(sampleID uuid.UUID) {
	for i, id := range w.SampleIDs {
		if id == sampleID {
			w.SampleIDs = append(w.SampleIDs[:i], w.SampleIDs[i+1:]...)
			return
		}
	}
}

// HasTechnician reports whether the user is assigned to the worksheet.
func (w *SampleWorksheet) HasTechnician(userID uuid.UUID) bool {
	for _, id := range w.TechnicianIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// AssignTechnician adds a technician; duplicates are ignored.
func (w *SampleWorksheet) AssignTechnician(userID uuid.UUID) {
	if w.HasTechnician(userID) {
		return
	}
	w.TechnicianIDs = append(w.TechnicianIDs, userID)
}

// IsEditable reports whether samples and technicians may still be changed.
// Worksheets freeze once work begins.
func (w *SampleWorksheet) IsEditable() bool {
	return w.Status == WorksheetDraft || w.Status == WorksheetActive
}

// Transition applies a status change through the transition table.
// IN_PROGRESS stamps the start time if absent, COMPLETED the completion
// time, and REVIEWED the review time.
func (w *SampleWorksheet) Transition(next WorksheetStatus, now time.Time) error {
	if !next.Valid() {
		return NewDomainError(ErrInvalidStatusTransition, "unknown status "+string(next), w.WorksheetNumber)
	}
	if !w.Status.CanTransitionTo(next) {
		return NewDomainError(ErrInvalidStatusTransition, string(w.Status)+" -> "+string(next), w.WorksheetNumber)
	}
	w.Status = next
	t := now.UTC()
	switch next {
	case WorksheetInProgress:
		if w.StartedAt == nil {
			w.StartedAt = &t
		}
	case WorksheetCompleted:
		if w.CompletedAt == nil {
			w.CompletedAt = &t
		}
	case WorksheetReviewed:
		if w.ReviewedAt == nil {
			w.ReviewedAt = &t
		}
	}
	return nil
}

// Review marks the worksheet REVIEWED by the given user.
func (w *SampleWorksheet) Review(reviewedBy uuid.UUID, now time.Time) error {
	if err := w.Transition(WorksheetReviewed, now); err != nil {
		return err
	}
	w.ReviewedBy = &reviewedBy
	return nil
}
