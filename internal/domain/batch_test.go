package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBatchTransitions(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    BatchStatus
		to      BatchStatus
		wantErr error
	}{
		{name: "received to in_progress", from: BatchReceived, to: BatchInProgress},
		{name: "received to testing", from: BatchReceived, to: BatchTesting},
		{name: "in_progress to testing", from: BatchInProgress, to: BatchTesting},
		{name: "testing to review", from: BatchTesting, to: BatchReview},
		{name: "testing to completed", from: BatchTesting, to: BatchCompleted},
		{name: "review rework", from: BatchReview, to: BatchTesting},
		{name: "review to completed", from: BatchReview, to: BatchCompleted},
		{name: "completed to delivered", from: BatchCompleted, to: BatchDelivered},
		{name: "skip to delivered", from: BatchTesting, to: BatchDelivered, wantErr: ErrInvalidStatusTransition},
		{name: "backwards", from: BatchReview, to: BatchReceived, wantErr: ErrInvalidStatusTransition},
		{name: "delivered is terminal", from: BatchDelivered, to: BatchTesting, wantErr: ErrInvalidStatusTransition},
		{name: "unknown status", from: BatchReceived, to: BatchStatus("BOGUS"), wantErr: ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewSampleBatch("B-2025-0001", uuid.New(), nil, DeptChemistry, 72, uuid.New(), now)
			b.Status = tt.from

			err := b.Transition(tt.to, now)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				if b.Status != tt.from {
					t.Errorf("status changed on rejected transition: %s", b.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Status != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, b.Status)
			}
		})
	}
}

func TestBatchDueDateFixedAtCreation(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	b := NewSampleBatch("B-2025-0001", uuid.New(), nil, DeptChemistry, 48, uuid.New(), now)

	want := now.Add(48 * time.Hour)
	if !b.DueDate.Equal(want) {
		t.Fatalf("expected due date %v, got %v", want, b.DueDate)
	}

	if b.IsOverdue(want) {
		t.Error("not overdue exactly at the due date")
	}
	if !b.IsOverdue(want.Add(time.Minute)) {
		t.Error("expected overdue past the due date")
	}

	// A delivered batch is no longer reported overdue.
	b.Status = BatchDelivered
	if b.IsOverdue(want.Add(time.Hour)) {
		t.Error("delivered batch reported overdue")
	}
}

func TestBatchCompletedStampsCompletedAt(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	b := NewSampleBatch("B-2025-0001", uuid.New(), nil, DeptChemistry, 72, uuid.New(), now)
	b.Status = BatchTesting

	done := now.Add(24 * time.Hour)
	if err := b.Transition(BatchCompleted, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.CompletedAt == nil || !b.CompletedAt.Equal(done) {
		t.Fatalf("expected completed_at %v, got %v", done, b.CompletedAt)
	}
}

func TestDepartmentPrefix(t *testing.T) {
	tests := []struct {
		dept Department
		want string
	}{
		{DeptChemistry, "CHEM"},
		{DeptMicrobiology, "MICR"},
		{DeptMetals, "META"},
	}
	for _, tt := range tests {
		if got := tt.dept.Prefix(); got != tt.want {
			t.Errorf("%s prefix = %s, want %s", tt.dept, got, tt.want)
		}
	}
}

func TestWorksheetTransitions(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    WorksheetStatus
		to      WorksheetStatus
		wantErr error
	}{
		{name: "draft to active", from: WorksheetDraft, to: WorksheetActive},
		{name: "active to in_progress", from: WorksheetActive, to: WorksheetInProgress},
		{name: "in_progress to completed", from: WorksheetInProgress, to: WorksheetCompleted},
		{name: "completed rework", from: WorksheetCompleted, to: WorksheetInProgress},
		{name: "completed to reviewed", from: WorksheetCompleted, to: WorksheetReviewed},
		{name: "skip ahead", from: WorksheetDraft, to: WorksheetCompleted, wantErr: ErrInvalidStatusTransition},
		{name: "reviewed is terminal", from: WorksheetReviewed, to: WorksheetInProgress, wantErr: ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewSampleWorksheet("WS-CHEM-2025-0001", DeptChemistry, "", uuid.New(), now)
			w.Status = tt.from

			err := w.Transition(tt.to, now)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if w.Status != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, w.Status)
			}
		})
	}
}

func TestWorksheetSamplesAndTechnicians(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	w := NewSampleWorksheet("WS-CHEM-2025-0001", DeptChemistry, "", uuid.New(), now)

	a, b := uuid.New(), uuid.New()
	w.AddSample(a)
	w.AddSample(b)
	w.AddSample(a) // duplicate ignored
	if len(w.SampleIDs) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(w.SampleIDs))
	}

	w.RemoveSample(a)
	if len(w.SampleIDs) != 1 || w.SampleIDs[0] != b {
		t.Fatalf("expected only %v left, got %v", b, w.SampleIDs)
	}

	tech := uuid.New()
	w.AssignTechnician(tech)
	w.AssignTechnician(tech)
	if len(w.TechnicianIDs) != 1 {
		t.Fatalf("expected 1 technician, got %d", len(w.TechnicianIDs))
	}

	if !w.IsEditable() {
		t.Error("draft worksheet should be editable")
	}
	w.Status = WorksheetInProgress
	if w.IsEditable() {
		t.Error("in-progress worksheet should be frozen")
	}
}

func TestWorksheetReview(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	w := NewSampleWorksheet("WS-CHEM-2025-0001", DeptChemistry, "", uuid.New(), now)
	w.Status = WorksheetCompleted

	reviewer := uuid.New()
	at := now.Add(time.Hour)
	if err := w.Review(reviewer, at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Status != WorksheetReviewed {
		t.Errorf("expected REVIEWED, got %s", w.Status)
	}
	if w.ReviewedBy == nil || *w.ReviewedBy != reviewer {
		t.Errorf("expected reviewed_by %v, got %v", reviewer, w.ReviewedBy)
	}
	if w.ReviewedAt == nil || !w.ReviewedAt.Equal(at) {
		t.Errorf("expected reviewed_at %v, got %v", at, w.ReviewedAt)
	}
}
