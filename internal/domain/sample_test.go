package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestBatch(now time.Time) *SampleBatch {
	return NewSampleBatch("B-2025-0001", uuid.New(), nil, DeptChemistry, 72, uuid.New(), now)
}

func TestSampleTransitions(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		from    SampleStatus
		to      SampleStatus
		wantErr error
	}{
		{name: "received to registered", from: SampleReceived, to: SampleRegistered},
		{name: "registered to queued", from: SampleRegistered, to: SampleQueued},
		{name: "registered to testing", from: SampleRegistered, to: SampleTesting},
		{name: "queued to testing", from: SampleQueued, to: SampleTesting},
		{name: "testing to verification", from: SampleTesting, to: SampleVerification},
		{name: "testing to completed", from: SampleTesting, to: SampleCompleted},
		{name: "verification rework", from: SampleVerification, to: SampleTesting},
		{name: "verification to completed", from: SampleVerification, to: SampleCompleted},
		{name: "skip ahead", from: SampleReceived, to: SampleTesting, wantErr: ErrInvalidStatusTransition},
		{name: "backwards", from: SampleTesting, to: SampleRegistered, wantErr: ErrInvalidStatusTransition},
		{name: "completed is terminal", from: SampleCompleted, to: SampleTesting, wantErr: ErrInvalidStatusTransition},
		{name: "discarded is terminal", from: SampleDiscarded, to: SampleRegistered, wantErr: ErrInvalidStatusTransition},
		{name: "discard not via transition", from: SampleCompleted, to: SampleDiscarded, wantErr: ErrInvalidStatusTransition},
		{name: "unknown status", from: SampleReceived, to: SampleStatus("BOGUS"), wantErr: ErrInvalidStatusTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSample("S-2025-000001", "DRLB17000000001234", newTestBatch(now), "", uuid.New(), now)
			s.Status = tt.from

			err := s.Transition(tt.to, now)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				if s.Status != tt.from {
					t.Errorf("status changed on rejected transition: %s", s.Status)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if s.Status != tt.to {
				t.Errorf("expected status %s, got %s", tt.to, s.Status)
			}
		})
	}
}

func TestSampleTransitionStampsTestingTimes(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewSample("S-2025-000001", "DRLB17000000001234", newTestBatch(now), "", uuid.New(), now)
	s.Status = SampleQueued

	started := now.Add(time.Hour)
	if err := s.Transition(SampleTesting, started); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TestingStartedAt == nil || !s.TestingStartedAt.Equal(started) {
		t.Fatalf("expected testing_started_at %v, got %v", started, s.TestingStartedAt)
	}

	// Rework through verification must not reset the start time.
	if err := s.Transition(SampleVerification, started.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Transition(SampleTesting, started.Add(2*time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.TestingStartedAt.Equal(started) {
		t.Errorf("testing_started_at moved on re-entry: %v", s.TestingStartedAt)
	}

	done := started.Add(3 * time.Hour)
	if err := s.Transition(SampleCompleted, done); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.TestingCompletedAt == nil || !s.TestingCompletedAt.Equal(done) {
		t.Errorf("expected testing_completed_at %v, got %v", done, s.TestingCompletedAt)
	}
}

func TestSampleDiscardClock(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewSample("S-2025-000001", "DRLB17000000001234", newTestBatch(now), "", uuid.New(), now)

	want := now.Add(RetentionPeriod)
	if !s.DiscardDate.Equal(want) {
		t.Fatalf("expected discard date %v, got %v", want, s.DiscardDate)
	}

	tests := []struct {
		name     string
		at       time.Time
		overdue  bool
		daysLeft int
	}{
		{name: "just received", at: now, overdue: false, daysLeft: 14},
		{name: "halfway", at: now.Add(7 * 24 * time.Hour), overdue: false, daysLeft: 7},
		{name: "partial day rounds down", at: now.Add(13*24*time.Hour + time.Hour), overdue: false, daysLeft: 0},
		{name: "at discard date", at: want, overdue: false, daysLeft: 0},
		{name: "past discard date", at: want.Add(time.Minute), overdue: true, daysLeft: 0},
		{name: "long past", at: want.Add(30 * 24 * time.Hour), overdue: true, daysLeft: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.IsOverdue(tt.at); got != tt.overdue {
				t.Errorf("IsOverdue = %v, want %v", got, tt.overdue)
			}
			if got := s.DaysUntilDiscard(tt.at); got != tt.daysLeft {
				t.Errorf("DaysUntilDiscard = %d, want %d", got, tt.daysLeft)
			}
		})
	}
}

func TestSampleDiscard(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewSample("S-2025-000001", "DRLB17000000001234", newTestBatch(now), "", uuid.New(), now)

	if err := s.Discard(now.Add(24 * time.Hour)); !errors.Is(err, ErrRetentionNotElapsed) {
		t.Fatalf("expected ErrRetentionNotElapsed, got %v", err)
	}
	if s.Status != SampleReceived {
		t.Fatalf("status changed on rejected discard: %s", s.Status)
	}

	late := s.DiscardDate.Add(time.Hour)
	if err := s.Discard(late); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Status != SampleDiscarded {
		t.Fatalf("expected DISCARDED, got %s", s.Status)
	}

	// Idempotent on an already discarded sample.
	if err := s.Discard(late.Add(time.Hour)); err != nil {
		t.Errorf("unexpected error on repeat discard: %v", err)
	}
}

func TestSampleVerify(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	verifier := uuid.New()

	tests := []struct {
		name     string
		status   SampleStatus
		verified bool
		wantErr  error
	}{
		{name: "testing is eligible", status: SampleTesting},
		{name: "completed is eligible", status: SampleCompleted},
		{name: "received not eligible", status: SampleReceived, wantErr: ErrNotEligibleForVerification},
		{name: "queued not eligible", status: SampleQueued, wantErr: ErrNotEligibleForVerification},
		{name: "already verified", status: SampleTesting, verified: true, wantErr: ErrNotEligibleForVerification},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSample("S-2025-000001", "DRLB17000000001234", newTestBatch(now), "", uuid.New(), now)
			s.Status = tt.status
			s.VerificationCompleted = tt.verified

			err := s.Verify(verifier, now)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !s.VerificationCompleted {
				t.Error("expected verification_completed")
			}
			if s.VerifiedBy == nil || *s.VerifiedBy != verifier {
				t.Errorf("expected verified_by %v, got %v", verifier, s.VerifiedBy)
			}
			if s.VerifiedAt == nil {
				t.Error("expected verified_at to be set")
			}
		})
	}
}

func TestNewSampleInheritsFromBatch(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	projectID := uuid.New()
	batch := NewSampleBatch("B-2025-0001", uuid.New(), &projectID, DeptMicrobiology, 48, uuid.New(), now)

	s := NewSample("S-2025-000001", "DRLB17000000001234", batch, "", uuid.New(), now)

	if s.ClientID != batch.ClientID {
		t.Errorf("expected client %v, got %v", batch.ClientID, s.ClientID)
	}
	if s.ProjectID == nil || *s.ProjectID != projectID {
		t.Errorf("expected project %v, got %v", projectID, s.ProjectID)
	}
	if s.Department != DeptMicrobiology {
		t.Errorf("expected inherited department MICROBIOLOGY, got %s", s.Department)
	}
	if s.Storage != StorageFrozen {
		t.Errorf("expected default storage FROZEN, got %s", s.Storage)
	}
	if !s.RequiresVerification {
		t.Error("expected requires_verification by default")
	}

	// Explicit department overrides the batch default.
	s2 := NewSample("S-2025-000002", "DRLB17000000005678", batch, DeptMetals, uuid.New(), now)
	if s2.Department != DeptMetals {
		t.Errorf("expected METALS, got %s", s2.Department)
	}
}
