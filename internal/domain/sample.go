package domain

import (
	"time"

	"github.com/google/uuid"
)

// RetentionPeriod is the fixed window after which a sample may be
// discarded. It is not SLA-dependent.
const RetentionPeriod = 14 * 24 * time.Hour

// StorageRequirement describes how a sample must be stored on receipt.
type StorageRequirement string

// Storage requirements.
const (
	StorageFrozen       StorageRequirement = "FROZEN"
	StorageRefrigerated StorageRequirement = "REFRIGERATED"
	StorageRoomTemp     StorageRequirement = "ROOM_TEMP"
	StorageSpecial      StorageRequirement = "SPECIAL"
)

// Valid reports whether s is a known storage requirement.
func (s StorageRequirement) Valid() bool {
	switch s {
	case StorageFrozen, StorageRefrigerated, StorageRoomTemp, StorageSpecial:
		return true
	}
	return false
}

// SampleStatus is the lifecycle state of a sample.
type SampleStatus string

// Sample statuses.
const (
	SampleReceived     SampleStatus = "RECEIVED"
	SampleRegistered   SampleStatus = "REGISTERED"
	SampleQueued       SampleStatus = "QUEUED"
	SampleTesting      SampleStatus = "TESTING"
	SampleVerification SampleStatus = "VERIFICATION"
	SampleCompleted    SampleStatus = "COMPLETED"
	SampleDiscarded    SampleStatus = "DISCARDED"
)

// sampleTransitions is the allowed-edge table for sample statuses.
// DISCARDED is reachable only through Discard, which additionally requires
// the retention period to have elapsed; both terminal states have no exits.
var sampleTransitions = map[SampleStatus][]SampleStatus{
	SampleReceived:     {SampleRegistered},
	SampleRegistered:   {SampleQueued, SampleTesting},
	SampleQueued:       {SampleTesting},
	SampleTesting:      {SampleVerification, SampleCompleted},
	SampleVerification: {SampleTesting, SampleCompleted},
	SampleCompleted:    {},
	SampleDiscarded:    {},
}

// Valid reports whether s is a known sample status.
func (s SampleStatus) Valid() bool {
	_, ok := sampleTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge s -> next is allowed.
func (s SampleStatus) CanTransitionTo(next SampleStatus) bool {
	for _, t := range sampleTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Sample is an individual specimen within a batch.
type Sample struct {
	// ID is the unique identifier for the sample.
	ID uuid.UUID `json:"id"`

	// SampleID is the human-readable identifier, S-{year}-{seq:06d},
	// sequenced per calendar year.
	SampleID string `json:"sample_id"`

	// Barcode is DRLB{unix_timestamp}{4 random digits}. Uniqueness is
	// backstopped by the storage constraint; collisions are retryable.
	Barcode string `json:"barcode"`

	// BatchID is the owning batch; ClientID and ProjectID are inherited
	// from it at creation.
	BatchID   uuid.UUID  `json:"batch_id"`
	ClientID  uuid.UUID  `json:"client_id"`
	ProjectID *uuid.UUID `json:"project_id,omitempty"`

	// Specifications.
	VolumeML    float64 `json:"volume_ml"`
	SampleType  string  `json:"sample_type"`
	Description string  `json:"description,omitempty"`

	// Conditions on receipt.
	TemperatureOnReceipt string             `json:"temperature_on_receipt,omitempty"`
	ConditionNotes       string             `json:"condition_notes,omitempty"`
	Storage              StorageRequirement `json:"storage_requirement"`

	// Department defaults from the batch but may be overridden per sample.
	Department Department `json:"assigned_department"`

	// Status is the sample lifecycle state.
	Status SampleStatus `json:"status"`

	// Lifecycle dates. DiscardDate is ReceivedAt plus the fixed retention
	// period, computed once at creation and never recomputed.
	ReceivedAt         time.Time  `json:"received_at"`
	TestingStartedAt   *time.Time `json:"testing_started_at,omitempty"`
	TestingCompletedAt *time.Time `json:"testing_completed_at,omitempty"`
	DiscardDate        time.Time  `json:"discard_date"`

	// Verification gating.
	RequiresVerification  bool       `json:"requires_verification"`
	VerificationCompleted bool       `json:"verification_completed"`
	VerifiedBy            *uuid.UUID `json:"verified_by,omitempty"`
	VerifiedAt            *time.Time `json:"verified_at,omitempty"`

	// ReceivedBy is the user who registered the sample.
	ReceivedBy uuid.UUID `json:"received_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSample creates a sample in RECEIVED state. Department falls back to
// the batch's department when not set explicitly.
func NewSample(sampleID, barcode string, batch *SampleBatch, dept Department, receivedBy uuid.UUID, now time.Time) *Sample {
	now = now.UTC()
	if dept == "" {
		dept = batch.Department
	}
	return &Sample{
		ID:                   uuid.New(),
		SampleID:             sampleID,
		Barcode:              barcode,
		BatchID:              batch.ID,
		ClientID:             batch.ClientID,
		ProjectID:            batch.ProjectID,
		Storage:              StorageFrozen,
		Department:           dept,
		Status:               SampleReceived,
		ReceivedAt:           now,
		DiscardDate:          now.Add(RetentionPeriod),
		RequiresVerification: true,
		ReceivedBy:           receivedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// Transition applies a status change through the transition table.
// Entering TESTING stamps testing_started_at if absent; COMPLETED stamps
// testing_completed_at. Use Discard for the DISCARDED transition.
func (s *Sample) Transition(next SampleStatus, now time.Time) error {
	if !next.Valid() {
		return NewDomainError(ErrInvalidStatusTransition, "unknown status "+string(next), s.SampleID)
	}
	if next == SampleDiscarded {
		return NewDomainError(ErrInvalidStatusTransition, "discard requires the retention period to elapse", s.SampleID)
	}
	if !s.Status.CanTransitionTo(next) {
		return NewDomainError(ErrInvalidStatusTransition, string(s.Status)+" -> "+string(next), s.SampleID)
	}
	s.Status = next
	t := now.UTC()
	switch next {
	case SampleTesting:
		if s.TestingStartedAt == nil {
			s.TestingStartedAt = &t
		}
	case SampleCompleted:
		if s.TestingCompletedAt == nil {
			s.TestingCompletedAt = &t
		}
	}
	return nil
}

// IsOverdue reports whether the retention period has elapsed.
func (s *Sample) IsOverdue(now time.Time) bool {
	return now.After(s.DiscardDate)
}

// DaysUntilDiscard returns the number of whole days remaining before the
// discard date, never negative.
func (s *Sample) DaysUntilDiscard(now time.Time) int {
	remaining := s.DiscardDate.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining / (24 * time.Hour))
}

// CanBeVerified reports whether the sample is eligible for verification:
// the status must be TESTING or COMPLETED and verification must not have
// completed already.
func (s *Sample) CanBeVerified() bool {
	return (s.Status == SampleTesting || s.Status == SampleCompleted) && !s.VerificationCompleted
}

// Verify records verification by the given user. Eligibility is gated by
// CanBeVerified.
func (s *Sample) Verify(verifiedBy uuid.UUID, now time.Time) error {
	if !s.CanBeVerified() {
		return NewDomainError(ErrNotEligibleForVerification, "status "+string(s.Status), s.SampleID)
	}
	t := now.UTC()
	s.VerificationCompleted = true
	s.VerifiedBy = &verifiedBy
	s.VerifiedAt = &t
	return nil
}

// Discard moves the sample to DISCARDED. Allowed only once the retention
// period has elapsed; DISCARDED is terminal.
func (s *Sample) Discard(now time.Time) error {
	if s.Status == SampleDiscarded {
		return nil
	}
	if !s.IsOverdue(now) {
		return NewDomainError(ErrRetentionNotElapsed, "discard date "+s.DiscardDate.Format(time.RFC3339), s.SampleID)
	}
	s.Status = SampleDiscarded
	return nil
}
