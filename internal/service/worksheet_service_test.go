package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
)

type worksheetFixture struct {
	svc        *WorksheetService
	sampleRepo *mockSampleRepo
	userRepo   *mockUserRepo
}

func newWorksheetFixture() *worksheetFixture {
	sampleRepo := newMockSampleRepo()
	userRepo := newMockUserRepo()
	svc := NewWorksheetService(newMockWorksheetRepo(), sampleRepo, userRepo, NewIdentifierGenerator(newMockSequenceRepo()), zerolog.Nop())
	return &worksheetFixture{svc: svc, sampleRepo: sampleRepo, userRepo: userRepo}
}

func (f *worksheetFixture) addSample(t *testing.T, dept domain.Department) *domain.Sample {
	t.Helper()
	batch := domain.NewSampleBatch("B-2026-0099", uuid.New(), nil, dept, 48, uuid.New(), time.Now())
	sample := domain.NewSample(
		fmt.Sprintf("S-2026-%06d", len(f.sampleRepo.samples)+1),
		fmt.Sprintf("DRLB17000000%04d", len(f.sampleRepo.samples)+1),
		batch, dept, uuid.New(), time.Now(),
	)
	if err := f.sampleRepo.Create(context.Background(), sample); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return sample
}

func TestWorksheetServiceCreate(t *testing.T) {
	f := newWorksheetFixture()
	ctx := context.Background()

	ws, err := f.svc.Create(ctx, CreateWorksheetInput{
		Department: domain.DeptMicrobiology,
		Title:      "Morning run",
		CreatedBy:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	year := time.Now().UTC().Year()
	if want := fmt.Sprintf("WS-MICR-%d-0001", year); ws.WorksheetNumber != want {
		t.Errorf("expected worksheet number %s, got %s", want, ws.WorksheetNumber)
	}
	if ws.Status != domain.WorksheetDraft {
		t.Errorf("expected DRAFT, got %s", ws.Status)
	}

	// Sequences are scoped per department.
	chem, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptChemistry, CreatedBy: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := fmt.Sprintf("WS-CHEM-%d-0001", year); chem.WorksheetNumber != want {
		t.Errorf("expected worksheet number %s, got %s", want, chem.WorksheetNumber)
	}

	_, err = f.svc.Create(ctx, CreateWorksheetInput{Department: "PHYSICS"})
	if !errors.Is(err, ErrInvalidDepartment) {
		t.Fatalf("expected ErrInvalidDepartment, got %v", err)
	}
}

func TestWorksheetServiceAddSample(t *testing.T) {
	f := newWorksheetFixture()
	ctx := context.Background()

	ws, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptChemistry, CreatedBy: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chemSample := f.addSample(t, domain.DeptChemistry)
	microSample := f.addSample(t, domain.DeptMicrobiology)

	updated, err := f.svc.AddSample(ctx, ws.ID, chemSample.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.HasSample(chemSample.ID) {
		t.Error("expected sample to be attached")
	}

	// Attaching twice is a no-op.
	updated, err = f.svc.AddSample(ctx, ws.ID, chemSample.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(updated.SampleIDs) != 1 {
		t.Errorf("expected 1 attached sample, got %d", len(updated.SampleIDs))
	}

	// Department mismatch is rejected.
	_, err = f.svc.AddSample(ctx, ws.ID, microSample.ID)
	if !errors.Is(err, ErrDepartmentMismatch) {
		t.Fatalf("expected ErrDepartmentMismatch, got %v", err)
	}
}

func TestWorksheetServiceEditableGate(t *testing.T) {
	f := newWorksheetFixture()
	ctx := context.Background()

	ws, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptChemistry, CreatedBy: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sample := f.addSample(t, domain.DeptChemistry)

	// ACTIVE worksheets are still editable.
	if _, err := f.svc.Transition(ctx, ws.ID, domain.WorksheetActive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.AddSample(ctx, ws.ID, sample.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Once work begins the worksheet freezes.
	if _, err := f.svc.Transition(ctx, ws.ID, domain.WorksheetInProgress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other := f.addSample(t, domain.DeptChemistry)
	if _, err := f.svc.AddSample(ctx, ws.ID, other.ID); !errors.Is(err, ErrWorksheetNotEditable) {
		t.Fatalf("expected ErrWorksheetNotEditable, got %v", err)
	}
	if _, err := f.svc.RemoveSample(ctx, ws.ID, sample.ID); !errors.Is(err, ErrWorksheetNotEditable) {
		t.Fatalf("expected ErrWorksheetNotEditable, got %v", err)
	}
	if _, err := f.svc.AssignTechnician(ctx, ws.ID, uuid.New()); !errors.Is(err, ErrWorksheetNotEditable) {
		t.Fatalf("expected ErrWorksheetNotEditable, got %v", err)
	}
}

func TestWorksheetServiceAssignTechnician(t *testing.T) {
	f := newWorksheetFixture()
	ctx := context.Background()
	tech := addTestUser(t, f.userRepo, "tech@drlab.io")

	ws, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptMetals, CreatedBy: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := f.svc.AssignTechnician(ctx, ws.ID, tech.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !updated.HasTechnician(tech.ID) {
		t.Error("expected technician to be assigned")
	}

	// Unknown users cannot be assigned.
	_, err = f.svc.AssignTechnician(ctx, ws.ID, uuid.New())
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestWorksheetServiceLifecycle(t *testing.T) {
	f := newWorksheetFixture()
	ctx := context.Background()
	reviewer := uuid.New()

	ws, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptChemistry, CreatedBy: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, status := range []domain.WorksheetStatus{
		domain.WorksheetActive, domain.WorksheetInProgress, domain.WorksheetCompleted,
	} {
		if _, err := f.svc.Transition(ctx, ws.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	reviewed, err := f.svc.Review(ctx, ws.ID, reviewer)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reviewed.Status != domain.WorksheetReviewed {
		t.Errorf("expected REVIEWED, got %s", reviewed.Status)
	}
	if reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != reviewer {
		t.Error("expected reviewer to be recorded")
	}
	if reviewed.StartedAt == nil || reviewed.CompletedAt == nil || reviewed.ReviewedAt == nil {
		t.Error("expected lifecycle timestamps to be stamped")
	}

	// REVIEWED is terminal.
	if _, err := f.svc.Transition(ctx, ws.ID, domain.WorksheetInProgress); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestWorksheetServiceListByDepartment(t *testing.T) {
	f := newWorksheetFixture()
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptChemistry, CreatedBy: uuid.New()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.Create(ctx, CreateWorksheetInput{Department: domain.DeptMetals, CreatedBy: uuid.New()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sheets, err := f.svc.ListByDepartment(ctx, domain.DeptChemistry)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sheets) != 1 {
		t.Errorf("expected 1 worksheet, got %d", len(sheets))
	}

	if _, err := f.svc.ListByDepartment(ctx, "PHYSICS"); !errors.Is(err, ErrInvalidDepartment) {
		t.Fatalf("expected ErrInvalidDepartment, got %v", err)
	}
}
