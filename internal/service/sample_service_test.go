package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/cache/memory"
	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/report"
)

type sampleFixture struct {
	svc        *SampleService
	clientSvc  *ClientService
	batchRepo  *mockBatchRepo
	sampleRepo *mockSampleRepo
	archive    report.Archive
}

func newSampleFixture(t *testing.T) *sampleFixture {
	t.Helper()
	batchRepo := newMockBatchRepo()
	sampleRepo := newMockSampleRepo()
	clientRepo := newMockClientRepo()
	projectRepo := newMockProjectRepo()
	idgen := NewIdentifierGenerator(newMockSequenceRepo())

	archive, err := report.NewFilesystemArchive(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	svc := NewSampleService(batchRepo, sampleRepo, clientRepo, projectRepo, idgen, archive, lock.NewMemoryLocker(), zerolog.Nop())

	// A client service over the same repos, for registering test clients.
	cache := memory.NewCache()
	t.Cleanup(cache.Stop)
	clientSvc := NewClientService(clientRepo, projectRepo, batchRepo, sampleRepo, cache, zerolog.Nop())

	return &sampleFixture{
		svc:        svc,
		clientSvc:  clientSvc,
		batchRepo:  batchRepo,
		sampleRepo: sampleRepo,
		archive:    archive,
	}
}

func (f *sampleFixture) createClient(t *testing.T, name string, slaHours int) *domain.Client {
	t.Helper()
	client, err := f.clientSvc.CreateClient(context.Background(), CreateClientInput{
		Name:            name,
		DefaultSLAHours: slaHours,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return client
}

func TestSampleServiceCreateBatch(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "SLA Client", 72)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{
		ClientID:   client.ID,
		Department: domain.DeptChemistry,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	year := time.Now().UTC().Year()
	if want := fmt.Sprintf("B-%d-0001", year); batch.BatchNumber != want {
		t.Errorf("expected batch number %s, got %s", want, batch.BatchNumber)
	}
	if batch.SLAHours != 72 {
		t.Errorf("expected SLA to fall back to client default 72, got %d", batch.SLAHours)
	}
	if want := batch.CreatedAt.Add(72 * time.Hour); !batch.DueDate.Equal(want) {
		t.Errorf("expected due date %v, got %v", want, batch.DueDate)
	}
	if batch.Status != domain.BatchReceived {
		t.Errorf("expected RECEIVED, got %s", batch.Status)
	}

	// An explicit SLA overrides the client default.
	rush, err := f.svc.CreateBatch(ctx, CreateBatchInput{
		ClientID:   client.ID,
		Department: domain.DeptChemistry,
		SLAHours:   24,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rush.SLAHours != 24 {
		t.Errorf("expected SLA 24, got %d", rush.SLAHours)
	}
	if want := fmt.Sprintf("B-%d-0002", year); rush.BatchNumber != want {
		t.Errorf("expected batch number %s, got %s", want, rush.BatchNumber)
	}
}

func TestSampleServiceCreateBatchValidation(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Validation Client", 48)

	_, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: "PHYSICS"})
	if !errors.Is(err, ErrInvalidDepartment) {
		t.Fatalf("expected ErrInvalidDepartment, got %v", err)
	}

	_, err = f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: uuid.New(), Department: domain.DeptMetals})
	if !errors.Is(err, domain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}

	// Deactivated clients cannot receive batches.
	if _, err := f.clientSvc.ToggleActive(ctx, client.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptMetals})
	if !errors.Is(err, domain.ErrClientInactive) {
		t.Fatalf("expected ErrClientInactive, got %v", err)
	}
}

func TestSampleServiceRegisterSample(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Intake Client", 72)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptChemistry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sample, err := f.svc.RegisterSample(ctx, RegisterSampleInput{
		BatchID:    batch.ID,
		VolumeML:   50,
		SampleType: "drinking water",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	year := time.Now().UTC().Year()
	if want := fmt.Sprintf("S-%d-000001", year); sample.SampleID != want {
		t.Errorf("expected sample id %s, got %s", want, sample.SampleID)
	}
	if !strings.HasPrefix(sample.Barcode, "DRLB") || len(sample.Barcode) != 18 {
		t.Errorf("unexpected barcode %q", sample.Barcode)
	}
	if sample.Department != domain.DeptChemistry {
		t.Errorf("expected department inherited from batch, got %s", sample.Department)
	}
	if sample.ClientID != client.ID {
		t.Error("expected client inherited from batch")
	}
	if want := sample.ReceivedAt.Add(domain.RetentionPeriod); !sample.DiscardDate.Equal(want) {
		t.Errorf("expected discard date %v, got %v", want, sample.DiscardDate)
	}
	if !sample.RequiresVerification {
		t.Error("expected verification to be required by default")
	}

	// A per-sample department override sticks.
	override, err := f.svc.RegisterSample(ctx, RegisterSampleInput{
		BatchID:    batch.ID,
		Department: domain.DeptMicrobiology,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if override.Department != domain.DeptMicrobiology {
		t.Errorf("expected override MICROBIOLOGY, got %s", override.Department)
	}
}

func TestSampleServiceStatusFlow(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Flow Client", 48)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptChemistry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sample, err := f.svc.RegisterSample(ctx, RegisterSampleInput{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, status := range []domain.SampleStatus{domain.SampleRegistered, domain.SampleTesting, domain.SampleCompleted} {
		if _, err := f.svc.UpdateSampleStatus(ctx, sample.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	// DISCARDED cannot be reached through a plain status update.
	_, err = f.svc.UpdateSampleStatus(ctx, sample.ID, domain.SampleDiscarded)
	if !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}

	verified, err := f.svc.VerifySample(ctx, sample.ID, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verified.VerificationCompleted || verified.VerifiedAt == nil {
		t.Error("expected verification to be recorded")
	}
}

func TestSampleServiceDiscard(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Discard Client", 48)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptChemistry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sample, err := f.svc.RegisterSample(ctx, RegisterSampleInput{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Discard before the retention period elapses is rejected.
	_, err = f.svc.DiscardSample(ctx, sample.ID)
	if !errors.Is(err, domain.ErrRetentionNotElapsed) {
		t.Fatalf("expected ErrRetentionNotElapsed, got %v", err)
	}

	// Age the sample past its discard date.
	sample.DiscardDate = time.Now().UTC().Add(-time.Hour)
	if err := f.sampleRepo.Update(ctx, sample); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	discarded, err := f.svc.DiscardSample(ctx, sample.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if discarded.Status != domain.SampleDiscarded {
		t.Errorf("expected DISCARDED, got %s", discarded.Status)
	}

	// Discard is idempotent.
	if _, err := f.svc.DiscardSample(ctx, sample.ID); err != nil {
		t.Fatalf("expected idempotent discard, got %v", err)
	}
}

func TestSampleServiceSweepDiscardable(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Sweep Client", 48)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptChemistry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	overdue, err := f.svc.RegisterSample(ctx, RegisterSampleInput{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	overdue.DiscardDate = time.Now().UTC().Add(-time.Hour)
	if err := f.sampleRepo.Update(ctx, overdue); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fresh, err := f.svc.RegisterSample(ctx, RegisterSampleInput{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := f.svc.SweepDiscardable(ctx, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 sample discarded, got %d", n)
	}

	got, _ := f.sampleRepo.GetByID(ctx, overdue.ID)
	if got.Status != domain.SampleDiscarded {
		t.Errorf("expected DISCARDED, got %s", got.Status)
	}
	got, _ = f.sampleRepo.GetByID(ctx, fresh.ID)
	if got.Status == domain.SampleDiscarded {
		t.Error("expected fresh sample to survive the sweep")
	}

	// A second sweep finds nothing.
	n, err = f.svc.SweepDiscardable(ctx, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected nothing to discard, got %d", n)
	}
}

func TestSampleServiceDeliverBatch(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Delivery Client", 48)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptChemistry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Delivery straight from REGISTERED is not allowed.
	_, err = f.svc.DeliverBatch(ctx, batch.ID, nil)
	if !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}

	for _, status := range []domain.BatchStatus{domain.BatchTesting, domain.BatchCompleted} {
		if _, err := f.svc.UpdateBatchStatus(ctx, batch.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	delivered, err := f.svc.DeliverBatch(ctx, batch.ID, strings.NewReader("certificate of analysis"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delivered.Status != domain.BatchDelivered {
		t.Errorf("expected DELIVERED, got %s", delivered.Status)
	}

	rc, err := f.svc.OpenReport(ctx, batch.BatchNumber)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	body, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != "certificate of analysis" {
		t.Errorf("unexpected archived report %q", body)
	}
}

func TestSampleServiceBatchProgress(t *testing.T) {
	f := newSampleFixture(t)
	ctx := context.Background()
	client := f.createClient(t, "Progress Client", 48)

	batch, err := f.svc.CreateBatch(ctx, CreateBatchInput{ClientID: client.ID, Department: domain.DeptChemistry})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first, err := f.svc.RegisterSample(ctx, RegisterSampleInput{BatchID: batch.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.RegisterSample(ctx, RegisterSampleInput{BatchID: batch.ID}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.svc.UpdateSampleStatus(ctx, first.ID, domain.SampleRegistered); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	progress, err := f.svc.BatchProgress(ctx, batch.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if progress[domain.SampleReceived] != 1 || progress[domain.SampleRegistered] != 1 {
		t.Errorf("unexpected progress counts: %v", progress)
	}
}
