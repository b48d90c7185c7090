package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/metrics"
	"github.com/drlab-io/drlab/internal/report"
	"github.com/drlab-io/drlab/internal/repository"
)

// identifierRetries is how many times identifier allocation is retried
// when the storage unique constraint rejects a collision. With atomic
// sequences only barcodes can realistically collide.
const identifierRetries = 3

// SampleService handles sample batches, individual samples and the
// retention discard sweep.
type SampleService struct {
	batchRepo   repository.BatchRepository
	sampleRepo  repository.SampleRepository
	clientRepo  repository.ClientRepository
	projectRepo repository.ProjectRepository
	idgen       *IdentifierGenerator
	archive     report.Archive
	locker      lock.Locker
	logger      zerolog.Logger

	lockKeys repository.LockKey
}

// NewSampleService creates a new SampleService.
func NewSampleService(
	batchRepo repository.BatchRepository,
	sampleRepo repository.SampleRepository,
	clientRepo repository.ClientRepository,
	projectRepo repository.ProjectRepository,
	idgen *IdentifierGenerator,
	archive report.Archive,
	locker lock.Locker,
	logger zerolog.Logger,
) *SampleService {
	return &SampleService{
		batchRepo:   batchRepo,
		sampleRepo:  sampleRepo,
		clientRepo:  clientRepo,
		projectRepo: projectRepo,
		idgen:       idgen,
		archive:     archive,
		locker:      locker,
		logger:      logger.With().Str("service", "sample").Logger(),
	}
}

// CreateBatchInput contains the data needed to register a batch.
type CreateBatchInput struct {
	ClientID   uuid.UUID
	ProjectID  *uuid.UUID
	Department domain.Department
	// SLAHours falls back to the client's default when zero.
	SLAHours  int
	CreatedBy uuid.UUID
}

// CreateBatch registers a sample batch. The batch number and due date are
// fixed here and never recomputed.
func (s *SampleService) CreateBatch(ctx context.Context, input CreateBatchInput) (*domain.SampleBatch, error) {
	if !input.Department.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDepartment, input.Department)
	}
	if input.SLAHours < 0 {
		return nil, ErrInvalidSLA
	}

	client, err := s.clientRepo.GetByID(ctx, input.ClientID)
	if err != nil {
		return nil, err
	}
	if !client.IsActive {
		return nil, domain.NewDomainError(domain.ErrClientInactive, "cannot accept batches", client.Name)
	}

	if input.ProjectID != nil {
		project, err := s.projectRepo.GetByID(ctx, *input.ProjectID)
		if err != nil {
			return nil, err
		}
		if project.ClientID != client.ID {
			return nil, domain.NewDomainError(domain.ErrProjectNotFound,
				"project belongs to a different client", project.Name)
		}
	}

	slaHours := input.SLAHours
	if slaHours == 0 {
		slaHours = client.DefaultSLAHours
	}

	var batch *domain.SampleBatch
	for attempt := 0; attempt < identifierRetries; attempt++ {
		now := time.Now().UTC()
		batchNumber, err := s.idgen.BatchNumber(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		batch = domain.NewSampleBatch(batchNumber, client.ID, input.ProjectID, input.Department, slaHours, input.CreatedBy, now)
		err = s.batchRepo.Create(ctx, batch)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateIdentifier) && attempt < identifierRetries-1 {
			continue
		}
		return nil, err
	}

	s.logger.Info().
		Str("batch_id", batch.ID.String()).
		Str("batch_number", batch.BatchNumber).
		Str("department", string(batch.Department)).
		Int("sla_hours", batch.SLAHours).
		Time("due_date", batch.DueDate).
		Msg("batch created")
	metrics.BatchesCreatedTotal.Inc()

	return batch, nil
}

// GetBatch retrieves a batch by ID.
func (s *SampleService) GetBatch(ctx context.Context, id uuid.UUID) (*domain.SampleBatch, error) {
	return s.batchRepo.GetByID(ctx, id)
}

// GetBatchByNumber retrieves a batch by its batch number.
func (s *SampleService) GetBatchByNumber(ctx context.Context, batchNumber string) (*domain.SampleBatch, error) {
	return s.batchRepo.GetByNumber(ctx, batchNumber)
}

// UpdateBatchStatus moves a batch through its lifecycle.
func (s *SampleService) UpdateBatchStatus(ctx context.Context, batchID uuid.UUID, status domain.BatchStatus) (*domain.SampleBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if err := batch.Transition(status, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.batchRepo.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("batch_number", batch.BatchNumber).
		Str("status", string(status)).
		Msg("batch status updated")

	return batch, nil
}

// DeliverBatch marks a completed batch DELIVERED, archiving the
// certificate-of-analysis document when one is supplied.
func (s *SampleService) DeliverBatch(ctx context.Context, batchID uuid.UUID, reportDoc io.Reader) (*domain.SampleBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if err := batch.Transition(domain.BatchDelivered, time.Now().UTC()); err != nil {
		return nil, err
	}

	if reportDoc != nil {
		if err := s.archive.Store(ctx, batch.BatchNumber, reportDoc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	if err := s.batchRepo.Update(ctx, batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("batch_number", batch.BatchNumber).
		Bool("report_archived", reportDoc != nil).
		Msg("batch delivered")

	return batch, nil
}

// OpenReport retrieves the archived report for a batch.
func (s *SampleService) OpenReport(ctx context.Context, batchNumber string) (io.ReadCloser, error) {
	if _, err := s.batchRepo.GetByNumber(ctx, batchNumber); err != nil {
		return nil, err
	}
	return s.archive.Open(ctx, batchNumber)
}

// BatchProgress returns per-status sample counts for a batch.
func (s *SampleService) BatchProgress(ctx context.Context, batchID uuid.UUID) (map[domain.SampleStatus]int64, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.sampleRepo.CountByBatchAndStatus(ctx, batchID)
}

// ListBatchesInput contains pagination options for listing batches.
type ListBatchesInput struct {
	Limit  int
	Offset int
}

// ListBatchesOutput contains the result of listing batches.
type ListBatchesOutput struct {
	Batches    []*domain.SampleBatch
	TotalCount int64
}

// ListBatches returns batches with pagination.
func (s *SampleService) ListBatches(ctx context.Context, input ListBatchesInput) (*ListBatchesOutput, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}

	result, err := s.batchRepo.List(ctx, repository.ListOptions{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list batches")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	return &ListBatchesOutput{
		Batches:    result.Items,
		TotalCount: result.Total,
	}, nil
}

// ListOverdueBatches returns undelivered batches past their due date.
func (s *SampleService) ListOverdueBatches(ctx context.Context) ([]*domain.SampleBatch, error) {
	return s.batchRepo.ListOverdue(ctx, time.Now().UTC())
}

// RegisterSampleInput contains the intake data for a sample.
type RegisterSampleInput struct {
	BatchID uuid.UUID
	// Department overrides the batch department when set.
	Department           domain.Department
	VolumeML             float64
	SampleType           string
	Description          string
	TemperatureOnReceipt string
	ConditionNotes       string
	Storage              domain.StorageRequirement
	RequiresVerification *bool
	ReceivedBy           uuid.UUID
}

// RegisterSample registers a sample into a batch. The sample ID, barcode
// and discard date are fixed here; barcode collisions within the same
// second are retried against the storage constraint.
func (s *SampleService) RegisterSample(ctx context.Context, input RegisterSampleInput) (*domain.Sample, error) {
	if input.Department != "" && !input.Department.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDepartment, input.Department)
	}
	if input.Storage != "" && !input.Storage.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStorage, input.Storage)
	}

	batch, err := s.batchRepo.GetByID(ctx, input.BatchID)
	if err != nil {
		return nil, err
	}

	var sample *domain.Sample
	for attempt := 0; attempt < identifierRetries; attempt++ {
		now := time.Now().UTC()
		sampleID, err := s.idgen.SampleID(ctx, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
		barcode, err := s.idgen.Barcode(now)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}

		sample = domain.NewSample(sampleID, barcode, batch, input.Department, input.ReceivedBy, now)
		sample.VolumeML = input.VolumeML
		sample.SampleType = input.SampleType
		sample.Description = input.Description
		sample.TemperatureOnReceipt = input.TemperatureOnReceipt
		sample.ConditionNotes = input.ConditionNotes
		if input.Storage != "" {
			sample.Storage = input.Storage
		}
		if input.RequiresVerification != nil {
			sample.RequiresVerification = *input.RequiresVerification
		}

		err = s.sampleRepo.Create(ctx, sample)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateIdentifier) && attempt < identifierRetries-1 {
			continue
		}
		return nil, err
	}

	s.logger.Info().
		Str("sample_id", sample.SampleID).
		Str("barcode", sample.Barcode).
		Str("batch_number", batch.BatchNumber).
		Str("department", string(sample.Department)).
		Time("discard_date", sample.DiscardDate).
		Msg("sample registered")
	metrics.SamplesRegisteredTotal.WithLabelValues(string(sample.Department)).Inc()

	return sample, nil
}

// GetSample retrieves a sample by ID.
func (s *SampleService) GetSample(ctx context.Context, id uuid.UUID) (*domain.Sample, error) {
	return s.sampleRepo.GetByID(ctx, id)
}

// GetSampleByIdentifier retrieves a sample by its human-readable ID.
func (s *SampleService) GetSampleByIdentifier(ctx context.Context, sampleID string) (*domain.Sample, error) {
	return s.sampleRepo.GetBySampleID(ctx, sampleID)
}

// GetSampleByBarcode retrieves a sample by barcode.
func (s *SampleService) GetSampleByBarcode(ctx context.Context, barcode string) (*domain.Sample, error) {
	return s.sampleRepo.GetByBarcode(ctx, barcode)
}

// ListSamplesByBatch returns all samples in a batch.
func (s *SampleService) ListSamplesByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Sample, error) {
	if _, err := s.batchRepo.GetByID(ctx, batchID); err != nil {
		return nil, err
	}
	return s.sampleRepo.ListByBatch(ctx, batchID)
}

// UpdateSampleStatus moves a sample through its lifecycle. DISCARDED is
// rejected here; use DiscardSample.
func (s *SampleService) UpdateSampleStatus(ctx context.Context, sampleID uuid.UUID, status domain.SampleStatus) (*domain.Sample, error) {
	sample, err := s.sampleRepo.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}

	if err := sample.Transition(status, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.sampleRepo.Update(ctx, sample); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("sample_id", sample.SampleID).
		Str("status", string(status)).
		Msg("sample status updated")

	return sample, nil
}

// VerifySample records verification of a sample's results.
func (s *SampleService) VerifySample(ctx context.Context, sampleID, verifiedBy uuid.UUID) (*domain.Sample, error) {
	sample, err := s.sampleRepo.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}

	if err := sample.Verify(verifiedBy, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.sampleRepo.Update(ctx, sample); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Str("sample_id", sample.SampleID).
		Str("verified_by", verifiedBy.String()).
		Msg("sample verified")

	return sample, nil
}

// DiscardSample discards a sample whose retention period has elapsed.
func (s *SampleService) DiscardSample(ctx context.Context, sampleID uuid.UUID) (*domain.Sample, error) {
	sample, err := s.sampleRepo.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}

	if err := sample.Discard(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.sampleRepo.Update(ctx, sample); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Str("sample_id", sample.SampleID).Msg("sample discarded")
	metrics.SamplesDiscardedTotal.Inc()

	return sample, nil
}

// SweepDiscardable discards all samples past their discard date. Runs
// under a distributed lock so only one instance sweeps at a time.
// Returns the number of samples discarded.
func (s *SampleService) SweepDiscardable(ctx context.Context, lockTTL time.Duration) (int64, error) {
	lockKey := s.lockKeys.DiscardSweep()
	acquired, err := s.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if !acquired {
		s.logger.Debug().Msg("discard sweep already running elsewhere")
		return 0, nil
	}
	defer func() {
		if _, err := s.locker.Release(ctx, lockKey); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release discard sweep lock")
		}
	}()

	start := time.Now()
	now := start.UTC()

	overdue, err := s.sampleRepo.ListDiscardable(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	var discarded int64
	for _, sample := range overdue {
		if err := sample.Discard(now); err != nil {
			s.logger.Warn().Err(err).Str("sample_id", sample.SampleID).Msg("sweep skipped sample")
			continue
		}
		if err := s.sampleRepo.Update(ctx, sample); err != nil {
			s.logger.Error().Err(err).Str("sample_id", sample.SampleID).Msg("sweep failed to update sample")
			continue
		}
		discarded++
		metrics.SamplesDiscardedTotal.Inc()
	}
	metrics.SweepDuration.WithLabelValues("discard").Observe(time.Since(start).Seconds())

	if discarded > 0 {
		s.logger.Info().Int64("discarded", discarded).Msg("discard sweep completed")
	}
	return discarded, nil
}

// DaysUntilDiscard returns the whole days remaining before a sample's
// discard date.
func (s *SampleService) DaysUntilDiscard(ctx context.Context, sampleID uuid.UUID) (int, error) {
	sample, err := s.sampleRepo.GetByID(ctx, sampleID)
	if err != nil {
		return 0, err
	}
	return sample.DaysUntilDiscard(time.Now().UTC()), nil
}
