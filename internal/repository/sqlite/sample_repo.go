package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// batchRepository implements repository.BatchRepository for SQLite.
type batchRepository struct {
	db *DB
}

// NewBatchRepository creates a new SQLite batch repository.
func NewBatchRepository(db *DB) repository.BatchRepository {
	return &batchRepository{db: db}
}

const batchColumns = `id, batch_number, client_id, project_id, department, sla_hours,
	due_date, status, created_by, created_at, updated_at, completed_at`

// Create creates a new batch.
func (r *batchRepository) Create(ctx context.Context, batch *domain.SampleBatch) error {
	query := `
		INSERT INTO sample_batches (` + batchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID.String(),
		batch.BatchNumber,
		batch.ClientID.String(),
		formatUUIDPtr(batch.ProjectID),
		string(batch.Department),
		batch.SLAHours,
		formatTime(batch.DueDate),
		string(batch.Status),
		batch.CreatedBy.String(),
		formatTime(batch.CreatedAt),
		formatTime(batch.UpdatedAt),
		formatTimePtr(batch.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: batch number %s", domain.ErrDuplicateIdentifier, batch.BatchNumber)
		}
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

func scanBatch(scan func(dest ...interface{}) error) (*domain.SampleBatch, error) {
	batch := &domain.SampleBatch{}
	var id, clientID, department, status, createdBy string
	var projectID, completedAt sql.NullString
	var dueDate, createdAt, updatedAt string

	err := scan(
		&id,
		&batch.BatchNumber,
		&clientID,
		&projectID,
		&department,
		&batch.SLAHours,
		&dueDate,
		&status,
		&createdBy,
		&createdAt,
		&updatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	batch.ID = parseUUID(id)
	batch.ClientID = parseUUID(clientID)
	batch.ProjectID = parseUUIDPtr(projectID)
	batch.Department = domain.Department(department)
	batch.DueDate = parseTime(dueDate)
	batch.Status = domain.BatchStatus(status)
	batch.CreatedBy = parseUUID(createdBy)
	batch.CreatedAt = parseTime(createdAt)
	batch.UpdatedAt = parseTime(updatedAt)
	batch.CompletedAt = parseTimePtr(completedAt)
	return batch, nil
}

// GetByID retrieves a batch by ID.
func (r *batchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM sample_batches WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id.String())
	batch, err := scanBatch(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// GetByNumber retrieves a batch by its batch number.
func (r *batchRepository) GetByNumber(ctx context.Context, batchNumber string) (*domain.SampleBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM sample_batches WHERE batch_number = ?`

	row := r.db.QueryRowContext(ctx, query, batchNumber)
	batch, err := scanBatch(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("failed to get batch by number: %w", err)
	}
	return batch, nil
}

// Update updates an existing batch. Batch number, due date and creation
// metadata are immutable and not written here.
func (r *batchRepository) Update(ctx context.Context, batch *domain.SampleBatch) error {
	batch.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE sample_batches
		SET status = ?, updated_at = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(batch.Status),
		formatTime(batch.UpdatedAt),
		formatTimePtr(batch.CompletedAt),
		batch.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

// List returns batches with pagination.
func (r *batchRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.SampleBatch], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sample_batches`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count batches: %w", err)
	}

	query := `
		SELECT ` + batchColumns + `
		FROM sample_batches
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.SampleBatch
	for rows.Next() {
		batch, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return &repository.ListResult[domain.SampleBatch]{
		Items:  batches,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ListOverdue returns undelivered batches past their due date.
func (r *batchRepository) ListOverdue(ctx context.Context, now time.Time) ([]*domain.SampleBatch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM sample_batches
		WHERE due_date < ? AND status != 'DELIVERED'
		ORDER BY due_date
	`

	rows, err := r.db.QueryContext(ctx, query, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue batches: %w", err)
	}
	defer rows.Close()

	var batches []*domain.SampleBatch
	for rows.Next() {
		batch, err := scanBatch(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// CountByClient returns the number of batches for a client.
func (r *batchRepository) CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sample_batches WHERE client_id = ?`, clientID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return count, nil
}

// CountByProject returns the number of batches for a project.
func (r *batchRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sample_batches WHERE project_id = ?`, projectID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return count, nil
}

var _ repository.BatchRepository = (*batchRepository)(nil)

// sampleRepository implements repository.SampleRepository for SQLite.
type sampleRepository struct {
	db *DB
}

// NewSampleRepository creates a new SQLite sample repository.
func NewSampleRepository(db *DB) repository.SampleRepository {
	return &sampleRepository{db: db}
}

const sampleColumns = `id, sample_id, barcode, batch_id, client_id, project_id,
	volume_ml, sample_type, description, temperature_on_receipt, condition_notes,
	storage_requirement, assigned_department, status,
	received_at, testing_started_at, testing_completed_at, discard_date,
	requires_verification, verification_completed, verified_by, verified_at,
	received_by, created_at, updated_at`

// Create creates a new sample.
func (r *sampleRepository) Create(ctx context.Context, sample *domain.Sample) error {
	query := `
		INSERT INTO samples (` + sampleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		sample.ID.String(),
		sample.SampleID,
		sample.Barcode,
		sample.BatchID.String(),
		sample.ClientID.String(),
		formatUUIDPtr(sample.ProjectID),
		sample.VolumeML,
		sample.SampleType,
		sample.Description,
		sample.TemperatureOnReceipt,
		sample.ConditionNotes,
		string(sample.Storage),
		string(sample.Department),
		string(sample.Status),
		formatTime(sample.ReceivedAt),
		formatTimePtr(sample.TestingStartedAt),
		formatTimePtr(sample.TestingCompletedAt),
		formatTime(sample.DiscardDate),
		boolToInt(sample.RequiresVerification),
		boolToInt(sample.VerificationCompleted),
		formatUUIDPtr(sample.VerifiedBy),
		formatTimePtr(sample.VerifiedAt),
		sample.ReceivedBy.String(),
		formatTime(sample.CreatedAt),
		formatTime(sample.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sample %s / barcode %s", domain.ErrDuplicateIdentifier, sample.SampleID, sample.Barcode)
		}
		return fmt.Errorf("failed to create sample: %w", err)
	}
	return nil
}

func scanSample(scan func(dest ...interface{}) error) (*domain.Sample, error) {
	sample := &domain.Sample{}
	var id, batchID, clientID, storage, department, status, receivedBy string
	var projectID, testingStartedAt, testingCompletedAt, verifiedBy, verifiedAt sql.NullString
	var receivedAt, discardDate, createdAt, updatedAt string
	var requiresVerification, verificationCompleted int

	err := scan(
		&id,
		&sample.SampleID,
		&sample.Barcode,
		&batchID,
		&clientID,
		&projectID,
		&sample.VolumeML,
		&sample.SampleType,
		&sample.Description,
		&sample.TemperatureOnReceipt,
		&sample.ConditionNotes,
		&storage,
		&department,
		&status,
		&receivedAt,
		&testingStartedAt,
		&testingCompletedAt,
		&discardDate,
		&requiresVerification,
		&verificationCompleted,
		&verifiedBy,
		&verifiedAt,
		&receivedBy,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sample.ID = parseUUID(id)
	sample.BatchID = parseUUID(batchID)
	sample.ClientID = parseUUID(clientID)
	sample.ProjectID = parseUUIDPtr(projectID)
	sample.Storage = domain.StorageRequirement(storage)
	sample.Department = domain.Department(department)
	sample.Status = domain.SampleStatus(status)
	sample.ReceivedAt = parseTime(receivedAt)
	sample.TestingStartedAt = parseTimePtr(testingStartedAt)
	sample.TestingCompletedAt = parseTimePtr(testingCompletedAt)
	sample.DiscardDate = parseTime(discardDate)
	sample.RequiresVerification = requiresVerification != 0
	sample.VerificationCompleted = verificationCompleted != 0
	sample.VerifiedBy = parseUUIDPtr(verifiedBy)
	sample.VerifiedAt = parseTimePtr(verifiedAt)
	sample.ReceivedBy = parseUUID(receivedBy)
	sample.CreatedAt = parseTime(createdAt)
	sample.UpdatedAt = parseTime(updatedAt)
	return sample, nil
}

func (r *sampleRepository) getBy(ctx context.Context, where, arg string) (*domain.Sample, error) {
	query := `SELECT ` + sampleColumns + ` FROM samples WHERE ` + where + ` = ?`

	row := r.db.QueryRowContext(ctx, query, arg)
	sample, err := scanSample(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrSampleNotFound
		}
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	return sample, nil
}

// GetByID retrieves a sample by ID.
func (r *sampleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Sample, error) {
	return r.getBy(ctx, "id", id.String())
}

// GetBySampleID retrieves a sample by its human-readable identifier.
func (r *sampleRepository) GetBySampleID(ctx context.Context, sampleID string) (*domain.Sample, error) {
	return r.getBy(ctx, "sample_id", sampleID)
}

// GetByBarcode retrieves a sample by barcode.
func (r *sampleRepository) GetByBarcode(ctx context.Context, barcode string) (*domain.Sample, error) {
	return r.getBy(ctx, "barcode", barcode)
}

// Update updates an existing sample. Identifiers, received_at and
// discard_date are immutable and not written here.
func (r *sampleRepository) Update(ctx context.Context, sample *domain.Sample) error {
	sample.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE samples
		SET volume_ml = ?, sample_type = ?, description = ?,
		    temperature_on_receipt = ?, condition_notes = ?,
		    storage_requirement = ?, assigned_department = ?, status = ?,
		    testing_started_at = ?, testing_completed_at = ?,
		    requires_verification = ?, verification_completed = ?,
		    verified_by = ?, verified_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		sample.VolumeML,
		sample.SampleType,
		sample.Description,
		sample.TemperatureOnReceipt,
		sample.ConditionNotes,
		string(sample.Storage),
		string(sample.Department),
		string(sample.Status),
		formatTimePtr(sample.TestingStartedAt),
		formatTimePtr(sample.TestingCompletedAt),
		boolToInt(sample.RequiresVerification),
		boolToInt(sample.VerificationCompleted),
		formatUUIDPtr(sample.VerifiedBy),
		formatTimePtr(sample.VerifiedAt),
		formatTime(sample.UpdatedAt),
		sample.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sample: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrSampleNotFound
	}
	return nil
}

// List returns samples with pagination.
func (r *sampleRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.Sample], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM samples`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count samples: %w", err)
	}

	query := `
		SELECT ` + sampleColumns + `
		FROM samples
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}

	return &repository.ListResult[domain.Sample]{
		Items:  samples,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ListByBatch returns all samples in a batch.
func (r *sampleRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM samples
		WHERE batch_id = ?
		ORDER BY sample_id
	`

	rows, err := r.db.QueryContext(ctx, query, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list samples by batch: %w", err)
	}
	defer rows.Close()

	var samples []*domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// ListDiscardable returns undiscarded samples past their discard date.
func (r *sampleRepository) ListDiscardable(ctx context.Context, now time.Time) ([]*domain.Sample, error) {
	query := `
		SELECT ` + sampleColumns + `
		FROM samples
		WHERE discard_date < ? AND status != 'DISCARDED'
		ORDER BY discard_date
	`

	rows, err := r.db.QueryContext(ctx, query, formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list discardable samples: %w", err)
	}
	defer rows.Close()

	var samples []*domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// CountByClient returns the number of samples for a client.
func (r *sampleRepository) CountByClient(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples WHERE client_id = ?`, clientID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// CountByProject returns the number of samples for a project.
func (r *sampleRepository) CountByProject(ctx context.Context, projectID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM samples WHERE project_id = ?`, projectID.String()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// CountByBatchAndStatus returns per-status counts for a batch.
func (r *sampleRepository) CountByBatchAndStatus(ctx context.Context, batchID uuid.UUID) (map[domain.SampleStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM samples WHERE batch_id = ? GROUP BY status`, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to count samples by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.SampleStatus]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[domain.SampleStatus(status)] = count
	}
	return counts, rows.Err()
}

var _ repository.SampleRepository = (*sampleRepository)(nil)
