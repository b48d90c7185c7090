package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// worksheetRepository implements repository.WorksheetRepository for PostgreSQL.
type worksheetRepository struct {
	db *DB
}

// NewWorksheetRepository creates a new PostgreSQL worksheet repository.
func NewWorksheetRepository(db *DB) repository.WorksheetRepository {
	return &worksheetRepository{db: db}
}

const worksheetColumns = `id, worksheet_number, department, title, notes, status,
	created_by, created_at, updated_at, started_at, completed_at, reviewed_at, reviewed_by`

// Create creates a new worksheet along with its assignment rows.
func (r *worksheetRepository) Create(ctx context.Context, ws *domain.SampleWorksheet) error {
	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `
			INSERT INTO sample_worksheets (` + worksheetColumns + `)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		_, err := tx.Exec(ctx, query,
			ws.ID.String(),
			ws.WorksheetNumber,
			string(ws.Department),
			ws.Title,
			ws.Notes,
			string(ws.Status),
			ws.CreatedBy.String(),
			ws.CreatedAt,
			ws.UpdatedAt,
			ws.StartedAt,
			ws.CompletedAt,
			ws.ReviewedAt,
			formatUUIDPtr(ws.ReviewedBy),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: worksheet number %s", domain.ErrDuplicateIdentifier, ws.WorksheetNumber)
			}
			return fmt.Errorf("failed to create worksheet: %w", err)
		}

		return r.writeAssignments(ctx, tx, ws)
	})
}

func (r *worksheetRepository) writeAssignments(ctx context.Context, tx pgx.Tx, ws *domain.SampleWorksheet) error {
	if _, err := tx.Exec(ctx,
		`DELETE FROM worksheet_samples WHERE worksheet_id = $1`, ws.ID.String()); err != nil {
		return fmt.Errorf("failed to clear worksheet samples: %w", err)
	}
	for i, sampleID := range ws.SampleIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO worksheet_samples (worksheet_id, sample_id, position) VALUES ($1, $2, $3)`,
			ws.ID.String(), sampleID.String(), i); err != nil {
			return fmt.Errorf("failed to insert worksheet sample: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM worksheet_technicians WHERE worksheet_id = $1`, ws.ID.String()); err != nil {
		return fmt.Errorf("failed to clear worksheet technicians: %w", err)
	}
	for _, userID := range ws.TechnicianIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO worksheet_technicians (worksheet_id, user_id) VALUES ($1, $2)`,
			ws.ID.String(), userID.String()); err != nil {
			return fmt.Errorf("failed to insert worksheet technician: %w", err)
		}
	}
	return nil
}

func (r *worksheetRepository) loadAssignments(ctx context.Context, ws *domain.SampleWorksheet) error {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT sample_id FROM worksheet_samples WHERE worksheet_id = $1 ORDER BY position`,
		ws.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load worksheet samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan worksheet sample: %w", err)
		}
		ws.SampleIDs = append(ws.SampleIDs, parseUUID(id))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	techRows, err := r.db.Pool.Query(ctx,
		`SELECT user_id FROM worksheet_technicians WHERE worksheet_id = $1 ORDER BY user_id`,
		ws.ID.String())
	if err != nil {
		return fmt.Errorf("failed to load worksheet technicians: %w", err)
	}
	defer techRows.Close()

	for techRows.Next() {
		var id string
		if err := techRows.Scan(&id); err != nil {
			return fmt.Errorf("failed to scan worksheet technician: %w", err)
		}
		ws.TechnicianIDs = append(ws.TechnicianIDs, parseUUID(id))
	}
	return techRows.Err()
}

func scanWorksheet(scan func(dest ...any) error) (*domain.SampleWorksheet, error) {
	ws := &domain.SampleWorksheet{}
	var id, department, status, createdBy string
	var reviewedBy *string

	err := scan(
		&id,
		&ws.WorksheetNumber,
		&department,
		&ws.Title,
		&ws.Notes,
		&status,
		&createdBy,
		&ws.CreatedAt,
		&ws.UpdatedAt,
		&ws.StartedAt,
		&ws.CompletedAt,
		&ws.ReviewedAt,
		&reviewedBy,
	)
	if err != nil {
		return nil, err
	}

	ws.ID = parseUUID(id)
	ws.Department = domain.Department(department)
	ws.Status = domain.WorksheetStatus(status)
	ws.CreatedBy = parseUUID(createdBy)
	ws.ReviewedBy = parseUUIDPtr(reviewedBy)
	return ws, nil
}

// GetByID retrieves a worksheet by ID.
func (r *worksheetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleWorksheet, error) {
	query := `SELECT ` + worksheetColumns + ` FROM sample_worksheets WHERE id = $1`

	row := r.db.Pool.QueryRow(ctx, query, id.String())
	ws, err := scanWorksheet(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrWorksheetNotFound
		}
		return nil, fmt.Errorf("failed to get worksheet: %w", err)
	}

	if err := r.loadAssignments(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// GetByNumber retrieves a worksheet by its worksheet number.
func (r *worksheetRepository) GetByNumber(ctx context.Context, worksheetNumber string) (*domain.SampleWorksheet, error) {
	query := `SELECT ` + worksheetColumns + ` FROM sample_worksheets WHERE worksheet_number = $1`

	row := r.db.Pool.QueryRow(ctx, query, worksheetNumber)
	ws, err := scanWorksheet(row.Scan)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrWorksheetNotFound
		}
		return nil, fmt.Errorf("failed to get worksheet by number: %w", err)
	}

	if err := r.loadAssignments(ctx, ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// Update updates an existing worksheet and replaces its assignment rows.
func (r *worksheetRepository) Update(ctx context.Context, ws *domain.SampleWorksheet) error {
	ws.UpdatedAt = time.Now().UTC()

	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		query := `
			UPDATE sample_worksheets
			SET title = $1, notes = $2, status = $3, updated_at = $4,
			    started_at = $5, completed_at = $6, reviewed_at = $7, reviewed_by = $8
			WHERE id = $9
		`
		tag, err := tx.Exec(ctx, query,
			ws.Title,
			ws.Notes,
			string(ws.Status),
			ws.UpdatedAt,
			ws.StartedAt,
			ws.CompletedAt,
			ws.ReviewedAt,
			formatUUIDPtr(ws.ReviewedBy),
			ws.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update worksheet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrWorksheetNotFound
		}

		return r.writeAssignments(ctx, tx, ws)
	})
}

// List returns worksheets with pagination.
func (r *worksheetRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.SampleWorksheet], error) {
	var total int64
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM sample_worksheets`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count worksheets: %w", err)
	}

	query := `
		SELECT ` + worksheetColumns + `
		FROM sample_worksheets
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets: %w", err)
	}
	defer rows.Close()

	var sheets []*domain.SampleWorksheet
	for rows.Next() {
		ws, err := scanWorksheet(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worksheet: %w", err)
		}
		sheets = append(sheets, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worksheets: %w", err)
	}

	for _, ws := range sheets {
		if err := r.loadAssignments(ctx, ws); err != nil {
			return nil, err
		}
	}

	return &repository.ListResult[domain.SampleWorksheet]{
		Items:  sheets,
		Total:  total,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}, nil
}

// ListByDepartment returns a department's worksheets.
func (r *worksheetRepository) ListByDepartment(ctx context.Context, dept domain.Department) ([]*domain.SampleWorksheet, error) {
	query := `
		SELECT ` + worksheetColumns + `
		FROM sample_worksheets
		WHERE department = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, string(dept))
	if err != nil {
		return nil, fmt.Errorf("failed to list worksheets by department: %w", err)
	}
	defer rows.Close()

	var sheets []*domain.SampleWorksheet
	for rows.Next() {
		ws, err := scanWorksheet(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan worksheet: %w", err)
		}
		sheets = append(sheets, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, ws := range sheets {
		if err := r.loadAssignments(ctx, ws); err != nil {
			return nil, err
		}
	}
	return sheets, nil
}

var _ repository.WorksheetRepository = (*worksheetRepository)(nil)
