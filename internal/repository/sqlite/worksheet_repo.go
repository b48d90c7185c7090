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

// worksheetRepository implements repository.WorksheetRepository for SQLite.
type worksheetRepository struct {
	db *DB
}

// NewWorksheetRepository creates a new SQLite worksheet repository.
func NewWorksheetRepository(db *DB) repository.WorksheetRepository {
	return &worksheetRepository{db: db}
}

const worksheetColumns = `id, worksheet_number, department, title, notes, status,
	created_by, created_at, updated_at, started_at, completed_at, reviewed_at, reviewed_by`

// Create creates a new worksheet along with its assignment rows.
func (r *worksheetRepository) Create(ctx context.Context, ws *domain.SampleWorksheet) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO sample_worksheets (` + worksheetColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, query,
			ws.ID.String(),
			ws.WorksheetNumber,
			string(ws.Department),
			ws.Title,
			ws.Notes,
			string(ws.Status),
			ws.CreatedBy.String(),
			formatTime(ws.CreatedAt),
			formatTime(ws.UpdatedAt),
			formatTimePtr(ws.StartedAt),
			formatTimePtr(ws.CompletedAt),
			formatTimePtr(ws.ReviewedAt),
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

func (r *worksheetRepository) writeAssignments(ctx context.Context, tx *sql.Tx, ws *domain.SampleWorksheet) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM worksheet_samples WHERE worksheet_id = ?`, ws.ID.String()); err != nil {
		return fmt.Errorf("failed to clear worksheet samples: %w", err)
	}
	for i, sampleID := range ws.SampleIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO worksheet_samples (worksheet_id, sample_id, position) VALUES (?, ?, ?)`,
			ws.ID.String(), sampleID.String(), i); err != nil {
			return fmt.Errorf("failed to insert worksheet sample: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM worksheet_technicians WHERE worksheet_id = ?`, ws.ID.String()); err != nil {
		return fmt.Errorf("failed to clear worksheet technicians: %w", err)
	}
	for _, userID := range ws.TechnicianIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO worksheet_technicians (worksheet_id, user_id) VALUES (?, ?)`,
			ws.ID.String(), userID.String()); err != nil {
			return fmt.Errorf("failed to insert worksheet technician: %w", err)
		}
	}
	return nil
}

func (r *worksheetRepository) loadAssignments(ctx context.Context, ws *domain.SampleWorksheet) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT sample_id FROM worksheet_samples WHERE worksheet_id = ? ORDER BY position`,
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

	techRows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM worksheet_technicians WHERE worksheet_id = ? ORDER BY user_id`,
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

func scanWorksheet(scan func(dest ...interface{}) error) (*domain.SampleWorksheet, error) {
	ws := &domain.SampleWorksheet{}
	var id, department, status, createdBy string
	var startedAt, completedAt, reviewedAt, reviewedBy sql.NullString
	var createdAt, updatedAt string

	err := scan(
		&id,
		&ws.WorksheetNumber,
		&department,
		&ws.Title,
		&ws.Notes,
		&status,
		&createdBy,
		&createdAt,
		&updatedAt,
		&startedAt,
		&completedAt,
		&reviewedAt,
		&reviewedBy,
	)
	if err != nil {
		return nil, err
	}

	ws.ID = parseUUID(id)
	ws.Department = domain.Department(department)
	ws.Status = domain.WorksheetStatus(status)
	ws.CreatedBy = parseUUID(createdBy)
	ws.CreatedAt = parseTime(createdAt)
	ws.UpdatedAt = parseTime(updatedAt)
	ws.StartedAt = parseTimePtr(startedAt)
	ws.CompletedAt = parseTimePtr(completedAt)
	ws.ReviewedAt = parseTimePtr(reviewedAt)
	ws.ReviewedBy = parseUUIDPtr(reviewedBy)
	return ws, nil
}

// GetByID retrieves a worksheet by ID.
func (r *worksheetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SampleWorksheet, error) {
	query := `SELECT ` + worksheetColumns + ` FROM sample_worksheets WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id.String())
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
	query := `SELECT ` + worksheetColumns + ` FROM sample_worksheets WHERE worksheet_number = ?`

	row := r.db.QueryRowContext(ctx, query, worksheetNumber)
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

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE sample_worksheets
			SET title = ?, notes = ?, status = ?, updated_at = ?,
			    started_at = ?, completed_at = ?, reviewed_at = ?, reviewed_by = ?
			WHERE id = ?
		`
		result, err := tx.ExecContext(ctx, query,
			ws.Title,
			ws.Notes,
			string(ws.Status),
			formatTime(ws.UpdatedAt),
			formatTimePtr(ws.StartedAt),
			formatTimePtr(ws.CompletedAt),
			formatTimePtr(ws.ReviewedAt),
			formatUUIDPtr(ws.ReviewedBy),
			ws.ID.String(),
		)
		if err != nil {
			return fmt.Errorf("failed to update worksheet: %w", err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return domain.ErrWorksheetNotFound
		}

		return r.writeAssignments(ctx, tx, ws)
	})
}

// List returns worksheets with pagination.
func (r *worksheetRepository) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.SampleWorksheet], error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sample_worksheets`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count worksheets: %w", err)
	}

	query := `
		SELECT ` + worksheetColumns + `
		FROM sample_worksheets
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset)
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
		WHERE department = ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, string(dept))
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
