package postgres

import (
	"context"
	"fmt"

	"github.com/drlab-io/drlab/internal/repository"
)

// sequenceRepository implements repository.SequenceRepository for PostgreSQL.
//
// The upsert increments and returns the counter in a single statement;
// row-level locking makes concurrent calls serialize on the counter row,
// so no two callers observe the same value.
type sequenceRepository struct {
	db *DB
}

// NewSequenceRepository creates a new PostgreSQL sequence repository.
func NewSequenceRepository(db *DB) repository.SequenceRepository {
	return &sequenceRepository{db: db}
}

// Next returns the next value for the (kind, year, scope) sequence.
func (r *sequenceRepository) Next(ctx context.Context, kind string, year int, scope string) (int64, error) {
	query := `
		INSERT INTO id_sequences (kind, year, scope, value)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (kind, year, scope) DO UPDATE SET value = id_sequences.value + 1
		RETURNING value
	`

	var value int64
	if err := r.db.Pool.QueryRow(ctx, query, kind, year, scope).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s/%d/%s: %w", kind, year, scope, err)
	}
	return value, nil
}

var _ repository.SequenceRepository = (*sequenceRepository)(nil)
