// Package report archives certificate-of-analysis documents produced when
// a batch is delivered.
package report

import (
	"context"
	"errors"
	"io"
)

// Archive errors.
var (
	// ErrReportNotFound indicates no archived report exists for the key.
	ErrReportNotFound = errors.New("report not found")
)

// Archive stores delivered-batch reports keyed by batch number.
type Archive interface {
	// Store archives a report document for the batch.
	Store(ctx context.Context, batchNumber string, r io.Reader) error

	// Open retrieves an archived report.
	// Returns ErrReportNotFound if none exists.
	Open(ctx context.Context, batchNumber string) (io.ReadCloser, error)

	// Exists reports whether a report is archived for the batch.
	Exists(ctx context.Context, batchNumber string) (bool, error)
}

// objectKey maps a batch number to the archive object name.
func objectKey(batchNumber string) string {
	return "reports/" + batchNumber + ".pdf"
}
