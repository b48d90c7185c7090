package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// FilesystemArchive implements Archive on a local directory. Suitable for
// single-node deployments.
type FilesystemArchive struct {
	dir    string
	logger zerolog.Logger
}

// NewFilesystemArchive creates a filesystem-backed archive rooted at dir.
func NewFilesystemArchive(dir string, logger zerolog.Logger) (*FilesystemArchive, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &FilesystemArchive{
		dir:    dir,
		logger: logger.With().Str("component", "report_archive").Logger(),
	}, nil
}

func (a *FilesystemArchive) path(batchNumber string) string {
	return filepath.Join(a.dir, filepath.FromSlash(objectKey(batchNumber)))
}

// Store archives a report document for the batch. Writes go through a
// temporary file and rename, so a concurrent reader never observes a
// partial report.
func (a *FilesystemArchive) Store(ctx context.Context, batchNumber string, r io.Reader) error {
	target := a.path(batchNumber)
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".report-*")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	a.logger.Info().Str("batch_number", batchNumber).Str("path", target).Msg("report archived")
	return nil
}

// Open retrieves an archived report.
func (a *FilesystemArchive) Open(ctx context.Context, batchNumber string) (io.ReadCloser, error) {
	f, err := os.Open(a.path(batchNumber))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to open report: %w", err)
	}
	return f, nil
}

// Exists reports whether a report is archived for the batch.
func (a *FilesystemArchive) Exists(ctx context.Context, batchNumber string) (bool, error) {
	_, err := os.Stat(a.path(batchNumber))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat report: %w", err)
	}
	return true, nil
}

var _ Archive = (*FilesystemArchive)(nil)
