package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/drlab-io/drlab/internal/domain"
	"github.com/drlab-io/drlab/internal/repository"
)

// IdentifierGenerator produces the human-readable identifiers used across
// the laboratory: batch numbers, sample IDs, worksheet numbers and
// barcodes. Sequence-based identifiers draw from atomic per-scope counters;
// the storage unique constraint remains as a backstop, so a collision
// surfaces as a retryable duplicate error rather than a silently wrong ID.
//
// Formats are fixed for compatibility with printed labels and external
// systems:
//
//	batch      B-{year}-{seq:04d}
//	sample     S-{year}-{seq:06d}
//	worksheet  WS-{DEPT4}-{year}-{seq:04d}
//	barcode    DRLB{unixtime}{4 random digits}
type IdentifierGenerator struct {
	seqRepo repository.SequenceRepository
}

// NewIdentifierGenerator creates an identifier generator backed by the
// given sequence repository.
func NewIdentifierGenerator(seqRepo repository.SequenceRepository) *IdentifierGenerator {
	return &IdentifierGenerator{seqRepo: seqRepo}
}

// BatchNumber returns the next batch number for the calendar year of now.
func (g *IdentifierGenerator) BatchNumber(ctx context.Context, now time.Time) (string, error) {
	year := now.UTC().Year()
	seq, err := g.seqRepo.Next(ctx, repository.SequenceBatch, year, "")
	if err != nil {
		return "", fmt.Errorf("failed to allocate batch number: %w", err)
	}
	return fmt.Sprintf("B-%d-%04d", year, seq), nil
}

// SampleID returns the next sample identifier for the calendar year of now.
func (g *IdentifierGenerator) SampleID(ctx context.Context, now time.Time) (string, error) {
	year := now.UTC().Year()
	seq, err := g.seqRepo.Next(ctx, repository.SequenceSample, year, "")
	if err != nil {
		return "", fmt.Errorf("failed to allocate sample id: %w", err)
	}
	return fmt.Sprintf("S-%d-%06d", year, seq), nil
}

// WorksheetNumber returns the next worksheet number, sequenced per
// department per calendar year.
func (g *IdentifierGenerator) WorksheetNumber(ctx context.Context, dept domain.Department, now time.Time) (string, error) {
	year := now.UTC().Year()
	prefix := dept.Prefix()
	seq, err := g.seqRepo.Next(ctx, repository.SequenceWorksheet, year, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to allocate worksheet number: %w", err)
	}
	return fmt.Sprintf("WS-%s-%d-%04d", prefix, year, seq), nil
}

// Barcode returns a sample barcode: the Unix timestamp of now followed by
// 4 random decimal digits. Collisions within the same second are possible
// and rejected by the storage constraint; callers may retry.
func (g *IdentifierGenerator) Barcode(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate barcode suffix: %w", err)
	}
	return "DRLB" + strconv.FormatInt(now.Unix(), 10) + fmt.Sprintf("%04d", n.Int64()), nil
}
