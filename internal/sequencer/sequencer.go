// Package sequencer issues monotonic per-series invoice numbers and
// resolves the previous invoice hash each new document chains from.
package sequencer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// Allocation is the result of one sequence allocation
type Allocation struct {
	SerialNumber string
	Sequence     int64
	PreviousHash string
}

// Sequencer allocates invoice numbers under a single-writer-per-series
// discipline. Serialization is enforced by the store's atomic counter
// update, not an in-process lock, so it holds across service instances.
//
// Allocation policy: burn-on-attempt. A sequence number is consumed the
// moment it is allocated; if downstream invoice creation fails the number
// is gapped, never reissued.
type Sequencer struct {
	txManager port.TransactionManager
	series    port.SeriesRepository
	invoices  port.InvoiceRepository
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a sequencer
func New(txManager port.TransactionManager, series port.SeriesRepository, invoices port.InvoiceRepository, now func() time.Time, logger *zap.Logger) *Sequencer {
	if now == nil {
		now = time.Now
	}
	return &Sequencer{
		txManager: txManager,
		series:    series,
		invoices:  invoices,
		now:       now,
		logger:    logger,
	}
}

// TypePrefix maps the document classification to its serial prefix
func TypePrefix(kind entity.InvoiceKind, profile entity.Profile) string {
	switch {
	case kind == entity.KindCreditNote:
		return "RE"
	case kind == entity.KindDebitNote:
		return "AD"
	case profile == entity.ProfileStandard:
		return "SD"
	default:
		return "SI"
	}
}

// Allocate reserves the next sequence number for the series and resolves
// the hash of the latest issued invoice (the genesis constant for an empty
// series). The read-and-increment happens inside a single transaction so a
// store failure leaves no partial increment behind.
func (s *Sequencer) Allocate(ctx context.Context, seriesKey string, kind entity.InvoiceKind, profile entity.Profile) (*Allocation, error) {
	if seriesKey == "" {
		return nil, fmt.Errorf("%w: series key is required", entity.ErrValidation)
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown invoice kind %q", entity.ErrValidation, kind)
	}
	if !profile.IsValid() {
		return nil, fmt.Errorf("%w: unknown profile %q", entity.ErrValidation, profile)
	}

	var alloc *Allocation
	err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		sequence, err := s.series.NextSequence(ctx, seriesKey)
		if err != nil {
			return fmt.Errorf("increment series %s: %w", seriesKey, err)
		}

		previousHash := entity.GenesisHash
		latest, err := s.invoices.GetLatestBySeries(ctx, seriesKey)
		if err != nil {
			return fmt.Errorf("resolve previous hash for series %s: %w", seriesKey, err)
		}
		if latest != nil {
			previousHash = latest.InvoiceHash
		}

		alloc = &Allocation{
			SerialNumber: s.serial(seriesKey, kind, profile, sequence),
			Sequence:     sequence,
			PreviousHash: previousHash,
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Sequence allocation failed",
			zap.String("series_key", seriesKey),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Sequence allocated",
		zap.String("series_key", seriesKey),
		zap.String("serial", alloc.SerialNumber),
		zap.Int64("sequence", alloc.Sequence))

	return alloc, nil
}

// serial renders {ENTITY}-{PREFIX}-{YY}-{8-digit sequence}, the year taken
// from the authority timezone
func (s *Sequencer) serial(seriesKey string, kind entity.InvoiceKind, profile entity.Profile, sequence int64) string {
	year := s.now().In(entity.AuthorityLocation()).Format("06")
	return fmt.Sprintf("%s-%s-%s-%08d", seriesKey, TypePrefix(kind, profile), year, sequence)
}

// VerifyChain walks a series in issuance order and returns ErrChainBroken
// at the first gap or mismatched link. Chain violations are data-integrity
// failures; they are reported, never repaired.
func (s *Sequencer) VerifyChain(ctx context.Context, seriesKey string) error {
	invoices, err := s.invoices.ListBySeries(ctx, seriesKey)
	if err != nil {
		return fmt.Errorf("list series %s: %w", seriesKey, err)
	}

	expected := entity.GenesisHash
	var lastSequence int64
	for _, inv := range invoices {
		if inv.PreviousHash != expected {
			return fmt.Errorf("%w: invoice %s expected previous hash %s, stored %s",
				entity.ErrChainBroken, inv.SerialNumber, expected, inv.PreviousHash)
		}
		if inv.Sequence <= lastSequence {
			return fmt.Errorf("%w: invoice %s sequence %d not after %d",
				entity.ErrChainBroken, inv.SerialNumber, inv.Sequence, lastSequence)
		}
		lastSequence = inv.Sequence
		expected = inv.InvoiceHash
	}

	return nil
}
