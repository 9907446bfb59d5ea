package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/persistence/sqlite"
)

// SeriesRepository implements port.SeriesRepository
type SeriesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSeriesRepository creates a new series repository
func NewSeriesRepository(db *sql.DB, logger *zap.Logger) port.SeriesRepository {
	return &SeriesRepository{
		db:     db,
		logger: logger,
	}
}

// NextSequence increments and returns the series counter. The UPSERT makes
// the read-modify-write a single statement, so two concurrent callers for
// the same key serialize at the store and never observe the same number.
func (r *SeriesRepository) NextSequence(ctx context.Context, seriesKey string) (int64, error) {
	query := `
		INSERT INTO invoice_series (series_key, last_sequence, updated_at)
		VALUES (?, 1, CURRENT_TIMESTAMP)
		ON CONFLICT(series_key) DO UPDATE SET
			last_sequence = last_sequence + 1,
			updated_at = CURRENT_TIMESTAMP
		RETURNING last_sequence
	`

	var sequence int64
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, seriesKey).Scan(&sequence)
	if err != nil {
		r.logger.Error("Failed to increment series counter",
			zap.String("series_key", seriesKey), zap.Error(err))
		return 0, fmt.Errorf("failed to increment series counter: %w", err)
	}

	return sequence, nil
}

// Get retrieves a series by key
func (r *SeriesRepository) Get(ctx context.Context, seriesKey string) (*entity.InvoiceSeries, error) {
	query := `
		SELECT series_key, last_sequence, updated_at
		FROM invoice_series
		WHERE series_key = ?
	`

	var series entity.InvoiceSeries
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, seriesKey).Scan(
		&series.SeriesKey,
		&series.LastSequence,
		&series.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get series", zap.String("series_key", seriesKey), zap.Error(err))
		return nil, fmt.Errorf("failed to get series: %w", err)
	}

	return &series, nil
}

// getExecutor returns appropriate executor based on context
func (r *SeriesRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.SeriesRepository = (*SeriesRepository)(nil)
