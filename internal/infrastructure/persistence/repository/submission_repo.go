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

// SubmissionRepository implements port.SubmissionRepository
type SubmissionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *sql.DB, logger *zap.Logger) port.SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert records one reconciliation attempt. The attempt counter increments
// on every call, including failed ones; the audit trail keeps the latest
// raw response.
func (r *SubmissionRepository) Upsert(ctx context.Context, sub *entity.Submission) error {
	query := `
		INSERT INTO submissions (
			invoice_uuid, kind, status, reporting_status, clearance_status,
			raw_response, attempt_count, last_attempt_at
		) VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(invoice_uuid) DO UPDATE SET
			kind = excluded.kind,
			status = excluded.status,
			reporting_status = excluded.reporting_status,
			clearance_status = excluded.clearance_status,
			raw_response = excluded.raw_response,
			attempt_count = attempt_count + 1,
			last_attempt_at = excluded.last_attempt_at
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		sub.InvoiceUUID,
		string(sub.Kind),
		string(sub.Status),
		sub.ReportingStatus,
		sub.ClearanceStatus,
		sub.RawResponse,
		sub.LastAttemptAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert submission",
			zap.String("invoice_uuid", sub.InvoiceUUID), zap.Error(err))
		return fmt.Errorf("failed to upsert submission: %w", err)
	}

	return nil
}

// GetByInvoiceUUID retrieves the submission record for an invoice
func (r *SubmissionRepository) GetByInvoiceUUID(ctx context.Context, invoiceUUID string) (*entity.Submission, error) {
	query := `
		SELECT invoice_uuid, kind, status, reporting_status, clearance_status,
			raw_response, attempt_count, last_attempt_at, created_at
		FROM submissions
		WHERE invoice_uuid = ?
	`

	sub, err := r.scanSubmission(r.getExecutor(ctx).QueryRowContext(ctx, query, invoiceUUID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get submission",
			zap.String("invoice_uuid", invoiceUUID), zap.Error(err))
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

// List returns submissions ordered by most recent attempt first
func (r *SubmissionRepository) List(ctx context.Context, limit, offset int) ([]*entity.Submission, error) {
	query := `
		SELECT invoice_uuid, kind, status, reporting_status, clearance_status,
			raw_response, attempt_count, last_attempt_at, created_at
		FROM submissions
		ORDER BY last_attempt_at DESC
		LIMIT ? OFFSET ?
	`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list submissions", zap.Error(err))
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []*entity.Submission
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (r *SubmissionRepository) scanSubmission(row rowScanner) (*entity.Submission, error) {
	var sub entity.Submission
	var kind, status string

	err := row.Scan(
		&sub.InvoiceUUID,
		&kind,
		&status,
		&sub.ReportingStatus,
		&sub.ClearanceStatus,
		&sub.RawResponse,
		&sub.AttemptCount,
		&sub.LastAttemptAt,
		&sub.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sub.Kind = entity.SubmissionKind(kind)
	sub.Status = entity.SubmissionStatus(status)
	return &sub, nil
}

// getExecutor returns appropriate executor based on context
func (r *SubmissionRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.SubmissionRepository = (*SubmissionRepository)(nil)
