package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/infrastructure/persistence/sqlite"
)

const invoiceColumns = `
	uuid, serial_number, series_key, sequence, kind, profile, issue_time,
	currency, tax_exclusive, tax_amount, tax_inclusive, payable_amount,
	unsigned_xml, signed_xml, invoice_hash, previous_hash, qr_code,
	status, created_at`

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new invoice record
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	query := `
		INSERT INTO invoices (
			uuid, serial_number, series_key, sequence, kind, profile,
			issue_time, currency, tax_exclusive, tax_amount, tax_inclusive,
			payable_amount, unsigned_xml, signed_xml, invoice_hash,
			previous_hash, qr_code, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		invoice.UUID,
		invoice.SerialNumber,
		invoice.SeriesKey,
		invoice.Sequence,
		string(invoice.Kind),
		string(invoice.Profile),
		invoice.IssueTime,
		invoice.Currency,
		invoice.TaxExclusive.String(),
		invoice.TaxAmount.String(),
		invoice.TaxInclusive.String(),
		invoice.PayableAmount.String(),
		invoice.UnsignedXML,
		invoice.SignedXML,
		invoice.InvoiceHash,
		invoice.PreviousHash,
		invoice.QRCode,
		string(invoice.Status),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice",
			zap.String("serial", invoice.SerialNumber), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	return nil
}

// GetByUUID retrieves an invoice by its transaction id
func (r *InvoiceRepository) GetByUUID(ctx context.Context, uuid string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE uuid = ?`

	invoice, err := r.scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, uuid))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by UUID", zap.String("uuid", uuid), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	return invoice, nil
}

// GetLatestBySeries returns the most recently issued invoice for a series
func (r *InvoiceRepository) GetLatestBySeries(ctx context.Context, seriesKey string) (*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE series_key = ?
		ORDER BY sequence DESC
		LIMIT 1`

	invoice, err := r.scanInvoice(r.getExecutor(ctx).QueryRowContext(ctx, query, seriesKey))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get latest invoice",
			zap.String("series_key", seriesKey), zap.Error(err))
		return nil, fmt.Errorf("failed to get latest invoice: %w", err)
	}

	return invoice, nil
}

// ListBySeries returns all invoices of a series in issuance order
func (r *InvoiceRepository) ListBySeries(ctx context.Context, seriesKey string) ([]*entity.Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE series_key = ?
		ORDER BY sequence ASC`

	rows, err := r.getExecutor(ctx).QueryContext(ctx, query, seriesKey)
	if err != nil {
		r.logger.Error("Failed to list invoices",
			zap.String("series_key", seriesKey), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		invoice, err := r.scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}

	return invoices, rows.Err()
}

// MarkSigned stores signing output and moves the invoice to SIGNED. Only an
// assembled invoice may be signed; signed documents are immutable except
// for status transitions.
func (r *InvoiceRepository) MarkSigned(ctx context.Context, uuid string, signedXML []byte, hash, qr string) error {
	query := `
		UPDATE invoices
		SET signed_xml = ?, invoice_hash = ?, qr_code = ?, status = ?
		WHERE uuid = ? AND status = ?
	`

	result, err := r.getExecutor(ctx).ExecContext(ctx, query,
		signedXML, hash, qr,
		string(entity.InvoiceStatusSigned),
		uuid,
		string(entity.InvoiceStatusAssembled),
	)
	if err != nil {
		r.logger.Error("Failed to mark invoice signed", zap.String("uuid", uuid), zap.Error(err))
		return fmt.Errorf("failed to mark invoice signed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: invoice %s is not in assembled state", entity.ErrNotReady, uuid)
	}

	return nil
}

// UpdateStatus updates the submission-facing invoice status
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, uuid string, status entity.InvoiceStatus) error {
	query := `UPDATE invoices SET status = ? WHERE uuid = ?`

	_, err := r.getExecutor(ctx).ExecContext(ctx, query, string(status), uuid)
	if err != nil {
		r.logger.Error("Failed to update invoice status",
			zap.String("uuid", uuid), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("failed to update invoice status: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *InvoiceRepository) scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var invoice entity.Invoice
	var kind, profile, status string
	var taxExclusive, taxAmount, taxInclusive, payable string

	err := row.Scan(
		&invoice.UUID,
		&invoice.SerialNumber,
		&invoice.SeriesKey,
		&invoice.Sequence,
		&kind,
		&profile,
		&invoice.IssueTime,
		&invoice.Currency,
		&taxExclusive,
		&taxAmount,
		&taxInclusive,
		&payable,
		&invoice.UnsignedXML,
		&invoice.SignedXML,
		&invoice.InvoiceHash,
		&invoice.PreviousHash,
		&invoice.QRCode,
		&status,
		&invoice.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	invoice.Kind = entity.InvoiceKind(kind)
	invoice.Profile = entity.Profile(profile)
	invoice.Status = entity.InvoiceStatus(status)

	if invoice.TaxExclusive, err = decimal.NewFromString(taxExclusive); err != nil {
		return nil, fmt.Errorf("invalid tax_exclusive amount: %w", err)
	}
	if invoice.TaxAmount, err = decimal.NewFromString(taxAmount); err != nil {
		return nil, fmt.Errorf("invalid tax_amount: %w", err)
	}
	if invoice.TaxInclusive, err = decimal.NewFromString(taxInclusive); err != nil {
		return nil, fmt.Errorf("invalid tax_inclusive amount: %w", err)
	}
	if invoice.PayableAmount, err = decimal.NewFromString(payable); err != nil {
		return nil, fmt.Errorf("invalid payable_amount: %w", err)
	}

	return &invoice, nil
}

// getExecutor returns appropriate executor based on context
func (r *InvoiceRepository) getExecutor(ctx context.Context) sqlite.Executor {
	if tx := sqlite.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)
