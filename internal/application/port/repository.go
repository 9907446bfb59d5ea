package port

import (
	"context"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// SeriesRepository defines persistence operations for InvoiceSeries.
// NextSequence is the one strict-ordering primitive of the system: it must
// perform an atomic read-modify-write so that two concurrent callers for the
// same series never observe the same number, across service instances.
type SeriesRepository interface {
	// NextSequence increments and returns the series counter, creating the
	// series row on first use. Must run inside a transaction.
	NextSequence(ctx context.Context, seriesKey string) (int64, error)
	Get(ctx context.Context, seriesKey string) (*entity.InvoiceSeries, error)
}

// InvoiceRepository defines persistence operations for Invoice
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByUUID(ctx context.Context, uuid string) (*entity.Invoice, error)
	// GetLatestBySeries returns the most recently issued invoice for a
	// series (highest sequence), or nil when the series is empty.
	GetLatestBySeries(ctx context.Context, seriesKey string) (*entity.Invoice, error)
	ListBySeries(ctx context.Context, seriesKey string) ([]*entity.Invoice, error)
	// MarkSigned stores the signed document, digest and QR payload and moves
	// the invoice to SIGNED. Rejected for invoices past the signed state.
	MarkSigned(ctx context.Context, uuid string, signedXML []byte, hash, qr string) error
	UpdateStatus(ctx context.Context, uuid string, status entity.InvoiceStatus) error
}

// UnitRepository defines persistence operations for credential units
type UnitRepository interface {
	Create(ctx context.Context, unit *entity.Unit) error
	GetByID(ctx context.Context, unitID string) (*entity.Unit, error)
	Update(ctx context.Context, unit *entity.Unit) error
}

// SubmissionRepository defines persistence operations for Submission records
type SubmissionRepository interface {
	// Upsert inserts the submission row on first attempt and replaces the
	// reconciliation fields on every later attempt, incrementing the
	// attempt counter.
	Upsert(ctx context.Context, sub *entity.Submission) error
	GetByInvoiceUUID(ctx context.Context, invoiceUUID string) (*entity.Submission, error)
	List(ctx context.Context, limit, offset int) ([]*entity.Submission, error)
}

// TransactionManager defines transaction management operations
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
