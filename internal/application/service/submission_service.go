package service

import (
	"context"
	"fmt"
	"time"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// SubmissionService routes signed invoices to the authority and reconciles
// the outcome into a canonical status
type SubmissionService interface {
	// Submit sends the invoice to the authority. Standard-profile documents
	// go through synchronous clearance, everything else through reporting.
	// Re-submitting an already cleared or reported invoice is allowed; the
	// authority enforces its own duplicate semantics and the local attempt
	// counter still increments.
	Submit(ctx context.Context, invoiceUUID string, production bool) (*entity.Submission, error)
	GetSubmission(ctx context.Context, invoiceUUID string) (*entity.Submission, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]*entity.Submission, error)
}

type submissionServiceImpl struct {
	invoiceRepo    port.InvoiceRepository
	unitRepo       port.UnitRepository
	submissionRepo port.SubmissionRepository
	gateway        port.AuthorityGateway
	now            func() time.Time
	logger         Logger
}

// NewSubmissionService creates a new SubmissionService
func NewSubmissionService(
	invoiceRepo port.InvoiceRepository,
	unitRepo port.UnitRepository,
	submissionRepo port.SubmissionRepository,
	gateway port.AuthorityGateway,
	now func() time.Time,
	logger Logger,
) SubmissionService {
	if now == nil {
		now = time.Now
	}
	return &submissionServiceImpl{
		invoiceRepo:    invoiceRepo,
		unitRepo:       unitRepo,
		submissionRepo: submissionRepo,
		gateway:        gateway,
		now:            now,
		logger:         logger,
	}
}

// Submit implements the routing and reconciliation contract. Every call is
// recorded against the invoice, including transport failures, so the audit
// trail reflects each attempt.
func (s *submissionServiceImpl) Submit(ctx context.Context, invoiceUUID string, production bool) (*entity.Submission, error) {
	invoice, err := s.invoiceRepo.GetByUUID(ctx, invoiceUUID)
	if err != nil {
		return nil, fmt.Errorf("submit invoice %s: %w", invoiceUUID, err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("submit invoice: %w: %s", entity.ErrNotFound, invoiceUUID)
	}
	if !invoice.Signed() {
		return nil, fmt.Errorf("submit invoice %s: %w: invoice is not signed", invoiceUUID, entity.ErrNotReady)
	}

	unit, err := s.unitRepo.GetByID(ctx, invoice.SeriesKey)
	if err != nil {
		return nil, fmt.Errorf("submit invoice %s: get unit %s: %w", invoiceUUID, invoice.SeriesKey, err)
	}
	if unit == nil {
		return nil, fmt.Errorf("submit invoice %s: %w: unit %s", invoiceUUID, entity.ErrNotFound, invoice.SeriesKey)
	}
	if !unit.Onboarded() {
		return nil, fmt.Errorf("submit invoice %s: %w: unit %s has no active credentials", invoiceUUID, entity.ErrNotReady, unit.UnitID)
	}
	if production && !unit.ProductionMode {
		return nil, fmt.Errorf("submit invoice %s: %w: unit %s is not production certified", invoiceUUID, entity.ErrNotReady, unit.UnitID)
	}

	kind := classify(invoice)
	creds := port.GatewayCredentials{Token: unit.Active.Token, Secret: unit.Active.Secret}

	submission := &entity.Submission{
		InvoiceUUID:   invoice.UUID,
		Kind:          kind,
		Status:        entity.SubmissionFailed,
		LastAttemptAt: s.now(),
	}

	var result *port.SubmissionResult
	if kind == entity.SubmissionClearance {
		result, err = s.gateway.SubmitClearance(ctx, creds, invoice.InvoiceHash, invoice.UUID, invoice.SignedXML)
	} else {
		result, err = s.gateway.SubmitReporting(ctx, creds, invoice.InvoiceHash, invoice.UUID, invoice.SignedXML)
	}
	if err != nil {
		submission.RawResponse = err.Error()
		s.record(ctx, submission, invoice)
		return nil, fmt.Errorf("submit invoice %s (%s): %w", invoiceUUID, kind, err)
	}

	submission.Status = Reconcile(kind, result)
	submission.ReportingStatus = result.ReportingStatus
	submission.ClearanceStatus = result.ClearanceStatus
	submission.RawResponse = string(result.RawResponse)

	s.record(ctx, submission, invoice)

	s.logger.Info("Invoice submitted",
		"invoice_uuid", invoice.UUID,
		"serial", invoice.SerialNumber,
		"kind", string(kind),
		"status", string(submission.Status))

	return submission, nil
}

// GetSubmission retrieves the submission record for an invoice
func (s *submissionServiceImpl) GetSubmission(ctx context.Context, invoiceUUID string) (*entity.Submission, error) {
	submission, err := s.submissionRepo.GetByInvoiceUUID(ctx, invoiceUUID)
	if err != nil {
		return nil, fmt.Errorf("get submission %s: %w", invoiceUUID, err)
	}
	if submission == nil {
		return nil, fmt.Errorf("get submission: %w: %s", entity.ErrNotFound, invoiceUUID)
	}
	return submission, nil
}

// ListSubmissions returns submission records, most recent first
func (s *submissionServiceImpl) ListSubmissions(ctx context.Context, limit, offset int) ([]*entity.Submission, error) {
	return s.submissionRepo.List(ctx, limit, offset)
}

// classify routes standard-profile documents to clearance and everything
// else to reporting
func classify(invoice *entity.Invoice) entity.SubmissionKind {
	if invoice.Profile == entity.ProfileStandard {
		return entity.SubmissionClearance
	}
	return entity.SubmissionReporting
}

// record persists the attempt and mirrors the canonical status onto the
// invoice. Bookkeeping failures are logged, never masked over the
// submission outcome.
func (s *submissionServiceImpl) record(ctx context.Context, submission *entity.Submission, invoice *entity.Invoice) {
	if err := s.submissionRepo.Upsert(ctx, submission); err != nil {
		s.logger.Error("Failed to record submission attempt",
			"invoice_uuid", submission.InvoiceUUID, "error", err)
	}

	status := invoiceStatus(submission.Status)
	if err := s.invoiceRepo.UpdateStatus(ctx, invoice.UUID, status); err != nil {
		s.logger.Error("Failed to update invoice status",
			"invoice_uuid", invoice.UUID, "status", string(status), "error", err)
	}
}

func invoiceStatus(status entity.SubmissionStatus) entity.InvoiceStatus {
	switch status {
	case entity.SubmissionCleared:
		return entity.InvoiceStatusCleared
	case entity.SubmissionReported:
		return entity.InvoiceStatusReported
	default:
		return entity.InvoiceStatusFailed
	}
}
