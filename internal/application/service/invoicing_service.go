package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/assembler"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/sequencer"
)

// IssueRequest is the client-facing input for issuing one invoice. The
// serial number, transaction id, counter and previous hash are allocated by
// the pipeline, never supplied by the caller.
type IssueRequest struct {
	UnitID            string
	Kind              entity.InvoiceKind
	TypeName          string
	OriginalInvoiceID string
	Note              string
	Currency          string
	ExchangeRate      decimal.Decimal
	Buyer             assembler.Party
	Lines             []assembler.Line
	Allowances        []assembler.AllowanceCharge
	Prepayment        *assembler.Prepayment
}

// InvoicingService drives the issue pipeline: allocate, assemble, sign,
// persist
type InvoicingService interface {
	Issue(ctx context.Context, req IssueRequest) (*entity.Invoice, error)
	GetInvoice(ctx context.Context, invoiceUUID string) (*entity.Invoice, error)
	ListSeries(ctx context.Context, seriesKey string) ([]*entity.Invoice, error)
	VerifyChain(ctx context.Context, seriesKey string) error
}

type invoicingServiceImpl struct {
	seq         *sequencer.Sequencer
	asm         *assembler.Assembler
	signer      port.Signer
	unitRepo    port.UnitRepository
	invoiceRepo port.InvoiceRepository
	txManager   port.TransactionManager
	now         func() time.Time
	logger      Logger
}

// NewInvoicingService creates a new InvoicingService
func NewInvoicingService(
	seq *sequencer.Sequencer,
	asm *assembler.Assembler,
	signer port.Signer,
	unitRepo port.UnitRepository,
	invoiceRepo port.InvoiceRepository,
	txManager port.TransactionManager,
	now func() time.Time,
	logger Logger,
) InvoicingService {
	if now == nil {
		now = time.Now
	}
	return &invoicingServiceImpl{
		seq:         seq,
		asm:         asm,
		signer:      signer,
		unitRepo:    unitRepo,
		invoiceRepo: invoiceRepo,
		txManager:   txManager,
		now:         now,
		logger:      logger,
	}
}

// Issue runs the pipeline: allocate, assemble, persist, sign. The sequence
// allocation commits in its own transaction before anything else runs, so a
// failure in assembly, persistence or signing burns the number into a gap
// rather than rolling the counter back for a retry to reuse. Assembly,
// persistence and signing then share one transaction so the stored digest
// and the chain link commit together.
func (s *invoicingServiceImpl) Issue(ctx context.Context, req IssueRequest) (*entity.Invoice, error) {
	unit, err := s.unitRepo.GetByID(ctx, req.UnitID)
	if err != nil {
		return nil, fmt.Errorf("issue invoice: get unit %s: %w", req.UnitID, err)
	}
	if unit == nil {
		return nil, fmt.Errorf("issue invoice: %w: unit %s", entity.ErrNotFound, req.UnitID)
	}
	if unit.PrivateKeyRef == "" {
		return nil, fmt.Errorf("issue invoice: %w: unit %s has no signing key", entity.ErrNotReady, req.UnitID)
	}

	profile := assembler.ResolveProfile(req.TypeName, req.Buyer)
	invoiceUUID := uuid.NewString()

	alloc, err := s.seq.Allocate(ctx, unit.UnitID, req.Kind, profile)
	if err != nil {
		s.logger.Error("Invoice issue failed", "unit_id", req.UnitID, "error", err)
		return nil, err
	}

	var invoice *entity.Invoice
	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.asm.Assemble(assembler.Request{
			SerialNumber:      alloc.SerialNumber,
			UUID:              invoiceUUID,
			Counter:           alloc.Sequence,
			PreviousHash:      alloc.PreviousHash,
			Kind:              req.Kind,
			TypeName:          req.TypeName,
			OriginalInvoiceID: req.OriginalInvoiceID,
			Note:              req.Note,
			Currency:          req.Currency,
			ExchangeRate:      req.ExchangeRate,
			Seller:            sellerParty(unit),
			Buyer:             req.Buyer,
			Lines:             req.Lines,
			Allowances:        req.Allowances,
			Prepayment:        req.Prepayment,
		})
		if err != nil {
			return err
		}

		unsignedXML, err := doc.Marshal()
		if err != nil {
			return fmt.Errorf("marshal invoice %s: %w", alloc.SerialNumber, err)
		}

		invoice = &entity.Invoice{
			UUID:          invoiceUUID,
			SerialNumber:  alloc.SerialNumber,
			SeriesKey:     unit.UnitID,
			Sequence:      alloc.Sequence,
			Kind:          req.Kind,
			Profile:       profile,
			IssueTime:     s.now().In(entity.AuthorityLocation()),
			Currency:      doc.DocumentCurrencyCode,
			TaxExclusive:  mustDecimal(doc.LegalMonetaryTotal.TaxExclusiveAmount.Value),
			TaxAmount:     mustDecimal(doc.TaxTotals[0].TaxAmount.Value),
			TaxInclusive:  mustDecimal(doc.LegalMonetaryTotal.TaxInclusiveAmount.Value),
			PayableAmount: mustDecimal(doc.LegalMonetaryTotal.PayableAmount.Value),
			UnsignedXML:   unsignedXML,
			PreviousHash:  alloc.PreviousHash,
			Status:        entity.InvoiceStatusAssembled,
		}
		if err := s.invoiceRepo.Create(ctx, invoice); err != nil {
			return err
		}

		signed, err := s.signer.Sign(ctx, unsignedXML, unit.PrivateKeyRef)
		if err != nil {
			return fmt.Errorf("sign invoice %s: %w", alloc.SerialNumber, err)
		}

		if err := s.invoiceRepo.MarkSigned(ctx, invoiceUUID, signed.SignedXML, signed.InvoiceHash, signed.QRCode); err != nil {
			return err
		}

		invoice.SignedXML = signed.SignedXML
		invoice.InvoiceHash = signed.InvoiceHash
		invoice.QRCode = signed.QRCode
		invoice.Status = entity.InvoiceStatusSigned
		return nil
	})
	if err != nil {
		s.logger.Error("Invoice issue failed", "unit_id", req.UnitID, "error", err)
		return nil, err
	}

	s.logger.Info("Invoice issued",
		"unit_id", req.UnitID,
		"serial", invoice.SerialNumber,
		"uuid", invoice.UUID,
		"profile", string(invoice.Profile))

	return invoice, nil
}

// GetInvoice retrieves an invoice by its transaction id
func (s *invoicingServiceImpl) GetInvoice(ctx context.Context, invoiceUUID string) (*entity.Invoice, error) {
	invoice, err := s.invoiceRepo.GetByUUID(ctx, invoiceUUID)
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", invoiceUUID, err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("get invoice: %w: %s", entity.ErrNotFound, invoiceUUID)
	}
	return invoice, nil
}

// ListSeries returns all invoices of one series in issuance order
func (s *invoicingServiceImpl) ListSeries(ctx context.Context, seriesKey string) ([]*entity.Invoice, error) {
	return s.invoiceRepo.ListBySeries(ctx, seriesKey)
}

// VerifyChain checks the series hash chain end to end
func (s *invoicingServiceImpl) VerifyChain(ctx context.Context, seriesKey string) error {
	return s.seq.VerifyChain(ctx, seriesKey)
}

func sellerParty(unit *entity.Unit) assembler.Party {
	return assembler.Party{
		Name:        unit.OrganizationName,
		VATNumber:   unit.VATNumber,
		CountryCode: unit.Country,
		City:        unit.Location,
	}
}

// mustDecimal parses amounts the assembler itself rendered
func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(fmt.Sprintf("assembler produced invalid amount %q: %v", s, err))
	}
	return d
}
