package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/application/port"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/assembler"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/sequencer"
	"go.uber.org/zap"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
}

func testUnit() *entity.Unit {
	return &entity.Unit{
		UnitID:           "EGS1",
		VATNumber:        "310000000000003",
		OrganizationName: "Halasaudi Trading Est",
		Country:          "SA",
		Location:         "Riyadh",
		CSR:              "csr-pem",
		PrivateKeyRef:    "key-ref",
		State:            entity.UnitStateComplianceIssued,
	}
}

func simpleIssueRequest() IssueRequest {
	return IssueRequest{
		UnitID:   "EGS1",
		Kind:     entity.KindInvoice,
		Currency: "SAR",
		Lines: []assembler.Line{
			{
				Name:       "Consulting",
				Quantity:   decimal.NewFromInt(2),
				UnitPrice:  decimal.NewFromInt(100),
				VATPercent: decimal.NewFromInt(15),
			},
		},
	}
}

func newTestInvoicingService(units *mockUnitRepo, invoices *mockInvoiceRepo, series *mockSeriesRepo, signer *mockSigner) InvoicingService {
	seq := sequencer.New(&passthroughTxManager{}, series, invoices, fixedClock, zap.NewNop())
	asm := assembler.New(fixedClock)
	return NewInvoicingService(seq, asm, signer, units, invoices, &passthroughTxManager{}, fixedClock, &testLogger{})
}

func TestInvoicingService_Issue(t *testing.T) {
	unit := testUnit()
	var created *entity.Invoice
	var signedUUID string

	units := &mockUnitRepo{
		getByIDFunc: func(ctx context.Context, unitID string) (*entity.Unit, error) {
			return unit, nil
		},
	}
	invoices := &mockInvoiceRepo{
		createFunc: func(ctx context.Context, invoice *entity.Invoice) error {
			created = invoice
			return nil
		},
		markSignedFunc: func(ctx context.Context, uuid string, signedXML []byte, hash, qr string) error {
			signedUUID = uuid
			return nil
		},
	}
	series := &mockSeriesRepo{
		nextSequenceFunc: func(ctx context.Context, seriesKey string) (int64, error) {
			return 1, nil
		},
	}

	svc := newTestInvoicingService(units, invoices, series, &mockSigner{})

	invoice, err := svc.Issue(context.Background(), simpleIssueRequest())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if invoice.SerialNumber != "EGS1-SI-25-00000001" {
		t.Errorf("SerialNumber = %q, want %q", invoice.SerialNumber, "EGS1-SI-25-00000001")
	}
	if invoice.Profile != entity.ProfileSimplified {
		t.Errorf("Profile = %v, want %v", invoice.Profile, entity.ProfileSimplified)
	}
	if invoice.PreviousHash != entity.GenesisHash {
		t.Errorf("PreviousHash = %q, want genesis", invoice.PreviousHash)
	}
	if invoice.Status != entity.InvoiceStatusSigned {
		t.Errorf("Status = %v, want %v", invoice.Status, entity.InvoiceStatusSigned)
	}
	if invoice.InvoiceHash != "hash-value" || invoice.QRCode != "qr-value" {
		t.Errorf("signing output not applied: hash=%q qr=%q", invoice.InvoiceHash, invoice.QRCode)
	}
	if !invoice.TaxExclusive.Equal(decimal.NewFromInt(200)) {
		t.Errorf("TaxExclusive = %s, want 200", invoice.TaxExclusive)
	}
	if !invoice.TaxAmount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("TaxAmount = %s, want 30", invoice.TaxAmount)
	}
	if !invoice.PayableAmount.Equal(decimal.NewFromInt(230)) {
		t.Errorf("PayableAmount = %s, want 230", invoice.PayableAmount)
	}

	if created == nil {
		t.Fatal("invoice was not persisted before signing")
	}
	if created.Status != entity.InvoiceStatusAssembled {
		t.Errorf("persisted status = %v, want ASSEMBLED", created.Status)
	}
	if len(created.UnsignedXML) == 0 {
		t.Error("persisted invoice has no unsigned XML")
	}
	if signedUUID != invoice.UUID {
		t.Errorf("MarkSigned uuid = %q, want %q", signedUUID, invoice.UUID)
	}
}

func TestInvoicingService_Issue_ChainsFromLatest(t *testing.T) {
	unit := testUnit()
	latest := &entity.Invoice{
		UUID:        "prev-uuid",
		Sequence:    7,
		InvoiceHash: "prev-hash",
	}

	units := &mockUnitRepo{
		getByIDFunc: func(ctx context.Context, unitID string) (*entity.Unit, error) {
			return unit, nil
		},
	}
	invoices := &mockInvoiceRepo{
		getLatestFunc: func(ctx context.Context, seriesKey string) (*entity.Invoice, error) {
			return latest, nil
		},
	}
	series := &mockSeriesRepo{
		nextSequenceFunc: func(ctx context.Context, seriesKey string) (int64, error) {
			return 8, nil
		},
	}

	svc := newTestInvoicingService(units, invoices, series, &mockSigner{})

	invoice, err := svc.Issue(context.Background(), simpleIssueRequest())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if invoice.PreviousHash != "prev-hash" {
		t.Errorf("PreviousHash = %q, want %q", invoice.PreviousHash, "prev-hash")
	}
	if invoice.Sequence != 8 {
		t.Errorf("Sequence = %d, want 8", invoice.Sequence)
	}
	if !strings.HasSuffix(invoice.SerialNumber, "-00000008") {
		t.Errorf("SerialNumber = %q, want suffix -00000008", invoice.SerialNumber)
	}
}

func TestInvoicingService_Issue_UnitNotFound(t *testing.T) {
	svc := newTestInvoicingService(&mockUnitRepo{}, &mockInvoiceRepo{}, &mockSeriesRepo{}, &mockSigner{})

	_, err := svc.Issue(context.Background(), simpleIssueRequest())
	if !errors.Is(err, entity.ErrNotFound) {
		t.Errorf("Issue() error = %v, want ErrNotFound", err)
	}
}

func TestInvoicingService_Issue_UnitWithoutKey(t *testing.T) {
	unit := testUnit()
	unit.PrivateKeyRef = ""

	units := &mockUnitRepo{
		getByIDFunc: func(ctx context.Context, unitID string) (*entity.Unit, error) {
			return unit, nil
		},
	}
	svc := newTestInvoicingService(units, &mockInvoiceRepo{}, &mockSeriesRepo{}, &mockSigner{})

	_, err := svc.Issue(context.Background(), simpleIssueRequest())
	if !errors.Is(err, entity.ErrNotReady) {
		t.Errorf("Issue() error = %v, want ErrNotReady", err)
	}
}

func TestInvoicingService_Issue_SignerFailure(t *testing.T) {
	unit := testUnit()
	units := &mockUnitRepo{
		getByIDFunc: func(ctx context.Context, unitID string) (*entity.Unit, error) {
			return unit, nil
		},
	}
	signer := &mockSigner{
		signFunc: func(ctx context.Context, invoiceXML []byte, privateKeyRef string) (*port.SignResult, error) {
			return nil, errors.New("tool exited 1")
		},
	}

	svc := newTestInvoicingService(units, &mockInvoiceRepo{}, &mockSeriesRepo{}, signer)

	_, err := svc.Issue(context.Background(), simpleIssueRequest())
	if err == nil || !strings.Contains(err.Error(), "tool exited 1") {
		t.Errorf("Issue() error = %v, want signer failure", err)
	}
}

// depthTxManager tracks transaction nesting so tests can observe where a
// call executes relative to the surrounding transaction scope
type depthTxManager struct {
	depth int
}

func (m *depthTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.depth++
	defer func() { m.depth-- }()
	return fn(ctx)
}

func TestInvoicingService_Issue_SequenceBurnsOnFailedAttempt(t *testing.T) {
	unit := testUnit()
	txManager := &depthTxManager{}

	var counter int64
	var depthAtAllocate int
	series := &mockSeriesRepo{
		nextSequenceFunc: func(ctx context.Context, seriesKey string) (int64, error) {
			depthAtAllocate = txManager.depth
			counter++
			return counter, nil
		},
	}
	units := &mockUnitRepo{
		getByIDFunc: func(ctx context.Context, unitID string) (*entity.Unit, error) {
			return unit, nil
		},
	}

	failNext := true
	signer := &mockSigner{
		signFunc: func(ctx context.Context, invoiceXML []byte, privateKeyRef string) (*port.SignResult, error) {
			if failNext {
				failNext = false
				return nil, errors.New("tool exited 1")
			}
			return &port.SignResult{SignedXML: invoiceXML, InvoiceHash: "hash-value", QRCode: "qr-value"}, nil
		},
	}

	seq := sequencer.New(txManager, series, &mockInvoiceRepo{}, fixedClock, zap.NewNop())
	asm := assembler.New(fixedClock)
	svc := NewInvoicingService(seq, asm, signer, units, &mockInvoiceRepo{}, txManager, fixedClock, &testLogger{})

	if _, err := svc.Issue(context.Background(), simpleIssueRequest()); err == nil {
		t.Fatal("first Issue() succeeded, want signer failure")
	}
	// The counter increment committed in its own transaction, not inside
	// the issue transaction that the failure rolls back
	if depthAtAllocate != 1 {
		t.Errorf("allocation ran at transaction depth %d, want 1", depthAtAllocate)
	}

	invoice, err := svc.Issue(context.Background(), simpleIssueRequest())
	if err != nil {
		t.Fatalf("second Issue() error = %v", err)
	}
	if invoice.Sequence != 2 {
		t.Errorf("Sequence after one failed attempt = %d, want 2 (number 1 is a gap)", invoice.Sequence)
	}
	if !strings.HasSuffix(invoice.SerialNumber, "-00000002") {
		t.Errorf("SerialNumber = %q, want suffix -00000002", invoice.SerialNumber)
	}
}

func TestInvoicingService_Issue_StandardProfileForVATBuyer(t *testing.T) {
	unit := testUnit()
	units := &mockUnitRepo{
		getByIDFunc: func(ctx context.Context, unitID string) (*entity.Unit, error) {
			return unit, nil
		},
	}

	svc := newTestInvoicingService(units, &mockInvoiceRepo{}, &mockSeriesRepo{}, &mockSigner{})

	req := simpleIssueRequest()
	req.Buyer = assembler.Party{Name: "Buyer Co", VATNumber: "311111111111113"}

	invoice, err := svc.Issue(context.Background(), req)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if invoice.Profile != entity.ProfileStandard {
		t.Errorf("Profile = %v, want STANDARD", invoice.Profile)
	}
	if !strings.Contains(invoice.SerialNumber, "-SD-") {
		t.Errorf("SerialNumber = %q, want SD prefix", invoice.SerialNumber)
	}
}

func TestInvoicingService_VerifyChain(t *testing.T) {
	chain := []*entity.Invoice{
		{SerialNumber: "A-1", Sequence: 1, PreviousHash: entity.GenesisHash, InvoiceHash: "h1"},
		{SerialNumber: "A-2", Sequence: 2, PreviousHash: "h1", InvoiceHash: "h2"},
		{SerialNumber: "A-3", Sequence: 3, PreviousHash: "h2", InvoiceHash: "h3"},
	}
	invoices := &mockInvoiceRepo{
		listBySeriesFunc: func(ctx context.Context, seriesKey string) ([]*entity.Invoice, error) {
			return chain, nil
		},
	}

	svc := newTestInvoicingService(&mockUnitRepo{}, invoices, &mockSeriesRepo{}, &mockSigner{})

	if err := svc.VerifyChain(context.Background(), "EGS1"); err != nil {
		t.Errorf("VerifyChain() error = %v, want nil", err)
	}

	chain[2].PreviousHash = "tampered"
	if err := svc.VerifyChain(context.Background(), "EGS1"); !errors.Is(err, entity.ErrChainBroken) {
		t.Errorf("VerifyChain() error = %v, want ErrChainBroken", err)
	}
}
