package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

type stubSeries struct {
	next    int64
	nextErr error
	calls   int
}

func (s *stubSeries) NextSequence(ctx context.Context, seriesKey string) (int64, error) {
	s.calls++
	if s.nextErr != nil {
		return 0, s.nextErr
	}
	s.next++
	return s.next, nil
}

func (s *stubSeries) Get(ctx context.Context, seriesKey string) (*entity.InvoiceSeries, error) {
	return &entity.InvoiceSeries{SeriesKey: seriesKey, LastSequence: s.next}, nil
}

type stubInvoices struct {
	latest    *entity.Invoice
	latestErr error
	chain     []*entity.Invoice
}

func (s *stubInvoices) Create(ctx context.Context, invoice *entity.Invoice) error { return nil }

func (s *stubInvoices) GetByUUID(ctx context.Context, uuid string) (*entity.Invoice, error) {
	return nil, nil
}

func (s *stubInvoices) GetLatestBySeries(ctx context.Context, seriesKey string) (*entity.Invoice, error) {
	return s.latest, s.latestErr
}

func (s *stubInvoices) ListBySeries(ctx context.Context, seriesKey string) ([]*entity.Invoice, error) {
	return s.chain, nil
}

func (s *stubInvoices) MarkSigned(ctx context.Context, uuid string, signedXML []byte, hash, qr string) error {
	return nil
}

func (s *stubInvoices) UpdateStatus(ctx context.Context, uuid string, status entity.InvoiceStatus) error {
	return nil
}

type noopTx struct{}

func (noopTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
}

func newTestSequencer(series *stubSeries, invoices *stubInvoices) *Sequencer {
	return New(noopTx{}, series, invoices, fixedClock, zap.NewNop())
}

func TestTypePrefix(t *testing.T) {
	tests := []struct {
		name     string
		kind     entity.InvoiceKind
		profile  entity.Profile
		expected string
	}{
		{"credit note", entity.KindCreditNote, entity.ProfileStandard, "RE"},
		{"credit note simplified", entity.KindCreditNote, entity.ProfileSimplified, "RE"},
		{"debit note", entity.KindDebitNote, entity.ProfileSimplified, "AD"},
		{"standard invoice", entity.KindInvoice, entity.ProfileStandard, "SD"},
		{"simplified invoice", entity.KindInvoice, entity.ProfileSimplified, "SI"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypePrefix(tt.kind, tt.profile); got != tt.expected {
				t.Errorf("TypePrefix() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestSequencer_Allocate_FirstOfSeries(t *testing.T) {
	seq := newTestSequencer(&stubSeries{}, &stubInvoices{})

	alloc, err := seq.Allocate(context.Background(), "EGS1", entity.KindInvoice, entity.ProfileSimplified)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.SerialNumber != "EGS1-SI-25-00000001" {
		t.Errorf("SerialNumber = %q, want %q", alloc.SerialNumber, "EGS1-SI-25-00000001")
	}
	if alloc.Sequence != 1 {
		t.Errorf("Sequence = %d, want 1", alloc.Sequence)
	}
	if alloc.PreviousHash != entity.GenesisHash {
		t.Errorf("PreviousHash = %q, want genesis", alloc.PreviousHash)
	}
}

func TestSequencer_Allocate_ChainsFromLatest(t *testing.T) {
	series := &stubSeries{next: 41}
	invoices := &stubInvoices{
		latest: &entity.Invoice{Sequence: 41, InvoiceHash: "latest-hash"},
	}
	seq := newTestSequencer(series, invoices)

	alloc, err := seq.Allocate(context.Background(), "EGS1", entity.KindCreditNote, entity.ProfileSimplified)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if alloc.SerialNumber != "EGS1-RE-25-00000042" {
		t.Errorf("SerialNumber = %q, want %q", alloc.SerialNumber, "EGS1-RE-25-00000042")
	}
	if alloc.PreviousHash != "latest-hash" {
		t.Errorf("PreviousHash = %q, want %q", alloc.PreviousHash, "latest-hash")
	}
}

func TestSequencer_Allocate_Validation(t *testing.T) {
	seq := newTestSequencer(&stubSeries{}, &stubInvoices{})

	tests := []struct {
		name    string
		series  string
		kind    entity.InvoiceKind
		profile entity.Profile
	}{
		{"empty series key", "", entity.KindInvoice, entity.ProfileSimplified},
		{"unknown kind", "EGS1", entity.InvoiceKind("RECEIPT"), entity.ProfileSimplified},
		{"unknown profile", "EGS1", entity.KindInvoice, entity.Profile("B2B")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seq.Allocate(context.Background(), tt.series, tt.kind, tt.profile)
			if !errors.Is(err, entity.ErrValidation) {
				t.Errorf("Allocate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSequencer_Allocate_StoreFailure(t *testing.T) {
	series := &stubSeries{nextErr: errors.New("database is locked")}
	seq := newTestSequencer(series, &stubInvoices{})

	_, err := seq.Allocate(context.Background(), "EGS1", entity.KindInvoice, entity.ProfileSimplified)
	if err == nil {
		t.Fatal("Allocate() error = nil, want store failure")
	}
}

func TestSequencer_Allocate_NumbersAreMonotonic(t *testing.T) {
	series := &stubSeries{}
	seq := newTestSequencer(series, &stubInvoices{})

	var last int64
	for i := 0; i < 5; i++ {
		alloc, err := seq.Allocate(context.Background(), "EGS1", entity.KindInvoice, entity.ProfileSimplified)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if alloc.Sequence <= last {
			t.Fatalf("Sequence %d not after %d", alloc.Sequence, last)
		}
		last = alloc.Sequence
	}
}

func TestSequencer_VerifyChain(t *testing.T) {
	intact := []*entity.Invoice{
		{SerialNumber: "EGS1-SI-25-00000001", Sequence: 1, PreviousHash: entity.GenesisHash, InvoiceHash: "h1"},
		{SerialNumber: "EGS1-SI-25-00000002", Sequence: 2, PreviousHash: "h1", InvoiceHash: "h2"},
		{SerialNumber: "EGS1-SI-25-00000004", Sequence: 4, PreviousHash: "h2", InvoiceHash: "h4"},
	}

	tests := []struct {
		name    string
		mutate  func(chain []*entity.Invoice)
		wantErr bool
	}{
		{"intact chain with sequence gap", func(chain []*entity.Invoice) {}, false},
		{"broken hash link", func(chain []*entity.Invoice) { chain[1].PreviousHash = "tampered" }, true},
		{"wrong genesis", func(chain []*entity.Invoice) { chain[0].PreviousHash = "h0" }, true},
		{"non-monotonic sequence", func(chain []*entity.Invoice) { chain[2].Sequence = 2 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := make([]*entity.Invoice, len(intact))
			for i, inv := range intact {
				copied := *inv
				chain[i] = &copied
			}
			tt.mutate(chain)

			seq := newTestSequencer(&stubSeries{}, &stubInvoices{chain: chain})
			err := seq.VerifyChain(context.Background(), "EGS1")
			if tt.wantErr && !errors.Is(err, entity.ErrChainBroken) {
				t.Errorf("VerifyChain() error = %v, want ErrChainBroken", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("VerifyChain() error = %v, want nil", err)
			}
		})
	}
}

func TestSequencer_VerifyChain_EmptySeries(t *testing.T) {
	seq := newTestSequencer(&stubSeries{}, &stubInvoices{})
	if err := seq.VerifyChain(context.Background(), "EGS1"); err != nil {
		t.Errorf("VerifyChain() on empty series error = %v, want nil", err)
	}
}
