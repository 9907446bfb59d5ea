package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceKind classifies the document variant
type InvoiceKind string

const (
	KindInvoice    InvoiceKind = "INVOICE"
	KindCreditNote InvoiceKind = "CREDIT_NOTE"
	KindDebitNote  InvoiceKind = "DEBIT_NOTE"
)

// Profile distinguishes standard (B2B) from simplified (B2C) documents
type Profile string

const (
	ProfileStandard   Profile = "STANDARD"
	ProfileSimplified Profile = "SIMPLIFIED"
)

// InvoiceStatus tracks the document through its lifecycle
type InvoiceStatus string

const (
	InvoiceStatusAssembled InvoiceStatus = "ASSEMBLED"
	InvoiceStatusSigned    InvoiceStatus = "SIGNED"
	InvoiceStatusCleared   InvoiceStatus = "CLEARED"
	InvoiceStatusReported  InvoiceStatus = "REPORTED"
	InvoiceStatusFailed    InvoiceStatus = "FAILED"
)

// GenesisHash is the previous-invoice-hash value mandated for the first
// invoice of a series: base64 of the hex sha256 digest of "0".
const GenesisHash = "NWZlY2ViNjZmZmM4NmYzOGQ5NTI3ODZjNmQ2OTZjNzljMmRiYzIzOWRkNGU5MWI0NjcyOWQ3M2EyN2ZiNTdlOQ=="

// Invoice represents one issued tax document
type Invoice struct {
	UUID          string
	SerialNumber  string
	SeriesKey     string
	Sequence      int64
	Kind          InvoiceKind
	Profile       Profile
	IssueTime     time.Time
	Currency      string
	TaxExclusive  decimal.Decimal
	TaxAmount     decimal.Decimal
	TaxInclusive  decimal.Decimal
	PayableAmount decimal.Decimal
	UnsignedXML   []byte
	SignedXML     []byte
	InvoiceHash   string
	PreviousHash  string
	QRCode        string
	Status        InvoiceStatus
	CreatedAt     time.Time
}

// Signed reports whether the document carries signed bytes and a digest
func (i *Invoice) Signed() bool {
	return len(i.SignedXML) > 0 && i.InvoiceHash != ""
}

// InvoiceSeries is the per-entity numbering and hash-chain lineage
type InvoiceSeries struct {
	SeriesKey    string
	LastSequence int64
	UpdatedAt    time.Time
}

// IsValid reports whether the kind is a known document variant
func (k InvoiceKind) IsValid() bool {
	switch k {
	case KindInvoice, KindCreditNote, KindDebitNote:
		return true
	}
	return false
}

// IsValid reports whether the profile is known
func (p Profile) IsValid() bool {
	return p == ProfileStandard || p == ProfileSimplified
}
