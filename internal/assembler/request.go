package assembler

import (
	"github.com/shopspring/decimal"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
)

// VAT category codes used by the authority profile
const (
	CategoryStandard  = "S"
	CategoryZeroRated = "Z"
	CategoryExempt    = "E"
	CategoryOutScope  = "O"
)

// AllowanceCharge is a discount (default) or surcharge, at line or
// document level depending on where it is attached
type AllowanceCharge struct {
	IsCharge    bool
	Reason      string
	Amount      decimal.Decimal
	VATCategory string
	VATPercent  decimal.Decimal
}

// Line is one request line item
type Line struct {
	Name            string
	Quantity        decimal.Decimal
	UnitCode        string
	UnitPrice       decimal.Decimal
	VATPercent      decimal.Decimal
	VATCategory     string
	ExemptionReason string
	Allowances      []AllowanceCharge
}

// Prepayment references a previously issued prepayment invoice whose amount
// is settled by this document
type Prepayment struct {
	InvoiceID   string
	UUID        string
	IssueDate   string
	Amount      decimal.Decimal
	VATCategory string
	VATPercent  decimal.Decimal
}

// Party identifies the seller or buyer
type Party struct {
	Name           string
	VATNumber      string
	SchemeID       string
	ID             string
	Street         string
	BuildingNumber string
	District       string
	City           string
	PostalZone     string
	CountryCode    string
}

// Request is the normalized input the assembler builds a document from.
// Serial, UUID, counter and previous hash come from the sequencer; the
// assembler never allocates them itself.
type Request struct {
	SerialNumber string
	UUID         string
	Counter      int64
	PreviousHash string

	Kind entity.InvoiceKind
	// TypeName forces the profile ("standard" or "simplified"); when empty
	// the profile is inferred from the buyer's VAT registration
	TypeName string
	// OriginalInvoiceID is the billing reference required for credit and
	// debit notes
	OriginalInvoiceID string
	Note              string

	Currency string
	// ExchangeRate converts document-currency tax into the reporting
	// currency when the two differ
	ExchangeRate decimal.Decimal

	Seller Party
	Buyer  Party

	Lines      []Line
	Allowances []AllowanceCharge
	Prepayment *Prepayment
}
