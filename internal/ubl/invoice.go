// Package ubl holds the UBL 2.1 invoice document model serialized for the
// authority. Amounts are rendered as fixed two-decimal strings from
// decimal values so that assembly stays deterministic.
package ubl

import (
	"bytes"
	"encoding/xml"

	"github.com/shopspring/decimal"
)

// Placeholder markers replaced by the external signing tool
const (
	QRPlaceholder        = "QR_PLACEHOLDER"
	SignaturePlaceholder = "SIGNATURE_PLACEHOLDER"
)

// Document reference identifiers mandated by the authority profile
const (
	RefCounterValue = "ICV"
	RefPreviousHash = "PIH"
	RefQR           = "QR"
)

// Invoice type code transaction subtypes (attribute name)
const (
	TransactionStandard   = "0100000"
	TransactionSimplified = "0200000"
)

// Invoice type codes
const (
	TypeCodeInvoice    = "388"
	TypeCodeDebitNote  = "383"
	TypeCodeCreditNote = "381"
)

// Amount is a monetary value with its currency attribute
type Amount struct {
	CurrencyID string `xml:"currencyID,attr"`
	Value      string `xml:",chardata"`
}

// NewAmount renders a decimal as a two-decimal UBL amount
func NewAmount(v decimal.Decimal, currency string) Amount {
	return Amount{CurrencyID: currency, Value: v.StringFixed(2)}
}

// Quantity is a quantity value with its unit code attribute
type Quantity struct {
	UnitCode string `xml:"unitCode,attr"`
	Value    string `xml:",chardata"`
}

// TypeCode is the invoice type code with the transaction subtype attribute
type TypeCode struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// DocumentReference carries chained metadata (ICV, PIH, QR)
type DocumentReference struct {
	ID               string            `xml:"cbc:ID"`
	UUID             string            `xml:"cbc:UUID,omitempty"`
	IssueDate        string            `xml:"cbc:IssueDate,omitempty"`
	DocumentTypeCode string            `xml:"cbc:DocumentTypeCode,omitempty"`
	Attachment       *BinaryAttachment `xml:"cac:Attachment,omitempty"`
}

// BinaryAttachment embeds a base64 payload inside a document reference
type BinaryAttachment struct {
	EmbeddedDocumentBinaryObject EmbeddedObject `xml:"cbc:EmbeddedDocumentBinaryObject"`
}

// EmbeddedObject is the embedded binary payload with its mime type
type EmbeddedObject struct {
	MimeCode string `xml:"mimeCode,attr"`
	Value    string `xml:",chardata"`
}

// BillingReference points a credit or debit note at its original invoice
type BillingReference struct {
	InvoiceDocumentReference DocumentReference `xml:"cac:InvoiceDocumentReference"`
}

// Signature is the document-level signature slot referenced from UBLExtensions
type Signature struct {
	ID              string `xml:"cbc:ID"`
	SignatureMethod string `xml:"cbc:SignatureMethod"`
}

// PostalAddress is a party address
type PostalAddress struct {
	StreetName         string `xml:"cbc:StreetName,omitempty"`
	BuildingNumber     string `xml:"cbc:BuildingNumber,omitempty"`
	PlotIdentification string `xml:"cbc:PlotIdentification,omitempty"`
	CitySubdivision    string `xml:"cbc:CitySubdivisionName,omitempty"`
	CityName           string `xml:"cbc:CityName,omitempty"`
	PostalZone         string `xml:"cbc:PostalZone,omitempty"`
	CountryCode        string `xml:"cac:Country>cbc:IdentificationCode,omitempty"`
}

// PartyIdentification is a party id with its scheme
type PartyIdentification struct {
	SchemeID string `xml:"schemeID,attr"`
	Value    string `xml:",chardata"`
}

// Party describes a supplier or customer
type Party struct {
	Identification   *PartyIdentification `xml:"cac:PartyIdentification>cbc:ID,omitempty"`
	PostalAddress    *PostalAddress       `xml:"cac:PostalAddress,omitempty"`
	CompanyID        string               `xml:"cac:PartyTaxScheme>cbc:CompanyID,omitempty"`
	TaxSchemeID      string               `xml:"cac:PartyTaxScheme>cac:TaxScheme>cbc:ID,omitempty"`
	RegistrationName string               `xml:"cac:PartyLegalEntity>cbc:RegistrationName,omitempty"`
}

// AccountingParty wraps a party on the supplier or customer side
type AccountingParty struct {
	Party Party `xml:"cac:Party"`
}

// TaxCategory classifies a taxable amount
type TaxCategory struct {
	ID              string `xml:"cbc:ID"`
	Percent         string `xml:"cbc:Percent,omitempty"`
	ExemptionReason string `xml:"cbc:TaxExemptionReason,omitempty"`
	TaxSchemeID     string `xml:"cac:TaxScheme>cbc:ID"`
}

// AllowanceCharge is a discount or surcharge at line or document level
type AllowanceCharge struct {
	ChargeIndicator bool         `xml:"cbc:ChargeIndicator"`
	Reason          string       `xml:"cbc:AllowanceChargeReason,omitempty"`
	Amount          Amount       `xml:"cbc:Amount"`
	TaxCategory     *TaxCategory `xml:"cac:TaxCategory,omitempty"`
}

// TaxSubtotal is one (category, rate) tax group
type TaxSubtotal struct {
	TaxableAmount Amount      `xml:"cbc:TaxableAmount"`
	TaxAmount     Amount      `xml:"cbc:TaxAmount"`
	TaxCategory   TaxCategory `xml:"cac:TaxCategory"`
}

// TaxTotal aggregates tax amounts, optionally broken down into subtotals
type TaxTotal struct {
	TaxAmount   Amount        `xml:"cbc:TaxAmount"`
	TaxSubtotal []TaxSubtotal `xml:"cac:TaxSubtotal,omitempty"`
}

// MonetaryTotal is the document total block
type MonetaryTotal struct {
	LineExtensionAmount  Amount  `xml:"cbc:LineExtensionAmount"`
	TaxExclusiveAmount   Amount  `xml:"cbc:TaxExclusiveAmount"`
	TaxInclusiveAmount   Amount  `xml:"cbc:TaxInclusiveAmount"`
	AllowanceTotalAmount *Amount `xml:"cbc:AllowanceTotalAmount,omitempty"`
	ChargeTotalAmount    *Amount `xml:"cbc:ChargeTotalAmount,omitempty"`
	PrepaidAmount        *Amount `xml:"cbc:PrepaidAmount,omitempty"`
	PayableAmount        Amount  `xml:"cbc:PayableAmount"`
}

// Item is the line item description block
type Item struct {
	Name                  string      `xml:"cbc:Name"`
	ClassifiedTaxCategory TaxCategory `xml:"cac:ClassifiedTaxCategory"`
}

// Price is the unit price block
type Price struct {
	PriceAmount Amount `xml:"cbc:PriceAmount"`
}

// InvoiceLine is one document line
type InvoiceLine struct {
	ID                  string             `xml:"cbc:ID"`
	InvoicedQuantity    Quantity           `xml:"cbc:InvoicedQuantity"`
	LineExtensionAmount Amount             `xml:"cbc:LineExtensionAmount"`
	DocumentReference   *DocumentReference `xml:"cac:DocumentReference,omitempty"`
	AllowanceCharge     []AllowanceCharge  `xml:"cac:AllowanceCharge,omitempty"`
	TaxTotal            *LineTaxTotal      `xml:"cac:TaxTotal,omitempty"`
	Item                Item               `xml:"cac:Item"`
	Price               Price              `xml:"cac:Price"`
}

// LineTaxTotal carries per-line tax and rounding amounts; prepayment lines
// carry a prepaid subtotal instead
type LineTaxTotal struct {
	TaxAmount      Amount        `xml:"cbc:TaxAmount"`
	RoundingAmount *Amount       `xml:"cbc:RoundingAmount,omitempty"`
	TaxSubtotal    []TaxSubtotal `xml:"cac:TaxSubtotal,omitempty"`
}

// Invoice is the root UBL document
type Invoice struct {
	XMLName  xml.Name `xml:"Invoice"`
	Xmlns    string   `xml:"xmlns,attr"`
	XmlnsCac string   `xml:"xmlns:cac,attr"`
	XmlnsCbc string   `xml:"xmlns:cbc,attr"`
	XmlnsExt string   `xml:"xmlns:ext,attr"`

	// UBLExtensions holds the signature placeholder until the external
	// signing tool replaces it with the real signature block
	UBLExtensions string `xml:"ext:UBLExtensions"`

	ProfileID            string              `xml:"cbc:ProfileID"`
	ID                   string              `xml:"cbc:ID"`
	UUID                 string              `xml:"cbc:UUID"`
	IssueDate            string              `xml:"cbc:IssueDate"`
	IssueTime            string              `xml:"cbc:IssueTime"`
	InvoiceTypeCode      TypeCode            `xml:"cbc:InvoiceTypeCode"`
	Note                 string              `xml:"cbc:Note,omitempty"`
	DocumentCurrencyCode string              `xml:"cbc:DocumentCurrencyCode"`
	TaxCurrencyCode      string              `xml:"cbc:TaxCurrencyCode"`
	BillingReference     *BillingReference   `xml:"cac:BillingReference,omitempty"`
	AdditionalReferences []DocumentReference `xml:"cac:AdditionalDocumentReference"`
	Signature            *Signature          `xml:"cac:Signature,omitempty"`
	Supplier             AccountingParty     `xml:"cac:AccountingSupplierParty"`
	Customer             AccountingParty     `xml:"cac:AccountingCustomerParty"`
	AllowanceCharge      []AllowanceCharge   `xml:"cac:AllowanceCharge,omitempty"`
	TaxTotals            []TaxTotal          `xml:"cac:TaxTotal"`
	LegalMonetaryTotal   MonetaryTotal       `xml:"cac:LegalMonetaryTotal"`
	InvoiceLines         []InvoiceLine       `xml:"cac:InvoiceLine"`
}

// NewInvoice returns a root document with the authority namespaces and the
// signature placeholder preset
func NewInvoice() *Invoice {
	return &Invoice{
		Xmlns:         "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2",
		XmlnsCac:      "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2",
		XmlnsCbc:      "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2",
		XmlnsExt:      "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2",
		UBLExtensions: SignaturePlaceholder,
		ProfileID:     "reporting:1.0",
	}
}

// Marshal serializes the document with the XML declaration
func (inv *Invoice) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "    ")
	if err := enc.Encode(inv); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}
