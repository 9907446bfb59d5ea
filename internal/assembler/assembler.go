// Package assembler builds the canonical UBL tax document from normalized
// request data. Assembly is a pure function of the request and the injected
// clock: identical input and clock reading produce byte-identical output.
// Arithmetic consistency of the caller's figures is not re-validated here;
// only structural requirements are enforced.
package assembler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/domain/entity"
	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/ubl"
)

// ReportingCurrency is the currency the authority requires tax totals in
const ReportingCurrency = "SAR"

var oneHundred = decimal.NewFromInt(100)

// Assembler builds unsigned UBL documents
type Assembler struct {
	now func() time.Time
}

// New creates an assembler with the given clock
func New(now func() time.Time) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble builds the unsigned document for the request
func (a *Assembler) Assemble(req Request) (*ubl.Invoice, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	profile := resolveProfile(req)
	currency := req.Currency
	if currency == "" {
		currency = ReportingCurrency
	}

	issuedAt := a.now().In(entity.AuthorityLocation())

	inv := ubl.NewInvoice()
	inv.ID = req.SerialNumber
	inv.UUID = req.UUID
	inv.IssueDate = issuedAt.Format("2006-01-02")
	inv.IssueTime = issuedAt.Format("15:04:05")
	inv.InvoiceTypeCode = typeCode(req.Kind, profile)
	inv.Note = req.Note
	inv.DocumentCurrencyCode = currency
	inv.TaxCurrencyCode = ReportingCurrency

	if req.Kind == entity.KindCreditNote || req.Kind == entity.KindDebitNote {
		inv.BillingReference = &ubl.BillingReference{
			InvoiceDocumentReference: ubl.DocumentReference{ID: req.OriginalInvoiceID},
		}
	}

	inv.AdditionalReferences = chainReferences(req)
	inv.Signature = &ubl.Signature{
		ID:              "urn:oasis:names:specification:ubl:signature:Invoice",
		SignatureMethod: "urn:oasis:names:specification:ubl:dsig:enveloped:xades",
	}
	inv.Supplier = accountingParty(req.Seller)
	inv.Customer = accountingParty(req.Buyer)

	groups := newGroupAccumulator()
	lineTotal := decimal.Zero

	for i, line := range req.Lines {
		built, net, tax := a.buildLine(i+1, line, currency)
		inv.InvoiceLines = append(inv.InvoiceLines, built)
		lineTotal = lineTotal.Add(net)

		category, percent, reason := lineCategory(line)
		groups.add(category, percent, net, tax, reason)
	}

	// Document-level allowances and charges adjust the monetary totals
	// without re-entering the per-line tax groups
	allowanceTotal := decimal.Zero
	chargeTotal := decimal.Zero
	for _, ac := range req.Allowances {
		inv.AllowanceCharge = append(inv.AllowanceCharge, documentAllowance(ac, currency))
		if ac.IsCharge {
			chargeTotal = chargeTotal.Add(ac.Amount.Round(2))
		} else {
			allowanceTotal = allowanceTotal.Add(ac.Amount.Round(2))
		}
	}

	prepaid := decimal.Zero
	if req.Prepayment != nil {
		line, settled := prepaymentLine(len(inv.InvoiceLines)+1, *req.Prepayment, currency)
		inv.InvoiceLines = append(inv.InvoiceLines, line)
		prepaid = settled
	}

	taxAmount := groups.totalTax().Round(2)
	taxExclusive := lineTotal.Sub(allowanceTotal).Add(chargeTotal).Round(2)
	taxInclusive := taxExclusive.Add(taxAmount)
	payable := taxInclusive.Sub(prepaid)

	inv.TaxTotals = taxTotals(groups, taxAmount, currency, req.ExchangeRate)
	inv.LegalMonetaryTotal = monetaryTotal(lineTotal, taxExclusive, taxInclusive, allowanceTotal, chargeTotal, prepaid, payable, currency)

	return inv, nil
}

func validate(req Request) error {
	if !req.Kind.IsValid() {
		return fmt.Errorf("%w: unknown invoice kind %q", entity.ErrValidation, req.Kind)
	}
	if len(req.Lines) == 0 {
		return fmt.Errorf("%w: invoice %s has no line items", entity.ErrValidation, req.SerialNumber)
	}
	if req.Kind != entity.KindInvoice && req.OriginalInvoiceID == "" {
		return fmt.Errorf("%w: %s requires a reference to the original invoice", entity.ErrValidation, req.Kind)
	}
	if resolveProfile(req) == entity.ProfileStandard {
		if req.Buyer.Name == "" || req.Buyer.VATNumber == "" {
			return fmt.Errorf("%w: standard invoice %s requires buyer name and VAT number", entity.ErrValidation, req.SerialNumber)
		}
	}
	return nil
}

// ResolveProfile picks the authority profile: an explicit type name wins,
// otherwise a VAT-registered buyer makes the document standard (B2B)
func ResolveProfile(typeName string, buyer Party) entity.Profile {
	switch typeName {
	case "standard":
		return entity.ProfileStandard
	case "simplified":
		return entity.ProfileSimplified
	}
	if buyer.VATNumber != "" {
		return entity.ProfileStandard
	}
	return entity.ProfileSimplified
}

func resolveProfile(req Request) entity.Profile {
	return ResolveProfile(req.TypeName, req.Buyer)
}

func typeCode(kind entity.InvoiceKind, profile entity.Profile) ubl.TypeCode {
	code := ubl.TypeCodeInvoice
	switch kind {
	case entity.KindCreditNote:
		code = ubl.TypeCodeCreditNote
	case entity.KindDebitNote:
		code = ubl.TypeCodeDebitNote
	}

	name := ubl.TransactionSimplified
	if profile == entity.ProfileStandard {
		name = ubl.TransactionStandard
	}

	return ubl.TypeCode{Name: name, Value: code}
}

// chainReferences emits the invoice counter, the previous-invoice hash and
// the QR placeholder the signing tool fills in
func chainReferences(req Request) []ubl.DocumentReference {
	return []ubl.DocumentReference{
		{
			ID:   ubl.RefCounterValue,
			UUID: strconv.FormatInt(req.Counter, 10),
		},
		{
			ID: ubl.RefPreviousHash,
			Attachment: &ubl.BinaryAttachment{
				EmbeddedDocumentBinaryObject: ubl.EmbeddedObject{
					MimeCode: "text/plain",
					Value:    req.PreviousHash,
				},
			},
		},
		{
			ID: ubl.RefQR,
			Attachment: &ubl.BinaryAttachment{
				EmbeddedDocumentBinaryObject: ubl.EmbeddedObject{
					MimeCode: "text/plain",
					Value:    ubl.QRPlaceholder,
				},
			},
		},
	}
}

func accountingParty(p Party) ubl.AccountingParty {
	party := ubl.Party{
		CompanyID:        p.VATNumber,
		RegistrationName: p.Name,
	}
	if p.VATNumber != "" {
		party.TaxSchemeID = "VAT"
	}
	if p.ID != "" {
		party.Identification = &ubl.PartyIdentification{SchemeID: p.SchemeID, Value: p.ID}
	}
	if p.Street != "" || p.City != "" {
		party.PostalAddress = &ubl.PostalAddress{
			StreetName:      p.Street,
			BuildingNumber:  p.BuildingNumber,
			CitySubdivision: p.District,
			CityName:        p.City,
			PostalZone:      p.PostalZone,
			CountryCode:     p.CountryCode,
		}
	}
	return ubl.AccountingParty{Party: party}
}

// lineCategory resolves the VAT category and rate for a line: explicit
// category wins, otherwise zero percent means zero-rated and anything else
// is standard rated
func lineCategory(line Line) (category string, percent decimal.Decimal, exemptionReason string) {
	percent = line.VATPercent
	if line.VATCategory != "" {
		return line.VATCategory, percent, line.ExemptionReason
	}
	if percent.IsZero() {
		return CategoryZeroRated, percent, line.ExemptionReason
	}
	return CategoryStandard, percent, ""
}

// buildLine computes the rounded net taxable amount (gross price minus line
// allowances plus line charges) and the line VAT
func (a *Assembler) buildLine(id int, line Line, currency string) (ubl.InvoiceLine, decimal.Decimal, decimal.Decimal) {
	gross := line.Quantity.Mul(line.UnitPrice)

	net := gross
	var allowances []ubl.AllowanceCharge
	for _, ac := range line.Allowances {
		amount := ac.Amount.Round(2)
		if ac.IsCharge {
			net = net.Add(amount)
		} else {
			net = net.Sub(amount)
		}
		allowances = append(allowances, ubl.AllowanceCharge{
			ChargeIndicator: ac.IsCharge,
			Reason:          ac.Reason,
			Amount:          ubl.NewAmount(amount, currency),
		})
	}
	net = net.Round(2)

	category, percent, _ := lineCategory(line)
	tax := net.Mul(percent).Div(oneHundred).Round(2)

	unitCode := line.UnitCode
	if unitCode == "" {
		unitCode = "PCE"
	}

	rounding := ubl.NewAmount(net.Add(tax), currency)
	built := ubl.InvoiceLine{
		ID:                  strconv.Itoa(id),
		InvoicedQuantity:    ubl.Quantity{UnitCode: unitCode, Value: line.Quantity.String()},
		LineExtensionAmount: ubl.NewAmount(net, currency),
		AllowanceCharge:     allowances,
		TaxTotal: &ubl.LineTaxTotal{
			TaxAmount:      ubl.NewAmount(tax, currency),
			RoundingAmount: &rounding,
		},
		Item: ubl.Item{
			Name: line.Name,
			ClassifiedTaxCategory: ubl.TaxCategory{
				ID:          category,
				Percent:     percent.StringFixed(2),
				TaxSchemeID: "VAT",
			},
		},
		Price: ubl.Price{PriceAmount: ubl.NewAmount(line.UnitPrice, currency)},
	}

	return built, net, tax
}

// prepaymentLine injects the synthetic zero-quantity line referencing a
// prior prepayment invoice. It carries the prepaid tax breakdown but
// contributes nothing to the line extension total.
func prepaymentLine(id int, prep Prepayment, currency string) (ubl.InvoiceLine, decimal.Decimal) {
	category := prep.VATCategory
	if category == "" {
		category = CategoryStandard
	}
	tax := prep.Amount.Mul(prep.VATPercent).Div(oneHundred).Round(2)
	settled := prep.Amount.Add(tax).Round(2)

	line := ubl.InvoiceLine{
		ID:                  strconv.Itoa(id),
		InvoicedQuantity:    ubl.Quantity{UnitCode: "PCE", Value: "0"},
		LineExtensionAmount: ubl.NewAmount(decimal.Zero, currency),
		DocumentReference: &ubl.DocumentReference{
			ID:               prep.InvoiceID,
			UUID:             prep.UUID,
			IssueDate:        prep.IssueDate,
			DocumentTypeCode: "386",
		},
		TaxTotal: &ubl.LineTaxTotal{
			TaxAmount: ubl.NewAmount(decimal.Zero, currency),
			TaxSubtotal: []ubl.TaxSubtotal{
				{
					TaxableAmount: ubl.NewAmount(prep.Amount.Round(2), currency),
					TaxAmount:     ubl.NewAmount(tax, currency),
					TaxCategory: ubl.TaxCategory{
						ID:          category,
						Percent:     prep.VATPercent.StringFixed(2),
						TaxSchemeID: "VAT",
					},
				},
			},
		},
		Item: ubl.Item{
			Name: "Prepayment adjustment",
			ClassifiedTaxCategory: ubl.TaxCategory{
				ID:          category,
				Percent:     prep.VATPercent.StringFixed(2),
				TaxSchemeID: "VAT",
			},
		},
		Price: ubl.Price{PriceAmount: ubl.NewAmount(decimal.Zero, currency)},
	}

	return line, settled
}

func documentAllowance(ac AllowanceCharge, currency string) ubl.AllowanceCharge {
	built := ubl.AllowanceCharge{
		ChargeIndicator: ac.IsCharge,
		Reason:          ac.Reason,
		Amount:          ubl.NewAmount(ac.Amount.Round(2), currency),
	}
	if ac.VATCategory != "" {
		built.TaxCategory = &ubl.TaxCategory{
			ID:          ac.VATCategory,
			Percent:     ac.VATPercent.StringFixed(2),
			TaxSchemeID: "VAT",
		}
	}
	return built
}

// taxTotals renders the tax breakdown in the document currency and, when it
// differs from the reporting currency, a converted reporting-currency total
func taxTotals(groups *groupAccumulator, taxAmount decimal.Decimal, currency string, exchangeRate decimal.Decimal) []ubl.TaxTotal {
	totals := []ubl.TaxTotal{
		{
			TaxAmount:   ubl.NewAmount(taxAmount, currency),
			TaxSubtotal: groups.subtotals(currency),
		},
	}

	if currency != ReportingCurrency {
		rate := exchangeRate
		if rate.IsZero() {
			rate = decimal.NewFromInt(1)
		}
		totals = append(totals, ubl.TaxTotal{
			TaxAmount: ubl.NewAmount(taxAmount.Mul(rate).Round(2), ReportingCurrency),
		})
	}

	return totals
}

func monetaryTotal(lineTotal, taxExclusive, taxInclusive, allowanceTotal, chargeTotal, prepaid, payable decimal.Decimal, currency string) ubl.MonetaryTotal {
	total := ubl.MonetaryTotal{
		LineExtensionAmount: ubl.NewAmount(lineTotal.Round(2), currency),
		TaxExclusiveAmount:  ubl.NewAmount(taxExclusive, currency),
		TaxInclusiveAmount:  ubl.NewAmount(taxInclusive, currency),
		PayableAmount:       ubl.NewAmount(payable, currency),
	}
	if allowanceTotal.IsPositive() {
		amount := ubl.NewAmount(allowanceTotal, currency)
		total.AllowanceTotalAmount = &amount
	}
	if chargeTotal.IsPositive() {
		amount := ubl.NewAmount(chargeTotal, currency)
		total.ChargeTotalAmount = &amount
	}
	if prepaid.IsPositive() {
		amount := ubl.NewAmount(prepaid, currency)
		total.PrepaidAmount = &amount
	}
	return total
}
