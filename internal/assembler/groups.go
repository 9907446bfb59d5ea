package assembler

import (
	"github.com/shopspring/decimal"

	"github.com/thowfik-halasaudi/zatca-einvoicing-core/internal/ubl"
)

// taxGroup accumulates the taxable base and tax for one (category, rate) pair
type taxGroup struct {
	category        string
	percent         decimal.Decimal
	exemptionReason string
	taxable         decimal.Decimal
	tax             decimal.Decimal
}

// groupAccumulator groups line amounts by (category, rate), preserving
// first-seen order so that assembly stays deterministic
type groupAccumulator struct {
	order  []string
	groups map[string]*taxGroup
}

func newGroupAccumulator() *groupAccumulator {
	return &groupAccumulator{groups: make(map[string]*taxGroup)}
}

func (g *groupAccumulator) add(category string, percent, taxable, tax decimal.Decimal, exemptionReason string) {
	key := category + "|" + percent.String()

	group, exists := g.groups[key]
	if !exists {
		group = &taxGroup{
			category:        category,
			percent:         percent,
			exemptionReason: exemptionReason,
		}
		g.groups[key] = group
		g.order = append(g.order, key)
	}

	group.taxable = group.taxable.Add(taxable)
	group.tax = group.tax.Add(tax)
}

// totalTax sums the tax across all groups
func (g *groupAccumulator) totalTax() decimal.Decimal {
	total := decimal.Zero
	for _, key := range g.order {
		total = total.Add(g.groups[key].tax)
	}
	return total
}

// subtotals renders one UBL tax subtotal per group, in first-seen order
func (g *groupAccumulator) subtotals(currency string) []ubl.TaxSubtotal {
	subtotals := make([]ubl.TaxSubtotal, 0, len(g.order))
	for _, key := range g.order {
		group := g.groups[key]
		subtotals = append(subtotals, ubl.TaxSubtotal{
			TaxableAmount: ubl.NewAmount(group.taxable, currency),
			TaxAmount:     ubl.NewAmount(group.tax, currency),
			TaxCategory: ubl.TaxCategory{
				ID:              group.category,
				Percent:         group.percent.StringFixed(2),
				ExemptionReason: group.exemptionReason,
				TaxSchemeID:     "VAT",
			},
		})
	}
	return subtotals
}
