package pricing

import "github.com/shopspring/decimal"

// Totals is the derived money summary of a ledger under a set of parameters.
// It is recomputed from its inputs and never stored on its own.
type Totals struct {
	Subtotal             decimal.Decimal `json:"subtotal"`
	NetTotal             decimal.Decimal `json:"net_total"`
	TaxAmount            decimal.Decimal `json:"tax_amount"`
	TotalTaxesAndCharges decimal.Decimal `json:"total_taxes_and_charges"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	GrandTotal           decimal.Decimal `json:"grand_total"`
}

// ComputeTotals derives the totals of a ledger. A fixed discount amount, when
// positive, replaces the percentage discount instead of adding to it. The
// result is unrounded; call Round before display or persistence.
func ComputeTotals(ledger *Ledger, params Parameters) Totals {
	net := ledger.Subtotal()
	tax := net.Mul(params.TaxRatePercent).Div(hundred)
	taxesAndCharges := tax.Add(params.AdditionalCharges)

	base := net.Add(taxesAndCharges)
	if params.ApplyDiscountOn == DiscountOnNetTotal {
		base = net
	}

	discount := base.Mul(params.AdditionalDiscountPercent).Div(hundred)
	if params.DiscountAmount.IsPositive() {
		discount = params.DiscountAmount
	}

	grand := net.Add(taxesAndCharges).Sub(discount)
	if grand.IsNegative() {
		grand = decimal.Zero
	}

	return Totals{
		Subtotal:             net,
		NetTotal:             net,
		TaxAmount:            tax,
		TotalTaxesAndCharges: taxesAndCharges,
		DiscountAmount:       discount,
		GrandTotal:           grand,
	}
}

// Round rounds every amount to the minor unit of the given ISO 4217 currency.
func (t Totals) Round(currencyCode string) Totals {
	places := MinorUnits(currencyCode)
	return Totals{
		Subtotal:             t.Subtotal.Round(places),
		NetTotal:             t.NetTotal.Round(places),
		TaxAmount:            t.TaxAmount.Round(places),
		TotalTaxesAndCharges: t.TotalTaxesAndCharges.Round(places),
		DiscountAmount:       t.DiscountAmount.Round(places),
		GrandTotal:           t.GrandTotal.Round(places),
	}
}
