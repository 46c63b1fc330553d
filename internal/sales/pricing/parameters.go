package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountBase selects the amount a percentage discount is applied to.
type DiscountBase string

const (
	DiscountOnGrandTotal DiscountBase = "Grand Total"
	DiscountOnNetTotal   DiscountBase = "Net Total"
)

// IsValid checks if the discount base is known.
func (b DiscountBase) IsValid() bool {
	return b == DiscountOnGrandTotal || b == DiscountOnNetTotal
}

var hundred = decimal.NewFromInt(100)

// Parameters are the document-level pricing inputs applied on top of the ledger.
type Parameters struct {
	TaxRatePercent            decimal.Decimal `json:"tax_rate_percent"`
	AdditionalCharges         decimal.Decimal `json:"additional_charges"`
	AdditionalDiscountPercent decimal.Decimal `json:"additional_discount_percent"`
	DiscountAmount            decimal.Decimal `json:"discount_amount"`
	ApplyDiscountOn           DiscountBase    `json:"apply_discount_on"`
}

// DefaultParameters returns zero tax, charges and discounts applied on the grand total.
func DefaultParameters() Parameters {
	return Parameters{
		TaxRatePercent:            decimal.Zero,
		AdditionalCharges:         decimal.Zero,
		AdditionalDiscountPercent: decimal.Zero,
		DiscountAmount:            decimal.Zero,
		ApplyDiscountOn:           DiscountOnGrandTotal,
	}
}

// RawParameters holds pricing parameters as decimal strings, the form they
// take in YAML files and text columns. Empty fields keep their defaults.
type RawParameters struct {
	TaxRatePercent            string `yaml:"tax_rate_percent"`
	AdditionalCharges         string `yaml:"additional_charges"`
	AdditionalDiscountPercent string `yaml:"additional_discount_percent"`
	DiscountAmount            string `yaml:"discount_amount"`
	ApplyDiscountOn           string `yaml:"apply_discount_on"`
}

// ParseParameters decodes raw on top of DefaultParameters and validates the result.
func ParseParameters(raw RawParameters) (Parameters, error) {
	p := DefaultParameters()
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"tax_rate_percent", raw.TaxRatePercent, &p.TaxRatePercent},
		{"additional_charges", raw.AdditionalCharges, &p.AdditionalCharges},
		{"additional_discount_percent", raw.AdditionalDiscountPercent, &p.AdditionalDiscountPercent},
		{"discount_amount", raw.DiscountAmount, &p.DiscountAmount},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return p, fmt.Errorf("%w: %s %q is not a number", ErrInvalidParameters, f.name, f.raw)
		}
		*f.dst = v
	}
	if raw.ApplyDiscountOn != "" {
		p.ApplyDiscountOn = DiscountBase(raw.ApplyDiscountOn)
	}
	return p, p.Validate()
}

// Validate checks the parameter ranges.
func (p Parameters) Validate() error {
	if !inPercentRange(p.TaxRatePercent) {
		return fmt.Errorf("%w: tax rate %s outside 0-100", ErrInvalidParameters, p.TaxRatePercent)
	}
	if !inPercentRange(p.AdditionalDiscountPercent) {
		return fmt.Errorf("%w: discount percent %s outside 0-100", ErrInvalidParameters, p.AdditionalDiscountPercent)
	}
	if p.AdditionalCharges.IsNegative() {
		return fmt.Errorf("%w: additional charges must not be negative", ErrInvalidParameters)
	}
	if p.DiscountAmount.IsNegative() {
		return fmt.Errorf("%w: discount amount must not be negative", ErrInvalidParameters)
	}
	if !p.ApplyDiscountOn.IsValid() {
		return fmt.Errorf("%w: apply discount on %q", ErrInvalidParameters, p.ApplyDiscountOn)
	}
	return nil
}

func inPercentRange(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(hundred)
}
