package sales

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

// Date accepts either a calendar date ("2026-03-10") or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

type CreateDraftRequest struct {
	Type            string `json:"type" validate:"required"`
	Customer        string `json:"customer" validate:"required,max=140"`
	Currency        string `json:"currency" validate:"required,len=3,alpha"`
	TransactionDate *Date  `json:"transaction_date,omitempty"`
	ValidUntil      *Date  `json:"valid_until,omitempty"`
}

type AddLineRequest struct {
	ItemReference string           `json:"item_reference" validate:"required,max=140"`
	Description   string           `json:"description" validate:"max=1000"`
	Quantity      *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
}

type UpdateLineRequest struct {
	Field string `json:"field" validate:"required,oneof=item_reference description quantity unit_price"`
	Value string `json:"value" validate:"max=1000"`
}

type PricingRequest struct {
	TaxRatePercent            decimal.Decimal `json:"tax_rate_percent"`
	AdditionalCharges         decimal.Decimal `json:"additional_charges"`
	AdditionalDiscountPercent decimal.Decimal `json:"additional_discount_percent"`
	DiscountAmount            decimal.Decimal `json:"discount_amount"`
	ApplyDiscountOn           string          `json:"apply_discount_on" validate:"omitempty,oneof='Grand Total' 'Net Total'"`
}

func (r PricingRequest) parameters() pricing.Parameters {
	base := pricing.DiscountBase(r.ApplyDiscountOn)
	if base == "" {
		base = pricing.DiscountOnGrandTotal
	}
	return pricing.Parameters{
		TaxRatePercent:            r.TaxRatePercent,
		AdditionalCharges:         r.AdditionalCharges,
		AdditionalDiscountPercent: r.AdditionalDiscountPercent,
		DiscountAmount:            r.DiscountAmount,
		ApplyDiscountOn:           base,
	}
}

type UpdateHeaderRequest struct {
	Customer        *string `json:"customer,omitempty" validate:"omitempty,min=1,max=140"`
	Currency        *string `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	TransactionDate *Date   `json:"transaction_date,omitempty"`
	ValidUntil      *Date   `json:"valid_until,omitempty"`
}

type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type ConvertRequest struct {
	Target string `json:"target" validate:"required"`
}
