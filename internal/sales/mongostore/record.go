package mongostore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

type documentRecord struct {
	ID              string        `bson:"_id"`
	Type            string        `bson:"type"`
	Customer        string        `bson:"customer_reference"`
	Currency        string        `bson:"currency"`
	TransactionDate time.Time     `bson:"transaction_date"`
	Status          string        `bson:"status"`
	ValidUntil      *time.Time    `bson:"valid_until,omitempty"`
	LinkedSourceID  string        `bson:"linked_source_id,omitempty"`
	Pricing         pricingRecord `bson:"pricing"`
	Lines           []lineRecord  `bson:"lines"`
	Totals          totalsRecord  `bson:"totals"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}

type pricingRecord struct {
	TaxRatePercent            string `bson:"tax_rate_percent"`
	AdditionalCharges         string `bson:"additional_charges"`
	AdditionalDiscountPercent string `bson:"additional_discount_percent"`
	DiscountAmount            string `bson:"discount_amount"`
	ApplyDiscountOn           string `bson:"apply_discount_on"`
}

type lineRecord struct {
	ItemReference string `bson:"item_reference"`
	Description   string `bson:"description"`
	Quantity      string `bson:"quantity"`
	UnitPrice     string `bson:"unit_price"`
	LineTotal     string `bson:"line_total"`
}

// totalsRecord is written for reporting queries; reads always recompute.
type totalsRecord struct {
	Subtotal             string `bson:"subtotal"`
	TotalTaxesAndCharges string `bson:"total_taxes_and_charges"`
	DiscountAmount       string `bson:"discount_amount"`
	GrandTotal           string `bson:"grand_total"`
}

func recordFrom(doc *documents.SalesDocument) documentRecord {
	lines := doc.Lines.Lines()
	recLines := make([]lineRecord, len(lines))
	for i, l := range lines {
		recLines[i] = lineRecord{
			ItemReference: l.ItemReference,
			Description:   l.Description,
			Quantity:      l.Quantity.String(),
			UnitPrice:     l.UnitPrice.String(),
			LineTotal:     l.LineTotal.String(),
		}
	}
	totals := doc.DisplayTotals()
	return documentRecord{
		ID:              doc.ID,
		Type:            string(doc.Type),
		Customer:        doc.CustomerReference,
		Currency:        doc.Currency,
		TransactionDate: doc.TransactionDate.UTC(),
		Status:          string(doc.Status),
		ValidUntil:      doc.ValidUntil,
		LinkedSourceID:  doc.LinkedSourceID,
		Pricing: pricingRecord{
			TaxRatePercent:            doc.Pricing.TaxRatePercent.String(),
			AdditionalCharges:         doc.Pricing.AdditionalCharges.String(),
			AdditionalDiscountPercent: doc.Pricing.AdditionalDiscountPercent.String(),
			DiscountAmount:            doc.Pricing.DiscountAmount.String(),
			ApplyDiscountOn:           string(doc.Pricing.ApplyDiscountOn),
		},
		Lines: recLines,
		Totals: totalsRecord{
			Subtotal:             totals.Subtotal.String(),
			TotalTaxesAndCharges: totals.TotalTaxesAndCharges.String(),
			DiscountAmount:       totals.DiscountAmount.String(),
			GrandTotal:           totals.GrandTotal.String(),
		},
	}
}

func (r documentRecord) toDocument() (*documents.SalesDocument, error) {
	params, err := r.Pricing.parameters()
	if err != nil {
		return nil, fmt.Errorf("mongostore: document %s: %w", r.ID, err)
	}

	items := make([]pricing.LineItem, 0, len(r.Lines))
	for i, l := range r.Lines {
		qty, err := decimal.NewFromString(l.Quantity)
		if err != nil {
			return nil, fmt.Errorf("mongostore: document %s line %d: %w", r.ID, i+1, err)
		}
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("mongostore: document %s line %d: %w", r.ID, i+1, err)
		}
		item, err := pricing.NewLineItem(l.ItemReference, l.Description, qty, price)
		if err != nil {
			return nil, fmt.Errorf("mongostore: document %s line %d: %w", r.ID, i+1, err)
		}
		items = append(items, item)
	}
	ledger, err := pricing.NewLedger(items...)
	if err != nil {
		return nil, err
	}

	return &documents.SalesDocument{
		ID:                r.ID,
		Type:              documents.DocumentType(r.Type),
		CustomerReference: r.Customer,
		Currency:          r.Currency,
		TransactionDate:   r.TransactionDate,
		Status:            documents.Status(r.Status),
		Lines:             *ledger,
		Pricing:           params,
		ValidUntil:        r.ValidUntil,
		LinkedSourceID:    r.LinkedSourceID,
	}, nil
}

func (p pricingRecord) parameters() (pricing.Parameters, error) {
	out := pricing.DefaultParameters()
	for _, f := range []struct {
		raw string
		dst *decimal.Decimal
	}{
		{p.TaxRatePercent, &out.TaxRatePercent},
		{p.AdditionalCharges, &out.AdditionalCharges},
		{p.AdditionalDiscountPercent, &out.AdditionalDiscountPercent},
		{p.DiscountAmount, &out.DiscountAmount},
	} {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return out, err
		}
		*f.dst = v
	}
	if p.ApplyDiscountOn != "" {
		out.ApplyDiscountOn = pricing.DiscountBase(p.ApplyDiscountOn)
	}
	return out, out.Validate()
}
