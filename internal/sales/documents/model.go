// Package documents models quotations, sales orders and delivery notes: their
// lifecycle, validity window and conversion into the next document type.
package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

// DocumentType identifies the kind of sales document.
type DocumentType string

const (
	TypeQuotation    DocumentType = "Quotation"
	TypeSalesOrder   DocumentType = "Sales Order"
	TypeDeliveryNote DocumentType = "Delivery Note"
)

// IsValid checks if the document type is known.
func (t DocumentType) IsValid() bool {
	switch t {
	case TypeQuotation, TypeSalesOrder, TypeDeliveryNote:
		return true
	default:
		return false
	}
}

// Slug returns the URL-safe identifier of the type.
func (t DocumentType) Slug() string {
	return strings.ReplaceAll(strings.ToLower(string(t)), " ", "-")
}

// Prefix returns the short code used in document numbers.
func (t DocumentType) Prefix() string {
	switch t {
	case TypeQuotation:
		return "QTN"
	case TypeSalesOrder:
		return "SO"
	default:
		return "DN"
	}
}

// FormatNumber builds the public identifier of a persisted document, e.g. QTN-2026-00042.
func FormatNumber(t DocumentType, date time.Time, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", t.Prefix(), date.Year(), seq)
}

// ParseDocumentType accepts a type name ("Sales Order") or slug ("sales-order", "sales_order").
func ParseDocumentType(s string) (DocumentType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", " ", "-", " ").Replace(norm)
	for _, t := range []DocumentType{TypeQuotation, TypeSalesOrder, TypeDeliveryNote} {
		if strings.ToLower(string(t)) == norm {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, s)
}

// Status is the lifecycle state of a document. The legal set depends on the type.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusCancelled Status = "CANCELLED"

	// Quotation.
	StatusSent             Status = "SENT"
	StatusApproved         Status = "APPROVED"
	StatusRejected         Status = "REJECTED"
	StatusConvertedToOrder Status = "CONVERTED_TO_ORDER"

	// Sales order.
	StatusConfirmed          Status = "CONFIRMED"
	StatusPartiallyFulfilled Status = "PARTIALLY_FULFILLED"
	StatusFulfilled          Status = "FULFILLED"

	// Delivery note.
	StatusSubmitted Status = "SUBMITTED"
	StatusCompleted Status = "COMPLETED"
)

// CanEdit checks if a document in this status accepts ledger and header edits.
func (s Status) CanEdit() bool {
	return s == StatusDraft
}

// SalesDocument is a quotation, sales order or delivery note.
type SalesDocument struct {
	ID                string             `json:"id,omitempty"`
	Type              DocumentType       `json:"type"`
	CustomerReference string             `json:"customer_reference"`
	Currency          string             `json:"currency"`
	TransactionDate   time.Time          `json:"transaction_date"`
	Status            Status             `json:"status"`
	Lines             pricing.Ledger     `json:"lines"`
	Pricing           pricing.Parameters `json:"pricing"`
	ValidUntil        *time.Time         `json:"valid_until,omitempty"`
	LinkedSourceID    string             `json:"linked_source_id,omitempty"`
}

// New starts a draft document of the given type with the type's default pricing.
func New(docType DocumentType, customer, currency string, transactionDate time.Time, defaults Defaults) *SalesDocument {
	return &SalesDocument{
		Type:              docType,
		CustomerReference: customer,
		Currency:          strings.ToUpper(currency),
		TransactionDate:   transactionDate,
		Status:            StatusDraft,
		Pricing:           defaults.For(docType),
	}
}

// Totals recomputes the unrounded totals of the document.
func (d *SalesDocument) Totals() pricing.Totals {
	return pricing.ComputeTotals(&d.Lines, d.Pricing)
}

// DisplayTotals returns the totals rounded to the document currency.
func (d *SalesDocument) DisplayTotals() pricing.Totals {
	return d.Totals().Round(d.Currency)
}

// IsNew reports whether the document has never been persisted.
func (d *SalesDocument) IsNew() bool {
	return d.ID == ""
}

// Clone returns a deep copy of the document.
func (d *SalesDocument) Clone() *SalesDocument {
	if d == nil {
		return nil
	}
	out := *d
	out.Lines = *d.Lines.Clone()
	if d.ValidUntil != nil {
		v := *d.ValidUntil
		out.ValidUntil = &v
	}
	return &out
}

// Validate checks the header fields and pricing parameters.
func (d *SalesDocument) Validate() error {
	if !d.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownDocumentType, d.Type)
	}
	if strings.TrimSpace(d.CustomerReference) == "" {
		return fmt.Errorf("%w: customer is required", ErrInvalidDocument)
	}
	if !pricing.ValidCurrency(d.Currency) {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidDocument, d.Currency)
	}
	if !ValidStatus(d.Type, d.Status) {
		return fmt.Errorf("%w: status %s is not valid for %s", ErrInvalidDocument, d.Status, d.Type)
	}
	if d.ValidUntil != nil {
		if d.Type != TypeQuotation {
			return fmt.Errorf("%w: only quotations carry a validity date", ErrInvalidDocument)
		}
		if dateOf(*d.ValidUntil).Before(dateOf(d.TransactionDate)) {
			return fmt.Errorf("%w: valid until precedes transaction date", ErrInvalidDocument)
		}
	}
	if d.LinkedSourceID != "" && d.Type == TypeQuotation {
		return fmt.Errorf("%w: quotations have no source document", ErrInvalidDocument)
	}
	if err := d.Pricing.Validate(); err != nil {
		return err
	}
	return nil
}
