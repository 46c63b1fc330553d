package erpnext

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

const (
	chargeOnNetTotal = "On Net Total"
	chargeActual     = "Actual"
	dateLayout       = time.DateOnly
)

// amount is a decimal written as a bare JSON number, the way Frappe emits floats.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*a = amount(decimal.Zero)
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = amount(d)
	return nil
}

func (a amount) dec() decimal.Decimal { return decimal.Decimal(a) }

type erpItem struct {
	ItemCode          string `json:"item_code"`
	Description       string `json:"description,omitempty"`
	Qty               amount `json:"qty"`
	Rate              amount `json:"rate"`
	Amount            amount `json:"amount"`
	DeliveryDate      string `json:"delivery_date,omitempty"`
	PrevdocDocname    string `json:"prevdoc_docname,omitempty"`
	AgainstSalesOrder string `json:"against_sales_order,omitempty"`
}

type erpTax struct {
	ChargeType  string `json:"charge_type"`
	Description string `json:"description"`
	Rate        amount `json:"rate"`
	TaxAmount   amount `json:"tax_amount"`
}

// erpDocument covers the Quotation, Sales Order and Delivery Note doctypes.
type erpDocument struct {
	Doctype                      string    `json:"doctype,omitempty"`
	Name                         string    `json:"name,omitempty"`
	QuotationTo                  string    `json:"quotation_to,omitempty"`
	PartyName                    string    `json:"party_name,omitempty"`
	Customer                     string    `json:"customer,omitempty"`
	Currency                     string    `json:"currency"`
	TransactionDate              string    `json:"transaction_date,omitempty"`
	PostingDate                  string    `json:"posting_date,omitempty"`
	DeliveryDate                 string    `json:"delivery_date,omitempty"`
	ValidTill                    *string   `json:"valid_till,omitempty"`
	Status                       string    `json:"status,omitempty"`
	Docstatus                    int       `json:"docstatus"`
	ApplyDiscountOn              string    `json:"apply_discount_on,omitempty"`
	AdditionalDiscountPercentage amount    `json:"additional_discount_percentage"`
	DiscountAmount               amount    `json:"discount_amount"`
	Items                        []erpItem `json:"items"`
	Taxes                        []erpTax  `json:"taxes"`
}

type erpStatus struct {
	docstatus int
	status    string
}

var statusMap = map[documents.DocumentType]map[documents.Status]erpStatus{
	documents.TypeQuotation: {
		documents.StatusDraft:            {0, "Draft"},
		documents.StatusSent:             {1, "Open"},
		documents.StatusApproved:         {1, "Replied"},
		documents.StatusRejected:         {1, "Lost"},
		documents.StatusConvertedToOrder: {1, "Ordered"},
		documents.StatusCancelled:        {2, "Cancelled"},
	},
	documents.TypeSalesOrder: {
		documents.StatusDraft:              {0, "Draft"},
		documents.StatusConfirmed:          {1, "To Deliver and Bill"},
		documents.StatusPartiallyFulfilled: {1, "To Deliver"},
		documents.StatusFulfilled:          {1, "Completed"},
		documents.StatusCancelled:          {2, "Cancelled"},
	},
	documents.TypeDeliveryNote: {
		documents.StatusDraft:     {0, "Draft"},
		documents.StatusSubmitted: {1, "To Bill"},
		documents.StatusCompleted: {1, "Completed"},
		documents.StatusCancelled: {2, "Cancelled"},
	},
}

// readStatuses are statuses ERPNext sets on its own. They map onto ours when
// reading and are never written back. Expiry is classified at read time.
var readStatuses = map[documents.DocumentType]map[erpStatus]documents.Status{
	documents.TypeQuotation: {
		{1, "Expired"}:           documents.StatusSent,
		{1, "Partially Ordered"}: documents.StatusConvertedToOrder,
	},
	documents.TypeSalesOrder: {
		{1, "To Bill"}: documents.StatusFulfilled,
	},
}

func toERPStatus(docType documents.DocumentType, s documents.Status) (erpStatus, error) {
	st, ok := statusMap[docType][s]
	if !ok {
		return erpStatus{}, fmt.Errorf("erpnext: no %s status for %s", docType, s)
	}
	return st, nil
}

func fromERPStatus(docType documents.DocumentType, docstatus int, status string) (documents.Status, error) {
	for ours, theirs := range statusMap[docType] {
		if theirs.status == status && theirs.docstatus == docstatus {
			return ours, nil
		}
	}
	if ours, ok := readStatuses[docType][erpStatus{docstatus, status}]; ok {
		return ours, nil
	}
	switch docstatus {
	case 0:
		return documents.StatusDraft, nil
	case 2:
		return documents.StatusCancelled, nil
	}
	return "", fmt.Errorf("erpnext: unmapped %s status %q (docstatus %d)", docType, status, docstatus)
}

func toERP(docType documents.DocumentType, doc *documents.SalesDocument) (erpDocument, error) {
	st, err := toERPStatus(docType, doc.Status)
	if err != nil {
		return erpDocument{}, err
	}
	date := doc.TransactionDate.Format(dateLayout)
	out := erpDocument{
		Doctype:                      string(docType),
		Currency:                     doc.Currency,
		Status:                       st.status,
		Docstatus:                    st.docstatus,
		ApplyDiscountOn:              string(doc.Pricing.ApplyDiscountOn),
		AdditionalDiscountPercentage: amount(doc.Pricing.AdditionalDiscountPercent),
		DiscountAmount:               amount(doc.Pricing.DiscountAmount),
	}

	switch docType {
	case documents.TypeQuotation:
		out.QuotationTo = "Customer"
		out.PartyName = doc.CustomerReference
		out.TransactionDate = date
		if doc.ValidUntil != nil {
			v := doc.ValidUntil.Format(dateLayout)
			out.ValidTill = &v
		}
	case documents.TypeSalesOrder:
		out.Customer = doc.CustomerReference
		out.TransactionDate = date
		out.DeliveryDate = date
	case documents.TypeDeliveryNote:
		out.Customer = doc.CustomerReference
		out.PostingDate = date
	}

	for _, l := range doc.Lines.Lines() {
		item := erpItem{
			ItemCode:    l.ItemReference,
			Description: l.Description,
			Qty:         amount(l.Quantity),
			Rate:        amount(l.UnitPrice),
			Amount:      amount(l.LineTotal),
		}
		switch docType {
		case documents.TypeSalesOrder:
			item.DeliveryDate = date
			item.PrevdocDocname = doc.LinkedSourceID
		case documents.TypeDeliveryNote:
			item.AgainstSalesOrder = doc.LinkedSourceID
		}
		out.Items = append(out.Items, item)
	}

	out.Taxes = []erpTax{}
	if !doc.Pricing.TaxRatePercent.IsZero() {
		out.Taxes = append(out.Taxes, erpTax{
			ChargeType:  chargeOnNetTotal,
			Description: "Tax",
			Rate:        amount(doc.Pricing.TaxRatePercent),
			TaxAmount:   amount(decimal.Zero),
		})
	}
	if !doc.Pricing.AdditionalCharges.IsZero() {
		out.Taxes = append(out.Taxes, erpTax{
			ChargeType:  chargeActual,
			Description: "Additional Charges",
			Rate:        amount(decimal.Zero),
			TaxAmount:   amount(doc.Pricing.AdditionalCharges),
		})
	}
	return out, nil
}

func fromERP(docType documents.DocumentType, in erpDocument) (*documents.SalesDocument, error) {
	status, err := fromERPStatus(docType, in.Docstatus, in.Status)
	if err != nil {
		return nil, err
	}

	rawDate := in.TransactionDate
	customer := in.Customer
	switch docType {
	case documents.TypeQuotation:
		customer = in.PartyName
	case documents.TypeDeliveryNote:
		rawDate = in.PostingDate
	}
	date, err := time.Parse(dateLayout, rawDate)
	if err != nil {
		return nil, fmt.Errorf("erpnext: %s %s date: %w", docType, in.Name, err)
	}

	params := pricing.DefaultParameters()
	params.AdditionalDiscountPercent = in.AdditionalDiscountPercentage.dec()
	params.DiscountAmount = in.DiscountAmount.dec()
	if in.ApplyDiscountOn != "" {
		params.ApplyDiscountOn = pricing.DiscountBase(in.ApplyDiscountOn)
	}
	for _, tax := range in.Taxes {
		switch tax.ChargeType {
		case chargeOnNetTotal:
			params.TaxRatePercent = params.TaxRatePercent.Add(tax.Rate.dec())
		case chargeActual:
			params.AdditionalCharges = params.AdditionalCharges.Add(tax.TaxAmount.dec())
		}
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("erpnext: %s %s: %w", docType, in.Name, err)
	}

	doc := &documents.SalesDocument{
		ID:                in.Name,
		Type:              docType,
		CustomerReference: customer,
		Currency:          in.Currency,
		TransactionDate:   date,
		Status:            status,
		Pricing:           params,
	}
	if in.ValidTill != nil && *in.ValidTill != "" {
		v, err := time.Parse(dateLayout, *in.ValidTill)
		if err != nil {
			return nil, fmt.Errorf("erpnext: %s %s valid_till: %w", docType, in.Name, err)
		}
		doc.ValidUntil = &v
	}

	for i, item := range in.Items {
		if _, err := doc.Lines.AddLine(item.ItemCode, item.Description, item.Qty.dec(), item.Rate.dec()); err != nil {
			return nil, fmt.Errorf("erpnext: %s %s item %d: %w", docType, in.Name, i+1, err)
		}
		if doc.LinkedSourceID == "" {
			switch docType {
			case documents.TypeSalesOrder:
				doc.LinkedSourceID = item.PrevdocDocname
			case documents.TypeDeliveryNote:
				doc.LinkedSourceID = item.AgainstSalesOrder
			}
		}
	}
	return doc, nil
}
