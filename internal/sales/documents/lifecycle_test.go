package documents

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

var testNow = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

func newQuotation(t *testing.T, status Status) *SalesDocument {
	t.Helper()
	doc := New(TypeQuotation, "CUST-001", "usd", testNow.AddDate(0, 0, -3), Defaults{})
	doc.ID = "QTN-0001"
	doc.Status = status
	_, err := doc.Lines.AddLine("ITEM-A", "Widget", decimal.NewFromInt(2), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = doc.Lines.AddLine("ITEM-B", "Gadget", decimal.NewFromInt(1), decimal.NewFromInt(50))
	require.NoError(t, err)
	return doc
}

func TestParseDocumentType(t *testing.T) {
	for _, in := range []string{"Sales Order", "sales-order", "sales_order", " SALES ORDER "} {
		got, err := ParseDocumentType(in)
		require.NoError(t, err, in)
		assert.Equal(t, TypeSalesOrder, got)
	}
	_, err := ParseDocumentType("invoice")
	assert.ErrorIs(t, err, ErrUnknownDocumentType)
	assert.Equal(t, "delivery-note", TypeDeliveryNote.Slug())
}

func TestFormatNumber(t *testing.T) {
	date := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "QTN-2026-00042", FormatNumber(TypeQuotation, date, 42))
	assert.Equal(t, "SO-2026-00007", FormatNumber(TypeSalesOrder, date, 7))
	assert.Equal(t, "DN-2026-12345", FormatNumber(TypeDeliveryNote, date, 12345))
}

func TestTransition_QuotationPath(t *testing.T) {
	doc := newQuotation(t, StatusDraft)

	require.NoError(t, Submit(doc))
	assert.Equal(t, StatusSent, doc.Status)

	require.NoError(t, Transition(doc, StatusApproved))
	assert.Equal(t, StatusApproved, doc.Status)

	err := Transition(doc, StatusConvertedToOrder)
	assert.ErrorIs(t, err, ErrInvalidTransition, "conversion marking is engine-only")

	require.NoError(t, MarkConverted(doc))
	assert.Equal(t, StatusConvertedToOrder, doc.Status)
	assert.True(t, IsTerminal(TypeQuotation, doc.Status))
}

func TestTransition_RejectsIllegalMoves(t *testing.T) {
	tests := []struct {
		name    string
		docType DocumentType
		from    Status
		to      Status
	}{
		{"quotation draft to approved", TypeQuotation, StatusDraft, StatusApproved},
		{"quotation rejected to approved", TypeQuotation, StatusRejected, StatusApproved},
		{"order draft to fulfilled", TypeSalesOrder, StatusDraft, StatusFulfilled},
		{"order fulfilled to cancelled", TypeSalesOrder, StatusFulfilled, StatusCancelled},
		{"order partially back to confirmed", TypeSalesOrder, StatusPartiallyFulfilled, StatusConfirmed},
		{"delivery completed to cancelled", TypeDeliveryNote, StatusCompleted, StatusCancelled},
		{"delivery draft to completed", TypeDeliveryNote, StatusDraft, StatusCompleted},
		{"status of other type", TypeDeliveryNote, StatusDraft, StatusSent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &SalesDocument{Type: tt.docType, Status: tt.from}
			err := Transition(doc, tt.to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, tt.from, doc.Status)
		})
	}
}

func TestTransition_SalesOrderAndDeliveryNote(t *testing.T) {
	order := &SalesDocument{Type: TypeSalesOrder, Status: StatusDraft}
	require.NoError(t, Submit(order))
	assert.Equal(t, StatusConfirmed, order.Status)
	require.NoError(t, Transition(order, StatusPartiallyFulfilled))
	require.NoError(t, Transition(order, StatusFulfilled))
	assert.True(t, IsTerminal(TypeSalesOrder, StatusFulfilled))

	for _, from := range []Status{StatusDraft, StatusConfirmed, StatusPartiallyFulfilled} {
		assert.True(t, CanTransition(TypeSalesOrder, from, StatusCancelled), from)
	}

	note := &SalesDocument{Type: TypeDeliveryNote, Status: StatusDraft}
	require.NoError(t, Submit(note))
	assert.Equal(t, StatusSubmitted, note.Status)
	require.NoError(t, Transition(note, StatusCompleted))
	assert.True(t, CanTransition(TypeDeliveryNote, StatusSubmitted, StatusCancelled))
}

func TestSubmit_RequiresDraft(t *testing.T) {
	doc := newQuotation(t, StatusSent)
	err := Submit(doc)

	var pre *PreconditionError
	require.True(t, errors.As(err, &pre))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusSent, doc.Status)
}

func TestOpenForEdit(t *testing.T) {
	doc := newQuotation(t, StatusDraft)
	require.NoError(t, OpenForEdit(doc, testNow))

	past := testNow.AddDate(0, 0, -1)
	doc.ValidUntil = &past
	assert.ErrorIs(t, OpenForEdit(doc, testNow), ErrDocumentExpired)

	sent := newQuotation(t, StatusSent)
	err := OpenForEdit(sent, testNow)
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestCheckConversion(t *testing.T) {
	approved := newQuotation(t, StatusApproved)
	require.NoError(t, CheckConversion(approved, TypeSalesOrder))

	assert.ErrorIs(t, CheckConversion(approved, TypeDeliveryNote), ErrUnsupportedConversion)
	note := &SalesDocument{Type: TypeDeliveryNote, Status: StatusCompleted}
	assert.ErrorIs(t, CheckConversion(note, TypeSalesOrder), ErrUnsupportedConversion)
	order := &SalesDocument{Type: TypeSalesOrder, Status: StatusConfirmed}
	assert.ErrorIs(t, CheckConversion(order, TypeQuotation), ErrUnsupportedConversion)

	for _, status := range []Status{StatusDraft, StatusSent, StatusRejected, StatusConvertedToOrder} {
		err := CheckConversion(newQuotation(t, status), TypeSalesOrder)
		assert.ErrorIs(t, err, ErrInvalidStateForConversion, status)
	}

	partial := &SalesDocument{Type: TypeSalesOrder, Status: StatusPartiallyFulfilled}
	assert.NoError(t, CheckConversion(partial, TypeDeliveryNote))
}

func TestCheckConversion_ReportsRequiredStates(t *testing.T) {
	draft := newQuotation(t, StatusDraft)
	err := CheckConversion(draft, TypeSalesOrder)

	var pre *PreconditionError
	require.True(t, errors.As(err, &pre))
	assert.Equal(t, []Status{StatusApproved}, pre.Required)
	assert.Equal(t, StatusDraft, pre.Current)
	assert.NotEmpty(t, pre.Remedy())
	assert.Equal(t, StatusDraft, draft.Status, "conversion never auto-submits")

	order := &SalesDocument{Type: TypeSalesOrder, Status: StatusDraft}
	err = CheckConversion(order, TypeDeliveryNote)
	require.True(t, errors.As(err, &pre))
	assert.Equal(t, "submit the document first", pre.Remedy())
}

func TestActionsFor(t *testing.T) {
	draft := newQuotation(t, StatusDraft)
	a := ActionsFor(draft, testNow)
	assert.True(t, a.CanEdit)
	assert.True(t, a.CanSubmit)
	assert.Empty(t, a.CanConvertTo)
	assert.Equal(t, []Status{StatusCancelled}, a.Transitions)

	approved := newQuotation(t, StatusApproved)
	a = ActionsFor(approved, testNow)
	assert.False(t, a.CanEdit)
	assert.Equal(t, []DocumentType{TypeSalesOrder}, a.CanConvertTo)

	sent := newQuotation(t, StatusSent)
	soon := testNow.AddDate(0, 0, 3)
	sent.ValidUntil = &soon
	a = ActionsFor(sent, testNow)
	assert.Equal(t, ValidityExpiringSoon, a.Validity)
	assert.Contains(t, a.Notice, "3 day")
	assert.ElementsMatch(t, []Status{StatusApproved, StatusRejected, StatusCancelled}, a.Transitions)

	unsaved := New(TypeSalesOrder, "C", "USD", testNow, Defaults{})
	a = ActionsFor(unsaved, testNow)
	assert.Empty(t, a.Transitions)
}

func TestValidate(t *testing.T) {
	doc := newQuotation(t, StatusDraft)
	require.NoError(t, doc.Validate())

	bad := doc.Clone()
	bad.CustomerReference = " "
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDocument)

	bad = doc.Clone()
	bad.Currency = "ZZZZ"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDocument)

	bad = doc.Clone()
	bad.Status = StatusConfirmed
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDocument)

	bad = doc.Clone()
	before := bad.TransactionDate.AddDate(0, 0, -1)
	bad.ValidUntil = &before
	assert.ErrorIs(t, bad.Validate(), ErrInvalidDocument)

	bad = doc.Clone()
	bad.Pricing.TaxRatePercent = decimal.NewFromInt(150)
	assert.ErrorIs(t, bad.Validate(), pricing.ErrInvalidParameters)
}
