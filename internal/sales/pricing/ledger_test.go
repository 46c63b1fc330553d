package pricing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLedger_AddLine(t *testing.T) {
	var l Ledger

	line, err := l.AddLine("ITEM-001", "Widget", d("2"), d("100"))
	require.NoError(t, err)
	assert.True(t, line.LineTotal.Equal(d("200")))
	assert.Equal(t, 1, l.Len())

	_, err = l.AddLine("ITEM-001", "Widget again", d("1"), d("100"))
	require.NoError(t, err, "duplicate item references are allowed")
	assert.Equal(t, 2, l.Len())
}

func TestLedger_AddLineRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name     string
		quantity string
		price    string
		wantErr  error
	}{
		{"zero quantity", "0", "10", ErrInvalidQuantity},
		{"negative quantity", "-1", "10", ErrInvalidQuantity},
		{"fractional quantity", "1.5", "10", ErrInvalidQuantity},
		{"negative price", "1", "-0.01", ErrInvalidPrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l Ledger
			_, err := l.AddLine("ITEM", "", d(tt.quantity), d(tt.price))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, l.Len())
		})
	}
}

func TestLedger_FreeLineAllowed(t *testing.T) {
	var l Ledger
	line, err := l.AddLine("SAMPLE", "Free sample", d("3"), decimal.Zero)
	require.NoError(t, err)
	assert.True(t, line.LineTotal.IsZero())
}

func TestLedger_UpdateLine(t *testing.T) {
	l, err := NewLedger(
		LineItem{ItemReference: "A", Quantity: d("2"), UnitPrice: d("100")},
		LineItem{ItemReference: "B", Quantity: d("1"), UnitPrice: d("50")},
	)
	require.NoError(t, err)

	require.NoError(t, l.UpdateLine(0, FieldQuantity, "3"))
	line, err := l.Line(0)
	require.NoError(t, err)
	assert.True(t, line.LineTotal.Equal(d("300")))

	require.NoError(t, l.UpdateLine(1, FieldUnitPrice, "49.99"))
	line, _ = l.Line(1)
	assert.True(t, line.LineTotal.Equal(d("49.99")))

	before := l.Subtotal()
	require.NoError(t, l.UpdateLine(1, FieldDescription, "Gadget, blue"))
	assert.True(t, before.Equal(l.Subtotal()))
	line, _ = l.Line(1)
	assert.Equal(t, "Gadget, blue", line.Description)
}

func TestLedger_UpdateLineErrorsLeaveLedgerIntact(t *testing.T) {
	l, err := NewLedger(LineItem{ItemReference: "A", Quantity: d("2"), UnitPrice: d("100")})
	require.NoError(t, err)

	assert.ErrorIs(t, l.UpdateLine(5, FieldQuantity, "1"), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.UpdateLine(-1, FieldQuantity, "1"), ErrIndexOutOfRange)
	assert.ErrorIs(t, l.UpdateLine(0, FieldQuantity, "0"), ErrInvalidQuantity)
	assert.ErrorIs(t, l.UpdateLine(0, FieldQuantity, "abc"), ErrInvalidQuantity)
	assert.ErrorIs(t, l.UpdateLine(0, FieldUnitPrice, "-5"), ErrInvalidPrice)
	assert.ErrorIs(t, l.UpdateLine(0, Field("colour"), "red"), ErrUnknownField)

	line, _ := l.Line(0)
	assert.True(t, line.Quantity.Equal(d("2")))
	assert.True(t, line.UnitPrice.Equal(d("100")))
	assert.True(t, l.Subtotal().Equal(d("200")))
}

func TestLedger_RemoveLine(t *testing.T) {
	l, err := NewLedger(
		LineItem{ItemReference: "A", Quantity: d("2"), UnitPrice: d("100")},
		LineItem{ItemReference: "B", Quantity: d("1"), UnitPrice: d("50")},
	)
	require.NoError(t, err)

	require.NoError(t, l.RemoveLine(0))
	assert.Equal(t, 1, l.Len())
	line, _ := l.Line(0)
	assert.Equal(t, "B", line.ItemReference)

	assert.ErrorIs(t, l.RemoveLine(1), ErrIndexOutOfRange)
}

func TestLedger_SubtotalEmpty(t *testing.T) {
	var l Ledger
	assert.True(t, l.Subtotal().IsZero())

	var nilLedger *Ledger
	assert.True(t, nilLedger.Subtotal().IsZero())
}

func TestLedger_SubtotalAfterMutations(t *testing.T) {
	var l Ledger
	_, _ = l.AddLine("A", "", d("2"), d("100"))
	_, _ = l.AddLine("B", "", d("1"), d("50"))
	_, _ = l.AddLine("C", "", d("4"), d("12.5"))
	require.NoError(t, l.SetQuantity(1, d("3")))
	require.NoError(t, l.RemoveLine(2))

	var sum decimal.Decimal
	for _, line := range l.Lines() {
		sum = sum.Add(line.LineTotal)
	}
	assert.True(t, sum.Equal(l.Subtotal()))
	assert.True(t, l.Subtotal().Equal(d("350")))
}

func TestLedger_CloneIsIndependent(t *testing.T) {
	original, err := NewLedger(LineItem{ItemReference: "A", Quantity: d("2"), UnitPrice: d("100")})
	require.NoError(t, err)

	clone := original.Clone()
	require.NoError(t, clone.SetQuantity(0, d("9")))
	_, err = clone.AddLine("B", "", d("1"), d("1"))
	require.NoError(t, err)

	assert.Equal(t, 1, original.Len())
	line, _ := original.Line(0)
	assert.True(t, line.Quantity.Equal(d("2")))
}

func TestLedger_LinesReturnsCopy(t *testing.T) {
	l, err := NewLedger(LineItem{ItemReference: "A", Quantity: d("1"), UnitPrice: d("10")})
	require.NoError(t, err)

	lines := l.Lines()
	lines[0].Quantity = d("100")

	line, _ := l.Line(0)
	assert.True(t, line.Quantity.Equal(d("1")))
}

func TestLedger_JSONRecomputesLineTotals(t *testing.T) {
	raw := `[{"item_reference":"A","description":"x","quantity":"2","unit_price":"100","line_total":"1"}]`

	var l Ledger
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	line, _ := l.Line(0)
	assert.True(t, line.LineTotal.Equal(d("200")))

	out, err := json.Marshal(l)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"line_total":"200"`)

	err = json.Unmarshal([]byte(`[{"item_reference":"A","quantity":"0","unit_price":"1"}]`), &l)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestLedger_EmptyMarshalsAsArray(t *testing.T) {
	out, err := json.Marshal(Ledger{})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(out))
}
