// Package pricing holds the line item ledger and the totals calculator shared by
// every sales document type.
package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Field names a mutable attribute of a line item.
type Field string

const (
	FieldItemReference Field = "item_reference"
	FieldDescription   Field = "description"
	FieldQuantity      Field = "quantity"
	FieldUnitPrice     Field = "unit_price"
)

// IsValid reports whether the field can be edited through UpdateLine.
func (f Field) IsValid() bool {
	switch f {
	case FieldItemReference, FieldDescription, FieldQuantity, FieldUnitPrice:
		return true
	default:
		return false
	}
}

// LineItem is one priced entry of a ledger. LineTotal is always Quantity × UnitPrice.
type LineItem struct {
	ItemReference string          `json:"item_reference"`
	Description   string          `json:"description"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LineTotal     decimal.Decimal `json:"line_total"`
}

// NewLineItem validates the inputs and derives the line total.
func NewLineItem(itemReference, description string, quantity, unitPrice decimal.Decimal) (LineItem, error) {
	if err := validateQuantity(quantity); err != nil {
		return LineItem{}, err
	}
	if err := validatePrice(unitPrice); err != nil {
		return LineItem{}, err
	}
	return LineItem{
		ItemReference: itemReference,
		Description:   description,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		LineTotal:     quantity.Mul(unitPrice),
	}, nil
}

func validateQuantity(q decimal.Decimal) error {
	if !q.IsPositive() || !q.IsInteger() {
		return fmt.Errorf("%w: got %s", ErrInvalidQuantity, q.String())
	}
	return nil
}

func validatePrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return fmt.Errorf("%w: got %s", ErrInvalidPrice, p.String())
	}
	return nil
}

// Ledger is the ordered collection of line items owned by a single document.
// Duplicate item references are allowed. The zero value is an empty ledger.
type Ledger struct {
	lines []LineItem
}

// NewLedger builds a ledger from existing lines, validating each one and
// recomputing its total.
func NewLedger(lines ...LineItem) (*Ledger, error) {
	l := &Ledger{lines: make([]LineItem, 0, len(lines))}
	for i, line := range lines {
		item, err := NewLineItem(line.ItemReference, line.Description, line.Quantity, line.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		l.lines = append(l.lines, item)
	}
	return l, nil
}

// AddLine appends a new line and returns it.
func (l *Ledger) AddLine(itemReference, description string, quantity, unitPrice decimal.Decimal) (LineItem, error) {
	item, err := NewLineItem(itemReference, description, quantity, unitPrice)
	if err != nil {
		return LineItem{}, err
	}
	l.lines = append(l.lines, item)
	return item, nil
}

// UpdateLine edits one field of the line at index. Quantity and unit price
// values are parsed as decimals; description edits never touch totals.
func (l *Ledger) UpdateLine(index int, field Field, value string) error {
	switch field {
	case FieldItemReference:
		return l.SetItemReference(index, value)
	case FieldDescription:
		return l.SetDescription(index, value)
	case FieldQuantity:
		q, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrInvalidQuantity, value)
		}
		return l.SetQuantity(index, q)
	case FieldUnitPrice:
		p, err := decimal.NewFromString(value)
		if err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrInvalidPrice, value)
		}
		return l.SetUnitPrice(index, p)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
}

// SetQuantity replaces the quantity of a line and recomputes its total.
func (l *Ledger) SetQuantity(index int, quantity decimal.Decimal) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	if err := validateQuantity(quantity); err != nil {
		return err
	}
	line := &l.lines[index]
	line.Quantity = quantity
	line.LineTotal = quantity.Mul(line.UnitPrice)
	return nil
}

// SetUnitPrice replaces the unit price of a line and recomputes its total.
func (l *Ledger) SetUnitPrice(index int, unitPrice decimal.Decimal) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	if err := validatePrice(unitPrice); err != nil {
		return err
	}
	line := &l.lines[index]
	line.UnitPrice = unitPrice
	line.LineTotal = line.Quantity.Mul(unitPrice)
	return nil
}

// SetDescription replaces the free-text description of a line.
func (l *Ledger) SetDescription(index int, description string) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	l.lines[index].Description = description
	return nil
}

// SetItemReference points a line at a different catalog item. The price is kept.
func (l *Ledger) SetItemReference(index int, itemReference string) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	l.lines[index].ItemReference = itemReference
	return nil
}

// RemoveLine deletes the line at index, shifting later lines down.
func (l *Ledger) RemoveLine(index int) error {
	if err := l.checkIndex(index); err != nil {
		return err
	}
	l.lines = append(l.lines[:index], l.lines[index+1:]...)
	return nil
}

// Subtotal sums every line total. An empty ledger yields zero.
func (l *Ledger) Subtotal() decimal.Decimal {
	total := decimal.Zero
	if l == nil {
		return total
	}
	for _, line := range l.lines {
		total = total.Add(line.LineTotal)
	}
	return total
}

// Len returns the number of lines.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.lines)
}

// Line returns a copy of the line at index.
func (l *Ledger) Line(index int) (LineItem, error) {
	if err := l.checkIndex(index); err != nil {
		return LineItem{}, err
	}
	return l.lines[index], nil
}

// Lines returns a copy of the lines in order.
func (l *Ledger) Lines() []LineItem {
	if l == nil {
		return nil
	}
	out := make([]LineItem, len(l.lines))
	copy(out, l.lines)
	return out
}

// Clone returns an independent copy of the ledger.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{lines: l.Lines()}
}

func (l *Ledger) checkIndex(index int) error {
	if l == nil || index < 0 || index >= len(l.lines) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return nil
}

// MarshalJSON encodes the ledger as an array of lines.
func (l Ledger) MarshalJSON() ([]byte, error) {
	lines := l.lines
	if lines == nil {
		lines = []LineItem{}
	}
	return json.Marshal(lines)
}

// UnmarshalJSON decodes an array of lines, validating them and recomputing totals.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	var lines []LineItem
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	decoded, err := NewLedger(lines...)
	if err != nil {
		return err
	}
	l.lines = decoded.lines
	return nil
}
