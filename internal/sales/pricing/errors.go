package pricing

import "errors"

// Ledger and pricing errors. None of them leave a ledger partially mutated.
var (
	ErrInvalidQuantity   = errors.New("quantity must be a positive whole number")
	ErrInvalidPrice      = errors.New("unit price must not be negative")
	ErrIndexOutOfRange   = errors.New("line index out of range")
	ErrUnknownField      = errors.New("unknown line field")
	ErrInvalidParameters = errors.New("invalid pricing parameters")
)
