package documents

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors for sales documents.
var (
	ErrNotFound            = errors.New("sales document not found")
	ErrUnknownDocumentType = errors.New("unknown sales document type")
	ErrInvalidDocument     = errors.New("invalid sales document")
	ErrNoLines             = errors.New("cannot submit a document without lines")

	// Lifecycle policy errors.
	ErrDocumentExpired           = errors.New("document has expired")
	ErrNotEditable               = errors.New("document cannot be edited in current status")
	ErrInvalidTransition         = errors.New("status transition not allowed")
	ErrInvalidStateForConversion = errors.New("document is not in a state that allows conversion")
	ErrUnsupportedConversion     = errors.New("conversion between these document types is not supported")
	ErrSourceNotPersisted        = errors.New("source document must be saved before conversion")
)

// PreconditionError reports which status a document must reach before the
// requested operation can run. It unwraps to the underlying sentinel.
type PreconditionError struct {
	Err      error
	Type     DocumentType
	Current  Status
	Required []Status
}

func (e *PreconditionError) Error() string {
	required := make([]string, len(e.Required))
	for i, s := range e.Required {
		required[i] = string(s)
	}
	return fmt.Sprintf("%v: %s is %s, requires %s", e.Err, e.Type, e.Current, strings.Join(required, " or "))
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// Remedy suggests the step that satisfies the precondition, if one exists.
func (e *PreconditionError) Remedy() string {
	if e.Current != StatusDraft {
		return ""
	}
	next := SubmitTarget(e.Type)
	for _, s := range e.Required {
		if s == next {
			return "submit the document first"
		}
	}
	if e.Type == TypeQuotation {
		return "submit the quotation and record the customer's approval first"
	}
	return ""
}
