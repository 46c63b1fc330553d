package documents

import (
	"fmt"
	"slices"
	"time"
)

// transitions lists the user-driven status moves per document type.
var transitions = map[DocumentType]map[Status][]Status{
	TypeQuotation: {
		StatusDraft: {StatusSent, StatusCancelled},
		StatusSent:  {StatusApproved, StatusRejected, StatusCancelled},
	},
	TypeSalesOrder: {
		StatusDraft:              {StatusConfirmed, StatusCancelled},
		StatusConfirmed:          {StatusPartiallyFulfilled, StatusFulfilled, StatusCancelled},
		StatusPartiallyFulfilled: {StatusFulfilled, StatusCancelled},
	},
	TypeDeliveryNote: {
		StatusDraft:     {StatusSubmitted, StatusCancelled},
		StatusSubmitted: {StatusCompleted, StatusCancelled},
	},
}

// systemTransitions are only taken by the engine itself, never on request.
var systemTransitions = map[DocumentType]map[Status][]Status{
	TypeQuotation: {
		StatusApproved: {StatusConvertedToOrder},
	},
}

var statuses = map[DocumentType][]Status{
	TypeQuotation:    {StatusDraft, StatusSent, StatusApproved, StatusRejected, StatusConvertedToOrder, StatusCancelled},
	TypeSalesOrder:   {StatusDraft, StatusConfirmed, StatusPartiallyFulfilled, StatusFulfilled, StatusCancelled},
	TypeDeliveryNote: {StatusDraft, StatusSubmitted, StatusCompleted, StatusCancelled},
}

// conversions maps a source type to the only type it may be converted into and
// the statuses that allow it.
var conversions = map[DocumentType]struct {
	target   DocumentType
	required []Status
}{
	TypeQuotation:  {target: TypeSalesOrder, required: []Status{StatusApproved}},
	TypeSalesOrder: {target: TypeDeliveryNote, required: []Status{StatusConfirmed, StatusPartiallyFulfilled}},
}

// ValidStatus reports whether status belongs to the lifecycle of docType.
func ValidStatus(docType DocumentType, status Status) bool {
	return slices.Contains(statuses[docType], status)
}

// SubmitTarget is the status an explicit submit moves a draft into.
func SubmitTarget(docType DocumentType) Status {
	switch docType {
	case TypeQuotation:
		return StatusSent
	case TypeSalesOrder:
		return StatusConfirmed
	case TypeDeliveryNote:
		return StatusSubmitted
	default:
		return ""
	}
}

// IsTerminal reports whether no further transition leaves status.
func IsTerminal(docType DocumentType, status Status) bool {
	return len(transitions[docType][status]) == 0 && len(systemTransitions[docType][status]) == 0
}

// CanTransition checks whether a user may move a document from one status to another.
func CanTransition(docType DocumentType, from, to Status) bool {
	return slices.Contains(transitions[docType][from], to)
}

// AllowedTransitions lists the statuses a user may move the document into.
func AllowedTransitions(doc *SalesDocument) []Status {
	allowed := transitions[doc.Type][doc.Status]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// Transition moves the document to status to, or fails with ErrInvalidTransition
// leaving the document untouched.
func Transition(doc *SalesDocument, to Status) error {
	if !doc.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownDocumentType, doc.Type)
	}
	if !CanTransition(doc.Type, doc.Status, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, doc.Type, doc.Status, to)
	}
	doc.Status = to
	return nil
}

// Submit moves a draft into the type's submitted state. Nothing submits implicitly.
func Submit(doc *SalesDocument) error {
	if doc.Status != StatusDraft {
		return &PreconditionError{Err: ErrInvalidTransition, Type: doc.Type, Current: doc.Status, Required: []Status{StatusDraft}}
	}
	return Transition(doc, SubmitTarget(doc.Type))
}

// MarkConverted records that an approved quotation produced a persisted sales order.
func MarkConverted(doc *SalesDocument) error {
	if doc.Type != TypeQuotation {
		return fmt.Errorf("%w: only quotations are marked converted", ErrInvalidTransition)
	}
	if !slices.Contains(systemTransitions[doc.Type][doc.Status], StatusConvertedToOrder) {
		return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, doc.Type, doc.Status, StatusConvertedToOrder)
	}
	doc.Status = StatusConvertedToOrder
	return nil
}

// OpenForEdit gates editing of a document. Expired quotations stay viewable
// but cannot be edited.
func OpenForEdit(doc *SalesDocument, now time.Time) error {
	if doc.Type == TypeQuotation && Classify(doc, now) == ValidityExpired {
		return fmt.Errorf("%w: valid until %s", ErrDocumentExpired, doc.ValidUntil.Format(time.DateOnly))
	}
	if !doc.Status.CanEdit() {
		return &PreconditionError{Err: ErrNotEditable, Type: doc.Type, Current: doc.Status, Required: []Status{StatusDraft}}
	}
	return nil
}

// ConversionTarget returns the type a document may be converted into.
func ConversionTarget(docType DocumentType) (DocumentType, bool) {
	c, ok := conversions[docType]
	return c.target, ok
}

// CheckConversion verifies the source type and status allow converting into target.
// The source is never submitted or approved on the caller's behalf.
func CheckConversion(source *SalesDocument, target DocumentType) error {
	c, ok := conversions[source.Type]
	if !ok || c.target != target {
		return fmt.Errorf("%w: %s -> %s", ErrUnsupportedConversion, source.Type, target)
	}
	if !slices.Contains(c.required, source.Status) {
		return &PreconditionError{
			Err:      ErrInvalidStateForConversion,
			Type:     source.Type,
			Current:  source.Status,
			Required: slices.Clone(c.required),
		}
	}
	return nil
}

// Actions describes what a client may offer for a document right now.
type Actions struct {
	CanEdit      bool           `json:"can_edit"`
	CanSubmit    bool           `json:"can_submit"`
	CanConvertTo []DocumentType `json:"can_convert_to"`
	Transitions  []Status       `json:"transitions"`
	Validity     Validity       `json:"validity,omitempty"`
	Notice       string         `json:"notice,omitempty"`
}

// ActionsFor evaluates validity and lifecycle rules for doc at now.
func ActionsFor(doc *SalesDocument, now time.Time) Actions {
	a := Actions{
		CanEdit:      OpenForEdit(doc, now) == nil,
		CanConvertTo: []DocumentType{},
		Transitions:  []Status{},
	}
	if doc.Status == StatusDraft {
		a.CanSubmit = a.CanEdit
	}
	if target, ok := ConversionTarget(doc.Type); ok && !doc.IsNew() && CheckConversion(doc, target) == nil {
		a.CanConvertTo = append(a.CanConvertTo, target)
	}
	if !doc.IsNew() {
		for _, s := range AllowedTransitions(doc) {
			if s == SubmitTarget(doc.Type) && doc.Status == StatusDraft {
				continue
			}
			a.Transitions = append(a.Transitions, s)
		}
	}
	if doc.Type == TypeQuotation {
		a.Validity = Classify(doc, now)
		switch a.Validity {
		case ValidityExpired:
			a.Notice = "quotation has expired"
		case ValidityExpiringSoon:
			a.Notice = fmt.Sprintf("quotation expires in %d day(s)", DaysUntil(*doc.ValidUntil, now))
		}
	}
	return a
}
