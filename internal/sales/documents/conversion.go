package documents

import (
	"fmt"
	"time"
)

// Convert seeds a new draft of type target from source. Customer, currency and
// lines are copied by value with their unit prices frozen; pricing parameters
// are reset to the target type's defaults. The source is not modified.
func Convert(source *SalesDocument, target DocumentType, now time.Time, defaults Defaults) (*SalesDocument, error) {
	if err := CheckConversion(source, target); err != nil {
		return nil, err
	}
	if source.IsNew() {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotPersisted, source.Type)
	}
	return &SalesDocument{
		Type:              target,
		CustomerReference: source.CustomerReference,
		Currency:          source.Currency,
		TransactionDate:   now,
		Status:            StatusDraft,
		Lines:             *source.Lines.Clone(),
		Pricing:           defaults.For(target),
		LinkedSourceID:    source.ID,
	}, nil
}
