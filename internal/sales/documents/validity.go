package documents

import "time"

// Validity is the advisory freshness classification of a quotation.
type Validity string

const (
	ValidityActive       Validity = "ACTIVE"
	ValidityExpiringSoon Validity = "EXPIRING_SOON"
	ValidityExpired      Validity = "EXPIRED"
)

// ExpiringSoonDays is the window, in days, in which a sent quotation is flagged.
const ExpiringSoonDays = 7

// Classify reports the validity of a quotation at now. Other document types and
// quotations without a validity date are always active. The result is advisory
// and never written back to the document.
func Classify(doc *SalesDocument, now time.Time) Validity {
	if doc == nil || doc.Type != TypeQuotation || doc.ValidUntil == nil {
		return ValidityActive
	}
	days := DaysUntil(*doc.ValidUntil, now)
	if days < 0 && !settled(doc.Status) {
		return ValidityExpired
	}
	if days > 0 && days <= ExpiringSoonDays && doc.Status == StatusSent {
		return ValidityExpiringSoon
	}
	return ValidityActive
}

// settled quotations were accepted by the customer and no longer age out.
func settled(s Status) bool {
	return s == StatusApproved || s == StatusConvertedToOrder
}

// DaysUntil counts calendar days from now's date to validUntil's date. The
// validity date is taken as written; now is read in its own location.
func DaysUntil(validUntil, now time.Time) int {
	return int(dateOf(validUntil).Sub(dateOf(now)).Hours() / 24)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
