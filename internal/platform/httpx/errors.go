package httpx

import (
	"errors"
	"net/http"
	"slices"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Rule maps errors matching Err to a problem status, title and code.
type Rule struct {
	Err    error
	Status int
	Title  string
	Code   string
}

var defaultRules = []Rule{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrForbidden, Status: http.StatusForbidden, Title: "Forbidden"},
	{Err: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized"},
}

// remedier is implemented by errors that can suggest a fix to the client.
type remedier interface {
	Remedy() string
}

// RespondError maps err to an RFC7807 response using rules first, then the
// package sentinels. Unmatched errors become a 500 without detail. The written
// problem is returned so callers can log it.
func RespondError(w http.ResponseWriter, err error, rules ...Rule) ProblemDetail {
	p := ProblemDetail{Status: http.StatusInternalServerError, Title: "Internal Error"}
	for _, rule := range slices.Concat(rules, defaultRules) {
		if errors.Is(err, rule.Err) {
			p = ProblemDetail{Status: rule.Status, Title: rule.Title, Code: rule.Code, Detail: err.Error()}
			var rem remedier
			if errors.As(err, &rem) {
				p.Remedy = rem.Remedy()
			}
			break
		}
	}
	WriteProblem(w, p)
	return p
}
