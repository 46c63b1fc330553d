package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

// DocumentStore is the backend that owns persisted sales documents. Each call
// is a single blocking request; the engine never retries.
type DocumentStore interface {
	FetchDocument(ctx context.Context, docType documents.DocumentType, id string) (*documents.SalesDocument, error)
	CreateDocument(ctx context.Context, docType documents.DocumentType, doc *documents.SalesDocument) (string, error)
	UpdateDocument(ctx context.Context, docType documents.DocumentType, id string, doc *documents.SalesDocument) error
}

// DocumentLister is implemented by stores that can enumerate documents.
type DocumentLister interface {
	ListDocuments(ctx context.Context, filter ListFilter) ([]*documents.SalesDocument, error)
}

// ListFilter narrows a document listing.
type ListFilter struct {
	Type     documents.DocumentType
	Statuses []documents.Status
	Limit    int
}

// CatalogPricer resolves the current list price of a catalog item. It is only
// consulted when a new line is added without an explicit price.
type CatalogPricer interface {
	FetchCatalogPrice(ctx context.Context, itemReference string) (decimal.Decimal, error)
}

// ErrPersistence matches every PersistenceError through errors.Is.
var ErrPersistence = errors.New("document store request failed")

// PersistenceError wraps any failure reported by the document store or
// catalog. The draft being saved is left untouched.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("sales: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
