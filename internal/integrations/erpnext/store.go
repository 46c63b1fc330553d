package erpnext

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

// ErrNoPrice is returned when the price list has no selling rate for an item.
var ErrNoPrice = errors.New("erpnext: no item price")

// Store persists sales documents as ERPNext Quotation, Sales Order and
// Delivery Note resources, and resolves list prices from Item Price.
type Store struct {
	client *Client
}

var (
	_ sales.DocumentStore  = (*Store)(nil)
	_ sales.DocumentLister = (*Store)(nil)
	_ sales.CatalogPricer  = (*Store)(nil)
)

// NewStore wraps a client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func (s *Store) FetchDocument(ctx context.Context, docType documents.DocumentType, id string) (*documents.SalesDocument, error) {
	var env envelope[erpDocument]
	if err := s.client.getResource(ctx, string(docType), id, &env); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
		}
		return nil, err
	}
	return fromERP(docType, env.Data)
}

func (s *Store) CreateDocument(ctx context.Context, docType documents.DocumentType, doc *documents.SalesDocument) (string, error) {
	body, err := toERP(docType, doc)
	if err != nil {
		return "", err
	}
	var env envelope[erpDocument]
	if err := s.client.insertResource(ctx, string(docType), body, &env); err != nil {
		return "", err
	}
	if env.Data.Name == "" {
		return "", fmt.Errorf("erpnext: %s created without a name", docType)
	}
	return env.Data.Name, nil
}

func (s *Store) UpdateDocument(ctx context.Context, docType documents.DocumentType, id string, doc *documents.SalesDocument) error {
	body, err := toERP(docType, doc)
	if err != nil {
		return err
	}
	body.Name = id
	if err := s.client.updateResource(ctx, string(docType), id, body, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s %s", documents.ErrNotFound, docType, id)
		}
		return err
	}
	return nil
}

// ListDocuments lists names first and then fetches each document, since list
// responses do not carry child tables.
func (s *Store) ListDocuments(ctx context.Context, filter sales.ListFilter) ([]*documents.SalesDocument, error) {
	var filters [][]any
	if len(filter.Statuses) > 0 {
		names := make([]string, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			mapped, err := toERPStatus(filter.Type, st)
			if err != nil {
				return nil, err
			}
			names = append(names, mapped.status)
		}
		filters = append(filters, []any{"status", "in", names})
	}

	var env envelope[[]struct {
		Name string `json:"name"`
	}]
	if err := s.client.listResource(ctx, string(filter.Type), filters, []string{"name"}, filter.Limit, &env); err != nil {
		return nil, err
	}

	out := make([]*documents.SalesDocument, 0, len(env.Data))
	for _, row := range env.Data {
		doc, err := s.FetchDocument(ctx, filter.Type, row.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// FetchCatalogPrice reads the selling rate of an item from the configured price list.
func (s *Store) FetchCatalogPrice(ctx context.Context, itemReference string) (decimal.Decimal, error) {
	filters := [][]any{
		{"item_code", "=", itemReference},
		{"price_list", "=", s.client.priceList},
		{"selling", "=", 1},
	}
	var env envelope[[]struct {
		PriceListRate amount `json:"price_list_rate"`
	}]
	if err := s.client.listResource(ctx, "Item Price", filters, []string{"price_list_rate"}, 1, &env); err != nil {
		return decimal.Zero, err
	}
	if len(env.Data) == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s in %s", ErrNoPrice, itemReference, s.client.priceList)
	}
	return env.Data[0].PriceListRate.dec(), nil
}
