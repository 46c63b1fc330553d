package sales

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

// ============================================================================
// MOCK DOCUMENT STORE
// ============================================================================

type mockStore struct {
	mu     sync.Mutex
	docs   map[string]*documents.SalesDocument
	nextID int

	fetchErr  error
	createErr error
	updateErr error

	creates int
	updates int
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string]*documents.SalesDocument), nextID: 1}
}

func storeKey(docType documents.DocumentType, id string) string {
	return string(docType) + "/" + id
}

func (m *mockStore) FetchDocument(ctx context.Context, docType documents.DocumentType, id string) (*documents.SalesDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	doc, ok := m.docs[storeKey(docType, id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", documents.ErrNotFound, id)
	}
	return doc.Clone(), nil
}

func (m *mockStore) CreateDocument(ctx context.Context, docType documents.DocumentType, doc *documents.SalesDocument) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	m.creates++
	id := fmt.Sprintf("%s-%04d", docType.Prefix(), m.nextID)
	m.nextID++
	stored := doc.Clone()
	stored.ID = id
	m.docs[storeKey(docType, id)] = stored
	return id, nil
}

func (m *mockStore) UpdateDocument(ctx context.Context, docType documents.DocumentType, id string, doc *documents.SalesDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.docs[storeKey(docType, id)]; !ok {
		return fmt.Errorf("%w: %s", documents.ErrNotFound, id)
	}
	m.updates++
	m.docs[storeKey(docType, id)] = doc.Clone()
	return nil
}

func (m *mockStore) ListDocuments(ctx context.Context, filter ListFilter) ([]*documents.SalesDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*documents.SalesDocument
	for _, doc := range m.docs {
		if doc.Type != filter.Type {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				if doc.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, doc.Clone())
	}
	return out, nil
}

func (m *mockStore) put(doc *documents.SalesDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[storeKey(doc.Type, doc.ID)] = doc.Clone()
}

func (m *mockStore) get(docType documents.DocumentType, id string) *documents.SalesDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[storeKey(docType, id)].Clone()
}

// ============================================================================
// MOCK CATALOG
// ============================================================================

type mockCatalog struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  map[string]int
	err    error
	delay  time.Duration
}

func newMockCatalog(prices map[string]string) *mockCatalog {
	c := &mockCatalog{prices: make(map[string]decimal.Decimal), calls: make(map[string]int)}
	for item, p := range prices {
		c.prices[item] = decimal.RequireFromString(p)
	}
	return c
}

func (c *mockCatalog) FetchCatalogPrice(ctx context.Context, item string) (decimal.Decimal, error) {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[item]++
	if c.err != nil {
		return decimal.Zero, c.err
	}
	p, ok := c.prices[item]
	if !ok {
		return decimal.Zero, fmt.Errorf("item %s has no price", item)
	}
	return p, nil
}

func (c *mockCatalog) callCount(item string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[item]
}

// ============================================================================
// HELPERS
// ============================================================================

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

type fixture struct {
	store   *mockStore
	catalog *mockCatalog
	drafts  *RedisDraftStore
	service *Service
	redis   *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr, client := newRedis(t)
	store := newMockStore()
	catalog := newMockCatalog(map[string]string{"ITEM-A": "100", "ITEM-B": "50"})
	drafts := NewRedisDraftStore(client, time.Hour)
	svc := NewService(ServiceParams{
		Store:   store,
		Catalog: catalog,
		Drafts:  drafts,
		Clock:   func() time.Time { return fixedNow },
	})
	return &fixture{store: store, catalog: catalog, drafts: drafts, service: svc, redis: mr}
}

func dec(s string) *decimal.Decimal {
	v := decimal.RequireFromString(s)
	return &v
}
