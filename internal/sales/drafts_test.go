package sales

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

func TestRedisDraftStore_RoundTrip(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisDraftStore(client, time.Hour)
	ctx := context.Background()

	validUntil := fixedNow.AddDate(0, 0, 14)
	doc := documents.New(documents.TypeQuotation, "CUST-1", "EUR", fixedNow, documents.Defaults{})
	doc.ValidUntil = &validUntil
	doc.Pricing.TaxRatePercent = decimal.RequireFromString("19")
	_, err := doc.Lines.AddLine("ITEM-A", "Widget", decimal.NewFromInt(3), decimal.RequireFromString("9.99"))
	require.NoError(t, err)

	draft, err := store.Create(ctx, doc)
	require.NoError(t, err)

	loaded, err := store.Get(ctx, draft.Key)
	require.NoError(t, err)
	assert.Equal(t, "CUST-1", loaded.Document.CustomerReference)
	assert.True(t, loaded.Document.ValidUntil.Equal(validUntil))
	assert.True(t, loaded.Document.Pricing.TaxRatePercent.Equal(decimal.NewFromInt(19)))
	assert.True(t, loaded.Document.Totals().GrandTotal.Equal(doc.Totals().GrandTotal))
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestRedisDraftStore_UnknownKeys(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisDraftStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	_, err = store.Get(ctx, "0b6f1f6e-8b5f-4c11-9a43-5d1f8f0f2f11")
	assert.ErrorIs(t, err, ErrDraftNotFound)
	assert.NoError(t, store.Delete(ctx, "0b6f1f6e-8b5f-4c11-9a43-5d1f8f0f2f11"))
}

func TestRedisDraftStore_GetRefreshesTTL(t *testing.T) {
	mr, client := newRedis(t)
	store := NewRedisDraftStore(client, time.Hour)
	ctx := context.Background()

	draft, err := store.Create(ctx, documents.New(documents.TypeSalesOrder, "C", "USD", fixedNow, documents.Defaults{}))
	require.NoError(t, err)

	mr.FastForward(50 * time.Minute)
	_, err = store.Get(ctx, draft.Key)
	require.NoError(t, err)
	mr.FastForward(50 * time.Minute)
	_, err = store.Get(ctx, draft.Key)
	require.NoError(t, err, "reading a draft extends its lifetime")
}
