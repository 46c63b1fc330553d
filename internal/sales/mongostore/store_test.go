package mongostore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

var testDate = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func sampleQuotation(t *testing.T) *documents.SalesDocument {
	t.Helper()
	doc := documents.New(documents.TypeQuotation, "CUST-001", "USD", testDate, documents.Defaults{})
	until := testDate.AddDate(0, 0, 30)
	doc.ValidUntil = &until
	doc.Pricing.TaxRatePercent = decimal.NewFromInt(10)
	doc.Pricing.AdditionalCharges = decimal.NewFromInt(5)
	_, err := doc.Lines.AddLine("ITEM-A", "Widget", decimal.NewFromInt(2), decimal.NewFromInt(100))
	require.NoError(t, err)
	_, err = doc.Lines.AddLine("ITEM-B", "Gadget", decimal.NewFromInt(1), decimal.RequireFromString("50.25"))
	require.NoError(t, err)
	return doc
}

func asBSON(t *testing.T, rec documentRecord) bson.D {
	t.Helper()
	raw, err := bson.Marshal(rec)
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

// ============================================================================
// RECORD MAPPING
// ============================================================================

func TestRecordRoundTrip(t *testing.T) {
	doc := sampleQuotation(t)
	doc.ID = "QTN-2026-00001"

	rec := recordFrom(doc)
	assert.Equal(t, "250.25", rec.Totals.Subtotal)
	assert.Equal(t, "2", rec.Lines[0].Quantity)
	assert.Equal(t, "50.25", rec.Lines[1].UnitPrice)

	back, err := rec.toDocument()
	require.NoError(t, err)
	assert.Equal(t, doc.ID, back.ID)
	assert.Equal(t, doc.Status, back.Status)
	assert.Equal(t, 2, back.Lines.Len())
	assert.True(t, doc.Totals().GrandTotal.Equal(back.Totals().GrandTotal))
	assert.Equal(t, pricing.DiscountOnGrandTotal, back.Pricing.ApplyDiscountOn)
}

func TestRecordRejectsInvalidData(t *testing.T) {
	rec := recordFrom(sampleQuotation(t))
	rec.Lines[0].Quantity = "0"
	_, err := rec.toDocument()
	assert.ErrorIs(t, err, pricing.ErrInvalidQuantity)

	rec = recordFrom(sampleQuotation(t))
	rec.Pricing.TaxRatePercent = "120"
	_, err = rec.toDocument()
	assert.ErrorIs(t, err, pricing.ErrInvalidParameters)
}

func TestListQuery(t *testing.T) {
	q := listQuery(sales.ListFilter{Type: documents.TypeQuotation})
	assert.Equal(t, bson.M{"type": "Quotation"}, q)

	q = listQuery(sales.ListFilter{
		Type:     documents.TypeQuotation,
		Statuses: []documents.Status{documents.StatusDraft, documents.StatusSent},
	})
	assert.Equal(t, bson.M{"$in": []string{"DRAFT", "SENT"}}, q["status"])
}

// ============================================================================
// STORE (mock deployment)
// ============================================================================

func TestStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	ns := "test." + documentsCollection

	mt.Run("fetch found", func(mt *mtest.T) {
		rec := recordFrom(sampleQuotation(t))
		rec.ID = "QTN-2026-00001"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, asBSON(t, rec)))

		doc, err := New(mt.DB).FetchDocument(ctx, documents.TypeQuotation, "QTN-2026-00001")
		require.NoError(mt, err)
		assert.Equal(mt, "CUST-001", doc.CustomerReference)
		assert.Equal(mt, 2, doc.Lines.Len())
	})

	mt.Run("fetch missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := New(mt.DB).FetchDocument(ctx, documents.TypeQuotation, "QTN-2026-09999")
		assert.ErrorIs(mt, err, documents.ErrNotFound)
	})

	mt.Run("create numbers document", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
				{Key: "_id", Value: numberCounter},
				{Key: "seq", Value: int64(7)},
			}}),
			mtest.CreateSuccessResponse(),
		)

		id, err := New(mt.DB).CreateDocument(ctx, documents.TypeQuotation, sampleQuotation(t))
		require.NoError(mt, err)
		assert.Equal(mt, "QTN-2026-00007", id)
	})

	mt.Run("update missing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := New(mt.DB).UpdateDocument(ctx, documents.TypeQuotation, "QTN-2026-09999", sampleQuotation(t))
		assert.ErrorIs(mt, err, documents.ErrNotFound)
	})

	mt.Run("list", func(mt *mtest.T) {
		first := recordFrom(sampleQuotation(t))
		first.ID = "QTN-2026-00001"
		second := recordFrom(sampleQuotation(t))
		second.ID = "QTN-2026-00002"
		second.Status = string(documents.StatusSent)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, asBSON(t, first), asBSON(t, second)))

		docs, err := New(mt.DB).ListDocuments(ctx, sales.ListFilter{Type: documents.TypeQuotation})
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, documents.StatusSent, docs[1].Status)
	})
}
