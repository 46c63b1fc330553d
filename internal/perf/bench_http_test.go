package perf

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/pricing"
)

func newDraftRouter(t testing.TB) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := sales.NewService(sales.ServiceParams{
		Drafts: sales.NewRedisDraftStore(client, time.Hour),
		Logger: logger,
	})
	r := chi.NewRouter()
	r.Route("/sales", sales.NewHandler(logger, service).MountRoutes)
	return r
}

func serve(t testing.TB, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, time.Duration) {
	t.Helper()
	rec := httptest.NewRecorder()
	start := time.Now()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec, time.Since(start)
}

func TestDraftEditingLatencyTargets(t *testing.T) {
	router := newDraftRouter(t)

	rec, _ := serve(t, router, http.MethodPost, "/sales/drafts",
		`{"type":"quotation","customer":"CUST-001","currency":"USD","transaction_date":"2026-03-10"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create draft: %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil || created.Key == "" {
		t.Fatalf("decode draft key: %v %s", err, rec.Body.String())
	}

	var samples []time.Duration
	for i := 0; i < 40; i++ {
		body := fmt.Sprintf(`{"item_reference":"ITEM-%03d","quantity":"%d","unit_price":"19.99"}`, i, i%5+1)
		rec, elapsed := serve(t, router, http.MethodPost, "/sales/drafts/"+created.Key+"/lines", body)
		if rec.Code != http.StatusOK {
			t.Fatalf("add line %d: %d %s", i, rec.Code, rec.Body.String())
		}
		samples = append(samples, elapsed)
	}

	if p95 := percentile95(samples); p95 > 250*time.Millisecond {
		t.Fatalf("add line latency regression: p95=%s threshold=250ms", p95)
	}
}

func BenchmarkComputeTotals(b *testing.B) {
	ledger := &pricing.Ledger{}
	for i := 0; i < 500; i++ {
		if _, err := ledger.AddLine(fmt.Sprintf("ITEM-%d", i), "", decimal.NewFromInt(int64(i%7+1)), decimal.RequireFromString("12.345")); err != nil {
			b.Fatal(err)
		}
	}
	params := pricing.DefaultParameters()
	params.TaxRatePercent = decimal.NewFromInt(11)
	params.AdditionalDiscountPercent = decimal.NewFromInt(5)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pricing.ComputeTotals(ledger, params).Round("USD")
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
