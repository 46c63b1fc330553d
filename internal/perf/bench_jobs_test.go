package perf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	jobmetrics "github.com/odyssey-erp/odyssey-sales/internal/jobs"
	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
	"github.com/odyssey-erp/odyssey-sales/jobs"
)

type slowPricer struct {
	delay time.Duration
}

func (p slowPricer) FetchCatalogPrice(ctx context.Context, item string) (decimal.Decimal, error) {
	select {
	case <-time.After(p.delay):
		return decimal.RequireFromString("42.50"), nil
	case <-ctx.Done():
		return decimal.Zero, ctx.Err()
	}
}

type staticLister struct {
	docs []*documents.SalesDocument
	err  error
}

func (l staticLister) ListDocuments(ctx context.Context, filter sales.ListFilter) ([]*documents.SalesDocument, error) {
	return l.docs, l.err
}

func openQuotations(n int, now time.Time) []*documents.SalesDocument {
	docs := make([]*documents.SalesDocument, 0, n)
	for i := 0; i < n; i++ {
		doc := documents.New(documents.TypeQuotation, "CUST-001", "USD", now.AddDate(0, 0, -30), documents.Defaults{})
		doc.ID = fmt.Sprintf("QTN-2026-%05d", i+1)
		doc.Status = documents.StatusSent
		until := now.AddDate(0, 0, i%20-5)
		doc.ValidUntil = &until
		docs = append(docs, doc)
	}
	return docs
}

func TestSalesJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := sales.NewPriceCache(slowPricer{delay: 2 * time.Millisecond}, client, time.Hour, logger)
	warmup := jobs.NewCatalogWarmupJob(cache, logger, metrics)
	for i := 0; i < 20; i++ {
		items := make([]string, 25)
		for j := range items {
			items[j] = fmt.Sprintf("ITEM-%d-%d", i, j)
		}
		task, err := jobs.NewCatalogWarmupTask(jobs.CatalogWarmupPayload{Items: items, Concurrency: 8})
		if err != nil {
			t.Fatalf("build warmup task: %v", err)
		}
		if err := warmup.Handle(ctx, task); err != nil {
			t.Fatalf("warmup run %d: %v", i, err)
		}
	}

	scan := jobs.NewQuotationExpiryScanJob(staticLister{docs: openQuotations(500, time.Now())}, nil, logger, metrics)
	scanTask, err := jobs.NewQuotationExpiryScanTask(0)
	if err != nil {
		t.Fatalf("build scan task: %v", err)
	}
	for i := 0; i < 30; i++ {
		if err := scan.Handle(ctx, scanTask); err != nil {
			t.Fatalf("scan run %d: %v", i, err)
		}
	}

	// A store outage fails the run and is counted.
	failing := jobs.NewQuotationExpiryScanJob(staticLister{err: errors.New("store unavailable")}, nil, logger, metrics)
	if err := failing.Handle(ctx, asynq.NewTask(jobs.TaskQuotationExpiryScan, nil)); err == nil {
		t.Fatal("expected store error to propagate")
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskQuotationExpiryScan, "status": "success"})
	failure := metricValue(t, families, "odyssey_jobs_total", map[string]string{"job": jobs.TaskQuotationExpiryScan, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("expiry scan success ratio too low: %f", ratio)
	}

	warmed := metricValue(t, families, "odyssey_job_items_total", map[string]string{"job": jobs.TaskCatalogWarmup, "outcome": "warmed"})
	if warmed != 500 {
		t.Fatalf("warmed items = %v, want 500", warmed)
	}

	if mean := histogramMean(t, families, "odyssey_job_duration_seconds", map[string]string{"job": jobs.TaskCatalogWarmup}); mean > 0.5 {
		t.Fatalf("catalog warmup duration above budget: %f", mean)
	}
	if mean := histogramMean(t, families, "odyssey_job_duration_seconds", map[string]string{"job": jobs.TaskQuotationExpiryScan}); mean > 0.2 {
		t.Fatalf("expiry scan duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(metric.GetLabel()))
	for _, lp := range metric.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for key, val := range labels {
		if v, ok := got[key]; !ok || v != val {
			return false
		}
	}
	return true
}
