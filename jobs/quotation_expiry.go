package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-sales/internal/jobs"
	"github.com/odyssey-erp/odyssey-sales/internal/sales"
	"github.com/odyssey-erp/odyssey-sales/internal/sales/documents"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ValidityRecorder receives the per-classification quotation counts of a scan.
type ValidityRecorder interface {
	SetQuotationValidity(counts map[string]int)
}

// ScanResult summarises one expiry scan.
type ScanResult struct {
	Scanned      int
	Counts       map[documents.Validity]int
	Expired      []string
	ExpiringSoon []string
}

// QuotationExpiryScanJob classifies draft and sent quotations. It only reports;
// quotation status is never changed by the scan.
type QuotationExpiryScanJob struct {
	Lister   sales.DocumentLister
	Validity ValidityRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewQuotationExpiryScanJob wires dependencies for the scan handler.
func NewQuotationExpiryScanJob(lister sales.DocumentLister, validity ValidityRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuotationExpiryScanJob {
	return &QuotationExpiryScanJob{
		Lister:   lister,
		Validity: validity,
		Logger:   logger,
		Metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle processes expiry scan tasks.
func (j *QuotationExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil {
		return errors.New("quotation expiry scan: handler not configured")
	}
	var payload QuotationExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskQuotationExpiryScan)
	defer func() {
		err = tracker.End(err)
	}()

	_, err = j.Scan(ctx, payload.Limit)
	return err
}

// Scan lists open quotations, classifies them at the current time and
// publishes the counts.
func (j *QuotationExpiryScanJob) Scan(ctx context.Context, limit int) (ScanResult, error) {
	logger := j.logger()
	if j.Lister == nil {
		return ScanResult{}, errors.New("quotation expiry scan: store cannot list documents")
	}

	docs, err := j.Lister.ListDocuments(ctx, sales.ListFilter{
		Type:     documents.TypeQuotation,
		Statuses: []documents.Status{documents.StatusDraft, documents.StatusSent},
		Limit:    limit,
	})
	if err != nil {
		logger.Error("list quotations", slog.Any("error", err))
		return ScanResult{}, err
	}

	now := j.now()
	result := ScanResult{
		Scanned: len(docs),
		Counts: map[documents.Validity]int{
			documents.ValidityActive:       0,
			documents.ValidityExpiringSoon: 0,
			documents.ValidityExpired:      0,
		},
	}
	for _, doc := range docs {
		v := documents.Classify(doc, now)
		result.Counts[v]++
		switch v {
		case documents.ValidityExpired:
			result.Expired = append(result.Expired, doc.ID)
		case documents.ValidityExpiringSoon:
			result.ExpiringSoon = append(result.ExpiringSoon, doc.ID)
		}
	}

	gauge := make(map[string]int, len(result.Counts))
	for v, n := range result.Counts {
		gauge[string(v)] = n
		j.metrics().AddItems(TaskQuotationExpiryScan, string(v), n)
	}
	if j.Validity != nil {
		j.Validity.SetQuotationValidity(gauge)
	}

	logger.Info("quotation expiry scan",
		slog.Int("scanned", result.Scanned),
		slog.Int("expired", len(result.Expired)),
		slog.Int("expiring_soon", len(result.ExpiringSoon)),
	)
	if len(result.Expired) > 0 {
		logger.Warn("quotations past validity", slog.Any("ids", result.Expired))
	}
	return result, nil
}

func (j *QuotationExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskQuotationExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskQuotationExpiryScan))
}

func (j *QuotationExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *QuotationExpiryScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now()
}
