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
)

// CatalogWarmer refreshes cached catalog prices. *sales.PriceCache satisfies it.
type CatalogWarmer interface {
	Warm(ctx context.Context, items []string, concurrency int) (int, error)
}

// CatalogWarmupJob pre-populates the catalog price cache.
type CatalogWarmupJob struct {
	Cache   CatalogWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewCatalogWarmupJob wires dependencies for the warmup handler.
func NewCatalogWarmupJob(cache CatalogWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *CatalogWarmupJob {
	return &CatalogWarmupJob{Cache: cache, Logger: logger, Metrics: metrics, Timeout: 2 * time.Minute}
}

// Handle processes catalog warmup tasks.
func (j *CatalogWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Cache == nil {
		return errors.New("catalog warmup: handler not configured")
	}
	var payload CatalogWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if len(payload.Items) == 0 {
		return fmt.Errorf("no items: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskCatalogWarmup)
	defer func() {
		err = tracker.End(err)
	}()

	logger := j.logger().With(slog.Int("items", len(payload.Items)))
	logger.Info("starting catalog warmup")

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}

	start := time.Now()
	warmed, err := j.Cache.Warm(ctx, payload.Items, payload.Concurrency)
	j.metrics().AddItems(TaskCatalogWarmup, "warmed", warmed)
	j.metrics().AddItems(TaskCatalogWarmup, "failed", len(payload.Items)-warmed)
	if err != nil {
		logger.Error("catalog warmup", slog.Int("warmed", warmed), slog.Any("error", err))
		return err
	}
	logger.Info("completed catalog warmup", slog.Int("warmed", warmed), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *CatalogWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskCatalogWarmup))
	}
	return slog.Default().With(slog.String("job", TaskCatalogWarmup))
}

func (j *CatalogWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
