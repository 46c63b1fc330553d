package jobs

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuotationExpiryScan classifies open quotations against their validity date.
	TaskQuotationExpiryScan = "sales:quotation_expiry_scan"
	// TaskCatalogWarmup preloads catalog prices into the Redis price cache.
	TaskCatalogWarmup = "sales:catalog_warmup"
)

// QuotationExpiryScanPayload bounds one scan. Zero means no limit.
type QuotationExpiryScanPayload struct {
	Limit int `json:"limit,omitempty"`
}

// NewQuotationExpiryScanTask constructs an Asynq task.
func NewQuotationExpiryScanTask(limit int) (*asynq.Task, error) {
	if limit < 0 {
		return nil, errors.New("jobs: negative scan limit")
	}
	data, err := json.Marshal(QuotationExpiryScanPayload{Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuotationExpiryScan, data), nil
}

// CatalogWarmupPayload lists the item references to warm.
type CatalogWarmupPayload struct {
	Items       []string `json:"items"`
	Concurrency int      `json:"concurrency,omitempty"`
}

// NewCatalogWarmupTask constructs an Asynq task.
func NewCatalogWarmupTask(payload CatalogWarmupPayload) (*asynq.Task, error) {
	if len(payload.Items) == 0 {
		return nil, errors.New("jobs: catalog warmup needs at least one item")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCatalogWarmup, data), nil
}
