package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockImport applies a pasted stock report to the ledger.
	TaskStockImport = "stock:import"
	// TaskStockReportWarmup rebuilds the cached stock report.
	TaskStockReportWarmup = "stock:report_warmup"
)

// StockImportPayload carries the raw pasted stock report.
type StockImportPayload struct {
	Text       string    `json:"text"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewStockImportTask constructs an Asynq task for a stock report import.
func NewStockImportTask(text string) (*asynq.Task, error) {
	if text == "" {
		return nil, errors.New("jobs: stock import text required")
	}
	data, err := json.Marshal(StockImportPayload{Text: text, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockImport, data, asynq.MaxRetry(5), asynq.Timeout(2*time.Minute)), nil
}

// NewStockReportWarmupTask constructs the periodic report warm-up task.
func NewStockReportWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskStockReportWarmup, nil, asynq.MaxRetry(1), asynq.Timeout(time.Minute))
}
