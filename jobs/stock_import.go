package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lotledger/lotledger/internal/inventory"
)

// StockImporter applies pasted stock reports.
type StockImporter interface {
	ImportStockText(ctx context.Context, text string) (inventory.StockImportResult, error)
}

// JobRecorder receives job execution counters.
type JobRecorder interface {
	JobRun(task, status string)
}

// StockImportJob processes TaskStockImport tasks.
type StockImportJob struct {
	Ledger  StockImporter
	Logger  *slog.Logger
	Metrics JobRecorder
}

// NewStockImportJob wires dependencies for the import handler.
func NewStockImportJob(ledger StockImporter, logger *slog.Logger, metrics JobRecorder) *StockImportJob {
	return &StockImportJob{Ledger: ledger, Logger: logger, Metrics: metrics}
}

// Handle processes a stock import task. Malformed payloads and rejected
// reports are not retried; store failures are.
func (j *StockImportJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("stock import: handler not configured")
	}
	start := time.Now()
	defer func() { record(j.Metrics, TaskStockImport, err) }()

	var payload StockImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("stock import: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(payload.Text) == "" {
		return fmt.Errorf("stock import: empty report: %w", asynq.SkipRetry)
	}

	logger := loggerOr(j.Logger).With(slog.String("task", TaskStockImport))
	result, err := j.Ledger.ImportStockText(ctx, payload.Text)
	if err != nil {
		var storeErr *inventory.StoreError
		if errors.As(err, &storeErr) {
			logger.Warn("stock import failed, will retry", slog.Any("error", err))
			return err
		}
		logger.Error("stock import rejected", slog.Any("error", err))
		return fmt.Errorf("stock import: %v: %w", err, asynq.SkipRetry)
	}
	logger.Info("stock import completed",
		slog.Int("entries", result.Entries),
		slog.Int("lots", len(result.Applied)),
		slog.Int("skipped", len(result.Skipped)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func record(metrics JobRecorder, task string, err error) {
	if metrics == nil {
		return
	}
	status := "ok"
	switch {
	case errors.Is(err, asynq.SkipRetry):
		status = "skipped"
	case err != nil:
		status = "error"
	}
	metrics.JobRun(task, status)
}

func loggerOr(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
