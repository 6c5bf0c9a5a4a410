package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// ReportWarmer rebuilds the cached stock report.
type ReportWarmer interface {
	WarmReport(ctx context.Context) (int, error)
}

// ReportWarmupJob processes TaskStockReportWarmup tasks.
type ReportWarmupJob struct {
	Ledger  ReportWarmer
	Logger  *slog.Logger
	Metrics JobRecorder
	Timeout time.Duration
}

// NewReportWarmupJob wires dependencies for the warm-up handler.
func NewReportWarmupJob(ledger ReportWarmer, logger *slog.Logger, metrics JobRecorder) *ReportWarmupJob {
	return &ReportWarmupJob{Ledger: ledger, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle warms the stock report cache.
func (j *ReportWarmupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Ledger == nil {
		return errors.New("report warmup: handler not configured")
	}
	defer func() { record(j.Metrics, TaskStockReportWarmup, err) }()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	start := time.Now()
	lots, err := j.Ledger.WarmReport(ctx)
	if err != nil {
		loggerOr(j.Logger).Error("report warmup", slog.Any("error", err))
		return err
	}
	loggerOr(j.Logger).Info("report warmup completed", slog.Int("lots", lots), slog.Duration("duration", time.Since(start)))
	return nil
}
