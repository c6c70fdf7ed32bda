package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tempus-erp/tempus-erp/internal/jobs"
	"github.com/tempus-erp/tempus-erp/internal/ledger"
)

// SummaryBuilder is the slice of the ledger service the warmup needs.
type SummaryBuilder interface {
	Snapshot(ctx context.Context, date time.Time) (*ledger.DailySummary, error)
}

// LedgerWarmupJob closes out a day: it persists the summary row and leaves
// the cache warm so the first morning dashboard request does not pay for
// the aggregate queries.
type LedgerWarmupJob struct {
	Ledger  SummaryBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewLedgerWarmupJob initialises the warmup handler.
func NewLedgerWarmupJob(svc SummaryBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerWarmupJob {
	return &LedgerWarmupJob{
		Ledger:  svc,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one warmup run.
func (j *LedgerWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Ledger == nil {
		return errors.New("ledger warmup: handler not configured")
	}
	var payload LedgerWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	day := j.clock().AddDate(0, 0, -1)
	if payload.Date != "" {
		parsed, err := time.Parse("2006-01-02", payload.Date)
		if err != nil {
			return asynq.SkipRetry
		}
		day = parsed
	}

	tracker := j.Metrics.Track(TaskLedgerWarmup)
	summary, err := j.Ledger.Snapshot(ctx, day)
	if err != nil {
		j.logger().Error("ledger warmup failed",
			slog.String("date", day.Format("2006-01-02")),
			slog.Any("error", err))
		return tracker.End(err)
	}
	j.logger().Info("ledger warmup finished",
		slog.String("date", day.Format("2006-01-02")),
		slog.Float64("net_cash", summary.NetCash))
	return tracker.End(nil)
}

func (j *LedgerWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
