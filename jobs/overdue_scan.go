package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tempus-erp/tempus-erp/internal/jobs"
)

// OverdueMarker is the slice of the billing service the scan needs.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int, error)
}

// OverdueScanJob walks open documents past their due date and persists the
// overdue payment status.
type OverdueScanJob struct {
	Billing OverdueMarker
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOverdueScanJob initialises the overdue scan handler.
func NewOverdueScanJob(billing OverdueMarker, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueScanJob {
	return &OverdueScanJob{Billing: billing, Logger: logger, Metrics: metrics}
}

// Handle executes one overdue scan.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Billing == nil {
		return errors.New("overdue scan: handler not configured")
	}
	var payload OverdueScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskOverdueScan)
	marked, err := j.Billing.MarkOverdue(ctx)
	if err != nil {
		j.logger().Error("overdue scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.SetOverdueDocuments(marked)
	j.logger().Info("overdue scan finished", slog.Int("marked", marked))
	return tracker.End(nil)
}

func (j *OverdueScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
