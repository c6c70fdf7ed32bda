package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/tempus-erp/tempus-erp/internal/jobs"
	"github.com/tempus-erp/tempus-erp/internal/inventory"
)

// StockLister is the slice of the inventory service the scan needs.
type StockLister interface {
	LowStockItems(ctx context.Context) ([]inventory.WatchItem, error)
}

// StockScanJob reports active items at or below their low stock threshold.
type StockScanJob struct {
	Inventory StockLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewStockScanJob initialises the stock scan handler.
func NewStockScanJob(inv StockLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockScanJob {
	return &StockScanJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle executes one stock scan.
func (j *StockScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Inventory == nil {
		return errors.New("stock scan: handler not configured")
	}

	tracker := j.Metrics.Track(TaskStockScan)
	items, err := j.Inventory.LowStockItems(ctx)
	if err != nil {
		j.logger().Error("stock scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	j.Metrics.SetLowStockItems(len(items))
	for _, item := range items {
		j.logger().Warn("item low on stock",
			slog.String("sku", item.SKU),
			slog.String("name", item.Name),
			slog.Int("quantity", item.Quantity),
			slog.Int("threshold", item.LowStockThreshold))
	}
	j.logger().Info("stock scan finished", slog.Int("low", len(items)))
	return tracker.End(nil)
}

func (j *StockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
