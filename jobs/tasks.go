// Package jobs contains the asynq task definitions and handlers for the
// background work the shop runs outside request handling: the nightly
// overdue scan, the ledger cache warmup and the stock level scan.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"

	// TaskOverdueScan flags open documents whose due date has passed.
	TaskOverdueScan = "billing:overdue_scan"
	// TaskLedgerWarmup precomputes the daily cash summary into the cache.
	TaskLedgerWarmup = "ledger:warmup"
	// TaskStockScan reports items at or below their low stock threshold.
	TaskStockScan = "inventory:stock_scan"
)

// OverdueScanPayload is currently empty; the type exists so the payload can
// grow without changing the task signature.
type OverdueScanPayload struct{}

// LedgerWarmupPayload selects the day to warm. An empty date means the
// previous calendar day.
type LedgerWarmupPayload struct {
	Date string `json:"date,omitempty"`
}

// StockScanPayload mirrors OverdueScanPayload.
type StockScanPayload struct{}

// NewOverdueScanTask constructs the overdue scan task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// NewLedgerWarmupTask constructs the ledger warmup task.
func NewLedgerWarmupTask(payload LedgerWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerWarmup, data), nil
}

// NewStockScanTask constructs the stock scan task.
func NewStockScanTask() (*asynq.Task, error) {
	data, err := json.Marshal(StockScanPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockScan, data), nil
}
