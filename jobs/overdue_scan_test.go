package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempus-erp/tempus-erp/internal/inventory"
)

type stubMarker struct {
	marked int
	err    error
	calls  int
}

func (s *stubMarker) MarkOverdue(context.Context) (int, error) {
	s.calls++
	return s.marked, s.err
}

type stubStock struct {
	items []inventory.WatchItem
	err   error
}

func (s *stubStock) LowStockItems(context.Context) ([]inventory.WatchItem, error) {
	return s.items, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOverdueScanHandle(t *testing.T) {
	marker := &stubMarker{marked: 2}
	job := NewOverdueScanJob(marker, testLogger(), nil)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, marker.calls)
}

func TestOverdueScanPropagatesErrors(t *testing.T) {
	marker := &stubMarker{err: errors.New("db down")}
	job := NewOverdueScanJob(marker, testLogger(), nil)

	task, err := NewOverdueScanTask(OverdueScanPayload{})
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
}

func TestStockScanHandle(t *testing.T) {
	stock := &stubStock{items: []inventory.WatchItem{
		{SKU: "TIT-001", Name: "Titan field watch", Quantity: 1, LowStockThreshold: 3},
	}}
	job := NewStockScanJob(stock, testLogger(), nil)

	task, err := NewStockScanTask()
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
}
