package ledger

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDailyDefaultsToServiceClock(t *testing.T) {
	repo := &mockRepo{collections: map[string]float64{"cash": 250}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()
	svc.now = func() time.Time {
		return time.Date(2024, 3, 5, 15, 4, 0, 0, time.UTC)
	}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	req := httptest.NewRequest("GET", "/ledger/daily", nil)
	rec := httptest.NewRecorder()
	h.Daily(rec, req)

	require.Equal(t, 200, rec.Code)
	var summary DailySummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "2024-03-05", summary.Date)
	require.InDelta(t, 250.0, summary.TotalCollected, 0.001)
}

func TestDailyRejectsMalformedDate(t *testing.T) {
	svc, cleanup := newTestService(t, &mockRepo{})
	defer cleanup()
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)

	req := httptest.NewRequest("GET", "/ledger/daily?date=05-03-2024", nil)
	rec := httptest.NewRecorder()
	h.Daily(rec, req)

	require.Equal(t, 400, rec.Code)
}
