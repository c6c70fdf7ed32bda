package ledger

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	collections map[string]float64
	refunds     float64
	sales       int
	services    int
	invoices    int
	expenses    float64
	buildCalls  int
	snapshots   []*DailySummary
}

func (m *mockRepo) CollectionsByMethod(context.Context, time.Time, time.Time) (map[string]float64, error) {
	m.buildCalls++
	out := make(map[string]float64, len(m.collections))
	for k, v := range m.collections {
		out[k] = v
	}
	return out, nil
}

func (m *mockRepo) RefundTotal(context.Context, time.Time, time.Time) (float64, error) {
	return m.refunds, nil
}

func (m *mockRepo) CompletedCounts(context.Context, time.Time, time.Time) (int, int, int, error) {
	return m.sales, m.services, m.invoices, nil
}

func (m *mockRepo) ExpenseTotal(context.Context, time.Time, time.Time) (float64, error) {
	return m.expenses, nil
}

func (m *mockRepo) SaveSnapshot(_ context.Context, summary *DailySummary) error {
	m.snapshots = append(m.snapshots, summary)
	return nil
}

func newTestService(t *testing.T, repo *mockRepo) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(repo, client, time.Minute, nil)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestDailySummaryFigures(t *testing.T) {
	repo := &mockRepo{
		collections: map[string]float64{"cash": 5000, "upi": 12000},
		refunds:     1500,
		sales:       4,
		services:    2,
		invoices:    1,
		expenses:    3200,
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	summary, err := svc.DailySummary(context.Background(), date)
	require.NoError(t, err)

	require.Equal(t, "2024-01-15", summary.Date)
	require.InDelta(t, 17000.0, summary.TotalCollected, 0.001)
	require.InDelta(t, 1500.0, summary.TotalRefunded, 0.001)
	require.InDelta(t, 15500.0, summary.NetCollected, 0.001)
	require.InDelta(t, 12300.0, summary.NetCash, 0.001)
	require.Equal(t, 4, summary.SalesCompleted)
	require.Equal(t, 2, summary.ServicesCompleted)
	require.Equal(t, 1, summary.InvoicesIssued)
	require.InDelta(t, 12000.0, summary.CollectionsByMethod["upi"], 0.001)
}

func TestDailySummaryCaches(t *testing.T) {
	repo := &mockRepo{collections: map[string]float64{"cash": 100}}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	date := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.DailySummary(context.Background(), date)
	require.NoError(t, err)
	_, err = svc.DailySummary(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 1, repo.buildCalls)

	// Invalidation forces a rebuild.
	svc.Invalidate(context.Background(), date)
	_, err = svc.DailySummary(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, 2, repo.buildCalls)
}

func TestMonthlySummaryAggregates(t *testing.T) {
	repo := &mockRepo{
		collections: map[string]float64{"card": 90000},
		expenses:    25000,
	}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	summary, err := svc.MonthlySummary(context.Background(), 2024, time.January)
	require.NoError(t, err)
	require.Equal(t, "2024-01", summary.Date)
	require.InDelta(t, 65000.0, summary.NetCash, 0.001)
}

func TestSnapshotPersistsAndRefreshesCache(t *testing.T) {
	repo := &mockRepo{collections: map[string]float64{"cash": 4000}, expenses: 1000}
	svc, cleanup := newTestService(t, repo)
	defer cleanup()

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	snap, err := svc.Snapshot(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, repo.snapshots, 1)
	require.Equal(t, "2024-01-15", repo.snapshots[0].Date)
	require.InDelta(t, 3000.0, snap.NetCash, 0.001)

	// The snapshot leaves the cache warm: a follow-up read does not rebuild.
	builds := repo.buildCalls
	_, err = svc.DailySummary(context.Background(), date)
	require.NoError(t, err)
	require.Equal(t, builds, repo.buildCalls)
}

func TestFormatAmountIndianGrouping(t *testing.T) {
	svc := NewService(&mockRepo{}, nil, time.Minute, nil)

	require.Equal(t, "₹1,23,456.50", svc.FormatAmount(123456.5))
	require.Equal(t, "₹500.00", svc.FormatAmount(500))
	require.Equal(t, "₹-1,200.00", svc.FormatAmount(-1200))
}
