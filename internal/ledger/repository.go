package ledger

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempus-erp/tempus-erp/internal/billing"
)

// Repository reads the raw figures as aggregates over the billing and
// expense tables. The only write is the nightly snapshot row.
type Repository interface {
	CollectionsByMethod(ctx context.Context, from, to time.Time) (map[string]float64, error)
	RefundTotal(ctx context.Context, from, to time.Time) (float64, error)
	CompletedCounts(ctx context.Context, from, to time.Time) (sales, services, invoices int, err error)
	ExpenseTotal(ctx context.Context, from, to time.Time) (float64, error)
	SaveSnapshot(ctx context.Context, summary *DailySummary) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CollectionsByMethod(ctx context.Context, from, to time.Time) (map[string]float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT method, COALESCE(SUM(amount), 0)
		FROM `+billing.TablePayments+`
		WHERE amount > 0 AND recorded_at >= $1 AND recorded_at < $2
		GROUP BY method`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := make(map[string]float64)
	for rows.Next() {
		var method string
		var total float64
		if err := rows.Scan(&method, &total); err != nil {
			return nil, err
		}
		collections[method] = total
	}
	return collections, rows.Err()
}

func (r *repository) RefundTotal(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(-SUM(amount), 0)
		FROM `+billing.TablePayments+`
		WHERE amount < 0 AND recorded_at >= $1 AND recorded_at < $2`, from, to).Scan(&total)
	return total, err
}

func (r *repository) CompletedCounts(ctx context.Context, from, to time.Time) (int, int, int, error) {
	var sales, services int
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE kind = 'sale'),
			COUNT(*) FILTER (WHERE kind = 'service')
		FROM transactions
		WHERE completed_at >= $1 AND completed_at < $2 AND deleted_at IS NULL`,
		from, to).Scan(&sales, &services)
	if err != nil {
		return 0, 0, 0, err
	}

	var invoices int
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE kind = 'invoice' AND created_at >= $1 AND created_at < $2 AND deleted_at IS NULL`,
		from, to).Scan(&invoices)
	return sales, services, invoices, err
}

func (r *repository) ExpenseTotal(ctx context.Context, from, to time.Time) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM expenses
		WHERE expense_date >= $1 AND expense_date < $2`, from, to).Scan(&total)
	return total, err
}

// SaveSnapshot upserts the day's figures into daily_summaries. Re-running
// the snapshot for a day replaces the stored row.
func (r *repository) SaveSnapshot(ctx context.Context, summary *DailySummary) error {
	collections, err := json.Marshal(summary.CollectionsByMethod)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO daily_summaries (summary_date, collections_by_method,
			total_collected, total_refunded, net_collected,
			expense_total, net_cash,
			sales_completed, services_completed, invoices_issued, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (summary_date) DO UPDATE SET
			collections_by_method = EXCLUDED.collections_by_method,
			total_collected = EXCLUDED.total_collected,
			total_refunded = EXCLUDED.total_refunded,
			net_collected = EXCLUDED.net_collected,
			expense_total = EXCLUDED.expense_total,
			net_cash = EXCLUDED.net_cash,
			sales_completed = EXCLUDED.sales_completed,
			services_completed = EXCLUDED.services_completed,
			invoices_issued = EXCLUDED.invoices_issued,
			generated_at = now()`,
		summary.Date, collections,
		summary.TotalCollected, summary.TotalRefunded, summary.NetCollected,
		summary.ExpenseTotal, summary.NetCash,
		summary.SalesCompleted, summary.ServicesCompleted, summary.InvoicesIssued)
	return err
}
