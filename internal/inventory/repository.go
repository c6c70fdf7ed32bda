package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempus-erp/tempus-erp/internal/platform/db"
	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
)

// Repository persists watch items and their movement ledger.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*WatchItem, error)
	GetBySKU(ctx context.Context, sku string) (*WatchItem, error)
	List(ctx context.Context, filter ListItemsFilter) ([]WatchItem, int, error)
	Create(ctx context.Context, item WatchItem) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Movements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error)
}

// TxRepository holds the operations that must share a transaction: the
// insert or quantity change and its ledger entry.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (*WatchItem, error)
	Create(ctx context.Context, item WatchItem) (int64, error)
	ApplyMovement(ctx context.Context, m StockMovement) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const itemColumns = `id, sku, brand, model, name, description,
	cost_price, selling_price, quantity, low_stock_threshold,
	is_active, created_by, created_at, updated_at`

func (r *repository) Get(ctx context.Context, id int64) (*WatchItem, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM watch_items WHERE id = $1`, id)
	return scanItem(row)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*WatchItem, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM watch_items WHERE id = $1 FOR UPDATE`, id)
	return scanItem(row)
}

func (r *repository) GetBySKU(ctx context.Context, sku string) (*WatchItem, error) {
	row := r.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM watch_items WHERE sku = $1`, sku)
	return scanItem(row)
}

func (r *repository) List(ctx context.Context, filter ListItemsFilter) ([]WatchItem, int, error) {
	var conditions []string
	var args []any
	argPos := 1

	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("is_active = $%d", argPos))
		args = append(args, *filter.IsActive)
		argPos++
	}
	if filter.Brand != nil && *filter.Brand != "" {
		conditions = append(conditions, fmt.Sprintf("brand ILIKE $%d", argPos))
		args = append(args, *filter.Brand)
		argPos++
	}
	if filter.Search != nil && *filter.Search != "" {
		pattern := "%" + *filter.Search + "%"
		conditions = append(conditions, fmt.Sprintf("(sku ILIKE $%d OR name ILIKE $%d OR brand ILIKE $%d OR model ILIKE $%d)", argPos, argPos, argPos, argPos))
		args = append(args, pattern)
		argPos++
	}
	if filter.LowOnly {
		conditions = append(conditions, "quantity <= low_stock_threshold")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + conditions[0]
		for i := 1; i < len(conditions); i++ {
			whereClause += " AND " + conditions[i]
		}
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM watch_items "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM watch_items %s ORDER BY brand, model LIMIT $%d OFFSET $%d`,
		itemColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []WatchItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *item)
	}
	return items, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, item WatchItem) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO watch_items (sku, brand, model, name, description,
			cost_price, selling_price, quantity, low_stock_threshold,
			is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id`,
		item.SKU, item.Brand, item.Model, item.Name, item.Description,
		item.CostPrice, item.SellingPrice, item.Quantity, item.LowStockThreshold,
		item.IsActive, item.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE watch_items SET updated_at = NOW()"
	var args []any
	argPos := 1

	for _, col := range []string{"sku", "brand", "model", "name", "description",
		"cost_price", "selling_price", "low_stock_threshold", "is_active"} {
		if v, ok := updates[col]; ok {
			query += fmt.Sprintf(", %s = $%d", col, argPos)
			args = append(args, v)
			argPos++
		}
	}

	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

// ApplyMovement updates the quantity and appends the ledger entry together.
// The quantity guard lives in SQL so concurrent movements cannot drive stock
// negative between read and write.
func (r *repository) ApplyMovement(ctx context.Context, m StockMovement) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE watch_items SET quantity = quantity + $2, updated_at = NOW()
		 WHERE id = $1 AND quantity + $2 >= 0`,
		m.ItemID, m.Delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNegativeStock
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO stock_movements (item_id, delta, kind, reference, note, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		m.ItemID, m.Delta, m.Kind, m.Reference, m.Note, m.ActorID)
	return err
}

func (r *repository) Movements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, item_id, delta, kind, reference, note, actor_id, created_at
		FROM stock_movements WHERE item_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`, itemID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		var createdAt pgtype.Timestamptz
		if err := rows.Scan(&m.ID, &m.ItemID, &m.Delta, &m.Kind, &m.Reference, &m.Note, &m.ActorID, &createdAt); err != nil {
			return nil, err
		}
		if createdAt.Valid {
			m.CreatedAt = createdAt.Time
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*WatchItem, error) {
	var item WatchItem
	var description pgtype.Text
	var createdAt, updatedAt pgtype.Timestamptz

	err := row.Scan(
		&item.ID, &item.SKU, &item.Brand, &item.Model, &item.Name, &description,
		&item.CostPrice, &item.SellingPrice, &item.Quantity, &item.LowStockThreshold,
		&item.IsActive, &item.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}

	if description.Valid {
		item.Description = &description.String
	}
	if createdAt.Valid {
		item.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		item.UpdatedAt = updatedAt.Time
	}
	return &item, nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", httpx.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
