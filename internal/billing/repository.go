package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tempus-erp/tempus-erp/internal/platform/db"
)

// TablePayments is the payment event table. Billing is the only writer;
// the ledger aggregates read it directly, so both sides build their SQL
// from this constant.
const TablePayments = "transaction_payments"

// ListFilter narrows List results.
type ListFilter struct {
	Kind           *Kind
	Status         *Status
	PaymentStatus  *PaymentStatus
	CustomerID     *int64
	From           *time.Time
	To             *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// Repository provides PostgreSQL backed persistence for transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (*Transaction, error)
	GetByNumber(ctx context.Context, number string) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, int, error)
	ListDueBefore(ctx context.Context, cutoff time.Time) ([]Transaction, error)
}

// TxRepository exposes the operations that must share one database
// transaction: the numbering step, the record writes and the cross-module
// side writes (stock, customer counters).
type TxRepository interface {
	Sequencer
	GetForUpdate(ctx context.Context, id int64) (*Transaction, error)
	Insert(ctx context.Context, t *Transaction) (int64, error)
	ReplaceItems(ctx context.Context, txID int64, items []LineItem) error
	UpdateFinancials(ctx context.Context, t *Transaction) error
	UpdateStatus(ctx context.Context, t *Transaction) error
	SetPaymentState(ctx context.Context, t *Transaction) error
	InsertPayment(ctx context.Context, ev PaymentEvent) (int64, error)
	InsertStatusChange(ctx context.Context, txID int64, sc StatusChange) error
	InsertNote(ctx context.Context, txID int64, note Note) (int64, error)
	SetTombstone(ctx context.Context, txID int64, ts *Tombstone) error
	AdjustStock(ctx context.Context, itemID int64, delta int, refNumber string, actor int64) error
	ApplyCustomerStats(ctx context.Context, customerID int64, purchases, services int, net float64) error
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

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const txColumns = `id, number, kind, customer_id, source_id, status, payment_status,
	discount_kind, discount_value, discount_applied, discount_reason,
	tax_kind, tax_rate, tax_amount,
	subtotal, total_amount, paid_amount, balance_amount,
	due_date, started_at, completed_at,
	deleted_at, deleted_by, deleted_reason,
	created_by, created_at, updated_at`

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var deletedAt *time.Time
	var deletedBy *int64
	var deletedReason *string
	err := row.Scan(
		&t.ID, &t.Number, &t.Kind, &t.CustomerID, &t.SourceID, &t.Status, &t.PaymentStatus,
		&t.Discount.Kind, &t.Discount.Value, &t.Discount.Applied, &t.Discount.Reason,
		&t.Tax.Kind, &t.Tax.Rate, &t.Tax.Amount,
		&t.Subtotal, &t.TotalAmount, &t.PaidAmount, &t.BalanceAmount,
		&t.DueDate, &t.StartedAt, &t.CompletedAt,
		&deletedAt, &deletedBy, &deletedReason,
		&t.CreatedBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if deletedAt != nil {
		ts := Tombstone{At: *deletedAt}
		if deletedBy != nil {
			ts.By = *deletedBy
		}
		if deletedReason != nil {
			ts.Reason = *deletedReason
		}
		t.Deleted = &ts
	}
	return &t, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) GetByNumber(ctx context.Context, number string) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE number = $1`, number))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Transaction, error) {
	t, err := scanTransaction(r.db.QueryRow(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repository) loadChildren(ctx context.Context, t *Transaction) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, transaction_id, item_id, description, quantity, unit_price, subtotal, tax_rate, tax_amount, position
		 FROM transaction_items WHERE transaction_id = $1 ORDER BY position, id`, t.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.ItemID, &it.Description, &it.Quantity,
			&it.UnitPrice, &it.Subtotal, &it.TaxRate, &it.TaxAmount, &it.Position); err != nil {
			return err
		}
		t.Items = append(t.Items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	payRows, err := r.db.Query(ctx,
		`SELECT id, transaction_id, amount, method, reference, notes, recorded_by, recorded_at
		 FROM `+TablePayments+` WHERE transaction_id = $1 ORDER BY recorded_at, id`, t.ID)
	if err != nil {
		return err
	}
	defer payRows.Close()
	for payRows.Next() {
		var ev PaymentEvent
		if err := payRows.Scan(&ev.ID, &ev.TransactionID, &ev.Amount, &ev.Method,
			&ev.Reference, &ev.Notes, &ev.RecordedBy, &ev.RecordedAt); err != nil {
			return err
		}
		t.Payments = append(t.Payments, ev)
	}
	if err := payRows.Err(); err != nil {
		return err
	}

	histRows, err := r.db.Query(ctx,
		`SELECT status, changed_by, changed_at, reason
		 FROM transaction_status_history WHERE transaction_id = $1 ORDER BY changed_at, id`, t.ID)
	if err != nil {
		return err
	}
	defer histRows.Close()
	for histRows.Next() {
		var sc StatusChange
		if err := histRows.Scan(&sc.Status, &sc.ChangedBy, &sc.ChangedAt, &sc.Reason); err != nil {
			return err
		}
		t.History = append(t.History, sc)
	}
	if err := histRows.Err(); err != nil {
		return err
	}

	noteRows, err := r.db.Query(ctx,
		`SELECT id, note, created_by, created_at
		 FROM transaction_notes WHERE transaction_id = $1 ORDER BY created_at, id`, t.ID)
	if err != nil {
		return err
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var n Note
		if err := noteRows.Scan(&n.ID, &n.Text, &n.CreatedBy, &n.CreatedAt); err != nil {
			return err
		}
		t.Notes = append(t.Notes, n)
	}
	return noteRows.Err()
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	where := ""
	args := []any{}
	add := func(clause string, value any) {
		args = append(args, value)
		if where == "" {
			where = "WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, len(args))
	}
	if !filter.IncludeDeleted {
		if where == "" {
			where = "WHERE deleted_at IS NULL"
		}
	}
	if filter.Kind != nil {
		add("kind = $%d", *filter.Kind)
	}
	if filter.Status != nil {
		add("status = $%d", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		add("payment_status = $%d", *filter.PaymentStatus)
	}
	if filter.CustomerID != nil {
		add("customer_id = $%d", *filter.CustomerID)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM transactions `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	rows, err := r.db.Query(ctx,
		`SELECT `+txColumns+` FROM transactions `+where+
			fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ListDueBefore returns open invoices whose due date has passed and whose
// stored payment status has not caught up yet. Used by the overdue scan.
func (r *repository) ListDueBefore(ctx context.Context, cutoff time.Time) ([]Transaction, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE deleted_at IS NULL
		   AND due_date IS NOT NULL AND due_date < $1
		   AND payment_status IN ('unpaid','partial')
		   AND status NOT IN ('cancelled','returned','refunded')`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func (r *repository) NextSequence(ctx context.Context, prefix string, date time.Time) (int, error) {
	// The counter row is written inside the caller's transaction, so two
	// concurrent creates serialize on the row lock and the numbers they
	// consume commit or roll back together with their records.
	var seq int
	err := r.db.QueryRow(ctx,
		`INSERT INTO doc_sequences (prefix, seq_date, last_seq)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (prefix, seq_date)
		 DO UPDATE SET last_seq = doc_sequences.last_seq + 1
		 RETURNING last_seq`,
		prefix, date.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *repository) Insert(ctx context.Context, t *Transaction) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO transactions (
			number, kind, customer_id, source_id, status, payment_status,
			discount_kind, discount_value, discount_applied, discount_reason,
			tax_kind, tax_rate, tax_amount,
			subtotal, total_amount, paid_amount, balance_amount,
			due_date, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		RETURNING id`,
		t.Number, t.Kind, t.CustomerID, t.SourceID, t.Status, t.PaymentStatus,
		t.Discount.Kind, t.Discount.Value, t.Discount.Applied, t.Discount.Reason,
		t.Tax.Kind, t.Tax.Rate, t.Tax.Amount,
		t.Subtotal, t.TotalAmount, t.PaidAmount, t.BalanceAmount,
		t.DueDate, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapPgError(err)
	}
	return id, nil
}

func (r *repository) ReplaceItems(ctx context.Context, txID int64, items []LineItem) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM transaction_items WHERE transaction_id = $1`, txID); err != nil {
		return err
	}
	for i, it := range items {
		pos := it.Position
		if pos == 0 {
			pos = i + 1
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO transaction_items (transaction_id, item_id, description, quantity, unit_price, subtotal, tax_rate, tax_amount, position)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			txID, it.ItemID, it.Description, it.Quantity, it.UnitPrice, it.Subtotal, it.TaxRate, it.TaxAmount, pos)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) UpdateFinancials(ctx context.Context, t *Transaction) error {
	_, err := r.db.Exec(ctx,
		`UPDATE transactions SET
			discount_kind=$2, discount_value=$3, discount_applied=$4, discount_reason=$5,
			tax_kind=$6, tax_rate=$7, tax_amount=$8,
			subtotal=$9, total_amount=$10, paid_amount=$11, balance_amount=$12,
			payment_status=$13, due_date=$14, updated_at=$15
		 WHERE id = $1`,
		t.ID,
		t.Discount.Kind, t.Discount.Value, t.Discount.Applied, t.Discount.Reason,
		t.Tax.Kind, t.Tax.Rate, t.Tax.Amount,
		t.Subtotal, t.TotalAmount, t.PaidAmount, t.BalanceAmount,
		t.PaymentStatus, t.DueDate, time.Now())
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, t *Transaction) error {
	_, err := r.db.Exec(ctx,
		`UPDATE transactions SET status=$2, payment_status=$3, started_at=$4, completed_at=$5, updated_at=$6
		 WHERE id = $1`,
		t.ID, t.Status, t.PaymentStatus, t.StartedAt, t.CompletedAt, time.Now())
	return err
}

func (r *repository) SetPaymentState(ctx context.Context, t *Transaction) error {
	_, err := r.db.Exec(ctx,
		`UPDATE transactions SET paid_amount=$2, balance_amount=$3, payment_status=$4, updated_at=$5
		 WHERE id = $1`,
		t.ID, t.PaidAmount, t.BalanceAmount, t.PaymentStatus, time.Now())
	return err
}

func (r *repository) InsertPayment(ctx context.Context, ev PaymentEvent) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO `+TablePayments+` (transaction_id, amount, method, reference, notes, recorded_by, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		ev.TransactionID, ev.Amount, ev.Method, ev.Reference, ev.Notes, ev.RecordedBy, ev.RecordedAt).Scan(&id)
	return id, err
}

func (r *repository) InsertStatusChange(ctx context.Context, txID int64, sc StatusChange) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO transaction_status_history (transaction_id, status, changed_by, changed_at, reason)
		 VALUES ($1,$2,$3,$4,$5)`,
		txID, sc.Status, sc.ChangedBy, sc.ChangedAt, sc.Reason)
	return err
}

func (r *repository) InsertNote(ctx context.Context, txID int64, note Note) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO transaction_notes (transaction_id, note, created_by, created_at)
		 VALUES ($1,$2,$3,$4) RETURNING id`,
		txID, note.Text, note.CreatedBy, note.CreatedAt).Scan(&id)
	return id, err
}

func (r *repository) SetTombstone(ctx context.Context, txID int64, ts *Tombstone) error {
	if ts == nil {
		_, err := r.db.Exec(ctx,
			`UPDATE transactions SET deleted_at=NULL, deleted_by=NULL, deleted_reason=NULL, updated_at=$2 WHERE id=$1`,
			txID, time.Now())
		return err
	}
	_, err := r.db.Exec(ctx,
		`UPDATE transactions SET deleted_at=$2, deleted_by=$3, deleted_reason=$4, updated_at=$5 WHERE id=$1`,
		txID, ts.At, ts.By, ts.Reason, time.Now())
	return err
}

func (r *repository) AdjustStock(ctx context.Context, itemID int64, delta int, refNumber string, actor int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE watch_items SET quantity = quantity + $2, updated_at = now()
		 WHERE id = $1 AND quantity + $2 >= 0`, itemID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: insufficient stock for item %d", ErrValidation, itemID)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO stock_movements (item_id, delta, reference, moved_by, moved_at)
		 VALUES ($1,$2,$3,$4,now())`, itemID, delta, refNumber, actor)
	return err
}

func (r *repository) ApplyCustomerStats(ctx context.Context, customerID int64, purchases, services int, net float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE customers SET
			purchase_count = purchase_count + $2,
			service_count = service_count + $3,
			net_value = net_value + $4,
			updated_at = now()
		 WHERE id = $1`, customerID, purchases, services, net)
	return err
}

// mapPgError converts unique-constraint violations into the domain conflict
// error so the lifecycle manager can retry numbering collisions.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
