package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

// AuditRecorder receives one structured event per mutation. Writes are
// best-effort: a failed audit write is logged and never fails the primary
// operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Policy carries shop-level billing configuration.
type Policy struct {
	Payment        PaymentPolicy
	DefaultTaxRate float64
	TaxKind        string
}

// Service is the record lifecycle manager: it validates input, assigns
// document numbers, computes totals, appends ledger and history entries and
// groups every multi-record write into one database transaction.
type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger
	policy Policy
	now    func() time.Time
}

// NewService constructs the lifecycle manager.
func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger, policy Policy) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		audit:  audit,
		logger: logger,
		policy: policy,
		now:    time.Now,
	}
}

// LineItemInput is one requested line.
type LineItemInput struct {
	ItemID      *int64
	Description string
	Quantity    int
	UnitPrice   float64
	TaxRate     float64
}

// PaymentInput describes a payment to record.
type PaymentInput struct {
	Amount    float64
	Method    PaymentMethod
	Reference string
	Notes     string
}

// CreateInput describes a new transaction.
type CreateInput struct {
	Kind       Kind
	CustomerID int64
	Items      []LineItemInput
	Discount   DiscountSpec
	TaxKind    string
	TaxRate    float64
	DueDate    *time.Time
	Note       string
	// Payment records an immediate payment in the same unit of work
	// (POS checkout).
	Payment *PaymentInput
	// Complete moves a sale straight to completed (counter sale).
	Complete bool
}

// UpdateInput patches a transaction's financial fields. Nil fields are left
// untouched.
type UpdateInput struct {
	Items    *[]LineItemInput
	Discount *DiscountSpec
	TaxKind  *string
	TaxRate  *float64
	DueDate  *time.Time
}

// Create validates, numbers, computes and persists a new transaction.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (*Transaction, error) {
	switch input.Kind {
	case KindSale, KindService, KindInvoice:
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, input.Kind)
	}
	if input.CustomerID <= 0 {
		return nil, fmt.Errorf("%w: customer is required", ErrValidation)
	}
	// A service ticket may be opened before diagnosis with no priced lines
	// yet; sales and invoices need at least one.
	if len(input.Items) == 0 && input.Kind != KindService {
		return nil, fmt.Errorf("%w: at least one line item is required", ErrValidation)
	}
	if input.Complete && input.Kind != KindSale {
		return nil, fmt.Errorf("%w: only sales can be completed on creation", ErrValidation)
	}

	now := s.now()
	t := &Transaction{
		Kind:          input.Kind,
		CustomerID:    input.CustomerID,
		Items:         buildItems(input.Items),
		Discount:      input.Discount,
		Tax:           TaxSpec{Kind: input.TaxKind, Rate: input.TaxRate},
		Status:        InitialStatus(input.Kind),
		PaymentStatus: PaymentUnpaid,
		DueDate:       input.DueDate,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if t.Tax.Rate == 0 && t.Tax.Kind == "" && s.policy.DefaultTaxRate > 0 {
		t.Tax.Rate = s.policy.DefaultTaxRate
		t.Tax.Kind = s.policy.TaxKind
	}
	if err := Recompute(t); err != nil {
		return nil, err
	}

	prefix := NumberPrefix(input.Kind, nil)
	err := s.createWithNumber(ctx, t, prefix, func(ctx context.Context, txr TxRepository) error {
		if input.Note != "" {
			if _, err := txr.InsertNote(ctx, t.ID, Note{Text: input.Note, CreatedBy: actor.ID, CreatedAt: now}); err != nil {
				return err
			}
		}
		if input.Kind == KindSale {
			// Stock leaves the shelf when the sale record is created;
			// both writes commit or neither does.
			for _, it := range t.Items {
				if it.ItemID == nil {
					continue
				}
				if err := txr.AdjustStock(ctx, *it.ItemID, -it.Quantity, t.Number, actor.ID); err != nil {
					return err
				}
			}
		}
		if input.Payment != nil {
			if err := s.appendPaymentTx(ctx, txr, t, *input.Payment, actor, now); err != nil {
				return err
			}
		}
		if input.Complete {
			if err := s.transitionTx(ctx, txr, t, StatusCompleted, "", actor, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "create", t.Number, nil, map[string]any{
		"kind": t.Kind, "status": t.Status, "total": t.TotalAmount,
	})
	return s.repo.Get(ctx, t.ID)
}

// createWithNumber runs the numbering step and the insert in one
// transaction, retrying once with a fresh number if the unique index still
// reports a collision.
func (s *Service) createWithNumber(ctx context.Context, t *Transaction, prefix string, extra func(context.Context, TxRepository) error) error {
	attempt := func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
			number, err := NextNumber(ctx, txr, prefix, t.CreatedAt)
			if err != nil {
				return err
			}
			t.Number = number
			id, err := txr.Insert(ctx, t)
			if err != nil {
				return err
			}
			t.ID = id
			for i := range t.Items {
				t.Items[i].TransactionID = id
			}
			if err := txr.ReplaceItems(ctx, id, t.Items); err != nil {
				return err
			}
			initial := StatusChange{Status: t.Status, ChangedBy: t.CreatedBy, ChangedAt: t.CreatedAt}
			t.History = append([]StatusChange{initial}, t.History...)
			if err := txr.InsertStatusChange(ctx, id, initial); err != nil {
				return err
			}
			if extra != nil {
				return extra(ctx, txr)
			}
			return nil
		})
	}

	// Snapshot so a retry after a number collision starts from the same
	// pre-insert state (the first attempt's history/ledger appends rolled
	// back with its transaction).
	base := *t
	baseItems := make([]LineItem, len(t.Items))
	copy(baseItems, t.Items)

	err := attempt()
	if errors.Is(err, ErrConflict) {
		s.logger.Warn("document number collision, retrying", slog.String("prefix", prefix))
		restored := base
		restored.Items = baseItems
		*t = restored
		err = attempt()
	}
	return err
}

// Get loads a transaction and refreshes the derived payment status against
// the clock (overdue is a function of now, not of the last write).
func (s *Service) Get(ctx context.Context, id int64) (*Transaction, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	t.RefreshPaymentStatus(s.now())
	return t, nil
}

// GetByNumber resolves the human-facing document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Transaction, error) {
	if !NumberPattern.MatchString(number) {
		return nil, fmt.Errorf("%w: malformed document number %q", ErrValidation, number)
	}
	t, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	t.RefreshPaymentStatus(s.now())
	return t, nil
}

// List returns transactions matching the filter. Deleted records are
// excluded unless explicitly requested.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, int, error) {
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	for i := range items {
		items[i].RefreshPaymentStatus(now)
	}
	return items, total, nil
}

// Update patches financial fields on a still-mutable record, recomputes the
// derived amounts and appends an audit note when the total changed.
func (s *Service) Update(ctx context.Context, id int64, patch UpdateInput, actor shared.Actor) (*Transaction, error) {
	now := s.now()
	var updated *Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.FinancialsMutable() {
			return fmt.Errorf("%w: %s %s", ErrImmutableRecord, t.Kind, t.Number)
		}

		oldTotal := t.TotalAmount
		oldItems := t.Items

		if patch.Items != nil {
			t.Items = buildItems(*patch.Items)
		}
		if patch.Discount != nil {
			t.Discount = *patch.Discount
		}
		if patch.TaxKind != nil {
			t.Tax.Kind = *patch.TaxKind
		}
		if patch.TaxRate != nil {
			t.Tax.Rate = *patch.TaxRate
		}
		if patch.DueDate != nil {
			t.DueDate = patch.DueDate
		}
		if err := Recompute(t); err != nil {
			return err
		}
		t.recalcLedger(now)

		if patch.Items != nil {
			for i := range t.Items {
				t.Items[i].TransactionID = t.ID
			}
			if err := txr.ReplaceItems(ctx, t.ID, t.Items); err != nil {
				return err
			}
			if t.Kind == KindSale {
				if err := restockDelta(ctx, txr, oldItems, t.Items, t.Number, actor.ID); err != nil {
					return err
				}
			}
		}
		if err := txr.UpdateFinancials(ctx, t); err != nil {
			return err
		}
		if round2(oldTotal) != round2(t.TotalAmount) {
			note := Note{
				Text:      fmt.Sprintf("amended: total %.2f -> %.2f", oldTotal, t.TotalAmount),
				CreatedBy: actor.ID,
				CreatedAt: now,
			}
			if _, err := txr.InsertNote(ctx, t.ID, note); err != nil {
				return err
			}
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "update", updated.Number, nil, map[string]any{"total": updated.TotalAmount})
	return s.repo.Get(ctx, id)
}

// RecordPayment appends a payment event and re-derives the payment state.
// Paying an invoice in full moves it to paid when the workflow allows it.
func (s *Service) RecordPayment(ctx context.Context, id int64, input PaymentInput, actor shared.Actor) (*Transaction, error) {
	now := s.now()
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.appendPaymentTx(ctx, txr, t, input, actor, now); err != nil {
			return err
		}
		number = t.Number
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "payment", number, nil, map[string]any{
		"amount": input.Amount, "method": input.Method,
	})
	return s.Get(ctx, id)
}

func (s *Service) appendPaymentTx(ctx context.Context, txr TxRepository, t *Transaction, input PaymentInput, actor shared.Actor, now time.Time) error {
	ev := PaymentEvent{
		TransactionID: t.ID,
		Amount:        input.Amount,
		Method:        input.Method,
		Reference:     input.Reference,
		Notes:         input.Notes,
		RecordedBy:    actor.ID,
		RecordedAt:    now,
	}
	if err := t.AppendPayment(ev, s.policy.Payment, now); err != nil {
		return err
	}
	if _, err := txr.InsertPayment(ctx, t.Payments[len(t.Payments)-1]); err != nil {
		return err
	}
	if err := txr.SetPaymentState(ctx, t); err != nil {
		return err
	}
	// Paid in full flips a sent/viewed invoice to its paid state.
	if t.Kind == KindInvoice && t.PaymentStatus == PaymentPaid && CanTransition(t.Kind, t.Status, StatusPaid) {
		return s.transitionTx(ctx, txr, t, StatusPaid, "paid in full", actor, now)
	}
	return nil
}

// RecordRefund appends a negative refund event. A refunded invoice moves to
// refunded; a refunded completed sale is treated as a return, restoring
// stock and reversing the customer aggregates.
func (s *Service) RecordRefund(ctx context.Context, id int64, amount float64, reason string, actor shared.Actor) (*Transaction, error) {
	now := s.now()
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		ev, err := t.AppendRefund(amount, actor.ID, reason, now)
		if err != nil {
			return err
		}
		if _, err := txr.InsertPayment(ctx, ev); err != nil {
			return err
		}
		if err := txr.SetPaymentState(ctx, t); err != nil {
			return err
		}
		switch {
		case t.Kind == KindInvoice && CanTransition(t.Kind, t.Status, StatusRefunded):
			if err := s.transitionTx(ctx, txr, t, StatusRefunded, reason, actor, now); err != nil {
				return err
			}
		case t.Kind == KindSale && CanTransition(t.Kind, t.Status, StatusReturned):
			if err := s.transitionTx(ctx, txr, t, StatusReturned, reason, actor, now); err != nil {
				return err
			}
		}
		number = t.Number
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "refund", number, nil, map[string]any{"amount": amount})
	return s.Get(ctx, id)
}

// UpdateStatus applies one workflow transition with its side effects.
func (s *Service) UpdateStatus(ctx context.Context, id int64, to Status, reason string, actor shared.Actor) (*Transaction, error) {
	now := s.now()
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.transitionTx(ctx, txr, t, to, reason, actor, now); err != nil {
			return err
		}
		number = t.Number
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "status", number, nil, map[string]any{"status": to, "reason": reason})
	return s.Get(ctx, id)
}

// transitionTx applies the state change plus the stock and customer-counter
// side effects that belong in the same unit of work.
func (s *Service) transitionTx(ctx context.Context, txr TxRepository, t *Transaction, to Status, reason string, actor shared.Actor, now time.Time) error {
	wasCompleted := t.Status == StatusCompleted

	if err := t.ApplyTransition(to, actor.ID, now, reason); err != nil {
		return err
	}
	if err := txr.InsertStatusChange(ctx, t.ID, t.History[len(t.History)-1]); err != nil {
		return err
	}
	if err := txr.UpdateStatus(ctx, t); err != nil {
		return err
	}

	switch t.Kind {
	case KindSale:
		switch to {
		case StatusCompleted:
			return txr.ApplyCustomerStats(ctx, t.CustomerID, 1, 0, t.TotalAmount)
		case StatusReturned, StatusCancelled:
			// Stock left the shelf at creation; any exit other than a
			// completed sale puts it back.
			for _, it := range t.Items {
				if it.ItemID == nil {
					continue
				}
				if err := txr.AdjustStock(ctx, *it.ItemID, it.Quantity, t.Number, actor.ID); err != nil {
					return err
				}
			}
			if wasCompleted {
				return txr.ApplyCustomerStats(ctx, t.CustomerID, -1, 0, -t.TotalAmount)
			}
		}
	case KindService:
		if to == StatusCompleted {
			return txr.ApplyCustomerStats(ctx, t.CustomerID, 0, 1, t.TotalAmount)
		}
	}
	return nil
}

// GenerateInvoice creates an invoice transaction from a completed sale or
// service ticket. This is an explicit caller action, never an automatic
// side effect of completion.
func (s *Service) GenerateInvoice(ctx context.Context, sourceID int64, dueDate *time.Time, actor shared.Actor) (*Transaction, error) {
	source, err := s.repo.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if source.Kind == KindInvoice {
		return nil, fmt.Errorf("%w: cannot invoice an invoice", ErrValidation)
	}
	if source.IsDeleted() {
		return nil, fmt.Errorf("%w: source %s is deleted", ErrConflict, source.Number)
	}
	if source.Status != StatusCompleted && source.Status != StatusReturned {
		return nil, fmt.Errorf("%w: source %s is not completed", ErrConflict, source.Number)
	}

	now := s.now()
	items := make([]LineItem, len(source.Items))
	copy(items, source.Items)
	for i := range items {
		items[i].ID = 0
		items[i].TransactionID = 0
	}
	inv := &Transaction{
		Kind:          KindInvoice,
		CustomerID:    source.CustomerID,
		SourceID:      &source.ID,
		Items:         items,
		Discount:      source.Discount,
		Tax:           source.Tax,
		Status:        StatusDraft,
		PaymentStatus: PaymentUnpaid,
		DueDate:       dueDate,
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := Recompute(inv); err != nil {
		return nil, err
	}

	prefix := NumberPrefix(KindInvoice, source)
	if err := s.createWithNumber(ctx, inv, prefix, nil); err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actor, "generate_invoice", inv.Number, nil, map[string]any{"source": source.Number})
	return s.repo.Get(ctx, inv.ID)
}

// SoftDelete tombstones a record. Settled records keep their financial
// history and cannot be deleted.
func (s *Service) SoftDelete(ctx context.Context, id int64, reason string, actor shared.Actor) error {
	now := s.now()
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.IsDeleted() {
			return fmt.Errorf("%w: already deleted", ErrConflict)
		}
		if t.PaymentStatus == PaymentPaid || t.PaymentStatus == PaymentRefunded || t.PaidAmount > 0 {
			return fmt.Errorf("%w: record has settled payments", ErrConflict)
		}
		ts := &Tombstone{At: now, By: actor.ID, Reason: reason}
		if err := txr.SetTombstone(ctx, t.ID, ts); err != nil {
			return err
		}
		note := Note{Text: "deleted: " + reason, CreatedBy: actor.ID, CreatedAt: now}
		if _, err := txr.InsertNote(ctx, t.ID, note); err != nil {
			return err
		}
		number = t.Number
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "delete", number, nil, map[string]any{"reason": reason})
	return nil
}

// Restore clears the tombstone.
func (s *Service) Restore(ctx context.Context, id int64, actor shared.Actor) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !t.IsDeleted() {
			return fmt.Errorf("%w: record is not deleted", ErrConflict)
		}
		number = t.Number
		return txr.SetTombstone(ctx, t.ID, nil)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "restore", number, nil, nil)
	return nil
}

// AddNote appends operational commentary. Permitted on any record, terminal
// and deleted ones included.
func (s *Service) AddNote(ctx context.Context, id int64, text string, actor shared.Actor) error {
	if text == "" {
		return fmt.Errorf("%w: note text is required", ErrValidation)
	}
	now := s.now()
	return s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
		t, err := txr.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		_, err = txr.InsertNote(ctx, t.ID, Note{Text: text, CreatedBy: actor.ID, CreatedAt: now})
		return err
	})
}

// MarkOverdue persists the overdue payment status on every open document
// whose due date has passed. The nightly scan calls this so records that see
// no traffic still report overdue. Returns the number of records updated.
func (s *Service) MarkOverdue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.repo.ListDueBefore(ctx, now)
	if err != nil {
		return 0, err
	}
	marked := 0
	for i := range due {
		id := due[i].ID
		err := s.repo.WithTx(ctx, func(ctx context.Context, txr TxRepository) error {
			t, err := txr.GetForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if t.RefreshPaymentStatus(now) != PaymentOverdue {
				return nil
			}
			if err := txr.SetPaymentState(ctx, t); err != nil {
				return err
			}
			marked++
			return nil
		})
		if err != nil {
			return marked, err
		}
	}
	if marked > 0 {
		s.logger.Info("overdue scan", slog.Int("marked", marked))
	}
	return marked, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action, number string, oldV, newV map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditEntry{
		ActorID:  actor.ID,
		Module:   "billing",
		Action:   action,
		RecordID: number,
		Old:      oldV,
		New:      newV,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}

func buildItems(inputs []LineItemInput) []LineItem {
	items := make([]LineItem, len(inputs))
	for i, in := range inputs {
		items[i] = LineItem{
			ItemID:      in.ItemID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			Position:    i + 1,
		}
	}
	return items
}

// restockDelta reconciles stock after a draft sale's lines change: old
// referenced quantities go back, new ones come out.
func restockDelta(ctx context.Context, txr TxRepository, oldItems, newItems []LineItem, number string, actor int64) error {
	deltas := map[int64]int{}
	for _, it := range oldItems {
		if it.ItemID != nil {
			deltas[*it.ItemID] += it.Quantity
		}
	}
	for _, it := range newItems {
		if it.ItemID != nil {
			deltas[*it.ItemID] -= it.Quantity
		}
	}
	for itemID, delta := range deltas {
		if delta == 0 {
			continue
		}
		if err := txr.AdjustStock(ctx, itemID, delta, number, actor); err != nil {
			return err
		}
	}
	return nil
}
