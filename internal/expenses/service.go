package expenses

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
)

type AuditRecorder interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

type Service struct {
	repo   Repository
	audit  AuditRecorder
	logger *slog.Logger
}

func NewService(repo Repository, audit AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

func (s *Service) Create(ctx context.Context, req CreateExpenseRequest, actor shared.Actor) (*Expense, error) {
	if !ValidCategory(req.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, req.Category)
	}

	e := Expense{
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		PaidVia:     req.PaidVia,
		ExpenseDate: req.ExpenseDate,
		Notes:       req.Notes,
		CreatedBy:   actor.ID,
	}
	id, err := s.repo.Create(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	s.recordAudit(ctx, actor, "create", id, map[string]any{
		"category": req.Category, "amount": req.Amount,
	})
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateExpenseRequest, actor shared.Actor) (*Expense, error) {
	if req.Category != nil && !ValidCategory(*req.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", httpx.ErrValidation, *req.Category)
	}

	updates := make(map[string]any)
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Amount != nil {
		updates["amount"] = *req.Amount
	}
	if req.PaidVia != nil {
		updates["paid_via"] = *req.PaidVia
	}
	if req.ExpenseDate != nil {
		updates["expense_date"] = *req.ExpenseDate
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, err
		}
		s.recordAudit(ctx, actor, "update", id, updates)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Expense, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListExpensesFilter) ([]Expense, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) Delete(ctx context.Context, id int64, actor shared.Actor) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "delete", id, nil)
	return nil
}

// Summary groups spending by category over [from, to).
func (s *Service) Summary(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: empty date range", httpx.ErrValidation)
	}
	return s.repo.SummaryByCategory(ctx, from, to)
}

// TotalBetween is the outflow figure the daily ledger consumes.
func (s *Service) TotalBetween(ctx context.Context, from, to time.Time) (float64, error) {
	return s.repo.TotalBetween(ctx, from, to)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actor.ID,
		Module:   "expenses",
		Action:   action,
		RecordID: fmt.Sprintf("%d", id),
		New:      meta,
	})
	if err != nil {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}
