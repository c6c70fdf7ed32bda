package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

// AuditRecorder receives one event per catalogue mutation.
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

// CreateItemInput describes a new catalogue entry.
type CreateItemInput struct {
	SKU               string  `json:"sku" validate:"required,max=50"`
	Brand             string  `json:"brand" validate:"required,max=100"`
	Model             string  `json:"model" validate:"required,max=100"`
	Name              string  `json:"name" validate:"required,max=200"`
	Description       *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	CostPrice         float64 `json:"cost_price" validate:"gte=0"`
	SellingPrice      float64 `json:"selling_price" validate:"gte=0"`
	InitialQuantity   int     `json:"initial_quantity" validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// UpdateItemInput patches catalogue fields. Quantity is deliberately absent:
// stock changes only through movements.
type UpdateItemInput struct {
	SKU               *string  `json:"sku,omitempty" validate:"omitempty,max=50"`
	Brand             *string  `json:"brand,omitempty" validate:"omitempty,max=100"`
	Model             *string  `json:"model,omitempty" validate:"omitempty,max=100"`
	Name              *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Description       *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	CostPrice         *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	SellingPrice      *float64 `json:"selling_price,omitempty" validate:"omitempty,gte=0"`
	LowStockThreshold *int     `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	IsActive          *bool    `json:"is_active,omitempty"`
}

func (s *Service) CreateItem(ctx context.Context, input CreateItemInput, actor shared.Actor) (*WatchItem, error) {
	item := WatchItem{
		SKU:               input.SKU,
		Brand:             input.Brand,
		Model:             input.Model,
		Name:              input.Name,
		Description:       input.Description,
		CostPrice:         input.CostPrice,
		SellingPrice:      input.SellingPrice,
		Quantity:          0,
		LowStockThreshold: input.LowStockThreshold,
		IsActive:          true,
		CreatedBy:         actor.ID,
	}

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		id, err = tx.Create(ctx, item)
		if err != nil {
			return err
		}
		if input.InitialQuantity > 0 {
			return tx.ApplyMovement(ctx, StockMovement{
				ItemID:  id,
				Delta:   input.InitialQuantity,
				Kind:    MovementReceived,
				Note:    "opening stock",
				ActorID: actor.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	s.recordAudit(ctx, actor, "create_item", id, map[string]any{"sku": input.SKU})
	return s.repo.Get(ctx, id)
}

func (s *Service) UpdateItem(ctx context.Context, id int64, input UpdateItemInput, actor shared.Actor) (*WatchItem, error) {
	updates := make(map[string]any)
	if input.SKU != nil {
		updates["sku"] = *input.SKU
	}
	if input.Brand != nil {
		updates["brand"] = *input.Brand
	}
	if input.Model != nil {
		updates["model"] = *input.Model
	}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.CostPrice != nil {
		updates["cost_price"] = *input.CostPrice
	}
	if input.SellingPrice != nil {
		updates["selling_price"] = *input.SellingPrice
	}
	if input.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *input.LowStockThreshold
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, err
		}
		s.recordAudit(ctx, actor, "update_item", id, updates)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*WatchItem, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (*WatchItem, error) {
	return s.repo.GetBySKU(ctx, sku)
}

func (s *Service) List(ctx context.Context, filter ListItemsFilter) ([]WatchItem, int, error) {
	return s.repo.List(ctx, filter)
}

// Receive posts incoming stock, the delivery-arrived case.
func (s *Service) Receive(ctx context.Context, itemID int64, qty int, reference, note string, actor shared.Actor) (*WatchItem, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: receive quantity must be positive", ErrInvalidDelta)
	}
	return s.move(ctx, MovementInput{
		ItemID: itemID, Delta: qty, Kind: MovementReceived,
		Reference: reference, Note: note, ActorID: actor.ID,
	}, actor)
}

// Adjust posts a manual correction, positive or negative.
func (s *Service) Adjust(ctx context.Context, itemID int64, delta int, note string, actor shared.Actor) (*WatchItem, error) {
	if delta == 0 {
		return nil, ErrInvalidDelta
	}
	return s.move(ctx, MovementInput{
		ItemID: itemID, Delta: delta, Kind: MovementAdjustment,
		Note: note, ActorID: actor.ID,
	}, actor)
}

func (s *Service) move(ctx context.Context, input MovementInput, actor shared.Actor) (*WatchItem, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, input.ItemID); err != nil {
			return err
		}
		return tx.ApplyMovement(ctx, StockMovement{
			ItemID:    input.ItemID,
			Delta:     input.Delta,
			Kind:      input.Kind,
			Reference: input.Reference,
			Note:      input.Note,
			ActorID:   input.ActorID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "stock_"+string(input.Kind), input.ItemID, map[string]any{
		"delta": input.Delta, "reference": input.Reference,
	})

	item, err := s.repo.Get(ctx, input.ItemID)
	if err != nil {
		return nil, err
	}
	if item.LowStock() {
		s.logger.Warn("item at or below low stock threshold",
			slog.String("sku", item.SKU),
			slog.Int("quantity", item.Quantity),
			slog.Int("threshold", item.LowStockThreshold))
	}
	return item, nil
}

// Movements returns the item's recent ledger, newest first.
func (s *Service) Movements(ctx context.Context, itemID int64, limit int) ([]StockMovement, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, err := s.repo.Get(ctx, itemID); err != nil {
		return nil, err
	}
	return s.repo.Movements(ctx, itemID, limit)
}

// LowStockItems lists every active item at or below its threshold.
func (s *Service) LowStockItems(ctx context.Context) ([]WatchItem, error) {
	active := true
	items, _, err := s.repo.List(ctx, ListItemsFilter{IsActive: &active, LowOnly: true, Limit: 500})
	return items, err
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, itemID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actor.ID,
		Module:   "inventory",
		Action:   action,
		RecordID: fmt.Sprintf("%d", itemID),
		New:      meta,
	})
	if err != nil {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}
