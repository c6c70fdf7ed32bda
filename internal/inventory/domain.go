// Package inventory manages the watch item catalogue and its stock ledger.
// Sales decrement stock inside the billing module's transactions; this
// package owns the catalogue, manual movements and low-stock reporting.
package inventory

import (
	"errors"
	"time"
)

// MovementKind enumerates why stock changed.
type MovementKind string

const (
	MovementReceived   MovementKind = "received"
	MovementSale       MovementKind = "sale"
	MovementReturn     MovementKind = "return"
	MovementAdjustment MovementKind = "adjustment"
)

// WatchItem is one catalogue entry with its current stock level.
type WatchItem struct {
	ID          int64   `json:"id"`
	SKU         string  `json:"sku"`
	Brand       string  `json:"brand"`
	Model       string  `json:"model"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`

	CostPrice    float64 `json:"cost_price"`
	SellingPrice float64 `json:"selling_price"`

	Quantity          int `json:"quantity"`
	LowStockThreshold int `json:"low_stock_threshold"`

	IsActive  bool      `json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LowStock reports whether the item sits at or under its threshold.
func (w WatchItem) LowStock() bool {
	return w.Quantity <= w.LowStockThreshold
}

// StockMovement is one append-only ledger entry. Reference carries the
// document number that caused the movement when one exists.
type StockMovement struct {
	ID        int64        `json:"id"`
	ItemID    int64        `json:"item_id"`
	Delta     int          `json:"delta"`
	Kind      MovementKind `json:"kind"`
	Reference string       `json:"reference,omitempty"`
	Note      string       `json:"note,omitempty"`
	ActorID   int64        `json:"actor_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// MovementInput describes a manual stock movement.
type MovementInput struct {
	ItemID    int64
	Delta     int
	Kind      MovementKind
	Reference string
	Note      string
	ActorID   int64
}

// ListItemsFilter narrows catalogue listings.
type ListItemsFilter struct {
	Search   *string
	Brand    *string
	IsActive *bool
	LowOnly  bool
	Limit    int
	Offset   int
}

var (
	// ErrNegativeStock is returned when a movement would drive quantity
	// below zero.
	ErrNegativeStock = errors.New("inventory: movement would make stock negative")
	// ErrInvalidDelta indicates a zero movement.
	ErrInvalidDelta = errors.New("inventory: delta must be non-zero")
)
