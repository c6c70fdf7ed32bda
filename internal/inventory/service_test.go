package inventory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	nextID    int64
	items     map[int64]*WatchItem
	movements map[int64][]StockMovement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:     make(map[int64]*WatchItem),
		movements: make(map[int64][]StockMovement),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*WatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*WatchItem, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) GetBySKU(_ context.Context, sku string) (*WatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.items {
		if item.SKU == sku {
			copied := *item
			return &copied, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, filter ListItemsFilter) ([]WatchItem, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []WatchItem
	for _, item := range r.items {
		if filter.IsActive != nil && item.IsActive != *filter.IsActive {
			continue
		}
		if filter.LowOnly && !item.LowStock() {
			continue
		}
		out = append(out, *item)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, item WatchItem) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.SKU == item.SKU {
			return 0, httpx.ErrDuplicate
		}
	}
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = &item
	return item.ID, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if v, ok := updates["selling_price"]; ok {
		item.SellingPrice = v.(float64)
	}
	if v, ok := updates["low_stock_threshold"]; ok {
		item.LowStockThreshold = v.(int)
	}
	if v, ok := updates["is_active"]; ok {
		item.IsActive = v.(bool)
	}
	return nil
}

func (r *memoryRepo) ApplyMovement(_ context.Context, m StockMovement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[m.ItemID]
	if !ok {
		return httpx.ErrNotFound
	}
	if item.Quantity+m.Delta < 0 {
		return ErrNegativeStock
	}
	item.Quantity += m.Delta
	m.ID = int64(len(r.movements[m.ItemID]) + 1)
	r.movements[m.ItemID] = append(r.movements[m.ItemID], m)
	return nil
}

func (r *memoryRepo) Movements(_ context.Context, itemID int64, _ int) ([]StockMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StockMovement(nil), r.movements[itemID]...), nil
}

var actor = shared.Actor{ID: 3, Name: "dev", Role: "manager"}

func TestCreateItemWithOpeningStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "TTN-001", Brand: "Titan", Model: "Karishma", Name: "Titan Karishma Analog",
		CostPrice: 2200, SellingPrice: 2995, InitialQuantity: 5, LowStockThreshold: 2,
	}, actor)
	require.NoError(t, err)
	require.Equal(t, 5, item.Quantity)
	require.True(t, item.IsActive)

	movements, err := svc.Movements(context.Background(), item.ID, 10)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.Equal(t, MovementReceived, movements[0].Kind)
	require.Equal(t, 5, movements[0].Delta)
}

func TestDuplicateSKURejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "CAS-100", Brand: "Casio", Model: "F91W", Name: "Casio F91W",
	}, actor)
	require.NoError(t, err)

	_, err = svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "CAS-100", Brand: "Casio", Model: "F91W-2", Name: "Casio F91W blue",
	}, actor)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestReceiveAndAdjust(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "SEI-5", Brand: "Seiko", Model: "5 Sports", Name: "Seiko 5 Sports",
	}, actor)
	require.NoError(t, err)

	item, err = svc.Receive(context.Background(), item.ID, 10, "GRN-42", "", actor)
	require.NoError(t, err)
	require.Equal(t, 10, item.Quantity)

	item, err = svc.Adjust(context.Background(), item.ID, -3, "display units written off", actor)
	require.NoError(t, err)
	require.Equal(t, 7, item.Quantity)

	_, err = svc.Receive(context.Background(), item.ID, 0, "", "", actor)
	require.ErrorIs(t, err, ErrInvalidDelta)
	_, err = svc.Receive(context.Background(), item.ID, -1, "", "", actor)
	require.ErrorIs(t, err, ErrInvalidDelta)
}

func TestAdjustCannotGoNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "FOS-9", Brand: "Fossil", Model: "Grant", Name: "Fossil Grant",
		InitialQuantity: 2,
	}, actor)
	require.NoError(t, err)

	_, err = svc.Adjust(context.Background(), item.ID, -5, "oops", actor)
	require.ErrorIs(t, err, ErrNegativeStock)

	// Quantity untouched after the rejected movement.
	got, err := svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	require.Equal(t, 2, got.Quantity)
}

func TestLowStockItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	low, err := svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "A-1", Brand: "A", Model: "1", Name: "Low", InitialQuantity: 1, LowStockThreshold: 2,
	}, actor)
	require.NoError(t, err)
	_, err = svc.CreateItem(context.Background(), CreateItemInput{
		SKU: "B-1", Brand: "B", Model: "1", Name: "Fine", InitialQuantity: 9, LowStockThreshold: 2,
	}, actor)
	require.NoError(t, err)

	items, err := svc.LowStockItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, low.ID, items[0].ID)
}
