package expenses

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Expense
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]*Expense)}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Expense, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListExpensesFilter) ([]Expense, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Expense
	for _, e := range r.items {
		if filter.Category != nil && e.Category != *filter.Category {
			continue
		}
		if filter.From != nil && e.ExpenseDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.ExpenseDate.Before(*filter.To) {
			continue
		}
		out = append(out, *e)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, e Expense) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	r.items[e.ID] = &e
	return e.ID, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if v, ok := updates["amount"]; ok {
		e.Amount = v.(float64)
	}
	if v, ok := updates["category"]; ok {
		e.Category = v.(Category)
	}
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return httpx.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) SummaryByCategory(_ context.Context, from, to time.Time) ([]CategoryTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCat := map[Category]*CategoryTotal{}
	for _, e := range r.items {
		if e.ExpenseDate.Before(from) || !e.ExpenseDate.Before(to) {
			continue
		}
		ct, ok := byCat[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category}
			byCat[e.Category] = ct
		}
		ct.Total += e.Amount
		ct.Count++
	}
	var out []CategoryTotal
	for _, ct := range byCat {
		out = append(out, *ct)
	}
	return out, nil
}

func (r *memoryRepo) TotalBetween(_ context.Context, from, to time.Time) (float64, error) {
	totals, _ := r.SummaryByCategory(context.Background(), from, to)
	var sum float64
	for _, ct := range totals {
		sum += ct.Total
	}
	return sum, nil
}

var actor = shared.Actor{ID: 2, Name: "asha", Role: "staff"}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateExpense(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)

	e, err := svc.Create(context.Background(), CreateExpenseRequest{
		Category: CategoryUtilities, Description: "electricity bill",
		Amount: 3200, PaidVia: "upi", ExpenseDate: day(5),
	}, actor)
	require.NoError(t, err)
	require.Equal(t, CategoryUtilities, e.Category)
	require.InDelta(t, 3200.0, e.Amount, 0.001)

	_, err = svc.Create(context.Background(), CreateExpenseRequest{
		Category: "groceries", Description: "x", Amount: 1, PaidVia: "cash", ExpenseDate: day(5),
	}, actor)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestSummaryByCategory(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	for _, e := range []CreateExpenseRequest{
		{Category: CategoryRent, Description: "shop rent", Amount: 15000, PaidVia: "bank_transfer", ExpenseDate: day(1)},
		{Category: CategoryParts, Description: "movement parts", Amount: 2400, PaidVia: "cash", ExpenseDate: day(10)},
		{Category: CategoryParts, Description: "straps", Amount: 600, PaidVia: "cash", ExpenseDate: day(12)},
		{Category: CategoryParts, Description: "outside range", Amount: 999, PaidVia: "cash", ExpenseDate: day(31).AddDate(0, 1, 0)},
	} {
		_, err := svc.Create(ctx, e, actor)
		require.NoError(t, err)
	}

	totals, err := svc.Summary(ctx, day(1), day(31))
	require.NoError(t, err)
	require.Len(t, totals, 2)

	byCat := map[Category]CategoryTotal{}
	for _, ct := range totals {
		byCat[ct.Category] = ct
	}
	require.InDelta(t, 15000.0, byCat[CategoryRent].Total, 0.001)
	require.InDelta(t, 3000.0, byCat[CategoryParts].Total, 0.001)
	require.Equal(t, 2, byCat[CategoryParts].Count)

	_, err = svc.Summary(ctx, day(31), day(1))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateAndDelete(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	e, err := svc.Create(ctx, CreateExpenseRequest{
		Category: CategorySupplies, Description: "cleaning cloth", Amount: 150, PaidVia: "cash", ExpenseDate: day(3),
	}, actor)
	require.NoError(t, err)

	amount := 180.0
	updated, err := svc.Update(ctx, e.ID, UpdateExpenseRequest{Amount: &amount}, actor)
	require.NoError(t, err)
	require.InDelta(t, 180.0, updated.Amount, 0.001)

	require.NoError(t, svc.Delete(ctx, e.ID, actor))
	_, err = svc.Get(ctx, e.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, e.ID, actor), httpx.ErrNotFound)
}
