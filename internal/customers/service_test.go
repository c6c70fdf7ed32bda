package customers

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
)

type memoryRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]*Customer)}
}

func (r *memoryRepo) Get(_ context.Context, id int64) (*Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memoryRepo) GetByPhone(_ context.Context, phone string) (*Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.Phone != nil && *c.Phone == phone {
			copied := *c
			return &copied, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Customer
	for _, c := range r.items {
		if req.IsActive != nil && c.IsActive != *req.IsActive {
			continue
		}
		if req.Search != nil && *req.Search != "" &&
			!strings.Contains(strings.ToLower(c.Name), strings.ToLower(*req.Search)) {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Create(_ context.Context, c Customer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.items[c.ID] = &c
	return c.ID, nil
}

func (r *memoryRepo) Update(_ context.Context, id int64, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["phone"]; ok {
		s := v.(string)
		c.Phone = &s
	}
	if v, ok := updates["notes"]; ok {
		s := v.(string)
		c.Notes = &s
	}
	if v, ok := updates["is_active"]; ok {
		c.IsActive = v.(bool)
	}
	return nil
}

func TestCreateCustomer(t *testing.T) {
	svc := NewService(newMemoryRepo())
	phone := "9876543210"

	c, err := svc.Create(context.Background(), CreateCustomerRequest{Name: "Ravi Kumar", Phone: &phone}, 1)
	require.NoError(t, err)
	require.True(t, c.IsActive)
	require.Equal(t, "Ravi Kumar", c.Name)

	// Same phone, second registration.
	_, err = svc.Create(context.Background(), CreateCustomerRequest{Name: "Other", Phone: &phone}, 1)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestLookupByPhone(t *testing.T) {
	svc := NewService(newMemoryRepo())
	phone := "9000000001"
	created, err := svc.Create(context.Background(), CreateCustomerRequest{Name: "Meera", Phone: &phone}, 1)
	require.NoError(t, err)

	found, err := svc.GetByPhone(context.Background(), phone)
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)

	_, err = svc.GetByPhone(context.Background(), "1234567890")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateCustomerPatchesOnlyGivenFields(t *testing.T) {
	svc := NewService(newMemoryRepo())
	phone := "9000000002"
	c, err := svc.Create(context.Background(), CreateCustomerRequest{Name: "Arjun", Phone: &phone}, 1)
	require.NoError(t, err)

	name := "Arjun Nair"
	updated, err := svc.Update(context.Background(), c.ID, UpdateCustomerRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Arjun Nair", updated.Name)
	require.NotNil(t, updated.Phone)
	require.Equal(t, phone, *updated.Phone)

	// Empty patch is a no-op, not an error.
	same, err := svc.Update(context.Background(), c.ID, UpdateCustomerRequest{})
	require.NoError(t, err)
	require.Equal(t, updated.Name, same.Name)
}

func TestDeactivateHidesFromActiveList(t *testing.T) {
	svc := NewService(newMemoryRepo())
	c, err := svc.Create(context.Background(), CreateCustomerRequest{Name: "Walk-in"}, 1)
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), c.ID))

	active := true
	listed, _, err := svc.List(context.Background(), ListCustomersRequest{IsActive: &active, Limit: 50})
	require.NoError(t, err)
	require.Empty(t, listed)

	// Record survives for history.
	got, err := svc.Get(context.Background(), c.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)
}
