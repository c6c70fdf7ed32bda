package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create registers a customer. Phone numbers identify walk-in customers at
// the counter, so they stay unique when present.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest, createdBy int64) (*Customer, error) {
	if req.Phone != nil && *req.Phone != "" {
		existing, err := s.repo.GetByPhone(ctx, *req.Phone)
		if err != nil && !errors.Is(err, httpx.ErrNotFound) {
			return nil, fmt.Errorf("check existing customer: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: phone already registered to %s", httpx.ErrDuplicate, existing.Name)
		}
	}

	customer := Customer{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		Notes:     req.Notes,
		IsActive:  true,
		CreatedBy: createdBy,
	}

	id, err := s.repo.Create(ctx, customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (*Customer, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) == 0 {
		return existing, nil
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// GetByPhone is the counter lookup: the customer states a number, the clerk
// pulls the record.
func (s *Service) GetByPhone(ctx context.Context, phone string) (*Customer, error) {
	return s.repo.GetByPhone(ctx, phone)
}

func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.repo.List(ctx, req)
}

// Deactivate hides a customer from pickers without touching history.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Update(ctx, id, map[string]any{"is_active": false})
}
