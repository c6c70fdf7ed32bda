package users

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

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

func (s *Service) Create(ctx context.Context, req CreateUserRequest, actor shared.Actor) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		Name:         req.Name,
		Email:        req.Email,
		Role:         req.Role,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "create", id, map[string]any{"email": req.Email, "role": req.Role})
	return s.repo.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest, actor shared.Actor) (*User, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := s.repo.Update(ctx, id, updates); err != nil {
			return nil, err
		}
		s.recordAudit(ctx, actor, "update", id, updates)
	}
	return s.repo.Get(ctx, id)
}

// ChangePassword lets a user rotate their own password after proving the
// current one.
func (s *Service) ChangePassword(ctx context.Context, id int64, req ChangePasswordRequest) error {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Current)); err != nil {
		return fmt.Errorf("%w: current password does not match", httpx.ErrForbidden)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.New), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.SetPasswordHash(ctx, id, string(hash))
}

func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditEntry{
		ActorID:  actor.ID,
		Module:   "users",
		Action:   action,
		RecordID: fmt.Sprintf("%d", id),
		New:      meta,
	})
	if err != nil {
		s.logger.Warn("audit write failed", slog.String("action", action), slog.Any("error", err))
	}
}
