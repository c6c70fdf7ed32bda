package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/tempus-erp/tempus-erp/internal/shared"
	"github.com/tempus-erp/tempus-erp/internal/users"
)

// ErrInvalidCredentials is returned for any login failure: unknown email,
// wrong password, deactivated account.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// UserDirectory is the slice of the users service the login flow needs.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

// Service wraps authentication rules: credential checks and token issue.
type Service struct {
	directory UserDirectory
	tokens    *TokenStore
}

func NewService(directory UserDirectory, tokens *TokenStore) *Service {
	return &Service{directory: directory, tokens: tokens}
}

// Login verifies the credentials and returns a fresh bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, shared.Actor, error) {
	user, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return "", shared.Actor{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", shared.Actor{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", shared.Actor{}, ErrInvalidCredentials
	}

	actor := shared.Actor{ID: user.ID, Name: user.Name, Role: user.Role}
	token, err := s.tokens.Issue(ctx, actor)
	if err != nil {
		return "", shared.Actor{}, err
	}
	return token, actor, nil
}

// Logout revokes the token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a presented token back to its actor.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	return s.tokens.Resolve(ctx, token)
}
