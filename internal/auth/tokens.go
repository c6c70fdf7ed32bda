// Package auth issues and validates bearer tokens for the JSON API. Tokens
// are opaque UUIDs stored in redis with a sliding TTL; revocation is a key
// delete.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tempus-erp/tempus-erp/internal/shared"
)

// ErrInvalidToken covers unknown, expired and revoked tokens alike; callers
// get no hint which.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// TokenStore keeps issued tokens in redis.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenStore{client: client, ttl: ttl}
}

func tokenKey(token string) string {
	return "token:" + token
}

// Issue mints a token for the actor.
func (s *TokenStore) Issue(ctx context.Context, actor shared.Actor) (string, error) {
	token := uuid.NewString()
	payload, err := json.Marshal(actor)
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, tokenKey(token), payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Resolve validates a token and refreshes its TTL, so active staff stay
// logged in through the working day.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Actor, error) {
	if token == "" {
		return shared.Actor{}, ErrInvalidToken
	}
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return shared.Actor{}, ErrInvalidToken
	}
	if err != nil {
		return shared.Actor{}, fmt.Errorf("load token: %w", err)
	}
	var actor shared.Actor
	if err := json.Unmarshal(raw, &actor); err != nil {
		_ = s.client.Del(ctx, tokenKey(token)).Err()
		return shared.Actor{}, ErrInvalidToken
	}
	_ = s.client.Expire(ctx, tokenKey(token), s.ttl).Err()
	return actor, nil
}

// Revoke invalidates a token immediately.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, tokenKey(token)).Err()
}
