package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
	"github.com/tempus-erp/tempus-erp/internal/users"
)

type stubDirectory struct {
	byEmail map[string]*users.User
}

func (s *stubDirectory) FindByEmail(_ context.Context, email string) (*users.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return nil, fmt.Errorf("%w: user", httpx.ErrNotFound)
	}
	return u, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*Handler, *Service) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("sekrit123"), bcrypt.MinCost)
	require.NoError(t, err)

	dir := &stubDirectory{byEmail: map[string]*users.User{
		"asha@tempus.local": {
			ID:           7,
			Name:         "asha",
			Email:        "asha@tempus.local",
			Role:         shared.RoleManager,
			PasswordHash: string(hash),
			IsActive:     true,
		},
		"gone@tempus.local": {
			ID:           8,
			Name:         "gone",
			Email:        "gone@tempus.local",
			Role:         shared.RoleStaff,
			PasswordHash: string(hash),
			IsActive:     false,
		},
	}}

	tokens := NewTokenStore(client, time.Hour)
	service := NewService(dir, tokens)
	handler := NewHandler(newTestLogger(), service, validator.New())
	return handler, service
}

func postLogin(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.MountPublicRoutes(r)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestLoginIssuesUsableToken(t *testing.T) {
	h, service := newTestHandler(t)

	rec := postLogin(t, h, `{"email":"asha@tempus.local","password":"sekrit123"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, int64(7), resp.User.ID)
	require.Equal(t, shared.RoleManager, resp.User.Role)

	actor, err := service.Resolve(context.Background(), resp.Token)
	require.NoError(t, err)
	require.Equal(t, "asha", actor.Name)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, _ := newTestHandler(t)

	for name, body := range map[string]string{
		"wrong password": `{"email":"asha@tempus.local","password":"nope-nope"}`,
		"unknown email":  `{"email":"who@tempus.local","password":"sekrit123"}`,
		"inactive user":  `{"email":"gone@tempus.local","password":"sekrit123"}`,
	} {
		rec := postLogin(t, h, body)
		require.Equal(t, http.StatusUnauthorized, rec.Code, name)
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := postLogin(t, h, `{"email":"not-an-email","password":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	h, service := newTestHandler(t)

	token, _, err := service.Login(context.Background(), "asha@tempus.local", "sekrit123")
	require.NoError(t, err)

	r := chi.NewRouter()
	h.MountRoutes(r)
	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = service.Resolve(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestMiddlewarePutsActorInContext(t *testing.T) {
	_, service := newTestHandler(t)

	token, _, err := service.Login(context.Background(), "asha@tempus.local", "sekrit123")
	require.NoError(t, err)

	var seen shared.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	Middleware(service)(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(7), seen.ID)
	require.Equal(t, shared.RoleManager, seen.Role)
}

func TestMiddlewareRejectsMissingAndBogusTokens(t *testing.T) {
	_, service := newTestHandler(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	wrapped := Middleware(service)(next)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rec = httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
