package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tempus-erp/tempus-erp/internal/platform/httpx"
	"github.com/tempus-erp/tempus-erp/internal/shared"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  shared.Actor `json:"user"`
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, validate *validator.Validate) *Handler {
	return &Handler{logger: logger, service: service, validate: validate}
}

// MountPublicRoutes registers the endpoints that work without a token.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Post("/auth/login", h.Login)
}

// MountRoutes registers the endpoints that need an authenticated actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/logout", h.Logout)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	token, actor, err := h.service.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid email or password")
		return
	}
	if err != nil {
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not complete login")
		return
	}

	h.logger.Info("login", slog.Int64("user_id", actor.ID), slog.String("role", actor.Role))
	httpx.JSON(w, http.StatusOK, loginResponse{Token: token, User: actor})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.service.Logout(r.Context(), token); err != nil {
			h.logger.Warn("logout failed", slog.Any("error", err))
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
