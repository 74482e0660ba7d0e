package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/forgo/jobboard/internal/middleware"
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/service"
)

// AuthService is what AuthHandler needs from the auth service
type AuthService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error)
	Logout(ctx context.Context, p *service.Principal) error
	GetUserByID(ctx context.Context, userID string) (*model.User, error)
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{authService: authService, logger: logger}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	tokens, err := h.authService.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteMessage(w, http.StatusCreated, "account created", tokens)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}

	tokens, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteData(w, http.StatusOK, tokens)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipal(r.Context())
	if p == nil {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	if err := h.authService.Logout(r.Context(), p); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteMessage(w, http.StatusOK, "logged out", nil)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	WriteData(w, http.StatusOK, user.ToView())
}
