package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/forgo/jobboard/internal/middleware"
	"github.com/forgo/jobboard/internal/model"
)

// SubscriptionService is what SubscriptionHandler needs
type SubscriptionService interface {
	Get(ctx context.Context, userID string) (*model.UserSubscription, error)
	SetActive(ctx context.Context, userID string, active bool) (*model.UserSubscription, error)
}

// SubscriptionHandler serves the caller's new-job email subscription
type SubscriptionHandler struct {
	subscriptions SubscriptionService
	logger        *slog.Logger
}

func NewSubscriptionHandler(subscriptions SubscriptionService, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{subscriptions: subscriptions, logger: logger}
}

// Get handles GET /subscriptions/me
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptions.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteData(w, http.StatusOK, sub.ToView())
}

// Update handles PUT /subscriptions/me
func (h *SubscriptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateSubscriptionRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		WriteError(w, model.NewValidationError(fields))
		return
	}

	sub, err := h.subscriptions.SetActive(r.Context(), middleware.GetUserID(r.Context()), *req.IsActive)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	WriteMessage(w, http.StatusOK, "subscription updated", sub.ToView())
}
