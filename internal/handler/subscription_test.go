package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/jobboard/internal/model"
)

type mockSubscriptionService struct {
	getFunc       func(ctx context.Context, userID string) (*model.UserSubscription, error)
	setActiveFunc func(ctx context.Context, userID string, active bool) (*model.UserSubscription, error)
}

func (m *mockSubscriptionService) Get(ctx context.Context, userID string) (*model.UserSubscription, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, userID)
	}
	return &model.UserSubscription{UserID: userID}, nil
}

func (m *mockSubscriptionService) SetActive(ctx context.Context, userID string, active bool) (*model.UserSubscription, error) {
	if m.setActiveFunc != nil {
		return m.setActiveFunc(ctx, userID, active)
	}
	return &model.UserSubscription{UserID: userID, IsActive: active}, nil
}

func TestSubscriptionHandler_Get(t *testing.T) {
	t.Parallel()

	h := NewSubscriptionHandler(&mockSubscriptionService{}, discardLogger())
	rr := httptest.NewRecorder()
	h.Get(rr, withUser(httptest.NewRequest(http.MethodGet, "/subscriptions/me", nil), "u1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"userId":"u1"`)
	assert.Contains(t, rr.Body.String(), `"isActive":false`)
}

func TestSubscriptionHandler_Update(t *testing.T) {
	t.Parallel()

	var gotActive bool
	h := NewSubscriptionHandler(&mockSubscriptionService{setActiveFunc: func(_ context.Context, userID string, active bool) (*model.UserSubscription, error) {
		gotActive = active
		return &model.UserSubscription{UserID: userID, IsActive: active}, nil
	}}, discardLogger())

	rr := httptest.NewRecorder()
	h.Update(rr, withUser(makeJSONRequest(http.MethodPut, "/subscriptions/me", map[string]bool{"isActive": true}), "u1"))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, gotActive)
	assert.Contains(t, rr.Body.String(), `"isActive":true`)
}

func TestSubscriptionHandler_Update_MissingField(t *testing.T) {
	t.Parallel()

	h := NewSubscriptionHandler(&mockSubscriptionService{setActiveFunc: func(context.Context, string, bool) (*model.UserSubscription, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}, discardLogger())

	rr := httptest.NewRecorder()
	h.Update(rr, withUser(makeJSONRequest(http.MethodPut, "/subscriptions/me", map[string]any{}), "u1"))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "isActive")
}
