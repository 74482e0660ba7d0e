package handler

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/jobboard/internal/linksafety"
	"github.com/forgo/jobboard/internal/middleware"
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
	"github.com/forgo/jobboard/internal/repository/gormstore"
	"github.com/forgo/jobboard/internal/revocation"
	"github.com/forgo/jobboard/internal/service"
	"github.com/forgo/jobboard/internal/testing/testdb"
	"github.com/forgo/jobboard/pkg/jwt"
)

var (
	routerKeyOnce sync.Once
	routerKey     *rsa.PrivateKey
)

type discardQueue struct{}

func (discardQueue) Enqueue(model.NotificationBatch) bool { return true }

type routerEnv struct {
	handler http.Handler
	jobs    repository.Repository[model.Job]
}

type routerOptions struct {
	limiter middleware.Limiter
	health  map[string]Pinger
}

// newRouterEnv wires the full HTTP stack over in-memory SQLite
func newRouterEnv(t *testing.T, opts routerOptions) *routerEnv {
	t.Helper()
	routerKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		routerKey = key
	})

	db := testdb.SQLite(t)
	users := gormstore.New[model.User](db)
	jobs := gormstore.New[model.Job](db)
	subs := gormstore.New[model.UserSubscription](db)
	revoked := revocation.NewRepositoryStore(gormstore.New[model.InvalidToken](db))
	tokens := service.NewTokenService(jwt.NewTestService(routerKey, "test-issuer", time.Hour))

	jobService := service.NewJobService(service.JobServiceConfig{
		JobRepo:          jobs,
		SubscriptionRepo: subs,
		LinkChecker:      linksafety.SyntacticChecker{},
		Queue:            discardQueue{},
		Logger:           discardLogger(),
	})
	authService := service.NewAuthService(service.AuthServiceConfig{
		UserRepo:     users,
		TokenService: tokens,
		Revoker:      revoked,
		BcryptCost:   bcrypt.MinCost,
	})

	idem := middleware.NewIdempotencyStore(middleware.IdempotencyConfig{TTL: time.Hour})
	t.Cleanup(idem.Stop)

	h := NewRouter(RouterConfig{
		Jobs:          NewJobHandler(jobService, discardLogger()),
		Auth:          NewAuthHandler(authService, discardLogger()),
		Subscriptions: NewSubscriptionHandler(service.NewSubscriptionService(subs, users), discardLogger()),
		Health:        NewHealthHandler(opts.health, discardLogger()),
		Gate:          service.NewAccessGate(tokens, revoked),
		Limiter:       opts.limiter,
		Idempotency:   idem,
		Logger:        discardLogger(),
	})
	return &routerEnv{handler: h, jobs: jobs}
}

func (e *routerEnv) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := makeJSONRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func (e *routerEnv) register(t *testing.T, name, email string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"fullName": name, "email": email, "password": "password123",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var tokens model.TokenResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr.Body.Bytes()).Data, &tokens))
	require.NotEmpty(t, tokens.AccessToken)
	return tokens.AccessToken
}

func jobBody(title string) map[string]string {
	return map[string]string{
		"title":        title,
		"description":  "Build backend services",
		"externalLink": "https://example.com/apply",
	}
}

// ============================================================================
// Router Tests
// ============================================================================

func TestRouter_JobLifecycle(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})

	alice := env.register(t, "Alice", "alice@example.com")
	bob := env.register(t, "Bob", "bob@example.com")

	rr := env.do(t, http.MethodPost, "/jobs", alice, jobBody("Go developer"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	location := rr.Header().Get("Location")
	require.NotEmpty(t, location)

	rr = env.do(t, http.MethodGet, location+"?includeUser=true", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var view model.JobView
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr.Body.Bytes()).Data, &view))
	assert.Equal(t, "Go developer", view.Title)
	require.NotNil(t, view.PostedBy)
	assert.Equal(t, "Alice", view.PostedBy.FullName)

	rr = env.do(t, http.MethodGet, "/jobs/all", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(1), decodeEnvelope(t, rr.Body.Bytes()).TotalCount)

	rr = env.do(t, http.MethodGet, "/jobs/search?keyword=DEVELOPER", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Go developer")

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodPut, location, bob, jobBody("Hijacked")).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodDelete, location, bob, nil).Code)

	rr = env.do(t, http.MethodPut, location, alice, jobBody("Senior Go developer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Senior Go developer")

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, location, alice, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, location, alice, nil).Code)
}

func TestRouter_RequiresToken(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/jobs/all"},
		{http.MethodGet, "/jobs/search?keyword=go"},
		{http.MethodGet, "/jobs/00000000-0000-0000-0000-000000000000"},
		{http.MethodPost, "/jobs"},
		{http.MethodPut, "/jobs/00000000-0000-0000-0000-000000000000"},
		{http.MethodDelete, "/jobs/00000000-0000-0000-0000-000000000000"},
		{http.MethodPost, "/auth/logout"},
		{http.MethodGet, "/auth/me"},
		{http.MethodGet, "/subscriptions/me"},
		{http.MethodPut, "/subscriptions/me"},
	} {
		rr := env.do(t, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)

		rr = env.do(t, route.method, route.path, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, route.path)
	}
}

func TestRouter_InvalidInputBeforeLookup(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})
	token := env.register(t, "Alice", "alice@example.com")

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/jobs/not-a-uuid", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/jobs/all?pageNumber=0", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/jobs/all?pageSize=101", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/jobs/search?keyword=a", token, nil).Code)
}

func TestRouter_UnsafeLinkRejected(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})
	token := env.register(t, "Alice", "alice@example.com")

	body := jobBody("Go developer")
	body["externalLink"] = "javascript:alert(1)"
	rr := env.do(t, http.MethodPost, "/jobs", token, body)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	count, err := env.jobs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRouter_LogoutRevokesToken(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})
	token := env.register(t, "Alice", "alice@example.com")

	rr := env.do(t, http.MethodPost, "/jobs", token, jobBody("Go developer"))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	location := rr.Header().Get("Location")
	require.NotEmpty(t, location)

	// a second session for the same user stays valid after the first logs out
	rr = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, rr.Code)
	var other model.TokenResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rr.Body.Bytes()).Data, &other))

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/auth/logout", token, nil).Code)

	// destructive routes last so the live session can replay the table
	routes := []struct {
		method, path string
		body         any
		live         int
	}{
		{http.MethodGet, "/auth/me", nil, http.StatusOK},
		{http.MethodGet, "/jobs/all", nil, http.StatusOK},
		{http.MethodGet, "/jobs/search?keyword=developer", nil, http.StatusOK},
		{http.MethodGet, location, nil, http.StatusOK},
		{http.MethodPost, "/jobs", jobBody("Rust developer"), http.StatusCreated},
		{http.MethodPut, location, jobBody("Senior Go developer"), http.StatusOK},
		{http.MethodGet, "/subscriptions/me", nil, http.StatusOK},
		{http.MethodPut, "/subscriptions/me", map[string]bool{"isActive": true}, http.StatusOK},
		{http.MethodDelete, location, nil, http.StatusOK},
		{http.MethodPost, "/auth/logout", nil, http.StatusOK},
	}

	for _, route := range routes {
		rr := env.do(t, route.method, route.path, token, route.body)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, "%s %s", route.method, route.path)
	}

	count, err := env.jobs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "revoked token must not create or delete jobs")

	for _, route := range routes {
		rr := env.do(t, route.method, route.path, other.AccessToken, route.body)
		assert.Equal(t, route.live, rr.Code, "%s %s: %s", route.method, route.path, rr.Body.String())
	}
}

func TestRouter_LoginAfterRegister(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})
	env.register(t, "Alice", "alice@example.com")

	rr := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "ALICE@example.com", "password": "password123"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "alice@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"fullName": "Again", "email": "alice@example.com", "password": "password123",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRouter_IdempotentCreate(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})
	token := env.register(t, "Alice", "alice@example.com")

	first := env.do(t, http.MethodPost, "/jobs", token, jobBody("Go developer"), "Idempotency-Key", "retry-1")
	second := env.do(t, http.MethodPost, "/jobs", token, jobBody("Go developer"), "Idempotency-Key", "retry-1")

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Header().Get("Location"), second.Header().Get("Location"))
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replayed"))

	count, err := env.jobs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRouter_Subscription(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})
	token := env.register(t, "Alice", "alice@example.com")

	rr := env.do(t, http.MethodGet, "/subscriptions/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"isActive":false`)

	rr = env.do(t, http.MethodPut, "/subscriptions/me", token, map[string]bool{"isActive": true})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/subscriptions/me", token, nil)
	assert.Contains(t, rr.Body.String(), `"isActive":true`)
}

func TestRouter_RateLimited(t *testing.T) {
	t.Parallel()
	limiter := middleware.NewMemoryLimiter(middleware.RateLimitConfig{Rate: 3, Window: time.Hour, Burst: -1})
	t.Cleanup(limiter.Stop)
	env := newRouterEnv(t, routerOptions{limiter: limiter})

	// register consumes one request from the IP bucket
	token := env.register(t, "Alice", "alice@example.com")

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/auth/me", token, nil).Code, "request %d", i)
	}
	rr := env.do(t, http.MethodGet, "/auth/me", token, nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	env := newRouterEnv(t, routerOptions{health: map[string]Pinger{
		"database": func(context.Context) error { return nil },
	}})
	rr := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"database":"ok"`)

	env = newRouterEnv(t, routerOptions{health: map[string]Pinger{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}})
	rr = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"redis":"unavailable"`)
	assert.NotContains(t, rr.Body.String(), "connection refused")
}

func TestRouter_RequestIDAndCORS(t *testing.T) {
	t.Parallel()
	env := newRouterEnv(t, routerOptions{})

	rr := env.do(t, http.MethodOptions, "/jobs", "", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}
