package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/jobboard/internal/linksafety"
	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
	"github.com/forgo/jobboard/internal/repository/gormstore"
	"github.com/forgo/jobboard/internal/revocation"
	"github.com/forgo/jobboard/internal/testing/testdb"
	"github.com/forgo/jobboard/pkg/jwt"
)

// ============================================================================
// Mocks
// ============================================================================

type mockLinkChecker struct {
	calls     atomic.Int32
	checkFunc func(ctx context.Context, url string) (linksafety.Verdict, error)
}

func (m *mockLinkChecker) Check(ctx context.Context, url string) (linksafety.Verdict, error) {
	m.calls.Add(1)
	if m.checkFunc != nil {
		return m.checkFunc(ctx, url)
	}
	return linksafety.Verdict{Safe: true}, nil
}

type mockQueue struct {
	mu          sync.Mutex
	batches     []model.NotificationBatch
	enqueueFunc func(batch model.NotificationBatch) bool
}

func (m *mockQueue) Enqueue(batch model.NotificationBatch) bool {
	m.mu.Lock()
	m.batches = append(m.batches, batch)
	m.mu.Unlock()
	if m.enqueueFunc != nil {
		return m.enqueueFunc(batch)
	}
	return true
}

func (m *mockQueue) Batches() []model.NotificationBatch {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.NotificationBatch(nil), m.batches...)
}

type mockRevocations struct {
	isRevokedFunc func(ctx context.Context, token string) (bool, error)
}

func (m *mockRevocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	if m.isRevokedFunc != nil {
		return m.isRevokedFunc(ctx, token)
	}
	return false, nil
}

// spyRepo counts every call that reaches the wrapped repository
type spyRepo[T repository.Entity] struct {
	repository.Repository[T]
	calls atomic.Int32
}

func (s *spyRepo[T]) GetByID(ctx context.Context, id string, include ...string) (*T, error) {
	s.calls.Add(1)
	return s.Repository.GetByID(ctx, id, include...)
}

func (s *spyRepo[T]) GetPaged(ctx context.Context, q repository.PageQuery) ([]T, error) {
	s.calls.Add(1)
	return s.Repository.GetPaged(ctx, q)
}

func (s *spyRepo[T]) Find(ctx context.Context, where repository.Criterion, include ...string) ([]T, error) {
	s.calls.Add(1)
	return s.Repository.Find(ctx, where, include...)
}

func (s *spyRepo[T]) Count(ctx context.Context, where repository.Criterion) (int64, error) {
	s.calls.Add(1)
	return s.Repository.Count(ctx, where)
}

// ============================================================================
// Helper Functions
// ============================================================================

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func createTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = key
	})
	return jwt.NewTestService(testKey, "test-issuer", time.Hour)
}

// testEnv is a service stack over an in-memory SQLite database
type testEnv struct {
	jobs    *spyRepo[model.Job]
	subs    repository.Repository[model.UserSubscription]
	users   repository.Repository[model.User]
	revoked *revocation.RepositoryStore
	links   *mockLinkChecker
	queue   *mockQueue
	tokens  *TokenService

	jobService  *JobService
	authService *AuthService
	subService  *SubscriptionService
	gate        *AccessGate
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testdb.SQLite(t)

	env := &testEnv{
		jobs:    &spyRepo[model.Job]{Repository: gormstore.New[model.Job](db)},
		subs:    gormstore.New[model.UserSubscription](db),
		users:   gormstore.New[model.User](db),
		revoked: revocation.NewRepositoryStore(gormstore.New[model.InvalidToken](db)),
		links:   &mockLinkChecker{},
		queue:   &mockQueue{},
		tokens:  NewTokenService(createTestJWTService(t)),
	}
	env.jobService = NewJobService(JobServiceConfig{
		JobRepo:          env.jobs,
		SubscriptionRepo: env.subs,
		LinkChecker:      env.links,
		Queue:            env.queue,
	})
	env.authService = NewAuthService(AuthServiceConfig{
		UserRepo:     env.users,
		TokenService: env.tokens,
		Revoker:      env.revoked,
		BcryptCost:   bcrypt.MinCost,
	})
	env.subService = NewSubscriptionService(env.subs, env.users)
	env.gate = NewAccessGate(env.tokens, env.revoked)
	return env
}

func (e *testEnv) addUser(t *testing.T, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		ID:        uuid.NewString(),
		FullName:  name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, e.users.Add(context.Background(), user))
	return user
}

func (e *testEnv) subscribe(t *testing.T, user *model.User, active bool) {
	t.Helper()
	_, err := e.subService.SetActive(context.Background(), user.ID, active)
	require.NoError(t, err)
}

func validJobRequest() model.JobRequest {
	return model.JobRequest{
		Title:        "Go developer",
		Description:  "Build backend services",
		ExternalLink: "https://example.com/apply",
	}
}
