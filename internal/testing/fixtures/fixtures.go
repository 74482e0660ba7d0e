package fixtures

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
)

// Stores are the repositories a Factory writes through. Tokens may be nil
// when no test needs revoked tokens.
type Stores struct {
	Users  repository.Repository[model.User]
	Jobs   repository.Repository[model.Job]
	Subs   repository.Repository[model.UserSubscription]
	Tokens repository.Repository[model.InvalidToken]
}

// Factory creates test entities in the stores
type Factory struct {
	stores Stores
	base   time.Time
	seq    int
}

// New creates a new fixture factory
func New(stores Stores) *Factory {
	return &Factory{
		stores: stores,
		base:   time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour),
	}
}

// Stores returns the repositories the factory writes to
func (f *Factory) Stores() Stores {
	return f.stores
}

// next returns a short unique suffix and a timestamp later than every
// previous one
func (f *Factory) next() (string, time.Time) {
	f.seq++
	return fmt.Sprintf("%d_%s", f.seq, uuid.NewString()[:8]), f.base.Add(time.Duration(f.seq) * time.Second)
}

func ctx(t *testing.T) context.Context {
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return c
}

// ============================================================================
// User Fixtures
// ============================================================================

// UserOpts customizes user creation
type UserOpts struct {
	FullName string
	Email    string
	Password string
}

// WithEmail sets the user's email
func WithEmail(email string) func(*UserOpts) {
	return func(o *UserOpts) { o.Email = email }
}

// WithPassword sets the user's plain-text password
func WithPassword(password string) func(*UserOpts) {
	return func(o *UserOpts) { o.Password = password }
}

// CreateUser creates a user with optional customizations
func (f *Factory) CreateUser(t *testing.T, opts ...func(*UserOpts)) *model.User {
	t.Helper()

	suffix, at := f.next()
	o := &UserOpts{
		FullName: "User " + suffix,
		Email:    fmt.Sprintf("user_%s@test.local", suffix),
		Password: "testpass123",
	}
	for _, fn := range opts {
		fn(o)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(o.Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("fixtures: failed to hash password: %v", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		FullName:     o.FullName,
		Email:        o.Email,
		PasswordHash: string(hash),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
	if err := f.stores.Users.Add(ctx(t), user); err != nil {
		t.Fatalf("fixtures: failed to create user: %v", err)
	}
	return user
}

// ============================================================================
// Job Fixtures
// ============================================================================

// JobOpts customizes job creation
type JobOpts struct {
	Title        string
	Description  string
	ExternalLink string
}

// WithTitle sets the job title
func WithTitle(title string) func(*JobOpts) {
	return func(o *JobOpts) { o.Title = title }
}

// WithDescription sets the job description
func WithDescription(description string) func(*JobOpts) {
	return func(o *JobOpts) { o.Description = description }
}

// CreateJob creates a job posted by poster
func (f *Factory) CreateJob(t *testing.T, poster *model.User, opts ...func(*JobOpts)) *model.Job {
	t.Helper()

	suffix, at := f.next()
	o := &JobOpts{
		Title:        "Job " + suffix,
		Description:  "Description for job " + suffix,
		ExternalLink: "https://example.com/jobs/" + suffix,
	}
	for _, fn := range opts {
		fn(o)
	}

	job := &model.Job{
		ID:             uuid.NewString(),
		Title:          o.Title,
		Description:    o.Description,
		ExternalLink:   o.ExternalLink,
		PostedByUserID: poster.ID,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if err := f.stores.Jobs.Add(ctx(t), job); err != nil {
		t.Fatalf("fixtures: failed to create job: %v", err)
	}
	return job
}

// CreateJobs creates n jobs posted by poster, oldest first
func (f *Factory) CreateJobs(t *testing.T, poster *model.User, n int) []*model.Job {
	t.Helper()
	out := make([]*model.Job, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, f.CreateJob(t, poster))
	}
	return out
}

// ============================================================================
// Subscription Fixtures
// ============================================================================

// Subscribe stores a subscription for user with the given state
func (f *Factory) Subscribe(t *testing.T, user *model.User, active bool) *model.UserSubscription {
	t.Helper()

	_, at := f.next()
	sub := &model.UserSubscription{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		IsActive:  active,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: at,
		UpdatedAt: at,
	}
	if err := f.stores.Subs.Add(ctx(t), sub); err != nil {
		t.Fatalf("fixtures: failed to create subscription: %v", err)
	}
	return sub
}

// ============================================================================
// Token Fixtures
// ============================================================================

// RevokeToken stores a revoked token digest that expires at expiresAt
func (f *Factory) RevokeToken(t *testing.T, digest string, expiresAt time.Time) *model.InvalidToken {
	t.Helper()
	if f.stores.Tokens == nil {
		t.Fatal("fixtures: no token store configured")
	}

	_, at := f.next()
	tok := &model.InvalidToken{
		ID:        digest,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: at,
	}
	if err := f.stores.Tokens.Add(ctx(t), tok); err != nil {
		t.Fatalf("fixtures: failed to create invalid token: %v", err)
	}
	return tok
}
