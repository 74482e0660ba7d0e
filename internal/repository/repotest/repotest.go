// Package repotest is a behavioural suite every repository.Repository
// backend must pass. Backends call Run from their own tests with a function
// that opens empty stores.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
	"github.com/forgo/jobboard/internal/testing/fixtures"
)

// Opener returns empty, migrated stores for one subtest
type Opener func(t *testing.T) fixtures.Stores

// Run executes the suite against the stores returned by open
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, f *fixtures.Factory)
	}{
		{"GetByID", testGetByID},
		{"DuplicateUniqueField", testDuplicate},
		{"PagedNewestFirst", testPagedNewestFirst},
		{"IncludeRelation", testIncludeRelation},
		{"ContainsFold", testContainsFold},
		{"CountAndExists", testCountAndExists},
		{"Update", testUpdate},
		{"Remove", testRemove},
		{"LessOnTime", testLessOnTime},
		{"InvalidQuery", testInvalidQuery},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, fixtures.New(open(t)))
		})
	}
}

func testGetByID(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	user := f.CreateUser(t)

	got, err := f.Stores().Users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)
	assert.Equal(t, user.PasswordHash, got.PasswordHash)
	assert.WithinDuration(t, user.CreatedAt, got.CreatedAt, time.Millisecond)

	_, err = f.Stores().Users.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func testDuplicate(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	user := f.CreateUser(t)

	dup := &model.User{
		ID:        uuid.NewString(),
		FullName:  "Someone Else",
		Email:     user.Email,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	err := f.Stores().Users.Add(ctx, dup)
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	f.Subscribe(t, user, true)
	again := &model.UserSubscription{ID: uuid.NewString(), UserID: user.ID, Email: user.Email}
	assert.ErrorIs(t, f.Stores().Subs.Add(ctx, again), repository.ErrDuplicate)
}

func testPagedNewestFirst(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	poster := f.CreateUser(t)
	jobs := f.CreateJobs(t, poster, 5)

	page, err := f.Stores().Jobs.GetPaged(ctx, repository.PageQuery{
		Page:  2,
		Size:  2,
		Order: repository.Order{Field: model.JobFieldCreatedAt, Desc: true},
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, jobs[2].ID, page[0].ID)
	assert.Equal(t, jobs[1].ID, page[1].ID)

	last, err := f.Stores().Jobs.GetPaged(ctx, repository.PageQuery{
		Page:  3,
		Size:  2,
		Order: repository.Order{Field: model.JobFieldCreatedAt, Desc: true},
	})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, jobs[0].ID, last[0].ID)

	beyond, err := f.Stores().Jobs.GetPaged(ctx, repository.PageQuery{Page: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func testIncludeRelation(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	poster := f.CreateUser(t)
	job := f.CreateJob(t, poster)

	got, err := f.Stores().Jobs.GetByID(ctx, job.ID, model.JobRelationPostedBy)
	require.NoError(t, err)
	require.NotNil(t, got.PostedBy)
	assert.Equal(t, poster.ID, got.PostedBy.ID)
	assert.Equal(t, poster.Email, got.PostedBy.Email)

	bare, err := f.Stores().Jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, bare.PostedBy)
}

func testContainsFold(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	poster := f.CreateUser(t)
	match := f.CreateJob(t, poster, fixtures.WithTitle("Senior GoLang Engineer"))
	f.CreateJob(t, poster, fixtures.WithTitle("Rust Developer"))
	f.CreateJob(t, poster, fixtures.WithTitle("100% remote"), fixtures.WithDescription("plain"))

	found, err := f.Stores().Jobs.Find(ctx, repository.ContainsFold(model.JobFieldTitle, "golang"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, match.ID, found[0].ID)

	// wildcard characters match only themselves
	found, err = f.Stores().Jobs.Find(ctx, repository.ContainsFold(model.JobFieldTitle, "%"))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "100% remote", found[0].Title)

	found, err = f.Stores().Jobs.Find(ctx, repository.Or(
		repository.ContainsFold(model.JobFieldTitle, "rust"),
		repository.ContainsFold(model.JobFieldDescription, "PLAIN"),
	))
	require.NoError(t, err)
	assert.Len(t, found, 2)

	// folding is not limited to ASCII
	accented := f.CreateJob(t, poster, fixtures.WithTitle("ÉCOLE teacher"))
	for _, keyword := range []string{"école", "ÉCOLE", "Éco"} {
		found, err = f.Stores().Jobs.Find(ctx, repository.ContainsFold(model.JobFieldTitle, keyword))
		require.NoError(t, err)
		require.Len(t, found, 1, keyword)
		assert.Equal(t, accented.ID, found[0].ID)
	}
}

func testCountAndExists(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	a := f.CreateUser(t)
	b := f.CreateUser(t)
	c := f.CreateUser(t)
	f.Subscribe(t, a, true)
	f.Subscribe(t, b, true)
	f.Subscribe(t, c, false)

	subs := f.Stores().Subs
	n, err := subs.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = subs.Count(ctx, repository.And(
		repository.Eq(model.SubscriptionFieldIsActive, true),
		repository.NotEq(model.SubscriptionFieldUserID, a.ID),
	))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err := subs.Exists(ctx, repository.Eq(model.SubscriptionFieldUserID, c.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = subs.Exists(ctx, repository.Or())
	require.NoError(t, err)
	assert.False(t, ok, "an empty Or matches nothing")

	n, err = subs.Count(ctx, repository.And())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "an empty And matches everything")
}

func testUpdate(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	poster := f.CreateUser(t)
	job := f.CreateJob(t, poster)

	job.Title = "Renamed"
	job.UpdatedAt = job.UpdatedAt.Add(time.Minute)
	require.NoError(t, f.Stores().Jobs.Update(ctx, job))

	got, err := f.Stores().Jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, poster.ID, got.PostedByUserID)
	assert.WithinDuration(t, job.UpdatedAt, got.UpdatedAt, time.Millisecond)

	sub := f.Subscribe(t, poster, true)
	sub.IsActive = false
	require.NoError(t, f.Stores().Subs.Update(ctx, sub), "zero values are written")
	gotSub, err := f.Stores().Subs.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, gotSub.IsActive)

	missing := &model.Job{ID: uuid.NewString(), Title: "x"}
	assert.ErrorIs(t, f.Stores().Jobs.Update(ctx, missing), repository.ErrNotFound)
}

func testRemove(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	poster := f.CreateUser(t)
	job := f.CreateJob(t, poster)

	require.NoError(t, f.Stores().Jobs.Remove(ctx, job.ID))
	_, err := f.Stores().Jobs.GetByID(ctx, job.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, f.Stores().Jobs.Remove(ctx, job.ID), repository.ErrNotFound)
}

func testLessOnTime(t *testing.T, f *fixtures.Factory) {
	if f.Stores().Tokens == nil {
		t.Skip("no token store")
	}
	ctx := context.Background()
	now := time.Now().UTC()
	expired := f.RevokeToken(t, "aa"+uuid.NewString(), now.Add(-time.Hour))
	f.RevokeToken(t, "bb"+uuid.NewString(), now.Add(time.Hour))

	found, err := f.Stores().Tokens.Find(ctx, repository.Less(model.InvalidTokenFieldExpiresAt, now))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, expired.ID, found[0].ID)
}

func testInvalidQuery(t *testing.T, f *fixtures.Factory) {
	ctx := context.Background()
	jobs := f.Stores().Jobs

	_, err := jobs.Find(ctx, repository.Eq("title; DROP TABLE job", "x"))
	assert.ErrorIs(t, err, repository.ErrInvalidQuery)

	_, err = jobs.GetPaged(ctx, repository.PageQuery{Page: 0, Size: 10})
	assert.ErrorIs(t, err, repository.ErrInvalidQuery)

	_, err = jobs.GetPaged(ctx, repository.PageQuery{Page: 1, Size: 10, Order: repository.Order{Field: "created_at desc"}})
	assert.ErrorIs(t, err, repository.ErrInvalidQuery)

	_, err = jobs.GetByID(ctx, uuid.NewString(), "posted_by")
	assert.ErrorIs(t, err, repository.ErrInvalidQuery)

	_, err = jobs.Count(ctx, repository.ContainsFold(model.JobFieldTitle, "ok"))
	assert.NoError(t, err)
}
