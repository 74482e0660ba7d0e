package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/pkg/jwt"
)

type mockValidator struct {
	validateFunc func(token string) (*jwt.Claims, error)
}

func (m *mockValidator) ValidateAccessToken(token string) (*jwt.Claims, error) {
	return m.validateFunc(token)
}

func TestBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer   ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"abc.def.ghi", "", false},
	}
	for _, tt := range tests {
		token, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, "header %q", tt.header)
		assert.Equal(t, tt.token, token, "header %q", tt.header)
	}
}

func TestAuthorize_ValidToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	user := env.addUser(t, "Alice", "alice@example.com")

	resp, err := env.tokens.IssueAccessToken(user)
	require.NoError(t, err)

	p, err := env.gate.Authorize(context.Background(), "Bearer "+resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, user.Email, p.Email)
	assert.Equal(t, "Alice", p.FullName)
	assert.Equal(t, resp.AccessToken, p.Token)
	assert.False(t, p.ExpiresAt.IsZero())
}

func TestAuthorize_MissingHeader(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.gate.Authorize(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestAuthorize_RevokedToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.addUser(t, "Alice", "alice@example.com")

	resp, err := env.tokens.IssueAccessToken(user)
	require.NoError(t, err)
	p, err := env.gate.Authorize(ctx, "Bearer "+resp.AccessToken)
	require.NoError(t, err)

	require.NoError(t, env.authService.Logout(ctx, p))

	_, err = env.gate.Authorize(ctx, "Bearer "+resp.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_RevocationCheckedBeforeSignature(t *testing.T) {
	t.Parallel()
	validated := false
	gate := NewAccessGate(
		&mockValidator{validateFunc: func(string) (*jwt.Claims, error) {
			validated = true
			return &jwt.Claims{UserID: "u1"}, nil
		}},
		&mockRevocations{isRevokedFunc: func(context.Context, string) (bool, error) {
			return true, nil
		}},
	)

	_, err := gate.Authorize(context.Background(), "Bearer tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.False(t, validated)
}

func TestAuthorize_RevocationStoreFailure(t *testing.T) {
	t.Parallel()
	storeErr := errors.New("connection refused")
	gate := NewAccessGate(
		&mockValidator{validateFunc: func(string) (*jwt.Claims, error) {
			return &jwt.Claims{UserID: "u1"}, nil
		}},
		&mockRevocations{isRevokedFunc: func(context.Context, string) (bool, error) {
			return false, storeErr
		}},
	)

	_, err := gate.Authorize(context.Background(), "Bearer tok")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_BadSignature(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	_, err := env.gate.Authorize(context.Background(), "Bearer not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_EmptySubject(t *testing.T) {
	t.Parallel()
	gate := NewAccessGate(
		&mockValidator{validateFunc: func(string) (*jwt.Claims, error) {
			return &jwt.Claims{Email: "alice@example.com"}, nil
		}},
		&mockRevocations{},
	)

	_, err := gate.Authorize(context.Background(), "Bearer tok")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireOwner(t *testing.T) {
	t.Parallel()
	job := &model.Job{PostedByUserID: "owner"}

	assert.NoError(t, RequireOwner("owner", job))
	assert.ErrorIs(t, RequireOwner("someone-else", job), ErrNotJobOwner)
	assert.ErrorIs(t, RequireOwner("", &model.Job{}), ErrNotJobOwner)
}
