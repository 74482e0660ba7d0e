package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/pkg/jwt"
)

// TokenValidator verifies a token's signature and registered claims
type TokenValidator interface {
	ValidateAccessToken(token string) (*jwt.Claims, error)
}

// RevocationChecker reports whether a token was revoked before expiry
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Principal is the caller resolved by the access gate
type Principal struct {
	UserID   string
	Email    string
	FullName string
	// Token is the raw bearer token, kept so logout can revoke it
	Token     string
	ExpiresAt time.Time
}

// AccessGate authorizes every request before any domain logic runs
type AccessGate struct {
	validator   TokenValidator
	revocations RevocationChecker
}

// NewAccessGate creates a gate
func NewAccessGate(validator TokenValidator, revocations RevocationChecker) *AccessGate {
	return &AccessGate{validator: validator, revocations: revocations}
}

// Authorize resolves the caller from a raw Authorization header. The steps
// run in order and stop at the first failure: strip the bearer prefix,
// reject revoked tokens, then require a verified non-empty subject.
// A failing revocation store is returned as-is and never treated as
// "not revoked".
func (g *AccessGate) Authorize(ctx context.Context, header string) (*Principal, error) {
	token, ok := BearerToken(header)
	if !ok {
		return nil, ErrMissingToken
	}

	revoked, err := g.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check token revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	claims, err := g.validator.ValidateAccessToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return &Principal{
		UserID:    claims.UserID,
		Email:     claims.Email,
		FullName:  claims.FullName,
		Token:     token,
		ExpiresAt: claims.Expiry(),
	}, nil
}

// BearerToken strips the case-insensitive "Bearer " scheme from header
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireOwner fails with ErrNotJobOwner unless userID posted job
func RequireOwner(userID string, job *model.Job) error {
	if userID == "" || job.PostedByUserID != userID {
		return ErrNotJobOwner
	}
	return nil
}
