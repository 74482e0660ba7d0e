package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/service"
)

// Authorizer resolves the caller from a raw Authorization header
type Authorizer interface {
	Authorize(ctx context.Context, header string) (*service.Principal, error)
}

// Auth runs the access gate and stores the principal in the request
// context. Missing, malformed, invalid and revoked tokens all get the same
// 401; a failing revocation store gets a 500.
func Auth(gate Authorizer, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := gate.Authorize(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, service.ErrMissingToken) || errors.Is(err, service.ErrInvalidToken) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="jobboard"`)
					model.NewUnauthorizedError("invalid or missing bearer token").WriteJSON(w)
					return
				}
				logger.Error("Authorization failed",
					"request_id", GetRequestID(r.Context()),
					"error", err)
				model.NewInternalError("").WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal returns a context carrying p
func WithPrincipal(ctx context.Context, p *service.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// GetPrincipal extracts the authenticated caller from context
func GetPrincipal(ctx context.Context) *service.Principal {
	if p, ok := ctx.Value(principalKey).(*service.Principal); ok {
		return p
	}
	return nil
}

// GetUserID extracts the authenticated user ID from context
func GetUserID(ctx context.Context) string {
	if p := GetPrincipal(ctx); p != nil {
		return p.UserID
	}
	return ""
}
