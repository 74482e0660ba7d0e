// Package linksafety decides whether an external job link may be stored.
//
// Every checker applies the same syntactic gate first: the link must be an
// absolute http or https URL with a host. A reputation lookup, when
// configured, runs only for syntactically valid links.
package linksafety

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// ErrLookup wraps failures of the reputation service. A failed lookup is
// never reported as safe.
var ErrLookup = errors.New("link safety lookup failed")

// Verdict is the outcome of a safety check
type Verdict struct {
	Safe bool
	// Reason names the syntactic problem or the threat types matched.
	Reason string
}

// Checker answers whether a URL is safe to publish
type Checker interface {
	Check(ctx context.Context, rawURL string) (Verdict, error)
}

// Syntactic validates the URL shape only
func Syntactic(rawURL string) Verdict {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Verdict{Reason: "empty url"}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return Verdict{Reason: "malformed url"}
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return Verdict{Reason: "url scheme must be http or https"}
	}
	if u.Hostname() == "" {
		return Verdict{Reason: "url has no host"}
	}
	if u.User != nil {
		return Verdict{Reason: "url must not embed credentials"}
	}
	return Verdict{Safe: true}
}

// SyntacticChecker applies only the syntactic gate. Used when no
// reputation provider is configured.
type SyntacticChecker struct{}

func (SyntacticChecker) Check(_ context.Context, rawURL string) (Verdict, error) {
	return Syntactic(rawURL), nil
}
