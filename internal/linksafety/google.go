package linksafety

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/safebrowsing/v4"
)

var threatTypes = []string{
	"MALWARE",
	"SOCIAL_ENGINEERING",
	"UNWANTED_SOFTWARE",
	"POTENTIALLY_HARMFUL_APPLICATION",
}

// GoogleConfig configures the Safe Browsing lookup
type GoogleConfig struct {
	APIKey        string
	ClientID      string
	ClientVersion string
	Timeout       time.Duration
	Attempts      uint
	RetryDelay    time.Duration
}

// GoogleChecker looks links up with the Google Safe Browsing v4 API
type GoogleChecker struct {
	service  *safebrowsing.Service
	cfg      GoogleConfig
	logger   *slog.Logger
	maxDelay time.Duration
}

// NewGoogleChecker creates a checker. Extra client options are appended
// after the API key (tests point the endpoint at a local server).
func NewGoogleChecker(ctx context.Context, cfg GoogleConfig, logger *slog.Logger, opts ...option.ClientOption) (*GoogleChecker, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "jobboard"
	}
	if cfg.ClientVersion == "" {
		cfg.ClientVersion = "1.0.0"
	}

	all := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	svc, err := safebrowsing.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create safebrowsing service: %w", err)
	}
	return &GoogleChecker{
		service:  svc,
		cfg:      cfg,
		logger:   logger,
		maxDelay: 2 * time.Second,
	}, nil
}

func (g *GoogleChecker) Check(ctx context.Context, rawURL string) (Verdict, error) {
	if v := Syntactic(rawURL); !v.Safe {
		return v, nil
	}

	req := &safebrowsing.GoogleSecuritySafebrowsingV4FindThreatMatchesRequest{
		Client: &safebrowsing.GoogleSecuritySafebrowsingV4ClientInfo{
			ClientId:      g.cfg.ClientID,
			ClientVersion: g.cfg.ClientVersion,
		},
		ThreatInfo: &safebrowsing.GoogleSecuritySafebrowsingV4ThreatInfo{
			ThreatTypes:      threatTypes,
			PlatformTypes:    []string{"ANY_PLATFORM"},
			ThreatEntryTypes: []string{"URL"},
			ThreatEntries: []*safebrowsing.GoogleSecuritySafebrowsingV4ThreatEntry{
				{Url: strings.TrimSpace(rawURL)},
			},
		},
	}

	var resp *safebrowsing.GoogleSecuritySafebrowsingV4FindThreatMatchesResponse
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
			defer cancel()

			start := time.Now()
			r, err := g.service.ThreatMatches.Find(req).Context(callCtx).Do()
			if err != nil {
				g.logger.Warn("Safe Browsing lookup failed",
					"duration_ms", time.Since(start).Milliseconds(),
					"error", err)
				if !retryable(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			resp = r
			return nil
		},
		retry.Attempts(g.cfg.Attempts),
		retry.Delay(g.cfg.RetryDelay),
		retry.MaxDelay(g.maxDelay),
		retry.MaxJitter(g.cfg.RetryDelay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			g.logger.Info("Retrying Safe Browsing lookup", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}

	if resp == nil || len(resp.Matches) == 0 {
		return Verdict{Safe: true}, nil
	}

	seen := map[string]bool{}
	for _, m := range resp.Matches {
		if m != nil && m.ThreatType != "" {
			seen[m.ThreatType] = true
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)

	g.logger.Info("Unsafe link rejected", "threats", types)
	return Verdict{Reason: strings.Join(types, ",")}, nil
}

// retryable reports whether a lookup error may succeed on a later attempt.
// Client errors other than throttling are final.
func retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	return true
}
