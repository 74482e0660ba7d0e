package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultCleanupSchedule runs the cleanup at minute 17 of every hour
const DefaultCleanupSchedule = "17 * * * *"

// Purger removes revocations whose tokens have expired
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// TokenCleanup purges expired revocation records on a cron schedule
type TokenCleanup struct {
	purger   Purger
	schedule string
	timeout  time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewTokenCleanup validates schedule (standard 5-field cron syntax) and
// creates the job.
func NewTokenCleanup(purger Purger, schedule string, logger *slog.Logger) (*TokenCleanup, error) {
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}
	return &TokenCleanup{
		purger:   purger,
		schedule: schedule,
		timeout:  5 * time.Minute,
		logger:   logger,
	}, nil
}

// Start schedules the cleanup
func (c *TokenCleanup) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	// a slow purge must not pile up behind itself
	cr := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := cr.AddFunc(c.schedule, c.run); err != nil {
		return fmt.Errorf("schedule token cleanup: %w", err)
	}
	cr.Start()

	c.cron = cr
	c.running = true
	c.logger.Info("Token cleanup scheduled", "schedule", c.schedule)
	return nil
}

// Stop unschedules the cleanup and waits for a running purge to finish
func (c *TokenCleanup) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cr := c.cron
	c.mu.Unlock()

	<-cr.Stop().Done()
	c.logger.Info("Token cleanup stopped")
}

// RunOnce purges immediately
func (c *TokenCleanup) RunOnce(ctx context.Context) (int, error) {
	return c.purger.PurgeExpired(ctx)
}

func (c *TokenCleanup) run() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	n, err := c.RunOnce(ctx)
	if err != nil {
		c.logger.Error("Token cleanup failed", "removed", n, "error", err)
		return
	}
	c.logger.Info("Token cleanup finished", "removed", n)
}
