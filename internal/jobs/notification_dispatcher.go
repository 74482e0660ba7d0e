// Package jobs runs the work that happens outside the request path: new-job
// notification delivery and periodic cleanup of expired revocations.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/forgo/jobboard/internal/model"
)

// Mailer sends one new-job notification
type Mailer interface {
	SendJobPosted(ctx context.Context, r model.Recipient, job *model.Job) error
}

// DispatcherConfig sizes the notification worker pool
type DispatcherConfig struct {
	Workers   int
	QueueSize int
	// SendTimeout bounds a single email send
	SendTimeout time.Duration
	// BatchDeadline bounds the whole fan-out for one job
	BatchDeadline time.Duration
}

// DispatcherStats are cumulative delivery counters
type DispatcherStats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

// NotificationDispatcher delivers queued notification batches on a fixed
// pool of workers. Delivery is best effort and at most once: a full queue
// drops the batch, a failed send is logged and never retried, and batches
// still queued when the process dies are lost.
type NotificationDispatcher struct {
	mailer Mailer
	cfg    DispatcherConfig
	logger *slog.Logger

	mu      sync.RWMutex
	queue   chan model.NotificationBatch
	running bool
	wg      sync.WaitGroup

	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewNotificationDispatcher creates a dispatcher; call Start before Enqueue
func NewNotificationDispatcher(mailer Mailer, cfg DispatcherConfig, logger *slog.Logger) *NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.BatchDeadline <= 0 {
		cfg.BatchDeadline = 5 * time.Minute
	}
	return &NotificationDispatcher{
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}
}

// Start launches the workers
func (d *NotificationDispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.queue = make(chan model.NotificationBatch, d.cfg.QueueSize)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work(d.queue)
	}
	d.logger.Info("Notification dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize)
}

// Stop closes the queue and waits for queued batches to drain, or for ctx
// to end, whichever comes first.
func (d *NotificationDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification dispatcher drain: %w", ctx.Err())
	}
}

// Enqueue hands a batch to the workers without blocking. It reports false
// when the batch was dropped because the queue is full or stopped.
func (d *NotificationDispatcher) Enqueue(batch model.NotificationBatch) bool {
	if len(batch.Recipients) == 0 {
		return true
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		d.drop(batch, "dispatcher stopped")
		return false
	}

	select {
	case d.queue <- batch:
		return true
	default:
		d.drop(batch, "queue full")
		return false
	}
}

// Stats returns the delivery counters
func (d *NotificationDispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Sent:    d.sent.Load(),
		Failed:  d.failed.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *NotificationDispatcher) drop(batch model.NotificationBatch, reason string) {
	d.dropped.Add(int64(len(batch.Recipients)))
	d.logger.Warn("Notification batch dropped",
		"job_id", batch.Job.ID,
		"recipients", len(batch.Recipients),
		"reason", reason)
}

func (d *NotificationDispatcher) work(queue <-chan model.NotificationBatch) {
	defer d.wg.Done()
	for batch := range queue {
		d.deliver(batch)
	}
}

// deliver sends one email per recipient. A failure for one recipient never
// stops the others.
func (d *NotificationDispatcher) deliver(batch model.NotificationBatch) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.BatchDeadline)
	defer cancel()

	start := time.Now()
	var sent, failed int
	for _, r := range batch.Recipients {
		if ctx.Err() != nil {
			remaining := len(batch.Recipients) - sent - failed
			failed += remaining
			d.logger.Warn("Notification batch deadline exceeded",
				"job_id", batch.Job.ID,
				"remaining", remaining)
			break
		}

		if err := d.sendOne(ctx, r, &batch.Job); err != nil {
			failed++
			d.logger.Warn("Notification send failed",
				"job_id", batch.Job.ID,
				"user_id", r.UserID,
				"to", r.Email,
				"error", err)
			continue
		}
		sent++
	}

	d.sent.Add(int64(sent))
	d.failed.Add(int64(failed))
	d.logger.Info("Notification batch finished",
		"job_id", batch.Job.ID,
		"sent", sent,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds())
}

func (d *NotificationDispatcher) sendOne(ctx context.Context, r model.Recipient, job *model.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()
	return d.mailer.SendJobPosted(sendCtx, r, job)
}
