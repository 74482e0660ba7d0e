package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgo/jobboard/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Mock Mailer
// ============================================================================

type mockMailer struct {
	mu        sync.Mutex
	delivered []string
	sendFunc  func(ctx context.Context, r model.Recipient, job *model.Job) error
}

func (m *mockMailer) SendJobPosted(ctx context.Context, r model.Recipient, job *model.Job) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, r, job); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.delivered = append(m.delivered, r.Email)
	m.mu.Unlock()
	return nil
}

func (m *mockMailer) Delivered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.delivered...)
}

func batch(jobID string, emails ...string) model.NotificationBatch {
	b := model.NotificationBatch{Job: model.Job{ID: jobID, Title: "t"}}
	for _, e := range emails {
		b.Recipients = append(b.Recipients, model.Recipient{UserID: "u-" + e, Email: e})
	}
	return b
}

// ============================================================================
// NotificationDispatcher
// ============================================================================

func TestDispatcher_DeliversToAllRecipients(t *testing.T) {
	t.Parallel()
	mailer := &mockMailer{}
	d := NewNotificationDispatcher(mailer, DispatcherConfig{Workers: 2, QueueSize: 4}, discardLogger())
	d.Start()

	require.True(t, d.Enqueue(batch("j1", "a@example.com", "b@example.com")))
	require.True(t, d.Enqueue(batch("j2", "c@example.com")))
	require.NoError(t, d.Stop(context.Background()))

	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com", "c@example.com"}, mailer.Delivered())
	assert.Equal(t, DispatcherStats{Sent: 3}, d.Stats())
}

func TestDispatcher_OneFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	mailer := &mockMailer{
		sendFunc: func(_ context.Context, r model.Recipient, _ *model.Job) error {
			if r.Email == "a@example.com" {
				return errors.New("mailbox unavailable")
			}
			return nil
		},
	}
	d := NewNotificationDispatcher(mailer, DispatcherConfig{Workers: 1, QueueSize: 1}, discardLogger())
	d.Start()

	require.True(t, d.Enqueue(batch("j1", "a@example.com", "b@example.com")))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, []string{"b@example.com"}, mailer.Delivered())
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestDispatcher_PanicInSendIsContained(t *testing.T) {
	t.Parallel()
	mailer := &mockMailer{
		sendFunc: func(_ context.Context, r model.Recipient, _ *model.Job) error {
			if r.Email == "a@example.com" {
				panic("template exploded")
			}
			return nil
		},
	}
	d := NewNotificationDispatcher(mailer, DispatcherConfig{Workers: 1}, discardLogger())
	d.Start()

	require.True(t, d.Enqueue(batch("j1", "a@example.com", "b@example.com")))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, []string{"b@example.com"}, mailer.Delivered())
	assert.Equal(t, int64(1), d.Stats().Failed)
}

func TestDispatcher_EnqueueNeverBlocks_DropsWhenFull(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	mailer := &mockMailer{
		sendFunc: func(ctx context.Context, _ model.Recipient, _ *model.Job) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return nil
		},
	}
	d := NewNotificationDispatcher(mailer, DispatcherConfig{Workers: 1, QueueSize: 1}, discardLogger())
	d.Start()

	require.True(t, d.Enqueue(batch("j1", "a@example.com")))
	<-started // worker is busy with j1
	require.True(t, d.Enqueue(batch("j2", "b@example.com")))

	done := make(chan bool, 1)
	go func() { done <- d.Enqueue(batch("j3", "c@example.com")) }()

	select {
	case ok := <-done:
		assert.False(t, ok, "expected the batch to be dropped")
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	close(release)
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int64(1), d.Stats().Dropped)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, mailer.Delivered())
}

func TestDispatcher_EnqueueAfterStop_Dropped(t *testing.T) {
	t.Parallel()
	d := NewNotificationDispatcher(&mockMailer{}, DispatcherConfig{}, discardLogger())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))

	assert.False(t, d.Enqueue(batch("j1", "a@example.com")))
	assert.Equal(t, int64(1), d.Stats().Dropped)
}

func TestDispatcher_EmptyBatch_Accepted(t *testing.T) {
	t.Parallel()
	d := NewNotificationDispatcher(&mockMailer{}, DispatcherConfig{}, discardLogger())

	assert.True(t, d.Enqueue(model.NotificationBatch{Job: model.Job{ID: "j1"}}))
	assert.Zero(t, d.Stats().Dropped)
}

func TestDispatcher_SendTimeoutApplied(t *testing.T) {
	t.Parallel()
	mailer := &mockMailer{
		sendFunc: func(ctx context.Context, _ model.Recipient, _ *model.Job) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	d := NewNotificationDispatcher(mailer, DispatcherConfig{Workers: 1, SendTimeout: 10 * time.Millisecond}, discardLogger())
	d.Start()

	require.True(t, d.Enqueue(batch("j1", "a@example.com", "b@example.com")))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, int64(2), d.Stats().Failed)
}

func TestDispatcher_BatchDeadline_SkipsRemaining(t *testing.T) {
	t.Parallel()
	mailer := &mockMailer{
		sendFunc: func(ctx context.Context, _ model.Recipient, _ *model.Job) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	d := NewNotificationDispatcher(mailer, DispatcherConfig{
		Workers:       1,
		SendTimeout:   time.Second,
		BatchDeadline: 20 * time.Millisecond,
	}, discardLogger())
	d.Start()

	require.True(t, d.Enqueue(batch("j1", "a@example.com", "b@example.com", "c@example.com")))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, int64(3), d.Stats().Failed)
	assert.Empty(t, mailer.Delivered())
}

func TestDispatcher_StopTwice(t *testing.T) {
	t.Parallel()
	d := NewNotificationDispatcher(&mockMailer{}, DispatcherConfig{}, discardLogger())
	d.Start()
	require.NoError(t, d.Stop(context.Background()))
	require.NoError(t, d.Stop(context.Background()))
}

// ============================================================================
// TokenCleanup
// ============================================================================

type mockPurger struct {
	purgeFunc func(ctx context.Context) (int, error)
}

func (m *mockPurger) PurgeExpired(ctx context.Context) (int, error) {
	return m.purgeFunc(ctx)
}

func TestTokenCleanup_InvalidSchedule(t *testing.T) {
	t.Parallel()
	_, err := NewTokenCleanup(&mockPurger{}, "not a schedule", discardLogger())
	require.Error(t, err)
}

func TestTokenCleanup_DefaultSchedule(t *testing.T) {
	t.Parallel()
	c, err := NewTokenCleanup(&mockPurger{}, "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultCleanupSchedule, c.schedule)
}

func TestTokenCleanup_RunOnce(t *testing.T) {
	t.Parallel()
	c, err := NewTokenCleanup(&mockPurger{
		purgeFunc: func(context.Context) (int, error) { return 3, nil },
	}, "@hourly", discardLogger())
	require.NoError(t, err)

	n, err := c.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestTokenCleanup_RunLogsErrors(t *testing.T) {
	t.Parallel()
	calls := 0
	c, err := NewTokenCleanup(&mockPurger{
		purgeFunc: func(context.Context) (int, error) {
			calls++
			return 0, errors.New("db down")
		},
	}, "@hourly", discardLogger())
	require.NoError(t, err)

	c.run()
	assert.Equal(t, 1, calls)
}

func TestTokenCleanup_StartStop(t *testing.T) {
	t.Parallel()
	c, err := NewTokenCleanup(&mockPurger{
		purgeFunc: func(context.Context) (int, error) { return 0, nil },
	}, "@every 1h", discardLogger())
	require.NoError(t, err)

	require.NoError(t, c.Start())
	require.NoError(t, c.Start())
	c.Stop()
	c.Stop()
}
