// Package mail renders and sends new-job notification emails through a
// pluggable provider.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/forgo/jobboard/internal/model"
)

// ErrInvalidRecipient is returned for an empty or malformed address
var ErrInvalidRecipient = errors.New("invalid recipient")

// Provider delivers one HTML email. Implementations make a single attempt;
// retrying is the caller's decision.
type Provider interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender composes notification emails and hands them to a Provider
type Sender struct {
	provider Provider
	logger   *slog.Logger
}

// NewSender creates a sender over provider
func NewSender(provider Provider, logger *slog.Logger) *Sender {
	return &Sender{provider: provider, logger: logger}
}

// SendEmail sends a raw HTML message
func (s *Sender) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	to = sanitizeHeader(to)
	if to == "" || !strings.Contains(to, "@") {
		return ErrInvalidRecipient
	}
	return s.provider.Send(ctx, to, sanitizeHeader(subject), htmlBody)
}

// SendJobPosted renders the new-job message for r and sends it
func (s *Sender) SendJobPosted(ctx context.Context, r model.Recipient, job *model.Job) error {
	body, err := RenderJobPosted(r, job)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	s.logger.Info("Sending job notification",
		"to", r.Email,
		"job_id", job.ID)

	return s.SendEmail(ctx, r.Email, JobPostedSubject(job), body)
}

// sanitizeHeader drops control characters so header values cannot inject
// extra headers.
func sanitizeHeader(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
