package mail

import (
	"context"
	"log/slog"
)

// LogProvider logs messages instead of sending them. Used in development.
type LogProvider struct {
	logger *slog.Logger
}

// NewLogProvider creates a logging provider
func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	p.logger.InfoContext(ctx, "email (not sent)",
		"to", to,
		"subject", subject,
		"body_length", len(htmlBody))
	return nil
}
