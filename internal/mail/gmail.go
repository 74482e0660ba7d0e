package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailProvider sends emails through the Gmail API as the authenticated
// account.
type GmailProvider struct {
	service *gmail.Service
	logger  *slog.Logger
}

// NewGmailProvider wraps an existing Gmail service
func NewGmailProvider(service *gmail.Service, logger *slog.Logger) *GmailProvider {
	return &GmailProvider{service: service, logger: logger}
}

// NewGmailProviderFromCredentials builds the Gmail service from a
// credentials JSON document.
func NewGmailProviderFromCredentials(ctx context.Context, credentialsJSON []byte, logger *slog.Logger) (*GmailProvider, error) {
	svc, err := gmail.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(gmail.GmailSendScope))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return NewGmailProvider(svc, logger), nil
}

// buildMIME assembles the raw RFC 5322 message
func buildMIME(to, subject, htmlBody string) string {
	var msg strings.Builder
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "To: %s\r\n", sanitizeHeader(to))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", sanitizeHeader(subject)))
	msg.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	msg.WriteString(htmlBody)
	return msg.String()
}

func (g *GmailProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	raw := base64.URLEncoding.EncodeToString([]byte(buildMIME(to, subject, htmlBody)))

	start := time.Now()
	_, err := g.service.Users.Messages.Send("me", &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		g.logger.Warn("Gmail API send failed",
			"to", to,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return fmt.Errorf("gmail: %w", err)
	}

	g.logger.Info("Gmail API request completed",
		"to", to,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
