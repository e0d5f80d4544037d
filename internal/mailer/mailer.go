// Package mailer delivers password-reset mail.
package mailer

import (
	"context"

	"cloudvault-backend/internal/logging"
)

// Sender delivers a plain-text message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender only logs messages. It stands in when SMTP is not configured.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the envelope at Info. The body can hold a live reset link, so it
// is only written at Debug.
func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.Info(ctx, "mail delivery disabled, message not sent", "to", to, "subject", subject)
	s.logger.Debug(ctx, "undelivered message body", "to", to, "body", body)
	return nil
}
