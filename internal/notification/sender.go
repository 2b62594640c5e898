package notification

import (
	"context"
	"log/slog"
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Email is a fully composed transactional message.
type Email struct {
	Subject     string
	HTMLContent string
	Sender      Address
	To          []Address
}

// Sender is the transactional email capability the relay depends on.
// Implementations make exactly one delivery attempt per call.
type Sender interface {
	Send(ctx context.Context, email Email) error
	Name() string
}

// LogSender writes emails to the diagnostic stream instead of delivering them.
// Intended for local development.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-based sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (l *LogSender) Name() string {
	return "log"
}

func (l *LogSender) Send(ctx context.Context, email Email) error {
	to := make([]string, 0, len(email.To))
	for _, a := range email.To {
		to = append(to, a.Email)
	}
	l.logger.InfoContext(ctx, "email not delivered (log provider)",
		slog.String("subject", email.Subject),
		slog.String("sender", email.Sender.Email),
		slog.Any("to", to),
		slog.Int("html_bytes", len(email.HTMLContent)),
	)
	return nil
}
