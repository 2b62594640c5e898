package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/config"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/logging"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/models"
)

const subjectPreviewRunes = 50

// html/template escapes every interpolated value.
var bodyTemplate = template.Must(template.New("ticket").Parse(`
<h2>New Support Ticket Created</h2>
<table style="border-collapse: collapse; width: 100%;">
  <tr><td style="padding: 8px; font-weight: bold;">Ticket ID</td><td style="padding: 8px;">#{{.ID}}</td></tr>
  <tr><td style="padding: 8px; font-weight: bold;">Name</td><td style="padding: 8px;">{{.FullName}}</td></tr>
  <tr><td style="padding: 8px; font-weight: bold;">Email</td><td style="padding: 8px;">{{.Email}}</td></tr>
  <tr><td style="padding: 8px; font-weight: bold;">Issue</td><td style="padding: 8px;">{{.Issue}}</td></tr>
  <tr><td style="padding: 8px; font-weight: bold;">Status</td><td style="padding: 8px;">{{.Status}}</td></tr>
  <tr><td style="padding: 8px; font-weight: bold;">Created</td><td style="padding: 8px;">{{.CreatedAt}}</td></tr>
</table>
`))

type bodyFields struct {
	ID        string
	FullName  string
	Email     string
	Issue     string
	Status    string
	CreatedAt string
}

// Dispatcher turns a ticket event into one transactional email.
type Dispatcher struct {
	sender  Sender
	from    Address
	to      []Address
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher binds sender to the fixed sender/recipient identities in cfg.
func NewDispatcher(sender Sender, cfg config.EmailConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		sender:  sender,
		from:    Address{Name: cfg.SenderName, Email: cfg.SenderEmail},
		to:      []Address{{Email: cfg.AdminEmail}},
		timeout: cfg.Timeout,
		logger:  logger,
	}
}

// NewSender builds the provider client selected by cfg.Provider.
func NewSender(cfg config.EmailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Provider {
	case config.ProviderBrevo:
		return NewBrevoClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout), nil
	case config.ProviderLog:
		return NewLogSender(logger), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}

// Send makes exactly one delivery attempt and never returns an error: failures
// are logged and reported through the result.
//
// The attempt is detached from ctx cancellation (a disconnecting caller does not
// abort it) but is bounded by the configured timeout.
func (d *Dispatcher) Send(ctx context.Context, ev *models.TicketEvent) models.DispatchResult {
	logger := logging.FromContext(ctx, d.logger)

	email, err := d.Compose(ev)
	if err != nil {
		logger.Error("email dispatch failed", slog.String("error", err.Error()))
		return models.DispatchResult{Error: err.Error()}
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	start := time.Now()
	err = d.attempt(sendCtx, email)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || sendCtx.Err() != nil) {
		err = fmt.Errorf("email provider did not respond within %s: %w", d.timeout, err)
	}
	if err != nil {
		logger.Error("email dispatch failed",
			slog.String("provider", d.sender.Name()),
			slog.Any("ticket_id", ev.ID),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return models.DispatchResult{Error: err.Error()}
	}

	logger.Info("email dispatched",
		slog.String("provider", d.sender.Name()),
		slog.Any("ticket_id", ev.ID),
		slog.Duration("elapsed", time.Since(start)),
	)
	return models.DispatchResult{Sent: true}
}

// attempt calls the sender once, converting a panic into an error.
func (d *Dispatcher) attempt(ctx context.Context, email Email) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s sender panicked: %v", d.sender.Name(), r)
		}
	}()
	return d.sender.Send(ctx, email)
}

// Compose renders the subject and HTML body for ev.
func (d *Dispatcher) Compose(ev *models.TicketEvent) (Email, error) {
	if ev == nil {
		return Email{}, errors.New("nil ticket event")
	}

	fields := bodyFields{
		ID:        display(ev.ID),
		Issue:     display(ev.IssueDescription),
		Status:    display(ev.Status),
		CreatedAt: display(ev.CreatedAt),
	}
	if ev.Contact != nil {
		fields.FullName = display(ev.Contact.FullName)
		fields.Email = display(ev.Contact.Email)
	}

	var body bytes.Buffer
	if err := bodyTemplate.Execute(&body, fields); err != nil {
		return Email{}, fmt.Errorf("render email body: %w", err)
	}

	return Email{
		Subject:     Subject(fields.ID, fields.Issue),
		HTMLContent: body.String(),
		Sender:      d.from,
		To:          d.to,
	}, nil
}

// Subject combines the ticket id with the first 50 characters of the issue.
func Subject(id, issue string) string {
	return fmt.Sprintf("New Ticket #%s — %s", id, truncate(issue, subjectPreviewRunes))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// display renders a decoded JSON value as plain text. Missing values render empty.
func display(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return fmt.Sprint(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
