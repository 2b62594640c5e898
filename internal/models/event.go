package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TicketEvent is the POST /api/webhook/ticket-created payload sent by the ticket API.
// Values are kept as decoded so they can be echoed and rendered exactly as supplied;
// the ticket API owns their types and allowed values.
type TicketEvent struct {
	ID               any      `json:"id"`
	Contact          *Contact `json:"contact"`
	IssueDescription any      `json:"issue_description"`
	Status           any      `json:"status,omitempty"`
	CreatedAt        any      `json:"created_at,omitempty"`

	// Raw is the request body as received, compacted to a single line.
	Raw json.RawMessage `json:"-"`
}

// Contact is the ticket requester. Opaque beyond rendering.
type Contact struct {
	FullName any `json:"full_name"`
	Email    any `json:"email"`
}

// LogRecord is one captured event: the raw payload plus the moment it was appended.
type LogRecord struct {
	ID         uuid.UUID
	Payload    json.RawMessage
	CapturedAt time.Time
}

// DispatchResult is the outcome of one notification attempt.
type DispatchResult struct {
	Sent  bool
	Error string
}

// WebhookResponse is returned by POST /api/webhook/ticket-created.
// EmailSent is a pointer so a failed dispatch still renders "email_sent": false,
// while validation failures omit it.
type WebhookResponse struct {
	Success   bool   `json:"success"`
	TicketID  any    `json:"ticket_id,omitempty"`
	EmailSent *bool  `json:"email_sent,omitempty"`
	Error     string `json:"error,omitempty"`
}
