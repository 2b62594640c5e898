package validator

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/models"
)

// MissingFieldsMessage is the client-facing error for rejected events.
const MissingFieldsMessage = "Missing required fields: id, contact, issue_description"

var (
	// ErrMalformedBody means the body is not a JSON object.
	ErrMalformedBody = errors.New("invalid JSON payload")
	// ErrMissingFields means id, contact or issue_description is absent or empty.
	ErrMissingFields = errors.New("missing required fields")
)

// ParseTicketEvent decodes and checks a raw request body.
//
// Only presence is checked: id and issue_description must be non-empty
// (not null, "", 0 or false) and contact must be a JSON object. Everything
// else is passed through untouched for rendering.
func ParseTicketEvent(body []byte) (*models.TicketEvent, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrMissingFields
	}
	if !json.Valid(body) {
		return nil, ErrMalformedBody
	}

	// Keys are matched exactly; struct decoding would fold "ID" onto "id".
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, ErrMalformedBody
	}
	if fields == nil {
		return nil, ErrMissingFields
	}

	ev := models.TicketEvent{
		ID:               value(fields["id"]),
		IssueDescription: value(fields["issue_description"]),
		Status:           value(fields["status"]),
		CreatedAt:        value(fields["created_at"]),
	}

	var contact map[string]json.RawMessage
	if raw, ok := fields["contact"]; ok {
		// A contact with the wrong shape, e.g. "contact": "ana", counts as missing.
		if err := json.Unmarshal(raw, &contact); err != nil {
			return nil, ErrMissingFields
		}
	}
	if contact != nil {
		ev.Contact = &models.Contact{
			FullName: value(contact["full_name"]),
			Email:    value(contact["email"]),
		}
	}

	if !present(ev.ID) || ev.Contact == nil || !present(ev.IssueDescription) {
		return nil, ErrMissingFields
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, ErrMalformedBody
	}
	ev.Raw = compact.Bytes()

	return &ev, nil
}

// value decodes one raw JSON value, keeping numbers as json.Number.
// Absent or undecodable values yield nil.
func value(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// present reports whether a decoded JSON value counts as supplied.
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	default:
		return true
	}
}
