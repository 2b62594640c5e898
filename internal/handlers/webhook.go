package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/logging"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/models"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/validator"
)

// MaxBodyBytes caps the accepted webhook payload.
const MaxBodyBytes = 1 << 20

// Recorder captures an accepted event best-effort. It must not fail the request.
type Recorder interface {
	Record(ctx context.Context, ev *models.TicketEvent)
}

// Notifier attempts one notification for an accepted event.
type Notifier interface {
	Send(ctx context.Context, ev *models.TicketEvent) models.DispatchResult
}

// RegisterWebhookRoutes registers the relay endpoint.
//
// POST /api/webhook/ticket-created
// - 400 when id, contact or issue_description is missing (nothing logged, nothing sent)
// - the event is logged before the email is attempted; logging never changes the response
// - 200 when the email was accepted by the provider, 500 otherwise
func RegisterWebhookRoutes(r gin.IRoutes, rec Recorder, n Notifier) {
	r.POST("/api/webhook/ticket-created", func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := logging.FromContext(ctx, nil)

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)
		body, err := c.GetRawData()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, models.WebhookResponse{Error: "payload too large"})
				return
			}
			c.JSON(http.StatusBadRequest, models.WebhookResponse{Error: validator.ErrMalformedBody.Error()})
			return
		}

		ev, err := validator.ParseTicketEvent(body)
		if err != nil {
			msg := validator.MissingFieldsMessage
			if errors.Is(err, validator.ErrMalformedBody) {
				msg = err.Error()
			}
			logger.Warn("ticket event rejected", slog.String("reason", err.Error()))
			c.JSON(http.StatusBadRequest, models.WebhookResponse{Error: msg})
			return
		}

		// Best-effort: outcome is diagnostics only.
		rec.Record(ctx, ev)

		res := n.Send(ctx, ev)
		sent := res.Sent
		if !sent {
			if res.Error == "" {
				res.Error = "email not sent"
			}
			c.JSON(http.StatusInternalServerError, models.WebhookResponse{
				TicketID:  ev.ID,
				EmailSent: &sent,
				Error:     res.Error,
			})
			return
		}

		c.JSON(http.StatusOK, models.WebhookResponse{
			Success:   true,
			TicketID:  ev.ID,
			EmailSent: &sent,
		})
	})
}
