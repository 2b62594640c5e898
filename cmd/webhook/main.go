package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/config"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/httpserver"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/logging"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/notification"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/store"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/ticketlog"
)

// main boots the relay: config → logger → optional DB mirror → HTTP server.
func main() {
	if err := run(); err != nil {
		slog.Error("relay stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	// Load runtime config once (PORT, BREVO_API_KEY, SENDER_EMAIL, ADMIN_EMAIL, LOGS_DIR ...).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log)

	var opts []ticketlog.Option
	var db httpserver.Pinger

	// The Postgres mirror is optional; the daily file is always written.
	if cfg.Database.Enabled() {
		st, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.EnsureSchema(context.Background()); err != nil {
			return err
		}
		opts = append(opts, ticketlog.WithMirror(st), ticketlog.WithMirrorTimeout(cfg.Database.Timeout))
		db = st
	}

	writer := ticketlog.NewWriter(cfg.TicketLog.Dir, logger, opts...)

	sender, err := notification.NewSender(cfg.Email, logger)
	if err != nil {
		return err
	}
	dispatcher := notification.NewDispatcher(sender, cfg.Email, logger)

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: httpserver.NewRouter(logger, db, writer, dispatcher),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("tl-webhook listening",
			slog.String("addr", srv.Addr),
			slog.String("email_provider", sender.Name()),
			slog.String("logs_dir", cfg.TicketLog.Dir),
			slog.Bool("db_mirror", cfg.Database.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// In-flight requests run to completion within the shutdown window.
	return srv.Shutdown(shutdownCtx)
}
