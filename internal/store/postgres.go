package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/models"
)

// schemaSQL is embedded so the relay can self-bootstrap its mirror table.
//
//go:embed schema.sql
var schemaSQL string

// pool is the subset of *pgxpool.Pool the store needs.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore mirrors ticket log records into Postgres.
type PostgresStore struct {
	pool pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &PostgresStore{pool: p}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by the readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// InsertLogRecord stores one captured event. logged_on is the capture date in the
// server's local zone, matching the daily file the record was appended to.
// Re-inserting the same record id is a no-op.
func (p *PostgresStore) InsertLogRecord(ctx context.Context, rec models.LogRecord) error {
	if len(rec.Payload) == 0 || rec.CapturedAt.IsZero() {
		return errors.New("payload and captured_at required")
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO ticket_event_log(id, logged_on, payload, captured_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO NOTHING
	`, rec.ID, rec.CapturedAt.Format(time.DateOnly), string(rec.Payload), rec.CapturedAt.UTC())

	return err
}
