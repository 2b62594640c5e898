package ticketlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/logging"
	"github.com/PratikDhanave/ticket-webhook-relay/internal/models"
)

const (
	filePrefix      = "ticket-"
	fileSuffix      = ".txt"
	fileDateLayout  = "01022006"
	timestampLayout = "2006-01-02T15:04:05.000Z07:00"

	defaultMirrorTimeout = 5 * time.Second
)

// Mirror receives a copy of every record after it has been appended to the daily file.
type Mirror interface {
	InsertLogRecord(ctx context.Context, rec models.LogRecord) error
}

// Writer appends one line per accepted event to logs/ticket-MMDDYYYY.txt.
// Safe for concurrent use: each record is a single O_APPEND write.
type Writer struct {
	dir           string
	now           func() time.Time
	logger        *slog.Logger
	mirrors       []Mirror
	mirrorTimeout time.Duration
}

// Option configures a Writer.
type Option func(*Writer)

// WithClock overrides time.Now, used to pick the file and the capture timestamp.
func WithClock(now func() time.Time) Option {
	return func(w *Writer) { w.now = now }
}

// WithMirror adds a secondary destination for records.
func WithMirror(m Mirror) Option {
	return func(w *Writer) { w.mirrors = append(w.mirrors, m) }
}

// WithMirrorTimeout bounds each mirror insert.
func WithMirrorTimeout(d time.Duration) Option {
	return func(w *Writer) { w.mirrorTimeout = d }
}

// NewWriter creates a Writer rooted at dir. The directory is created lazily.
func NewWriter(dir string, logger *slog.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{dir: dir, now: time.Now, logger: logger, mirrorTimeout: defaultMirrorTimeout}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileName returns the daily file name for t, using t's own location.
func FileName(t time.Time) string {
	return filePrefix + t.Format(fileDateLayout) + fileSuffix
}

// Record captures ev best-effort. Failures (including panics) are logged and
// swallowed so they never influence the caller.
func (w *Writer) Record(ctx context.Context, ev *models.TicketEvent) {
	logger := logging.FromContext(ctx, w.logger)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("ticket log write panicked", slog.Any("panic", r))
		}
	}()

	if ev == nil {
		logger.Error("ticket log write failed", slog.String("error", "nil event"))
		return
	}

	rec, err := w.Append(ev.Raw)
	if err != nil {
		logger.Error("ticket log write failed", slog.String("error", err.Error()))
		return
	}
	logger.Debug("ticket logged",
		slog.String("file", FileName(rec.CapturedAt)),
		slog.String("record_id", rec.ID.String()),
	)

	if len(w.mirrors) == 0 {
		return
	}

	// A disconnecting caller must not abort the inserts.
	mirrorCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.mirrorTimeout)
	defer cancel()

	for _, m := range w.mirrors {
		if err := m.InsertLogRecord(mirrorCtx, rec); err != nil {
			logger.Error("ticket log mirror failed",
				slog.String("record_id", rec.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Append writes payload as one line followed by " - " and the capture timestamp.
// The clock is read immediately before the write, so a record always lands in the
// file for the date at the moment of appending.
func (w *Writer) Append(payload json.RawMessage) (models.LogRecord, error) {
	if len(payload) == 0 {
		return models.LogRecord{}, errors.New("empty payload")
	}

	var line bytes.Buffer
	if err := json.Compact(&line, payload); err != nil {
		return models.LogRecord{}, fmt.Errorf("serialize payload: %w", err)
	}
	compacted := append(json.RawMessage(nil), line.Bytes()...)

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return models.LogRecord{}, fmt.Errorf("create logs dir: %w", err)
	}

	now := w.now()
	path := filepath.Join(w.dir, FileName(now))

	line.WriteString(" - ")
	line.WriteString(now.UTC().Format(timestampLayout))
	line.WriteByte('\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return models.LogRecord{}, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.Write(line.Bytes()); err != nil {
		_ = f.Close()
		return models.LogRecord{}, fmt.Errorf("append %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return models.LogRecord{}, fmt.Errorf("close %s: %w", path, err)
	}

	return models.LogRecord{
		ID:         uuid.New(),
		Payload:    compacted,
		CapturedAt: now,
	}, nil
}
