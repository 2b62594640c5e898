package ticketlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/ticket-webhook-relay/internal/models"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

// splitLine separates the JSON payload from the capture timestamp.
func splitLine(t *testing.T, line string) (json.RawMessage, time.Time) {
	t.Helper()
	i := strings.LastIndex(line, " - ")
	require.Positive(t, i, "line has no timestamp separator: %q", line)

	payload := json.RawMessage(line[:i])
	require.True(t, json.Valid(payload), "payload is not JSON: %q", line[:i])

	ts, err := time.Parse(time.RFC3339Nano, line[i+3:])
	require.NoError(t, err)
	return payload, ts
}

func event(raw string) *models.TicketEvent {
	return &models.TicketEvent{Raw: json.RawMessage(raw)}
}

func TestFileName(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	assert.Equal(t, "ticket-05012024.txt", FileName(time.Date(2024, 5, 1, 10, 0, 0, 0, loc)))
	assert.Equal(t, "ticket-12312023.txt", FileName(time.Date(2023, 12, 31, 23, 59, 59, 0, loc)))
}

func TestRecord_SameDayAppendsInOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	w := NewWriter(dir, nil, WithClock(fixedClock(now)))

	first := `{"id":42,"contact":{"full_name":"Ana Gomez","email":"ana@example.com"},"issue_description":"Cannot log in","status":"open","created_at":"2024-05-01T10:00:00Z"}`
	second := `{"id":43,"contact":{"full_name":"Bo","email":"bo@example.com"},"issue_description":"Printer on fire"}`

	w.Record(context.Background(), event(first))
	w.Record(context.Background(), event(second))

	lines := readLines(t, filepath.Join(dir, "ticket-05012024.txt"))
	require.Len(t, lines, 2)

	p1, ts1 := splitLine(t, lines[0])
	p2, _ := splitLine(t, lines[1])
	assert.Equal(t, first, string(p1))
	assert.Equal(t, second, string(p2))
	assert.True(t, ts1.Equal(now))
	assert.True(t, strings.HasSuffix(lines[0], "Z"), "timestamp should be UTC: %q", lines[0])
}

func TestRecord_UsesDateAtAppendTime(t *testing.T) {
	dir := t.TempDir()
	beforeMidnight := time.Date(2024, 5, 1, 23, 59, 59, 999e6, time.Local)
	afterMidnight := beforeMidnight.Add(2 * time.Millisecond)

	current := beforeMidnight
	w := NewWriter(dir, nil, WithClock(func() time.Time { return current }))

	w.Record(context.Background(), event(`{"id":1}`))
	// The request started before midnight but the append happens after it.
	current = afterMidnight
	w.Record(context.Background(), event(`{"id":2}`))

	assert.Len(t, readLines(t, filepath.Join(dir, "ticket-05012024.txt")), 1)
	lines := readLines(t, filepath.Join(dir, "ticket-05022024.txt"))
	require.Len(t, lines, 1)
	p, _ := splitLine(t, lines[0])
	assert.Equal(t, `{"id":2}`, string(p))
}

func TestRecord_CompactsMultilinePayload(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	w := NewWriter(dir, nil, WithClock(fixedClock(now)))

	w.Record(context.Background(), event("{\n  \"id\": 7\n}"))

	lines := readLines(t, filepath.Join(dir, FileName(now)))
	require.Len(t, lines, 1)
	p, _ := splitLine(t, lines[0])
	assert.Equal(t, `{"id":7}`, string(p))
}

func TestRecord_FailureIsSwallowedAndLogged(t *testing.T) {
	// A regular file where the directory should be makes MkdirAll fail,
	// regardless of the user the tests run as.
	blocker := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	w := NewWriter(filepath.Join(blocker, "inner"), logger)

	assert.NotPanics(t, func() {
		w.Record(context.Background(), event(`{"id":1}`))
	})
	assert.Contains(t, buf.String(), "ticket log write failed")
	assert.Contains(t, buf.String(), "create logs dir")
}

func TestRecord_InvalidPayloadIsSwallowed(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(t.TempDir(), slog.New(slog.NewJSONHandler(&buf, nil)))

	w.Record(context.Background(), event(`{"id":`))
	w.Record(context.Background(), nil)

	assert.Equal(t, 2, strings.Count(buf.String(), "ticket log write failed"))
}

type recordingMirror struct {
	mu      sync.Mutex
	recs    []models.LogRecord
	ctxErrs []error
	err     error
	block   bool
}

func (m *recordingMirror) InsertLogRecord(ctx context.Context, rec models.LogRecord) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

func TestRecord_Mirrors(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ok := &recordingMirror{}
	failing := &recordingMirror{err: errors.New("connection refused")}
	w := NewWriter(dir, logger, WithClock(fixedClock(now)), WithMirror(failing), WithMirror(ok))

	w.Record(context.Background(), event(`{"id":5}`))

	require.Len(t, ok.recs, 1)
	assert.Equal(t, `{"id":5}`, string(ok.recs[0].Payload))
	assert.True(t, ok.recs[0].CapturedAt.Equal(now))
	assert.NotEqual(t, uuid.Nil, ok.recs[0].ID)
	assert.Len(t, failing.recs, 1)
	assert.Contains(t, buf.String(), "ticket log mirror failed")
	assert.Len(t, readLines(t, filepath.Join(dir, FileName(now))), 1)
}

func TestRecord_MirrorIgnoresCallerCancellation(t *testing.T) {
	m := &recordingMirror{}
	w := NewWriter(t.TempDir(), slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), WithMirror(m))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Record(ctx, event(`{"id":1}`))

	require.Len(t, m.ctxErrs, 1)
	assert.NoError(t, m.ctxErrs[0])
}

func TestRecord_MirrorTimeout(t *testing.T) {
	var buf bytes.Buffer
	m := &recordingMirror{block: true}
	w := NewWriter(t.TempDir(), slog.New(slog.NewJSONHandler(&buf, nil)),
		WithMirror(m), WithMirrorTimeout(20*time.Millisecond))

	start := time.Now()
	w.Record(context.Background(), event(`{"id":1}`))

	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, buf.String(), "ticket log mirror failed")
	assert.Contains(t, buf.String(), "deadline exceeded")
}

func TestRecord_MirrorSkippedWhenFileFails(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	m := &recordingMirror{}
	w := NewWriter(filepath.Join(blocker, "inner"), slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), WithMirror(m))
	w.Record(context.Background(), event(`{"id":1}`))

	assert.Empty(t, m.recs)
}

func TestRecord_ConcurrentAppends(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	w := NewWriter(dir, nil, WithClock(fixedClock(now)))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, _ := json.Marshal(map[string]any{"id": i + 1, "issue_description": strings.Repeat("x", 200)})
			w.Record(context.Background(), event(string(raw)))
		}(i)
	}
	wg.Wait()

	lines := readLines(t, filepath.Join(dir, FileName(now)))
	require.Len(t, lines, n)
	for _, l := range lines {
		splitLine(t, l)
	}
}
