// Package observabilitytest provides test helpers for the observability package.
package observabilitytest

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/outposthq/outpost/core/internal/observability"
)

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t *testing.T) *observability.CoreLogger {
	return observability.NewCoreLogger(
		slog.New(slog.NewTextHandler(&testLogWriter{t}, nil)),
		nil,
	)
}

// NewRecordingTestLogger returns a logger whose output can be inspected
// with GetLogs.
func NewRecordingTestLogger() (*observability.CoreLogger, *LogRecorder) {
	recorder := &LogRecorder{}
	logger := observability.NewCoreLogger(
		slog.New(slog.NewTextHandler(recorder, nil)),
		nil,
	)
	return logger, recorder
}

// LogRecorder accumulates log output for assertions.
type LogRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *LogRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// GetLogs returns everything logged so far.
func (r *LogRecorder) GetLogs() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
