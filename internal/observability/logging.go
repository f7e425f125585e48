package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

const LevelFatal = slog.Level(12)

type CoreLoggerParams struct {
	// CaptureLimits drops repeated Capture* messages. May be nil to let
	// every message through.
	CaptureLimits *CaptureRateLimiter
}

// CoreLogger is the logger for the SDK's own diagnostics.
//
// It wraps slog and adds Capture* methods for problems worth surfacing
// even when debug logging is off. Captured messages are deduplicated so
// that a hot failure path cannot flood the log.
//
// Nothing in the pipeline may panic through a CoreLogger call: telemetry
// delivery failures are reported here instead of to the host application.
type CoreLogger struct {
	*slog.Logger
	captureLimits *CaptureRateLimiter
}

func NewCoreLogger(logger *slog.Logger, params *CoreLoggerParams) *CoreLogger {
	if params == nil {
		params = &CoreLoggerParams{}
	}

	return &CoreLogger{
		Logger:        logger,
		captureLimits: params.CaptureLimits,
	}
}

// With returns a derived logger that includes the given attrs in each message.
func (cl *CoreLogger) With(args ...any) *CoreLogger {
	return &CoreLogger{
		Logger:        cl.Logger.With(args...),
		captureLimits: cl.captureLimits,
	}
}

// CaptureError logs an error that should be visible at any log level.
func (cl *CoreLogger) CaptureError(err error, args ...any) {
	if !cl.captureLimits.AllowCapture(err.Error()) {
		return
	}
	cl.Error(err.Error(), args...)
}

// CaptureWarn logs a warning that should be visible at any log level.
func (cl *CoreLogger) CaptureWarn(msg string, args ...any) {
	if !cl.captureLimits.AllowCapture(msg) {
		return
	}
	cl.Warn(msg, args...)
}

// CaptureFatal logs an error after which part of the SDK stops working.
func (cl *CoreLogger) CaptureFatal(err error, args ...any) {
	cl.Log(context.Background(), LevelFatal, err.Error(), args...)
}

// CapturePanic recovers a panic and logs it without re-raising.
//
// Use via defer at the top of independently scheduled units (send
// goroutines, sweep loops) whose failure must stay contained: the unit
// dies, its owner observes the completion and carries on.
func (cl *CoreLogger) CapturePanic(args ...any) {
	p := recover()
	if p == nil {
		return
	}

	err, ok := p.(error)
	if !ok {
		err = fmt.Errorf("%v", p)
	}
	cl.CaptureError(fmt.Errorf("panic: %v", err), args...)
}

// NewNoOpLogger returns a logger that discards all messages.
//
// Used for testing.
func NewNoOpLogger() *CoreLogger {
	return NewCoreLogger(
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
		nil,
	)
}
