// Package outpost is the public API of the Outpost telemetry SDK.
//
// A Client buffers errors, check-ins, transactions and logs, batches
// them into envelopes and delivers them to the DSN's ingestion endpoint
// in the background. Capture calls never block and never panic into the
// application.
package outpost

import (
	"log/slog"
	"os"
	"time"

	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/settings"
	"github.com/outposthq/outpost/core/internal/telemetry"
	"github.com/outposthq/outpost/core/internal/transport"
)

// Params configures a Client. See settings.Params for the defaults.
type Params = settings.Params

// Event, CheckIn, Transaction and LogRecord are the telemetry kinds a
// Client accepts.
type (
	Event       = protocol.Event
	CheckIn     = protocol.CheckIn
	Transaction = protocol.Transaction
	LogRecord   = protocol.LogRecord
)

const (
	CheckInStatusInProgress = protocol.CheckInStatusInProgress
	CheckInStatusOK         = protocol.CheckInStatusOK
	CheckInStatusError      = protocol.CheckInStatusError
)

// Client is a handle to the telemetry pipeline.
//
// All methods are safe for concurrent use.
type Client struct {
	settings *settings.Settings
	logger   *observability.CoreLogger
	printer  *observability.Printer
	pipeline *telemetry.Pipeline
	pool     *transport.SenderPool
}

// New builds and starts a Client.
func New(params Params) (*Client, error) {
	s, err := settings.New(params)
	if err != nil {
		return nil, err
	}

	logger := newLogger(s)
	components := injectComponents(s, logger)
	components.Pipeline.Start()

	return &Client{
		settings: s,
		logger:   logger,
		printer:  components.Printer,
		pipeline: components.Pipeline,
		pool:     components.Pool,
	}, nil
}

func newLogger(s *settings.Settings) *observability.CoreLogger {
	return observability.NewCoreLogger(
		slog.New(slog.NewTextHandler(
			os.Stderr,
			&slog.HandlerOptions{Level: s.LogLevel()},
		)),
		&observability.CoreLoggerParams{
			CaptureLimits: observability.NewCaptureRateLimiter(),
		},
	)
}

// CaptureEvent submits an error event and returns its ID.
//
// Missing fields are defaulted: a fresh event ID, the current time and
// the "error" level.
func (c *Client) CaptureEvent(event *Event) string {
	if event == nil {
		return ""
	}

	captured := *event
	if captured.EventID == "" {
		captured.EventID = protocol.NewEventID()
	}
	if captured.Timestamp.IsZero() {
		captured.Timestamp = time.Now()
	}
	if captured.Level == "" {
		captured.Level = "error"
	}

	c.pipeline.Add(&captured)
	return captured.EventID
}

// CaptureCheckIn submits a cron monitor check-in and returns its ID.
//
// Pass the returned ID in a follow-up check-in to close out an
// in-progress job.
func (c *Client) CaptureCheckIn(checkIn *CheckIn) string {
	if checkIn == nil || checkIn.MonitorSlug == "" {
		return ""
	}

	captured := *checkIn
	if captured.CheckInID == "" {
		captured.CheckInID = protocol.NewEventID()
	}

	c.pipeline.Add(&captured)
	return captured.CheckInID
}

// CaptureTransaction submits a performance trace and returns its ID.
func (c *Client) CaptureTransaction(transaction *Transaction) string {
	if transaction == nil {
		return ""
	}

	captured := *transaction
	if captured.EventID == "" {
		captured.EventID = protocol.NewEventID()
	}
	if captured.EndTime.IsZero() {
		captured.EndTime = time.Now()
	}
	if captured.StartTime.IsZero() {
		captured.StartTime = captured.EndTime
	}

	c.pipeline.Add(&captured)
	return captured.EventID
}

// CaptureLog submits one structured log record.
//
// Records are buffered and delivered in batches; call Flush to force
// them out early.
func (c *Client) CaptureLog(record *LogRecord) {
	if record == nil {
		return
	}

	captured := *record
	if captured.Timestamp.IsZero() {
		captured.Timestamp = time.Now()
	}
	if captured.Level == "" {
		captured.Level = "info"
	}

	c.pipeline.Add(&captured)
}

// EnqueueNow sends an item immediately, skipping the buffers and the
// scheduling cycle.
//
// Meant for telemetry that cannot wait for a batch, such as a check-in
// at process start. The item is dropped if the immediate senders are
// saturated.
func (c *Client) EnqueueNow(item protocol.Item) {
	c.pool.EnqueueNow(item)
}

// Flush delivers everything buffered and queued.
//
// Blocks until the backlog is sent, waiting a bounded time for an
// already running send. Returns false if that wait timed out.
func (c *Client) Flush() bool {
	return c.pipeline.Flush()
}

// Messages returns user-facing notices accumulated since the last
// call, such as rate limiting announcements.
func (c *Client) Messages() []string {
	return c.printer.Read()
}

// Close flushes pending telemetry and shuts the client down.
//
// Items captured after Close are dropped. Safe to call more than once.
func (c *Client) Close() {
	c.pipeline.Close()
	c.pool.Close()
}
