package protocol

import "time"

// Item is one unit of telemetry awaiting delivery.
//
// Items are immutable once created. The pipeline owns an item from the
// moment it is buffered until it is serialized into an envelope or
// discarded.
type Item interface {
	// Category is the item's kind for buffering and rate limiting.
	Category() Category

	// ItemCount is how many telemetry records the item represents.
	//
	// It is 1 for all items except log batches, which count each
	// wrapped record. Queue capacity and discard accounting use this,
	// not the number of envelope lines.
	ItemCount() int

	// EnvelopeType is the value of the "type" field on the item's
	// envelope line.
	EnvelopeType() string

	// Payload is the item body for the envelope line. It must only
	// contain values representable in JSON extended with NaN and
	// ±Infinity.
	Payload() any
}

// Event is a captured error event.
type Event struct {
	EventID     string
	Timestamp   time.Time
	Level       string
	Message     string
	Release     string
	Environment string
	Tags        map[string]string
	Extra       map[string]any
}

func (e *Event) Category() Category   { return CategoryError }
func (e *Event) ItemCount() int       { return 1 }
func (e *Event) EnvelopeType() string { return "event" }

func (e *Event) Payload() any {
	payload := map[string]any{
		"event_id":  e.EventID,
		"timestamp": formatTime(e.Timestamp),
		"level":     e.Level,
		"message":   e.Message,
	}
	if e.Release != "" {
		payload["release"] = e.Release
	}
	if e.Environment != "" {
		payload["environment"] = e.Environment
	}
	if len(e.Tags) > 0 {
		payload["tags"] = e.Tags
	}
	if len(e.Extra) > 0 {
		payload["extra"] = e.Extra
	}
	return payload
}

// CheckInStatus is the state reported by a cron monitor check-in.
type CheckInStatus string

const (
	CheckInStatusInProgress CheckInStatus = "in_progress"
	CheckInStatusOK         CheckInStatus = "ok"
	CheckInStatusError      CheckInStatus = "error"
)

// CheckIn is a cron monitor heartbeat.
type CheckIn struct {
	CheckInID   string
	MonitorSlug string
	Status      CheckInStatus

	// Duration is how long the monitored job ran. Zero means not
	// reported.
	Duration time.Duration
}

func (c *CheckIn) Category() Category   { return CategoryCheckIn }
func (c *CheckIn) ItemCount() int       { return 1 }
func (c *CheckIn) EnvelopeType() string { return "check_in" }

func (c *CheckIn) Payload() any {
	payload := map[string]any{
		"check_in_id":  c.CheckInID,
		"monitor_slug": c.MonitorSlug,
		"status":       string(c.Status),
	}
	if c.Duration > 0 {
		payload["duration"] = c.Duration.Seconds()
	}
	return payload
}

// Transaction is a performance trace for one logical operation.
type Transaction struct {
	EventID   string
	Name      string
	Op        string
	TraceID   string
	SpanID    string
	StartTime time.Time
	EndTime   time.Time
	Tags      map[string]string
	Data      map[string]any
}

func (t *Transaction) Category() Category   { return CategoryTransaction }
func (t *Transaction) ItemCount() int       { return 1 }
func (t *Transaction) EnvelopeType() string { return "transaction" }

func (t *Transaction) Payload() any {
	payload := map[string]any{
		"event_id":        t.EventID,
		"transaction":     t.Name,
		"start_timestamp": formatTime(t.StartTime),
		"timestamp":       formatTime(t.EndTime),
		"contexts": map[string]any{
			"trace": map[string]any{
				"trace_id": t.TraceID,
				"span_id":  t.SpanID,
				"op":       t.Op,
			},
		},
	}
	if len(t.Tags) > 0 {
		payload["tags"] = t.Tags
	}
	if len(t.Data) > 0 {
		payload["data"] = t.Data
	}
	return payload
}

// LogRecord is a single structured log line.
type LogRecord struct {
	Timestamp  time.Time
	TraceID    string
	Level      string
	Body       string
	Attributes map[string]any
}

func (l *LogRecord) Category() Category   { return CategoryLog }
func (l *LogRecord) ItemCount() int       { return 1 }
func (l *LogRecord) EnvelopeType() string { return "log" }

func (l *LogRecord) Payload() any {
	payload := map[string]any{
		"timestamp": formatTime(l.Timestamp),
		"level":     l.Level,
		"body":      l.Body,
	}
	if l.TraceID != "" {
		payload["trace_id"] = l.TraceID
	}
	if len(l.Attributes) > 0 {
		payload["attributes"] = l.Attributes
	}
	return payload
}

// LogBatch coalesces log records polled in one scheduler step into a
// single envelope line.
type LogBatch struct {
	Records []*LogRecord
}

func (b *LogBatch) Category() Category   { return CategoryLog }
func (b *LogBatch) ItemCount() int       { return len(b.Records) }
func (b *LogBatch) EnvelopeType() string { return "log" }

func (b *LogBatch) Payload() any {
	items := make([]any, 0, len(b.Records))
	for _, record := range b.Records {
		items = append(items, record.Payload())
	}
	return map[string]any{"items": items}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
