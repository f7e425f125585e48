package clientreport

import (
	"context"
	"sync"
	"time"

	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/waiting"
)

// DefaultReportInterval is how often accumulated discards are reported.
const DefaultReportInterval = 30 * time.Second

// Report is the client report envelope item.
type Report struct {
	Timestamp       time.Time
	DiscardedEvents []DiscardedEvent
}

func (r *Report) Category() protocol.Category { return protocol.CategoryDefault }
func (r *Report) ItemCount() int              { return 1 }
func (r *Report) EnvelopeType() string        { return "client_report" }

func (r *Report) Payload() any {
	discarded := make([]any, 0, len(r.DiscardedEvents))
	for _, event := range r.DiscardedEvents {
		discarded = append(discarded, map[string]any{
			"reason":   string(event.Reason),
			"category": string(event.Category),
			"quantity": event.Quantity,
		})
	}

	return map[string]any{
		"timestamp":        r.Timestamp.UTC().Format(time.RFC3339Nano),
		"discarded_events": discarded,
	}
}

type ReporterParams struct {
	Recorder *Recorder
	Logger   *observability.CoreLogger

	// Send submits one report item for delivery. It must not block
	// indefinitely. Failures are the sender's to log; a failed client
	// report is never itself accounted, so reporting cannot recurse.
	Send func(protocol.Item)

	// Interval is the time between reports. Defaults to
	// DefaultReportInterval.
	Interval waiting.Delay
}

// Reporter periodically drains a Recorder and submits a client report.
type Reporter struct {
	recorder *Recorder
	logger   *observability.CoreLogger
	send     func(protocol.Item)
	interval waiting.Delay

	wg sync.WaitGroup
}

func NewReporter(params ReporterParams) *Reporter {
	if params.Recorder == nil {
		panic("clientreport: nil Recorder")
	}
	if params.Logger == nil {
		panic("clientreport: nil Logger")
	}
	if params.Send == nil {
		panic("clientreport: nil Send")
	}
	if params.Interval == nil {
		params.Interval = waiting.NewDelay(DefaultReportInterval)
	}

	return &Reporter{
		recorder: params.Recorder,
		logger:   params.Logger,
		send:     params.Send,
		interval: params.Interval,
	}
}

// Start runs the report loop until the context is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.logger.CapturePanic("source", "client report loop")
		r.loop(ctx)
	}()
}

// Wait blocks until the report loop has exited.
func (r *Reporter) Wait() {
	r.wg.Wait()
}

// Flush immediately reports anything accumulated since the last tick.
//
// Called during shutdown after the loop has stopped.
func (r *Reporter) Flush() {
	r.reportPending()
}

func (r *Reporter) loop(ctx context.Context) {
	for {
		tick, cancel := r.interval.Wait()

		select {
		case <-ctx.Done():
			cancel()
			return
		case <-tick:
			r.reportPending()
		}
	}
}

func (r *Reporter) reportPending() {
	events := r.recorder.Snapshot()
	if len(events) == 0 {
		return
	}

	r.send(&Report{
		Timestamp:       time.Now(),
		DiscardedEvents: events,
	})
}
