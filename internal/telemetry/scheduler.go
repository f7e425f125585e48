package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/outposthq/outpost/core/internal/clientreport"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/ratelimit"
	"github.com/outposthq/outpost/core/internal/settings"
	"github.com/outposthq/outpost/core/internal/version"
	"github.com/outposthq/outpost/core/internal/waiting"
)

// DefaultInFlightWait is the longest Flush waits for the active send
// before draining the queue synchronously.
const DefaultInFlightWait = 5 * time.Second

// EnvelopeSender performs one envelope exchange with the server.
//
// Implementations own retries, rate limit bookkeeping and the
// accounting of items they fail to deliver. A returned error is
// informational; the caller only logs it.
type EnvelopeSender interface {
	Send(ctx context.Context, envelope *protocol.Envelope) error
}

// NewEnvelope bundles items for submission under the configured DSN.
func NewEnvelope(
	s *settings.Settings,
	items []protocol.Item,
) *protocol.Envelope {
	return &protocol.Envelope{
		DSN: s.DSN().String(),
		SDK: protocol.SDKInfo{
			Name:    version.SDKName,
			Version: version.Version,
		},
		SentAt: time.Now(),
		Items:  items,
	}
}

type SchedulerParams struct {
	Settings   *settings.Settings
	Logger     *observability.CoreLogger
	RateLimits *ratelimit.Map
	Discards   *clientreport.Recorder
	Sender     EnvelopeSender

	// InFlightWait bounds how long Flush waits for the active send.
	// Defaults to DefaultInFlightWait.
	InFlightWait waiting.Delay
}

// Scheduler multiplexes the category buffers onto one outbound channel.
//
// A weighted cycle over the enabled categories decides which buffer to
// poll next, so that high-priority telemetry gets proportionally more
// service without starving the rest. Built envelopes pass through a
// bounded send queue, measured in telemetry records, from which a
// single send unit at a time performs the exchange.
//
// When the queue is at capacity the cycle stops polling entirely and
// items accumulate in their buffers, which apply their own overflow
// policy. That is the backpressure path: the bound holds no matter how
// far the server falls behind.
type Scheduler struct {
	settings     *settings.Settings
	logger       *observability.CoreLogger
	rateLimits   *ratelimit.Map
	discards     *clientreport.Recorder
	sender       EnvelopeSender
	inFlightWait waiting.Delay

	categories []protocol.Category
	buffers    map[protocol.Category]*Buffer
	cycle      []protocol.Category

	// loopMu serializes Signal and Flush; the cycle position only
	// moves under it.
	loopMu   sync.Mutex
	position int

	// mu guards the queue and in-flight state shared with send units.
	mu            sync.Mutex
	queue         sendQueue
	activeSend    bool
	inFlightItems int
	inFlightDone  chan struct{}
	draining      bool
}

func NewScheduler(params SchedulerParams) *Scheduler {
	if params.Settings == nil {
		panic("telemetry: nil Settings")
	}
	if params.Logger == nil {
		panic("telemetry: nil Logger")
	}
	if params.RateLimits == nil {
		panic("telemetry: nil RateLimits")
	}
	if params.Discards == nil {
		panic("telemetry: nil Discards")
	}
	if params.Sender == nil {
		panic("telemetry: nil Sender")
	}
	if params.InFlightWait == nil {
		params.InFlightWait = waiting.NewDelay(DefaultInFlightWait)
	}

	configs := EnabledConfigs(params.Settings)

	scheduler := &Scheduler{
		settings:     params.Settings,
		logger:       params.Logger,
		rateLimits:   params.RateLimits,
		discards:     params.Discards,
		sender:       params.Sender,
		inFlightWait: params.InFlightWait,
		buffers:      make(map[protocol.Category]*Buffer),
		cycle: BuildCycle(
			configs, params.Settings.PriorityWeights()),
	}

	for _, config := range configs {
		scheduler.categories = append(scheduler.categories, config.Category)
		scheduler.buffers[config.Category] = NewBuffer(config)
	}

	return scheduler
}

// Buffer returns the buffer for a category, if it is enabled.
func (s *Scheduler) Buffer(category protocol.Category) (*Buffer, bool) {
	buffer, ok := s.buffers[category]
	return buffer, ok
}

// QueuedItems returns the records pending in the queue and in flight.
func (s *Scheduler) QueuedItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.itemCount() + s.inFlightItems
}

// Signal runs up to one full cycle of scheduling steps.
//
// Called after every add. Work per call is bounded: at most len(cycle)
// steps, each polling at most one batch. Stops early, before polling
// anything further, once the send queue has no free capacity.
func (s *Scheduler) Signal() {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	for range s.cycle {
		if s.freeCapacity() <= 0 {
			return
		}

		category := s.cycle[s.position]
		s.position = (s.position + 1) % len(s.cycle)

		batch, ok := s.buffers[category].PollIfReady()
		if !ok {
			continue
		}

		if s.rateLimits.IsRateLimited(category, time.Now()) {
			s.accountItems(clientreport.ReasonRatelimitBackoff, batch)
			continue
		}

		if envelope := s.buildEnvelope(category, batch); envelope != nil {
			s.dispatch(envelope, false)
		}
	}
}

// Flush drains every buffer, ready or not, and synchronously sends all
// queued envelopes, bypassing the queue's capacity bound.
//
// Waits a bounded time for the active send before the synchronous
// drain; a send that overruns the wait keeps running in the background.
// Returns false if that wait timed out.
func (s *Scheduler) Flush() bool {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	// Stop send units from competing for queue entries while we drain.
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.draining = false
		s.maybeStartSendLocked()
		s.mu.Unlock()
	}()

	for _, category := range s.categories {
		batch := s.buffers[category].Drain()
		if len(batch) == 0 {
			continue
		}

		if envelope := s.buildEnvelope(category, batch); envelope != nil {
			s.dispatch(envelope, true)
		}
	}

	completed := s.waitForInFlight()

	for {
		s.mu.Lock()
		entry, ok := s.queue.pop()
		s.mu.Unlock()

		if !ok {
			return completed
		}
		s.sendOne(entry)
	}
}

func (s *Scheduler) freeCapacity() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.QueueCapacity() - s.queue.itemCount() - s.inFlightItems
}

// buildEnvelope wraps a polled batch, coalescing log records into a
// single batch item after the before-send transform.
func (s *Scheduler) buildEnvelope(
	category protocol.Category,
	batch []protocol.Item,
) *protocol.Envelope {
	items := batch
	if category == protocol.CategoryLog {
		items = s.buildLogItems(batch)
		if len(items) == 0 {
			return nil
		}
	}

	return NewEnvelope(s.settings, items)
}

func (s *Scheduler) buildLogItems(batch []protocol.Item) []protocol.Item {
	transform := s.settings.BeforeSendLog()

	var records []*protocol.LogRecord
	var passthrough []protocol.Item

	for _, item := range batch {
		record, ok := item.(*protocol.LogRecord)
		if !ok {
			passthrough = append(passthrough, item)
			continue
		}

		record = s.applyBeforeSend(transform, record)
		if record == nil {
			s.discards.Record(
				clientreport.ReasonBeforeSend, protocol.CategoryLog)
			continue
		}
		records = append(records, record)
	}

	var items []protocol.Item
	if len(records) > 0 {
		items = append(items, &protocol.LogBatch{Records: records})
	}
	return append(items, passthrough...)
}

// applyBeforeSend runs the user's transform on one record. A panicking
// transform must not interrupt delivery, so the original record is used
// instead.
func (s *Scheduler) applyBeforeSend(
	transform func(*protocol.LogRecord) *protocol.LogRecord,
	record *protocol.LogRecord,
) (result *protocol.LogRecord) {
	if transform == nil {
		return record
	}

	defer func() {
		if p := recover(); p != nil {
			s.logger.CaptureWarn(
				"telemetry: panic in before-send hook; keeping original record",
				"panic", fmt.Sprint(p))
			result = record
		}
	}()

	return transform(record)
}

// dispatch hands an envelope to the interception hook if one is set,
// and otherwise enqueues it for the send worker.
//
// Enqueueing is all or nothing: an envelope that does not fit in the
// queue's remaining capacity is dropped whole and accounted, never
// split. Flush bypasses the capacity bound.
func (s *Scheduler) dispatch(envelope *protocol.Envelope, bypassCapacity bool) {
	if hook := s.settings.OnEnvelope(); hook != nil {
		s.intercept(hook, envelope)
		return
	}

	itemCount := envelope.ItemCount()

	s.mu.Lock()
	overCapacity := !bypassCapacity &&
		s.queue.itemCount()+s.inFlightItems+itemCount >
			s.settings.QueueCapacity()

	if overCapacity {
		s.mu.Unlock()
		s.accountItems(clientreport.ReasonQueueOverflow, envelope.Items)
		s.logger.CaptureWarn(
			"telemetry: send queue full; dropping envelope",
			"items", itemCount)
		return
	}

	s.queue.push(queueEntry{envelope: envelope, itemCount: itemCount})
	s.maybeStartSendLocked()
	s.mu.Unlock()
}

func (s *Scheduler) intercept(
	hook func(*protocol.Envelope),
	envelope *protocol.Envelope,
) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.CaptureError(
				fmt.Errorf("telemetry: panic in envelope hook: %v", p))
		}
	}()

	hook(envelope)
}

// maybeStartSendLocked starts a send unit if none is active and work is
// queued. Caller must hold mu.
func (s *Scheduler) maybeStartSendLocked() {
	if s.activeSend || s.draining {
		return
	}

	entry, ok := s.queue.pop()
	if !ok {
		return
	}

	s.activeSend = true
	s.inFlightItems = entry.itemCount
	done := make(chan struct{})
	s.inFlightDone = done

	go s.runSendUnit(entry, done)
}

// runSendUnit performs one exchange, then chains to the next queued
// entry. Completion is observed no matter how the exchange ends, so a
// failing or panicking send never wedges the queue.
func (s *Scheduler) runSendUnit(entry queueEntry, done chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.activeSend = false
		s.inFlightItems = 0
		s.inFlightDone = nil
		close(done)
		s.maybeStartSendLocked()
		s.mu.Unlock()
	}()

	s.sendOne(entry)
}

// sendOne performs one exchange, containing panics and logging failures.
// The sender accounts items it drops; a panic loses the envelope, which
// is accounted here.
func (s *Scheduler) sendOne(entry queueEntry) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.CaptureError(
				fmt.Errorf("telemetry: panic in send unit: %v", p))
			s.accountItems(
				clientreport.ReasonInternalSDKError, entry.envelope.Items)
		}
	}()

	if err := s.sender.Send(context.Background(), entry.envelope); err != nil {
		s.logger.Warn("telemetry: envelope send failed", "error", err.Error())
	}
}

func (s *Scheduler) waitForInFlight() bool {
	s.mu.Lock()
	done := s.inFlightDone
	s.mu.Unlock()

	if done == nil {
		return true
	}

	timeout, cancelTimeout := s.inFlightWait.Wait()
	select {
	case <-done:
		cancelTimeout()
		return true
	case <-timeout:
		return false
	}
}

func (s *Scheduler) accountItems(
	reason clientreport.DiscardReason,
	items []protocol.Item,
) {
	for _, item := range items {
		s.discards.RecordN(reason, item.Category(), int64(item.ItemCount()))
	}
}
