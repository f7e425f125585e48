package telemetry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/outposthq/outpost/core/internal/clientreport"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/ratelimit"
	"github.com/outposthq/outpost/core/internal/settings"
)

type PipelineParams struct {
	Settings  *settings.Settings
	Logger    *observability.CoreLogger
	Scheduler *Scheduler
	Discards  *clientreport.Recorder
	Reporter  *clientreport.Reporter
	Sweeper   *ratelimit.Sweeper
}

// Pipeline is the boundary producers hand telemetry to.
//
// Add routes an item to its category's buffer and nudges the scheduler.
// Nothing on that path blocks, fails, or panics into the caller: a
// telemetry SDK that crashes or stalls the application it instruments
// is worse than no telemetry at all.
type Pipeline struct {
	settings  *settings.Settings
	logger    *observability.CoreLogger
	scheduler *Scheduler
	discards  *clientreport.Recorder
	reporter  *clientreport.Reporter
	sweeper   *ratelimit.Sweeper

	ctx       context.Context
	cancel    context.CancelFunc
	closed    atomic.Bool
	closeOnce sync.Once
}

func NewPipeline(params PipelineParams) *Pipeline {
	if params.Settings == nil {
		panic("telemetry: nil Settings")
	}
	if params.Logger == nil {
		panic("telemetry: nil Logger")
	}
	if params.Scheduler == nil {
		panic("telemetry: nil Scheduler")
	}
	if params.Discards == nil {
		panic("telemetry: nil Discards")
	}
	if params.Reporter == nil {
		panic("telemetry: nil Reporter")
	}
	if params.Sweeper == nil {
		panic("telemetry: nil Sweeper")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pipeline{
		settings:  params.Settings,
		logger:    params.Logger,
		scheduler: params.Scheduler,
		discards:  params.Discards,
		reporter:  params.Reporter,
		sweeper:   params.Sweeper,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background loops: the rate limit sweeper and, if
// enabled, the client report loop.
func (p *Pipeline) Start() {
	p.sweeper.Start(p.ctx)

	if p.settings.ClientReportsEnabled() {
		p.reporter.Start(p.ctx)
	}
}

// Add accepts one telemetry item for delivery.
//
// Items for categories that are not enabled are dropped. A full buffer
// evicts its oldest item, which is accounted as a cache overflow.
func (p *Pipeline) Add(item protocol.Item) {
	if item == nil || p.closed.Load() {
		return
	}

	buffer, ok := p.scheduler.Buffer(item.Category())
	if !ok {
		p.logger.Debug(
			"telemetry: dropping item for disabled category",
			"category", item.Category().String())
		return
	}

	if evicted := buffer.Add(item); evicted != nil {
		p.discards.RecordN(
			clientreport.ReasonCacheOverflow,
			evicted.Category(),
			int64(evicted.ItemCount()))
	}

	p.scheduler.Signal()
}

// Flush delivers everything buffered and queued, best effort.
func (p *Pipeline) Flush() bool {
	return p.scheduler.Flush()
}

// Close flushes pending telemetry and stops the background loops.
//
// Items added after Close are dropped. Safe to call more than once.
func (p *Pipeline) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		p.scheduler.Flush()

		p.cancel()
		p.sweeper.Wait()
		p.reporter.Wait()

		if p.settings.ClientReportsEnabled() {
			p.reporter.Flush()
		}
	})
}
