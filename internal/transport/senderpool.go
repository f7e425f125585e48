package transport

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/outposthq/outpost/core/internal/clientreport"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/settings"
	"github.com/outposthq/outpost/core/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Transport is the production EnvelopeSender.
var _ telemetry.EnvelopeSender = &Transport{}

type SenderPoolParams struct {
	Settings *settings.Settings
	Logger   *observability.CoreLogger
	Discards *clientreport.Recorder
	Sender   telemetry.EnvelopeSender
}

// SenderPool sends individual items immediately, off the buffered path.
//
// Items submitted here skip the category buffers and the scheduling
// cycle: each is wrapped in its own envelope and handed to a bounded
// pool of senders. When every sender is busy the item is dropped and
// accounted rather than queued, so a submission can never block the
// caller.
type SenderPool struct {
	settings *settings.Settings
	logger   *observability.CoreLogger
	discards *clientreport.Recorder
	sender   telemetry.EnvelopeSender

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	closed atomic.Bool
}

func NewSenderPool(params SenderPoolParams) *SenderPool {
	if params.Settings == nil {
		panic("transport: nil Settings")
	}
	if params.Logger == nil {
		panic("transport: nil Logger")
	}
	if params.Discards == nil {
		panic("transport: nil Discards")
	}
	if params.Sender == nil {
		panic("transport: nil Sender")
	}

	size := params.Settings.SenderPoolSize()
	if size <= 0 {
		size = max(runtime.NumCPU(), 8)
	}

	group := &errgroup.Group{}
	group.SetLimit(size)

	ctx, cancel := context.WithCancel(context.Background())

	return &SenderPool{
		settings: params.Settings,
		logger:   params.Logger,
		discards: params.Discards,
		sender:   params.Sender,
		ctx:      ctx,
		cancel:   cancel,
		group:    group,
	}
}

// EnqueueNow submits one item for immediate delivery.
func (p *SenderPool) EnqueueNow(item protocol.Item) {
	if item == nil || p.closed.Load() {
		return
	}

	started := p.group.TryGo(func() error {
		p.sendItem(item)
		return nil
	})

	if !started {
		p.discards.RecordN(
			clientreport.ReasonBackpressure,
			item.Category(),
			int64(item.ItemCount()))
		p.logger.CaptureWarn(
			"transport: sender pool saturated, dropping item",
			"category", item.Category().String())
	}
}

func (p *SenderPool) sendItem(item protocol.Item) {
	defer func() {
		if pval := recover(); pval != nil {
			p.logger.CaptureError(
				fmt.Errorf("transport: panic in pool send: %v", pval))
			p.discards.RecordN(
				clientreport.ReasonInternalSDKError,
				item.Category(),
				int64(item.ItemCount()))
		}
	}()

	envelope := telemetry.NewEnvelope(p.settings, []protocol.Item{item})
	if err := p.sender.Send(p.ctx, envelope); err != nil {
		p.logger.Warn(
			"transport: immediate send failed", "error", err.Error())
	}
}

// Close waits for in-flight sends. Items submitted after Close are
// dropped.
func (p *SenderPool) Close() {
	p.closed.Store(true)
	_ = p.group.Wait()
	p.cancel()
}
