package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/waiting"
)

// DefaultSweepInterval is how often expired rate limits are removed.
const DefaultSweepInterval = 60 * time.Second

type SweeperParams struct {
	RateLimits *Map
	Logger     *observability.CoreLogger

	// Interval is the time between sweeps. Defaults to
	// DefaultSweepInterval.
	Interval waiting.Delay
}

// Sweeper periodically removes expired entries from a rate limit map.
type Sweeper struct {
	rateLimits *Map
	logger     *observability.CoreLogger
	interval   waiting.Delay

	wg sync.WaitGroup
}

func NewSweeper(params SweeperParams) *Sweeper {
	if params.RateLimits == nil {
		panic("ratelimit: nil RateLimits")
	}
	if params.Logger == nil {
		panic("ratelimit: nil Logger")
	}
	if params.Interval == nil {
		params.Interval = waiting.NewDelay(DefaultSweepInterval)
	}

	return &Sweeper{
		rateLimits: params.RateLimits,
		logger:     params.Logger,
		interval:   params.Interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.logger.CapturePanic("source", "ratelimit sweeper")
		s.loop(ctx)
	}()
}

// Wait blocks until the sweep loop has exited.
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context) {
	for {
		tick, cancel := s.interval.Wait()

		select {
		case <-ctx.Done():
			cancel()
			return
		case <-tick:
			s.rateLimits.Sweep(time.Now())
		}
	}
}
