package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/ratelimit"
	"github.com/outposthq/outpost/core/internal/waitingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RemovesExpiredEntries(t *testing.T) {
	m := ratelimit.NewMap()
	m.Update("0:error:key", time.Now().Add(-time.Minute))
	interval := waitingtest.NewFakeDelay()
	sweeper := ratelimit.NewSweeper(ratelimit.SweeperParams{
		RateLimits: m,
		Logger:     observability.NewNoOpLogger(),
		Interval:   interval,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper.Start(ctx)

	require.Eventually(t,
		func() bool { return interval.WaiterCount() > 0 },
		time.Second, time.Millisecond)
	interval.Tick()
	assert.Eventually(t,
		func() bool { return m.Len() == 0 },
		time.Second, time.Millisecond)
}

func TestSweeper_StopsOnContextCancel(t *testing.T) {
	sweeper := ratelimit.NewSweeper(ratelimit.SweeperParams{
		RateLimits: ratelimit.NewMap(),
		Logger:     observability.NewNoOpLogger(),
		Interval:   waitingtest.NewFakeDelay(),
	})
	ctx, cancel := context.WithCancel(context.Background())

	sweeper.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		sweeper.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}

func TestSweeper_PanicsOnNilDependencies(t *testing.T) {
	assert.Panics(t, func() {
		ratelimit.NewSweeper(ratelimit.SweeperParams{
			Logger: observability.NewNoOpLogger(),
		})
	})
	assert.Panics(t, func() {
		ratelimit.NewSweeper(ratelimit.SweeperParams{
			RateLimits: ratelimit.NewMap(),
		})
	})
}
