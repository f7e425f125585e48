package clientreport_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/outposthq/outpost/core/internal/clientreport"
	"github.com/outposthq/outpost/core/internal/observability"
	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/waitingtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentItems struct {
	mu    sync.Mutex
	items []protocol.Item
}

func (s *sentItems) send(item protocol.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
}

func (s *sentItems) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func TestReporter_SendsAccumulatedDiscards(t *testing.T) {
	recorder := clientreport.NewRecorder()
	recorder.RecordN(clientreport.ReasonQueueOverflow, protocol.CategoryLog, 7)
	interval := waitingtest.NewFakeDelay()
	sent := &sentItems{}
	reporter := clientreport.NewReporter(clientreport.ReporterParams{
		Recorder: recorder,
		Logger:   observability.NewNoOpLogger(),
		Send:     sent.send,
		Interval: interval,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter.Start(ctx)

	require.Eventually(t,
		func() bool { return interval.WaiterCount() > 0 },
		time.Second, time.Millisecond)
	interval.Tick()
	require.Eventually(t,
		func() bool { return sent.count() == 1 },
		time.Second, time.Millisecond)

	report, ok := sent.items[0].(*clientreport.Report)
	require.True(t, ok)
	assert.Equal(t, "client_report", report.EnvelopeType())
	assert.Equal(t, protocol.CategoryDefault, report.Category())
	require.Len(t, report.DiscardedEvents, 1)
	assert.Equal(t, int64(7), report.DiscardedEvents[0].Quantity)

	payload, ok := report.Payload().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, payload, "timestamp")
	assert.Contains(t, payload, "discarded_events")
}

func TestReporter_SkipsEmptyTicks(t *testing.T) {
	interval := waitingtest.NewFakeDelay()
	sent := &sentItems{}
	reporter := clientreport.NewReporter(clientreport.ReporterParams{
		Recorder: clientreport.NewRecorder(),
		Logger:   observability.NewNoOpLogger(),
		Send:     sent.send,
		Interval: interval,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reporter.Start(ctx)

	require.Eventually(t,
		func() bool { return interval.WaiterCount() > 0 },
		time.Second, time.Millisecond)
	interval.Tick()
	require.Eventually(t,
		func() bool { return interval.WaiterCount() > 0 },
		time.Second, time.Millisecond)

	assert.Zero(t, sent.count())
}

func TestReporter_FlushReportsImmediately(t *testing.T) {
	recorder := clientreport.NewRecorder()
	sent := &sentItems{}
	reporter := clientreport.NewReporter(clientreport.ReporterParams{
		Recorder: recorder,
		Logger:   observability.NewNoOpLogger(),
		Send:     sent.send,
		Interval: waitingtest.NewFakeDelay(),
	})

	recorder.Record(clientreport.ReasonNetworkError, protocol.CategoryError)
	reporter.Flush()

	assert.Equal(t, 1, sent.count())

	// Nothing new accumulated, so a second flush sends nothing.
	reporter.Flush()
	assert.Equal(t, 1, sent.count())
}
