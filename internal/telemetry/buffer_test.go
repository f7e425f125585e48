package telemetry_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
	"github.com/outposthq/outpost/core/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func logRecord(body string) *protocol.LogRecord {
	return &protocol.LogRecord{Level: "info", Body: body}
}

func bodies(items []protocol.Item) []string {
	var result []string
	for _, item := range items {
		result = append(result, item.(*protocol.LogRecord).Body)
	}
	return result
}

func TestBuffer_FIFOWithOverflow(t *testing.T) {
	buffer := telemetry.NewBuffer(telemetry.CategoryConfig{
		Category:  protocol.CategoryLog,
		Capacity:  4,
		BatchSize: 100,
	})

	var evicted []string
	for i := 1; i <= 10; i++ {
		if e := buffer.Add(logRecord(fmt.Sprintf("%d", i))); e != nil {
			evicted = append(evicted, e.(*protocol.LogRecord).Body)
		}
	}

	assert.Equal(t, 4, buffer.Size())
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, evicted)
	assert.Equal(t, []string{"7", "8", "9", "10"}, bodies(buffer.Drain()))
	assert.Equal(t, 0, buffer.Size())
}

func TestBuffer_NotReadyBelowBatchSize(t *testing.T) {
	buffer := telemetry.NewBuffer(telemetry.CategoryConfig{
		Category:  protocol.CategoryLog,
		Capacity:  10,
		BatchSize: 3,
	})

	buffer.Add(logRecord("1"))
	buffer.Add(logRecord("2"))

	batch, ok := buffer.PollIfReady()
	assert.False(t, ok)
	assert.Nil(t, batch)
	assert.Equal(t, 2, buffer.Size())
}

func TestBuffer_ReadyAtBatchSize(t *testing.T) {
	buffer := telemetry.NewBuffer(telemetry.CategoryConfig{
		Category:  protocol.CategoryLog,
		Capacity:  10,
		BatchSize: 3,
	})

	for i := 1; i <= 5; i++ {
		buffer.Add(logRecord(fmt.Sprintf("%d", i)))
	}

	batch, ok := buffer.PollIfReady()
	require.True(t, ok)
	assert.Equal(t, []string{"1", "2", "3"}, bodies(batch))
	assert.Equal(t, 2, buffer.Size())

	// Two items remain, below the batch size.
	_, ok = buffer.PollIfReady()
	assert.False(t, ok)
}

func TestBuffer_ReadyAfterFlushTimeout(t *testing.T) {
	clock := newFakeClock()
	buffer := telemetry.NewBufferWithClock(telemetry.CategoryConfig{
		Category:     protocol.CategoryLog,
		Capacity:     10,
		BatchSize:    100,
		FlushTimeout: 5 * time.Second,
	}, clock.Now)

	buffer.Add(logRecord("1"))

	_, ok := buffer.PollIfReady()
	assert.False(t, ok)

	clock.Advance(5 * time.Second)

	batch, ok := buffer.PollIfReady()
	require.True(t, ok)
	assert.Equal(t, []string{"1"}, bodies(batch))
}

func TestBuffer_EmptyNeverReady(t *testing.T) {
	clock := newFakeClock()
	buffer := telemetry.NewBufferWithClock(telemetry.CategoryConfig{
		Category:     protocol.CategoryLog,
		Capacity:     10,
		BatchSize:    1,
		FlushTimeout: time.Second,
	}, clock.Now)

	clock.Advance(time.Hour)

	_, ok := buffer.PollIfReady()
	assert.False(t, ok)
}

func TestBuffer_PollResetsFlushTimer(t *testing.T) {
	clock := newFakeClock()
	buffer := telemetry.NewBufferWithClock(telemetry.CategoryConfig{
		Category:     protocol.CategoryLog,
		Capacity:     10,
		BatchSize:    100,
		FlushTimeout: 5 * time.Second,
	}, clock.Now)

	buffer.Add(logRecord("1"))
	clock.Advance(5 * time.Second)

	_, ok := buffer.PollIfReady()
	require.True(t, ok)

	buffer.Add(logRecord("2"))
	clock.Advance(4 * time.Second)

	_, ok = buffer.PollIfReady()
	assert.False(t, ok)

	clock.Advance(time.Second)

	_, ok = buffer.PollIfReady()
	assert.True(t, ok)
}

func TestBuffer_NoTimeoutNeverReadyOnTime(t *testing.T) {
	clock := newFakeClock()
	buffer := telemetry.NewBufferWithClock(telemetry.CategoryConfig{
		Category:  protocol.CategoryLog,
		Capacity:  10,
		BatchSize: 5,
	}, clock.Now)

	buffer.Add(logRecord("1"))
	clock.Advance(24 * time.Hour)

	_, ok := buffer.PollIfReady()
	assert.False(t, ok)
}

func TestBuffer_WrapsAroundRepeatedly(t *testing.T) {
	buffer := telemetry.NewBuffer(telemetry.CategoryConfig{
		Category:  protocol.CategoryLog,
		Capacity:  3,
		BatchSize: 2,
	})

	for i := 1; i <= 20; i++ {
		buffer.Add(logRecord(fmt.Sprintf("%d", i)))

		if i%4 == 0 && i <= 16 {
			batch, ok := buffer.PollIfReady()
			require.True(t, ok)
			assert.Len(t, batch, 2)
		}
	}

	// Items 1-16 were evicted or polled in order; the rest are intact.
	assert.Equal(t, []string{"18", "19", "20"}, bodies(buffer.Drain()))
}

func TestBuffer_PanicsOnNonPositiveCapacity(t *testing.T) {
	assert.Panics(t, func() {
		telemetry.NewBuffer(telemetry.CategoryConfig{
			Category: protocol.CategoryLog,
		})
	})
}
