package telemetry

import (
	"sync"
	"time"

	"github.com/outposthq/outpost/core/internal/protocol"
)

// Buffer is one category's bounded FIFO of pending items.
//
// Adding never blocks and never fails: a full buffer evicts its oldest
// item to make room. Items leave in insertion order and never come back
// once polled or evicted.
//
// Safe for concurrent use; each operation is atomic with respect to the
// others.
type Buffer struct {
	mu     sync.Mutex
	config CategoryConfig
	clock  func() time.Time

	// items is a ring: size entries starting at head, wrapping around.
	items []protocol.Item
	head  int
	size  int

	lastFlush time.Time
}

func NewBuffer(config CategoryConfig) *Buffer {
	return NewBufferWithClock(config, time.Now)
}

// NewBufferWithClock is NewBuffer with a controllable time source for
// timeout tests.
func NewBufferWithClock(
	config CategoryConfig,
	clock func() time.Time,
) *Buffer {
	if config.Capacity <= 0 {
		panic("telemetry: buffer capacity must be positive")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}

	return &Buffer{
		config:    config,
		clock:     clock,
		items:     make([]protocol.Item, config.Capacity),
		lastFlush: clock(),
	}
}

func (b *Buffer) Category() protocol.Category { return b.config.Category }

// Size returns the number of buffered items.
func (b *Buffer) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Add appends an item, evicting the oldest if the buffer is full.
//
// Returns the evicted item, or nil. The buffer does not account the
// eviction; that is the caller's job.
func (b *Buffer) Add(item protocol.Item) (evicted protocol.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == len(b.items) {
		evicted = b.items[b.head]
		b.items[b.head] = item
		b.head = (b.head + 1) % len(b.items)
		return evicted
	}

	b.items[(b.head+b.size)%len(b.items)] = item
	b.size++
	return nil
}

// PollIfReady takes the oldest batch if the buffer is ready.
//
// Ready means non-empty and either holding a full batch or, when a
// flush timeout is configured, having gone at least that long since the
// last poll. An unready buffer is left untouched.
func (b *Buffer) PollIfReady() ([]protocol.Item, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready() {
		return nil, false
	}

	b.lastFlush = b.clock()
	return b.take(min(b.config.BatchSize, b.size)), true
}

// Drain removes and returns everything regardless of readiness.
//
// Only used for shutdown and flush.
func (b *Buffer) Drain() []protocol.Item {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.size == 0 {
		return nil
	}

	b.lastFlush = b.clock()
	return b.take(b.size)
}

func (b *Buffer) ready() bool {
	if b.size == 0 {
		return false
	}
	if b.size >= b.config.BatchSize {
		return true
	}
	return b.config.FlushTimeout > 0 &&
		b.clock().Sub(b.lastFlush) >= b.config.FlushTimeout
}

func (b *Buffer) take(n int) []protocol.Item {
	taken := make([]protocol.Item, n)
	for i := range n {
		taken[i] = b.items[b.head]
		b.items[b.head] = nil
		b.head = (b.head + 1) % len(b.items)
	}
	b.size -= n
	return taken
}
