package clientreport

import (
	"sort"
	"sync"

	"github.com/outposthq/outpost/core/internal/protocol"
)

// DiscardedEvent is one aggregated drop count in a client report.
type DiscardedEvent struct {
	Reason   DiscardReason
	Category protocol.Category
	Quantity int64
}

// Recorder accumulates discard counts between report ticks.
//
// Safe for concurrent use; every pipeline component that drops items
// shares one instance.
type Recorder struct {
	mu     sync.Mutex
	counts map[discardKey]int64
}

type discardKey struct {
	reason   DiscardReason
	category protocol.Category
}

func NewRecorder() *Recorder {
	return &Recorder{counts: make(map[discardKey]int64)}
}

// Record counts one discarded item.
func (r *Recorder) Record(reason DiscardReason, category protocol.Category) {
	r.RecordN(reason, category, 1)
}

// RecordN counts n discarded items at once, such as an entire rejected
// envelope.
func (r *Recorder) RecordN(
	reason DiscardReason,
	category protocol.Category,
	n int64,
) {
	if n <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[discardKey{reason, category}] += n
}

// Snapshot returns all accumulated counts and resets the recorder.
//
// Returns nil if nothing was discarded. The result is sorted for stable
// report payloads.
func (r *Recorder) Snapshot() []DiscardedEvent {
	r.mu.Lock()
	counts := r.counts
	r.counts = make(map[discardKey]int64)
	r.mu.Unlock()

	if len(counts) == 0 {
		return nil
	}

	events := make([]DiscardedEvent, 0, len(counts))
	for key, quantity := range counts {
		events = append(events, DiscardedEvent{
			Reason:   key.reason,
			Category: key.category,
			Quantity: quantity,
		})
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Reason != events[j].Reason {
			return events[i].Reason < events[j].Reason
		}
		return events[i].Category < events[j].Category
	})

	return events
}
