package telemetry

import "github.com/outposthq/outpost/core/internal/protocol"

// queueEntry is one envelope pending dispatch.
type queueEntry struct {
	envelope  *protocol.Envelope
	itemCount int
}

// sendQueue is the scheduler's FIFO of envelopes awaiting the send
// worker.
//
// Size is measured in telemetry records, not envelopes. The queue
// itself is unbounded; the scheduler enforces the capacity bound, which
// lets flush bypass it. Not safe for concurrent use; the scheduler's
// lock guards it.
type sendQueue struct {
	entries     []queueEntry
	queuedItems int
}

func (q *sendQueue) push(entry queueEntry) {
	q.entries = append(q.entries, entry)
	q.queuedItems += entry.itemCount
}

func (q *sendQueue) pop() (queueEntry, bool) {
	if len(q.entries) == 0 {
		return queueEntry{}, false
	}

	entry := q.entries[0]
	q.entries = q.entries[1:]
	q.queuedItems -= entry.itemCount

	if len(q.entries) == 0 {
		q.entries = nil
	}
	return entry, true
}

// itemCount is the total records across all queued envelopes.
func (q *sendQueue) itemCount() int { return q.queuedItems }

func (q *sendQueue) len() int { return len(q.entries) }
