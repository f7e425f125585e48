// Package waitingtest defines fakes for package `waiting`.
package waitingtest

import (
	"slices"
	"sync"

	"github.com/outposthq/outpost/core/internal/waiting"
)

// FakeDelay is a fake Delay that proceeds when Tick is called.
//
// This allows controlling time in a test without resorting to
// `time.Sleep()` and hope.
type FakeDelay struct {
	mu sync.Mutex

	// waiters are the channels returned by Wait calls that have not
	// completed or been cancelled.
	waiters []chan struct{}

	// If true, this behaves like a zero delay.
	isZero bool
}

func NewFakeDelay() *FakeDelay {
	return &FakeDelay{}
}

// Tick unblocks every goroutine currently blocked in Wait.
func (d *FakeDelay) Tick() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, ch := range d.waiters {
		close(ch)
	}
	d.waiters = nil
}

// SetZero unblocks all current and future waiting goroutines.
func (d *FakeDelay) SetZero() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.isZero = true
	for _, ch := range d.waiters {
		close(ch)
	}
	d.waiters = nil
}

// WaiterCount returns how many Wait calls are pending.
//
// Tests use it to know when a loop under test has started waiting, so
// that a Tick cannot fire before anyone is listening.
func (d *FakeDelay) WaiterCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}

// Prove we implement the Delay interface.
var _ waiting.Delay = &FakeDelay{}

func (d *FakeDelay) IsZero() bool {
	if d == nil {
		return true
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isZero
}

func (d *FakeDelay) Wait() (<-chan struct{}, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isZero {
		return completedDelay(), func() {}
	}

	ch := make(chan struct{})
	d.waiters = append(d.waiters, ch)

	cancel := func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		i := slices.Index(d.waiters, ch)
		if i >= 0 {
			d.waiters = slices.Delete(d.waiters, i, i+1)
			close(ch)
		}
	}

	return ch, cancel
}

func completedDelay() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
