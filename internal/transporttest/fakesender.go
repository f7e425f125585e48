package transporttest

import (
	"context"
	"slices"
	"sync"

	"github.com/outposthq/outpost/core/internal/protocol"
)

// FakeSender is an EnvelopeSender that records what it is asked to
// deliver.
//
// Sends can be gated so that tests can hold an exchange open and
// observe the pipeline's behavior while a send is in flight.
type FakeSender struct {
	mu           sync.Mutex
	envelopes    []*protocol.Envelope
	sendsStarted int
	err          error
	gate         chan struct{}
}

func NewFakeSender() *FakeSender {
	return &FakeSender{}
}

// Send records the envelope, blocking first if sends are gated.
func (s *FakeSender) Send(
	ctx context.Context,
	envelope *protocol.Envelope,
) error {
	s.mu.Lock()
	s.sendsStarted++
	gate := s.gate
	err := s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.envelopes = append(s.envelopes, envelope)
	s.mu.Unlock()

	return err
}

// BlockSends makes future Send calls wait until ReleaseSends.
func (s *FakeSender) BlockSends() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// ReleaseSends unblocks all waiting and future Send calls.
func (s *FakeSender) ReleaseSends() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// SetError makes Send return the given error after recording.
func (s *FakeSender) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SendsStarted counts Send calls that have begun, completed or not.
func (s *FakeSender) SendsStarted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendsStarted
}

// Envelopes returns all completed sends in order.
func (s *FakeSender) Envelopes() []*protocol.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.envelopes)
}

// ItemCount sums the records across all completed sends.
func (s *FakeSender) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0
	for _, envelope := range s.envelopes {
		total += envelope.ItemCount()
	}
	return total
}
