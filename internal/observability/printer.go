package observability

import (
	"sync"
	"time"
)

// Printer collects messages to surface to the host application.
//
// The SDK never writes to stdout or stderr directly; user-facing notices
// such as "the server is rate limiting us" accumulate here until the
// application polls them.
type Printer struct {
	sync.Mutex

	messages []string

	// For rate-limited messages, this is the next time the same text
	// may be accepted again.
	blockUntilByMessage map[string]time.Time

	// getNow allows stubbing out [time.Now] in tests.
	getNow func() time.Time
}

func NewPrinter() *Printer {
	return &Printer{
		blockUntilByMessage: make(map[string]time.Time),
		getNow:              time.Now,
	}
}

// Write stores a message to surface to the application.
func (p *Printer) Write(message string) {
	p.Lock()
	defer p.Unlock()

	p.messages = append(p.messages, message)
}

// AtMostEvery returns a printer that drops a message if the same text
// was accepted within the given duration.
func (p *Printer) AtMostEvery(duration time.Duration) RateLimitedPrinter {
	return RateLimitedPrinter{printer: p, duration: duration}
}

// Read returns all accumulated messages and clears the buffer.
func (p *Printer) Read() []string {
	p.Lock()
	defer p.Unlock()

	polled := p.messages
	p.messages = nil
	return polled
}

type RateLimitedPrinter struct {
	printer  *Printer
	duration time.Duration
}

// Write stores a message unless an identical one was accepted recently.
func (p RateLimitedPrinter) Write(message string) {
	p.printer.Lock()
	defer p.printer.Unlock()

	if p.duration > 0 {
		now := p.printer.getNow()
		if now.Before(p.printer.blockUntilByMessage[message]) {
			return
		}

		p.printer.blockUntilByMessage[message] = now.Add(p.duration)
	}

	p.printer.messages = append(p.printer.messages, message)
}
