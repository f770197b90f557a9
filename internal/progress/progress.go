// Package progress provides the ordered, replayable log-event stream the
// aggregation pipeline narrates itself on. The pipeline publishes; any number
// of subscribers (CLI printer, UI binding, tests) consume. Subscribers never
// influence pipeline behavior.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Event is a single timestamped progress line.
type Event struct {
	Seq     int       `json:"seq"`
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// Subscriber receives events in publish order. Called synchronously from the
// publishing goroutine while the stream's lock is held, so implementations
// must be fast, must not block, and must not call back into the Stream.
type Subscriber func(Event)

// Stream is an append-only sequence of events with fan-out to subscribers.
// Safe for concurrent use. The zero value is not usable; call NewStream.
type Stream struct {
	mu     sync.Mutex
	events []Event
	subs   []Subscriber
	now    func() time.Time
}

// NewStream creates an empty stream.
func NewStream() *Stream {
	return &Stream{now: time.Now}
}

// Subscribe registers fn for all future events. Events already published are
// not replayed to fn; use Events for those.
func (s *Stream) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Publish appends a formatted line to the stream and fans it out. The lock is
// held through dispatch so concurrent publishers cannot deliver events to a
// subscriber out of Seq order.
func (s *Stream) Publish(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := Event{
		Seq:     len(s.events),
		Time:    s.now(),
		Message: fmt.Sprintf(format, args...),
	}
	s.events = append(s.events, ev)
	for _, fn := range s.subs {
		fn(ev)
	}
}

// Events returns a copy of everything published so far, in order.
func (s *Stream) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Messages returns just the message text of every event, in order.
// Convenient for tests asserting on narrative content.
func (s *Stream) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Message
	}
	return out
}

// Len returns the number of events published so far.
func (s *Stream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
