package sinks

import (
	"context"
	"slices"
	"sync"

	"arena-duel/server/logging"
)

// MemorySink keeps every event it sees. Tests use it both as a router sink
// and directly as a Publisher.
type MemorySink struct {
	mu     sync.Mutex
	events []logging.Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	s.events = append(s.events, event.Clone())
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Publish(_ context.Context, event logging.Event) { _ = s.Write(event) }

func (s *MemorySink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// EventsOfType returns the recorded events of type t in arrival order.
func (s *MemorySink) EventsOfType(t logging.EventType) []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []logging.Event
	for _, event := range s.events {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}

func (s *MemorySink) Close(context.Context) error { return nil }
