package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"arena-duel/server/logging"
)

// Console prints one line per event for a developer watching the terminal:
//
//	15:04:05.000 WARN  simulation.input_fallback m=3f2a f=120 match:3f2a {"slot":"guest"}
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = io.Discard
	}
	return &Console{w: w}
}

func (s *Console) Write(event logging.Event) error {
	var b strings.Builder
	b.WriteString(event.Time.Format("15:04:05.000"))
	fmt.Fprintf(&b, " %-5s %s", strings.ToUpper(event.Severity.String()), event.Type)
	if event.MatchID != "" {
		fmt.Fprintf(&b, " m=%s", shortID(event.MatchID))
	}
	if event.Frame > 0 {
		fmt.Fprintf(&b, " f=%d", event.Frame)
	}
	b.WriteString(" ")
	b.WriteString(event.Actor.String())
	for i, target := range event.Targets {
		if i == 0 {
			b.WriteString(" ->")
		}
		b.WriteString(" ")
		b.WriteString(target.String())
	}
	if event.Payload != nil {
		if data, err := json.Marshal(event.Payload); err == nil {
			b.WriteString(" ")
			b.Write(data)
		} else {
			fmt.Fprintf(&b, " %+v", event.Payload)
		}
	}
	b.WriteByte('\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, b.String())
	return err
}

func (s *Console) Close(context.Context) error { return nil }

// shortID keeps the first block of a uuid.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
