package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"arena-duel/server/logging"
)

// JSON writes newline-delimited events using the Event's own JSON encoding.
// Output is buffered and flushed on a timer, or after every event when the
// interval is not positive.
type JSON struct {
	mu      sync.Mutex
	buf     *bufio.Writer
	enc     *json.Encoder
	eager   bool
	flusher *time.Ticker
	done    chan struct{}
	once    sync.Once
}

func NewJSON(w io.Writer, flushEvery time.Duration) *JSON {
	if w == nil {
		w = io.Discard
	}
	buf := bufio.NewWriter(w)
	s := &JSON{buf: buf, enc: json.NewEncoder(buf), eager: flushEvery <= 0, done: make(chan struct{})}
	if !s.eager {
		s.flusher = time.NewTicker(flushEvery)
		go s.flushLoop()
	}
	return s
}

func (s *JSON) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(event); err != nil {
		return err
	}
	if s.eager {
		return s.buf.Flush()
	}
	return nil
}

func (s *JSON) flushLoop() {
	for {
		select {
		case <-s.done:
			return
		case <-s.flusher.C:
			s.mu.Lock()
			_ = s.buf.Flush()
			s.mu.Unlock()
		}
	}
}

func (s *JSON) Close(context.Context) error {
	s.once.Do(func() {
		if s.flusher != nil {
			s.flusher.Stop()
		}
		close(s.done)
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Flush()
}
