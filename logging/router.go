package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads wall-clock time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Sink is a destination for routed events. Write is only called from the
// sink's own outlet goroutine.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// RouterStats is reported on the health endpoint.
type RouterStats struct {
	EventsTotal  uint64               `json:"eventsTotal"`
	DroppedTotal uint64               `json:"droppedTotal"`
	Sinks        map[string]SinkStats `json:"sinks,omitempty"`
}

type SinkStats struct {
	Written uint64 `json:"written"`
	Failed  uint64 `json:"failed"`
	Dropped uint64 `json:"dropped"`
}

// Router hands published events to a dispatcher goroutine, which filters and
// stamps them and copies each one to every sink's outlet. Outlets write on
// their own goroutines so a slow sink only backs up itself. Publish never
// blocks: a full queue drops the event and counts it.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger

	inbox   chan Event
	outlets []*outlet
	quit    chan struct{}
	wg      sync.WaitGroup

	closed    atomic.Bool
	forwarded atomic.Uint64
	dropped   atomic.Uint64
	quietTill atomic.Int64
}

func NewRouter(clock Clock, cfg Config, sinks []NamedSink) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	cfg = cfg.normalized()
	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: log.New(os.Stderr, "[logging] ", log.LstdFlags),
		inbox:    make(chan Event, cfg.QueueSize),
		quit:     make(chan struct{}),
	}
	for _, named := range sinks {
		if named.Sink == nil {
			continue
		}
		r.outlets = append(r.outlets, &outlet{
			name:      named.Name,
			sink:      named.Sink,
			queue:     make(chan Event, cfg.SinkQueueSize),
			fallback:  r.fallback,
			retryBase: cfg.SinkRetryBase,
			retryMax:  cfg.SinkRetryMax,
		})
	}

	r.wg.Add(1 + len(r.outlets))
	go r.dispatch()
	for _, o := range r.outlets {
		go func() {
			defer r.wg.Done()
			o.run()
		}()
	}
	return r
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	select {
	case r.inbox <- event:
	default:
		r.dropped.Add(1)
		r.warnDropped(event)
	}
}

func (r *Router) warnDropped(event Event) {
	now := time.Now().UnixNano()
	quiet := r.quietTill.Load()
	if now < quiet || !r.quietTill.CompareAndSwap(quiet, now+int64(r.cfg.DropWarnEvery)) {
		return
	}
	r.fallback.Printf("queue full, dropping %s (match=%s frame=%d)", event.Type, event.MatchID, event.Frame)
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, o := range r.outlets {
			close(o.queue)
		}
	}()
	for {
		select {
		case event := <-r.inbox:
			r.route(event)
		case <-r.quit:
			for {
				select {
				case event := <-r.inbox:
					r.route(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) route(event Event) {
	if event.Severity < r.cfg.MinSeverity {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = event.withDefaults(r.cfg.Fields)
	r.forwarded.Add(1)
	for _, o := range r.outlets {
		o.offer(event)
	}
}

// Close stops accepting events, flushes what is queued and closes every sink.
// The first sink close error is returned.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(r.quit)
	drained := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, o := range r.outlets {
		if err := o.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:  r.forwarded.Load(),
		DroppedTotal: r.dropped.Load(),
	}
	if len(r.outlets) > 0 {
		stats.Sinks = make(map[string]SinkStats, len(r.outlets))
		for _, o := range r.outlets {
			stats.Sinks[o.name] = SinkStats{
				Written: o.written.Load(),
				Failed:  o.failed.Load(),
				Dropped: o.dropped.Load(),
			}
		}
	}
	return stats
}

// outlet serialises writes to one sink. After a failed write it sheds events
// until the retry pause has passed instead of stalling the dispatcher.
type outlet struct {
	name      string
	sink      Sink
	queue     chan Event
	fallback  *log.Logger
	retryBase time.Duration
	retryMax  time.Duration

	written atomic.Uint64
	failed  atomic.Uint64
	dropped atomic.Uint64

	streak   int
	resumeAt time.Time
}

func (o *outlet) offer(event Event) {
	select {
	case o.queue <- event.Clone():
	default:
		if o.dropped.Add(1)%100 == 1 {
			o.fallback.Printf("sink %s backlog full, dropped %d so far", o.name, o.dropped.Load())
		}
	}
}

func (o *outlet) run() {
	for event := range o.queue {
		if o.streak > 0 && time.Now().Before(o.resumeAt) {
			o.dropped.Add(1)
			continue
		}
		if err := o.sink.Write(event); err != nil {
			o.failed.Add(1)
			o.streak++
			pause := min(o.retryBase<<min(o.streak-1, 16), o.retryMax)
			o.resumeAt = time.Now().Add(pause)
			o.fallback.Printf("sink %s: write failed (%d in a row), pausing %s: %v", o.name, o.streak, pause, err)
			continue
		}
		o.written.Add(1)
		o.streak = 0
	}
}
