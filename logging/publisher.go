package logging

import "context"

// Publisher accepts events. Implementations must not block the caller for
// long; match loops publish from their own goroutine.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f != nil {
		f(ctx, event)
	}
}

// NopPublisher discards everything.
func NopPublisher() Publisher {
	return PublisherFunc(nil)
}

// Fanout publishes every event to each non-nil publisher in order.
func Fanout(pubs ...Publisher) Publisher {
	targets := make([]Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			targets = append(targets, p)
		}
	}
	if len(targets) == 1 {
		return targets[0]
	}
	return PublisherFunc(func(ctx context.Context, event Event) {
		for _, p := range targets {
			p.Publish(ctx, event.Clone())
		}
	})
}
