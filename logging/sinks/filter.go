package sinks

import (
	"context"

	"arena-duel/server/logging"
)

type filtered struct {
	next  logging.Sink
	types map[logging.EventType]struct{}
}

// Only wraps next so it only receives the listed event types.
func Only(next logging.Sink, types ...logging.EventType) logging.Sink {
	allowed := make(map[logging.EventType]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return &filtered{next: next, types: allowed}
}

func (f *filtered) Write(event logging.Event) error {
	if _, ok := f.types[event.Type]; !ok {
		return nil
	}
	return f.next.Write(event)
}

func (f *filtered) Close(ctx context.Context) error {
	return f.next.Close(ctx)
}
