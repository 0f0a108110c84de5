package logging

import (
	"maps"
	"time"
)

// Config tunes the router and the sinks the app assembles around it.
type Config struct {
	// QueueSize bounds events waiting for the dispatcher; Publish drops
	// beyond it.
	QueueSize int
	// SinkQueueSize bounds events waiting on a single sink.
	SinkQueueSize int
	MinSeverity   Severity
	// Fields are added to every event's Extra unless the event sets them.
	Fields map[string]any
	// DropWarnEvery rate-limits the fallback log line for dropped events.
	DropWarnEvery time.Duration
	// SinkRetryBase is the pause after a failed write; it doubles per
	// consecutive failure up to SinkRetryMax.
	SinkRetryBase  time.Duration
	SinkRetryMax   time.Duration
	JSONFlushEvery time.Duration
	HTTP           HTTPConfig
}

// HTTPConfig configures the fire-and-forget hit telemetry forwarder.
type HTTPConfig struct {
	URL           string
	MaxBatch      int
	FlushInterval time.Duration
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:      512,
		SinkQueueSize:  256,
		MinSeverity:    SeverityInfo,
		DropWarnEvery:  5 * time.Second,
		SinkRetryBase:  100 * time.Millisecond,
		SinkRetryMax:   30 * time.Second,
		JSONFlushEvery: 2 * time.Second,
		HTTP: HTTPConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
			Timeout:       3 * time.Second,
		},
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = def.QueueSize
	}
	if c.SinkQueueSize <= 0 {
		c.SinkQueueSize = def.SinkQueueSize
	}
	if c.DropWarnEvery <= 0 {
		c.DropWarnEvery = def.DropWarnEvery
	}
	if c.SinkRetryBase <= 0 {
		c.SinkRetryBase = def.SinkRetryBase
	}
	if c.SinkRetryMax < c.SinkRetryBase {
		c.SinkRetryMax = max(def.SinkRetryMax, c.SinkRetryBase)
	}
	c.Fields = maps.Clone(c.Fields)
	return c
}
