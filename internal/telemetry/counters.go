package telemetry

import (
	"sync/atomic"
	"time"
)

// Counters aggregates process-wide session statistics for the health endpoint.
type Counters struct {
	bytesSent          atomic.Uint64
	snapshotsSent      atomic.Uint64
	framesAdvanced     atomic.Uint64
	inputFallbacks     atomic.Uint64
	heartbeatTimeouts  atomic.Uint64
	malformedMessages  atomic.Uint64
	rejectedJoins      atomic.Uint64
	hitsRecorded       atomic.Uint64
	tickDurationMicros atomic.Int64
}

// Snapshot is the JSON shape of Counters.
type Snapshot struct {
	BytesSent          uint64 `json:"bytesSent"`
	SnapshotsSent      uint64 `json:"snapshotsSent"`
	FramesAdvanced     uint64 `json:"framesAdvanced"`
	InputFallbacks     uint64 `json:"inputFallbacks"`
	HeartbeatTimeouts  uint64 `json:"heartbeatTimeouts"`
	MalformedMessages  uint64 `json:"malformedMessages"`
	RejectedJoins      uint64 `json:"rejectedJoins"`
	HitsRecorded       uint64 `json:"hitsRecorded"`
	TickDurationMicros int64  `json:"tickDurationMicros"`
}

func NewCounters() *Counters {
	return &Counters{}
}

func (c *Counters) RecordBroadcast(bytes int) {
	if c == nil {
		return
	}
	if bytes < 0 {
		bytes = 0
	}
	c.bytesSent.Add(uint64(bytes))
	c.snapshotsSent.Add(1)
}

func (c *Counters) RecordFrame(duration time.Duration, hits int) {
	if c == nil {
		return
	}
	c.framesAdvanced.Add(1)
	if hits > 0 {
		c.hitsRecorded.Add(uint64(hits))
	}
	c.tickDurationMicros.Store(max(duration.Microseconds(), 0))
}

func (c *Counters) IncrementFallback() {
	if c != nil {
		c.inputFallbacks.Add(1)
	}
}

func (c *Counters) IncrementHeartbeatTimeout() {
	if c != nil {
		c.heartbeatTimeouts.Add(1)
	}
}

func (c *Counters) IncrementMalformed() {
	if c != nil {
		c.malformedMessages.Add(1)
	}
}

func (c *Counters) IncrementRejectedJoin() {
	if c != nil {
		c.rejectedJoins.Add(1)
	}
}

func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		BytesSent:          c.bytesSent.Load(),
		SnapshotsSent:      c.snapshotsSent.Load(),
		FramesAdvanced:     c.framesAdvanced.Load(),
		InputFallbacks:     c.inputFallbacks.Load(),
		HeartbeatTimeouts:  c.heartbeatTimeouts.Load(),
		MalformedMessages:  c.malformedMessages.Load(),
		RejectedJoins:      c.rejectedJoins.Load(),
		HitsRecorded:       c.hitsRecorded.Load(),
		TickDurationMicros: c.tickDurationMicros.Load(),
	}
}
