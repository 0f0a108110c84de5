// Package session coordinates online duels: it binds connections to match
// slots, orders inputs into lockstep frames, and watches connection liveness.
package session

import (
	"errors"
	"time"

	"arena-duel/server/internal/match"
	"arena-duel/server/internal/sim"
	"arena-duel/server/internal/telemetry"
	"arena-duel/server/logging"
)

var (
	ErrUnknownMatch = errors.New("unknown match")
	ErrMatchFull    = errors.New("match full")
	ErrSlotTaken    = errors.New("slot taken")
	ErrNotBound     = errors.New("connection not bound to match")
	ErrClosed       = errors.New("coordinator closed")
)

// WebSocket close codes used by the coordinator.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseTimeout   = 4000
)

// Conn is the transport view of one participant connection.
type Conn interface {
	Send(data []byte) error
	Close(code int, reason string) error
}

// Config tunes the coordinator and every match it creates.
type Config struct {
	Engine sim.Config
	// Match is the template for new runtimes. MatchID, Seed and CPU styles
	// are filled per match.
	Match match.Config

	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxMissedPings    int
	// InputLeadFrames is how far one side may run ahead before the stalled
	// side's last input is substituted.
	InputLeadFrames int
	StallTimeout    time.Duration
	// MaxBufferedFrames bounds how far ahead of the runtime inputs are kept.
	MaxBufferedFrames int
	// IdleTimeout discards matches nobody joined.
	IdleTimeout time.Duration
	InboxSize   int

	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Counters  *telemetry.Counters
	Now       func() time.Time
}

func DefaultConfig() Config {
	return Config{
		Engine:            sim.DefaultConfig(),
		Match:             match.DefaultConfig(),
		HeartbeatInterval: 2 * time.Second,
		HeartbeatTimeout:  10 * time.Second,
		MaxMissedPings:    2,
		InputLeadFrames:   8,
		StallTimeout:      250 * time.Millisecond,
		MaxBufferedFrames: 120,
		IdleTimeout:       2 * time.Minute,
		InboxSize:         256,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Engine.StepMs <= 0 {
		c.Engine = def.Engine
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = def.HeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if c.MaxMissedPings <= 0 {
		c.MaxMissedPings = def.MaxMissedPings
	}
	if c.InputLeadFrames <= 0 {
		c.InputLeadFrames = def.InputLeadFrames
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = def.StallTimeout
	}
	if c.MaxBufferedFrames <= 0 {
		c.MaxBufferedFrames = def.MaxBufferedFrames
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
	if c.Logger == nil {
		c.Logger = telemetry.Discard()
	}
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}
