// Package match runs the authoritative per-tick simulation for one duel.
package match

import (
	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/physics"
	"arena-duel/server/logging"
)

// Slot indexes the two fighters. Host is always slot 0.
type Slot int

const (
	SlotHost  Slot = 0
	SlotGuest Slot = 1
)

func (s Slot) String() string {
	if s == SlotGuest {
		return "guest"
	}
	return "host"
}

// Other returns the opposing slot.
func (s Slot) Other() Slot {
	return 1 - s
}

// FighterConfig describes one participant at match start.
type FighterConfig struct {
	Position mgl64.Vec3
	Facing   int
	Weight   float64
	// CPU selects a brain style; nil means inputs come from the caller.
	CPU *ai.Style
}

// Config tunes a Runtime. Durations are in frames.
type Config struct {
	MatchID string
	// Seed is mixed into the position hash that seeds the match RNG.
	Seed     uint32
	Physics  physics.Config
	Limits   fighter.Limits
	Fighters [2]FighterConfig
	// Priority overrides the library's move start order.
	Priority []string

	GuardBreakThreshold float64
	GuardBreakChip      float64
	GuardBreakStun      float64
	GuardBreakKnockback float64

	DodgeFrames      float64
	GrabDelay        float64
	GrabRange        float64
	GrabDamage       float64
	GrabStun         float64
	GrabKnockback    moves.KnockbackCurve
	GrabAngle        float64
	TauntFrames      float64
	TauntSpecialGain float64

	CounterHitLagBonus  float64
	CounterHitstunBonus float64
	BlockPushback       float64
	TechWindow          float64

	Publisher logging.Publisher
}

// DefaultConfig returns a human-vs-human duel on the default arena.
func DefaultConfig() Config {
	return Config{
		Physics: physics.DefaultConfig(),
		Limits:  fighter.DefaultLimits(),
		Fighters: [2]FighterConfig{
			{Position: mgl64.Vec3{-2, 0, 0}, Facing: 1, Weight: 1},
			{Position: mgl64.Vec3{2, 0, 0}, Facing: -1, Weight: 1},
		},
		GuardBreakThreshold: 5,
		GuardBreakChip:      8,
		GuardBreakStun:      45,
		GuardBreakKnockback: 0.22,
		DodgeFrames:         18,
		GrabDelay:           8,
		GrabRange:           1.3,
		GrabDamage:          9,
		GrabStun:            32,
		GrabKnockback:       moves.KnockbackCurve{Base: 2.5, Scaling: 0.3, WeightMultiplier: 0.3},
		GrabAngle:           40,
		TauntFrames:         60,
		TauntSpecialGain:    15,
		CounterHitLagBonus:  2,
		CounterHitstunBonus: 6,
		BlockPushback:       0.35,
		TechWindow:          4,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Limits == (fighter.Limits{}) {
		c.Limits = def.Limits
	}
	if c.Physics.MaxSpeed == 0 {
		c.Physics = def.Physics
	}
	for i := range c.Fighters {
		if c.Fighters[i].Facing == 0 {
			c.Fighters[i].Facing = def.Fighters[i].Facing
		}
		if c.Fighters[i].Weight == 0 {
			c.Fighters[i].Weight = def.Fighters[i].Weight
		}
	}
	if c.GuardBreakThreshold == 0 {
		c.GuardBreakThreshold = def.GuardBreakThreshold
	}
	if c.Publisher == nil {
		c.Publisher = logging.NopPublisher()
	}
	return c
}
