// Package moves holds the immutable move library shared by every fighter in
// a match. Definitions are authored in YAML and validated once at load.
package moves

import (
	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/input"
)

// Category groups moves for the state machine and the CPU brain.
type Category string

const (
	CategoryLight   Category = "light"
	CategoryHeavy   Category = "heavy"
	CategorySpecial Category = "special"
	CategoryAerial  Category = "aerial"
	CategoryGrab    Category = "grab"
	CategoryDodge   Category = "dodge"
	CategoryTaunt   Category = "taunt"
)

// GuardType controls how a hitbox interacts with blocking.
type GuardType string

const (
	GuardMid         GuardType = "mid"
	GuardLow         GuardType = "low"
	GuardHigh        GuardType = "high"
	GuardThrow       GuardType = "throw"
	GuardUnblockable GuardType = "unblockable"
)

// Restriction limits where a move may be started.
type Restriction string

const (
	RestrictAny      Restriction = "any"
	RestrictGrounded Restriction = "grounded"
	RestrictAerial   Restriction = "aerial"
)

// Allows reports whether a fighter with the given airborne flag may start
// the move.
func (r Restriction) Allows(airborne bool) bool {
	switch r {
	case RestrictGrounded:
		return !airborne
	case RestrictAerial:
		return airborne
	default:
		return true
	}
}

// CancelTrigger selects the condition that opens a cancel branch.
type CancelTrigger string

const (
	TriggerInput CancelTrigger = "input"
	TriggerOnHit CancelTrigger = "onHit"
)

// DodgeMoveID is the reserved id the state machine uses for dodges.
const DodgeMoveID = "dodge"

// Vec3 is the authored form of an offset. YAML documents use named axes.
type Vec3 struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Vec converts the authored offset to a math vector.
func (v Vec3) Vec() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// FrameWindow is an inclusive range of move frames.
type FrameWindow struct {
	Start float64 `yaml:"start" json:"start" jsonschema:"minimum=0"`
	End   float64 `yaml:"end" json:"end" jsonschema:"minimum=0"`
}

// Contains reports whether frame lies inside the window.
func (w FrameWindow) Contains(frame float64) bool {
	return frame >= w.Start && frame <= w.End
}

// KnockbackCurve parametrizes launch strength.
type KnockbackCurve struct {
	Base             float64 `yaml:"base" json:"base"`
	Scaling          float64 `yaml:"scaling" json:"scaling"`
	WeightMultiplier float64 `yaml:"weightMultiplier" json:"weightMultiplier"`
}

// Hitbox is one damage volume on a move.
type Hitbox struct {
	ID          string         `yaml:"id" json:"id" jsonschema:"minLength=1"`
	Radius      float64        `yaml:"radius" json:"radius" jsonschema:"exclusiveMinimum=0"`
	Height      float64        `yaml:"height" json:"height" jsonschema:"exclusiveMinimum=0"`
	Offset      Vec3           `yaml:"offset" json:"offset"`
	Damage      float64        `yaml:"damage" json:"damage" jsonschema:"minimum=0"`
	Knockback   KnockbackCurve `yaml:"knockback" json:"knockback"`
	Guard       GuardType      `yaml:"guard" json:"guard" jsonschema:"enum=mid,enum=low,enum=high,enum=throw,enum=unblockable"`
	HitLag      float64        `yaml:"hitLag" json:"hitLag" jsonschema:"minimum=0"`
	LaunchAngle float64        `yaml:"launchAngle" json:"launchAngle" jsonschema:"description=Degrees above the horizontal"`
	Hitstun     float64        `yaml:"hitstun" json:"hitstun" jsonschema:"minimum=0"`
	Blockstun   float64        `yaml:"blockstun" json:"blockstun" jsonschema:"minimum=0"`
}

// CancelBranch lets an active move be interrupted by another.
type CancelBranch struct {
	Target  string        `yaml:"target" json:"target" jsonschema:"minLength=1"`
	Window  FrameWindow   `yaml:"window" json:"window"`
	Input   input.Button  `yaml:"input" json:"input"`
	Trigger CancelTrigger `yaml:"trigger" json:"trigger" jsonschema:"enum=input,enum=onHit"`
}

// Resources is a stamina/guard/special triple used for costs and gains.
type Resources struct {
	Stamina float64 `yaml:"stamina,omitempty" json:"stamina,omitempty"`
	Guard   float64 `yaml:"guard,omitempty" json:"guard,omitempty"`
	Special float64 `yaml:"special,omitempty" json:"special,omitempty"`
}

// Definition describes one move.
type Definition struct {
	ID          string          `yaml:"id" json:"id" jsonschema:"title=Move id,pattern=^[a-z0-9_\-]+$,minLength=1"`
	Category    Category        `yaml:"category" json:"category"`
	Input       input.Button    `yaml:"input" json:"input" jsonschema:"description=Button that starts the move"`
	Direction   input.Direction `yaml:"direction,omitempty" json:"direction,omitempty"`
	TotalFrames float64         `yaml:"totalFrames" json:"totalFrames" jsonschema:"exclusiveMinimum=0"`
	Startup     FrameWindow     `yaml:"startup" json:"startup"`
	Active      FrameWindow     `yaml:"active" json:"active"`
	Recovery    FrameWindow     `yaml:"recovery" json:"recovery"`
	Hitboxes    []Hitbox        `yaml:"hitboxes,omitempty" json:"hitboxes,omitempty"`
	Cancels     []CancelBranch  `yaml:"cancels,omitempty" json:"cancels,omitempty"`
	Cost        Resources       `yaml:"cost,omitempty" json:"cost,omitempty"`
	OnHit       Resources       `yaml:"onHit,omitempty" json:"onHit,omitempty"`
	Restriction Restriction     `yaml:"restriction" json:"restriction" jsonschema:"enum=any,enum=grounded,enum=aerial"`
}

// Affordable reports whether the given meters cover the move's cost.
func (d Definition) Affordable(stamina, guard, special float64) bool {
	return stamina >= d.Cost.Stamina && guard >= d.Cost.Guard && special >= d.Cost.Special
}

// Hitbox returns the hitbox with the given id.
func (d Definition) Hitbox(id string) (Hitbox, bool) {
	for _, hb := range d.Hitboxes {
		if hb.ID == id {
			return hb, true
		}
	}
	return Hitbox{}, false
}

// Document is the on-disk shape of a move library file.
type Document struct {
	Version int          `yaml:"version" json:"version"`
	Moves   []Definition `yaml:"moves" json:"moves"`
}
