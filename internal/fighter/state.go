// Package fighter implements the per-fighter combat state machine. Step is a
// pure function; the match runtime owns the only mutable copy of each State.
package fighter

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Action is the fighter's coarse state.
type Action string

const (
	ActionIdle      Action = "idle"
	ActionWalk      Action = "walk"
	ActionDash      Action = "dash"
	ActionJump      Action = "jump"
	ActionFall      Action = "fall"
	ActionAttack    Action = "attack"
	ActionHitstun   Action = "hitstun"
	ActionBlockstun Action = "blockstun"
	ActionGrabbed   Action = "grabbed"
	ActionLanding   Action = "landing"
	ActionDodge     Action = "dodge"
	ActionTech      Action = "tech"
)

// Epsilon is the move frame assigned when a move starts.
const Epsilon = 1e-3

// HitKey identifies one hitbox of one move.
type HitKey struct {
	MoveID   string `json:"moveId" msgpack:"moveId"`
	HitboxID string `json:"hitboxId" msgpack:"hitboxId"`
}

func (k HitKey) less(o HitKey) bool {
	if k.MoveID != o.MoveID {
		return k.MoveID < o.MoveID
	}
	return k.HitboxID < o.HitboxID
}

// Limits are the configured meter maxima.
type Limits struct {
	MaxHealth  float64 `json:"maxHealth"`
	MaxGuard   float64 `json:"maxGuard"`
	MaxStamina float64 `json:"maxStamina"`
	MaxSpecial float64 `json:"maxSpecial"`
}

// DefaultLimits returns 100 for every meter.
func DefaultLimits() Limits {
	return Limits{MaxHealth: 100, MaxGuard: 100, MaxStamina: 100, MaxSpecial: 100}
}

// State is a fighter's complete combat state.
type State struct {
	Action          Action     `json:"action" msgpack:"action"`
	Facing          int        `json:"facing" msgpack:"facing"`
	MoveID          string     `json:"moveId,omitempty" msgpack:"moveId"`
	MoveFrame       float64    `json:"moveFrame" msgpack:"moveFrame"`
	HitstunFrames   float64    `json:"hitstunFrames" msgpack:"hitstunFrames"`
	BlockstunFrames float64    `json:"blockstunFrames" msgpack:"blockstunFrames"`
	Health          float64    `json:"health" msgpack:"health"`
	Guard           float64    `json:"guard" msgpack:"guard"`
	Stamina         float64    `json:"stamina" msgpack:"stamina"`
	Special         float64    `json:"special" msgpack:"special"`
	ComboCount      int        `json:"comboCount" msgpack:"comboCount"`
	Position        mgl64.Vec3 `json:"position" msgpack:"position"`
	Velocity        mgl64.Vec3 `json:"velocity" msgpack:"velocity"`
	Airborne        bool       `json:"airborne" msgpack:"airborne"`
	HitConfirmed    bool       `json:"hitConfirmed" msgpack:"hitConfirmed"`
	// Registry holds the hitboxes of the current move that already connected,
	// sorted so encodings stay stable.
	Registry []HitKey `json:"registry,omitempty" msgpack:"registry"`
}

// NewState returns a fresh fighter standing at pos with full meters.
func NewState(pos mgl64.Vec3, facing int, limits Limits) State {
	if facing >= 0 {
		facing = 1
	} else {
		facing = -1
	}
	return State{
		Action:   ActionIdle,
		Facing:   facing,
		Health:   limits.MaxHealth,
		Guard:    limits.MaxGuard,
		Stamina:  limits.MaxStamina,
		Special:  0,
		Position: pos,
	}
}

// StartMove switches to a new move instance.
func (s *State) StartMove(id string) {
	s.MoveID = id
	s.MoveFrame = Epsilon
	s.Registry = nil
	s.HitConfirmed = false
}

// ClearMove ends the active move.
func (s *State) ClearMove() {
	s.MoveID = ""
	s.MoveFrame = 0
	s.Registry = nil
	s.HitConfirmed = false
}

// Registered reports whether key already connected during this move.
func (s State) Registered(key HitKey) bool {
	i := sort.Search(len(s.Registry), func(i int) bool { return !s.Registry[i].less(key) })
	return i < len(s.Registry) && s.Registry[i] == key
}

// Register records key and reports whether it was new. The slice is always
// reallocated so copies of the state never observe the insert.
func (s *State) Register(key HitKey) bool {
	i := sort.Search(len(s.Registry), func(i int) bool { return !s.Registry[i].less(key) })
	if i < len(s.Registry) && s.Registry[i] == key {
		return false
	}
	next := make([]HitKey, 0, len(s.Registry)+1)
	next = append(next, s.Registry[:i]...)
	next = append(next, key)
	next = append(next, s.Registry[i:]...)
	s.Registry = next
	return true
}

// Actionable reports whether the fighter can start a new action.
func (s State) Actionable() bool {
	return s.HitstunFrames <= 0 && s.BlockstunFrames <= 0 && s.MoveID == ""
}

// Attacking reports whether an attack-class move is active.
func (s State) Attacking() bool {
	return s.Action == ActionAttack
}

// Clamp keeps every meter inside [0, max].
func (s *State) Clamp(l Limits) {
	s.Health = clamp(s.Health, l.MaxHealth)
	s.Guard = clamp(s.Guard, l.MaxGuard)
	s.Stamina = clamp(s.Stamina, l.MaxStamina)
	s.Special = clamp(s.Special, l.MaxSpecial)
	if s.HitstunFrames < 0 {
		s.HitstunFrames = 0
	}
	if s.BlockstunFrames < 0 {
		s.BlockstunFrames = 0
	}
}

func clamp(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
