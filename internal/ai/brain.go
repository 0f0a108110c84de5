// Package ai drives CPU fighters. A Brain emits an input.Frame each tick, so
// the state machine cannot tell it apart from a human player.
package ai

import (
	"math"

	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/rng"
)

// State is the brain's current intention.
type State string

const (
	StateIdle      State = "idle"
	StateChase     State = "chase"
	StateRetreat   State = "retreat"
	StateAttack    State = "attack"
	StateBlock     State = "block"
	StateJump      State = "jump"
	StateAirAttack State = "air_attack"
	StateDodge     State = "dodge"
	StateGrab      State = "grab"
	StateTaunt     State = "taunt"
)

var pickOrder = []State{
	StateIdle, StateChase, StateRetreat, StateAttack, StateBlock,
	StateJump, StateAirAttack, StateDodge, StateGrab, StateTaunt,
}

const (
	grabRange       = 1.3
	specialReserve  = 50
	threatRangeMult = 1.5
)

// Brain is the complete, serializable CPU policy state.
type Brain struct {
	Style         Style        `json:"style" msgpack:"style"`
	State         State        `json:"state" msgpack:"state"`
	DecisionTimer float64      `json:"decisionTimer" msgpack:"decisionTimer"`
	AttackTimer   float64      `json:"attackTimer" msgpack:"attackTimer"`
	Attack        input.Button `json:"attack,omitempty" msgpack:"attack"`
	Pressed       bool         `json:"pressed" msgpack:"pressed"`
}

// NewBrain returns an idle brain that decides on its first tick.
func NewBrain(style Style) *Brain {
	return &Brain{Style: style, State: StateIdle}
}

// Tick advances the brain by dt frames and returns its controls for frame.
func (b *Brain) Tick(frame uint64, self, opp fighter.State, r *rng.RNG, dt float64) input.Frame {
	b.DecisionTimer -= dt
	b.AttackTimer -= dt

	dist := math.Abs(opp.Position[0] - self.Position[0])
	inStrike := dist <= b.Style.StrikeRange
	switch {
	case b.AttackTimer <= 0 && inStrike && self.Actionable():
		b.enter(StateAttack, r)
	case b.DecisionTimer <= 0:
		b.enter(b.decide(self, opp, dist, r), r)
	}

	return b.controls(frame, self, opp, dist, r)
}

func (b *Brain) enter(next State, r *rng.RNG) {
	b.State = next
	b.Pressed = false
	b.DecisionTimer = b.Style.DecisionInterval * (0.75 + 0.5*r.Float64())
	if next == StateAttack || next == StateAirAttack || next == StateGrab {
		b.AttackTimer = b.Style.AttackCadence
	}
}

func (b *Brain) decide(self, opp fighter.State, dist float64, r *rng.RNG) State {
	w := b.Style.Weights
	threatened := opp.Attacking() && dist <= b.Style.StrikeRange*threatRangeMult
	switch {
	case threatened:
		w.Block *= 3
		w.Dodge *= 2.5
		w.Attack *= 0.4
	case dist > b.Style.PreferredRange*1.25:
		w.Chase *= 2
		w.Retreat *= 0.2
		w.Attack = 0
		w.Grab = 0
	case dist < b.Style.PreferredRange*0.75:
		w.Retreat *= 1.8
	}
	if dist > b.Style.StrikeRange {
		w.Attack *= 0.3
		w.Grab = 0
	}
	if dist < b.Style.PreferredRange*1.5 {
		w.Taunt = 0
	}
	if self.Guard <= fighter.DodgeGuardThreshold {
		w.Dodge = 0
	}
	if self.Airborne {
		w.Jump = 0
		w.Block = 0
	}

	idx := r.Pick([]float64{
		w.Idle, w.Chase, w.Retreat, w.Attack, w.Block,
		w.Jump, w.AirAttack, w.Dodge, w.Grab, w.Taunt,
	})
	if idx < 0 {
		return StateIdle
	}
	return pickOrder[idx]
}

func (b *Brain) controls(frame uint64, self, opp fighter.State, dist float64, r *rng.RNG) input.Frame {
	out := input.Frame{Frame: frame}
	toward := 1
	if opp.Position[0] < self.Position[0] {
		toward = -1
	}

	switch b.State {
	case StateChase:
		hold(&out, toward)
		if dist <= b.Style.PreferredRange {
			b.State = StateIdle
		}
	case StateRetreat:
		hold(&out, -toward)
	case StateAttack:
		if !b.Pressed {
			b.Attack = b.chooseAttack(self, r)
			b.Pressed = true
		}
		if self.Actionable() || self.MoveID != "" {
			press(&out, b.Attack)
		}
		if self.MoveID != "" {
			b.State = StateIdle
		}
	case StateBlock:
		out.Block = true
		out.Down = opp.Attacking() && opp.Position[1] <= self.Position[1] && r.Chance(0.3)
	case StateJump:
		if !self.Airborne {
			out.Jump = true
			hold(&out, toward)
		} else {
			b.State = StateAirAttack
		}
	case StateAirAttack:
		switch {
		case !self.Airborne && !b.Pressed:
			// Air-jump attempts can fail, leaving the brain grounded.
			b.Pressed = true
			if r.Chance(b.Style.AirJumpChance) {
				out.Jump = true
				hold(&out, toward)
			} else {
				b.State = StateIdle
			}
		case self.Airborne:
			hold(&out, toward)
			if r.Chance(0.5) {
				out.Light = true
			} else {
				out.Heavy = true
			}
			if self.MoveID != "" {
				b.State = StateIdle
			}
		}
	case StateDodge:
		out.Dodge = true
		b.State = StateRetreat
	case StateGrab:
		if dist <= grabRange {
			out.Grab = true
			b.State = StateIdle
		} else {
			hold(&out, toward)
		}
	case StateTaunt:
		if !b.Pressed {
			out.Taunt = true
			b.Pressed = true
		}
	}
	return out
}

func (b *Brain) chooseAttack(self fighter.State, r *rng.RNG) input.Button {
	if self.Special >= specialReserve && r.Chance(0.5) {
		return input.ButtonSpecial
	}
	if r.Chance(0.35) {
		return input.ButtonHeavy
	}
	return input.ButtonLight
}

func hold(f *input.Frame, dir int) {
	if dir > 0 {
		f.Right = true
	} else {
		f.Left = true
	}
}

func press(f *input.Frame, b input.Button) {
	switch b {
	case input.ButtonLight:
		f.Light = true
	case input.ButtonHeavy:
		f.Heavy = true
	case input.ButtonSpecial:
		f.Special = true
	case input.ButtonGrab:
		f.Grab = true
	}
}
