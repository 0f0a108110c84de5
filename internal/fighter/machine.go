package fighter

import (
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/moves"
)

const (
	// DodgeGuardThreshold is the guard a fighter needs to start a dodge.
	DodgeGuardThreshold = 10
	// DodgeGuardCost is deducted when a dodge starts.
	DodgeGuardCost = 12

	staminaRegen     = 0.9
	guardRegen       = 0.7
	specialRegen     = 0.35
	airStaminaFactor = 0.5
	attackSpecialMul = 0.8
)

// Options tune a Step call.
type Options struct {
	Limits Limits
	// Priority is the order in which moves are considered for starting.
	// Empty means the library's authored order.
	Priority []string
	// TechWindow lets a grounded fighter holding block recover from the last
	// frames of hitstun early. Zero disables teching.
	TechWindow float64
	// DashSpeed is the horizontal speed above which walking reads as a dash.
	DashSpeed float64
}

// Step advances s by dt frames. dt == 0 is valid and is how hit-lag freezes
// the state machine; meters are still clamped.
func Step(s State, in input.Frame, opp State, dt float64, lib *moves.Library, opts Options) State {
	if s.HitstunFrames > 0 {
		if opts.TechWindow > 0 && !s.Airborne && s.Action != ActionGrabbed && in.Block && s.HitstunFrames <= opts.TechWindow {
			s.HitstunFrames = 0
			s.Action = ActionTech
			regen(&s, dt)
			s.Clamp(opts.Limits)
			return s
		}
		s.HitstunFrames -= dt
		if s.Action != ActionGrabbed {
			s.Action = ActionHitstun
		}
		regen(&s, dt)
		s.Clamp(opts.Limits)
		return s
	}
	if s.BlockstunFrames > 0 {
		s.BlockstunFrames -= dt
		s.Action = ActionBlockstun
		regen(&s, dt)
		s.Clamp(opts.Limits)
		return s
	}

	if in.Dodge && s.Guard > DodgeGuardThreshold && s.MoveID != moves.DodgeMoveID {
		s.Guard -= DodgeGuardCost
		s.StartMove(moves.DodgeMoveID)
		s.Action = ActionDodge
		s.Clamp(opts.Limits)
		return s
	}

	if s.MoveID != "" {
		if next, handled := advanceMove(s, in, dt, lib); handled {
			regen(&next, dt)
			next.Clamp(opts.Limits)
			return next
		}
		s.ClearMove()
	}

	if next, started := startMove(s, in, lib, opts.Priority); started {
		next.Clamp(opts.Limits)
		return next
	}

	s.ComboCount = 0
	if !s.Airborne {
		face(&s, opp)
	}
	switch {
	case s.Airborne && s.Velocity[1] > 0:
		s.Action = ActionJump
	case s.Airborne:
		s.Action = ActionFall
	case in.Horizontal() != 0 && opts.DashSpeed > 0 && abs(s.Velocity[0]) >= opts.DashSpeed:
		s.Action = ActionDash
	case in.Horizontal() != 0:
		s.Action = ActionWalk
	default:
		s.Action = ActionIdle
	}
	regen(&s, dt)
	s.Clamp(opts.Limits)
	return s
}

// advanceMove steps the active move. handled is false when the move finished
// or is unknown and the caller should fall through.
func advanceMove(s State, in input.Frame, dt float64, lib *moves.Library) (State, bool) {
	def, ok := lib.Get(s.MoveID)
	if !ok {
		return s, false
	}
	s.MoveFrame += dt
	if s.MoveFrame > def.TotalFrames {
		s.ClearMove()
		if def.Restriction == moves.RestrictAerial {
			s.Action = ActionFall
		} else {
			s.Action = ActionLanding
		}
		return s, true
	}
	for _, branch := range def.Cancels {
		if !in.Pressed(branch.Input) {
			continue
		}
		open := branch.Window.Contains(s.MoveFrame) || (branch.Trigger == moves.TriggerOnHit && s.HitConfirmed)
		if !open {
			continue
		}
		target, ok := lib.Get(branch.Target)
		if !ok || !target.Affordable(s.Stamina, s.Guard, s.Special) {
			continue
		}
		pay(&s, target.Cost)
		s.StartMove(target.ID)
		s.Action = actionFor(target)
		return s, true
	}
	s.Action = actionFor(def)
	return s, true
}

func startMove(s State, in input.Frame, lib *moves.Library, priority []string) (State, bool) {
	if len(priority) == 0 {
		priority = lib.Priority()
	}
	for _, id := range priority {
		def, ok := lib.Get(id)
		if !ok || def.Category == moves.CategoryDodge || def.Input == input.ButtonNone {
			continue
		}
		if !in.Pressed(def.Input) || !in.Holds(def.Direction, s.Facing) {
			continue
		}
		if !def.Restriction.Allows(s.Airborne) || !def.Affordable(s.Stamina, s.Guard, s.Special) {
			continue
		}
		pay(&s, def.Cost)
		s.StartMove(def.ID)
		s.Action = actionFor(def)
		return s, true
	}
	return s, false
}

func actionFor(def moves.Definition) Action {
	if def.Category == moves.CategoryDodge {
		return ActionDodge
	}
	return ActionAttack
}

func pay(s *State, cost moves.Resources) {
	s.Stamina -= cost.Stamina
	s.Guard -= cost.Guard
	s.Special -= cost.Special
}

// regen applies passive meter recovery for dt frames.
func regen(s *State, dt float64) {
	if dt <= 0 {
		return
	}
	stamina := staminaRegen
	if s.Airborne {
		stamina *= airStaminaFactor
	}
	s.Stamina += stamina * dt
	if s.Action != ActionBlockstun {
		s.Guard += guardRegen * dt
	}
	special := specialRegen
	if s.Action == ActionAttack {
		special *= attackSpecialMul
	}
	s.Special += special * dt
}

func face(s *State, opp State) {
	switch {
	case opp.Position[0] > s.Position[0]:
		s.Facing = 1
	case opp.Position[0] < s.Position[0]:
		s.Facing = -1
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
