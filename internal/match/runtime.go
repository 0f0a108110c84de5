package match

import (
	"math"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/combat"
	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/physics"
	"arena-duel/server/internal/rng"
)

// NoWinner marks a draw or an unfinished match.
const NoWinner = -1

// Fighter is the runtime's view of one participant: the combat state plus
// the countdowns for timed actions.
type Fighter struct {
	State  fighter.State `json:"state" msgpack:"state"`
	Weight float64       `json:"weight" msgpack:"weight"`
	Brain  *ai.Brain     `json:"brain,omitempty" msgpack:"brain"`

	// DodgeTimer > 0 means the fighter is invulnerable.
	DodgeTimer float64 `json:"dodgeTimer" msgpack:"dodgeTimer"`
	// GrabTimer resolves the pending grab when it reaches zero.
	GrabTimer  float64 `json:"grabTimer" msgpack:"grabTimer"`
	TauntTimer float64 `json:"tauntTimer" msgpack:"tauntTimer"`
	StunTimer  float64 `json:"stunTimer" msgpack:"stunTimer"`
	// GuardBroken stays set until guard climbs back over the threshold.
	GuardBroken bool        `json:"guardBroken" msgpack:"guardBroken"`
	LastInput   input.Frame `json:"lastInput" msgpack:"lastInput"`
}

// TickResult summarizes one tick.
type TickResult struct {
	Frame       uint64      `json:"frame"`
	Hits        []HitRecord `json:"hits,omitempty"`
	GuardBreaks []Slot      `json:"guardBreaks,omitempty"`
	Frozen      bool        `json:"frozen"`
	Ended       bool        `json:"ended"`
	Winner      int         `json:"winner"`
}

// Runtime owns both fighters for the lifetime of a match. It is not safe for
// concurrent use; the session layer serializes access per match.
type Runtime struct {
	cfg  Config
	lib  *moves.Library
	opts fighter.Options

	rng      rng.RNG
	frame    uint64
	hitLag   float64
	fighters [2]Fighter
	hits     []HitRecord
	ended    bool
	winner   int
}

// New builds a runtime at frame zero. The RNG seed is derived from the
// starting positions and cfg.Seed so both replicas agree without exchanging
// it.
func New(cfg Config, lib *moves.Library) *Runtime {
	cfg = cfg.normalized()
	if lib == nil {
		lib = moves.Default()
	}
	r := &Runtime{
		cfg: cfg,
		lib: lib,
		opts: fighter.Options{
			Limits:     cfg.Limits,
			Priority:   cfg.Priority,
			TechWindow: cfg.TechWindow,
			DashSpeed:  cfg.Physics.MaxSpeed * 0.95,
		},
		winner: NoWinner,
	}
	for i, fc := range cfg.Fighters {
		r.fighters[i] = Fighter{
			State:  fighter.NewState(fc.Position, fc.Facing, cfg.Limits),
			Weight: fc.Weight,
		}
		if fc.CPU != nil {
			r.fighters[i].Brain = ai.NewBrain(*fc.CPU)
		}
	}
	seed := rng.SeedFromPositions(cfg.Fighters[0].Position, cfg.Fighters[1].Position) ^ cfg.Seed
	if seed == 0 {
		seed = 1
	}
	r.rng.Reset(seed)
	return r
}

// Frame returns the number of ticks applied so far.
func (r *Runtime) Frame() uint64 { return r.frame }

// Ended reports whether a knockout finished the match.
func (r *Runtime) Ended() bool { return r.ended }

// Winner returns the winning slot or NoWinner.
func (r *Runtime) Winner() int { return r.winner }

// Fighter returns a copy of the fighter in slot. The brain is cloned so
// callers cannot disturb the CPU's decision state.
func (r *Runtime) Fighter(slot Slot) Fighter {
	f := r.fighters[slot]
	if f.Brain != nil {
		clone := *f.Brain
		f.Brain = &clone
	}
	return f
}

// IsCPU reports whether slot is driven by a brain.
func (r *Runtime) IsCPU(slot Slot) bool { return r.fighters[slot].Brain != nil }

// Library exposes the move library in use.
func (r *Runtime) Library() *moves.Library { return r.lib }

// DrainHits returns and clears the buffered hit records.
func (r *Runtime) DrainHits() []HitRecord {
	out := r.hits
	r.hits = nil
	return out
}

// Tick advances the match by dt frames using one input per slot. Inputs for
// CPU slots are ignored.
func (r *Runtime) Tick(inputs [2]input.Frame, dt float64) TickResult {
	if r.ended {
		return TickResult{Frame: r.frame, Ended: true, Winner: r.winner}
	}
	r.frame++
	result := TickResult{Frame: r.frame, Winner: NoWinner}

	start := [2]fighter.State{r.fighters[0].State, r.fighters[1].State}
	var in [2]input.Frame
	for i := range r.fighters {
		f := &r.fighters[i]
		in[i] = inputs[i]
		if f.Brain != nil {
			in[i] = f.Brain.Tick(r.frame, start[i], start[1-i], &r.rng, dt)
		}
		in[i].Frame = r.frame
	}

	simDt := dt
	if r.hitLag > 0 {
		result.Frozen = true
		simDt = 0
		r.hitLag = math.Max(0, r.hitLag-dt)
		for i := range in {
			in[i] = in[i].WithoutAttacks()
		}
	}

	for i := range r.fighters {
		r.advanceTimers(Slot(i), &in[i], simDt, &result)
	}
	for i := range r.fighters {
		f := &r.fighters[i]
		prevMove := f.State.MoveID
		f.State = fighter.Step(f.State, in[i], start[1-i], simDt, r.lib, r.opts)
		if f.State.MoveID != prevMove {
			r.onMoveChanged(Slot(i))
		}
		f.LastInput = in[i]
	}
	for i := range r.fighters {
		r.integrate(Slot(i), in[i], simDt)
	}

	if !result.Frozen {
		var pending [2][]combat.HitResolution
		for i := range r.fighters {
			def := r.fighters[1-i]
			if def.DodgeTimer > 0 {
				continue
			}
			pending[i] = combat.Resolve(&r.fighters[i].State, def.State, r.lib, def.Weight)
		}
		for i := range pending {
			for _, hit := range pending[i] {
				r.applyHit(Slot(i), hit, in[1-i], &result)
			}
		}
	}

	for i := range r.fighters {
		r.checkGuardBreak(Slot(i), &result)
		r.fighters[i].State.Clamp(r.cfg.Limits)
	}
	r.checkKnockout(&result)
	return result
}

func (r *Runtime) onMoveChanged(slot Slot) {
	f := &r.fighters[slot]
	if f.State.MoveID == "" {
		return
	}
	def, ok := r.lib.Get(f.State.MoveID)
	if !ok {
		return
	}
	switch def.Category {
	case moves.CategoryDodge:
		f.DodgeTimer = r.cfg.DodgeFrames
	case moves.CategoryGrab:
		f.GrabTimer = r.cfg.GrabDelay
	case moves.CategoryTaunt:
		f.TauntTimer = r.cfg.TauntFrames
	}
}

// advanceTimers runs the per-fighter countdowns. It may rewrite the input
// the state machine sees this tick.
func (r *Runtime) advanceTimers(slot Slot, in *input.Frame, dt float64, result *TickResult) {
	f := &r.fighters[slot]
	if f.StunTimer > 0 {
		*in = in.WithoutDefense()
		f.StunTimer = math.Max(0, f.StunTimer-dt)
	}
	if f.TauntTimer > 0 {
		*in = in.Neutral()
		f.TauntTimer -= dt
		if f.TauntTimer <= 0 {
			f.TauntTimer = 0
			f.State.Special += r.cfg.TauntSpecialGain
			f.State.Clamp(r.cfg.Limits)
		}
	}
	if f.DodgeTimer > 0 {
		f.DodgeTimer -= dt
		if f.DodgeTimer <= 0 {
			f.DodgeTimer = 0
			if f.State.MoveID == moves.DodgeMoveID {
				f.State.ClearMove()
				f.State.Action = fighter.ActionIdle
			}
		}
	}
	if f.GrabTimer > 0 {
		f.GrabTimer -= dt
		if f.GrabTimer <= 0 {
			f.GrabTimer = 0
			r.resolveGrab(slot, result)
		}
	}
}

func (r *Runtime) integrate(slot Slot, in input.Frame, dt float64) {
	f := &r.fighters[slot]
	st := &f.State
	wasAirborne := st.Airborne

	intent := physics.Intent{}
	switch st.Action {
	case fighter.ActionIdle, fighter.ActionWalk, fighter.ActionDash, fighter.ActionJump,
		fighter.ActionFall, fighter.ActionTech:
		intent.MoveX = in.Horizontal()
		intent.Jump = in.Jump
	case fighter.ActionAttack:
		if st.Airborne {
			intent.MoveX = in.Horizontal()
		}
	case fighter.ActionHitstun, fighter.ActionGrabbed:
		intent.Launched = true
	}
	// Airborne fighters may also drift back to fall through a ledge.
	drop := in.Down || (st.Airborne && in.Holds(input.DirectionBack, st.Facing))
	if drop && !in.Block && (st.Airborne || physics.OverPlatform(r.cfg.Physics, st.Position)) {
		intent.DropThrough = true
	}

	body := physics.Step(r.cfg.Physics, physics.Body{
		Position: st.Position,
		Velocity: st.Velocity,
		Airborne: st.Airborne,
	}, intent, dt)
	st.Position, st.Velocity, st.Airborne = body.Position, body.Velocity, body.Airborne

	if wasAirborne && !st.Airborne && st.MoveID != "" {
		if def, ok := r.lib.Get(st.MoveID); ok && def.Restriction == moves.RestrictAerial {
			st.ClearMove()
			st.Action = fighter.ActionLanding
		}
	}
}

func (r *Runtime) checkKnockout(result *TickResult) {
	hostOut := r.fighters[SlotHost].State.Health <= 0
	guestOut := r.fighters[SlotGuest].State.Health <= 0
	if !hostOut && !guestOut {
		return
	}
	r.ended = true
	switch {
	case hostOut && guestOut:
		r.winner = NoWinner
	case hostOut:
		r.winner = int(SlotGuest)
	default:
		r.winner = int(SlotHost)
	}
	result.Ended, result.Winner = true, r.winner
	r.publishKnockout(hostOut, guestOut)
}
