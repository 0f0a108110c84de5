package match

import (
	"context"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/combat"
	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/moves"
	"arena-duel/server/logging"
	logcombat "arena-duel/server/logging/combat"
)

// HitRecord is the telemetry row written for every hit that connected.
type HitRecord struct {
	MatchID        string         `json:"matchId" msgpack:"matchId"`
	Frame          uint64         `json:"frame" msgpack:"frame"`
	Attacker       Slot           `json:"attacker" msgpack:"attacker"`
	Defender       Slot           `json:"defender" msgpack:"defender"`
	MoveID         string         `json:"moveId" msgpack:"moveId"`
	HitboxID       string         `json:"hitboxId" msgpack:"hitboxId"`
	Damage         float64        `json:"damage" msgpack:"damage"`
	GuardDamage    float64        `json:"guardDamage" msgpack:"guardDamage"`
	Knockback      [3]float64     `json:"knockback" msgpack:"knockback"`
	HitLag         float64        `json:"hitLag" msgpack:"hitLag"`
	LaunchAngle    float64        `json:"launchAngle" msgpack:"launchAngle"`
	CounterHit     bool           `json:"counterHit" msgpack:"counterHit"`
	Blocked        bool           `json:"blocked" msgpack:"blocked"`
	AttackerAction fighter.Action `json:"attackerAction" msgpack:"attackerAction"`
	DefenderAction fighter.Action `json:"defenderAction" msgpack:"defenderAction"`
	DefenderHealth float64        `json:"defenderHealth" msgpack:"defenderHealth"`
	ComboCount     int            `json:"comboCount" msgpack:"comboCount"`
}

func (h HitRecord) payload() logcombat.HitPayload {
	return logcombat.HitPayload{
		Frame:          h.Frame,
		MoveID:         h.MoveID,
		HitboxID:       h.HitboxID,
		Damage:         h.Damage,
		GuardDamage:    h.GuardDamage,
		Knockback:      h.Knockback,
		HitLag:         int(math.Round(h.HitLag)),
		LaunchAngle:    h.LaunchAngle,
		CounterHit:     h.CounterHit,
		Blocked:        h.Blocked,
		AttackerAction: string(h.AttackerAction),
		DefenderAction: string(h.DefenderAction),
		DefenderHealth: h.DefenderHealth,
		ComboCount:     h.ComboCount,
	}
}

func fighterRef(slot Slot) logging.EntityRef {
	return logging.FighterRef(slot.String())
}

// applyHit folds one resolution into both fighters. defIn is the defender's
// input for this tick and decides whether the hit is blocked.
func (r *Runtime) applyHit(attacker Slot, hit combat.HitResolution, defIn input.Frame, result *TickResult) {
	att := &r.fighters[attacker].State
	defender := attacker.Other()
	df := &r.fighters[defender]
	def := &df.State

	blocked := combat.CanBlock(*def, *att, hit, defIn.Block, defIn.Down)
	if blocked {
		def.Guard -= hit.GuardDamage
		def.BlockstunFrames = hit.Blockstun
		def.Action = fighter.ActionBlockstun
		def.Velocity[0] += hit.Knockback[0] * r.cfg.BlockPushback
	} else {
		hitstun := hit.Hitstun
		defLag := hit.HitLag
		if hit.CounterHit {
			hitstun += r.cfg.CounterHitstunBonus
			defLag += r.cfg.CounterHitLagBonus
		}
		def.Health -= hit.Damage
		def.ClearMove()
		def.HitstunFrames = hitstun
		def.BlockstunFrames = 0
		def.Action = fighter.ActionHitstun
		def.Velocity = hit.Knockback
		if hit.Knockback[1] > 0 {
			def.Airborne = true
		}
		def.ComboCount++
		df.DodgeTimer, df.GrabTimer, df.TauntTimer = 0, 0, 0

		if move, ok := r.lib.Get(hit.MoveID); ok {
			att.Stamina += move.OnHit.Stamina
			att.Guard += move.OnHit.Guard
			att.Special += move.OnHit.Special
		}
		att.HitConfirmed = true
		r.hitLag = math.Max(r.hitLag, math.Max(hit.HitLag, defLag))
	}
	att.Clamp(r.cfg.Limits)
	def.Clamp(r.cfg.Limits)

	r.record(HitRecord{
		MatchID:        r.cfg.MatchID,
		Frame:          r.frame,
		Attacker:       attacker,
		Defender:       defender,
		MoveID:         hit.MoveID,
		HitboxID:       hit.HitboxID,
		Damage:         hit.Damage,
		GuardDamage:    hit.GuardDamage,
		Knockback:      [3]float64(hit.Knockback),
		HitLag:         hit.HitLag,
		LaunchAngle:    hit.LaunchAngle,
		CounterHit:     hit.CounterHit,
		Blocked:        blocked,
		AttackerAction: hit.AttackerAction,
		DefenderAction: hit.DefenderAction,
		DefenderHealth: def.Health,
		ComboCount:     def.ComboCount,
	}, result)
}

// resolveGrab checks range when the grab timer expires. Dodging or airborne
// targets escape.
func (r *Runtime) resolveGrab(slot Slot, result *TickResult) {
	att := &r.fighters[slot].State
	if att.MoveID == "" {
		return
	}
	if move, ok := r.lib.Get(att.MoveID); !ok || move.Category != moves.CategoryGrab {
		return
	}
	target := &r.fighters[slot.Other()]
	def := &target.State
	if math.Abs(def.Position[0]-att.Position[0]) > r.cfg.GrabRange {
		return
	}
	if target.DodgeTimer > 0 || def.Airborne || def.Action == fighter.ActionGrabbed {
		return
	}

	damage := r.cfg.GrabDamage * combat.DamageScale(def.ComboCount)
	knockback := combat.Knockback(r.cfg.GrabKnockback, damage, target.Weight, r.cfg.GrabAngle, att.Facing)
	defenderAction := def.Action
	def.Health -= damage
	def.ClearMove()
	def.Action = fighter.ActionGrabbed
	def.HitstunFrames = r.cfg.GrabStun
	def.BlockstunFrames = 0
	def.Velocity = knockback
	def.Airborne = knockback[1] > 0
	def.ComboCount++
	target.TauntTimer = 0
	att.HitConfirmed = true
	def.Clamp(r.cfg.Limits)

	r.record(HitRecord{
		MatchID:        r.cfg.MatchID,
		Frame:          r.frame,
		Attacker:       slot,
		Defender:       slot.Other(),
		MoveID:         att.MoveID,
		HitboxID:       "throw",
		Damage:         damage,
		GuardDamage:    combat.GuardDamage(moves.GuardThrow, damage),
		Knockback:      [3]float64(knockback),
		LaunchAngle:    r.cfg.GrabAngle,
		AttackerAction: att.Action,
		DefenderAction: defenderAction,
		DefenderHealth: def.Health,
		ComboCount:     def.ComboCount,
	}, result)
}

// checkGuardBreak fires once per crossing of the threshold from above.
func (r *Runtime) checkGuardBreak(slot Slot, result *TickResult) {
	f := &r.fighters[slot]
	st := &f.State
	threshold := r.cfg.GuardBreakThreshold
	if f.GuardBroken {
		if st.Guard > threshold {
			f.GuardBroken = false
		}
		return
	}
	if st.Guard > threshold {
		return
	}
	f.GuardBroken = true

	opp := r.fighters[slot.Other()].State
	away := 1.0
	if st.Position[0] < opp.Position[0] || (st.Position[0] == opp.Position[0] && opp.Facing < 0) {
		away = -1
	}
	st.ClearMove()
	st.Health -= r.cfg.GuardBreakChip
	st.HitstunFrames = r.cfg.GuardBreakStun
	st.BlockstunFrames = 0
	st.Action = fighter.ActionHitstun
	kick := r.cfg.GuardBreakKnockback
	st.Velocity = st.Velocity.Add(mgl64.Vec3{away * kick, kick * 0.5, 0})
	st.Airborne = true
	f.StunTimer = r.cfg.GuardBreakStun
	f.DodgeTimer, f.GrabTimer, f.TauntTimer = 0, 0, 0
	f.LastInput = f.LastInput.WithoutDefense()

	if result != nil {
		result.GuardBreaks = append(result.GuardBreaks, slot)
	}
	logcombat.GuardBreak(context.Background(), r.cfg.Publisher, r.cfg.MatchID, r.frame, fighterRef(slot), logcombat.GuardBreakPayload{
		Guard:      st.Guard,
		ChipDamage: r.cfg.GuardBreakChip,
		StunFrames: int(r.cfg.GuardBreakStun),
	})
}

func (r *Runtime) publishKnockout(hostOut, guestOut bool) {
	winner := "draw"
	if r.winner != NoWinner {
		winner = Slot(r.winner).String()
	}
	for slot, out := range [2]bool{hostOut, guestOut} {
		if !out {
			continue
		}
		logcombat.Knockout(context.Background(), r.cfg.Publisher, r.cfg.MatchID, r.frame, fighterRef(Slot(slot)), logcombat.KnockoutPayload{Winner: winner})
	}
}

func (r *Runtime) record(rec HitRecord, result *TickResult) {
	r.hits = append(r.hits, rec)
	if result != nil {
		result.Hits = append(result.Hits, rec)
	}
	logcombat.Hit(context.Background(), r.cfg.Publisher, r.cfg.MatchID, fighterRef(rec.Attacker), fighterRef(rec.Defender), rec.payload())
}
