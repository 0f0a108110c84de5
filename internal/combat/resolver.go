// Package combat resolves hitbox overlaps into hit results.
package combat

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/moves"
)

const (
	comboScalePerHit = 0.08
	comboScaleCap    = 0.75
	knockbackScale   = 0.07
	chipGuardRatio   = 0.3
)

// HitResolution is the outcome of one hitbox connecting with a defender.
type HitResolution struct {
	MoveID         string          `json:"moveId" msgpack:"moveId"`
	HitboxID       string          `json:"hitboxId" msgpack:"hitboxId"`
	Damage         float64         `json:"damage" msgpack:"damage"`
	Knockback      mgl64.Vec3      `json:"knockback" msgpack:"knockback"`
	HitLag         float64         `json:"hitLag" msgpack:"hitLag"`
	CounterHit     bool            `json:"counterHit" msgpack:"counterHit"`
	GuardDamage    float64         `json:"guardDamage" msgpack:"guardDamage"`
	LaunchAngle    float64         `json:"launchAngle" msgpack:"launchAngle"`
	Hitstun        float64         `json:"hitstun" msgpack:"hitstun"`
	Blockstun      float64         `json:"blockstun" msgpack:"blockstun"`
	Guard          moves.GuardType `json:"guard" msgpack:"guard"`
	AttackerAction fighter.Action  `json:"attackerAction" msgpack:"attackerAction"`
	DefenderAction fighter.Action  `json:"defenderAction" msgpack:"defenderAction"`
}

// DamageScale returns the multiplier applied to a hit against a defender
// whose combo counter is combo.
func DamageScale(combo int) float64 {
	return 1 + math.Min(float64(combo)*comboScalePerHit, comboScaleCap)
}

// Knockback computes the launch vector for a hit of damage against a defender
// of the given weight.
func Knockback(curve moves.KnockbackCurve, damage, weight, angleDeg float64, facing int) mgl64.Vec3 {
	magnitude := (curve.Base + curve.Scaling*damage + curve.WeightMultiplier*weight) * knockbackScale
	rad := mgl64.DegToRad(angleDeg)
	return mgl64.Vec3{
		math.Cos(rad) * magnitude * float64(facing),
		math.Sin(rad) * magnitude,
		0,
	}
}

// GuardDamage returns how much guard meter a hit drains.
func GuardDamage(guard moves.GuardType, damage float64) float64 {
	if guard == moves.GuardThrow {
		return damage
	}
	return damage * chipGuardRatio
}

// HitboxCenter returns the world-space centre of hb for attacker.
func HitboxCenter(attacker fighter.State, hb moves.Hitbox) mgl64.Vec3 {
	off := hb.Offset.Vec()
	return attacker.Position.Add(mgl64.Vec3{off[0] * float64(attacker.Facing), off[1], off[2]})
}

// Overlaps tests hb on attacker against the defender's reference point.
func Overlaps(attacker, defender fighter.State, hb moves.Hitbox) bool {
	center := HitboxCenter(attacker, hb)
	dx := center[0] - defender.Position[0]
	dz := center[2] - defender.Position[2]
	if math.Hypot(dx, dz) > hb.Radius {
		return false
	}
	return math.Abs(center[1]-defender.Position[1]) <= hb.Height
}

// Resolve tests every hitbox of the attacker's active move against the
// defender. Connecting hitboxes are recorded in the attacker's registry, so
// a hitbox produces at most one resolution per move instance.
func Resolve(attacker *fighter.State, defender fighter.State, lib *moves.Library, defenderWeight float64) []HitResolution {
	if attacker == nil || attacker.MoveID == "" {
		return nil
	}
	def, ok := lib.Get(attacker.MoveID)
	if !ok || !def.Active.Contains(attacker.MoveFrame) {
		return nil
	}
	var out []HitResolution
	for _, hb := range def.Hitboxes {
		key := fighter.HitKey{MoveID: def.ID, HitboxID: hb.ID}
		if attacker.Registered(key) || !Overlaps(*attacker, defender, hb) {
			continue
		}
		attacker.Register(key)
		damage := hb.Damage * DamageScale(defender.ComboCount)
		out = append(out, HitResolution{
			MoveID:         def.ID,
			HitboxID:       hb.ID,
			Damage:         damage,
			Knockback:      Knockback(hb.Knockback, damage, defenderWeight, hb.LaunchAngle, attacker.Facing),
			HitLag:         hb.HitLag,
			CounterHit:     defender.Action == fighter.ActionAttack,
			GuardDamage:    GuardDamage(hb.Guard, damage),
			LaunchAngle:    hb.LaunchAngle,
			Hitstun:        hb.Hitstun,
			Blockstun:      hb.Blockstun,
			Guard:          hb.Guard,
			AttackerAction: attacker.Action,
			DefenderAction: defender.Action,
		})
	}
	return out
}

// CanBlock reports whether defender's guard stops hit. The defender must be
// grounded, holding block, free to act (or already in blockstun), and facing
// the attacker. Throws and unblockables always connect; lows need a crouch
// and highs cannot be blocked crouching.
func CanBlock(defender, attacker fighter.State, hit HitResolution, blockHeld, crouching bool) bool {
	if !blockHeld || defender.Airborne || defender.Guard <= 0 {
		return false
	}
	if defender.HitstunFrames > 0 || (defender.MoveID != "" && defender.Action != fighter.ActionBlockstun) {
		return false
	}
	toAttacker := attacker.Position[0] - defender.Position[0]
	if toAttacker*float64(defender.Facing) < 0 {
		return false
	}
	switch hit.Guard {
	case moves.GuardThrow, moves.GuardUnblockable:
		return false
	case moves.GuardLow:
		return crouching
	case moves.GuardHigh:
		return !crouching
	default:
		return true
	}
}
