package combat

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/moves"
)

func newLibrary(t *testing.T) *moves.Library {
	t.Helper()
	lib, err := moves.NewLibrary([]moves.Definition{{
		ID:          "poke",
		Category:    moves.CategoryLight,
		TotalFrames: 10,
		Active:      moves.FrameWindow{Start: 2, End: 6},
		Hitboxes: []moves.Hitbox{
			{ID: "near", Radius: 1, Height: 1, Offset: moves.Vec3{X: 0.5}, Damage: 10, Knockback: moves.KnockbackCurve{Base: 10}, HitLag: 5, Hitstun: 12, Blockstun: 6},
			{ID: "far", Radius: 1, Height: 1, Offset: moves.Vec3{X: 1.5}, Damage: 4, Guard: moves.GuardThrow},
		},
	}})
	if err != nil {
		t.Fatalf("build library: %v", err)
	}
	return lib
}

func attackerAt(x float64, facing int) fighter.State {
	s := fighter.NewState(mgl64.Vec3{x, 0, 0}, facing, fighter.DefaultLimits())
	s.StartMove("poke")
	s.MoveFrame = 3
	s.Action = fighter.ActionAttack
	return s
}

func TestComboScalingTenHits(t *testing.T) {
	if got := DamageScale(10); got != 1.75 {
		t.Fatalf("expected scale 1.75 for combo 10, got %v", got)
	}
	lib := newLibrary(t)
	attacker := attackerAt(0, 1)
	defender := fighter.NewState(mgl64.Vec3{1, 0, 0}, -1, fighter.DefaultLimits())
	defender.ComboCount = 10
	hits := Resolve(&attacker, defender, lib, 1)
	if len(hits) == 0 || hits[0].HitboxID != "near" {
		t.Fatalf("expected the near hitbox to connect, got %+v", hits)
	}
	if hits[0].Damage != 17.5 {
		t.Fatalf("expected 17.5 damage, got %v", hits[0].Damage)
	}
}

func TestComboScaleCaps(t *testing.T) {
	if DamageScale(0) != 1 {
		t.Fatalf("no combo means no scaling")
	}
	if DamageScale(50) != 1.75 {
		t.Fatalf("expected scale to cap at 1.75, got %v", DamageScale(50))
	}
}

func TestHitboxConnectsOncePerMoveInstance(t *testing.T) {
	lib := newLibrary(t)
	attacker := attackerAt(0, 1)
	defender := fighter.NewState(mgl64.Vec3{1, 0, 0}, -1, fighter.DefaultLimits())

	first := Resolve(&attacker, defender, lib, 1)
	if len(first) != 2 {
		t.Fatalf("expected both hitboxes to connect once, got %d", len(first))
	}
	for frame := 4.0; frame <= 6; frame++ {
		attacker.MoveFrame = frame
		if again := Resolve(&attacker, defender, lib, 1); len(again) != 0 {
			t.Fatalf("frame %.0f: hitbox connected twice: %+v", frame, again)
		}
	}

	attacker.StartMove("poke")
	attacker.MoveFrame = 3
	if fresh := Resolve(&attacker, defender, lib, 1); len(fresh) != 2 {
		t.Fatalf("a new move instance must hit again, got %d", len(fresh))
	}
}

func TestInactiveFramesDoNotHit(t *testing.T) {
	lib := newLibrary(t)
	attacker := attackerAt(0, 1)
	attacker.MoveFrame = 1
	defender := fighter.NewState(mgl64.Vec3{1, 0, 0}, -1, fighter.DefaultLimits())
	if hits := Resolve(&attacker, defender, lib, 1); len(hits) != 0 {
		t.Fatalf("startup frames must not hit, got %+v", hits)
	}
	if len(attacker.Registry) != 0 {
		t.Fatalf("registry must stay empty")
	}
}

func TestFacingMirrorsOffsetAndKnockback(t *testing.T) {
	lib := newLibrary(t)
	attacker := attackerAt(0, -1)
	behind := fighter.NewState(mgl64.Vec3{1.2, 0, 0}, -1, fighter.DefaultLimits())
	if hits := Resolve(&attacker, behind, lib, 1); len(hits) != 0 {
		t.Fatalf("a fighter behind the attacker must not be hit")
	}
	front := fighter.NewState(mgl64.Vec3{-0.8, 0, 0}, 1, fighter.DefaultLimits())
	hits := Resolve(&attacker, front, lib, 1)
	if len(hits) == 0 {
		t.Fatalf("expected a hit in front")
	}
	if hits[0].Knockback[0] >= 0 {
		t.Fatalf("knockback must follow attacker facing, got %v", hits[0].Knockback)
	}
}

func TestKnockbackFormula(t *testing.T) {
	curve := moves.KnockbackCurve{Base: 10, Scaling: 2, WeightMultiplier: 1}
	got := Knockback(curve, 5, 10, 90, 1)
	want := (10 + 2*5 + 1*10) * 0.07
	if math.Abs(got[0]) > 1e-9 || math.Abs(got[1]-want) > 1e-9 || got[2] != 0 {
		t.Fatalf("expected straight-up knockback %.3f, got %v", want, got)
	}
}

func TestGuardDamageAndCounterHit(t *testing.T) {
	lib := newLibrary(t)
	attacker := attackerAt(0, 1)
	defender := fighter.NewState(mgl64.Vec3{1, 0, 0}, -1, fighter.DefaultLimits())
	defender.Action = fighter.ActionAttack
	hits := Resolve(&attacker, defender, lib, 1)
	for _, hit := range hits {
		if !hit.CounterHit {
			t.Fatalf("expected counter-hit against an attacking defender")
		}
		switch hit.HitboxID {
		case "near":
			if math.Abs(hit.GuardDamage-3) > 1e-9 {
				t.Fatalf("expected 30%% guard damage, got %v", hit.GuardDamage)
			}
		case "far":
			if hit.GuardDamage != hit.Damage {
				t.Fatalf("throw guard damage must equal damage, got %v", hit.GuardDamage)
			}
		}
	}
}

func TestCanBlock(t *testing.T) {
	attacker := attackerAt(0, 1)
	defender := fighter.NewState(mgl64.Vec3{1, 0, 0}, -1, fighter.DefaultLimits())
	mid := HitResolution{Guard: moves.GuardMid}

	if !CanBlock(defender, attacker, mid, true, false) {
		t.Fatalf("expected standing block to stop a mid")
	}
	if CanBlock(defender, attacker, mid, false, false) {
		t.Fatalf("no block without holding block")
	}
	if CanBlock(defender, attacker, HitResolution{Guard: moves.GuardThrow}, true, false) {
		t.Fatalf("throws are unblockable")
	}
	if CanBlock(defender, attacker, HitResolution{Guard: moves.GuardLow}, true, false) {
		t.Fatalf("lows need a crouching block")
	}
	if !CanBlock(defender, attacker, HitResolution{Guard: moves.GuardLow}, true, true) {
		t.Fatalf("crouching block stops lows")
	}
	turned := defender
	turned.Facing = 1
	if CanBlock(turned, attacker, mid, true, false) {
		t.Fatalf("cannot block while facing away")
	}
	air := defender
	air.Airborne = true
	if CanBlock(air, attacker, mid, true, false) {
		t.Fatalf("cannot block in the air")
	}
}
