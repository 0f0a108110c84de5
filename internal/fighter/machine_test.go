package fighter

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/input"
	"arena-duel/server/internal/moves"
)

func newPair() (State, State) {
	limits := DefaultLimits()
	return NewState(mgl64.Vec3{-1, 0, 0}, 1, limits), NewState(mgl64.Vec3{1, 0, 0}, -1, limits)
}

func opts() Options {
	return Options{Limits: DefaultLimits()}
}

func TestHitstunTakesPriority(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.HitstunFrames = 3
	next := Step(self, input.Frame{Light: true, Dodge: true}, opp, 1, lib, opts())
	if next.Action != ActionHitstun || next.HitstunFrames != 2 {
		t.Fatalf("expected hitstun countdown, got %s with %.1f frames", next.Action, next.HitstunFrames)
	}
	if next.MoveID != "" {
		t.Fatalf("no move may start during hitstun, got %q", next.MoveID)
	}
	frozen := Step(self, input.Frame{}, opp, 0, lib, opts())
	if frozen.HitstunFrames != 3 {
		t.Fatalf("dt=0 must freeze hitstun, got %.1f", frozen.HitstunFrames)
	}
}

func TestDodgeCostsGuard(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.Guard = 50
	next := Step(self, input.Frame{Dodge: true, Light: true}, opp, 1, lib, opts())
	if next.Action != ActionDodge || next.MoveID != moves.DodgeMoveID {
		t.Fatalf("expected dodge, got %s/%s", next.Action, next.MoveID)
	}
	if next.Guard != 38 {
		t.Fatalf("expected guard 38, got %.2f", next.Guard)
	}
	if next.MoveFrame != Epsilon {
		t.Fatalf("expected move frame epsilon, got %v", next.MoveFrame)
	}

	self.Guard = 10
	next = Step(self, input.Frame{Dodge: true}, opp, 1, lib, opts())
	if next.Action == ActionDodge {
		t.Fatalf("guard 10 must not allow a dodge")
	}
}

func TestStartsFirstAffordableMoveInPriority(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	next := Step(self, input.Frame{Heavy: true, Up: true}, opp, 1, lib, opts())
	if next.MoveID != "launcher" {
		t.Fatalf("expected launcher for up+heavy, got %q", next.MoveID)
	}
	if next.Stamina != 100-18 {
		t.Fatalf("expected stamina cost deducted, got %.2f", next.Stamina)
	}

	self.Stamina = 16
	next = Step(self, input.Frame{Heavy: true, Up: true}, opp, 1, lib, opts())
	if next.MoveID != "heavy_punch" {
		t.Fatalf("expected fallback to heavy_punch when launcher unaffordable, got %q", next.MoveID)
	}

	self.Airborne = true
	self.Stamina = 100
	next = Step(self, input.Frame{Heavy: true}, opp, 1, lib, opts())
	if next.MoveID != "air_slam" {
		t.Fatalf("expected aerial restriction to pick air_slam, got %q", next.MoveID)
	}
}

func TestDirectionalLightStartsSweep(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	next := Step(self, input.Frame{Light: true, Down: true}, opp, 1, lib, opts())
	if next.MoveID != "sweep" {
		t.Fatalf("expected sweep for down+light, got %q", next.MoveID)
	}
	if next.Stamina != 100-8 {
		t.Fatalf("expected sweep cost deducted, got %.2f", next.Stamina)
	}

	next = Step(self, input.Frame{Light: true}, opp, 1, lib, opts())
	if next.MoveID != "jab" {
		t.Fatalf("expected jab for neutral light, got %q", next.MoveID)
	}
}

func TestMoveExpiresIntoLandingOrFall(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.StartMove("jab")
	self.Action = ActionAttack
	self.MoveFrame = 18
	next := Step(self, input.Frame{}, opp, 1, lib, opts())
	if next.MoveID != "" || next.Action != ActionLanding {
		t.Fatalf("expected jab to finish into landing, got %q/%s", next.MoveID, next.Action)
	}

	self.StartMove("air_kick")
	self.MoveFrame = 20
	self.Airborne = true
	next = Step(self, input.Frame{}, opp, 1, lib, opts())
	if next.Action != ActionFall {
		t.Fatalf("expected aerial move to finish into fall, got %s", next.Action)
	}
}

func TestCancelBranchWindowAndHitConfirm(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.StartMove("jab")
	self.Action = ActionAttack
	self.MoveFrame = 3
	next := Step(self, input.Frame{Light: true}, opp, 1, lib, opts())
	if next.MoveID != "jab" {
		t.Fatalf("cancel must not open before its window, got %q", next.MoveID)
	}

	self.MoveFrame = 7
	self.Register(HitKey{MoveID: "jab", HitboxID: "fist"})
	next = Step(self, input.Frame{Light: true}, opp, 1, lib, opts())
	if next.MoveID != "jab_followup" || next.MoveFrame != Epsilon {
		t.Fatalf("expected cancel into jab_followup, got %q at %v", next.MoveID, next.MoveFrame)
	}
	if len(next.Registry) != 0 {
		t.Fatalf("registry must clear when the move changes")
	}

	// Heavy on-hit branch opens past its window once a hit is confirmed.
	self.MoveFrame = 17
	self.HitConfirmed = true
	next = Step(self, input.Frame{Heavy: true}, opp, 1, lib, opts())
	if next.MoveID != "launcher" {
		t.Fatalf("expected onHit cancel into launcher, got %q", next.MoveID)
	}
}

func TestPassiveRegen(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.Stamina, self.Guard, self.Special = 10, 10, 10
	next := Step(self, input.Frame{}, opp, 2, lib, opts())
	if !near(next.Stamina, 11.8) || !near(next.Guard, 11.4) || !near(next.Special, 10.7) {
		t.Fatalf("unexpected grounded regen: %.2f %.2f %.2f", next.Stamina, next.Guard, next.Special)
	}

	self.Airborne = true
	next = Step(self, input.Frame{}, opp, 1, lib, opts())
	if !near(next.Stamina, 10.45) {
		t.Fatalf("expected halved airborne stamina regen, got %.3f", next.Stamina)
	}

	self.Airborne = false
	self.BlockstunFrames = 5
	next = Step(self, input.Frame{}, opp, 1, lib, opts())
	if next.Guard != 10 || next.Action != ActionBlockstun {
		t.Fatalf("guard must not regen in blockstun, got %.2f (%s)", next.Guard, next.Action)
	}
}

func TestMetersStayBounded(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.Guard = 99.9
	self.Special = 99.9
	for i := 0; i < 100; i++ {
		self = Step(self, input.Frame{Dodge: i%3 == 0, Light: i%2 == 0}, opp, 1, lib, opts())
		if self.Guard < 0 || self.Guard > 100 || self.Stamina < 0 || self.Stamina > 100 || self.Special < 0 || self.Special > 100 {
			t.Fatalf("meter out of bounds at %d: %+v", i, self)
		}
	}
}

func TestIdleFacesOpponentAndResetsCombo(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.Facing = -1
	self.ComboCount = 4
	next := Step(self, input.Frame{}, opp, 1, lib, opts())
	if next.Facing != 1 || next.ComboCount != 0 || next.Action != ActionIdle {
		t.Fatalf("unexpected idle state: %+v", next)
	}
}

func TestTechEndsHitstunEarly(t *testing.T) {
	lib := moves.Default()
	self, opp := newPair()
	self.HitstunFrames = 3
	o := opts()
	o.TechWindow = 4
	next := Step(self, input.Frame{Block: true}, opp, 1, lib, o)
	if next.Action != ActionTech || next.HitstunFrames != 0 {
		t.Fatalf("expected tech recovery, got %s with %.1f", next.Action, next.HitstunFrames)
	}
}

func TestRegisterKeepsRegistrySorted(t *testing.T) {
	var s State
	keys := []HitKey{{"b", "1"}, {"a", "2"}, {"a", "1"}}
	for _, k := range keys {
		if !s.Register(k) {
			t.Fatalf("expected %v to be new", k)
		}
	}
	if s.Register(HitKey{"a", "1"}) {
		t.Fatalf("duplicate key must not register twice")
	}
	want := []HitKey{{"a", "1"}, {"a", "2"}, {"b", "1"}}
	for i, k := range want {
		if s.Registry[i] != k {
			t.Fatalf("registry[%d] = %v, want %v", i, s.Registry[i], k)
		}
	}
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
