package match

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/combat"
	"arena-duel/server/internal/fighter"
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/moves"
	logcombat "arena-duel/server/logging/combat"
	"arena-duel/server/logging/sinks"
)

func closeConfig(sink *sinks.MemorySink) Config {
	cfg := DefaultConfig()
	cfg.MatchID = "test-match"
	cfg.Fighters[0].Position = mgl64.Vec3{-0.5, 0, 0}
	cfg.Fighters[1].Position = mgl64.Vec3{0.5, 0, 0}
	if sink != nil {
		cfg.Publisher = sink
	}
	return cfg
}

func cpuConfig(seed uint32) Config {
	cfg := DefaultConfig()
	cfg.Seed = seed
	rush, zoner := ai.Rushdown(), ai.Zoner()
	cfg.Fighters[0].CPU = &rush
	cfg.Fighters[1].CPU = &zoner
	return cfg
}

func TestGuardBreakFiresOnceWhenMeterCrossesThreshold(t *testing.T) {
	sink := sinks.NewMemorySink()
	r := New(closeConfig(sink), moves.Default())
	r.fighters[SlotGuest].State.Guard = 80

	block := input.Frame{Block: true}
	for i := 1; i <= 5; i++ {
		var result TickResult
		hit := combat.HitResolution{
			MoveID:      "jab",
			HitboxID:    fmt.Sprintf("h%d", i),
			Damage:      5,
			GuardDamage: 20,
			Blockstun:   8,
			Hitstun:     12,
			Guard:       moves.GuardMid,
		}
		r.applyHit(SlotHost, hit, block, &result)
		r.checkGuardBreak(SlotGuest, &result)

		broken := len(sink.EventsOfType(logcombat.EventGuardBreak))
		switch {
		case i <= 3:
			if broken != 0 {
				t.Fatalf("hit %d: guard %.1f is above threshold, break must not fire", i, r.fighters[SlotGuest].State.Guard)
			}
			if want := 80 - 20*float64(i); r.fighters[SlotGuest].State.Guard != want {
				t.Fatalf("hit %d: expected guard %.0f, got %.1f", i, want, r.fighters[SlotGuest].State.Guard)
			}
		case i == 4:
			if broken != 1 || len(result.GuardBreaks) != 1 || result.GuardBreaks[0] != SlotGuest {
				t.Fatalf("hit 4 drops guard to %.1f: expected exactly one break, got %d", r.fighters[SlotGuest].State.Guard, broken)
			}
			g := r.fighters[SlotGuest]
			if g.StunTimer <= 0 || g.State.HitstunFrames <= 0 || g.State.MoveID != "" {
				t.Fatalf("expected stun after guard break: %+v", g)
			}
			if g.State.Velocity[0] <= 0 {
				t.Fatalf("guest stands right of host and must be knocked right, got %v", g.State.Velocity)
			}
		default:
			if broken != 1 {
				t.Fatalf("hit %d: guard break fired again while still below threshold", i)
			}
		}
	}

	// Guard back above the threshold re-arms the break.
	r.fighters[SlotGuest].State.Guard = 30
	r.checkGuardBreak(SlotGuest, nil)
	if r.fighters[SlotGuest].GuardBroken {
		t.Fatalf("expected guard break to re-arm above threshold")
	}
	r.fighters[SlotGuest].State.Guard = 5
	r.checkGuardBreak(SlotGuest, nil)
	if got := len(sink.EventsOfType(logcombat.EventGuardBreak)); got != 2 {
		t.Fatalf("expected a second break after re-arming, got %d", got)
	}
}

func TestMetersStayWithinBounds(t *testing.T) {
	r := New(cpuConfig(9), moves.Default())
	limits := fighter.DefaultLimits()
	for tick := 0; tick < 3000 && !r.Ended(); tick++ {
		r.Tick([2]input.Frame{}, 1)
		for slot, f := range r.fighters {
			s := f.State
			if s.Guard < 0 || s.Guard > limits.MaxGuard ||
				s.Stamina < 0 || s.Stamina > limits.MaxStamina ||
				s.Special < 0 || s.Special > limits.MaxSpecial ||
				s.Health < 0 || s.Health > limits.MaxHealth {
				t.Fatalf("tick %d slot %d: meter out of bounds: %+v", tick, slot, s)
			}
		}
	}
}

func TestIdenticalRunsProduceIdenticalBytes(t *testing.T) {
	script := func(frame int) [2]input.Frame {
		return [2]input.Frame{
			{Right: frame%40 < 25, Light: frame%9 == 0, Heavy: frame%31 == 0, Jump: frame%70 == 0},
			{Left: frame%50 < 20, Block: frame%13 < 6, Dodge: frame%57 == 0, Grab: frame%23 == 0},
		}
	}
	run := func(cfg Config) [][]byte {
		r := New(cfg, moves.Default())
		var out [][]byte
		for frame := 0; frame < 600; frame++ {
			r.Tick(script(frame), 1)
			data, err := r.Snapshot().Encode()
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out = append(out, data)
		}
		return out
	}

	for name, cfg := range map[string]Config{"humans": DefaultConfig(), "cpus": cpuConfig(77)} {
		a, b := run(cfg), run(cfg)
		for i := range a {
			if !bytes.Equal(a[i], b[i]) {
				t.Fatalf("%s: frame %d diverged", name, i+1)
			}
		}
	}
}

func TestConfirmedHitFreezesBothFighters(t *testing.T) {
	sink := sinks.NewMemorySink()
	r := New(closeConfig(sink), moves.Default())
	var hitTick TickResult
	for i := 0; i < 30; i++ {
		res := r.Tick([2]input.Frame{{Light: true}, {}}, 1)
		if len(res.Hits) > 0 {
			hitTick = res
			break
		}
	}
	if len(hitTick.Hits) == 0 {
		t.Fatalf("expected the jab to connect")
	}
	if hitTick.Hits[0].Blocked || hitTick.Hits[0].MoveID != "jab" {
		t.Fatalf("unexpected hit record %+v", hitTick.Hits[0])
	}
	if len(sink.EventsOfType(logcombat.EventHit)) != 1 {
		t.Fatalf("expected one combat.hit event")
	}

	before := r.Snapshot()
	frozen := r.Tick([2]input.Frame{{Light: true, Right: true}, {Left: true}}, 1)
	if !frozen.Frozen {
		t.Fatalf("expected hit-lag freeze after a confirmed hit")
	}
	after := r.Snapshot()
	for i := range before.Fighters {
		if before.Fighters[i].State.Position != after.Fighters[i].State.Position {
			t.Fatalf("fighter %d moved during hit-lag", i)
		}
		if before.Fighters[i].State.MoveFrame != after.Fighters[i].State.MoveFrame {
			t.Fatalf("fighter %d move advanced during hit-lag", i)
		}
	}
	if after.Frame != before.Frame+1 {
		t.Fatalf("frame counter must still advance during hit-lag")
	}
}

func TestHitRecordsDrain(t *testing.T) {
	r := New(closeConfig(nil), moves.Default())
	for i := 0; i < 30; i++ {
		r.Tick([2]input.Frame{{Light: true}, {}}, 1)
	}
	if len(r.DrainHits()) == 0 {
		t.Fatalf("expected buffered hit records")
	}
	if len(r.DrainHits()) != 0 {
		t.Fatalf("drain must clear the buffer")
	}
}

func TestGrabResolvesAfterDelay(t *testing.T) {
	r := New(closeConfig(nil), moves.Default())
	r.Tick([2]input.Frame{{Grab: true}, {}}, 1)
	if r.fighters[SlotHost].GrabTimer <= 0 {
		t.Fatalf("expected grab timer to start")
	}
	var grabbed bool
	for i := 0; i < int(r.cfg.GrabDelay)+2; i++ {
		res := r.Tick([2]input.Frame{}, 1)
		for _, h := range res.Hits {
			if h.HitboxID == "throw" {
				grabbed = true
			}
		}
	}
	if !grabbed {
		t.Fatalf("expected grab to connect at close range")
	}
	if r.fighters[SlotGuest].State.Health >= 100 {
		t.Fatalf("expected grab damage")
	}
}

func TestDodgingFighterEscapesGrab(t *testing.T) {
	r := New(closeConfig(nil), moves.Default())
	r.Tick([2]input.Frame{{Grab: true}, {Dodge: true}}, 1)
	if r.fighters[SlotGuest].DodgeTimer <= 0 {
		t.Fatalf("expected dodge timer to start")
	}
	for i := 0; i < int(r.cfg.GrabDelay)+2; i++ {
		res := r.Tick([2]input.Frame{}, 1)
		if len(res.Hits) > 0 {
			t.Fatalf("dodging fighter must not be grabbed: %+v", res.Hits)
		}
	}
}

func TestTauntGrantsSpecialAtExpiry(t *testing.T) {
	cfg := DefaultConfig()
	r := New(cfg, moves.Default())
	r.Tick([2]input.Frame{{Taunt: true}, {}}, 1)
	if r.fighters[SlotHost].TauntTimer <= 0 {
		t.Fatalf("expected taunt timer")
	}
	before := r.fighters[SlotHost].State.Special
	for i := 0; i < int(cfg.TauntFrames)+1; i++ {
		r.Tick([2]input.Frame{{Right: true}, {}}, 1)
	}
	gained := r.fighters[SlotHost].State.Special - before
	if gained < cfg.TauntSpecialGain {
		t.Fatalf("expected at least %.0f special from taunting, got %.2f", cfg.TauntSpecialGain, gained)
	}
}

func TestKnockoutEndsMatch(t *testing.T) {
	sink := sinks.NewMemorySink()
	r := New(closeConfig(sink), moves.Default())
	r.fighters[SlotGuest].State.Health = 1
	var res TickResult
	for i := 0; i < 30 && !res.Ended; i++ {
		res = r.Tick([2]input.Frame{{Light: true}, {}}, 1)
	}
	if !res.Ended || res.Winner != int(SlotHost) {
		t.Fatalf("expected host to win by knockout, got %+v", res)
	}
	if len(sink.EventsOfType(logcombat.EventKnockout)) != 1 {
		t.Fatalf("expected a knockout event")
	}
	frame := r.Frame()
	r.Tick([2]input.Frame{}, 1)
	if r.Frame() != frame {
		t.Fatalf("an ended match must not advance")
	}
}

func TestAirborneBackInputDropsThroughPlatform(t *testing.T) {
	fall := func(in input.Frame) fighter.State {
		r := New(closeConfig(nil), moves.Default())
		st := &r.fighters[SlotHost].State
		st.Position = mgl64.Vec3{-5, 2.3, 0}
		st.Velocity = mgl64.Vec3{0, -0.3, 0}
		st.Airborne = true
		st.Action = fighter.ActionFall
		st.Facing = 1
		r.Tick([2]input.Frame{in, {}}, 1)
		return r.fighters[SlotHost].State
	}

	if st := fall(input.Frame{}); st.Airborne || st.Position[1] != 2.2 {
		t.Fatalf("neutral fall should land on the platform, got y=%v airborne=%v", st.Position[1], st.Airborne)
	}
	if st := fall(input.Frame{Left: true}); !st.Airborne || st.Position[1] >= 2.2 {
		t.Fatalf("holding back in the air should pass through, got y=%v airborne=%v", st.Position[1], st.Airborne)
	}
	if st := fall(input.Frame{Right: true}); st.Airborne {
		t.Fatalf("holding forward must not drop through, got y=%v", st.Position[1])
	}
}

func TestFighterReturnsIndependentBrain(t *testing.T) {
	r := New(cpuConfig(7), moves.Default())
	got := r.Fighter(SlotHost)
	if got.Brain == nil {
		t.Fatalf("expected a CPU brain in the host slot")
	}
	got.Brain.State = ai.StateTaunt
	got.Brain.DecisionTimer = 999
	if r.fighters[SlotHost].Brain.State == ai.StateTaunt || r.fighters[SlotHost].Brain.DecisionTimer == 999 {
		t.Fatalf("mutating the returned brain leaked into the runtime")
	}
}
