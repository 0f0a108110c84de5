package replay

import (
	"bytes"
	"errors"
	"testing"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/match"
	"arena-duel/server/internal/moves"
)

func record(t *testing.T, cfg match.Config, frames int) Replay {
	t.Helper()
	rt := match.New(cfg, moves.Default())
	rec := NewRecorder(cfg)
	for i := 0; i < frames; i++ {
		inputs := [2]input.Frame{
			{Right: i%60 < 30, Light: i%11 == 0, Jump: i%90 == 0},
			{Left: i%45 < 20, Block: i%17 < 8, Heavy: i%29 == 0},
		}
		rt.Tick(inputs, 1)
		if err := rec.Record(inputs, 1, rt.Snapshot()); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	return rec.Replay()
}

func TestReplayRoundTripsAndVerifies(t *testing.T) {
	cfg := match.DefaultConfig()
	cfg.MatchID = "replay"
	cfg.Seed = 1234
	balanced := ai.Balanced()
	cfg.Fighters[1].CPU = &balanced

	rep := record(t, cfg, 400)

	var buf bytes.Buffer
	if err := Encode(&buf, rep); err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	verified, err := Play(decoded, match.DefaultConfig(), moves.Default())
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if verified != 400 {
		t.Fatalf("expected 400 verified frames, got %d", verified)
	}
}

func TestTamperedInputsDesync(t *testing.T) {
	rep := record(t, match.DefaultConfig(), 120)
	rep.Frames[10].Inputs[0] = input.Frame{Left: true, Jump: true}
	_, err := Play(rep, match.DefaultConfig(), moves.Default())
	if !errors.Is(err, ErrDesync) {
		t.Fatalf("expected desync, got %v", err)
	}
}

func TestDifferentSeedsChangeCPUDigests(t *testing.T) {
	base := match.DefaultConfig()
	rush := ai.Rushdown()
	base.Fighters[0].CPU = &rush
	a, b := base, base
	a.Seed, b.Seed = 1, 2
	ra, rb := record(t, a, 200), record(t, b, 200)
	same := true
	for i := range ra.Frames {
		if ra.Frames[i].Digest != rb.Frames[i].Digest {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("different seeds should diverge for CPU fighters")
	}
}
