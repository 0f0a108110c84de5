package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"arena-duel/server/internal/match"
	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/replay"
)

func TestRunWritesVerifiableReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "duel.replay")
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-frames", "300", "-seed", "9", "-replay", path}, &out); err != nil {
		t.Fatalf("run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "frames=") {
		t.Fatalf("expected summary line, got %q", out.String())
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open replay: %v", err)
	}
	defer file.Close()
	rep, err := replay.Decode(file)
	if err != nil {
		t.Fatalf("decode replay: %v", err)
	}
	if len(rep.Frames) == 0 || len(rep.Frames) > 300 {
		t.Fatalf("unexpected frame count %d", len(rep.Frames))
	}
	verified, err := replay.Play(rep, match.DefaultConfig(), moves.Default())
	if err != nil {
		t.Fatalf("replay diverged: %v", err)
	}
	if verified != len(rep.Frames) {
		t.Fatalf("expected %d verified frames, got %d", len(rep.Frames), verified)
	}
}

func TestRunRejectsUnknownStyle(t *testing.T) {
	var out bytes.Buffer
	if err := run(context.Background(), []string{"-host", "turtle"}, &out); err == nil {
		t.Fatalf("expected unknown style error")
	}
	if err := run(context.Background(), []string{"-frames", "0"}, &out); err == nil {
		t.Fatalf("expected frame validation error")
	}
}
