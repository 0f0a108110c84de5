// Package replay records match inputs with per-frame state digests and
// replays them to check that the simulation is deterministic.
package replay

import (
	"errors"
	"fmt"
	"hash/fnv"
	"io"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/match"
	"arena-duel/server/internal/moves"
)

// FormatVersion is bumped whenever the encoded layout changes.
const FormatVersion = 1

// ErrDesync is returned when a replayed frame digests differently.
var ErrDesync = errors.New("replay desync")

// FighterHeader is the replay-stable part of a fighter's setup.
type FighterHeader struct {
	Position [3]float64 `msgpack:"position"`
	Facing   int        `msgpack:"facing"`
	Weight   float64    `msgpack:"weight"`
	CPU      string     `msgpack:"cpu,omitempty"`
}

// Header identifies the match a replay belongs to.
type Header struct {
	Version  int              `msgpack:"version"`
	MatchID  string           `msgpack:"matchId"`
	Seed     uint32           `msgpack:"seed"`
	Fighters [2]FighterHeader `msgpack:"fighters"`
}

// HeaderFor captures cfg.
func HeaderFor(cfg match.Config) Header {
	h := Header{Version: FormatVersion, MatchID: cfg.MatchID, Seed: cfg.Seed}
	for i, f := range cfg.Fighters {
		h.Fighters[i] = FighterHeader{Position: f.Position, Facing: f.Facing, Weight: f.Weight}
		if f.CPU != nil {
			h.Fighters[i].CPU = f.CPU.Name
		}
	}
	return h
}

// Config applies the header on top of base.
func (h Header) Config(base match.Config) (match.Config, error) {
	base.MatchID = h.MatchID
	base.Seed = h.Seed
	for i, f := range h.Fighters {
		base.Fighters[i] = match.FighterConfig{Position: mgl64.Vec3(f.Position), Facing: f.Facing, Weight: f.Weight}
		if f.CPU != "" {
			style, ok := ai.StyleByName(f.CPU)
			if !ok {
				return match.Config{}, fmt.Errorf("replay: unknown cpu style %q", f.CPU)
			}
			base.Fighters[i].CPU = &style
		}
	}
	return base, nil
}

// Frame is one recorded tick.
type Frame struct {
	Frame  uint64         `msgpack:"frame"`
	Delta  float64        `msgpack:"delta"`
	Inputs [2]input.Frame `msgpack:"inputs"`
	Digest uint64         `msgpack:"digest"`
}

// Replay is a complete recording.
type Replay struct {
	Header Header  `msgpack:"header"`
	Frames []Frame `msgpack:"frames"`
}

// Digest hashes the msgpack encoding of a snapshot.
func Digest(snap match.Snapshot) (uint64, error) {
	data, err := snap.Encode()
	if err != nil {
		return 0, err
	}
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64(), nil
}

// Recorder appends frames as a match is played.
type Recorder struct {
	replay Replay
}

// NewRecorder starts a recording for cfg.
func NewRecorder(cfg match.Config) *Recorder {
	return &Recorder{replay: Replay{Header: HeaderFor(cfg)}}
}

// Record stores the inputs applied for a tick and the resulting state.
func (r *Recorder) Record(inputs [2]input.Frame, dt float64, snap match.Snapshot) error {
	digest, err := Digest(snap)
	if err != nil {
		return fmt.Errorf("record frame %d: %w", snap.Frame, err)
	}
	r.replay.Frames = append(r.replay.Frames, Frame{
		Frame:  snap.Frame,
		Delta:  dt,
		Inputs: inputs,
		Digest: digest,
	})
	return nil
}

// Replay returns the recording so far.
func (r *Recorder) Replay() Replay {
	out := r.replay
	out.Frames = append([]Frame(nil), r.replay.Frames...)
	return out
}

// Encode writes rep to w.
func Encode(w io.Writer, rep Replay) error {
	enc := msgpack.NewEncoder(w)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encode replay: %w", err)
	}
	return nil
}

// Decode reads a replay from r.
func Decode(r io.Reader) (Replay, error) {
	var rep Replay
	if err := msgpack.NewDecoder(r).Decode(&rep); err != nil {
		return Replay{}, fmt.Errorf("decode replay: %w", err)
	}
	if rep.Header.Version != FormatVersion {
		return Replay{}, fmt.Errorf("decode replay: unsupported version %d", rep.Header.Version)
	}
	return rep, nil
}

// Play re-simulates rep from scratch and compares every digest. It returns
// the number of frames verified; on mismatch the error wraps ErrDesync.
func Play(rep Replay, base match.Config, lib *moves.Library) (int, error) {
	cfg, err := rep.Header.Config(base)
	if err != nil {
		return 0, err
	}
	rt := match.New(cfg, lib)
	for i, frame := range rep.Frames {
		rt.Tick(frame.Inputs, frame.Delta)
		digest, err := Digest(rt.Snapshot())
		if err != nil {
			return i, err
		}
		if digest != frame.Digest {
			return i, fmt.Errorf("%w at frame %d: recorded %016x, replayed %016x", ErrDesync, frame.Frame, frame.Digest, digest)
		}
	}
	return len(rep.Frames), nil
}
