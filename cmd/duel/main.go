// Command duel runs an offline CPU-vs-CPU match through the fixed-step engine
// and can record it as a replay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/match"
	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/replay"
	"arena-duel/server/internal/sim"
)

type options struct {
	frames     int
	seed       uint
	hostStyle  string
	guestStyle string
	movesFile  string
	replayOut  string
	realtime   bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("duel: %v", err)
	}
}

func parse(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("duel", flag.ContinueOnError)
	fs.IntVar(&opts.frames, "frames", 3600, "maximum frames to simulate")
	fs.UintVar(&opts.seed, "seed", 1, "match seed")
	fs.StringVar(&opts.hostStyle, "host", "rushdown", "host cpu style")
	fs.StringVar(&opts.guestStyle, "guest", "zoner", "guest cpu style")
	fs.StringVar(&opts.movesFile, "moves", "", "move library yaml (default: embedded)")
	fs.StringVar(&opts.replayOut, "replay", "", "write a replay to this path")
	fs.BoolVar(&opts.realtime, "realtime", false, "pace the simulation at wall-clock speed")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.frames <= 0 {
		return options{}, errors.New("-frames must be positive")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parse(args)
	if err != nil {
		return err
	}

	lib := moves.Default()
	if opts.movesFile != "" {
		if lib, err = moves.LoadFile(opts.movesFile); err != nil {
			return err
		}
	}
	host, ok := ai.StyleByName(opts.hostStyle)
	if !ok {
		return fmt.Errorf("unknown host style %q", opts.hostStyle)
	}
	guest, ok := ai.StyleByName(opts.guestStyle)
	if !ok {
		return fmt.Errorf("unknown guest style %q", opts.guestStyle)
	}

	cfg := match.DefaultConfig()
	cfg.MatchID = "offline"
	cfg.Seed = uint32(opts.seed)
	cfg.Fighters[match.SlotHost].CPU = &host
	cfg.Fighters[match.SlotGuest].CPU = &guest

	rt := match.New(cfg, lib)
	engine := match.NewEngine(rt, sim.DefaultConfig(), sim.Deps{})
	recorder := replay.NewRecorder(cfg)

	hits := 0
	var recordErr error
	onStep := func(res sim.StepResult) {
		state := engine.State()
		for _, ev := range res.Events {
			if ev.Type == match.EventHit {
				hits++
			}
		}
		if opts.replayOut != "" && recordErr == nil {
			recordErr = recorder.Record(state.Inputs, res.DeltaMs/engine.StepMs(), rt.Snapshot())
		}
	}

	if opts.realtime {
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		err := engine.Run(runCtx, func(res sim.StepResult) {
			onStep(res)
			if rt.Ended() || int(rt.Frame()) >= opts.frames {
				cancel()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	} else {
		for !rt.Ended() && int(rt.Frame()) < opts.frames {
			onStep(engine.Step(engine.StepMs()))
		}
	}
	if recordErr != nil {
		return recordErr
	}

	snap := rt.Snapshot()
	fmt.Fprintf(out, "frames=%d hits=%d winner=%s host_hp=%.1f guest_hp=%.1f\n",
		snap.Frame, hits, winnerName(snap.Winner), snap.Fighters[0].State.Health, snap.Fighters[1].State.Health)

	if opts.replayOut != "" {
		if err := writeReplay(opts.replayOut, recorder.Replay()); err != nil {
			return err
		}
		fmt.Fprintf(out, "replay written to %s\n", opts.replayOut)
	}
	return nil
}

func winnerName(winner int) string {
	switch winner {
	case int(match.SlotHost):
		return "host"
	case int(match.SlotGuest):
		return "guest"
	default:
		return "none"
	}
}

func writeReplay(path string, rep replay.Replay) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create replay: %w", err)
	}
	if err := replay.Encode(file, rep); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
