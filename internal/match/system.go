package match

import (
	"arena-duel/server/internal/input"
	"arena-duel/server/internal/sim"
)

// Engine event types.
const (
	EventHit        = "hit"
	EventGuardBreak = "guard_break"
	EventEnded      = "ended"
)

// EngineState is the state an engine-driven match carries between steps.
type EngineState struct {
	Runtime *Runtime
	// Inputs holds the latest controls per slot. A slot without a new input
	// command keeps its previous controls.
	Inputs [2]input.Frame
	Last   TickResult
}

// NewEngine wraps rt in a fixed-step engine with the input and tick systems
// registered.
func NewEngine(rt *Runtime, cfg sim.Config, deps sim.Deps) *sim.Engine[EngineState] {
	if deps.MatchID == "" {
		deps.MatchID = rt.cfg.MatchID
	}
	engine := sim.NewEngine(EngineState{Runtime: rt}, cfg, deps)
	engine.Register(
		sim.SystemFunc[EngineState](applyCommands),
		sim.SystemFunc[EngineState](tickRuntime),
	)
	return engine
}

func applyCommands(ctx *sim.StepContext[EngineState]) {
	for _, cmd := range ctx.Commands {
		if cmd.Slot < 0 || cmd.Slot > 1 {
			continue
		}
		switch cmd.Type {
		case sim.CommandInput:
			if cmd.Input != nil {
				ctx.State.Inputs[cmd.Slot] = *cmd.Input
			}
		case sim.CommandForfeit:
			ctx.State.Runtime.Forfeit(Slot(cmd.Slot))
		}
	}
}

func tickRuntime(ctx *sim.StepContext[EngineState]) {
	rt := ctx.State.Runtime
	if rt.Ended() {
		return
	}
	result := rt.Tick(ctx.State.Inputs, ctx.DeltaFrames)
	ctx.State.Last = result
	for _, hit := range result.Hits {
		ctx.Emit(sim.Event{Type: EventHit, Payload: hit})
	}
	for _, slot := range result.GuardBreaks {
		ctx.Emit(sim.Event{Type: EventGuardBreak, Payload: slot})
	}
	if result.Ended {
		ctx.Emit(sim.Event{Type: EventEnded, Payload: result.Winner})
	}
}

// Forfeit ends the match with the other slot as winner.
func (r *Runtime) Forfeit(slot Slot) {
	if r.ended {
		return
	}
	r.ended = true
	r.winner = int(slot.Other())
	r.publishKnockout(slot == SlotHost, slot == SlotGuest)
}
