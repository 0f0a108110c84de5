// Package sim is a fixed-timestep engine: a command queue plus an ordered
// list of systems run synchronously once per step.
package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"arena-duel/server/internal/telemetry"
	"arena-duel/server/logging"
	logsim "arena-duel/server/logging/simulation"
)

const (
	// DefaultStepMs is one frame at 60 Hz.
	DefaultStepMs = 1000.0 / 60.0

	// CommandRejectQueueFull means the command queue is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectActorLimit means one actor staged too many commands.
	CommandRejectActorLimit = "actor_limit"

	remainderEpsilonMs = 1e-6
)

// Config tunes an Engine.
type Config struct {
	StepMs float64
	// MaxStepsPerUpdate caps catch-up work per Update call. Time beyond the
	// cap stays in the accumulator.
	MaxStepsPerUpdate int
	CommandCapacity   int
	PerActorLimit     int
}

// DefaultConfig returns a 60 Hz engine.
func DefaultConfig() Config {
	return Config{
		StepMs:            DefaultStepMs,
		MaxStepsPerUpdate: 8,
		CommandCapacity:   256,
		PerActorLimit:     32,
	}
}

// Deps are the engine's optional collaborators.
type Deps struct {
	MatchID   string
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
}

// System is one stage of a step.
type System[S any] interface {
	Step(ctx *StepContext[S])
}

// SystemFunc adapts a function into a System.
type SystemFunc[S any] func(ctx *StepContext[S])

// Step implements System.
func (f SystemFunc[S]) Step(ctx *StepContext[S]) {
	if f != nil {
		f(ctx)
	}
}

// StepContext is handed to every system during a step.
type StepContext[S any] struct {
	Frame   uint64
	DeltaMs float64
	// DeltaFrames is DeltaMs measured in nominal steps.
	DeltaFrames float64
	Commands    []Command
	State       *S

	events    []Event
	scheduled []Command
}

// Emit records an event for the step result.
func (c *StepContext[S]) Emit(event Event) {
	if event.Frame == 0 {
		event.Frame = c.Frame
	}
	c.events = append(c.events, event)
}

// Schedule stages a follow-up command for the next step.
func (c *StepContext[S]) Schedule(cmd Command) {
	c.scheduled = append(c.scheduled, cmd)
}

// StepResult describes one completed step.
type StepResult struct {
	Frame     uint64
	DeltaMs   float64
	ElapsedMs float64
	Commands  []Command
	Events    []Event
}

// Engine owns a state value and advances it in fixed steps.
type Engine[S any] struct {
	cfg     Config
	deps    Deps
	queue   *CommandQueue
	systems []System[S]
	state   S

	frame       uint64
	elapsedMs   float64
	accumulator float64

	queueMu  sync.Mutex
	perActor map[string]int
}

// NewEngine wraps state in an engine at frame zero.
func NewEngine[S any](state S, cfg Config, deps Deps) *Engine[S] {
	def := DefaultConfig()
	if cfg.StepMs <= 0 {
		cfg.StepMs = def.StepMs
	}
	if cfg.MaxStepsPerUpdate <= 0 {
		cfg.MaxStepsPerUpdate = def.MaxStepsPerUpdate
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = def.CommandCapacity
	}
	if deps.Logger == nil {
		deps.Logger = telemetry.Discard()
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	return &Engine[S]{
		cfg:      cfg,
		deps:     deps,
		queue:    NewCommandQueue(cfg.CommandCapacity, deps.Metrics),
		state:    state,
		perActor: make(map[string]int),
	}
}

// Register appends a system. Systems run in registration order.
func (e *Engine[S]) Register(systems ...System[S]) {
	e.systems = append(e.systems, systems...)
}

// Frame returns the number of completed steps.
func (e *Engine[S]) Frame() uint64 { return e.frame }

// ElapsedMs returns simulated time.
func (e *Engine[S]) ElapsedMs() float64 { return e.elapsedMs }

// State exposes the engine-owned state.
func (e *Engine[S]) State() *S { return &e.state }

// StepMs returns the nominal step length.
func (e *Engine[S]) StepMs() float64 { return e.cfg.StepMs }

// Pending returns the number of staged commands.
func (e *Engine[S]) Pending() int { return e.queue.Len() }

// PendingFor returns the number of commands staged for slot.
func (e *Engine[S]) PendingFor(slot int) int { return e.queue.LaneLen(slot) }

// Enqueue stages cmd for the next step. It reports the reject reason when the
// command was dropped.
func (e *Engine[S]) Enqueue(cmd Command) (bool, string) {
	e.queueMu.Lock()
	if e.cfg.PerActorLimit > 0 && cmd.Actor != "" {
		if e.perActor[cmd.Actor] >= e.cfg.PerActorLimit {
			e.queueMu.Unlock()
			e.reportDrop(CommandRejectActorLimit, cmd)
			return false, CommandRejectActorLimit
		}
		e.perActor[cmd.Actor]++
	}
	ok := e.queue.Push(cmd)
	if !ok && cmd.Actor != "" {
		e.perActor[cmd.Actor]--
	}
	e.queueMu.Unlock()
	if !ok {
		e.reportDrop(CommandRejectQueueFull, cmd)
		return false, CommandRejectQueueFull
	}
	return true, ""
}

// Step advances the engine by exactly one step of deltaMs.
func (e *Engine[S]) Step(deltaMs float64) StepResult {
	if deltaMs < 0 || math.IsNaN(deltaMs) {
		deltaMs = 0
	}
	e.frame++
	e.elapsedMs += deltaMs

	e.queueMu.Lock()
	commands := e.queue.Drain()
	if len(e.perActor) > 0 {
		e.perActor = make(map[string]int)
	}
	e.queueMu.Unlock()

	ctx := &StepContext[S]{
		Frame:       e.frame,
		DeltaMs:     deltaMs,
		DeltaFrames: deltaMs / e.cfg.StepMs,
		Commands:    commands,
		State:       &e.state,
	}
	for _, sys := range e.systems {
		sys.Step(ctx)
	}
	for _, cmd := range ctx.scheduled {
		e.Enqueue(cmd)
	}
	return StepResult{
		Frame:     e.frame,
		DeltaMs:   deltaMs,
		ElapsedMs: e.elapsedMs,
		Commands:  commands,
		Events:    ctx.events,
	}
}

// Update feeds elapsedMs of wall time into the accumulator and runs as many
// whole steps as it covers, then one partial step with the remainder. When
// MaxStepsPerUpdate is reached the rest is carried to the next call.
func (e *Engine[S]) Update(elapsedMs float64) []StepResult {
	if elapsedMs > 0 {
		e.accumulator += elapsedMs
	}
	var results []StepResult
	for e.accumulator >= e.cfg.StepMs && len(results) < e.cfg.MaxStepsPerUpdate {
		results = append(results, e.Step(e.cfg.StepMs))
		e.accumulator -= e.cfg.StepMs
	}
	if len(results) < e.cfg.MaxStepsPerUpdate && e.accumulator > remainderEpsilonMs {
		results = append(results, e.Step(e.accumulator))
		e.accumulator = 0
	}
	if e.accumulator < remainderEpsilonMs {
		e.accumulator = 0
	}
	if e.accumulator >= e.cfg.StepMs {
		e.deps.Logger.Printf("[sim] match %s: catch-up capped at %d steps, carrying %.1fms", e.deps.MatchID, e.cfg.MaxStepsPerUpdate, e.accumulator)
	}
	return results
}

// Run drives Update from a ticker until ctx is done. onStep receives every
// step result in order.
func (e *Engine[S]) Run(ctx context.Context, onStep func(StepResult)) error {
	interval := time.Duration(e.cfg.StepMs * float64(time.Millisecond))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			elapsed := float64(now.Sub(last)) / float64(time.Millisecond)
			last = now
			for _, result := range e.Update(elapsed) {
				if onStep != nil {
					onStep(result)
				}
			}
		}
	}
}

func (e *Engine[S]) reportDrop(reason string, cmd Command) {
	e.deps.Logger.Printf("[sim] match %s: dropped %s command from %q: %s", e.deps.MatchID, cmd.Type, cmd.Actor, reason)
	logsim.CommandDropped(context.Background(), e.deps.Publisher, e.deps.MatchID, e.frame, logsim.CommandDroppedPayload{
		Actor: cmd.Actor,
		Type:  string(cmd.Type),
	})
}
