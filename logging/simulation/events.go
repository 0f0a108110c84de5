package simulation

import (
	"context"

	"arena-duel/server/logging"
)

const (
	// EventInputFallback is emitted when a frame advances with one side's
	// last known input standing in for a missing frame.
	EventInputFallback logging.EventType = "simulation.input_fallback"
	// EventCommandDropped is emitted when the engine queue rejects a command.
	EventCommandDropped logging.EventType = "simulation.command_dropped"
)

type InputFallbackPayload struct {
	Slot   string `json:"slot"`
	Reason string `json:"reason"`
	Lead   int    `json:"lead"`
}

type CommandDroppedPayload struct {
	Actor string `json:"actor"`
	Type  string `json:"type"`
}

func InputFallback(ctx context.Context, pub logging.Publisher, matchID string, frame uint64, payload InputFallbackPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInputFallback,
		Frame:    frame,
		MatchID:  matchID,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

func CommandDropped(ctx context.Context, pub logging.Publisher, matchID string, frame uint64, payload CommandDroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCommandDropped,
		Frame:    frame,
		MatchID:  matchID,
		Actor:    logging.MatchRef(matchID),
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}
