package sim

import "arena-duel/server/internal/input"

// CommandType enumerates the commands systems understand.
type CommandType string

const (
	// CommandInput carries one slot's controls for a frame.
	CommandInput CommandType = "Input"
	// CommandForfeit ends the match in favour of the other slot.
	CommandForfeit CommandType = "Forfeit"
)

// Command is an intent staged for the next step.
type Command struct {
	// Frame is the frame the command was issued for. Zero means "next".
	Frame uint64       `json:"frame"`
	Actor string       `json:"actor"`
	Slot  int          `json:"slot"`
	Type  CommandType  `json:"type"`
	Input *input.Frame `json:"input,omitempty"`
	// Fallback marks inputs substituted for a stalled participant.
	Fallback bool `json:"fallback,omitempty"`
}

// Event is something a system observed during a step.
type Event struct {
	Frame   uint64 `json:"frame"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
