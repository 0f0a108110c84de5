// Package input defines the per-frame control snapshot shared by human
// players and the CPU brain.
package input

// Button names a control bound by move definitions.
type Button string

const (
	ButtonNone    Button = ""
	ButtonLight   Button = "light"
	ButtonHeavy   Button = "heavy"
	ButtonSpecial Button = "special"
	ButtonJump    Button = "jump"
	ButtonBlock   Button = "block"
	ButtonDodge   Button = "dodge"
	ButtonGrab    Button = "grab"
	ButtonTaunt   Button = "taunt"
)

// Direction is a stick direction relative to the fighter's facing.
type Direction string

const (
	DirectionAny     Direction = ""
	DirectionNeutral Direction = "neutral"
	DirectionForward Direction = "forward"
	DirectionBack    Direction = "back"
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
)

// Frame is one participant's control snapshot for one frame number.
type Frame struct {
	Frame   uint64 `json:"frame" msgpack:"frame"`
	Left    bool   `json:"left,omitempty" msgpack:"left"`
	Right   bool   `json:"right,omitempty" msgpack:"right"`
	Up      bool   `json:"up,omitempty" msgpack:"up"`
	Down    bool   `json:"down,omitempty" msgpack:"down"`
	Jump    bool   `json:"jump,omitempty" msgpack:"jump"`
	Light   bool   `json:"light,omitempty" msgpack:"light"`
	Heavy   bool   `json:"heavy,omitempty" msgpack:"heavy"`
	Special bool   `json:"special,omitempty" msgpack:"special"`
	Block   bool   `json:"block,omitempty" msgpack:"block"`
	Dodge   bool   `json:"dodge,omitempty" msgpack:"dodge"`
	Grab    bool   `json:"grab,omitempty" msgpack:"grab"`
	Taunt   bool   `json:"taunt,omitempty" msgpack:"taunt"`
}

// Pressed reports whether the given button is held.
func (f Frame) Pressed(b Button) bool {
	switch b {
	case ButtonLight:
		return f.Light
	case ButtonHeavy:
		return f.Heavy
	case ButtonSpecial:
		return f.Special
	case ButtonJump:
		return f.Jump
	case ButtonBlock:
		return f.Block
	case ButtonDodge:
		return f.Dodge
	case ButtonGrab:
		return f.Grab
	case ButtonTaunt:
		return f.Taunt
	default:
		return false
	}
}

// Horizontal returns -1, 0 or +1 for the world-space stick x axis.
func (f Frame) Horizontal() float64 {
	switch {
	case f.Left && !f.Right:
		return -1
	case f.Right && !f.Left:
		return 1
	default:
		return 0
	}
}

// Holds reports whether the stick points in d for a fighter facing facing.
func (f Frame) Holds(d Direction, facing int) bool {
	h := f.Horizontal() * float64(facing)
	switch d {
	case DirectionAny:
		return true
	case DirectionNeutral:
		return h == 0 && !f.Up && !f.Down
	case DirectionForward:
		return h > 0
	case DirectionBack:
		return h < 0
	case DirectionUp:
		return f.Up
	case DirectionDown:
		return f.Down
	default:
		return false
	}
}

// AttackPressed reports whether any attack-class button is held.
func (f Frame) AttackPressed() bool {
	return f.Light || f.Heavy || f.Special || f.Grab
}

// WithoutAttacks clears attack-class buttons. Used during hit-lag.
func (f Frame) WithoutAttacks() Frame {
	f.Light, f.Heavy, f.Special, f.Grab = false, false, false, false
	return f
}

// WithoutDefense clears block, dodge and attack buttons. Used on guard break.
func (f Frame) WithoutDefense() Frame {
	f = f.WithoutAttacks()
	f.Block, f.Dodge = false, false
	return f
}

// Neutral keeps only the frame number.
func (f Frame) Neutral() Frame {
	return Frame{Frame: f.Frame}
}
