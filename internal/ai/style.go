package ai

import "strings"

// Weights bias the next state picked at a decision point. Only relative
// magnitudes matter.
type Weights struct {
	Idle      float64 `json:"idle" msgpack:"idle"`
	Chase     float64 `json:"chase" msgpack:"chase"`
	Retreat   float64 `json:"retreat" msgpack:"retreat"`
	Attack    float64 `json:"attack" msgpack:"attack"`
	Block     float64 `json:"block" msgpack:"block"`
	Jump      float64 `json:"jump" msgpack:"jump"`
	AirAttack float64 `json:"airAttack" msgpack:"airAttack"`
	Dodge     float64 `json:"dodge" msgpack:"dodge"`
	Grab      float64 `json:"grab" msgpack:"grab"`
	Taunt     float64 `json:"taunt" msgpack:"taunt"`
}

// Style tunes a Brain.
type Style struct {
	Name string `json:"name" msgpack:"name"`
	// PreferredRange is the spacing the brain tries to hold.
	PreferredRange float64 `json:"preferredRange" msgpack:"preferredRange"`
	// StrikeRange is the distance at which attacks can connect.
	StrikeRange float64 `json:"strikeRange" msgpack:"strikeRange"`
	// AttackCadence is the minimum number of frames between attacks.
	AttackCadence float64 `json:"attackCadence" msgpack:"attackCadence"`
	// DecisionInterval is the mean number of frames between re-evaluations.
	DecisionInterval float64 `json:"decisionInterval" msgpack:"decisionInterval"`
	// AirJumpChance is the per-attempt probability that an air-jump succeeds.
	AirJumpChance float64 `json:"airJumpChance" msgpack:"airJumpChance"`
	Weights       Weights `json:"weights" msgpack:"weights"`
}

// Rushdown closes distance and attacks often.
func Rushdown() Style {
	return Style{
		Name:             "rushdown",
		PreferredRange:   1.2,
		StrikeRange:      1.6,
		AttackCadence:    14,
		DecisionInterval: 12,
		AirJumpChance:    0.6,
		Weights: Weights{
			Idle: 0.2, Chase: 3, Retreat: 0.3, Attack: 4, Block: 0.8,
			Jump: 0.8, AirAttack: 1.2, Dodge: 0.6, Grab: 1.2, Taunt: 0.05,
		},
	}
}

// Balanced mixes offence and defence evenly.
func Balanced() Style {
	return Style{
		Name:             "balanced",
		PreferredRange:   2,
		StrikeRange:      1.6,
		AttackCadence:    24,
		DecisionInterval: 18,
		AirJumpChance:    0.45,
		Weights: Weights{
			Idle: 0.6, Chase: 2, Retreat: 1, Attack: 2.5, Block: 1.5,
			Jump: 0.7, AirAttack: 0.7, Dodge: 0.8, Grab: 0.7, Taunt: 0.1,
		},
	}
}

// Zoner keeps distance and punishes approaches.
func Zoner() Style {
	return Style{
		Name:             "zoner",
		PreferredRange:   3.5,
		StrikeRange:      1.8,
		AttackCadence:    32,
		DecisionInterval: 22,
		AirJumpChance:    0.3,
		Weights: Weights{
			Idle: 0.8, Chase: 0.8, Retreat: 2.5, Attack: 1.8, Block: 2,
			Jump: 1, AirAttack: 0.4, Dodge: 1.2, Grab: 0.3, Taunt: 0.2,
		},
	}
}

// StyleByName resolves a preset by name, case-insensitively.
func StyleByName(name string) (Style, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "rushdown":
		return Rushdown(), true
	case "balanced", "":
		return Balanced(), true
	case "zoner":
		return Zoner(), true
	default:
		return Style{}, false
	}
}
