package combat

import (
	"context"

	"arena-duel/server/logging"
)

const (
	// EventHit is emitted once per confirmed hit, blocked or not.
	EventHit logging.EventType = "combat.hit"
	// EventGuardBreak is emitted when a fighter's guard meter collapses.
	EventGuardBreak logging.EventType = "combat.guard_break"
	// EventKnockout is emitted when a fighter's health reaches zero.
	EventKnockout logging.EventType = "combat.knockout"
)

// HitPayload mirrors the telemetry record produced for a confirmed hit.
type HitPayload struct {
	Frame          uint64     `json:"frame"`
	MoveID         string     `json:"moveId"`
	HitboxID       string     `json:"hitboxId"`
	Damage         float64    `json:"damage"`
	GuardDamage    float64    `json:"guardDamage"`
	Knockback      [3]float64 `json:"knockback"`
	HitLag         int        `json:"hitLag"`
	LaunchAngle    float64    `json:"launchAngle"`
	CounterHit     bool       `json:"counterHit"`
	Blocked        bool       `json:"blocked"`
	AttackerAction string     `json:"attackerAction"`
	DefenderAction string     `json:"defenderAction"`
	DefenderHealth float64    `json:"defenderHealth"`
	ComboCount     int        `json:"comboCount"`
}

// GuardBreakPayload records the side effects applied on a guard break.
type GuardBreakPayload struct {
	Guard      float64 `json:"guard"`
	ChipDamage float64 `json:"chipDamage"`
	StunFrames int     `json:"stunFrames"`
}

// KnockoutPayload names the winner of the match.
type KnockoutPayload struct {
	Winner string `json:"winner"`
}

// Hit publishes a confirmed hit.
func Hit(ctx context.Context, pub logging.Publisher, matchID string, attacker, defender logging.EntityRef, payload HitPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHit,
		Frame:    payload.Frame,
		MatchID:  matchID,
		Actor:    attacker,
		Targets:  []logging.EntityRef{defender},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

// GuardBreak publishes a guard break for the broken fighter.
func GuardBreak(ctx context.Context, pub logging.Publisher, matchID string, frame uint64, fighter logging.EntityRef, payload GuardBreakPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventGuardBreak,
		Frame:    frame,
		MatchID:  matchID,
		Actor:    fighter,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}

func Knockout(ctx context.Context, pub logging.Publisher, matchID string, frame uint64, loser logging.EntityRef, payload KnockoutPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventKnockout,
		Frame:    frame,
		MatchID:  matchID,
		Actor:    loser,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
