package logging

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// EventType is the dotted name of an event, e.g. "combat.hit".
type EventType string

// Severity orders events for the router's minimum-severity filter.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

var severityNames = [...]string{"debug", "info", "warn", "error"}

func (s Severity) String() string {
	if s < SeverityDebug || int(s) >= len(severityNames) {
		return "unknown"
	}
	return severityNames[s]
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *Severity) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, candidate := range severityNames {
		if candidate == name {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("logging: unknown severity %q", text)
}

type EntityKind string

const (
	EntityKindUnknown    EntityKind = "unknown"
	EntityKindFighter    EntityKind = "fighter"
	EntityKindMatch      EntityKind = "match"
	EntityKindConnection EntityKind = "connection"
)

// EntityRef points at the subject of an event.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// FighterRef names one of the two fighters of a match by slot.
func FighterRef(slot string) EntityRef {
	return EntityRef{ID: slot, Kind: EntityKindFighter}
}

// ConnectionRef names a transport connection.
func ConnectionRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindConnection}
}

// MatchRef names a match.
func MatchRef(id string) EntityRef {
	return EntityRef{ID: id, Kind: EntityKindMatch}
}

func (r EntityRef) String() string {
	switch {
	case r.ID == "":
		return string(r.Kind)
	case r.Kind == "":
		return r.ID
	default:
		return string(r.Kind) + ":" + r.ID
	}
}

const (
	CategoryCombat     = "combat"
	CategoryNetwork    = "network"
	CategorySimulation = "simulation"
)

// Event is the unit routed to sinks. Frame is the simulation frame the event
// belongs to, zero for events raised outside the match loop.
type Event struct {
	Type     EventType      `json:"type"`
	Frame    uint64         `json:"frame"`
	Time     time.Time      `json:"time"`
	MatchID  string         `json:"matchId,omitempty"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Clone returns a copy whose targets and extras are not shared with e.
func (e Event) Clone() Event {
	e.Targets = slices.Clone(e.Targets)
	e.Extra = maps.Clone(e.Extra)
	return e
}

// withDefaults fills extra keys the event does not already carry.
func (e Event) withDefaults(fields map[string]any) Event {
	if len(fields) == 0 {
		return e
	}
	e = e.Clone()
	if e.Extra == nil {
		e.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, set := e.Extra[k]; !set {
			e.Extra[k] = v
		}
	}
	return e
}
