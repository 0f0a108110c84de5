// Package reconnect models client connection lifecycle as an explicit state
// enum with pure transitions. It performs no I/O; callers act on the
// returned Action.
package reconnect

import (
	"math"
	"time"
)

type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Reconnecting State = "reconnecting"
	Failed       State = "failed"
)

// CloseNormal is the only close code that does not schedule a reconnect.
const CloseNormal = 1000

type EventKind int

const (
	// EventConnect is a user request to open the connection.
	EventConnect EventKind = iota
	// EventOpened reports a successful dial.
	EventOpened
	// EventDialFailed reports a failed dial.
	EventDialFailed
	// EventClosed reports the connection closing with Code.
	EventClosed
	// EventRetryDue fires when the backoff delay has elapsed.
	EventRetryDue
	// EventStop is an intentional disconnect by the user.
	EventStop
)

// Event drives the machine. Jitter in [-1, 1] scales the backoff spread and
// is supplied by the caller so transitions stay deterministic.
type Event struct {
	Kind   EventKind
	Code   int
	Jitter float64
}

type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionDial
	ActionWait
	ActionClose
	ActionReportFailure
)

type Action struct {
	Kind  ActionKind
	Delay time.Duration
}

// Policy is the backoff schedule.
type Policy struct {
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
	Jitter      float64
	MaxAttempts int
}

func DefaultPolicy() Policy {
	return Policy{
		Initial:     time.Second,
		Factor:      2,
		Max:         30 * time.Second,
		Jitter:      0.3,
		MaxAttempts: 10,
	}
}

// Delay returns the wait before retry attempt (1-based). jitter in [-1, 1]
// moves the delay by up to Policy.Jitter of its value.
func (p Policy) Delay(attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	jitter = math.Max(-1, math.Min(1, jitter))
	base := float64(p.Initial) * math.Pow(p.Factor, float64(attempt-1))
	base = math.Min(base, float64(p.Max))
	delay := base * (1 + jitter*p.Jitter)
	if delay < 0 {
		delay = 0
	}
	return time.Duration(math.Round(delay))
}

// Machine is the connection state plus the number of retries spent.
type Machine struct {
	State   State
	Attempt int
	Policy  Policy
}

func New(policy Policy) Machine {
	return Machine{State: Disconnected, Policy: policy}
}

// Next applies ev and returns the new machine and what the caller must do.
// Events that make no sense in the current state are ignored.
func (m Machine) Next(ev Event) (Machine, Action) {
	if ev.Kind == EventStop {
		if m.State == Connected || m.State == Connecting {
			m.State, m.Attempt = Disconnected, 0
			return m, Action{Kind: ActionClose}
		}
		m.State, m.Attempt = Disconnected, 0
		return m, Action{}
	}

	switch m.State {
	case Disconnected, Failed:
		if ev.Kind == EventConnect {
			m.State, m.Attempt = Connecting, 0
			return m, Action{Kind: ActionDial}
		}
	case Connecting:
		switch ev.Kind {
		case EventOpened:
			m.State, m.Attempt = Connected, 0
			return m, Action{}
		case EventDialFailed, EventClosed:
			return m.retry(ev.Jitter)
		}
	case Connected:
		if ev.Kind == EventClosed {
			if ev.Code == CloseNormal {
				m.State, m.Attempt = Disconnected, 0
				return m, Action{}
			}
			return m.retry(ev.Jitter)
		}
	case Reconnecting:
		if ev.Kind == EventRetryDue {
			m.State = Connecting
			return m, Action{Kind: ActionDial}
		}
	}
	return m, Action{}
}

func (m Machine) retry(jitter float64) (Machine, Action) {
	if m.Attempt >= m.Policy.MaxAttempts {
		m.State = Failed
		return m, Action{Kind: ActionReportFailure}
	}
	m.Attempt++
	m.State = Reconnecting
	return m, Action{Kind: ActionWait, Delay: m.Policy.Delay(m.Attempt, jitter)}
}
