package reconnect

import (
	"testing"
	"time"
)

func TestDelaySchedule(t *testing.T) {
	p := DefaultPolicy()
	cases := []struct {
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{attempt: 1, want: time.Second},
		{attempt: 2, want: 2 * time.Second},
		{attempt: 5, want: 16 * time.Second},
		{attempt: 6, want: 30 * time.Second},
		{attempt: 9, want: 30 * time.Second},
		{attempt: 1, jitter: 1, want: 1300 * time.Millisecond},
		{attempt: 1, jitter: -1, want: 700 * time.Millisecond},
		{attempt: 6, jitter: 5, want: 39 * time.Second},
	}
	for _, tc := range cases {
		if got := p.Delay(tc.attempt, tc.jitter); got != tc.want {
			t.Fatalf("attempt %d jitter %.1f: expected %v, got %v", tc.attempt, tc.jitter, tc.want, got)
		}
	}
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	m := New(DefaultPolicy())
	m, act := m.Next(Event{Kind: EventConnect})
	if m.State != Connecting || act.Kind != ActionDial {
		t.Fatalf("expected dial, got %s %+v", m.State, act)
	}
	m, _ = m.Next(Event{Kind: EventOpened})
	m, act = m.Next(Event{Kind: EventClosed, Code: CloseNormal})
	if m.State != Disconnected || act.Kind != ActionNone {
		t.Fatalf("expected plain disconnect, got %s %+v", m.State, act)
	}
}

func TestTimeoutCloseBacksOffUntilFailed(t *testing.T) {
	m := New(DefaultPolicy())
	m, _ = m.Next(Event{Kind: EventConnect})
	m, _ = m.Next(Event{Kind: EventOpened})

	m, act := m.Next(Event{Kind: EventClosed, Code: 4000})
	if m.State != Reconnecting || act.Kind != ActionWait || act.Delay != time.Second {
		t.Fatalf("expected first retry after 1s, got %s %+v", m.State, act)
	}
	for attempt := 2; attempt <= 10; attempt++ {
		m, act = m.Next(Event{Kind: EventRetryDue})
		if m.State != Connecting || act.Kind != ActionDial {
			t.Fatalf("attempt %d: expected dial, got %s", attempt, m.State)
		}
		m, act = m.Next(Event{Kind: EventDialFailed})
		if m.State != Reconnecting || m.Attempt != attempt {
			t.Fatalf("attempt %d: expected reconnecting, got %s/%d", attempt, m.State, m.Attempt)
		}
	}
	m, _ = m.Next(Event{Kind: EventRetryDue})
	m, act = m.Next(Event{Kind: EventDialFailed})
	if m.State != Failed || act.Kind != ActionReportFailure {
		t.Fatalf("expected failed after 10 attempts, got %s %+v", m.State, act)
	}

	m, act = m.Next(Event{Kind: EventRetryDue})
	if m.State != Failed || act.Kind != ActionNone {
		t.Fatalf("failed machine must ignore retries, got %s", m.State)
	}
	m, act = m.Next(Event{Kind: EventConnect})
	if m.State != Connecting || m.Attempt != 0 || act.Kind != ActionDial {
		t.Fatalf("expected manual connect to restart, got %s/%d", m.State, m.Attempt)
	}
}

func TestReconnectSuccessResetsAttempts(t *testing.T) {
	m := Machine{State: Connected, Policy: DefaultPolicy()}
	m, _ = m.Next(Event{Kind: EventClosed, Code: 1006})
	m, _ = m.Next(Event{Kind: EventRetryDue})
	m, _ = m.Next(Event{Kind: EventDialFailed})
	if m.Attempt != 2 {
		t.Fatalf("expected 2 attempts, got %d", m.Attempt)
	}
	m, _ = m.Next(Event{Kind: EventRetryDue})
	m, _ = m.Next(Event{Kind: EventOpened})
	if m.State != Connected || m.Attempt != 0 {
		t.Fatalf("expected connected with reset attempts, got %s/%d", m.State, m.Attempt)
	}
}

func TestStopCancelsPendingRetry(t *testing.T) {
	m := Machine{State: Reconnecting, Attempt: 3, Policy: DefaultPolicy()}
	m, act := m.Next(Event{Kind: EventStop})
	if m.State != Disconnected || act.Kind != ActionNone {
		t.Fatalf("expected disconnected without close, got %s %+v", m.State, act)
	}
	m = Machine{State: Connected, Policy: DefaultPolicy()}
	if _, act = m.Next(Event{Kind: EventStop}); act.Kind != ActionClose {
		t.Fatalf("expected close action for open connection")
	}
}
