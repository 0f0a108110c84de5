package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"arena-duel/server/internal/input"
	"arena-duel/server/internal/match"
	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/net/proto"
	"arena-duel/server/internal/sim"
	"arena-duel/server/logging"
	lognet "arena-duel/server/logging/network"
	logsim "arena-duel/server/logging/simulation"
)

// Phase is the lifecycle stage of a match.
type Phase string

const (
	PhaseCreated     Phase = "created"
	PhaseHostJoined  Phase = "host_joined"
	PhaseGuestJoined Phase = "guest_joined"
	PhaseActive      Phase = "active"
	PhaseEnded       Phase = "ended"
)

// Binding identifies a connection bound to a match slot.
type Binding struct {
	MatchID      string
	ConnectionID string
	Slot         match.Slot
	ProfileID    string
	Reconnect    bool
}

type participant struct {
	profileID    string
	connID       string
	conn         Conn
	lastSeen     time.Time
	awaitingPong bool
	missed       int
	inputs       map[uint64]input.Frame
	last         input.Frame
}

func (p *participant) bound() bool { return p.profileID != "" }

// Inbox messages.
type (
	joinRequest struct {
		conn  Conn
		msg   proto.Join
		reply chan joinReply
	}
	joinReply struct {
		binding Binding
		err     error
	}
	inputsMessage struct {
		connID string
		msg    proto.Inputs
	}
	pongMessage struct {
		connID string
		sentAt int64
	}
	leaveRequest struct {
		connID string
		reason string
		reply  chan error
	}
	detachMessage struct {
		connID string
	}
	execRequest struct {
		fn   func()
		done chan struct{}
	}
)

// Match owns one runtime and its two participant slots. Everything except
// the inbox is touched only by the Run goroutine.
type Match struct {
	ID string

	cfg     Config
	inbox   chan any
	quit    chan struct{}
	done    chan struct{}
	stop    sync.Once
	onEmpty func(id string)

	runtime *match.Runtime
	engine  *sim.Engine[match.EngineState]
	cpu     [2]bool
	seats   [2]participant
	phase   Phase
	seed    uint32

	createdAt   time.Time
	everJoined  bool
	stallSince  time.Time
	discarded   bool
	connections atomic.Int32
}

func newMatch(id string, seed uint32, cpu *match.FighterConfig, cfg Config, lib *moves.Library, onEmpty func(string)) *Match {
	mcfg := cfg.Match
	mcfg.MatchID = id
	mcfg.Seed = seed
	mcfg.Publisher = cfg.Publisher
	var cpuSeats [2]bool
	if cpu != nil && cpu.CPU != nil {
		style := *cpu.CPU
		mcfg.Fighters[match.SlotGuest].CPU = &style
		cpuSeats[match.SlotGuest] = true
	}
	rt := match.New(mcfg, lib)
	now := cfg.Now()
	m := &Match{
		ID:        id,
		cfg:       cfg,
		inbox:     make(chan any, cfg.InboxSize),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		onEmpty:   onEmpty,
		runtime:   rt,
		cpu:       cpuSeats,
		phase:     PhaseCreated,
		seed:      seed,
		createdAt: now,
	}
	m.engine = match.NewEngine(rt, cfg.Engine, sim.Deps{
		MatchID:   id,
		Logger:    cfg.Logger,
		Metrics:   cfg.Metrics,
		Publisher: cfg.Publisher,
	})
	if cpuSeats[match.SlotGuest] {
		m.seats[match.SlotGuest] = participant{profileID: "cpu"}
	}
	return m
}

// Run processes inbox messages, heartbeats and stall checks until the match
// is stopped or discarded.
func (m *Match) Run() {
	defer close(m.done)
	heartbeat := time.NewTicker(m.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	stall := time.NewTicker(stallCheckInterval(m.cfg.StallTimeout))
	defer stall.Stop()

	for !m.discarded {
		select {
		case <-m.quit:
			m.shutdown()
			return
		case msg := <-m.inbox:
			m.handle(msg)
		case <-heartbeat.C:
			m.heartbeat()
		case <-stall.C:
			m.advance()
			m.checkIdle()
		}
	}
}

func stallCheckInterval(timeout time.Duration) time.Duration {
	interval := timeout / 4
	if interval < 5*time.Millisecond {
		interval = 5 * time.Millisecond
	}
	return interval
}

// Stop ends the Run loop and closes open connections.
func (m *Match) Stop() {
	m.stop.Do(func() { close(m.quit) })
}

// Done is closed once Run has returned.
func (m *Match) Done() <-chan struct{} { return m.done }

// Connections reports the number of open participant connections.
func (m *Match) Connections() int { return int(m.connections.Load()) }

func (m *Match) post(ctx context.Context, msg any) error {
	select {
	case m.inbox <- msg:
		return nil
	case <-m.done:
		return ErrUnknownMatch
	case <-ctx.Done():
		return ctx.Err()
	}
}

// exec runs fn on the match goroutine and waits for it.
func (m *Match) exec(ctx context.Context, fn func()) error {
	req := execRequest{fn: fn, done: make(chan struct{})}
	if err := m.post(ctx, req); err != nil {
		return err
	}
	select {
	case <-req.done:
		return nil
	case <-m.done:
		return ErrUnknownMatch
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Match) handle(msg any) {
	switch c := msg.(type) {
	case joinRequest:
		binding, err := m.join(c.conn, c.msg)
		c.reply <- joinReply{binding: binding, err: err}
	case inputsMessage:
		m.submit(c.connID, c.msg)
	case pongMessage:
		m.pong(c.connID)
	case leaveRequest:
		c.reply <- m.leave(c.connID, c.reason)
	case detachMessage:
		m.detach(c.connID)
	case execRequest:
		c.fn()
		close(c.done)
	}
}

func (m *Match) join(conn Conn, msg proto.Join) (Binding, error) {
	slot, reconnect, err := m.claim(msg)
	if err != nil {
		m.reject(conn, msg, err)
		return Binding{}, err
	}
	seat := &m.seats[slot]
	if reconnect && seat.conn != nil {
		_ = seat.conn.Close(CloseNormal, proto.ReasonReplaced)
		m.connections.Add(-1)
	}
	now := m.cfg.Now()
	seat.profileID = msg.ProfileID
	seat.connID = uuid.NewString()
	seat.conn = conn
	seat.lastSeen = now
	seat.awaitingPong = false
	seat.missed = 0
	if seat.inputs == nil {
		seat.inputs = make(map[uint64]input.Frame)
	}
	m.connections.Add(1)
	m.everJoined = true
	m.updatePhase()
	if m.phase == PhaseGuestJoined {
		m.stallSince = now
	}

	binding := Binding{
		MatchID:      m.ID,
		ConnectionID: seat.connID,
		Slot:         slot,
		ProfileID:    msg.ProfileID,
		Reconnect:    reconnect,
	}
	m.send(slot, &proto.Joined{ConnectionID: seat.connID, Descriptor: m.descriptor(slot, reconnect)})
	lognet.Joined(context.Background(), m.cfg.Publisher, m.ID, logging.ConnectionRef(seat.connID), lognet.SessionPayload{
		ProfileID: msg.ProfileID,
		Slot:      slot.String(),
		Reconnect: reconnect,
	})
	m.cfg.Logger.Printf("[session] match %s: %s joined %s (reconnect=%t)", m.ID, msg.ProfileID, slot, reconnect)
	return binding, nil
}

// claim picks the slot for a join. A profile already seated reclaims its own
// slot and may not take the other one; otherwise the requested or first free
// slot is taken.
func (m *Match) claim(msg proto.Join) (match.Slot, bool, error) {
	for i := range m.seats {
		if !m.cpu[i] && m.seats[i].profileID == msg.ProfileID {
			if msg.Slot != "" && msg.Slot != match.Slot(i).String() {
				return match.Slot(i).Other(), false, ErrSlotTaken
			}
			return match.Slot(i), true, nil
		}
	}
	if msg.Slot != "" {
		slot := match.SlotHost
		if msg.Slot == proto.SlotGuest {
			slot = match.SlotGuest
		}
		if m.seats[slot].bound() {
			return slot, false, ErrSlotTaken
		}
		return slot, false, nil
	}
	for i := range m.seats {
		if !m.seats[i].bound() {
			return match.Slot(i), false, nil
		}
	}
	return 0, false, ErrMatchFull
}

func (m *Match) reject(conn Conn, msg proto.Join, err error) {
	reason := reasonFor(err)
	if data, encErr := proto.Encode(&proto.Leave{Reason: reason}); encErr == nil {
		_ = conn.Send(data)
	}
	_ = conn.Close(CloseNormal, reason)
	m.cfg.Counters.IncrementRejectedJoin()
	lognet.JoinRejected(context.Background(), m.cfg.Publisher, m.ID, logging.EntityRef{ID: msg.ProfileID, Kind: logging.EntityKindConnection}, lognet.SessionPayload{
		ProfileID: msg.ProfileID,
		Slot:      msg.Slot,
		Reason:    reason,
	})
	m.cfg.Logger.Printf("[session] match %s: rejected %s: %v", m.ID, msg.ProfileID, err)
}

func reasonFor(err error) string {
	switch err {
	case ErrSlotTaken:
		return proto.ReasonSlotTaken
	case ErrMatchFull:
		return proto.ReasonMatchFull
	default:
		return proto.ReasonUnknownMatch
	}
}

func (m *Match) descriptor(slot match.Slot, reconnect bool) proto.Descriptor {
	return proto.Descriptor{
		MatchID:         m.ID,
		Slot:            slot.String(),
		ProfileID:       m.seats[slot].profileID,
		Opponent:        m.seats[slot.Other()].profileID,
		Seed:            m.seed,
		Frame:           m.runtime.Frame(),
		Phase:           string(m.phase),
		InputLeadFrames: m.cfg.InputLeadFrames,
		Reconnect:       reconnect,
	}
}

func (m *Match) updatePhase() {
	if m.phase == PhaseActive || m.phase == PhaseEnded {
		return
	}
	switch {
	case m.seats[0].bound() && m.seats[1].bound():
		m.phase = PhaseGuestJoined
	case m.seats[0].bound() || m.seats[1].bound():
		m.phase = PhaseHostJoined
	default:
		m.phase = PhaseCreated
	}
}

func (m *Match) seatFor(connID string) (match.Slot, bool) {
	if connID == "" {
		return 0, false
	}
	for i := range m.seats {
		if !m.cpu[i] && m.seats[i].connID == connID {
			return match.Slot(i), true
		}
	}
	return 0, false
}

func (m *Match) submit(sender string, msg proto.Inputs) {
	slot, ok := m.seatFor(sender)
	if !ok || msg.ConnectionID != sender {
		m.ignoreInput(sender, msg, "connection mismatch")
		return
	}
	seat := &m.seats[slot]
	seat.lastSeen = m.cfg.Now()
	current := m.runtime.Frame()
	switch {
	case msg.Frame <= current:
		m.ignoreInput(sender, msg, "stale frame")
		return
	case msg.Frame > current+uint64(m.cfg.MaxBufferedFrames):
		m.ignoreInput(sender, msg, "frame too far ahead")
		return
	}
	in := msg.Inputs
	in.Frame = msg.Frame
	seat.inputs[msg.Frame] = in
	m.advance()
}

func (m *Match) ignoreInput(connID string, msg proto.Inputs, reason string) {
	lognet.InputIgnored(context.Background(), m.cfg.Publisher, m.ID, logging.ConnectionRef(connID), lognet.MessagePayload{
		MessageType: string(proto.TypeInputs),
		Frame:       msg.Frame,
		Error:       reason,
	})
	m.cfg.Logger.Printf("[session] match %s: ignored inputs for frame %d from %s: %s", m.ID, msg.Frame, connID, reason)
}

// advance applies every frame that is ready. A frame is ready once each
// human seat has buffered input for it, or once one side leads by
// InputLeadFrames or the frame has waited StallTimeout, in which case the
// missing side repeats its last known input.
func (m *Match) advance() {
	for m.phase == PhaseGuestJoined || m.phase == PhaseActive {
		if m.runtime.Ended() {
			m.phase = PhaseEnded
			return
		}
		next := m.runtime.Frame() + 1
		var have [2]bool
		var humans, present int
		lead := 0
		for i := range m.seats {
			if m.cpu[i] {
				continue
			}
			humans++
			if _, ok := m.seats[i].inputs[next]; ok {
				have[i] = true
				present++
				lead = max(lead, m.bufferedAhead(match.Slot(i), next))
			}
		}
		if humans == 0 || present == 0 {
			return
		}
		var fallback []match.Slot
		if present < humans {
			stalled := m.cfg.Now().Sub(m.stallSince) >= m.cfg.StallTimeout
			leading := lead >= m.cfg.InputLeadFrames
			if !stalled && !leading {
				return
			}
			reason := "stall_timeout"
			if leading {
				reason = "input_lead"
			}
			for i := range m.seats {
				if !m.cpu[i] && !have[i] {
					fallback = append(fallback, match.Slot(i))
					m.cfg.Counters.IncrementFallback()
					logsim.InputFallback(context.Background(), m.cfg.Publisher, m.ID, next, logsim.InputFallbackPayload{
						Slot:   match.Slot(i).String(),
						Reason: reason,
						Lead:   lead,
					})
				}
			}
		}
		m.step(next, fallback)
	}
}

// bufferedAhead counts consecutive buffered frames starting at next.
func (m *Match) bufferedAhead(slot match.Slot, next uint64) int {
	n := 0
	for {
		if _, ok := m.seats[slot].inputs[next+uint64(n)]; !ok {
			return n
		}
		n++
	}
}

func (m *Match) step(frame uint64, fallback []match.Slot) {
	start := time.Now()
	for i := range m.seats {
		if m.cpu[i] {
			continue
		}
		seat := &m.seats[i]
		in, ok := seat.inputs[frame]
		if ok {
			delete(seat.inputs, frame)
			seat.last = in
		} else {
			in = seat.last
		}
		in.Frame = frame
		m.engine.Enqueue(sim.Command{
			Frame:    frame,
			Actor:    match.Slot(i).String(),
			Slot:     i,
			Type:     sim.CommandInput,
			Input:    &in,
			Fallback: !ok,
		})
	}
	m.engine.Step(m.engine.StepMs())
	m.phase = PhaseActive
	m.stallSince = m.cfg.Now()
	hits := m.runtime.DrainHits()
	m.cfg.Counters.RecordFrame(time.Since(start), len(hits))

	state := &proto.State{Frame: m.runtime.Frame(), Snapshot: m.runtime.Snapshot()}
	for _, slot := range fallback {
		state.Fallback = append(state.Fallback, slot.String())
	}
	m.broadcast(state)
	if m.runtime.Ended() {
		m.phase = PhaseEnded
		m.cfg.Logger.Printf("[session] match %s ended at frame %d, winner %d", m.ID, m.runtime.Frame(), m.runtime.Winner())
	}
}

func (m *Match) broadcast(msg any) {
	data, err := proto.Encode(msg)
	if err != nil {
		m.cfg.Logger.Printf("[session] match %s: encode broadcast: %v", m.ID, err)
		return
	}
	for i := range m.seats {
		if m.seats[i].conn == nil {
			continue
		}
		if err := m.seats[i].conn.Send(data); err != nil {
			m.cfg.Logger.Printf("[session] match %s: send to %s failed: %v", m.ID, m.seats[i].connID, err)
			m.detach(m.seats[i].connID)
			continue
		}
		m.cfg.Counters.RecordBroadcast(len(data))
	}
}

func (m *Match) send(slot match.Slot, msg any) {
	conn := m.seats[slot].conn
	if conn == nil {
		return
	}
	data, err := proto.Encode(msg)
	if err != nil {
		m.cfg.Logger.Printf("[session] match %s: encode: %v", m.ID, err)
		return
	}
	if err := conn.Send(data); err != nil {
		m.cfg.Logger.Printf("[session] match %s: send to %s failed: %v", m.ID, m.seats[slot].connID, err)
		m.detach(m.seats[slot].connID)
	}
}

func (m *Match) pong(connID string) {
	slot, ok := m.seatFor(connID)
	if !ok {
		return
	}
	seat := &m.seats[slot]
	seat.lastSeen = m.cfg.Now()
	seat.awaitingPong = false
	seat.missed = 0
}

// heartbeat pings every seated human. A seat still awaiting its previous
// pong counts a miss; MaxMissedPings misses or HeartbeatTimeout of silence
// frees the seat.
func (m *Match) heartbeat() {
	now := m.cfg.Now()
	for i := range m.seats {
		if m.cpu[i] || !m.seats[i].bound() {
			continue
		}
		seat := &m.seats[i]
		if seat.awaitingPong || seat.conn == nil {
			seat.missed++
		}
		silent := now.Sub(seat.lastSeen)
		if seat.missed >= m.cfg.MaxMissedPings || silent > m.cfg.HeartbeatTimeout {
			m.timeout(match.Slot(i), silent)
			continue
		}
		if seat.conn != nil {
			m.send(match.Slot(i), &proto.Ping{SentAt: now.UnixMilli()})
			seat.awaitingPong = true
		}
	}
	m.checkEmpty()
}

func (m *Match) timeout(slot match.Slot, silent time.Duration) {
	seat := m.seats[slot]
	m.cfg.Counters.IncrementHeartbeatTimeout()
	lognet.HeartbeatTimeout(context.Background(), m.cfg.Publisher, m.ID, logging.ConnectionRef(seat.connID), lognet.SessionPayload{
		ProfileID:    seat.profileID,
		Slot:         slot.String(),
		Reason:       proto.ReasonTimeout,
		MissedPings:  seat.missed,
		SilentMillis: silent.Milliseconds(),
	})
	m.cfg.Logger.Printf("[session] match %s: %s timed out after %d missed pings", m.ID, slot, seat.missed)
	if seat.conn != nil {
		_ = seat.conn.Close(CloseTimeout, proto.ReasonTimeout)
	}
	m.vacate(slot, proto.ReasonTimeout)
}

func (m *Match) leave(connID, reason string) error {
	slot, ok := m.seatFor(connID)
	if !ok {
		return ErrNotBound
	}
	if reason == "" {
		reason = proto.ReasonLeft
	}
	if conn := m.seats[slot].conn; conn != nil {
		_ = conn.Close(CloseNormal, reason)
	}
	m.vacate(slot, reason)
	m.checkEmpty()
	return nil
}

// vacate frees slot and tells the other participant.
func (m *Match) vacate(slot match.Slot, reason string) {
	seat := m.seats[slot]
	if seat.conn != nil {
		m.connections.Add(-1)
	}
	m.seats[slot] = participant{}
	lognet.Left(context.Background(), m.cfg.Publisher, m.ID, logging.ConnectionRef(seat.connID), lognet.SessionPayload{
		ProfileID: seat.profileID,
		Slot:      slot.String(),
		Reason:    reason,
	})
	m.send(slot.Other(), &proto.Leave{Reason: reason, ConnectionID: seat.connID})
	m.updatePhase()
}

// detach drops a dead connection but keeps the seat reserved for a
// reconnect. The heartbeat frees it if nobody returns.
func (m *Match) detach(connID string) {
	slot, ok := m.seatFor(connID)
	if !ok || m.seats[slot].conn == nil {
		return
	}
	m.seats[slot].conn = nil
	m.connections.Add(-1)
}

func (m *Match) checkEmpty() {
	for i := range m.seats {
		if !m.cpu[i] && m.seats[i].bound() {
			return
		}
	}
	if !m.everJoined {
		return
	}
	m.discard("empty")
}

func (m *Match) checkIdle() {
	if m.everJoined || m.discarded {
		return
	}
	if m.cfg.Now().Sub(m.createdAt) >= m.cfg.IdleTimeout {
		m.discard("idle")
	}
}

func (m *Match) discard(reason string) {
	if m.discarded {
		return
	}
	m.discarded = true
	m.cfg.Logger.Printf("[session] match %s discarded (%s) at frame %d", m.ID, reason, m.runtime.Frame())
	if m.onEmpty != nil {
		m.onEmpty(m.ID)
	}
}

func (m *Match) shutdown() {
	for i := range m.seats {
		if conn := m.seats[i].conn; conn != nil {
			_ = conn.Close(CloseGoingAway, proto.ReasonShutdown)
			m.seats[i].conn = nil
			m.connections.Add(-1)
		}
	}
}

// Info is a point-in-time view of a match.
type Info struct {
	ID          string   `json:"id"`
	Phase       Phase    `json:"phase"`
	Frame       uint64   `json:"frame"`
	Profiles    []string `json:"profiles"`
	Connections int      `json:"connections"`
}

func (m *Match) info() Info {
	info := Info{ID: m.ID, Phase: m.phase, Frame: m.runtime.Frame(), Connections: m.Connections()}
	for i := range m.seats {
		if m.seats[i].bound() {
			info.Profiles = append(info.Profiles, m.seats[i].profileID)
		}
	}
	sort.Strings(info.Profiles)
	return info
}

func (b Binding) String() string {
	return fmt.Sprintf("%s/%s/%s", b.MatchID, b.Slot, b.ConnectionID)
}
