package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/google/uuid"

	"arena-duel/server/internal/ai"
	"arena-duel/server/internal/match"
	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/net/proto"
)

// CreateOptions customise a new match.
type CreateOptions struct {
	// Seed is mixed into the runtime seed. Zero picks a random seed.
	Seed uint32
	// CPU seats a computer opponent in the guest slot using the named style.
	CPU string
}

// Stats summarises the coordinator for the health endpoint.
type Stats struct {
	Matches     int `json:"matches"`
	Connections int `json:"connections"`
}

// Coordinator is the registry of live matches. Each match runs on its own
// goroutine; the registry itself is guarded by mu.
type Coordinator struct {
	cfg Config
	lib *moves.Library

	mu      sync.Mutex
	matches map[string]*Match
	closed  bool
	wg      sync.WaitGroup
}

func NewCoordinator(cfg Config, lib *moves.Library) *Coordinator {
	if lib == nil {
		lib = moves.Default()
	}
	return &Coordinator{
		cfg:     cfg.normalized(),
		lib:     lib,
		matches: make(map[string]*Match),
	}
}

// Create starts a new match and returns its id.
func (c *Coordinator) Create(opts CreateOptions) (string, error) {
	var cpu *match.FighterConfig
	if opts.CPU != "" {
		style, ok := ai.StyleByName(opts.CPU)
		if !ok {
			return "", fmt.Errorf("create match: unknown cpu style %q", opts.CPU)
		}
		cpu = &match.FighterConfig{CPU: &style}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint32()
	}
	id := uuid.NewString()
	m := newMatch(id, seed, cpu, c.cfg, c.lib, c.remove)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	c.matches[id] = m
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		m.Run()
	}()
	c.cfg.Logger.Printf("[session] created match %s (seed=%d cpu=%q)", id, seed, opts.CPU)
	return id, nil
}

func (c *Coordinator) lookup(id string) (*Match, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.matches[id]
	return m, ok
}

func (c *Coordinator) remove(id string) {
	c.mu.Lock()
	delete(c.matches, id)
	c.mu.Unlock()
}

// Join binds conn to a slot of the requested match. On rejection conn has
// already been sent a leave message and closed.
func (c *Coordinator) Join(ctx context.Context, conn Conn, msg proto.Join) (Binding, error) {
	m, ok := c.lookup(msg.MatchID)
	if !ok {
		c.rejectUnknown(conn, msg)
		return Binding{}, ErrUnknownMatch
	}
	req := joinRequest{conn: conn, msg: msg, reply: make(chan joinReply, 1)}
	if err := m.post(ctx, req); err != nil {
		if err == ErrUnknownMatch {
			c.rejectUnknown(conn, msg)
		}
		return Binding{}, err
	}
	select {
	case rep := <-req.reply:
		return rep.binding, rep.err
	case <-m.done:
		c.rejectUnknown(conn, msg)
		return Binding{}, ErrUnknownMatch
	case <-ctx.Done():
		return Binding{}, ctx.Err()
	}
}

func (c *Coordinator) rejectUnknown(conn Conn, msg proto.Join) {
	if data, err := proto.Encode(&proto.Leave{Reason: proto.ReasonUnknownMatch}); err == nil {
		_ = conn.Send(data)
	}
	_ = conn.Close(CloseNormal, proto.ReasonUnknownMatch)
	c.cfg.Counters.IncrementRejectedJoin()
	c.cfg.Logger.Printf("[session] join for unknown match %q from %s", msg.MatchID, msg.ProfileID)
}

// Submit queues one frame of input from the connection b.
func (c *Coordinator) Submit(ctx context.Context, b Binding, msg proto.Inputs) error {
	m, ok := c.lookup(b.MatchID)
	if !ok {
		return ErrUnknownMatch
	}
	return m.post(ctx, inputsMessage{connID: b.ConnectionID, msg: msg})
}

// Pong records a heartbeat reply.
func (c *Coordinator) Pong(ctx context.Context, b Binding, sentAt int64) error {
	m, ok := c.lookup(b.MatchID)
	if !ok {
		return ErrUnknownMatch
	}
	return m.post(ctx, pongMessage{connID: b.ConnectionID, sentAt: sentAt})
}

// Leave frees the slot held by b and notifies the other participant.
func (c *Coordinator) Leave(ctx context.Context, b Binding, reason string) error {
	m, ok := c.lookup(b.MatchID)
	if !ok {
		return ErrUnknownMatch
	}
	req := leaveRequest{connID: b.ConnectionID, reason: reason, reply: make(chan error, 1)}
	if err := m.post(ctx, req); err != nil {
		return err
	}
	select {
	case err := <-req.reply:
		return err
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect forgets the transport of b without freeing its slot.
func (c *Coordinator) Disconnect(ctx context.Context, b Binding) {
	m, ok := c.lookup(b.MatchID)
	if !ok {
		return
	}
	_ = m.post(ctx, detachMessage{connID: b.ConnectionID})
}

// Info returns the state of one match.
func (c *Coordinator) Info(ctx context.Context, id string) (Info, error) {
	m, ok := c.lookup(id)
	if !ok {
		return Info{}, ErrUnknownMatch
	}
	var info Info
	if err := m.exec(ctx, func() { info = m.info() }); err != nil {
		return Info{}, err
	}
	return info, nil
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := Stats{Matches: len(c.matches)}
	for _, m := range c.matches {
		stats.Connections += m.Connections()
	}
	return stats
}

// Matches lists live match ids in sorted order.
func (c *Coordinator) Matches() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.matches))
	for id := range c.matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every match and waits for their goroutines.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	matches := make([]*Match, 0, len(c.matches))
	for _, m := range c.matches {
		matches = append(matches, m)
	}
	c.mu.Unlock()

	for _, m := range matches {
		m.Stop()
	}
	c.wg.Wait()
}
