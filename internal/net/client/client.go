// Package client is the participant side of the online duel protocol: it
// joins a match, answers heartbeats and reconnects after abnormal closes.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arena-duel/server/internal/input"
	"arena-duel/server/internal/net/proto"
	"arena-duel/server/internal/reconnect"
	"arena-duel/server/internal/telemetry"
)

var (
	ErrNotConnected = errors.New("client not connected")
	// ErrFailed is returned by Run once the retry ceiling is reached.
	ErrFailed = errors.New("reconnect attempts exhausted")
)

// RejectedError reports a join the server refused.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("join rejected: %s", e.Reason)
}

// Handler receives server messages. Methods run on the Run goroutine.
type Handler interface {
	OnJoined(msg *proto.Joined)
	OnState(msg *proto.State)
	OnLeave(msg *proto.Leave)
}

type Config struct {
	URL       string
	MatchID   string
	ProfileID string
	Slot      string
	Policy    reconnect.Policy
	Dialer    *websocket.Dialer
	Logger    telemetry.Logger
	// Jitter returns a value in [-1, 1] for backoff spread.
	Jitter func() float64
}

type Client struct {
	cfg     Config
	handler Handler

	mu      sync.Mutex
	machine reconnect.Machine
	conn    *websocket.Conn
	connID  string
	dials   int
}

func New(cfg Config, handler Handler) *Client {
	if cfg.Policy.MaxAttempts <= 0 {
		cfg.Policy = reconnect.DefaultPolicy()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if cfg.Jitter == nil {
		cfg.Jitter = func() float64 { return rand.Float64()*2 - 1 }
	}
	return &Client{cfg: cfg, handler: handler, machine: reconnect.New(cfg.Policy)}
}

func (c *Client) State() reconnect.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.State
}

// ConnectionID is the id assigned by the most recent join.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Dials counts connection attempts.
func (c *Client) Dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dials
}

func (c *Client) next(ev reconnect.Event) reconnect.Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	var act reconnect.Action
	c.machine, act = c.machine.Next(ev)
	return act
}

// Run connects and keeps the session alive until ctx is cancelled, the
// server closes normally, the join is rejected or retries run out.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		c.next(reconnect.Event{Kind: reconnect.EventStop})
		c.closeConn(websocket.CloseNormalClosure, proto.ReasonLeft)
	})
	defer stop()

	act := c.next(reconnect.Event{Kind: reconnect.EventConnect})
	for {
		if ctx.Err() != nil {
			return nil
		}
		switch act.Kind {
		case reconnect.ActionDial:
			var err error
			if act, err = c.session(ctx); err != nil {
				return err
			}
		case reconnect.ActionWait:
			c.cfg.Logger.Printf("[client] reconnecting in %v", act.Delay)
			timer := time.NewTimer(act.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
			act = c.next(reconnect.Event{Kind: reconnect.EventRetryDue})
		case reconnect.ActionReportFailure:
			return ErrFailed
		default:
			if c.State() == reconnect.Disconnected {
				return nil
			}
			return fmt.Errorf("client stuck in state %s", c.State())
		}
	}
}

// session dials, joins and reads until the connection ends. A rejected join
// is returned as an error and is never retried.
func (c *Client) session(ctx context.Context) (reconnect.Action, error) {
	c.mu.Lock()
	c.dials++
	c.connID = ""
	c.mu.Unlock()

	conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		c.cfg.Logger.Printf("[client] dial %s failed: %v", c.cfg.URL, err)
		return c.next(reconnect.Event{Kind: reconnect.EventDialFailed, Jitter: c.cfg.Jitter()}), nil
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.write(&proto.Join{MatchID: c.cfg.MatchID, ProfileID: c.cfg.ProfileID, Slot: c.cfg.Slot}); err != nil {
		return c.closed(err), nil
	}

	joined := false
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return c.closed(err), nil
		}
		msg, err := proto.Decode(payload)
		if err != nil {
			c.cfg.Logger.Printf("[client] discarding malformed message: %v", err)
			continue
		}
		switch m := msg.(type) {
		case *proto.Joined:
			c.mu.Lock()
			c.connID = m.ConnectionID
			c.mu.Unlock()
			joined = true
			c.next(reconnect.Event{Kind: reconnect.EventOpened})
			c.handler.OnJoined(m)
		case *proto.State:
			c.handler.OnState(m)
		case *proto.Leave:
			if !joined {
				c.next(reconnect.Event{Kind: reconnect.EventStop})
				c.closeConn(websocket.CloseNormalClosure, m.Reason)
				return reconnect.Action{}, &RejectedError{Reason: m.Reason}
			}
			c.handler.OnLeave(m)
		case *proto.Ping:
			if err := c.write(&proto.Pong{SentAt: m.SentAt}); err != nil {
				return c.closed(err), nil
			}
		}
	}
}

func (c *Client) closed(err error) reconnect.Action {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()

	code := websocket.CloseAbnormalClosure
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		code = closeErr.Code
	}
	c.cfg.Logger.Printf("[client] connection closed (%d): %v", code, err)
	return c.next(reconnect.Event{Kind: reconnect.EventClosed, Code: code, Jitter: c.cfg.Jitter()})
}

func (c *Client) write(msg any) error {
	data, err := proto.Encode(msg)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendInputs submits the controls for frame.
func (c *Client) SendInputs(frame uint64, in input.Frame) error {
	connID := c.ConnectionID()
	if connID == "" {
		return ErrNotConnected
	}
	in.Frame = frame
	return c.write(&proto.Inputs{Frame: frame, Inputs: in, ConnectionID: connID})
}

// Leave tells the server this participant is done. The server answers by
// closing normally, which ends Run.
func (c *Client) Leave() error {
	return c.write(&proto.Leave{Reason: proto.ReasonLeft})
}

func (c *Client) closeConn(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.conn.Close()
	c.conn = nil
}
