// Package ws serves the online duel protocol over gorilla websockets.
package ws

import (
	"context"
	"errors"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"arena-duel/server/internal/net/proto"
	"arena-duel/server/internal/session"
	"arena-duel/server/internal/telemetry"
	"arena-duel/server/logging"
	lognet "arena-duel/server/logging/network"
)

const maxMessageBytes = 64 << 10

type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Counters  *telemetry.Counters
}

// Handler upgrades requests and feeds decoded messages to the coordinator.
type Handler struct {
	coord     *session.Coordinator
	logger    telemetry.Logger
	publisher logging.Publisher
	counters  *telemetry.Counters
	upgrader  websocket.Upgrader
}

func NewHandler(coord *session.Coordinator, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Handler{
		coord:     coord,
		logger:    logger,
		publisher: publisher,
		counters:  cfg.Counters,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("[ws] upgrade failed: %v", err)
		return
	}
	raw.SetReadLimit(maxMessageBytes)
	h.Serve(r.Context(), NewConn(raw), raw)
}

// Serve runs the read loop for one connection. The first valid message must
// be a join; everything before it is discarded.
func (h *Handler) Serve(ctx context.Context, conn *Conn, raw *websocket.Conn) {
	ctx = context.WithoutCancel(ctx)
	var binding session.Binding
	bound := false

	for {
		_, payload, err := raw.ReadMessage()
		if err != nil {
			if bound && !conn.Closed() {
				h.coord.Disconnect(ctx, binding)
				h.logger.Printf("[ws] %s disconnected: %v", binding, err)
			}
			_ = raw.Close()
			return
		}

		msg, err := proto.Decode(payload)
		if err != nil {
			h.malformed(binding.ConnectionID, binding.MatchID, err)
			continue
		}

		switch m := msg.(type) {
		case *proto.Join:
			if bound {
				h.malformed(binding.ConnectionID, binding.MatchID, errors.New("already joined"))
				continue
			}
			b, err := h.coord.Join(ctx, conn, *m)
			if err != nil {
				h.logger.Printf("[ws] join %s as %s rejected: %v", m.MatchID, m.ProfileID, err)
				return
			}
			binding = b
			bound = true
		case *proto.Inputs:
			if !bound {
				h.malformed("", "", errors.New("inputs before join"))
				continue
			}
			if err := h.coord.Submit(ctx, binding, *m); err != nil {
				h.logger.Printf("[ws] submit from %s failed: %v", binding, err)
			}
		case *proto.Pong:
			if bound {
				_ = h.coord.Pong(ctx, binding, m.SentAt)
			}
		case *proto.Ping:
			data, err := proto.Encode(&proto.Pong{SentAt: m.SentAt})
			if err == nil {
				if err := conn.Send(data); err != nil {
					h.logger.Printf("[ws] pong write failed: %v", err)
				}
			}
		case *proto.Leave:
			if bound {
				if err := h.coord.Leave(ctx, binding, m.Reason); err != nil && !errors.Is(err, session.ErrUnknownMatch) {
					h.logger.Printf("[ws] leave from %s failed: %v", binding, err)
				}
			}
			_ = conn.Close(websocket.CloseNormalClosure, proto.ReasonLeft)
			return
		default:
			h.malformed(binding.ConnectionID, binding.MatchID, errors.New("unexpected message from client"))
		}
	}
}

func (h *Handler) malformed(connID, matchID string, err error) {
	h.counters.IncrementMalformed()
	lognet.Malformed(context.Background(), h.publisher, matchID, logging.ConnectionRef(connID), lognet.MessagePayload{Error: err.Error()})
	h.logger.Printf("[ws] discarding malformed message from %q: %v", connID, err)
}
