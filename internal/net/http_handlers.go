// Package net exposes the online duel HTTP surface.
package net

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/pprof"
	"time"

	"arena-duel/server/internal/moves"
	"arena-duel/server/internal/net/proto"
	"arena-duel/server/internal/net/ws"
	"arena-duel/server/internal/session"
	"arena-duel/server/internal/telemetry"
	"arena-duel/server/logging"
)

const maxCreateBody = 4 << 10

type HTTPHandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Counters  *telemetry.Counters
	// Router and Metrics are reported on the health endpoint when set.
	Router      *logging.Router
	Metrics     *logging.Metrics
	TickRate    int
	Heartbeat   time.Duration
	EnablePprof bool
}

type createRequest struct {
	Seed uint32 `json:"seed,omitempty"`
	CPU  string `json:"cpu,omitempty"`
}

type createResponse struct {
	MatchID string `json:"matchId"`
}

type healthResponse struct {
	Status      string               `json:"status"`
	ServerTime  int64                `json:"serverTime"`
	Matches     int                  `json:"matches"`
	Connections int                  `json:"connections"`
	TickRate    int                  `json:"tickRate"`
	Heartbeat   int64                `json:"heartbeatMillis"`
	Telemetry   telemetry.Snapshot   `json:"telemetry"`
	Metrics     map[string]uint64    `json:"metrics,omitempty"`
	Logging     *logging.RouterStats `json:"logging,omitempty"`
}

type schemaResponse struct {
	Moves    any `json:"moves"`
	Messages any `json:"messages"`
}

func NewHTTPHandler(coord *session.Coordinator, lib *moves.Library, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.Discard()
	}

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/api/online/create", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req createRequest
		if r.Body != nil {
			defer r.Body.Close()
			decoder := json.NewDecoder(io.LimitReader(r.Body, maxCreateBody))
			if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}
		id, err := coord.Create(session.CreateOptions{Seed: req.Seed, CPU: req.CPU})
		if err != nil {
			if errors.Is(err, session.ErrClosed) {
				httpError(w, "shutting down", nethttp.StatusServiceUnavailable)
				return
			}
			logger.Printf("[http] create match failed: %v", err)
			httpError(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		writeJSON(w, logger, nethttp.StatusCreated, createResponse{MatchID: id})
	})

	mux.HandleFunc("/api/online/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		stats := coord.Stats()
		payload := healthResponse{
			Status:      "ok",
			ServerTime:  time.Now().UnixMilli(),
			Matches:     stats.Matches,
			Connections: stats.Connections,
			TickRate:    cfg.TickRate,
			Heartbeat:   cfg.Heartbeat.Milliseconds(),
			Telemetry:   cfg.Counters.Snapshot(),
			Metrics:     cfg.Metrics.Snapshot(),
		}
		if cfg.Router != nil {
			routerStats := cfg.Router.Stats()
			payload.Logging = &routerStats
		}
		writeJSON(w, logger, nethttp.StatusOK, payload)
	})

	mux.HandleFunc("/api/online/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		writeJSON(w, logger, nethttp.StatusOK, schemaResponse{
			Moves:    moves.Schema(),
			Messages: proto.Schema(),
		})
	})

	mux.HandleFunc("/api/online/moves", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if lib == nil {
			httpError(w, "no move library", nethttp.StatusNotFound)
			return
		}
		writeJSON(w, logger, nethttp.StatusOK, moves.Document{Version: 1, Moves: lib.Definitions()})
	})

	mux.HandleFunc("/api/online/matches", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		ids := coord.Matches()
		infos := make([]session.Info, 0, len(ids))
		for _, id := range ids {
			info, err := coord.Info(r.Context(), id)
			if err != nil {
				continue
			}
			infos = append(infos, info)
		}
		writeJSON(w, logger, nethttp.StatusOK, infos)
	})

	wsHandler := ws.NewHandler(coord, ws.HandlerConfig{
		Logger:    logger,
		Publisher: cfg.Publisher,
		Counters:  cfg.Counters,
	})
	mux.HandleFunc("/api/online/ws", wsHandler.Handle)

	if cfg.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return mux
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("[http] failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
