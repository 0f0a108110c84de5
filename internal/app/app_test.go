package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"arena-duel/server/internal/config"
	"arena-duel/server/internal/telemetry"
	lognet "arena-duel/server/logging/network"
	"arena-duel/server/logging/sinks"
)

func TestServeHealthUntilCancelled(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	env := config.Default()
	env.TelemetrySQLite = filepath.Join(t.TempDir(), "hits.db")

	s, err := New(Config{
		Env:      env,
		Listener: listener,
		Logger:   telemetry.LoggerFunc(func(string, ...any) {}),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	resp, err := http.Post("http://"+listener.Addr().String()+"/api/online/create", "application/json", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = http.Get("http://" + listener.Addr().String() + "/api/online/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var payload struct {
		Status  string `json:"status"`
		Matches int    `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	resp.Body.Close()
	if payload.Status != "ok" || payload.Matches != 1 {
		t.Fatalf("unexpected health %+v", payload)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("Serve did not stop")
	}
}

func TestNewRejectsMissingMovesFile(t *testing.T) {
	env := config.Default()
	env.MovesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(Config{Env: env}); err == nil {
		t.Fatalf("expected missing move file to fail")
	}
}

func TestObserverSeesTransportEvents(t *testing.T) {
	observer := sinks.NewMemorySink()
	s, err := New(Config{
		Env:      config.Default(),
		Logger:   telemetry.LoggerFunc(func(string, ...any) {}),
		Observer: observer,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	server := httptest.NewServer(s.Handler())
	defer func() {
		server.Close()
		_ = s.Close()
	}()

	url := "ws" + server.URL[len("http"):] + "/api/online/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(observer.EventsOfType(lognet.EventMalformed)) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("observer never saw the malformed message event")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
