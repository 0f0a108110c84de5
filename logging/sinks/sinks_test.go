package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"arena-duel/server/logging"
)

func TestJSONSinkWritesOneLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	if err := sink.Write(logging.Event{Type: "combat.hit", Frame: 3, MatchID: "m1", Severity: logging.SeverityWarn}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded["severity"] != "warn" || decoded["matchId"] != "m1" {
		t.Fatalf("unexpected encoding: %v", decoded)
	}
}

func TestOnlyFiltersEventTypes(t *testing.T) {
	memory := NewMemorySink()
	sink := Only(memory, "combat.hit")
	_ = sink.Write(logging.Event{Type: "combat.hit"})
	_ = sink.Write(logging.Event{Type: "network.joined"})
	if got := len(memory.Events()); got != 1 {
		t.Fatalf("expected 1 event to pass the filter, got %d", got)
	}
}

func TestSQLiteSinkStoresEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hits.db")
	sink, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite sink: %v", err)
	}
	defer sink.Close(context.Background())

	for i := 0; i < 3; i++ {
		event := logging.Event{
			Type:    "combat.hit",
			Frame:   uint64(i),
			Time:    time.Unix(int64(i), 0),
			MatchID: "m1",
			Actor:   logging.FighterRef("host"),
			Payload: map[string]any{"damage": 10},
		}
		if err := sink.Write(event); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	if err := sink.Write(logging.Event{Type: "network.joined"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	count, err := sink.Count(context.Background(), "combat.hit")
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 hit rows, got %d", count)
	}
}

func TestHTTPBatchPostsFullBatches(t *testing.T) {
	var mu sync.Mutex
	var received []httpBatchBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		data, _ := io.ReadAll(r.Body)
		var body httpBatchBody
		if err := json.Unmarshal(data, &body); err != nil {
			t.Errorf("bad batch body: %v", err)
		}
		mu.Lock()
		received = append(received, body)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sink := NewHTTPBatch(logging.HTTPConfig{URL: server.URL, MaxBatch: 2}, log.New(io.Discard, "", 0))
	for i := 0; i < 5; i++ {
		_ = sink.Write(logging.Event{Type: "combat.hit", Frame: uint64(i)})
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	total := 0
	for _, batch := range received {
		if len(batch.Records) > 2 {
			t.Fatalf("batch exceeded max size: %d", len(batch.Records))
		}
		total += len(batch.Records)
	}
	if total != 5 {
		t.Fatalf("expected 5 records delivered, got %d", total)
	}
}

func TestHTTPBatchSurvivesUnreachableCollector(t *testing.T) {
	sink := NewHTTPBatch(logging.HTTPConfig{URL: "http://127.0.0.1:1/telemetry", MaxBatch: 1, Timeout: 200 * time.Millisecond}, log.New(io.Discard, "", 0))
	if err := sink.Write(logging.Event{Type: "combat.hit"}); err != nil {
		t.Fatalf("write must not report delivery errors: %v", err)
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestConsoleRendersCompactLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf)
	err := sink.Write(logging.Event{
		Type:     "combat.hit",
		Frame:    42,
		Time:     time.Date(2024, 1, 1, 10, 11, 12, 0, time.UTC),
		MatchID:  "3f2a9c1e-0000-4000-8000-000000000000",
		Actor:    logging.FighterRef("host"),
		Targets:  []logging.EntityRef{logging.FighterRef("guest")},
		Severity: logging.SeverityInfo,
		Payload:  map[string]int{"damage": 8},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	want := `10:11:12.000 INFO  combat.hit m=3f2a9c1e f=42 fighter:host -> fighter:guest {"damage":8}` + "\n"
	if buf.String() != want {
		t.Fatalf("unexpected console line\n got: %q\nwant: %q", buf.String(), want)
	}
}
