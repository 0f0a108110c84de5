package sinks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"arena-duel/server/logging"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	frame INTEGER NOT NULL,
	time TEXT NOT NULL,
	match_id TEXT,
	actor TEXT,
	severity TEXT,
	payload TEXT
)`

// SQLite appends events to a local database file. It is meant for offline
// inspection of hit telemetry, not as the durable store.
type SQLite struct {
	db     *sql.DB
	insert *sql.Stmt
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create events table: %w", err)
	}
	stmt, err := db.Prepare(`INSERT INTO events (type, frame, time, match_id, actor, severity, payload) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &SQLite{db: db, insert: stmt}, nil
}

func (s *SQLite) Write(event logging.Event) error {
	var payload []byte
	if event.Payload != nil {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		payload = data
	}
	_, err := s.insert.Exec(
		string(event.Type),
		int64(event.Frame),
		event.Time.UTC().Format(time.RFC3339Nano),
		event.MatchID,
		event.Actor.String(),
		event.Severity.String(),
		string(payload),
	)
	return err
}

// Count reports how many rows of the given event type are stored.
func (s *SQLite) Count(ctx context.Context, eventType logging.EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events WHERE type = ?`, string(eventType)).Scan(&n)
	return n, err
}

func (s *SQLite) Close(context.Context) error {
	s.insert.Close()
	return s.db.Close()
}
