package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // driver
)

const schema = `
CREATE TABLE IF NOT EXISTS games (
	session_id    TEXT PRIMARY KEY,
	white         TEXT NOT NULL,
	black         TEXT NOT NULL,
	initial_ms    INTEGER NOT NULL,
	increment_ms  INTEGER NOT NULL,
	moves         TEXT NOT NULL,
	final_fen     TEXT NOT NULL,
	winner        TEXT NOT NULL DEFAULT '',
	reason        TEXT NOT NULL,
	started_at_ms INTEGER NOT NULL,
	ended_at_ms   INTEGER NOT NULL
);`

// SQLiteStore persists finished games in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens a SQLite game store and ensures the schema exists.
func Open(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the SQLite handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts one finished-game record. Saving the same session twice
// overwrites the previous row, which keeps the retry path idempotent.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	moves, err := json.Marshal(rec.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO games
		(session_id, white, black, initial_ms, increment_ms, moves, final_fen, winner, reason, started_at_ms, ended_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.White,
		rec.Black,
		rec.InitialMs,
		rec.IncrementMs,
		string(moves),
		rec.FinalFEN,
		rec.Winner,
		rec.Reason,
		toMillis(rec.StartedAt),
		toMillis(rec.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	return nil
}

// Load retrieves one finished-game record by session id.
func (s *SQLiteStore) Load(ctx context.Context, sessionID string) (Record, error) {
	var rec Record
	var moves string
	var startedAt, endedAt int64

	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, white, black, initial_ms, increment_ms, moves, final_fen, winner, reason, started_at_ms, ended_at_ms
		FROM games WHERE session_id = ?`, sessionID).
		Scan(&rec.SessionID, &rec.White, &rec.Black, &rec.InitialMs, &rec.IncrementMs,
			&moves, &rec.FinalFEN, &rec.Winner, &rec.Reason, &startedAt, &endedAt)
	if err != nil {
		return Record{}, fmt.Errorf("load game: %w", err)
	}

	if err := json.Unmarshal([]byte(moves), &rec.Moves); err != nil {
		return Record{}, fmt.Errorf("unmarshal moves: %w", err)
	}

	rec.StartedAt = fromMillis(startedAt)
	rec.EndedAt = fromMillis(endedAt)

	return rec, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
