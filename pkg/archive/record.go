// Package archive persists finished games. It is a collaborator of the
// live core, not part of it: the in-memory session stays authoritative and
// a storage fault never blocks or drops a game.
package archive

import (
	"context"
	"time"

	"github.com/tecu23/match-server/pkg/game"
)

// Move is one persisted ply.
type Move struct {
	Move        string `json:"move"`
	FEN         string `json:"fen"`
	By          string `json:"by"`
	PlayedAtMs  int64  `json:"played_at_ms"`
	RemainingMs int64  `json:"remaining_ms"`
}

// Record is the persisted layout of a finished session.
type Record struct {
	SessionID   string
	White       string
	Black       string
	InitialMs   int64
	IncrementMs int64
	Moves       []Move
	FinalFEN    string
	Winner      string // "w", "b" or empty for draws
	Reason      string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Store saves and loads finished-game records.
type Store interface {
	Save(ctx context.Context, rec Record) error
	Load(ctx context.Context, sessionID string) (Record, error)
}

// RecordFromSnapshot flattens a terminal session snapshot into its
// persisted shape.
func RecordFromSnapshot(snap game.Snapshot) Record {
	rec := Record{
		SessionID:   snap.ID,
		White:       snap.White.Identity,
		Black:       snap.Black.Identity,
		InitialMs:   snap.TimeControl.InitialMs,
		IncrementMs: snap.TimeControl.IncrementMs,
		Moves:       make([]Move, 0, len(snap.Moves)),
		FinalFEN:    snap.FEN,
		StartedAt:   snap.StartedAt,
		EndedAt:     snap.EndedAt,
	}

	for _, m := range snap.Moves {
		rec.Moves = append(rec.Moves, Move{
			Move:        m.Move,
			FEN:         m.FEN,
			By:          string(m.By),
			PlayedAtMs:  m.PlayedAt.UnixMilli(),
			RemainingMs: m.RemainingMs,
		})
	}

	if snap.Outcome != nil {
		rec.Reason = string(snap.Outcome.Reason)
		if snap.Outcome.Winner != nil {
			rec.Winner = string(*snap.Outcome.Winner)
		}
	}

	return rec
}
