package game

import (
	"time"

	"github.com/tecu23/match-server/internal/color"
	"github.com/tecu23/match-server/pkg/messages"
)

// PlayerSnapshot is one seat's state at snapshot time. Identity is empty
// while the seat is unfilled.
type PlayerSnapshot struct {
	Identity    string
	Rating      int
	RemainingMs int64
}

// Snapshot is a consistent copy of the full session state, taken under the
// session mutex. It backs the resync push on reconnect and the persisted
// record of finished games.
type Snapshot struct {
	ID           string
	Status       Status
	FEN          string
	Turn         color.Color
	White        PlayerSnapshot
	Black        PlayerSnapshot
	TimeControl  TimeControl
	Moves        []MoveRecord
	PendingOffer *Offer
	Outcome      *Outcome
	CreatedAt    time.Time
	StartedAt    time.Time
	EndedAt      time.Time
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:          s.ID.String(),
		Status:      s.status,
		FEN:         s.game.FEN(),
		Turn:        s.turn,
		TimeControl: s.tc,
		Moves:       append([]MoveRecord(nil), s.log...),
		CreatedAt:   s.createdAt,
		StartedAt:   s.startedAt,
		EndedAt:     s.endedAt,
	}

	if p := s.players[0]; p != nil {
		snap.White = PlayerSnapshot{Identity: p.ID, Rating: p.Rating, RemainingMs: p.Clock.Remaining()}
	}
	if p := s.players[1]; p != nil {
		snap.Black = PlayerSnapshot{Identity: p.ID, Rating: p.Rating, RemainingMs: p.Clock.Remaining()}
	}
	if s.offer != nil {
		offer := *s.offer
		snap.PendingOffer = &offer
	}
	if s.outcome != nil {
		outcome := *s.outcome
		snap.Outcome = &outcome
	}

	return snap
}

// StatePayload converts the snapshot into the wire shape pushed to a
// reconnecting client.
func (snap Snapshot) StatePayload() messages.SessionStatePayload {
	payload := messages.SessionStatePayload{
		SessionID: snap.ID,
		Status:    string(snap.Status),
		FEN:       snap.FEN,
		Turn:      snap.Turn,
		White:     messages.PlayerInfo{Identity: snap.White.Identity, Rating: snap.White.Rating},
		Black:     messages.PlayerInfo{Identity: snap.Black.Identity, Rating: snap.Black.Rating},
		WhiteTime: snap.White.RemainingMs,
		BlackTime: snap.Black.RemainingMs,
		Moves:     make([]messages.AppliedMove, 0, len(snap.Moves)),
	}

	for _, m := range snap.Moves {
		payload.Moves = append(payload.Moves, messages.AppliedMove{
			Move:        m.Move,
			FEN:         m.FEN,
			By:          m.By,
			PlayedAtMs:  m.PlayedAt.UnixMilli(),
			RemainingMs: m.RemainingMs,
		})
	}

	if snap.PendingOffer != nil {
		payload.PendingOffer = &messages.OfferInfo{
			Kind: string(snap.PendingOffer.Kind),
			From: snap.PendingOffer.From,
		}
	}
	if snap.Outcome != nil {
		payload.Winner = snap.Outcome.Winner
		payload.Reason = string(snap.Outcome.Reason)
	}

	return payload
}
