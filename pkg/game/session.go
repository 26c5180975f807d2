// Package game holds the session aggregate and the components that mutate
// it: the per-player clocks, the rules oracle and the session registry.
package game

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/match-server/internal/color"
	"github.com/tecu23/match-server/pkg/events"
	"github.com/tecu23/match-server/pkg/messages"
)

// Status is the lifecycle state of a session. Transitions are monotonic:
// Waiting -> InProgress -> (Completed | Abandoned).
type Status string

// All session lifecycle states.
const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// OfferKind distinguishes the two consent-based offers.
type OfferKind string

// The offer kinds.
const (
	OfferDraw    OfferKind = "draw"
	OfferRematch OfferKind = "rematch"
)

// Offer is a pending draw or rematch proposal. At most one exists per
// session at a time.
type Offer struct {
	Kind OfferKind
	From color.Color
}

// Outcome records how a finished session ended. Winner is nil on draws.
type Outcome struct {
	Winner *color.Color
	Reason EndReason
}

// Player is one seated participant.
type Player struct {
	ID     string
	Rating int
	Clock  *Clock
}

// MoveRecord is one applied ply in the move log, tagged with the resulting
// position and the mover's remaining time after the increment was credited.
type MoveRecord struct {
	Move        string
	FEN         string
	By          color.Color
	PlayedAt    time.Time
	RemainingMs int64
}

// OfferResolution is the result of answering a pending offer. When an
// accepted rematch produced a fresh session, Rematch points at it.
type OfferResolution struct {
	Kind     OfferKind
	From     color.Color
	Accepted bool
	Rematch  *Session
}

// Session is the aggregate for one game between two players. Every
// state-mutating operation runs under the session mutex, so at most one
// mutation is in flight per session at any time; broadcasts are published
// synchronously inside the mutation, which makes delivery order equal
// commit order.
type Session struct {
	ID uuid.UUID

	players [2]*Player // slot 0 = white
	game    *chess.Game
	log     []MoveRecord
	status  Status
	turn    color.Color
	offer   *Offer
	outcome *Outcome
	tc      TimeControl

	createdAt time.Time
	startedAt time.Time
	endedAt   time.Time

	mu sync.Mutex

	clk      clock.Clock
	oracle   Oracle
	registry *Registry

	Publisher *events.Publisher
	Logger    *zap.Logger
}

// Join fills the second slot, transitions the session to InProgress and
// starts white's clock. Concurrent joins on the same waiting session are
// serialized by the session mutex; the loser observes AlreadyFull.
func (s *Session) Join(identity string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusWaiting {
		return ErrAlreadyFull
	}
	if s.players[0].ID == identity {
		return ErrSelfJoin
	}

	s.players[1] = &Player{ID: identity, Rating: rating, Clock: NewClock(s.tc, s.clk)}
	s.status = StatusInProgress
	s.startedAt = s.clk.Now()
	s.players[0].Clock.Resume()

	s.Logger.Info("session started",
		zap.String("session_id", s.ID.String()),
		zap.String("white", s.players[0].ID),
		zap.String("black", s.players[1].ID),
	)

	s.Publisher.Publish(events.Event{
		Type:      events.EventSessionStarted,
		SessionID: s.ID.String(),
		Payload:   s.startedPayloadLocked(),
	})

	return nil
}

// SubmitMove validates and applies one move. Preconditions are checked in
// order: the session is still live, the identity is seated, the running
// clock has not already flagged, it is the submitter's turn, and the oracle
// accepts the move. A flag fall completes the session and is broadcast
// before ErrClockExpired is returned.
func (s *Session) SubmitMove(identity, move string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrSessionNotFound
	}

	col, ok := s.slotOfLocked(identity)
	if !ok {
		return ErrNotAParticipant
	}

	// A flag that fell between moves is detected here, before turn
	// ownership, so a stale submission surfaces the timeout and nothing else.
	if s.players[s.turn.Slot()].Clock.Expired() {
		s.completeLocked(StatusCompleted, winnerPtr(s.turn.Opp()), ReasonTimeout)
		return ErrClockExpired
	}

	if col != s.turn {
		return ErrNotYourTurn
	}

	verdict, err := s.oracle.Apply(s.game, move)
	if err != nil {
		return ErrIllegalMove
	}

	mover := s.players[col.Slot()]

	if verdict.Terminal {
		mover.Clock.Pause()
	} else {
		mover.Clock.ApplyIncrement()
		mover.Clock.Pause()
		s.players[col.Opp().Slot()].Clock.Resume()
	}

	s.turn = col.Opp()
	s.offer = nil // any pending offer lapses on a move

	s.log = append(s.log, MoveRecord{
		Move:        move,
		FEN:         verdict.FEN,
		By:          col,
		PlayedAt:    s.clk.Now(),
		RemainingMs: mover.Clock.Remaining(),
	})

	s.Logger.Info("processed move",
		zap.String("session_id", s.ID.String()),
		zap.String("move", move),
		zap.String("new_turn", string(s.turn)),
	)

	s.Publisher.Publish(events.Event{
		Type:      events.EventMoveApplied,
		SessionID: s.ID.String(),
		Payload: messages.MoveAppliedPayload{
			SessionID: s.ID.String(),
			Move:      move,
			FEN:       verdict.FEN,
			Turn:      s.turn,
			WhiteTime: s.players[0].Clock.Remaining(),
			BlackTime: s.players[1].Clock.Remaining(),
			Terminal:  verdict.Terminal,
		},
	})

	if verdict.Terminal {
		var winner *color.Color
		if verdict.Winner != nil {
			winner = winnerPtr(*verdict.Winner)
		}
		s.completeLocked(StatusCompleted, winner, verdict.Reason)
	}

	return nil
}

// Resign ends the session immediately in the opponent's favor. No
// counterpart consent is involved.
func (s *Session) Resign(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return ErrSessionNotFound
	}

	col, ok := s.slotOfLocked(identity)
	if !ok {
		return ErrNotAParticipant
	}

	s.completeLocked(StatusCompleted, winnerPtr(col.Opp()), ReasonResignation)
	return nil
}

// MakeOffer records a pending draw or rematch offer. Draw offers require a
// live game; a rematch may also be offered once the game is over.
func (s *Session) MakeOffer(identity string, kind OfferKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress &&
		!(kind == OfferRematch && s.status == StatusCompleted) {
		return ErrSessionNotFound
	}

	col, ok := s.slotOfLocked(identity)
	if !ok {
		return ErrNotAParticipant
	}
	if s.offer != nil {
		return ErrOfferAlreadyPending
	}

	s.offer = &Offer{Kind: kind, From: col}

	s.Publisher.Publish(events.Event{
		Type:      events.EventOfferPending,
		SessionID: s.ID.String(),
		Payload: messages.OfferPendingPayload{
			SessionID: s.ID.String(),
			Kind:      string(kind),
			From:      col,
		},
	})

	return nil
}

// RespondOffer resolves the pending offer. Only the non-offering player may
// respond. Accepting a draw completes the session; accepting a rematch asks
// the registry for a fresh session with the colors swapped, whose id is
// broadcast to both sides. Declining clears the offer with no other effect.
func (s *Session) RespondOffer(identity string, accept bool) (OfferResolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.slotOfLocked(identity)
	if !ok {
		return OfferResolution{}, ErrNotAParticipant
	}
	if s.offer == nil {
		return OfferResolution{}, ErrOfferNotPending
	}
	if col == s.offer.From {
		return OfferResolution{}, ErrNotEligibleResponder
	}

	res := OfferResolution{Kind: s.offer.Kind, From: s.offer.From, Accepted: accept}
	s.offer = nil

	payload := messages.OfferResolvedPayload{
		SessionID: s.ID.String(),
		Kind:      string(res.Kind),
		From:      res.From,
		Accepted:  accept,
	}

	if accept && res.Kind == OfferRematch && s.registry != nil {
		res.Rematch = s.registry.createRematch(s.players, s.tc)
		payload.RematchSessionID = res.Rematch.ID.String()
	}

	s.Publisher.Publish(events.Event{
		Type:      events.EventOfferResolved,
		SessionID: s.ID.String(),
		Payload:   payload,
	})

	if accept && res.Kind == OfferDraw {
		s.completeLocked(StatusCompleted, nil, ReasonDraw)
	}

	return res, nil
}

// CheckFlagFall is the sweep entry point: it completes the session by
// timeout if the running clock has expired. Safe to call repeatedly; once
// the session is terminal this is a no-op.
func (s *Session) CheckFlagFall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return
	}

	if s.players[s.turn.Slot()].Clock.Expired() {
		s.completeLocked(StatusCompleted, winnerPtr(s.turn.Opp()), ReasonTimeout)
	}
}

// Abandon marks the session abandoned after the disconnect grace period
// expired for the given seat. The remaining player wins.
func (s *Session) Abandon(left color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != StatusInProgress {
		return
	}

	s.completeLocked(StatusAbandoned, winnerPtr(left.Opp()), ReasonDisconnected)
}

// InProgress reports whether the session is still live.
func (s *Session) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == StatusInProgress
}

// SlotOf returns the color seated by the identity.
func (s *Session) SlotOf(identity string) (color.Color, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotOfLocked(identity)
}

func (s *Session) slotOfLocked(identity string) (color.Color, bool) {
	for slot, p := range s.players {
		if p != nil && p.ID == identity {
			return color.FromSlot(slot), true
		}
	}
	return color.White, false
}

// completeLocked performs the single transition into a terminal status:
// both clocks pause, the outcome is recorded and the end is broadcast to
// every bound connection. Callers must hold s.mu and have verified the
// session is not already terminal.
func (s *Session) completeLocked(status Status, winner *color.Color, reason EndReason) {
	for _, p := range s.players {
		if p != nil {
			p.Clock.Pause()
		}
	}

	s.status = status
	s.outcome = &Outcome{Winner: winner, Reason: reason}
	s.endedAt = s.clk.Now()
	s.offer = nil

	s.Logger.Info("session ended",
		zap.String("session_id", s.ID.String()),
		zap.String("reason", string(reason)),
	)

	s.Publisher.Publish(events.Event{
		Type:      events.EventSessionEnded,
		SessionID: s.ID.String(),
		Payload: messages.SessionEndedPayload{
			SessionID: s.ID.String(),
			Winner:    winner,
			Reason:    string(reason),
			FEN:       s.game.FEN(),
		},
	})
}

func (s *Session) startedPayloadLocked() messages.SessionStartedPayload {
	return messages.SessionStartedPayload{
		SessionID:   s.ID.String(),
		White:       messages.PlayerInfo{Identity: s.players[0].ID, Rating: s.players[0].Rating},
		Black:       messages.PlayerInfo{Identity: s.players[1].ID, Rating: s.players[1].Rating},
		TimeControl: messages.TimeControlInfo{InitialMs: s.tc.InitialMs, IncrementMs: s.tc.IncrementMs},
		FEN:         s.game.FEN(),
		Turn:        s.turn,
	}
}

func winnerPtr(c color.Color) *color.Color {
	return &c
}
