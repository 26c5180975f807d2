// Package matchmaking pairs waiting players into new sessions.
package matchmaking

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/match-server/internal/color"
	"github.com/tecu23/match-server/pkg/events"
	"github.com/tecu23/match-server/pkg/game"
	"github.com/tecu23/match-server/pkg/messages"
	"github.com/tecu23/match-server/pkg/presence"
)

type entry struct {
	identity   string
	rating     int
	connID     uuid.UUID
	tc         game.TimeControl
	enqueuedAt time.Time
}

// Queue is the FIFO rating-band matcher. Pairing is consumed atomically
// under the queue's own mutex: the requester scans for the oldest waiting
// entry within the rating band and, on a hit, both are dequeued and a
// session is created through the registry.
type Queue struct {
	mu      sync.Mutex
	entries []entry

	band     int
	registry *game.Registry
	presence *presence.Tracker
	clk      clock.Clock

	publisher *events.Publisher
	logger    *zap.Logger
}

// NewQueue creates an empty queue with the given maximum rating difference.
func NewQueue(
	band int,
	registry *game.Registry,
	tracker *presence.Tracker,
	clk clock.Clock,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Queue {
	return &Queue{
		band:      band,
		registry:  registry,
		presence:  tracker,
		clk:       clk,
		publisher: publisher,
		logger:    logger,
	}
}

// Join pairs the requester with the first waiting player inside the rating
// band, or enqueues them. On a pairing the waiting player takes white, both
// connections are bound before the clocks start, and the new session is
// returned. When no match is found the queue position is returned instead.
func (q *Queue) Join(identity string, rating int, connID uuid.UUID, tc game.TimeControl) (*game.Session, int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for pos, e := range q.entries {
		if e.identity == identity {
			// Already waiting; joining again is a no-op.
			return nil, pos + 1
		}
	}

	for i, e := range q.entries {
		if diff(e.rating, rating) > q.band {
			continue
		}

		q.entries = append(q.entries[:i], q.entries[i+1:]...)

		session := q.registry.Create(e.identity, e.rating, e.tc)
		q.presence.Bind(e.connID, session.ID, color.White)
		q.presence.Bind(connID, session.ID, color.Black)

		q.publisher.Publish(events.Event{
			Type:      events.EventMatchFound,
			SessionID: session.ID.String(),
			Payload: messages.MatchFoundPayload{
				SessionID:   session.ID.String(),
				White:       messages.PlayerInfo{Identity: e.identity, Rating: e.rating},
				Black:       messages.PlayerInfo{Identity: identity, Rating: rating},
				TimeControl: messages.TimeControlInfo{InitialMs: e.tc.InitialMs, IncrementMs: e.tc.IncrementMs},
			},
		})

		if _, err := q.registry.FillSecondSlot(session.ID, identity, rating); err != nil {
			q.logger.Error("failed to seat matched player", zap.Error(err))
			return nil, 0
		}

		q.logger.Info("matched players",
			zap.String("session_id", session.ID.String()),
			zap.String("white", e.identity),
			zap.String("black", identity),
		)

		return session, 0
	}

	q.entries = append(q.entries, entry{
		identity:   identity,
		rating:     rating,
		connID:     connID,
		tc:         tc,
		enqueuedAt: q.clk.Now(),
	})

	return nil, len(q.entries)
}

// Leave removes the identity from the queue. No-op when absent.
func (q *Queue) Leave(identity string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.identity == identity {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of waiting players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func diff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
