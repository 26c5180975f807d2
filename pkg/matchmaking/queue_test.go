package matchmaking_test

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/match-server/pkg/events"
	"github.com/tecu23/match-server/pkg/game"
	"github.com/tecu23/match-server/pkg/matchmaking"
	"github.com/tecu23/match-server/pkg/messages"
	"github.com/tecu23/match-server/pkg/presence"
)

var blitz = game.TimeControl{InitialMs: 300000, IncrementMs: 3000}

type queueEnv struct {
	clk      *clock.Mock
	registry *game.Registry
	tracker  *presence.Tracker
	queue    *matchmaking.Queue

	mu      sync.Mutex
	matches []messages.MatchFoundPayload
}

func newQueueEnv(t *testing.T) *queueEnv {
	t.Helper()

	e := &queueEnv{clk: clock.NewMock()}

	publisher := events.NewPublisher()
	publisher.Subscribe(events.EventMatchFound, func(event events.Event) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.matches = append(e.matches, event.Payload.(messages.MatchFoundPayload))
	})

	e.registry = game.NewRegistry(e.clk, game.LibraryOracle{}, time.Second, publisher, zap.NewNop())
	e.tracker = presence.NewTracker(e.clk, 30*time.Second, e.registry, publisher, zap.NewNop())
	e.queue = matchmaking.NewQueue(200, e.registry, e.tracker, e.clk, publisher, zap.NewNop())

	return e
}

func TestJoinWithoutMatchEnqueues(t *testing.T) {
	e := newQueueEnv(t)

	session, position := e.queue.Join("alice", 1500, uuid.New(), blitz)
	assert.Nil(t, session)
	assert.Equal(t, 1, position)
	assert.Equal(t, 1, e.queue.Len())
}

func TestJoinPairsWithinRatingBand(t *testing.T) {
	e := newQueueEnv(t)

	aliceConn, bobConn := uuid.New(), uuid.New()
	session, _ := e.queue.Join("alice", 1500, aliceConn, blitz)
	require.Nil(t, session)

	session, _ = e.queue.Join("bob", 1650, bobConn, blitz)
	require.NotNil(t, session)
	assert.Equal(t, 0, e.queue.Len())

	// the waiting player takes white
	snap := session.Snapshot()
	assert.Equal(t, game.StatusInProgress, snap.Status)
	assert.Equal(t, "alice", snap.White.Identity)
	assert.Equal(t, "bob", snap.Black.Identity)

	// both connections were bound before the clocks started
	assert.ElementsMatch(t,
		[]uuid.UUID{aliceConn, bobConn},
		e.tracker.Connections(session.ID))

	e.mu.Lock()
	defer e.mu.Unlock()
	require.Len(t, e.matches, 1)
	assert.Equal(t, session.ID.String(), e.matches[0].SessionID)
}

func TestJoinSkipsPlayersOutsideBand(t *testing.T) {
	e := newQueueEnv(t)

	e.queue.Join("alice", 1200, uuid.New(), blitz)
	session, position := e.queue.Join("bob", 1600, uuid.New(), blitz)

	assert.Nil(t, session)
	assert.Equal(t, 2, position)
	assert.Equal(t, 2, e.queue.Len())

	// carol is within alice's band; FIFO gives her the oldest waiter
	session, _ = e.queue.Join("carol", 1300, uuid.New(), blitz)
	require.NotNil(t, session)
	assert.Equal(t, "alice", session.Snapshot().White.Identity)
	assert.Equal(t, 1, e.queue.Len())
}

func TestJoinTwiceIsANoop(t *testing.T) {
	e := newQueueEnv(t)

	e.queue.Join("alice", 1500, uuid.New(), blitz)
	session, position := e.queue.Join("alice", 1500, uuid.New(), blitz)

	assert.Nil(t, session)
	assert.Equal(t, 1, position)
	assert.Equal(t, 1, e.queue.Len())
}

func TestLeaveIsIdempotent(t *testing.T) {
	e := newQueueEnv(t)

	e.queue.Join("alice", 1500, uuid.New(), blitz)
	e.queue.Leave("alice")
	e.queue.Leave("alice")

	assert.Equal(t, 0, e.queue.Len())
}
