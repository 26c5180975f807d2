package server

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tecu23/match-server/pkg/events"
	"github.com/tecu23/match-server/pkg/game"
	"github.com/tecu23/match-server/pkg/matchmaking"
	"github.com/tecu23/match-server/pkg/messages"
	"github.com/tecu23/match-server/pkg/presence"
)

const testGrace = 30 * time.Second

type hubEnv struct {
	hub      *Hub
	registry *game.Registry
	clk      *clock.Mock
}

func newHubEnv(t *testing.T) *hubEnv {
	t.Helper()

	mock := clock.NewMock()
	publisher := events.NewPublisher()
	logger := zap.NewNop()

	registry := game.NewRegistry(mock, game.LibraryOracle{}, time.Second, publisher, logger)
	tracker := presence.NewTracker(mock, testGrace, registry, publisher, logger)
	queue := matchmaking.NewQueue(200, registry, tracker, mock, publisher, logger)

	return &hubEnv{
		hub:      NewHub(registry, tracker, queue, publisher, logger),
		registry: registry,
		clk:      mock,
	}
}

func (e *hubEnv) connect(t *testing.T) *Connection {
	t.Helper()

	conn := NewConnection(nil, e.hub, zap.NewNop())
	e.hub.registerConnection(conn)

	msg := recv(t, conn)
	require.Equal(t, messages.EventConnected, msg.Event)

	return conn
}

func (e *hubEnv) send(t *testing.T, conn *Connection, msgType string, payload any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	e.hub.handleInbound(InboundHubMessage{
		Conn:    conn,
		Message: messages.InboundMessage{Type: msgType, Payload: raw},
	})
}

type received struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

func recv(t *testing.T, conn *Connection) received {
	t.Helper()

	select {
	case data, ok := <-conn.send:
		require.True(t, ok, "send channel closed")
		var msg received
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	default:
		t.Fatal("no message waiting")
		return received{}
	}
}

func drain(conn *Connection) []received {
	var out []received
	for {
		select {
		case data, ok := <-conn.send:
			if !ok {
				return out
			}
			var msg received
			if json.Unmarshal(data, &msg) == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func lastOf(msgs []received, event string) (received, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Event == event {
			return msgs[i], true
		}
	}
	return received{}, false
}

// createSession drives CREATE_SESSION through the hub and returns the
// acknowledgement. Binding the creator's seat emits a presence broadcast
// ahead of the direct reply, so this drains rather than reading one message.
func (e *hubEnv) createSession(t *testing.T, conn *Connection, identity string, rating int, tc messages.TimeControlInfo) messages.SessionCreatedPayload {
	t.Helper()

	e.send(t, conn, messages.TypeCreateSession, messages.CreateSessionPayload{
		Identity:    identity,
		Rating:      rating,
		TimeControl: tc,
	})

	msg, ok := lastOf(drain(conn), messages.EventSessionCreated)
	require.True(t, ok)

	var created messages.SessionCreatedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &created))
	require.NotEmpty(t, created.SessionID)

	return created
}

func TestCreateJoinAndMoveFlow(t *testing.T) {
	e := newHubEnv(t)

	creator := e.connect(t)
	created := e.createSession(t, creator, "alice", 1500, messages.TimeControlInfo{InitialMs: 300000, IncrementMs: 3000})

	joiner := e.connect(t)
	e.send(t, joiner, messages.TypeJoinSession, messages.JoinSessionPayload{
		SessionID: created.SessionID,
		Identity:  "bob",
		Rating:    1480,
	})

	// the creator hears the broadcast, the joiner gets a direct copy
	creatorMsgs := drain(creator)
	started, ok := lastOf(creatorMsgs, messages.EventSessionStarted)
	require.True(t, ok)

	var startedPayload messages.SessionStartedPayload
	require.NoError(t, json.Unmarshal(started.Payload, &startedPayload))
	assert.Equal(t, "alice", startedPayload.White.Identity)
	assert.Equal(t, "bob", startedPayload.Black.Identity)

	joinerMsgs := drain(joiner)
	_, ok = lastOf(joinerMsgs, messages.EventSessionStarted)
	require.True(t, ok)

	// white moves; both sides observe it
	e.clk.Add(2 * time.Second)
	e.send(t, creator, messages.TypeSubmitMove, messages.SubmitMovePayload{
		SessionID: created.SessionID,
		Identity:  "alice",
		Move:      "e2e4",
	})

	for _, conn := range []*Connection{creator, joiner} {
		msgs := drain(conn)
		applied, ok := lastOf(msgs, messages.EventMoveApplied)
		require.True(t, ok)

		var payload messages.MoveAppliedPayload
		require.NoError(t, json.Unmarshal(applied.Payload, &payload))
		assert.Equal(t, "e2e4", payload.Move)
		assert.Equal(t, int64(301000), payload.WhiteTime) // 300000 - 2000 + 3000
	}
}

func TestMoveErrorsGoToCallerOnly(t *testing.T) {
	e := newHubEnv(t)

	creator := e.connect(t)
	created := e.createSession(t, creator, "alice", 0, messages.TimeControlInfo{InitialMs: 60000})

	joiner := e.connect(t)
	e.send(t, joiner, messages.TypeJoinSession, messages.JoinSessionPayload{
		SessionID: created.SessionID,
		Identity:  "bob",
	})
	drain(creator)
	drain(joiner)

	// black tries to move out of turn
	e.send(t, joiner, messages.TypeSubmitMove, messages.SubmitMovePayload{
		SessionID: created.SessionID,
		Identity:  "bob",
		Move:      "e7e5",
	})

	joinerMsgs := drain(joiner)
	errMsg, ok := lastOf(joinerMsgs, messages.EventError)
	require.True(t, ok)

	var payload messages.ErrorPayload
	require.NoError(t, json.Unmarshal(errMsg.Payload, &payload))
	assert.Equal(t, game.ErrNotYourTurn.Error(), payload.Message)

	// the opponent heard nothing about it
	assert.Empty(t, drain(creator))
}

func TestRejoinResyncsOnlyTheReconnectingClient(t *testing.T) {
	e := newHubEnv(t)

	creator := e.connect(t)
	created := e.createSession(t, creator, "alice", 0, messages.TimeControlInfo{InitialMs: 300000, IncrementMs: 3000})

	joiner := e.connect(t)
	e.send(t, joiner, messages.TypeJoinSession, messages.JoinSessionPayload{
		SessionID: created.SessionID,
		Identity:  "bob",
	})
	e.send(t, creator, messages.TypeSubmitMove, messages.SubmitMovePayload{
		SessionID: created.SessionID,
		Identity:  "alice",
		Move:      "e2e4",
	})
	drain(creator)
	drain(joiner)

	// bob's transport dies and he comes back on a fresh connection
	e.hub.unregisterConnection(joiner)
	e.clk.Add(testGrace / 2)

	fresh := e.connect(t)
	e.send(t, fresh, messages.TypeRejoinSession, messages.RejoinSessionPayload{
		SessionID: created.SessionID,
		Identity:  "bob",
	})

	freshMsgs := drain(fresh)
	state, ok := lastOf(freshMsgs, messages.EventSessionState)
	require.True(t, ok)

	var payload messages.SessionStatePayload
	require.NoError(t, json.Unmarshal(state.Payload, &payload))
	assert.Equal(t, string(game.StatusInProgress), payload.Status)
	require.Len(t, payload.Moves, 1)
	assert.Equal(t, "e2e4", payload.Moves[0].Move)

	// nothing about the game changed, so the opponent got presence
	// updates at most
	for _, m := range drain(creator) {
		assert.Equal(t, messages.EventPresenceChanged, m.Event)
	}

	// the grace period never fires
	e.clk.Add(time.Hour)
	assert.Empty(t, drainEvents(creator, messages.EventSessionEnded))
}

func TestGraceExpiryBroadcastsToRemainingConnection(t *testing.T) {
	e := newHubEnv(t)

	creator := e.connect(t)
	created := e.createSession(t, creator, "alice", 0, messages.TimeControlInfo{InitialMs: 300000})

	joiner := e.connect(t)
	e.send(t, joiner, messages.TypeJoinSession, messages.JoinSessionPayload{
		SessionID: created.SessionID,
		Identity:  "bob",
	})
	drain(creator)
	drain(joiner)

	e.hub.unregisterConnection(joiner)
	e.clk.Add(testGrace + time.Second)

	creatorMsgs := drain(creator)
	ended, ok := lastOf(creatorMsgs, messages.EventSessionEnded)
	require.True(t, ok)

	var payload messages.SessionEndedPayload
	require.NoError(t, json.Unmarshal(ended.Payload, &payload))
	require.NotNil(t, payload.Winner)
	assert.Equal(t, "w", string(*payload.Winner))
	assert.Equal(t, string(game.ReasonDisconnected), payload.Reason)
}

func TestJoinQueueAcknowledgesWhenNoMatch(t *testing.T) {
	e := newHubEnv(t)

	conn := e.connect(t)
	e.send(t, conn, messages.TypeJoinQueue, messages.JoinQueuePayload{
		Identity: "alice",
		Rating:   1500,
	})

	msg := recv(t, conn)
	require.Equal(t, messages.EventQueueJoined, msg.Event)

	var payload messages.QueueJoinedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, 1, payload.Position)
}

func TestQueuePairingStartsSessionForBothConnections(t *testing.T) {
	e := newHubEnv(t)

	first := e.connect(t)
	e.send(t, first, messages.TypeJoinQueue, messages.JoinQueuePayload{Identity: "alice", Rating: 1500})
	drain(first)

	second := e.connect(t)
	e.send(t, second, messages.TypeJoinQueue, messages.JoinQueuePayload{Identity: "bob", Rating: 1550})

	for _, conn := range []*Connection{first, second} {
		msgs := drain(conn)
		_, ok := lastOf(msgs, messages.EventMatchFound)
		require.True(t, ok)
		_, ok = lastOf(msgs, messages.EventSessionStarted)
		require.True(t, ok)
	}
}

func drainEvents(conn *Connection, event string) []received {
	var out []received
	for _, m := range drain(conn) {
		if m.Event == event {
			out = append(out, m)
		}
	}
	return out
}
