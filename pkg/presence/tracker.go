// Package presence maps live transport connections to session seats and
// drives the disconnect grace period.
package presence

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
)

type slotKey struct {
	session uuid.UUID
	col     color.Color
}

// Binding identifies the seat a connection currently occupies.
type Binding struct {
	SessionID uuid.UUID
	Color     color.Color
}

// Tracker maintains the two-way mapping between connections and seats. A
// lost connection arms an abandonment timer for its seat; a rebind before
// the timer fires cancels it silently.
type Tracker struct {
	mu     sync.Mutex
	byConn map[uuid.UUID]Binding
	bySlot map[slotKey]uuid.UUID
	timers map[slotKey]*clock.Timer

	clk      clock.Clock
	grace    time.Duration
	registry *game.Registry

	publisher *events.Publisher
	logger    *zap.Logger
}

// NewTracker creates an empty tracker with the given grace period.
func NewTracker(
	clk clock.Clock,
	grace time.Duration,
	registry *game.Registry,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Tracker {
	return &Tracker{
		byConn:    make(map[uuid.UUID]Binding),
		bySlot:    make(map[slotKey]uuid.UUID),
		timers:    make(map[slotKey]*clock.Timer),
		clk:       clk,
		grace:     grace,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// Bind attaches a connection to a seat, replacing any prior connection for
// that seat and canceling a pending abandonment timer. Used both for the
// initial attach and for reconnects from a fresh transport instance.
func (t *Tracker) Bind(connID, sessionID uuid.UUID, col color.Color) {
	key := slotKey{session: sessionID, col: col}

	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	if prev, ok := t.bySlot[key]; ok && prev != connID {
		delete(t.byConn, prev)
	}
	if old, ok := t.byConn[connID]; ok {
		delete(t.bySlot, slotKey{session: old.SessionID, col: old.Color})
	}
	t.byConn[connID] = Binding{SessionID: sessionID, Color: col}
	t.bySlot[key] = connID
	t.mu.Unlock()

	t.publisher.Publish(events.Event{
		Type:      events.EventPresenceChanged,
		SessionID: sessionID.String(),
		Payload: messages.PresenceChangedPayload{
			SessionID: sessionID.String(),
			Color:     col,
			Connected: true,
		},
	})
}

// Unbind handles transport loss. The seat's forward mapping is cleared and,
// if the session is still in progress, the grace timer is armed. Firing
// without an intervening Bind abandons the session in the opponent's favor.
func (t *Tracker) Unbind(connID uuid.UUID) {
	t.mu.Lock()
	binding, ok := t.byConn[connID]
	if !ok {
		t.mu.Unlock()
		return
	}

	delete(t.byConn, connID)
	key := slotKey{session: binding.SessionID, col: binding.Color}
	if t.bySlot[key] != connID {
		// The seat was already taken over by a newer connection.
		t.mu.Unlock()
		return
	}
	delete(t.bySlot, key)
	t.mu.Unlock()

	t.publisher.Publish(events.Event{
		Type:      events.EventPresenceChanged,
		SessionID: binding.SessionID.String(),
		Payload: messages.PresenceChangedPayload{
			SessionID: binding.SessionID.String(),
			Color:     binding.Color,
			Connected: false,
		},
	})

	session, found := t.registry.Get(binding.SessionID)
	if !found || !session.InProgress() {
		return
	}

	t.mu.Lock()
	if _, rebound := t.bySlot[key]; !rebound {
		t.timers[key] = t.clk.AfterFunc(t.grace, func() {
			t.expire(key)
		})
		t.logger.Info("armed abandonment timer",
			zap.String("session_id", binding.SessionID.String()),
			zap.String("color", string(binding.Color)),
			zap.Duration("grace", t.grace),
		)
	}
	t.mu.Unlock()
}

// Connections returns the connection ids currently bound to the session's
// seats, for broadcast fan-out.
func (t *Tracker) Connections(sessionID uuid.UUID) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns := make([]uuid.UUID, 0, 2)
	for _, col := range []color.Color{color.White, color.Black} {
		if connID, ok := t.bySlot[slotKey{session: sessionID, col: col}]; ok {
			conns = append(conns, connID)
		}
	}
	return conns
}

// Binding returns the seat the connection occupies, if any.
func (t *Tracker) Binding(connID uuid.UUID) (Binding, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	binding, ok := t.byConn[connID]
	return binding, ok
}

// Shutdown stops every pending abandonment timer.
func (t *Tracker) Shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}

func (t *Tracker) expire(key slotKey) {
	t.mu.Lock()
	if _, armed := t.timers[key]; !armed {
		t.mu.Unlock()
		return
	}
	delete(t.timers, key)
	if _, rebound := t.bySlot[key]; rebound {
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	session, ok := t.registry.Get(key.session)
	if !ok {
		return
	}

	t.logger.Info("grace period expired",
		zap.String("session_id", key.session.String()),
		zap.String("color", string(key.col)),
	)

	session.Abandon(key.col)
}
