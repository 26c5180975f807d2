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
)

// Registry owns the set of live sessions. It is an explicit dependency
// passed by reference to every component that needs session lookup; there
// is no ambient global table. Its mutex only guards the id map and is never
// held during move processing.
type Registry struct {
	sessions map[uuid.UUID]*Session
	mu       sync.RWMutex

	clk        clock.Clock
	oracle     Oracle
	sweepEvery time.Duration

	done      chan struct{}
	closeOnce sync.Once

	publisher *events.Publisher
	logger    *zap.Logger
}

// NewRegistry creates an empty registry. Run must be started separately for
// the flag-fall sweep to operate.
func NewRegistry(
	clk clock.Clock,
	oracle Oracle,
	sweepEvery time.Duration,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Registry {
	return &Registry{
		sessions:   make(map[uuid.UUID]*Session),
		clk:        clk,
		oracle:     oracle,
		sweepEvery: sweepEvery,
		done:       make(chan struct{}),
		publisher:  publisher,
		logger:     logger,
	}
}

// Create makes a new waiting session with the initiator seated as white and
// both clocks set to the initial budget.
func (r *Registry) Create(identity string, rating int, tc TimeControl) *Session {
	session := r.newSession(tc)
	session.players[0] = &Player{ID: identity, Rating: rating, Clock: NewClock(tc, r.clk)}

	r.register(session)

	r.logger.Info("created new game session",
		zap.String("session_id", session.ID.String()),
		zap.String("initiator", identity),
	)

	r.publisher.Publish(events.Event{
		Type:      events.EventSessionCreated,
		SessionID: session.ID.String(),
	})

	return session
}

// Get returns a session by ID
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	session, ok := r.sessions[id]
	return session, ok
}

// FillSecondSlot seats the identity as black and starts the game. The first
// of two concurrent joins to acquire the session lock wins; the other
// receives AlreadyFull.
func (r *Registry) FillSecondSlot(id uuid.UUID, identity string, rating int) (*Session, error) {
	session, ok := r.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	if err := session.Join(identity, rating); err != nil {
		return nil, err
	}

	return session, nil
}

// Remove drops a finished session from the registry.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	r.logger.Info("removed game session", zap.String("session_id", id.String()))
}

// Run drives the periodic flag-fall sweep until Shutdown. The sweep
// guarantees a timeout is observed even when the losing side never submits
// another action.
func (r *Registry) Run() {
	ticker := r.clk.Ticker(r.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Sweep checks every live session for an expired clock. Idempotent: a
// session already completed by timeout is a no-op.
func (r *Registry) Sweep() {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, session := range r.sessions {
		live = append(live, session)
	}
	r.mu.RUnlock()

	// Session locks are taken only after the registry lock is released.
	for _, session := range live {
		session.CheckFlagFall()
	}
}

// Shutdown stops the sweep.
func (r *Registry) Shutdown() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

// createRematch builds a fresh in-progress session for the same two players
// with the colors swapped and the original time control. Called from inside
// an offer resolution; the new session is independent of the old one.
func (r *Registry) createRematch(players [2]*Player, tc TimeControl) *Session {
	session := r.newSession(tc)
	session.players[0] = &Player{ID: players[1].ID, Rating: players[1].Rating, Clock: NewClock(tc, r.clk)}
	session.players[1] = &Player{ID: players[0].ID, Rating: players[0].Rating, Clock: NewClock(tc, r.clk)}
	session.status = StatusInProgress
	session.startedAt = r.clk.Now()
	session.players[0].Clock.Resume()

	r.register(session)

	r.logger.Info("created rematch session",
		zap.String("session_id", session.ID.String()),
		zap.String("white", session.players[0].ID),
		zap.String("black", session.players[1].ID),
	)

	return session
}

func (r *Registry) newSession(tc TimeControl) *Session {
	return &Session{
		ID:        uuid.New(),
		game:      chess.NewGame(),
		status:    StatusWaiting,
		turn:      color.White,
		tc:        tc,
		createdAt: r.clk.Now(),
		clk:       r.clk,
		oracle:    r.oracle,
		registry:  r,
		Publisher: r.publisher,
		Logger:    r.logger,
	}
}

func (r *Registry) register(session *Session) {
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
}
