// Package server is the websocket transport: it owns the set of live
// connections and routes typed client messages into the game core.
package server

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tecu23/match-server/internal/color"
	"github.com/tecu23/match-server/pkg/events"
	"github.com/tecu23/match-server/pkg/game"
	"github.com/tecu23/match-server/pkg/matchmaking"
	"github.com/tecu23/match-server/pkg/messages"
	"github.com/tecu23/match-server/pkg/presence"
)

// InboundHubMessage are the messages that the hub receives
type InboundHubMessage struct {
	Conn    *Connection             // who sent it
	Message messages.InboundMessage // decoded envelope
}

// Hub keeps track of all active connections and routes every inbound
// message through one typed dispatcher. Session mutations publish their
// broadcasts through the event publisher; the hub subscribes and fans each
// one out to the connections bound to that session.
type Hub struct {
	mu          sync.RWMutex                 // Mutex to protect direct access to the connections map.
	connections map[uuid.UUID]*Connection    // Registered connections by id

	register   chan *Connection       // Incoming registration
	unregister chan *Connection       // Incoming unregistration
	inbound    chan InboundHubMessage // Channel of inbound messages the hub routes

	done      chan struct{}
	closeOnce sync.Once

	registry *game.Registry
	presence *presence.Tracker
	queue    *matchmaking.Queue

	publisher *events.Publisher
	logger    *zap.Logger
}

// NewHub creates a new hub and subscribes it to the game events it
// broadcasts.
func NewHub(
	registry *game.Registry,
	tracker *presence.Tracker,
	queue *matchmaking.Queue,
	publisher *events.Publisher,
	logger *zap.Logger,
) *Hub {
	h := &Hub{
		connections: make(map[uuid.UUID]*Connection),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		inbound:     make(chan InboundHubMessage),
		done:        make(chan struct{}),
		registry:    registry,
		presence:    tracker,
		queue:       queue,
		publisher:   publisher,
		logger:      logger,
	}

	h.setupEventHandlers()

	return h
}

// setupEventHandlers subscribes the broadcast fan-out. Handlers run
// synchronously inside the publishing mutation, so per-connection delivery
// order matches commit order; they only touch the presence table and the
// connection send buffers, never the session.
func (h *Hub) setupEventHandlers() {
	broadcast := []events.EventType{
		events.EventSessionStarted,
		events.EventMoveApplied,
		events.EventSessionEnded,
		events.EventOfferPending,
		events.EventOfferResolved,
		events.EventPresenceChanged,
		events.EventMatchFound,
	}

	for _, eventType := range broadcast {
		h.publisher.Subscribe(eventType, func(event events.Event) {
			h.broadcastToSession(event)
		})
	}
}

func (h *Hub) broadcastToSession(event events.Event) {
	sessionID, err := uuid.Parse(event.SessionID)
	if err != nil {
		return
	}

	msg := messages.OutboundMessage{
		Event:   string(event.Type),
		Payload: event.Payload,
	}

	for _, connID := range h.presence.Connections(sessionID) {
		h.mu.RLock()
		conn, ok := h.connections[connID]
		h.mu.RUnlock()
		if ok {
			conn.SendJSON(msg)
		}
	}
}

// Run is the main execution of the hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return

		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case msg := <-h.inbound:
			h.handleInbound(msg)
		}
	}
}

// Register hands a new connection to the hub loop.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister hands a lost connection to the hub loop.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Shutdown stops the hub loop.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	h.connections[conn.ID] = conn
	h.mu.Unlock()

	h.logger.Info("connection registered", zap.String("connection_id", conn.ID.String()))

	conn.SendJSON(messages.OutboundMessage{
		Event:   messages.EventConnected,
		Payload: messages.ConnectedPayload{ConnectionID: conn.ID.String()},
	})
}

func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	_, ok := h.connections[conn.ID]
	if ok {
		delete(h.connections, conn.ID)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	// Transport loss arms the abandonment timer; a rebind from a fresh
	// connection within the grace period cancels it.
	h.presence.Unbind(conn.ID)
	close(conn.send)

	h.publisher.Publish(events.Event{Type: events.EventConnectionClosed})

	h.logger.Info("connection unregistered", zap.String("connection_id", conn.ID.String()))
}

// handleInbound decodes and routes one message from a client.
func (h *Hub) handleInbound(msg InboundHubMessage) {
	switch msg.Message.Type {
	case messages.TypeCreateSession:
		h.handleCreateSession(msg)
	case messages.TypeJoinSession:
		h.handleJoinSession(msg)
	case messages.TypeRejoinSession:
		h.handleRejoinSession(msg)
	case messages.TypeSubmitMove:
		h.handleSubmitMove(msg)
	case messages.TypeResign:
		h.handleResign(msg)
	case messages.TypeOfferDraw:
		h.handleOffer(msg, game.OfferDraw)
	case messages.TypeOfferRematch:
		h.handleOffer(msg, game.OfferRematch)
	case messages.TypeRespondOffer:
		h.handleRespondOffer(msg)
	case messages.TypeJoinQueue:
		h.handleJoinQueue(msg)
	case messages.TypeLeaveQueue:
		h.handleLeaveQueue(msg)
	default:
		h.sendError(msg.Conn, "unknown message type")
	}
}

func (h *Hub) handleCreateSession(msg InboundHubMessage) {
	var payload messages.CreateSessionPayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid CREATE_SESSION payload")
		return
	}
	if payload.Identity == "" || payload.TimeControl.InitialMs <= 0 {
		h.sendError(msg.Conn, "identity and a positive initial time are required")
		return
	}

	tc := game.TimeControl{
		InitialMs:   payload.TimeControl.InitialMs,
		IncrementMs: payload.TimeControl.IncrementMs,
	}

	session := h.registry.Create(payload.Identity, payload.Rating, tc)
	h.presence.Bind(msg.Conn.ID, session.ID, color.White)

	msg.Conn.SendJSON(messages.OutboundMessage{
		Event: messages.EventSessionCreated,
		Payload: messages.SessionCreatedPayload{
			SessionID:   session.ID.String(),
			Color:       color.White,
			InitialFEN:  session.Snapshot().FEN,
			TimeControl: payload.TimeControl,
		},
	})
}

func (h *Hub) handleJoinSession(msg InboundHubMessage) {
	var payload messages.JoinSessionPayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid JOIN_SESSION payload")
		return
	}

	id, err := uuid.Parse(payload.SessionID)
	if err != nil {
		h.sendError(msg.Conn, err.Error())
		return
	}

	session, err := h.registry.FillSecondSlot(id, payload.Identity, payload.Rating)
	if err != nil {
		h.sendError(msg.Conn, err.Error())
		return
	}

	// The start broadcast fired before this connection was bound, so the
	// joiner gets it directly.
	h.presence.Bind(msg.Conn.ID, session.ID, color.Black)

	snap := session.Snapshot()
	msg.Conn.SendJSON(messages.OutboundMessage{
		Event: messages.EventSessionStarted,
		Payload: messages.SessionStartedPayload{
			SessionID:   snap.ID,
			White:       messages.PlayerInfo{Identity: snap.White.Identity, Rating: snap.White.Rating},
			Black:       messages.PlayerInfo{Identity: snap.Black.Identity, Rating: snap.Black.Rating},
			TimeControl: messages.TimeControlInfo{InitialMs: snap.TimeControl.InitialMs, IncrementMs: snap.TimeControl.IncrementMs},
			FEN:         snap.FEN,
			Turn:        snap.Turn,
		},
	})
}

func (h *Hub) handleRejoinSession(msg InboundHubMessage) {
	var payload messages.RejoinSessionPayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid REJOIN_SESSION payload")
		return
	}

	session, ok := h.session(msg.Conn, payload.SessionID)
	if !ok {
		return
	}

	col, seated := session.SlotOf(payload.Identity)
	if !seated {
		h.sendError(msg.Conn, game.ErrNotAParticipant.Error())
		return
	}

	h.presence.Bind(msg.Conn.ID, session.ID, col)

	// Full-state resync to the reconnecting connection only; nothing about
	// the game changed, so the opponent is not re-notified.
	msg.Conn.SendJSON(messages.OutboundMessage{
		Event:   messages.EventSessionState,
		Payload: session.Snapshot().StatePayload(),
	})
}

func (h *Hub) handleSubmitMove(msg InboundHubMessage) {
	var payload messages.SubmitMovePayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid SUBMIT_MOVE payload")
		return
	}

	session, ok := h.session(msg.Conn, payload.SessionID)
	if !ok {
		return
	}

	err := session.SubmitMove(payload.Identity, payload.Move)
	if err != nil && !errors.Is(err, game.ErrClockExpired) {
		// A flag fall is a terminal broadcast, already delivered; every
		// other failure goes back to the caller only.
		h.sendError(msg.Conn, err.Error())
	}
}

func (h *Hub) handleResign(msg InboundHubMessage) {
	var payload messages.ResignPayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid RESIGN payload")
		return
	}

	session, ok := h.session(msg.Conn, payload.SessionID)
	if !ok {
		return
	}

	if err := session.Resign(payload.Identity); err != nil {
		h.sendError(msg.Conn, err.Error())
	}
}

func (h *Hub) handleOffer(msg InboundHubMessage, kind game.OfferKind) {
	var payload messages.OfferPayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid offer payload")
		return
	}

	session, ok := h.session(msg.Conn, payload.SessionID)
	if !ok {
		return
	}

	if err := session.MakeOffer(payload.Identity, kind); err != nil {
		h.sendError(msg.Conn, err.Error())
	}
}

func (h *Hub) handleRespondOffer(msg InboundHubMessage) {
	var payload messages.RespondOfferPayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid RESPOND_OFFER payload")
		return
	}

	session, ok := h.session(msg.Conn, payload.SessionID)
	if !ok {
		return
	}

	if _, err := session.RespondOffer(payload.Identity, payload.Accept); err != nil {
		h.sendError(msg.Conn, err.Error())
	}
}

func (h *Hub) handleJoinQueue(msg InboundHubMessage) {
	var payload messages.JoinQueuePayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid JOIN_QUEUE payload")
		return
	}
	if payload.Identity == "" {
		h.sendError(msg.Conn, "identity is required")
		return
	}

	tc := game.TimeControl{
		InitialMs:   payload.TimeControl.InitialMs,
		IncrementMs: payload.TimeControl.IncrementMs,
	}
	if tc.InitialMs <= 0 {
		// Blitz default, matching the common lobby setting.
		tc = game.TimeControl{InitialMs: 300000, IncrementMs: 3000}
	}

	session, position := h.queue.Join(payload.Identity, payload.Rating, msg.Conn.ID, tc)
	if session != nil {
		return // both sides were notified through the match broadcast
	}

	msg.Conn.SendJSON(messages.OutboundMessage{
		Event:   messages.EventQueueJoined,
		Payload: messages.QueueJoinedPayload{Position: position},
	})
}

func (h *Hub) handleLeaveQueue(msg InboundHubMessage) {
	var payload messages.LeaveQueuePayload
	if err := json.Unmarshal(msg.Message.Payload, &payload); err != nil {
		h.sendError(msg.Conn, "invalid LEAVE_QUEUE payload")
		return
	}

	h.queue.Leave(payload.Identity)
}

func (h *Hub) session(conn *Connection, sessionID string) (*game.Session, bool) {
	id, err := uuid.Parse(sessionID)
	if err != nil {
		h.sendError(conn, game.ErrSessionNotFound.Error())
		return nil, false
	}

	session, ok := h.registry.Get(id)
	if !ok {
		h.sendError(conn, game.ErrSessionNotFound.Error())
		return nil, false
	}

	return session, true
}

func (h *Hub) sendError(conn *Connection, msg string) {
	conn.SendJSON(messages.OutboundMessage{
		Event:   messages.EventError,
		Payload: messages.ErrorPayload{Message: msg},
	})
}
