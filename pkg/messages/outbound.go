package messages

import "github.com/tecu23/match-server/internal/color"

// OutboundMessage is how we wrap responses before sending
// them to the client
type OutboundMessage struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// All outbound event names.
const (
	EventConnected       = "CONNECTED"
	EventSessionCreated  = "SESSION_CREATED"
	EventSessionStarted  = "SESSION_STARTED"
	EventSessionState    = "SESSION_STATE"
	EventMoveApplied     = "MOVE_APPLIED"
	EventSessionEnded    = "SESSION_ENDED"
	EventOfferPending    = "OFFER_PENDING"
	EventOfferResolved   = "OFFER_RESOLVED"
	EventPresenceChanged = "PRESENCE_CHANGED"
	EventMatchFound      = "MATCH_FOUND"
	EventQueueJoined     = "QUEUE_JOINED"
	EventError           = "ERROR"
)

// TimeControlInfo mirrors the session's time control on the wire.
type TimeControlInfo struct {
	InitialMs   int64 `json:"initial_ms"`
	IncrementMs int64 `json:"increment_ms"`
}

// PlayerInfo identifies one seated player.
type PlayerInfo struct {
	Identity string `json:"identity"`
	Rating   int    `json:"rating"`
}

// ConnectedPayload acknowledges a new transport connection.
type ConnectedPayload struct {
	ConnectionID string `json:"connection_id"`
}

// SessionCreatedPayload represents the payload after a create session event
type SessionCreatedPayload struct {
	SessionID   string          `json:"session_id"`
	Color       color.Color     `json:"color"`
	InitialFEN  string          `json:"initial_fen"`
	TimeControl TimeControlInfo `json:"time_control"`
}

// SessionStartedPayload is broadcast when the second slot fills and the
// clocks start.
type SessionStartedPayload struct {
	SessionID   string          `json:"session_id"`
	White       PlayerInfo      `json:"white"`
	Black       PlayerInfo      `json:"black"`
	TimeControl TimeControlInfo `json:"time_control"`
	FEN         string          `json:"fen"`
	Turn        color.Color     `json:"turn"`
}

// MoveAppliedPayload is broadcast after every accepted move.
type MoveAppliedPayload struct {
	SessionID string      `json:"session_id"`
	Move      string      `json:"move"`
	FEN       string      `json:"fen"`
	Turn      color.Color `json:"turn"`
	WhiteTime int64       `json:"white_time"`
	BlackTime int64       `json:"black_time"`
	Terminal  bool        `json:"terminal"`
}

// SessionEndedPayload is broadcast once per session, on the single
// transition into a terminal status.
type SessionEndedPayload struct {
	SessionID string       `json:"session_id"`
	Winner    *color.Color `json:"winner,omitempty"` // nil on draws
	Reason    string       `json:"reason"`
	FEN       string       `json:"fen"`
}

// OfferPendingPayload is broadcast when a draw or rematch offer is made.
type OfferPendingPayload struct {
	SessionID string      `json:"session_id"`
	Kind      string      `json:"kind"`
	From      color.Color `json:"from"`
}

// OfferResolvedPayload is broadcast when a pending offer is answered or
// implicitly cleared.
type OfferResolvedPayload struct {
	SessionID        string      `json:"session_id"`
	Kind             string      `json:"kind"`
	From             color.Color `json:"from"`
	Accepted         bool        `json:"accepted"`
	RematchSessionID string      `json:"rematch_session_id,omitempty"`
}

// PresenceChangedPayload is broadcast when a seat gains or loses its
// connection.
type PresenceChangedPayload struct {
	SessionID string      `json:"session_id"`
	Color     color.Color `json:"color"`
	Connected bool        `json:"connected"`
}

// MatchFoundPayload is broadcast to both paired players when the
// matchmaking queue produces a session.
type MatchFoundPayload struct {
	SessionID   string          `json:"session_id"`
	White       PlayerInfo      `json:"white"`
	Black       PlayerInfo      `json:"black"`
	TimeControl TimeControlInfo `json:"time_control"`
}

// QueueJoinedPayload acknowledges an enqueue that did not pair immediately.
type QueueJoinedPayload struct {
	Position int `json:"position"`
}

// AppliedMove is one move-log entry on the wire.
type AppliedMove struct {
	Move        string      `json:"move"`
	FEN         string      `json:"fen"`
	By          color.Color `json:"by"`
	PlayedAtMs  int64       `json:"played_at_ms"`
	RemainingMs int64       `json:"remaining_ms"`
}

// OfferInfo describes a pending offer inside a state snapshot.
type OfferInfo struct {
	Kind string      `json:"kind"`
	From color.Color `json:"from"`
}

// SessionStatePayload is the full-state resync pushed to a reconnecting
// connection.
type SessionStatePayload struct {
	SessionID    string       `json:"session_id"`
	Status       string       `json:"status"`
	FEN          string       `json:"fen"`
	Turn         color.Color  `json:"turn"`
	White        PlayerInfo   `json:"white"`
	Black        PlayerInfo   `json:"black"`
	WhiteTime    int64        `json:"white_time"`
	BlackTime    int64        `json:"black_time"`
	Moves        []AppliedMove `json:"moves"`
	PendingOffer *OfferInfo   `json:"pending_offer,omitempty"`
	Winner       *color.Color `json:"winner,omitempty"`
	Reason       string       `json:"reason,omitempty"`
}

// ErrorPayload carries a synchronous precondition failure back to the
// calling connection.
type ErrorPayload struct {
	Message string `json:"message"`
}
