package messages

import "encoding/json"

// InboundMessage is the generic wrapper for messages coming from the client.
// The "type" field tells us the action; "payload" is the data we parse further.
type InboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// All inbound message types.
const (
	TypeCreateSession = "CREATE_SESSION"
	TypeJoinSession   = "JOIN_SESSION"
	TypeRejoinSession = "REJOIN_SESSION"
	TypeSubmitMove    = "SUBMIT_MOVE"
	TypeResign        = "RESIGN"
	TypeOfferDraw     = "OFFER_DRAW"
	TypeOfferRematch  = "OFFER_REMATCH"
	TypeRespondOffer  = "RESPOND_OFFER"
	TypeJoinQueue     = "JOIN_QUEUE"
	TypeLeaveQueue    = "LEAVE_QUEUE"
)

// CreateSessionPayload represents the payload for creating a new session
type CreateSessionPayload struct {
	Identity    string          `json:"identity"`
	Rating      int             `json:"rating"`
	TimeControl TimeControlInfo `json:"time_control"`
}

// JoinSessionPayload represents the payload for filling the second slot of a
// waiting session
type JoinSessionPayload struct {
	SessionID string `json:"session_id"`
	Identity  string `json:"identity"`
	Rating    int    `json:"rating"`
}

// RejoinSessionPayload rebinds a fresh connection to a seat the identity
// already holds
type RejoinSessionPayload struct {
	SessionID string `json:"session_id"`
	Identity  string `json:"identity"`
}

// SubmitMovePayload represents the payload for making a move during a game
type SubmitMovePayload struct {
	SessionID string `json:"session_id"`
	Identity  string `json:"identity"`
	Move      string `json:"move"`
}

// ResignPayload represents the payload for resigning a game
type ResignPayload struct {
	SessionID string `json:"session_id"`
	Identity  string `json:"identity"`
}

// OfferPayload represents the payload for offering a draw or a rematch
type OfferPayload struct {
	SessionID string `json:"session_id"`
	Identity  string `json:"identity"`
}

// RespondOfferPayload represents the payload for answering a pending offer
type RespondOfferPayload struct {
	SessionID string `json:"session_id"`
	Identity  string `json:"identity"`
	Accept    bool   `json:"accept"`
}

// JoinQueuePayload represents the payload for entering the matchmaking queue
type JoinQueuePayload struct {
	Identity    string          `json:"identity"`
	Rating      int             `json:"rating"`
	TimeControl TimeControlInfo `json:"time_control"`
}

// LeaveQueuePayload represents the payload for leaving the matchmaking queue
type LeaveQueuePayload struct {
	Identity string `json:"identity"`
}
