package game

import "errors"

// Errors returned by session and registry operations. They are returned to the
// submitting connection only; terminal state changes are broadcast instead.
var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrAlreadyFull          = errors.New("session already has two players")
	ErrSelfJoin             = errors.New("cannot join your own session")
	ErrNotAParticipant      = errors.New("identity is not seated in this session")
	ErrNotYourTurn          = errors.New("not your turn")
	ErrIllegalMove          = errors.New("illegal move")
	ErrOfferNotPending      = errors.New("no offer pending")
	ErrOfferAlreadyPending  = errors.New("an offer is already pending")
	ErrNotEligibleResponder = errors.New("only the other player may respond to the offer")

	// ErrClockExpired signals that the flag fell before the submitted action
	// could be considered. The session is completed and the terminal state is
	// broadcast by the time the caller sees this error, so it must not be
	// forwarded to the client as a plain error.
	ErrClockExpired = errors.New("clock expired")
)
