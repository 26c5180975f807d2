package game

import (
	"github.com/corentings/chess/v2"

	"github.com/tecu23/match-server/internal/color"
)

// EndReason records why a session reached a terminal status.
type EndReason string

// All the ways a session can end.
const (
	ReasonCheckmate            EndReason = "checkmate"
	ReasonStalemate            EndReason = "stalemate"
	ReasonThreefoldRepetition  EndReason = "threefold_repetition"
	ReasonFiftyMoveRule        EndReason = "fifty_move_rule"
	ReasonInsufficientMaterial EndReason = "insufficient_material"
	ReasonDraw                 EndReason = "draw"
	ReasonResignation          EndReason = "resignation"
	ReasonTimeout              EndReason = "timeout"
	ReasonDisconnected         EndReason = "opponent_disconnected"
)

// Verdict is the oracle's judgment of an accepted move: the resulting
// position plus terminal-condition flags, if any.
type Verdict struct {
	FEN      string
	Terminal bool
	Winner   *color.Color // nil on draws
	Reason   EndReason    // set only when Terminal
}

// Oracle validates a candidate move against a position and, when legal,
// advances the position. It is the only component that knows the rules of
// the game; the session treats it as a pure collaborator.
type Oracle interface {
	Apply(position *chess.Game, move string) (Verdict, error)
}

// LibraryOracle is the production oracle, backed by the chess library the
// session also uses to hold its authoritative position.
type LibraryOracle struct{}

// Apply pushes the move onto the position. A rejection leaves the position
// untouched and returns ErrIllegalMove.
func (LibraryOracle) Apply(position *chess.Game, move string) (Verdict, error) {
	if err := position.PushMove(move, nil); err != nil {
		return Verdict{}, ErrIllegalMove
	}

	verdict := Verdict{FEN: position.FEN()}

	switch position.Outcome() {
	case chess.NoOutcome:
		return verdict, nil
	case chess.WhiteWon:
		winner := color.White
		verdict.Winner = &winner
	case chess.BlackWon:
		winner := color.Black
		verdict.Winner = &winner
	case chess.Draw:
	}

	verdict.Terminal = true
	verdict.Reason = reasonForMethod(position.Method())

	return verdict, nil
}

func reasonForMethod(method chess.Method) EndReason {
	switch method {
	case chess.Checkmate:
		return ReasonCheckmate
	case chess.Stalemate:
		return ReasonStalemate
	case chess.ThreefoldRepetition, chess.FivefoldRepetition:
		return ReasonThreefoldRepetition
	case chess.FiftyMoveRule, chess.SeventyFiveMoveRule:
		return ReasonFiftyMoveRule
	case chess.InsufficientMaterial:
		return ReasonInsufficientMaterial
	default:
		return ReasonDraw
	}
}
