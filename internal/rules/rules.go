package rules

import (
	"fmt"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

// StartingFEN is the standard initial chess position.
const StartingFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Outcome reports a decisive result detected by the engine after a move.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeWhiteWon Outcome = "white"
	OutcomeBlackWon Outcome = "black"
	OutcomeDraw     Outcome = "draw"
)

var (
	ErrIllegalMove = staticErr("illegal move")
	ErrBadFEN      = staticErr("invalid fen")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

// MoveResult carries the position after a legal move.
type MoveResult struct {
	FEN     string
	SAN     string
	UCI     string
	Outcome Outcome
}

// Engine wraps the chess library behind the two operations the relay needs:
// apply-and-describe a proposed move, and validate/normalize a bare position.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// ApplyMove validates (from, to, promotion) against fen and, when legal,
// returns the resulting position and the move's algebraic notation. Every
// illegality class (wrong side to move, empty origin square, self-check,
// malformed promotion) surfaces as ErrIllegalMove.
func (e *Engine) ApplyMove(fen, from, to, promotion string) (MoveResult, error) {
	game, err := gameFromFEN(fen)
	if err != nil {
		return MoveResult{}, err
	}

	uci := strings.ToLower(strings.TrimSpace(from) + strings.TrimSpace(to) + strings.TrimSpace(promotion))
	if len(uci) < 4 {
		return MoveResult{}, ErrIllegalMove
	}

	pos := game.Position()
	if err := game.PushNotationMove(uci, chesslib.UCINotation{}, nil); err != nil {
		return MoveResult{}, fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}

	moves := game.Moves()
	if len(moves) == 0 {
		return MoveResult{}, ErrIllegalMove
	}
	last := moves[len(moves)-1]
	san := chesslib.AlgebraicNotation{}.Encode(pos, last)

	return MoveResult{
		FEN:     game.FEN(),
		SAN:     san,
		UCI:     last.String(),
		Outcome: outcomeFrom(game),
	}, nil
}

// NormalizeFEN round-trips a candidate position through the library parser
// and returns its canonical form.
func (e *Engine) NormalizeFEN(fen string) (string, error) {
	if strings.TrimSpace(fen) == "" {
		return "", ErrBadFEN
	}
	game, err := gameFromFEN(fen)
	if err != nil {
		return "", err
	}
	return game.FEN(), nil
}

func gameFromFEN(fen string) (*chesslib.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return chesslib.NewGame(), nil
	}
	option, err := chesslib.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFEN, err)
	}
	return chesslib.NewGame(option), nil
}

func outcomeFrom(game *chesslib.Game) Outcome {
	switch game.Outcome() {
	case chesslib.WhiteWon:
		return OutcomeWhiteWon
	case chesslib.BlackWon:
		return OutcomeBlackWon
	case chesslib.Draw:
		return OutcomeDraw
	default:
		return OutcomeNone
	}
}
