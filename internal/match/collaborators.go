package match

import (
	"context"
	"errors"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
)

var (
	// ErrActuation wraps failures reported by the Actuator.
	ErrActuation = errors.New("move actuation failed")
	// ErrObserver wraps failures reported by the Observer.
	ErrObserver = errors.New("board observation failed")
)

// Observer reads the live game.
type Observer interface {
	Board(ctx context.Context) (board.Board, error)
	IsMyTurn(ctx context.Context) (bool, error)
	InProgress(ctx context.Context) (bool, error)
	PlayerColor(ctx context.Context) (board.Color, error)
}

// Actuator performs a move on the live game. flipped is true when the board
// is shown from the dark side.
type Actuator interface {
	Play(ctx context.Context, m board.Move, flipped bool) error
}

// Oracle is the history-keeping move source for one match.
type Oracle interface {
	Reset(ctx context.Context) error
	Record(m board.Move)
	BestMove(ctx context.Context) (board.Move, error)
	History() []string
}

// DesyncReporter receives the two snapshots that failed inference.
type DesyncReporter interface {
	ReportDesync(ctx context.Context, matchID string, before, after board.Board, derr *inference.DesyncError) error
}
