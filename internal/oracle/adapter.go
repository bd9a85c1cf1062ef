// Package oracle keeps the move history of one match and turns it into
// engine queries.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/chess/uci"
)

var (
	// ErrProtocol covers engine I/O failures: exit, missing reply, timeout.
	ErrProtocol = errors.New("oracle protocol error")
	// ErrMoveDecode reports a reply whose move token does not parse.
	ErrMoveDecode = errors.New("oracle move decode error")
)

// Engine is the process side of the adapter. *uci.Session satisfies it.
type Engine interface {
	NewGame(ctx context.Context) error
	Search(ctx context.Context, req uci.SearchRequest) (uci.SearchResponse, error)
}

// Adapter owns the history of one match. It is not safe for concurrent use.
type Adapter struct {
	engine  Engine
	limits  uci.Limits
	logger  *zap.Logger
	history []string
}

func NewAdapter(engine Engine, limits uci.Limits, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{engine: engine, limits: limits, logger: logger}
}

// Reset empties the history and tells the engine a new game starts.
func (a *Adapter) Reset(ctx context.Context) error {
	a.history = a.history[:0]
	if err := a.engine.NewGame(ctx); err != nil {
		return fmt.Errorf("%w: new game: %w", ErrProtocol, err)
	}
	return nil
}

// Record appends m to the history. No engine I/O happens.
func (a *Adapter) Record(m board.Move) {
	a.history = append(a.history, m.UCI())
}

// History returns a copy of the recorded moves in order.
func (a *Adapter) History() []string {
	return append([]string(nil), a.history...)
}

// BestMove replays the whole history from the start position and decodes
// the engine's answer.
func (a *Adapter) BestMove(ctx context.Context) (board.Move, error) {
	resp, err := a.engine.Search(ctx, uci.SearchRequest{
		Moves:  a.History(),
		Limits: a.limits,
	})
	if err != nil {
		return board.Move{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	m, err := board.ParseMove(resp.BestMove)
	if err != nil {
		return board.Move{}, fmt.Errorf("%w: %w", ErrMoveDecode, err)
	}
	a.logger.Info("oracle_best_move",
		zap.String("move", m.UCI()),
		zap.Int("ply", len(a.history)),
		zap.Int("depth", resp.Info.Depth),
		zap.Int("score_cp", resp.Info.ScoreCP),
		zap.Int("mate", resp.Info.Mate),
		zap.Strings("pv", resp.Info.Principal),
		zap.String("ponder", resp.Ponder))
	return m, nil
}
