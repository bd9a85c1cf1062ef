package bridge

import (
	"context"
	"errors"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
)

func (b *Bridge) Board(ctx context.Context) (board.Board, error) {
	s, err := b.current()
	if err != nil {
		return board.Board{}, err
	}
	if s.parseErr != nil {
		return board.Board{}, s.parseErr
	}
	return s.board, nil
}

func (b *Bridge) IsMyTurn(ctx context.Context) (bool, error) {
	s, err := b.current()
	if err != nil {
		return false, err
	}
	return s.myTurn, nil
}

// InProgress reports false, not an error, before the first snapshot so the
// session keeps waiting.
func (b *Bridge) InProgress(ctx context.Context) (bool, error) {
	s, err := b.current()
	if errors.Is(err, ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return s.inProgress, nil
}

func (b *Bridge) PlayerColor(ctx context.Context) (board.Color, error) {
	s, err := b.current()
	if err != nil {
		return board.NoColor, err
	}
	return s.color, nil
}

func (b *Bridge) Play(ctx context.Context, m board.Move, flipped bool) error {
	_, err := b.command(ctx, Frame{Type: framePlay, Move: m.UCI(), Flipped: flipped})
	return err
}

func (b *Bridge) Login(ctx context.Context) (bool, error) {
	ack, err := b.command(ctx, Frame{Type: frameLogin})
	if err != nil {
		return false, err
	}
	return ack.Result, nil
}

func (b *Bridge) Requeue(ctx context.Context) (bool, error) {
	ack, err := b.command(ctx, Frame{Type: frameRequeue})
	if err != nil {
		return false, err
	}
	return ack.Result, nil
}
