// Package inference recovers the single move that explains the difference
// between two consecutive board snapshots.
//
// Classification is by the number of changed squares only. Pieces are
// fungible, so nothing is assumed about which piece went where beyond
// occupancy, and no legality check is made.
package inference

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
)

// ErrDesync matches every *DesyncError.
var ErrDesync = errors.New("board desync")

// DesyncError reports a snapshot pair that no single move explains.
type DesyncError struct {
	Count   int
	Squares []board.Square
	Reason  string
}

func (e *DesyncError) Error() string {
	names := make([]string, len(e.Squares))
	for i, sq := range e.Squares {
		names[i] = sq.String()
	}
	msg := "board desync: no squares changed"
	if e.Count > 0 {
		msg = fmt.Sprintf("board desync: %d changed squares [%s]", e.Count, strings.Join(names, " "))
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DesyncError) Is(target error) bool { return target == ErrDesync }

const (
	kingFile          = 4
	kingSideCastle    = 6
	queenSideCastle   = 2
	lightCastlingRank = 0
	darkCastlingRank  = board.Size - 1
)

// Infer returns nil when the boards are identical, the move that explains
// the change otherwise, or a *DesyncError.
func Infer(before, after board.Board) (*board.Move, error) {
	diff := before.Diff(after)
	switch len(diff) {
	case 0:
		return nil, nil
	case 2:
		return standard(before, after, diff)
	case 3:
		return enPassant(after, diff)
	case 4:
		return castle(diff)
	default:
		return nil, desync(diff, "")
	}
}

func desync(diff []board.Square, reason string) *DesyncError {
	return &DesyncError{
		Count:   len(diff),
		Squares: append([]board.Square(nil), diff...),
		Reason:  reason,
	}
}

// standard handles quiet moves, captures and promotions. The square left
// empty is the origin.
func standard(before, after board.Board, diff []board.Square) (*board.Move, error) {
	a, b := diff[0], diff[1]
	aEmpty, bEmpty := after.At(a).Empty(), after.At(b).Empty()
	if aEmpty == bEmpty {
		return nil, desync(diff, "expected exactly one vacated square")
	}
	from, to := a, b
	if bEmpty {
		from, to = b, a
	}
	m := &board.Move{From: from, To: to}
	if landed := after.At(to).Kind; landed != before.At(from).Kind {
		m.Promotion = landed
	}
	return m, nil
}

// enPassant: the destination is the only occupied square afterwards. The
// captured pawn sits on the destination's file, so the origin is the square
// on a different file.
func enPassant(after board.Board, diff []board.Square) (*board.Move, error) {
	var (
		to       board.Square
		occupied int
	)
	for _, sq := range diff {
		if !after.At(sq).Empty() {
			to = sq
			occupied++
		}
	}
	if occupied != 1 {
		return nil, desync(diff, "expected exactly one occupied square")
	}

	var (
		from    board.Square
		matches int
	)
	for _, sq := range diff {
		if sq != to && sq.File != to.File {
			from = sq
			matches++
		}
	}
	if matches != 1 {
		return nil, desync(diff, "no unique origin off the destination file")
	}
	return &board.Move{From: from, To: to}, nil
}

// castle reports the king's displacement. All four squares must lie on a
// back rank that includes the king's home square.
func castle(diff []board.Square) (*board.Move, error) {
	for _, rank := range []int{lightCastlingRank, darkCastlingRank} {
		if !slices.Contains(diff, board.Square{Rank: rank, File: kingFile}) {
			continue
		}
		for _, sq := range diff {
			if sq.Rank != rank {
				return nil, desync(diff, "castling squares span ranks")
			}
		}
		toFile := queenSideCastle
		if slices.Contains(diff, board.Square{Rank: rank, File: kingSideCastle}) {
			toFile = kingSideCastle
		}
		return &board.Move{
			From: board.Square{Rank: rank, File: kingFile},
			To:   board.Square{Rank: rank, File: toFile},
		}, nil
	}
	return nil, desync(diff, "king home square unchanged")
}
