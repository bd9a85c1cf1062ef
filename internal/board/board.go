package board

import (
	"fmt"
	"strings"
)

// Board is an 8x8 grid indexed [rank][file]. It is a value type: copies are
// independent and == compares every cell.
type Board [Size][Size]Piece

// Placement is one occupied square as reported by an observer.
type Placement struct {
	Square Square
	Piece  Piece
}

// Empty returns a board with no pieces.
func Empty() Board {
	return Board{}
}

var backRank = [Size]Kind{Rook, Knight, Bishop, Queen, King, Bishop, Knight, Rook}

// Starting returns the standard initial position.
func Starting() Board {
	var b Board
	for f := 0; f < Size; f++ {
		b[0][f] = NewPiece(Light, backRank[f])
		b[1][f] = NewPiece(Light, Pawn)
		b[6][f] = NewPiece(Dark, Pawn)
		b[7][f] = NewPiece(Dark, backRank[f])
	}
	return b
}

// FromPlacements builds a board from an unordered occupancy list. Squares
// not listed are empty.
func FromPlacements(ps []Placement) (Board, error) {
	var b Board
	seen := make(map[Square]struct{}, len(ps))
	for _, p := range ps {
		if !p.Square.Valid() {
			return Board{}, fmt.Errorf("%w: rank=%d file=%d", ErrSquareRange, p.Square.Rank, p.Square.File)
		}
		if p.Piece.Empty() {
			return Board{}, fmt.Errorf("%w: empty piece at %s", ErrNotation, p.Square)
		}
		if _, dup := seen[p.Square]; dup {
			return Board{}, fmt.Errorf("%w: %s", ErrDuplicateSquare, p.Square)
		}
		seen[p.Square] = struct{}{}
		b[p.Square.Rank][p.Square.File] = p.Piece
	}
	return b, nil
}

// At returns the occupant of sq, or NoPiece when sq is off the board.
func (b Board) At(sq Square) Piece {
	if !sq.Valid() {
		return NoPiece
	}
	return b[sq.Rank][sq.File]
}

// Replace overwrites the whole board with next.
func (b *Board) Replace(next Board) {
	*b = next
}

// Equal reports structural equality.
func (b Board) Equal(o Board) bool {
	return b == o
}

// Diff lists the squares whose occupant differs, in rank-major order.
func (b Board) Diff(o Board) []Square {
	var out []Square
	for r := 0; r < Size; r++ {
		for f := 0; f < Size; f++ {
			if b[r][f] != o[r][f] {
				out = append(out, Square{Rank: r, File: f})
			}
		}
	}
	return out
}

// Placements returns the occupied squares in rank-major order.
func (b Board) Placements() []Placement {
	var out []Placement
	for r := 0; r < Size; r++ {
		for f := 0; f < Size; f++ {
			if p := b[r][f]; !p.Empty() {
				out = append(out, Placement{Square: Square{Rank: r, File: f}, Piece: p})
			}
		}
	}
	return out
}

// String draws the board from the light side, top rank first.
func (b Board) String() string {
	var sb strings.Builder
	for r := Size - 1; r >= 0; r-- {
		for f := 0; f < Size; f++ {
			if f > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(b[r][f].String())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
