package board

import (
	"fmt"
	"strings"
)

// Size is the number of ranks and files.
const Size = 8

// Square is a coordinate, 0-indexed. Rank 0 is the first rank of the light
// side, file 0 is the a-file.
type Square struct {
	Rank int
	File int
}

// NewSquare validates the coordinate.
func NewSquare(rank, file int) (Square, error) {
	sq := Square{Rank: rank, File: file}
	if !sq.Valid() {
		return Square{}, fmt.Errorf("%w: rank=%d file=%d", ErrSquareRange, rank, file)
	}
	return sq, nil
}

// Valid reports whether the square lies on the board.
func (s Square) Valid() bool {
	return s.Rank >= 0 && s.Rank < Size && s.File >= 0 && s.File < Size
}

// String renders the square in coordinate notation ("e2"). Off-board
// squares render as "??".
func (s Square) String() string {
	if !s.Valid() {
		return "??"
	}
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

// ParseSquare reads coordinate notation, case-insensitively.
func ParseSquare(text string) (Square, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) != 2 {
		return Square{}, fmt.Errorf("%w: square %q", ErrNotation, text)
	}
	file := int(t[0]) - 'a'
	rank := int(t[1]) - '1'
	sq, err := NewSquare(rank, file)
	if err != nil {
		return Square{}, fmt.Errorf("%w: square %q", ErrNotation, text)
	}
	return sq, nil
}
