package board

import (
	"fmt"
	"strings"
)

// Color identifies a side.
type Color uint8

const (
	NoColor Color = iota
	Light
	Dark
)

func (c Color) String() string {
	switch c {
	case Light:
		return "light"
	case Dark:
		return "dark"
	default:
		return "none"
	}
}

// Opposite returns the other side. NoColor maps to itself.
func (c Color) Opposite() Color {
	switch c {
	case Light:
		return Dark
	case Dark:
		return Light
	default:
		return NoColor
	}
}

// Kind is a piece type. NoKind marks an empty square.
type Kind uint8

const (
	NoKind Kind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{
	NoKind: '-',
	Pawn:   'p',
	Knight: 'n',
	Bishop: 'b',
	Rook:   'r',
	Queen:  'q',
	King:   'k',
}

// Letter returns the lower-case protocol letter of the kind.
func (k Kind) Letter() byte {
	if int(k) >= len(kindLetters) {
		return '?'
	}
	return kindLetters[k]
}

func (k Kind) String() string {
	switch k {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	case King:
		return "king"
	default:
		return "none"
	}
}

// KindFromLetter parses a protocol letter, case-insensitively.
func KindFromLetter(c byte) (Kind, error) {
	switch c {
	case 'p', 'P':
		return Pawn, nil
	case 'n', 'N':
		return Knight, nil
	case 'b', 'B':
		return Bishop, nil
	case 'r', 'R':
		return Rook, nil
	case 'q', 'Q':
		return Queen, nil
	case 'k', 'K':
		return King, nil
	}
	return NoKind, fmt.Errorf("%w: unknown piece letter %q", ErrNotation, c)
}

// Piece is an occupant of a square. The zero value is the empty square.
// Pieces carry no identity: two white pawns are indistinguishable.
type Piece struct {
	Color Color
	Kind  Kind
}

// NoPiece is the empty square.
var NoPiece = Piece{}

// NewPiece returns a piece of the given color and kind.
func NewPiece(c Color, k Kind) Piece {
	return Piece{Color: c, Kind: k}
}

// Empty reports whether p is the empty square.
func (p Piece) Empty() bool {
	return p.Kind == NoKind
}

// String returns the two-letter code used by the observer, e.g. "wp", "bk".
// The empty square is "--".
func (p Piece) String() string {
	if p.Empty() {
		return "--"
	}
	side := byte('w')
	if p.Color == Dark {
		side = 'b'
	}
	return string([]byte{side, p.Kind.Letter()})
}

// ParsePiece parses a two-letter code such as "wp" or "bq".
func ParsePiece(code string) (Piece, error) {
	code = strings.TrimSpace(code)
	if len(code) != 2 {
		return NoPiece, fmt.Errorf("%w: piece code %q", ErrNotation, code)
	}
	var c Color
	switch code[0] {
	case 'w':
		c = Light
	case 'b':
		c = Dark
	default:
		return NoPiece, fmt.Errorf("%w: piece color %q", ErrNotation, code[0])
	}
	k, err := KindFromLetter(code[1])
	if err != nil {
		return NoPiece, err
	}
	return NewPiece(c, k), nil
}
