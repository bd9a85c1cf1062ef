package board

import (
	"fmt"
	"strings"
)

// ParsePieceClasses builds a board from the class attributes of rendered
// piece elements, e.g. "piece wp square-52". Token order is free and tokens
// other than the first two-letter code and the square are ignored. The square
// token carries the 1-based file digit first, then the rank digit.
func ParsePieceClasses(classes []string) (Board, error) {
	ps := make([]Placement, 0, len(classes))
	for _, c := range classes {
		p, err := parsePieceClass(c)
		if err != nil {
			return Board{}, err
		}
		ps = append(ps, p)
	}
	return FromPlacements(ps)
}

func parsePieceClass(class string) (Placement, error) {
	var (
		out      Placement
		hasPiece bool
		hasSq    bool
	)
	for _, tok := range strings.Fields(class) {
		switch {
		case strings.HasPrefix(tok, "square-"):
			digits := strings.TrimPrefix(tok, "square-")
			if len(digits) != 2 {
				return Placement{}, fmt.Errorf("%w: square token %q", ErrNotation, tok)
			}
			sq, err := NewSquare(int(digits[1])-'1', int(digits[0])-'1')
			if err != nil {
				return Placement{}, fmt.Errorf("%w: square token %q", ErrNotation, tok)
			}
			out.Square, hasSq = sq, true
		case len(tok) == 2 && !hasPiece:
			p, err := ParsePiece(tok)
			if err != nil {
				return Placement{}, err
			}
			out.Piece, hasPiece = p, true
		}
	}
	if !hasPiece || !hasSq {
		return Placement{}, fmt.Errorf("%w: incomplete piece class %q", ErrNotation, class)
	}
	return out, nil
}
