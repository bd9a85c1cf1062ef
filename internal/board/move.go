package board

import (
	"fmt"
	"strings"
)

// Move is a displacement from one square to another. Promotion is NoKind
// unless the piece kind changed on the way.
type Move struct {
	From      Square
	To        Square
	Promotion Kind
}

// UCI renders the move in coordinate notation, e.g. "e2e4" or "e7e8q".
func (m Move) UCI() string {
	s := m.From.String() + m.To.String()
	if m.Promotion != NoKind {
		s += string(m.Promotion.Letter())
	}
	return s
}

func (m Move) String() string { return m.UCI() }

// ParseMove reads coordinate notation.
func ParseMove(text string) (Move, error) {
	t := strings.ToLower(strings.TrimSpace(text))
	if len(t) != 4 && len(t) != 5 {
		return Move{}, fmt.Errorf("%w: move %q", ErrNotation, text)
	}
	from, err := ParseSquare(t[0:2])
	if err != nil {
		return Move{}, err
	}
	to, err := ParseSquare(t[2:4])
	if err != nil {
		return Move{}, err
	}
	m := Move{From: from, To: to}
	if len(t) == 5 {
		k, err := KindFromLetter(t[4])
		if err != nil {
			return Move{}, err
		}
		m.Promotion = k
	}
	return m, nil
}
