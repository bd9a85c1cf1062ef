package board

import "errors"

var (
	// ErrSquareRange reports a rank or file outside the board.
	ErrSquareRange = errors.New("square out of range")
	// ErrNotation reports malformed coordinate, move or piece text.
	ErrNotation = errors.New("malformed notation")
	// ErrDuplicateSquare reports two occupants supplied for one square.
	ErrDuplicateSquare = errors.New("duplicate square")
)
