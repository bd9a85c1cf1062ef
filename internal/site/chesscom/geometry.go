package chesscom

import "github.com/SebastianHall69/FlyingChess1995XL/internal/board"

// SquareOffset returns the pixel offset of sq's centre from the centre of a
// board boardWidth pixels wide. Screen y grows downwards, so rank 0 is below
// the centre unless the board is flipped.
func SquareOffset(sq board.Square, boardWidth float64, flipped bool) (dx, dy int) {
	w := boardWidth / board.Size
	x := int(float64(sq.File-4)*w + w/2)
	y := int(float64(3-sq.Rank)*w + w/2)
	if flipped {
		return -x, -y
	}
	return x, y
}
