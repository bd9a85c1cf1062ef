package board

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// FromFEN reads a board from FEN. A bare piece-placement field is accepted.
func FromFEN(fen string) (Board, error) {
	fen = strings.TrimSpace(fen)
	if len(strings.Fields(fen)) == 1 {
		fen += " w - - 0 1"
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return Board{}, fmt.Errorf("%w: fen: %v", ErrNotation, err)
	}
	game := nchess.NewGame(opt)
	src := game.Position().Board()

	var b Board
	for r := 0; r < Size; r++ {
		for f := 0; f < Size; f++ {
			p := src.Piece(nchess.NewSquare(nchess.File(f), nchess.Rank(r)))
			if p == nchess.NoPiece {
				continue
			}
			b[r][f] = fromLibraryPiece(p)
		}
	}
	return b, nil
}

// FEN returns the piece-placement field for b.
func (b Board) FEN() string {
	m := make(map[nchess.Square]nchess.Piece, 32)
	for _, p := range b.Placements() {
		sq := nchess.NewSquare(nchess.File(p.Square.File), nchess.Rank(p.Square.Rank))
		m[sq] = toLibraryPiece(p.Piece)
	}
	return nchess.NewBoard(m).String()
}

func fromLibraryPiece(p nchess.Piece) Piece {
	c := Light
	if p.Color() == nchess.Black {
		c = Dark
	}
	var k Kind
	switch p.Type() {
	case nchess.Pawn:
		k = Pawn
	case nchess.Knight:
		k = Knight
	case nchess.Bishop:
		k = Bishop
	case nchess.Rook:
		k = Rook
	case nchess.Queen:
		k = Queen
	case nchess.King:
		k = King
	}
	return NewPiece(c, k)
}

func toLibraryPiece(p Piece) nchess.Piece {
	c := nchess.White
	if p.Color == Dark {
		c = nchess.Black
	}
	var t nchess.PieceType
	switch p.Kind {
	case Pawn:
		t = nchess.Pawn
	case Knight:
		t = nchess.Knight
	case Bishop:
		t = nchess.Bishop
	case Rook:
		t = nchess.Rook
	case Queen:
		t = nchess.Queen
	case King:
		t = nchess.King
	}
	return nchess.NewPiece(t, c)
}
