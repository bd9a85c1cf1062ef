package board

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartingLayout(t *testing.T) {
	b := Starting()
	require.Equal(t, NewPiece(Light, King), b.At(Square{Rank: 0, File: 4}))
	require.Equal(t, NewPiece(Dark, Queen), b.At(Square{Rank: 7, File: 3}))
	require.Equal(t, NewPiece(Light, Pawn), b.At(Square{Rank: 1, File: 0}))
	require.True(t, b.At(Square{Rank: 4, File: 4}).Empty())
	require.Len(t, b.Placements(), 32)
}

func TestEqualityAndDiff(t *testing.T) {
	a := Starting()
	b := Starting()
	require.True(t, a.Equal(b))
	require.Empty(t, a.Diff(b))

	b[1][4] = NoPiece
	b[3][4] = NewPiece(Light, Pawn)
	require.False(t, a.Equal(b))
	require.Equal(t, []Square{{Rank: 1, File: 4}, {Rank: 3, File: 4}}, a.Diff(b))
}

func TestReplace(t *testing.T) {
	last := Empty()
	next := Starting()
	last.Replace(next)
	require.Equal(t, next, last)

	next[0][0] = NoPiece
	require.NotEqual(t, next, last, "replace must copy, not alias")
}

func TestFromPlacementsOrderIndependent(t *testing.T) {
	wk := Placement{Square: Square{Rank: 0, File: 4}, Piece: NewPiece(Light, King)}
	bk := Placement{Square: Square{Rank: 7, File: 4}, Piece: NewPiece(Dark, King)}

	a, err := FromPlacements([]Placement{wk, bk})
	require.NoError(t, err)
	b, err := FromPlacements([]Placement{bk, wk})
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFromPlacementsRejects(t *testing.T) {
	wk := Placement{Square: Square{Rank: 0, File: 4}, Piece: NewPiece(Light, King)}

	_, err := FromPlacements([]Placement{wk, wk})
	require.ErrorIs(t, err, ErrDuplicateSquare)

	_, err = FromPlacements([]Placement{{Square: Square{Rank: 8, File: 0}, Piece: wk.Piece}})
	require.ErrorIs(t, err, ErrSquareRange)
}

func TestSquareConversions(t *testing.T) {
	for r := 0; r < Size; r++ {
		for f := 0; f < Size; f++ {
			sq, err := NewSquare(r, f)
			require.NoError(t, err)
			back, err := ParseSquare(sq.String())
			require.NoError(t, err)
			require.Equal(t, sq, back)
		}
	}
	sq, err := ParseSquare("E2")
	require.NoError(t, err)
	require.Equal(t, Square{Rank: 1, File: 4}, sq)

	for _, bad := range [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}} {
		_, err := NewSquare(bad[0], bad[1])
		require.True(t, errors.Is(err, ErrSquareRange), "rank=%d file=%d", bad[0], bad[1])
	}
	for _, bad := range []string{"", "e", "i1", "a9", "a0", "e22"} {
		_, err := ParseSquare(bad)
		require.ErrorIs(t, err, ErrNotation, bad)
	}
}

func TestMoveRoundTrip(t *testing.T) {
	kinds := []Kind{NoKind, Pawn, Knight, Bishop, Rook, Queen, King}
	for fr := 0; fr < Size; fr++ {
		for ff := 0; ff < Size; ff++ {
			for tr := 0; tr < Size; tr += 3 {
				for tf := 0; tf < Size; tf += 3 {
					for _, k := range kinds {
						m := Move{From: Square{fr, ff}, To: Square{tr, tf}, Promotion: k}
						got, err := ParseMove(m.UCI())
						require.NoError(t, err)
						require.Equal(t, m, got)
					}
				}
			}
		}
	}
}

func TestParseMove(t *testing.T) {
	m, err := ParseMove("e7e8q")
	require.NoError(t, err)
	require.Equal(t, Move{From: Square{6, 4}, To: Square{7, 4}, Promotion: Queen}, m)

	for _, bad := range []string{"", "e2", "e2e", "e2e4qq", "z2e4", "e2e9", "e7e8x"} {
		_, err := ParseMove(bad)
		require.ErrorIs(t, err, ErrNotation, bad)
	}
}

func TestParsePieceClasses(t *testing.T) {
	b, err := ParsePieceClasses([]string{
		"piece wk square-51",
		"square-58 bk piece",
		"piece wp square-52",
	})
	require.NoError(t, err)
	require.Equal(t, NewPiece(Light, King), b.At(Square{Rank: 0, File: 4}))
	require.Equal(t, NewPiece(Dark, King), b.At(Square{Rank: 7, File: 4}))
	require.Equal(t, NewPiece(Light, Pawn), b.At(Square{Rank: 1, File: 4}))
	require.Len(t, b.Placements(), 3)

	_, err = ParsePieceClasses([]string{"piece wk square-51", "piece wq square-51"})
	require.ErrorIs(t, err, ErrDuplicateSquare)

	for _, bad := range []string{"piece square-51", "piece wk", "piece wk square-91", "piece xk square-51"} {
		_, err := ParsePieceClasses([]string{bad})
		require.ErrorIs(t, err, ErrNotation, bad)
	}
}

func TestParsePieceClassesIgnoresExtraTokens(t *testing.T) {
	b, err := ParsePieceClasses([]string{
		"piece wk square-51 dragging",
		"hover piece bq square-44",
	})
	require.NoError(t, err)
	require.Equal(t, NewPiece(Light, King), b.At(Square{Rank: 0, File: 4}))
	require.Equal(t, NewPiece(Dark, Queen), b.At(Square{Rank: 3, File: 3}))
}

func TestFENConversion(t *testing.T) {
	const start = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"
	b, err := FromFEN(start)
	require.NoError(t, err)
	require.Equal(t, Starting(), b)
	require.Equal(t, start, b.FEN())

	_, err = FromFEN("xyz/8/8/8/8/8/8/8")
	require.ErrorIs(t, err, ErrNotation)
}
