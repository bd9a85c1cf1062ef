package render

import (
	"bytes"
	"context"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
	"github.com/SebastianHall69/FlyingChess1995XL/internal/inference"
)

func TestSVGLayout(t *testing.T) {
	r, err := NewRenderer(32)
	require.NoError(t, err)

	svg := string(r.SVG(board.Starting(), []board.Square{{Rank: 1, File: 4}}, false))
	require.Equal(t, 64, strings.Count(svg, `fill="#e9cfa3"`)+strings.Count(svg, `fill="#bb8860"`))
	require.Equal(t, 32, strings.Count(svg, "<circle"))
	require.Equal(t, 1, strings.Count(svg, `stroke="#e0322f"`))
}

func TestOrientation(t *testing.T) {
	r, err := NewRenderer(10)
	require.NoError(t, err)
	a1 := board.Square{Rank: 0, File: 0}

	x, y := r.origin(a1, false)
	require.Equal(t, coordMargin, x)
	require.Equal(t, 70, y)

	x, y = r.origin(a1, true)
	require.Equal(t, coordMargin+70, x)
	require.Equal(t, 0, y)
}

func TestRenderPNG(t *testing.T) {
	r, err := NewRenderer(24)
	require.NoError(t, err)

	white, err := r.RenderPNG(context.Background(), board.Starting(), nil, false)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(white))
	require.NoError(t, err)
	require.Equal(t, 24*8+coordMargin, img.Bounds().Dx())

	black, err := r.RenderPNG(context.Background(), board.Starting(), nil, true)
	require.NoError(t, err)
	require.NotEqual(t, white, black)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.RenderPNG(ctx, board.Empty(), nil, false)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDesyncDumper(t *testing.T) {
	r, err := NewRenderer(16)
	require.NoError(t, err)
	dir := filepath.Join(t.TempDir(), "dumps")
	d := NewDesyncDumper(dir, r, zaptest.NewLogger(t))

	before := board.Starting()
	after := before
	after[1][0], after[1][1] = board.NoPiece, board.NoPiece
	after[3][0] = board.NewPiece(board.Light, board.Pawn)

	err = d.ReportDesync(context.Background(), "m/1", before, after, &inference.DesyncError{Count: 3})
	require.NoError(t, err)
	for _, name := range []string{"m_1-before.png", "m_1-after.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Positive(t, info.Size())
	}
}
