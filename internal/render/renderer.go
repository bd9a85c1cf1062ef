// Package render draws board snapshots as PNG.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/math/fixed"

	"github.com/SebastianHall69/FlyingChess1995XL/internal/board"
)

const (
	defaultSquareSize = 64
	coordMargin       = 20
)

var (
	lightSquare     = "#e9cfa3"
	darkSquare      = "#bb8860"
	highlightStroke = "#e0322f"
	lightPieceFill  = "#f7f7f2"
	darkPieceFill   = "#26262b"
	lightPieceText  = color.NRGBA{R: 26, G: 26, B: 30, A: 255}
	darkPieceText   = color.NRGBA{R: 240, G: 240, B: 236, A: 255}
	coordTextColor  = color.NRGBA{R: 70, G: 70, B: 70, A: 255}
)

// Renderer turns a Board into an image. Squares, discs and highlights are
// laid out as SVG and rasterised; piece letters are drawn with a TrueType face.
type Renderer struct {
	squareSize int

	mu        sync.Mutex
	pieceFace font.Face
	coordFace font.Face
}

func NewRenderer(squareSize int) (*Renderer, error) {
	if squareSize <= 0 {
		squareSize = defaultSquareSize
	}
	ttf, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &Renderer{
		squareSize: squareSize,
		pieceFace:  truetype.NewFace(ttf, &truetype.Options{Size: float64(squareSize) * 0.45, DPI: 72}),
		coordFace:  truetype.NewFace(ttf, &truetype.Options{Size: coordMargin * 0.6, DPI: 72}),
	}, nil
}

func (r *Renderer) boardPixels() int { return r.squareSize * board.Size }

// origin maps a square to the top-left pixel of its cell.
func (r *Renderer) origin(sq board.Square, flipped bool) (int, int) {
	col, row := sq.File, board.Size-1-sq.Rank
	if flipped {
		col, row = board.Size-1-sq.File, sq.Rank
	}
	return coordMargin + col*r.squareSize, row * r.squareSize
}

// SVG lays out the board without piece letters.
func (r *Renderer) SVG(b board.Board, highlight []board.Square, flipped bool) []byte {
	s := r.squareSize
	w := r.boardPixels() + coordMargin
	h := r.boardPixels() + coordMargin

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, w, h, w, h)
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="#ffffff"/>`, w, h)
	for rank := 0; rank < board.Size; rank++ {
		for file := 0; file < board.Size; file++ {
			sq := board.Square{Rank: rank, File: file}
			x, y := r.origin(sq, flipped)
			fill := darkSquare
			if (rank+file)%2 == 1 {
				fill = lightSquare
			}
			fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`, x, y, s, s, fill)

			p := b.At(sq)
			if p.Empty() {
				continue
			}
			disc := lightPieceFill
			if p.Color == board.Dark {
				disc = darkPieceFill
			}
			fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%d" fill="%s" stroke="#000000" stroke-width="1"/>`,
				x+s/2, y+s/2, s*2/5, disc)
		}
	}
	stroke := max(2, s/16)
	for _, sq := range highlight {
		if !sq.Valid() {
			continue
		}
		x, y := r.origin(sq, flipped)
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="none" stroke="%s" stroke-width="%d"/>`,
			x+stroke/2, y+stroke/2, s-stroke, s-stroke, highlightStroke, stroke)
	}
	sb.WriteString(`</svg>`)
	return []byte(sb.String())
}

// Image rasterises the board and draws piece letters and coordinates.
func (r *Renderer) Image(b board.Board, highlight []board.Square, flipped bool) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(r.SVG(b, highlight, flipped)))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}
	w := r.boardPixels() + coordMargin
	h := r.boardPixels() + coordMargin
	icon.SetTarget(0, 0, float64(w), float64(h))

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, imagedraw.Src)
	scanner := rasterx.NewScannerGV(w, h, img, img.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pl := range b.Placements() {
		x, y := r.origin(pl.Square, flipped)
		clr := lightPieceText
		if pl.Piece.Color == board.Dark {
			clr = darkPieceText
		}
		r.drawCentered(img, r.pieceFace, strings.ToUpper(string(pl.Piece.Kind.Letter())), clr, x, y, r.squareSize, r.squareSize)
	}
	r.drawCoordinates(img, flipped)
	return img, nil
}

// RenderPNG encodes Image as PNG.
func (r *Renderer) RenderPNG(ctx context.Context, b board.Board, highlight []board.Square, flipped bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := r.Image(b, highlight, flipped)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCoordinates(img *image.RGBA, flipped bool) {
	for i := 0; i < board.Size; i++ {
		file := board.Square{Rank: 0, File: i}
		x, _ := r.origin(file, flipped)
		r.drawCentered(img, r.coordFace, string(rune('a'+i)), coordTextColor, x, r.boardPixels(), r.squareSize, coordMargin)

		rank := board.Square{Rank: i, File: 0}
		_, y := r.origin(rank, flipped)
		r.drawCentered(img, r.coordFace, string(rune('1'+i)), coordTextColor, 0, y, coordMargin, r.squareSize)
	}
}

func (r *Renderer) drawCentered(dst imagedraw.Image, face font.Face, text string, clr color.Color, x, y, w, h int) {
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(clr), Face: face}
	adv := d.MeasureString(text).Round()
	m := face.Metrics()
	textH := (m.Ascent + m.Descent).Round()
	baseX := x + (w-adv)/2
	baseY := y + (h-textH)/2 + m.Ascent.Round()
	d.Dot = fixed.P(baseX, baseY)
	d.DrawString(text)
}
