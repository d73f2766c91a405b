// Package glyph rasterizes runes and cell decorations into the
// cell-sized alpha bitmaps the renderer's sprite atlas stores.
package glyph

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/cellgrid"
)

// Rasterizer errors.
var (
	// ErrNoGlyph is returned when the face has no glyph for a rune.
	ErrNoGlyph = errors.New("glyph: rune not covered by font")
)

// Options configures a Rasterizer.
type Options struct {
	// SizePt is the font size in points. Default: 12
	SizePt float64

	// DPI is the rendering resolution. Default: 96
	DPI float64
}

// Rasterizer renders runes from one monospace face into cell-sized
// alpha bitmaps. Cell dimensions are derived from the face metrics:
// the height from ascent plus descent, the width from the advance of
// '0'.
//
// Not safe for concurrent use; font.Face is stateful.
type Rasterizer struct {
	face   font.Face
	width  int
	height int
	ascent int
}

// New parses a TTF/OTF font and builds a rasterizer for it.
func New(fontData []byte, opts Options) (*Rasterizer, error) {
	if opts.SizePt <= 0 {
		opts.SizePt = 12
	}
	if opts.DPI <= 0 {
		opts.DPI = 96
	}

	parsed, err := opentype.Parse(fontData)
	if err != nil {
		return nil, fmt.Errorf("glyph: parse font: %w", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    opts.SizePt,
		DPI:     opts.DPI,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("glyph: create face: %w", err)
	}

	metrics := face.Metrics()
	advance, ok := face.GlyphAdvance('0')
	if !ok {
		face.Close()
		return nil, fmt.Errorf("%w: '0'", ErrNoGlyph)
	}
	r := &Rasterizer{
		face:   face,
		width:  advance.Ceil(),
		height: (metrics.Ascent + metrics.Descent).Ceil(),
		ascent: metrics.Ascent.Ceil(),
	}
	if r.width <= 0 || r.height <= 0 {
		face.Close()
		return nil, fmt.Errorf("glyph: degenerate cell %dx%d", r.width, r.height)
	}
	return r, nil
}

// Close releases the font face.
func (r *Rasterizer) Close() error { return r.face.Close() }

// CellSize returns the pixel size of one grid cell.
func (r *Rasterizer) CellSize() (width, height int) { return r.width, r.height }

// Rasterize renders ch and returns one alpha bitmap per cell it spans.
// A double-width rune yields two bitmaps: its left and right halves,
// uploaded to adjacent atlas slots and referenced by adjacent cells.
func (r *Rasterizer) Rasterize(ch rune) ([][]byte, error) {
	if _, ok := r.face.GlyphAdvance(ch); !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoGlyph, ch)
	}
	span := cellgrid.RuneCellSpan(ch)
	img := image.NewAlpha(image.Rect(0, 0, r.width*span, r.height))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Alpha{A: 0xff}),
		Face: r.face,
		Dot:  fixed.P(0, r.ascent),
	}
	d.DrawString(string(ch))
	return splitCells(img, span), nil
}

// splitCells slices a span-wide bitmap into per-cell buffers.
func splitCells(img *image.Alpha, span int) [][]byte {
	w := img.Rect.Dx() / span
	h := img.Rect.Dy()
	cells := make([][]byte, span)
	for i := range cells {
		cell := make([]byte, w*h)
		for row := 0; row < h; row++ {
			src := img.Pix[row*img.Stride+i*w:]
			copy(cell[row*w:(row+1)*w], src[:w])
		}
		cells[i] = cell
	}
	return cells
}
