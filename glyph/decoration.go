package glyph

import "math"

// Decoration bitmap order, matching the renderer's reserved atlas
// slots after the blank sprite.
const (
	DecorationUnderline = iota
	DecorationDoubleUnderline
	DecorationCurlyUnderline
	DecorationStrikethrough

	numDecorations
)

// DecorationSprites returns the cell-sized alpha bitmaps for the
// decoration slots, in DecorationUnderline..DecorationStrikethrough
// order. Positions derive from the face metrics: underlines sit in the
// descent band, the strikethrough crosses the x-height midline.
func (r *Rasterizer) DecorationSprites() [][]byte {
	m := r.face.Metrics()
	descent := r.height - r.ascent

	thickness := r.height / 16
	if thickness < 1 {
		thickness = 1
	}
	underlineY := clampRow(r.ascent+descent/2, thickness, r.height)
	strikeY := clampRow(r.ascent-m.XHeight.Ceil()/2, thickness, r.height)

	single := r.blankSprite()
	r.drawHLine(single, underlineY, thickness)

	double := r.blankSprite()
	gap := thickness + 1
	r.drawHLine(double, clampRow(underlineY-gap, thickness, r.height), thickness)
	r.drawHLine(double, clampRow(underlineY+gap, thickness, r.height), thickness)

	curly := r.blankSprite()
	r.drawCurly(curly, underlineY, thickness)

	strike := r.blankSprite()
	r.drawHLine(strike, strikeY, thickness)

	sprites := make([][]byte, numDecorations)
	sprites[DecorationUnderline] = single
	sprites[DecorationDoubleUnderline] = double
	sprites[DecorationCurlyUnderline] = curly
	sprites[DecorationStrikethrough] = strike
	return sprites
}

// BlankSprite returns the transparent bitmap for the blank slot.
func (r *Rasterizer) BlankSprite() []byte { return r.blankSprite() }

func (r *Rasterizer) blankSprite() []byte {
	return make([]byte, r.width*r.height)
}

func (r *Rasterizer) drawHLine(dst []byte, y, thickness int) {
	for row := y; row < y+thickness && row < r.height; row++ {
		for x := 0; x < r.width; x++ {
			dst[row*r.width+x] = 0xff
		}
	}
}

// drawCurly draws one full sine period across the cell so adjacent
// cells tile into a continuous wave.
func (r *Rasterizer) drawCurly(dst []byte, y, thickness int) {
	amplitude := float64(r.height-r.ascent) / 2
	if amplitude < 1 {
		amplitude = 1
	}
	for x := 0; x < r.width; x++ {
		phase := 2 * math.Pi * float64(x) / float64(r.width)
		cy := y + int(math.Round(amplitude*math.Sin(phase)))
		cy = clampRow(cy, thickness, r.height)
		for row := cy; row < cy+thickness && row < r.height; row++ {
			dst[row*r.width+x] = 0xff
		}
	}
}

func clampRow(y, thickness, height int) int {
	if y < 0 {
		return 0
	}
	if y > height-thickness {
		return height - thickness
	}
	return y
}
