package cellgrid

import "math"

// CellGeometry places the cell grid in normalized device coordinates.
// XStart/YStart is the top-left corner of cell (0,0); DX/DY is the NDC
// footprint of a single cell (DY positive, subtracted going down).
type CellGeometry struct {
	XStart, YStart float32
	DX, DY         float32
}

// GridGeometry computes the NDC placement of a lines x columns grid of
// cellWidth x cellHeight pixel cells centered horizontally at the top
// of a viewport.
func GridGeometry(lines, columns, cellWidth, cellHeight, viewportW, viewportH int) CellGeometry {
	dx := 2 * float32(cellWidth) / float32(viewportW)
	dy := 2 * float32(cellHeight) / float32(viewportH)
	margin := (2 - dx*float32(columns)) / 2
	return CellGeometry{
		XStart: -1 + margin,
		YStart: 1,
		DX:     dx,
		DY:     dy,
	}
}

// ScissorRect converts the grid's NDC bounding box to a viewport pixel
// rectangle with a bottom-left origin, clamped to the viewport. Draws
// outside this rectangle (image tiles overhanging the grid) are clipped.
func (g CellGeometry) ScissorRect(lines, columns, viewportW, viewportH int) (x, y, w, h uint32) {
	widthNDC := g.DX * float32(columns)
	heightNDC := g.DY * float32(lines)

	xf := math.Round(float64(g.XStart+1) / 2 * float64(viewportW))
	yf := math.Round(float64(g.YStart-heightNDC+1) / 2 * float64(viewportH))
	wf := math.Round(float64(widthNDC) / 2 * float64(viewportW))
	hf := math.Round(float64(heightNDC) / 2 * float64(viewportH))

	xf = clamp(xf, 0, float64(viewportW))
	yf = clamp(yf, 0, float64(viewportH))
	wf = clamp(wf, 0, float64(viewportW)-xf)
	hf = clamp(hf, 0, float64(viewportH)-yf)

	return uint32(xf), uint32(yf), uint32(wf), uint32(hf)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
