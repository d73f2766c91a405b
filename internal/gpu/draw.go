//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/cellgrid"
)

// PipelineKind selects how a frame's passes interleave with image
// tiles.
type PipelineKind int

const (
	// PipelineSimple renders every cell in one composite pass and draws
	// all image tiles on top.
	PipelineSimple PipelineKind = iota

	// PipelineInterleaved splits cell rendering into background,
	// decoration, and glyph passes so image tiles with negative depth
	// can slot between the background and the text.
	PipelineInterleaved
)

func (k PipelineKind) String() string {
	if k == PipelineInterleaved {
		return "interleaved"
	}
	return "simple"
}

// selectPipeline picks the pass structure for a frame. The multi-pass
// split costs three draws over the grid instead of one, so it is only
// taken when some tile actually needs to render under the text.
func selectPipeline(tiles []cellgrid.ImageTile) PipelineKind {
	for i := range tiles {
		if tiles[i].Z < 0 {
			return PipelineInterleaved
		}
	}
	return PipelineSimple
}

// cursorDrawMode says what the dedicated cursor pass renders for a
// frame. The focused block cursor is absent here because the cell
// shader paints it as a cell highlight.
type cursorDrawMode int

const (
	cursorDrawNone cursorDrawMode = iota
	cursorDrawFilled
	cursorDrawOutline
)

func cursorModeFor(f *cellgrid.Frame) cursorDrawMode {
	if !f.Cursor.Visible {
		return cursorDrawNone
	}
	if f.Cursor.Shape == cellgrid.CursorBlock {
		if f.Focused {
			return cursorDrawNone
		}
		return cursorDrawOutline
	}
	return cursorDrawFilled
}

// buildCursorUniform serializes the cursor box and color: four corner
// floats in NDC followed by a 16-byte aligned vec4 color.
func buildCursorUniform(c *cellgrid.CursorInfo) []byte {
	data := make([]byte, cursorUniformSize)
	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(v))
	}
	putF32(0, c.Left)
	putF32(4, c.Top)
	putF32(8, c.Right)
	putF32(12, c.Bottom)
	putF32(16, float32(c.Color.R())/255)
	putF32(20, float32(c.Color.G())/255)
	putF32(24, float32(c.Color.B())/255)
	putF32(28, 1)
	return data
}
