package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/cellgrid"
)

// The per-frame uniform block shared by all cell programs. Every field
// is 4 bytes, little-endian, at a fixed offset; the WGSL CellRenderData
// struct mirrors this layout exactly:
//
//	  0  xstart, ystart, dx, dy          f32
//	 16  sprite_dx, sprite_dy            f32
//	 24  default_fg, default_bg          u32 (0xRRGGBB)
//	 32  highlight_fg, highlight_bg     u32
//	 40  cursor_color, url_color        u32
//	 48  color1, color2                 i32 (fg/bg swap selectors)
//	 56  xnum, ynum                     u32
//	 64  cursor_x, cursor_y, cursor_w   u32
//	 76  url_xl, url_yl, url_xr, url_yr u32
//	 92  pad to 16-byte alignment
//	 96  color table, 256 u32 entries packed as array<vec4<u32>, 64>
//
// The head (first 96 bytes) is rewritten every frame; the table segment
// is uploaded only when the color profile is dirty.
const (
	renderDataHeadSize    = 96
	renderDataTableOffset = 96
	renderDataTableSize   = 256 * 4
	renderDataSize        = renderDataTableOffset + renderDataTableSize
)

// buildRenderDataHead serializes the block head for one frame.
// dst must hold at least renderDataHeadSize bytes.
func buildRenderDataHead(dst []byte, f *cellgrid.Frame, layout SpriteLayout) {
	s := f.Screen
	p := s.Profile

	putF32 := func(off int, v float32) {
		binary.LittleEndian.PutUint32(dst[off:], math.Float32bits(v))
	}
	putU32 := func(off int, v uint32) {
		binary.LittleEndian.PutUint32(dst[off:], v)
	}

	putF32(0, f.Geometry.XStart)
	putF32(4, f.Geometry.YStart)
	putF32(8, f.Geometry.DX)
	putF32(12, f.Geometry.DY)

	// Sprite coordinates travel as cell indices; the shader scales them
	// by the per-cell fraction of an atlas layer.
	var spriteDX, spriteDY float32
	if layout.XNum > 0 {
		spriteDX = 1 / float32(layout.XNum)
	}
	if layout.YNum > 0 {
		spriteDY = 1 / float32(layout.YNum)
	}
	putF32(16, spriteDX)
	putF32(20, spriteDY)

	putU32(24, uint32(p.Color(cellgrid.ColorDefaultFg)))
	putU32(28, uint32(p.Color(cellgrid.ColorDefaultBg)))
	putU32(32, uint32(p.Color(cellgrid.ColorHighlightFg)))
	putU32(36, uint32(p.Color(cellgrid.ColorHighlightBg)))
	putU32(40, uint32(p.Color(cellgrid.ColorCursor)))
	putU32(44, uint32(p.Color(cellgrid.ColorURL)))

	// Reverse video swaps which of the two resolved colors the shader
	// treats as foreground.
	inv := uint32(0)
	if s.InvertColors {
		inv = 1
	}
	putU32(48, inv)   // color1
	putU32(52, 1-inv) // color2

	putU32(56, uint32(s.Columns))
	putU32(60, uint32(s.Lines))

	// The block cursor highlight is applied in the cell shader via a
	// coordinate range. An invisible, non-block, or unfocused cursor is
	// parked one cell past the grid so no cell ever matches; those cases
	// render in the dedicated cursor pass instead.
	cx, cy, cw := uint32(s.Columns), uint32(s.Lines), uint32(s.Columns)
	if f.Cursor.Visible && f.Focused && f.Cursor.Shape == cellgrid.CursorBlock {
		cx = uint32(f.Cursor.X)
		cy = uint32(f.Cursor.Y)
		span := f.Cursor.CharWidth
		if span < 1 {
			span = 1
		}
		cw = cx + uint32(span) - 1
	}
	putU32(64, cx)
	putU32(68, cy)
	putU32(72, cw)

	// Absent url range: parked on the sentinel row below the grid.
	xl, yl, xr, yr := uint32(0), uint32(s.Lines), uint32(0), uint32(s.Lines)
	if s.URL != nil {
		xl, yl = uint32(s.URL.XL), uint32(s.URL.YL)
		xr, yr = uint32(s.URL.XR), uint32(s.URL.YR)
	}
	putU32(76, xl)
	putU32(80, yl)
	putU32(84, xr)
	putU32(88, yr)

	// 92..96 stays zero: padding before the 16-byte aligned table.
	putU32(92, 0)
}

// buildRenderDataTable serializes the 256-entry color table segment.
// dst must hold at least renderDataTableSize bytes.
func buildRenderDataTable(dst []byte, table *[256]cellgrid.RGB) {
	for i, c := range table {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(c))
	}
}

// buildCellVertexData serializes cells into the instance buffer layout:
// three u32 colors at offset 0, four u16 sprite/attr words at offset
// 12, stride cellgrid.CellByteSize.
func buildCellVertexData(cells []cellgrid.Cell) []byte {
	data := make([]byte, len(cells)*cellgrid.CellByteSize)
	off := 0
	for i := range cells {
		c := &cells[i]
		binary.LittleEndian.PutUint32(data[off:], uint32(c.Fg))
		binary.LittleEndian.PutUint32(data[off+4:], uint32(c.Bg))
		binary.LittleEndian.PutUint32(data[off+8:], uint32(c.DecorationFg))
		binary.LittleEndian.PutUint16(data[off+12:], c.SpriteX)
		binary.LittleEndian.PutUint16(data[off+14:], c.SpriteY)
		binary.LittleEndian.PutUint16(data[off+16:], c.SpriteZ)
		binary.LittleEndian.PutUint16(data[off+18:], uint16(c.Attrs))
		off += cellgrid.CellByteSize
	}
	return data
}

// buildSelectionData serializes the per-cell selection floats.
func buildSelectionData(sel []float32) []byte {
	data := make([]byte, len(sel)*4)
	for i, v := range sel {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return data
}
