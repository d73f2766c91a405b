package gpu

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/gogpu/cellgrid"
)

func testFrame() *cellgrid.Frame {
	s := cellgrid.NewScreenState(24, 80)
	s.Profile.Configured[cellgrid.ColorDefaultFg] = cellgrid.DirectColor(0xdddddd)
	s.Profile.Configured[cellgrid.ColorDefaultBg] = cellgrid.DirectColor(0x000000)
	s.Profile.Configured[cellgrid.ColorCursor] = cellgrid.DirectColor(0xcccc00)
	return &cellgrid.Frame{
		Screen:         s,
		Geometry:       cellgrid.CellGeometry{XStart: -1, YStart: 1, DX: 0.025, DY: 1.0 / 12},
		Focused:        true,
		ViewportWidth:  800,
		ViewportHeight: 480,
	}
}

func u32At(t *testing.T, buf []byte, off int) uint32 {
	t.Helper()
	return binary.LittleEndian.Uint32(buf[off:])
}

func f32At(t *testing.T, buf []byte, off int) float32 {
	t.Helper()
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}

func TestRenderDataHeadLayout(t *testing.T) {
	f := testFrame()
	f.Screen.URL = &cellgrid.URLRange{XL: 3, YL: 5, XR: 20, YR: 5}
	f.Cursor = cellgrid.CursorInfo{Shape: cellgrid.CursorBlock, Visible: true, X: 7, Y: 2, CharWidth: 2}

	head := make([]byte, renderDataHeadSize)
	buildRenderDataHead(head, f, SpriteLayout{XNum: 512, YNum: 256, Layers: 2})

	if got := f32At(t, head, 0); got != -1 {
		t.Errorf("xstart = %v, want -1", got)
	}
	if got := f32At(t, head, 4); got != 1 {
		t.Errorf("ystart = %v, want 1", got)
	}
	if got := f32At(t, head, 16); got != 1.0/512 {
		t.Errorf("sprite_dx = %v, want %v", got, 1.0/512)
	}
	if got := f32At(t, head, 20); got != 1.0/256 {
		t.Errorf("sprite_dy = %v, want %v", got, 1.0/256)
	}
	if got := u32At(t, head, 24); got != 0xdddddd {
		t.Errorf("default_fg = %#x, want 0xdddddd", got)
	}
	if got := u32At(t, head, 40); got != 0xcccc00 {
		t.Errorf("cursor_color = %#x, want 0xcccc00", got)
	}
	if got := u32At(t, head, 56); got != 80 {
		t.Errorf("xnum = %d, want 80", got)
	}
	if got := u32At(t, head, 60); got != 24 {
		t.Errorf("ynum = %d, want 24", got)
	}
	if got := u32At(t, head, 64); got != 7 {
		t.Errorf("cursor_x = %d, want 7", got)
	}
	if got := u32At(t, head, 68); got != 2 {
		t.Errorf("cursor_y = %d, want 2", got)
	}
	// A double-width rune widens the cursor to both its cells.
	if got := u32At(t, head, 72); got != 8 {
		t.Errorf("cursor_w = %d, want 8", got)
	}
	if got := u32At(t, head, 76); got != 3 {
		t.Errorf("url_xl = %d, want 3", got)
	}
	if got := u32At(t, head, 80); got != 5 {
		t.Errorf("url_yl = %d, want 5", got)
	}
	if got := u32At(t, head, 92); got != 0 {
		t.Errorf("padding = %#x, want 0", got)
	}
}

func TestRenderDataCursorSentinel(t *testing.T) {
	f := testFrame()
	head := make([]byte, renderDataHeadSize)

	// Invisible cursor parks on the sentinel cell past the grid.
	f.Cursor = cellgrid.CursorInfo{Shape: cellgrid.CursorBlock, Visible: false, X: 7, Y: 2}
	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})
	if x, y := u32At(t, head, 64), u32At(t, head, 68); x != 80 || y != 24 {
		t.Errorf("invisible cursor at (%d, %d), want sentinel (80, 24)", x, y)
	}

	// Non-block shapes draw in the cursor pass, not the cell shader.
	f.Cursor = cellgrid.CursorInfo{Shape: cellgrid.CursorBeam, Visible: true, X: 7, Y: 2}
	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})
	if x, y := u32At(t, head, 64), u32At(t, head, 68); x != 80 || y != 24 {
		t.Errorf("beam cursor at (%d, %d), want sentinel (80, 24)", x, y)
	}

	// An unfocused block cursor is hollow, drawn by the cursor pass.
	f.Cursor = cellgrid.CursorInfo{Shape: cellgrid.CursorBlock, Visible: true, X: 7, Y: 2}
	f.Focused = false
	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})
	if x, y := u32At(t, head, 64), u32At(t, head, 68); x != 80 || y != 24 {
		t.Errorf("unfocused cursor at (%d, %d), want sentinel (80, 24)", x, y)
	}
	f.Focused = true

	// Zero CharWidth still highlights one cell.
	f.Cursor = cellgrid.CursorInfo{Shape: cellgrid.CursorBlock, Visible: true, X: 7, Y: 2}
	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})
	if w := u32At(t, head, 72); w != 7 {
		t.Errorf("cursor_w = %d, want 7", w)
	}
}

func TestRenderDataColorSwapSelectors(t *testing.T) {
	f := testFrame()
	head := make([]byte, renderDataHeadSize)

	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})
	if c1, c2 := u32At(t, head, 48), u32At(t, head, 52); c1 != 0 || c2 != 1 {
		t.Errorf("selectors = (%d, %d), want (0, 1)", c1, c2)
	}

	f.Screen.InvertColors = true
	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})
	if c1, c2 := u32At(t, head, 48), u32At(t, head, 52); c1 != 1 || c2 != 0 {
		t.Errorf("inverted selectors = (%d, %d), want (1, 0)", c1, c2)
	}
}

func TestRenderDataURLSentinel(t *testing.T) {
	f := testFrame()
	head := make([]byte, renderDataHeadSize)
	buildRenderDataHead(head, f, SpriteLayout{XNum: 1, YNum: 1, Layers: 1})

	// No url: both rows sit on the sentinel row below the grid.
	if yl, yr := u32At(t, head, 80), u32At(t, head, 88); yl != 24 || yr != 24 {
		t.Errorf("url rows = (%d, %d), want sentinel (24, 24)", yl, yr)
	}
}

func TestRenderDataTableSegment(t *testing.T) {
	var table [256]cellgrid.RGB
	table[0] = 0x111111
	table[255] = 0xfedcba

	seg := make([]byte, renderDataTableSize)
	buildRenderDataTable(seg, &table)

	if got := u32At(t, seg, 0); got != 0x111111 {
		t.Errorf("table[0] = %#x, want 0x111111", got)
	}
	if got := u32At(t, seg, 255*4); got != 0xfedcba {
		t.Errorf("table[255] = %#x, want 0xfedcba", got)
	}
	if renderDataSize != 1120 {
		t.Errorf("renderDataSize = %d, want 1120", renderDataSize)
	}
}

func TestBuildCellVertexData(t *testing.T) {
	cells := []cellgrid.Cell{
		{
			Fg:           cellgrid.DirectColor(0xff0000),
			Bg:           cellgrid.IndexedColor(4),
			DecorationFg: cellgrid.DefaultColor(),
			SpriteX:      9, SpriteY: 3, SpriteZ: 1,
			Attrs: cellgrid.AttrReverse.WithDecoration(cellgrid.DecorationSingle),
		},
		{},
	}
	data := buildCellVertexData(cells)
	if len(data) != 2*cellgrid.CellByteSize {
		t.Fatalf("len = %d, want %d", len(data), 2*cellgrid.CellByteSize)
	}
	if got := binary.LittleEndian.Uint32(data[0:]); got != uint32(cellgrid.DirectColor(0xff0000)) {
		t.Errorf("fg = %#x", got)
	}
	if got := binary.LittleEndian.Uint16(data[12:]); got != 9 {
		t.Errorf("sprite_x = %d, want 9", got)
	}
	if got := binary.LittleEndian.Uint16(data[18:]); got != uint16(cells[0].Attrs) {
		t.Errorf("attrs = %#x, want %#x", got, uint16(cells[0].Attrs))
	}
	// The zero cell serializes as zeroes.
	for i := cellgrid.CellByteSize; i < 2*cellgrid.CellByteSize; i++ {
		if data[i] != 0 {
			t.Fatalf("zero cell byte %d = %#x", i, data[i])
		}
	}
}

func TestBuildSelectionData(t *testing.T) {
	data := buildSelectionData([]float32{0, 1, 0.5})
	if len(data) != 12 {
		t.Fatalf("len = %d, want 12", len(data))
	}
	if got := math.Float32frombits(binary.LittleEndian.Uint32(data[4:])); got != 1 {
		t.Errorf("selection[1] = %v, want 1", got)
	}
}
