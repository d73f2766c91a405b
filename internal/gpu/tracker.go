package gpu

import (
	"errors"
	"fmt"
)

// Tracker errors.
var (
	// ErrAtlasLayersExhausted is returned when a sprite allocation would
	// need more array layers than the device allows.
	ErrAtlasLayersExhausted = errors.New("gpu: sprite atlas layer limit exhausted")

	// ErrNoLayout is returned when sprites are requested before SetLayout.
	ErrNoLayout = errors.New("gpu: sprite tracker has no cell layout")

	// ErrCellTooWide is returned when the texture limit cannot fit the
	// reserved sprite block in one row.
	ErrCellTooWide = errors.New("gpu: cell too wide for sprite texture limit")
)

// Reserved sprite slots. Slot 0 stays blank so that unrasterized cells
// sample transparent; the decoration slots are filled by the rasterizer
// and referenced by the special pass for underline/strikethrough styles.
const (
	SpriteBlank = iota
	SpriteUnderline
	SpriteDoubleUnderline
	SpriteCurlyUnderline
	SpriteStrikethrough

	numReservedSprites
)

// SpritePosition is a slot in the sprite atlas: cell coordinates within
// a layer plus the layer index. uint16 matches the on-GPU cell record.
type SpritePosition struct {
	X, Y, Z uint16
}

// SpriteLayout is the atlas extent implied by the allocations so far,
// in cells and layers.
type SpriteLayout struct {
	XNum, YNum, Layers uint32
}

// SpriteTracker assigns atlas slots to glyph keys. Slots advance left
// to right, top to bottom, then to the next array layer; nothing is
// ever evicted, since retained cells reference slots by coordinate.
//
// The tracker is the policy half of the atlas: it learns the device
// limits once, derives the per-layer grid from the cell size, and the
// SpriteAtlas sizes its texture from Layout().
type SpriteTracker struct {
	maxTextureDim uint32
	maxLayers     uint32

	cellWidth, cellHeight uint32
	xnum, maxY            uint32

	x, y, z uint32

	positions map[uint64]SpritePosition
}

// NewSpriteTracker creates a tracker with the given device limits.
func NewSpriteTracker(maxTextureDim, maxLayers uint32) *SpriteTracker {
	return &SpriteTracker{
		maxTextureDim: maxTextureDim,
		maxLayers:     maxLayers,
		positions:     make(map[uint64]SpritePosition),
	}
}

// SetLimits replaces the device limits. Takes effect on the next
// SetLayout; in-flight allocations keep the grid they were made in.
func (t *SpriteTracker) SetLimits(maxTextureDim, maxLayers uint32) {
	t.maxTextureDim = maxTextureDim
	t.maxLayers = maxLayers
}

// SetLayout resets the tracker for a new cell size. All previous
// positions are forgotten and the reserved slots are re-allocated.
func (t *SpriteTracker) SetLayout(cellWidth, cellHeight uint32) error {
	if cellWidth == 0 || cellHeight == 0 {
		return fmt.Errorf("%w: cell size %dx%d", ErrNoLayout, cellWidth, cellHeight)
	}
	// The shaders address decoration sprites as the first slots of row
	// zero, so every layout must fit the reserved block in one row.
	if t.maxTextureDim/cellWidth < numReservedSprites {
		return fmt.Errorf("%w: %d slots per %dpx row, need %d",
			ErrCellTooWide, t.maxTextureDim/cellWidth, t.maxTextureDim, numReservedSprites)
	}
	t.cellWidth, t.cellHeight = cellWidth, cellHeight
	t.xnum = t.maxTextureDim / cellWidth
	t.maxY = max32(1, t.maxTextureDim/cellHeight)
	t.x, t.y, t.z = 0, 0, 0
	t.positions = make(map[uint64]SpritePosition)

	for i := 0; i < numReservedSprites; i++ {
		t.advance()
	}
	return nil
}

// Position returns the slot for key, allocating one on first use.
func (t *SpriteTracker) Position(key uint64) (SpritePosition, error) {
	if t.cellWidth == 0 {
		return SpritePosition{}, ErrNoLayout
	}
	if pos, ok := t.positions[key]; ok {
		return pos, nil
	}
	if t.z >= t.maxLayers {
		return SpritePosition{}, fmt.Errorf("%w: %d layers", ErrAtlasLayersExhausted, t.maxLayers)
	}
	pos := SpritePosition{X: uint16(t.x), Y: uint16(t.y), Z: uint16(t.z)}
	t.positions[key] = pos
	t.advance()
	return pos, nil
}

// ReservedPosition returns the slot of a reserved sprite (SpriteBlank
// through SpriteStrikethrough). SetLayout guarantees the reserved block
// fits in the first row of layer zero, matching how the shaders address
// decoration sprites.
func (t *SpriteTracker) ReservedPosition(slot int) (SpritePosition, error) {
	if t.cellWidth == 0 {
		return SpritePosition{}, ErrNoLayout
	}
	if slot < 0 || slot >= numReservedSprites {
		return SpritePosition{}, fmt.Errorf("gpu: reserved sprite slot %d out of range", slot)
	}
	return SpritePosition{X: uint16(slot)}, nil
}

// advance moves the free-slot cursor to the next cell.
func (t *SpriteTracker) advance() {
	t.x++
	if t.x >= t.xnum {
		t.x = 0
		t.y++
		if t.y >= t.maxY {
			t.y = 0
			t.z++
		}
	}
}

// Layout returns the atlas extent needed to back every slot handed out
// so far. Once a second layer is in play all layers are full-height.
// A tracker filled to the last slot parks its cursor one layer past the
// end; the reported extent still stops at the device limit.
func (t *SpriteTracker) Layout() SpriteLayout {
	ynum := t.y + 1
	layers := t.z + 1
	if t.z > 0 {
		ynum = t.maxY
	}
	if layers > t.maxLayers {
		layers = t.maxLayers
	}
	return SpriteLayout{XNum: t.xnum, YNum: ynum, Layers: layers}
}

// CellSize returns the layout's cell size in pixels.
func (t *SpriteTracker) CellSize() (w, h uint32) { return t.cellWidth, t.cellHeight }

// Len reports how many sprites are tracked, reserved slots excluded.
func (t *SpriteTracker) Len() int { return len(t.positions) }

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
