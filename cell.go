package cellgrid

import "github.com/mattn/go-runewidth"

// Decoration is an underline style carried in the cell attribute bits.
type Decoration uint8

const (
	DecorationNone Decoration = iota
	DecorationSingle
	DecorationDouble
	DecorationCurly
)

// CellAttrs is the per-cell attribute bitfield uploaded with the sprite
// coordinates:
//
//	bit 0     reverse video
//	bits 1..2 underline decoration (Decoration)
//	bit 3     strikethrough
type CellAttrs uint16

const (
	AttrReverse       CellAttrs = 1 << 0
	AttrStrikethrough CellAttrs = 1 << 3

	attrDecorationShift           = 1
	attrDecorationMask  CellAttrs = 0b11 << attrDecorationShift
)

// Decoration extracts the underline style.
func (a CellAttrs) Decoration() Decoration {
	return Decoration((a & attrDecorationMask) >> attrDecorationShift)
}

// WithDecoration returns the attributes with the underline style replaced.
func (a CellAttrs) WithDecoration(d Decoration) CellAttrs {
	return (a &^ attrDecorationMask) | (CellAttrs(d)<<attrDecorationShift)&attrDecorationMask
}

// CellByteSize is the on-GPU size of one Cell instance record.
const CellByteSize = 20

// Cell is one character cell as uploaded to the cell instance buffer:
// three packed colors followed by the sprite coordinates and attributes.
// The serialized layout is three u32 at offset 0 and four u16 at offset
// 12, stride CellByteSize, matching the cell vertex layout.
type Cell struct {
	Fg           PackedColor
	Bg           PackedColor
	DecorationFg PackedColor

	SpriteX, SpriteY, SpriteZ uint16
	Attrs                     CellAttrs
}

// RuneCellSpan reports how many cells a rune occupies on screen.
// Zero-width and control runes count as one cell so the cursor always
// covers at least the cell it sits on.
func RuneCellSpan(r rune) int {
	if w := runewidth.RuneWidth(r); w > 1 {
		return w
	}
	return 1
}
