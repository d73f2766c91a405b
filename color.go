package cellgrid

// RGB is a 24-bit color packed as 0xRRGGBB. This is the resolved form:
// every packed color eventually reduces to an RGB before it reaches the
// GPU uniform block.
type RGB uint32

// R returns the red channel.
func (c RGB) R() uint8 { return uint8(c >> 16) }

// G returns the green channel.
func (c RGB) G() uint8 { return uint8(c >> 8) }

// B returns the blue channel.
func (c RGB) B() uint8 { return uint8(c) }

// Color modes stored in the low byte of a PackedColor.
const (
	// ColorModeDefault selects the context-dependent default color.
	ColorModeDefault = 0

	// ColorModeIndexed selects an entry of the 256-color table.
	ColorModeIndexed = 1

	// ColorModeRGB carries a direct 24-bit color.
	ColorModeRGB = 2
)

// PackedColor is a cell color in the compact 32-bit wire form shared
// bit-for-bit with the shaders:
//
//	bits 0..7   mode (0 default, 1 indexed, 2 direct RGB)
//	bits 8..15  table index (mode 1)
//	bits 8..31  24-bit RGB value (mode 2)
//
// All construction and inspection goes through DefaultColor, IndexedColor,
// DirectColor, and Spec. Nothing else in the repo touches the bit layout;
// the WGSL resolve_color function mirrors it exactly.
type PackedColor uint32

// DefaultColor returns the packed form selecting the default color.
func DefaultColor() PackedColor { return 0 }

// IndexedColor returns the packed form selecting color table entry i.
func IndexedColor(i uint8) PackedColor {
	return PackedColor(uint32(i)<<8 | ColorModeIndexed)
}

// DirectColor returns the packed form carrying a 24-bit RGB value.
func DirectColor(c RGB) PackedColor {
	return PackedColor(uint32(c)<<8 | ColorModeRGB)
}

// Mode returns the color mode stored in the low byte.
func (c PackedColor) Mode() uint8 { return uint8(c) }

// ColorSpec is the tagged view of a PackedColor. Exactly one of Index
// and RGB is meaningful, selected by Mode.
type ColorSpec struct {
	Mode  uint8
	Index uint8 // valid when Mode == ColorModeIndexed
	RGB   RGB   // valid when Mode == ColorModeRGB
}

// Spec unpacks the color into its tagged form. Unknown modes decode as
// ColorModeDefault so that malformed cells degrade to legible output
// rather than reading garbage channels.
func (c PackedColor) Spec() ColorSpec {
	switch c.Mode() {
	case ColorModeIndexed:
		return ColorSpec{Mode: ColorModeIndexed, Index: uint8(c >> 8)}
	case ColorModeRGB:
		return ColorSpec{Mode: ColorModeRGB, RGB: RGB(c >> 8)}
	default:
		return ColorSpec{Mode: ColorModeDefault}
	}
}

// Pack converts the tagged form back to the wire form.
func (s ColorSpec) Pack() PackedColor {
	switch s.Mode {
	case ColorModeIndexed:
		return IndexedColor(s.Index)
	case ColorModeRGB:
		return DirectColor(s.RGB)
	default:
		return DefaultColor()
	}
}

// Resolve reduces the packed color to a concrete RGB against the given
// color table and default. Invalid modes resolve to the default.
func (c PackedColor) Resolve(table *[256]RGB, def RGB) RGB {
	switch c.Mode() {
	case ColorModeIndexed:
		return table[uint8(c>>8)]
	case ColorModeRGB:
		return RGB(c >> 8)
	default:
		return def
	}
}

// ColorName identifies one of the named colors carried in the per-frame
// uniform block.
type ColorName uint8

const (
	ColorDefaultFg ColorName = iota
	ColorDefaultBg
	ColorHighlightFg
	ColorHighlightBg
	ColorCursor
	ColorURL

	numColorNames
)

// NamedColors holds the packed values of the named colors. A
// ColorModeDefault entry in the overridden set means "not overridden".
type NamedColors [numColorNames]PackedColor

// ColorProfile is the per-screen color state: the 256-entry table plus
// the configured and runtime-overridden named colors. Dirty gates the
// table segment of the uniform upload; the renderer clears it after a
// successful copy.
type ColorProfile struct {
	Table [256]RGB
	Dirty bool

	Configured NamedColors
	Overridden NamedColors
}

// NewColorProfile returns a profile whose table upload is pending.
func NewColorProfile() *ColorProfile {
	return &ColorProfile{Dirty: true}
}

// Color resolves a named color. A runtime override wins over the
// configured value; both resolve through the table.
func (p *ColorProfile) Color(n ColorName) RGB {
	c := p.Configured[n]
	if p.Overridden[n].Mode() != ColorModeDefault {
		c = p.Overridden[n]
	}
	return c.Resolve(&p.Table, 0)
}

// SetTableColor updates one table entry and marks the table for upload.
func (p *ColorProfile) SetTableColor(i uint8, c RGB) {
	p.Table[i] = c
	p.Dirty = true
}
