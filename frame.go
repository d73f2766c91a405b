package cellgrid

// BorderRect is one window chrome rectangle in viewport pixel
// coordinates with a packed 0xAARRGGBB color. The all-zero value is the
// batch reset sentinel (see the border batch Submit documentation).
type BorderRect struct {
	Left, Top, Right, Bottom uint32
	Color                    uint32
}

// IsClear reports whether the rect is the reset sentinel: zero geometry
// regardless of color.
func (r BorderRect) IsClear() bool {
	return r.Left == 0 && r.Top == 0 && r.Right == 0 && r.Bottom == 0
}

// ImageHandle identifies a texture previously registered with the
// renderer via UploadImage.
type ImageHandle uint32

// ImageTile is one textured quad of an overlay or underlay image.
// Vertices holds four corners of (x, y, s, t) in NDC/texture space.
// Tiles with negative Z render under the text; zero and positive Z
// render above it. Tiles sharing a handle are drawn with one texture
// bind per frame.
type ImageTile struct {
	Handle ImageHandle
	Z      int32

	Vertices [16]float32
}

// Frame is everything the renderer needs to draw one frame of a single
// grid. The screen's dirty flags decide which GPU uploads actually
// happen; the renderer clears them once the uploads are recorded.
type Frame struct {
	Screen   *ScreenState
	Geometry CellGeometry
	Cursor   CursorInfo

	// Focused selects the solid block cursor; unfocused windows get the
	// hollow outline variant.
	Focused bool

	Images []ImageTile

	ViewportWidth, ViewportHeight int
}
