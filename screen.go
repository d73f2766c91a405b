package cellgrid

import (
	"errors"
	"fmt"
)

// Screen state errors.
var (
	// ErrScreenSize is returned when the cell or selection slices do not
	// match Lines x Columns.
	ErrScreenSize = errors.New("cellgrid: screen buffers do not match grid size")

	// ErrNoProfile is returned when a screen has no color profile attached.
	ErrNoProfile = errors.New("cellgrid: screen has no color profile")
)

// URLRange marks the grid span of a detected hyperlink, inclusive on
// both ends. YL/YR are rows, XL/XR columns.
type URLRange struct {
	XL, YL, XR, YR int
}

// ScreenState is the renderer's view of one frame of terminal content.
// The caller owns it and mutates it between frames; the dirty flags gate
// which GPU buffers are re-uploaded. The renderer clears the flags after
// a successful upload.
type ScreenState struct {
	Lines, Columns int

	// Cells holds Lines*Columns cells in row-major order.
	Cells []Cell

	// Selection holds one float per cell, 1 when the cell is inside the
	// active selection. Kept separate from Cells so selection drags do
	// not force a full cell re-upload.
	Selection []float32

	// ScrollChanged is set when the visible region moved; forces a cell
	// upload even if Dirty is clear.
	ScrollChanged bool

	// Dirty is set when cell content changed.
	Dirty bool

	// SelectionDirty is set when the selection floats changed.
	SelectionDirty bool

	// InvertColors swaps the foreground/background resolution order for
	// the whole grid (reverse-video mode).
	InvertColors bool

	Profile *ColorProfile

	// URL is the active hyperlink underline span, nil when none.
	URL *URLRange
}

// NewScreenState allocates a screen with all buffers sized to the grid
// and every upload pending.
func NewScreenState(lines, columns int) *ScreenState {
	n := lines * columns
	return &ScreenState{
		Lines:          lines,
		Columns:        columns,
		Cells:          make([]Cell, n),
		Selection:      make([]float32, n),
		Dirty:          true,
		SelectionDirty: true,
		Profile:        NewColorProfile(),
	}
}

// CellAt returns the cell at column x, row y. The caller is expected to
// stay in bounds; this mirrors slice indexing and panics otherwise.
func (s *ScreenState) CellAt(x, y int) *Cell {
	return &s.Cells[y*s.Columns+x]
}

// Validate checks the buffer sizes against the grid dimensions.
func (s *ScreenState) Validate() error {
	if s.Lines <= 0 || s.Columns <= 0 {
		return fmt.Errorf("%w: %dx%d grid", ErrScreenSize, s.Columns, s.Lines)
	}
	n := s.Lines * s.Columns
	if len(s.Cells) != n {
		return fmt.Errorf("%w: %d cells for %dx%d grid", ErrScreenSize, len(s.Cells), s.Columns, s.Lines)
	}
	if len(s.Selection) != n {
		return fmt.Errorf("%w: %d selection entries for %dx%d grid", ErrScreenSize, len(s.Selection), s.Columns, s.Lines)
	}
	if s.Profile == nil {
		return ErrNoProfile
	}
	return nil
}

// CursorShape selects how the cursor pass draws the cursor cell.
type CursorShape uint8

const (
	CursorBlock CursorShape = iota
	CursorUnderline
	CursorBeam
)

// CursorInfo describes the cursor for one frame. X/Y are grid
// coordinates; the NDC box (Left, Top, Right, Bottom) positions the
// dedicated cursor pass. CharWidth is the cell span of the rune under
// the cursor (see RuneCellSpan) and widens the block highlight over
// double-width characters.
type CursorInfo struct {
	Shape     CursorShape
	Visible   bool
	X, Y      int
	CharWidth int

	Left, Top, Right, Bottom float32

	Color RGB
}
