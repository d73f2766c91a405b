package cellgrid

import "testing"

func TestGridGeometryFillsViewport(t *testing.T) {
	// 80x24 grid of 10x20 cells in an exactly matching 800x480 viewport.
	g := GridGeometry(24, 80, 10, 20, 800, 480)
	if g.XStart != -1 || g.YStart != 1 {
		t.Errorf("origin = (%v, %v), want (-1, 1)", g.XStart, g.YStart)
	}
	if g.DX*80 != 2 {
		t.Errorf("grid width in NDC = %v, want 2", g.DX*80)
	}
	if g.DY*24 != 2 {
		t.Errorf("grid height in NDC = %v, want 2", g.DY*24)
	}
}

func TestGridGeometryCentersHorizontally(t *testing.T) {
	// 820px viewport leaves 20px slack: 10px margin each side.
	g := GridGeometry(24, 80, 10, 20, 820, 480)
	wantMargin := 2 * float32(10) / 820
	if diff := g.XStart - (-1 + wantMargin); diff > 1e-6 || diff < -1e-6 {
		t.Errorf("XStart = %v, want %v", g.XStart, -1+wantMargin)
	}
}

func TestScissorRectFullGrid(t *testing.T) {
	g := GridGeometry(24, 80, 10, 20, 800, 480)
	x, y, w, h := g.ScissorRect(24, 80, 800, 480)
	if x != 0 || y != 0 || w != 800 || h != 480 {
		t.Errorf("scissor = (%d, %d, %d, %d), want (0, 0, 800, 480)", x, y, w, h)
	}
}

func TestScissorRectWithMargins(t *testing.T) {
	g := GridGeometry(24, 80, 10, 20, 820, 500)
	x, y, w, h := g.ScissorRect(24, 80, 820, 500)
	if w != 800 {
		t.Errorf("scissor width = %d, want 800", w)
	}
	if h != 480 {
		t.Errorf("scissor height = %d, want 480", h)
	}
	if x != 10 {
		t.Errorf("scissor x = %d, want 10", x)
	}
	// Grid hangs from the top; the scissor origin is bottom-left.
	if y != 20 {
		t.Errorf("scissor y = %d, want 20", y)
	}
}

func TestScissorRectClampsToViewport(t *testing.T) {
	// Degenerate geometry must never produce a rect outside the viewport.
	g := CellGeometry{XStart: -1.5, YStart: 1.5, DX: 0.1, DY: 0.2}
	x, y, w, h := g.ScissorRect(30, 40, 640, 400)
	if x > 640 || y > 400 {
		t.Errorf("origin (%d, %d) outside viewport", x, y)
	}
	if x+w > 640 || y+h > 400 {
		t.Errorf("rect (%d, %d, %d, %d) extends outside viewport", x, y, w, h)
	}
}

func TestScreenStateValidate(t *testing.T) {
	s := NewScreenState(4, 10)
	if err := s.Validate(); err != nil {
		t.Fatalf("fresh screen failed validation: %v", err)
	}

	s.Cells = s.Cells[:len(s.Cells)-1]
	if err := s.Validate(); err == nil {
		t.Error("expected error for short cell buffer")
	}

	s = NewScreenState(4, 10)
	s.Selection = nil
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing selection buffer")
	}

	s = NewScreenState(4, 10)
	s.Profile = nil
	if err := s.Validate(); err == nil {
		t.Error("expected error for missing profile")
	}
}

func TestBorderRectIsClear(t *testing.T) {
	if !(BorderRect{}).IsClear() {
		t.Error("zero rect should be the clear sentinel")
	}
	if !(BorderRect{Color: 0xff0000ff}).IsClear() {
		t.Error("zero geometry is the sentinel regardless of color")
	}
	if (BorderRect{Right: 1, Bottom: 1}).IsClear() {
		t.Error("non-zero geometry is not the sentinel")
	}
}
