package gpu

import (
	"errors"
	"testing"
)

func TestSpriteTrackerRequiresLayout(t *testing.T) {
	tr := NewSpriteTracker(4096, 64)
	if _, err := tr.Position(1); !errors.Is(err, ErrNoLayout) {
		t.Errorf("Position before SetLayout: err = %v, want ErrNoLayout", err)
	}
	if err := tr.SetLayout(0, 16); !errors.Is(err, ErrNoLayout) {
		t.Errorf("SetLayout with zero width: err = %v, want ErrNoLayout", err)
	}
}

func TestSpriteTrackerReservedSlots(t *testing.T) {
	tr := NewSpriteTracker(4096, 64)
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}

	// The first allocated glyph lands right after the reserved block.
	pos, err := tr.Position(42)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.X != numReservedSprites || pos.Y != 0 || pos.Z != 0 {
		t.Errorf("first glyph at (%d, %d, %d), want (%d, 0, 0)", pos.X, pos.Y, pos.Z, numReservedSprites)
	}
}

func TestSpriteTrackerReservedPosition(t *testing.T) {
	tr := NewSpriteTracker(64, 64)
	if _, err := tr.ReservedPosition(SpriteUnderline); !errors.Is(err, ErrNoLayout) {
		t.Errorf("ReservedPosition before SetLayout: err = %v, want ErrNoLayout", err)
	}
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}

	// The reserved block lives in the first row of layer 0, where the
	// cell shader samples decorations by slot index.
	pos, err := tr.ReservedPosition(SpriteStrikethrough)
	if err != nil {
		t.Fatalf("ReservedPosition: %v", err)
	}
	if pos != (SpritePosition{X: SpriteStrikethrough, Y: 0, Z: 0}) {
		t.Errorf("strikethrough slot at %+v, want (4, 0, 0)", pos)
	}
	if pos, _ := tr.ReservedPosition(SpriteBlank); pos != (SpritePosition{}) {
		t.Errorf("blank slot at %+v, want origin", pos)
	}

	if _, err := tr.ReservedPosition(numReservedSprites); err == nil {
		t.Error("out-of-range reserved slot accepted")
	}
}

func TestSpriteTrackerRejectsOversizedCells(t *testing.T) {
	// A 32px texture fits only 4 cells of width 8 per row, one short of
	// the reserved block.
	tr := NewSpriteTracker(32, 64)
	if err := tr.SetLayout(8, 16); !errors.Is(err, ErrCellTooWide) {
		t.Errorf("SetLayout(8, 16): err = %v, want ErrCellTooWide", err)
	}

	// Narrower cells fit.
	if err := tr.SetLayout(6, 16); err != nil {
		t.Errorf("SetLayout(6, 16): %v", err)
	}
}

func TestSpriteTrackerStablePositions(t *testing.T) {
	tr := NewSpriteTracker(4096, 64)
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}

	first, err := tr.Position(7)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	for i := 0; i < 100; i++ {
		if _, err := tr.Position(uint64(1000 + i)); err != nil {
			t.Fatalf("Position(%d): %v", 1000+i, err)
		}
	}
	again, err := tr.Position(7)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if again != first {
		t.Errorf("key 7 moved from %+v to %+v", first, again)
	}
	if tr.Len() != 101 {
		t.Errorf("Len() = %d, want 101", tr.Len())
	}
}

func TestSpriteTrackerRowAndLayerAdvance(t *testing.T) {
	// 40px texture limit with 8x16 cells: 5 slots per row, 2 rows per
	// layer, 10 slots per layer.
	tr := NewSpriteTracker(40, 64)
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}
	if l := tr.Layout(); l.XNum != 5 {
		t.Fatalf("XNum = %d, want 5", l.XNum)
	}

	// Reserved slots occupy positions 0..4, so the first glyph sits at
	// slot 5: row 1, column 0.
	pos, err := tr.Position(1)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != (SpritePosition{X: 0, Y: 1, Z: 0}) {
		t.Errorf("slot 5 at %+v, want (0, 1, 0)", pos)
	}

	// Four more fill the layer; the next one starts layer 1.
	for i := uint64(2); i <= 5; i++ {
		if _, err := tr.Position(i); err != nil {
			t.Fatalf("Position(%d): %v", i, err)
		}
	}
	pos, err = tr.Position(6)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos != (SpritePosition{X: 0, Y: 0, Z: 1}) {
		t.Errorf("slot 10 at %+v, want (0, 0, 1)", pos)
	}

	l := tr.Layout()
	if l.YNum != 2 || l.Layers != 2 {
		t.Errorf("Layout() = %+v, want YNum 2 Layers 2", l)
	}
}

func TestSpriteTrackerLayerExhaustion(t *testing.T) {
	// 2 layers of 10 slots; 5 reserved leaves 15 free glyph slots.
	tr := NewSpriteTracker(40, 2)
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}
	for i := uint64(0); i < 15; i++ {
		if _, err := tr.Position(i); err != nil {
			t.Fatalf("Position(%d): %v", i, err)
		}
	}
	if _, err := tr.Position(99); !errors.Is(err, ErrAtlasLayersExhausted) {
		t.Errorf("err = %v, want ErrAtlasLayersExhausted", err)
	}

	// Existing keys still resolve after exhaustion.
	if _, err := tr.Position(3); err != nil {
		t.Errorf("existing key failed after exhaustion: %v", err)
	}
}

func TestSpriteTrackerLayoutAtExactCapacity(t *testing.T) {
	// Filling the last slot leaves the cursor one layer past the end;
	// the layout handed to the atlas must stay inside the device limit.
	tr := NewSpriteTracker(40, 2)
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}
	for i := uint64(0); i < 15; i++ {
		if _, err := tr.Position(i); err != nil {
			t.Fatalf("Position(%d): %v", i, err)
		}
	}

	l := tr.Layout()
	if l.Layers != 2 {
		t.Errorf("Layers = %d at exact capacity, want 2", l.Layers)
	}
	if l.YNum != 2 {
		t.Errorf("YNum = %d at exact capacity, want 2", l.YNum)
	}
}

func TestSpriteTrackerSetLayoutResets(t *testing.T) {
	tr := NewSpriteTracker(4096, 64)
	if err := tr.SetLayout(8, 16); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}
	if _, err := tr.Position(1); err != nil {
		t.Fatalf("Position: %v", err)
	}

	if err := tr.SetLayout(10, 20); err != nil {
		t.Fatalf("SetLayout: %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("Len() = %d after relayout, want 0", tr.Len())
	}
	pos, err := tr.Position(1)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if pos.X != numReservedSprites {
		t.Errorf("first glyph after relayout at x=%d, want %d", pos.X, numReservedSprites)
	}
}
