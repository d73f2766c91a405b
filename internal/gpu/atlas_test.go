//go:build !nogpu

package gpu

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/wgpu/hal"
)

func TestAtlasUploadBeforeCellSize(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, DefaultAtlasConfig())
	defer a.Destroy()

	err := a.UploadSprite(SpritePosition{}, make([]byte, 64))
	if !errors.Is(err, ErrAtlasCellSizeUnset) {
		t.Errorf("err = %v, want ErrAtlasCellSizeUnset", err)
	}
}

func TestAtlasUploadValidation(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, DefaultAtlasConfig())
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}

	if err := a.UploadSprite(SpritePosition{}, make([]byte, 8*16-1)); !errors.Is(err, ErrSpriteSize) {
		t.Errorf("short buffer: err = %v, want ErrSpriteSize", err)
	}
	if err := a.UploadSprite(SpritePosition{Z: 63}, make([]byte, 8*16)); !errors.Is(err, ErrSpriteOutOfRange) {
		t.Errorf("unallocated layer: err = %v, want ErrSpriteOutOfRange", err)
	}
}

func TestAtlasFirstUploadCreatesTexture(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, DefaultAtlasConfig())
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}
	if a.View() != nil {
		t.Error("expected nil view before first upload")
	}

	pos, err := a.Position(1)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if err := a.UploadSprite(pos, make([]byte, 8*16)); err != nil {
		t.Fatalf("UploadSprite: %v", err)
	}

	if a.View() == nil {
		t.Fatal("expected view after first upload")
	}
	if a.ReallocCount() != 0 {
		t.Errorf("ReallocCount() = %d after initial allocation, want 0", a.ReallocCount())
	}
}

func TestAtlasBindGenerationStableAcrossUploads(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, DefaultAtlasConfig())
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}

	pos, err := a.Position(1)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if err := a.UploadSprite(pos, make([]byte, 8*16)); err != nil {
		t.Fatalf("UploadSprite: %v", err)
	}
	gen := a.Generation()

	// Uploads that fit in place must not invalidate cached bind groups.
	for i := uint64(2); i < 10; i++ {
		pos, err := a.Position(i)
		if err != nil {
			t.Fatalf("Position(%d): %v", i, err)
		}
		if err := a.UploadSprite(pos, make([]byte, 8*16)); err != nil {
			t.Fatalf("UploadSprite(%d): %v", i, err)
		}
	}
	if a.Generation() != gen {
		t.Errorf("generation moved from %d to %d without a realloc", gen, a.Generation())
	}
}

// fillAtlas rasterizes n dummy sprites through the tracker/upload path.
func fillAtlas(t *testing.T, a *SpriteAtlas, n int, cellBytes int) {
	t.Helper()
	for i := 0; i < n; i++ {
		pos, err := a.Position(uint64(i))
		if err != nil {
			t.Fatalf("Position(%d): %v", i, err)
		}
		if err := a.UploadSprite(pos, make([]byte, cellBytes)); err != nil {
			t.Fatalf("UploadSprite(%d): %v", i, err)
		}
	}
}

func TestAtlasGrowthIsMonotonicAndPreserving(t *testing.T) {
	// 40px texture limit with 8x16 cells: 5x2 slots per layer. 200
	// sprites against a 64 layer limit force repeated growth; the atlas
	// must grow at least 3 times and never fail an upload.
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, AtlasConfig{MaxTextureDimension: 40, MaxArrayLayers: 64})
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}

	prevGen := a.Generation()
	prevLayers := uint32(0)
	reallocs := 0
	for i := 0; i < 200; i++ {
		pos, err := a.Position(uint64(i))
		if err != nil {
			t.Fatalf("Position(%d): %v", i, err)
		}
		if err := a.UploadSprite(pos, make([]byte, 8*16)); err != nil {
			t.Fatalf("UploadSprite(%d): %v", i, err)
		}
		if a.texLayers < prevLayers {
			t.Fatalf("capacity shrank from %d to %d layers", prevLayers, a.texLayers)
		}
		prevLayers = a.texLayers
		if g := a.Generation(); g != prevGen {
			reallocs++
			prevGen = g
		}
	}

	if a.ReallocCount() < 3 {
		t.Errorf("ReallocCount() = %d, want >= 3", a.ReallocCount())
	}
	// Every growth plus the initial creation bumps the generation.
	if reallocs != a.ReallocCount()+1 {
		t.Errorf("generation changed %d times for %d reallocs", reallocs, a.ReallocCount())
	}

	// 200 sprites + 5 reserved in 10-slot layers: 21 layers backed.
	if a.texLayers != 21 {
		t.Errorf("texLayers = %d, want 21", a.texLayers)
	}
}

func TestAtlasLayerExhaustionSurfacesError(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	// 2 layers x 10 slots, 5 reserved: 15 sprites fit.
	a := NewSpriteAtlas(device, queue, AtlasConfig{MaxTextureDimension: 40, MaxArrayLayers: 2})
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}
	fillAtlas(t, a, 15, 8*16)

	// Filling the last slot must not push the texture past the device
	// limit.
	if a.texLayers != 2 {
		t.Errorf("texLayers = %d at exact capacity, want 2", a.texLayers)
	}

	if _, err := a.Position(1000); !errors.Is(err, ErrAtlasLayersExhausted) {
		t.Errorf("err = %v, want ErrAtlasLayersExhausted", err)
	}
}

func TestAtlasSetCellSizeResetsEpoch(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, AtlasConfig{MaxTextureDimension: 40, MaxArrayLayers: 64})
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}
	fillAtlas(t, a, 50, 8*16)
	if a.ReallocCount() == 0 {
		t.Fatal("expected growth while filling the first epoch")
	}

	if err := a.SetCellSize(8, 20); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}
	if a.View() != nil {
		t.Error("expected texture to be released on cell size change")
	}
	if a.ReallocCount() != 0 {
		t.Errorf("ReallocCount() = %d after cell size change, want 0", a.ReallocCount())
	}
	if a.Tracker().Len() != 0 {
		t.Errorf("tracker still holds %d sprites after cell size change", a.Tracker().Len())
	}

	// The new epoch works from scratch.
	pos, err := a.Position(1)
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if err := a.UploadSprite(pos, make([]byte, 8*20)); err != nil {
		t.Fatalf("UploadSprite: %v", err)
	}
}

// hostCopyDevice wraps a device so atlas growth cannot take the
// texture-to-texture fast path and must go through the staging buffer
// round-trip.
type hostCopyDevice struct{ hal.Device }

func (d hostCopyDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := d.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	return plainEncoder{enc}, nil
}

// plainEncoder promotes only the hal.CommandEncoder method set, hiding
// optional copy capabilities of the wrapped encoder.
type plainEncoder struct{ hal.CommandEncoder }

type recordedTextureWrite struct {
	layout hal.ImageDataLayout
	size   hal.Extent3D
	data   []byte
}

// roundTripQueue records texture writes and serves readbacks with a
// deterministic byte pattern, standing in for texture contents the noop
// backend does not keep.
type roundTripQueue struct {
	hal.Queue
	writes []recordedTextureWrite
}

func (q *roundTripQueue) WriteTexture(dst *hal.ImageCopyTexture, data []byte, layout *hal.ImageDataLayout, size *hal.Extent3D) error {
	q.writes = append(q.writes, recordedTextureWrite{
		layout: *layout,
		size:   *size,
		data:   append([]byte(nil), data...),
	})
	return q.Queue.WriteTexture(dst, data, layout, size)
}

func (q *roundTripQueue) ReadBuffer(_ hal.Buffer, _ uint64, dst []byte) error {
	for i := range dst {
		dst[i] = byte(i % 251)
	}
	return nil
}

func TestAtlasGrowthHostRoundTripPreservesBytes(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	var logBuf bytes.Buffer
	orig := cellgrid.Logger()
	cellgrid.SetLogger(slog.New(slog.NewTextHandler(&logBuf, nil)))
	t.Cleanup(func() { cellgrid.SetLogger(orig) })

	q := &roundTripQueue{Queue: queue}
	a := NewSpriteAtlas(hostCopyDevice{device}, q, AtlasConfig{MaxTextureDimension: 40, MaxArrayLayers: 4})
	defer a.Destroy()
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}

	// 5x2 slots per layer with 5 reserved: the sixth glyph starts layer
	// 1 and forces the first growth, away from a 40x32x1 texture.
	fillAtlas(t, a, 6, 8*16)
	if a.ReallocCount() != 1 {
		t.Fatalf("ReallocCount() = %d, want 1", a.ReallocCount())
	}

	// The forward copy rewrites the full old extent into the new
	// texture. Sprite uploads are cell-sized, so the one full-width
	// write is the copy.
	var fwd *recordedTextureWrite
	for i := range q.writes {
		if q.writes[i].size.Width == 40 {
			fwd = &q.writes[i]
		}
	}
	if fwd == nil {
		t.Fatal("no forward copy write recorded")
	}
	if fwd.size.Height != 32 || fwd.size.DepthOrArrayLayers != 1 {
		t.Errorf("forward copy extent = %+v, want 40x32x1", fwd.size)
	}
	if fwd.layout.BytesPerRow != 40 {
		t.Errorf("forward copy BytesPerRow = %d, want tightly packed 40", fwd.layout.BytesPerRow)
	}

	// The staging buffer comes back with 256-byte aligned rows; the
	// rewrite must carry each row's content bytes with the padding
	// stripped.
	want := make([]byte, 40*32)
	for row := 0; row < 32; row++ {
		for col := 0; col < 40; col++ {
			want[row*40+col] = byte((row*256 + col) % 251)
		}
	}
	if !bytes.Equal(fwd.data, want) {
		t.Error("forward copy bytes do not match the staged texture content")
	}

	// A second growth reuses the slow path silently: the warning is a
	// one-time event.
	fillAtlas(t, a, 16, 8*16)
	if a.ReallocCount() != 2 {
		t.Fatalf("ReallocCount() = %d after second growth, want 2", a.ReallocCount())
	}
	if got := strings.Count(logBuf.String(), "host round-trip"); got != 1 {
		t.Errorf("slow-path warning logged %d times, want once", got)
	}
}

func TestAtlasDoubleDestroy(t *testing.T) {
	device, queue, cleanup := newTestDevice(t)
	defer cleanup()

	a := NewSpriteAtlas(device, queue, DefaultAtlasConfig())
	if err := a.SetCellSize(8, 16); err != nil {
		t.Fatalf("SetCellSize: %v", err)
	}
	fillAtlas(t, a, 3, 8*16)

	a.Destroy()
	if a.View() != nil {
		t.Error("expected nil view after Destroy")
	}
	a.Destroy()
}
