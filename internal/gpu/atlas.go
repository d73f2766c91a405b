//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Atlas errors.
var (
	// ErrAtlasCellSizeUnset is returned when sprites are uploaded before
	// SetCellSize.
	ErrAtlasCellSizeUnset = errors.New("gpu: atlas cell size not set")

	// ErrSpriteSize is returned when a sprite buffer does not match the
	// atlas cell size.
	ErrSpriteSize = errors.New("gpu: sprite buffer does not match cell size")

	// ErrSpriteOutOfRange is returned when a sprite position lies outside
	// the tracked atlas layout.
	ErrSpriteOutOfRange = errors.New("gpu: sprite position outside atlas layout")
)

// atlasFenceTimeout bounds the wait for copy submissions during a
// reallocation.
const atlasFenceTimeout = 5 * time.Second

// AtlasConfig holds the device limits the atlas may grow into.
type AtlasConfig struct {
	// MaxTextureDimension caps the atlas width and height in pixels.
	// Default: 4096
	MaxTextureDimension uint32

	// MaxArrayLayers caps the texture array depth.
	// Default: 64
	MaxArrayLayers uint32
}

// DefaultAtlasConfig returns default configuration.
func DefaultAtlasConfig() AtlasConfig {
	return AtlasConfig{
		MaxTextureDimension: 4096,
		MaxArrayLayers:      64,
	}
}

// textureCopier is the optional fast-path interface for GPU-side texture
// copies. Backends that cannot copy texture to texture directly fall
// back to a host round-trip through a staging buffer.
type textureCopier interface {
	CopyTextureToTexture(src, dst hal.ImageCopyTexture, size hal.Extent3D)
}

// SpriteAtlas is the growable glyph store: an R8 2D texture array of
// cellWidth x cellHeight sprites addressed by SpritePosition. Capacity
// only ever grows for a given cell size; growing reallocates the
// texture and copies the previously backed extent forward, so sprites
// uploaded at any point before the growth survive it.
//
// The atlas owns the texture and its view. Binding state is exposed as
// a generation counter: the view is stable between reallocations, so
// callers cache their bind group and rebuild it only when Generation
// changes.
type SpriteAtlas struct {
	device hal.Device
	queue  hal.Queue
	cfg    AtlasConfig

	tracker *SpriteTracker

	cellWidth, cellHeight uint32

	tex  hal.Texture
	view hal.TextureView

	// Pixel extent and layer count backing tex. Zero while no texture
	// exists.
	texWidth, texHeight, texLayers uint32

	generation   uint64
	reallocCount int

	fallbackWarned bool
}

// NewSpriteAtlas creates an atlas for the given device and queue. No
// GPU resources are allocated until the first upload after SetCellSize.
func NewSpriteAtlas(device hal.Device, queue hal.Queue, cfg AtlasConfig) *SpriteAtlas {
	def := DefaultAtlasConfig()
	if cfg.MaxTextureDimension == 0 {
		cfg.MaxTextureDimension = def.MaxTextureDimension
	}
	if cfg.MaxArrayLayers == 0 {
		cfg.MaxArrayLayers = def.MaxArrayLayers
	}
	return &SpriteAtlas{
		device:  device,
		queue:   queue,
		cfg:     cfg,
		tracker: NewSpriteTracker(cfg.MaxTextureDimension, cfg.MaxArrayLayers),
	}
}

// Tracker returns the slot allocator feeding this atlas.
func (a *SpriteAtlas) Tracker() *SpriteTracker { return a.tracker }

// SetCellSize resets the atlas for a new sprite cell size. The existing
// texture is destroyed; all previously tracked sprites are forgotten
// and must be rasterized again.
func (a *SpriteAtlas) SetCellSize(w, h uint32) error {
	if err := a.tracker.SetLayout(w, h); err != nil {
		return err
	}
	a.cellWidth, a.cellHeight = w, h
	a.destroyTexture()
	a.reallocCount = 0
	slogger().Info("sprite atlas cell size set", "width", w, "height", h)
	return nil
}

// Position returns the atlas slot for key, allocating one on first use.
// The backing texture grows lazily on the next upload.
func (a *SpriteAtlas) Position(key uint64) (SpritePosition, error) {
	return a.tracker.Position(key)
}

// UploadSprite stores one cellWidth x cellHeight alpha bitmap at pos,
// growing the texture first if pos lies beyond the current capacity.
func (a *SpriteAtlas) UploadSprite(pos SpritePosition, data []byte) error {
	if a.cellWidth == 0 {
		return ErrAtlasCellSizeUnset
	}
	if len(data) != int(a.cellWidth*a.cellHeight) {
		return fmt.Errorf("%w: got %d bytes, cell is %dx%d", ErrSpriteSize, len(data), a.cellWidth, a.cellHeight)
	}
	layout := a.tracker.Layout()
	if uint32(pos.X) >= layout.XNum || uint32(pos.Y) >= layout.YNum || uint32(pos.Z) >= layout.Layers {
		return fmt.Errorf("%w: (%d, %d, %d) in %dx%dx%d layout",
			ErrSpriteOutOfRange, pos.X, pos.Y, pos.Z, layout.XNum, layout.YNum, layout.Layers)
	}
	if err := a.ensureCapacity(layout); err != nil {
		return err
	}

	a.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  a.tex,
			MipLevel: 0,
			Origin: hal.Origin3D{
				X: uint32(pos.X) * a.cellWidth,
				Y: uint32(pos.Y) * a.cellHeight,
				Z: uint32(pos.Z),
			},
			Aspect: gputypes.TextureAspectAll,
		},
		data,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  a.cellWidth,
			RowsPerImage: a.cellHeight,
		},
		&hal.Extent3D{Width: a.cellWidth, Height: a.cellHeight, DepthOrArrayLayers: 1},
	)
	return nil
}

// Prepare guarantees a backing texture and view exist for the current
// layout, so a frame bind group can be built before any sprite upload.
func (a *SpriteAtlas) Prepare() error {
	if a.cellWidth == 0 {
		return ErrAtlasCellSizeUnset
	}
	return a.ensureCapacity(a.tracker.Layout())
}

// View returns the texture array view for sampling, nil before the
// first upload. The view is stable until Generation changes.
func (a *SpriteAtlas) View() hal.TextureView { return a.view }

// Generation increments whenever the backing texture is replaced.
// Callers key cached bind groups on it, which makes repeated binds of
// an unchanged atlas free.
func (a *SpriteAtlas) Generation() uint64 { return a.generation }

// ReallocCount reports how many content-preserving growths happened
// since the last SetCellSize.
func (a *SpriteAtlas) ReallocCount() int { return a.reallocCount }

// Destroy releases the atlas texture. Safe to call repeatedly.
func (a *SpriteAtlas) Destroy() {
	a.destroyTexture()
}

func (a *SpriteAtlas) destroyTexture() {
	if a.view != nil {
		a.device.DestroyTextureView(a.view)
		a.view = nil
	}
	if a.tex != nil {
		a.device.DestroyTexture(a.tex)
		a.tex = nil
	}
	a.texWidth, a.texHeight, a.texLayers = 0, 0, 0
	a.generation++
}

// ensureCapacity grows the texture to cover layout. Capacity never
// shrinks: the new extent is the union of the old and requested ones.
func (a *SpriteAtlas) ensureCapacity(layout SpriteLayout) error {
	w := layout.XNum * a.cellWidth
	h := layout.YNum * a.cellHeight
	layers := layout.Layers
	if a.tex != nil && w <= a.texWidth && h <= a.texHeight && layers <= a.texLayers {
		return nil
	}
	w = max32(w, a.texWidth)
	h = max32(h, a.texHeight)
	layers = max32(layers, a.texLayers)

	tex, err := a.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "sprite_atlas",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: layers},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatR8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create atlas texture: %w", err)
	}
	view, err := a.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "sprite_atlas_view",
		Format:        gputypes.TextureFormatR8Unorm,
		Dimension:     gputypes.TextureViewDimension2DArray,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		a.device.DestroyTexture(tex)
		return fmt.Errorf("create atlas view: %w", err)
	}

	if a.tex != nil {
		if err := a.copyForward(tex); err != nil {
			a.device.DestroyTextureView(view)
			a.device.DestroyTexture(tex)
			return err
		}
		a.reallocCount++
		slogger().Info("sprite atlas grown",
			"width", w, "height", h, "layers", layers, "reallocs", a.reallocCount)
	}

	a.destroyTexture()
	a.tex, a.view = tex, view
	a.texWidth, a.texHeight, a.texLayers = w, h, layers
	return nil
}

// copyForward copies the full extent of the current texture into dst.
// Copying the whole backed extent, rather than the extent recorded at
// the previous growth, is what keeps sprites uploaded between two
// growths alive.
func (a *SpriteAtlas) copyForward(dst hal.Texture) error {
	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "atlas_copy_encoder"})
	if err != nil {
		return fmt.Errorf("create atlas copy encoder: %w", err)
	}
	if err := encoder.BeginEncoding("atlas_copy"); err != nil {
		return fmt.Errorf("begin atlas copy: %w", err)
	}

	if copier, ok := encoder.(textureCopier); ok {
		copier.CopyTextureToTexture(
			hal.ImageCopyTexture{Texture: a.tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
			hal.ImageCopyTexture{Texture: dst, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
			hal.Extent3D{Width: a.texWidth, Height: a.texHeight, DepthOrArrayLayers: a.texLayers},
		)
		return a.submitAndWait(encoder)
	}

	// Host round-trip: read the old texture back through a staging
	// buffer, then write it into the new one. Costly, so say so once.
	if !a.fallbackWarned {
		slogger().Warn("atlas growth using host round-trip copy, this is slow")
		a.fallbackWarned = true
	}

	// Copies to buffers need BytesPerRow aligned to 256 bytes.
	const copyPitchAlignment = 256
	bytesPerRow := a.texWidth
	alignedBytesPerRow := (bytesPerRow + copyPitchAlignment - 1) &^ (copyPitchAlignment - 1)
	stagingSize := uint64(alignedBytesPerRow) * uint64(a.texHeight) * uint64(a.texLayers)

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "atlas_copy_staging",
		Size:  stagingSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		encoder.DiscardEncoding()
		return fmt.Errorf("create atlas staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	encoder.CopyTextureToBuffer(a.tex, staging, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: 0, BytesPerRow: alignedBytesPerRow, RowsPerImage: a.texHeight},
		TextureBase:  hal.ImageCopyTexture{Texture: a.tex, MipLevel: 0},
		Size:         hal.Extent3D{Width: a.texWidth, Height: a.texHeight, DepthOrArrayLayers: a.texLayers},
	}})
	if err := a.submitAndWait(encoder); err != nil {
		return err
	}

	readback := make([]byte, stagingSize)
	if err := a.queue.ReadBuffer(staging, 0, readback); err != nil {
		return fmt.Errorf("atlas readback: %w", err)
	}

	pixels := readback
	if alignedBytesPerRow != bytesPerRow {
		// Strip per-row padding before the tightly packed write.
		rows := int(a.texHeight) * int(a.texLayers)
		tight := make([]byte, int(bytesPerRow)*rows)
		for row := 0; row < rows; row++ {
			srcOff := row * int(alignedBytesPerRow)
			dstOff := row * int(bytesPerRow)
			copy(tight[dstOff:dstOff+int(bytesPerRow)], readback[srcOff:srcOff+int(bytesPerRow)])
		}
		pixels = tight
	}

	a.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: dst, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		pixels,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: a.texHeight},
		&hal.Extent3D{Width: a.texWidth, Height: a.texHeight, DepthOrArrayLayers: a.texLayers},
	)
	return nil
}

// submitAndWait finishes the encoder, submits it, and blocks until the
// copy is complete so the old texture can be destroyed safely.
func (a *SpriteAtlas) submitAndWait(encoder hal.CommandEncoder) error {
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end atlas copy: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create atlas fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit atlas copy: %w", err)
	}
	ok, err := a.device.Wait(fence, 1, atlasFenceTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for atlas copy: ok=%v err=%w", ok, err)
	}
	return nil
}
