//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	xdraw "golang.org/x/image/draw"
)

// Image store errors.
var (
	// ErrImageEmpty is returned when an uploaded image has no pixels.
	ErrImageEmpty = errors.New("gpu: image has empty bounds")

	// ErrImageUnknown is returned when a frame references a handle that
	// was never uploaded or was removed.
	ErrImageUnknown = errors.New("gpu: unknown image handle")
)

// imageTileStride is the byte size of one tile quad: four vertices of
// vec4<f32> position-uv pairs.
const imageTileStride = 4 * 16

// storedImage is one uploaded image texture with its cached bind group.
type storedImage struct {
	tex       hal.Texture
	view      hal.TextureView
	bindGroup hal.BindGroup
	width     uint32
	height    uint32
}

// imageStore owns the RGBA textures behind image tiles. Handles are
// issued on upload and stay valid until RemoveImage or Destroy.
type imageStore struct {
	device hal.Device
	queue  hal.Queue
	prog   *graphicsProgram

	images map[cellgrid.ImageHandle]*storedImage
	nextID cellgrid.ImageHandle
}

func newImageStore(device hal.Device, queue hal.Queue, prog *graphicsProgram) *imageStore {
	return &imageStore{
		device: device,
		queue:  queue,
		prog:   prog,
		images: make(map[cellgrid.ImageHandle]*storedImage),
		nextID: 1,
	}
}

// Upload converts img to RGBA, creates a texture for it, and returns
// the handle frames use to reference it.
func (s *imageStore) Upload(img image.Image) (cellgrid.ImageHandle, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return 0, ErrImageEmpty
	}

	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != w*4 || !bounds.Min.Eq(image.Point{}) {
		converted := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(converted, converted.Bounds(), img, bounds.Min, xdraw.Src)
		rgba = converted
	}

	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "image_tile",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("create image texture: %w", err)
	}
	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "image_tile_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		s.device.DestroyTexture(tex)
		return 0, fmt.Errorf("create image view: %w", err)
	}
	bindGroup, err := s.prog.createBindGroup(view)
	if err != nil {
		s.device.DestroyTextureView(view)
		s.device.DestroyTexture(tex)
		return 0, fmt.Errorf("create image bind group: %w", err)
	}

	s.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Aspect: gputypes.TextureAspectAll},
		rgba.Pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: uint32(w) * 4, RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)

	handle := s.nextID
	s.nextID++
	s.images[handle] = &storedImage{
		tex: tex, view: view, bindGroup: bindGroup,
		width: uint32(w), height: uint32(h),
	}
	slogger().Debug("image uploaded", "handle", handle, "width", w, "height", h)
	return handle, nil
}

// Remove releases the texture behind handle. Unknown handles are a
// no-op so removal is idempotent.
func (s *imageStore) Remove(handle cellgrid.ImageHandle) {
	img, ok := s.images[handle]
	if !ok {
		return
	}
	delete(s.images, handle)
	s.device.DestroyBindGroup(img.bindGroup)
	s.device.DestroyTextureView(img.view)
	s.device.DestroyTexture(img.tex)
}

func (s *imageStore) lookup(handle cellgrid.ImageHandle) (*storedImage, error) {
	img, ok := s.images[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrImageUnknown, handle)
	}
	return img, nil
}

func (s *imageStore) destroy() {
	for handle := range s.images {
		s.Remove(handle)
	}
}

// imageGroup is a run of consecutive tiles in z-order that share one
// texture and therefore one bind group.
type imageGroup struct {
	handle cellgrid.ImageHandle
	z      int32
	first  int // tile index of the run start
	count  int
}

// sortImageTiles orders tiles back to front. The sort is stable so
// tiles of the same image at the same depth keep their submission
// order, which the caller may rely on for overlap.
func sortImageTiles(tiles []cellgrid.ImageTile) []cellgrid.ImageTile {
	sorted := make([]cellgrid.ImageTile, len(tiles))
	copy(sorted, tiles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Z < sorted[j].Z })
	return sorted
}

// groupImageTiles splits sorted tiles into bind-group runs: a new group
// starts whenever the texture changes, so each group is one
// SetBindGroup followed by its quads. A run also breaks at the
// underlay/overlay boundary because those halves draw in different
// passes.
func groupImageTiles(sorted []cellgrid.ImageTile) []imageGroup {
	var groups []imageGroup
	for i, t := range sorted {
		if len(groups) > 0 {
			prev := &groups[len(groups)-1]
			if prev.handle == t.Handle && (prev.z < 0) == (t.Z < 0) {
				prev.count++
				continue
			}
		}
		groups = append(groups, imageGroup{handle: t.Handle, z: t.Z, first: i, count: 1})
	}
	return groups
}

// buildImageVertexData serializes sorted tiles into the tile vertex
// buffer: each tile contributes four vec4<f32> vertices forming a
// triangle strip quad.
func buildImageVertexData(sorted []cellgrid.ImageTile) []byte {
	data := make([]byte, len(sorted)*imageTileStride)
	off := 0
	for _, t := range sorted {
		for _, v := range t.Vertices {
			binary.LittleEndian.PutUint32(data[off:], math.Float32bits(v))
			off += 4
		}
	}
	return data
}
