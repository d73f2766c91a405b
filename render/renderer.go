// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"image"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/cellgrid/internal/gpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// SpritePosition is the atlas slot assigned to a rasterized sprite.
// The X/Y/Z values go into the corresponding Cell sprite fields.
type SpritePosition = gpu.SpritePosition

// Reserved sprite slots present in every atlas layout. Slot
// SpriteBlank stays transparent; the decoration slots hold the
// underline and strikethrough bitmaps (see the glyph package).
const (
	SpriteBlank           = gpu.SpriteBlank
	SpriteUnderline       = gpu.SpriteUnderline
	SpriteDoubleUnderline = gpu.SpriteDoubleUnderline
	SpriteCurlyUnderline  = gpu.SpriteCurlyUnderline
	SpriteStrikethrough   = gpu.SpriteStrikethrough
)

// Atlas errors surfaced to callers.
var (
	ErrAtlasLayersExhausted = gpu.ErrAtlasLayersExhausted
	ErrAtlasCellSizeUnset   = gpu.ErrAtlasCellSizeUnset
	ErrCellTooWide          = gpu.ErrCellTooWide
	ErrBorderOverflow       = gpu.ErrBorderOverflow
	ErrImageUnknown         = gpu.ErrImageUnknown
)

// Options configures a Renderer. The zero value takes the provider's
// surface format and default atlas limits.
type Options struct {
	// Format overrides the render target color format.
	Format gputypes.TextureFormat

	// MaxTextureDimension caps the sprite atlas width and height.
	MaxTextureDimension uint32

	// MaxArrayLayers caps the sprite atlas array depth.
	MaxArrayLayers uint32
}

// Renderer draws terminal cell grid frames onto GPU render targets.
//
// All methods must be called from the single rendering goroutine that
// owns the GPU device.
type Renderer struct {
	impl *gpu.Renderer
}

// New creates a renderer on the device shared by handle. The handle
// must expose the underlying wgpu HAL device (gogpu providers do).
func New(handle DeviceHandle, opts Options) (*Renderer, error) {
	device, queue, err := halResources(handle)
	if err != nil {
		return nil, err
	}
	if opts.Format == gputypes.TextureFormatUndefined {
		opts.Format = handle.SurfaceFormat()
	}
	return NewWithDevice(device, queue, opts)
}

// NewWithDevice creates a renderer directly on a HAL device and queue.
// Intended for hosts that manage HAL resources themselves and for
// tests running on the noop backend.
func NewWithDevice(device hal.Device, queue hal.Queue, opts Options) (*Renderer, error) {
	impl, err := gpu.NewRenderer(device, queue, gpu.Config{
		Format: opts.Format,
		Atlas: gpu.AtlasConfig{
			MaxTextureDimension: opts.MaxTextureDimension,
			MaxArrayLayers:      opts.MaxArrayLayers,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Renderer{impl: impl}, nil
}

// SetCellSize resets the sprite atlas for a new cell pixel size. Every
// sprite position handed out before this call is invalidated; glyphs
// must be rasterized and uploaded again.
func (r *Renderer) SetCellSize(width, height uint32) error {
	return r.impl.Atlas().SetCellSize(width, height)
}

// Position returns the atlas slot for a sprite key, allocating one on
// first use. Keys are caller-defined glyph identities; the same key
// always maps to the same slot until SetCellSize.
func (r *Renderer) Position(key uint64) (SpritePosition, error) {
	return r.impl.Atlas().Position(key)
}

// UploadSprite stores a rasterized alpha bitmap, one byte per pixel at
// the current cell size, into the atlas slot pos.
func (r *Renderer) UploadSprite(pos SpritePosition, data []byte) error {
	return r.impl.Atlas().UploadSprite(pos, data)
}

// ReservedPosition returns the atlas slot of a reserved sprite
// (SpriteBlank through SpriteStrikethrough).
func (r *Renderer) ReservedPosition(slot int) (SpritePosition, error) {
	return r.impl.Atlas().Tracker().ReservedPosition(slot)
}

// SubmitBorderRects replaces the window chrome rectangles drawn under
// every frame. A rect with all-zero geometry resets the batch.
func (r *Renderer) SubmitBorderRects(rects []cellgrid.BorderRect) error {
	return r.impl.Borders().Submit(rects)
}

// UploadImage registers an image for tile rendering.
func (r *Renderer) UploadImage(img image.Image) (cellgrid.ImageHandle, error) {
	return r.impl.UploadImage(img)
}

// RemoveImage releases the texture behind handle. Frames submitted
// after this must not reference it.
func (r *Renderer) RemoveImage(handle cellgrid.ImageHandle) {
	r.impl.RemoveImage(handle)
}

// DrawFrame renders one frame into target and blocks until the GPU
// work completes. It clears the frame's dirty flags after uploading
// the corresponding buffers.
func (r *Renderer) DrawFrame(target hal.TextureView, f *cellgrid.Frame) error {
	return r.impl.DrawFrame(target, f)
}

// Destroy releases all GPU resources the renderer owns.
func (r *Renderer) Destroy() {
	r.impl.Destroy()
}
