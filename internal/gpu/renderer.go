//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Renderer errors.
var (
	// ErrViewportSize is returned when a frame carries a degenerate
	// viewport.
	ErrViewportSize = errors.New("gpu: viewport must be positive")
)

// frameFenceTimeout bounds the wait for a frame submission.
const frameFenceTimeout = 5 * time.Second

// scissorSetter is the optional render pass capability for clipping
// draws to the grid rectangle. Backends without it render unclipped,
// which only matters for image tiles overhanging the grid.
type scissorSetter interface {
	SetScissorRect(x, y, width, height uint32)
}

// Config holds renderer construction options.
type Config struct {
	// Format is the color format of the render targets passed to
	// DrawFrame. Default: BGRA8Unorm
	Format gputypes.TextureFormat

	// Atlas configures the sprite atlas growth limits.
	Atlas AtlasConfig
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		Format: gputypes.TextureFormatBGRA8Unorm,
		Atlas:  DefaultAtlasConfig(),
	}
}

// Renderer draws cell grid frames. It owns the sprite atlas, the
// shader programs, the border batch, the image store, and the
// persistent frame buffers. All methods must be called from the single
// rendering goroutine.
type Renderer struct {
	device hal.Device
	queue  hal.Queue
	cfg    Config

	atlas        *SpriteAtlas
	cellProgs    *cellPrograms
	cursorProg   *cursorProgram
	graphicsProg *graphicsProgram
	borderProg   *borderProgram

	borders *BorderBatch
	images  *imageStore

	uniformBuf       hal.Buffer
	cursorUniformBuf hal.Buffer
	cursorBindGroup  hal.BindGroup

	// Grown on demand, never shrunk.
	cellBuf hal.Buffer
	cellCap int
	selBuf  hal.Buffer
	selCap  int
	tileBuf hal.Buffer
	tileCap int

	// Frame bind group, cached against the atlas generation.
	cellBindGroup hal.BindGroup
	cellBindGen   uint64
}

// NewRenderer creates a renderer drawing to targets of cfg.Format.
func NewRenderer(device hal.Device, queue hal.Queue, cfg Config) (*Renderer, error) {
	def := DefaultConfig()
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = def.Format
	}

	r := &Renderer{device: device, queue: queue, cfg: cfg}
	r.atlas = NewSpriteAtlas(device, queue, cfg.Atlas)

	var err error
	if r.cellProgs, err = newCellPrograms(device, cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.cursorProg, err = newCursorProgram(device, cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.graphicsProg, err = newGraphicsProgram(device, cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.borderProg, err = newBorderProgram(device, cfg.Format); err != nil {
		r.Destroy()
		return nil, err
	}
	if r.borders, err = newBorderBatch(device, queue, r.borderProg); err != nil {
		r.Destroy()
		return nil, err
	}
	r.images = newImageStore(device, queue, r.graphicsProg)

	if r.uniformBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cell_render_data",
		Size:  renderDataSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	}); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("create render data buffer: %w", err)
	}
	if r.cursorUniformBuf, err = device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cursor_uniform",
		Size:  cursorUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	}); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("create cursor uniform buffer: %w", err)
	}
	if r.cursorBindGroup, err = r.cursorProg.createBindGroup(r.cursorUniformBuf); err != nil {
		r.Destroy()
		return nil, fmt.Errorf("create cursor bind group: %w", err)
	}

	slogger().Info("cell renderer created", "format", cfg.Format)
	return r, nil
}

// Atlas returns the sprite atlas. Callers set the cell size and upload
// rasterized sprites through it.
func (r *Renderer) Atlas() *SpriteAtlas { return r.atlas }

// Borders returns the window chrome batch.
func (r *Renderer) Borders() *BorderBatch { return r.borders }

// UploadImage registers an image for tile rendering and returns its
// handle.
func (r *Renderer) UploadImage(img image.Image) (cellgrid.ImageHandle, error) {
	return r.images.Upload(img)
}

// RemoveImage releases the texture behind handle.
func (r *Renderer) RemoveImage(handle cellgrid.ImageHandle) {
	r.images.Remove(handle)
}

// DrawFrame renders one frame into target. Cell, selection, and color
// table uploads are gated on the frame's dirty flags, which DrawFrame
// clears once the data is on its way to the GPU.
func (r *Renderer) DrawFrame(target hal.TextureView, f *cellgrid.Frame) error {
	if err := f.Screen.Validate(); err != nil {
		return err
	}
	if f.ViewportWidth <= 0 || f.ViewportHeight <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrViewportSize, f.ViewportWidth, f.ViewportHeight)
	}
	if err := r.atlas.Prepare(); err != nil {
		return err
	}

	if err := r.uploadFrameData(f); err != nil {
		return err
	}

	if r.cellBindGroup == nil || r.cellBindGen != r.atlas.Generation() {
		if r.cellBindGroup != nil {
			r.device.DestroyBindGroup(r.cellBindGroup)
		}
		bg, err := r.cellProgs.createBindGroup(r.uniformBuf, r.atlas.View())
		if err != nil {
			r.cellBindGroup = nil
			return fmt.Errorf("create cell bind group: %w", err)
		}
		r.cellBindGroup = bg
		r.cellBindGen = r.atlas.Generation()
	}

	tiles := sortImageTiles(f.Images)
	groups := groupImageTiles(tiles)
	for _, g := range groups {
		if _, err := r.images.lookup(g.handle); err != nil {
			return err
		}
	}
	if len(tiles) > 0 {
		data := buildImageVertexData(tiles)
		if err := r.ensureVertexBuffer(&r.tileBuf, &r.tileCap, len(data), "image_tiles"); err != nil {
			return err
		}
		r.queue.WriteBuffer(r.tileBuf, 0, data)
	}

	cursorMode := cursorModeFor(f)
	if cursorMode != cursorDrawNone {
		r.queue.WriteBuffer(r.cursorUniformBuf, 0, buildCursorUniform(&f.Cursor))
	}
	r.borders.setViewport(uint32(f.ViewportWidth), uint32(f.ViewportHeight))

	return r.encodeFrame(target, f, tiles, groups, cursorMode)
}

// uploadFrameData pushes the uniform block and the dirty-gated cell
// and selection buffers for the frame.
func (r *Renderer) uploadFrameData(f *cellgrid.Frame) error {
	s := f.Screen
	layout := r.atlas.Tracker().Layout()

	head := make([]byte, renderDataHeadSize)
	buildRenderDataHead(head, f, layout)
	r.queue.WriteBuffer(r.uniformBuf, 0, head)

	if s.Profile.Dirty {
		seg := make([]byte, renderDataTableSize)
		buildRenderDataTable(seg, &s.Profile.Table)
		r.queue.WriteBuffer(r.uniformBuf, renderDataTableOffset, seg)
		s.Profile.Dirty = false
	}

	cellBytes := len(s.Cells) * cellgrid.CellByteSize
	grew, err := r.ensureVertexBufferGrown(&r.cellBuf, &r.cellCap, cellBytes, "cell_instances")
	if err != nil {
		return err
	}
	if grew || s.ScrollChanged || s.Dirty {
		r.queue.WriteBuffer(r.cellBuf, 0, buildCellVertexData(s.Cells))
		s.ScrollChanged, s.Dirty = false, false
	}

	selBytes := len(s.Selection) * 4
	grew, err = r.ensureVertexBufferGrown(&r.selBuf, &r.selCap, selBytes, "cell_selection")
	if err != nil {
		return err
	}
	if grew || s.SelectionDirty {
		r.queue.WriteBuffer(r.selBuf, 0, buildSelectionData(s.Selection))
		s.SelectionDirty = false
	}
	return nil
}

// encodeFrame records and submits the render pass for one frame.
func (r *Renderer) encodeFrame(
	target hal.TextureView,
	f *cellgrid.Frame,
	tiles []cellgrid.ImageTile,
	groups []imageGroup,
	cursorMode cursorDrawMode,
) error {
	encoder, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "frame_encoder"})
	if err != nil {
		return fmt.Errorf("create frame encoder: %w", err)
	}
	if err := encoder.BeginEncoding("cell_frame"); err != nil {
		return fmt.Errorf("begin frame encoding: %w", err)
	}

	bg := f.Screen.Profile.Color(cellgrid.ColorDefaultBg)
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "cell_frame_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:    target,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
			ClearValue: gputypes.Color{
				R: float64(bg.R()) / 255,
				G: float64(bg.G()) / 255,
				B: float64(bg.B()) / 255,
				A: 1,
			},
		}},
	})

	// Chrome renders outside the grid, so it goes down before the
	// scissor rectangle confines everything else.
	r.borders.recordDraws(rp)

	if ss, ok := rp.(scissorSetter); ok {
		x, y, w, h := f.Geometry.ScissorRect(f.Screen.Lines, f.Screen.Columns, f.ViewportWidth, f.ViewportHeight)
		// ScissorRect uses a bottom-left origin; the pass wants top-left.
		ss.SetScissorRect(x, uint32(f.ViewportHeight)-(y+h), w, h)
	}

	instances := uint32(len(f.Screen.Cells))
	bindCellPass := func(pipeline hal.RenderPipeline) {
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, r.cellBindGroup, nil)
		rp.SetVertexBuffer(0, r.cellBuf, 0)
		rp.SetVertexBuffer(1, r.selBuf, 0)
		rp.Draw(4, instances, 0, 0)
	}
	drawTileGroups := func(want func(z int32) bool) {
		if len(tiles) == 0 {
			return
		}
		rp.SetPipeline(r.graphicsProg.pipeline)
		rp.SetVertexBuffer(0, r.tileBuf, 0)
		for _, g := range groups {
			if !want(g.z) {
				continue
			}
			img, _ := r.images.lookup(g.handle)
			rp.SetBindGroup(0, img.bindGroup, nil)
			rp.Draw(uint32(g.count)*4, 1, uint32(g.first)*4, 0)
		}
	}

	switch selectPipeline(tiles) {
	case PipelineSimple:
		bindCellPass(r.cellProgs.cell)
		drawTileGroups(func(int32) bool { return true })
	case PipelineInterleaved:
		bindCellPass(r.cellProgs.background)
		drawTileGroups(func(z int32) bool { return z < 0 })
		bindCellPass(r.cellProgs.special)
		bindCellPass(r.cellProgs.foreground)
		drawTileGroups(func(z int32) bool { return z >= 0 })
	}

	if cursorMode != cursorDrawNone {
		pipeline, verts := r.cursorProg.block, uint32(4)
		if cursorMode == cursorDrawOutline {
			pipeline, verts = r.cursorProg.outline, 5
		}
		rp.SetPipeline(pipeline)
		rp.SetBindGroup(0, r.cursorBindGroup, nil)
		rp.Draw(verts, 1, 0, 0)
	}

	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end frame encoding: %w", err)
	}
	defer r.device.FreeCommandBuffer(cmdBuf)

	fence, err := r.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create frame fence: %w", err)
	}
	defer r.device.DestroyFence(fence)

	if err := r.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	ok, err := r.device.Wait(fence, 1, frameFenceTimeout)
	if err != nil || !ok {
		return fmt.Errorf("wait for frame: ok=%v err=%w", ok, err)
	}
	return nil
}

// ensureVertexBufferGrown reports whether the buffer was (re)created,
// in which case cached contents are gone and the caller must upload
// regardless of dirty flags.
func (r *Renderer) ensureVertexBufferGrown(buf *hal.Buffer, capBytes *int, need int, label string) (bool, error) {
	if need == 0 || (*buf != nil && need <= *capBytes) {
		return false, nil
	}
	if err := r.ensureVertexBuffer(buf, capBytes, need, label); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Renderer) ensureVertexBuffer(buf *hal.Buffer, capBytes *int, need int, label string) error {
	if need == 0 || (*buf != nil && need <= *capBytes) {
		return nil
	}
	if *buf != nil {
		r.device.DestroyBuffer(*buf)
		*buf = nil
		*capBytes = 0
	}
	b, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(need),
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create %s buffer: %w", label, err)
	}
	*buf = b
	*capBytes = need
	return nil
}

// Destroy releases every GPU resource the renderer owns. Safe to call
// on a partially constructed renderer.
func (r *Renderer) Destroy() {
	for _, buf := range []*hal.Buffer{&r.tileBuf, &r.selBuf, &r.cellBuf, &r.cursorUniformBuf, &r.uniformBuf} {
		if *buf != nil {
			r.device.DestroyBuffer(*buf)
			*buf = nil
		}
	}
	r.cellCap, r.selCap, r.tileCap = 0, 0, 0
	if r.cellBindGroup != nil {
		r.device.DestroyBindGroup(r.cellBindGroup)
		r.cellBindGroup = nil
	}
	if r.cursorBindGroup != nil {
		r.device.DestroyBindGroup(r.cursorBindGroup)
		r.cursorBindGroup = nil
	}
	if r.images != nil {
		r.images.destroy()
		r.images = nil
	}
	if r.borders != nil {
		r.borders.destroy()
		r.borders = nil
	}
	if r.borderProg != nil {
		r.borderProg.destroy()
		r.borderProg = nil
	}
	if r.graphicsProg != nil {
		r.graphicsProg.destroy()
		r.graphicsProg = nil
	}
	if r.cursorProg != nil {
		r.cursorProg.destroy()
		r.cursorProg = nil
	}
	if r.cellProgs != nil {
		r.cellProgs.destroy()
		r.cellProgs = nil
	}
	if r.atlas != nil {
		r.atlas.Destroy()
		r.atlas = nil
	}
}
