// Command cellgrid-demo renders a synthetic terminal screen through
// the full frame pipeline on the noop GPU backend. It exists to
// exercise the renderer end to end without a window system.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/cellgrid/glyph"
	"github.com/gogpu/cellgrid/render"
)

func main() {
	var (
		lines   = flag.Int("lines", 24, "grid lines")
		columns = flag.Int("columns", 80, "grid columns")
		frames  = flag.Int("frames", 3, "frames to render")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	cellgrid.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(*lines, *columns, *frames); err != nil {
		log.Fatal(err)
	}
}

func run(lines, columns, frames int) error {
	device, queue, cleanup, err := openNoopDevice()
	if err != nil {
		return err
	}
	defer cleanup()

	renderer, err := render.NewWithDevice(device, queue, render.Options{
		Format: gputypes.TextureFormatBGRA8Unorm,
	})
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	rast, err := glyph.New(gomono.TTF, glyph.Options{SizePt: 12, DPI: 96})
	if err != nil {
		return err
	}
	defer rast.Close()

	cellW, cellH := rast.CellSize()
	if err := renderer.SetCellSize(uint32(cellW), uint32(cellH)); err != nil {
		return err
	}
	if err := uploadDecorations(renderer, rast); err != nil {
		return err
	}

	viewportW := columns * cellW
	viewportH := lines * cellH
	target, targetCleanup, err := createTarget(device, uint32(viewportW), uint32(viewportH))
	if err != nil {
		return err
	}
	defer targetCleanup()

	screen := cellgrid.NewScreenState(lines, columns)
	if err := fillScreen(renderer, rast, screen, "The quick brown fox jumps over the lazy dog."); err != nil {
		return err
	}

	if err := renderer.SubmitBorderRects([]cellgrid.BorderRect{
		{Left: 0, Top: 0, Right: uint32(viewportW), Bottom: 2, Color: 0xff404040},
		{Left: 0, Top: uint32(viewportH) - 2, Right: uint32(viewportW), Bottom: uint32(viewportH), Color: 0xff404040},
	}); err != nil {
		return err
	}

	frame := &cellgrid.Frame{
		Screen:         screen,
		Geometry:       cellgrid.GridGeometry(lines, columns, cellW, cellH, viewportW, viewportH),
		Focused:        true,
		ViewportWidth:  viewportW,
		ViewportHeight: viewportH,
		Cursor: cellgrid.CursorInfo{
			Shape: cellgrid.CursorBlock, Visible: true, X: 0, Y: 1, CharWidth: 1,
			Color: 0xcccc00,
		},
	}

	for i := 0; i < frames; i++ {
		if err := renderer.DrawFrame(target, frame); err != nil {
			return err
		}
		// Toggle reverse video so consecutive frames upload new state.
		screen.InvertColors = !screen.InvertColors
		screen.Dirty = true
	}
	slog.Info("rendered", "frames", frames, "grid", lines*columns, "cell", cellW)
	return nil
}

func openNoopDevice() (hal.Device, hal.Queue, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, nil, err
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup, nil
}

func createTarget(device hal.Device, w, h uint32) (hal.TextureView, func(), error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "demo_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return nil, nil, err
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "demo_target_view",
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		device.DestroyTexture(tex)
		return nil, nil, err
	}
	cleanup := func() {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
	}
	return view, cleanup, nil
}

func uploadDecorations(renderer *render.Renderer, rast *glyph.Rasterizer) error {
	blank, err := renderer.ReservedPosition(render.SpriteBlank)
	if err != nil {
		return err
	}
	if err := renderer.UploadSprite(blank, rast.BlankSprite()); err != nil {
		return err
	}
	slots := []int{
		render.SpriteUnderline,
		render.SpriteDoubleUnderline,
		render.SpriteCurlyUnderline,
		render.SpriteStrikethrough,
	}
	for i, sprite := range rast.DecorationSprites() {
		pos, err := renderer.ReservedPosition(slots[i])
		if err != nil {
			return err
		}
		if err := renderer.UploadSprite(pos, sprite); err != nil {
			return err
		}
	}
	return nil
}

// fillScreen writes text into the first row and styles the second row
// with decorations so every cell pipeline variant has work.
func fillScreen(renderer *render.Renderer, rast *glyph.Rasterizer, s *cellgrid.ScreenState, text string) error {
	writeRune := func(x, y int, ch rune, attrs cellgrid.CellAttrs) error {
		pos, err := renderer.Position(uint64(ch))
		if err != nil {
			return err
		}
		cells, err := rast.Rasterize(ch)
		if err != nil {
			return err
		}
		if err := renderer.UploadSprite(pos, cells[0]); err != nil {
			return err
		}
		c := s.CellAt(x, y)
		c.Fg = cellgrid.DefaultColor()
		c.Bg = cellgrid.DefaultColor()
		c.DecorationFg = cellgrid.IndexedColor(4)
		c.SpriteX, c.SpriteY, c.SpriteZ = pos.X, pos.Y, pos.Z
		c.Attrs = attrs
		return nil
	}

	for i, ch := range text {
		if i >= s.Columns {
			break
		}
		if err := writeRune(i, 0, ch, 0); err != nil {
			return err
		}
	}
	styled := []cellgrid.CellAttrs{
		cellgrid.CellAttrs(0).WithDecoration(cellgrid.DecorationSingle),
		cellgrid.CellAttrs(0).WithDecoration(cellgrid.DecorationDouble),
		cellgrid.CellAttrs(0).WithDecoration(cellgrid.DecorationCurly),
		cellgrid.AttrStrikethrough,
		cellgrid.AttrReverse,
	}
	for i, attrs := range styled {
		if err := writeRune(i, 1, rune('a'+i), attrs); err != nil {
			return err
		}
	}
	return nil
}
