// Package cellgrid renders a terminal's character-cell grid on the GPU.
//
// The root package holds the host-side data model: packed cell colors
// and their codec, the per-frame screen snapshot with its dirty flags,
// cursor and grid geometry, and border/image inputs. The GPU work lives
// behind the render package, which drives a growable sprite atlas, a
// fixed-layout uniform block, and a small set of render pipelines to
// draw text, cursor, borders, and images in the right order each frame.
//
// A minimal frame looks like:
//
//	screen := cellgrid.NewScreenState(24, 80)
//	// ... fill screen.Cells, set colors ...
//	r, err := render.New(deviceHandle, render.Options{})
//	if err != nil { ... }
//	err = r.DrawFrame(target, &cellgrid.Frame{
//	    Screen:         screen,
//	    Geometry:       cellgrid.GridGeometry(24, 80, cellW, cellH, w, h),
//	    Focused:        true,
//	    ViewportWidth:  w,
//	    ViewportHeight: h,
//	})
//
// cellgrid receives its GPU device from the host application; it never
// creates one. Logging is silent by default; see SetLogger.
package cellgrid
