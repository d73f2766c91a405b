// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render draws terminal cell grids on the GPU.
//
// A Renderer is created on a device shared by the host application and
// consumes cellgrid.Frame values: the screen's cell buffer, selection,
// cursor, hyperlink range, window chrome rectangles, and image tiles.
// Each DrawFrame call uploads whatever the frame's dirty flags mark as
// changed and renders the grid in a single render pass.
//
// Glyph rasterization is out of scope; callers rasterize cell-sized
// alpha bitmaps (see the glyph package) and upload them through
// UploadSprite, then reference the returned positions from their
// cells.
package render
