//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// borderRectStride is the byte stride per border rect instance:
// four u32 pixel coordinates plus one packed color.
const borderRectStride = 20

// maxBorderRects bounds the batch. Window chrome is a handful of
// rectangles; hitting the cap means the caller forgot to clear.
const maxBorderRects = 1024

// ErrBorderOverflow is returned when a submit would exceed the batch
// capacity.
var ErrBorderOverflow = errors.New("gpu: border rect batch overflow")

// BorderBatch accumulates window chrome rectangles and draws them in a
// single instanced call. Submit replaces the batch contents; a rect
// with all-zero geometry is the reset sentinel and discards everything
// accumulated before it in the same submission.
type BorderBatch struct {
	device hal.Device
	queue  hal.Queue
	prog   *borderProgram

	vertexBuf  hal.Buffer
	uniformBuf hal.Buffer
	bindGroup  hal.BindGroup

	count                int
	viewportW, viewportH uint32
}

func newBorderBatch(device hal.Device, queue hal.Queue, prog *borderProgram) (*BorderBatch, error) {
	b := &BorderBatch{device: device, queue: queue, prog: prog}

	vertexBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "border_rects",
		Size:  borderRectStride * maxBorderRects,
		Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create border rect buffer: %w", err)
	}
	b.vertexBuf = vertexBuf

	uniformBuf, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "border_uniform",
		Size:  borderUniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		b.destroy()
		return nil, fmt.Errorf("create border uniform buffer: %w", err)
	}
	b.uniformBuf = uniformBuf

	bindGroup, err := prog.createBindGroup(uniformBuf)
	if err != nil {
		b.destroy()
		return nil, fmt.Errorf("create border bind group: %w", err)
	}
	b.bindGroup = bindGroup

	return b, nil
}

// Submit replaces the batch with rects. The all-zero sentinel resets
// the batch mid-stream, mirroring how chrome updates arrive: a clear
// marker followed by the current set of rectangles.
func (b *BorderBatch) Submit(rects []cellgrid.BorderRect) error {
	kept := make([]cellgrid.BorderRect, 0, len(rects))
	for _, r := range rects {
		if r.IsClear() {
			kept = kept[:0]
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > maxBorderRects {
		return fmt.Errorf("%w: %d rects, capacity %d", ErrBorderOverflow, len(kept), maxBorderRects)
	}

	if len(kept) > 0 {
		data := make([]byte, len(kept)*borderRectStride)
		off := 0
		for _, r := range kept {
			binary.LittleEndian.PutUint32(data[off:], r.Left)
			binary.LittleEndian.PutUint32(data[off+4:], r.Top)
			binary.LittleEndian.PutUint32(data[off+8:], r.Right)
			binary.LittleEndian.PutUint32(data[off+12:], r.Bottom)
			binary.LittleEndian.PutUint32(data[off+16:], r.Color)
			off += borderRectStride
		}
		b.queue.WriteBuffer(b.vertexBuf, 0, data)
	}
	b.count = len(kept)
	return nil
}

// Clear empties the batch without touching the GPU buffer.
func (b *BorderBatch) Clear() { b.count = 0 }

// Len reports the number of rects that the next draw will render.
func (b *BorderBatch) Len() int { return b.count }

// setViewport updates the pixel-to-NDC uniform when the size changes.
func (b *BorderBatch) setViewport(w, h uint32) {
	if w == b.viewportW && h == b.viewportH {
		return
	}
	b.viewportW, b.viewportH = w, h
	data := make([]byte, borderUniformSize)
	binary.LittleEndian.PutUint32(data[0:], math.Float32bits(float32(w)))
	binary.LittleEndian.PutUint32(data[4:], math.Float32bits(float32(h)))
	b.queue.WriteBuffer(b.uniformBuf, 0, data)
}

// recordDraws records the instanced rect draw. No-op for an empty batch.
func (b *BorderBatch) recordDraws(rp hal.RenderPassEncoder) {
	if b.count == 0 {
		return
	}
	rp.SetPipeline(b.prog.pipeline)
	rp.SetBindGroup(0, b.bindGroup, nil)
	rp.SetVertexBuffer(0, b.vertexBuf, 0)
	rp.Draw(4, uint32(b.count), 0, 0)
}

func (b *BorderBatch) destroy() {
	if b.bindGroup != nil {
		b.device.DestroyBindGroup(b.bindGroup)
		b.bindGroup = nil
	}
	if b.uniformBuf != nil {
		b.device.DestroyBuffer(b.uniformBuf)
		b.uniformBuf = nil
	}
	if b.vertexBuf != nil {
		b.device.DestroyBuffer(b.vertexBuf)
		b.vertexBuf = nil
	}
	b.count = 0
}
