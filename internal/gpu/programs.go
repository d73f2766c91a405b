//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/cellgrid"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Uniform buffer sizes. The cursor block is four corner floats plus a
// 16-byte aligned color vec4; the border block is the viewport size
// padded to a vec4.
const (
	cursorUniformSize = 32
	borderUniformSize = 16
)

// cellPrograms owns the shared cell shader and the four pipelines built
// from it. All four share one bind group layout (render data uniform,
// sprite array, sampler) and one instanced vertex layout; they differ
// only in fragment entry point and blend state, which is how the
// original's mid-pass blend switching maps onto baked pipeline state.
type cellPrograms struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler

	cell       hal.RenderPipeline // opaque single-pass composite
	background hal.RenderPipeline
	special    hal.RenderPipeline // decorations + block cursor, premultiplied
	foreground hal.RenderPipeline // glyphs, premultiplied
}

func newCellPrograms(device hal.Device, format gputypes.TextureFormat) (*cellPrograms, error) {
	p := &cellPrograms{device: device}

	shader, err := compileShader(device, "cell_shader", cellShaderSource)
	if err != nil {
		return nil, err
	}
	p.shader = shader

	// Binding 0: CellRenderData (uniform, vertex+fragment)
	// Binding 1: sprite atlas (texture_2d_array, fragment)
	// Binding 2: sampler (fragment)
	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cell_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2DArray,
				},
			},
			{
				Binding:    2,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create cell bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cell_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create cell pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	// Glyph sprites are sampled at exactly one texel per fragment;
	// nearest filtering keeps cell edges crisp.
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "cell_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create cell sampler: %w", err)
	}
	p.sampler = sampler

	premul := gputypes.BlendStatePremultiplied()
	variants := []struct {
		dst   *hal.RenderPipeline
		label string
		entry string
		blend *gputypes.BlendState
	}{
		{&p.cell, "cell_pipeline", "fs_cell", nil},
		{&p.background, "cell_background_pipeline", "fs_background", nil},
		{&p.special, "cell_special_pipeline", "fs_special", &premul},
		{&p.foreground, "cell_foreground_pipeline", "fs_foreground", &premul},
	}
	for _, v := range variants {
		pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  v.label,
			Layout: p.pipeLayout,
			Vertex: hal.VertexState{
				Module:     p.shader,
				EntryPoint: "vs_cell",
				Buffers:    cellVertexLayout(),
			},
			Fragment: &hal.FragmentState{
				Module:     p.shader,
				EntryPoint: v.entry,
				Targets: []gputypes.ColorTargetState{
					{Format: format, Blend: v.blend, WriteMask: gputypes.ColorWriteMaskAll},
				},
			},
			Primitive: gputypes.PrimitiveState{
				Topology: gputypes.PrimitiveTopologyTriangleStrip,
				CullMode: gputypes.CullModeNone,
			},
			Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		})
		if err != nil {
			p.destroy()
			return nil, fmt.Errorf("create %s: %w", v.label, err)
		}
		*v.dst = pipeline
	}

	return p, nil
}

// createBindGroup builds the frame bind group for the current atlas
// view. The caller caches it against the atlas generation.
func (p *cellPrograms) createBindGroup(uniform hal.Buffer, atlasView hal.TextureView) (hal.BindGroup, error) {
	return p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cell_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: renderDataSize}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: atlasView.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
}

// destroy releases all resources in reverse creation order.
func (p *cellPrograms) destroy() {
	if p.device == nil {
		return
	}
	for _, pl := range []*hal.RenderPipeline{&p.foreground, &p.special, &p.background, &p.cell} {
		if *pl != nil {
			p.device.DestroyRenderPipeline(*pl)
			*pl = nil
		}
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// cellVertexLayout returns the instanced vertex layout shared by all
// cell pipelines. Matches CellInput in cell.wgsl:
//
//	location 0: colors (vec3<u32>), cell buffer offset 0
//	location 1: sprite_coords (vec4<u32>, from u16x4), offset 12
//	location 2: is_selected (f32), own buffer
func cellVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: cellgrid.CellByteSize,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatUint32x3, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUint16x4, Offset: 12, ShaderLocation: 1},
			},
		},
		{
			ArrayStride: 4,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32, Offset: 0, ShaderLocation: 2},
			},
		},
	}
}

// borderProgram owns the window chrome pipeline.
type borderProgram struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.RenderPipeline
}

func newBorderProgram(device hal.Device, format gputypes.TextureFormat) (*borderProgram, error) {
	p := &borderProgram{device: device}

	shader, err := compileShader(device, "border_shader", borderShaderSource)
	if err != nil {
		return nil, err
	}
	p.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "border_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create border bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "border_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create border pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	premul := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "border_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    borderVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: format, Blend: &premul, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create border pipeline: %w", err)
	}
	p.pipeline = pipeline

	return p, nil
}

func (p *borderProgram) createBindGroup(uniform hal.Buffer) (hal.BindGroup, error) {
	return p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "border_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: borderUniformSize}},
		},
	})
}

func (p *borderProgram) destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// borderVertexLayout matches RectInput in border.wgsl: one instanced
// record of four u32 pixel coordinates plus a packed color.
func borderVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: borderRectStride,
			StepMode:    gputypes.VertexStepModeInstance,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatUint32x4, Offset: 0, ShaderLocation: 0},
				{Format: gputypes.VertexFormatUint32, Offset: 16, ShaderLocation: 1},
			},
		},
	}
}

// cursorProgram owns the focused (solid quad) and unfocused (outline
// strip) cursor pipelines.
type cursorProgram struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	block      hal.RenderPipeline
	outline    hal.RenderPipeline
}

func newCursorProgram(device hal.Device, format gputypes.TextureFormat) (*cursorProgram, error) {
	p := &cursorProgram{device: device}

	shader, err := compileShader(device, "cursor_shader", cursorShaderSource)
	if err != nil {
		return nil, err
	}
	p.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "cursor_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create cursor bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "cursor_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create cursor pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	premul := gputypes.BlendStatePremultiplied()
	variants := []struct {
		dst      *hal.RenderPipeline
		label    string
		entry    string
		topology gputypes.PrimitiveTopology
	}{
		{&p.block, "cursor_block_pipeline", "vs_block", gputypes.PrimitiveTopologyTriangleStrip},
		{&p.outline, "cursor_outline_pipeline", "vs_outline", gputypes.PrimitiveTopologyLineStrip},
	}
	for _, v := range variants {
		pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
			Label:  v.label,
			Layout: p.pipeLayout,
			Vertex: hal.VertexState{
				Module:     p.shader,
				EntryPoint: v.entry,
			},
			Fragment: &hal.FragmentState{
				Module:     p.shader,
				EntryPoint: "fs_main",
				Targets: []gputypes.ColorTargetState{
					{Format: format, Blend: &premul, WriteMask: gputypes.ColorWriteMaskAll},
				},
			},
			Primitive: gputypes.PrimitiveState{
				Topology: v.topology,
				CullMode: gputypes.CullModeNone,
			},
			Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
		})
		if err != nil {
			p.destroy()
			return nil, fmt.Errorf("create %s: %w", v.label, err)
		}
		*v.dst = pipeline
	}

	return p, nil
}

func (p *cursorProgram) createBindGroup(uniform hal.Buffer) (hal.BindGroup, error) {
	return p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "cursor_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: cursorUniformSize}},
		},
	})
}

func (p *cursorProgram) destroy() {
	if p.device == nil {
		return
	}
	if p.outline != nil {
		p.device.DestroyRenderPipeline(p.outline)
		p.outline = nil
	}
	if p.block != nil {
		p.device.DestroyRenderPipeline(p.block)
		p.block = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// graphicsProgram owns the image tile pipeline. Bind groups are built
// per image texture and cached by the renderer.
type graphicsProgram struct {
	device hal.Device

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	pipeline   hal.RenderPipeline
}

func newGraphicsProgram(device hal.Device, format gputypes.TextureFormat) (*graphicsProgram, error) {
	p := &graphicsProgram{device: device}

	shader, err := compileShader(device, "graphics_shader", graphicsShaderSource)
	if err != nil {
		return nil, err
	}
	p.shader = shader

	bindLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "graphics_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create graphics bind layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "graphics_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create graphics pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "graphics_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create graphics sampler: %w", err)
	}
	p.sampler = sampler

	premul := gputypes.BlendStatePremultiplied()
	pipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "graphics_pipeline",
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    graphicsVertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{
				{Format: format, Blend: &premul, WriteMask: gputypes.ColorWriteMaskAll},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{Count: 1, Mask: 0xFFFFFFFF},
	})
	if err != nil {
		p.destroy()
		return nil, fmt.Errorf("create graphics pipeline: %w", err)
	}
	p.pipeline = pipeline

	return p, nil
}

func (p *graphicsProgram) createBindGroup(view hal.TextureView) (hal.BindGroup, error) {
	return p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "graphics_bind_group",
		Layout: p.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()}},
		},
	})
}

func (p *graphicsProgram) destroy() {
	if p.device == nil {
		return
	}
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.shader != nil {
		p.device.DestroyShaderModule(p.shader)
		p.shader = nil
	}
}

// graphicsVertexLayout matches vs_main in graphics.wgsl: four floats
// per vertex, position in xy and texture coordinates in zw.
func graphicsVertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: 16,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x4, Offset: 0, ShaderLocation: 0},
			},
		},
	}
}
