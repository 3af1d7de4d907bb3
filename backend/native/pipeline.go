// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/batch"
)

// uniformSize is the byte size of the uniform buffer.
// Layout: viewport (vec2<f32>) + padding (vec2<f32>) = 16 bytes.
const uniformSize = 16

type pipelineKey struct {
	blend  stage.BlendMode
	format batch.Format
}

// pipelines owns the shader, layouts and sampler shared by every draw,
// plus one render pipeline per blend mode and texture format, created on
// first use.
type pipelines struct {
	device hal.Device
	target gputypes.TextureFormat

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	sampler    hal.Sampler
	byKey      map[pipelineKey]hal.RenderPipeline
}

func newPipelines(device hal.Device, src hal.ShaderSource, target gputypes.TextureFormat) (*pipelines, error) {
	p := &pipelines{
		device: device,
		target: target,
		byKey:  make(map[pipelineKey]hal.RenderPipeline),
	}
	if err := p.create(src); err != nil {
		p.destroy()
		return nil, err
	}
	return p, nil
}

func (p *pipelines) create(src hal.ShaderSource) error {
	shader, err := p.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "stage_shader",
		Source: src,
	})
	if err != nil {
		return fmt.Errorf("native: create shader module: %w", err)
	}
	p.shader = shader

	// Bind group layout:
	//   Binding 0: Uniforms (uniform buffer, vertex)
	//   Binding 1: texture_2d (fragment)
	//   Binding 2: sampler (fragment)
	bindLayout, err := p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "stage_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
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
		return fmt.Errorf("native: create bind group layout: %w", err)
	}
	p.bindLayout = bindLayout

	pipeLayout, err := p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "stage_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("native: create pipeline layout: %w", err)
	}
	p.pipeLayout = pipeLayout

	// Atlas regions and sprites map texels to pixels 1:1, so nearest
	// filtering matches the software backend.
	sampler, err := p.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "stage_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		return fmt.Errorf("native: create sampler: %w", err)
	}
	p.sampler = sampler
	return nil
}

// get returns the pipeline for key, creating it on first use.
func (p *pipelines) get(key pipelineKey) (hal.RenderPipeline, error) {
	if rp, ok := p.byKey[key]; ok {
		return rp, nil
	}
	entry := "fs_rgba"
	if key.format == batch.FormatR8 {
		entry = "fs_mask"
	}
	blend := key.blend.State()
	rp, err := p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("stage_pipeline_%s_%s", key.blend, entry),
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.shader,
			EntryPoint: "vs_main",
			Buffers:    batch.VertexLayout(),
		},
		Fragment: &hal.FragmentState{
			Module:     p.shader,
			EntryPoint: entry,
			Targets: []gputypes.ColorTargetState{
				{
					Format:    p.target,
					Blend:     &blend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("native: create pipeline %s/%s: %w", key.blend, entry, err)
	}
	p.byKey[key] = rp
	return rp, nil
}

// destroy releases everything in reverse creation order.
func (p *pipelines) destroy() {
	for key, rp := range p.byKey {
		p.device.DestroyRenderPipeline(rp)
		delete(p.byKey, key)
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
