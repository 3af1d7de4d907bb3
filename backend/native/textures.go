// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/batch"
)

// gpuTexture is a sampled texture with its bind group.
type gpuTexture struct {
	format batch.Format
	size   image.Point
	tex    hal.Texture
	view   hal.TextureView
	group  hal.BindGroup
}

func halFormat(f batch.Format) gputypes.TextureFormat {
	if f == batch.FormatR8 {
		return gputypes.TextureFormatR8Unorm
	}
	return gputypes.TextureFormatRGBA8Unorm
}

func validateUpload(u batch.Upload) error {
	bounds := image.Rectangle{Max: u.Size}
	switch {
	case u.Texture == 0:
		return fmt.Errorf("%w: texture id 0", backend.ErrInvalidUpload)
	case u.Size.X <= 0 || u.Size.Y <= 0:
		return fmt.Errorf("%w: texture %d size %v", backend.ErrInvalidUpload, u.Texture, u.Size)
	case u.Region.Empty() || !u.Region.In(bounds):
		return fmt.Errorf("%w: texture %d region %v outside %v", backend.ErrInvalidUpload, u.Texture, u.Region, bounds)
	case len(u.Pix) != u.Region.Dx()*u.Region.Dy()*u.Format.BytesPerPixel():
		return fmt.Errorf("%w: texture %d has %d bytes for region %v", backend.ErrInvalidUpload, u.Texture, len(u.Pix), u.Region)
	}
	return nil
}

// upload writes u, creating or recreating the texture as needed.
func (b *Backend) upload(u batch.Upload) error {
	if err := validateUpload(u); err != nil {
		return err
	}
	t := b.textures[u.Texture]
	if t == nil || t.size != u.Size || t.format != u.Format {
		if old := t; old != nil {
			b.release(func() { b.destroyTexture(old) })
			delete(b.textures, u.Texture)
		}
		var err error
		if t, err = b.createTexture(u.Format, u.Size); err != nil {
			return fmt.Errorf("native: texture %d: %w", u.Texture, err)
		}
		b.textures[u.Texture] = t
	}

	w, h := u.Region.Dx(), u.Region.Dy()
	err := b.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture: t.tex,
			Origin:  hal.Origin3D{X: uint32(u.Region.Min.X), Y: uint32(u.Region.Min.Y)},
			Aspect:  gputypes.TextureAspectAll,
		},
		u.Pix,
		&hal.ImageDataLayout{
			BytesPerRow:  uint32(w * u.Format.BytesPerPixel()),
			RowsPerImage: uint32(h),
		},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("native: write texture %d: %w", u.Texture, err)
	}
	return nil
}

func (b *Backend) createTexture(format batch.Format, size image.Point) (*gpuTexture, error) {
	t := &gpuTexture{format: format, size: size}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: "stage_texture",
		Size: hal.Extent3D{
			Width:              uint32(size.X),
			Height:             uint32(size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        halFormat(format),
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture: %w", err)
	}
	t.tex = tex

	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "stage_texture_view"})
	if err != nil {
		b.destroyTexture(t)
		return nil, fmt.Errorf("create texture view: %w", err)
	}
	t.view = view

	group, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "stage_bind_group",
		Layout: b.pipelines.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: b.uniforms.NativeHandle(), Offset: 0, Size: uniformSize,
			}},
			{Binding: 1, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 2, Resource: gputypes.SamplerBinding{Sampler: b.pipelines.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		b.destroyTexture(t)
		return nil, fmt.Errorf("create bind group: %w", err)
	}
	t.group = group
	return t, nil
}

func (b *Backend) destroyTexture(t *gpuTexture) {
	if t.group != nil {
		b.device.DestroyBindGroup(t.group)
	}
	if t.view != nil {
		b.device.DestroyTextureView(t.view)
	}
	if t.tex != nil {
		b.device.DestroyTexture(t.tex)
	}
}

// target is the offscreen color attachment.
type target struct {
	size image.Point
	tex  hal.Texture
	view hal.TextureView
}

func (b *Backend) ensureTarget(size image.Point) error {
	if b.target != nil && b.target.size == size {
		return nil
	}
	if old := b.target; old != nil {
		b.release(func() { b.destroyTarget(old) })
		b.target = nil
	}
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label: "stage_target",
		Size: hal.Extent3D{
			Width:              uint32(size.X),
			Height:             uint32(size.Y),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        b.cfg.Format,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		return fmt.Errorf("native: create target %v: %w", size, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{Label: "stage_target_view"})
	if err != nil {
		b.device.DestroyTexture(tex)
		return fmt.Errorf("native: create target view: %w", err)
	}
	b.target = &target{size: size, tex: tex, view: view}
	return nil
}

func (b *Backend) destroyTarget(t *target) {
	b.device.DestroyTextureView(t.view)
	b.device.DestroyTexture(t.tex)
}

// ensureBuffer returns buf if it holds at least size bytes, otherwise a
// new buffer with doubled capacity.
func (b *Backend) ensureBuffer(buf hal.Buffer, capacity *uint64, size uint64, usage gputypes.BufferUsage, label string) (hal.Buffer, error) {
	if buf != nil && *capacity >= size {
		return buf, nil
	}
	newCap := max(*capacity*2, size, 4096)
	nb, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  newCap,
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return buf, fmt.Errorf("native: create %s (%d bytes): %w", label, newCap, err)
	}
	if old := buf; old != nil {
		b.release(func() { b.device.DestroyBuffer(old) })
	}
	*capacity = newCap
	return nb, nil
}
