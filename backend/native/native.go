// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/batch"
)

func init() {
	backend.Register(backend.NameNative, func() backend.Backend {
		b, err := Open(Config{})
		if err != nil {
			stage.Logger().Debug("native backend unavailable", "err", err)
			return nil
		}
		return b
	})
}

// Config holds native backend options.
type Config struct {
	// Format is the color target format. Zero means BGRA8Unorm.
	Format gputypes.TextureFormat

	// SPIRV hands the shader to the device as SPIR-V compiled by naga
	// instead of WGSL source.
	SPIRV bool

	// AllowNoop lets Open settle for the noop HAL backend. Headless tests
	// use it; applications normally want a real adapter or nothing.
	AllowNoop bool

	// Width and Height size the target used by frames without a viewport.
	Width, Height int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{Format: gputypes.TextureFormatBGRA8Unorm}
}

// Stats describes GPU objects held by the backend.
type Stats struct {
	Textures    int
	Pipelines   int
	InFlight    int
	Submissions uint64
	Recoveries  int
}

type submission struct {
	index uint64
	frame uint64
	cmd   hal.CommandBuffer
}

type deferred struct {
	frame uint64
	fn    func()
}

// Backend renders frames with a HAL device.
type Backend struct {
	mu sync.Mutex

	cfg      Config
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance // nil for borrowed devices
	adapter  hal.Adapter  // nil for borrowed devices

	pipelines *pipelines
	uniforms  hal.Buffer
	viewport  image.Point
	textures  map[stage.TextureID]*gpuTexture
	target    *target
	size      image.Point

	vertices, indices     hal.Buffer
	vertexCap, indexCap   uint64
	vertexData, indexData []byte

	inFlight  []submission
	garbage   []deferred
	submitted uint64
	retired   uint64

	submissions uint64
	recoveries  int
	lost        bool
	closed      bool
}

var _ backend.Backend = (*Backend)(nil)

// New creates a backend on a device owned by the caller. Close releases
// the backend's objects but leaves the device alive.
func New(device hal.Device, queue hal.Queue, cfg Config) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("native: nil device or queue")
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = gputypes.TextureFormatBGRA8Unorm
	}
	b := &Backend{
		cfg:      cfg,
		device:   device,
		queue:    queue,
		textures: make(map[stage.TextureID]*gpuTexture),
		size:     image.Pt(cfg.Width, cfg.Height),
	}
	if err := b.init(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewFromProvider creates a backend on the device of a host application
// that exposes it through gpucontext. The provider must hand out HAL
// objects; its surface format becomes the target format unless cfg sets
// one.
func NewFromProvider(p gpucontext.DeviceProvider, cfg Config) (*Backend, error) {
	device, ok := p.Device().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: provider device %T is not a hal.Device", backend.ErrBackendNotAvailable, p.Device())
	}
	queue, ok := p.Queue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: provider queue %T is not a hal.Queue", backend.ErrBackendNotAvailable, p.Queue())
	}
	if cfg.Format == gputypes.TextureFormatUndefined {
		cfg.Format = p.SurfaceFormat()
	}
	return New(device, queue, cfg)
}

// Open selects the best registered HAL backend, opens its first adapter
// and creates a Backend that owns the resulting device.
func Open(cfg Config) (*Backend, error) {
	api, err := hal.SelectBestBackend()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrBackendNotAvailable, err)
	}
	if api.Variant() == gputypes.BackendEmpty && !cfg.AllowNoop {
		return nil, fmt.Errorf("%w: only the noop HAL backend is registered", backend.ErrBackendNotAvailable)
	}
	instance, err := api.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("native: create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters", backend.ErrBackendNotAvailable)
	}
	adapter := adapters[0].Adapter
	od, err := adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("native: open device: %w", err)
	}
	b, err := New(od.Device, od.Queue, cfg)
	if err != nil {
		od.Device.Destroy()
		instance.Destroy()
		return nil, err
	}
	b.instance = instance
	b.adapter = adapter
	stage.Logger().Info("native backend opened",
		"api", api.Variant().String(),
		"adapter", adapters[0].Info.Name)
	return b, nil
}

// init creates the device objects that live as long as the device.
func (b *Backend) init() error {
	src, err := shaderSource(b.cfg.SPIRV)
	if err != nil {
		return err
	}
	p, err := newPipelines(b.device, src, b.cfg.Format)
	if err != nil {
		return err
	}
	uniforms, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "stage_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		p.destroy()
		return fmt.Errorf("native: create uniform buffer: %w", err)
	}
	b.pipelines = p
	b.uniforms = uniforms
	b.viewport = image.Point{}
	return nil
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.NameNative }

// Submit uploads the frame's textures, draws its batches in one render
// pass and submits the command buffer without waiting for the GPU.
func (b *Backend) Submit(ctx context.Context, frame *batch.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.closed:
		return backend.ErrClosed
	case b.lost:
		return fmt.Errorf("native: submit frame %d: %w", frame.Number, stage.ErrDeviceLost)
	}
	b.collect()

	for _, u := range frame.Uploads {
		if err := b.upload(u); err != nil {
			return b.fail(frame, err)
		}
	}
	for i := range frame.Batches {
		if _, ok := b.textures[frame.Batches[i].Texture]; !ok {
			return fmt.Errorf("native: frame %d: %w: %d in batch %s",
				frame.Number, backend.ErrUnknownTexture, frame.Batches[i].Texture, frame.Batches[i].Key)
		}
	}

	size := frame.Viewport
	if size.X <= 0 || size.Y <= 0 {
		size = b.size
	}
	if size.X <= 0 || size.Y <= 0 {
		return fmt.Errorf("native: frame %d: no target size", frame.Number)
	}
	if err := b.ensureTarget(size); err != nil {
		return b.fail(frame, err)
	}
	if err := b.writeUniforms(size); err != nil {
		return b.fail(frame, err)
	}
	if err := b.writeGeometry(frame); err != nil {
		return b.fail(frame, err)
	}

	cmd, err := b.encode(frame)
	if err != nil {
		return b.fail(frame, err)
	}
	index, err := b.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		b.device.FreeCommandBuffer(cmd)
		return b.fail(frame, fmt.Errorf("native: submit: %w", err))
	}
	b.inFlight = append(b.inFlight, submission{index: index, frame: frame.Number, cmd: cmd})
	b.submitted = max(b.submitted, frame.Number)
	b.submissions++
	return nil
}

// fail maps a HAL device loss onto stage.ErrDeviceLost and marks the
// backend lost until Recover.
func (b *Backend) fail(frame *batch.Frame, err error) error {
	if errors.Is(err, hal.ErrDeviceLost) {
		b.lost = true
		stage.Logger().Warn("native device lost", "frame", frame.Number, "err", err)
		return fmt.Errorf("native: frame %d: %w: %w", frame.Number, stage.ErrDeviceLost, err)
	}
	return fmt.Errorf("native: frame %d: %w", frame.Number, err)
}

func (b *Backend) writeUniforms(size image.Point) error {
	if b.viewport == size {
		return nil
	}
	var buf [uniformSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(float32(size.X)))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(float32(size.Y)))
	if err := b.queue.WriteBuffer(b.uniforms, 0, buf[:]); err != nil {
		return fmt.Errorf("native: write uniforms: %w", err)
	}
	b.viewport = size
	return nil
}

// writeGeometry packs every batch into one vertex and one index buffer.
func (b *Backend) writeGeometry(frame *batch.Frame) error {
	b.vertexData = b.vertexData[:0]
	b.indexData = b.indexData[:0]
	for i := range frame.Batches {
		b.vertexData = batch.EncodeVertices(b.vertexData, frame.Batches[i].Vertices)
		b.indexData = batch.EncodeIndices(b.indexData, frame.Batches[i].Indices)
	}
	if len(b.indexData) == 0 {
		return nil
	}

	var err error
	b.vertices, err = b.ensureBuffer(b.vertices, &b.vertexCap, uint64(len(b.vertexData)), gputypes.BufferUsageVertex, "stage_vertices")
	if err != nil {
		return err
	}
	b.indices, err = b.ensureBuffer(b.indices, &b.indexCap, uint64(len(b.indexData)), gputypes.BufferUsageIndex, "stage_indices")
	if err != nil {
		return err
	}
	if err := b.queue.WriteBuffer(b.vertices, 0, b.vertexData); err != nil {
		return fmt.Errorf("native: write vertices: %w", err)
	}
	if err := b.queue.WriteBuffer(b.indices, 0, b.indexData); err != nil {
		return fmt.Errorf("native: write indices: %w", err)
	}
	return nil
}

func (b *Backend) encode(frame *batch.Frame) (hal.CommandBuffer, error) {
	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "stage_frame"})
	if err != nil {
		return nil, fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("stage_frame"); err != nil {
		return nil, fmt.Errorf("native: begin encoding: %w", err)
	}

	c := frame.Clear
	pass := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "stage_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{{
			View:       b.target.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: c.R * c.A, G: c.G * c.A, B: c.B * c.A, A: c.A},
		}},
	})

	var firstIndex uint32
	var baseVertex int32
	for i := range frame.Batches {
		bt := &frame.Batches[i]
		if len(bt.Indices) == 0 {
			continue
		}
		tex := b.textures[bt.Texture]
		pipeline, err := b.pipelines.get(pipelineKey{blend: bt.Blend, format: tex.format})
		if err != nil {
			pass.End()
			encoder.DiscardEncoding()
			return nil, err
		}
		pass.SetPipeline(pipeline)
		pass.SetBindGroup(0, tex.group, nil)
		pass.SetVertexBuffer(0, b.vertices, 0)
		pass.SetIndexBuffer(b.indices, gputypes.IndexFormatUint32, 0)
		pass.DrawIndexed(uint32(len(bt.Indices)), 1, firstIndex, baseVertex, 0)
		firstIndex += uint32(len(bt.Indices))
		baseVertex += int32(len(bt.Vertices))
	}
	pass.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("native: end encoding: %w", err)
	}
	return cmd, nil
}

// Retired returns the newest frame whose submission the queue reports
// complete.
func (b *Backend) Retired() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.collect()
	return b.retired
}

// collect retires completed submissions and runs deferred destruction
// that no in-flight frame can still reference.
func (b *Backend) collect() {
	if b.closed || b.lost {
		return
	}
	done := b.queue.PollCompleted()
	n := 0
	for _, s := range b.inFlight {
		if s.index > done {
			break
		}
		b.device.FreeCommandBuffer(s.cmd)
		b.retired = max(b.retired, s.frame)
		n++
	}
	b.inFlight = b.inFlight[n:]
	if len(b.inFlight) == 0 {
		b.retired = max(b.retired, b.submitted)
	}

	keep := b.garbage[:0]
	for _, g := range b.garbage {
		if g.frame <= b.retired {
			g.fn()
			continue
		}
		keep = append(keep, g)
	}
	b.garbage = keep
}

// release runs fn once every frame submitted so far has retired.
func (b *Backend) release(fn func()) {
	b.garbage = append(b.garbage, deferred{frame: b.submitted, fn: fn})
}

// Resize sets the target size used for frames without a viewport.
func (b *Backend) Resize(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("native: invalid size %dx%d", width, height)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}
	b.size = image.Pt(width, height)
	return nil
}

// Recover drops every device object and creates them again. A backend
// created by Open also reopens the device on its adapter; a borrowed
// device is assumed to have been recovered by its owner.
func (b *Backend) Recover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return backend.ErrClosed
	}

	b.releaseAll()
	if b.adapter != nil {
		b.device.Destroy()
		od, err := b.adapter.Open(0, gputypes.DefaultLimits())
		if err != nil {
			return fmt.Errorf("native: reopen device: %w", err)
		}
		b.device, b.queue = od.Device, od.Queue
	}
	if err := b.init(); err != nil {
		return fmt.Errorf("native: recover: %w", err)
	}
	b.lost = false
	b.retired = b.submitted
	b.recoveries++
	stage.Logger().Info("native device recovered", "recoveries", b.recoveries)
	return nil
}

// releaseAll destroys every device object. In-flight work is abandoned.
func (b *Backend) releaseAll() {
	for _, s := range b.inFlight {
		b.device.FreeCommandBuffer(s.cmd)
	}
	b.inFlight = nil
	for _, g := range b.garbage {
		g.fn()
	}
	b.garbage = nil
	for id, t := range b.textures {
		b.destroyTexture(t)
		delete(b.textures, id)
	}
	if b.target != nil {
		b.destroyTarget(b.target)
		b.target = nil
	}
	for _, buf := range []hal.Buffer{b.vertices, b.indices, b.uniforms} {
		if buf != nil {
			b.device.DestroyBuffer(buf)
		}
	}
	b.vertices, b.indices, b.uniforms = nil, nil, nil
	b.vertexCap, b.indexCap = 0, 0
	if b.pipelines != nil {
		b.pipelines.destroy()
		b.pipelines = nil
	}
}

// Close waits for the GPU, then releases all objects. Devices opened by
// Open are destroyed too.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	var err error
	if !b.lost {
		if err = b.device.WaitIdle(); err != nil {
			err = fmt.Errorf("native: wait idle: %w", err)
		}
	}
	b.releaseAll()
	if b.adapter != nil {
		b.device.Destroy()
		b.instance.Destroy()
	}
	b.closed = true
	return err
}

// Target returns the color target of the last frame and its size. The
// view is valid until the next Submit, Recover or Close.
func (b *Backend) Target() (hal.TextureView, image.Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.target == nil {
		return nil, image.Point{}
	}
	return b.target.view, b.target.size
}

// Stats returns object counts.
func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	st := Stats{
		Textures:    len(b.textures),
		InFlight:    len(b.inFlight),
		Submissions: b.submissions,
		Recoveries:  b.recoveries,
	}
	if b.pipelines != nil {
		st.Pipelines = len(b.pipelines.byKey)
	}
	return st
}
