// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/batch"
	"github.com/gogpu/stage/resource"
	"github.com/gogpu/stage/scene"
	"github.com/gogpu/stage/text"
)

// ErrClosed is returned by Tick after Close.
var ErrClosed = errors.New("engine: closed")

// FrameInfo describes the frame being built.
type FrameInfo struct {
	// Number is the frame number passed to the backend.
	Number uint64
	// Delta is the time since the previous tick, zero on the first one.
	Delta time.Duration
	// Elapsed is the time since the first tick.
	Elapsed time.Duration
	// Viewport is the backbuffer size in physical pixels.
	Viewport image.Point
	// ScaleFactor is the display's physical pixels per logical pixel.
	ScaleFactor float64
	// Loaded lists the loads completed at this tick's drain, Ready or
	// Failed.
	Loaded []*resource.Handle
}

// UpdateFunc is called once per tick with exclusive access to the arena.
// Node ids kept across ticks must be checked with Arena.Contains after
// removals. A returned error aborts the tick before compilation.
type UpdateFunc func(ctx context.Context, arena *scene.Arena, info FrameInfo) error

// Stats describes the engine's recent work.
type Stats struct {
	Frames        uint64
	Batches       int
	DrawCalls     int
	Vertices      int
	Placeholders  int
	Tiles         int
	GlyphHits     uint64
	GlyphMisses   uint64
	GlyphsDropped int
	DeviceLost    int
	Recoveries    int
	PendingLoads  int
}

// Engine owns the scene, the caches and the frame loop. Tick, Run, Resize
// and Close must be called from one goroutine.
type Engine struct {
	opts     options
	update   UpdateFunc
	arena    *scene.Arena
	fonts    *text.FontRegistry
	compiler *batch.Compiler
	loader   *resource.Loader
	backend  backend.Backend

	viewport image.Point
	scale    float64
	camera   scene.Camera

	fontIDs map[resource.ID]stage.FontID

	start, last time.Time
	lost        bool
	closed      bool
	stats       Stats
}

// New creates an engine. update may be nil.
func New(update UpdateFunc, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := o.backend
	if b == nil {
		var err error
		if b, err = backend.Default(); err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
	}
	loader := o.loader
	if loader == nil {
		loader = resource.NewLoader()
	}
	fonts := o.fonts
	if fonts == nil {
		fonts = text.NewFontRegistry()
	}
	shaper := text.NewShaper(fonts, o.layoutSize)
	glyphs := text.NewGlyphCacheWithConfig(fonts, nil, o.glyphs)

	e := &Engine{
		opts:     o,
		update:   update,
		arena:    scene.NewArena(),
		fonts:    fonts,
		compiler: batch.NewCompilerWithConfig(shaper, glyphs, o.compiler),
		loader:   loader,
		backend:  b,
		scale:    o.scale,
		camera:   o.camera,
		fontIDs:  make(map[resource.ID]stage.FontID),
	}
	if o.viewport.X > 0 && o.viewport.Y > 0 {
		if err := e.resize(o.viewport, o.scale); err != nil {
			return nil, err
		}
	}
	stage.Logger().Info("engine created", "backend", b.Name(), "viewport", o.viewport, "fps", o.targetFPS)
	return e, nil
}

// Arena returns the scene arena. Mutate it from the update callback or
// between ticks.
func (e *Engine) Arena() *scene.Arena { return e.arena }

// Fonts returns the font registry.
func (e *Engine) Fonts() *text.FontRegistry { return e.fonts }

// Loader returns the resource loader.
func (e *Engine) Loader() *resource.Loader { return e.loader }

// Backend returns the backend.
func (e *Engine) Backend() backend.Backend { return e.backend }

// Compiler returns the batch compiler.
func (e *Engine) Compiler() *batch.Compiler { return e.compiler }

// Camera returns the camera.
func (e *Engine) Camera() scene.Camera { return e.camera }

// SetCamera sets the camera used from the next tick.
func (e *Engine) SetCamera(c scene.Camera) { e.camera = c }

// Viewport returns the viewport size and scale factor.
func (e *Engine) Viewport() (image.Point, float64) { return e.viewport, e.scale }

// Load starts loading src. Images become sprite textures under the
// handle's id; fonts are registered with the font registry once ready.
func (e *Engine) Load(src resource.Source, kind resource.Kind) *resource.Handle {
	return e.loader.Load(src, kind)
}

// Font returns the font id registered for a loaded font handle.
func (e *Engine) Font(id resource.ID) (stage.FontID, bool) {
	f, ok := e.fontIDs[id]
	return f, ok
}

// Stats returns the engine statistics.
func (e *Engine) Stats() Stats {
	s := e.stats
	gs := e.compiler.Glyphs().Stats()
	s.GlyphHits, s.GlyphMisses = gs.Hits, gs.Misses
	s.PendingLoads = e.loader.InFlight()
	return s
}

// Tick builds and submits one frame.
func (e *Engine) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.closed {
		return ErrClosed
	}
	if e.lost {
		if err := e.Recover(ctx); err != nil {
			return err
		}
	}
	if err := e.pollWindow(); err != nil {
		return err
	}

	now := time.Now()
	info := FrameInfo{
		Number:      e.compiler.Glyphs().Frame() + 1,
		Viewport:    e.viewport,
		ScaleFactor: e.scale,
	}
	if e.start.IsZero() {
		e.start = now
	} else {
		info.Delta = now.Sub(e.last)
	}
	e.last = now
	info.Elapsed = now.Sub(e.start)

	info.Loaded = e.loader.Drain()
	e.apply(info.Loaded)

	if e.update != nil {
		if err := e.update(ctx, e.arena, info); err != nil {
			return fmt.Errorf("engine: frame %d: update: %w", info.Number, err)
		}
	}

	frame, err := e.compiler.Compile(e.arena, batch.FrameContext{
		Viewport:    e.viewport,
		ScaleFactor: e.scale,
		Camera:      e.camera,
		Clear:       e.opts.clear,
		Textures:    e.loader.Registry(),
	})
	if err != nil {
		return fmt.Errorf("engine: frame %d: %w", info.Number, err)
	}

	if err := e.backend.Submit(ctx, frame); err != nil {
		e.compiler.Requeue(frame.Uploads)
		if errors.Is(err, stage.ErrDeviceLost) {
			e.lost = true
			e.stats.DeviceLost++
			stage.Logger().Warn("engine: device lost", "frame", frame.Number, "err", err)
		}
		return fmt.Errorf("engine: frame %d: %w", frame.Number, err)
	}
	e.compiler.Glyphs().FrameRetired(e.backend.Retired())

	cs := e.compiler.Stats()
	e.stats.Frames++
	e.stats.Batches = cs.Batches
	e.stats.DrawCalls = cs.DrawCalls
	e.stats.Vertices = cs.Vertices
	e.stats.Placeholders = cs.Placeholders
	e.stats.Tiles = cs.Tiles
	e.stats.GlyphsDropped = cs.GlyphsDropped
	return nil
}

// apply hands completed loads to the compiler and the font registry.
func (e *Engine) apply(loaded []*resource.Handle) {
	for _, h := range loaded {
		if h.State() != resource.StateReady {
			continue
		}
		switch h.Kind() {
		case resource.KindImage:
			img, _ := h.Image()
			e.compiler.QueueTexture(h.ID(), img)
		case resource.KindFont:
			face, _ := h.Face()
			desc := face.Describe()
			family := desc.Family
			if family == "" {
				family = h.Source()
			}
			id := e.fonts.Register(family, text.Weight(desc.Aspect.Weight), face)
			e.fontIDs[h.ID()] = id
		}
	}
}

// Recover rebuilds GPU-side state after a device loss: the backend
// recreates its device, the glyph atlas and tessellation cache are
// cleared and every ready image is uploaded again. Tick calls it
// automatically after a loss.
func (e *Engine) Recover(ctx context.Context) error {
	if err := e.backend.Recover(ctx); err != nil {
		return fmt.Errorf("engine: recover: %w", err)
	}
	e.compiler.Reset()
	e.loader.Registry().Ready(resource.KindImage, func(h *resource.Handle) {
		img, _ := h.Image()
		e.compiler.QueueTexture(h.ID(), img)
	})
	if e.viewport.X > 0 && e.viewport.Y > 0 {
		if err := e.backend.Resize(e.viewport.X, e.viewport.Y); err != nil {
			return fmt.Errorf("engine: recover: %w", err)
		}
	}
	e.lost = false
	e.stats.Recoveries++
	stage.Logger().Info("engine: device recovered", "recoveries", e.stats.Recoveries)
	return nil
}

// Resize sets the viewport in physical pixels and the display scale. It
// invalidates viewport-relative nodes, recreates the backbuffer and
// rebuilds the glyph atlas for the new scale.
func (e *Engine) Resize(width, height int, scale float64) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("engine: invalid viewport %dx%d", width, height)
	}
	if scale <= 0 {
		scale = 1
	}
	return e.resize(image.Pt(width, height), scale)
}

func (e *Engine) resize(size image.Point, scale float64) error {
	if size == e.viewport && scale == e.scale {
		return nil
	}
	if err := e.backend.Resize(size.X, size.Y); err != nil {
		return fmt.Errorf("engine: resize: %w", err)
	}
	e.viewport, e.scale = size, scale
	e.arena.SetViewport(float64(size.X), float64(size.Y))
	n := e.arena.InvalidateViewport()
	e.compiler.Reset()
	stage.Logger().Debug("engine: resized", "viewport", size, "scale", scale, "invalidated", n)
	return nil
}

// pollWindow follows the window's logical size and scale factor.
func (e *Engine) pollWindow() error {
	w := e.opts.window
	if w == nil {
		return nil
	}
	width, height := w.Size()
	if width <= 0 || height <= 0 {
		return nil
	}
	scale := w.ScaleFactor()
	if scale <= 0 {
		scale = 1
	}
	size := image.Pt(int(math.Round(float64(width)*scale)), int(math.Round(float64(height)*scale)))
	return e.resize(size, scale)
}

// Run ticks until ctx is done, then closes the engine. It returns nil on
// cancellation and the first tick error otherwise; a lost device is not
// an error when WithRecoverDeviceLost is set.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer func() {
		err = errors.Join(err, e.Close())
	}()

	var tick <-chan time.Time
	if e.opts.vsync == nil && e.opts.targetFPS > 0 {
		ticker := time.NewTicker(frameInterval(e.opts.targetFPS))
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := e.Tick(ctx); err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, stage.ErrDeviceLost) && e.opts.recoverDeviceLost:
				stage.Logger().Warn("engine: recovering after device loss", "err", err)
			default:
				return err
			}
		}

		switch {
		case e.opts.vsync != nil:
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-e.opts.vsync:
				if !ok {
					return nil
				}
			}
		case tick != nil:
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		}
	}
}

// Close shuts the loader down, waiting at most the shutdown grace for
// running loads, and closes the backend. Loads still running after the
// grace are abandoned.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), e.opts.shutdownGrace)
	defer cancel()
	var errs []error
	if err := e.loader.Close(ctx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			errs = append(errs, fmt.Errorf("engine: close loader: %w", err))
		} else {
			stage.Logger().Warn("engine: abandoned running loads", "grace", e.opts.shutdownGrace)
		}
	}
	if err := e.backend.Close(); err != nil {
		errs = append(errs, fmt.Errorf("engine: close backend: %w", err))
	}
	stage.Logger().Info("engine closed", "frames", e.stats.Frames)
	return errors.Join(errs...)
}

// frameInterval is the ticker period for fps, never shorter than 1ns.
func frameInterval(fps float64) time.Duration {
	return max(time.Duration(float64(time.Second)/fps), time.Nanosecond)
}
