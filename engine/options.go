// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"image"
	"time"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/batch"
	"github.com/gogpu/stage/resource"
	"github.com/gogpu/stage/scene"
	"github.com/gogpu/stage/text"
)

// Option configures an Engine during creation.
type Option func(*options)

type options struct {
	targetFPS         float64
	vsync             <-chan struct{}
	shutdownGrace     time.Duration
	recoverDeviceLost bool

	window   gpucontext.WindowProvider
	viewport image.Point
	scale    float64
	camera   scene.Camera
	clear    stage.RGBA

	backend    backend.Backend
	loader     *resource.Loader
	fonts      *text.FontRegistry
	compiler   batch.Config
	glyphs     text.GlyphCacheConfig
	layoutSize int
}

func defaultOptions() options {
	return options{
		targetFPS:     60,
		shutdownGrace: 2 * time.Second,
		scale:         1,
		compiler:      batch.DefaultConfig(),
		glyphs:        text.DefaultGlyphCacheConfig(),
	}
}

// WithTargetFPS sets the tick rate of Run. Zero or less ticks as fast as
// possible.
// Default: 60
func WithTargetFPS(fps float64) Option {
	return func(o *options) {
		o.targetFPS = fps
	}
}

// WithVSync makes Run wait for a value on ch between ticks instead of
// using a ticker. A closed channel stops Run.
func WithVSync(ch <-chan struct{}) Option {
	return func(o *options) {
		o.vsync = ch
	}
}

// WithShutdownGrace bounds how long Close waits for running loads.
// Default: 2s
func WithShutdownGrace(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.shutdownGrace = d
		}
	}
}

// WithRecoverDeviceLost makes Run log a lost device, recover and keep
// running instead of returning the error.
func WithRecoverDeviceLost(enabled bool) Option {
	return func(o *options) {
		o.recoverDeviceLost = enabled
	}
}

// WithWindow makes every tick poll w for size and scale changes.
func WithWindow(w gpucontext.WindowProvider) Option {
	return func(o *options) {
		o.window = w
	}
}

// WithViewport sets the initial viewport in physical pixels and the
// display scale factor.
func WithViewport(width, height int, scale float64) Option {
	return func(o *options) {
		o.viewport = image.Pt(width, height)
		if scale > 0 {
			o.scale = scale
		}
	}
}

// WithCamera sets the initial camera.
func WithCamera(c scene.Camera) Option {
	return func(o *options) {
		o.camera = c
	}
}

// WithClearColor sets the color every frame starts from.
func WithClearColor(c stage.RGBA) Option {
	return func(o *options) {
		o.clear = c
	}
}

// WithBackend sets the backend. The engine owns it and closes it in
// Close.
// Default: backend.Default()
func WithBackend(b backend.Backend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithLoader sets the resource loader. The engine owns it and closes it
// in Close.
// Default: resource.NewLoader()
func WithLoader(l *resource.Loader) Option {
	return func(o *options) {
		o.loader = l
	}
}

// WithFonts sets the font registry shared with the application.
func WithFonts(r *text.FontRegistry) Option {
	return func(o *options) {
		o.fonts = r
	}
}

// WithCompilerConfig sets the batch compiler configuration.
func WithCompilerConfig(c batch.Config) Option {
	return func(o *options) {
		o.compiler = c
	}
}

// WithBatchOrder sets the batch sort order.
func WithBatchOrder(order batch.Order) Option {
	return func(o *options) {
		o.compiler.Order = order
	}
}

// WithGlyphCacheConfig sets the glyph atlas configuration.
func WithGlyphCacheConfig(c text.GlyphCacheConfig) Option {
	return func(o *options) {
		o.glyphs = c
	}
}

// WithPipelineDepth sets how many frames may be in flight on the GPU.
// Glyph atlas slots used by those frames are never reused.
// Default: 2
func WithPipelineDepth(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.glyphs.PipelineDepth = n
		}
	}
}

// WithLayoutCacheSize sets the number of shaped layouts kept.
func WithLayoutCacheSize(n int) Option {
	return func(o *options) {
		o.layoutSize = n
	}
}
