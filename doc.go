// Package stage is the rendering core of a 2D application framework.
//
// It turns a mutable scene graph into an ordered sequence of GPU draw
// batches every frame, while textures and fonts stream in asynchronously
// without stalling the frame loop.
//
// # Packages
//
//   - scene: generational arena of scene nodes with lazy world transforms
//   - text: font registry, shaping, glyph atlas and glyph cache
//   - batch: batch compiler (tessellation and draw-call merging)
//   - resource: asynchronous asset loader with tick-boundary delivery
//   - backend: GPU backend contract, registry and recording backend
//   - backend/native: WebGPU HAL backend
//   - engine: frame scheduler
//   - config: file configuration
//
// The root package holds the types shared by all of them: [Matrix],
// [Point], [Rect], [RGBA], [Transform], [BlendMode], [Path] and the error
// values returned across package boundaries.
//
// # Threading
//
// One goroutine owns the scene arena, the glyph cache and the batch
// compiler. The resource loader decodes on its own worker pool and hands
// immutable payloads back through a channel that the engine drains only at
// tick boundaries.
//
// # Logging
//
// stage produces no log output by default. Call [SetLogger] to enable it.
package stage
