// Package text shapes strings into positioned glyphs and keeps rasterized
// glyphs in a shared atlas texture.
//
// # Pipeline
//
// A [Request] (text, font, size, wrap width) goes through the [Shaper],
// which normalizes the text to NFC, shapes it with the go-text HarfBuzz
// port and wraps it into lines. The resulting [Layout] is cached by
// content hash in a [LayoutCache].
//
// For each glyph of a layout, the [GlyphCache] returns an atlas slot. On a
// miss it asks the [Rasterizer] for a coverage mask and packs it into the
// [Atlas]. Glyphs are rasterized at one of four horizontal subpixel
// phases.
//
// # Atlas lifetime
//
// Frames may be pipelined, so the GPU can still sample the atlas for a
// frame that was submitted earlier. The glyph cache therefore only evicts
// entries whose last use is no newer than the last retired frame:
//
//	n := cache.BeginFrame()
//	// compile and submit frame n
//	cache.FrameRetired(n - 1) // reported by the backend
//
// Without retirement reports, frames older than PipelineDepth are assumed
// retired.
//
// Everything in this package is owned by the frame goroutine and is not
// safe for concurrent use, except [FontRegistry].
package text
