// Package backend defines the contract between the frame engine and a GPU
// implementation, and provides two CPU implementations.
//
// A Backend receives one *batch.Frame per tick: texture uploads first, then
// draw batches in order. Submit returns an error wrapping
// stage.ErrDeviceLost when the device is gone; the engine then rebuilds its
// GPU-derived caches and calls Recover before the next frame.
//
// # Implementations
//
//   - Recording keeps a log of submitted frames and validates them. It can
//     simulate device loss and is the backend used by engine tests.
//   - Software rasterizes batches into an *image.RGBA, for headless
//     rendering and screenshots.
//   - backend/native drives a WebGPU HAL device.
//
// # Registration
//
// Implementations register a factory by name:
//
//	b, err := backend.Get("software")
//
// Default returns the best registered backend, preferring native.
package backend
