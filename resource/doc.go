// Package resource loads images and fonts off the frame goroutine.
//
// Load returns a Handle in the Pending state immediately. Decoding runs on
// a bounded worker pool, and results travel through a single completion
// channel. The engine calls Drain at tick boundaries; only Drain moves a
// handle to Ready or Failed, exactly once, so the renderer never observes
// a half-loaded asset.
//
// Handles are never mutated after they complete. A hot reload started by
// Watch produces a new handle generation for the same ID, and the Registry
// swaps it in when it becomes Ready.
package resource
