package stage

import "errors"

// Errors shared across stage packages. Components wrap them with context,
// so callers should test with errors.Is.
var (
	// ErrInvalidParent is returned by insert and reparent when the parent
	// id is stale or the operation would make a node its own ancestor.
	ErrInvalidParent = errors.New("stage: invalid parent")

	// ErrStaleReference is returned when a node id's generation no longer
	// matches its slot (the node was removed).
	ErrStaleReference = errors.New("stage: stale reference")

	// ErrShaping reports an unknown font or an unmappable character.
	// Shaping falls back to the notdef glyph; the error is only logged.
	ErrShaping = errors.New("stage: shaping failed")

	// ErrAtlasExhausted is returned when a glyph cannot be packed even
	// after evicting every entry no in-flight frame references. The glyph
	// is skipped for the current frame.
	ErrAtlasExhausted = errors.New("stage: glyph atlas exhausted")

	// ErrResourceLoad reports an I/O or decode failure in the resource
	// loader. The affected handle transitions to Failed.
	ErrResourceLoad = errors.New("stage: resource load failed")

	// ErrDeviceLost is returned when the GPU backend loses its device.
	// The current frame is dropped and all GPU resources must be
	// recreated before the next tick.
	ErrDeviceLost = errors.New("stage: device lost")
)
