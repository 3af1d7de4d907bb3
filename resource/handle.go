package resource

import (
	"fmt"
	"image"
	"sync/atomic"

	"github.com/go-text/typesetting/font"

	"github.com/gogpu/stage"
)

// ID identifies a loaded asset. Image ids double as texture ids, so a
// sprite can reference an image before it finishes loading.
type ID = stage.TextureID

// Kind selects the decoder for a load.
type Kind uint8

const (
	// KindImage decodes PNG, JPEG, GIF, BMP or WebP into *image.RGBA.
	KindImage Kind = iota + 1
	// KindFont parses a TrueType or OpenType font.
	KindFont
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindFont:
		return "font"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// State is the lifecycle state of a Handle.
type State uint32

const (
	StatePending State = iota
	StateReady
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// Handle is the result of a Load. It is safe for concurrent use; its
// payload is only visible once State reports Ready.
type Handle struct {
	id     ID
	gen    uint32
	kind   Kind
	source string

	completed atomic.Bool
	state     atomic.Uint32

	image *image.RGBA
	face  *font.Face
	err   error
}

func newHandle(id ID, gen uint32, kind Kind, source string) *Handle {
	return &Handle{id: id, gen: gen, kind: kind, source: source}
}

// ID returns the asset id. Reloads keep the id.
func (h *Handle) ID() ID { return h.id }

// Generation counts reloads of the id, starting at 0.
func (h *Handle) Generation() uint32 { return h.gen }

// Kind returns the kind the handle was loaded as.
func (h *Handle) Kind() Kind { return h.kind }

// Source returns the name of the source.
func (h *Handle) Source() string { return h.source }

// State returns the current state.
func (h *Handle) State() State { return State(h.state.Load()) }

// Image returns the decoded image of a Ready image handle.
func (h *Handle) Image() (*image.RGBA, bool) {
	if h.State() != StateReady {
		return nil, false
	}
	return h.image, h.image != nil
}

// Face returns the parsed face of a Ready font handle.
func (h *Handle) Face() (*font.Face, bool) {
	if h.State() != StateReady {
		return nil, false
	}
	return h.face, h.face != nil
}

// Err returns the load error of a Failed handle, nil otherwise.
func (h *Handle) Err() error {
	if h.State() != StateFailed {
		return nil
	}
	return h.err
}

// complete moves the handle out of Pending. It reports false, leaving the
// handle untouched, if the handle already completed.
func (h *Handle) complete(r result) bool {
	if !h.completed.CompareAndSwap(false, true) {
		return false
	}
	if r.err != nil {
		h.err = r.err
		h.state.Store(uint32(StateFailed))
		return true
	}
	h.image = r.image
	h.face = r.face
	h.state.Store(uint32(StateReady))
	return true
}

func (h *Handle) String() string {
	return fmt.Sprintf("%s %q id=%d gen=%d %s", h.kind, h.source, h.id, h.gen, h.State())
}
