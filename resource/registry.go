package resource

import (
	"image"
	"sync"
)

// Registry maps asset ids to their current handle. It implements the
// batch compiler's texture resolver, so sprites can sample an image as
// soon as its handle is Ready.
type Registry struct {
	mu      sync.RWMutex
	handles map[ID]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[ID]*Handle)}
}

// Get returns the current handle for id.
func (r *Registry) Get(id ID) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[id]
	return h, ok
}

// ResolveTexture returns the size of the image behind id once it is Ready.
func (r *Registry) ResolveTexture(id ID) (image.Point, bool) {
	h, ok := r.Get(id)
	if !ok {
		return image.Point{}, false
	}
	img, ok := h.Image()
	if !ok {
		return image.Point{}, false
	}
	return img.Rect.Size(), true
}

// Ready calls fn for every Ready handle of kind, in no particular order.
func (r *Registry) Ready(kind Kind, fn func(*Handle)) {
	r.mu.RLock()
	list := make([]*Handle, 0, len(r.handles))
	for _, h := range r.handles {
		if h.kind == kind && h.State() == StateReady {
			list = append(list, h)
		}
	}
	r.mu.RUnlock()
	for _, h := range list {
		fn(h)
	}
}

// Forget drops id. Later completions for it are ignored by the registry.
func (r *Registry) Forget(id ID) {
	r.mu.Lock()
	delete(r.handles, id)
	r.mu.Unlock()
}

// Len returns the number of registered ids.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

func (r *Registry) add(h *Handle) {
	r.mu.Lock()
	r.handles[h.id] = h
	r.mu.Unlock()
}

// swap installs a reloaded handle unless the id was forgotten or a newer
// generation is already current.
func (r *Registry) swap(h *Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.handles[h.id]
	if !ok || cur.gen >= h.gen {
		return false
	}
	r.handles[h.id] = h
	return true
}
