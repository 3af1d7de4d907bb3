package backend

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
)

// Factory creates a backend instance.
type Factory func() Backend

// priority orders Default's choice. Native is preferred, Software is the
// fallback that always works.
var priority = []string{NameNative, NameSoftware, NameRecording}

var backends = gpucontext.NewRegistry[Backend](gpucontext.WithPriority(priority...))

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// Registering a name twice is a programming error and panics.
func Register(name string, factory Factory) {
	if backends.Has(name) {
		panic(fmt.Sprintf("backend: %q registered twice", name))
	}
	backends.Register(name, factory)
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	backends.Unregister(name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	names := backends.Available()
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	return backends.Has(name)
}

// Get returns a new instance of the named backend.
func Get(name string) (Backend, error) {
	if !backends.Has(name) {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	b := backends.Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q factory returned nil", ErrBackendNotAvailable, name)
	}
	return b, nil
}

// Default returns the best available backend based on priority.
// Priority order: native > software > recording. A factory returning nil,
// such as native without a usable adapter, is skipped.
func Default() (Backend, error) {
	if b := backends.Best(); b != nil {
		return b, nil
	}
	names := Available()
	slices.SortStableFunc(names, func(a, b string) int {
		return rank(a) - rank(b)
	})
	for _, name := range names {
		if b, err := Get(name); err == nil {
			return b, nil
		}
	}
	return nil, ErrBackendNotAvailable
}

// rank returns the position of name in priority, after all of them for
// unknown names.
func rank(name string) int {
	if i := slices.Index(priority, name); i >= 0 {
		return i
	}
	return len(priority)
}
