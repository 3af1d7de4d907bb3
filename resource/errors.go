package resource

import (
	"errors"
	"fmt"

	"github.com/gogpu/stage"
)

// Causes wrapped by LoadError.
var (
	// ErrUnsupportedFormat means the content is not a format the kind
	// can decode.
	ErrUnsupportedFormat = errors.New("resource: unsupported format")

	// ErrEmptyData means the source produced no bytes.
	ErrEmptyData = errors.New("resource: empty data")

	// ErrClosed is returned for loads issued after Close and for loads
	// abandoned when the shutdown grace period expired.
	ErrClosed = errors.New("resource: loader closed")
)

// LoadError describes a failed load. It matches both stage.ErrResourceLoad
// and its cause with errors.Is.
type LoadError struct {
	Source string
	Kind   Kind
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("resource: load %s %q: %v", e.Kind, e.Source, e.Err)
}

// Unwrap returns the sentinel and the cause.
func (e *LoadError) Unwrap() []error {
	return []error{stage.ErrResourceLoad, e.Err}
}
