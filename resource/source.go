package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Source provides the bytes of an asset.
type Source interface {
	// Name identifies the source in logs and errors. File sources use
	// their cleaned path, which Watch matches events against.
	Name() string
	// Open returns a reader over the content. ctx is cancelled when the
	// loader gives up on the load.
	Open(ctx context.Context) (io.ReadCloser, error)
}

type fileSource string

// FileSource returns a Source reading the file at path.
func FileSource(path string) Source {
	return fileSource(filepath.Clean(path))
}

func (s fileSource) Name() string { return string(s) }

func (s fileSource) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(string(s))
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

type bytesSource struct {
	name string
	data []byte
}

// BytesSource returns a Source over in-memory data, such as embedded
// assets. The slice must not be modified afterwards.
func BytesSource(name string, data []byte) Source {
	return bytesSource{name: name, data: data}
}

func (s bytesSource) Name() string { return s.name }

func (s bytesSource) Open(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}
