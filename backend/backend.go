package backend

import (
	"context"
	"errors"

	"github.com/gogpu/stage/batch"
)

// Backend name constants.
const (
	// NameNative is the WebGPU HAL backend in backend/native.
	NameNative = "native"
	// NameSoftware is the CPU rasterizer.
	NameSoftware = "software"
	// NameRecording is the validating frame recorder.
	NameRecording = "recording"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not registered.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("backend: closed")

	// ErrUnknownTexture is returned when a batch samples a texture that was
	// never uploaded since the device was created or recovered.
	ErrUnknownTexture = errors.New("backend: unknown texture")

	// ErrInvalidUpload is returned for uploads whose region or data do not
	// match the texture.
	ErrInvalidUpload = errors.New("backend: invalid upload")
)

// Backend executes compiled frames.
//
// Backends are driven from the engine goroutine only.
type Backend interface {
	// Name returns the backend identifier (e.g., "native", "software").
	Name() string

	// Submit uploads the frame's textures and draws its batches. A lost
	// device is reported with an error wrapping stage.ErrDeviceLost; the
	// frame is dropped.
	Submit(ctx context.Context, frame *batch.Frame) error

	// Retired returns the newest frame number whose GPU work has
	// completed. Resources referenced only by frames up to it may be
	// reused.
	Retired() uint64

	// Resize recreates the backbuffer for a new physical size.
	Resize(width, height int) error

	// Recover recreates the device after a loss. Every texture must be
	// uploaded again.
	Recover(ctx context.Context) error

	// Close releases all backend resources.
	Close() error
}
