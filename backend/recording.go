package backend

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/batch"
)

func init() {
	Register(NameRecording, func() Backend { return NewRecording() })
}

// FrameRecord summarizes one submitted frame.
type FrameRecord struct {
	Number    uint64
	Viewport  image.Point
	Uploads   []stage.TextureID
	Batches   []batch.Key
	DrawCalls int
	Vertices  int
	Indices   int
}

// Recording is a Backend that validates and records frames without
// drawing them. It is synchronous: every submitted frame retires
// immediately.
type Recording struct {
	mu         sync.Mutex
	textures   textureStore
	frames     []FrameRecord
	size       image.Point
	retired    uint64
	lost       bool
	recoveries int
	closed     bool
}

var _ Backend = (*Recording)(nil)

// NewRecording creates a recording backend.
func NewRecording() *Recording {
	return &Recording{textures: make(textureStore)}
}

// Name returns the backend identifier.
func (r *Recording) Name() string { return NameRecording }

// Submit validates and records frame.
func (r *Recording) Submit(ctx context.Context, frame *batch.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.closed:
		return ErrClosed
	case r.lost:
		return fmt.Errorf("backend: recording: submit frame %d: %w", frame.Number, stage.ErrDeviceLost)
	}

	rec := FrameRecord{
		Number:    frame.Number,
		Viewport:  frame.Viewport,
		DrawCalls: frame.DrawCalls(),
		Vertices:  frame.Vertices(),
	}
	for _, u := range frame.Uploads {
		if err := r.textures.apply(u); err != nil {
			return fmt.Errorf("backend: recording: frame %d: %w", frame.Number, err)
		}
		rec.Uploads = append(rec.Uploads, u.Texture)
	}
	if err := r.textures.check(frame); err != nil {
		return fmt.Errorf("backend: recording: frame %d: %w", frame.Number, err)
	}
	for i := range frame.Batches {
		rec.Batches = append(rec.Batches, frame.Batches[i].Key)
		rec.Indices += len(frame.Batches[i].Indices)
	}
	r.frames = append(r.frames, rec)
	r.retired = frame.Number
	return nil
}

// Retired returns the number of the last submitted frame.
func (r *Recording) Retired() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retired
}

// Resize records the backbuffer size.
func (r *Recording) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.size = image.Pt(width, height)
	return nil
}

// LoseDevice makes every Submit fail with stage.ErrDeviceLost until
// Recover is called.
func (r *Recording) LoseDevice() {
	r.mu.Lock()
	r.lost = true
	r.mu.Unlock()
}

// Recover simulates device recreation: all textures are dropped.
func (r *Recording) Recover(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.lost = false
	r.textures = make(textureStore)
	r.recoveries++
	return nil
}

// Close marks the backend closed.
func (r *Recording) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

// Frames returns the recorded frames.
func (r *Recording) Frames() []FrameRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FrameRecord(nil), r.frames...)
}

// LastFrame returns the most recent frame record.
func (r *Recording) LastFrame() (FrameRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return FrameRecord{}, false
	}
	return r.frames[len(r.frames)-1], true
}

// Texture returns what the backend knows about texture id.
func (r *Recording) Texture(id stage.TextureID) (TextureInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.textures.info(id)
}

// Recoveries returns how many times Recover succeeded.
func (r *Recording) Recoveries() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recoveries
}

// Size returns the size passed to the last Resize.
func (r *Recording) Size() image.Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}
