// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package engine

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/go-fonts/latin-modern/lmroman10regular"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/backend"
	"github.com/gogpu/stage/batch"
	"github.com/gogpu/stage/resource"
	"github.com/gogpu/stage/scene"
)

func newEngine(t *testing.T, update UpdateFunc, opts ...Option) (*Engine, *backend.Recording) {
	t.Helper()
	rec := backend.NewRecording()
	opts = append([]Option{WithBackend(rec), WithViewport(64, 48, 1), WithTargetFPS(0)}, opts...)
	e, err := New(update, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e, rec
}

func tick(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

// tickUntil ticks until done reports true or the deadline passes.
func tickUntil(t *testing.T, e *Engine, done func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !done() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		tick(t, e)
		time.Sleep(time.Millisecond)
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 0xff, A: 0xff})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// gatedSource blocks Open until the gate is closed.
type gatedSource struct {
	gate chan struct{}
	data []byte
}

func (s *gatedSource) Name() string { return "gated.png" }

func (s *gatedSource) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-s.gate:
		return io.NopCloser(bytes.NewReader(s.data)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type fakeWindow struct {
	w, h  int
	scale float64
}

func (w *fakeWindow) Size() (int, int)     { return w.w, w.h }
func (w *fakeWindow) ScaleFactor() float64 { return w.scale }
func (w *fakeWindow) RequestRedraw()       {}

func lastFrame(t *testing.T, rec *backend.Recording) backend.FrameRecord {
	t.Helper()
	f, ok := rec.LastFrame()
	if !ok {
		t.Fatal("no frame recorded")
	}
	return f
}

func hasTexture(frames []backend.FrameRecord, id stage.TextureID) bool {
	for _, f := range frames {
		for _, k := range f.Batches {
			if k.Texture == id {
				return true
			}
		}
	}
	return false
}

func TestTickSubmitsFrames(t *testing.T) {
	var infos []FrameInfo
	e, rec := newEngine(t, func(_ context.Context, _ *scene.Arena, info FrameInfo) error {
		infos = append(infos, info)
		return nil
	})
	if _, err := e.Arena().Insert(0, scene.Rectangle{Width: 10, Height: 10, Fill: stage.RGB(1, 0, 0)}); err != nil {
		t.Fatal(err)
	}

	tick(t, e)
	tick(t, e)

	frames := rec.Frames()
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	for i, f := range frames {
		if f.Number != uint64(i+1) || infos[i].Number != f.Number {
			t.Errorf("frame %d: number %d, info %d", i, f.Number, infos[i].Number)
		}
		if f.Viewport != image.Pt(64, 48) || f.DrawCalls != 1 {
			t.Errorf("frame %d = %+v", i, f)
		}
	}
	if infos[0].Delta != 0 || infos[1].Elapsed < infos[1].Delta {
		t.Errorf("timing = %+v", infos)
	}
	if rec.Size() != image.Pt(64, 48) {
		t.Errorf("backend size = %v", rec.Size())
	}
	st := e.Stats()
	if st.Frames != 2 || st.DrawCalls != 1 || st.Batches != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestRemoveNodeDuringUpdate(t *testing.T) {
	var parent scene.NodeID
	e, rec := newEngine(t, func(_ context.Context, a *scene.Arena, info FrameInfo) error {
		if info.Number == 2 {
			return a.Remove(parent)
		}
		return nil
	})
	a := e.Arena()
	box := scene.Rectangle{Width: 8, Height: 8, Fill: stage.RGB(0, 0, 1)}
	var err error
	if parent, err = a.Insert(0, box); err != nil {
		t.Fatal(err)
	}
	for range 2 {
		if _, err := a.Insert(parent, box); err != nil {
			t.Fatal(err)
		}
	}

	tick(t, e)
	tick(t, e)

	if a.Contains(parent) || a.Len() != 2 {
		t.Errorf("after removal: contains=%v len=%d", a.Contains(parent), a.Len())
	}
	frames := rec.Frames()
	if frames[1].Vertices*3 != frames[0].Vertices*2 {
		t.Errorf("vertices %d then %d, want the children only", frames[0].Vertices, frames[1].Vertices)
	}
}

func TestUpdateErrorSkipsFrame(t *testing.T) {
	boom := errors.New("boom")
	e, rec := newEngine(t, func(context.Context, *scene.Arena, FrameInfo) error { return boom })
	if err := e.Tick(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(rec.Frames()) != 0 {
		t.Error("a failed update must not submit")
	}
}

func TestImagePlaceholderThenTexture(t *testing.T) {
	var loaded []*resource.Handle
	e, rec := newEngine(t, func(_ context.Context, _ *scene.Arena, info FrameInfo) error {
		loaded = append(loaded, info.Loaded...)
		return nil
	})
	src := &gatedSource{gate: make(chan struct{}), data: pngBytes(t, 4, 2)}
	h := e.Load(src, resource.KindImage)
	if _, err := e.Arena().Insert(0, scene.Sprite{Texture: h.ID()}); err != nil {
		t.Fatal(err)
	}

	tick(t, e)
	if st := e.Stats(); st.Placeholders != 1 || st.PendingLoads != 1 {
		t.Errorf("pending stats = %+v", st)
	}
	first := lastFrame(t, rec)
	if hasTexture([]backend.FrameRecord{first}, h.ID()) {
		t.Error("placeholder must not reference the pending texture")
	}

	close(src.gate)
	tickUntil(t, e, func() bool { return h.State() != resource.StatePending })

	if h.State() != resource.StateReady {
		t.Fatalf("state = %v, err = %v", h.State(), h.Err())
	}
	f := lastFrame(t, rec)
	if !slices.Contains(f.Uploads, h.ID()) || !hasTexture([]backend.FrameRecord{f}, h.ID()) {
		t.Errorf("frame = %+v, want the image uploaded and drawn", f)
	}
	if info, ok := rec.Texture(h.ID()); !ok || info.Size != image.Pt(4, 2) {
		t.Errorf("texture = %+v, %v", info, ok)
	}
	if len(loaded) != 1 || loaded[0] != h {
		t.Errorf("loaded = %v", loaded)
	}
	if st := e.Stats(); st.Placeholders != 0 || st.PendingLoads != 0 {
		t.Errorf("ready stats = %+v", st)
	}
}

// flakyBackend fails the next fail submits without touching the recording.
type flakyBackend struct {
	*backend.Recording
	fail int
}

func (b *flakyBackend) Submit(ctx context.Context, frame *batch.Frame) error {
	if b.fail > 0 {
		b.fail--
		return errors.New("flaky: queue full")
	}
	return b.Recording.Submit(ctx, frame)
}

// loadSprite loads a 4x2 image behind a sprite and ticks until the load
// is delivered, tolerating the errors allowed by ok.
func loadSprite(t *testing.T, e *Engine, delivered *bool, ok func(error) bool) stage.TextureID {
	t.Helper()
	src := &gatedSource{gate: make(chan struct{}), data: pngBytes(t, 4, 2)}
	close(src.gate)
	h := e.Load(src, resource.KindImage)
	if _, err := e.Arena().Insert(0, scene.Sprite{Texture: h.ID()}); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for !*delivered {
		if time.Now().After(deadline) {
			t.Fatal("image never delivered")
		}
		if err := e.Tick(context.Background()); err != nil && !ok(err) {
			t.Fatalf("Tick: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	return h.ID()
}

func TestUploadSurvivesFailedUpdateAndResize(t *testing.T) {
	boom := errors.New("boom")
	delivered := false
	e, rec := newEngine(t, func(_ context.Context, _ *scene.Arena, info FrameInfo) error {
		if len(info.Loaded) > 0 && !delivered {
			delivered = true
			return boom
		}
		return nil
	})
	id := loadSprite(t, e, &delivered, func(err error) bool { return errors.Is(err, boom) })

	if err := e.Resize(128, 96, 1); err != nil {
		t.Fatal(err)
	}
	for i := range 3 {
		if err := e.Tick(context.Background()); err != nil {
			t.Fatalf("tick %d after resize: %v", i, err)
		}
	}
	frames := rec.Frames()
	if !slices.Contains(frames[len(frames)-3].Uploads, id) || !hasTexture(frames[len(frames)-1:], id) {
		t.Errorf("frames = %+v, want the image uploaded and drawn", frames)
	}
}

func TestUploadRetriedAfterFailedSubmit(t *testing.T) {
	flaky := &flakyBackend{Recording: backend.NewRecording()}
	delivered := false
	e, _ := newEngine(t, func(_ context.Context, _ *scene.Arena, info FrameInfo) error {
		if len(info.Loaded) > 0 && !delivered {
			delivered = true
			flaky.fail = 1
		}
		return nil
	}, WithBackend(flaky))
	id := loadSprite(t, e, &delivered, func(err error) bool { return !errors.Is(err, stage.ErrDeviceLost) })

	tick(t, e)
	f := lastFrame(t, flaky.Recording)
	if !slices.Contains(f.Uploads, id) || !hasTexture([]backend.FrameRecord{f}, id) {
		t.Errorf("frame = %+v, want the image uploaded and drawn", f)
	}
	if _, ok := flaky.Texture(id); !ok {
		t.Error("texture missing after retry")
	}
	tick(t, e)
}

func TestDeviceLostRecovery(t *testing.T) {
	e, rec := newEngine(t, nil)
	h := e.Load(resource.BytesSource("white.png", pngBytes(t, 2, 2)), resource.KindImage)
	if _, err := e.Arena().Insert(0, scene.Sprite{Texture: h.ID()}); err != nil {
		t.Fatal(err)
	}
	tickUntil(t, e, func() bool { return h.State() == resource.StateReady })

	rec.LoseDevice()
	err := e.Tick(context.Background())
	if !errors.Is(err, stage.ErrDeviceLost) {
		t.Fatalf("err = %v, want ErrDeviceLost", err)
	}
	tick(t, e)

	if rec.Recoveries() != 1 {
		t.Errorf("recoveries = %d, want 1", rec.Recoveries())
	}
	f := lastFrame(t, rec)
	if !slices.Contains(f.Uploads, h.ID()) || !slices.Contains(f.Uploads, e.Compiler().WhiteTexture()) {
		t.Errorf("uploads after recovery = %v", f.Uploads)
	}
	if _, ok := rec.Texture(h.ID()); !ok {
		t.Error("sprite texture not restored")
	}
	if st := e.Stats(); st.DeviceLost != 1 || st.Recoveries != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestWindowResize(t *testing.T) {
	win := &fakeWindow{w: 100, h: 50, scale: 1}
	e, rec := newEngine(t, nil, WithWindow(win))

	tick(t, e)
	if rec.Size() != image.Pt(100, 50) {
		t.Errorf("size = %v, want 100x50", rec.Size())
	}

	win.w, win.h, win.scale = 200, 80, 2
	tick(t, e)
	if rec.Size() != image.Pt(400, 160) {
		t.Errorf("size = %v, want 400x160", rec.Size())
	}
	size, scale := e.Viewport()
	if size != image.Pt(400, 160) || scale != 2 {
		t.Errorf("viewport = %v @%v", size, scale)
	}
	if f := lastFrame(t, rec); f.Viewport != size {
		t.Errorf("frame viewport = %v", f.Viewport)
	}
}

func TestResizeRejectsEmpty(t *testing.T) {
	e, _ := newEngine(t, nil)
	if err := e.Resize(0, 10, 1); err == nil {
		t.Error("Resize(0, 10) should fail")
	}
	if err := e.Resize(32, 32, 0); err != nil {
		t.Fatal(err)
	}
	if size, scale := e.Viewport(); size != image.Pt(32, 32) || scale != 1 {
		t.Errorf("viewport = %v @%v", size, scale)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	frames := 0
	e, rec := newEngine(t, func(context.Context, *scene.Arena, FrameInfo) error {
		frames++
		if frames == 3 {
			cancel()
		}
		return nil
	})

	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if len(rec.Frames()) < 2 {
		t.Errorf("frames = %d", len(rec.Frames()))
	}
	if err := e.Tick(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Tick after Run = %v, want ErrClosed", err)
	}
	h := e.Load(resource.BytesSource("late.png", nil), resource.KindImage)
	if !errors.Is(h.Err(), resource.ErrClosed) {
		t.Errorf("late load err = %v, want ErrClosed", h.Err())
	}
}

func TestRunDeviceLost(t *testing.T) {
	run := func(t *testing.T, recoverLost bool) (*backend.Recording, error) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		var rec *backend.Recording
		e, r := newEngine(t, func(_ context.Context, _ *scene.Arena, info FrameInfo) error {
			switch info.Number {
			case 2:
				rec.LoseDevice()
			case 4:
				cancel()
			}
			return nil
		}, WithRecoverDeviceLost(recoverLost))
		rec = r
		return rec, e.Run(ctx)
	}

	t.Run("fail", func(t *testing.T) {
		rec, err := run(t, false)
		if !errors.Is(err, stage.ErrDeviceLost) {
			t.Errorf("Run = %v, want ErrDeviceLost", err)
		}
		if rec.Recoveries() != 0 {
			t.Errorf("recoveries = %d", rec.Recoveries())
		}
	})
	t.Run("recover", func(t *testing.T) {
		rec, err := run(t, true)
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
		if rec.Recoveries() != 1 {
			t.Errorf("recoveries = %d, want 1", rec.Recoveries())
		}
	})
}

func TestRunVSync(t *testing.T) {
	vsync := make(chan struct{})
	frames := 0
	e, _ := newEngine(t, func(context.Context, *scene.Arena, FrameInfo) error {
		frames++
		return nil
	}, WithVSync(vsync))

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	vsync <- struct{}{}
	vsync <- struct{}{}
	close(vsync)

	if err := <-done; err != nil {
		t.Fatalf("Run = %v", err)
	}
	if frames != 3 {
		t.Errorf("frames = %d, want 3", frames)
	}
}

func TestFontLoad(t *testing.T) {
	e, rec := newEngine(t, nil)
	h := e.Load(resource.BytesSource("lmroman10-regular.otf", lmroman10regular.TTF), resource.KindFont)
	tickUntil(t, e, func() bool { return h.State() != resource.StatePending })

	id, ok := e.Font(h.ID())
	if !ok {
		t.Fatalf("font not registered, err = %v", h.Err())
	}
	if _, ok := e.Fonts().Font(id); !ok {
		t.Fatal("registry does not know the font")
	}
	if _, err := e.Arena().Insert(0, scene.Text{Text: "Hello", Font: id, Size: 16, Color: stage.RGB(0, 0, 0)}); err != nil {
		t.Fatal(err)
	}
	tick(t, e)

	f := lastFrame(t, rec)
	if !hasTexture([]backend.FrameRecord{f}, e.Compiler().AtlasTexture()) {
		t.Errorf("frame = %+v, want glyph quads", f)
	}
	if st := e.Stats(); st.GlyphMisses == 0 {
		t.Errorf("stats = %+v, want glyph misses", st)
	}
}

func TestCloseIdempotent(t *testing.T) {
	e, rec := newEngine(t, nil)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := rec.Submit(context.Background(), nil); !errors.Is(err, backend.ErrClosed) {
		t.Errorf("backend Submit after Close = %v", err)
	}
}

func TestFrameInterval(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{60, time.Second / 60},
		{1, time.Second},
		{1e9, time.Nanosecond},
		{1e12, time.Nanosecond},
	}
	for _, tt := range tests {
		if got := frameInterval(tt.fps); got != tt.want {
			t.Errorf("frameInterval(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}
