package backend

import (
	"context"
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/anthonynsimon/bild/clone"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/batch"
)

func init() {
	Register(NameSoftware, func() Backend { return NewSoftware() })
}

// Software is a CPU rendering backend. It rasterizes every batch into a
// premultiplied *image.RGBA with nearest-neighbor sampling.
type Software struct {
	mu       sync.Mutex
	textures textureStore
	target   *image.RGBA
	size     image.Point
	retired  uint64
	closed   bool
}

var _ Backend = (*Software)(nil)

// NewSoftware creates a software backend.
func NewSoftware() *Software {
	return &Software{textures: make(textureStore)}
}

// Name returns the backend identifier.
func (s *Software) Name() string { return NameSoftware }

// Submit draws frame into the target. The target takes the frame's
// viewport size, or the last Resize size when the viewport is empty.
func (s *Software) Submit(ctx context.Context, frame *batch.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	for _, u := range frame.Uploads {
		if err := s.textures.apply(u); err != nil {
			return fmt.Errorf("backend: software: frame %d: %w", frame.Number, err)
		}
	}
	if err := s.textures.check(frame); err != nil {
		return fmt.Errorf("backend: software: frame %d: %w", frame.Number, err)
	}

	size := frame.Viewport
	if size.X <= 0 || size.Y <= 0 {
		size = s.size
	}
	if s.target == nil || s.target.Rect.Size() != size {
		s.target = image.NewRGBA(image.Rectangle{Max: size})
	}
	clearRGBA(s.target, frame.Clear.Premultiplied())

	for i := range frame.Batches {
		if err := ctx.Err(); err != nil {
			return err
		}
		b := &frame.Batches[i]
		tex := s.textures[b.Texture]
		for j := 0; j+2 < len(b.Indices); j += 3 {
			s.triangle(tex, b.Blend, b.Vertices[b.Indices[j]], b.Vertices[b.Indices[j+1]], b.Vertices[b.Indices[j+2]])
		}
	}
	s.retired = frame.Number
	return nil
}

// Target returns a copy of the last rendered image, or nil before the
// first frame.
func (s *Software) Target() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target == nil {
		return nil
	}
	return clone.AsRGBA(s.target)
}

// Retired returns the number of the last drawn frame.
func (s *Software) Retired() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retired
}

// Resize sets the target size used for frames without a viewport.
func (s *Software) Resize(width, height int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.size = image.Pt(width, height)
	return nil
}

// Recover drops all textures.
func (s *Software) Recover(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textures = make(textureStore)
	return nil
}

// Close releases the target.
func (s *Software) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.target = nil
	s.textures = nil
	return nil
}

func clearRGBA(img *image.RGBA, c [4]uint8) {
	for i := 0; i < len(img.Pix); i += 4 {
		copy(img.Pix[i:i+4], c[:])
	}
}

// edge is twice the signed area of (p, q, (x, y)).
func edge(p, q batch.Vertex, x, y float32) float32 {
	return (q.X-p.X)*(y-p.Y) - (q.Y-p.Y)*(x-p.X)
}

// owns breaks ties for pixels centered exactly on edge p→q. The rule
// depends only on the edge direction, so of two triangles sharing an edge
// exactly one draws the pixel.
func owns(w float32, p, q batch.Vertex) bool {
	if w != 0 {
		return w > 0
	}
	dx, dy := q.X-p.X, q.Y-p.Y
	return dy > 0 || (dy == 0 && dx < 0)
}

func (s *Software) triangle(tex *texture, blend stage.BlendMode, a, b, c batch.Vertex) {
	area := edge(a, b, c.X, c.Y)
	if area == 0 {
		return
	}
	if area < 0 {
		b, c = c, b
		area = -area
	}

	bounds := s.target.Rect
	minX := max(int(math.Floor(float64(min(a.X, b.X, c.X)))), bounds.Min.X)
	minY := max(int(math.Floor(float64(min(a.Y, b.Y, c.Y)))), bounds.Min.Y)
	maxX := min(int(math.Ceil(float64(max(a.X, b.X, c.X)))), bounds.Max.X)
	maxY := min(int(math.Ceil(float64(max(a.Y, b.Y, c.Y)))), bounds.Max.Y)

	for y := minY; y < maxY; y++ {
		py := float32(y) + 0.5
		for x := minX; x < maxX; x++ {
			px := float32(x) + 0.5
			w0 := edge(b, c, px, py)
			w1 := edge(c, a, px, py)
			w2 := edge(a, b, px, py)
			if !owns(w0, b, c) || !owns(w1, c, a) || !owns(w2, a, b) {
				continue
			}
			l0, l1, l2 := w0/area, w1/area, w2/area
			u := l0*a.U + l1*b.U + l2*c.U
			v := l0*a.V + l1*b.V + l2*c.V
			var col [4]uint8
			for i := range col {
				col[i] = uint8(l0*float32(a.Color[i]) + l1*float32(b.Color[i]) + l2*float32(c.Color[i]) + 0.5)
			}
			blendPixel(s.target, x, y, shade(tex, u, v, col), blend)
		}
	}
}

func mul255(a, b uint8) uint8 {
	return uint8((uint32(a)*uint32(b) + 127) / 255)
}

// shade modulates the premultiplied vertex color by the texel at (u, v).
// Coverage textures scale every channel; color textures multiply.
func shade(tex *texture, u, v float32, col [4]uint8) [4]uint8 {
	w, h := tex.Size.X, tex.Size.Y
	tx := min(max(int(u*float32(w)), 0), w-1)
	ty := min(max(int(v*float32(h)), 0), h-1)
	if tex.Format == batch.FormatR8 {
		cov := tex.pix[ty*w+tx]
		return [4]uint8{mul255(col[0], cov), mul255(col[1], cov), mul255(col[2], cov), mul255(col[3], cov)}
	}
	t := tex.pix[(ty*w+tx)*4:]
	return [4]uint8{mul255(col[0], t[0]), mul255(col[1], t[1]), mul255(col[2], t[2]), mul255(col[3], t[3])}
}

// blendPixel composites premultiplied src over the target pixel with the
// same equations as stage.BlendMode.State.
func blendPixel(img *image.RGBA, x, y int, src [4]uint8, mode stage.BlendMode) {
	i := img.PixOffset(x, y)
	dst := img.Pix[i : i+4 : i+4]
	inv := 255 - src[3]
	for c := range 4 {
		var out uint32
		switch mode {
		case stage.BlendAdditive:
			out = uint32(src[c]) + uint32(dst[c])
		case stage.BlendMultiply:
			out = uint32(mul255(src[c], dst[c])) + uint32(mul255(dst[c], inv))
		case stage.BlendReplace:
			out = uint32(src[c])
		default:
			out = uint32(src[c]) + uint32(mul255(dst[c], inv))
		}
		dst[c] = uint8(min(out, 255))
	}
}
