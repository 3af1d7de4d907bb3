package tessellate

import (
	"github.com/chewxy/math32"

	"github.com/gogpu/stage"
)

// DefaultMiterLimit matches the common SVG default.
const DefaultMiterLimit = 4

// StrokeStyle describes how contours are widened.
type StrokeStyle struct {
	Width      float32
	Join       stage.LineJoin
	MiterLimit float32
}

// Stroke widens every contour into quads, one per segment, with a join
// wedge at each interior vertex. Closed contours also join their last
// segment to the first. Caps are butt.
func Stroke(contours []Contour, style StrokeStyle) *Mesh {
	m := &Mesh{}
	if style.Width <= 0 {
		return m
	}
	if style.MiterLimit < 1 {
		style.MiterLimit = DefaultMiterLimit
	}
	hw := style.Width / 2
	for _, c := range contours {
		strokeContour(m, c, hw, style)
	}
	return m
}

func strokeContour(m *Mesh, c Contour, hw float32, style StrokeStyle) {
	pts := c.Points
	closed := c.Closed
	if n := len(pts); closed && n > 1 && pts[0].near(pts[n-1], 1e-6) {
		pts = pts[:n-1]
	}
	n := len(pts)
	if n < 2 {
		return
	}
	segs := n - 1
	if closed && n > 2 {
		segs = n
	}

	normals := make([]Vec2, segs)
	for i := 0; i < segs; i++ {
		a, b := pts[i], pts[(i+1)%n]
		normals[i] = b.sub(a).normalize().perp()
		off := normals[i].scale(hw)
		m.quad(a.add(off), b.add(off), b.sub(off), a.sub(off))
	}

	for i := 1; i < segs; i++ {
		join(m, pts[i], pts[i].sub(pts[i-1]), pts[(i+1)%n].sub(pts[i]), normals[i-1], normals[i], hw, style)
	}
	if segs == n {
		join(m, pts[0], pts[0].sub(pts[n-1]), pts[1].sub(pts[0]), normals[n-1], normals[0], hw, style)
	}
}

// join fills the wedge on the outside of the turn at p.
func join(m *Mesh, p, d0, d1, n0, n1 Vec2, hw float32, style StrokeStyle) {
	turn := d0.cross(d1)
	if math32.Abs(turn) < 1e-6 {
		return
	}
	side := float32(1)
	if turn > 0 {
		side = -1
	}
	o0 := p.add(n0.scale(hw * side))
	o1 := p.add(n1.scale(hw * side))

	if style.Join == stage.JoinMiter {
		mid := n0.add(n1)
		if l := mid.length(); l > 1e-6 {
			ratio := 2 / l
			if ratio <= style.MiterLimit {
				tip := p.add(mid.scale(side * hw * ratio / l))
				m.quad(p, o0, tip, o1)
				return
			}
		}
	}
	ip, i0, i1 := m.vertex(p), m.vertex(o0), m.vertex(o1)
	m.triangle(ip, i0, i1)
}
