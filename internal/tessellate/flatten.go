package tessellate

import (
	"math"

	"github.com/gogpu/stage"
)

// DefaultTolerance is the default maximum distance between a curve and its
// flattened polyline, in pixels.
const DefaultTolerance = 0.25

// maxDepth bounds recursive subdivision for degenerate input.
const maxDepth = 16

// Contour is a flattened subpath.
type Contour struct {
	Points []Vec2
	Closed bool
}

// Flatten converts a path into polylines, one per subpath. Curves are
// subdivided until every control point lies within tolerance of the
// chord.
func Flatten(p *stage.Path, tolerance float64) []Contour {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	var (
		out     []Contour
		cur     []stage.Point
		current stage.Point
	)
	flush := func(closed bool) {
		if len(cur) >= 2 {
			out = append(out, Contour{Points: toVec(cur), Closed: closed})
		}
		cur = nil
	}

	for _, e := range p.Elements() {
		switch e.Verb {
		case stage.VerbMoveTo:
			flush(false)
			current = e.Pts[0]
			cur = append(cur, current)
		case stage.VerbLineTo:
			if len(cur) == 0 {
				cur = append(cur, current)
			}
			current = e.Pts[0]
			cur = append(cur, current)
		case stage.VerbQuadTo:
			if len(cur) == 0 {
				cur = append(cur, current)
			}
			flattenQuad(current, e.Pts[0], e.Pts[1], tolerance, 0, &cur)
			current = e.Pts[1]
		case stage.VerbCubicTo:
			if len(cur) == 0 {
				cur = append(cur, current)
			}
			flattenCubic(current, e.Pts[0], e.Pts[1], e.Pts[2], tolerance, 0, &cur)
			current = e.Pts[2]
		case stage.VerbClose:
			if len(cur) > 0 {
				current = cur[0]
			}
			flush(true)
		}
	}
	flush(false)
	return out
}

func toVec(pts []stage.Point) []Vec2 {
	out := make([]Vec2, 0, len(pts))
	for _, p := range pts {
		v := Vec2{float32(p.X), float32(p.Y)}
		if len(out) > 0 && out[len(out)-1].near(v, 1e-6) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func flattenQuad(p0, p1, p2 stage.Point, tol float64, depth int, pts *[]stage.Point) {
	if depth >= maxDepth || distanceToLine(p1, p0, p2) < tol {
		*pts = append(*pts, p2)
		return
	}
	q0 := p0.Lerp(p1, 0.5)
	q1 := p1.Lerp(p2, 0.5)
	q2 := q0.Lerp(q1, 0.5)
	flattenQuad(p0, q0, q2, tol, depth+1, pts)
	flattenQuad(q2, q1, p2, tol, depth+1, pts)
}

func flattenCubic(p0, p1, p2, p3 stage.Point, tol float64, depth int, pts *[]stage.Point) {
	d := math.Max(distanceToLine(p1, p0, p3), distanceToLine(p2, p0, p3))
	if depth >= maxDepth || d < tol {
		*pts = append(*pts, p3)
		return
	}
	// de Casteljau split at t = 0.5
	q0 := p0.Lerp(p1, 0.5)
	q1 := p1.Lerp(p2, 0.5)
	q2 := p2.Lerp(p3, 0.5)
	r0 := q0.Lerp(q1, 0.5)
	r1 := q1.Lerp(q2, 0.5)
	s := r0.Lerp(r1, 0.5)
	flattenCubic(p0, q0, r0, s, tol, depth+1, pts)
	flattenCubic(s, r1, q2, p3, tol, depth+1, pts)
}

// distanceToLine returns the distance from p to the segment (a, b).
func distanceToLine(p, a, b stage.Point) float64 {
	ab := b.Sub(a)
	abLen := ab.Length()
	if abLen < 1e-10 {
		return p.Sub(a).Length()
	}
	t := (p.Sub(a).X*ab.X + p.Sub(a).Y*ab.Y) / (abLen * abLen)
	switch {
	case t < 0:
		return p.Sub(a).Length()
	case t > 1:
		return p.Sub(b).Length()
	}
	return p.Sub(a.Add(ab.Mul(t))).Length()
}
