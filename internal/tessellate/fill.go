package tessellate

import (
	"cmp"
	"slices"
)

// Fill triangulates contours under the non-zero winding rule. Open contours
// are closed implicitly. Contours with fewer than three distinct points are
// skipped.
//
// A single simple contour is ear clipped. Anything else (holes, overlapping
// subpaths, self-intersections) is split into horizontal bands at every
// vertex and edge crossing, and each band emits one trapezoid per span of
// non-zero winding, so overlapping regions are covered exactly once.
func Fill(contours []Contour) *Mesh {
	m := &Mesh{}
	rings := make([][]Vec2, 0, len(contours))
	for _, c := range contours {
		pts := c.Points
		if n := len(pts); n > 1 && pts[0].near(pts[n-1], 1e-6) {
			pts = pts[:n-1]
		}
		if len(pts) < 3 || collinear(pts) {
			continue
		}
		rings = append(rings, pts)
	}
	switch {
	case len(rings) == 0:
	case len(rings) == 1 && simple(rings[0]):
		fillContour(m, rings[0])
	default:
		fillNonZero(m, rings)
	}
	return m
}

func fillContour(m *Mesh, pts []Vec2) {
	n := len(pts)
	ccw := signedArea(pts) > 0
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions, pts...)
	if isConvex(pts, ccw) {
		for i := 1; i < n-1; i++ {
			m.triangle(base, base+uint32(i), base+uint32(i+1))
		}
		return
	}

	// Ear clipping over a ring of indices.
	ring := make([]int, n)
	for i := range ring {
		ring[i] = i
	}
	for len(ring) > 3 {
		k := len(ring)
		clipped := false
		for i := 0; i < k; i++ {
			a, b, c := ring[(i+k-1)%k], ring[i], ring[(i+1)%k]
			if !isEar(pts, ring, a, b, c, ccw) {
				continue
			}
			m.triangle(base+uint32(a), base+uint32(b), base+uint32(c))
			ring = append(ring[:i], ring[i+1:]...)
			clipped = true
			break
		}
		if !clipped {
			// Numerically degenerate ring. Fan the remainder.
			for i := 1; i < len(ring)-1; i++ {
				m.triangle(base+uint32(ring[0]), base+uint32(ring[i]), base+uint32(ring[i+1]))
			}
			return
		}
	}
	m.triangle(base+uint32(ring[0]), base+uint32(ring[1]), base+uint32(ring[2]))
}

func collinear(pts []Vec2) bool {
	var dir Vec2
	for _, p := range pts[1:] {
		d := p.sub(pts[0])
		if dir == (Vec2{}) {
			dir = d
			continue
		}
		if dir.cross(d) != 0 {
			return false
		}
	}
	return true
}

func signedArea(pts []Vec2) float32 {
	var a float32
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].cross(pts[j])
	}
	return a / 2
}

func isConvex(pts []Vec2, ccw bool) bool {
	n := len(pts)
	for i := range pts {
		a, b, c := pts[i], pts[(i+1)%n], pts[(i+2)%n]
		turn := b.sub(a).cross(c.sub(b))
		if (ccw && turn < 0) || (!ccw && turn > 0) {
			return false
		}
	}
	return true
}

func isEar(pts []Vec2, ring []int, a, b, c int, ccw bool) bool {
	pa, pb, pc := pts[a], pts[b], pts[c]
	turn := pb.sub(pa).cross(pc.sub(pb))
	if (ccw && turn <= 0) || (!ccw && turn >= 0) {
		return false
	}
	for _, i := range ring {
		if i == a || i == b || i == c {
			continue
		}
		if pointInTriangle(pts[i], pa, pb, pc) {
			return false
		}
	}
	return true
}

func pointInTriangle(p, a, b, c Vec2) bool {
	d1 := b.sub(a).cross(p.sub(a))
	d2 := c.sub(b).cross(p.sub(b))
	d3 := a.sub(c).cross(p.sub(c))
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}

// simple reports whether no two non-adjacent edges of the ring touch.
func simple(pts []Vec2) bool {
	n := len(pts)
	for i := 0; i < n; i++ {
		a, b := pts[i], pts[(i+1)%n]
		for j := i + 2; j < n; j++ {
			if i == 0 && j == n-1 {
				continue
			}
			if segmentsTouch(a, b, pts[j], pts[(j+1)%n]) {
				return false
			}
		}
	}
	return true
}

func segmentsTouch(p1, p2, p3, p4 Vec2) bool {
	d1 := orient(p3, p4, p1)
	d2 := orient(p3, p4, p2)
	d3 := orient(p1, p2, p3)
	d4 := orient(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(p3, p4, p1)) ||
		(d2 == 0 && onSegment(p3, p4, p2)) ||
		(d3 == 0 && onSegment(p1, p2, p3)) ||
		(d4 == 0 && onSegment(p1, p2, p4))
}

func orient(a, b, c Vec2) float32 {
	return b.sub(a).cross(c.sub(a))
}

func onSegment(a, b, p Vec2) bool {
	return min(a.X, b.X) <= p.X && p.X <= max(a.X, b.X) &&
		min(a.Y, b.Y) <= p.Y && p.Y <= max(a.Y, b.Y)
}

// edge is a non-horizontal polygon edge stored top to bottom. dir is the
// winding contribution: +1 when the contour runs downward, -1 upward.
type edge struct {
	x0, y0, x1, y1 float64
	dir            int
}

func (e edge) xAt(y float64) float64 {
	return e.x0 + (y-e.y0)*(e.x1-e.x0)/(e.y1-e.y0)
}

// crossing returns the y at which a and b swap horizontal order.
func crossing(a, b edge) (float64, bool) {
	lo, hi := max(a.y0, b.y0), min(a.y1, b.y1)
	if hi <= lo {
		return 0, false
	}
	da := a.xAt(lo) - b.xAt(lo)
	db := a.xAt(hi) - b.xAt(hi)
	if (da < 0 && db > 0) || (da > 0 && db < 0) {
		return lo + (hi-lo)*da/(da-db), true
	}
	return 0, false
}

const bandEpsilon = 1e-7

func fillNonZero(m *Mesh, rings [][]Vec2) {
	var (
		edges []edge
		ys    []float64
	)
	for _, pts := range rings {
		for i, p := range pts {
			q := pts[(i+1)%len(pts)]
			ys = append(ys, float64(p.Y))
			if p.Y == q.Y {
				continue
			}
			e := edge{float64(p.X), float64(p.Y), float64(q.X), float64(q.Y), 1}
			if e.y0 > e.y1 {
				e = edge{e.x1, e.y1, e.x0, e.y0, -1}
			}
			edges = append(edges, e)
		}
	}
	for i := range edges {
		for j := i + 1; j < len(edges); j++ {
			if y, ok := crossing(edges[i], edges[j]); ok {
				ys = append(ys, y)
			}
		}
	}
	slices.Sort(ys)
	ys = slices.CompactFunc(ys, func(a, b float64) bool { return b-a < bandEpsilon })

	var active []edge
	for k := 0; k+1 < len(ys); k++ {
		ya, yb := ys[k], ys[k+1]
		mid := (ya + yb) / 2
		active = active[:0]
		for _, e := range edges {
			if e.y0 < mid && e.y1 > mid {
				active = append(active, e)
			}
		}
		slices.SortFunc(active, func(a, b edge) int {
			return cmp.Compare(a.xAt(mid), b.xAt(mid))
		})
		winding := 0
		var left edge
		for _, e := range active {
			prev := winding
			winding += e.dir
			switch {
			case prev == 0 && winding != 0:
				left = e
			case prev != 0 && winding == 0:
				m.trapezoid(left, e, ya, yb)
			}
		}
	}
}

// trapezoid emits the span between left and right over [ya, yb], dropping
// the triangle that collapses when a side has zero width.
func (m *Mesh) trapezoid(left, right edge, ya, yb float64) {
	tl := Vec2{float32(left.xAt(ya)), float32(ya)}
	tr := Vec2{float32(right.xAt(ya)), float32(ya)}
	br := Vec2{float32(right.xAt(yb)), float32(yb)}
	bl := Vec2{float32(left.xAt(yb)), float32(yb)}
	top := tr.X-tl.X > bandEpsilon
	bottom := br.X-bl.X > bandEpsilon
	if !top && !bottom {
		return
	}
	itl, ibr := m.vertex(tl), m.vertex(br)
	if top {
		m.triangle(itl, m.vertex(tr), ibr)
	}
	if bottom {
		m.triangle(itl, ibr, m.vertex(bl))
	}
}
