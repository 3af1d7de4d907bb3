package tessellate

import "github.com/chewxy/math32"

// Vec2 is a float32 point in mesh space.
type Vec2 struct {
	X, Y float32
}

func (v Vec2) add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) sub(o Vec2) Vec2      { return Vec2{v.X - o.X, v.Y - o.Y} }
func (v Vec2) scale(s float32) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) cross(o Vec2) float32 { return v.X*o.Y - v.Y*o.X }
func (v Vec2) dot(o Vec2) float32   { return v.X*o.X + v.Y*o.Y }
func (v Vec2) length() float32      { return math32.Hypot(v.X, v.Y) }
func (v Vec2) perp() Vec2           { return Vec2{-v.Y, v.X} }
func (v Vec2) near(o Vec2, eps float32) bool {
	return math32.Abs(v.X-o.X) <= eps && math32.Abs(v.Y-o.Y) <= eps
}

func (v Vec2) normalize() Vec2 {
	l := v.length()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Positions []Vec2
	Indices   []uint32
}

// Triangles returns the number of triangles.
func (m *Mesh) Triangles() int {
	return len(m.Indices) / 3
}

// Empty reports whether the mesh has no triangles.
func (m *Mesh) Empty() bool {
	return m == nil || len(m.Indices) == 0
}

// Append adds other's triangles to m.
func (m *Mesh) Append(other *Mesh) {
	if other.Empty() {
		return
	}
	base := uint32(len(m.Positions))
	m.Positions = append(m.Positions, other.Positions...)
	for _, i := range other.Indices {
		m.Indices = append(m.Indices, base+i)
	}
}

func (m *Mesh) vertex(p Vec2) uint32 {
	m.Positions = append(m.Positions, p)
	return uint32(len(m.Positions) - 1)
}

func (m *Mesh) triangle(a, b, c uint32) {
	m.Indices = append(m.Indices, a, b, c)
}

func (m *Mesh) quad(a, b, c, d Vec2) {
	ia, ib, ic, id := m.vertex(a), m.vertex(b), m.vertex(c), m.vertex(d)
	m.triangle(ia, ib, ic)
	m.triangle(ia, ic, id)
}
