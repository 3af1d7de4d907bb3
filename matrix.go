package stage

import "math"

// Matrix is a 2D affine transform stored as the top two rows of a 3x3
// matrix. A point maps to
//
//	(A*x + B*y + C, D*x + E*y + F)
type Matrix struct {
	A, B, C float64
	D, E, F float64
}

// Identity returns the transform that leaves points unchanged.
func Identity() Matrix { return Matrix{A: 1, E: 1} }

// Translate returns a transform moving points by (x, y).
func Translate(x, y float64) Matrix { return Matrix{A: 1, C: x, E: 1, F: y} }

// Scale returns a transform scaling about the origin.
func Scale(sx, sy float64) Matrix { return Matrix{A: sx, E: sy} }

// Rotate returns a rotation about the origin by angle radians, clockwise
// in y-down coordinates.
func Rotate(angle float64) Matrix {
	sin, cos := math.Sincos(angle)
	return Matrix{A: cos, B: -sin, D: sin, E: cos}
}

// Multiply returns m composed with n: n is applied first.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		A: m.A*n.A + m.B*n.D,
		B: m.A*n.B + m.B*n.E,
		C: m.A*n.C + m.B*n.F + m.C,
		D: m.D*n.A + m.E*n.D,
		E: m.D*n.B + m.E*n.E,
		F: m.D*n.C + m.E*n.F + m.F,
	}
}

// TransformPoint maps p through m.
func (m Matrix) TransformPoint(p Point) Point {
	return Point{X: m.A*p.X + m.B*p.Y + m.C, Y: m.D*p.X + m.E*p.Y + m.F}
}

// Invert returns the inverse of m. ok is false when m collapses the plane
// to a line or a point.
func (m Matrix) Invert() (inv Matrix, ok bool) {
	det := m.A*m.E - m.B*m.D
	if math.Abs(det) < 1e-12 {
		return Matrix{}, false
	}
	return Matrix{
		A: m.E / det,
		B: -m.B / det,
		C: (m.B*m.F - m.E*m.C) / det,
		D: -m.D / det,
		E: m.A / det,
		F: (m.D*m.C - m.A*m.F) / det,
	}, true
}

// Translation returns the image of the origin.
func (m Matrix) Translation() Point { return Point{X: m.C, Y: m.F} }

// Linear returns m without its translation.
func (m Matrix) Linear() Matrix { return Matrix{A: m.A, B: m.B, D: m.D, E: m.E} }

// IsIdentity reports whether m is exactly the identity.
func (m Matrix) IsIdentity() bool { return m == Identity() }

// ScaleFactor returns the length of the longer transformed unit axis.
// Tessellation divides device tolerances by it and text rasterizes at it.
func (m Matrix) ScaleFactor() float64 {
	return max(math.Hypot(m.A, m.D), math.Hypot(m.B, m.E))
}

// ApproxEqual reports whether every coefficient of m is within eps of n's.
func (m Matrix) ApproxEqual(n Matrix, eps float64) bool {
	a := [6]float64{m.A, m.B, m.C, m.D, m.E, m.F}
	b := [6]float64{n.A, n.B, n.C, n.D, n.E, n.F}
	for i := range a {
		if math.Abs(a[i]-b[i]) > eps {
			return false
		}
	}
	return true
}
