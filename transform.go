package stage

// Transform is a local transform made of translation, rotation and scale.
// The composed matrix applies scale first, then rotation, then translation.
//
// The zero Transform has zero scale and collapses geometry to a point;
// start from IdentityTransform.
type Transform struct {
	Translation Point
	// Rotation in radians, clockwise in a y-down coordinate system.
	Rotation float64
	Scale    Point
}

// IdentityTransform returns the transform that leaves geometry unchanged.
func IdentityTransform() Transform {
	return Transform{Scale: Point{X: 1, Y: 1}}
}

// TranslateBy returns an identity transform translated by (x, y).
func TranslateBy(x, y float64) Transform {
	t := IdentityTransform()
	t.Translation = Point{X: x, Y: y}
	return t
}

// Matrix returns the affine matrix T * R * S.
func (t Transform) Matrix() Matrix {
	m := Translate(t.Translation.X, t.Translation.Y)
	if t.Rotation != 0 {
		m = m.Multiply(Rotate(t.Rotation))
	}
	if t.Scale.X != 1 || t.Scale.Y != 1 {
		m = m.Multiply(Scale(t.Scale.X, t.Scale.Y))
	}
	return m
}
