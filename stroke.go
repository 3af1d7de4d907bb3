package stage

// LineJoin is the shape used at the corners of stroked paths.
type LineJoin uint8

const (
	// JoinMiter extends the outer edges until they meet, falling back to
	// bevel when the miter limit is exceeded.
	JoinMiter LineJoin = iota
	// JoinBevel cuts corners with a straight line.
	JoinBevel
)

// String returns the join name.
func (j LineJoin) String() string {
	if j == JoinBevel {
		return "bevel"
	}
	return "miter"
}

// Stroke describes how a shape outline is stroked. Caps are always butt.
type Stroke struct {
	// Width is the line width in local units. Zero disables the stroke.
	Width float64
	Color RGBA
	// Join is the shape of line joins. Default: JoinMiter
	Join LineJoin
	// MiterLimit is the limit for miter joins before they become bevels.
	// Values below 1 use the default of 4, which matches SVG.
	MiterLimit float64
}

// DefaultStroke returns a 1-unit black stroke with miter joins.
func DefaultStroke() Stroke {
	return Stroke{
		Width:      1,
		Color:      Black,
		Join:       JoinMiter,
		MiterLimit: 4,
	}
}

// WithWidth returns a copy of the Stroke with the given width.
func (s Stroke) WithWidth(w float64) Stroke {
	s.Width = w
	return s
}

// WithColor returns a copy of the Stroke with the given color.
func (s Stroke) WithColor(c RGBA) Stroke {
	s.Color = c
	return s
}

// WithJoin returns a copy of the Stroke with the given line join style.
func (s Stroke) WithJoin(join LineJoin) Stroke {
	s.Join = join
	return s
}

// WithMiterLimit returns a copy of the Stroke with the given miter limit.
func (s Stroke) WithMiterLimit(limit float64) Stroke {
	s.MiterLimit = limit
	return s
}
