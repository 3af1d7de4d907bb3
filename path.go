package stage

import (
	"encoding/binary"
	"hash/fnv"
	"math"
)

// PathVerb identifies a path command.
type PathVerb uint8

// Path verbs.
const (
	VerbMoveTo PathVerb = iota
	VerbLineTo
	VerbQuadTo
	VerbCubicTo
	VerbClose
)

// PathElement is a single path command with up to three points.
// Pts[len-1] is the end point; earlier entries are control points.
type PathElement struct {
	Verb PathVerb
	Pts  [3]Point
}

// Path represents a vector path made of subpaths.
// A Path is immutable once handed to a scene node: the batch compiler keys
// its tessellation cache by the path's content hash.
type Path struct {
	elements []PathElement
	start    Point
	current  Point
}

// NewPath creates a new empty path.
func NewPath() *Path {
	return &Path{elements: make([]PathElement, 0, 16)}
}

// MoveTo starts a new subpath at (x, y).
func (p *Path) MoveTo(x, y float64) *Path {
	pt := Pt(x, y)
	p.elements = append(p.elements, PathElement{Verb: VerbMoveTo, Pts: [3]Point{pt}})
	p.start = pt
	p.current = pt
	return p
}

// LineTo draws a line to (x, y).
func (p *Path) LineTo(x, y float64) *Path {
	pt := Pt(x, y)
	p.elements = append(p.elements, PathElement{Verb: VerbLineTo, Pts: [3]Point{pt}})
	p.current = pt
	return p
}

// QuadTo draws a quadratic Bezier curve.
func (p *Path) QuadTo(cx, cy, x, y float64) *Path {
	pt := Pt(x, y)
	p.elements = append(p.elements, PathElement{Verb: VerbQuadTo, Pts: [3]Point{Pt(cx, cy), pt}})
	p.current = pt
	return p
}

// CubicTo draws a cubic Bezier curve.
func (p *Path) CubicTo(c1x, c1y, c2x, c2y, x, y float64) *Path {
	pt := Pt(x, y)
	p.elements = append(p.elements, PathElement{Verb: VerbCubicTo, Pts: [3]Point{Pt(c1x, c1y), Pt(c2x, c2y), pt}})
	p.current = pt
	return p
}

// Close closes the current subpath.
func (p *Path) Close() *Path {
	p.elements = append(p.elements, PathElement{Verb: VerbClose})
	p.current = p.start
	return p
}

// Elements returns the path elements. The slice must not be modified.
func (p *Path) Elements() []PathElement {
	return p.elements
}

// Len returns the number of elements.
func (p *Path) Len() int {
	return len(p.elements)
}

// Rectangle adds a closed rectangle subpath.
func (p *Path) Rectangle(x, y, w, h float64) *Path {
	return p.MoveTo(x, y).LineTo(x+w, y).LineTo(x+w, y+h).LineTo(x, y+h).Close()
}

// Ellipse adds a closed ellipse subpath built from four cubic curves.
func (p *Path) Ellipse(cx, cy, rx, ry float64) *Path {
	const k = 0.5522847498307936 // 4/3 * (sqrt(2) - 1)
	ox := rx * k
	oy := ry * k

	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+oy, cx+ox, cy+ry, cx, cy+ry)
	p.CubicTo(cx-ox, cy+ry, cx-rx, cy+oy, cx-rx, cy)
	p.CubicTo(cx-rx, cy-oy, cx-ox, cy-ry, cx, cy-ry)
	p.CubicTo(cx+ox, cy-ry, cx+rx, cy-oy, cx+rx, cy)
	return p.Close()
}

// Circle adds a closed circle subpath.
func (p *Path) Circle(cx, cy, r float64) *Path {
	return p.Ellipse(cx, cy, r, r)
}

// RoundedRectangle adds a rectangle with rounded corners.
// The radius is clamped to half of the smaller side.
func (p *Path) RoundedRectangle(x, y, w, h, r float64) *Path {
	r = math.Min(r, math.Min(w, h)/2)
	if r <= 0 {
		return p.Rectangle(x, y, w, h)
	}
	const k = 0.5522847498307936
	o := r * k

	p.MoveTo(x+r, y)
	p.LineTo(x+w-r, y)
	p.CubicTo(x+w-r+o, y, x+w, y+r-o, x+w, y+r)
	p.LineTo(x+w, y+h-r)
	p.CubicTo(x+w, y+h-r+o, x+w-r+o, y+h, x+w-r, y+h)
	p.LineTo(x+r, y+h)
	p.CubicTo(x+r-o, y+h, x, y+h-r+o, x, y+h-r)
	p.LineTo(x, y+r)
	p.CubicTo(x, y+r-o, x+r-o, y, x+r, y)
	return p.Close()
}

// Hash returns a 64-bit FNV-1a hash of the path's verbs and coordinates.
// Equal paths always hash equal.
func (p *Path) Hash() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, e := range p.elements {
		h.Write([]byte{byte(e.Verb)})
		for i := 0; i < verbPoints(e.Verb); i++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(e.Pts[i].X))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(e.Pts[i].Y))
			h.Write(buf[:])
		}
	}
	return h.Sum64()
}

// Bounds returns the bounding box of all points, control points included.
func (p *Path) Bounds() Rect {
	if len(p.elements) == 0 {
		return Rect{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, e := range p.elements {
		for i := 0; i < verbPoints(e.Verb); i++ {
			pt := e.Pts[i]
			minX, minY = math.Min(minX, pt.X), math.Min(minY, pt.Y)
			maxX, maxY = math.Max(maxX, pt.X), math.Max(maxY, pt.Y)
		}
	}
	if math.IsInf(minX, 1) {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

func verbPoints(v PathVerb) int {
	switch v {
	case VerbMoveTo, VerbLineTo:
		return 1
	case VerbQuadTo:
		return 2
	case VerbCubicTo:
		return 3
	default:
		return 0
	}
}

// PointCount returns how many points the verb carries.
func (v PathVerb) PointCount() int {
	return verbPoints(v)
}
