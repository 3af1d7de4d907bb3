package text

import (
	"image"
	"image/draw"
	"math"

	"github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/font/opentype"
	"golang.org/x/image/vector"
)

// SubpixelBuckets is the number of horizontal phases a glyph is
// rasterized at.
const SubpixelBuckets = 4

// SubpixelBucket returns the phase bucket for pen position x.
func SubpixelBucket(x float64) uint8 {
	frac := x - math.Floor(x)
	return uint8(int(frac*SubpixelBuckets) % SubpixelBuckets)
}

// Bitmap is a rasterized glyph coverage mask. Left and Top locate the
// mask's top-left corner relative to the pen position on the baseline,
// with Y growing down.
type Bitmap struct {
	Mask      *image.Alpha
	Left, Top int
}

// Empty reports whether the glyph has no visible pixels.
func (b Bitmap) Empty() bool {
	return b.Mask == nil || b.Mask.Rect.Empty()
}

// Rasterizer produces coverage masks for glyphs.
type Rasterizer interface {
	// Rasterize renders glyph of f at size pixels, shifted right by
	// bucket/SubpixelBuckets of a pixel.
	Rasterize(f *Font, glyph GlyphID, size float64, bucket uint8) (Bitmap, error)
}

// OutlineRasterizer fills vector glyph outlines with x/image/vector.
// Bitmap, SVG and color glyphs render as empty.
type OutlineRasterizer struct {
	z vector.Rasterizer
}

// NewOutlineRasterizer returns the default rasterizer.
func NewOutlineRasterizer() *OutlineRasterizer {
	return &OutlineRasterizer{}
}

// Rasterize implements Rasterizer.
func (r *OutlineRasterizer) Rasterize(f *Font, glyph GlyphID, size float64, bucket uint8) (Bitmap, error) {
	outline, ok := f.face.GlyphData(glyph).(font.GlyphOutline)
	if !ok || len(outline.Segments) == 0 {
		return Bitmap{}, nil
	}

	scale := f.Scale(size)
	shift := float32(bucket) / SubpixelBuckets
	tx := func(p opentype.SegmentPoint) (float32, float32) {
		return p.X*scale + shift, -p.Y * scale
	}

	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := -minX, -minY
	for _, seg := range outline.Segments {
		for _, p := range seg.ArgsSlice() {
			x, y := tx(p)
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
		}
	}
	left := int(math.Floor(float64(minX)))
	top := int(math.Floor(float64(minY)))
	w := int(math.Ceil(float64(maxX))) - left
	h := int(math.Ceil(float64(maxY))) - top
	if w <= 0 || h <= 0 {
		return Bitmap{}, nil
	}

	r.z.Reset(w, h)
	ox, oy := float32(left), float32(top)
	for i, seg := range outline.Segments {
		a := seg.Args
		switch seg.Op {
		case opentype.SegmentOpMoveTo:
			if i > 0 {
				r.z.ClosePath()
			}
			x, y := tx(a[0])
			r.z.MoveTo(x-ox, y-oy)
		case opentype.SegmentOpLineTo:
			x, y := tx(a[0])
			r.z.LineTo(x-ox, y-oy)
		case opentype.SegmentOpQuadTo:
			x1, y1 := tx(a[0])
			x2, y2 := tx(a[1])
			r.z.QuadTo(x1-ox, y1-oy, x2-ox, y2-oy)
		case opentype.SegmentOpCubeTo:
			x1, y1 := tx(a[0])
			x2, y2 := tx(a[1])
			x3, y3 := tx(a[2])
			r.z.CubeTo(x1-ox, y1-oy, x2-ox, y2-oy, x3-ox, y3-oy)
		}
	}
	r.z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	r.z.DrawOp = draw.Src
	r.z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return Bitmap{Mask: mask, Left: left, Top: top}, nil
}
