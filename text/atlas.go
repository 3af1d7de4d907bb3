package text

import (
	"image"
	"image/draw"
	"slices"
)

// Atlas packs glyph masks into a fixed-size 8-bit texture using shelves.
// Each shelf keeps a sorted list of free horizontal spans, so freed slots
// are reused by later glyphs of similar height and adjacent free spans
// coalesce. A shelf that becomes completely free merges with empty
// neighbours, and an empty shelf is cut down to the height of the glyph
// that reuses it, so freed rows anywhere in the atlas can serve taller or
// shorter glyphs. An empty shelf at the bottom is released entirely.
type Atlas struct {
	size    int
	padding int
	pix     *image.Alpha
	shelves []*shelf
	nextY   int
	used    int
	dirty   []image.Rectangle
}

type shelf struct {
	y, h int
	free []span
}

type span struct {
	x, w int
}

// NewAtlas returns an empty size×size atlas. Every slot is surrounded by
// padding pixels on its right and bottom edges.
func NewAtlas(size, padding int) *Atlas {
	if padding < 0 {
		padding = 0
	}
	return &Atlas{
		size:    size,
		padding: padding,
		pix:     image.NewAlpha(image.Rect(0, 0, size, size)),
	}
}

// Size returns the atlas edge length in pixels.
func (a *Atlas) Size() int {
	return a.size
}

// Pixels returns the backing coverage image.
func (a *Atlas) Pixels() *image.Alpha {
	return a.pix
}

// Used returns the allocated area including padding. It never exceeds
// Size()*Size().
func (a *Atlas) Used() int {
	return a.used
}

// Alloc reserves a w×h region. The shelf with the tightest height that
// has a wide enough free span wins; otherwise a new shelf is opened below
// the last one.
func (a *Atlas) Alloc(w, h int) (image.Rectangle, bool) {
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	pw, ph := w+a.padding, h+a.padding
	if pw > a.size || ph > a.size {
		return image.Rectangle{}, false
	}

	var (
		best     *shelf
		bestIdx  int
		bestSpan = -1
	)
	for idx, s := range a.shelves {
		if s.h < ph || (best != nil && s.h >= best.h) {
			continue
		}
		for i, sp := range s.free {
			if sp.w >= pw {
				best, bestIdx, bestSpan = s, idx, i
				break
			}
		}
	}
	if best != nil && best.h > ph && a.empty(best) {
		rest := &shelf{y: best.y + ph, h: best.h - ph, free: []span{{x: 0, w: a.size}}}
		a.shelves = slices.Insert(a.shelves, bestIdx+1, rest)
		best.h = ph
	}
	if best == nil {
		if a.nextY+ph > a.size {
			return image.Rectangle{}, false
		}
		best = &shelf{y: a.nextY, h: ph, free: []span{{x: 0, w: a.size}}}
		a.shelves = append(a.shelves, best)
		a.nextY += ph
		bestSpan = 0
	}

	sp := &best.free[bestSpan]
	r := image.Rect(sp.x, best.y, sp.x+w, best.y+h)
	sp.x += pw
	sp.w -= pw
	if sp.w == 0 {
		best.free = slices.Delete(best.free, bestSpan, bestSpan+1)
	}
	a.used += pw * best.h
	return r, true
}

// Free releases a region returned by Alloc and clears its pixels.
func (a *Atlas) Free(r image.Rectangle) {
	if r.Empty() {
		return
	}
	idx := slices.IndexFunc(a.shelves, func(s *shelf) bool { return s.y == r.Min.Y })
	if idx < 0 {
		return
	}
	s := a.shelves[idx]
	pw := r.Dx() + a.padding
	a.used -= pw * s.h

	draw.Draw(a.pix, r, image.Transparent, image.Point{}, draw.Src)
	a.markDirty(r)

	i, _ := slices.BinarySearchFunc(s.free, r.Min.X, func(sp span, x int) int { return sp.x - x })
	s.free = slices.Insert(s.free, i, span{x: r.Min.X, w: pw})
	if i+1 < len(s.free) && s.free[i].x+s.free[i].w == s.free[i+1].x {
		s.free[i].w += s.free[i+1].w
		s.free = slices.Delete(s.free, i+1, i+2)
	}
	if i > 0 && s.free[i-1].x+s.free[i-1].w == s.free[i].x {
		s.free[i-1].w += s.free[i].w
		s.free = slices.Delete(s.free, i, i+1)
	}

	if !a.empty(s) {
		return
	}
	if idx+1 < len(a.shelves) && a.empty(a.shelves[idx+1]) {
		s.h += a.shelves[idx+1].h
		a.shelves = slices.Delete(a.shelves, idx+1, idx+2)
	}
	if idx > 0 && a.empty(a.shelves[idx-1]) {
		a.shelves[idx-1].h += s.h
		a.shelves = slices.Delete(a.shelves, idx, idx+1)
	}
	if last := a.shelves[len(a.shelves)-1]; a.empty(last) {
		a.shelves = a.shelves[:len(a.shelves)-1]
		a.nextY = last.y
	}
}

func (a *Atlas) empty(s *shelf) bool {
	return len(s.free) == 1 && s.free[0].x == 0 && s.free[0].w == a.size
}

// Upload copies mask into region r and records r as dirty.
func (a *Atlas) Upload(r image.Rectangle, mask *image.Alpha) {
	draw.Draw(a.pix, r, mask, mask.Bounds().Min, draw.Src)
	a.markDirty(r)
}

func (a *Atlas) markDirty(r image.Rectangle) {
	a.dirty = append(a.dirty, r)
}

// TakeDirty returns the regions modified since the last call and resets
// the list.
func (a *Atlas) TakeDirty() []image.Rectangle {
	d := a.dirty
	a.dirty = nil
	return d
}

// Reset frees every slot and clears the pixels. The whole atlas is marked
// dirty.
func (a *Atlas) Reset() {
	clear(a.pix.Pix)
	a.shelves = a.shelves[:0]
	a.nextY = 0
	a.used = 0
	a.dirty = append(a.dirty[:0], a.pix.Rect)
}
