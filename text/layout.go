package text

import (
	"hash/fnv"
	"math"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/internal/lru"
)

// Request describes text to shape.
type Request struct {
	Text string
	Font stage.FontID
	// Size is the font size in pixels.
	Size float64
	// WrapWidth is the maximum line width in pixels. Zero disables wrapping.
	WrapWidth float64
}

// LayoutKey identifies a shaped layout.
type LayoutKey struct {
	TextHash uint64
	Font     stage.FontID
	SizeBits uint32
	WrapBits uint32
}

// Key returns the cache key for r.
func (r Request) Key() LayoutKey {
	return LayoutKey{
		TextHash: hashString(r.Text),
		Font:     r.Font,
		SizeBits: math.Float32bits(float32(r.Size)),
		WrapBits: math.Float32bits(float32(r.WrapWidth)),
	}
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// PositionedGlyph is a glyph with its pen position relative to the layout
// origin. Y is the baseline, growing down.
type PositionedGlyph struct {
	Glyph   GlyphID
	X, Y    float32
	Advance float32
	// Cluster is the rune index of the first rune this glyph represents.
	Cluster int
}

// Layout is shaped, wrapped text. Layouts are immutable once built and are
// shared through the layout cache.
type Layout struct {
	// Font is the font actually used, which differs from the request when
	// the fallback font was substituted.
	Font   stage.FontID
	Size   float64
	Glyphs []PositionedGlyph

	Width, Height float32
	Lines         int
	Ascent        float32
	Descent       float32
	LineHeight    float32

	// Notdef counts glyphs that fell back to glyph 0.
	Notdef int
}

// LayoutCacheStats reports layout cache effectiveness.
type LayoutCacheStats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

type layoutEntry struct {
	text   string
	layout *Layout
}

// LayoutCache is an LRU of shaped layouts.
type LayoutCache struct {
	lru    *lru.Cache[LayoutKey, layoutEntry]
	hits   uint64
	misses uint64
}

// DefaultLayoutCacheSize is the layout cache capacity used when none is
// configured.
const DefaultLayoutCacheSize = 1024

// NewLayoutCache returns a cache holding at most capacity layouts.
func NewLayoutCache(capacity int) *LayoutCache {
	if capacity <= 0 {
		capacity = DefaultLayoutCacheSize
	}
	return &LayoutCache{lru: lru.New[LayoutKey, layoutEntry](capacity)}
}

// Get returns the cached layout for r. Hash collisions are detected by
// comparing the text.
func (c *LayoutCache) Get(r Request) (*Layout, bool) {
	e, ok := c.lru.Get(r.Key())
	if !ok || e.text != r.Text {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.layout, true
}

// Put stores l as the layout for r.
func (c *LayoutCache) Put(r Request, l *Layout) {
	c.lru.Put(r.Key(), layoutEntry{text: r.Text, layout: l})
}

// Stats returns hit and miss counters.
func (c *LayoutCache) Stats() LayoutCacheStats {
	return LayoutCacheStats{Hits: c.hits, Misses: c.misses, Len: c.lru.Len()}
}

// Clear drops every layout.
func (c *LayoutCache) Clear() {
	c.lru.Clear()
}
