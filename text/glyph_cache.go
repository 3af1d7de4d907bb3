package text

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/internal/lru"
)

// GlyphCacheConfig holds configuration for GlyphCache.
type GlyphCacheConfig struct {
	// AtlasSize is the atlas edge length in pixels.
	// Default: 1024
	AtlasSize int

	// Padding is the gap between packed glyphs.
	// Default: 1
	Padding int

	// PipelineDepth is the number of frames the GPU may have in flight.
	// Frames older than the current frame minus PipelineDepth are treated
	// as retired even without a FrameRetired report.
	// Default: 2
	PipelineDepth int
}

// DefaultGlyphCacheConfig returns the default cache configuration.
func DefaultGlyphCacheConfig() GlyphCacheConfig {
	return GlyphCacheConfig{
		AtlasSize:     1024,
		Padding:       1,
		PipelineDepth: 2,
	}
}

// GlyphKey identifies a rasterized glyph.
type GlyphKey struct {
	Font   stage.FontID
	Glyph  GlyphID
	Size   uint32 // float32 bits of the pixel size
	Bucket uint8
}

// NewGlyphKey returns the key for glyph at size px and pen position x.
func NewGlyphKey(f stage.FontID, glyph GlyphID, size, x float64) GlyphKey {
	return GlyphKey{
		Font:   f,
		Glyph:  glyph,
		Size:   math.Float32bits(float32(size)),
		Bucket: SubpixelBucket(x),
	}
}

// GlyphEntry locates a glyph in the atlas.
type GlyphEntry struct {
	// Region is the glyph's slot in the atlas. It is empty for glyphs
	// without pixels, such as spaces.
	Region image.Rectangle
	// Left and Top offset the region from the pen position.
	Left, Top int

	lastUse uint64
}

// Empty reports whether the glyph has nothing to draw.
func (e GlyphEntry) Empty() bool {
	return e.Region.Empty()
}

// GlyphCacheStats holds cache statistics.
type GlyphCacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Exhausted uint64
	Entries   int
	AtlasUsed int
}

// GlyphCache maps glyphs to atlas slots and owns the atlas.
type GlyphCache struct {
	config  GlyphCacheConfig
	fonts   *FontRegistry
	raster  Rasterizer
	atlas   *Atlas
	entries *lru.Cache[GlyphKey, *GlyphEntry]

	frame   uint64
	retired uint64
	stats   GlyphCacheStats
}

// NewGlyphCache creates a glyph cache with default configuration.
func NewGlyphCache(fonts *FontRegistry, raster Rasterizer) *GlyphCache {
	return NewGlyphCacheWithConfig(fonts, raster, DefaultGlyphCacheConfig())
}

// NewGlyphCacheWithConfig creates a glyph cache. Zero config fields take
// their defaults. A nil raster selects the outline rasterizer.
func NewGlyphCacheWithConfig(fonts *FontRegistry, raster Rasterizer, config GlyphCacheConfig) *GlyphCache {
	def := DefaultGlyphCacheConfig()
	if config.AtlasSize <= 0 {
		config.AtlasSize = def.AtlasSize
	}
	if config.Padding < 0 {
		config.Padding = def.Padding
	}
	if config.PipelineDepth <= 0 {
		config.PipelineDepth = def.PipelineDepth
	}
	if raster == nil {
		raster = NewOutlineRasterizer()
	}

	c := &GlyphCache{
		config:  config,
		fonts:   fonts,
		raster:  raster,
		atlas:   NewAtlas(config.AtlasSize, config.Padding),
		entries: lru.New[GlyphKey, *GlyphEntry](0),
	}
	c.entries.OnEvict = func(k GlyphKey, e *GlyphEntry) {
		c.atlas.Free(e.Region)
		c.stats.Evictions++
		stage.Logger().Debug("text: glyph evicted", "font", k.Font, "glyph", k.Glyph, "last_use", e.lastUse)
	}
	return c
}

// Atlas returns the atlas backing the cache.
func (c *GlyphCache) Atlas() *Atlas {
	return c.atlas
}

// BeginFrame starts a new frame and returns its number. Glyphs looked up
// until the next BeginFrame are recorded as used by this frame.
func (c *GlyphCache) BeginFrame() uint64 {
	c.frame++
	return c.frame
}

// Frame returns the current frame number.
func (c *GlyphCache) Frame() uint64 {
	return c.frame
}

// FrameRetired records that the GPU finished reading frame n.
func (c *GlyphCache) FrameRetired(n uint64) {
	if n > c.retired {
		c.retired = n
	}
}

// retiredBound returns the newest frame no longer read by the GPU.
func (c *GlyphCache) retiredBound() uint64 {
	bound := c.retired
	if depth := uint64(c.config.PipelineDepth); c.frame > depth {
		bound = max(bound, c.frame-depth)
	}
	return min(bound, c.frame-1)
}

// Evictable reports whether an entry last used in frame lastUse may be
// evicted now.
func (c *GlyphCache) Evictable(lastUse uint64) bool {
	return c.frame > 0 && lastUse <= c.retiredBound()
}

// Get returns the atlas entry for key, rasterizing and packing the glyph
// on a miss. When the atlas is full, evictable entries are dropped in LRU
// order until the glyph fits. If it never fits, Get returns an error
// wrapping ErrAtlasExhausted and the glyph should be skipped this frame.
func (c *GlyphCache) Get(key GlyphKey) (GlyphEntry, bool, error) {
	if e, ok := c.entries.Get(key); ok {
		e.lastUse = c.frame
		c.stats.Hits++
		return *e, true, nil
	}
	c.stats.Misses++

	f, ok := c.fonts.Font(key.Font)
	if !ok {
		return GlyphEntry{}, false, fmt.Errorf("text: glyph %d: font %d: %w", key.Glyph, key.Font, stage.ErrShaping)
	}
	bm, err := c.raster.Rasterize(f, key.Glyph, float64(math.Float32frombits(key.Size)), key.Bucket)
	if err != nil {
		return GlyphEntry{}, false, fmt.Errorf("text: rasterize glyph %d: %w", key.Glyph, err)
	}

	e := &GlyphEntry{Left: bm.Left, Top: bm.Top, lastUse: c.frame}
	if !bm.Empty() {
		r, err := c.pack(bm.Mask.Rect.Dx(), bm.Mask.Rect.Dy())
		if err != nil {
			return GlyphEntry{}, false, err
		}
		c.atlas.Upload(r, bm.Mask)
		e.Region = r
	}
	c.entries.Put(key, e)
	return *e, false, nil
}

func (c *GlyphCache) pack(w, h int) (image.Rectangle, error) {
	keep := func(_ GlyphKey, e *GlyphEntry) bool {
		return e.Region.Empty() || !c.Evictable(e.lastUse)
	}
	for {
		if r, ok := c.atlas.Alloc(w, h); ok {
			return r, nil
		}
		if _, _, ok := c.entries.EvictOldest(keep); !ok {
			c.stats.Exhausted++
			stage.Logger().Warn("text: atlas exhausted", "w", w, "h", h, "entries", c.entries.Len())
			return image.Rectangle{}, fmt.Errorf("text: pack %dx%d glyph: %w", w, h, stage.ErrAtlasExhausted)
		}
	}
}

// Stats returns cache statistics.
func (c *GlyphCache) Stats() GlyphCacheStats {
	s := c.stats
	s.Entries = c.entries.Len()
	s.AtlasUsed = c.atlas.Used()
	return s
}

// Reset drops every entry and clears the atlas. Frame counters are kept.
func (c *GlyphCache) Reset() {
	c.entries.Clear()
	c.atlas.Reset()
	stage.Logger().Debug("text: glyph cache reset")
}
