package text

import (
	"errors"
	"image"
	"testing"

	"github.com/gogpu/stage"
)

// boxRasterizer returns solid w×h masks sitting on the baseline.
type boxRasterizer struct {
	w, h  int
	calls int
}

func (b *boxRasterizer) Rasterize(_ *Font, _ GlyphID, _ float64, _ uint8) (Bitmap, error) {
	b.calls++
	m := image.NewAlpha(image.Rect(0, 0, b.w, b.h))
	for i := range m.Pix {
		m.Pix[i] = 0xff
	}
	return Bitmap{Mask: m, Top: -b.h}, nil
}

func TestDefaultGlyphCacheConfig(t *testing.T) {
	config := DefaultGlyphCacheConfig()
	if config.AtlasSize != 1024 {
		t.Errorf("AtlasSize = %d, want 1024", config.AtlasSize)
	}
	if config.Padding != 1 {
		t.Errorf("Padding = %d, want 1", config.Padding)
	}
	if config.PipelineDepth != 2 {
		t.Errorf("PipelineDepth = %d, want 2", config.PipelineDepth)
	}
}

func TestNewGlyphCacheWithConfig_Defaults(t *testing.T) {
	fonts, _ := newTestRegistry(t)
	c := NewGlyphCacheWithConfig(fonts, nil, GlyphCacheConfig{})
	if c.config.AtlasSize != 1024 || c.config.PipelineDepth != 2 {
		t.Errorf("config = %+v", c.config)
	}
	if _, ok := c.raster.(*OutlineRasterizer); !ok {
		t.Errorf("default rasterizer = %T", c.raster)
	}
}

func TestGlyphCacheHitSameSlot(t *testing.T) {
	fonts, id := newTestRegistry(t)
	f, _ := fonts.Font(id)
	c := NewGlyphCache(fonts, nil)
	c.BeginFrame()

	key := NewGlyphKey(id, glyphFor(t, f, 'A'), 16, 0)
	first, hit, err := c.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("first request should miss")
	}
	if first.Empty() {
		t.Fatal("'A' should occupy an atlas slot")
	}
	before := append([]uint8(nil), c.Atlas().Pixels().Pix...)

	second, hit, err := c.Get(key)
	if err != nil {
		t.Fatal(err)
	}
	if !hit {
		t.Error("second request should hit")
	}
	if second.Region != first.Region || second.Left != first.Left || second.Top != first.Top {
		t.Errorf("second = %+v, want %+v", second, first)
	}
	if string(before) != string(c.Atlas().Pixels().Pix) {
		t.Error("a hit must not touch the atlas")
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Entries != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestGlyphCacheSubpixelBucketsAreDistinct(t *testing.T) {
	fonts, id := newTestRegistry(t)
	raster := &boxRasterizer{w: 4, h: 4}
	c := NewGlyphCache(fonts, raster)
	c.BeginFrame()

	for _, x := range []float64{10, 10.3, 10.6, 10.9, 11.1} {
		if _, _, err := c.Get(NewGlyphKey(id, 5, 12, x)); err != nil {
			t.Fatal(err)
		}
	}
	if raster.calls != 4 {
		t.Errorf("rasterized %d times, want 4", raster.calls)
	}
}

func TestGlyphCacheEmptyGlyph(t *testing.T) {
	fonts, id := newTestRegistry(t)
	f, _ := fonts.Font(id)
	c := NewGlyphCache(fonts, nil)
	c.BeginFrame()

	e, _, err := c.Get(NewGlyphKey(id, glyphFor(t, f, ' '), 16, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !e.Empty() {
		t.Errorf("space entry = %+v, want empty", e)
	}
	if c.Atlas().Used() != 0 {
		t.Errorf("atlas used = %d, want 0", c.Atlas().Used())
	}
}

// fillAtlas packs 16 unique 7x7 glyphs, which exactly fills a 32px atlas.
func fillAtlas(t *testing.T, c *GlyphCache, id stage.FontID) []GlyphEntry {
	t.Helper()
	var out []GlyphEntry
	for g := range GlyphID(16) {
		e, _, err := c.Get(NewGlyphKey(id, g+1, 12, 0))
		if err != nil {
			t.Fatalf("glyph %d: %v", g, err)
		}
		out = append(out, e)
	}
	return out
}

func newBoxCache(t *testing.T, depth int) (*GlyphCache, stage.FontID) {
	t.Helper()
	fonts, id := newTestRegistry(t)
	c := NewGlyphCacheWithConfig(fonts, &boxRasterizer{w: 7, h: 7}, GlyphCacheConfig{
		AtlasSize:     32,
		Padding:       1,
		PipelineDepth: depth,
	})
	return c, id
}

func TestGlyphCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, id := newBoxCache(t, 2)
	c.BeginFrame()
	entries := fillAtlas(t, c, id)

	// Touch glyph 1 so glyph 2 becomes the oldest.
	if _, hit, _ := c.Get(NewGlyphKey(id, 1, 12, 0)); !hit {
		t.Fatal("glyph 1 should be cached")
	}
	c.BeginFrame()
	c.BeginFrame()

	e, hit, err := c.Get(NewGlyphKey(id, 100, 12, 0))
	if err != nil {
		t.Fatalf("Get after fill: %v", err)
	}
	if hit {
		t.Error("new glyph should miss")
	}
	if e.Region != entries[1].Region {
		t.Errorf("new glyph at %v, want the evicted slot %v", e.Region, entries[1].Region)
	}
	st := c.Stats()
	if st.Evictions != 1 || st.Entries != 16 {
		t.Errorf("stats = %+v", st)
	}
	if _, hit, _ := c.Get(NewGlyphKey(id, 1, 12, 0)); !hit {
		t.Error("recently used glyph 1 should survive")
	}
	if st.AtlasUsed > 32*32 {
		t.Errorf("atlas used %d exceeds capacity", st.AtlasUsed)
	}
}

func TestGlyphCacheKeepsInFlightEntries(t *testing.T) {
	c, id := newBoxCache(t, 2)
	c.BeginFrame()
	fillAtlas(t, c, id)

	_, _, err := c.Get(NewGlyphKey(id, 100, 12, 0))
	if !errors.Is(err, stage.ErrAtlasExhausted) {
		t.Fatalf("err = %v, want ErrAtlasExhausted", err)
	}
	st := c.Stats()
	if st.Exhausted != 1 || st.Evictions != 0 || st.Entries != 16 {
		t.Errorf("stats = %+v", st)
	}
}

func TestGlyphCacheFrameRetired(t *testing.T) {
	c, id := newBoxCache(t, 100)
	c.BeginFrame()
	fillAtlas(t, c, id)
	c.BeginFrame()
	c.BeginFrame()

	// Frame 1 is still within the pipeline depth and not reported done.
	if _, _, err := c.Get(NewGlyphKey(id, 100, 12, 0)); !errors.Is(err, stage.ErrAtlasExhausted) {
		t.Fatalf("err = %v, want ErrAtlasExhausted", err)
	}
	if c.Evictable(1) {
		t.Error("frame 1 should not be evictable yet")
	}

	c.FrameRetired(1)
	if !c.Evictable(1) {
		t.Error("frame 1 should be evictable after retirement")
	}
	if _, _, err := c.Get(NewGlyphKey(id, 100, 12, 0)); err != nil {
		t.Fatalf("Get after FrameRetired: %v", err)
	}
	if c.Evictable(c.Frame()) {
		t.Error("the current frame is never evictable")
	}
}

func TestGlyphCacheReset(t *testing.T) {
	c, id := newBoxCache(t, 2)
	c.BeginFrame()
	fillAtlas(t, c, id)
	c.Atlas().TakeDirty()

	c.Reset()
	if st := c.Stats(); st.Entries != 0 || st.AtlasUsed != 0 {
		t.Errorf("stats after reset = %+v", st)
	}
	if len(c.Atlas().TakeDirty()) != 1 {
		t.Error("reset should mark the whole atlas dirty")
	}
	if _, hit, err := c.Get(NewGlyphKey(id, 1, 12, 0)); hit || err != nil {
		t.Errorf("Get after reset = hit %v, err %v", hit, err)
	}
}

func TestGlyphCacheUnknownFont(t *testing.T) {
	fonts, _ := newTestRegistry(t)
	c := NewGlyphCache(fonts, &boxRasterizer{w: 1, h: 1})
	c.BeginFrame()
	if _, _, err := c.Get(NewGlyphKey(9, 1, 12, 0)); !errors.Is(err, stage.ErrShaping) {
		t.Errorf("err = %v, want ErrShaping", err)
	}
}
