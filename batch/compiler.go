// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package batch

import (
	"errors"
	"image"
	"math"
	"slices"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/internal/tessellate"
	"github.com/gogpu/stage/scene"
	"github.com/gogpu/stage/text"
)

// TextureResolver reports which sprite textures can be sampled.
type TextureResolver interface {
	// ResolveTexture returns the pixel size of a ready texture. It
	// returns false while the texture is pending or after it failed.
	ResolveTexture(id stage.TextureID) (image.Point, bool)
}

// FrameContext carries per-frame inputs of Compile.
type FrameContext struct {
	Viewport    image.Point
	ScaleFactor float64
	Camera      scene.Camera
	Clear       stage.RGBA
	Textures    TextureResolver
}

// Config holds configuration for Compiler.
type Config struct {
	// Tolerance is the flattening tolerance in device pixels.
	// Default: 0.25
	Tolerance float64

	// MeshCacheSize is the number of tessellated meshes kept.
	// Default: 512
	MeshCacheSize int

	// Order selects the batch sort order.
	Order Order

	// Placeholder is drawn for sprites whose texture is not ready.
	// Default: 50% gray
	Placeholder stage.RGBA

	// MaxDirtyRects bounds the atlas uploads per frame; more dirty
	// regions are merged into their bounding box.
	// Default: 32
	MaxDirtyRects int
}

// DefaultConfig returns the default compiler configuration.
func DefaultConfig() Config {
	return Config{
		Tolerance:     tessellate.DefaultTolerance,
		MeshCacheSize: 512,
		Order:         OrderByState,
		Placeholder:   stage.RGBA{R: 0.5, G: 0.5, B: 0.5, A: 1},
		MaxDirtyRects: 32,
	}
}

// Stats describes the last compiled frame and cache effectiveness.
type Stats struct {
	Batches       int
	DrawCalls     int
	Vertices      int
	Placeholders  int
	Tiles         int
	GlyphsDropped int
	Meshes        tessellate.Stats
}

// Compiler turns the scene into sorted draw batches. It owns the
// tessellation cache and drives the glyph cache. A Compiler is used from
// the frame goroutine only.
type Compiler struct {
	config Config
	shaper *text.Shaper
	glyphs *text.GlyphCache
	meshes *tessellate.Cache

	white stage.TextureID
	atlas stage.TextureID

	pending     []Upload
	needWhite   bool
	needAtlas   bool
	batches     map[Key]*Batch
	stats       Stats
	lastDropped int
}

// NewCompiler creates a compiler with default configuration.
func NewCompiler(shaper *text.Shaper, glyphs *text.GlyphCache) *Compiler {
	return NewCompilerWithConfig(shaper, glyphs, DefaultConfig())
}

// NewCompilerWithConfig creates a compiler. Zero config fields take their
// defaults.
func NewCompilerWithConfig(shaper *text.Shaper, glyphs *text.GlyphCache, config Config) *Compiler {
	def := DefaultConfig()
	if config.Tolerance <= 0 {
		config.Tolerance = def.Tolerance
	}
	if config.MeshCacheSize <= 0 {
		config.MeshCacheSize = def.MeshCacheSize
	}
	if config.Placeholder == (stage.RGBA{}) {
		config.Placeholder = def.Placeholder
	}
	if config.MaxDirtyRects <= 0 {
		config.MaxDirtyRects = def.MaxDirtyRects
	}
	return &Compiler{
		config:    config,
		shaper:    shaper,
		glyphs:    glyphs,
		meshes:    tessellate.NewCache(config.MeshCacheSize),
		white:     stage.NextTextureID(),
		atlas:     stage.NextTextureID(),
		needWhite: true,
		needAtlas: true,
		batches:   make(map[Key]*Batch),
	}
}

// WhiteTexture returns the id of the 1x1 white texture used by solid
// geometry.
func (c *Compiler) WhiteTexture() stage.TextureID { return c.white }

// AtlasTexture returns the id of the glyph atlas texture.
func (c *Compiler) AtlasTexture() stage.TextureID { return c.atlas }

// Glyphs returns the glyph cache.
func (c *Compiler) Glyphs() *text.GlyphCache { return c.glyphs }

// Stats returns statistics of the last Compile.
func (c *Compiler) Stats() Stats {
	s := c.stats
	s.Meshes = c.meshes.Stats()
	return s
}

// QueueTexture schedules img for upload as texture id in the next frame.
// image.RGBA is premultiplied, matching FormatRGBA8.
func (c *Compiler) QueueTexture(id stage.TextureID, img *image.RGBA) {
	b := img.Bounds()
	pix := make([]byte, 0, b.Dx()*b.Dy()*4)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		pix = append(pix, img.Pix[off:off+b.Dx()*4]...)
	}
	u := Upload{
		Texture: id,
		Format:  FormatRGBA8,
		Size:    b.Size(),
		Region:  image.Rectangle{Max: b.Size()},
		Pix:     pix,
	}
	if i := slices.IndexFunc(c.pending, func(p Upload) bool { return p.Texture == id }); i >= 0 {
		c.pending[i] = u
		return
	}
	c.pending = append(c.pending, u)
}

// Requeue puts uploads that never reached the backend back in front of the
// pending queue, typically the Uploads of a frame whose Submit failed.
// Newer queued uploads for the same texture win.
func (c *Compiler) Requeue(uploads []Upload) {
	out := make([]Upload, 0, len(uploads)+len(c.pending))
	for _, u := range uploads {
		switch {
		case u.Texture == c.white:
			c.needWhite = true
		case u.Texture == c.atlas:
			c.needAtlas = true
		case !slices.ContainsFunc(c.pending, func(p Upload) bool { return p.Texture == u.Texture }):
			out = append(out, u)
		}
	}
	c.pending = append(out, c.pending...)
}

// Reset drops every GPU-derived cache after a device loss or resize. The
// next frame re-uploads the white texture and the whole atlas. Queued image
// uploads are kept: they have not been sent yet.
func (c *Compiler) Reset() {
	c.meshes.Clear()
	c.glyphs.Reset()
	c.glyphs.Atlas().TakeDirty()
	c.needWhite = true
	c.needAtlas = true
}

// Compile walks arena and returns the frame's uploads and batches. It
// starts a new glyph cache frame.
func (c *Compiler) Compile(arena *scene.Arena, ctx FrameContext) (*Frame, error) {
	if arena == nil {
		return nil, errors.New("batch: compile: nil arena")
	}
	if ctx.ScaleFactor <= 0 {
		ctx.ScaleFactor = 1
	}
	frame := &Frame{
		Number:   c.glyphs.BeginFrame(),
		Viewport: ctx.Viewport,
		Clear:    ctx.Clear,
	}
	c.stats = Stats{}
	clear(c.batches)

	view := ctx.Camera.View(ctx.ScaleFactor)
	screen := stage.Scale(ctx.ScaleFactor, ctx.ScaleFactor)

	arena.Walk(func(v scene.Visit) bool {
		m := view.Multiply(v.World)
		if v.ViewportRelative {
			m = screen.Multiply(v.World)
		}
		switch content := v.Content.(type) {
		case scene.Rectangle:
			p := stage.NewPath().RoundedRectangle(0, 0, content.Width, content.Height, content.Radius)
			c.shape(p, content.Fill, content.Stroke, m, v)
		case scene.Path:
			if content.Path != nil {
				c.shape(content.Path, content.Fill, content.Stroke, m, v)
			}
		case scene.Sprite:
			c.sprite(content, m, v, ctx.Textures)
		case scene.Text:
			c.text(content, m, v)
		case scene.TileMap:
			c.tileMap(content, m, v, ctx)
		}
		return true
	})

	frame.Uploads = c.uploads()
	frame.Batches = c.sorted()

	c.stats.Batches = len(frame.Batches)
	c.stats.DrawCalls = frame.DrawCalls()
	c.stats.Vertices = frame.Vertices()
	if c.stats.GlyphsDropped > 0 && c.lastDropped == 0 {
		stage.Logger().Warn("batch: glyphs dropped", "frame", frame.Number, "count", c.stats.GlyphsDropped, "err", stage.ErrAtlasExhausted)
	}
	c.lastDropped = c.stats.GlyphsDropped
	return frame, nil
}

func (c *Compiler) batch(v scene.Visit, tex stage.TextureID) *Batch {
	k := Key{Texture: tex, Blend: v.Blend, Layer: v.Layer}
	b, ok := c.batches[k]
	if !ok {
		b = &Batch{Key: k}
		c.batches[k] = b
	}
	return b
}

func (c *Compiler) sorted() []Batch {
	keys := make([]Key, 0, len(c.batches))
	for k, b := range c.batches {
		if len(b.Indices) > 0 {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, c.config.Order.compare)
	out := make([]Batch, 0, len(keys))
	for _, k := range keys {
		out = append(out, *c.batches[k])
	}
	return out
}

// shape draws a filled and optionally stroked path in local space m.
func (c *Compiler) shape(p *stage.Path, fill stage.RGBA, stroke *stage.Stroke, m stage.Matrix, v scene.Visit) {
	tol := c.config.Tolerance
	if s := m.ScaleFactor(); s > 0 {
		tol /= s
	}
	hash := p.Hash()
	b := c.batch(v, c.white)

	if fill.A > 0 {
		mesh, _ := c.meshes.Lookup(tessellate.FillKey(hash, tol), func() *tessellate.Mesh {
			return tessellate.Fill(tessellate.Flatten(p, tessellate.QuantizeTolerance(tol)))
		})
		appendMesh(b, mesh, m, fill.Premultiplied())
	}
	if stroke != nil && stroke.Width > 0 && stroke.Color.A > 0 {
		style := tessellate.StrokeStyle{
			Width:      float32(stroke.Width),
			Join:       stroke.Join,
			MiterLimit: float32(stroke.MiterLimit),
		}
		mesh, _ := c.meshes.Lookup(tessellate.StrokeKey(hash, tol, style), func() *tessellate.Mesh {
			return tessellate.Stroke(tessellate.Flatten(p, tessellate.QuantizeTolerance(tol)), style)
		})
		appendMesh(b, mesh, m, stroke.Color.Premultiplied())
	}
}

func appendMesh(b *Batch, mesh *tessellate.Mesh, m stage.Matrix, col [4]uint8) {
	if mesh.Empty() {
		return
	}
	base := uint32(len(b.Vertices))
	for _, p := range mesh.Positions {
		d := m.TransformPoint(stage.Pt(float64(p.X), float64(p.Y)))
		b.Vertices = append(b.Vertices, Vertex{X: float32(d.X), Y: float32(d.Y), U: 0.5, V: 0.5, Color: col})
	}
	for _, i := range mesh.Indices {
		b.Indices = append(b.Indices, base+i)
	}
}

// quad appends a textured quad with corners transformed by m.
func quad(b *Batch, m stage.Matrix, r stage.Rect, uv [4]float32, col [4]uint8) {
	base := uint32(len(b.Vertices))
	corners := [4]stage.Point{
		{X: r.X, Y: r.Y},
		{X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H},
		{X: r.X, Y: r.Y + r.H},
	}
	uvs := [4][2]float32{{uv[0], uv[1]}, {uv[2], uv[1]}, {uv[2], uv[3]}, {uv[0], uv[3]}}
	for i, p := range corners {
		d := m.TransformPoint(p)
		b.Vertices = append(b.Vertices, Vertex{X: float32(d.X), Y: float32(d.Y), U: uvs[i][0], V: uvs[i][1], Color: col})
	}
	b.Indices = append(b.Indices, base, base+1, base+2, base, base+2, base+3)
}

func (c *Compiler) sprite(s scene.Sprite, m stage.Matrix, v scene.Visit, textures TextureResolver) {
	var (
		size  image.Point
		ready bool
	)
	if textures != nil && s.Texture != 0 {
		size, ready = textures.ResolveTexture(s.Texture)
	}

	dst := s.Size
	if dst == (stage.Point{}) {
		switch {
		case !s.Source.Empty():
			dst = stage.Pt(s.Source.W, s.Source.H)
		case ready:
			dst = stage.Pt(float64(size.X), float64(size.Y))
		}
	}
	rect := stage.R(0, 0, dst.X, dst.Y)

	if !ready {
		c.stats.Placeholders++
		quad(c.batch(v, c.white), m, rect, [4]float32{0.5, 0.5, 0.5, 0.5}, c.config.Placeholder.Premultiplied())
		return
	}

	uv := [4]float32{0, 0, 1, 1}
	if !s.Source.Empty() && size.X > 0 && size.Y > 0 {
		w, h := float64(size.X), float64(size.Y)
		uv = [4]float32{
			float32(s.Source.X / w), float32(s.Source.Y / h),
			float32((s.Source.X + s.Source.W) / w), float32((s.Source.Y + s.Source.H) / h),
		}
	}
	tint := s.Tint
	if tint == (stage.RGBA{}) {
		tint = stage.White
	}
	quad(c.batch(v, s.Texture), m, rect, uv, tint.Premultiplied())
}

// tileMap draws the visible cells as sprites, so pending tile textures
// get placeholders like any other sprite.
func (c *Compiler) tileMap(t scene.TileMap, m stage.Matrix, v scene.Visit, ctx FrameContext) {
	cells := t.Visible(m, ctx.Viewport)
	size := stage.Pt(t.TileWidth, t.TileHeight)
	for y := cells.Min.Y; y < cells.Max.Y; y++ {
		for x := cells.Min.X; x < cells.Max.X; x++ {
			tile, ok := t.Provider.Tile(x, y)
			if !ok {
				continue
			}
			c.stats.Tiles++
			at := m.Multiply(stage.Translate(float64(x)*t.TileWidth, float64(y)*t.TileHeight))
			c.sprite(scene.Sprite{Texture: tile.Texture, Source: tile.Source, Size: size, Tint: tile.Tint}, at, v, ctx.Textures)
		}
	}
}

// text draws glyph quads. Glyphs are rasterized at the device size. Under
// a uniform scale they are pixel-snapped at their transformed pen
// positions; any rotation, skew, flip or uneven scale left in m is applied
// to each quad around its pen position.
func (c *Compiler) text(t scene.Text, m stage.Matrix, v scene.Visit) {
	if t.Text == "" || t.Size <= 0 || t.Color.A <= 0 {
		return
	}
	layout, err := c.shaper.Shape(text.Request{Text: t.Text, Font: t.Font, Size: t.Size, WrapWidth: t.WrapWidth})
	if err != nil {
		stage.Logger().Warn("batch: text skipped", "node", v.ID, "err", err)
		return
	}

	scale := m.ScaleFactor()
	if scale == 0 {
		return
	}
	px := t.Size * scale
	atlasSize := float32(c.glyphs.Atlas().Size())
	col := t.Color.Premultiplied()
	b := c.batch(v, c.atlas)
	residual := stage.Scale(1/scale, 1/scale).Multiply(m.Linear())
	upright := residual.ApproxEqual(stage.Identity(), 1e-9)

	for _, g := range layout.Glyphs {
		pen := m.TransformPoint(stage.Pt(float64(g.X), float64(g.Y)))
		e, _, err := c.glyphs.Get(text.NewGlyphKey(layout.Font, g.Glyph, px, pen.X))
		if err != nil {
			if errors.Is(err, stage.ErrAtlasExhausted) {
				c.stats.GlyphsDropped++
			} else {
				stage.Logger().Debug("batch: glyph skipped", "glyph", g.Glyph, "err", err)
			}
			continue
		}
		if e.Empty() {
			continue
		}
		r := e.Region
		uv := [4]float32{
			float32(r.Min.X) / atlasSize, float32(r.Min.Y) / atlasSize,
			float32(r.Max.X) / atlasSize, float32(r.Max.Y) / atlasSize,
		}
		if upright {
			x := math.Floor(pen.X) + float64(e.Left)
			y := math.Round(pen.Y) + float64(e.Top)
			quad(b, stage.Identity(), stage.R(x, y, float64(r.Dx()), float64(r.Dy())), uv, col)
			continue
		}
		gm := residual
		gm.C, gm.F = pen.X, pen.Y
		quad(b, gm, stage.R(float64(e.Left), float64(e.Top), float64(r.Dx()), float64(r.Dy())), uv, col)
	}
}

// uploads returns pending texture uploads followed by atlas changes.
func (c *Compiler) uploads() []Upload {
	out := c.pending
	c.pending = nil

	if c.needWhite {
		out = append(out, Upload{
			Texture: c.white,
			Format:  FormatRGBA8,
			Size:    image.Pt(1, 1),
			Region:  image.Rect(0, 0, 1, 1),
			Pix:     []byte{0xff, 0xff, 0xff, 0xff},
		})
		c.needWhite = false
	}

	atlas := c.glyphs.Atlas()
	pix := atlas.Pixels()
	size := image.Pt(atlas.Size(), atlas.Size())
	dirty := atlas.TakeDirty()
	if c.needAtlas {
		dirty = []image.Rectangle{pix.Rect}
		c.needAtlas = false
	}
	if len(dirty) > c.config.MaxDirtyRects {
		u := image.Rectangle{}
		for _, r := range dirty {
			u = u.Union(r)
		}
		dirty = []image.Rectangle{u}
	}
	for _, r := range dirty {
		r = r.Intersect(pix.Rect)
		if r.Empty() {
			continue
		}
		out = append(out, Upload{
			Texture: c.atlas,
			Format:  FormatR8,
			Size:    size,
			Region:  r,
			Pix:     alphaRows(pix, r),
		})
	}
	return out
}

func alphaRows(img *image.Alpha, r image.Rectangle) []byte {
	out := make([]byte, 0, r.Dx()*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		out = append(out, img.Pix[off:off+r.Dx()]...)
	}
	return out
}
