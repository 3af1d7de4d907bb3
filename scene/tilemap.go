package scene

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/stage"
)

// MaxVisibleTiles bounds the cells a TileMap draws in one frame. A larger
// visible range from an unbounded provider draws nothing.
const MaxVisibleTiles = 1 << 16

// Tile is the sprite drawn in one map cell. It fills the cell.
type Tile struct {
	Texture stage.TextureID
	// Source is the sub-rectangle of the texture; empty means the whole
	// texture.
	Source stage.Rect
	Tint   stage.RGBA
}

// TileProvider supplies the tile at a cell. Cells may be negative.
// Providers that also implement Bounds are never asked about cells
// outside that rectangle.
type TileProvider interface {
	Tile(x, y int) (Tile, bool)
}

// TileMap draws a grid of tiles with cell (0, 0) at the local origin.
// Only cells that intersect the viewport are requested from the provider.
type TileMap struct {
	TileWidth, TileHeight float64
	Provider              TileProvider
}

// Kind implements Content.
func (TileMap) Kind() ContentKind { return KindTileMap }

// Visible returns the half-open cell range covering the device rectangle
// (0, 0, viewport) when the map is drawn with the local-to-device matrix m.
// The range is clipped to the provider's bounds when it has them. An
// empty viewport, a singular m or a range larger than MaxVisibleTiles
// yields an empty rectangle.
func (t TileMap) Visible(m stage.Matrix, viewport image.Point) image.Rectangle {
	if t.TileWidth <= 0 || t.TileHeight <= 0 || t.Provider == nil || viewport.X <= 0 || viewport.Y <= 0 {
		return image.Rectangle{}
	}
	inv, ok := m.Invert()
	if !ok {
		return image.Rectangle{}
	}
	w, h := float64(viewport.X), float64(viewport.Y)
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range [4]stage.Point{{}, {X: w}, {X: w, Y: h}, {Y: h}} {
		q := inv.TransformPoint(p)
		minX, maxX = min(minX, q.X), max(maxX, q.X)
		minY, maxY = min(minY, q.Y), max(maxY, q.Y)
	}
	r := image.Rect(
		cell(minX/t.TileWidth, math.Floor), cell(minY/t.TileHeight, math.Floor),
		cell(maxX/t.TileWidth, math.Ceil), cell(maxY/t.TileHeight, math.Ceil),
	)
	if b, ok := t.Provider.(interface{ Bounds() image.Rectangle }); ok {
		r = r.Intersect(b.Bounds())
	}
	if r.Empty() || r.Dx()*r.Dy() > MaxVisibleTiles {
		return image.Rectangle{}
	}
	return r
}

// cell rounds v and clamps it well inside int range.
func cell(v float64, round func(float64) float64) int {
	const limit = 1 << 30
	return int(max(-limit, min(limit, round(v))))
}

// TileGrid is a TileProvider for a fixed-size map, stored row-major.
type TileGrid struct {
	width, height int
	tiles         []Tile
	set           []bool
}

// NewTileGrid returns an empty width×height grid.
func NewTileGrid(width, height int) *TileGrid {
	width, height = max(width, 0), max(height, 0)
	return &TileGrid{
		width:  width,
		height: height,
		tiles:  make([]Tile, width*height),
		set:    make([]bool, width*height),
	}
}

// Bounds returns the cells the grid covers.
func (g *TileGrid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.width, g.height)
}

// Set places t at cell (x, y).
func (g *TileGrid) Set(x, y int, t Tile) error {
	i, ok := g.index(x, y)
	if !ok {
		return fmt.Errorf("scene: tile (%d, %d) outside %dx%d grid", x, y, g.width, g.height)
	}
	g.tiles[i], g.set[i] = t, true
	return nil
}

// Clear empties cell (x, y). Cells outside the grid are ignored.
func (g *TileGrid) Clear(x, y int) {
	if i, ok := g.index(x, y); ok {
		g.tiles[i], g.set[i] = Tile{}, false
	}
}

// Tile implements TileProvider.
func (g *TileGrid) Tile(x, y int) (Tile, bool) {
	i, ok := g.index(x, y)
	if !ok || !g.set[i] {
		return Tile{}, false
	}
	return g.tiles[i], true
}

func (g *TileGrid) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= g.width || y >= g.height {
		return 0, false
	}
	return y*g.width + x, true
}
