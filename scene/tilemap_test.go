package scene

import (
	"image"
	"testing"

	"github.com/gogpu/stage"
)

// everywhere is an unbounded provider with a tile in every cell.
type everywhere struct{}

func (everywhere) Tile(int, int) (Tile, bool) { return Tile{Texture: 1}, true }

func TestTileMapVisible(t *testing.T) {
	grid := NewTileGrid(3, 3)
	tests := []struct {
		name     string
		provider TileProvider
		m        stage.Matrix
		viewport image.Point
		want     image.Rectangle
	}{
		{"origin", everywhere{}, stage.Identity(), image.Pt(35, 20), image.Rect(0, 0, 4, 2)},
		{"camera offset", everywhere{}, stage.Translate(-15, -5), image.Pt(35, 20), image.Rect(1, 0, 5, 3)},
		{"zoomed", everywhere{}, stage.Scale(2, 2), image.Pt(40, 40), image.Rect(0, 0, 2, 2)},
		{"negative cells", everywhere{}, stage.Translate(25, 25), image.Pt(50, 50), image.Rect(-3, -3, 3, 3)},
		{"clipped to grid", grid, stage.Identity(), image.Pt(100, 100), image.Rect(0, 0, 3, 3)},
		{"grid off screen", grid, stage.Translate(-100, 0), image.Pt(50, 50), image.Rectangle{}},
		{"empty viewport", everywhere{}, stage.Identity(), image.Point{}, image.Rectangle{}},
		{"singular", everywhere{}, stage.Scale(0, 1), image.Pt(50, 50), image.Rectangle{}},
		{"too many cells", everywhere{}, stage.Scale(1e-3, 1e-3), image.Pt(50, 50), image.Rectangle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := TileMap{TileWidth: 10, TileHeight: 10, Provider: tt.provider}
			if got := tm.Visible(tt.m, tt.viewport); got != tt.want {
				t.Errorf("Visible = %v, want %v", got, tt.want)
			}
		})
	}
	if got := (TileMap{Provider: everywhere{}}).Visible(stage.Identity(), image.Pt(10, 10)); !got.Empty() {
		t.Errorf("zero tile size Visible = %v, want empty", got)
	}
}

func TestTileGrid(t *testing.T) {
	g := NewTileGrid(2, 3)
	if g.Bounds() != image.Rect(0, 0, 2, 3) {
		t.Errorf("Bounds = %v", g.Bounds())
	}
	if err := g.Set(1, 2, Tile{Texture: 7}); err != nil {
		t.Fatal(err)
	}
	if tile, ok := g.Tile(1, 2); !ok || tile.Texture != 7 {
		t.Errorf("Tile(1, 2) = %+v, %v", tile, ok)
	}
	if _, ok := g.Tile(0, 0); ok {
		t.Error("unset cell should be empty")
	}
	if _, ok := g.Tile(-1, 0); ok {
		t.Error("cell outside the grid should be empty")
	}
	if err := g.Set(2, 0, Tile{}); err == nil {
		t.Error("Set outside the grid should fail")
	}
	g.Clear(1, 2)
	if _, ok := g.Tile(1, 2); ok {
		t.Error("cleared cell should be empty")
	}
	g.Clear(9, 9)
}

func TestTileMapContent(t *testing.T) {
	a := NewArena()
	id := mustInsert(t, a, NoParent, TileMap{TileWidth: 8, TileHeight: 8, Provider: NewTileGrid(1, 1)})
	c, err := a.Content(id)
	if err != nil {
		t.Fatal(err)
	}
	if KindOf(c) != KindTileMap || KindTileMap.String() != "tilemap" {
		t.Errorf("kind = %v", KindOf(c))
	}
}
