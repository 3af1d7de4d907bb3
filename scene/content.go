package scene

import "github.com/gogpu/stage"

// ContentKind tags the variant stored in a node.
type ContentKind uint8

// Content kinds.
const (
	KindNone ContentKind = iota
	KindRectangle
	KindPath
	KindSprite
	KindText
	KindTileMap
)

// String returns the kind name.
func (k ContentKind) String() string {
	switch k {
	case KindRectangle:
		return "rectangle"
	case KindPath:
		return "path"
	case KindSprite:
		return "sprite"
	case KindText:
		return "text"
	case KindTileMap:
		return "tilemap"
	default:
		return "none"
	}
}

// Content is the visual payload of a node: one of [Rectangle], [Path],
// [Sprite], [Text] or [TileMap]. A nil Content is a pure grouping node.
type Content interface {
	Kind() ContentKind
}

// Rectangle is an axis-aligned rectangle in local space with its top-left
// corner at the origin. Radius rounds the corners.
type Rectangle struct {
	Width, Height float64
	Radius        float64
	Fill          stage.RGBA
	Stroke        *stage.Stroke
}

// Kind implements Content.
func (Rectangle) Kind() ContentKind { return KindRectangle }

// Path is an arbitrary vector path in local space, filled with the
// non-zero rule. The path must not be modified after it is attached.
type Path struct {
	Path   *stage.Path
	Fill   stage.RGBA
	Stroke *stage.Stroke
}

// Kind implements Content.
func (Path) Kind() ContentKind { return KindPath }

// Sprite draws a region of a texture.
type Sprite struct {
	Texture stage.TextureID
	// Source is the sub-rectangle of the texture in pixels.
	// An empty Source means the whole texture.
	Source stage.Rect
	// Size is the drawn size in local units. A zero Size uses the source
	// size.
	Size stage.Point
	// Tint multiplies the texture color. The zero value is treated as
	// opaque white.
	Tint stage.RGBA
}

// Kind implements Content.
func (Sprite) Kind() ContentKind { return KindSprite }

// Text is a run of text laid out from the local origin (top-left of the
// first line box).
type Text struct {
	Text string
	Font stage.FontID
	// Size is the font size in pixels.
	Size float64
	// WrapWidth is the maximum line width in pixels. Zero disables
	// wrapping.
	WrapWidth float64
	Color     stage.RGBA
}

// Kind implements Content.
func (Text) Kind() ContentKind { return KindText }

// KindOf returns the kind of c, KindNone for nil.
func KindOf(c Content) ContentKind {
	if c == nil {
		return KindNone
	}
	return c.Kind()
}
