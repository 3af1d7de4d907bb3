package text

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/go-text/typesetting/font"

	"github.com/gogpu/stage"
)

// Weight is a font weight on the CSS 100..900 scale.
type Weight uint16

// Common weights.
const (
	WeightThin    Weight = 100
	WeightLight   Weight = 300
	WeightRegular Weight = 400
	WeightMedium  Weight = 500
	WeightBold    Weight = 700
	WeightBlack   Weight = 900
)

// GlyphID is a glyph index within a font.
type GlyphID = font.GID

// Font is a registered face.
type Font struct {
	ID     stage.FontID
	Family string
	Weight Weight

	face *font.Face
	upem float32
}

// Face returns the go-text face. It is not safe for concurrent use.
func (f *Font) Face() *font.Face {
	return f.face
}

// Scale returns the factor converting font units to pixels at size px.
func (f *Font) Scale(size float64) float32 {
	return float32(size) / f.upem
}

// FontRegistry assigns ids to faces and resolves families.
//
// FontRegistry is safe for concurrent use.
type FontRegistry struct {
	mu       sync.RWMutex
	fonts    []*Font
	families map[string][]*Font
	fallback stage.FontID
}

// NewFontRegistry returns an empty registry.
func NewFontRegistry() *FontRegistry {
	return &FontRegistry{families: make(map[string][]*Font)}
}

// Register adds a parsed face under family and weight. The first
// registered font becomes the fallback.
func (r *FontRegistry) Register(family string, weight Weight, face *font.Face) stage.FontID {
	r.mu.Lock()
	defer r.mu.Unlock()

	upem := float32(face.Upem())
	if upem == 0 {
		upem = 1000
	}
	f := &Font{
		ID:     stage.FontID(len(r.fonts) + 1),
		Family: family,
		Weight: weight,
		face:   face,
		upem:   upem,
	}
	r.fonts = append(r.fonts, f)
	key := strings.ToLower(family)
	r.families[key] = append(r.families[key], f)
	if r.fallback == 0 {
		r.fallback = f.ID
	}
	stage.Logger().Debug("text: font registered", "id", f.ID, "family", family, "weight", weight)
	return f.ID
}

// RegisterData parses TrueType or OpenType bytes and registers the face.
func (r *FontRegistry) RegisterData(family string, weight Weight, data []byte) (stage.FontID, error) {
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("text: parse font %q: %w", family, err)
	}
	return r.Register(family, weight, face), nil
}

// Font returns the font for id.
func (r *FontRegistry) Font(id stage.FontID) (*Font, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) > len(r.fonts) {
		return nil, false
	}
	return r.fonts[id-1], true
}

// Lookup returns the font of family whose weight is closest to weight.
// Ties go to the heavier face above WeightMedium and to the lighter one
// otherwise. Family names are case-insensitive.
func (r *FontRegistry) Lookup(family string, weight Weight) (stage.FontID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best     *Font
		bestDist int
	)
	for _, f := range r.families[strings.ToLower(family)] {
		d := int(f.Weight) - int(weight)
		if d < 0 {
			d = -d
		}
		switch {
		case best == nil, d < bestDist:
		case d == bestDist && weight > WeightMedium && f.Weight > best.Weight:
		case d == bestDist && weight <= WeightMedium && f.Weight < best.Weight:
		default:
			continue
		}
		best, bestDist = f, d
	}
	if best == nil {
		return 0, false
	}
	return best.ID, true
}

// SetFallback selects the font used when a requested font is unknown.
func (r *FontRegistry) SetFallback(id stage.FontID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = id
}

// Fallback returns the fallback font id, or 0 if no font is registered.
func (r *FontRegistry) Fallback() stage.FontID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fallback
}

// Len returns the number of registered fonts.
func (r *FontRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fonts)
}
