package text

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/stage"
)

// Shaper turns requests into layouts using HarfBuzz shaping and the
// go-text line wrapper. Results are cached by content hash.
type Shaper struct {
	fonts   *FontRegistry
	cache   *LayoutCache
	hb      shaping.HarfbuzzShaper
	wrapper shaping.LineWrapper
	shaped  uint64
}

// NewShaper returns a shaper resolving fonts through fonts with a layout
// cache of cacheSize entries.
func NewShaper(fonts *FontRegistry, cacheSize int) *Shaper {
	return &Shaper{
		fonts: fonts,
		cache: NewLayoutCache(cacheSize),
	}
}

// Cache returns the layout cache.
func (s *Shaper) Cache() *LayoutCache {
	return s.cache
}

// Shaped returns how many layouts were shaped, excluding cache hits.
func (s *Shaper) Shaped() uint64 {
	return s.shaped
}

// Shape returns the layout for req, shaping it on a cache miss.
//
// An unknown font is replaced by the registry fallback and unmapped runes
// become glyph 0; both are logged as ErrShaping and do not fail the call.
// An error wrapping ErrShaping is returned only when no font at all is
// available.
func (s *Shaper) Shape(req Request) (*Layout, error) {
	if l, ok := s.cache.Get(req); ok {
		return l, nil
	}

	f, ok := s.fonts.Font(req.Font)
	if !ok {
		fb := s.fonts.Fallback()
		if f, ok = s.fonts.Font(fb); !ok {
			return nil, fmt.Errorf("text: font %d: %w", req.Font, stage.ErrShaping)
		}
		stage.Logger().Warn("text: unknown font, using fallback",
			"font", req.Font, "fallback", fb, "err", stage.ErrShaping)
	}

	l := s.shape(f, req)
	s.shaped++
	if l.Notdef > 0 {
		stage.Logger().Warn("text: unmapped runes rendered as notdef",
			"font", f.ID, "count", l.Notdef, "err", stage.ErrShaping)
	}
	s.cache.Put(req, l)
	return l, nil
}

func (s *Shaper) shape(f *Font, req Request) *Layout {
	l := &Layout{Font: f.ID, Size: req.Size}
	if req.Size <= 0 {
		return l
	}

	scale := f.Scale(req.Size)
	if ext, ok := f.face.FontHExtents(); ok {
		l.Ascent = ext.Ascender * scale
		l.Descent = -ext.Descender * scale
		l.LineHeight = l.Ascent + l.Descent + ext.LineGap*scale
	} else {
		l.Ascent = float32(req.Size) * 0.8
		l.Descent = float32(req.Size) * 0.2
		l.LineHeight = float32(req.Size) * 1.2
	}

	size := fixed.Int26_6(math.Round(req.Size * 64))
	text := norm.NFC.String(req.Text)
	y := l.Ascent
	base := 0

	for _, para := range strings.Split(text, "\n") {
		runes := []rune(para)
		for _, line := range s.lines(f, runes, size, req.WrapWidth) {
			var x float32
			for _, run := range line {
				for _, g := range run.Glyphs {
					if g.GlyphID == 0 && g.ClusterIndex < len(runes) && !unicode.IsControl(runes[g.ClusterIndex]) {
						l.Notdef++
					}
					l.Glyphs = append(l.Glyphs, PositionedGlyph{
						Glyph:   g.GlyphID,
						X:       x + fixedToFloat(g.XOffset),
						Y:       y - fixedToFloat(g.YOffset),
						Advance: fixedToFloat(g.XAdvance),
						Cluster: base + g.ClusterIndex,
					})
					x += fixedToFloat(g.XAdvance)
				}
			}
			l.Width = max(l.Width, x)
			l.Lines++
			y += l.LineHeight
		}
		base += len(runes) + 1
	}
	l.Height = float32(l.Lines) * l.LineHeight
	return l
}

// lines shapes one paragraph and wraps it. An empty paragraph yields one
// empty line.
func (s *Shaper) lines(f *Font, runes []rune, size fixed.Int26_6, wrap float64) []shaping.Line {
	if len(runes) == 0 {
		return []shaping.Line{nil}
	}
	out := s.hb.Shape(shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      f.face,
		Size:      size,
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	})
	if wrap <= 0 {
		return []shaping.Line{{out}}
	}
	lines, _ := s.wrapper.WrapParagraphF(shaping.WrapConfig{}, fixed.Int26_6(math.Round(wrap*64)), runes, shaping.NewSliceIterator([]shaping.Output{out}))
	return lines
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if unicode.IsSpace(r) {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
