package text

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"

	"github.com/gogpu/stage"
)

func TestShaperShape(t *testing.T) {
	fonts, id := newTestRegistry(t)
	s := NewShaper(fonts, 0)

	l, err := s.Shape(Request{Text: "Hello", Font: id, Size: 16})
	if err != nil {
		t.Fatalf("Shape: %v", err)
	}
	if len(l.Glyphs) != 5 {
		t.Fatalf("glyphs = %d, want 5", len(l.Glyphs))
	}
	if l.Lines != 1 {
		t.Errorf("Lines = %d, want 1", l.Lines)
	}
	if l.Notdef != 0 {
		t.Errorf("Notdef = %d, want 0", l.Notdef)
	}
	if l.Width <= 0 || l.Ascent <= 0 || l.Descent <= 0 {
		t.Errorf("metrics = width %v ascent %v descent %v", l.Width, l.Ascent, l.Descent)
	}
	for i, g := range l.Glyphs {
		if g.Glyph == 0 {
			t.Errorf("glyph %d is notdef", i)
		}
		if g.Y != l.Ascent {
			t.Errorf("glyph %d baseline = %v, want %v", i, g.Y, l.Ascent)
		}
		if i > 0 && g.X <= l.Glyphs[i-1].X {
			t.Errorf("glyph %d x = %v not after %v", i, g.X, l.Glyphs[i-1].X)
		}
	}
}

func TestShaperCacheHit(t *testing.T) {
	fonts, id := newTestRegistry(t)
	s := NewShaper(fonts, 8)
	req := Request{Text: "cache me", Font: id, Size: 16}

	first, err := s.Shape(req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Shape(req)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("second Shape should return the cached layout")
	}
	if s.Shaped() != 1 {
		t.Errorf("Shaped() = %d, want 1", s.Shaped())
	}
	st := s.Cache().Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Len != 1 {
		t.Errorf("stats = %+v", st)
	}

	// Any change of key field is a different layout.
	for _, r := range []Request{
		{Text: "cache me", Font: id, Size: 17},
		{Text: "cache me", Font: id, Size: 16, WrapWidth: 30},
		{Text: "cache me!", Font: id, Size: 16},
	} {
		if _, err := s.Shape(r); err != nil {
			t.Fatal(err)
		}
	}
	if s.Shaped() != 4 {
		t.Errorf("Shaped() = %d, want 4", s.Shaped())
	}
}

func TestShaperWrap(t *testing.T) {
	fonts, id := newTestRegistry(t)
	s := NewShaper(fonts, 0)
	const text = "the quick brown fox jumps over the lazy dog"

	single, err := s.Shape(Request{Text: text, Font: id, Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	wrapped, err := s.Shape(Request{Text: text, Font: id, Size: 16, WrapWidth: 80})
	if err != nil {
		t.Fatal(err)
	}
	if single.Lines != 1 {
		t.Errorf("unwrapped Lines = %d, want 1", single.Lines)
	}
	if wrapped.Lines < 3 {
		t.Errorf("wrapped Lines = %d, want at least 3", wrapped.Lines)
	}
	if wrapped.Width >= single.Width {
		t.Errorf("wrapped width %v should be below %v", wrapped.Width, single.Width)
	}
	if got, want := wrapped.Height, float32(wrapped.Lines)*wrapped.LineHeight; got != want {
		t.Errorf("Height = %v, want %v", got, want)
	}
	last := wrapped.Glyphs[len(wrapped.Glyphs)-1]
	if last.Y <= wrapped.Glyphs[0].Y {
		t.Errorf("last glyph baseline %v should be below first %v", last.Y, wrapped.Glyphs[0].Y)
	}
}

func TestShaperNewlines(t *testing.T) {
	fonts, id := newTestRegistry(t)
	s := NewShaper(fonts, 0)

	l, err := s.Shape(Request{Text: "a\n\nb", Font: id, Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	if l.Lines != 3 {
		t.Errorf("Lines = %d, want 3", l.Lines)
	}
	if len(l.Glyphs) != 2 {
		t.Fatalf("glyphs = %d, want 2", len(l.Glyphs))
	}
	if l.Glyphs[1].Cluster != 3 {
		t.Errorf("second cluster = %d, want 3", l.Glyphs[1].Cluster)
	}
	if got, want := l.Glyphs[1].Y-l.Glyphs[0].Y, 2*l.LineHeight; math32.Abs(got-want) > 1e-3 {
		t.Errorf("baseline gap = %v, want %v", got, want)
	}
}

func TestShaperFallbacks(t *testing.T) {
	fonts, id := newTestRegistry(t)
	s := NewShaper(fonts, 0)

	l, err := s.Shape(Request{Text: "x", Font: 42, Size: 12})
	if err != nil {
		t.Fatalf("unknown font should fall back, got %v", err)
	}
	if l.Font != id {
		t.Errorf("layout font = %d, want fallback %d", l.Font, id)
	}

	l, err = s.Shape(Request{Text: "a\u4e2db", Font: id, Size: 12})
	if err != nil {
		t.Fatal(err)
	}
	if l.Notdef != 1 {
		t.Errorf("Notdef = %d, want 1", l.Notdef)
	}
	if len(l.Glyphs) != 3 || l.Glyphs[1].Glyph != 0 {
		t.Errorf("glyphs = %+v, want notdef in the middle", l.Glyphs)
	}

	_, err = NewShaper(NewFontRegistry(), 0).Shape(Request{Text: "x", Font: 1, Size: 12})
	if !errors.Is(err, stage.ErrShaping) {
		t.Errorf("empty registry error = %v, want ErrShaping", err)
	}
}

func TestShaperNormalizesNFC(t *testing.T) {
	fonts, id := newTestRegistry(t)
	s := NewShaper(fonts, 0)

	composed, err := s.Shape(Request{Text: "\u00e9", Font: id, Size: 12})
	if err != nil {
		t.Fatal(err)
	}
	decomposed, err := s.Shape(Request{Text: "e\u0301", Font: id, Size: 12})
	if err != nil {
		t.Fatal(err)
	}
	if len(decomposed.Glyphs) != 1 || decomposed.Glyphs[0].Glyph != composed.Glyphs[0].Glyph {
		t.Errorf("decomposed glyphs = %+v, want %+v", decomposed.Glyphs, composed.Glyphs)
	}
}

func TestShaperZeroSize(t *testing.T) {
	fonts, id := newTestRegistry(t)
	l, err := NewShaper(fonts, 0).Shape(Request{Text: "hi", Font: id})
	if err != nil {
		t.Fatal(err)
	}
	if len(l.Glyphs) != 0 || l.Lines != 0 {
		t.Errorf("zero size layout = %+v", l)
	}
}
