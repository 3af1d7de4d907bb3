package resource

import (
	"testing"

	"github.com/go-fonts/latin-modern/lmroman10regular"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeImageFormats(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"png", encodePNG(t, 6, 4)},
		{"jpeg", encodeJPEG(t, 6, 4)},
		{"bmp", encodeBMP(t, 6, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := decodeImage(tt.data, 0)
			require.NoError(t, err)
			assert.Equal(t, 6, img.Rect.Dx())
			assert.Equal(t, 4, img.Rect.Dy())
			assert.Equal(t, uint8(255), img.Pix[3], "opaque alpha")
		})
	}
}

func TestDecodeImageDownscales(t *testing.T) {
	img, err := decodeImage(encodePNG(t, 100, 50), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Rect.Dx())
	assert.Equal(t, 10, img.Rect.Dy())
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
		scaled       bool
	}{
		{100, 50, 0, 100, 50, false},
		{100, 50, 100, 100, 50, false},
		{100, 50, 20, 20, 10, true},
		{50, 100, 20, 10, 20, true},
		{1000, 1, 10, 10, 1, true},
	}
	for _, tt := range tests {
		w, h, ok := fitSize(tt.w, tt.h, tt.max)
		assert.Equal(t, []any{tt.wantW, tt.wantH, tt.scaled}, []any{w, h, ok}, "fitSize(%d, %d, %d)", tt.w, tt.h, tt.max)
	}
}

func TestDecodeRejectsWrongContent(t *testing.T) {
	_, err := decodeImage([]byte("definitely not an image"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = decodeImage(nil, 0)
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = decodeImage(lmroman10regular.TTF, 0)
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "a font is not an image")

	_, err = decodeFont(encodePNG(t, 2, 2))
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "an image is not a font")
}

func TestDecodeFont(t *testing.T) {
	face, err := decodeFont(lmroman10regular.TTF)
	require.NoError(t, err)
	_, ok := face.NominalGlyph('A')
	assert.True(t, ok)
	assert.NotEmpty(t, face.Describe().Family)
}
