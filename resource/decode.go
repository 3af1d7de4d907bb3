package resource

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
	"github.com/go-text/typesetting/font"
	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

type result struct {
	image *image.RGBA
	face  *font.Face
	err   error
}

// imageDecoders maps sniffed extensions to decoders.
var imageDecoders = map[string]func(*bytes.Reader) (image.Image, error){
	"png":  func(r *bytes.Reader) (image.Image, error) { return png.Decode(r) },
	"jpg":  func(r *bytes.Reader) (image.Image, error) { return jpeg.Decode(r) },
	"gif":  func(r *bytes.Reader) (image.Image, error) { return gif.Decode(r) },
	"bmp":  func(r *bytes.Reader) (image.Image, error) { return bmp.Decode(r) },
	"webp": func(r *bytes.Reader) (image.Image, error) { return webp.Decode(r) },
}

// sniff returns the extension of the detected content type.
func sniff(data []byte) string {
	t, err := filetype.Match(data)
	if err != nil {
		return ""
	}
	return t.Extension
}

// decodeImage decodes data into premultiplied RGBA, downscaling it so
// that neither side exceeds maxSize. maxSize <= 0 disables the limit.
func decodeImage(data []byte, maxSize int) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	ext := sniff(data)
	dec, ok := imageDecoders[ext]
	if !ok || !filetype.IsImage(data) {
		return nil, fmt.Errorf("%w: sniffed %q", ErrUnsupportedFormat, ext)
	}
	img, err := dec(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ext, err)
	}
	rgba := clone.AsRGBA(img)

	if w, h, ok := fitSize(rgba.Rect.Dx(), rgba.Rect.Dy(), maxSize); ok {
		rgba = transform.Resize(rgba, w, h, transform.Linear)
	}
	return rgba, nil
}

// fitSize scales w×h down to fit maxSize, keeping the aspect ratio. It
// reports false when no scaling is needed.
func fitSize(w, h, maxSize int) (int, int, bool) {
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return w, h, false
	}
	if w >= h {
		return maxSize, max(1, h*maxSize/w), true
	}
	return max(1, w*maxSize/h), maxSize, true
}

func decodeFont(data []byte) (*font.Face, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if !filetype.IsFont(data) {
		return nil, fmt.Errorf("%w: sniffed %q", ErrUnsupportedFormat, sniff(data))
	}
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return face, nil
}

func decode(data []byte, kind Kind, maxSize int) result {
	switch kind {
	case KindImage:
		img, err := decodeImage(data, maxSize)
		return result{image: img, err: err}
	case KindFont:
		face, err := decodeFont(data)
		return result{face: face, err: err}
	}
	return result{err: fmt.Errorf("%w: kind %s", ErrUnsupportedFormat, kind)}
}
