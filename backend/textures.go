package backend

import (
	"fmt"
	"image"

	"github.com/gogpu/stage"
	"github.com/gogpu/stage/batch"
)

// TextureInfo describes a texture held by a CPU backend.
type TextureInfo struct {
	Format batch.Format
	Size   image.Point
	// Uploads counts the uploads since the texture was (re)created.
	Uploads int
}

type texture struct {
	TextureInfo
	pix []byte
}

// textureStore applies uploads the way a GPU backend would: a texture is
// created on its first upload and recreated when size or format change.
type textureStore map[stage.TextureID]*texture

func (s textureStore) apply(u batch.Upload) error {
	bpp := u.Format.BytesPerPixel()
	bounds := image.Rectangle{Max: u.Size}
	switch {
	case u.Texture == 0:
		return fmt.Errorf("%w: texture id 0", ErrInvalidUpload)
	case u.Size.X <= 0 || u.Size.Y <= 0:
		return fmt.Errorf("%w: texture %d size %v", ErrInvalidUpload, u.Texture, u.Size)
	case u.Region.Empty() || !u.Region.In(bounds):
		return fmt.Errorf("%w: texture %d region %v outside %v", ErrInvalidUpload, u.Texture, u.Region, bounds)
	case len(u.Pix) != u.Region.Dx()*u.Region.Dy()*bpp:
		return fmt.Errorf("%w: texture %d has %d bytes for region %v", ErrInvalidUpload, u.Texture, len(u.Pix), u.Region)
	}

	t := s[u.Texture]
	if t == nil || t.Size != u.Size || t.Format != u.Format {
		t = &texture{
			TextureInfo: TextureInfo{Format: u.Format, Size: u.Size},
			pix:         make([]byte, u.Size.X*u.Size.Y*bpp),
		}
		s[u.Texture] = t
	}
	row := u.Region.Dx() * bpp
	for y := 0; y < u.Region.Dy(); y++ {
		dst := ((u.Region.Min.Y+y)*u.Size.X + u.Region.Min.X) * bpp
		copy(t.pix[dst:dst+row], u.Pix[y*row:(y+1)*row])
	}
	t.Uploads++
	return nil
}

// check verifies that every batch samples a known texture.
func (s textureStore) check(frame *batch.Frame) error {
	for i := range frame.Batches {
		if _, ok := s[frame.Batches[i].Texture]; !ok {
			return fmt.Errorf("%w: %d in batch %s", ErrUnknownTexture, frame.Batches[i].Texture, frame.Batches[i].Key)
		}
	}
	return nil
}

func (s textureStore) info(id stage.TextureID) (TextureInfo, bool) {
	t, ok := s[id]
	if !ok {
		return TextureInfo{}, false
	}
	return t.TextureInfo, true
}
