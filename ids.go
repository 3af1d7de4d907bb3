package stage

import "sync/atomic"

// TextureID identifies a texture known to the renderer. IDs come from a
// process-wide counter and are never reused. Zero means "no texture".
type TextureID uint64

// FontID identifies a font face registered with a text.FontRegistry.
// Zero means "no font"; shaping falls back to the registry's fallback.
type FontID uint32

var textureIDs atomic.Uint64

// NextTextureID returns a fresh, never-before-used texture id.
func NextTextureID() TextureID {
	return TextureID(textureIDs.Add(1))
}
