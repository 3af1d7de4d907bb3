package tessellate

import (
	"math"

	"github.com/gogpu/stage/internal/lru"
)

// Key identifies a tessellated mesh. Tolerance holds the float32 bits of a
// quantized tolerance so that equal keys compare equal.
type Key struct {
	Hash      uint64
	Tolerance uint32
	// Stroke is zero for fills and the stroke width bits otherwise.
	Stroke uint32
	Join   uint8
}

// FillKey returns the key for a fill of a path with the given hash.
func FillKey(hash uint64, tolerance float64) Key {
	return Key{Hash: hash, Tolerance: math.Float32bits(float32(QuantizeTolerance(tolerance)))}
}

// StrokeKey returns the key for a stroke of a path with the given hash.
func StrokeKey(hash uint64, tolerance float64, style StrokeStyle) Key {
	k := FillKey(hash, tolerance)
	k.Stroke = math.Float32bits(style.Width)
	k.Join = uint8(style.Join) + 1
	return k
}

// QuantizeTolerance rounds tol down to a power of two so that small scale
// changes reuse the same mesh.
func QuantizeTolerance(tol float64) float64 {
	if tol <= 0 || math.IsInf(tol, 0) || math.IsNaN(tol) {
		return DefaultTolerance
	}
	_, exp := math.Frexp(tol)
	return math.Ldexp(0.5, exp)
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// Cache memoizes meshes by Key. It is not safe for concurrent use.
type Cache struct {
	lru    *lru.Cache[Key, *Mesh]
	hits   uint64
	misses uint64
}

// NewCache returns a cache holding at most capacity meshes.
func NewCache(capacity int) *Cache {
	return &Cache{lru: lru.New[Key, *Mesh](capacity)}
}

// Lookup returns the mesh for key, building and storing it on a miss. The
// boolean reports a hit.
func (c *Cache) Lookup(key Key, build func() *Mesh) (*Mesh, bool) {
	if m, ok := c.lru.Get(key); ok {
		c.hits++
		return m, true
	}
	c.misses++
	m := build()
	c.lru.Put(key, m)
	return m, false
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits, Misses: c.misses, Len: c.lru.Len()}
}

// Clear drops every mesh and resets the counters.
func (c *Cache) Clear() {
	c.lru.Clear()
	c.hits, c.misses = 0, 0
}
