// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package batch

import (
	"cmp"
	"fmt"
	"image"

	"github.com/gogpu/stage"
)

// Key groups geometry that can be drawn with one call.
type Key struct {
	Texture stage.TextureID
	Blend   stage.BlendMode
	Layer   int32
}

func (k Key) String() string {
	return fmt.Sprintf("tex=%d blend=%s layer=%d", k.Texture, k.Blend, k.Layer)
}

// Order selects how batches are sorted.
type Order uint8

const (
	// OrderByState sorts by texture, then blend mode, then layer,
	// minimizing state changes.
	OrderByState Order = iota
	// OrderByLayer sorts by layer first so that overlapping layers paint
	// in order even across textures.
	OrderByLayer
)

// String returns the configuration name of the order.
func (o Order) String() string {
	switch o {
	case OrderByState:
		return "state"
	case OrderByLayer:
		return "layer"
	default:
		return fmt.Sprintf("Order(%d)", uint8(o))
	}
}

// ParseOrder converts a configuration name to an Order.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "state":
		return OrderByState, nil
	case "layer":
		return OrderByLayer, nil
	}
	return 0, fmt.Errorf("batch: unknown order %q", s)
}

func (o Order) compare(a, b Key) int {
	if o == OrderByLayer {
		return cmp.Or(cmp.Compare(a.Layer, b.Layer), cmp.Compare(a.Texture, b.Texture), cmp.Compare(a.Blend, b.Blend))
	}
	return cmp.Or(cmp.Compare(a.Texture, b.Texture), cmp.Compare(a.Blend, b.Blend), cmp.Compare(a.Layer, b.Layer))
}

// Batch is geometry sharing one Key, in walk order.
type Batch struct {
	Key
	Vertices []Vertex
	Indices  []uint32
}

// Format is the pixel format of a texture upload.
type Format uint8

const (
	// FormatRGBA8 is premultiplied 8-bit RGBA.
	FormatRGBA8 Format = iota
	// FormatR8 is 8-bit coverage, used by the glyph atlas.
	FormatR8
)

// BytesPerPixel returns the pixel size of f.
func (f Format) BytesPerPixel() int {
	if f == FormatR8 {
		return 1
	}
	return 4
}

// Upload writes pixels into a texture. Backends create the texture with
// Size and Format the first time they see its id, and recreate it when
// Size changes.
type Upload struct {
	Texture stage.TextureID
	Format  Format
	Size    image.Point
	Region  image.Rectangle
	// Pix holds Region's rows tightly packed.
	Pix []byte
}

// Frame is everything the backend needs to draw one frame: texture
// uploads first, then batches in order.
type Frame struct {
	Number   uint64
	Viewport image.Point
	Clear    stage.RGBA
	Uploads  []Upload
	Batches  []Batch
}

// DrawCalls returns the number of draw calls the frame needs.
func (f *Frame) DrawCalls() int {
	n := 0
	for i := range f.Batches {
		if len(f.Batches[i].Indices) > 0 {
			n++
		}
	}
	return n
}

// Vertices returns the total vertex count.
func (f *Frame) Vertices() int {
	n := 0
	for i := range f.Batches {
		n += len(f.Batches[i].Vertices)
	}
	return n
}
