// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package batch

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
)

// VertexStride is the size of one encoded Vertex in bytes.
const VertexStride = 20

// Vertex is a device-space position with texture coordinates and a
// premultiplied color.
type Vertex struct {
	X, Y  float32
	U, V  float32
	Color [4]uint8
}

// VertexLayout describes Vertex to the GPU.
// Layout: position (vec2<f32>) + uv (vec2<f32>) + color (unorm8x4) = 20 bytes.
func VertexLayout() []gputypes.VertexBufferLayout {
	return []gputypes.VertexBufferLayout{
		{
			ArrayStride: VertexStride,
			StepMode:    gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
				{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1}, // uv
				{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2}, // color
			},
		},
	}
}

// EncodeVertices appends the little-endian encoding of vs to dst.
func EncodeVertices(dst []byte, vs []Vertex) []byte {
	off := len(dst)
	dst = append(dst, make([]byte, len(vs)*VertexStride)...)
	for _, v := range vs {
		buf := dst[off : off+VertexStride]
		binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(v.X))
		binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(v.Y))
		binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(v.U))
		binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(v.V))
		copy(buf[16:20], v.Color[:])
		off += VertexStride
	}
	return dst
}

// EncodeIndices appends the little-endian encoding of idx to dst.
func EncodeIndices(dst []byte, idx []uint32) []byte {
	for _, i := range idx {
		dst = binary.LittleEndian.AppendUint32(dst, i)
	}
	return dst
}
