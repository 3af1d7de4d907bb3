// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package native

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"
)

//go:embed shaders/stage.wgsl
var shaderWGSL string

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

var (
	spirvOnce sync.Once
	spirvCode []uint32
	spirvErr  error
)

// compileShader compiles the WGSL source to SPIR-V once per process.
// Compilation also validates the module, so a broken shader is reported
// before any device object is created.
func compileShader() ([]uint32, error) {
	spirvOnce.Do(func() {
		b, err := naga.Compile(shaderWGSL)
		if err != nil {
			spirvErr = fmt.Errorf("native: compile shader: %w", err)
			return
		}
		spirvCode = spirvWords(b)
	})
	return spirvCode, spirvErr
}

// spirvWords converts little-endian SPIR-V bytes to words.
func spirvWords(b []byte) []uint32 {
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words
}

func shaderSource(spirv bool) (hal.ShaderSource, error) {
	words, err := compileShader()
	if err != nil {
		return hal.ShaderSource{}, err
	}
	if spirv {
		return hal.ShaderSource{SPIRV: words}, nil
	}
	return hal.ShaderSource{WGSL: shaderWGSL}, nil
}
