// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package native implements backend.Backend on the WebGPU HAL from
// github.com/gogpu/wgpu.
//
// Frames are drawn into an offscreen color target with one render pass per
// frame and one indexed draw per batch. The application presents the
// target (see Backend.Target) or copies it wherever it needs.
//
// Importing the package registers the "native" backend factory. The
// factory opens the best registered HAL backend and yields nothing when
// only the noop backend is available, so backend.Default falls back to
// the software rasterizer:
//
//	import (
//	    _ "github.com/gogpu/stage/backend/native"
//	    _ "github.com/gogpu/wgpu/hal/vulkan"
//	)
//
// Applications that already own a device pass it in with New or
// NewFromProvider.
package native
