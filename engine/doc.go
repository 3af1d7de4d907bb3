// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package engine runs the frame loop.
//
// Each [Engine.Tick] performs, in order:
//
//  1. drain completed resource loads (never blocks);
//  2. call the update callback with the scene arena;
//  3. compile the scene into batches;
//  4. submit the frame to the backend.
//
// [Engine.Run] repeats Tick and waits for the next frame boundary, a
// ticker at the target frame rate or an external vsync channel. Waiting
// is the only blocking point of the loop.
//
// A lost device fails the current frame with an error wrapping
// stage.ErrDeviceLost. GPU-side state (glyph atlas, tessellation cache,
// textures) is rebuilt before the next tick.
//
// Example:
//
//	e, err := engine.New(func(ctx context.Context, a *scene.Arena, f engine.FrameInfo) error {
//	    return a.SetTransform(player, stage.TranslateBy(f.Elapsed.Seconds()*10, 0))
//	}, engine.WithTargetFPS(60), engine.WithViewport(800, 600, 1))
//	if err != nil {
//	    return err
//	}
//	return e.Run(ctx)
package engine
