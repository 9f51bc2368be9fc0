// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package interp derives boxes at arbitrary frames from a sparse
// keyframe sequence, and regenerates interpolation metadata after
// keyframe edits.
//
// BoxAtFrame is a pure function: the same sequence and frame always
// produce the same box, and nothing is cached or mutated, so it is
// safe to call from any goroutine, including concurrently with
// rendering.
//
// The edit operations (AddKeyframe, DeleteKeyframe, MoveKeyframe,
// CopyPrevious, ToggleVisibility) never mutate their input. Each
// clones the sequence, applies the edit, and regenerates only the one
// or two segments adjacent to the touched keyframe — never the whole
// segment list — so editing stays cheap on sequences with thousands
// of keyframes.
package interp
