// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package sequence defines the canonical data shapes for time-varying
// bounding-box annotations: the Box, the interpolation segments that
// describe how boxes evolve between authored keyframes, the visibility
// ranges that let an object leave and re-enter frame, and the Sequence
// that ties them together.
//
// This package holds shapes and invariant documentation only. The
// algorithms that act on a Sequence live elsewhere: interpolation and
// keyframe editing in lib/interp, invariant checking in lib/validate,
// rendering in lib/timeline.
//
// A Sequence value is treated as immutable once constructed. Editing
// operations return a new Sequence rather than mutating in place, so a
// Sequence handed to the validator or renderer can never be torn by a
// concurrent edit.
package sequence
