// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline implements the terminal timeline editor for box
// sequences: a cell-based renderer with viewport virtualization and
// frame caching, a pure input reducer for the drag state machine,
// and a bubbletea model tying both to the interpolation edit
// operations.
//
// The renderer owns the single frame-to-column mapping; every hit
// test and snap goes through it so the ruler, track, markers, and
// playhead can never disagree about where a frame lives on screen.
// The reducer is a pure function over (State, Event) and carries no
// reference to the terminal, which keeps the drag semantics unit
// testable without a TTY.
package timeline
