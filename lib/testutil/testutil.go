// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Boxline packages.
package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/annolab/boxline/lib/sequence"
)

var uniqueCounter atomic.Uint64

// UniqueID returns a string of the form "prefix-N" where N is a
// monotonically increasing integer. Use this instead of time.Now()
// when tests need record or annotation identifiers that must be
// distinguishable within a shared store.
//
//	id := testutil.UniqueID("ann")  // "ann-1", "ann-2", ...
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, uniqueCounter.Add(1))
}

// KeyframeBox constructs a keyframe box at the given frame with a
// fixed 50x50 extent. Position tracks the frame number so tests can
// distinguish boxes without spelling geometry out at every call
// site.
func KeyframeBox(frame int) sequence.Box {
	return sequence.Box{
		X:           float64(frame),
		Y:           float64(frame),
		Width:       50,
		Height:      50,
		FrameNumber: frame,
		IsKeyframe:  true,
	}
}

// LinearSequence builds a sequence with keyframes at the given
// frames, linear segments between them, and full-span visibility.
// Frames must be sorted ascending.
func LinearSequence(frames ...int) *sequence.Sequence {
	if len(frames) == 0 {
		panic("testutil: LinearSequence needs at least one frame")
	}
	s := &sequence.Sequence{
		Boxes:       make([]sequence.Box, 0, len(frames)),
		TotalFrames: frames[len(frames)-1] + 1,
	}
	for _, frame := range frames {
		s.Boxes = append(s.Boxes, KeyframeBox(frame))
	}
	for i := 0; i < len(frames)-1; i++ {
		end := frames[i+1] - 1
		if i == len(frames)-2 {
			end = frames[i+1]
		}
		s.Segments = append(s.Segments, sequence.Segment{
			StartFrame: frames[i],
			EndFrame:   end,
			Type:       sequence.SegmentLinear,
		})
	}
	s.VisibilityRanges = []sequence.VisibilityRange{
		{StartFrame: frames[0], EndFrame: frames[len(frames)-1], Visible: true},
	}
	return s
}
