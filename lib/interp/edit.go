// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"errors"
	"fmt"
	"slices"

	"github.com/annolab/boxline/lib/sequence"
)

// Edit operation errors. Callers match with errors.Is; the interaction
// layer treats all of them as "reject the edit", not as failures to
// surface.
var (
	// ErrPinnedKeyframe: the first and last keyframes anchor the
	// sequence span and can be neither deleted nor moved.
	ErrPinnedKeyframe = errors.New("first and last keyframes are pinned")

	// ErrKeyframeFloor: deleting from a two-keyframe sequence would
	// leave the span without interpolation structure.
	ErrKeyframeFloor = errors.New("sequence must keep at least two keyframes")

	// ErrNoKeyframe: no keyframe exists at the addressed frame.
	ErrNoKeyframe = errors.New("no keyframe at frame")

	// ErrBadTargetFrame: a move target collides with or crosses a
	// neighboring keyframe.
	ErrBadTargetFrame = errors.New("target frame outside allowed range")

	// ErrHidesKeyframe: a visibility toggle would place a keyframe
	// in a not-visible range, violating keyframe coverage.
	ErrHidesKeyframe = errors.New("toggle would hide a keyframe")
)

// Segment bound convention: segments abut without sharing frames.
// The segment over keyframe interval i runs from keyframe i's frame
// to one frame before keyframe i+1, except the final segment, which
// ends exactly on the last keyframe so the tiling closes the span.
// segmentBounds computes these canonical bounds for interval i of a
// sequence with n keyframes.
func segmentBounds(boxes []sequence.Box, i int) (start, end int) {
	start = boxes[i].FrameNumber
	if i == len(boxes)-2 {
		return start, boxes[i+1].FrameNumber
	}
	return start, boxes[i+1].FrameNumber - 1
}

// GenerateSegments builds the full canonical segment list for a
// sequence's keyframes, all with the given type. Used when seeding a
// sequence from imported raw boxes; editing never calls this — edits
// regenerate only adjacent segments.
func GenerateSegments(boxes []sequence.Box, typ sequence.SegmentType) []sequence.Segment {
	if len(boxes) < 2 {
		return nil
	}
	segments := make([]sequence.Segment, 0, len(boxes)-1)
	for i := 0; i < len(boxes)-1; i++ {
		start, end := segmentBounds(boxes, i)
		segments = append(segments, sequence.Segment{StartFrame: start, EndFrame: end, Type: typ})
	}
	return segments
}

// AddKeyframe inserts box as a keyframe at box.FrameNumber and
// returns the new sequence. If a keyframe already exists at that
// frame, its geometry is replaced instead (no structural change).
// Otherwise the enclosing segment is split in two, both halves
// inheriting the original curve; an out-of-span frame extends the
// sequence with one new linear segment. With visibility ranges
// declared, a frame outside every visible range is rejected with
// ErrNotVisible: a keyframe may not sit where the object is absent.
func AddKeyframe(s *sequence.Sequence, box sequence.Box) (*sequence.Sequence, error) {
	if box.FrameNumber < 0 {
		return nil, fmt.Errorf("interp: add keyframe: negative frame %d", box.FrameNumber)
	}
	if box.Width <= 0 || box.Height <= 0 {
		return nil, fmt.Errorf("interp: add keyframe: non-positive extent %gx%g", box.Width, box.Height)
	}
	if !s.VisibleAt(box.FrameNumber) {
		return nil, fmt.Errorf("interp: add keyframe at frame %d: %w", box.FrameNumber, ErrNotVisible)
	}
	box.IsKeyframe = true

	out := s.Clone()
	if i := out.KeyframeAt(box.FrameNumber); i >= 0 {
		out.Boxes[i] = box
		return out, nil
	}

	// Insertion index on the sorted keyframe slice.
	at, _ := slices.BinarySearchFunc(out.Boxes, box.FrameNumber, func(b sequence.Box, f int) int {
		return b.FrameNumber - f
	})
	out.Boxes = slices.Insert(out.Boxes, at, box)
	n := len(out.Boxes)

	switch {
	case n == 2:
		// Second keyframe: the single spanning segment appears.
		out.Segments = GenerateSegments(out.Boxes, sequence.SegmentLinear)

	case at == 0:
		// Prepended before the old first keyframe. One new segment;
		// the old first segment's bounds are untouched.
		start, end := segmentBounds(out.Boxes, 0)
		out.Segments = slices.Insert(out.Segments, 0, sequence.Segment{
			StartFrame: start, EndFrame: end, Type: sequence.SegmentLinear,
		})

	case at == n-1:
		// Appended after the old last keyframe. The old final
		// segment becomes an inner segment (its end retreats one
		// frame), and a new linear segment closes the span.
		last := len(out.Segments) - 1
		out.Segments[last].StartFrame, out.Segments[last].EndFrame = segmentBounds(out.Boxes, n-3)
		start, end := segmentBounds(out.Boxes, n-2)
		out.Segments = append(out.Segments, sequence.Segment{
			StartFrame: start, EndFrame: end, Type: sequence.SegmentLinear,
		})

	default:
		// Interior insert: split interval at-1 into intervals at-1
		// and at. Both halves keep the original curve.
		seg := out.Segments[at-1]
		left, right := seg, seg
		left.StartFrame, left.EndFrame = segmentBounds(out.Boxes, at-1)
		right.StartFrame, right.EndFrame = segmentBounds(out.Boxes, at)
		out.Segments[at-1] = left
		out.Segments = slices.Insert(out.Segments, at, right)
	}
	return out, nil
}

// DeleteKeyframe removes the keyframe at frame and merges its two
// adjacent segments into one carrying the left segment's curve.
// Rejected for the pinned first/last keyframes and for sequences with
// two or fewer keyframes.
func DeleteKeyframe(s *sequence.Sequence, frame int) (*sequence.Sequence, error) {
	i := s.KeyframeAt(frame)
	if i < 0 {
		return nil, fmt.Errorf("interp: delete at frame %d: %w", frame, ErrNoKeyframe)
	}
	if len(s.Boxes) <= 2 {
		return nil, fmt.Errorf("interp: delete at frame %d: %w", frame, ErrKeyframeFloor)
	}
	if i == 0 || i == len(s.Boxes)-1 {
		return nil, fmt.Errorf("interp: delete at frame %d: %w", frame, ErrPinnedKeyframe)
	}

	out := s.Clone()
	out.Boxes = slices.Delete(out.Boxes, i, i+1)

	// Segments i-1 and i collapse into one spanning interval i-1 of
	// the shrunken keyframe list.
	merged := out.Segments[i-1]
	merged.StartFrame, merged.EndFrame = segmentBounds(out.Boxes, i-1)
	out.Segments[i-1] = merged
	out.Segments = slices.Delete(out.Segments, i, i+1)
	return out, nil
}

// MoveKeyframe relocates the keyframe at from to frame to, keeping
// its geometry. Only interior keyframes move, only strictly between
// their neighbors, and only onto a visible frame; the two adjacent
// segments' bounds are recomputed, their curves preserved.
func MoveKeyframe(s *sequence.Sequence, from, to int) (*sequence.Sequence, error) {
	i := s.KeyframeAt(from)
	if i < 0 {
		return nil, fmt.Errorf("interp: move from frame %d: %w", from, ErrNoKeyframe)
	}
	if i == 0 || i == len(s.Boxes)-1 {
		return nil, fmt.Errorf("interp: move from frame %d: %w", from, ErrPinnedKeyframe)
	}
	if to == from {
		return s.Clone(), nil
	}
	if to <= s.Boxes[i-1].FrameNumber || to >= s.Boxes[i+1].FrameNumber {
		return nil, fmt.Errorf("interp: move to frame %d: %w", to, ErrBadTargetFrame)
	}
	if !s.VisibleAt(to) {
		return nil, fmt.Errorf("interp: move to frame %d: %w", to, ErrNotVisible)
	}

	out := s.Clone()
	out.Boxes[i].FrameNumber = to
	out.Segments[i-1].StartFrame, out.Segments[i-1].EndFrame = segmentBounds(out.Boxes, i-1)
	out.Segments[i].StartFrame, out.Segments[i].EndFrame = segmentBounds(out.Boxes, i)
	return out, nil
}

// CopyPrevious places a keyframe at frame carrying the geometry of
// the nearest keyframe before it. The usual way to extend a hold: the
// object stopped moving, stamp its box forward.
func CopyPrevious(s *sequence.Sequence, frame int) (*sequence.Sequence, error) {
	prev := -1
	for i := range s.Boxes {
		if s.Boxes[i].FrameNumber < frame {
			prev = i
		}
	}
	if prev < 0 {
		return nil, fmt.Errorf("interp: copy previous to frame %d: %w", frame, ErrNoKeyframe)
	}
	box := s.Boxes[prev]
	box.FrameNumber = frame
	return AddKeyframe(s, box)
}

// SetSegmentType changes the curve of the segment covering frame.
// Control data not meaningful for the new type is dropped.
func SetSegmentType(s *sequence.Sequence, frame int, typ sequence.SegmentType, points []sequence.ControlPoint, parametric *sequence.ParametricCurve) (*sequence.Sequence, error) {
	if !sequence.KnownSegmentType(typ) {
		return nil, fmt.Errorf("interp: unknown interpolation type %q", typ)
	}
	out := s.Clone()
	for i := range out.Segments {
		if frame >= out.Segments[i].StartFrame && frame <= out.Segments[i].EndFrame {
			out.Segments[i].Type = typ
			out.Segments[i].ControlPoints = nil
			out.Segments[i].Parametric = nil
			switch typ {
			case sequence.SegmentBezier:
				out.Segments[i].ControlPoints = slices.Clone(points)
			case sequence.SegmentParametric:
				if parametric != nil {
					p := *parametric
					out.Segments[i].Parametric = &p
				}
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("interp: no segment covers frame %d", frame)
}
