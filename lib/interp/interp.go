// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/annolab/boxline/lib/sequence"
)

// ErrOutOfRange is returned by BoxAtFrame for frames outside the
// keyframe span. There is no extrapolation: before the first keyframe
// and after the last one, no box exists.
var ErrOutOfRange = errors.New("frame outside keyframe range")

// ErrNotVisible is returned by BoxAtFrame for frames inside the
// keyframe span that fall in a declared not-visible range, and by
// AddKeyframe and MoveKeyframe when the target frame is not visible.
// The object has left the frame; callers render nothing rather than a
// fabricated box, and no keyframe may be placed there.
var ErrNotVisible = errors.New("object not visible at frame")

// BoxAtFrame computes the box at an arbitrary frame.
//
// A frame equal to a keyframe's frame number returns that keyframe
// verbatim. Any other frame inside the keyframe span is derived from
// the enclosing interpolation segment. Frames outside the span return
// ErrOutOfRange; frames in a not-visible range return ErrNotVisible.
//
// The sequence is assumed valid (lib/validate gates persistence);
// a structurally broken sequence produces an error, never a panic.
func BoxAtFrame(s *sequence.Sequence, frame int) (sequence.Box, error) {
	first, last, ok := s.FrameSpan()
	if !ok {
		return sequence.Box{}, fmt.Errorf("interp: sequence has no keyframes")
	}
	if frame < first || frame > last {
		return sequence.Box{}, fmt.Errorf("interp: frame %d outside [%d, %d]: %w", frame, first, last, ErrOutOfRange)
	}
	if !s.VisibleAt(frame) {
		return sequence.Box{}, fmt.Errorf("interp: frame %d: %w", frame, ErrNotVisible)
	}

	if i := s.KeyframeAt(frame); i >= 0 {
		return s.Boxes[i], nil
	}

	seg, ok := segmentAt(s.Segments, frame)
	if !ok {
		return sequence.Box{}, fmt.Errorf("interp: no segment covers frame %d", frame)
	}

	// The segment supplies the curve; the bounding keyframes supply
	// the geometry. Segments abut without sharing frames (a segment
	// ends one frame before the next begins), so the enclosing
	// keyframe pair is found on the keyframe list, not read off the
	// segment bounds.
	from, to, ok := boundingKeyframes(s, frame)
	if !ok {
		return sequence.Box{}, fmt.Errorf("interp: frame %d has no bounding keyframe pair", frame)
	}

	if seg.Type == sequence.SegmentHold {
		// Hold keeps the earlier box until the next keyframe.
		box := from
		box.FrameNumber = frame
		box.IsKeyframe = false
		return box, nil
	}

	t := float64(frame-from.FrameNumber) / float64(to.FrameNumber-from.FrameNumber)
	eased, err := ease(seg, t)
	if err != nil {
		return sequence.Box{}, fmt.Errorf("interp: segment [%d, %d]: %w", seg.StartFrame, seg.EndFrame, err)
	}

	box := sequence.Box{
		X:           lerp(from.X, to.X, eased),
		Y:           lerp(from.Y, to.Y, eased),
		Width:       lerp(from.Width, to.Width, eased),
		Height:      lerp(from.Height, to.Height, eased),
		FrameNumber: frame,
		IsKeyframe:  false,
	}
	return box, nil
}

// boundingKeyframes returns the keyframes immediately before and
// after frame. The caller has already handled exact keyframe hits,
// so frame lies strictly between the two. Binary search over the
// sorted keyframe slice.
func boundingKeyframes(s *sequence.Sequence, frame int) (from, to sequence.Box, ok bool) {
	i := sort.Search(len(s.Boxes), func(i int) bool {
		return s.Boxes[i].FrameNumber > frame
	})
	if i == 0 || i == len(s.Boxes) {
		return sequence.Box{}, sequence.Box{}, false
	}
	return s.Boxes[i-1], s.Boxes[i], true
}

// segmentAt finds the segment containing frame by binary search over
// the sorted segment list. Segments tile the span, so at most one can
// contain any frame.
func segmentAt(segments []sequence.Segment, frame int) (sequence.Segment, bool) {
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].EndFrame >= frame
	})
	if i == len(segments) || segments[i].StartFrame > frame {
		return sequence.Segment{}, false
	}
	return segments[i], true
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// ease maps normalized time t in [0,1] through the segment's easing
// curve. Linear returns t unchanged.
func ease(seg sequence.Segment, t float64) (float64, error) {
	switch seg.Type {
	case sequence.SegmentLinear:
		return t, nil
	case sequence.SegmentEaseIn:
		return t * t, nil
	case sequence.SegmentEaseOut:
		return 1 - (1-t)*(1-t), nil
	case sequence.SegmentEaseInOut:
		if t < 0.5 {
			return 2 * t * t, nil
		}
		u := -2*t + 2
		return 1 - u*u/2, nil
	case sequence.SegmentBezier:
		if len(seg.ControlPoints) != 2 {
			return 0, fmt.Errorf("bezier segment needs 2 control points, has %d", len(seg.ControlPoints))
		}
		return cubicBezier(seg.ControlPoints[0], seg.ControlPoints[1], t), nil
	case sequence.SegmentParametric:
		if seg.Parametric == nil {
			return 0, fmt.Errorf("parametric segment has no curve")
		}
		return parametric(*seg.Parametric, t)
	default:
		return 0, fmt.Errorf("unknown interpolation type %q", seg.Type)
	}
}

// cubicBezier evaluates a CSS-style timing curve defined by two inner
// control points (outer points fixed at (0,0) and (1,1)). The curve's
// x axis is time and y axis is progress: solve x(u) = t for the curve
// parameter u by bisection, then return y(u). Control points are
// confined to [0,1] so x(u) is monotonic and bisection always
// converges.
func cubicBezier(p1, p2 sequence.ControlPoint, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	bez := func(a, b, u float64) float64 {
		// Cubic bezier with endpoints 0 and 1:
		// 3(1-u)²u·a + 3(1-u)u²·b + u³
		inv := 1 - u
		return 3*inv*inv*u*a + 3*inv*u*u*b + u*u*u
	}
	lo, hi := 0.0, 1.0
	u := t
	for range 48 {
		if x := bez(p1.X, p2.X, u); x < t {
			lo = u
		} else {
			hi = u
		}
		u = (lo + hi) / 2
	}
	return bez(p1.Y, p2.Y, u)
}

// parametric evaluates a named power curve at t.
func parametric(c sequence.ParametricCurve, t float64) (float64, error) {
	exp := c.Exponent
	if exp <= 0 {
		exp = 2
	}
	switch c.Curve {
	case "power":
		return math.Pow(t, exp), nil
	case "inverse-power":
		return 1 - math.Pow(1-t, exp), nil
	default:
		return 0, fmt.Errorf("unknown parametric curve %q", c.Curve)
	}
}

// Materialize derives the box at every visible frame in [first, last],
// keyframes included. Used by full-sequence export. Frames in
// not-visible ranges are omitted.
func Materialize(s *sequence.Sequence) ([]sequence.Box, error) {
	first, last, ok := s.FrameSpan()
	if !ok {
		return nil, fmt.Errorf("interp: sequence has no keyframes")
	}
	boxes := make([]sequence.Box, 0, last-first+1)
	for frame := first; frame <= last; frame++ {
		box, err := BoxAtFrame(s, frame)
		if err != nil {
			if errors.Is(err, ErrNotVisible) {
				continue
			}
			return nil, err
		}
		boxes = append(boxes, box)
	}
	return boxes, nil
}
