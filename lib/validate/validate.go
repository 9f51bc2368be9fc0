// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate checks a bounding-box sequence against its
// structural invariants. Validate is pure and never fails out of
// band: every data problem becomes an Issue in the returned Result,
// so the same call gates persistence on import and advises the editor
// during interaction.
package validate

import (
	"fmt"

	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/videometa"
)

// Code classifies an Issue. Errors mark invariant violations that
// make the sequence unusable; warnings mark advisory conditions the
// sequence survives.
type Code string

const (
	// Structural invariant violations (errors).
	CodeNoKeyframes       Code = "no-keyframes"
	CodeUnsortedKeyframes Code = "unsorted-keyframes"
	CodeDuplicateKeyframe Code = "duplicate-keyframe"
	CodeDerivedBoxStored  Code = "derived-box-stored"
	CodeSegmentGap        Code = "segment-gap"
	CodeSegmentOverlap    Code = "segment-overlap"
	CodeSegmentOutOfSpan  Code = "segment-out-of-span"
	CodeSegmentInverted   Code = "segment-inverted"
	CodeUnknownSegment    Code = "unknown-segment-type"
	CodeBadControlPoints  Code = "bad-control-points"
	CodeBadParametric     Code = "bad-parametric-curve"
	CodeVisibilityOverlap Code = "visibility-overlap"
	CodeKeyframeHidden    Code = "keyframe-not-visible"

	// Geometry violations (errors).
	CodeBadGeometry      Code = "bad-geometry"
	CodeOutOfFrameBounds Code = "out-of-frame-bounds"
	CodeBadConfidence    Code = "bad-confidence"
	CodeUnknownSource    Code = "unknown-tracking-source"

	// Advisory conditions (warnings).
	CodeNoSegments       Code = "no-segments"
	CodeSegmentsIgnored  Code = "segments-ignored"
	CodeNoVisibility     Code = "no-visibility-ranges"
)

// Issue is one finding. Frame is the frame number the finding is
// scoped to, or -1 when the finding is not frame-scoped.
type Issue struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Frame   int    `json:"frame"`
}

// Result is the outcome of one validation pass. Valid is true exactly
// when Errors is empty; warnings never invalidate a sequence.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

func (r *Result) errorf(code Code, frame int, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, Frame: frame, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(code Code, frame int, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Frame: frame, Message: fmt.Sprintf(format, args...)})
}

// Validate checks every sequence invariant. meta supplies the video's
// frame dimensions for boundary checks; nil meta skips those checks
// entirely. Absent metadata is normal, not an error.
func Validate(s *sequence.Sequence, meta *videometa.Meta) Result {
	var r Result

	validKeyframes := checkKeyframes(s, &r)
	if validKeyframes {
		checkSegments(s, &r)
		checkVisibility(s, &r)
	}
	checkBoxes(s, meta, &r)
	checkTracking(s, &r)

	r.Valid = len(r.Errors) == 0
	return r
}

// checkKeyframes verifies presence, ordering, uniqueness, and that
// only keyframes are stored. Returns false when the keyframe list is
// too broken for dependent checks (segments, visibility coverage) to
// say anything meaningful.
func checkKeyframes(s *sequence.Sequence, r *Result) bool {
	if len(s.Boxes) == 0 {
		r.errorf(CodeNoKeyframes, -1, "sequence has no keyframes")
		return false
	}
	ok := true
	for i, box := range s.Boxes {
		if !box.IsKeyframe {
			r.errorf(CodeDerivedBoxStored, box.FrameNumber,
				"box at frame %d is not a keyframe; derived boxes must not be persisted", box.FrameNumber)
		}
		if i == 0 {
			continue
		}
		prev := s.Boxes[i-1].FrameNumber
		switch {
		case box.FrameNumber == prev:
			r.errorf(CodeDuplicateKeyframe, box.FrameNumber, "duplicate keyframe at frame %d", box.FrameNumber)
			ok = false
		case box.FrameNumber < prev:
			r.errorf(CodeUnsortedKeyframes, box.FrameNumber,
				"keyframe at frame %d appears after frame %d; keyframes must be sorted ascending", box.FrameNumber, prev)
			ok = false
		}
	}
	return ok
}

// checkSegments verifies the tiling invariant: with two or more
// keyframes, segments sorted by start frame cover the keyframe span
// exactly, no gaps, no overlaps, all bounds inside the span. Segment
// curves are checked against the closed type set.
func checkSegments(s *sequence.Sequence, r *Result) {
	first, last, _ := s.FrameSpan()

	if len(s.Boxes) == 1 {
		if len(s.Segments) > 0 {
			r.warnf(CodeSegmentsIgnored, -1,
				"single-keyframe sequence declares %d interpolation segments; they are ignored", len(s.Segments))
		}
		return
	}
	if len(s.Segments) == 0 {
		r.warnf(CodeNoSegments, -1, "multi-keyframe sequence declares no interpolation segments")
		return
	}

	for i, seg := range s.Segments {
		// A segment between keyframes on consecutive frames is
		// empty of intermediate frames and collapses to start ==
		// end; only start > end is structurally inverted.
		if seg.StartFrame > seg.EndFrame {
			r.errorf(CodeSegmentInverted, seg.StartFrame,
				"segment [%d, %d] has start after end", seg.StartFrame, seg.EndFrame)
		}
		if seg.StartFrame < first || seg.EndFrame > last {
			r.errorf(CodeSegmentOutOfSpan, seg.StartFrame,
				"segment [%d, %d] exceeds keyframe span [%d, %d]", seg.StartFrame, seg.EndFrame, first, last)
		}
		checkSegmentCurve(seg, r)

		if i == 0 {
			if seg.StartFrame != first {
				r.errorf(CodeSegmentGap, first,
					"segments start at frame %d, not at first keyframe %d", seg.StartFrame, first)
			}
			continue
		}
		prevEnd := s.Segments[i-1].EndFrame
		switch {
		case seg.StartFrame > prevEnd+1:
			r.errorf(CodeSegmentGap, prevEnd+1,
				"gap between segment ending at frame %d and segment starting at frame %d", prevEnd, seg.StartFrame)
		case seg.StartFrame <= prevEnd:
			r.errorf(CodeSegmentOverlap, seg.StartFrame,
				"segment starting at frame %d overlaps segment ending at frame %d", seg.StartFrame, prevEnd)
		}
	}
	if end := s.Segments[len(s.Segments)-1].EndFrame; end != last {
		r.errorf(CodeSegmentGap, end,
			"segments end at frame %d, not at last keyframe %d", end, last)
	}
}

func checkSegmentCurve(seg sequence.Segment, r *Result) {
	if !sequence.KnownSegmentType(seg.Type) {
		r.errorf(CodeUnknownSegment, seg.StartFrame,
			"segment [%d, %d] has unknown interpolation type %q", seg.StartFrame, seg.EndFrame, seg.Type)
		return
	}
	if seg.Type == sequence.SegmentBezier {
		if len(seg.ControlPoints) != 2 {
			r.errorf(CodeBadControlPoints, seg.StartFrame,
				"bezier segment [%d, %d] has %d control points, want 2", seg.StartFrame, seg.EndFrame, len(seg.ControlPoints))
			return
		}
		for _, p := range seg.ControlPoints {
			if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
				r.errorf(CodeBadControlPoints, seg.StartFrame,
					"bezier segment [%d, %d] control point (%g, %g) outside [0,1]", seg.StartFrame, seg.EndFrame, p.X, p.Y)
			}
		}
	}
	if seg.Type == sequence.SegmentParametric {
		if seg.Parametric == nil {
			r.errorf(CodeBadParametric, seg.StartFrame,
				"parametric segment [%d, %d] declares no curve", seg.StartFrame, seg.EndFrame)
		} else if c := seg.Parametric.Curve; c != "power" && c != "inverse-power" {
			r.errorf(CodeBadParametric, seg.StartFrame,
				"parametric segment [%d, %d] has unknown curve %q", seg.StartFrame, seg.EndFrame, c)
		}
	}
}

// checkVisibility verifies range ordering and non-overlap, and that
// every keyframe sits inside a visible range whenever any ranges are
// declared. Zero declared ranges means always visible; that is legal
// but worth flagging on sequences that likely track exit/re-entry.
func checkVisibility(s *sequence.Sequence, r *Result) {
	if len(s.VisibilityRanges) == 0 {
		r.warnf(CodeNoVisibility, -1, "no visibility ranges declared; object treated as always visible")
		return
	}
	for i, vr := range s.VisibilityRanges {
		if vr.StartFrame > vr.EndFrame {
			r.errorf(CodeVisibilityOverlap, vr.StartFrame,
				"visibility range [%d, %d] has start after end", vr.StartFrame, vr.EndFrame)
		}
		if i > 0 {
			prev := s.VisibilityRanges[i-1]
			if vr.StartFrame <= prev.EndFrame {
				r.errorf(CodeVisibilityOverlap, vr.StartFrame,
					"visibility range [%d, %d] overlaps range [%d, %d]", vr.StartFrame, vr.EndFrame, prev.StartFrame, prev.EndFrame)
			}
		}
	}
	for _, box := range s.Boxes {
		if !s.VisibleAt(box.FrameNumber) {
			r.errorf(CodeKeyframeHidden, box.FrameNumber,
				"keyframe at frame %d is not inside any visible range", box.FrameNumber)
		}
	}
}

// checkBoxes verifies per-box geometry, and frame-boundary fit when
// video metadata is available.
func checkBoxes(s *sequence.Sequence, meta *videometa.Meta, r *Result) {
	for _, box := range s.Boxes {
		frame := box.FrameNumber
		if frame < 0 {
			r.errorf(CodeBadGeometry, frame, "negative frame number %d", frame)
		}
		if box.Width <= 0 || box.Height <= 0 {
			r.errorf(CodeBadGeometry, frame, "box at frame %d has non-positive extent %gx%g", frame, box.Width, box.Height)
		}
		if box.X < 0 || box.Y < 0 {
			r.errorf(CodeBadGeometry, frame, "box at frame %d has negative origin (%g, %g)", frame, box.X, box.Y)
		}
		if c := box.Confidence; c != nil && (*c < 0 || *c > 1) {
			r.errorf(CodeBadConfidence, frame, "box at frame %d has confidence %g outside [0,1]", frame, *c)
		}
		if meta == nil {
			continue
		}
		if box.X+box.Width > float64(meta.Width) || box.Y+box.Height > float64(meta.Height) {
			r.errorf(CodeOutOfFrameBounds, frame,
				"box at frame %d extends to (%g, %g), beyond %dx%d frame",
				frame, box.X+box.Width, box.Y+box.Height, meta.Width, meta.Height)
		}
		if total := meta.TotalFrames(); total > 0 && frame >= total {
			r.errorf(CodeOutOfFrameBounds, frame,
				"frame number %d beyond video's %d frames", frame, total)
		}
	}
}

// checkTracking verifies the optional tracking metadata.
func checkTracking(s *sequence.Sequence, r *Result) {
	if s.TrackingSource != "" && !sequence.KnownTrackingSource(s.TrackingSource) {
		r.errorf(CodeUnknownSource, -1, "unknown tracking source %q", s.TrackingSource)
	}
	if c := s.TrackingConfidence; c != nil && (*c < 0 || *c > 1) {
		r.errorf(CodeBadConfidence, -1, "tracking confidence %g outside [0,1]", *c)
	}
}
