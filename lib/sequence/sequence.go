// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package sequence

import (
	"slices"
)

// SegmentType identifies the interpolation rule applied between two
// consecutive keyframes.
type SegmentType string

// The closed set of interpolation types. The validator rejects
// anything outside this set; the interpolation engine treats an
// unknown type reaching it as a programming error.
const (
	SegmentLinear     SegmentType = "linear"
	SegmentBezier     SegmentType = "bezier"
	SegmentEaseIn     SegmentType = "ease-in"
	SegmentEaseOut    SegmentType = "ease-out"
	SegmentEaseInOut  SegmentType = "ease-in-out"
	SegmentHold       SegmentType = "hold"
	SegmentParametric SegmentType = "parametric"
)

// KnownSegmentType reports whether t is a member of the closed
// interpolation-type set.
func KnownSegmentType(t SegmentType) bool {
	switch t {
	case SegmentLinear, SegmentBezier, SegmentEaseIn, SegmentEaseOut,
		SegmentEaseInOut, SegmentHold, SegmentParametric:
		return true
	}
	return false
}

// Box is one bounding box at one frame. A Box with IsKeyframe set is
// author-authoritative ground truth; a Box without it is derived by
// interpolation and must never be persisted, only materialized on
// demand for rendering or full-sequence export.
type Box struct {
	// X, Y locate the top-left corner. Non-negative.
	X float64 `json:"x"`
	Y float64 `json:"y"`

	// Width, Height are the box extent. Strictly positive.
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	// FrameNumber is the video frame this box belongs to.
	// Non-negative integer.
	FrameNumber int `json:"frameNumber"`

	// IsKeyframe marks an author-placed box.
	IsKeyframe bool `json:"isKeyframe"`

	// Confidence, when present, lies in [0,1]. Typically set by a
	// tracking model that seeded the sequence.
	Confidence *float64 `json:"confidence,omitempty"`

	// Metadata carries free-form per-box attributes (occlusion
	// flags, label qualifiers). Opaque to this system.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ControlPoint is one axis-normalized bezier control coordinate.
// Both components lie in [0,1].
type ControlPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Segment describes how to derive boxes between two consecutive
// keyframes. StartFrame and EndFrame are both keyframe frame numbers,
// StartFrame < EndFrame.
type Segment struct {
	StartFrame int         `json:"startFrame"`
	EndFrame   int         `json:"endFrame"`
	Type       SegmentType `json:"type"`

	// ControlPoints, for bezier segments, are the two inner control
	// points of a cubic easing curve (the outer points are implied
	// at (0,0) and (1,1)).
	ControlPoints []ControlPoint `json:"controlPoints,omitempty"`

	// Parametric, for parametric segments, names a curve preset and
	// its parameters. The engine evaluates it per axis over
	// normalized time.
	Parametric *ParametricCurve `json:"parametric,omitempty"`
}

// ParametricCurve selects a named easing function with a shape
// parameter. Exponent powers the normalized time: t^Exponent for
// "power", 1-(1-t)^Exponent for "inverse-power".
type ParametricCurve struct {
	Curve    string  `json:"curve"`
	Exponent float64 `json:"exponent"`
}

// VisibilityRange declares whether the annotated object is present
// across an inclusive frame interval. Gaps between declared ranges are
// treated as not-visible when any ranges exist at all; a sequence with
// zero ranges is implicitly always visible.
type VisibilityRange struct {
	StartFrame int  `json:"startFrame"`
	EndFrame   int  `json:"endFrame"`
	Visible    bool `json:"visible"`
}

// Contains reports whether frame lies inside the range (inclusive).
func (r VisibilityRange) Contains(frame int) bool {
	return frame >= r.StartFrame && frame <= r.EndFrame
}

// TrackingSource identifies how a sequence was originally produced.
type TrackingSource string

const (
	TrackingManual    TrackingSource = "manual"
	TrackingAutomatic TrackingSource = "automatic"
	TrackingHybrid    TrackingSource = "hybrid"
)

// KnownTrackingSource reports whether s is a recognized source tag.
func KnownTrackingSource(s TrackingSource) bool {
	switch s {
	case TrackingManual, TrackingAutomatic, TrackingHybrid:
		return true
	}
	return false
}

// Sequence is one annotated object's bounding boxes over time: a
// sparse set of authored keyframes plus the interpolation and
// visibility metadata needed to derive the box at any frame in the
// keyframe span. A Sequence is owned by exactly one annotation record.
//
// Invariants (enforced by lib/validate, assumed everywhere else):
//
//  1. At least one keyframe; keyframes sorted ascending by frame
//     number with no duplicates.
//  2. With two or more keyframes, Segments sorted by StartFrame tile
//     [first keyframe, last keyframe] exactly: no gaps, no overlaps.
//  3. VisibilityRanges sorted by StartFrame, non-overlapping.
//  4. Every keyframe falls inside a Visible=true range whenever any
//     ranges are declared.
//  5. Box geometry stays inside the video frame when frame dimensions
//     are known.
//  6. TrackingConfidence and per-box Confidence lie in [0,1].
type Sequence struct {
	// Boxes holds the authored keyframes, sorted by frame number.
	// Derived (non-keyframe) boxes are never stored here.
	Boxes []Box `json:"boxes"`

	// Segments tile the keyframe span when two or more keyframes
	// exist. Empty for a single-keyframe sequence.
	Segments []Segment `json:"interpolationSegments"`

	// VisibilityRanges, possibly empty (empty means always visible).
	VisibilityRanges []VisibilityRange `json:"visibilityRanges,omitempty"`

	// TrackID links the sequence to an external tracker identity.
	TrackID string `json:"trackId,omitempty"`

	// TrackingSource records provenance (manual, automatic, hybrid).
	TrackingSource TrackingSource `json:"trackingSource,omitempty"`

	// TrackingConfidence, when present, lies in [0,1].
	TrackingConfidence *float64 `json:"trackingConfidence,omitempty"`

	// TotalFrames optionally records the owning video's frame count.
	TotalFrames int `json:"totalFrames,omitempty"`
}

// Keyframes returns the keyframe boxes in stored order. The result
// aliases the sequence's backing array; callers must not modify it.
func (s *Sequence) Keyframes() []Box {
	return s.Boxes
}

// KeyframeCount returns the number of authored keyframes.
func (s *Sequence) KeyframeCount() int {
	return len(s.Boxes)
}

// FrameSpan returns the first and last keyframe frame numbers. For a
// single-keyframe sequence both are that keyframe's frame. ok is
// false for an empty (invalid) sequence.
func (s *Sequence) FrameSpan() (first, last int, ok bool) {
	if len(s.Boxes) == 0 {
		return 0, 0, false
	}
	return s.Boxes[0].FrameNumber, s.Boxes[len(s.Boxes)-1].FrameNumber, true
}

// KeyframeAt returns the index of the keyframe at exactly frame, or
// -1 when no keyframe sits on that frame. Binary search over the
// sorted keyframe slice.
func (s *Sequence) KeyframeAt(frame int) int {
	i, found := slices.BinarySearchFunc(s.Boxes, frame, func(b Box, f int) int {
		return b.FrameNumber - f
	})
	if !found {
		return -1
	}
	return i
}

// VisibleAt reports whether the object is visible at frame. With zero
// declared ranges the object is always visible. With ranges declared,
// a frame covered by no range is not visible.
func (s *Sequence) VisibleAt(frame int) bool {
	if len(s.VisibilityRanges) == 0 {
		return true
	}
	for _, r := range s.VisibilityRanges {
		if r.Contains(frame) {
			return r.Visible
		}
	}
	return false
}

// Clone returns a deep copy. Edit operations copy first and mutate
// the copy so that the original remains a stable snapshot for any
// concurrent validate, interpolate, or render call.
func (s *Sequence) Clone() *Sequence {
	out := *s
	out.Boxes = slices.Clone(s.Boxes)
	for i := range out.Boxes {
		if m := out.Boxes[i].Metadata; m != nil {
			cloned := make(map[string]any, len(m))
			for k, v := range m {
				cloned[k] = v
			}
			out.Boxes[i].Metadata = cloned
		}
		if c := out.Boxes[i].Confidence; c != nil {
			v := *c
			out.Boxes[i].Confidence = &v
		}
	}
	out.Segments = slices.Clone(s.Segments)
	for i := range out.Segments {
		out.Segments[i].ControlPoints = slices.Clone(s.Segments[i].ControlPoints)
		if p := s.Segments[i].Parametric; p != nil {
			v := *p
			out.Segments[i].Parametric = &v
		}
	}
	out.VisibilityRanges = slices.Clone(s.VisibilityRanges)
	if c := s.TrackingConfidence; c != nil {
		v := *c
		out.TrackingConfidence = &v
	}
	return &out
}

// New returns a sequence containing a single keyframe: the author's
// first box, placed at box.FrameNumber. IsKeyframe is forced on.
func New(box Box) *Sequence {
	box.IsKeyframe = true
	return &Sequence{Boxes: []Box{box}}
}
