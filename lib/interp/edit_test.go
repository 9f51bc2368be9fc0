// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"errors"
	"reflect"
	"testing"

	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/validate"
)

// checkInvariants fails the test when the sequence would not pass
// validation. Every edit operation must leave a valid sequence
// behind.
func checkInvariants(t *testing.T, s *sequence.Sequence) {
	t.Helper()
	result := validate.Validate(s, nil)
	if !result.Valid {
		t.Fatalf("edited sequence fails validation: %+v", result.Errors)
	}
}

func kf(frame int, x float64) sequence.Box {
	return sequence.Box{X: x, Y: 0, Width: 20, Height: 20, FrameNumber: frame, IsKeyframe: true}
}

func threeKeyframes() *sequence.Sequence {
	s := &sequence.Sequence{Boxes: []sequence.Box{kf(0, 0), kf(50, 100), kf(100, 200)}}
	s.Segments = GenerateSegments(s.Boxes, sequence.SegmentLinear)
	return s
}

func TestGenerateSegmentsTiling(t *testing.T) {
	s := threeKeyframes()
	want := []sequence.Segment{
		{StartFrame: 0, EndFrame: 49, Type: sequence.SegmentLinear},
		{StartFrame: 50, EndFrame: 100, Type: sequence.SegmentLinear},
	}
	if !reflect.DeepEqual(s.Segments, want) {
		t.Errorf("segments = %+v, want %+v", s.Segments, want)
	}
	checkInvariants(t, s)
}

func TestAddKeyframeInterior(t *testing.T) {
	s := threeKeyframes()
	s.Segments[0].Type = sequence.SegmentEaseIn

	out, err := AddKeyframe(s, kf(25, 50))
	if err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}
	checkInvariants(t, out)

	if out.KeyframeCount() != 4 {
		t.Fatalf("%d keyframes, want 4", out.KeyframeCount())
	}
	// Both halves of the split inherit the original curve.
	if out.Segments[0].Type != sequence.SegmentEaseIn || out.Segments[1].Type != sequence.SegmentEaseIn {
		t.Errorf("split segments have types %q, %q; want ease-in for both",
			out.Segments[0].Type, out.Segments[1].Type)
	}
	if out.Segments[0].EndFrame != 24 || out.Segments[1].StartFrame != 25 {
		t.Errorf("split bounds [%d|%d], want [24|25]", out.Segments[0].EndFrame, out.Segments[1].StartFrame)
	}
	// Untouched trailing segment keeps its bounds.
	if out.Segments[2].StartFrame != 50 || out.Segments[2].EndFrame != 100 {
		t.Errorf("trailing segment = [%d, %d], want [50, 100]", out.Segments[2].StartFrame, out.Segments[2].EndFrame)
	}

	// The original sequence is untouched.
	if s.KeyframeCount() != 3 || len(s.Segments) != 2 {
		t.Error("AddKeyframe mutated its input")
	}
}

func TestAddKeyframeReplacesExisting(t *testing.T) {
	s := threeKeyframes()
	out, err := AddKeyframe(s, kf(50, 999))
	if err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}
	checkInvariants(t, out)
	if out.KeyframeCount() != 3 {
		t.Errorf("%d keyframes, want 3 (replace, not insert)", out.KeyframeCount())
	}
	if out.Boxes[1].X != 999 {
		t.Errorf("replaced keyframe X = %g, want 999", out.Boxes[1].X)
	}
	if len(out.Segments) != 2 {
		t.Errorf("%d segments after replace, want 2", len(out.Segments))
	}
}

func TestAddKeyframeAppend(t *testing.T) {
	s := threeKeyframes()
	out, err := AddKeyframe(s, kf(150, 300))
	if err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}
	checkInvariants(t, out)
	// The old final segment retreats to [50, 99]; a new linear
	// segment closes [100, 150].
	last := out.Segments[len(out.Segments)-1]
	if last.StartFrame != 100 || last.EndFrame != 150 || last.Type != sequence.SegmentLinear {
		t.Errorf("appended segment = %+v, want linear [100, 150]", last)
	}
	if out.Segments[1].EndFrame != 99 {
		t.Errorf("former final segment ends at %d, want 99", out.Segments[1].EndFrame)
	}
}

func TestAddKeyframePrepend(t *testing.T) {
	s := threeKeyframes()
	// Shift keyframes so there is room before the first.
	for i := range s.Boxes {
		s.Boxes[i].FrameNumber += 10
	}
	s.Segments = GenerateSegments(s.Boxes, sequence.SegmentLinear)

	out, err := AddKeyframe(s, kf(0, 0))
	if err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}
	checkInvariants(t, out)
	if out.Segments[0].StartFrame != 0 || out.Segments[0].EndFrame != 9 {
		t.Errorf("prepended segment = [%d, %d], want [0, 9]", out.Segments[0].StartFrame, out.Segments[0].EndFrame)
	}
}

func TestAddKeyframeSecond(t *testing.T) {
	s := sequence.New(kf(10, 0))
	out, err := AddKeyframe(s, kf(60, 100))
	if err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}
	checkInvariants(t, out)
	if len(out.Segments) != 1 {
		t.Fatalf("%d segments, want 1", len(out.Segments))
	}
	seg := out.Segments[0]
	if seg.StartFrame != 10 || seg.EndFrame != 60 || seg.Type != sequence.SegmentLinear {
		t.Errorf("spanning segment = %+v, want linear [10, 60]", seg)
	}
}

func TestAddKeyframeConsecutiveFrames(t *testing.T) {
	// A keyframe on the frame right after another produces an empty
	// inner segment (start == end is legal).
	s := threeKeyframes()
	out, err := AddKeyframe(s, kf(1, 2))
	if err != nil {
		t.Fatalf("AddKeyframe: %v", err)
	}
	checkInvariants(t, out)
	if out.Segments[0].StartFrame != 0 || out.Segments[0].EndFrame != 0 {
		t.Errorf("first segment = [%d, %d], want [0, 0]", out.Segments[0].StartFrame, out.Segments[0].EndFrame)
	}
}

func TestAddKeyframeRejectsBadGeometry(t *testing.T) {
	s := threeKeyframes()
	if _, err := AddKeyframe(s, sequence.Box{Width: 0, Height: 10, FrameNumber: 25}); err == nil {
		t.Error("zero-width box accepted")
	}
	if _, err := AddKeyframe(s, kf(-1, 0)); err == nil {
		t.Error("negative frame accepted")
	}
}

func TestAddKeyframeRejectsHiddenFrames(t *testing.T) {
	s := threeKeyframes()
	s.VisibilityRanges = []sequence.VisibilityRange{
		{StartFrame: 0, EndFrame: 50, Visible: true},
		{StartFrame: 60, EndFrame: 100, Visible: true},
	}
	checkInvariants(t, s)

	if _, err := AddKeyframe(s, kf(55, 100)); !errors.Is(err, ErrNotVisible) {
		t.Errorf("add in visibility gap: err = %v, want ErrNotVisible", err)
	}
	if _, err := AddKeyframe(s, kf(110, 100)); !errors.Is(err, ErrNotVisible) {
		t.Errorf("add past declared ranges: err = %v, want ErrNotVisible", err)
	}
	if _, err := MoveKeyframe(s, 50, 55); !errors.Is(err, ErrNotVisible) {
		t.Errorf("move into visibility gap: err = %v, want ErrNotVisible", err)
	}
	if _, err := CopyPrevious(s, 55); !errors.Is(err, ErrNotVisible) {
		t.Errorf("copy into visibility gap: err = %v, want ErrNotVisible", err)
	}

	// Visible frames are unaffected.
	out, err := AddKeyframe(s, kf(30, 60))
	if err != nil {
		t.Fatalf("add at visible frame: %v", err)
	}
	checkInvariants(t, out)
}

func TestDeleteKeyframe(t *testing.T) {
	s := threeKeyframes()
	s.Segments[0].Type = sequence.SegmentHold
	s.Segments[1].Type = sequence.SegmentEaseOut

	out, err := DeleteKeyframe(s, 50)
	if err != nil {
		t.Fatalf("DeleteKeyframe: %v", err)
	}
	checkInvariants(t, out)
	if out.KeyframeCount() != 2 {
		t.Fatalf("%d keyframes, want 2", out.KeyframeCount())
	}
	if len(out.Segments) != 1 {
		t.Fatalf("%d segments, want 1", len(out.Segments))
	}
	merged := out.Segments[0]
	if merged.StartFrame != 0 || merged.EndFrame != 100 {
		t.Errorf("merged segment = [%d, %d], want [0, 100]", merged.StartFrame, merged.EndFrame)
	}
	// The left segment's curve wins the merge.
	if merged.Type != sequence.SegmentHold {
		t.Errorf("merged segment type = %q, want hold", merged.Type)
	}
}

func TestDeleteKeyframeRejections(t *testing.T) {
	s := threeKeyframes()

	if _, err := DeleteKeyframe(s, 25); !errors.Is(err, ErrNoKeyframe) {
		t.Errorf("delete at non-keyframe: err = %v, want ErrNoKeyframe", err)
	}
	if _, err := DeleteKeyframe(s, 0); !errors.Is(err, ErrPinnedKeyframe) {
		t.Errorf("delete first: err = %v, want ErrPinnedKeyframe", err)
	}
	if _, err := DeleteKeyframe(s, 100); !errors.Is(err, ErrPinnedKeyframe) {
		t.Errorf("delete last: err = %v, want ErrPinnedKeyframe", err)
	}

	two := &sequence.Sequence{Boxes: []sequence.Box{kf(0, 0), kf(10, 10)}}
	two.Segments = GenerateSegments(two.Boxes, sequence.SegmentLinear)
	if _, err := DeleteKeyframe(two, 10); !errors.Is(err, ErrKeyframeFloor) {
		t.Errorf("delete from two-keyframe sequence: err = %v, want ErrKeyframeFloor", err)
	}
}

func TestMoveKeyframe(t *testing.T) {
	s := threeKeyframes()
	out, err := MoveKeyframe(s, 50, 70)
	if err != nil {
		t.Fatalf("MoveKeyframe: %v", err)
	}
	checkInvariants(t, out)
	if out.Boxes[1].FrameNumber != 70 {
		t.Errorf("moved keyframe frame = %d, want 70", out.Boxes[1].FrameNumber)
	}
	if out.Boxes[1].X != 100 {
		t.Errorf("moved keyframe lost geometry: X = %g, want 100", out.Boxes[1].X)
	}
	if out.Segments[0].EndFrame != 69 || out.Segments[1].StartFrame != 70 {
		t.Errorf("segment bounds [%d|%d], want [69|70]", out.Segments[0].EndFrame, out.Segments[1].StartFrame)
	}
}

func TestMoveKeyframeRejections(t *testing.T) {
	s := threeKeyframes()

	if _, err := MoveKeyframe(s, 0, 10); !errors.Is(err, ErrPinnedKeyframe) {
		t.Errorf("move first: err = %v, want ErrPinnedKeyframe", err)
	}
	if _, err := MoveKeyframe(s, 50, 0); !errors.Is(err, ErrBadTargetFrame) {
		t.Errorf("move onto neighbor: err = %v, want ErrBadTargetFrame", err)
	}
	if _, err := MoveKeyframe(s, 50, 150); !errors.Is(err, ErrBadTargetFrame) {
		t.Errorf("move past neighbor: err = %v, want ErrBadTargetFrame", err)
	}
	if _, err := MoveKeyframe(s, 33, 40); !errors.Is(err, ErrNoKeyframe) {
		t.Errorf("move non-keyframe: err = %v, want ErrNoKeyframe", err)
	}

	// No-op move succeeds.
	out, err := MoveKeyframe(s, 50, 50)
	if err != nil {
		t.Fatalf("no-op move: %v", err)
	}
	checkInvariants(t, out)
}

func TestCopyPrevious(t *testing.T) {
	s := threeKeyframes()
	out, err := CopyPrevious(s, 75)
	if err != nil {
		t.Fatalf("CopyPrevious: %v", err)
	}
	checkInvariants(t, out)
	i := out.KeyframeAt(75)
	if i < 0 {
		t.Fatal("no keyframe at frame 75 after CopyPrevious")
	}
	// Geometry copied from the keyframe at frame 50.
	if out.Boxes[i].X != 100 {
		t.Errorf("copied keyframe X = %g, want 100", out.Boxes[i].X)
	}

	if _, err := CopyPrevious(s, 0); !errors.Is(err, ErrNoKeyframe) {
		t.Errorf("copy with nothing earlier: err = %v, want ErrNoKeyframe", err)
	}
}

func TestSetSegmentType(t *testing.T) {
	s := threeKeyframes()
	points := []sequence.ControlPoint{{X: 0.4, Y: 0}, {X: 0.6, Y: 1}}
	out, err := SetSegmentType(s, 25, sequence.SegmentBezier, points, nil)
	if err != nil {
		t.Fatalf("SetSegmentType: %v", err)
	}
	checkInvariants(t, out)
	if out.Segments[0].Type != sequence.SegmentBezier || len(out.Segments[0].ControlPoints) != 2 {
		t.Errorf("segment 0 = %+v, want bezier with 2 control points", out.Segments[0])
	}

	// Switching away from bezier drops the control points.
	out2, err := SetSegmentType(out, 25, sequence.SegmentLinear, nil, nil)
	if err != nil {
		t.Fatalf("SetSegmentType back to linear: %v", err)
	}
	checkInvariants(t, out2)
	if len(out2.Segments[0].ControlPoints) != 0 {
		t.Error("stale control points survived the type change")
	}

	if _, err := SetSegmentType(s, 25, "spline", nil, nil); err == nil {
		t.Error("unknown type accepted")
	}
	if _, err := SetSegmentType(s, 500, sequence.SegmentLinear, nil, nil); err == nil {
		t.Error("frame outside every segment accepted")
	}
}

// TestEditInvariantClosure runs a chain of edits and validates after
// every step: edits must compose without ever breaking the tiling.
func TestEditInvariantClosure(t *testing.T) {
	s := sequence.New(kf(0, 0))
	step := func(name string, next *sequence.Sequence, e error) *sequence.Sequence {
		t.Helper()
		if e != nil {
			t.Fatalf("%s: %v", name, e)
		}
		checkInvariants(t, next)
		return next
	}

	next, err := AddKeyframe(s, kf(100, 200))
	s = step("add 100", next, err)
	next, err = AddKeyframe(s, kf(30, 60))
	s = step("add 30", next, err)
	next, err = AddKeyframe(s, kf(70, 140))
	s = step("add 70", next, err)
	next, err = MoveKeyframe(s, 30, 40)
	s = step("move 30->40", next, err)
	next, err = SetSegmentType(s, 50, sequence.SegmentEaseInOut, nil, nil)
	s = step("curve at 50", next, err)
	next, err = DeleteKeyframe(s, 40)
	s = step("delete 40", next, err)
	next, err = CopyPrevious(s, 85)
	s = step("copy to 85", next, err)

	if s.KeyframeCount() != 4 {
		t.Errorf("final keyframe count = %d, want 4", s.KeyframeCount())
	}

	// With visibility declared around a gap, an add into the gap is
	// rejected rather than producing a hidden keyframe.
	s.VisibilityRanges = []sequence.VisibilityRange{
		{StartFrame: 0, EndFrame: 70, Visible: true},
		{StartFrame: 85, EndFrame: 100, Visible: true},
	}
	checkInvariants(t, s)
	if _, err := AddKeyframe(s, kf(75, 0)); !errors.Is(err, ErrNotVisible) {
		t.Errorf("add into gap: err = %v, want ErrNotVisible", err)
	}
	checkInvariants(t, s)
}
