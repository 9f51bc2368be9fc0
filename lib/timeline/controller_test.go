// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"testing"

	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/testutil"
)

// testEnv wires the reducer to an identity cell↔frame mapping: cell x
// is frame x, and a keyframe hit is an exact frame match within one
// cell, matching the renderer at zoom 1 with a full-width viewport.
func testEnv(s *sequence.Sequence, currentFrame int) Env {
	return Env{
		Sequence:     s,
		CurrentFrame: currentFrame,
		XToFrame:     func(x int) int { return x },
		KeyframeAtX: func(s *sequence.Sequence, x int) (int, bool) {
			for _, box := range s.Boxes {
				delta := box.FrameNumber - x
				if delta >= -1 && delta <= 1 {
					return box.FrameNumber, true
				}
			}
			return 0, false
		},
	}
}

func onlyAction(t *testing.T, actions []Action) Action {
	t.Helper()
	if len(actions) != 1 {
		t.Fatalf("got %d actions %v, want 1", len(actions), actions)
	}
	return actions[0]
}

func noActions(t *testing.T, actions []Action) {
	t.Helper()
	if len(actions) != 0 {
		t.Fatalf("unexpected actions %v", actions)
	}
}

func TestPointerDownEmptyTimelineScrubs(t *testing.T) {
	s := testutil.LinearSequence(0, 50, 100)
	env := testEnv(s, 0)

	state, actions := Reduce(State{}, PointerDown{X: 25}, env)
	if state.Drag != DragPlayhead {
		t.Fatalf("drag state = %v, want DragPlayhead", state.Drag)
	}
	if seek := onlyAction(t, actions).(ActionSeek); seek.Frame != 25 {
		t.Errorf("seek frame = %d, want 25", seek.Frame)
	}

	// Scrub near a keyframe: the seek snaps onto it.
	state, actions = Reduce(state, PointerMove{X: 52}, env)
	if seek := onlyAction(t, actions).(ActionSeek); seek.Frame != 50 {
		t.Errorf("snapped seek frame = %d, want 50", seek.Frame)
	}

	state, actions = Reduce(state, PointerUp{X: 52}, env)
	noActions(t, actions)
	if state.Drag != DragIdle {
		t.Errorf("drag state after release = %v, want DragIdle", state.Drag)
	}
}

func TestKeyframeDragCommitsOnRelease(t *testing.T) {
	s := testutil.LinearSequence(0, 50, 100)
	env := testEnv(s, 0)

	state, actions := Reduce(State{}, PointerDown{X: 50}, env)
	noActions(t, actions)
	if state.Drag != DragKeyframe || state.DragStartFrame != 50 {
		t.Fatalf("state = %+v, want keyframe drag from 50", state)
	}
	if !state.Selected[50] || len(state.Selected) != 1 {
		t.Errorf("selection = %v, want exactly {50}", state.Selected)
	}

	// Moves preview only; nothing is applied yet.
	state, actions = Reduce(state, PointerMove{X: 60}, env)
	noActions(t, actions)
	if state.PendingFrame != 60 {
		t.Errorf("pending frame = %d, want 60", state.PendingFrame)
	}
	state, actions = Reduce(state, PointerMove{X: 70}, env)
	noActions(t, actions)
	if state.PendingFrame != 70 {
		t.Errorf("pending frame = %d, want 70", state.PendingFrame)
	}

	// Release commits one move.
	state, actions = Reduce(state, PointerUp{X: 70}, env)
	move := onlyAction(t, actions).(ActionMoveKeyframe)
	if move.From != 50 || move.To != 70 {
		t.Errorf("move = %+v, want 50 to 70", move)
	}
	if state.Drag != DragIdle {
		t.Errorf("drag state after commit = %v", state.Drag)
	}
	if !state.Selected[70] {
		t.Errorf("selection did not follow the moved keyframe: %v", state.Selected)
	}
}

func TestKeyframeDragNoOps(t *testing.T) {
	s := testutil.LinearSequence(0, 50, 100)
	env := testEnv(s, 0)

	// Releasing on the original frame is a no-op.
	state, _ := Reduce(State{}, PointerDown{X: 50}, env)
	state, actions := Reduce(state, PointerUp{X: 50}, env)
	noActions(t, actions)
	if state.Drag != DragIdle {
		t.Errorf("drag state = %v", state.Drag)
	}

	// The endpoints are pinned; dragging them never commits.
	for _, x := range []int{0, 100} {
		state, _ = Reduce(State{}, PointerDown{X: x}, env)
		if state.Drag != DragKeyframe {
			t.Fatalf("pointer down at %d did not start a drag", x)
		}
		_, actions = Reduce(state, PointerUp{X: 30}, env)
		noActions(t, actions)
	}
}

func TestSelectionToggle(t *testing.T) {
	s := testutil.LinearSequence(0, 50, 100)
	env := testEnv(s, 0)

	state, actions := Reduce(State{}, PointerDown{X: 50, Toggle: true}, env)
	noActions(t, actions)
	if state.Drag != DragIdle {
		t.Errorf("toggle started a drag: %v", state.Drag)
	}
	if !state.Selected[50] {
		t.Fatalf("selection = %v, want {50}", state.Selected)
	}

	state, _ = Reduce(state, PointerDown{X: 100, Toggle: true}, env)
	if !state.Selected[50] || !state.Selected[100] {
		t.Fatalf("selection = %v, want {50, 100}", state.Selected)
	}

	// Toggling a selected keyframe deselects it.
	state, _ = Reduce(state, PointerDown{X: 50, Toggle: true}, env)
	if state.Selected[50] || !state.Selected[100] {
		t.Fatalf("selection = %v, want {100}", state.Selected)
	}
}

func TestSelectionIsCopiedNotShared(t *testing.T) {
	s := testutil.LinearSequence(0, 50, 100)
	env := testEnv(s, 0)

	before := State{Selected: map[int]bool{100: true}}
	after, _ := Reduce(before, PointerDown{X: 50, Toggle: true}, env)
	if before.Selected[50] {
		t.Error("reduction mutated the input state's selection")
	}
	if !after.Selected[50] || !after.Selected[100] {
		t.Errorf("selection = %v, want {50, 100}", after.Selected)
	}
}

func TestDeleteKeyframeGuards(t *testing.T) {
	s := testutil.LinearSequence(0, 50, 100)

	// Interior keyframe: deletable.
	_, actions := Reduce(State{}, CmdDeleteKeyframe{}, testEnv(s, 50))
	if del := onlyAction(t, actions).(ActionDeleteKeyframe); del.Frame != 50 {
		t.Errorf("delete frame = %d, want 50", del.Frame)
	}

	// Pinned endpoints and non-keyframe frames: silent no-ops.
	for _, frame := range []int{0, 100, 25} {
		_, actions := Reduce(State{}, CmdDeleteKeyframe{}, testEnv(s, frame))
		noActions(t, actions)
	}

	// Two keyframes left: nothing is deletable.
	two := testutil.LinearSequence(0, 100)
	for _, frame := range []int{0, 100} {
		_, actions := Reduce(State{}, CmdDeleteKeyframe{}, testEnv(two, frame))
		noActions(t, actions)
	}
}

func TestPlayheadCommands(t *testing.T) {
	s := testutil.LinearSequence(10, 50, 90)

	_, actions := Reduce(State{}, CmdStep{N: 5}, testEnv(s, 40))
	if seek := onlyAction(t, actions).(ActionSeek); seek.Frame != 45 {
		t.Errorf("step seek = %d, want 45", seek.Frame)
	}
	_, actions = Reduce(State{}, CmdStep{N: -1}, testEnv(s, 40))
	if seek := onlyAction(t, actions).(ActionSeek); seek.Frame != 39 {
		t.Errorf("step seek = %d, want 39", seek.Frame)
	}
	_, actions = Reduce(State{}, CmdJumpStart{}, testEnv(s, 40))
	if seek := onlyAction(t, actions).(ActionSeek); seek.Frame != 10 {
		t.Errorf("jump start = %d, want 10", seek.Frame)
	}
	_, actions = Reduce(State{}, CmdJumpEnd{}, testEnv(s, 40))
	if seek := onlyAction(t, actions).(ActionSeek); seek.Frame != 90 {
		t.Errorf("jump end = %d, want 90", seek.Frame)
	}
}

func TestEditCommands(t *testing.T) {
	s := testutil.LinearSequence(0, 100)
	env := testEnv(s, 42)

	_, actions := Reduce(State{}, CmdAddKeyframe{}, env)
	if add := onlyAction(t, actions).(ActionAddKeyframe); add.Frame != 42 {
		t.Errorf("add frame = %d, want 42", add.Frame)
	}
	_, actions = Reduce(State{}, CmdCopyPrevious{}, env)
	if cp := onlyAction(t, actions).(ActionCopyPrevious); cp.Frame != 42 {
		t.Errorf("copy frame = %d, want 42", cp.Frame)
	}
	_, actions = Reduce(State{}, CmdToggleVisibility{}, env)
	if tv := onlyAction(t, actions).(ActionToggleVisibility); tv.Frame != 42 {
		t.Errorf("toggle frame = %d, want 42", tv.Frame)
	}
	_, actions = Reduce(State{}, CmdZoom{Level: 4}, env)
	if zoom := onlyAction(t, actions).(ActionZoom); zoom.Level != 4 {
		t.Errorf("zoom level = %v, want 4", zoom.Level)
	}
}
