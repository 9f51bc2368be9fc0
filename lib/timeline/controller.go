// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"github.com/annolab/boxline/lib/sequence"
)

// DragState is the controller's drag mode.
type DragState int

const (
	// DragIdle: no pointer interaction in progress.
	DragIdle DragState = iota
	// DragPlayhead: pointer-down landed on empty timeline; every
	// move re-seeks.
	DragPlayhead
	// DragKeyframe: pointer-down landed on a keyframe; moves track a
	// pending target without mutating the sequence, pointer-up
	// commits.
	DragKeyframe
)

// State is the controller's complete interaction state. It is a
// value: Reduce returns a new State, never mutates, so drag and
// selection logic is testable without a rendering surface.
type State struct {
	Drag DragState

	// DragStartFrame is the dragged keyframe's original frame
	// (DragKeyframe only).
	DragStartFrame int

	// PendingFrame is the drag's current target frame (preview only;
	// the sequence is untouched until pointer-up).
	PendingFrame int

	// Selected holds the selected keyframes' frame numbers.
	Selected map[int]bool
}

// Event is one interaction input. Pointer coordinates are viewport
// cells; the adapter has already subtracted the strip's screen
// offset.
type Event interface{ isEvent() }

type (
	// PointerDown begins an interaction. Toggle (shift/ctrl held)
	// turns a keyframe hit into a multi-select toggle instead of a
	// drag.
	PointerDown struct {
		X      int
		Toggle bool
	}
	// PointerMove continues a drag.
	PointerMove struct{ X int }
	// PointerUp ends a drag.
	PointerUp struct{ X int }

	// CmdAddKeyframe places a keyframe at the playhead.
	CmdAddKeyframe struct{}
	// CmdDeleteKeyframe removes the keyframe at the playhead.
	CmdDeleteKeyframe struct{}
	// CmdCopyPrevious stamps the previous keyframe's box at the
	// playhead.
	CmdCopyPrevious struct{}
	// CmdToggleVisibility flips visibility at the playhead.
	CmdToggleVisibility struct{}
	// CmdStep moves the playhead by N frames (negative for back).
	CmdStep struct{ N int }
	// CmdJumpStart and CmdJumpEnd move the playhead to the sequence
	// ends.
	CmdJumpStart struct{}
	CmdJumpEnd   struct{}
	// CmdZoom sets the zoom level.
	CmdZoom struct{ Level float64 }
)

func (PointerDown) isEvent()         {}
func (PointerMove) isEvent()         {}
func (PointerUp) isEvent()           {}
func (CmdAddKeyframe) isEvent()      {}
func (CmdDeleteKeyframe) isEvent()   {}
func (CmdCopyPrevious) isEvent()     {}
func (CmdToggleVisibility) isEvent() {}
func (CmdStep) isEvent()             {}
func (CmdJumpStart) isEvent()        {}
func (CmdJumpEnd) isEvent()          {}
func (CmdZoom) isEvent()             {}

// Action is an effect the reducer asks its host to perform. The
// reducer itself never touches the sequence; the host applies actions
// through lib/interp and re-renders.
type Action interface{ isAction() }

type (
	// ActionSeek moves the playhead.
	ActionSeek struct{ Frame int }
	// ActionMoveKeyframe commits a completed keyframe drag.
	ActionMoveKeyframe struct{ From, To int }
	// ActionAddKeyframe, ActionDeleteKeyframe, ActionCopyPrevious,
	// ActionToggleVisibility mirror the command surface at the
	// playhead frame.
	ActionAddKeyframe      struct{ Frame int }
	ActionDeleteKeyframe   struct{ Frame int }
	ActionCopyPrevious     struct{ Frame int }
	ActionToggleVisibility struct{ Frame int }
	// ActionZoom sets the zoom level.
	ActionZoom struct{ Level float64 }
)

func (ActionSeek) isAction()             {}
func (ActionMoveKeyframe) isAction()     {}
func (ActionAddKeyframe) isAction()      {}
func (ActionDeleteKeyframe) isAction()   {}
func (ActionCopyPrevious) isAction()     {}
func (ActionToggleVisibility) isAction() {}
func (ActionZoom) isAction()             {}

// Env is the read-only context a reduction runs against: the current
// sequence snapshot, the playhead, and the renderer's frame↔cell
// mapping.
type Env struct {
	Sequence     *sequence.Sequence
	CurrentFrame int

	// XToFrame and KeyframeAtX come from the renderer so hit testing
	// shares the single affine mapping.
	XToFrame    func(x int) int
	KeyframeAtX func(s *sequence.Sequence, x int) (int, bool)
}

// Reduce advances the interaction state machine by one event and
// returns the actions the host must apply. Pure: no mutation, no
// rendering, no sequence edits.
func Reduce(state State, event Event, env Env) (State, []Action) {
	switch ev := event.(type) {
	case PointerDown:
		return reducePointerDown(state, ev, env)

	case PointerMove:
		switch state.Drag {
		case DragPlayhead:
			// Re-seek on every move, snapping to nearby keyframes.
			frame := SnapToKeyframe(env.Sequence, env.XToFrame(ev.X))
			return state, []Action{ActionSeek{Frame: frame}}
		case DragKeyframe:
			// Preview only. The sequence is not touched until the
			// drag commits.
			state.PendingFrame = env.XToFrame(ev.X)
			return state, nil
		}
		return state, nil

	case PointerUp:
		return reducePointerUp(state, ev, env)

	case CmdAddKeyframe:
		return state, []Action{ActionAddKeyframe{Frame: env.CurrentFrame}}

	case CmdDeleteKeyframe:
		// Pinned endpoints and the two-keyframe floor are rejected
		// here, before the edit layer ever sees them: a no-op, not
		// an error dialog.
		s := env.Sequence
		i := s.KeyframeAt(env.CurrentFrame)
		if i < 0 || i == 0 || i == len(s.Boxes)-1 || len(s.Boxes) <= 2 {
			return state, nil
		}
		return state, []Action{ActionDeleteKeyframe{Frame: env.CurrentFrame}}

	case CmdCopyPrevious:
		return state, []Action{ActionCopyPrevious{Frame: env.CurrentFrame}}

	case CmdToggleVisibility:
		return state, []Action{ActionToggleVisibility{Frame: env.CurrentFrame}}

	case CmdStep:
		return state, []Action{ActionSeek{Frame: env.CurrentFrame + ev.N}}

	case CmdJumpStart:
		first, _, ok := env.Sequence.FrameSpan()
		if !ok {
			return state, nil
		}
		return state, []Action{ActionSeek{Frame: first}}

	case CmdJumpEnd:
		_, last, ok := env.Sequence.FrameSpan()
		if !ok {
			return state, nil
		}
		return state, []Action{ActionSeek{Frame: last}}

	case CmdZoom:
		return state, []Action{ActionZoom{Level: ev.Level}}
	}
	return state, nil
}

func reducePointerDown(state State, ev PointerDown, env Env) (State, []Action) {
	if frame, ok := env.KeyframeAtX(env.Sequence, ev.X); ok {
		if ev.Toggle {
			// Multi-select toggle instead of a drag.
			selected := cloneSelection(state.Selected)
			if selected[frame] {
				delete(selected, frame)
			} else {
				selected[frame] = true
			}
			state.Selected = selected
			return state, nil
		}
		state.Drag = DragKeyframe
		state.DragStartFrame = frame
		state.PendingFrame = frame
		state.Selected = map[int]bool{frame: true}
		return state, nil
	}

	// Empty timeline: start scrubbing, seeking immediately.
	state.Drag = DragPlayhead
	frame := SnapToKeyframe(env.Sequence, env.XToFrame(ev.X))
	return state, []Action{ActionSeek{Frame: frame}}
}

func reducePointerUp(state State, ev PointerUp, env Env) (State, []Action) {
	switch state.Drag {
	case DragKeyframe:
		from := state.DragStartFrame
		to := env.XToFrame(ev.X)
		state.Drag = DragIdle

		s := env.Sequence
		i := s.KeyframeAt(from)
		// The move commits only when the target differs and the
		// keyframe is interior; the first and last keyframes are
		// structurally pinned. Anything else makes the drag a no-op.
		if to == from || i <= 0 || i >= len(s.Boxes)-1 {
			return state, nil
		}
		state.Selected = map[int]bool{to: true}
		return state, []Action{ActionMoveKeyframe{From: from, To: to}}

	case DragPlayhead:
		state.Drag = DragIdle
		return state, nil
	}
	return state, nil
}

func cloneSelection(selected map[int]bool) map[int]bool {
	cloned := make(map[int]bool, len(selected)+1)
	for frame := range selected {
		cloned[frame] = true
	}
	return cloned
}
