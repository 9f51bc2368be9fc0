// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the editor's key bindings.
type KeyMap struct {
	PlayPause        key.Binding
	StepBack         key.Binding
	StepForward      key.Binding
	StepBack10       key.Binding
	StepForward10    key.Binding
	JumpStart        key.Binding
	JumpEnd          key.Binding
	AddKeyframe      key.Binding
	DeleteKeyframe   key.Binding
	CopyPrevious     key.Binding
	ToggleVisibility key.Binding
	ZoomIn           key.Binding
	ZoomOut          key.Binding
	Save             key.Binding
	Quit             key.Binding
}

// DefaultKeyMap is the standard binding set.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		PlayPause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "play/pause"),
		),
		StepBack: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←", "frame -1"),
		),
		StepForward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→", "frame +1"),
		),
		StepBack10: key.NewBinding(
			key.WithKeys("shift+left", "H"),
			key.WithHelp("shift+←", "frame -10"),
		),
		StepForward10: key.NewBinding(
			key.WithKeys("shift+right", "L"),
			key.WithHelp("shift+→", "frame +10"),
		),
		JumpStart: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("home", "first keyframe"),
		),
		JumpEnd: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("end", "last keyframe"),
		),
		AddKeyframe: key.NewBinding(
			key.WithKeys("k"),
			key.WithHelp("k", "add keyframe"),
		),
		DeleteKeyframe: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete keyframe"),
		),
		CopyPrevious: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "copy previous box"),
		),
		ToggleVisibility: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "toggle visibility"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "zoom out"),
		),
		Save: key.NewBinding(
			key.WithKeys("ctrl+s", "w"),
			key.WithHelp("ctrl+s", "save"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
