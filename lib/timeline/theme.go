// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/annolab/boxline/lib/sequence"
)

// Theme defines the color palette for the timeline editor. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Ruler chrome.
	RulerTick  lipgloss.Color
	RulerLabel lipgloss.Color

	// Playhead column.
	Playhead lipgloss.Color

	// Keyframe markers.
	Keyframe         lipgloss.Color
	KeyframeSelected lipgloss.Color
	KeyframePinned   lipgloss.Color

	// Segment track, colored per interpolation curve.
	SegmentColors map[sequence.SegmentType]lipgloss.Color

	// Visibility track.
	Visible lipgloss.Color
	Hidden  lipgloss.Color

	// Box preview pane.
	BoxBorder       lipgloss.Color
	BoxDerived      lipgloss.Color
	PreviewBackdrop lipgloss.Color

	// Status bar.
	StatusText    lipgloss.Color
	StatusError   lipgloss.Color
	StatusWarning lipgloss.Color
	HelpText      lipgloss.Color
}

// DarkTheme is the default palette, tuned for dark backgrounds.
func DarkTheme() Theme {
	return Theme{
		RulerTick:  lipgloss.Color("240"),
		RulerLabel: lipgloss.Color("246"),

		Playhead: lipgloss.Color("203"),

		Keyframe:         lipgloss.Color("214"),
		KeyframeSelected: lipgloss.Color("226"),
		KeyframePinned:   lipgloss.Color("208"),

		SegmentColors: map[sequence.SegmentType]lipgloss.Color{
			sequence.SegmentLinear:     lipgloss.Color("39"),
			sequence.SegmentHold:       lipgloss.Color("244"),
			sequence.SegmentEaseIn:     lipgloss.Color("78"),
			sequence.SegmentEaseOut:    lipgloss.Color("78"),
			sequence.SegmentEaseInOut:  lipgloss.Color("78"),
			sequence.SegmentBezier:     lipgloss.Color("135"),
			sequence.SegmentParametric: lipgloss.Color("135"),
		},

		Visible: lipgloss.Color("28"),
		Hidden:  lipgloss.Color("236"),

		BoxBorder:       lipgloss.Color("214"),
		BoxDerived:      lipgloss.Color("75"),
		PreviewBackdrop: lipgloss.Color("235"),

		StatusText:    lipgloss.Color("250"),
		StatusError:   lipgloss.Color("196"),
		StatusWarning: lipgloss.Color("220"),
		HelpText:      lipgloss.Color("241"),
	}
}

// LightTheme adjusts the palette for light backgrounds.
func LightTheme() Theme {
	theme := DarkTheme()
	theme.RulerTick = lipgloss.Color("250")
	theme.RulerLabel = lipgloss.Color("240")
	theme.Hidden = lipgloss.Color("253")
	theme.PreviewBackdrop = lipgloss.Color("254")
	theme.StatusText = lipgloss.Color("236")
	theme.HelpText = lipgloss.Color("246")
	return theme
}

// ThemeByName resolves a configured theme name. Unknown names fall
// back to dark.
func ThemeByName(name string) Theme {
	if name == "light" {
		return LightTheme()
	}
	return DarkTheme()
}

// segmentGlyphs map each curve to its track character.
var segmentGlyphs = map[sequence.SegmentType]rune{
	sequence.SegmentLinear:     '─',
	sequence.SegmentHold:       '═',
	sequence.SegmentEaseIn:     '╱',
	sequence.SegmentEaseOut:    '╲',
	sequence.SegmentEaseInOut:  '∼',
	sequence.SegmentBezier:     '≈',
	sequence.SegmentParametric: '∿',
}
