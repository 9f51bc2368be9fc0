// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/annolab/boxline/lib/clock"
	"github.com/annolab/boxline/lib/interp"
	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/validate"
	"github.com/annolab/boxline/lib/videometa"
)

// playTickMsg advances the playhead during playback.
type playTickMsg struct{}

// ModelConfig assembles an editor model.
type ModelConfig struct {
	// Title is shown in the header (typically the annotation id).
	Title string

	// Sequence is the sequence under edit. Required, must have at
	// least one keyframe.
	Sequence *sequence.Sequence

	// Meta supplies frame dimensions for the preview pane and
	// boundary validation, and FPS for playback. Optional.
	Meta *videometa.Meta

	// TotalFrames is the video length for the timeline ruler. Falls
	// back to the sequence span when zero.
	TotalFrames int

	// Config is the editor configuration (theme, zoom, fps).
	Config EditorConfig

	// Clock drives playback. Nil means the real clock.
	Clock clock.Clock

	// OnSave persists the sequence. Nil disables saving.
	OnSave func(*sequence.Sequence) error
}

// Model is the timeline editor's bubbletea model: the thin adapter
// that translates terminal input into controller events, applies the
// resulting actions through lib/interp, and composes the preview
// pane, timeline strip, and status bar into each frame.
type Model struct {
	title    string
	keys     KeyMap
	theme    Theme
	renderer *Renderer
	clock    clock.Clock
	meta     *videometa.Meta
	onSave   func(*sequence.Sequence) error

	seq          *sequence.Sequence
	state        State
	currentFrame int
	totalFrames  int
	fps          float64

	playing bool
	unsaved bool

	width, height int
	// timelineY is the screen row where the timeline strip starts;
	// mouse events are translated relative to it.
	timelineY int

	status      string
	statusError bool
}

// NewModel builds the editor model.
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Sequence == nil || len(cfg.Sequence.Boxes) == 0 {
		return nil, fmt.Errorf("timeline: a sequence with at least one keyframe is required")
	}
	totalFrames := cfg.TotalFrames
	if totalFrames == 0 {
		_, last, _ := cfg.Sequence.FrameSpan()
		totalFrames = last + 1
	}
	fps := cfg.Config.FPS
	if cfg.Meta != nil && cfg.Meta.FPS > 0 {
		fps = cfg.Meta.FPS
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	theme := ThemeByName(cfg.Config.Theme)
	renderer := NewRenderer(theme, totalFrames)
	renderer.SetZoom(cfg.Config.DefaultZoom)

	first, _, _ := cfg.Sequence.FrameSpan()
	return &Model{
		title:        cfg.Title,
		keys:         DefaultKeyMap(),
		theme:        theme,
		renderer:     renderer,
		clock:        clk,
		meta:         cfg.Meta,
		onSave:       cfg.OnSave,
		seq:          cfg.Sequence,
		currentFrame: first,
		totalFrames:  totalFrames,
		fps:          fps,
	}, nil
}

// Sequence returns the current sequence snapshot.
func (m *Model) Sequence() *sequence.Sequence { return m.seq }

func (m *Model) Init() tea.Cmd { return nil }

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderer.SetWidth(msg.Width)
		m.timelineY = m.previewHeight() + 1
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil

	case playTickMsg:
		if !m.playing {
			return m, nil
		}
		_, last, _ := m.seq.FrameSpan()
		if m.currentFrame >= last {
			m.playing = false
			return m, nil
		}
		m.seek(m.currentFrame + 1)
		return m, m.scheduleTick()
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.PlayPause):
		m.playing = !m.playing
		if m.playing {
			return m, m.scheduleTick()
		}
		return m, nil

	case key.Matches(msg, m.keys.Save):
		m.save()
		return m, nil

	case key.Matches(msg, m.keys.StepBack):
		m.dispatch(CmdStep{N: -1})
	case key.Matches(msg, m.keys.StepForward):
		m.dispatch(CmdStep{N: 1})
	case key.Matches(msg, m.keys.StepBack10):
		m.dispatch(CmdStep{N: -10})
	case key.Matches(msg, m.keys.StepForward10):
		m.dispatch(CmdStep{N: 10})
	case key.Matches(msg, m.keys.JumpStart):
		m.dispatch(CmdJumpStart{})
	case key.Matches(msg, m.keys.JumpEnd):
		m.dispatch(CmdJumpEnd{})
	case key.Matches(msg, m.keys.AddKeyframe):
		m.dispatch(CmdAddKeyframe{})
	case key.Matches(msg, m.keys.DeleteKeyframe):
		m.dispatch(CmdDeleteKeyframe{})
	case key.Matches(msg, m.keys.CopyPrevious):
		m.dispatch(CmdCopyPrevious{})
	case key.Matches(msg, m.keys.ToggleVisibility):
		m.dispatch(CmdToggleVisibility{})
	case key.Matches(msg, m.keys.ZoomIn):
		m.dispatch(CmdZoom{Level: m.renderer.Zoom() + 1})
	case key.Matches(msg, m.keys.ZoomOut):
		m.dispatch(CmdZoom{Level: m.renderer.Zoom() - 1})
	}
	return m, nil
}

// handleMouse translates raw mouse input into controller pointer
// events. Only the timeline strip rows participate; presses
// elsewhere are ignored, and an in-progress drag tracks motion
// anywhere on screen so fast drags do not escape the strip.
func (m *Model) handleMouse(msg tea.MouseMsg) {
	inStrip := msg.Y >= m.timelineY && msg.Y < m.timelineY+3

	switch msg.Button {
	case tea.MouseButtonLeft:
		switch msg.Action {
		case tea.MouseActionPress:
			if !inStrip {
				return
			}
			m.dispatch(PointerDown{X: msg.X, Toggle: msg.Shift || msg.Ctrl})
		case tea.MouseActionMotion:
			if m.state.Drag != DragIdle {
				m.dispatch(PointerMove{X: msg.X})
			}
		case tea.MouseActionRelease:
			if m.state.Drag != DragIdle {
				m.dispatch(PointerUp{X: msg.X})
			}
		}

	case tea.MouseButtonWheelUp:
		if inStrip {
			m.dispatch(CmdZoom{Level: m.renderer.Zoom() + 1})
		}
	case tea.MouseButtonWheelDown:
		if inStrip {
			m.dispatch(CmdZoom{Level: m.renderer.Zoom() - 1})
		}
	case tea.MouseButtonNone:
		if msg.Action == tea.MouseActionMotion && m.state.Drag != DragIdle {
			m.dispatch(PointerMove{X: msg.X})
		}
	}
}

// dispatch runs one controller event through the reducer and applies
// the resulting actions. Reductions that change only interaction
// state (selection, drag preview) still invalidate the renderer, so
// the next draw reflects them even when no action was emitted.
func (m *Model) dispatch(event Event) {
	env := Env{
		Sequence:     m.seq,
		CurrentFrame: m.currentFrame,
		XToFrame:     m.renderer.XToFrame,
		KeyframeAtX:  m.renderer.KeyframeAtX,
	}
	state, actions := Reduce(m.state, event, env)
	if !maps.Equal(state.Selected, m.state.Selected) {
		m.renderer.Invalidate()
	}
	m.state = state
	m.renderer.SetDragPreview(state.PendingFrame, state.Drag == DragKeyframe)
	for _, action := range actions {
		m.apply(action)
	}
}

// apply performs one reducer action. Edits that the edit layer
// rejects (pinned keyframes, hidden keyframes) become status
// messages; the sequence is untouched.
func (m *Model) apply(action Action) {
	switch act := action.(type) {
	case ActionSeek:
		m.seek(act.Frame)

	case ActionZoom:
		m.renderer.SetZoom(act.Level)
		m.renderer.Invalidate()

	case ActionAddKeyframe:
		box, err := interp.BoxAtFrame(m.seq, act.Frame)
		if err != nil {
			// Outside the span or hidden: seed from the nearest
			// keyframe so adding at the video's edges still works.
			box = m.seq.Boxes[0]
			if act.Frame > box.FrameNumber {
				box = m.seq.Boxes[len(m.seq.Boxes)-1]
			}
		}
		box.FrameNumber = act.Frame
		m.edit(func() (*sequence.Sequence, error) { return interp.AddKeyframe(m.seq, box) })

	case ActionDeleteKeyframe:
		m.edit(func() (*sequence.Sequence, error) { return interp.DeleteKeyframe(m.seq, act.Frame) })

	case ActionMoveKeyframe:
		m.edit(func() (*sequence.Sequence, error) { return interp.MoveKeyframe(m.seq, act.From, act.To) })

	case ActionCopyPrevious:
		m.edit(func() (*sequence.Sequence, error) { return interp.CopyPrevious(m.seq, act.Frame) })

	case ActionToggleVisibility:
		m.edit(func() (*sequence.Sequence, error) { return interp.ToggleVisibility(m.seq, act.Frame) })
	}
}

// edit applies one sequence edit, runs the advisory validator, and
// invalidates the renderer. Rejected edits leave the sequence as-is.
func (m *Model) edit(op func() (*sequence.Sequence, error)) {
	next, err := op()
	if err != nil {
		switch {
		case errors.Is(err, interp.ErrPinnedKeyframe),
			errors.Is(err, interp.ErrKeyframeFloor),
			errors.Is(err, interp.ErrHidesKeyframe),
			errors.Is(err, interp.ErrNotVisible),
			errors.Is(err, interp.ErrNoKeyframe),
			errors.Is(err, interp.ErrBadTargetFrame):
			m.setStatus(err.Error(), false)
		default:
			m.setStatus(err.Error(), true)
		}
		return
	}
	m.seq = next
	m.unsaved = true
	m.renderer.Invalidate()

	result := validate.Validate(m.seq, m.meta)
	switch {
	case !result.Valid:
		m.setStatus(result.Errors[0].Message, true)
	case len(result.Warnings) > 0:
		m.setStatus(result.Warnings[0].Message, false)
	default:
		m.setStatus("", false)
	}
}

func (m *Model) seek(frame int) {
	frame = min(max(frame, 0), m.totalFrames-1)
	if frame != m.currentFrame {
		m.currentFrame = frame
		m.renderer.Invalidate()
	}
}

func (m *Model) save() {
	if m.onSave == nil {
		m.setStatus("no save target", false)
		return
	}
	result := validate.Validate(m.seq, m.meta)
	if !result.Valid {
		m.setStatus("not saved: "+result.Errors[0].Message, true)
		return
	}
	if err := m.onSave(m.seq); err != nil {
		m.setStatus("save failed: "+err.Error(), true)
		return
	}
	m.unsaved = false
	m.setStatus("saved", false)
}

func (m *Model) setStatus(text string, isError bool) {
	m.status, m.statusError = text, isError
}

// scheduleTick arranges the next playback tick at the video frame
// rate through the injected clock.
func (m *Model) scheduleTick() tea.Cmd {
	interval := time.Duration(float64(time.Second) / m.fps)
	after := m.clock.After(interval)
	return func() tea.Msg {
		<-after
		return playTickMsg{}
	}
}

func (m *Model) previewHeight() int {
	h := m.height - 6
	if h < 4 {
		h = 4
	}
	return h
}

func (m *Model) View() string {
	if m.width == 0 {
		return "loading"
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderPreview())
	b.WriteString("\n")
	b.WriteString(m.renderer.Render(m.seq, m.currentFrame, m.state.Selected))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m *Model) renderHeader() string {
	title := m.title
	if m.unsaved {
		title += " *"
	}
	info := fmt.Sprintf("frame %d/%d  zoom %.0fx  %d keyframes",
		m.currentFrame, m.totalFrames-1, m.renderer.Zoom(), m.seq.KeyframeCount())
	gap := m.width - ansi.StringWidth(title) - ansi.StringWidth(info)
	if gap < 1 {
		gap = 1
	}
	line := title + strings.Repeat(" ", gap) + info
	return lipgloss.NewStyle().Foreground(m.theme.StatusText).Render(ansi.Truncate(line, m.width, ""))
}

// renderPreview draws the current frame's box scaled into the
// preview pane. Derived boxes render in a different color from
// keyframes so analysts can tell authored from interpolated at a
// glance.
func (m *Model) renderPreview() string {
	paneH := m.previewHeight()
	paneW := m.width

	frameW, frameH := 1920.0, 1080.0
	if m.meta != nil && m.meta.Width > 0 && m.meta.Height > 0 {
		frameW, frameH = float64(m.meta.Width), float64(m.meta.Height)
	}

	box, err := interp.BoxAtFrame(m.seq, m.currentFrame)
	grid := make([][]rune, paneH)
	for y := range grid {
		grid[y] = make([]rune, paneW)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	if err != nil {
		message := "(no box at this frame)"
		if errors.Is(err, interp.ErrNotVisible) {
			message = "(object not visible)"
		}
		return lipgloss.NewStyle().
			Foreground(m.theme.HelpText).
			Width(paneW).Height(paneH).
			Align(lipgloss.Center, lipgloss.Center).
			Render(message)
	}

	scaleX := float64(paneW) / frameW
	scaleY := float64(paneH) / frameH
	x0 := int(box.X * scaleX)
	y0 := int(box.Y * scaleY)
	x1 := int((box.X + box.Width) * scaleX)
	y1 := int((box.Y + box.Height) * scaleY)
	x0, x1 = min(max(x0, 0), paneW-1), min(max(x1, 0), paneW-1)
	y0, y1 = min(max(y0, 0), paneH-1), min(max(y1, 0), paneH-1)

	for x := x0; x <= x1; x++ {
		grid[y0][x] = '▄'
		grid[y1][x] = '▀'
	}
	for y := y0; y <= y1; y++ {
		grid[y][x0] = '█'
		grid[y][x1] = '█'
	}

	color := m.theme.BoxDerived
	if box.IsKeyframe {
		color = m.theme.BoxBorder
	}
	style := lipgloss.NewStyle().Foreground(color)
	rows := make([]string, paneH)
	for y := range grid {
		rows[y] = style.Render(string(grid[y]))
	}
	return strings.Join(rows, "\n")
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		mode := "paused"
		if m.playing {
			mode = "playing"
		}
		return lipgloss.NewStyle().Foreground(m.theme.StatusText).Render(mode)
	}
	color := m.theme.StatusWarning
	if m.statusError {
		color = m.theme.StatusError
	}
	return lipgloss.NewStyle().Foreground(color).Render(ansi.Truncate(m.status, m.width, "…"))
}

func (m *Model) renderHelp() string {
	help := "space play  ←/→ step  k add  x delete  c copy  v visibility  +/- zoom  ctrl+s save  q quit"
	return lipgloss.NewStyle().Foreground(m.theme.HelpText).Render(ansi.Truncate(help, m.width, "…"))
}
