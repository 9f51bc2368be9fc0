// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package timeline

import (
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/annolab/boxline/lib/sequence"
)

// Zoom bounds. Zoom 1 fits the whole video in the viewport; zoom 10
// shows a tenth of it.
const (
	ZoomMin = 1.0
	ZoomMax = 10.0
)

// hitRadiusCells is the keyframe hit-test radius in screen cells.
// Screen space, not frame space: the clickable area around a keyframe
// marker stays the same apparent size at every zoom level.
const hitRadiusCells = 1

// SnapRadiusFrames is the playhead snap radius, in frames. Zoomed out,
// a small pointer move covers many frames and snapping matters less;
// zoomed in, the 3-frame window is wide on screen.
const SnapRadiusFrames = 3

// Renderer turns a sequence, playhead, and selection into the
// timeline strip: a frame ruler, the keyframe/segment track, and the
// visibility track.
//
// The renderer double-buffers: rows are drawn into an off-screen
// buffer only when Invalidate has been called since the last draw,
// and Render otherwise returns the previous buffer unchanged. Excess
// invalidations between draws coalesce into one redraw — a dirty
// flag, not per-field diffing.
//
// The viewport is virtualized. Only frames within
// [viewportStart, viewportEnd] are considered, and segment and
// keyframe lookups locate their visible range by binary search, so a
// draw never scans all of a long video's frames or keyframes.
type Renderer struct {
	theme       Theme
	width       int
	totalFrames int
	zoom        float64

	viewportStart int
	viewportEnd   int
	cellsPerFrame float64

	pendingFrame  int
	pendingActive bool

	dirty     bool
	lastFrame int
	buffer    string
}

// NewRenderer creates a renderer for a video of totalFrames frames.
func NewRenderer(theme Theme, totalFrames int) *Renderer {
	if totalFrames < 1 {
		totalFrames = 1
	}
	return &Renderer{
		theme:       theme,
		totalFrames: totalFrames,
		zoom:        ZoomMin,
		dirty:       true,
	}
}

// SetWidth resizes the drawing surface to the given cell width.
func (r *Renderer) SetWidth(width int) {
	if width < 10 {
		width = 10
	}
	if width != r.width {
		r.width = width
		r.dirty = true
	}
}

// SetZoom sets the zoom level, clamped to [ZoomMin, ZoomMax].
func (r *Renderer) SetZoom(zoom float64) {
	zoom = min(max(zoom, ZoomMin), ZoomMax)
	if zoom != r.zoom {
		r.zoom = zoom
		r.dirty = true
	}
}

// Zoom returns the current zoom level.
func (r *Renderer) Zoom() float64 { return r.zoom }

// Invalidate marks the buffer stale. The next Render redraws; calls
// between draws coalesce.
func (r *Renderer) Invalidate() { r.dirty = true }

// SetDragPreview places (or, with active false, clears) the in-flight
// drag target marker. The marker tracks the pointer during a keyframe
// drag while the sequence itself stays unedited until the drag
// commits.
func (r *Renderer) SetDragPreview(frame int, active bool) {
	if frame != r.pendingFrame || active != r.pendingActive {
		r.pendingFrame, r.pendingActive = frame, active
		r.dirty = true
	}
}

// layout recomputes the viewport: its frame count follows from zoom,
// its position centers on the playhead, clamped to the video.
func (r *Renderer) layout(currentFrame int) {
	visible := int(float64(r.totalFrames) / r.zoom)
	if visible < 1 {
		visible = 1
	}
	start := currentFrame - visible/2
	start = min(max(start, 0), max(r.totalFrames-visible, 0))
	end := min(start+visible-1, r.totalFrames-1)

	if start != r.viewportStart || end != r.viewportEnd || currentFrame != r.lastFrame {
		r.dirty = true
	}
	r.viewportStart, r.viewportEnd = start, end
	r.lastFrame = currentFrame
	r.cellsPerFrame = float64(r.width) / float64(visible)
}

// FrameToX maps a frame to its viewport cell column. This and
// XToFrame are the single source of truth for the pixel↔frame affine
// mapping; every hit test and every drawn marker goes through them so
// the two can never drift apart.
func (r *Renderer) FrameToX(frame int) int {
	return int(float64(frame-r.viewportStart) * r.cellsPerFrame)
}

// XToFrame maps a viewport cell column back to the frame under it,
// clamped to the video's frame range.
func (r *Renderer) XToFrame(x int) int {
	frame := r.viewportStart + int(float64(x)/r.cellsPerFrame)
	return min(max(frame, 0), r.totalFrames-1)
}

// KeyframeAtX returns the frame of the keyframe whose marker is
// within the hit radius of cell x, preferring the nearest. Only
// keyframes inside the viewport are considered.
func (r *Renderer) KeyframeAtX(s *sequence.Sequence, x int) (frame int, ok bool) {
	lo, hi := r.visibleKeyframes(s)
	bestDelta := hitRadiusCells + 1
	for i := lo; i < hi; i++ {
		delta := r.FrameToX(s.Boxes[i].FrameNumber) - x
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			frame = s.Boxes[i].FrameNumber
			ok = true
		}
	}
	return frame, ok
}

// SnapToKeyframe returns the frame of a keyframe within
// SnapRadiusFrames of frame, or frame unchanged.
func SnapToKeyframe(s *sequence.Sequence, frame int) int {
	best := frame
	bestDelta := SnapRadiusFrames + 1
	for _, box := range s.Boxes {
		delta := box.FrameNumber - frame
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			bestDelta = delta
			best = box.FrameNumber
		}
	}
	return best
}

// visibleKeyframes returns the index range [lo, hi) of keyframes
// inside the viewport, by binary search over the sorted keyframes.
func (r *Renderer) visibleKeyframes(s *sequence.Sequence) (lo, hi int) {
	lo = sort.Search(len(s.Boxes), func(i int) bool {
		return s.Boxes[i].FrameNumber >= r.viewportStart
	})
	hi = sort.Search(len(s.Boxes), func(i int) bool {
		return s.Boxes[i].FrameNumber > r.viewportEnd
	})
	return lo, hi
}

// tickInterval is the major-tick spacing for a zoom level. The fixed
// lookup keeps tick density readable at every zoom.
func tickInterval(zoom float64) int {
	switch {
	case zoom >= 8:
		return 1
	case zoom >= 5:
		return 5
	case zoom >= 3:
		return 10
	case zoom >= 2:
		return 20
	default:
		return 50
	}
}

// Render draws the timeline strip for the given playhead and
// selection. The result is cached: without an intervening Invalidate
// (or a playhead/viewport change), Render returns the same buffer
// without redrawing.
func (r *Renderer) Render(s *sequence.Sequence, currentFrame int, selected map[int]bool) string {
	if r.width == 0 {
		return ""
	}
	r.layout(currentFrame)
	if !r.dirty {
		return r.buffer
	}

	rows := []string{
		r.renderRuler(),
		r.renderTrack(s, currentFrame, selected),
		r.renderVisibility(s, currentFrame),
	}
	r.buffer = strings.Join(rows, "\n")
	r.dirty = false
	return r.buffer
}

// cell is one styled screen cell.
type cell struct {
	glyph rune
	color lipgloss.Color
}

// renderRow emits a row of cells, batching adjacent same-color cells
// into one styled run.
func renderRow(cells []cell) string {
	var b strings.Builder
	runStart := 0
	for i := 1; i <= len(cells); i++ {
		if i < len(cells) && cells[i].color == cells[runStart].color {
			continue
		}
		var run strings.Builder
		for _, c := range cells[runStart:i] {
			run.WriteRune(c.glyph)
		}
		b.WriteString(lipgloss.NewStyle().Foreground(cells[runStart].color).Render(run.String()))
		runStart = i
	}
	return b.String()
}

// renderRuler draws major ticks and frame labels for the viewport.
// Only tick frames inside the viewport are visited.
func (r *Renderer) renderRuler() string {
	cells := blankRow(r.width, r.theme.RulerTick)
	interval := tickInterval(r.zoom)

	firstTick := (r.viewportStart + interval - 1) / interval * interval
	for frame := firstTick; frame <= r.viewportEnd; frame += interval {
		x := r.FrameToX(frame)
		if x < 0 || x >= r.width {
			continue
		}
		cells[x] = cell{glyph: '╷', color: r.theme.RulerTick}
		label := []rune(strconv.Itoa(frame))
		for j, digit := range label {
			if pos := x + 1 + j; pos < r.width {
				cells[pos] = cell{glyph: digit, color: r.theme.RulerLabel}
			}
		}
	}
	return renderRow(cells)
}

// renderTrack draws the segment band, keyframe markers, and the
// playhead. Segments intersecting the viewport are located by binary
// search; everything outside is never touched.
func (r *Renderer) renderTrack(s *sequence.Sequence, currentFrame int, selected map[int]bool) string {
	cells := blankRow(r.width, r.theme.RulerTick)

	first := sort.Search(len(s.Segments), func(i int) bool {
		return s.Segments[i].EndFrame >= r.viewportStart
	})
	for i := first; i < len(s.Segments) && s.Segments[i].StartFrame <= r.viewportEnd; i++ {
		seg := s.Segments[i]
		glyph, ok := segmentGlyphs[seg.Type]
		if !ok {
			glyph = '─'
		}
		color := r.theme.SegmentColors[seg.Type]
		fromX := max(r.FrameToX(max(seg.StartFrame, r.viewportStart)), 0)
		toX := min(r.FrameToX(min(seg.EndFrame, r.viewportEnd)), r.width-1)
		for x := fromX; x <= toX; x++ {
			cells[x] = cell{glyph: glyph, color: color}
		}
	}

	lo, hi := r.visibleKeyframes(s)
	for i := lo; i < hi; i++ {
		frame := s.Boxes[i].FrameNumber
		x := r.FrameToX(frame)
		if x < 0 || x >= r.width {
			continue
		}
		marker := cell{glyph: '◆', color: r.theme.Keyframe}
		if i == 0 || i == len(s.Boxes)-1 {
			marker = cell{glyph: '◈', color: r.theme.KeyframePinned}
		}
		if selected[frame] {
			marker.color = r.theme.KeyframeSelected
		}
		cells[x] = marker
	}

	if r.pendingActive {
		if x := r.FrameToX(r.pendingFrame); x >= 0 && x < r.width {
			cells[x] = cell{glyph: '◇', color: r.theme.KeyframeSelected}
		}
	}
	if x := r.FrameToX(currentFrame); x >= 0 && x < r.width {
		cells[x] = cell{glyph: '┃', color: r.theme.Playhead}
	}
	return renderRow(cells)
}

// renderVisibility draws the visibility band: one cell per column,
// colored by whether the object is visible at the frame under it.
func (r *Renderer) renderVisibility(s *sequence.Sequence, currentFrame int) string {
	cells := make([]cell, r.width)
	for x := range cells {
		frame := r.XToFrame(x)
		if s.VisibleAt(frame) {
			cells[x] = cell{glyph: '▁', color: r.theme.Visible}
		} else {
			cells[x] = cell{glyph: '▁', color: r.theme.Hidden}
		}
	}
	if x := r.FrameToX(currentFrame); x >= 0 && x < r.width {
		cells[x].color = r.theme.Playhead
	}
	return renderRow(cells)
}

func blankRow(width int, color lipgloss.Color) []cell {
	cells := make([]cell, width)
	for i := range cells {
		cells[i] = cell{glyph: ' ', color: color}
	}
	return cells
}
