// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package interp

import (
	"fmt"
	"slices"
	"sort"

	"github.com/annolab/boxline/lib/sequence"
)

// ToggleVisibility flips the visibility state at frame. Unhiding
// extends from frame to the end of the containing range; hiding
// extends from frame to one frame before the next keyframe (or the
// range end, whichever comes first), so the object can leave and
// re-enter between keyframes without uncovering one. Adjacent ranges
// with equal visibility are coalesced so the range list stays minimal
// and sorted.
//
// A toggle that would leave any keyframe inside a not-visible region
// is rejected with ErrHidesKeyframe: keyframes are authored ground
// truth and must stay covered.
func ToggleVisibility(s *sequence.Sequence, frame int) (*sequence.Sequence, error) {
	first, last, ok := s.FrameSpan()
	if !ok {
		return nil, fmt.Errorf("interp: toggle visibility: sequence has no keyframes")
	}
	if frame < first || frame > last {
		return nil, fmt.Errorf("interp: toggle visibility at frame %d: %w", frame, ErrOutOfRange)
	}

	out := s.Clone()
	if len(out.VisibilityRanges) == 0 {
		// No declared ranges means implicitly always visible. The
		// first toggle materializes that implicit state and then
		// hides [frame, last].
		out.VisibilityRanges = []sequence.VisibilityRange{
			{StartFrame: first, EndFrame: last, Visible: true},
		}
	}

	ranges := out.VisibilityRanges
	at := -1
	for i, r := range ranges {
		if r.Contains(frame) {
			at = i
			break
		}
	}

	if at < 0 {
		// Undeclared gap (implicitly not visible): declare a visible
		// range from frame to just before the next declared range,
		// or to the last keyframe.
		end := last
		for _, r := range ranges {
			if r.StartFrame > frame && r.StartFrame-1 < end {
				end = r.StartFrame - 1
			}
		}
		ranges = append(ranges, sequence.VisibilityRange{StartFrame: frame, EndFrame: end, Visible: true})
	} else {
		r := ranges[at]
		end := r.EndFrame
		if r.Visible {
			// Hiding: the hidden region stops one frame short of the
			// next keyframe so keyframe coverage holds. Hiding the
			// keyframe's own frame still fails the coverage check
			// below.
			for _, box := range out.Boxes {
				if box.FrameNumber > frame {
					if box.FrameNumber-1 < end {
						end = box.FrameNumber - 1
					}
					break
				}
			}
		}
		flipped := sequence.VisibilityRange{StartFrame: frame, EndFrame: end, Visible: !r.Visible}

		tail := ranges[at+1:]
		head := ranges[:at]
		rebuilt := make([]sequence.VisibilityRange, 0, len(ranges)+2)
		rebuilt = append(rebuilt, head...)
		if frame > r.StartFrame {
			// Keep the leading portion with its old state.
			rebuilt = append(rebuilt, sequence.VisibilityRange{StartFrame: r.StartFrame, EndFrame: frame - 1, Visible: r.Visible})
		}
		rebuilt = append(rebuilt, flipped)
		if end < r.EndFrame {
			// Keep the trailing portion with its old state.
			rebuilt = append(rebuilt, sequence.VisibilityRange{StartFrame: end + 1, EndFrame: r.EndFrame, Visible: r.Visible})
		}
		ranges = append(rebuilt, tail...)
	}

	out.VisibilityRanges = normalizeRanges(ranges)

	for _, box := range out.Boxes {
		if !out.VisibleAt(box.FrameNumber) {
			return nil, fmt.Errorf("interp: toggle visibility at frame %d hides keyframe %d: %w",
				frame, box.FrameNumber, ErrHidesKeyframe)
		}
	}
	return out, nil
}

// normalizeRanges sorts ranges and merges contiguous neighbors with
// equal visibility. Ranges are assumed non-overlapping on entry (the
// toggle construction preserves that).
func normalizeRanges(ranges []sequence.VisibilityRange) []sequence.VisibilityRange {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].StartFrame < ranges[j].StartFrame
	})
	merged := ranges[:0]
	for _, r := range ranges {
		if n := len(merged); n > 0 {
			prev := &merged[n-1]
			if prev.Visible == r.Visible && prev.EndFrame+1 >= r.StartFrame {
				if r.EndFrame > prev.EndFrame {
					prev.EndFrame = r.EndFrame
				}
				continue
			}
		}
		merged = append(merged, r)
	}
	return slices.Clip(merged)
}
