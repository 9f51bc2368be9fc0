// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/annolab/boxline/lib/codec"
	"github.com/annolab/boxline/lib/store"
)

// ConflictType classifies a detected conflict.
type ConflictType string

const (
	ConflictDuplicateSequence  ConflictType = "duplicate-sequence-id"
	ConflictDuplicateObject    ConflictType = "duplicate-object-id"
	ConflictMissingDependency  ConflictType = "missing-dependency"
	ConflictOverlappingFrames  ConflictType = "overlapping-frame-ranges"
	ConflictInterpolationStyle ConflictType = "interpolation-conflict"
)

// Conflict is one detected collision between the batch and the
// existing store (or within the batch itself).
type Conflict struct {
	Type       ConflictType `json:"type"`
	Line       int          `json:"line"`
	OriginalID string       `json:"originalId"`
	ExistingID string       `json:"existingId,omitempty"`
	Details    string       `json:"details"`

	// FrameRange is set for overlapping-frame conflicts: the
	// overlapping [start, end] span.
	FrameRange *[2]int `json:"frameRange,omitempty"`

	// InterpolationType is set for interpolation conflicts: the
	// incoming curve that disagrees with the stored one.
	InterpolationType string `json:"interpolationType,omitempty"`

	// Identical marks a duplicate whose incoming payload hashes the
	// same as the stored record. Identical duplicates resolve to
	// skip regardless of policy.
	Identical bool `json:"identical,omitempty"`
}

// Action is what the engine will actually do about one conflict.
type Action string

const (
	ActionSkip      Action = "skip"
	ActionReplace   Action = "replace"
	ActionMerge     Action = "merge"
	ActionRename    Action = "rename"
	ActionCreateNew Action = "create-new"
	ActionFail      Action = "fail"
)

// Resolution binds one conflict to its policy outcome. NewID is set
// for create-new and rename actions.
type Resolution struct {
	Strategy Strategy `json:"strategy"`
	Action   Action   `json:"action"`
	NewID    string   `json:"newId,omitempty"`
}

// ResolvedConflict pairs a conflict with its resolution for the
// report's audit trail.
type ResolvedConflict struct {
	Conflict   Conflict   `json:"conflict"`
	Resolution Resolution `json:"resolution"`
}

// snapshot is the existing-data view conflicts are detected against.
// Loaded once before detection; the execute phase re-checks nothing.
// In atomic mode the transaction makes the snapshot authoritative for
// the batch.
type snapshot struct {
	ids         map[store.Kind]map[string]bool
	annotations []store.Record
}

func (s *snapshot) has(kind store.Kind, id string) bool {
	return s.ids[kind][id]
}

// identicalAnnotation reports whether the stored annotation id has the
// same content hash as the incoming payload.
func (s *snapshot) identicalAnnotation(id string, data map[string]any) bool {
	for i := range s.annotations {
		if s.annotations[i].ID != id {
			continue
		}
		existingHash, err := codec.ContentHash(s.annotations[i].Data)
		if err != nil {
			return false
		}
		incomingHash, err := codec.ContentHash(data)
		if err != nil {
			return false
		}
		return existingHash == incomingHash
	}
	return false
}

// objectKinds are the kinds whose ids an annotation's objectId (or a
// collection's members) may reference.
var objectKinds = []store.Kind{
	store.KindEntity, store.KindEvent, store.KindTime,
	store.KindEntityCollection, store.KindEventCollection, store.KindTimeCollection,
}

// detectConflicts walks the batch in line order and reports every
// collision with the snapshot, using the dependency graph for
// missing-reference checks. Detection is read-only and exhaustive:
// all conflicts are found before any is resolved, so strict mode can
// abort the batch with the complete list.
func detectConflicts(lines []Line, graph *depGraph, snap *snapshot) []Conflict {
	var conflicts []Conflict

	for i := range lines {
		line := &lines[i]
		id := line.ID()

		switch line.Type {
		case store.KindAnnotation:
			if snap.has(store.KindAnnotation, id) {
				c := Conflict{
					Type:       ConflictDuplicateSequence,
					Line:       line.LineNumber,
					OriginalID: id,
					ExistingID: id,
					Details:    fmt.Sprintf("annotation %q already exists in store", id),
				}
				if snap.identicalAnnotation(id, line.Data) {
					c.Identical = true
					c.Details = fmt.Sprintf("annotation %q already exists with identical content", id)
				}
				conflicts = append(conflicts, c)
			} else {
				conflicts = append(conflicts, detectFrameOverlap(line, snap)...)
			}

		case store.KindEntity, store.KindEvent, store.KindTime,
			store.KindEntityCollection, store.KindEventCollection, store.KindTimeCollection:
			if snap.has(line.Type, id) {
				conflicts = append(conflicts, Conflict{
					Type:       ConflictDuplicateObject,
					Line:       line.LineNumber,
					OriginalID: id,
					ExistingID: id,
					Details:    fmt.Sprintf("%s %q already exists in store", line.Type, id),
				})
			}
		}

		for _, ref := range graph.missingRefs(line, snap) {
			conflicts = append(conflicts, Conflict{
				Type:       ConflictMissingDependency,
				Line:       line.LineNumber,
				OriginalID: id,
				Details:    fmt.Sprintf("%s %q references missing %s %q", line.Type, id, ref.kind, ref.id),
			})
		}
	}
	return conflicts
}

// detectFrameOverlap reports overlapping keyframe spans between an
// incoming annotation and existing annotations of the same object on
// the same video. Two analysts may legitimately annotate different
// time windows of one object; the same window twice is a conflict.
func detectFrameOverlap(line *Line, snap *snapshot) []Conflict {
	payload, err := DecodeAnnotation(line.Data)
	if err != nil || payload.Sequence == nil || payload.ObjectID == "" {
		return nil
	}
	first, last, ok := payload.Sequence.FrameSpan()
	if !ok {
		return nil
	}

	var conflicts []Conflict
	for i := range snap.annotations {
		existing, err := DecodeAnnotation(snap.annotations[i].Data)
		if err != nil || existing.Sequence == nil {
			continue
		}
		if existing.VideoID != payload.VideoID || existing.ObjectID != payload.ObjectID || existing.ID == payload.ID {
			continue
		}
		exFirst, exLast, ok := existing.Sequence.FrameSpan()
		if !ok {
			continue
		}
		if first <= exLast && exFirst <= last {
			overlap := [2]int{max(first, exFirst), min(last, exLast)}
			conflicts = append(conflicts, Conflict{
				Type:       ConflictOverlappingFrames,
				Line:       line.LineNumber,
				OriginalID: payload.ID,
				ExistingID: existing.ID,
				Details: fmt.Sprintf("annotation %q overlaps annotation %q on video %q frames %d-%d",
					payload.ID, existing.ID, payload.VideoID, overlap[0], overlap[1]),
				FrameRange: &overlap,
			})
		}
	}
	return conflicts
}

// resolve maps each conflict through the policy table, except that
// identical duplicates always resolve to skip. The returned list
// parallels conflicts; no conflict is left unresolved.
func resolve(conflicts []Conflict, policy Policy) []ResolvedConflict {
	resolved := make([]ResolvedConflict, 0, len(conflicts))
	for _, c := range conflicts {
		if c.Identical {
			resolved = append(resolved, ResolvedConflict{
				Conflict:   c,
				Resolution: Resolution{Strategy: StrategySkip, Action: ActionSkip},
			})
			continue
		}
		var strategy Strategy
		switch c.Type {
		case ConflictDuplicateSequence:
			strategy = policy.DuplicateSequenceIDs
		case ConflictDuplicateObject:
			strategy = policy.DuplicateObjectIDs
		case ConflictMissingDependency:
			strategy = policy.MissingDependencies
		case ConflictOverlappingFrames:
			strategy = policy.OverlappingFrameRanges
		case ConflictInterpolationStyle:
			strategy = policy.InterpolationConflicts
		}
		resolved = append(resolved, ResolvedConflict{Conflict: c, Resolution: resolutionFor(c, strategy)})
	}
	return resolved
}

// resolutionFor turns one strategy into a concrete action, minting a
// fresh id when the strategy calls for one.
func resolutionFor(c Conflict, strategy Strategy) Resolution {
	switch strategy {
	case StrategySkip, StrategySkipItem, StrategyKeepExisting:
		return Resolution{Strategy: strategy, Action: ActionSkip}
	case StrategyReplace, StrategyUseIncoming:
		return Resolution{Strategy: strategy, Action: ActionReplace}
	case StrategyMergeKeyframes, StrategyMergeAssignments, StrategyMergeRanges, StrategyCreatePlaceholder:
		return Resolution{Strategy: strategy, Action: ActionMerge}
	case StrategyCreateNew:
		return Resolution{Strategy: strategy, Action: ActionCreateNew, NewID: uuid.NewString()}
	case StrategyRename:
		return Resolution{Strategy: strategy, Action: ActionRename, NewID: c.OriginalID + "-imported-" + uuid.NewString()[:8]}
	case StrategyFail, StrategyFailImport:
		return Resolution{Strategy: strategy, Action: ActionFail}
	default:
		// Policy.Validate keeps this unreachable; fail closed if a
		// novel strategy sneaks through.
		return Resolution{Strategy: strategy, Action: ActionFail}
	}
}
