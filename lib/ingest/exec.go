// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/annolab/boxline/lib/interp"
	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/store"
)

// disposition is a line's planned fate after conflict resolution.
type disposition int

const (
	dispImport disposition = iota
	dispSkip
	dispReplace
	dispMergeKeyframes
	dispMergeAssignments
)

type plannedLine struct {
	line Line
	disp disposition
}

type plan struct {
	lines        []plannedLine
	placeholders []store.Record
	idMap        map[string]string
}

// buildPlan folds the resolved conflicts into one disposition per
// line, collects placeholder records for create-placeholder
// resolutions, and performs the system-wide id remap for minted ids.
func (e *Engine) buildPlan(lines []Line, resolved []ResolvedConflict, graph *depGraph, snap *snapshot, report *Report) *plan {
	p := &plan{idMap: make(map[string]string)}

	byLine := make(map[int][]ResolvedConflict)
	for _, rc := range resolved {
		byLine[rc.Conflict.Line] = append(byLine[rc.Conflict.Line], rc)
		if rc.Resolution.NewID != "" {
			p.idMap[rc.Conflict.OriginalID] = rc.Resolution.NewID
		}
	}

	placeholderSeen := make(map[string]bool)
	for i := range lines {
		line := lines[i]
		disp := dispImport

		for _, rc := range byLine[line.LineNumber] {
			switch rc.Conflict.Type {
			case ConflictDuplicateSequence:
				disp = duplicateDisposition(rc, report, line, dispMergeKeyframes)
			case ConflictDuplicateObject:
				disp = duplicateDisposition(rc, report, line, dispMergeAssignments)

			case ConflictMissingDependency:
				switch rc.Resolution.Action {
				case ActionSkip:
					report.warnf(line.LineNumber, "skipped: %s", rc.Conflict.Details)
					disp = dispSkip
				case ActionMerge: // create-placeholder
					for _, missing := range graph.missingRefs(&line, snap) {
						key := string(missing.kind) + "/" + missing.id
						if placeholderSeen[key] {
							continue
						}
						placeholderSeen[key] = true
						p.placeholders = append(p.placeholders, placeholderRecord(missing))
						report.warnf(line.LineNumber, "created placeholder %s %q", missing.kind, missing.id)
					}
				case ActionFail:
					report.errorf(line.LineNumber, "failed: %s", rc.Conflict.Details)
					disp = dispSkip
				}

			case ConflictOverlappingFrames:
				switch rc.Resolution.Action {
				case ActionSkip:
					report.warnf(line.LineNumber, "skipped: %s", rc.Conflict.Details)
					disp = dispSkip
				case ActionMerge:
					// Detection and resolution plumbing exist, but
					// merging two distinct overlapping sequences has
					// no execution semantics yet. Fall back to skip
					// rather than guess at author intent.
					report.warnf(line.LineNumber,
						"overlapping-frame strategy %q is not supported at execution; line skipped (%s)",
						rc.Resolution.Strategy, rc.Conflict.Details)
					disp = dispSkip
				case ActionFail:
					report.errorf(line.LineNumber, "failed: %s", rc.Conflict.Details)
					disp = dispSkip
				}
			}
			if disp == dispSkip {
				break
			}
		}

		if disp == dispSkip {
			report.counts(line.Type).Skipped++
			continue
		}
		p.lines = append(p.lines, plannedLine{line: line, disp: disp})
	}

	// Remap minted ids across every surviving payload tree: any
	// field named "id" or ending in Id/Ids referencing an original
	// id now points at the minted one.
	if len(p.idMap) > 0 {
		kept := p.lines[:0]
		for _, pl := range p.lines {
			if err := remapIDs(pl.line.Data, p.idMap); err != nil {
				report.errorf(pl.line.LineNumber, "id remap: %v", err)
				report.counts(pl.line.Type).Skipped++
				continue
			}
			kept = append(kept, pl)
		}
		p.lines = kept
	}
	return p
}

// duplicateDisposition maps a duplicate-id resolution to a line
// disposition. mergeDisp is the type-appropriate merge flavor.
func duplicateDisposition(rc ResolvedConflict, report *Report, line Line, mergeDisp disposition) disposition {
	switch rc.Resolution.Action {
	case ActionSkip:
		report.warnf(line.LineNumber, "skipped: %s", rc.Conflict.Details)
		return dispSkip
	case ActionReplace:
		return dispReplace
	case ActionMerge:
		return mergeDisp
	case ActionCreateNew, ActionRename:
		// The minted id is applied by the batch-wide remap; the
		// line itself imports as a brand-new record.
		return dispImport
	case ActionFail:
		report.errorf(line.LineNumber, "failed: %s", rc.Conflict.Details)
		return dispSkip
	}
	return dispImport
}

func placeholderRecord(missing ref) store.Record {
	kind := missing.kind
	if kind == "object" {
		// An untyped reference could be any linked-object kind;
		// entity is the least surprising placeholder.
		kind = store.KindEntity
	}
	return store.Record{
		ID:   missing.id,
		Kind: kind,
		Data: map[string]any{
			"id":          missing.id,
			"placeholder": true,
		},
	}
}

// kindRank orders writes so referents land before referrers.
var kindRank = func() map[store.Kind]int {
	rank := make(map[store.Kind]int, len(store.Kinds))
	for i, kind := range store.Kinds {
		rank[kind] = i
	}
	return rank
}()

// execute applies the plan. Atomic mode wraps everything in one
// store transaction: any write failure rolls the whole batch back
// and the report's counts are reset to reflect that nothing
// persisted. Non-atomic mode applies records best-effort, isolating
// failures per record.
func (e *Engine) execute(ctx context.Context, p *plan, report *Report) error {
	sort.SliceStable(p.lines, func(i, j int) bool {
		ri, rj := kindRank[p.lines[i].line.Type], kindRank[p.lines[j].line.Type]
		if ri != rj {
			return ri < rj
		}
		return p.lines[i].line.LineNumber < p.lines[j].line.LineNumber
	})

	if e.policy.Atomic {
		err := e.store.WithTx(ctx, func(tx store.Querier) error {
			return e.applyAll(ctx, tx, p, report, true)
		})
		if err != nil {
			report.resetCounts()
			report.Aborted = true
			report.AbortReason = err.Error()
			report.Errors = append(report.Errors, Problem{Message: err.Error()})
			return fmt.Errorf("ingest: atomic batch rolled back: %w: %w", err, ErrAborted)
		}
		return nil
	}
	// Best-effort: applyAll records failures in the report and
	// keeps going.
	return e.applyAll(ctx, e.store, p, report, false)
}

// applyAll writes placeholders, then every planned line in
// dependency order. With failFast (atomic mode), the first write
// error unwinds the transaction; otherwise errors are recorded and
// siblings continue.
func (e *Engine) applyAll(ctx context.Context, q store.Querier, p *plan, report *Report, failFast bool) error {
	for i := range p.placeholders {
		rec := p.placeholders[i]
		if err := q.Upsert(ctx, &rec); err != nil {
			if failFast {
				return err
			}
			report.errorf(0, "placeholder %s/%s: %v", rec.Kind, rec.ID, err)
		} else {
			report.counts(rec.Kind).Imported++
		}
	}

	for _, pl := range p.lines {
		if err := e.applyLine(ctx, q, pl, report); err != nil {
			if failFast {
				return fmt.Errorf("line %d: %w", pl.line.LineNumber, err)
			}
			report.errorf(pl.line.LineNumber, "%v", err)
			report.counts(pl.line.Type).Skipped++
		}
	}
	return nil
}

func (e *Engine) applyLine(ctx context.Context, q store.Querier, pl plannedLine, report *Report) error {
	line := pl.line
	rec := store.Record{ID: line.ID(), Kind: line.Type, Data: line.Data}

	switch pl.disp {
	case dispImport:
		if err := q.Create(ctx, &rec); err != nil {
			return err
		}
		report.counts(line.Type).Imported++

	case dispReplace:
		if err := q.Upsert(ctx, &rec); err != nil {
			return err
		}
		report.counts(line.Type).Replaced++

	case dispMergeKeyframes:
		if err := e.mergeAnnotation(ctx, q, &line, report); err != nil {
			return err
		}
		report.counts(line.Type).Merged++

	case dispMergeAssignments:
		if err := mergeObject(ctx, q, &line); err != nil {
			return err
		}
		report.counts(line.Type).Merged++
	}

	if line.Type == store.KindOntology {
		if err := upsertPersonas(ctx, q, &line, report); err != nil {
			return err
		}
	}
	return nil
}

// upsertPersonas materializes the persona payloads embedded in an
// ontology record as persona records of their own.
func upsertPersonas(ctx context.Context, q store.Querier, line *Line, report *Report) error {
	for _, persona := range personaEntries(line.Data) {
		id, ok := stringField(persona, "id")
		if !ok {
			report.warnf(line.LineNumber, "ontology %q embeds a persona with no id", line.ID())
			continue
		}
		persona["ontologyId"] = line.ID()
		rec := store.Record{ID: id, Kind: store.KindPersona, Data: persona}
		if err := q.Upsert(ctx, &rec); err != nil {
			return fmt.Errorf("persona %q: %w", id, err)
		}
		report.counts(store.KindPersona).Imported++
	}
	return nil
}

// mergeAnnotation folds an incoming annotation's keyframes into the
// stored sequence with the same id. Incoming keyframes win on frame
// collisions; new keyframes split the enclosing segment through the
// standard editing path, so existing curves survive. Curve
// disagreements over overlapping spans surface as interpolation
// conflicts resolved by the policy table.
func (e *Engine) mergeAnnotation(ctx context.Context, q store.Querier, line *Line, report *Report) error {
	existing, err := q.FindUnique(ctx, store.KindAnnotation, line.ID())
	if err != nil {
		return fmt.Errorf("loading annotation %q for merge: %w", line.ID(), err)
	}
	existingPayload, err := DecodeAnnotation(existing.Data)
	if err != nil {
		return fmt.Errorf("stored annotation %q: %w", line.ID(), err)
	}
	incomingPayload, err := DecodeAnnotation(line.Data)
	if err != nil {
		return fmt.Errorf("incoming annotation %q: %w", line.ID(), err)
	}
	if existingPayload.Sequence == nil || incomingPayload.Sequence == nil {
		return fmt.Errorf("annotation %q: merge requires sequences on both sides", line.ID())
	}

	merged := existingPayload.Sequence
	for _, box := range incomingPayload.Sequence.Keyframes() {
		merged, err = interp.AddKeyframe(merged, box)
		if err != nil {
			return fmt.Errorf("annotation %q: merging keyframe at frame %d: %w", line.ID(), box.FrameNumber, err)
		}
	}

	merged, err = e.reconcileCurves(merged, incomingPayload.Sequence, line, report)
	if err != nil {
		return err
	}

	existingPayload.Sequence = merged
	mergedData, err := EncodeAnnotation(existing.Data, existingPayload)
	if err != nil {
		return fmt.Errorf("annotation %q: %w", line.ID(), err)
	}
	return q.Update(ctx, &store.Record{ID: line.ID(), Kind: store.KindAnnotation, Data: mergedData})
}

// reconcileCurves compares incoming segment curves against the merged
// sequence and applies the interpolation-conflict policy where they
// disagree.
func (e *Engine) reconcileCurves(merged, incoming *sequence.Sequence, line *Line, report *Report) (*sequence.Sequence, error) {
	for _, seg := range incoming.Segments {
		current := segmentTypeAt(merged, seg.StartFrame)
		if current == "" || current == seg.Type {
			continue
		}
		conflict := Conflict{
			Type:              ConflictInterpolationStyle,
			Line:              line.LineNumber,
			OriginalID:        line.ID(),
			ExistingID:        line.ID(),
			Details:           fmt.Sprintf("annotation %q: segment at frame %d is %s, incoming is %s", line.ID(), seg.StartFrame, current, seg.Type),
			InterpolationType: string(seg.Type),
		}
		resolution := resolutionFor(conflict, e.policy.InterpolationConflicts)
		report.Conflicts = append(report.Conflicts, ResolvedConflict{Conflict: conflict, Resolution: resolution})

		switch resolution.Action {
		case ActionSkip: // keep-existing
		case ActionReplace: // use-incoming
			next, err := interp.SetSegmentType(merged, seg.StartFrame, seg.Type, seg.ControlPoints, seg.Parametric)
			if err != nil {
				return nil, fmt.Errorf("annotation %q: applying incoming curve: %w", line.ID(), err)
			}
			merged = next
		case ActionFail:
			return nil, fmt.Errorf("interpolation conflict: %s", conflict.Details)
		}
	}
	return merged, nil
}

func segmentTypeAt(s *sequence.Sequence, frame int) sequence.SegmentType {
	for _, seg := range s.Segments {
		if frame >= seg.StartFrame && frame <= seg.EndFrame {
			return seg.Type
		}
	}
	return ""
}

// mergeObject unions the incoming object's id-list fields into the
// stored record. Scalar fields keep their stored values; fields the
// store has never seen are adopted.
func mergeObject(ctx context.Context, q store.Querier, line *Line) error {
	existing, err := q.FindUnique(ctx, line.Type, line.ID())
	if err != nil {
		return fmt.Errorf("loading %s %q for merge: %w", line.Type, line.ID(), err)
	}
	// The union is built in a fresh map; the record FindUnique
	// returned is never written to, so an aborted transaction leaves
	// no trace in the stored payload.
	merged := make(map[string]any, len(existing.Data)+len(line.Data))
	for key, v := range existing.Data {
		merged[key] = v
	}
	for key, incoming := range line.Data {
		current, present := merged[key]
		if !present {
			merged[key] = incoming
			continue
		}
		if !isIDListField(key) {
			continue
		}
		currentList, ok1 := current.([]any)
		incomingList, ok2 := incoming.([]any)
		if !ok1 || !ok2 {
			continue
		}
		union := make([]any, 0, len(currentList)+len(incomingList))
		seen := make(map[any]bool, len(currentList)+len(incomingList))
		for _, v := range currentList {
			if !seen[v] {
				union = append(union, v)
				seen[v] = true
			}
		}
		for _, v := range incomingList {
			if !seen[v] {
				union = append(union, v)
				seen[v] = true
			}
		}
		merged[key] = union
	}
	return q.Update(ctx, &store.Record{ID: line.ID(), Kind: line.Type, Data: merged})
}
