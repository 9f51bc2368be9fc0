// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/annolab/boxline/lib/store"
)

// seqData builds a sequence payload with keyframes at the given
// frames, linear segments, and no visibility ranges.
func seqData(frames ...int) map[string]any {
	boxes := make([]any, 0, len(frames))
	for _, frame := range frames {
		boxes = append(boxes, map[string]any{
			"x": 10.0, "y": 10.0, "width": 50.0, "height": 50.0,
			"frameNumber": float64(frame), "isKeyframe": true,
		})
	}
	segments := make([]any, 0)
	for i := 0; i < len(frames)-1; i++ {
		end := frames[i+1] - 1
		if i == len(frames)-2 {
			end = frames[i+1]
		}
		segments = append(segments, map[string]any{
			"startFrame": float64(frames[i]), "endFrame": float64(end), "type": "linear",
		})
	}
	return map[string]any{"boxes": boxes, "interpolationSegments": segments}
}

func annotationData(id, videoID, objectID string, frames ...int) map[string]any {
	data := map[string]any{"id": id, "videoId": videoID, "sequence": seqData(frames...)}
	if objectID != "" {
		data["objectId"] = objectID
	}
	return data
}

// batch serializes records as the JSON-Lines wire format.
func batch(t *testing.T, records ...map[string]any) *strings.Reader {
	t.Helper()
	var b strings.Builder
	for _, rec := range records {
		line, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("building batch: %v", err)
		}
		b.Write(line)
		b.WriteString("\n")
	}
	return strings.NewReader(b.String())
}

func wire(kind string, data map[string]any) map[string]any {
	return map[string]any{"type": kind, "data": data}
}

func newEngine(t *testing.T, st store.Store, policy Policy) *Engine {
	t.Helper()
	engine, err := New(Config{Store: st, Policy: policy})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return engine
}

func seed(t *testing.T, st store.Store, kind store.Kind, data map[string]any) {
	t.Helper()
	id, _ := data["id"].(string)
	if err := st.Create(context.Background(), &store.Record{ID: id, Kind: kind, Data: data}); err != nil {
		t.Fatalf("seeding %s/%s: %v", kind, id, err)
	}
}

func TestImportFreshBatch(t *testing.T) {
	st := store.NewMemory()
	engine := newEngine(t, st, DefaultPolicy())

	report, err := engine.Run(context.Background(), batch(t,
		wire("video", map[string]any{"id": "v1", "width": 1920.0, "height": 1080.0, "fps": 30.0}),
		wire("ontology", map[string]any{
			"id": "o1",
			"personas": []any{
				map[string]any{"id": "p1", "name": "vehicle annotator"},
			},
		}),
		wire("entity", map[string]any{"id": "e1", "label": "car"}),
		wire("annotation", map[string]any{
			"id": "a1", "videoId": "v1", "personaId": "p1", "objectId": "e1",
			"sequence": seqData(0, 100),
		}),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", report.Errors)
	}
	if report.Aborted {
		t.Fatal("batch aborted")
	}

	ctx := context.Background()
	for _, probe := range []struct {
		kind store.Kind
		id   string
	}{
		{store.KindVideo, "v1"},
		{store.KindOntology, "o1"},
		{store.KindPersona, "p1"},
		{store.KindEntity, "e1"},
		{store.KindAnnotation, "a1"},
	} {
		if _, err := st.FindUnique(ctx, probe.kind, probe.id); err != nil {
			t.Errorf("%s/%s not imported: %v", probe.kind, probe.id, err)
		}
	}

	if got := report.Counts[store.KindAnnotation].Imported; got != 1 {
		t.Errorf("annotation imported count = %d, want 1", got)
	}
	if got := report.Counts[store.KindPersona].Imported; got != 1 {
		t.Errorf("persona imported count = %d, want 1", got)
	}
}

func TestDuplicateAnnotationSkip(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
	seed(t, st, store.KindAnnotation, annotationData("a1", "v1", "", 0, 100))

	engine := newEngine(t, st, DefaultPolicy())
	report, err := engine.Run(context.Background(), batch(t,
		wire("annotation", annotationData("a1", "v1", "", 0, 50)),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Counts[store.KindAnnotation].Skipped; got != 1 {
		t.Errorf("skipped count = %d, want 1", got)
	}
	if len(report.Conflicts) != 1 || report.Conflicts[0].Conflict.Type != ConflictDuplicateSequence {
		t.Fatalf("conflicts = %+v, want one duplicate-sequence-id", report.Conflicts)
	}

	// Stored annotation untouched.
	rec, err := st.FindUnique(context.Background(), store.KindAnnotation, "a1")
	if err != nil {
		t.Fatal(err)
	}
	payload, err := DecodeAnnotation(rec.Data)
	if err != nil {
		t.Fatal(err)
	}
	if payload.Sequence.KeyframeCount() != 2 {
		t.Errorf("stored keyframes = %d, want 2 (unchanged)", payload.Sequence.KeyframeCount())
	}
}

func TestIdenticalDuplicateSkipped(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
	seed(t, st, store.KindAnnotation, annotationData("a1", "v1", "", 0, 100))

	// Fail-on-duplicate under strict mode: only the identical fast
	// path keeps a re-imported batch alive.
	policy := DefaultPolicy()
	policy.DuplicateSequenceIDs = StrategyFail
	policy.StrictMode = true
	engine := newEngine(t, st, policy)

	report, err := engine.Run(context.Background(), batch(t,
		wire("annotation", annotationData("a1", "v1", "", 0, 100)),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Aborted {
		t.Fatal("identical re-import aborted")
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(report.Conflicts))
	}
	rc := report.Conflicts[0]
	if !rc.Conflict.Identical {
		t.Error("conflict not marked identical")
	}
	if rc.Resolution.Action != ActionSkip {
		t.Errorf("action = %q, want %q", rc.Resolution.Action, ActionSkip)
	}
	if got := report.Counts[store.KindAnnotation].Skipped; got != 1 {
		t.Errorf("skipped count = %d, want 1", got)
	}

	// A changed payload under the same policy still aborts.
	report, err = engine.Run(context.Background(), batch(t,
		wire("annotation", annotationData("a1", "v1", "", 0, 50, 100)),
	))
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("modified re-import: err = %v, want ErrAborted", err)
	}
	if !report.Aborted {
		t.Error("modified re-import not marked aborted")
	}
}

func TestDuplicateAnnotationCreateNew(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
	seed(t, st, store.KindAnnotation, annotationData("a1", "v1", "", 0, 100))

	policy := DefaultPolicy()
	policy.DuplicateSequenceIDs = StrategyCreateNew

	engine := newEngine(t, st, policy)
	report, err := engine.Run(context.Background(), batch(t,
		wire("annotation", annotationData("a1", "v1", "", 10, 90)),
		wire("metadata", map[string]any{"id": "m1", "annotationId": "a1", "note": "review pass"}),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want 1", report.Conflicts)
	}
	resolution := report.Conflicts[0].Resolution
	if resolution.Action != ActionCreateNew || resolution.NewID == "" || resolution.NewID == "a1" {
		t.Fatalf("resolution = %+v, want create-new with fresh id", resolution)
	}

	ctx := context.Background()
	annotations, err := st.FindMany(ctx, store.KindAnnotation)
	if err != nil {
		t.Fatal(err)
	}
	if len(annotations) != 2 {
		t.Fatalf("%d annotations after import, want 2", len(annotations))
	}

	// The incoming annotation landed under the minted id, and every
	// batch reference to the original id follows it.
	if _, err := st.FindUnique(ctx, store.KindAnnotation, resolution.NewID); err != nil {
		t.Errorf("minted annotation %s missing: %v", resolution.NewID, err)
	}
	meta, err := st.FindUnique(ctx, store.KindMetadata, "m1")
	if err != nil {
		t.Fatalf("metadata not imported: %v", err)
	}
	if meta.Data["annotationId"] != resolution.NewID {
		t.Errorf("metadata annotationId = %v, want remapped %s", meta.Data["annotationId"], resolution.NewID)
	}

	// The original stored annotation is untouched.
	original, err := st.FindUnique(ctx, store.KindAnnotation, "a1")
	if err != nil {
		t.Fatal(err)
	}
	payload, _ := DecodeAnnotation(original.Data)
	first, last, _ := payload.Sequence.FrameSpan()
	if first != 0 || last != 100 {
		t.Errorf("original span = [%d, %d], want [0, 100]", first, last)
	}
}

func TestMergeKeyframes(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
	seed(t, st, store.KindAnnotation, annotationData("a1", "v1", "", 0, 100))

	policy := DefaultPolicy()
	policy.DuplicateSequenceIDs = StrategyMergeKeyframes

	engine := newEngine(t, st, policy)
	report, err := engine.Run(context.Background(), batch(t,
		wire("annotation", annotationData("a1", "v1", "", 40)),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := report.Counts[store.KindAnnotation].Merged; got != 1 {
		t.Errorf("merged count = %d, want 1", got)
	}

	rec, err := st.FindUnique(context.Background(), store.KindAnnotation, "a1")
	if err != nil {
		t.Fatal(err)
	}
	payload, err := DecodeAnnotation(rec.Data)
	if err != nil {
		t.Fatal(err)
	}
	if payload.Sequence.KeyframeCount() != 3 {
		t.Fatalf("merged keyframes = %d, want 3", payload.Sequence.KeyframeCount())
	}
	if payload.Sequence.KeyframeAt(40) < 0 {
		t.Error("incoming keyframe at frame 40 missing from merge")
	}
	// The merge went through the segment-splitting edit path.
	if len(payload.Sequence.Segments) != 2 {
		t.Errorf("merged segments = %d, want 2", len(payload.Sequence.Segments))
	}
}

func TestStrictModeAborts(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
	seed(t, st, store.KindAnnotation, annotationData("a1", "v1", "", 0, 100))

	policy := DefaultPolicy()
	policy.DuplicateSequenceIDs = StrategyFail
	policy.StrictMode = true

	engine := newEngine(t, st, policy)
	report, err := engine.Run(context.Background(), batch(t,
		wire("entity", map[string]any{"id": "e1"}),
		wire("annotation", annotationData("a1", "v1", "", 0, 50)),
	))
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if report == nil || !report.Aborted {
		t.Fatal("report does not record the abort")
	}

	// Nothing from the batch persisted, including conflict-free lines.
	if _, err := st.FindUnique(context.Background(), store.KindEntity, "e1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("entity written despite strict abort: err = %v", err)
	}
}

func TestMissingDependency(t *testing.T) {
	t.Run("skip-item", func(t *testing.T) {
		st := store.NewMemory()
		engine := newEngine(t, st, DefaultPolicy())
		report, err := engine.Run(context.Background(), batch(t,
			wire("annotation", annotationData("a1", "ghost-video", "", 0, 100)),
		))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := report.Counts[store.KindAnnotation].Skipped; got != 1 {
			t.Errorf("skipped count = %d, want 1", got)
		}
		if _, err := st.FindUnique(context.Background(), store.KindAnnotation, "a1"); !errors.Is(err, store.ErrNotFound) {
			t.Error("annotation with missing dependency written anyway")
		}
	})

	t.Run("create-placeholder", func(t *testing.T) {
		st := store.NewMemory()
		policy := DefaultPolicy()
		policy.MissingDependencies = StrategyCreatePlaceholder

		engine := newEngine(t, st, policy)
		report, err := engine.Run(context.Background(), batch(t,
			wire("annotation", annotationData("a1", "ghost-video", "", 0, 100)),
		))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := report.Counts[store.KindAnnotation].Imported; got != 1 {
			t.Errorf("imported count = %d, want 1", got)
		}

		ctx := context.Background()
		placeholder, err := st.FindUnique(ctx, store.KindVideo, "ghost-video")
		if err != nil {
			t.Fatalf("placeholder video missing: %v", err)
		}
		if placeholder.Data["placeholder"] != true {
			t.Errorf("placeholder not flagged: %+v", placeholder.Data)
		}
		if _, err := st.FindUnique(ctx, store.KindAnnotation, "a1"); err != nil {
			t.Errorf("annotation not imported: %v", err)
		}
	})
}

func TestAtomicRollback(t *testing.T) {
	// A duplicate video id is not conflict-detected (only annotations
	// and linked objects are), so its Create fails at write time. In
	// atomic mode that rolls back the entire batch.
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1", "width": 640.0})

	engine := newEngine(t, st, DefaultPolicy())
	report, err := engine.Run(context.Background(), batch(t,
		wire("video", map[string]any{"id": "v1", "width": 1920.0}),
		wire("entity", map[string]any{"id": "e9"}),
	))
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if !report.Aborted {
		t.Fatal("report does not record the abort")
	}
	for _, counts := range report.Counts {
		if counts.Imported != 0 || counts.Replaced != 0 || counts.Merged != 0 {
			t.Errorf("counts claim persisted writes after rollback: %+v", report.Counts)
		}
	}

	ctx := context.Background()
	if _, err := st.FindUnique(ctx, store.KindEntity, "e9"); !errors.Is(err, store.ErrNotFound) {
		t.Error("entity survived the rollback")
	}
	video, err := st.FindUnique(ctx, store.KindVideo, "v1")
	if err != nil {
		t.Fatal(err)
	}
	if video.Data["width"] != 640.0 {
		t.Errorf("stored video modified: width = %v", video.Data["width"])
	}
}

func TestAtomicRollbackDiscardsMerges(t *testing.T) {
	// A merge executed before the failing write must vanish with the
	// rollback: the stored record keeps its pre-batch payload.
	st := store.NewMemory()
	seed(t, st, store.KindEntity, map[string]any{"id": "e1", "tagIds": []any{"a"}})
	seed(t, st, store.KindMetadata, map[string]any{"id": "m1"})

	policy := DefaultPolicy()
	policy.DuplicateObjectIDs = StrategyMergeAssignments

	engine := newEngine(t, st, policy)
	report, err := engine.Run(context.Background(), batch(t,
		wire("entity", map[string]any{"id": "e1", "tagIds": []any{"b"}}),
		wire("metadata", map[string]any{"id": "m1"}),
	))
	if !errors.Is(err, ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if !report.Aborted {
		t.Fatal("report does not record the abort")
	}

	rec, err := st.FindUnique(context.Background(), store.KindEntity, "e1")
	if err != nil {
		t.Fatal(err)
	}
	tags, ok := rec.Data["tagIds"].([]any)
	if !ok || len(tags) != 1 || tags[0] != "a" {
		t.Errorf("rolled-back merge visible: tagIds = %v, want [a]", rec.Data["tagIds"])
	}
}

func TestNonAtomicIsolatesFailures(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})

	policy := DefaultPolicy()
	policy.Atomic = false

	engine := newEngine(t, st, policy)
	report, err := engine.Run(context.Background(), batch(t,
		wire("video", map[string]any{"id": "v1"}),
		wire("entity", map[string]any{"id": "e9"}),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Aborted {
		t.Fatal("non-atomic batch aborted")
	}
	if len(report.Errors) != 1 {
		t.Errorf("%d errors, want 1 (the duplicate video)", len(report.Errors))
	}
	if _, err := st.FindUnique(context.Background(), store.KindEntity, "e9"); err != nil {
		t.Errorf("entity should survive sibling failure: %v", err)
	}
}

func TestSequenceValidationPolicy(t *testing.T) {
	broken := map[string]any{
		"id": "a1", "videoId": "v1",
		"sequence": map[string]any{"boxes": []any{}}, // no keyframes
	}

	t.Run("reject", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
		engine := newEngine(t, st, DefaultPolicy())
		report, err := engine.Run(context.Background(), batch(t, wire("annotation", broken)))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(report.Errors) == 0 {
			t.Error("invalid sequence produced no errors")
		}
		if _, err := st.FindUnique(context.Background(), store.KindAnnotation, "a1"); !errors.Is(err, store.ErrNotFound) {
			t.Error("rejected annotation was written")
		}
	})

	t.Run("warn", func(t *testing.T) {
		st := store.NewMemory()
		seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
		policy := DefaultPolicy()
		policy.SequenceValidation = StrategyWarn
		engine := newEngine(t, st, policy)
		report, err := engine.Run(context.Background(), batch(t, wire("annotation", broken)))
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(report.Errors) != 0 {
			t.Errorf("warn mode produced errors: %+v", report.Errors)
		}
		if len(report.Warnings) == 0 {
			t.Error("warn mode produced no warnings")
		}
		if _, err := st.FindUnique(context.Background(), store.KindAnnotation, "a1"); err != nil {
			t.Errorf("annotation not imported under warn: %v", err)
		}
	})
}

func TestFrameOverlapSkipped(t *testing.T) {
	st := store.NewMemory()
	seed(t, st, store.KindVideo, map[string]any{"id": "v1"})
	seed(t, st, store.KindEntity, map[string]any{"id": "e1"})
	seed(t, st, store.KindAnnotation, annotationData("a-old", "v1", "e1", 0, 100))

	engine := newEngine(t, st, DefaultPolicy())
	report, err := engine.Run(context.Background(), batch(t,
		wire("annotation", annotationData("a-new", "v1", "e1", 50, 150)),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %+v, want one overlapping-frames", report.Conflicts)
	}
	conflict := report.Conflicts[0].Conflict
	if conflict.Type != ConflictOverlappingFrames {
		t.Fatalf("conflict type = %q, want overlapping-frame-ranges", conflict.Type)
	}
	if conflict.FrameRange == nil || *conflict.FrameRange != [2]int{50, 100} {
		t.Errorf("frame range = %v, want [50, 100]", conflict.FrameRange)
	}
	if _, err := st.FindUnique(context.Background(), store.KindAnnotation, "a-new"); !errors.Is(err, store.ErrNotFound) {
		t.Error("overlapping annotation written under skip policy")
	}
}

func TestWithinBatchDuplicateDefinition(t *testing.T) {
	st := store.NewMemory()
	engine := newEngine(t, st, DefaultPolicy())
	report, err := engine.Run(context.Background(), batch(t,
		wire("entity", map[string]any{"id": "e1", "label": "first"}),
		wire("entity", map[string]any{"id": "e1", "label": "second"}),
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Errors) != 1 {
		t.Errorf("%d errors, want 1", len(report.Errors))
	}
	rec, err := st.FindUnique(context.Background(), store.KindEntity, "e1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Data["label"] != "first" {
		t.Errorf("label = %v, want first (first definition wins)", rec.Data["label"])
	}
}
