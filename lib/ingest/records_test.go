// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"strings"
	"testing"

	"github.com/annolab/boxline/lib/store"
)

func TestParse(t *testing.T) {
	batch := strings.Join([]string{
		`{"type":"video","data":{"id":"v1","width":640,"height":360}}`,
		``,
		`{"type":"entity","data":{"id":"e1","label":"car"}}`,
		`{not json`,
		`{"type":"","data":{"id":"x"}}`,
		`{"type":"hologram","data":{"id":"h1"}}`,
		`{"type":"annotation","data":{"id":"a1","videoId":"v1"}}`,
	}, "\n")

	lines, errors, warnings := Parse(strings.NewReader(batch))

	if len(lines) != 3 {
		t.Fatalf("parsed %d lines, want 3", len(lines))
	}
	if lines[0].Type != store.KindVideo || lines[0].LineNumber != 1 {
		t.Errorf("line 0 = %s at %d, want video at 1", lines[0].Type, lines[0].LineNumber)
	}
	if lines[2].Type != store.KindAnnotation || lines[2].LineNumber != 7 {
		t.Errorf("line 2 = %s at %d, want annotation at 7", lines[2].Type, lines[2].LineNumber)
	}

	// The malformed line and the missing type tag are errors; they
	// must not take sibling lines down with them.
	if len(errors) != 2 {
		t.Errorf("%d errors, want 2: %+v", len(errors), errors)
	}
	if len(errors) > 0 && errors[0].Line != 4 {
		t.Errorf("first error on line %d, want 4", errors[0].Line)
	}

	// The unknown type tag is a warning and the line is dropped.
	if len(warnings) != 1 {
		t.Fatalf("%d warnings, want 1: %+v", len(warnings), warnings)
	}
	if warnings[0].Line != 6 || !strings.Contains(warnings[0].Message, "hologram") {
		t.Errorf("warning = %+v, want unknown-type on line 6", warnings[0])
	}
}

func TestParseRejectsBarePersona(t *testing.T) {
	// Personas ride inside ontology payloads; a bare persona line is
	// treated like any unknown tag.
	_, errors, warnings := Parse(strings.NewReader(`{"type":"persona","data":{"id":"p1"}}`))
	if len(errors) != 0 {
		t.Errorf("unexpected errors: %+v", errors)
	}
	if len(warnings) != 1 {
		t.Errorf("%d warnings, want 1", len(warnings))
	}
}

func TestDecodeEncodeAnnotationPreservesExtras(t *testing.T) {
	data := map[string]any{
		"id":       "a1",
		"videoId":  "v1",
		"objectId": "e1",
		"reviewer": "analyst-7", // not a typed field
		"sequence": map[string]any{
			"boxes": []any{
				map[string]any{"x": 10.0, "y": 10.0, "width": 50.0, "height": 50.0,
					"frameNumber": 0.0, "isKeyframe": true},
			},
			"interpolationSegments": []any{},
		},
	}

	payload, err := DecodeAnnotation(data)
	if err != nil {
		t.Fatalf("DecodeAnnotation: %v", err)
	}
	if payload.ID != "a1" || payload.VideoID != "v1" || payload.ObjectID != "e1" {
		t.Errorf("payload = %+v, want a1/v1/e1", payload)
	}
	if payload.Sequence == nil || payload.Sequence.KeyframeCount() != 1 {
		t.Fatalf("sequence not decoded: %+v", payload.Sequence)
	}
	if payload.Sequence.Boxes[0].Width != 50 {
		t.Errorf("box width = %g, want 50", payload.Sequence.Boxes[0].Width)
	}

	payload.ObjectID = "e2"
	merged, err := EncodeAnnotation(data, payload)
	if err != nil {
		t.Fatalf("EncodeAnnotation: %v", err)
	}
	if merged["objectId"] != "e2" {
		t.Errorf("objectId = %v, want e2", merged["objectId"])
	}
	if merged["reviewer"] != "analyst-7" {
		t.Errorf("extra field dropped: reviewer = %v", merged["reviewer"])
	}
}
