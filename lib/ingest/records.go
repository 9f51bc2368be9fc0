// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/annolab/boxline/lib/sequence"
	"github.com/annolab/boxline/lib/store"
)

// Line is one parsed batch record: a type tag, the decoded payload
// tree, and the 1-based line number every error and warning about
// this record is attributed to.
type Line struct {
	Type       store.Kind
	Data       map[string]any
	LineNumber int
}

// ID returns the record's declared id, or "" when absent.
func (l *Line) ID() string {
	id, _ := l.Data["id"].(string)
	return id
}

// Problem is a line-scoped error or warning. Line 0 means the problem
// concerns the batch as a whole.
type Problem struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

func (p Problem) String() string {
	if p.Line == 0 {
		return p.Message
	}
	return fmt.Sprintf("line %d: %s", p.Line, p.Message)
}

// maxLineBytes bounds one batch line. Full-sequence exports of long
// videos produce wide lines; 16 MiB accommodates them with margin.
const maxLineBytes = 16 << 20

// wireLine is the envelope shape of one batch line.
type wireLine struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Parse reads one JSON object per line from r. A malformed line
// produces a line-scoped error and does not abort sibling lines; an
// unknown type tag produces a warning and the line is dropped. Blank
// lines are ignored.
func Parse(r io.Reader) (lines []Line, errors, warnings []Problem) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var wire wireLine
		if err := json.Unmarshal([]byte(text), &wire); err != nil {
			errors = append(errors, Problem{Line: lineNumber, Message: fmt.Sprintf("malformed record: %v", err)})
			continue
		}
		if wire.Type == "" {
			errors = append(errors, Problem{Line: lineNumber, Message: "record has no type tag"})
			continue
		}
		kind := store.Kind(wire.Type)
		if !store.KnownKind(kind) || kind == store.KindPersona {
			// Personas ride inside ontology payloads; a bare persona
			// line is as unknown as any other unrecognized tag.
			warnings = append(warnings, Problem{Line: lineNumber, Message: fmt.Sprintf("unknown record type %q, line skipped", wire.Type)})
			continue
		}

		var data map[string]any
		if err := json.Unmarshal(wire.Data, &data); err != nil {
			errors = append(errors, Problem{Line: lineNumber, Message: fmt.Sprintf("malformed data payload: %v", err)})
			continue
		}
		lines = append(lines, Line{Type: kind, Data: data, LineNumber: lineNumber})
	}
	if err := scanner.Err(); err != nil {
		errors = append(errors, Problem{Message: fmt.Sprintf("reading batch: %v", err)})
	}
	return lines, errors, warnings
}

// AnnotationPayload is the typed shape of an annotation line's data,
// used where the pipeline needs more than the generic payload tree:
// sequence validation, frame-range conflict detection, keyframe
// merging.
type AnnotationPayload struct {
	ID        string             `json:"id"`
	VideoID   string             `json:"videoId"`
	PersonaID string             `json:"personaId,omitempty"`
	ObjectID  string             `json:"objectId,omitempty"`
	Sequence  *sequence.Sequence `json:"sequence"`
}

// DecodeAnnotation extracts the typed annotation payload from a
// line's data tree. Round-trips through JSON: the tree came from
// JSON, so this is lossless for the fields the type names.
func DecodeAnnotation(data map[string]any) (*AnnotationPayload, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("re-encoding annotation data: %w", err)
	}
	var payload AnnotationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding annotation data: %w", err)
	}
	return &payload, nil
}

// EncodeAnnotation writes the typed payload back into a data tree,
// preserving any extra fields the typed shape does not name.
func EncodeAnnotation(data map[string]any, payload *AnnotationPayload) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("re-encoding annotation: %w", err)
	}
	var typed map[string]any
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, fmt.Errorf("decoding annotation: %w", err)
	}
	merged := make(map[string]any, len(data))
	for k, v := range data {
		merged[k] = v
	}
	for k, v := range typed {
		merged[k] = v
	}
	return merged, nil
}

// stringField returns data[key] when it is a non-empty string.
func stringField(data map[string]any, key string) (string, bool) {
	s, ok := data[key].(string)
	return s, ok && s != ""
}

// stringList returns data[key] as a string slice when it is an array
// of strings (JSON decoding yields []any).
func stringList(data map[string]any, key string) []string {
	raw, ok := data[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
