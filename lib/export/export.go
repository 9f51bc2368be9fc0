// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package export serializes store contents as portable JSON-Lines
// batches, the exact wire shape lib/ingest parses. The default
// keyframes-only format carries just the authored keyframes plus
// interpolation and visibility metadata, and round-trips through
// import unchanged. The full-sequence format materializes every
// interpolated frame for tooling that cannot interpolate; it is
// typically two orders of magnitude larger, and its derived boxes
// will not pass the sequence validator on re-import.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauspost/compress/gzip"

	"github.com/annolab/boxline/lib/ingest"
	"github.com/annolab/boxline/lib/interp"
	"github.com/annolab/boxline/lib/store"
)

// Format selects how annotation sequences are serialized.
type Format string

const (
	// FormatKeyframes writes only authored keyframes plus metadata.
	// The default; re-interpolatable on import.
	FormatKeyframes Format = "keyframes-only"

	// FormatFull writes every materialized frame.
	FormatFull Format = "full-sequence"
)

// Options configures one export run.
type Options struct {
	// Format defaults to FormatKeyframes.
	Format Format

	// Gzip compresses the output stream.
	Gzip bool

	// Logger receives the full-sequence size warning and progress
	// messages. Nil means discard.
	Logger *slog.Logger
}

// Write serializes every record to w, one JSON object per line, in
// dependency-safe order so the output imports cleanly. Persona
// records are omitted: they ride inside their ontology's payload and
// import re-materializes them.
func Write(ctx context.Context, q store.Querier, w io.Writer, opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	format := opts.Format
	if format == "" {
		format = FormatKeyframes
	}
	if format != FormatKeyframes && format != FormatFull {
		return fmt.Errorf("export: unknown format %q", format)
	}

	out := w
	var zw *gzip.Writer
	if opts.Gzip {
		zw = gzip.NewWriter(w)
		out = zw
	}

	if format == FormatFull {
		logger.Warn("full-sequence export materializes every interpolated frame; output can be orders of magnitude larger than keyframes-only")
	}

	written := 0
	for _, kind := range store.Kinds {
		if kind == store.KindPersona {
			continue
		}
		records, err := q.FindMany(ctx, kind)
		if err != nil {
			return fmt.Errorf("export: reading %s records: %w", kind, err)
		}
		for i := range records {
			data := records[i].Data
			if kind == store.KindAnnotation && format == FormatFull {
				data, err = materialize(&records[i])
				if err != nil {
					return fmt.Errorf("export: annotation %q: %w", records[i].ID, err)
				}
			}
			if err := writeLine(out, kind, data); err != nil {
				return fmt.Errorf("export: %s %q: %w", kind, records[i].ID, err)
			}
			written++
		}
	}

	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("export: closing gzip stream: %w", err)
		}
	}
	logger.Info("export complete", "records", written, "format", string(format))
	return nil
}

func writeLine(w io.Writer, kind store.Kind, data map[string]any) error {
	line, err := json.Marshal(map[string]any{"type": string(kind), "data": data})
	if err != nil {
		return err
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}

// materialize replaces an annotation's sparse keyframe list with the
// box at every visible frame in the keyframe span.
func materialize(rec *store.Record) (map[string]any, error) {
	payload, err := ingest.DecodeAnnotation(rec.Data)
	if err != nil {
		return nil, err
	}
	if payload.Sequence == nil {
		return rec.Data, nil
	}
	boxes, err := interp.Materialize(payload.Sequence)
	if err != nil {
		return nil, err
	}
	full := payload.Sequence.Clone()
	full.Boxes = boxes
	payload.Sequence = full
	return ingest.EncodeAnnotation(rec.Data, payload)
}
