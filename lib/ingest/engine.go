// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/annolab/boxline/lib/store"
	"github.com/annolab/boxline/lib/validate"
	"github.com/annolab/boxline/lib/videometa"
)

// ErrAborted is returned by Run when the batch stopped before
// completing: a fail-resolved conflict under strict mode, or a write
// failure in atomic mode. The Report accompanying it holds the full
// error list; no writes from the batch persist.
var ErrAborted = errors.New("import aborted")

// Config holds the collaborators and policy for an import engine.
type Config struct {
	// Store receives the batch's writes. Required.
	Store store.Store

	// Meta resolves video dimensions for sequence boundary checks.
	// Optional; absent metadata skips those checks.
	Meta videometa.Provider

	// Policy is the conflict-resolution table. Zero value is
	// replaced by DefaultPolicy.
	Policy Policy

	// Logger receives operational messages. Nil means discard.
	Logger *slog.Logger
}

// Engine runs import batches. Safe for sequential reuse; one Run is
// one batch.
type Engine struct {
	store  store.Store
	meta   videometa.Provider
	policy Policy
	logger *slog.Logger
}

// New validates the configuration and returns an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("ingest: Store is required")
	}
	policy := cfg.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: cfg.Store, meta: cfg.Meta, policy: policy, logger: logger}, nil
}

// Run executes the full import pipeline on one batch. The Report is
// always returned, even alongside ErrAborted, so callers can show
// the audit trail for failed batches too. The returned error is
// non-nil only for aborts and infrastructure failures, never for
// line-scoped data problems.
func (e *Engine) Run(ctx context.Context, batch io.Reader) (*Report, error) {
	report := newReport()

	// Parse. Malformed lines are already in the report; survivors
	// continue.
	lines, parseErrors, parseWarnings := Parse(batch)
	report.Errors = append(report.Errors, parseErrors...)
	report.Warnings = append(report.Warnings, parseWarnings...)

	// Per-line validation, including full sequence validation for
	// annotations.
	lines = e.validateLines(ctx, lines, report)

	// Dependency graph over the surviving lines.
	graph := buildGraph(lines)

	// Snapshot of existing data. Read-only; under atomic mode the
	// execute transaction is what makes this snapshot trustworthy.
	snap, err := e.loadSnapshot(ctx)
	if err != nil {
		return report, fmt.Errorf("ingest: loading store snapshot: %w", err)
	}

	// Detect, then resolve through the policy table.
	conflicts := detectConflicts(lines, graph, snap)
	resolved := resolve(conflicts, e.policy)
	report.Conflicts = resolved

	if e.policy.StrictMode {
		for _, rc := range resolved {
			if rc.Resolution.Action == ActionFail {
				report.Aborted = true
				report.AbortReason = fmt.Sprintf("strict mode: %s", rc.Conflict.Details)
				report.errorf(rc.Conflict.Line, "strict mode abort: %s", rc.Conflict.Details)
				return report, fmt.Errorf("ingest: %s: %w", report.AbortReason, ErrAborted)
			}
		}
	}

	// Plan dispositions and remap ids, then execute.
	plan := e.buildPlan(lines, resolved, graph, snap, report)
	if err := e.execute(ctx, plan, report); err != nil {
		return report, err
	}

	e.logger.Info("import batch complete",
		"lines", len(lines),
		"conflicts", len(conflicts),
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
	)
	return report, nil
}

// validateLines drops lines that fail per-line validation, recording
// each drop. Annotation lines get the full sequence validator; other
// types get required-field presence checks.
func (e *Engine) validateLines(ctx context.Context, lines []Line, report *Report) []Line {
	valid := lines[:0]
	seen := make(map[store.Kind]map[string]int) // kind → id → line

	for i := range lines {
		line := lines[i]
		id := line.ID()
		if id == "" {
			report.errorf(line.LineNumber, "%s record has no id", line.Type)
			report.counts(line.Type).Skipped++
			continue
		}
		if byID := seen[line.Type]; byID != nil {
			if first, ok := byID[id]; ok {
				report.errorf(line.LineNumber, "%s %q already defined on line %d", line.Type, id, first)
				report.counts(line.Type).Skipped++
				continue
			}
		} else {
			seen[line.Type] = make(map[string]int)
		}

		if line.Type == store.KindAnnotation && !e.validateAnnotation(ctx, &line, report) {
			report.counts(line.Type).Skipped++
			continue
		}

		seen[line.Type][id] = line.LineNumber
		valid = append(valid, line)
	}
	return valid
}

// validateAnnotation gates an annotation line on the sequence
// validator. Returns false when the line must be dropped.
func (e *Engine) validateAnnotation(ctx context.Context, line *Line, report *Report) bool {
	payload, err := DecodeAnnotation(line.Data)
	if err != nil {
		report.errorf(line.LineNumber, "annotation: %v", err)
		return false
	}
	if payload.VideoID == "" {
		report.errorf(line.LineNumber, "annotation %q has no videoId", payload.ID)
		return false
	}
	if payload.Sequence == nil {
		report.errorf(line.LineNumber, "annotation %q has no sequence", payload.ID)
		return false
	}

	var meta *videometa.Meta
	if e.meta != nil {
		if m, err := e.meta.VideoMeta(ctx, payload.VideoID); err == nil {
			meta = &m
		}
		// Unknown video: boundary checks are skipped, not failed.
		// Whether the video reference itself resolves is the
		// dependency graph's question, not the validator's.
	}

	result := validate.Validate(payload.Sequence, meta)
	for _, warning := range result.Warnings {
		report.warnf(line.LineNumber, "annotation %q: %s", payload.ID, warning.Message)
	}
	if !result.Valid {
		if e.policy.SequenceValidation == StrategyWarn {
			for _, issue := range result.Errors {
				report.warnf(line.LineNumber, "annotation %q imported despite: %s", payload.ID, issue.Message)
			}
			return true
		}
		for _, issue := range result.Errors {
			report.errorf(line.LineNumber, "annotation %q: %s", payload.ID, issue.Message)
		}
		return false
	}
	return true
}

// loadSnapshot reads the ids of every existing record, and the full
// annotation payloads (frame-overlap detection needs their spans).
func (e *Engine) loadSnapshot(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{ids: make(map[store.Kind]map[string]bool)}
	for _, kind := range store.Kinds {
		records, err := e.store.FindMany(ctx, kind)
		if err != nil {
			return nil, err
		}
		ids := make(map[string]bool, len(records))
		for i := range records {
			ids[records[i].ID] = true
		}
		snap.ids[kind] = ids
		if kind == store.KindAnnotation {
			snap.annotations = records
		}
	}
	return snap, nil
}
