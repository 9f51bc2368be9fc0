// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"

	"github.com/annolab/boxline/lib/store"
)

func problemf(line int, format string, args ...any) Problem {
	return Problem{Line: line, Message: fmt.Sprintf(format, args...)}
}

// TypeCounts is the per-record-type outcome tally.
type TypeCounts struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Replaced int `json:"replaced,omitempty"`
	Merged   int `json:"merged,omitempty"`
}

// Report is the structured result of one import run. Every line's
// fate is recoverable from it: counts per type, line-scoped errors
// and warnings, and the conflict resolution audit trail. Success is
// an empty Errors list with Aborted unset.
type Report struct {
	Counts    map[store.Kind]*TypeCounts `json:"counts"`
	Errors    []Problem                  `json:"errors,omitempty"`
	Warnings  []Problem                  `json:"warnings,omitempty"`
	Conflicts []ResolvedConflict         `json:"conflicts,omitempty"`

	// Aborted is set when the batch stopped before or during writes:
	// strict mode with a fail resolution, or a write failure in
	// atomic mode. When set, no writes from this batch persist.
	Aborted     bool   `json:"aborted,omitempty"`
	AbortReason string `json:"abortReason,omitempty"`
}

func newReport() *Report {
	return &Report{Counts: make(map[store.Kind]*TypeCounts)}
}

func (r *Report) counts(kind store.Kind) *TypeCounts {
	c := r.Counts[kind]
	if c == nil {
		c = &TypeCounts{}
		r.Counts[kind] = c
	}
	return c
}

func (r *Report) errorf(line int, format string, args ...any) {
	r.Errors = append(r.Errors, problemf(line, format, args...))
}

func (r *Report) warnf(line int, format string, args ...any) {
	r.Warnings = append(r.Warnings, problemf(line, format, args...))
}

// resetCounts zeroes the tallies after a rollback so the report
// cannot claim progress that was undone.
func (r *Report) resetCounts() {
	for kind := range r.Counts {
		skipped := r.Counts[kind].Skipped
		r.Counts[kind] = &TypeCounts{Skipped: skipped}
	}
}
