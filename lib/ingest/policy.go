// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Strategy is an operator-selectable way to resolve one conflict
// type. Not every strategy applies to every conflict type; Policy
// validation enforces the pairing.
type Strategy string

const (
	StrategySkip              Strategy = "skip"
	StrategyReplace           Strategy = "replace"
	StrategyMergeKeyframes    Strategy = "merge-keyframes"
	StrategyMergeAssignments  Strategy = "merge-assignments"
	StrategyCreateNew         Strategy = "create-new"
	StrategyRename            Strategy = "rename"
	StrategyFail              Strategy = "fail"
	StrategySkipItem          Strategy = "skip-item"
	StrategyCreatePlaceholder Strategy = "create-placeholder"
	StrategyFailImport        Strategy = "fail-import"
	StrategyKeepExisting      Strategy = "keep-existing"
	StrategyUseIncoming       Strategy = "use-incoming"
	StrategyMergeRanges       Strategy = "merge"
	StrategyReject            Strategy = "reject"
	StrategyWarn              Strategy = "warn"
)

// Policy is the per-conflict-type resolution table plus the two
// execution switches. The zero value is not usable; start from
// DefaultPolicy.
type Policy struct {
	// DuplicateSequenceIDs resolves an incoming annotation whose id
	// already exists: skip | replace | merge-keyframes | create-new |
	// rename | fail.
	DuplicateSequenceIDs Strategy `yaml:"duplicateSequenceIds"`

	// DuplicateObjectIDs resolves an incoming entity/event/time (or
	// collection) whose id already exists: skip | replace |
	// merge-assignments | create-new | rename | fail.
	DuplicateObjectIDs Strategy `yaml:"duplicateObjectIds"`

	// MissingDependencies resolves a record referencing an id found
	// neither in the batch nor the store: skip-item |
	// create-placeholder | fail-import.
	MissingDependencies Strategy `yaml:"missingDependencies"`

	// OverlappingFrameRanges resolves two distinct annotations of
	// the same object on the same video with overlapping keyframe
	// spans: skip | merge | fail-import. Only fail-import has
	// execution semantics; see Engine docs.
	OverlappingFrameRanges Strategy `yaml:"overlappingFrameRanges"`

	// InterpolationConflicts resolves differing segment curves found
	// while merging keyframes into an existing sequence:
	// keep-existing | use-incoming | fail.
	InterpolationConflicts Strategy `yaml:"interpolationConflicts"`

	// SequenceValidation decides what a failed sequence validation
	// does to its annotation line: reject (drop the line, record an
	// error) | warn (import anyway, record a warning).
	SequenceValidation Strategy `yaml:"sequenceValidation"`

	// Atomic wraps the entire execute phase in one transaction;
	// any write failure rolls back the whole batch. Off, failures
	// are isolated per record.
	Atomic bool `yaml:"atomic"`

	// StrictMode aborts the batch before any write when any conflict
	// resolves to a fail action.
	StrictMode bool `yaml:"strictMode"`
}

// DefaultPolicy is the conservative table: nothing is overwritten,
// nothing fabricated, the batch is atomic.
func DefaultPolicy() Policy {
	return Policy{
		DuplicateSequenceIDs:   StrategySkip,
		DuplicateObjectIDs:     StrategySkip,
		MissingDependencies:    StrategySkipItem,
		OverlappingFrameRanges: StrategySkip,
		InterpolationConflicts: StrategyKeepExisting,
		SequenceValidation:     StrategyReject,
		Atomic:                 true,
		StrictMode:             false,
	}
}

// LoadPolicy reads a YAML policy file over DefaultPolicy: absent
// keys keep their defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("ingest: reading policy %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("ingest: parsing policy %s: %w", path, err)
	}
	if err := policy.Validate(); err != nil {
		return policy, fmt.Errorf("ingest: policy %s: %w", path, err)
	}
	return policy, nil
}

// Validate checks every strategy against its conflict type's allowed
// set.
func (p Policy) Validate() error {
	allowed := map[string][]Strategy{
		"duplicateSequenceIds":   {StrategySkip, StrategyReplace, StrategyMergeKeyframes, StrategyCreateNew, StrategyRename, StrategyFail},
		"duplicateObjectIds":     {StrategySkip, StrategyReplace, StrategyMergeAssignments, StrategyCreateNew, StrategyRename, StrategyFail},
		"missingDependencies":    {StrategySkipItem, StrategyCreatePlaceholder, StrategyFailImport},
		"overlappingFrameRanges": {StrategySkip, StrategyMergeRanges, StrategyFailImport},
		"interpolationConflicts": {StrategyKeepExisting, StrategyUseIncoming, StrategyFail},
		"sequenceValidation":     {StrategyReject, StrategyWarn},
	}
	values := map[string]Strategy{
		"duplicateSequenceIds":   p.DuplicateSequenceIDs,
		"duplicateObjectIds":     p.DuplicateObjectIDs,
		"missingDependencies":    p.MissingDependencies,
		"overlappingFrameRanges": p.OverlappingFrameRanges,
		"interpolationConflicts": p.InterpolationConflicts,
		"sequenceValidation":     p.SequenceValidation,
	}
	for key, value := range values {
		ok := false
		for _, candidate := range allowed[key] {
			if value == candidate {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s: unknown strategy %q", key, value)
		}
	}
	return nil
}
