// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest merges an externally produced batch of annotation
// records into an existing store. The pipeline is strictly ordered:
// parse the JSON-Lines batch, validate each line, build the
// dependency graph, detect conflicts against a snapshot of existing
// data, resolve each conflict through the operator's policy table,
// remap ids wherever a resolution minted a fresh one, and execute the
// surviving records — inside one transaction when atomic mode is on.
//
// Nothing in the pipeline before execute writes to the store, and
// nothing ever fails silently: a malformed line, a rejected sequence,
// a skipped duplicate, and a minted id all appear in the Report, so
// the operator can audit exactly what happened to every line.
package ingest
