// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists annotation records: videos, personas,
// ontologies, linked objects (entities, events, times, and their
// collections), relations, annotations, and project metadata. Records
// are keyed by (kind, id) and carry a free-shape payload; the store
// does not interpret payloads beyond the id fields the import engine
// rewrites.
//
// Two implementations exist: SQLite (the durable store, one file per
// installation) and an in-memory map (tests, offline preview). Both
// expose the same Querier operation set, and the SQLite store runs a
// whole import batch inside one IMMEDIATE transaction via WithTx so a
// partially applied batch can never be observed.
package store

import (
	"context"
	"errors"
)

// Kind names a record type. The set mirrors the import line types
// plus persona, which is never a line of its own but is referenced by
// annotations and embedded in ontology payloads.
type Kind string

const (
	KindVideo            Kind = "video"
	KindPersona          Kind = "persona"
	KindOntology         Kind = "ontology"
	KindEntity           Kind = "entity"
	KindEvent            Kind = "event"
	KindTime             Kind = "time"
	KindEntityCollection Kind = "entityCollection"
	KindEventCollection  Kind = "eventCollection"
	KindTimeCollection   Kind = "timeCollection"
	KindRelation         Kind = "relation"
	KindAnnotation       Kind = "annotation"
	KindMetadata         Kind = "metadata"
)

// Kinds lists every record kind in dependency-safe write order:
// anything a later kind can reference appears earlier.
var Kinds = []Kind{
	KindVideo, KindOntology, KindPersona,
	KindEntity, KindEvent, KindTime,
	KindEntityCollection, KindEventCollection, KindTimeCollection,
	KindRelation, KindAnnotation, KindMetadata,
}

// KnownKind reports whether k names a record kind.
func KnownKind(k Kind) bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Record is one stored record. Data is the decoded payload tree
// (JSON-shaped: maps, slices, scalars).
type Record struct {
	ID   string
	Kind Kind
	Data map[string]any
}

// ErrNotFound is returned by FindUnique, Update, and Delete when no
// record has the requested kind and id.
var ErrNotFound = errors.New("record not found")

// ErrExists is returned by Create when a record with the same kind
// and id already exists.
var ErrExists = errors.New("record already exists")

// Querier is the operation set shared by the store and by
// transactions scoped within it.
type Querier interface {
	// FindUnique returns the record with the given kind and id, or
	// ErrNotFound.
	FindUnique(ctx context.Context, kind Kind, id string) (*Record, error)

	// FindMany returns every record of the given kind.
	FindMany(ctx context.Context, kind Kind) ([]Record, error)

	// Create inserts a new record; ErrExists if the id is taken.
	Create(ctx context.Context, rec *Record) error

	// Update replaces an existing record; ErrNotFound if absent.
	Update(ctx context.Context, rec *Record) error

	// Upsert inserts or replaces.
	Upsert(ctx context.Context, rec *Record) error

	// Delete removes a record; ErrNotFound if absent.
	Delete(ctx context.Context, kind Kind, id string) error
}

// Store is a Querier that can also scope the same operations inside
// one transaction. The callback's error rolls the transaction back;
// nil commits it.
type Store interface {
	Querier
	WithTx(ctx context.Context, fn func(tx Querier) error) error
	Close() error
}
