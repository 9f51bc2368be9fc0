// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
)

// Memory is an in-memory Store for tests and offline preview. It
// honors the same transactional contract as SQLite: WithTx applies
// the callback's writes to a copy and swaps it in only on success.
// Payloads are deep-copied on every read and write, so a record
// handed out or taken in never shares mutable state with the store.
type Memory struct {
	mu      sync.Mutex
	records map[Kind]map[string]*Record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{records: make(map[Kind]map[string]*Record)}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) FindUnique(_ context.Context, kind Kind, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memFindUnique(m.records, kind, id)
}

func (m *Memory) FindMany(_ context.Context, kind Kind) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memFindMany(m.records, kind)
}

func (m *Memory) Create(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memCreate(m.records, rec)
}

func (m *Memory) Update(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memUpdate(m.records, rec)
}

func (m *Memory) Upsert(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	memPut(m.records, rec)
	return nil
}

func (m *Memory) Delete(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memDelete(m.records, kind, id)
}

// WithTx runs fn against a shadow copy of the store. Success swaps
// the shadow in; failure discards it, leaving the store untouched.
// The store lock is held throughout, serializing transactions.
func (m *Memory) WithTx(_ context.Context, fn func(tx Querier) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	shadow := make(map[Kind]map[string]*Record, len(m.records))
	for kind, byID := range m.records {
		shadow[kind] = maps.Clone(byID)
	}
	if err := fn(&memQuerier{records: shadow}); err != nil {
		return err
	}
	m.records = shadow
	return nil
}

// memQuerier applies the operation set to a plain record map,
// lock-free; the owner handles synchronization.
type memQuerier struct {
	records map[Kind]map[string]*Record
}

func (q *memQuerier) FindUnique(_ context.Context, kind Kind, id string) (*Record, error) {
	return memFindUnique(q.records, kind, id)
}

func (q *memQuerier) FindMany(_ context.Context, kind Kind) ([]Record, error) {
	return memFindMany(q.records, kind)
}

func (q *memQuerier) Create(_ context.Context, rec *Record) error {
	return memCreate(q.records, rec)
}

func (q *memQuerier) Update(_ context.Context, rec *Record) error {
	return memUpdate(q.records, rec)
}

func (q *memQuerier) Upsert(_ context.Context, rec *Record) error {
	memPut(q.records, rec)
	return nil
}

func (q *memQuerier) Delete(_ context.Context, kind Kind, id string) error {
	return memDelete(q.records, kind, id)
}

func memFindUnique(records map[Kind]map[string]*Record, kind Kind, id string) (*Record, error) {
	if rec, ok := records[kind][id]; ok {
		copied := *rec
		copied.Data = cloneData(rec.Data)
		return &copied, nil
	}
	return nil, fmt.Errorf("store: find %s/%s: %w", kind, id, ErrNotFound)
}

func memFindMany(records map[Kind]map[string]*Record, kind Kind) ([]Record, error) {
	byID := records[kind]
	recs := make([]Record, 0, len(byID))
	for _, rec := range byID {
		copied := *rec
		copied.Data = cloneData(rec.Data)
		recs = append(recs, copied)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

func memCreate(records map[Kind]map[string]*Record, rec *Record) error {
	if _, ok := records[rec.Kind][rec.ID]; ok {
		return fmt.Errorf("store: create %s/%s: %w", rec.Kind, rec.ID, ErrExists)
	}
	memPut(records, rec)
	return nil
}

func memUpdate(records map[Kind]map[string]*Record, rec *Record) error {
	if _, ok := records[rec.Kind][rec.ID]; !ok {
		return fmt.Errorf("store: update %s/%s: %w", rec.Kind, rec.ID, ErrNotFound)
	}
	memPut(records, rec)
	return nil
}

func memDelete(records map[Kind]map[string]*Record, kind Kind, id string) error {
	if _, ok := records[kind][id]; !ok {
		return fmt.Errorf("store: delete %s/%s: %w", kind, id, ErrNotFound)
	}
	delete(records[kind], id)
	return nil
}

func memPut(records map[Kind]map[string]*Record, rec *Record) {
	byID := records[rec.Kind]
	if byID == nil {
		byID = make(map[string]*Record)
		records[rec.Kind] = byID
	}
	copied := *rec
	copied.Data = cloneData(rec.Data)
	byID[rec.ID] = &copied
}

// cloneData deep-copies a JSON-shaped payload tree.
func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
