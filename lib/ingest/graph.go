// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"github.com/annolab/boxline/lib/store"
)

// ref is one typed id reference found in a record's payload. kind is
// the expected kind of the referent, or "" when the reference may
// point at any linked-object kind.
type ref struct {
	kind store.Kind
	id   string
}

// depGraph indexes the batch's declared ids and each line's outgoing
// references. The write order itself is fixed (store.Kinds is already
// dependency-safe), so the graph's job is reference resolution: which
// ids does a line need, and which of those exist in neither the batch
// nor the store.
type depGraph struct {
	// declared maps kind → id set for every id the batch itself
	// brings, including personas embedded in ontology payloads.
	declared map[store.Kind]map[string]bool

	// edges maps line number → outgoing references.
	edges map[int][]ref
}

// buildGraph walks the batch once and records declared ids and
// reference edges. Lines already rejected by validation are not
// passed in.
func buildGraph(lines []Line) *depGraph {
	g := &depGraph{
		declared: make(map[store.Kind]map[string]bool),
		edges:    make(map[int][]ref),
	}

	for i := range lines {
		line := &lines[i]
		if id := line.ID(); id != "" {
			g.declare(line.Type, id)
		}

		switch line.Type {
		case store.KindOntology:
			// Personas ride inside the ontology payload and become
			// persona records on execute; their ids are declared by
			// this line, and each implies a persona→ontology edge
			// that is satisfied by construction.
			for _, persona := range personaEntries(line.Data) {
				if id, ok := stringField(persona, "id"); ok {
					g.declare(store.KindPersona, id)
				}
			}

		case store.KindAnnotation:
			if videoID, ok := stringField(line.Data, "videoId"); ok {
				g.addEdge(line.LineNumber, ref{kind: store.KindVideo, id: videoID})
			}
			if personaID, ok := stringField(line.Data, "personaId"); ok {
				g.addEdge(line.LineNumber, ref{kind: store.KindPersona, id: personaID})
			}
			if objectID, ok := stringField(line.Data, "objectId"); ok {
				g.addEdge(line.LineNumber, ref{id: objectID})
			}

		case store.KindEntityCollection:
			g.addMemberEdges(line, store.KindEntity)
		case store.KindEventCollection:
			g.addMemberEdges(line, store.KindEvent)
		case store.KindTimeCollection:
			g.addMemberEdges(line, store.KindTime)

		case store.KindRelation:
			if sourceID, ok := stringField(line.Data, "sourceId"); ok {
				g.addEdge(line.LineNumber, ref{id: sourceID})
			}
			if targetID, ok := stringField(line.Data, "targetId"); ok {
				g.addEdge(line.LineNumber, ref{id: targetID})
			}
		}
	}
	return g
}

func (g *depGraph) declare(kind store.Kind, id string) {
	ids := g.declared[kind]
	if ids == nil {
		ids = make(map[string]bool)
		g.declared[kind] = ids
	}
	ids[id] = true
}

func (g *depGraph) addEdge(line int, r ref) {
	g.edges[line] = append(g.edges[line], r)
}

func (g *depGraph) addMemberEdges(line *Line, memberKind store.Kind) {
	for _, memberID := range stringList(line.Data, "memberIds") {
		g.addEdge(line.LineNumber, ref{kind: memberKind, id: memberID})
	}
}

// missingRefs returns the line's references satisfied by neither the
// batch nor the store snapshot.
func (g *depGraph) missingRefs(line *Line, snap *snapshot) []ref {
	var missing []ref
	for _, r := range g.edges[line.LineNumber] {
		if r.kind != "" {
			if !g.declared[r.kind][r.id] && !snap.has(r.kind, r.id) {
				missing = append(missing, r)
			}
			continue
		}
		// Untyped reference: satisfied by any linked-object kind.
		found := false
		for _, kind := range objectKinds {
			if g.declared[kind][r.id] || snap.has(kind, r.id) {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, ref{kind: "object", id: r.id})
		}
	}
	return missing
}

// personaEntries extracts the persona payloads embedded in an
// ontology record's data tree.
func personaEntries(data map[string]any) []map[string]any {
	raw, ok := data["personas"].([]any)
	if !ok {
		return nil
	}
	personas := make([]map[string]any, 0, len(raw))
	for _, entry := range raw {
		if m, ok := entry.(map[string]any); ok {
			personas = append(personas, m)
		}
	}
	return personas
}
