// Copyright 2026 The Boxline Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"errors"
	"strings"
)

// maxRemapDepth bounds the recursive payload walk. Batch input is
// untrusted; a payload nested deeper than this is rejected rather
// than allowed to exhaust the stack.
const maxRemapDepth = 64

// errRemapTooDeep is reported (line-scoped) when a payload exceeds
// maxRemapDepth.
var errRemapTooDeep = errors.New("payload nesting exceeds remap depth limit")

// remapIDs rewrites every id-valued field in a payload tree through
// the idMap: a field named "id" or ending in "Id" holding a mapped
// string is replaced, and a field ending in "Ids" holding an array
// has each mapped element replaced. The walk is an explicit recursion
// over the JSON-shaped tree (maps, slices, scalars); values are
// rewritten in place.
func remapIDs(data map[string]any, idMap map[string]string) error {
	if len(idMap) == 0 {
		return nil
	}
	return remapValue(data, idMap, "", 0)
}

func remapValue(value any, idMap map[string]string, field string, depth int) error {
	if depth > maxRemapDepth {
		return errRemapTooDeep
	}
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			if s, ok := child.(string); ok && isIDField(key) {
				if mapped, ok := idMap[s]; ok {
					v[key] = mapped
				}
				continue
			}
			if err := remapValue(child, idMap, key, depth+1); err != nil {
				return err
			}
		}
	case []any:
		mapElements := isIDListField(field)
		for i, child := range v {
			if s, ok := child.(string); ok {
				if mapped, ok := idMap[s]; ok && mapElements {
					v[i] = mapped
				}
				continue
			}
			if err := remapValue(child, idMap, field, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// isIDField reports whether a field name carries a single id: "id"
// itself or any camel-case …Id suffix.
func isIDField(name string) bool {
	return name == "id" || strings.HasSuffix(name, "Id")
}

// isIDListField reports whether a field name carries a list of ids.
func isIDListField(name string) bool {
	return strings.HasSuffix(name, "Ids")
}
