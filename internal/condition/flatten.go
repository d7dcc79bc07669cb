// internal/condition/flatten.go
package condition

import "strconv"

/*
 * Path flattener.
 *
 * Converts a nested record (maps and arrays) into a flat mapping of dotted
 * path to leaf value, the evaluation context for conditions. Array indices
 * render as path segments: {"a": {"b": [1]}} yields "a.b.0" -> 1.
 *
 * Arrays additionally stay addressable as a whole under their own path
 * ("a.b" -> [1]) so equality predicates can apply membership semantics to
 * collection-valued fields. Key uniqueness holds: indexed leaf paths and
 * the collection path never collide.
 *
 * Pure function, no deterministic ordering guarantee, not reversible.
 */

// Flatten renders a nested value as a dotted-path map.
// Scalar input flattens to a single "" key and is of no practical use;
// callers pass maps.
func Flatten(value any) map[string]any {
	flat := make(map[string]any)
	flattenInto(flat, "", value)
	return flat
}

func flattenInto(flat map[string]any, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			flattenInto(flat, join(prefix, key), child)
		}
	case []any:
		// The collection itself stays addressable for membership checks.
		flat[prefix] = v
		for i, child := range v {
			flattenInto(flat, join(prefix, strconv.Itoa(i)), child)
		}
	default:
		flat[prefix] = v
	}
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
