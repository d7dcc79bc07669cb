// internal/merge/merge.go

// Package merge implements the deterministic structural merge of duplicate
// profiles: N attribute trees collapse into one, with explicit
// conflict-resolution rules per value shape.
package merge

import (
	"fmt"

	"github.com/solatis/profilekeeper/internal/types"
)

/*
 * Merge rules, applied per key and recursively per nested map:
 *
 *   - nil values are skipped: they never overwrite and never combine
 *   - scalars and simple containers combine: one distinct non-nil value
 *     stays scalar, two or more distinct values become a deduplicated
 *     list; a list absorbs scalars by append and other lists by
 *     concatenation, deduplicated, collapsing back to a scalar when one
 *     distinct element remains
 *   - nested maps recurse with the same rules
 *   - any other value shape is types.ErrUnsupportedMergeType, and the
 *     merge is abandoned with no partial application
 *
 * Duplicate detection compares with numeric mixing (1 and 1.0 are the
 * same value) to match condition evaluation semantics.
 */

// Trees merges an ordered list of attribute trees into one.
// Input trees are not mutated. Merging a tree with an exact copy of
// itself yields the original tree (idempotence).
func Trees(trees []map[string]any) (map[string]any, error) {
	out := make(map[string]any)
	for _, tree := range trees {
		for key, value := range tree {
			merged, err := mergeValue(out[key], value)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			if merged != nil {
				out[key] = merged
			}
		}
	}
	return out, nil
}

// mergeValue combines an accumulated value with an incoming one.
func mergeValue(acc, incoming any) (any, error) {
	if incoming == nil {
		return acc, nil
	}
	if err := checkShape(incoming); err != nil {
		return nil, err
	}
	if acc == nil {
		return cloneValue(incoming), nil
	}

	accMap, accIsMap := acc.(map[string]any)
	inMap, inIsMap := incoming.(map[string]any)
	switch {
	case accIsMap && inIsMap:
		return Trees([]map[string]any{accMap, inMap})
	case accIsMap || inIsMap:
		return nil, types.ErrUnsupportedMergeType
	}

	// Scalars and lists combine through a deduplicated union.
	union := appendValue(nil, acc)
	union = appendValue(union, incoming)
	if len(union) == 1 {
		return union[0], nil
	}
	return union, nil
}

// appendValue adds a scalar or a list's elements to the union,
// skipping values already present.
func appendValue(union []any, value any) []any {
	if list, ok := value.([]any); ok {
		for _, elem := range list {
			union = appendValue(union, elem)
		}
		return union
	}
	for _, existing := range union {
		if scalarEqual(existing, value) {
			return union
		}
	}
	return append(union, value)
}

// checkShape rejects value shapes the merge has no rule for.
func checkShape(value any) error {
	switch v := value.(type) {
	case string, bool, int, int64, float64, float32, nil:
		return nil
	case map[string]any:
		return nil
	case []any:
		for _, elem := range v {
			if _, nested := elem.(map[string]any); nested {
				// Lists of objects have no dedup identity.
				return types.ErrUnsupportedMergeType
			}
			if err := checkShape(elem); err != nil {
				return err
			}
		}
		return nil
	default:
		return types.ErrUnsupportedMergeType
	}
}

// cloneValue copies the incoming value so later merge steps never alias
// an input tree.
func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = cloneValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = cloneValue(elem)
		}
		return out
	default:
		return v
	}
}

// scalarEqual compares dedup candidates with numeric type mixing.
func scalarEqual(a, b any) bool {
	if na, ok := toFloat64(a); ok {
		nb, ok := toFloat64(b)
		return ok && na == nb
	}
	if _, ok := toFloat64(b); ok {
		return false
	}
	return a == b
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
