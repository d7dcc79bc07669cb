// internal/merge/merge_test.go
package merge

import (
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/profilekeeper/internal/types"
)

func TestTrees(t *testing.T) {
	tests := []struct {
		name  string
		trees []map[string]any
		want  map[string]any
	}{
		{
			name:  "single tree passes through",
			trees: []map[string]any{{"name": "A", "age": 30}},
			want:  map[string]any{"name": "A", "age": 30},
		},
		{
			name:  "nil values are skipped",
			trees: []map[string]any{{"name": "A"}, {"name": nil, "city": nil}},
			want:  map[string]any{"name": "A"},
		},
		{
			name:  "identical scalars stay scalar",
			trees: []map[string]any{{"name": "A"}, {"name": "A"}},
			want:  map[string]any{"name": "A"},
		},
		{
			name:  "numeric mixing dedups",
			trees: []map[string]any{{"age": 30}, {"age": 30.0}},
			want:  map[string]any{"age": 30},
		},
		{
			name:  "list absorbs scalar",
			trees: []map[string]any{{"tag": []any{"a", "b"}}, {"tag": "c"}},
			want:  map[string]any{"tag": []any{"a", "b", "c"}},
		},
		{
			name:  "list absorbs list with dedup",
			trees: []map[string]any{{"tag": []any{"a", "b"}}, {"tag": []any{"b", "c"}}},
			want:  map[string]any{"tag": []any{"a", "b", "c"}},
		},
		{
			name:  "single-element list collapses to scalar",
			trees: []map[string]any{{"tag": []any{"a"}}, {"tag": "a"}},
			want:  map[string]any{"tag": "a"},
		},
		{
			name: "nested maps recurse",
			trees: []map[string]any{
				{"address": map[string]any{"city": "Oslo"}},
				{"address": map[string]any{"zip": "0150"}},
			},
			want: map[string]any{"address": map[string]any{"city": "Oslo", "zip": "0150"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Trees(tt.trees)
			if err != nil {
				t.Fatalf("Trees() error = %v, want nil", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Trees() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestTrees_Conflict(t *testing.T) {
	// Distinct scalars combine into a deduplicated two-element list.
	got, err := Trees([]map[string]any{{"name": "A"}, {"name": "B"}})
	if err != nil {
		t.Fatalf("Trees() error = %v", err)
	}
	list, ok := got["name"].([]any)
	if !ok {
		t.Fatalf("name = %T, want []any", got["name"])
	}
	if len(list) != 2 {
		t.Fatalf("len(name) = %d, want 2", len(list))
	}
	names := []string{list[0].(string), list[1].(string)}
	sort.Strings(names)
	if names[0] != "A" || names[1] != "B" {
		t.Errorf("name = %v, want [A B]", names)
	}

	// Re-merging a value already present must not grow the list.
	again, err := Trees([]map[string]any{got, {"name": "A"}})
	if err != nil {
		t.Fatalf("Trees() error = %v", err)
	}
	if len(again["name"].([]any)) != 2 {
		t.Errorf("re-merge grew list to %d elements, want 2", len(again["name"].([]any)))
	}
}

func TestTrees_Idempotence(t *testing.T) {
	tree := map[string]any{
		"name": "A",
		"tags": []any{"x", "y"},
		"address": map[string]any{
			"city": "Oslo",
		},
	}

	got, err := Trees([]map[string]any{tree, tree})
	if err != nil {
		t.Fatalf("Trees() error = %v", err)
	}
	if !reflect.DeepEqual(got, tree) {
		t.Errorf("self-merge = %#v, want original %#v", got, tree)
	}
}

func TestTrees_UnsupportedType(t *testing.T) {
	type opaque struct{ x int }

	tests := []struct {
		name  string
		trees []map[string]any
	}{
		{"struct value", []map[string]any{{"v": opaque{1}}}},
		{"map merged with scalar", []map[string]any{{"v": map[string]any{"a": 1}}, {"v": "x"}}},
		{"list of objects", []map[string]any{{"v": []any{map[string]any{"a": 1}}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Trees(tt.trees)
			if !errors.Is(err, types.ErrUnsupportedMergeType) {
				t.Fatalf("Trees() error = %v, want ErrUnsupportedMergeType", err)
			}
		})
	}
}

func TestTrees_DoesNotMutateInputs(t *testing.T) {
	a := map[string]any{"tags": []any{"x"}}
	b := map[string]any{"tags": []any{"y"}}

	if _, err := Trees([]map[string]any{a, b}); err != nil {
		t.Fatalf("Trees() error = %v", err)
	}
	if !reflect.DeepEqual(a, map[string]any{"tags": []any{"x"}}) {
		t.Errorf("first input mutated: %#v", a)
	}
	if !reflect.DeepEqual(b, map[string]any{"tags": []any{"y"}}) {
		t.Errorf("second input mutated: %#v", b)
	}
}

// Property-based test: merge results never exceed the distinct value count
// and self-merge is always idempotent.
func TestTrees_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("self-merge is idempotent for scalar trees", prop.ForAll(
		func(name string, age int) bool {
			tree := map[string]any{"name": name, "age": age}
			got, err := Trees([]map[string]any{tree, tree})
			if err != nil {
				return false
			}
			return reflect.DeepEqual(got, tree)
		},
		gen.AlphaString(),
		gen.Int(),
	))

	properties.Property("conflicting scalars never grow past distinct count", prop.ForAll(
		func(a string, b string, rounds int) bool {
			trees := make([]map[string]any, 0, rounds)
			for i := 0; i < rounds; i++ {
				v := a
				if i%2 == 1 {
					v = b
				}
				trees = append(trees, map[string]any{"name": v})
			}
			got, err := Trees(trees)
			if err != nil {
				return false
			}
			distinct := 1
			if a != b {
				distinct = 2
			}
			switch v := got["name"].(type) {
			case string:
				return distinct == 1
			case []any:
				return len(v) == distinct
			default:
				return false
			}
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.IntRange(2, 10),
	))

	properties.TestingRun(t)
}
