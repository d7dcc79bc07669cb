// internal/condition/parser_test.go
package condition

import (
	"errors"
	"testing"
)

func TestParse_Predicates(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"equality", `a.b = 1`},
		{"inequality bang", `a.b != 1`},
		{"inequality angle", `a.b <> 1`},
		{"ordering", `stats.visits >= 10`},
		{"string literal double", `pii.email = "a@b.c"`},
		{"string literal single", `pii.email = 'a@b.c'`},
		{"float literal", `price > 9.99`},
		{"negative literal", `delta < -5`},
		{"boolean literal", `consented = true`},
		{"null literal", `traits.private.plan = null`},
		{"array literal", `tag = ["a", "b", "c"]`},
		{"between", `a.b between 1 and 2`},
		{"is null", `a.b is null`},
		{"exists", `a.b exists`},
		{"not exists", `a.b not exists`},
		{"datetime literal", `datetime("2023-01-01") < datetime("2024-01-01")`},
		{"datetime field", `datetime(visit.last) > datetime("2023-06-01 10:00:00")`},
		{"and chain", `a = 1 and b = 2 and c = 3`},
		{"or chain", `a = 1 or b = 2`},
		{"mixed chain", `a = 1 and b = 2 or c = 3`},
		{"parens", `a = 1 and (b = 2 or c = 3)`},
		{"keywords case-insensitive", `a.b BETWEEN 1 AND 2 OR c IS NULL`},
		{"indexed path", `purchases.0.amount > 100`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.src); err != nil {
				t.Fatalf("Parse(%q) error = %v, want nil", tt.src, err)
			}
		})
	}
}

func TestParse_LeftAssociativity(t *testing.T) {
	// a=1 and b=2 or c=3 must parse as ((a=1 and b=2) or c=3):
	// and/or share one precedence level and associate left.
	expr, err := Parse(`a = 1 and b = 2 or c = 3`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	outer, ok := expr.(Logical)
	if !ok {
		t.Fatalf("root = %T, want Logical", expr)
	}
	if outer.Op != OpOr {
		t.Errorf("root op = %v, want OpOr", outer.Op)
	}
	inner, ok := outer.Left.(Logical)
	if !ok {
		t.Fatalf("left = %T, want Logical", outer.Left)
	}
	if inner.Op != OpAnd {
		t.Errorf("left op = %v, want OpAnd", inner.Op)
	}
}

func TestParse_LiteralCoercion(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want any
	}{
		{"integer", `a = 42`, int64(42)},
		{"float", `a = 42.5`, 42.5},
		{"negative integer", `a = -7`, int64(-7)},
		{"boolean", `a = true`, true},
		{"null", `a = null`, nil},
		{"string", `a = "x"`, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.src)
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}
			cmp, ok := expr.(Comparison)
			if !ok {
				t.Fatalf("root = %T, want Comparison", expr)
			}
			lit, ok := cmp.Right.(Literal)
			if !ok {
				t.Fatalf("right = %T, want Literal", cmp.Right)
			}
			if lit.Value != tt.want {
				t.Errorf("literal = %#v, want %#v", lit.Value, tt.want)
			}
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ``},
		{"dangling operator", `a.b =`},
		{"double operator", `a.b = = 1`},
		{"unterminated string", `a.b = "oops`},
		{"unterminated paren", `(a.b = 1`},
		{"between missing and", `a.b between 1 2`},
		{"is without null", `a.b is something`},
		{"not without exists", `a.b not null`},
		{"trailing garbage", `a.b = 1 c.d = 2`},
		{"bare bang", `a.b ! 1`},
		{"unterminated array", `a.b = [1, 2`},
		{"exists on literal", `1 exists`},
		{"stray character", `a.b # 1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatalf("Parse(%q) error = nil, want *SyntaxError", tt.src)
			}
			var syntaxErr *SyntaxError
			if !errors.As(err, &syntaxErr) {
				t.Fatalf("Parse(%q) error type = %T, want *SyntaxError", tt.src, err)
			}
			if syntaxErr.Error() == "" {
				t.Error("SyntaxError message is empty")
			}
		})
	}
}
