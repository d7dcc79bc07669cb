// internal/condition/evaluate.go
package condition

import (
	"fmt"
	"time"

	"github.com/solatis/profilekeeper/internal/types"
)

/*
 * Condition evaluation.
 *
 * Walks the parse tree bottom-up against a flattened record. One handler
 * per node kind, dispatched by type switch.
 *
 * Contract points:
 *   - A field reference to an absent path is a hard error
 *     (types.ErrFieldNotFound), except under exists / not exists, which
 *     report presence directly.
 *   - Equality against a collection-valued left operand is membership of
 *     the right operand, not structural equality; != is non-membership.
 *   - datetime(...) operands compare as parsed times for every operator,
 *     including between and ordering.
 *   - and/or evaluate both sides eagerly so field-resolution errors
 *     surface from either side regardless of the other side's outcome.
 *
 * Numeric comparison handles int64/float64 mixing from both JSON decoding
 * and literal coercion.
 */

// Evaluate parses and evaluates condition text against a flattened record.
// The standalone DSL entry point: usable for validation endpoints
// independently of the pipeline.
func Evaluate(src string, record map[string]any) (bool, error) {
	expr, err := Parse(src)
	if err != nil {
		return false, err
	}
	return Eval(expr, record)
}

// Eval evaluates an already-parsed tree. Repeated calls with identical
// inputs return identical results.
func Eval(expr Expr, record map[string]any) (bool, error) {
	switch e := expr.(type) {
	case Logical:
		return evalLogical(e, record)
	case Comparison:
		return evalComparison(e, record)
	case Between:
		return evalBetween(e, record)
	case IsNull:
		value, err := resolve(e.Value, record)
		if err != nil {
			return false, err
		}
		return value == nil, nil
	case Exists:
		_, present := record[e.Field.Path]
		return present != e.Negated, nil
	default:
		return false, fmt.Errorf("unknown expression node %T", expr)
	}
}

// evalLogical evaluates both sides unconditionally: field lookups on
// either side must surface their resolution errors even when the other
// side already decides the outcome.
func evalLogical(e Logical, record map[string]any) (bool, error) {
	left, lerr := Eval(e.Left, record)
	right, rerr := Eval(e.Right, record)
	if lerr != nil {
		return false, lerr
	}
	if rerr != nil {
		return false, rerr
	}
	if e.Op == OpAnd {
		return left && right, nil
	}
	return left || right, nil
}

func evalComparison(e Comparison, record map[string]any) (bool, error) {
	left, err := resolve(e.Left, record)
	if err != nil {
		return false, err
	}
	right, err := resolve(e.Right, record)
	if err != nil {
		return false, err
	}

	// Collection on the left turns equality into membership.
	if collection, ok := left.([]any); ok && (e.Op == OpEq || e.Op == OpNeq) {
		member := contains(collection, right)
		return member == (e.Op == OpEq), nil
	}

	switch e.Op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	default:
		cmp, err := order(left, right)
		if err != nil {
			return false, err
		}
		switch e.Op {
		case OpGt:
			return cmp > 0, nil
		case OpGte:
			return cmp >= 0, nil
		case OpLt:
			return cmp < 0, nil
		default:
			return cmp <= 0, nil
		}
	}
}

// evalBetween checks low <= value <= high, bounds inclusive.
func evalBetween(e Between, record map[string]any) (bool, error) {
	value, err := resolve(e.Value, record)
	if err != nil {
		return false, err
	}
	low, err := resolve(e.Low, record)
	if err != nil {
		return false, err
	}
	high, err := resolve(e.High, record)
	if err != nil {
		return false, err
	}

	fromLow, err := order(value, low)
	if err != nil {
		return false, err
	}
	toHigh, err := order(value, high)
	if err != nil {
		return false, err
	}
	return fromLow >= 0 && toHigh <= 0, nil
}

// resolve produces the concrete value of an operand.
func resolve(op Operand, record map[string]any) (any, error) {
	switch o := op.(type) {
	case Literal:
		return o.Value, nil
	case Field:
		value, ok := record[o.Path]
		if !ok {
			return nil, fmt.Errorf("%q: %w", o.Path, types.ErrFieldNotFound)
		}
		return value, nil
	case DateTime:
		inner, err := resolve(o.Arg, record)
		if err != nil {
			return nil, err
		}
		return ParseTime(inner)
	default:
		return nil, fmt.Errorf("unknown operand node %T", op)
	}
}

// equal compares scalars with numeric type mixing. Values of shapes the
// DSL cannot compare (maps, nested arrays) are never equal rather than a
// runtime panic from interface comparison.
func equal(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if ta, tb, ok := asTimes(a, b); ok {
		return ta.Equal(tb)
	}
	if !safeComparable(a) || !safeComparable(b) {
		return false
	}
	return a == b
}

// order performs three-way comparison. Numbers compare numerically,
// strings lexicographically, datetimes chronologically; anything else is
// an evaluation error rather than a silent false.
func order(a, b any) (int, error) {
	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1, nil
		case na > nb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if ta, tb, ok := asTimes(a, b); ok {
		switch {
		case ta.Before(tb):
			return -1, nil
		case ta.After(tb):
			return 1, nil
		default:
			return 0, nil
		}
	}
	sa, oka := a.(string)
	sb, okb := b.(string)
	if oka && okb {
		switch {
		case sa < sb:
			return -1, nil
		case sa > sb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	return 0, fmt.Errorf("cannot order %T against %T", a, b)
}

func contains(collection []any, value any) bool {
	for _, elem := range collection {
		if equal(elem, value) {
			return true
		}
	}
	return false
}

// asNumbers attempts to convert both values to float64 for numeric
// comparison. Handles float64 from JSON and int/int64 from literals.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	return na, nb, oka && okb
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

// asTimes promotes mixed time/string pairs to times. A bare string only
// parses when the other side is already a time: datetime() wrapping is
// what opts a comparison into chronological semantics.
func asTimes(a, b any) (time.Time, time.Time, bool) {
	ta, oka := a.(time.Time)
	tb, okb := b.(time.Time)
	switch {
	case oka && okb:
		return ta, tb, true
	case oka:
		parsed, err := ParseTime(b)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return ta, parsed, true
	case okb:
		parsed, err := ParseTime(a)
		if err != nil {
			return time.Time{}, time.Time{}, false
		}
		return parsed, tb, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

// safeComparable reports whether == on the boxed value is panic-free.
func safeComparable(v any) bool {
	switch v.(type) {
	case nil, string, bool, int, int64, float64, float32, time.Time,
		types.ProfileID, types.SegmentID, types.EventID:
		return true
	default:
		return false
	}
}
