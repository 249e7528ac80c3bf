// Package value implements the dynamically tagged runtime value CEL-lite
// expressions produce and consume: null, boolean, finite number, string,
// ordered sequence, string-keyed mapping, and the distinguished absent
// value that flags a missing property without raising an error.
//
// The tagged-variant shape (a closed set of concrete Go types satisfying a
// marker so a switch on dynamic type is exhaustive) mirrors the Value
// interface used by other tree-walking expression evaluators in the
// reference corpus; the coercion, equality, and truthiness rules below are
// CEL-lite's own.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is any runtime value an expression can produce: nil, bool,
// float64, string, Sequence, or Mapping. Undefined is the sentinel for a
// missing property. There is no interface here — dynamic values are typed
// with a type switch over these concrete Go types, matching how the
// context arrives from the host as plain map[string]any/[]any/etc.
type Value = any

// Sequence is an ordered list of values.
type Sequence []Value

// Mapping is a string-keyed lookup of values, order-independent.
type Mapping map[string]Value

// absentType is the sole inhabitant of the "absent" tag: distinct from nil
// (explicit null) and never embedded by an expression into a container it
// produces, only ever returned from an accessor.
type absentType struct{}

// Undefined is the CEL-lite "absent" value: the result of accessing a
// missing key, an out-of-range index, or a poisoned property name.
var Undefined Value = absentType{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v Value) bool {
	_, ok := v.(absentType)
	return ok
}

// PoisonKeys are property/index names that always resolve to Undefined,
// regardless of what the context actually holds under them, so an
// expression can never observe or escape through a host object's
// prototype chain.
var PoisonKeys = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// Truthy implements the truthiness coercion from spec §"Truthiness":
// null, undefined, false, 0, NaN, and empty string are falsy; everything
// else, including empty sequences and mappings, is truthy.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case absentType:
		return false
	case bool:
		return t
	case float64:
		return t != 0 && !math.IsNaN(t)
	case string:
		return t != ""
	default:
		return true
	}
}

// ToNumber implements the numeric coercion used by relational operators:
// non-numeric strings and null-like values become NaN, and NaN never
// compares equal, less, or greater under the relational operators.
func ToNumber(v Value) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// IsNullish reports whether v is null or undefined; both accessors and the
// '+' coercion treat them alike except where documented otherwise.
func IsNullish(v Value) bool {
	return v == nil || IsUndefined(v)
}

// ToDisplayString renders v for string concatenation ('+') and for the
// join() builtin: null/undefined render as empty string, numbers use a
// compact decimal form, everything else via a JSON-ish stringify.
func ToDisplayString(v Value) string {
	switch t := v.(type) {
	case nil, absentType:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(t)
	case Sequence:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = ToDisplayString(e)
		}
		return "[" + strings.Join(parts, ",") + "]"
	case Mapping:
		return "[object Object]"
	default:
		return fmt.Sprintf("%v", t)
	}
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Add implements CEL-lite's '+' operator: if either side is a string,
// concatenate (undefined renders empty, null renders "null"); otherwise
// numeric addition.
// Preserves the documented open-question behavior: a bare null on one side
// coerces to the string "null" only when the *other* side is a string,
// otherwise to numeric NaN.
func Add(left, right Value) Value {
	_, leftIsStr := left.(string)
	_, rightIsStr := right.(string)
	if leftIsStr || rightIsStr {
		return stringifyForConcat(left) + stringifyForConcat(right)
	}
	return ToNumber(left) + ToNumber(right)
}

// stringifyForConcat renders one side of a '+' where the other side is
// known to be a string: null/undefined become "" only via ToDisplayString
// semantics — but spec's open question requires plain null (not undefined)
// to become "null" text when paired with a string, matching a host
// language's default String(null) behavior; undefined still renders "".
func stringifyForConcat(v Value) string {
	if v == nil {
		return "null"
	}
	if IsUndefined(v) {
		return ""
	}
	return ToDisplayString(v)
}

// DeepEqual implements CEL-lite's '==' structural equality: identical for
// primitives (numbers compare numerically so 1 == 1.0), arrays equal iff
// same length and elementwise equal, objects equal iff same key set and
// all values equal, null equals only null. Undefined equals only itself.
func DeepEqual(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case absentType:
		return IsUndefined(b)
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case Sequence:
		bv, ok := b.(Sequence)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !DeepEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Mapping:
		bv, ok := b.(Mapping)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bvv, present := bv[k]
			if !present || !DeepEqual(v, bvv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Length reports the length of a sequence, string (rune count), or
// mapping (key count); everything else has no defined length and callers
// must check the type first.
func Length(v Value) (int, bool) {
	switch t := v.(type) {
	case Sequence:
		return len(t), true
	case string:
		return len([]rune(t)), true
	case Mapping:
		return len(t), true
	default:
		return 0, false
	}
}

// SortedKeys returns a Mapping's keys in a stable, deterministic order —
// used only for diagnostics/pretty-printing, never for evaluation
// semantics (which are key-set based, not order based).
func SortedKeys(m Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
