// Package functions implements CEL-lite's closed function allow-list
// (spec §4.4). No function outside this table is callable; Allowed returns
// false for any other name, and the evaluator turns that into the
// "Function not allowed" evaluation error.
package functions

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/SourceRegistry/cel-lite/internal/value"
)

// Func is a builtin's implementation: already-evaluated arguments in, a
// result or an evaluation error out. Builtins never raise errors except
// where spec explicitly calls for one (regex compile failure).
type Func func(args []value.Value) (value.Value, error)

// entry pairs a Func with its arity check.
type entry struct {
	fn      Func
	minArgs int
	maxArgs int // -1 means unbounded
}

var registry map[string]entry

func init() {
	registry = map[string]entry{
		"has":          {fn: builtinHasExists, minArgs: 1, maxArgs: 1},
		"exists":       {fn: builtinHasExists, minArgs: 1, maxArgs: 1},
		"size":         {fn: builtinSize, minArgs: 1, maxArgs: 1},
		"first":        {fn: builtinFirst, minArgs: 1, maxArgs: 1},
		"last":         {fn: builtinLast, minArgs: 1, maxArgs: 1},
		"collect":      {fn: builtinCollect, minArgs: 1, maxArgs: -1},
		"lower":        {fn: builtinLower, minArgs: 1, maxArgs: 1},
		"upper":        {fn: builtinUpper, minArgs: 1, maxArgs: 1},
		"trim":         {fn: builtinTrim, minArgs: 1, maxArgs: 1},
		"contains":     {fn: builtinContains, minArgs: 2, maxArgs: 2},
		"containsAny":  {fn: builtinContainsAny, minArgs: 2, maxArgs: 2},
		"startsWith":   {fn: builtinStartsWith, minArgs: 2, maxArgs: 2},
		"endsWith":     {fn: builtinEndsWith, minArgs: 2, maxArgs: 2},
		"matches":      {fn: builtinMatches, minArgs: 2, maxArgs: 2},
		"regexReplace": {fn: builtinRegexReplace, minArgs: 3, maxArgs: 3},
		"coalesce":     {fn: builtinCoalesce, minArgs: 1, maxArgs: -1},
		"join":         {fn: builtinJoin, minArgs: 2, maxArgs: 2},
		"split":        {fn: builtinSplit, minArgs: 2, maxArgs: 2},
	}
}

// Allowed reports whether name is in the closed allow-list.
func Allowed(name string) bool {
	_, ok := registry[name]
	return ok
}

// Call dispatches name with args, already evaluated left-to-right by the
// caller. Returns an error only for "Function not allowed" (name absent)
// or a regex compile failure inside matches/regexReplace; mismatched
// arity or argument types are absorbed into the per-function pass-through
// behavior documented in spec §4.4, never raised as errors.
func Call(name string, args []value.Value) (value.Value, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("Function not allowed: %s", name)
	}
	if len(args) < e.minArgs || (e.maxArgs >= 0 && len(args) > e.maxArgs) {
		// Arity mismatch degrades gracefully rather than raising: pad
		// missing trailing args with Undefined so each builtin's own
		// type-driven fallback applies uniformly.
		padded := make([]value.Value, e.minArgs)
		copy(padded, args)
		for i := len(args); i < e.minArgs; i++ {
			padded[i] = value.Undefined
		}
		args = padded
	}
	return e.fn(args)
}

func builtinHasExists(args []value.Value) (value.Value, error) {
	v := args[0]
	switch t := v.(type) {
	case value.Sequence:
		return len(t) > 0, nil
	default:
		return !value.IsNullish(v), nil
	}
}

func builtinSize(args []value.Value) (value.Value, error) {
	if n, ok := value.Length(args[0]); ok {
		return float64(n), nil
	}
	return float64(0), nil
}

func builtinFirst(args []value.Value) (value.Value, error) {
	if seq, ok := args[0].(value.Sequence); ok {
		if len(seq) == 0 {
			return value.Undefined, nil
		}
		return seq[0], nil
	}
	return args[0], nil
}

func builtinLast(args []value.Value) (value.Value, error) {
	if seq, ok := args[0].(value.Sequence); ok {
		if len(seq) == 0 {
			return value.Undefined, nil
		}
		return seq[len(seq)-1], nil
	}
	return args[0], nil
}

func builtinCollect(args []value.Value) (value.Value, error) {
	if len(args) == 1 {
		if seq, ok := args[0].(value.Sequence); ok {
			return seq, nil
		}
		return value.Sequence{args[0]}, nil
	}
	out := make(value.Sequence, len(args))
	copy(out, args)
	return out, nil
}

func builtinLower(args []value.Value) (value.Value, error) {
	if s, ok := args[0].(string); ok {
		return strings.ToLower(s), nil
	}
	return args[0], nil
}

func builtinUpper(args []value.Value) (value.Value, error) {
	if s, ok := args[0].(string); ok {
		return strings.ToUpper(s), nil
	}
	return args[0], nil
}

func builtinTrim(args []value.Value) (value.Value, error) {
	if s, ok := args[0].(string); ok {
		return strings.TrimFunc(s, unicode.IsSpace), nil
	}
	return args[0], nil
}

func builtinContains(args []value.Value) (value.Value, error) {
	hay, needle := args[0], args[1]
	if seq, ok := hay.(value.Sequence); ok {
		for _, e := range seq {
			if value.DeepEqual(e, needle) {
				return true, nil
			}
		}
		return false, nil
	}
	if hs, ok := hay.(string); ok {
		if ns, ok := needle.(string); ok {
			return strings.Contains(hs, ns), nil
		}
	}
	return false, nil
}

func builtinContainsAny(args []value.Value) (value.Value, error) {
	hay, ok1 := args[0].(value.Sequence)
	needles, ok2 := args[1].(value.Sequence)
	if !ok1 || !ok2 {
		return false, nil
	}
	for _, n := range needles {
		for _, h := range hay {
			if value.DeepEqual(h, n) {
				return true, nil
			}
		}
	}
	return false, nil
}

func builtinStartsWith(args []value.Value) (value.Value, error) {
	s, ok1 := args[0].(string)
	prefix, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return false, nil
	}
	return strings.HasPrefix(s, prefix), nil
}

func builtinEndsWith(args []value.Value) (value.Value, error) {
	s, ok1 := args[0].(string)
	suffix, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return false, nil
	}
	return strings.HasSuffix(s, suffix), nil
}

// regexCache memoizes compiled patterns across calls within a process;
// compilation failure is never cached since the caller may retry with the
// same literal pattern embedded in a different policy context.
var regexCache sync.Map

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("regex compilation failed for %q: %w", pattern, err)
	}
	regexCache.Store(pattern, re)
	return re, nil
}

func builtinMatches(args []value.Value) (value.Value, error) {
	s, ok1 := args[0].(string)
	pat, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return false, nil
	}
	re, err := compileRegex(pat)
	if err != nil {
		return nil, err
	}
	return re.MatchString(s), nil
}

func builtinRegexReplace(args []value.Value) (value.Value, error) {
	s, ok1 := args[0].(string)
	pat, ok2 := args[1].(string)
	repl, ok3 := args[2].(string)
	if !ok1 || !ok2 || !ok3 {
		return args[0], nil
	}
	re, err := compileRegex(pat)
	if err != nil {
		return nil, err
	}
	return re.ReplaceAllString(s, repl), nil
}

func builtinCoalesce(args []value.Value) (value.Value, error) {
	for _, a := range args {
		if value.IsNullish(a) {
			continue
		}
		if seq, ok := a.(value.Sequence); ok && len(seq) == 0 {
			continue
		}
		return a, nil
	}
	return value.Undefined, nil
}

func builtinJoin(args []value.Value) (value.Value, error) {
	sep, ok := args[1].(string)
	if !ok {
		sep = value.ToDisplayString(args[1])
	}
	seq, ok := args[0].(value.Sequence)
	if !ok {
		if s, ok := args[0].(string); ok {
			return s, nil
		}
		return "", nil
	}
	parts := make([]string, len(seq))
	for i, e := range seq {
		parts[i] = value.ToDisplayString(e)
	}
	return strings.Join(parts, sep), nil
}

func builtinSplit(args []value.Value) (value.Value, error) {
	s, ok1 := args[0].(string)
	sep, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return value.Sequence{}, nil
	}
	parts := strings.Split(s, sep)
	out := make(value.Sequence, len(parts))
	for i, p := range parts {
		out[i] = p
	}
	return out, nil
}
