package evaluator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SourceRegistry/cel-lite/internal/evaluator"
	"github.com/SourceRegistry/cel-lite/internal/parser"
	"github.com/SourceRegistry/cel-lite/internal/value"
)

func mustEval(t *testing.T, src string, ctx value.Mapping, opts evaluator.Options, tracing bool) evaluator.Result {
	t.Helper()
	root, _, err := parser.Parse(src, 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, ctx, opts, tracing)
	require.NoError(t, err)
	return res
}

func defaultOpts() evaluator.Options {
	return evaluator.Options{MaxCallDepth: 50, MaxTraceEntries: 5000}
}

func TestEval_ShortCircuitOr(t *testing.T) {
	t.Parallel()

	// nope() would be "Function not allowed" if evaluated.
	root, _, err := parser.Parse("true || nope(1)", 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, nil, defaultOpts(), false)
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
}

func TestEval_ShortCircuitAnd(t *testing.T) {
	t.Parallel()

	root, _, err := parser.Parse("false && nope(1)", 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, nil, defaultOpts(), false)
	require.NoError(t, err)
	assert.Equal(t, false, res.Value)
}

func TestEval_TernaryNested(t *testing.T) {
	t.Parallel()

	res := mustEval(t, "true ? false ? 'x' : 'y' : 'z'", nil, defaultOpts(), false)
	assert.Equal(t, "y", res.Value)
}

func TestEval_MemberAccessMissingPrefix(t *testing.T) {
	t.Parallel()

	res := mustEval(t, "a.b.c", value.Mapping{}, defaultOpts(), false)
	assert.True(t, value.IsUndefined(res.Value))
}

func TestEval_PoisonKeys(t *testing.T) {
	t.Parallel()

	ctx := value.Mapping{"obj": value.Mapping{"__proto__": value.Mapping{"hacked": true}}}
	for _, expr := range []string{
		"obj.__proto__", "obj.constructor", "obj.prototype",
		`obj["__proto__"]`, `obj["constructor"]`, `obj["prototype"]`,
	} {
		res := mustEval(t, expr, ctx, defaultOpts(), false)
		assert.True(t, value.IsUndefined(res.Value), expr)
	}
}

func TestEval_IndexOutOfRange(t *testing.T) {
	t.Parallel()

	ctx := value.Mapping{"a": value.Sequence{1.0, 2.0}}
	res := mustEval(t, "a[5]", ctx, defaultOpts(), false)
	assert.True(t, value.IsUndefined(res.Value))
}

func TestEval_InOperator(t *testing.T) {
	t.Parallel()

	ctx := value.Mapping{"affiliations": value.Sequence{"member", "student"}}
	res := mustEval(t, "'student' in affiliations", ctx, defaultOpts(), false)
	assert.Equal(t, true, res.Value)
}

func TestEval_MaxCallDepthExceeded(t *testing.T) {
	t.Parallel()

	src := repeat("lower(", 60) + "'x'" + repeat(")", 60)
	root, _, err := parser.Parse(src, 0)
	require.NoError(t, err)
	_, err = evaluator.Eval(root, nil, evaluator.Options{MaxCallDepth: 20, MaxTraceEntries: 5000}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluator.ErrMaxCallDepth)
}

func repeat(s string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += s
	}
	return out
}

func TestEval_InvalidCallTarget(t *testing.T) {
	t.Parallel()

	// f()() — the outer call's callee is a Call node, not an Identifier
	// or Member, so the parser accepts it but evaluation rejects it.
	root, _, err := parser.Parse("collect()()", 0)
	require.NoError(t, err)
	_, err = evaluator.Eval(root, nil, defaultOpts(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluator.ErrInvalidCallTarget)
}

func TestEval_MemberCallIgnoresReceiver(t *testing.T) {
	t.Parallel()

	// obj.lower('X') dispatches to the builtin "lower" by name; the
	// receiver "obj" is never looked up or evaluated.
	root, _, err := parser.Parse("obj.lower('X')", 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, value.Mapping{}, defaultOpts(), false)
	require.NoError(t, err)
	assert.Equal(t, "x", res.Value)
}

func TestEval_TraceIsPostOrder(t *testing.T) {
	t.Parallel()

	root, _, err := parser.Parse("a + b", 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, value.Mapping{"a": 1.0, "b": 2.0}, defaultOpts(), true)
	require.NoError(t, err)
	require.Len(t, res.Trace, 3)
	assert.Equal(t, "a", res.Trace[0].Expr)
	assert.Equal(t, "b", res.Trace[1].Expr)
	assert.Equal(t, "(a + b)", res.Trace[2].Expr)
	assert.Equal(t, 3.0, res.Trace[2].Value)
}

func TestEval_TraceSkipsShortCircuitedBranch(t *testing.T) {
	t.Parallel()

	root, _, err := parser.Parse("true || nope(1)", 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, nil, defaultOpts(), true)
	require.NoError(t, err)
	// Only the left literal and the enclosing binary are recorded; the
	// binary's pretty form still spells out its unevaluated right operand.
	require.Len(t, res.Trace, 2)
	assert.Equal(t, "true", res.Trace[0].Expr)
	assert.Equal(t, "(true || nope(1))", res.Trace[1].Expr)
	for _, e := range res.Trace {
		assert.NotEqual(t, "call", e.Kind)
	}
}

func TestEval_TraceBounded(t *testing.T) {
	t.Parallel()

	src := "a"
	for i := 0; i < 20; i++ {
		src += " + a"
	}
	root, _, err := parser.Parse(src, 0)
	require.NoError(t, err)
	res, err := evaluator.Eval(root, value.Mapping{"a": 1.0}, evaluator.Options{MaxCallDepth: 50, MaxTraceEntries: 5}, true)
	require.NoError(t, err)
	assert.Len(t, res.Trace, 5)
	assert.Equal(t, 21.0, res.Value)
}

func TestEval_RelationalWithNaNIsAlwaysFalse(t *testing.T) {
	t.Parallel()

	ctx := value.Mapping{"a": "not a number"}
	for _, op := range []string{"<", "<=", ">", ">="} {
		res := mustEval(t, "a "+op+" a", ctx, defaultOpts(), false)
		assert.Equal(t, false, res.Value, op)
	}
}
