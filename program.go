// Package cellite implements CEL-lite, a compact sandboxed expression
// language for identity-provider attribute mapping, group-assignment
// rules, and policy preconditions: compile administrator-authored source
// once, then evaluate it against a read-only context map as many times as
// needed, optionally with a step-by-step trace.
package cellite

import (
	"github.com/SourceRegistry/cel-lite/internal/ast"
	"github.com/SourceRegistry/cel-lite/internal/evaluator"
	"github.com/SourceRegistry/cel-lite/internal/lexer"
	"github.com/SourceRegistry/cel-lite/internal/parser"
	"github.com/SourceRegistry/cel-lite/internal/value"
)

// Value is any CEL-lite runtime value: nil, bool, float64, string,
// Sequence, or Mapping.
type Value = value.Value

// Sequence is an ordered list of Values.
type Sequence = value.Sequence

// Mapping is a string-keyed lookup of Values.
type Mapping = value.Mapping

// Undefined is the distinguished "absent" value returned by accessors for
// missing properties, out-of-range indices, and poisoned keys. It is
// distinct from nil (explicit null).
var Undefined = value.Undefined

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v Value) bool { return value.IsUndefined(v) }

// Entry is one post-order trace record produced by Program.Explain.
type Entry = evaluator.Entry

// ExplainResult is what Program.Explain returns: the evaluated result and
// the trace recorded while producing it.
type ExplainResult struct {
	Result Value
	Trace  []Entry
}

// Program holds a compiled expression: its original source (for
// diagnostics), its parsed AST, and the resolved option set it was
// compiled with.
type Program struct {
	source string
	root   ast.Node
	nodes  int
	opts   Options
}

// Compile parses source into a Program. opts, if given, is merged against
// DefaultOptions (spec §4.6 step 1); only the first element of opts is
// used — it is variadic purely so Compile(source) works without an
// explicit Options{} argument.
//
// Returns an *Error of Kind KindTooLong if source exceeds
// MaxExpressionLength, KindLex/KindParse for lexical/syntactic errors, or
// KindTooComplex if the AST would exceed MaxAstNodes.
func Compile(source string, opts ...Options) (*Program, error) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	o = mergeOptions(o)

	if len(source) > o.MaxExpressionLength {
		return nil, newError(KindTooLong, ErrTooLong, nil, source,
			"source exceeds maxExpressionLength")
	}

	root, nodes, err := parser.Parse(source, o.MaxAstNodes)
	if err != nil {
		return nil, wrapCompileError(source, err)
	}

	return &Program{source: source, root: root, nodes: nodes, opts: o}, nil
}

func wrapCompileError(source string, err error) error {
	switch e := err.(type) {
	case *lexer.Error:
		return newError(KindLex, ErrLex, offsetOf(e.Pos), source, e.Message)
	case *parser.Error:
		return newError(KindParse, ErrParse, offsetOf(e.Pos), source, e.Message)
	case *parser.TooComplexError:
		return newError(KindTooComplex, ErrTooComplex, nil, source, e.Error())
	default:
		return newError(KindParse, ErrParse, nil, source, err.Error())
	}
}

// Source returns the exact string Compile was called with.
func (p *Program) Source() string { return p.source }

// NodeCount returns the total number of AST nodes the compiled expression
// produced (always <= the MaxAstNodes it was compiled with).
func (p *Program) NodeCount() int { return p.nodes }

// Options returns the resolved (post-merge) option set this Program was
// compiled with.
func (p *Program) Options() Options { return p.opts }

// Eval evaluates the compiled expression against ctx and returns the
// resulting value. ctx is read-only from the evaluator's perspective; it
// is never mutated.
//
// Returns an *Error of Kind KindMaxCallDepth, KindFunctionNotAllowed,
// KindInvalidCallTarget, KindRegexCompile, or KindUnknownOperator per
// spec §7; all other situations (missing keys, wrong-typed builtin
// arguments, indexing null, ...) are not errors and instead surface as
// Undefined, false, zero, or a documented pass-through value.
func (p *Program) Eval(ctx map[string]any) (Value, error) {
	mctx := value.NormalizeContext(ctx)
	res, err := evaluator.Eval(p.root, mctx, evaluator.Options{
		MaxCallDepth:    p.opts.MaxCallDepth,
		MaxTraceEntries: 0,
	}, false)
	if err != nil {
		return nil, wrapEvalError(err)
	}
	return res.Value, nil
}

// Explain evaluates the compiled expression against ctx exactly as Eval
// does, but additionally records a bounded, post-order trace of every
// node actually visited (short-circuited branches are never recorded).
// Property #2 of spec §8 holds: ExplainResult.Result deep-equals what Eval
// would return for the same Program and ctx.
func (p *Program) Explain(ctx map[string]any) (ExplainResult, error) {
	mctx := value.NormalizeContext(ctx)
	res, err := evaluator.Eval(p.root, mctx, evaluator.Options{
		MaxCallDepth:    p.opts.MaxCallDepth,
		MaxTraceEntries: p.opts.MaxTraceEntries,
	}, true)
	out := ExplainResult{Result: res.Value, Trace: res.Trace}
	if err != nil {
		return out, wrapEvalError(err)
	}
	return out, nil
}
