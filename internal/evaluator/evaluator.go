// Package evaluator implements CEL-lite's tree-walking evaluator: a
// single-threaded, depth-first walk with short-circuit `&&`/`||`, safe
// property/index access (poison-key filtering, no throw on missing
// prefixes), the closed function allow-list, call-depth bounding, and an
// optional bounded post-order trace.
//
// The compile-once/evaluate-many split here mirrors the Engine /
// CompiledExpression facade stacklok-toolhive-core's cel package wraps
// around google/cel-go; this package instead walks a hand-rolled AST.
package evaluator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SourceRegistry/cel-lite/internal/ast"
	"github.com/SourceRegistry/cel-lite/internal/functions"
	"github.com/SourceRegistry/cel-lite/internal/value"
)

// Sentinel evaluation-time errors, per spec §7.
var (
	ErrMaxCallDepth      = errors.New("Max call depth exceeded")
	ErrInvalidCallTarget = errors.New("Invalid function call target")
	ErrUnknownOperator   = errors.New("Unknown binary operator")
)

// Entry is one post-order trace record.
type Entry struct {
	ID    int
	Kind  string
	Expr  string
	Value value.Value
}

// Options bounds a single evaluation.
type Options struct {
	MaxCallDepth    int
	MaxTraceEntries int
}

// Result is what Eval produces: the computed value and, if tracing was
// requested, the (possibly truncated) post-order trace.
type Result struct {
	Value value.Value
	Trace []Entry
}

type state struct {
	ctx      value.Mapping
	opts     Options
	depth    int
	tracing  bool
	trace    []Entry
}

// Eval walks root against ctx (already normalized into value.Mapping) and
// returns the resulting value. tracing enables post-order Entry recording
// bounded by opts.MaxTraceEntries.
func Eval(root ast.Node, ctx value.Mapping, opts Options, tracing bool) (Result, error) {
	s := &state{ctx: ctx, opts: opts, tracing: tracing}
	v, err := s.eval(root)
	if err != nil {
		return Result{Trace: s.trace}, err
	}
	return Result{Value: v, Trace: s.trace}, nil
}

func (s *state) record(n ast.Node, v value.Value) {
	if !s.tracing || len(s.trace) >= s.opts.MaxTraceEntries {
		return
	}
	s.trace = append(s.trace, Entry{ID: n.ID(), Kind: n.Kind(), Expr: ast.Pretty(n), Value: v})
}

func (s *state) eval(n ast.Node) (value.Value, error) {
	switch t := n.(type) {
	case *ast.Literal:
		s.record(n, t.Value)
		return t.Value, nil

	case *ast.Identifier:
		v := s.lookup(t.Name)
		s.record(n, v)
		return v, nil

	case *ast.Member:
		v, err := s.evalMember(t)
		if err != nil {
			return nil, err
		}
		s.record(n, v)
		return v, nil

	case *ast.Index:
		v, err := s.evalIndex(t)
		if err != nil {
			return nil, err
		}
		s.record(n, v)
		return v, nil

	case *ast.Unary:
		operand, err := s.eval(t.Operand)
		if err != nil {
			return nil, err
		}
		v := !value.Truthy(operand)
		s.record(n, v)
		return v, nil

	case *ast.Binary:
		v, err := s.evalBinary(t)
		if err != nil {
			return nil, err
		}
		s.record(n, v)
		return v, nil

	case *ast.Array:
		elems := make(value.Sequence, len(t.Elements))
		for i, e := range t.Elements {
			v, err := s.eval(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		s.record(n, elems)
		return elems, nil

	case *ast.Ternary:
		cond, err := s.eval(t.Cond)
		if err != nil {
			return nil, err
		}
		var v value.Value
		if value.Truthy(cond) {
			v, err = s.eval(t.Then)
		} else {
			v, err = s.eval(t.Else)
		}
		if err != nil {
			return nil, err
		}
		s.record(n, v)
		return v, nil

	case *ast.Call:
		v, err := s.evalCall(t)
		if err != nil {
			return nil, err
		}
		s.record(n, v)
		return v, nil

	default:
		return nil, fmt.Errorf("internal error: unhandled AST node kind %T", n)
	}
}

func (s *state) lookup(name string) value.Value {
	if s.ctx == nil {
		return value.Undefined
	}
	if v, ok := s.ctx[name]; ok {
		return v
	}
	return value.Undefined
}

func (s *state) evalMember(t *ast.Member) (value.Value, error) {
	obj, err := s.eval(t.Object)
	if err != nil {
		return nil, err
	}
	if value.IsNullish(obj) {
		return value.Undefined, nil
	}
	if value.PoisonKeys[t.Property] {
		return value.Undefined, nil
	}
	m, ok := obj.(value.Mapping)
	if !ok {
		return value.Undefined, nil
	}
	if v, present := m[t.Property]; present {
		return v, nil
	}
	return value.Undefined, nil
}

func (s *state) evalIndex(t *ast.Index) (value.Value, error) {
	obj, err := s.eval(t.Object)
	if err != nil {
		return nil, err
	}
	if value.IsNullish(obj) {
		return value.Undefined, nil
	}
	idx, err := s.eval(t.Index)
	if err != nil {
		return nil, err
	}
	switch k := idx.(type) {
	case float64:
		seq, ok := obj.(value.Sequence)
		if !ok {
			return value.Undefined, nil
		}
		i := int(k)
		if float64(i) != k || i < 0 || i >= len(seq) {
			return value.Undefined, nil
		}
		return seq[i], nil
	case string:
		if value.PoisonKeys[k] {
			return value.Undefined, nil
		}
		m, ok := obj.(value.Mapping)
		if !ok {
			return value.Undefined, nil
		}
		if v, present := m[k]; present {
			return v, nil
		}
		return value.Undefined, nil
	default:
		return value.Undefined, nil
	}
}

func (s *state) evalBinary(t *ast.Binary) (value.Value, error) {
	switch t.Op {
	case ast.OpAnd:
		left, err := s.eval(t.Left)
		if err != nil {
			return nil, err
		}
		if !value.Truthy(left) {
			return false, nil
		}
		right, err := s.eval(t.Right)
		if err != nil {
			return nil, err
		}
		return value.Truthy(right), nil

	case ast.OpOr:
		left, err := s.eval(t.Left)
		if err != nil {
			return nil, err
		}
		if value.Truthy(left) {
			return true, nil
		}
		right, err := s.eval(t.Right)
		if err != nil {
			return nil, err
		}
		return value.Truthy(right), nil

	case ast.OpEq, ast.OpNeq:
		left, right, err := s.evalBoth(t)
		if err != nil {
			return nil, err
		}
		eq := value.DeepEqual(left, right)
		if t.Op == ast.OpNeq {
			return !eq, nil
		}
		return eq, nil

	case ast.OpIn:
		left, right, err := s.evalBoth(t)
		if err != nil {
			return nil, err
		}
		return inOp(left, right), nil

	case ast.OpLt, ast.OpLte, ast.OpGt, ast.OpGte:
		left, right, err := s.evalBoth(t)
		if err != nil {
			return nil, err
		}
		ln, rn := value.ToNumber(left), value.ToNumber(right)
		switch t.Op {
		case ast.OpLt:
			return ln < rn, nil
		case ast.OpLte:
			return ln <= rn, nil
		case ast.OpGt:
			return ln > rn, nil
		default:
			return ln >= rn, nil
		}

	case ast.OpAdd:
		left, right, err := s.evalBoth(t)
		if err != nil {
			return nil, err
		}
		return value.Add(left, right), nil

	default:
		return nil, ErrUnknownOperator
	}
}

func (s *state) evalBoth(t *ast.Binary) (value.Value, value.Value, error) {
	left, err := s.eval(t.Left)
	if err != nil {
		return nil, nil, err
	}
	right, err := s.eval(t.Right)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func inOp(left, right value.Value) bool {
	switch r := right.(type) {
	case value.Sequence:
		for _, e := range r {
			if value.DeepEqual(left, e) {
				return true
			}
		}
		return false
	case string:
		ls, ok := left.(string)
		if !ok {
			return false
		}
		return strings.Contains(r, ls)
	case value.Mapping:
		ls, ok := left.(string)
		if !ok {
			return false
		}
		_, present := r[ls]
		return present
	default:
		return false
	}
}

func (s *state) evalCall(t *ast.Call) (value.Value, error) {
	s.depth++
	defer func() { s.depth-- }()
	if s.depth > s.opts.MaxCallDepth {
		return nil, ErrMaxCallDepth
	}

	var name string
	switch callee := t.Callee.(type) {
	case *ast.Identifier:
		name = callee.Name
	case *ast.Member:
		// Member-access calls dispatch by property name only; the
		// receiver is never evaluated — CEL-lite has no method dispatch.
		name = callee.Property
	default:
		return nil, ErrInvalidCallTarget
	}

	args := make([]value.Value, len(t.Args))
	for i, a := range t.Args {
		v, err := s.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if !functions.Allowed(name) {
		return nil, fmt.Errorf("Function not allowed: %s", name)
	}
	return functions.Call(name, args)
}
