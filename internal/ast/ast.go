// Package ast defines the CEL-lite abstract syntax tree: a tagged variant
// of expression node shapes, each carrying a stable per-program id and
// source position, plus a deterministic pretty-printer used by the
// evaluation tracer.
package ast

import (
	"strconv"
	"strings"
)

// BinaryOp is the closed set of binary operators.
type BinaryOp string

const (
	OpOr  BinaryOp = "||"
	OpAnd BinaryOp = "&&"
	OpEq  BinaryOp = "=="
	OpNeq BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLte BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGte BinaryOp = ">="
	OpAdd BinaryOp = "+"
	OpIn  BinaryOp = "in"
)

// Node is implemented by every AST node shape. ID is assigned in parse
// order and is stable for the lifetime of the compiled Program; Pos is the
// byte offset of the node's leading token.
type Node interface {
	ID() int
	Pos() int
	Kind() string
	isNode()
}

type base struct {
	id  int
	pos int
}

func (b base) ID() int    { return b.id }
func (b base) Pos() int   { return b.pos }
func (base) isNode()      {}

// Literal is a literal null, boolean, finite number, or string.
type Literal struct {
	base
	Value any // nil, bool, float64, or string
}

func (Literal) Kind() string { return "literal" }

// Identifier is a bare name resolved against the context.
type Identifier struct {
	base
	Name string
}

func (Identifier) Kind() string { return "identifier" }

// Member is `Object.Property`.
type Member struct {
	base
	Object   Node
	Property string
}

func (Member) Kind() string { return "member" }

// Index is `Object[Index]`.
type Index struct {
	base
	Object Node
	Index  Node
}

func (Index) Kind() string { return "index" }

// Call is `Callee(Args...)`; Callee is always an *Identifier or *Member.
type Call struct {
	base
	Callee Node
	Args   []Node
}

func (Call) Kind() string { return "call" }

// Unary is `!Operand`.
type Unary struct {
	base
	Operand Node
}

func (Unary) Kind() string { return "unary" }

// Binary is `Left Op Right`.
type Binary struct {
	base
	Op    BinaryOp
	Left  Node
	Right Node
}

func (Binary) Kind() string { return "binary" }

// Array is an ordered array literal.
type Array struct {
	base
	Elements []Node
}

func (Array) Kind() string { return "array" }

// Ternary is `Cond ? Then : Else`.
type Ternary struct {
	base
	Cond Node
	Then Node
	Else Node
}

func (Ternary) Kind() string { return "ternary" }

// Builder assigns sequential, stable ids to nodes as the parser produces
// them and enforces the maxAstNodes budget.
type Builder struct {
	nextID int
	max    int
}

// NewBuilder returns a Builder whose Exceeded reports true once more than
// max nodes have been built. max <= 0 means unlimited.
func NewBuilder(max int) *Builder {
	return &Builder{max: max}
}

// Count returns the number of nodes built so far.
func (b *Builder) Count() int { return b.nextID }

// Exceeded reports whether the node budget has been exceeded.
func (b *Builder) Exceeded() bool {
	return b.max > 0 && b.nextID > b.max
}

func (b *Builder) next(pos int) base {
	id := b.nextID
	b.nextID++
	return base{id: id, pos: pos}
}

func (b *Builder) NewLiteral(pos int, v any) *Literal {
	return &Literal{base: b.next(pos), Value: v}
}

func (b *Builder) NewIdentifier(pos int, name string) *Identifier {
	return &Identifier{base: b.next(pos), Name: name}
}

func (b *Builder) NewMember(pos int, obj Node, prop string) *Member {
	return &Member{base: b.next(pos), Object: obj, Property: prop}
}

func (b *Builder) NewIndex(pos int, obj, idx Node) *Index {
	return &Index{base: b.next(pos), Object: obj, Index: idx}
}

func (b *Builder) NewCall(pos int, callee Node, args []Node) *Call {
	return &Call{base: b.next(pos), Callee: callee, Args: args}
}

func (b *Builder) NewUnary(pos int, operand Node) *Unary {
	return &Unary{base: b.next(pos), Operand: operand}
}

func (b *Builder) NewBinary(pos int, op BinaryOp, left, right Node) *Binary {
	return &Binary{base: b.next(pos), Op: op, Left: left, Right: right}
}

func (b *Builder) NewArray(pos int, elems []Node) *Array {
	return &Array{base: b.next(pos), Elements: elems}
}

func (b *Builder) NewTernary(pos int, cond, then, els Node) *Ternary {
	return &Ternary{base: b.next(pos), Cond: cond, Then: then, Else: els}
}

// Pretty deterministically renders a node the way spec §4.5 requires for
// trace entries: JSON-quoted strings, decimal numbers, "obj.prop",
// "obj[index]", "[e1, e2]", "callee(a1, a2)", "!operand", "(left op
// right)", "(cond ? then : else)".
func Pretty(n Node) string {
	var sb strings.Builder
	writePretty(&sb, n)
	return sb.String()
}

func writePretty(sb *strings.Builder, n Node) {
	switch t := n.(type) {
	case *Literal:
		writeLiteral(sb, t.Value)
	case *Identifier:
		sb.WriteString(t.Name)
	case *Member:
		writePretty(sb, t.Object)
		sb.WriteByte('.')
		sb.WriteString(t.Property)
	case *Index:
		writePretty(sb, t.Object)
		sb.WriteByte('[')
		writePretty(sb, t.Index)
		sb.WriteByte(']')
	case *Call:
		writePretty(sb, t.Callee)
		sb.WriteByte('(')
		for i, a := range t.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writePretty(sb, a)
		}
		sb.WriteByte(')')
	case *Unary:
		sb.WriteByte('!')
		writePretty(sb, t.Operand)
	case *Binary:
		sb.WriteByte('(')
		writePretty(sb, t.Left)
		sb.WriteByte(' ')
		sb.WriteString(string(t.Op))
		sb.WriteByte(' ')
		writePretty(sb, t.Right)
		sb.WriteByte(')')
	case *Array:
		sb.WriteByte('[')
		for i, e := range t.Elements {
			if i > 0 {
				sb.WriteString(", ")
			}
			writePretty(sb, e)
		}
		sb.WriteByte(']')
	case *Ternary:
		sb.WriteByte('(')
		writePretty(sb, t.Cond)
		sb.WriteString(" ? ")
		writePretty(sb, t.Then)
		sb.WriteString(" : ")
		writePretty(sb, t.Else)
		sb.WriteByte(')')
	default:
		sb.WriteString("<?>")
	}
}

func writeLiteral(sb *strings.Builder, v any) {
	switch t := v.(type) {
	case nil:
		sb.WriteString("null")
	case bool:
		if t {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case float64:
		sb.WriteString(strconv.FormatFloat(t, 'f', -1, 64))
	case string:
		sb.WriteString(strconv.Quote(t))
	default:
		sb.WriteString("<?>")
	}
}
