// Package parser implements CEL-lite's recursive-descent parser: tokens to
// AST, precedence climbing from ternary (weakest) down to primary
// (strongest) per spec §4.2, with a node-count budget enforced as nodes
// are built.
package parser

import (
	"fmt"

	"github.com/SourceRegistry/cel-lite/internal/ast"
	"github.com/SourceRegistry/cel-lite/internal/lexer"
	"github.com/SourceRegistry/cel-lite/internal/token"
)

// Error is a parse-time error: an unexpected token (citing expected vs.
// actual kind and position), a missing ':' in a ternary, or a missing ')'
// or ']'. An AST-too-complex overflow is reported as TooComplexError.
type Error struct {
	Pos     int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (at byte %d)", e.Message, e.Pos)
}

// TooComplexError is raised when the AST node budget is exceeded mid-parse.
type TooComplexError struct {
	Max int
}

func (e *TooComplexError) Error() string {
	return fmt.Sprintf("expression too complex: exceeds %d AST nodes", e.Max)
}

type parser struct {
	toks    []token.Token
	pos     int
	builder *ast.Builder
	maxNode int
}

// Parse tokenizes and parses source, enforcing maxNodes (<=0 means
// unlimited). Returns the AST root and the total node count.
func Parse(source string, maxNodes int) (ast.Node, int, error) {
	lx := lexer.New(source)
	var toks []token.Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, 0, err
		}
		toks = append(toks, t)
		if t.Kind == token.EOF {
			break
		}
	}

	p := &parser{toks: toks, builder: ast.NewBuilder(maxNodes), maxNode: maxNodes}
	root, err := p.parseTernary()
	if err != nil {
		return nil, p.builder.Count(), err
	}
	if err := p.checkBudget(); err != nil {
		return nil, p.builder.Count(), err
	}
	if !p.at(token.EOF) {
		return nil, p.builder.Count(), p.unexpected(token.EOF)
	}
	return root, p.builder.Count(), nil
}

func (p *parser) checkBudget() error {
	if p.builder.Exceeded() {
		return &TooComplexError{Max: p.maxNode}
	}
	return nil
}

func (p *parser) cur() token.Token  { return p.toks[p.pos] }
func (p *parser) at(k token.Kind) bool { return p.cur().Kind == k }

func (p *parser) advance() token.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	if !p.at(k) {
		return token.Token{}, p.unexpected(k)
	}
	return p.advance(), nil
}

func (p *parser) unexpected(expected token.Kind) error {
	actual := p.cur()
	return &Error{
		Pos:     actual.Pos,
		Message: fmt.Sprintf("unexpected token: expected %s, got %s", expected, describeActual(actual)),
	}
}

func describeActual(t token.Token) string {
	if t.Kind == token.IDENT || t.Kind == token.NUMBER || t.Kind == token.STRING {
		return fmt.Sprintf("%s %q", t.Kind, t.Text)
	}
	return t.Kind.String()
}

// parseTernary = or ("?" ternary ":" ternary)?  -- right-associative.
func (p *parser) parseTernary() (ast.Node, error) {
	if err := p.checkBudget(); err != nil {
		return nil, err
	}
	cond, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.at(token.QUESTION) {
		pos := p.advance().Pos
		then, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if !p.at(token.COLON) {
			return nil, &Error{Pos: p.cur().Pos, Message: "missing ':' in ternary expression"}
		}
		p.advance()
		els, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return p.builder.NewTernary(pos, cond, then, els), nil
	}
	return cond, nil
}

func (p *parser) parseOr() (ast.Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.at(token.OR) {
		pos := p.advance().Pos
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = p.builder.NewBinary(pos, ast.OpOr, left, right)
		if err := p.checkBudget(); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.at(token.AND) {
		pos := p.advance().Pos
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = p.builder.NewBinary(pos, ast.OpAnd, left, right)
		if err := p.checkBudget(); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseEquality() (ast.Node, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for p.at(token.EQ) || p.at(token.NEQ) || p.at(token.IN) {
		tok := p.advance()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = p.builder.NewBinary(tok.Pos, opFor(tok.Kind), left, right)
		if err := p.checkBudget(); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseRelational() (ast.Node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.at(token.LT) || p.at(token.LTE) || p.at(token.GT) || p.at(token.GTE) {
		tok := p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = p.builder.NewBinary(tok.Pos, opFor(tok.Kind), left, right)
		if err := p.checkBudget(); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseAdditive() (ast.Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.at(token.PLUS) {
		pos := p.advance().Pos
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = p.builder.NewBinary(pos, ast.OpAdd, left, right)
		if err := p.checkBudget(); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *parser) parseUnary() (ast.Node, error) {
	if p.at(token.BANG) {
		pos := p.advance().Pos
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		n := p.builder.NewUnary(pos, operand)
		return n, p.checkBudget()
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(token.DOT):
			pos := p.advance().Pos
			nameTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			n = p.builder.NewMember(pos, n, nameTok.Text)
		case p.at(token.LBRACK):
			pos := p.advance().Pos
			idx, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RBRACK); err != nil {
				return nil, &Error{Pos: p.cur().Pos, Message: "missing ']'"}
			}
			n = p.builder.NewIndex(pos, n, idx)
		case p.at(token.LPAREN):
			pos := p.advance().Pos
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, &Error{Pos: p.cur().Pos, Message: "missing ')'"}
			}
			n = p.builder.NewCall(pos, n, args)
		default:
			return n, p.checkBudget()
		}
		if err := p.checkBudget(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) parseArgs() ([]ast.Node, error) {
	var args []ast.Node
	if p.at(token.RPAREN) {
		return args, nil
	}
	for {
		a, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.at(token.COMMA) {
			p.advance()
			continue
		}
		break
	}
	return args, nil
}

func (p *parser) parsePrimary() (ast.Node, error) {
	tok := p.cur()
	switch tok.Kind {
	case token.NUMBER:
		p.advance()
		return p.builder.NewLiteral(tok.Pos, tok.Literal), nil
	case token.STRING:
		p.advance()
		return p.builder.NewLiteral(tok.Pos, tok.Literal), nil
	case token.TRUE, token.FALSE, token.NULL:
		p.advance()
		return p.builder.NewLiteral(tok.Pos, tok.Literal), nil
	case token.IDENT:
		p.advance()
		return p.builder.NewIdentifier(tok.Pos, tok.Text), nil
	case token.LPAREN:
		p.advance()
		inner, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, &Error{Pos: p.cur().Pos, Message: "missing ')'"}
		}
		return inner, nil
	case token.LBRACK:
		pos := p.advance().Pos
		var elems []ast.Node
		if !p.at(token.RBRACK) {
			var err error
			elems, err = p.parseArgs()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(token.RBRACK); err != nil {
			return nil, &Error{Pos: p.cur().Pos, Message: "missing ']'"}
		}
		return p.builder.NewArray(pos, elems), nil
	default:
		return nil, &Error{Pos: tok.Pos, Message: fmt.Sprintf("unexpected token: expected expression, got %s", describeActual(tok))}
	}
}

func opFor(k token.Kind) ast.BinaryOp {
	switch k {
	case token.EQ:
		return ast.OpEq
	case token.NEQ:
		return ast.OpNeq
	case token.IN:
		return ast.OpIn
	case token.LT:
		return ast.OpLt
	case token.LTE:
		return ast.OpLte
	case token.GT:
		return ast.OpGt
	case token.GTE:
		return ast.OpGte
	}
	panic("unreachable operator kind")
}
