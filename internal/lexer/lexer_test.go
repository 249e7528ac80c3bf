package lexer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SourceRegistry/cel-lite/internal/lexer"
	"github.com/SourceRegistry/cel-lite/internal/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	lx := lexer.New(src)
	var toks []token.Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks
}

func TestLexer_Punctuation(t *testing.T) {
	t.Parallel()

	toks := scanAll(t, "(a)[0].b,?:+")
	kinds := make([]token.Kind, len(toks))
	for i, tk := range toks {
		kinds[i] = tk.Kind
	}
	assert.Equal(t, []token.Kind{
		token.LPAREN, token.IDENT, token.RPAREN, token.LBRACK, token.NUMBER,
		token.RBRACK, token.DOT, token.IDENT, token.COMMA, token.QUESTION,
		token.COLON, token.PLUS, token.EOF,
	}, kinds)
}

func TestLexer_TwoCharOperators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		kind token.Kind
	}{
		{"&&", token.AND},
		{"||", token.OR},
		{"==", token.EQ},
		{"!=", token.NEQ},
		{"<=", token.LTE},
		{">=", token.GTE},
		{"!", token.BANG},
		{"<", token.LT},
		{">", token.GT},
	}
	for _, tt := range tests {
		toks := scanAll(t, tt.src)
		require.Len(t, toks, 2)
		assert.Equal(t, tt.kind, toks[0].Kind, tt.src)
	}
}

func TestLexer_StringEscapes(t *testing.T) {
	t.Parallel()

	toks := scanAll(t, `'a\nb\t\\\'c'`)
	require.Len(t, toks, 2)
	assert.Equal(t, "a\nb\t\\'c", toks[0].Literal)
}

func TestLexer_StringInvalidEscape(t *testing.T) {
	t.Parallel()

	lx := lexer.New(`'a\qb'`)
	_, err := lx.Next()
	require.Error(t, err)
	var lexErr *lexer.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 2, lexErr.Pos)
}

func TestLexer_UnterminatedString(t *testing.T) {
	t.Parallel()

	lx := lexer.New(`'abc`)
	_, err := lx.Next()
	require.Error(t, err)
	var lexErr *lexer.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 0, lexErr.Pos)
}

func TestLexer_Numbers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want float64
	}{
		{"0", 0},
		{"42", 42},
		{"3.14", 3.14},
		{"-5", -5},
		{"-5.25", -5.25},
	}
	for _, tt := range tests {
		toks := scanAll(t, tt.src)
		require.Len(t, toks, 2)
		assert.Equal(t, token.NUMBER, toks[0].Kind, tt.src)
		assert.Equal(t, tt.want, toks[0].Literal, tt.src)
	}
}

func TestLexer_MinusOnlyBeforeDigit(t *testing.T) {
	t.Parallel()

	// '-' not immediately followed by a digit is not part of a number —
	// and is not a standalone operator either, so it is a lex error.
	_, err := lexer.New("-x").Next()
	require.Error(t, err)
}

func TestLexer_Keywords(t *testing.T) {
	t.Parallel()

	toks := scanAll(t, "true false null in nope")
	require.Len(t, toks, 6)
	assert.Equal(t, token.TRUE, toks[0].Kind)
	assert.Equal(t, true, toks[0].Literal)
	assert.Equal(t, token.FALSE, toks[1].Kind)
	assert.Equal(t, false, toks[1].Literal)
	assert.Equal(t, token.NULL, toks[2].Kind)
	assert.Nil(t, toks[2].Literal)
	assert.Equal(t, token.IN, toks[3].Kind)
	assert.Equal(t, token.IDENT, toks[4].Kind)
}

func TestLexer_InvalidCharacter(t *testing.T) {
	t.Parallel()

	_, err := lexer.New("@").Next()
	require.Error(t, err)
	var lexErr *lexer.Error
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 0, lexErr.Pos)
}

func TestLexer_Whitespace(t *testing.T) {
	t.Parallel()

	toks := scanAll(t, " \t\r\na \t ")
	require.Len(t, toks, 2)
	assert.Equal(t, token.IDENT, toks[0].Kind)
	assert.Equal(t, 4, toks[0].Pos)
}
