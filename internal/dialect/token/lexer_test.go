package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeSimpleSelect(t *testing.T) {
	items := Tokenize("SELECT id, name FROM users WHERE id = 1")
	var types []Token
	for _, it := range items {
		types = append(types, it.Type)
	}
	require.Equal(t, []Token{
		SELECT, IDENT, COMMA, IDENT, FROM, IDENT, WHERE, IDENT, EQ, INT, EOF,
	}, types)
}

func TestTokenizeStringLiteralWithEscapedQuote(t *testing.T) {
	items := Tokenize(`WHERE name = 'O''Brien'`)
	require.Equal(t, STRING, items[2].Type)
	require.Equal(t, "O'Brien", items[2].Value)
}

func TestTokenizeQuotedIdentifierStyles(t *testing.T) {
	for _, src := range []string{`"col"`, "`col`", "[col]"} {
		items := Tokenize(src)
		require.Equal(t, IDENT, items[0].Type, src)
		require.Equal(t, "col", items[0].Value, src)
	}
}

func TestTokenizeParamsForms(t *testing.T) {
	cases := map[string]string{
		"?":     "?",
		"$1":    "$1",
		":name": ":name",
	}
	for src, want := range cases {
		items := Tokenize(src)
		require.Equal(t, PARAM, items[0].Type, src)
		require.Equal(t, want, items[0].Value, src)
	}
}

func TestTokenizeSkipsComments(t *testing.T) {
	items := Tokenize("SELECT 1 -- trailing comment\nFROM /* block */ t")
	var types []Token
	for _, it := range items {
		types = append(types, it.Type)
	}
	require.Equal(t, []Token{SELECT, INT, FROM, IDENT, EOF}, types)
}

func TestTokenizeMultiCharOperators(t *testing.T) {
	items := Tokenize("a <> b OR a != b OR a || b OR a <= b OR a >= b")
	var neqCount, concatCount int
	for _, it := range items {
		if it.Type == NEQ {
			neqCount++
		}
		if it.Type == CONCAT {
			concatCount++
		}
	}
	require.Equal(t, 2, neqCount)
	require.Equal(t, 1, concatCount)
}

func TestKeywordLookupIsCaseInsensitive(t *testing.T) {
	for _, s := range []string{"select", "SELECT", "Select"} {
		tok, ok := Lookup(s)
		require.True(t, ok)
		require.Equal(t, SELECT, tok)
	}
	_, ok := Lookup("widgets")
	require.False(t, ok)
}

func TestTokenClassificationHelpers(t *testing.T) {
	require.True(t, STRING.IsLiteral())
	require.False(t, SELECT.IsLiteral())
	require.True(t, PLUS.IsOperator())
	require.False(t, SELECT.IsOperator())
	require.True(t, SELECT.IsKeyword())
	require.False(t, IDENT.IsKeyword())
}
