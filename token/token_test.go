package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateToken(t *testing.T) {
	tests := []struct {
		name      string
		tokenType TokenType
		line, col int
		want      Token
	}{
		{
			name:      "assign token",
			tokenType: ASSIGN,
			line:      1, col: 5,
			want: Token{TokenType: ASSIGN, Lexeme: "=", Line: 1, Col: 5},
		},
		{
			name:      "keyword token",
			tokenType: KW_WHILE,
			line:      2, col: 1,
			want: Token{TokenType: KW_WHILE, Lexeme: "while", Line: 2, Col: 1},
		},
		{
			name:      "eof token has empty lexeme",
			tokenType: EOF,
			line:      3, col: 1,
			want: Token{TokenType: EOF, Lexeme: "", Line: 3, Col: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CreateToken(tt.tokenType, tt.line, tt.col)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestCreateLiteralToken(t *testing.T) {
	got := CreateLiteralToken(INT, int64(42), "42", 4, 2)
	require.Equal(t, Token{TokenType: INT, Lexeme: "42", Literal: int64(42), Line: 4, Col: 2}, got)

	got = CreateLiteralToken(IDENT, nil, "myVar", 1, 1)
	require.Equal(t, IDENT, got.TokenType)
	require.Equal(t, "myVar", got.Lexeme)
}

func TestKeyWordsTableCoversReservedWords(t *testing.T) {
	for _, word := range []string{"int", "bool", "void", "const", "if", "else",
		"while", "for", "break", "continue", "return", "true", "false",
		"print", "readInt"} {
		_, ok := KeyWords[word]
		require.Truef(t, ok, "expected %q to be a registered keyword", word)
	}
}
