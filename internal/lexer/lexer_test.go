package lexer

import (
	"testing"

	"vonktaal/internal/token"
)

func TestNextToken(t *testing.T) {
	input := `laat vyf = 5
laat tien = 10

funksie voeg(x, y) {
  gee x + y
}

laat resultaat = voeg(vyf, tien)
!-/*5
5 < 10 > 5

laat m = gee waar as (5 < 10) anders vals

10 == 10
10 != 9
"foobar"
"foo bar"
[1, 2]
pas m { geval _ => 0 }
`

	tests := []struct {
		expectedType    token.TokenType
		expectedLiteral string
	}{
		{token.LAAT, "laat"},
		{token.IDENTIFIER, "vyf"},
		{token.ASSIGN, "="},
		{token.NUMBER, "5"},
		{token.LAAT, "laat"},
		{token.IDENTIFIER, "tien"},
		{token.ASSIGN, "="},
		{token.NUMBER, "10"},
		{token.FUNKSIE, "funksie"},
		{token.IDENTIFIER, "voeg"},
		{token.LPAREN, "("},
		{token.IDENTIFIER, "x"},
		{token.COMMA, ","},
		{token.IDENTIFIER, "y"},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.GEE, "gee"},
		{token.IDENTIFIER, "x"},
		{token.PLUS, "+"},
		{token.IDENTIFIER, "y"},
		{token.RBRACE, "}"},
		{token.LAAT, "laat"},
		{token.IDENTIFIER, "resultaat"},
		{token.ASSIGN, "="},
		{token.IDENTIFIER, "voeg"},
		{token.LPAREN, "("},
		{token.IDENTIFIER, "vyf"},
		{token.COMMA, ","},
		{token.IDENTIFIER, "tien"},
		{token.RPAREN, ")"},
		{token.NOT, "!"},
		{token.MINUS, "-"},
		{token.SLASH, "/"},
		{token.STAR, "*"},
		{token.NUMBER, "5"},
		{token.NUMBER, "5"},
		{token.LT, "<"},
		{token.NUMBER, "10"},
		{token.GT, ">"},
		{token.NUMBER, "5"},
		{token.LAAT, "laat"},
		{token.IDENTIFIER, "m"},
		{token.ASSIGN, "="},
		{token.GEE, "gee"},
		{token.WAAR, "waar"},
		{token.AS, "as"},
		{token.LPAREN, "("},
		{token.NUMBER, "5"},
		{token.LT, "<"},
		{token.NUMBER, "10"},
		{token.RPAREN, ")"},
		{token.ANDERS, "anders"},
		{token.VALS, "vals"},
		{token.NUMBER, "10"},
		{token.EQ, "=="},
		{token.NUMBER, "10"},
		{token.NUMBER, "10"},
		{token.NEQ, "!="},
		{token.NUMBER, "9"},
		{token.STRING, "foobar"},
		{token.STRING, "foo bar"},
		{token.LBRACKET, "["},
		{token.NUMBER, "1"},
		{token.COMMA, ","},
		{token.NUMBER, "2"},
		{token.RBRACKET, "]"},
		{token.PAS, "pas"},
		{token.IDENTIFIER, "m"},
		{token.LBRACE, "{"},
		{token.GEVAL, "geval"},
		{token.UNDERSCORE, "_"},
		{token.ARROW, "=>"},
		{token.NUMBER, "0"},
		{token.RBRACE, "}"},
		{token.EOF, ""},
	}

	l := New(input)

	for i, tt := range tests {
		tok := l.NextToken()

		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q (%q)",
				i, tt.expectedType, tok.Type, tok.Literal)
		}

		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q",
				i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestLexerTracksLineAndColumn(t *testing.T) {
	l := New("laat x = 1\nlaat y = 2")

	first := l.NextToken()
	if first.Line != 1 {
		t.Fatalf("expected first token on line 1, got %d", first.Line)
	}
	if first.Column != 1 {
		t.Fatalf("expected first token at column 1, got %d", first.Column)
	}

	for {
		tok := l.NextToken()
		if tok.Literal == "y" {
			if tok.Line != 2 {
				t.Fatalf("expected 'y' on line 2, got %d", tok.Line)
			}
			if tok.Column != 6 {
				t.Fatalf("expected 'y' at column 6, got %d", tok.Column)
			}
			break
		}
		if tok.Type == token.EOF {
			t.Fatal("ran out of tokens before finding 'y'")
		}
	}
}
