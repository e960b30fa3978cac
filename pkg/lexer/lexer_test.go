package lexer

import "testing"

func TestNextTokenSimpleFunction(t *testing.T) {
	input := `fn main() -> i32 { return 1; }`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenFn, "fn"},
		{TokenIdent, "main"},
		{TokenLParen, "("},
		{TokenRParen, ")"},
		{TokenArrow, "->"},
		{TokenI32, "i32"},
		{TokenLBrace, "{"},
		{TokenReturn, "return"},
		{TokenInt, "1"},
		{TokenSemicolon, ";"},
		{TokenRBrace, "}"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestOperatorsAndRangeDot(t *testing.T) {
	input := `+ - * / = == != < <= > >= .. . ->`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenPlus, "+"},
		{TokenMinus, "-"},
		{TokenStar, "*"},
		{TokenSlash, "/"},
		{TokenAssign, "="},
		{TokenEq, "=="},
		{TokenNe, "!="},
		{TokenLt, "<"},
		{TokenLe, "<="},
		{TokenGt, ">"},
		{TokenGe, ">="},
		{TokenDotDot, ".."},
		{TokenDot, "."},
		{TokenArrow, "->"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	input := `let mut if else while for in loop break continue true false bool x1`

	tests := []struct {
		expectedType    TokenType
		expectedLiteral string
	}{
		{TokenLet, "let"},
		{TokenMut, "mut"},
		{TokenIf, "if"},
		{TokenElse, "else"},
		{TokenWhile, "while"},
		{TokenFor, "for"},
		{TokenIn, "in"},
		{TokenLoop, "loop"},
		{TokenBreak, "break"},
		{TokenContinue, "continue"},
		{TokenTrue, "true"},
		{TokenFalse, "false"},
		{TokenBool, "bool"},
		{TokenIdent, "x1"},
		{TokenEOF, ""},
	}

	l := New(input)
	for i, tt := range tests {
		tok := l.NextToken()
		if tok.Type != tt.expectedType {
			t.Fatalf("tests[%d] - tokentype wrong. expected=%q, got=%q", i, tt.expectedType, tok.Type)
		}
		if tok.Literal != tt.expectedLiteral {
			t.Fatalf("tests[%d] - literal wrong. expected=%q, got=%q", i, tt.expectedLiteral, tok.Literal)
		}
	}
}

func TestIllegalCharacter(t *testing.T) {
	l := New(`@`)
	tok := l.NextToken()
	if tok.Type != TokenIllegal || tok.Literal != "@" {
		t.Fatalf("got %+v, want ILLEGAL @", tok)
	}
}

func TestPositionTracksLineAndColumn(t *testing.T) {
	l := New("fn f\n() {}")
	_ = l.NextToken() // fn
	tok := l.NextToken() // f
	if tok.Line != 1 {
		t.Fatalf("line = %d, want 1", tok.Line)
	}
	tok = l.NextToken() // (
	if tok.Line != 2 {
		t.Fatalf("line = %d, want 2 after newline", tok.Line)
	}
}
