package lexer

import (
	"testing"

	"actionz80/internal/token"
)

func lexAll(t *testing.T, src string) []token.Token {
	t.Helper()
	l := New([]byte(src))
	var toks []token.Token
	for {
		tok, err := l.Next()
		if err != nil {
			t.Fatalf("lex error: %v", err)
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	return toks
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	tests := []struct {
		input string
		want  token.Type
	}{
		{"byte", token.BYTE},
		{"BYTE", token.BYTE},
		{"Byte", token.BYTE},
		{"proc", token.PROC},
		{"WHILE", token.WHILE},
		{"elseif", token.ELSEIF},
	}
	for _, tt := range tests {
		toks := lexAll(t, tt.input)
		if toks[0].Type != tt.want {
			t.Errorf("%q: got %v, want %v", tt.input, toks[0].Type, tt.want)
		}
	}
}

func TestIdentifierNotKeyword(t *testing.T) {
	toks := lexAll(t, "byteCount")
	if toks[0].Type != token.IDENT || toks[0].Lexeme != "byteCount" {
		t.Errorf("got %+v", toks[0])
	}
}

func TestIntegerLiterals(t *testing.T) {
	toks := lexAll(t, "12345 $FF $ff 0")
	want := []int32{12345, 255, 255, 0}
	var got []int32
	for _, tok := range toks {
		if tok.Type == token.INT {
			got = append(got, tok.IntVal)
		}
	}
	if len(got) != len(want) {
		t.Fatalf("got %d int tokens, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestIntegerOverflow(t *testing.T) {
	l := New([]byte("65536"))
	_, err := l.Next()
	if err == nil {
		t.Fatal("expected overflow error for 65536")
	}
}

func TestCharAndStringLiterals(t *testing.T) {
	toks := lexAll(t, `'a' "hello"`)
	if toks[0].Type != token.CHARLIT || toks[0].IntVal != int32('a') {
		t.Errorf("char literal: got %+v", toks[0])
	}
	if toks[1].Type != token.STRING || string(toks[1].Bytes) != "hello" {
		t.Errorf("string literal: got %+v", toks[1])
	}
}

func TestPunctuationPrecedence(t *testing.T) {
	tests := []struct {
		input string
		want  []token.Type
	}{
		{"<>", []token.Type{token.NOTEQ, token.EOF}},
		{"<=", []token.Type{token.LE, token.EOF}},
		{">=", []token.Type{token.GE, token.EOF}},
		{"< <= <> >", []token.Type{token.LT, token.LE, token.NOTEQ, token.GT, token.EOF}},
	}
	for _, tt := range tests {
		toks := lexAll(t, tt.input)
		if len(toks) != len(tt.want) {
			t.Fatalf("%q: got %d tokens, want %d", tt.input, len(toks), len(tt.want))
		}
		for i, tok := range toks {
			if tok.Type != tt.want[i] {
				t.Errorf("%q token %d: got %v, want %v", tt.input, i, tok.Type, tt.want[i])
			}
		}
	}
}

func TestCommentToEndOfLine(t *testing.T) {
	toks := lexAll(t, "BYTE x ; this is a comment\nCARD y")
	var types []token.Type
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	want := []token.Type{token.BYTE, token.IDENT, token.CARD, token.IDENT, token.EOF}
	if len(types) != len(want) {
		t.Fatalf("got %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("token %d: got %v want %v", i, types[i], want[i])
		}
	}
}

func TestUnrecognizedByte(t *testing.T) {
	l := New([]byte("BYTE x = #1"))
	for {
		tok, err := l.Next()
		if err != nil {
			return // expected
		}
		if tok.Type == token.EOF {
			t.Fatal("expected an unrecognized-byte error before EOF")
		}
	}
}

func TestLineTracking(t *testing.T) {
	toks := lexAll(t, "BYTE x\nCARD y")
	if toks[0].Line != 1 {
		t.Errorf("BYTE: got line %d, want 1", toks[0].Line)
	}
	// find CARD token
	for _, tok := range toks {
		if tok.Type == token.CARD {
			if tok.Line != 2 {
				t.Errorf("CARD: got line %d, want 2", tok.Line)
			}
			return
		}
	}
	t.Fatal("CARD token not found")
}
