package hostjs

import "testing"

func kinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	l := NewLexer(src, "test.js")
	var out []TokenKind
	for {
		tok := l.Current()
		out = append(out, tok.Kind)
		if tok.Kind == TokEOF {
			return out
		}
		if err := l.Advance(); err != nil {
			t.Fatalf("Advance error: %v", err)
		}
	}
}

func wantKinds(t *testing.T, src string, want []TokenKind) {
	t.Helper()
	got := kinds(t, src)
	if len(got) != len(want) {
		t.Fatalf("source %q: got %d tokens %v, want %d %v", src, len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("source %q: token %d: got %v, want %v", src, i, got[i], want[i])
		}
	}
}

func TestLexerPunctuationAndKeywords(t *testing.T) {
	wantKinds(t, `var x = 1;`, []TokenKind{TokVar, TokIdentifier, TokAssign, TokLiteral, TokSemicolon, TokEOF})
}

func TestLexerOperators(t *testing.T) {
	wantKinds(t, `a === b !== c <<= 1 >>= 2 >>> 3`, []TokenKind{
		TokIdentifier, TokStrictEq, TokIdentifier, TokStrictNeq, TokIdentifier,
		TokShlEq, TokLiteral, TokShrEq, TokLiteral, TokUShr, TokLiteral, TokEOF,
	})
}

func TestLexerNumberLiteralPriority(t *testing.T) {
	tests := []struct {
		src     string
		want    interface{}
		wantErr bool
	}{
		{"0x1F", int64(31), false},
		{"3.14", 3.14, false},
		{"2e3", 2000.0, false},
		{"0755", int64(493), false},
		{"123", int64(123), false},
		{"089", nil, true}, // digit >= 8 in an octal-looking literal is a hard error
	}
	for _, tt := range tests {
		l := NewLexer(tt.src, "n.js")
		if tt.wantErr {
			if l.Err() == nil {
				t.Fatalf("%q: expected an error, got none", tt.src)
			}
			continue
		}
		if err := l.Err(); err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.src, err)
		}
		tok := l.Current()
		if tok.Kind != TokLiteral {
			t.Fatalf("%q: expected literal token, got %v", tt.src, tok.Kind)
		}
		if tok.Value != tt.want {
			t.Fatalf("%q: got %#v, want %#v", tt.src, tok.Value, tt.want)
		}
	}
}

func TestLexerOctalDigitEightIsError(t *testing.T) {
	l := &Lexer{src: &Source{Text: "089", File: "n.js"}}
	_, err := l.next()
	if err == nil {
		t.Fatalf("expected an error for octal literal with digit >= 8")
	}
	if _, ok := err.(*LexError); !ok {
		t.Fatalf("expected *LexError, got %T", err)
	}
}

func TestLexerDocComment(t *testing.T) {
	l := NewLexer("/** doc for x */ var x;", "d.js")
	if got := l.LastComment(); got != "doc for x" {
		t.Fatalf("got comment %q, want %q", got, "doc for x")
	}
	l.ClearLastComment()
	if got := l.LastComment(); got != "" {
		t.Fatalf("comment not cleared: %q", got)
	}
}

func TestLexerUnterminatedStringIsLexError(t *testing.T) {
	l := &Lexer{src: &Source{Text: `"abc`, File: "s.js"}}
	_, err := l.next()
	if _, ok := err.(*LexError); !ok {
		t.Fatalf("expected *LexError, got %#v", err)
	}
}
