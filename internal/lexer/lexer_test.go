package lexer

import (
	"strings"
	"testing"
)

func kindsAndTexts(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Kind.String() + ":" + t.Text
	}
	return out
}

func TestTokenizeBasic(t *testing.T) {
	src := `typedef struct { int a, b; } pair_t; // trailing
/* block */ char *p = "x;}{";`

	toks, errs := Tokenize([]byte(src))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	want := []string{
		"KEYWORD:typedef", "KEYWORD:struct", "PUNCTUATION:{", "KEYWORD:int",
		"IDENTIFIER:a", "PUNCTUATION:,", "IDENTIFIER:b", "PUNCTUATION:;",
		"PUNCTUATION:}", "IDENTIFIER:pair_t", "PUNCTUATION:;",
		"KEYWORD:char", "PUNCTUATION:*", "IDENTIFIER:p", "PUNCTUATION:=",
		`STRING:"x;}{"`, "PUNCTUATION:;",
	}
	got := kindsAndTexts(toks)
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Tokenize() =\n  %v\nwant\n  %v", got, want)
	}
	if toks[11].Line != 2 {
		t.Errorf("token %v line = %d, want 2", toks[11], toks[11].Line)
	}
}

func TestTokenizeLiterals(t *testing.T) {
	tests := []struct {
		src  string
		kind Kind
		text string
	}{
		{`'\''`, Char, `'\''`},
		{`"a\"b"`, String, `"a\"b"`},
		{`L"wide"`, String, `L"wide"`},
		{`u8"utf"`, String, `u8"utf"`},
		{`U'c'`, Char, `U'c'`},
		{`R"xy(a)"b)xy"`, String, `R"xy(a)"b)xy"`},
		{`0x1Fu`, Number, `0x1Fu`},
		{`1.5e-3f`, Number, `1.5e-3f`},
		{`.25`, Number, `.25`},
		{`1'000'000`, Number, `1'000'000`},
	}

	for _, tt := range tests {
		toks, errs := Tokenize([]byte(tt.src))
		if len(errs) != 0 {
			t.Errorf("Tokenize(%q) errors: %v", tt.src, errs)
			continue
		}
		if len(toks) != 1 {
			t.Errorf("Tokenize(%q) = %v, want one token", tt.src, toks)
			continue
		}
		if toks[0].Kind != tt.kind || toks[0].Text != tt.text {
			t.Errorf("Tokenize(%q) = %s:%s, want %s:%s", tt.src, toks[0].Kind, toks[0].Text, tt.kind, tt.text)
		}
	}
}

func TestTokenizePreprocessor(t *testing.T) {
	src := "#include \"a.h\" // why\n" +
		"  #  define MAX(a, b) \\\n    ((a) > (b) ? (a) : (b))\n" +
		"#if /* c */ FOO\nint x;\n#endif\n" +
		"int y = 1; # not a directive\n"

	toks, _ := Tokenize([]byte(src))

	var directives []string
	for _, tok := range toks {
		if tok.Kind == Preprocessor {
			directives = append(directives, tok.Text)
		}
	}
	want := []string{
		`#include "a.h"`,
		`# define MAX(a, b) ((a) > (b) ? (a) : (b))`,
		`#if FOO`,
		`#endif`,
	}
	if strings.Join(directives, "|") != strings.Join(want, "|") {
		t.Errorf("directives = %q, want %q", directives, want)
	}
}

func TestTokenizeUnterminated(t *testing.T) {
	tests := []struct {
		name string
		src  string
		last Kind
	}{
		{"string at eof", `char *s = "abc`, String},
		{"char at eof", `char c = 'a`, Char},
		{"comment at eof", "int x; /* never closed", Punct},
		{"raw string at eof", `auto s = R"(abc`, String},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, errs := Tokenize([]byte(tt.src))
			if len(errs) != 1 {
				t.Fatalf("expected one LexError, got %v", errs)
			}
			if len(toks) == 0 || toks[len(toks)-1].Kind != tt.last {
				t.Errorf("last token = %v, want kind %s", toks, tt.last)
			}
		})
	}
}

func TestStringProtectsBraceDepth(t *testing.T) {
	toks, _ := Tokenize([]byte(`void f(void) { puts("}"); }`))
	open := -1
	for i, tok := range toks {
		if tok.Is("{") {
			open = i
			break
		}
	}
	if got := Matching(toks, open); got != len(toks)-1 {
		t.Errorf("Matching() = %d, want %d", got, len(toks)-1)
	}
}

func TestSplitTopLevel(t *testing.T) {
	toks, _ := Tokenize([]byte(`*a, (*cb)(int, char), b[2]`))
	parts := SplitTopLevel(toks, ",")
	if len(parts) != 3 {
		t.Fatalf("SplitTopLevel() gave %d parts, want 3", len(parts))
	}
	if got := Join(parts[1]); got != "(*cb)(int,char)" {
		t.Errorf("Join(parts[1]) = %q", got)
	}
}
