package lexer

import "fmt"

// Kind classifies a token.
type Kind int

const (
	Identifier Kind = iota
	Keyword
	Punct
	String
	Char
	Number
	Preprocessor
)

func (k Kind) String() string {
	switch k {
	case Identifier:
		return "IDENTIFIER"
	case Keyword:
		return "KEYWORD"
	case Punct:
		return "PUNCTUATION"
	case String:
		return "STRING"
	case Char:
		return "CHAR"
	case Number:
		return "NUMBER"
	case Preprocessor:
		return "PREPROCESSOR"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Token is a single lexical unit. Line and Col are 1-based.
type Token struct {
	Kind Kind
	Text string
	Line int
	Col  int
}

// Is reports whether the token is punctuation or a keyword with the given text.
func (t Token) Is(text string) bool {
	return (t.Kind == Punct || t.Kind == Keyword) && t.Text == text
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Col)
}

// LexError describes a malformed token. It is never fatal.
type LexError struct {
	Line    int
	Col     int
	Message string
}

func (e LexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Col, e.Message)
}

var keywords = map[string]bool{
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true, "sizeof": true,
	"static": true, "struct": true, "switch": true, "typedef": true, "union": true,
	"unsigned": true, "void": true, "volatile": true, "while": true,
	"_Bool": true, "_Complex": true, "_Atomic": true, "_Noreturn": true,
	"_Static_assert": true, "_Thread_local": true, "_Alignas": true,
	// C++
	"class": true, "namespace": true, "template": true, "typename": true,
	"using": true, "public": true, "private": true, "protected": true,
	"virtual": true, "operator": true, "friend": true, "constexpr": true,
	"bool": true, "mutable": true, "explicit": true, "noexcept": true,
	"static_assert": true, "thread_local": true, "decltype": true,
}

// IsKeyword reports whether word is a reserved C or C++ keyword.
func IsKeyword(word string) bool {
	return keywords[word]
}
