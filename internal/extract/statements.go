package extract

import (
	"github.com/abramin/cmodel/internal/lexer"
)

// statement is one top-level declaration. For function definitions toks
// holds the signature and body the tokens between the braces.
type statement struct {
	toks    []lexer.Token
	body    []lexer.Token
	funcDef bool
	line    int
}

// statements splits a token stream into declarations. A declaration ends at a
// top-level ';', or at the closing brace of a function body. extern "C" and
// namespace blocks are transparent.
func statements(toks []lexer.Token) []statement {
	var out []statement
	i := 0
	for i < len(toks) {
		t := toks[i]
		switch {
		case t.Is(";") || t.Is("}"):
			i++
			continue
		case t.Is("extern") && i+1 < len(toks) && toks[i+1].Kind == lexer.String:
			i += 2
			if i < len(toks) && toks[i].Is("{") {
				i++
			}
			continue
		case t.Is("namespace"):
			j := i + 1
			for j < len(toks) && !toks[j].Is("{") && !toks[j].Is(";") {
				j++
			}
			i = j + 1
			continue
		case t.Is("template"):
			i = skipAngles(toks, i+1)
			continue
		case (t.Is("public") || t.Is("private") || t.Is("protected")) && i+1 < len(toks) && toks[i+1].Is(":"):
			i += 2
			continue
		}

		st, next := scanStatement(toks, i)
		if len(st.toks) > 0 {
			out = append(out, st)
		}
		i = next
	}
	return out
}

// scanStatement collects the declaration starting at toks[start] and returns
// it with the index where scanning should resume.
func scanStatement(toks []lexer.Token, start int) (statement, int) {
	depth := 0
	line := toks[start].Line
	for j := start; j < len(toks); j++ {
		tk := toks[j]
		if tk.Kind != lexer.Punct {
			continue
		}
		switch tk.Text {
		case "(", "[":
			depth++
		case ")", "]":
			if depth > 0 {
				depth--
			}
		case "{":
			m := lexer.Matching(toks, j)
			if m < 0 {
				m = len(toks) - 1
			}
			if depth == 0 && isFunctionBody(toks[start:j]) {
				return statement{
					toks:    toks[start:j],
					body:    toks[j+1 : max(j+1, m)],
					funcDef: true,
					line:    line,
				}, m + 1
			}
			j = m
		case "}":
			if depth == 0 {
				// missing ';' before the end of an enclosing block
				return statement{toks: toks[start:j], line: line}, j
			}
		case ";":
			if depth == 0 {
				return statement{toks: toks[start:j], line: line}, j + 1
			}
		}
	}
	return statement{toks: toks[start:], line: line}, len(toks)
}

func skipAngles(toks []lexer.Token, i int) int {
	if i >= len(toks) || !toks[i].Is("<") {
		return i
	}
	depth := 0
	for ; i < len(toks); i++ {
		switch {
		case toks[i].Is("<"):
			depth++
		case toks[i].Is(">"):
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// isFunctionBody decides whether a '{' following sig opens a function body
// rather than an aggregate body or an initializer.
func isFunctionBody(sig []lexer.Token) bool {
	if len(sig) == 0 {
		return false
	}
	lastClose := -1
	lastTag := -1
	depth := 0
	for i, t := range sig {
		switch {
		case t.Is("(") || t.Is("["):
			depth++
		case t.Is(")") || t.Is("]"):
			if depth > 0 {
				depth--
			}
			if depth == 0 && t.Text == ")" {
				lastClose = i
			}
		case depth > 0:
		case t.Is("=") || t.Is("typedef"):
			return false
		case isTagKeyword(t):
			lastTag = i
		}
	}
	if lastTag >= 0 && aggregateHead(sig[lastTag+1:]) {
		return false
	}
	return lastClose >= 0
}

// aggregateHead reports whether toks can sit between a struct/union/enum
// keyword and its opening brace: a tag, attributes, or a base clause.
func aggregateHead(toks []lexer.Token) bool {
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		switch {
		case t.Kind == lexer.Identifier || t.Kind == lexer.Keyword:
			if i+1 < len(toks) && toks[i+1].Is("(") {
				if !isAttributeWord(t.Text) && !isMacroName(t.Text) {
					return false
				}
				m := lexer.Matching(toks, i+1)
				if m < 0 {
					return false
				}
				i = m
			}
		case t.Is(":") || t.Is(",") || t.Is("<") || t.Is(">"):
		default:
			return false
		}
	}
	return true
}

func isTagKeyword(t lexer.Token) bool {
	return t.Kind == lexer.Keyword && (t.Text == "struct" || t.Text == "union" || t.Text == "enum" || t.Text == "class")
}

// isMacroName treats ALL_CAPS identifiers as macro invocations.
func isMacroName(s string) bool {
	hasLetter := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasLetter = true
		case c == '_' || (c >= '0' && c <= '9'):
		default:
			return false
		}
	}
	return hasLetter
}
