package lexer

// Matching returns the index of the bracket that closes toks[open], or -1
// when toks[open] is not an opening bracket or the input ends first.
// Unbalanced closers of a different bracket type are ignored.
func Matching(toks []Token, open int) int {
	if open < 0 || open >= len(toks) || toks[open].Kind != Punct {
		return -1
	}
	var closer string
	switch toks[open].Text {
	case "(":
		closer = ")"
	case "[":
		closer = "]"
	case "{":
		closer = "}"
	default:
		return -1
	}
	opener := toks[open].Text
	depth := 0
	for i := open; i < len(toks); i++ {
		if toks[i].Kind != Punct {
			continue
		}
		switch toks[i].Text {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SplitTopLevel splits toks on sep wherever the separator is outside any
// bracket pair. Empty segments are kept so callers can detect them.
func SplitTopLevel(toks []Token, sep string) [][]Token {
	var parts [][]Token
	depth := 0
	start := 0
	for i, t := range toks {
		if t.Kind != Punct {
			continue
		}
		switch t.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, toks[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, toks[start:])
}

// Join renders tokens back to compact source text.
func Join(toks []Token) string {
	out := make([]byte, 0, len(toks)*4)
	for i, t := range toks {
		if i > 0 && needsSpace(toks[i-1], t) {
			out = append(out, ' ')
		}
		out = append(out, t.Text...)
	}
	return string(out)
}

func needsSpace(prev, cur Token) bool {
	wordy := func(t Token) bool {
		return t.Kind == Identifier || t.Kind == Keyword || t.Kind == Number || t.Kind == String || t.Kind == Char
	}
	return wordy(prev) && wordy(cur)
}
