// Package lexer turns C and C++ source text into a flat token stream.
//
// Comments and whitespace are dropped. Preprocessor directives are kept as a
// single opaque token per logical line and are never evaluated. Malformed
// input never stops the scan: unterminated literals and comments produce a
// best-effort token together with a LexError.
package lexer

import (
	"strings"
)

type scanner struct {
	src         []byte
	pos         int
	line        int
	col         int
	atLineStart bool

	toks []Token
	errs []LexError
}

// Tokenize scans src and returns its tokens plus any recoverable lexing errors.
func Tokenize(src []byte) ([]Token, []LexError) {
	s := &scanner{src: src, line: 1, col: 1, atLineStart: true}
	s.run()
	return s.toks, s.errs
}

func (s *scanner) peek(off int) byte {
	if s.pos+off < len(s.src) {
		return s.src[s.pos+off]
	}
	return 0
}

// advance consumes n bytes, keeping line and column current.
func (s *scanner) advance(n int) {
	for i := 0; i < n && s.pos < len(s.src); i++ {
		if s.src[s.pos] == '\n' {
			s.line++
			s.col = 1
		} else {
			s.col++
		}
		s.pos++
	}
}

func (s *scanner) emit(kind Kind, start, line, col int) {
	s.toks = append(s.toks, Token{Kind: kind, Text: string(s.src[start:s.pos]), Line: line, Col: col})
	s.atLineStart = false
}

func (s *scanner) errorf(line, col int, msg string) {
	s.errs = append(s.errs, LexError{Line: line, Col: col, Message: msg})
}

func (s *scanner) run() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\n':
			s.advance(1)
			s.atLineStart = true
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			s.advance(1)
		case c == '\\' && (s.peek(1) == '\n' || (s.peek(1) == '\r' && s.peek(2) == '\n')):
			// line splice outside a directive
			if s.peek(1) == '\r' {
				s.advance(3)
			} else {
				s.advance(2)
			}
		case c == '#' && s.atLineStart:
			s.directive()
		case c == '/' && s.peek(1) == '/':
			s.lineComment()
		case c == '/' && s.peek(1) == '*':
			s.blockComment()
		case isIdentStart(c):
			s.identOrPrefixedLiteral()
		case isDigit(c) || (c == '.' && isDigit(s.peek(1))):
			s.number()
		case c == '"':
			s.quoted('"', String, s.pos, s.line, s.col)
		case c == '\'':
			s.quoted('\'', Char, s.pos, s.line, s.col)
		default:
			start, line, col := s.pos, s.line, s.col
			s.advance(1)
			s.emit(Punct, start, line, col)
		}
	}
}

func (s *scanner) lineComment() {
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' && s.peek(1) == '\n' {
			s.advance(2)
			continue
		}
		if c == '\n' {
			return
		}
		s.advance(1)
	}
}

func (s *scanner) blockComment() {
	line, col := s.line, s.col
	s.advance(2)
	for s.pos < len(s.src) {
		if s.src[s.pos] == '*' && s.peek(1) == '/' {
			s.advance(2)
			return
		}
		s.advance(1)
	}
	s.errorf(line, col, "unterminated block comment")
}

func (s *scanner) identOrPrefixedLiteral() {
	start, line, col := s.pos, s.line, s.col
	for s.pos < len(s.src) && isIdentPart(s.src[s.pos]) {
		s.advance(1)
	}
	word := string(s.src[start:s.pos])
	next := s.peek(0)

	switch word {
	case "R", "LR", "uR", "UR", "u8R":
		if next == '"' {
			s.rawString(start, line, col)
			return
		}
	case "L", "u", "U", "u8":
		if next == '"' {
			s.quoted('"', String, start, line, col)
			return
		}
		if next == '\'' {
			s.quoted('\'', Char, start, line, col)
			return
		}
	}

	kind := Identifier
	if keywords[word] {
		kind = Keyword
	}
	s.emit(kind, start, line, col)
}

// quoted scans a string or char literal whose opening quote is at s.pos.
// start may precede s.pos when the literal carries an encoding prefix.
func (s *scanner) quoted(quote byte, kind Kind, start, line, col int) {
	s.advance(1)
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case c == '\\':
			s.advance(2)
		case c == quote:
			s.advance(1)
			s.emit(kind, start, line, col)
			return
		case c == '\n':
			s.errorf(line, col, "unterminated "+strings.ToLower(kind.String())+" literal")
			s.emit(kind, start, line, col)
			return
		default:
			s.advance(1)
		}
	}
	s.errorf(line, col, "unterminated "+strings.ToLower(kind.String())+" literal at end of file")
	s.emit(kind, start, line, col)
}

// rawString scans R"delim( ... )delim". s.pos is at the opening quote.
func (s *scanner) rawString(start, line, col int) {
	s.advance(1)
	delimStart := s.pos
	for s.pos < len(s.src) && s.src[s.pos] != '(' && s.src[s.pos] != '\n' && s.pos-delimStart <= 16 {
		s.advance(1)
	}
	if s.peek(0) != '(' {
		s.errorf(line, col, "malformed raw string delimiter")
		s.emit(String, start, line, col)
		return
	}
	terminator := ")" + string(s.src[delimStart:s.pos]) + `"`
	s.advance(1)
	end := strings.Index(string(s.src[s.pos:]), terminator)
	if end < 0 {
		s.advance(len(s.src) - s.pos)
		s.errorf(line, col, "unterminated raw string literal at end of file")
		s.emit(String, start, line, col)
		return
	}
	s.advance(end + len(terminator))
	s.emit(String, start, line, col)
}

func (s *scanner) number() {
	start, line, col := s.pos, s.line, s.col
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		switch {
		case isIdentPart(c) || c == '.':
			s.advance(1)
		case (c == '+' || c == '-') && s.pos > start && isExponent(s.src[s.pos-1], s.src[start:s.pos]):
			s.advance(1)
		case c == '\'' && s.pos > start && isHexDigit(s.peek(1)):
			// C++14 digit separator
			s.advance(1)
		default:
			s.emit(Number, start, line, col)
			return
		}
	}
	s.emit(Number, start, line, col)
}

func isExponent(prev byte, lit []byte) bool {
	hex := len(lit) > 1 && lit[0] == '0' && (lit[1] == 'x' || lit[1] == 'X')
	if hex {
		return prev == 'p' || prev == 'P'
	}
	return prev == 'e' || prev == 'E'
}

// directive consumes a whole logical preprocessor line into one token.
func (s *scanner) directive() {
	line, col := s.line, s.col
	var b strings.Builder
	var quote byte
	for s.pos < len(s.src) {
		c := s.src[s.pos]
		if c == '\\' && s.peek(1) == '\n' {
			b.WriteByte(' ')
			s.advance(2)
			continue
		}
		if c == '\\' && s.peek(1) == '\r' && s.peek(2) == '\n' {
			b.WriteByte(' ')
			s.advance(3)
			continue
		}
		if c == '\n' {
			// an unbalanced quote (#error don't) simply ends with the line
			break
		}
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] != '\n' {
				b.WriteByte(s.src[s.pos+1])
				s.advance(2)
				continue
			}
			if c == quote {
				quote = 0
			}
			s.advance(1)
			continue
		}
		if c == '/' && s.peek(1) == '/' {
			s.lineComment()
			break
		}
		if c == '/' && s.peek(1) == '*' {
			s.blockComment()
			b.WriteByte(' ')
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
		}
		b.WriteByte(c)
		s.advance(1)
	}
	s.toks = append(s.toks, Token{Kind: Preprocessor, Text: collapseSpace(b.String()), Line: line, Col: col})
	s.atLineStart = false
}

// collapseSpace squeezes whitespace runs to a single space outside literals.
func collapseSpace(text string) string {
	var b strings.Builder
	var quote byte
	space := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(text) {
				i++
				b.WriteByte(text[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v' {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		if c == '"' || c == '\'' {
			quote = c
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
