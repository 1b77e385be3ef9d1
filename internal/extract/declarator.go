package extract

import (
	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
)

// decl is one parsed declarator.
type decl struct {
	name     string
	typ      *model.TypeExpr
	bitWidth string
	line     int
}

// declarators splits the declarator list on top-level commas and parses each
// one against the shared base type.
func declarators(toks []lexer.Token, base *model.TypeExpr) []decl {
	if len(toks) == 0 {
		return nil
	}
	var out []decl
	for _, part := range lexer.SplitTopLevel(toks, ",") {
		if len(part) == 0 {
			continue
		}
		part, width := stripInitializer(part)
		name, typ := declarator(part, base)
		d := decl{name: name, typ: typ, bitWidth: width}
		if len(part) > 0 {
			d.line = part[0].Line
		}
		out = append(out, d)
	}
	return out
}

// stripInitializer drops "= value" and splits off a ": width" bit-field.
func stripInitializer(toks []lexer.Token) ([]lexer.Token, string) {
	depth := 0
	width := ""
	for i, t := range toks {
		switch {
		case t.Is("(") || t.Is("[") || t.Is("{"):
			depth++
		case t.Is(")") || t.Is("]") || t.Is("}"):
			if depth > 0 {
				depth--
			}
		case depth > 0:
		case t.Is("="):
			return toks[:i], width
		case t.Is(":") && (i+1 >= len(toks) || !toks[i+1].Is(":")) && (i == 0 || !toks[i-1].Is(":")):
			rest := toks[i+1:]
			for j, r := range rest {
				if r.Is("=") {
					rest = rest[:j]
					break
				}
			}
			width = lexer.Join(rest)
			return toks[:i], width
		}
	}
	return toks, width
}

type suffix struct {
	array  bool
	size   string
	params []model.Param
	vararg bool
}

// declarator parses one declarator inside-out: pointer prefixes wrap the
// base, suffixes apply from the innermost outward, and a parenthesized inner
// declarator is parsed against the type built so far.
func declarator(toks []lexer.Token, base *model.TypeExpr) (string, *model.TypeExpr) {
	t := base
	i := 0
	n := len(toks)

prefix:
	for i < n {
		tk := toks[i]
		switch {
		case tk.Is("*") || tk.Is("^"):
			t = model.PointerTo(t)
			i++
		case tk.Is("&"):
			// C++ references are modeled as pointers
			t = model.PointerTo(t)
			i++
		case qualifierWords[tk.Text] && (tk.Kind == lexer.Keyword || tk.Kind == lexer.Identifier):
			if t != base {
				t.Qualifiers = append(t.Qualifiers, normalizeQualifier(tk.Text))
			}
			i++
		case attributeWords[tk.Text] || callingConventions[tk.Text]:
			i = skipGroup(toks, i+1)
		default:
			break prefix
		}
	}

	name := ""
	var inner []lexer.Token
	hasInner := false
	if i < n {
		switch {
		case toks[i].Is("(") && isInnerDeclarator(toks, i):
			m := lexer.Matching(toks, i)
			if m < 0 {
				m = n
			}
			inner = toks[i+1 : min(m, n)]
			hasInner = true
			i = m + 1
		case toks[i].Kind == lexer.Identifier:
			var j int
			name, j = qualifiedName(toks, i)
			i = j
		}
	}

	var sufs []suffix
	for i < n {
		tk := toks[i]
		switch {
		case tk.Is("["):
			m := lexer.Matching(toks, i)
			if m < 0 {
				m = n
			}
			sufs = append(sufs, suffix{array: true, size: lexer.Join(toks[i+1 : min(m, n)])})
			i = m + 1
		case tk.Is("("):
			m := lexer.Matching(toks, i)
			if m < 0 {
				m = n
			}
			params, variadic := parseParams(toks[i+1 : min(m, n)])
			sufs = append(sufs, suffix{params: params, vararg: variadic})
			i = m + 1
		case attributeWords[tk.Text]:
			i = skipGroup(toks, i+1)
		default:
			// trailing const, override, macros and other noise
			i++
		}
	}

	for k := len(sufs) - 1; k >= 0; k-- {
		s := sufs[k]
		if s.array {
			t = model.ArrayOf(t, s.size)
		} else {
			t = &model.TypeExpr{Kind: model.ExprFunction, Return: t, Params: s.params, Variadic: s.vararg}
		}
	}

	if hasInner {
		return declarator(inner, t)
	}
	return name, t
}

// isInnerDeclarator tells "(*name)" apart from a parameter list.
func isInnerDeclarator(toks []lexer.Token, open int) bool {
	if open+1 >= len(toks) {
		return false
	}
	next := toks[open+1]
	switch {
	case next.Is("*") || next.Is("^") || next.Is("&") || next.Is("("):
		return true
	case attributeWords[next.Text] || callingConventions[next.Text]:
		return true
	case next.Kind == lexer.Identifier:
		// (name) or (name)[...]: a lone identifier in parens
		return open+2 < len(toks) && toks[open+2].Is(")")
	}
	return false
}

// parseParams parses a function parameter list.
func parseParams(toks []lexer.Token) ([]model.Param, bool) {
	if len(toks) == 0 || (len(toks) == 1 && toks[0].Is("void")) {
		return nil, false
	}
	var params []model.Param
	variadic := false
	for _, part := range lexer.SplitTopLevel(toks, ",") {
		if isEllipsis(part) {
			variadic = true
			continue
		}
		if len(part) == 0 {
			continue
		}
		part, _ = stripInitializer(part)
		spec, rest, ok := parseSpecs(part)
		if !ok {
			params = append(params, model.Param{Type: model.Named(lexer.Join(part), "")})
			continue
		}
		name, typ := declarator(rest, spec.base)
		params = append(params, model.Param{Name: name, Type: typ})
	}
	return params, variadic
}

func isEllipsis(toks []lexer.Token) bool {
	return len(toks) == 3 && toks[0].Is(".") && toks[1].Is(".") && toks[2].Is(".")
}
