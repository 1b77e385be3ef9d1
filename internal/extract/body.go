package extract

import (
	"strconv"
	"strings"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
)

// Body is the parsed content of an aggregate body.
type Body struct {
	Fields []model.Field
	Values []model.EnumValue
	// Nested holds named aggregates declared inside the body, such as
	// struct inner { ... } x; They are regular tagged entities.
	Nested      []*model.TypeEntity
	Diagnostics []diag.Diagnostic
}

// ParseBody parses the tokens between the braces of a struct, union or enum.
// Anonymous member aggregates are left as inline TypeExprs for synthesis.
func ParseBody(keyword string, toks []lexer.Token, file string) *Body {
	if keyword == "enum" {
		return &Body{Values: enumValues(toks)}
	}
	b := &Body{}
	for _, st := range statements(toks) {
		if st.funcDef || skippable(st.toks) {
			continue
		}
		spec, rest, ok := parseSpecs(st.toks)
		if !ok {
			b.Diagnostics = append(b.Diagnostics, diag.Diagnostic{
				Kind:    diag.ExtractionError,
				File:    file,
				Line:    st.line,
				Message: "unclassifiable member: " + snippet(st.toks),
			})
			continue
		}
		if spec.hasBody && spec.tag != "" {
			b.Nested = append(b.Nested, b.namedAggregate(spec, file)...)
		}

		ds := declarators(rest, spec.base)
		if len(ds) == 0 {
			if spec.hasBody && spec.tag == "" {
				// anonymous member: struct { int a; }; inside a union
				b.Fields = append(b.Fields, model.Field{Type: spec.base, Line: st.line})
			}
			continue
		}
		for _, d := range ds {
			if d.typ.Kind == model.ExprFunction {
				continue // member function
			}
			if d.name == "" && d.typ.Kind != model.ExprInline {
				continue // unnamed bit-field padding
			}
			b.Fields = append(b.Fields, model.Field{Name: d.name, Type: d.typ, BitWidth: d.bitWidth, Line: d.line})
		}
	}
	return b
}

// namedAggregate builds the entity for a tagged body and any tagged bodies
// nested inside it.
func (b *Body) namedAggregate(spec declSpec, file string) []*model.TypeEntity {
	e := &model.TypeEntity{
		ID:   model.CanonicalID(spec.tag),
		Name: spec.tag,
		Kind: model.EntityKind(spec.keyword),
		Tag:  spec.tag,
		File: file,
		Line: spec.bodyLine,
	}
	inner := ParseBody(spec.keyword, spec.body, file)
	e.Fields = inner.Fields
	e.Values = inner.Values
	b.Diagnostics = append(b.Diagnostics, inner.Diagnostics...)
	return append(inner.Nested, e)
}

func enumValues(toks []lexer.Token) []model.EnumValue {
	var out []model.EnumValue
	for _, part := range lexer.SplitTopLevel(toks, ",") {
		if len(part) == 0 || part[0].Kind != lexer.Identifier {
			continue
		}
		v := model.EnumValue{Name: part[0].Text}
		for i, t := range part {
			if t.Is("=") {
				v.Raw = lexer.Join(part[i+1:])
				if n, ok := ParseIntLiteral(v.Raw); ok {
					v.Value = &n
				}
				break
			}
		}
		out = append(out, v)
	}
	return out
}

// ParseIntLiteral parses a C integer constant such as 0x1Fu, -3, (010) or
// 1'000. Anything that is not a plain literal is rejected.
func ParseIntLiteral(raw string) (int64, bool) {
	s := strings.TrimSpace(raw)
	for strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	neg := false
	switch {
	case strings.HasPrefix(s, "-"):
		neg = true
		s = strings.TrimSpace(s[1:])
	case strings.HasPrefix(s, "+"):
		s = strings.TrimSpace(s[1:])
	}
	s = strings.TrimRight(s, "uUlL")
	s = strings.ReplaceAll(s, "'", "")
	if s == "" || strings.ContainsAny(s, "_ ") {
		return 0, false
	}
	// C octal is a leading zero; Go's base-0 parsing wants 0o
	if len(s) > 1 && s[0] == '0' && s[1] >= '0' && s[1] <= '9' {
		s = "0o" + s[1:]
	}
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// skippable reports statements that declare nothing the model tracks.
func skippable(toks []lexer.Token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[0].Text {
	case "static_assert", "_Static_assert", "using", "friend", "return", "__pragma", "_Pragma":
		return true
	}
	return false
}

func snippet(toks []lexer.Token) string {
	if len(toks) > 8 {
		return lexer.Join(toks[:8]) + " ..."
	}
	return lexer.Join(toks)
}
