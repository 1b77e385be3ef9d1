package extract

import (
	"sort"
	"strings"

	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
)

var primitiveWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true, "bool": true, "_Complex": true, "__int128": true,
	"wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
	"__signed__": true, "__unsigned__": true,
}

var qualifierWords = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "__restrict": true,
	"__restrict__": true, "_Atomic": true, "__const": true, "__volatile__": true,
}

var storageWords = map[string]bool{
	"static": true, "extern": true, "inline": true, "__inline": true,
	"__inline__": true, "__forceinline": true, "register": true, "auto": true,
	"_Noreturn": true, "__extension__": true, "thread_local": true,
	"_Thread_local": true, "__thread": true, "constexpr": true, "mutable": true,
	"virtual": true, "explicit": true, "friend": true, "typename": true,
}

var attributeWords = map[string]bool{
	"__attribute__": true, "__attribute": true, "__declspec": true,
	"_Alignas": true, "alignas": true, "__asm__": true, "__asm": true,
	"asm": true, "__pragma": true, "_Pragma": true, "__aligned": true,
	"noexcept": true, "decltype": true,
}

var callingConventions = map[string]bool{
	"__cdecl": true, "__stdcall": true, "__fastcall": true, "__thiscall": true,
	"__vectorcall": true, "__far": true, "__near": true, "far": true, "near": true,
	"WINAPI": true, "CALLBACK": true, "APIENTRY": true,
}

func isAttributeWord(s string) bool {
	return attributeWords[s]
}

// declSpec is the parsed declaration-specifier prefix of a declaration.
type declSpec struct {
	base *model.TypeExpr

	keyword  string // struct, union or enum when the base is an aggregate
	tag      string
	hasBody  bool
	body     []lexer.Token
	bodyLine int

	typedef bool
	static  bool
	extern  bool
	inline  bool
}

// parseSpecs reads declaration specifiers from the front of toks and returns
// the tokens holding the declarators. ok is false when no base type could be
// identified.
//
// Identifiers are ambiguous without a symbol table: the last identifier of the
// specifier run is the declarator name when another base type precedes it,
// otherwise it is the type name. Identifiers before the type name are taken to
// be object-like macros and dropped.
func parseSpecs(toks []lexer.Token) (declSpec, []lexer.Token, bool) {
	var spec declSpec
	var prims []string
	var quals []string
	type ident struct {
		name string
		pos  int
	}
	var ids []ident

	haveBase := func() bool {
		return len(prims) > 0 || spec.keyword != "" || len(ids) > 0
	}

	i := 0
	n := len(toks)
	stop := false
	for i < n && !stop {
		t := toks[i]
		text := t.Text
		if t.Kind != lexer.Identifier && t.Kind != lexer.Keyword {
			if t.Kind == lexer.String && i > 0 && toks[i-1].Is("extern") {
				i++ // extern "C"
				continue
			}
			if t.Is(":") && i+1 < n && toks[i+1].Is(":") && len(ids) == 0 {
				i += 2 // leading :: on a qualified name
				continue
			}
			break
		}
		switch {
		case text == "typedef":
			spec.typedef = true
			i++
		case storageWords[text]:
			switch text {
			case "static":
				spec.static = true
			case "extern":
				spec.extern = true
			case "inline", "__inline", "__inline__", "__forceinline":
				spec.inline = true
			}
			i++
		case qualifierWords[text]:
			quals = append(quals, normalizeQualifier(text))
			i++
		case attributeWords[text] || callingConventions[text]:
			i = skipGroup(toks, i+1)
		case primitiveWords[text] && spec.keyword == "":
			if len(prims) == 0 {
				ids = nil // EXPORT int f(void): EXPORT is a macro
			}
			prims = append(prims, text)
			i++
		case isTagKeyword(t) && spec.keyword == "" && len(prims) == 0:
			ids = nil
			i = parseTagged(toks, i, &spec)
		case t.Kind == lexer.Identifier:
			if i+1 < n && toks[i+1].Is("(") {
				switch {
				case i+2 < n && (toks[i+2].Is("*") || toks[i+2].Is("^") || toks[i+2].Is("&")):
					// foo_t (*fp)(void): foo_t is the type
					ids = append(ids, ident{text, i})
					i++
					stop = true
					continue
				case haveBase():
					ids = append(ids, ident{text, i})
					i++
					stop = true
					continue
				}
				if m := lexer.Matching(toks, i+1); m > 0 && m+1 < n {
					i = m + 1 // macro call prefix such as DEPRECATED("x")
					continue
				}
				// a bare macro invocation such as EXPORT_SYMBOL(foo)
				return spec, nil, false
			}
			name, j := qualifiedName(toks, i)
			ids = append(ids, ident{name, i})
			i = j
		default:
			stop = true
		}
	}

	declStart := i
	nested := i < n && (toks[i].Is("*") || toks[i].Is("&") || toks[i].Is("^") ||
		(toks[i].Is("(") && i+1 < n && (toks[i+1].Is("*") || toks[i+1].Is("^") || toks[i+1].Is("&"))))

	typeName := ""
	otherBase := len(prims) > 0 || spec.keyword != ""
	switch {
	case nested || len(ids) == 0:
		if len(ids) > 0 {
			typeName = ids[len(ids)-1].name
		}
	case otherBase:
		declStart = ids[len(ids)-1].pos
	case len(ids) >= 2:
		typeName = ids[len(ids)-2].name
		declStart = ids[len(ids)-1].pos
	default:
		typeName = ids[0].name
	}

	switch {
	case spec.keyword != "":
		// base set by parseTagged
	case len(prims) > 0:
		spec.base = model.Named(normalizePrimitive(prims), "")
	case typeName != "":
		spec.base = model.Named(typeName, "")
	default:
		return spec, nil, false
	}
	spec.base.Qualifiers = append(spec.base.Qualifiers, quals...)
	return spec, toks[declStart:], true
}

// parseTagged parses struct/union/enum [attrs] [tag] [: base] [{ body }]
// starting at toks[i] and returns the index after it.
func parseTagged(toks []lexer.Token, i int, spec *declSpec) int {
	kw := toks[i].Text
	if kw == "class" {
		kw = "struct"
	}
	spec.keyword = kw
	i++
	n := len(toks)
	if kw == "enum" && i < n && (toks[i].Is("class") || toks[i].Is("struct")) {
		i++
	}

	var names []string
	var namePos []int
	for i < n {
		t := toks[i]
		if t.Kind == lexer.Identifier || t.Kind == lexer.Keyword {
			if attributeWords[t.Text] {
				i = skipGroup(toks, i+1)
				continue
			}
			if t.Kind == lexer.Identifier && i+1 < n && toks[i+1].Is("(") && isMacroName(t.Text) {
				i = skipGroup(toks, i+1)
				continue
			}
			if t.Kind == lexer.Keyword {
				break
			}
			name, j := qualifiedName(toks, i)
			names = append(names, name)
			namePos = append(namePos, i)
			i = j
			continue
		}
		break
	}

	opensBody := i < n && (toks[i].Is("{") || toks[i].Is(":"))
	switch {
	case len(names) == 0:
	case opensBody:
		spec.tag = names[len(names)-1]
	default:
		// struct foo bar: bar is the declarator
		spec.tag = names[0]
		if len(names) > 1 {
			i = namePos[1]
		}
	}

	if i < n && toks[i].Is(":") && opensBody {
		for i < n && !toks[i].Is("{") && !toks[i].Is(";") {
			i++
		}
	}

	if i < n && toks[i].Is("{") {
		spec.hasBody = true
		spec.bodyLine = toks[i].Line
		m := lexer.Matching(toks, i)
		if m < 0 {
			spec.body = toks[i+1:]
			i = n
		} else {
			spec.body = toks[i+1 : m]
			i = m + 1
		}
	}

	switch {
	case spec.tag != "":
		spec.base = model.Named(spec.tag, kw)
	case spec.hasBody:
		spec.base = &model.TypeExpr{
			Kind: model.ExprInline,
			Body: &model.InlineBody{Keyword: kw, Tokens: spec.body, Line: spec.bodyLine},
		}
	default:
		// bare "struct" with nothing after it
		spec.base = model.Named(kw, "")
	}
	return i
}

// qualifiedName joins a::b and a<...> spellings into one name.
func qualifiedName(toks []lexer.Token, i int) (string, int) {
	var b strings.Builder
	b.WriteString(toks[i].Text)
	i++
	for i < len(toks) {
		switch {
		case toks[i].Is("<"):
			j := skipAngles(toks, i)
			b.WriteString(lexer.Join(toks[i:j]))
			i = j
		case i+2 < len(toks) && toks[i].Is(":") && toks[i+1].Is(":") && toks[i+2].Kind == lexer.Identifier:
			b.WriteString("::")
			b.WriteString(toks[i+2].Text)
			i += 3
		default:
			return b.String(), i
		}
	}
	return b.String(), i
}

// skipGroup skips a parenthesized group at toks[i], if present.
func skipGroup(toks []lexer.Token, i int) int {
	if i < len(toks) && toks[i].Is("(") {
		if m := lexer.Matching(toks, i); m >= 0 {
			return m + 1
		}
		return len(toks)
	}
	return i
}

func normalizeQualifier(q string) string {
	switch q {
	case "__restrict", "__restrict__":
		return "restrict"
	case "__const":
		return "const"
	case "__volatile__":
		return "volatile"
	}
	return q
}

var primitiveRank = map[string]int{
	"signed": 0, "__signed__": 0, "unsigned": 0, "__unsigned__": 0,
	"short": 1, "long": 2,
}

// normalizePrimitive orders multi-word primitive spellings so that
// "long unsigned int" and "unsigned long int" name the same type. Modifiers
// on their own imply int: "unsigned" is "unsigned int".
func normalizePrimitive(words []string) string {
	w := append([]string(nil), words...)
	modifiersOnly := len(w) > 0
	for i, s := range w {
		switch s {
		case "__signed__":
			w[i] = "signed"
		case "__unsigned__":
			w[i] = "unsigned"
		}
		if _, ok := primitiveRank[w[i]]; !ok {
			modifiersOnly = false
		}
	}
	if modifiersOnly {
		w = append(w, "int")
	}
	sort.SliceStable(w, func(a, b int) bool {
		ra, ok := primitiveRank[w[a]]
		if !ok {
			ra = 3
		}
		rb, ok := primitiveRank[w[b]]
		if !ok {
			rb = 3
		}
		return ra < rb
	})
	return strings.Join(w, " ")
}
