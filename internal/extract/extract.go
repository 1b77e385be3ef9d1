// Package extract is the structural extractor. It turns one file's token
// stream into includes, macros, globals, function signatures and type
// entities. Anonymous aggregates found in member, parameter or return
// positions are left as inline type expressions for the synthesizer.
package extract

import (
	"path"
	"strings"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
)

// Result is the per-file extraction output. Entities are in source order;
// an entity with an empty ID receives a unique id when merged.
type Result struct {
	File        *model.SourceFile
	Entities    []*model.TypeEntity
	Diagnostics []diag.Diagnostic
}

type extractor struct {
	res *Result
}

// File extracts declarations from a tokenized file. path must be the
// project-relative, slash-separated path.
func File(p string, toks []lexer.Token) *Result {
	x := &extractor{res: &Result{File: model.NewSourceFile(p)}}

	code := make([]lexer.Token, 0, len(toks))
	for _, t := range toks {
		if t.Kind == lexer.Preprocessor {
			x.directive(t)
			continue
		}
		code = append(code, t)
	}

	for _, st := range statements(code) {
		x.statement(st)
	}
	return x.res
}

func (x *extractor) path() string {
	return x.res.File.Path
}

func (x *extractor) report(kind diag.Kind, line int, symbol, msg string) {
	x.res.Diagnostics = append(x.res.Diagnostics, diag.Diagnostic{
		Kind: kind, File: x.path(), Line: line, Symbol: symbol, Message: msg,
	})
}

func (x *extractor) addEntity(e *model.TypeEntity) {
	e.File = x.path()
	x.res.Entities = append(x.res.Entities, e)
}

// directive records #include and #define. Other directives are ignored.
func (x *extractor) directive(t lexer.Token) {
	text := strings.TrimSpace(strings.TrimPrefix(t.Text, "#"))
	word, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(word, "<\""); i > 0 {
		// #include<a.h>
		word, rest = word[:i], word[i:]+" "+rest
	}
	rest = strings.TrimSpace(rest)

	switch word {
	case "include", "include_next", "import":
		inc := model.Include{Line: t.Line}
		switch {
		case strings.HasPrefix(rest, "<"):
			end := strings.Index(rest, ">")
			if end < 0 {
				end = len(rest)
			}
			inc.Name = rest[1:end]
			inc.System = true
		case strings.HasPrefix(rest, "\""):
			end := strings.Index(rest[1:], "\"")
			if end < 0 {
				end = len(rest) - 1
			}
			inc.Name = rest[1 : end+1]
		default:
			inc.Name = rest
		}
		if inc.Name == "" {
			x.report(diag.ExtractionError, t.Line, "", "empty include directive")
			return
		}
		x.res.File.Includes = append(x.res.File.Includes, inc)
	case "define":
		x.define(rest, t.Line)
	}
}

func (x *extractor) define(rest string, line int) {
	end := 0
	for end < len(rest) && isIdentByte(rest[end]) {
		end++
	}
	if end == 0 {
		x.report(diag.ExtractionError, line, "", "malformed #define")
		return
	}
	m := model.Macro{Name: rest[:end], Line: line}
	if end < len(rest) && rest[end] == '(' {
		m.FunctionLike = true
		close := strings.Index(rest[end:], ")")
		if close < 0 {
			close = len(rest) - end
		}
		for _, p := range strings.Split(rest[end+1:end+close], ",") {
			if p = strings.TrimSpace(p); p != "" {
				m.Params = append(m.Params, p)
			}
		}
	}
	x.res.File.Macros = append(x.res.File.Macros, m)
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// statement classifies one top-level declaration.
func (x *extractor) statement(st statement) {
	if skippable(st.toks) {
		return
	}
	spec, rest, ok := parseSpecs(st.toks)
	if !ok {
		x.report(diag.ExtractionError, st.line, "", "unclassifiable declaration: "+snippet(st.toks))
		return
	}
	ds := declarators(rest, spec.base)

	if spec.typedef {
		x.typedef(st, spec, ds)
		return
	}

	if spec.hasBody {
		x.aggregate(spec, ds, st.line)
	} else if spec.tag != "" && len(ds) == 0 {
		// struct foo;
		x.addEntity(&model.TypeEntity{
			ID:      model.CanonicalID(spec.tag),
			Name:    spec.tag,
			Kind:    model.EntityKind(spec.keyword),
			Tag:     spec.tag,
			Forward: true,
			Line:    st.line,
		})
		return
	}

	if len(ds) == 0 {
		if !spec.hasBody {
			x.report(diag.ExtractionError, st.line, "", "declaration declares nothing: "+snippet(st.toks))
		}
		return
	}

	for _, d := range ds {
		if d.name == "" {
			x.report(diag.ExtractionError, d.line, "", "declarator without a name: "+snippet(st.toks))
			continue
		}
		if d.typ.Kind == model.ExprFunction {
			x.res.File.Functions = append(x.res.File.Functions, model.Function{
				Name:       d.name,
				Return:     d.typ.Return,
				Params:     d.typ.Params,
				Variadic:   d.typ.Variadic,
				Static:     spec.static,
				Inline:     spec.inline,
				Definition: st.funcDef,
				Line:       d.line,
			})
			continue
		}
		if st.funcDef {
			x.report(diag.ExtractionError, st.line, d.name, "body follows a non-function declarator")
			continue
		}
		x.res.File.Globals = append(x.res.File.Globals, model.Variable{
			Name:   d.name,
			Type:   d.typ,
			Static: spec.static,
			Extern: spec.extern,
			Line:   d.line,
		})
	}
}

// aggregate registers the entity for a struct/union/enum body that is not
// part of a typedef.
func (x *extractor) aggregate(spec declSpec, ds []decl, line int) {
	if spec.tag != "" {
		x.bodyEntity(spec, spec.tag, model.CanonicalID(spec.tag))
		return
	}
	if len(ds) > 0 {
		// struct { ... } g; the global's inline type is synthesized later
		return
	}
	// enum { A, B }; named after the file, made unique on merge
	stem := strings.TrimSuffix(x.res.File.Name, path.Ext(x.res.File.Name))
	e := x.bodyEntity(spec, sanitize(stem)+"_"+spec.keyword, "")
	e.Anonymous = true
	e.Line = line
}

func (x *extractor) bodyEntity(spec declSpec, name, id string) *model.TypeEntity {
	e := &model.TypeEntity{
		ID:   id,
		Name: name,
		Kind: model.EntityKind(spec.keyword),
		Tag:  spec.tag,
		Line: spec.bodyLine,
	}
	body := ParseBody(spec.keyword, spec.body, x.path())
	e.Fields = body.Fields
	e.Values = body.Values
	for _, n := range body.Nested {
		x.addEntity(n)
	}
	x.res.Diagnostics = append(x.res.Diagnostics, body.Diagnostics...)
	x.addEntity(e)
	return e
}

// typedef handles every typedef form: aggregate bodies, function pointer
// types, self-named tag forwards and plain aliases.
func (x *extractor) typedef(st statement, spec declSpec, ds []decl) {
	if len(ds) == 0 {
		if spec.hasBody {
			x.aggregate(spec, nil, st.line)
			return
		}
		x.report(diag.ExtractionError, st.line, "", "typedef without a name: "+snippet(st.toks))
		return
	}

	rest := ds
	if spec.hasBody {
		var main *decl
		for i := range ds {
			if ds[i].typ == spec.base && ds[i].name != "" {
				main = &ds[i]
				break
			}
		}
		var name string
		anonymous := false
		switch {
		case main != nil:
			name = main.name
		case spec.tag != "":
			name = spec.tag
		default:
			// typedef struct { ... } *handle_t;
			name = ds[0].name + "_" + spec.keyword
			anonymous = true
		}
		e := x.bodyEntity(spec, name, model.CanonicalID(name))
		e.Anonymous = anonymous
		if spec.tag == "" {
			// the remaining declarators now refer to the new entity
			quals := spec.base.Qualifiers
			*spec.base = *model.Named(name, "")
			spec.base.Qualifiers = quals
		}
		rest = nil
		for i := range ds {
			if main == nil || &ds[i] != main {
				rest = append(rest, ds[i])
			}
		}
	}

	for _, d := range rest {
		if d.name == "" {
			x.report(diag.ExtractionError, d.line, "", "typedef declarator without a name")
			continue
		}
		e := &model.TypeEntity{
			ID:   model.CanonicalID(d.name),
			Name: d.name,
			Line: d.line,
		}
		switch {
		case isFunctionType(d.typ):
			e.Kind = model.KindFunctionPointer
			e.Signature = d.typ
		case !spec.hasBody && spec.tag != "" && d.typ == spec.base && d.name == spec.tag:
			// typedef struct foo foo;
			e.Kind = model.EntityKind(spec.keyword)
			e.Tag = spec.tag
			e.Forward = true
		default:
			e.Kind = model.KindAlias
			e.Aliased = d.typ
		}
		x.addEntity(e)
	}
}

// isFunctionType reports a function type or a pointer chain ending in one.
func isFunctionType(t *model.TypeExpr) bool {
	for t != nil && t.Kind == model.ExprPointer {
		t = t.Inner
	}
	return t != nil && t.Kind == model.ExprFunction
}

func sanitize(s string) string {
	b := []byte(s)
	for i, c := range b {
		if !isIdentByte(c) {
			b[i] = '_'
		}
	}
	return string(b)
}
