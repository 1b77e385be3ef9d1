// Package synth lifts inline anonymous aggregate bodies out of fields,
// parameters, returns and globals into entities of their own.
//
// A synthesized entity is named after its owner and the field path leading
// to it, e.g. widget_t_pos. Names that are already taken get _2, _3, ... in
// depth-first source order, so the first aggregate seen keeps the plain name.
package synth

import (
	"context"
	"strconv"
	"strings"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/extract"
	"github.com/abramin/cmodel/internal/model"
)

// maxFunctionDepth is the deepest function-type nesting an inline body may
// sit under before it is left opaque.
const maxFunctionDepth = 1

// item is one pending inline body.
type item struct {
	expr  *model.TypeExpr
	base  string
	owner *model.OwnerRef
	file  string

	fnDepth int
	arrayFn bool
}

type synthesizer struct {
	p     *model.Project
	stack []item
	diags []diag.Diagnostic
}

// Run synthesizes every inline body in the project. It must run after all
// files are merged and before linking. It returns ctx.Err() when cancelled
// between items; the project is then partially rewritten and must be
// discarded.
func Run(ctx context.Context, p *model.Project) error {
	s := &synthesizer{p: p}

	for _, e := range p.Types.All() {
		s.pushEntity(e)
		if err := s.drain(ctx); err != nil {
			return err
		}
	}

	for _, path := range p.Paths() {
		f := p.Files[path]
		for _, g := range f.Globals {
			s.push(collect(g.Type, nil, g.Name, nil, path))
			if err := s.drain(ctx); err != nil {
				return err
			}
		}
		for _, fn := range f.Functions {
			var items []item
			items = append(items, collect(fn.Return, []string{"return"}, fn.Name, nil, path)...)
			for i, prm := range fn.Params {
				items = append(items, collect(prm.Type, []string{paramName(prm, i)}, fn.Name, nil, path)...)
			}
			s.push(items)
			if err := s.drain(ctx); err != nil {
				return err
			}
		}
	}

	p.Report(s.diags...)
	return nil
}

// push adds items so that the first one is processed first.
func (s *synthesizer) push(items []item) {
	for i := len(items) - 1; i >= 0; i-- {
		s.stack = append(s.stack, items[i])
	}
}

// pushEntity queues the inline bodies held by an entity's fields and
// signature, owned by that entity.
func (s *synthesizer) pushEntity(e *model.TypeEntity) {
	var items []item
	for _, f := range e.Fields {
		elem := f.Name
		if elem == "" && f.Type.Kind == model.ExprInline {
			elem = f.Type.Body.Keyword
		}
		items = append(items, collect(f.Type, []string{elem}, e.Name, &model.OwnerRef{ParentID: e.ID}, e.File)...)
	}
	for _, x := range []*model.TypeExpr{e.Signature, e.Aliased} {
		if x != nil {
			items = append(items, collect(x, nil, e.Name, &model.OwnerRef{ParentID: e.ID}, e.File)...)
		}
	}
	s.push(items)
}

func (s *synthesizer) drain(ctx context.Context) error {
	for len(s.stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if it.expr.Kind != model.ExprInline {
			// shared by several declarators and already synthesized
			continue
		}
		if e := s.synthesize(it); e != nil {
			s.pushEntity(e)
		}
	}
	return nil
}

func (s *synthesizer) synthesize(it item) *model.TypeEntity {
	reg := s.p.Types
	body := it.expr.Body
	name := reg.UniqueName(it.base)
	e := &model.TypeEntity{
		ID:        model.CanonicalID(name),
		Name:      name,
		Kind:      model.EntityKind(body.Keyword),
		Anonymous: true,
		File:      it.file,
		Line:      body.Line,
	}
	if it.owner != nil {
		e.Owner = &model.OwnerRef{
			ParentID:   it.owner.ParentID,
			FieldPath:  append([]string(nil), it.owner.FieldPath...),
			SourceFile: it.file,
		}
	}

	var nested []*model.TypeEntity
	if it.fnDepth > maxFunctionDepth || it.arrayFn {
		e.Opaque = true
		d := diag.Diagnostic{
			Kind:    diag.SynthesisAmbiguity,
			File:    it.file,
			Symbol:  e.ID,
			Line:    body.Line,
			Message: "anonymous " + body.Keyword + " nested too deeply inside function pointer types; left opaque",
		}
		if e.Owner != nil {
			d.Symbol = e.Owner.ParentID
			d.FieldPath = e.Owner.FieldPath
		}
		s.diags = append(s.diags, d)
	} else {
		parsed := extract.ParseBody(body.Keyword, body.Tokens, it.file)
		e.Fields = parsed.Fields
		e.Values = parsed.Values
		nested = parsed.Nested
		s.diags = append(s.diags, parsed.Diagnostics...)
	}

	reg.AddUnique(e)
	f := s.p.Files[it.file]
	if f != nil {
		f.Declare(e.ID)
	}

	quals := it.expr.Qualifiers
	*it.expr = model.TypeExpr{Kind: model.ExprNamed, ID: e.ID, Name: e.Name, Qualifiers: quals}

	for _, n := range nested {
		n.File = it.file
		kept, _ := reg.Merge(n)
		if f != nil {
			f.Declare(kept.ID)
		}
		if kept == n {
			s.pushEntity(n)
		}
	}
	return e
}

// collect finds inline bodies reachable from x without descending into
// other entities. path is the field path so far; root names the owner.
func collect(x *model.TypeExpr, path []string, root string, owner *model.OwnerRef, file string) []item {
	type frame struct {
		e        *model.TypeExpr
		path     []string
		fnDepth  int
		sawArray bool
		arrayFn  bool
	}
	var out []item
	stack := []frame{{e: x, path: path}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if f.e == nil {
			continue
		}
		switch f.e.Kind {
		case model.ExprInline:
			it := item{
				expr:    f.e,
				base:    joinName(root, f.path),
				file:    file,
				fnDepth: f.fnDepth,
				arrayFn: f.arrayFn,
			}
			if owner != nil {
				it.owner = &model.OwnerRef{ParentID: owner.ParentID, FieldPath: nonEmptyPath(f.path, f.e)}
			}
			out = append(out, it)
		case model.ExprPointer:
			stack = append(stack, frame{f.e.Inner, f.path, f.fnDepth, f.sawArray, f.arrayFn})
		case model.ExprArray:
			stack = append(stack, frame{f.e.Inner, f.path, f.fnDepth, true, f.arrayFn})
		case model.ExprFunction:
			af := f.arrayFn || f.sawArray
			for i := len(f.e.Params) - 1; i >= 0; i-- {
				prm := f.e.Params[i]
				stack = append(stack, frame{prm.Type, appendPath(f.path, paramName(prm, i)), f.fnDepth + 1, false, af})
			}
			stack = append(stack, frame{f.e.Return, appendPath(f.path, "return"), f.fnDepth + 1, false, af})
		}
	}
	return out
}

func appendPath(path []string, elem string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, elem)
}

// nonEmptyPath guarantees an owner's field path has at least one element.
func nonEmptyPath(path []string, x *model.TypeExpr) []string {
	if len(path) > 0 {
		return append([]string(nil), path...)
	}
	return []string{x.Body.Keyword}
}

func joinName(root string, path []string) string {
	parts := append([]string{root}, path...)
	return strings.Join(parts, "_")
}

func paramName(p model.Param, i int) string {
	if p.Name != "" {
		return p.Name
	}
	return "param" + strconv.Itoa(i+1)
}
