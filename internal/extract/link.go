package extract

import (
	"fmt"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/model"
)

// Merge folds per-file results into the project in the order given. Callers
// pass results sorted by path so registration order is reproducible.
func Merge(p *model.Project, results []*Result) {
	for _, r := range results {
		if r == nil {
			continue
		}
		p.Files[r.File.Path] = r.File
		p.Report(r.Diagnostics...)
		for _, e := range r.Entities {
			if e.ID == "" {
				e.Name = p.Types.UniqueName(e.Name)
				e.ID = model.CanonicalID(e.Name)
			}
			kept, dup := p.Types.Merge(e)
			if dup {
				p.Report(diag.Diagnostic{
					Kind:    diag.ExtractionError,
					File:    e.File,
					Line:    e.Line,
					Symbol:  e.ID,
					Message: fmt.Sprintf("duplicate definition of %s; keeping the one from %s", e.Name, kept.File),
				})
			}
			r.File.Declare(kept.ID)
		}
	}
}

// Link resolves every named reference to a registered entity. Unknown plain
// names are registered as primitives; unknown tagged names are registered as
// forward declarations.
func Link(p *model.Project) {
	reg := p.Types
	visit := func(x *model.TypeExpr) {
		model.Walk(x, func(n *model.TypeExpr) bool {
			if n.Kind == model.ExprNamed && n.ID == "" {
				resolveNamed(reg, n)
			}
			return true
		})
	}

	for _, e := range reg.All() {
		for _, x := range e.Exprs() {
			visit(x)
		}
	}
	for _, path := range p.Paths() {
		f := p.Files[path]
		for _, g := range f.Globals {
			visit(g.Type)
		}
		for _, fn := range f.Functions {
			visit(fn.Return)
			for _, prm := range fn.Params {
				visit(prm.Type)
			}
		}
	}
}

func resolveNamed(reg *model.Registry, n *model.TypeExpr) {
	if n.Tag == "" {
		if id, ok := reg.Lookup(n.Name); ok {
			n.ID = id
			return
		}
		prim := reg.AddUnique(&model.TypeEntity{ID: model.CanonicalID(n.Name), Name: n.Name, Kind: model.KindPrimitive})
		n.ID = prim.ID
		return
	}

	if id, ok := reg.LookupTag(n.Tag, n.Name); ok {
		n.ID = id
		return
	}
	kind := model.EntityKind(n.Tag)
	name := n.Name
	if id, ok := reg.Lookup(n.Name); ok {
		if e, _ := reg.Get(id); e.Kind == kind {
			reg.SetTag(n.Tag, n.Name, id)
			n.ID = id
			return
		}
		// the spelling belongs to an entity of another kind
		name = reg.UniqueName(n.Name)
	}
	fwd := reg.AddUnique(&model.TypeEntity{
		ID:      model.CanonicalID(name),
		Name:    name,
		Kind:    kind,
		Tag:     n.Name,
		Forward: true,
	})
	n.ID = fwd.ID
}
