package transform

import (
	"fmt"
	"slices"

	"github.com/abramin/cmodel/internal/model"
)

var categoryKinds = map[string][]model.EntityKind{
	"typedef": {model.KindAlias, model.KindFunctionPointer},
	"structs": {model.KindStruct},
	"enums":   {model.KindEnum},
	"unions":  {model.KindUnion},
}

// matchTypes returns the entities of the op's category, in selected files,
// whose name matches, in registry order.
func (a *applier) matchTypes(op Operation) []*model.TypeEntity {
	kinds := categoryKinds[op.Category]
	var out []*model.TypeEntity
	for _, e := range a.p.Types.All() {
		if !slices.Contains(kinds, e.Kind) {
			continue
		}
		if a.selected != nil && !a.selected[e.File] {
			continue
		}
		if op.Pattern.MatchString(e.Name) {
			out = append(out, e)
		}
	}
	return out
}

func (a *applier) removeTypes(op Operation) int {
	gone := make(map[string]bool)
	for _, e := range a.matchTypes(op) {
		gone[e.ID] = true
	}
	return a.dropTypes(gone)
}

// dropTypes removes the given entities and everything they own. References
// to them become opaque placeholders keeping the original spelling.
func (a *applier) dropTypes(gone map[string]bool) int {
	if len(gone) == 0 {
		return 0
	}
	reg := a.p.Types
	for changed := true; changed; {
		changed = false
		for _, e := range reg.All() {
			if e.Owner != nil && gone[e.Owner.ParentID] && !gone[e.ID] {
				gone[e.ID] = true
				changed = true
			}
		}
	}

	a.eachExpr(func(n *model.TypeExpr) {
		if n.Kind == model.ExprNamed && gone[n.ID] {
			*n = model.TypeExpr{
				Kind:       model.ExprOpaque,
				Name:       n.Name,
				Tag:        n.Tag,
				Qualifiers: n.Qualifiers,
			}
		}
	})

	removed := 0
	for _, id := range reg.IDs() {
		if gone[id] {
			reg.Remove(id)
			removed++
		}
	}
	for _, f := range a.p.Files {
		f.Declared = slices.DeleteFunc(f.Declared, func(id string) bool { return gone[id] })
	}
	return removed
}

func (a *applier) renameTypes(op Operation) int {
	reg := a.p.Types
	redirect := make(map[string]string)
	renamed := 0
	for _, e := range a.matchTypes(op) {
		newName := op.Pattern.ReplaceAllString(e.Name, op.Replacement)
		if newName == "" || newName == e.Name {
			continue
		}
		oldID, newID := e.ID, model.CanonicalID(newName)
		renamed++
		if existing, ok := reg.Lookup(newName); ok && existing != oldID {
			// the existing entity wins and absorbs the renamed one
			a.conflict(e.File, oldID, fmt.Sprintf("renaming %s to %s collides with existing %s; merged into it", e.Name, newName, existing))
			reg.RetargetTags(oldID, existing)
			reg.Remove(oldID)
			redirect[oldID] = existing
			continue
		}
		if newID == oldID {
			reg.SetName(oldID, newName)
			redirect[oldID] = oldID
			continue
		}
		if reg.Has(newID) {
			// another spelling folds to the same id
			newID = reg.UniqueID(newName)
		}
		if err := reg.Rekey(oldID, newID); err != nil {
			a.conflict(e.File, oldID, err.Error())
			renamed--
			continue
		}
		reg.SetName(newID, newName)
		redirect[oldID] = newID
	}
	a.retarget(redirect)
	return renamed
}

// retarget points every reference to an old id at its final id.
func (a *applier) retarget(redirect map[string]string) {
	if len(redirect) == 0 {
		return
	}
	reg := a.p.Types
	final := func(id string) string {
		for range len(redirect) + 1 {
			next, ok := redirect[id]
			if !ok || next == id {
				return id
			}
			id = next
		}
		return id
	}

	a.eachExpr(func(n *model.TypeExpr) {
		if n.Kind != model.ExprNamed {
			return
		}
		if _, ok := redirect[n.ID]; !ok {
			return
		}
		n.ID = final(n.ID)
		if e, ok := reg.Get(n.ID); ok {
			n.Name = e.Name
		}
	})

	for _, e := range reg.All() {
		if e.Owner != nil {
			if _, ok := redirect[e.Owner.ParentID]; ok {
				e.Owner.ParentID = final(e.Owner.ParentID)
			}
		}
	}

	for _, f := range a.p.Files {
		seen := make(map[string]bool, len(f.Declared))
		out := f.Declared[:0]
		for _, id := range f.Declared {
			id = final(id)
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		f.Declared = out
	}
}
