// Package canon resolves typedef alias chains to their canonical non-alias
// target and checks that ownership chains are acyclic.
package canon

import (
	"errors"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/model"
)

// Run fills AliasChain and CanonicalTarget for every alias entity. Previous
// results are discarded first, so Run can be repeated after transformation.
//
// Every alias or ownership cycle is returned as a *diag.CycleError, joined
// with errors.Join. Entities on a cycle are left unresolved; the rest of the
// registry is still canonicalized.
func Run(reg *model.Registry) error {
	all := reg.All()
	for _, e := range all {
		e.AliasChain = nil
		e.CanonicalTarget = ""
	}

	var errs []error
	cyclic := make(map[string]bool)
	for _, e := range all {
		if e.Kind != model.KindAlias {
			continue
		}
		chain, target, err := follow(reg, e, cyclic)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		e.AliasChain = chain
		e.CanonicalTarget = target
	}

	errs = append(errs, checkOwners(reg, all)...)
	return errors.Join(errs...)
}

// follow walks one alias chain. A chain that runs into a cycle that was
// already reported is left unresolved without a second error.
func follow(reg *model.Registry, e *model.TypeEntity, cyclic map[string]bool) ([]string, string, error) {
	var chain []string
	pos := make(map[string]int)
	cur := e
	for {
		if cyclic[cur.ID] {
			return nil, "", nil
		}
		if i, seen := pos[cur.ID]; seen {
			for _, id := range chain[i:] {
				cyclic[id] = true
			}
			return nil, "", &diag.CycleError{Chain: append(chain, cur.ID)}
		}
		pos[cur.ID] = len(chain)
		chain = append(chain, cur.ID)

		base := cur.Aliased.Base()
		if base == nil || base.Kind != model.ExprNamed || base.ID == "" {
			// aliases of function types or removed types have no target
			return chain, "", nil
		}
		next, ok := reg.Get(base.ID)
		if !ok {
			return chain, "", nil
		}
		if next.Kind != model.KindAlias {
			return chain, next.ID, nil
		}
		cur = next
	}
}

func checkOwners(reg *model.Registry, all []*model.TypeEntity) []error {
	var errs []error
	cyclic := make(map[string]bool)
	for _, e := range all {
		var chain []string
		pos := make(map[string]int)
		cur := e
		for cur != nil && cur.Owner != nil && !cyclic[cur.ID] {
			if i, seen := pos[cur.ID]; seen {
				for _, id := range chain[i:] {
					cyclic[id] = true
				}
				errs = append(errs, &diag.CycleError{Chain: append(chain, cur.ID), Owner: true})
				break
			}
			pos[cur.ID] = len(chain)
			chain = append(chain, cur.ID)
			cur, _ = reg.Get(cur.Owner.ParentID)
		}
	}
	return errs
}

// Cycles unpacks the cycle errors returned by Run.
func Cycles(err error) []*diag.CycleError {
	if err == nil {
		return nil
	}
	var out []*diag.CycleError
	var ce *diag.CycleError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			if errors.As(e, &ce) {
				out = append(out, ce)
			}
		}
		return out
	}
	if errors.As(err, &ce) {
		out = append(out, ce)
	}
	return out
}
