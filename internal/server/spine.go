package server

import (
	"github.com/abramin/cmodel/internal/model"
	"github.com/abramin/cmodel/internal/store"
)

// SpineNode is one step of an entity's spine.
type SpineNode struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Kind        string       `json:"kind"`
	File        string       `json:"file,omitempty"`
	FieldPath   []string     `json:"field_path,omitempty"`
	Depth       int          `json:"depth"`
	IsMainPath  bool         `json:"is_main_path"`
	BranchBadge *BranchBadge `json:"branch_badge,omitempty"`
}

// BranchBadge summarizes the synthesized children of a spine node that are
// not on the spine.
type BranchBadge struct {
	ChildCount   int      `json:"child_count"`
	CollapsedIDs []string `json:"collapsed_ids"`
}

// SpineResponse describes where an entity sits: its ownership path from the
// top-level declaration down, followed by its alias chain.
type SpineResponse struct {
	Nodes           []SpineNode `json:"nodes"`
	OwnerPath       []string    `json:"owner_path"`
	AliasChain      []string    `json:"alias_chain"`
	CanonicalTarget string      `json:"canonical_target_id,omitempty"`
	CollapsedCount  int         `json:"collapsed_count"`
}

// maxSpineLength bounds owner walks over a malformed index.
const maxSpineLength = 64

// SpineBuilder builds entity spines from the store.
type SpineBuilder struct {
	store *store.Store
}

// NewSpineBuilder creates a new spine builder.
func NewSpineBuilder(st *store.Store) *SpineBuilder {
	return &SpineBuilder{store: st}
}

// Build constructs the spine of id.
func (sb *SpineBuilder) Build(id string) (*SpineResponse, error) {
	e, err := sb.store.GetEntity(id)
	if err != nil {
		return nil, err
	}

	// walk owners up to the top-level entity
	path := []*model.TypeEntity{e}
	seen := map[string]bool{e.ID: true}
	for cur := e; cur.Owner != nil && len(path) < maxSpineLength; {
		parent, err := sb.store.GetEntity(cur.Owner.ParentID)
		if err != nil || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		path = append(path, parent)
		cur = parent
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	resp := &SpineResponse{
		Nodes:           []SpineNode{},
		OwnerPath:       []string{},
		AliasChain:      e.AliasChain,
		CanonicalTarget: e.CanonicalTarget,
	}
	if resp.AliasChain == nil {
		resp.AliasChain = []string{}
	}

	for depth, pe := range path {
		resp.OwnerPath = append(resp.OwnerPath, pe.ID)
		node := SpineNode{
			ID:         pe.ID,
			Name:       pe.Name,
			Kind:       string(pe.Kind),
			File:       pe.File,
			Depth:      depth,
			IsMainPath: true,
		}
		if pe.Owner != nil {
			node.FieldPath = pe.Owner.FieldPath
		}

		var next string
		if depth+1 < len(path) {
			next = path[depth+1].ID
		}
		out, err := sb.store.Outgoing(pe.ID)
		if err != nil {
			return nil, err
		}
		var collapsed []string
		for _, rel := range out {
			if rel.Kind == store.RelationContains && rel.Target != next {
				collapsed = append(collapsed, rel.Target)
			}
		}
		if len(collapsed) > 0 {
			node.BranchBadge = &BranchBadge{ChildCount: len(collapsed), CollapsedIDs: collapsed}
			resp.CollapsedCount += len(collapsed)
		}
		resp.Nodes = append(resp.Nodes, node)
	}

	// alias hops after the entity itself
	depth := len(path)
	for _, aid := range e.AliasChain {
		if aid == e.ID {
			continue
		}
		ae, err := sb.store.GetEntity(aid)
		if err != nil {
			continue
		}
		resp.Nodes = append(resp.Nodes, SpineNode{ID: ae.ID, Name: ae.Name, Kind: string(ae.Kind), File: ae.File, Depth: depth})
		depth++
	}
	if e.CanonicalTarget != "" {
		if te, err := sb.store.GetEntity(e.CanonicalTarget); err == nil {
			resp.Nodes = append(resp.Nodes, SpineNode{ID: te.ID, Name: te.Name, Kind: string(te.Kind), File: te.File, Depth: depth})
		}
	}

	return resp, nil
}
