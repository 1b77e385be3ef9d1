package server

import (
	"errors"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/abramin/cmodel/internal/store"
)

// GraphFilter specifies filters for graph traversal.
type GraphFilter struct {
	HidePrimitives bool `json:"hidePrimitives"`
	// StopAtOpaque keeps opaque and forward-declared entities as leaves.
	StopAtOpaque bool `json:"stopAtOpaque"`
	MaxDepth     int  `json:"maxDepth"`
}

// DefaultGraphFilter returns sensible defaults for graph filtering.
func DefaultGraphFilter() GraphFilter {
	return GraphFilter{
		StopAtOpaque: true,
		MaxDepth:     6,
	}
}

// GraphNode represents a node in the graph response.
type GraphNode struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
	Anonymous bool   `json:"is_anonymous"`
	Expanded  bool   `json:"expanded"`
	Depth     int    `json:"depth"`
}

// GraphEdge represents an edge in the graph response.
type GraphEdge struct {
	SourceID string             `json:"source_id"`
	TargetID string             `json:"target_id"`
	Kind     store.RelationKind `json:"kind"`
}

// GraphResponse is the response format for graph endpoints.
type GraphResponse struct {
	Nodes    []GraphNode `json:"nodes"`
	Edges    []GraphEdge `json:"edges"`
	RootID   string      `json:"root_id"`
	MaxDepth int         `json:"max_depth"`
	Filtered int         `json:"filtered_count"`
}

// GraphBuilder builds a breadth-first neighbourhood over the uses and
// contains relations.
type GraphBuilder struct {
	store    *store.Store
	logger   *log.Logger
	filter   GraphFilter
	nodes    map[string]*GraphNode
	summary  map[string]store.Entity
	edges    []GraphEdge
	filtered int
}

// NewGraphBuilder creates a new graph builder. A nil logger discards.
func NewGraphBuilder(s *store.Store, filter GraphFilter, logger *log.Logger) *GraphBuilder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &GraphBuilder{
		store:   s,
		logger:  logger,
		filter:  filter,
		nodes:   make(map[string]*GraphNode),
		summary: make(map[string]store.Entity),
		edges:   []GraphEdge{},
	}
}

// BuildFromRoot builds a graph starting from a root entity. Each entity is
// visited once, at the depth it is first reached.
func (gb *GraphBuilder) BuildFromRoot(rootID string, depth int) (*GraphResponse, error) {
	if gb.filter.MaxDepth > 0 && depth > gb.filter.MaxDepth {
		depth = gb.filter.MaxDepth
	}

	root, err := gb.lookup(rootID)
	if err != nil {
		return nil, err
	}
	gb.addNode(root, 0)

	queue := []string{rootID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		node := gb.nodes[id]
		if node.Depth >= depth || gb.shouldStopExpansion(gb.summary[id]) {
			continue
		}

		out, err := gb.store.Outgoing(id)
		if err != nil {
			return nil, err
		}
		for _, rel := range out {
			target, err := gb.lookup(rel.Target)
			if errors.Is(err, store.ErrNotFound) {
				gb.logger.Debug("skipping dangling relation", "kind", rel.Kind, "source", id, "target", rel.Target)
				continue
			}
			if err != nil {
				return nil, err
			}
			if gb.shouldFilter(target) {
				gb.filtered++
				continue
			}
			gb.edges = append(gb.edges, GraphEdge{SourceID: id, TargetID: rel.Target, Kind: rel.Kind})
			if _, seen := gb.nodes[rel.Target]; !seen {
				gb.addNode(target, node.Depth+1)
				queue = append(queue, rel.Target)
			}
		}
		node.Expanded = true
	}

	return gb.buildResponse(rootID, depth), nil
}

func (gb *GraphBuilder) lookup(id string) (store.Entity, error) {
	if e, ok := gb.summary[id]; ok {
		return e, nil
	}
	e, err := gb.store.GetEntity(id)
	if err != nil {
		return store.Entity{}, err
	}
	sum := store.Entity{
		ID:        e.ID,
		Name:      e.Name,
		Kind:      string(e.Kind),
		File:      e.File,
		Line:      e.Line,
		Anonymous: e.Anonymous,
		Opaque:    e.Opaque,
		Forward:   e.Forward,
	}
	gb.summary[id] = sum
	return sum, nil
}

func (gb *GraphBuilder) addNode(e store.Entity, depth int) {
	gb.nodes[e.ID] = &GraphNode{
		ID:        e.ID,
		Name:      e.Name,
		Kind:      e.Kind,
		File:      e.File,
		Line:      e.Line,
		Anonymous: e.Anonymous,
		Depth:     depth,
	}
}

// shouldFilter returns true if the entity should be left out.
func (gb *GraphBuilder) shouldFilter(e store.Entity) bool {
	return gb.filter.HidePrimitives && e.Kind == "primitive"
}

// shouldStopExpansion returns true if we should stop expanding at this node.
func (gb *GraphBuilder) shouldStopExpansion(e store.Entity) bool {
	return gb.filter.StopAtOpaque && (e.Opaque || e.Forward)
}

// buildResponse constructs the final response with nodes ordered by depth
// and id.
func (gb *GraphBuilder) buildResponse(rootID string, maxDepth int) *GraphResponse {
	nodes := make([]GraphNode, 0, len(gb.nodes))
	for _, node := range gb.nodes {
		nodes = append(nodes, *node)
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Depth != nodes[j].Depth {
			return nodes[i].Depth < nodes[j].Depth
		}
		return nodes[i].ID < nodes[j].ID
	})

	return &GraphResponse{
		Nodes:    nodes,
		Edges:    gb.edges,
		RootID:   rootID,
		MaxDepth: maxDepth,
		Filtered: gb.filtered,
	}
}
