package store

// RelationKind names one of the three derived relationship sets.
type RelationKind string

const (
	RelationDeclares RelationKind = "declares" // file -> entity
	RelationUses     RelationKind = "uses"     // entity -> referenced entity
	RelationContains RelationKind = "contains" // owner -> synthesized child
)

// File is the summary row of a parsed source or header file.
type File struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	IncludeCount  int    `json:"include_count"`
	MacroCount    int    `json:"macro_count"`
	GlobalCount   int    `json:"global_count"`
	FunctionCount int    `json:"function_count"`
}

// Entity is the summary row of a type entity. The full entity, with its
// type expressions, is kept as JSON and returned by GetEntity.
type Entity struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	Tag             string   `json:"tag,omitempty"`
	File            string   `json:"file,omitempty"`
	Line            int      `json:"line,omitempty"`
	Anonymous       bool     `json:"is_anonymous"`
	Opaque          bool     `json:"opaque,omitempty"`
	Forward         bool     `json:"forward,omitempty"`
	ParentID        string   `json:"parent_id,omitempty"`
	CanonicalTarget string   `json:"canonical_target_id,omitempty"`
	AliasChain      []string `json:"alias_chain,omitempty"`
}

// Field is one struct or union member with its type rendered as C.
type Field struct {
	EntityID string `json:"entity_id"`
	Position int    `json:"position"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	BitWidth string `json:"bit_width,omitempty"`
}

// Relation is a stored relationship edge.
type Relation struct {
	Kind   RelationKind `json:"kind"`
	Source string       `json:"source"`
	Target string       `json:"target"`
}

// Include is a stored include relation of a root file.
type Include struct {
	Root        string `json:"root"`
	From        string `json:"from"`
	To          string `json:"to"`
	Depth       int    `json:"depth"`
	Placeholder bool   `json:"placeholder,omitempty"`
}
