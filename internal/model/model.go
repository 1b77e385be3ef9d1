// Package model holds the project model produced by the parser and consumed by
// the transformation engine, the resolver and every output.
package model

import (
	"path"
	"sort"
	"strings"

	"github.com/abramin/cmodel/internal/diag"
)

// FileKind distinguishes translation units from headers.
type FileKind string

const (
	FileSource FileKind = "source"
	FileHeader FileKind = "header"
)

var sourceExts = map[string]bool{".c": true, ".cc": true, ".cpp": true, ".cxx": true, ".c++": true}

// KindForPath returns the file kind implied by the path's extension.
func KindForPath(p string) FileKind {
	if sourceExts[strings.ToLower(path.Ext(p))] {
		return FileSource
	}
	return FileHeader
}

// EntityKind is the kind of a TypeEntity.
type EntityKind string

const (
	KindAlias           EntityKind = "alias"
	KindStruct          EntityKind = "struct"
	KindUnion           EntityKind = "union"
	KindEnum            EntityKind = "enum"
	KindFunctionPointer EntityKind = "function_pointer"
	KindPrimitive       EntityKind = "primitive"
)

// IsAggregate reports whether the kind carries fields or enum values.
func (k EntityKind) IsAggregate() bool {
	return k == KindStruct || k == KindUnion || k == KindEnum
}

// Field is a struct or union member.
type Field struct {
	Name     string    `json:"name"`
	Type     *TypeExpr `json:"type"`
	BitWidth string    `json:"bit_width,omitempty"`
	Line     int       `json:"line,omitempty"`
}

// EnumValue is an enumerator. Value is set only for integer literals.
type EnumValue struct {
	Name  string `json:"name"`
	Value *int64 `json:"value,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

// OwnerRef links a synthesized anonymous entity to its structural parent.
type OwnerRef struct {
	ParentID   string   `json:"parent_id"`
	FieldPath  []string `json:"field_path"`
	SourceFile string   `json:"source_file"`
}

// TypeEntity is anything renderable as a diagram class.
type TypeEntity struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Kind      EntityKind `json:"kind"`
	Tag       string     `json:"tag,omitempty"`
	Anonymous bool       `json:"is_anonymous"`
	Opaque    bool       `json:"opaque,omitempty"`
	Forward   bool       `json:"forward,omitempty"`
	Owner     *OwnerRef  `json:"owner,omitempty"`
	File      string     `json:"file,omitempty"`
	Line      int        `json:"line,omitempty"`

	Fields    []Field     `json:"fields,omitempty"`
	Values    []EnumValue `json:"values,omitempty"`
	Signature *TypeExpr   `json:"signature,omitempty"`
	Aliased   *TypeExpr   `json:"aliased,omitempty"`

	CanonicalTarget string   `json:"canonical_target_id,omitempty"`
	AliasChain      []string `json:"alias_chain,omitempty"`
}

// Exprs returns every top-level TypeExpr the entity holds, in source order.
func (e *TypeEntity) Exprs() []*TypeExpr {
	var out []*TypeExpr
	for _, f := range e.Fields {
		out = append(out, f.Type)
	}
	if e.Signature != nil {
		out = append(out, e.Signature)
	}
	if e.Aliased != nil {
		out = append(out, e.Aliased)
	}
	return out
}

// Include is an #include directive.
type Include struct {
	Name   string `json:"name"`
	System bool   `json:"system,omitempty"`
	Line   int    `json:"line,omitempty"`
}

// Macro is a #define. Values are never kept.
type Macro struct {
	Name         string   `json:"name"`
	Params       []string `json:"params,omitempty"`
	FunctionLike bool     `json:"function_like,omitempty"`
	Line         int      `json:"line,omitempty"`
}

// Variable is a file-scope variable declaration.
type Variable struct {
	Name   string    `json:"name"`
	Type   *TypeExpr `json:"type"`
	Static bool      `json:"static,omitempty"`
	Extern bool      `json:"extern,omitempty"`
	Line   int       `json:"line,omitempty"`
}

// Function is a function prototype or definition.
type Function struct {
	Name       string    `json:"name"`
	Return     *TypeExpr `json:"return"`
	Params     []Param   `json:"params,omitempty"`
	Variadic   bool      `json:"variadic,omitempty"`
	Static     bool      `json:"static,omitempty"`
	Inline     bool      `json:"inline,omitempty"`
	Definition bool      `json:"definition,omitempty"`
	Line       int       `json:"line,omitempty"`
}

// IncludeEdge is one entry of a root file's include relation.
type IncludeEdge struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Depth       int    `json:"depth"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// SourceFile is a parsed source or header file.
type SourceFile struct {
	Path             string        `json:"path"`
	Name             string        `json:"name"`
	Kind             FileKind      `json:"kind"`
	Includes         []Include     `json:"includes,omitempty"`
	Macros           []Macro       `json:"macros,omitempty"`
	Globals          []Variable    `json:"globals,omitempty"`
	Functions        []Function    `json:"functions,omitempty"`
	Declared         []string      `json:"declared,omitempty"`
	IncludeRelations []IncludeEdge `json:"include_relations,omitempty"`
}

// NewSourceFile returns an empty file for p, which must be slash separated.
func NewSourceFile(p string) *SourceFile {
	return &SourceFile{Path: p, Name: path.Base(p), Kind: KindForPath(p)}
}

// Declare appends id to the declared set unless it is already present.
func (f *SourceFile) Declare(id string) {
	for _, d := range f.Declared {
		if d == id {
			return
		}
	}
	f.Declared = append(f.Declared, id)
}

// Edge is a directed relationship between two ids.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Relations holds the three derived relationship sets.
type Relations struct {
	Declares []Edge `json:"declares"`
	Uses     []Edge `json:"uses"`
	Contains []Edge `json:"contains"`
}

// Project is the whole-project model.
type Project struct {
	RunID       string                 `json:"run_id,omitempty"`
	Files       map[string]*SourceFile `json:"files"`
	Types       *Registry              `json:"types"`
	Relations   Relations              `json:"relations"`
	Diagnostics []diag.Diagnostic      `json:"diagnostics,omitempty"`
}

// NewProject returns an empty project with its own registry.
func NewProject() *Project {
	return &Project{
		Files: make(map[string]*SourceFile),
		Types: NewRegistry(),
	}
}

// Paths returns the file paths in sorted order.
func (p *Project) Paths() []string {
	paths := make([]string, 0, len(p.Files))
	for k := range p.Files {
		paths = append(paths, k)
	}
	sort.Strings(paths)
	return paths
}

// Report appends diagnostics to the project.
func (p *Project) Report(ds ...diag.Diagnostic) {
	p.Diagnostics = append(p.Diagnostics, ds...)
}

// CanonicalID derives the stable id for a type name.
func CanonicalID(name string) string {
	return "TYPEDEF_" + strings.ToUpper(strings.Join(strings.Fields(name), "_"))
}
