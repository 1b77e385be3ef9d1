package model

import (
	"strings"

	"github.com/abramin/cmodel/internal/lexer"
)

// ExprKind tags a TypeExpr node.
type ExprKind string

const (
	ExprNamed    ExprKind = "named"
	ExprPointer  ExprKind = "pointer"
	ExprArray    ExprKind = "array"
	ExprFunction ExprKind = "function"
	// ExprInline holds an anonymous aggregate body that has not been
	// synthesized into its own entity yet.
	ExprInline ExprKind = "inline"
	// ExprOpaque replaces a reference to a removed type.
	ExprOpaque ExprKind = "opaque"
)

// TypeExpr is a recursive type expression used for every type occurrence.
type TypeExpr struct {
	Kind       ExprKind    `json:"kind"`
	ID         string      `json:"id,omitempty"`
	Name       string      `json:"name,omitempty"`
	Tag        string      `json:"tag,omitempty"`
	Qualifiers []string    `json:"qualifiers,omitempty"`
	Inner      *TypeExpr   `json:"inner,omitempty"`
	Size       string      `json:"size,omitempty"`
	Return     *TypeExpr   `json:"return,omitempty"`
	Params     []Param     `json:"params,omitempty"`
	Variadic   bool        `json:"variadic,omitempty"`
	Body       *InlineBody `json:"-"`
}

// Param is a function parameter. Name may be empty.
type Param struct {
	Name string    `json:"name,omitempty"`
	Type *TypeExpr `json:"type"`
}

// InlineBody is the raw token span of an anonymous aggregate.
type InlineBody struct {
	Keyword string        // struct, union or enum
	Tokens  []lexer.Token // tokens between the braces
	Line    int
}

// Named returns a reference to a type by spelling. ID is filled at link time.
func Named(name, tag string) *TypeExpr {
	return &TypeExpr{Kind: ExprNamed, Name: name, Tag: tag}
}

// PointerTo wraps inner in a pointer node.
func PointerTo(inner *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: ExprPointer, Inner: inner}
}

// ArrayOf wraps inner in an array node.
func ArrayOf(inner *TypeExpr, size string) *TypeExpr {
	return &TypeExpr{Kind: ExprArray, Inner: inner, Size: size}
}

// Walk visits every node of e in pre-order. fn returning false skips the
// node's children.
func Walk(e *TypeExpr, fn func(*TypeExpr) bool) {
	if e == nil {
		return
	}
	stack := []*TypeExpr{e}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n) {
			continue
		}
		// push in reverse so children pop in source order
		for i := len(n.Params) - 1; i >= 0; i-- {
			if n.Params[i].Type != nil {
				stack = append(stack, n.Params[i].Type)
			}
		}
		if n.Return != nil {
			stack = append(stack, n.Return)
		}
		if n.Inner != nil {
			stack = append(stack, n.Inner)
		}
	}
}

// Clone returns a deep copy of e.
func (e *TypeExpr) Clone() *TypeExpr {
	if e == nil {
		return nil
	}
	c := *e
	c.Qualifiers = append([]string(nil), e.Qualifiers...)
	c.Inner = e.Inner.Clone()
	c.Return = e.Return.Clone()
	if e.Params != nil {
		c.Params = make([]Param, len(e.Params))
		for i, p := range e.Params {
			c.Params[i] = Param{Name: p.Name, Type: p.Type.Clone()}
		}
	}
	return &c
}

// Base strips pointer and array wrappers.
func (e *TypeExpr) Base() *TypeExpr {
	for e != nil && (e.Kind == ExprPointer || e.Kind == ExprArray) {
		e = e.Inner
	}
	return e
}

// String renders e as C-like text. Function types use the abstract
// declarator form, e.g. "int (*)(char *, ...)".
func (e *TypeExpr) String() string {
	return render(e, "")
}

func render(e *TypeExpr, decl string) string {
	if e == nil {
		return strings.TrimSpace("void " + decl)
	}
	quals := strings.Join(e.Qualifiers, " ")
	switch e.Kind {
	case ExprPointer:
		d := "*"
		if quals != "" {
			d += quals
			if decl != "" {
				d += " "
			}
		}
		d += decl
		if inner := e.Inner; inner != nil && (inner.Kind == ExprFunction || inner.Kind == ExprArray) {
			d = "(" + d + ")"
		}
		return render(e.Inner, d)
	case ExprArray:
		return render(e.Inner, decl+"["+e.Size+"]")
	case ExprFunction:
		params := make([]string, 0, len(e.Params)+1)
		for _, p := range e.Params {
			params = append(params, render(p.Type, p.Name))
		}
		if e.Variadic {
			params = append(params, "...")
		}
		return render(e.Return, decl+"("+strings.Join(params, ", ")+")")
	}

	base := e.Name
	if e.Kind == ExprInline && e.Body != nil {
		base = e.Body.Keyword + " {...}"
	} else if e.Tag != "" {
		base = e.Tag + " " + e.Name
	}
	if quals != "" {
		base = quals + " " + base
	}
	if decl == "" {
		return base
	}
	return base + " " + decl
}
