package extract

import (
	"testing"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
)

func extractSrc(t *testing.T, path, src string) *Result {
	t.Helper()
	toks, errs := lexer.Tokenize([]byte(src))
	if len(errs) != 0 {
		t.Fatalf("lex errors: %v", errs)
	}
	return File(path, toks)
}

func entityByName(res *Result, name string) *model.TypeEntity {
	for _, e := range res.Entities {
		if e.Name == name {
			return e
		}
	}
	return nil
}

func TestCommaSeparatedFields(t *testing.T) {
	res := extractSrc(t, "pair.h", `typedef struct { int a, b; } pair_t;`)

	if len(res.Entities) != 1 {
		t.Fatalf("got %d entities, want 1", len(res.Entities))
	}
	e := res.Entities[0]
	if e.Name != "pair_t" || e.ID != "TYPEDEF_PAIR_T" || e.Kind != model.KindStruct {
		t.Fatalf("entity = %s %s %s", e.Name, e.ID, e.Kind)
	}
	if len(e.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(e.Fields))
	}
	for i, want := range []string{"a", "b"} {
		f := e.Fields[i]
		if f.Name != want || f.Type.Kind != model.ExprNamed || f.Type.Name != "int" {
			t.Errorf("field %d = %s %s, want %s int", i, f.Name, f.Type, want)
		}
	}
}

func TestPointerBindsPerDeclarator(t *testing.T) {
	res := extractSrc(t, "g.c", `char *p1, *p2, c, arr[4], *matrix[2][3];`)

	tests := []struct {
		name string
		want string
	}{
		{"p1", "char *"},
		{"p2", "char *"},
		{"c", "char"},
		{"arr", "char [4]"},
		{"matrix", "char *[2][3]"},
	}
	if len(res.File.Globals) != len(tests) {
		t.Fatalf("got %d globals, want %d", len(res.File.Globals), len(tests))
	}
	for i, tt := range tests {
		g := res.File.Globals[i]
		if g.Name != tt.name || g.Type.String() != tt.want {
			t.Errorf("global %d = %s %q, want %s %q", i, g.Name, g.Type.String(), tt.name, tt.want)
		}
	}
}

func TestFunctionPointerDeclarators(t *testing.T) {
	src := `
struct ops {
    int (*open)(const char *path, int flags);
    void (*(*factory)(int))(void);
    void (*handlers[4])(int sig);
};
typedef void (*callback_t)(void *ctx, ...);
void (*signal(int sig, void (*func)(int)))(int);
`
	res := extractSrc(t, "ops.h", src)

	ops := entityByName(res, "ops")
	if ops == nil || len(ops.Fields) != 3 {
		t.Fatalf("ops entity = %+v", ops)
	}
	wantFields := []string{
		"int (*)(const char *path, int flags)",
		"void (*(*)(int))()",
		"void (*[4])(int sig)",
	}
	for i, want := range wantFields {
		if got := ops.Fields[i].Type.String(); got != want {
			t.Errorf("field %s = %q, want %q", ops.Fields[i].Name, got, want)
		}
	}

	cb := entityByName(res, "callback_t")
	if cb == nil || cb.Kind != model.KindFunctionPointer {
		t.Fatalf("callback_t = %+v", cb)
	}
	if !cb.Signature.Inner.Variadic || len(cb.Signature.Inner.Params) != 1 {
		t.Errorf("callback_t signature = %s", cb.Signature)
	}

	if len(res.File.Functions) != 1 {
		t.Fatalf("got %d functions, want 1", len(res.File.Functions))
	}
	fn := res.File.Functions[0]
	if fn.Name != "signal" || len(fn.Params) != 2 {
		t.Errorf("signal = %+v", fn)
	}
	if got := fn.Return.String(); got != "void (*)(int)" {
		t.Errorf("signal return = %q", got)
	}
}

func TestFunctionsAndDefinitions(t *testing.T) {
	src := `
EXPORT int api_init(struct config *cfg);
static inline unsigned long hash(const char *s, size_t n) {
    unsigned long h = 0; while (n--) { h = h * 31 + *s++; } return h;
}
int printf(const char *fmt, ...);
int after_body;
`
	res := extractSrc(t, "api.c", src)

	if len(res.File.Functions) != 3 {
		t.Fatalf("got %d functions, want 3: %+v", len(res.File.Functions), res.File.Functions)
	}
	initFn, hash, printf := res.File.Functions[0], res.File.Functions[1], res.File.Functions[2]
	if initFn.Name != "api_init" || initFn.Return.Name != "int" || initFn.Definition {
		t.Errorf("api_init = %+v", initFn)
	}
	if initFn.Params[0].Type.Inner.Tag != "struct" {
		t.Errorf("api_init param = %s", initFn.Params[0].Type)
	}
	if !hash.Definition || !hash.Static || !hash.Inline || hash.Return.Name != "unsigned long int" {
		t.Errorf("hash = %+v", hash)
	}
	if !printf.Variadic {
		t.Error("printf should be variadic")
	}
	if len(res.File.Globals) != 1 || res.File.Globals[0].Name != "after_body" {
		t.Errorf("globals = %+v", res.File.Globals)
	}
}

func TestDirectives(t *testing.T) {
	src := `#include <stdio.h>
#include "util/list.h"
#define VERSION 3
#define MAX(a, b) ((a) > (b) ? (a) : (b))
#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)
#ifdef DEBUG
#define TRACE 1
#endif
`
	res := extractSrc(t, "main.c", src)

	if len(res.File.Includes) != 2 {
		t.Fatalf("includes = %+v", res.File.Includes)
	}
	if !res.File.Includes[0].System || res.File.Includes[0].Name != "stdio.h" {
		t.Errorf("include 0 = %+v", res.File.Includes[0])
	}
	if res.File.Includes[1].System || res.File.Includes[1].Name != "util/list.h" {
		t.Errorf("include 1 = %+v", res.File.Includes[1])
	}

	tests := []struct {
		name   string
		fnLike bool
		params int
	}{
		{"VERSION", false, 0},
		{"MAX", true, 2},
		{"LOG", true, 2},
		{"TRACE", false, 0},
	}
	if len(res.File.Macros) != len(tests) {
		t.Fatalf("macros = %+v", res.File.Macros)
	}
	for i, tt := range tests {
		m := res.File.Macros[i]
		if m.Name != tt.name || m.FunctionLike != tt.fnLike || len(m.Params) != tt.params {
			t.Errorf("macro %d = %+v, want %s fn=%v params=%d", i, m, tt.name, tt.fnLike, tt.params)
		}
	}
}

func TestTypedefForms(t *testing.T) {
	src := `
typedef struct node { struct node *next; int value; } node_t, *node_p;
typedef struct handle handle;
typedef struct impl impl_t;
typedef unsigned int u32;
typedef int vec3[3];
typedef struct { int x; } *opaque_ref;
`
	res := extractSrc(t, "t.h", src)

	tests := []struct {
		name    string
		kind    model.EntityKind
		forward bool
	}{
		{"node_t", model.KindStruct, false},
		{"node_p", model.KindAlias, false},
		{"handle", model.KindStruct, true},
		{"impl_t", model.KindAlias, false},
		{"u32", model.KindAlias, false},
		{"vec3", model.KindAlias, false},
		{"opaque_ref_struct", model.KindStruct, false},
		{"opaque_ref", model.KindAlias, false},
	}
	for _, tt := range tests {
		e := entityByName(res, tt.name)
		if e == nil {
			t.Errorf("missing entity %s", tt.name)
			continue
		}
		if e.Kind != tt.kind || e.Forward != tt.forward {
			t.Errorf("%s = kind %s forward %v, want %s %v", tt.name, e.Kind, e.Forward, tt.kind, tt.forward)
		}
	}

	if node := entityByName(res, "node_t"); node.Tag != "node" {
		t.Errorf("node_t tag = %q", node.Tag)
	}
	if ref := entityByName(res, "opaque_ref"); ref.Aliased.String() != "opaque_ref_struct *" {
		t.Errorf("opaque_ref aliased = %s", ref.Aliased)
	}
	if anon := entityByName(res, "opaque_ref_struct"); !anon.Anonymous {
		t.Error("opaque_ref_struct should be anonymous")
	}
	if u := entityByName(res, "u32"); u.Aliased.Name != "unsigned int" {
		t.Errorf("u32 aliased = %s", u.Aliased)
	}
}

func TestEnumValues(t *testing.T) {
	res := extractSrc(t, "e.h", `enum color { RED, GREEN = 0x10, BLUE = -2, MASK = (1 << 3), OCT = 010 };`)

	e := entityByName(res, "color")
	if e == nil || e.Kind != model.KindEnum {
		t.Fatalf("color = %+v", e)
	}
	type want struct {
		name  string
		value *int64
		raw   string
	}
	i64 := func(v int64) *int64 { return &v }
	wants := []want{
		{"RED", nil, ""},
		{"GREEN", i64(16), "0x10"},
		{"BLUE", i64(-2), "-2"},
		{"MASK", nil, "(1<<3)"},
		{"OCT", i64(8), "010"},
	}
	if len(e.Values) != len(wants) {
		t.Fatalf("values = %+v", e.Values)
	}
	for i, w := range wants {
		v := e.Values[i]
		if v.Name != w.name || v.Raw != w.raw {
			t.Errorf("value %d = %+v, want %s raw %q", i, v, w.name, w.raw)
		}
		if (v.Value == nil) != (w.value == nil) || (v.Value != nil && *v.Value != *w.value) {
			t.Errorf("value %s = %v, want %v", v.Name, v.Value, w.value)
		}
	}
}

func TestParseIntLiteral(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"42", 42, true},
		{"0x1Fu", 31, true},
		{"-3", -3, true},
		{"(010)", 8, true},
		{"1'000", 1000, true},
		{"0", 0, true},
		{"1UL", 1, true},
		{"FOO + 1", 0, false},
		{"'a'", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseIntLiteral(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseIntLiteral(%q) = %d, %v, want %d, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUnclassifiableIsSkipped(t *testing.T) {
	src := `
int before;
MODULE_INIT(setup);
int after;
`
	res := extractSrc(t, "m.c", src)

	if len(res.File.Globals) != 2 {
		t.Errorf("globals = %+v, want before and after", res.File.Globals)
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != diag.ExtractionError {
		t.Fatalf("diagnostics = %+v", res.Diagnostics)
	}
	if res.Diagnostics[0].Line != 3 {
		t.Errorf("diagnostic line = %d, want 3", res.Diagnostics[0].Line)
	}
}

func TestTransparentBlocksAndAttributes(t *testing.T) {
	src := `
#ifdef __cplusplus
extern "C" {
#endif
typedef struct __attribute__((packed)) header { unsigned char kind : 4; unsigned char ver : 4; } header_t;
__declspec(dllexport) int api_version(void);
#ifdef __cplusplus
}
#endif
`
	res := extractSrc(t, "h.h", src)

	h := entityByName(res, "header_t")
	if h == nil || h.Tag != "header" {
		t.Fatalf("header_t = %+v", h)
	}
	if len(h.Fields) != 2 || h.Fields[0].BitWidth != "4" {
		t.Errorf("fields = %+v", h.Fields)
	}
	if len(res.File.Functions) != 1 || res.File.Functions[0].Name != "api_version" {
		t.Errorf("functions = %+v", res.File.Functions)
	}
}

func TestInlineMembersStayInline(t *testing.T) {
	src := `typedef struct { struct { int x; int y; } pos; union { int i; float f; }; int w; } widget_t;`
	res := extractSrc(t, "w.h", src)

	if len(res.Entities) != 1 {
		t.Fatalf("entities = %d, want 1 before synthesis", len(res.Entities))
	}
	w := res.Entities[0]
	if len(w.Fields) != 3 {
		t.Fatalf("fields = %+v", w.Fields)
	}
	if w.Fields[0].Name != "pos" || w.Fields[0].Type.Kind != model.ExprInline {
		t.Errorf("pos = %+v", w.Fields[0])
	}
	if w.Fields[1].Name != "" || w.Fields[1].Type.Body.Keyword != "union" {
		t.Errorf("anonymous union member = %+v", w.Fields[1])
	}
}

func TestMergeAndLink(t *testing.T) {
	h := extractSrc(t, "a.h", `typedef struct foo foo; typedef foo *foo_ref; struct bar *make_bar(void);`)
	c := extractSrc(t, "a.c", `struct foo { int n; };`)

	p := model.NewProject()
	Merge(p, []*Result{c, h})
	Link(p)

	foo, ok := p.Types.Get("TYPEDEF_FOO")
	if !ok || foo.Forward || len(foo.Fields) != 1 {
		t.Fatalf("foo = %+v", foo)
	}
	if _, ok := p.Types.Get("TYPEDEF_INT"); !ok {
		t.Error("int should be registered as primitive")
	}
	bar, ok := p.Types.Get("TYPEDEF_BAR")
	if !ok || !bar.Forward || bar.Kind != model.KindStruct {
		t.Errorf("bar = %+v", bar)
	}
	ref, _ := p.Types.Get("TYPEDEF_FOO_REF")
	if ref.Aliased.Inner.ID != "TYPEDEF_FOO" {
		t.Errorf("foo_ref target = %+v", ref.Aliased.Inner)
	}
	fn := p.Files["a.h"].Functions[0]
	if fn.Return.Inner.ID != "TYPEDEF_BAR" {
		t.Errorf("make_bar return = %+v", fn.Return.Inner)
	}
	if len(p.Diagnostics) != 0 {
		t.Errorf("diagnostics = %+v", p.Diagnostics)
	}
}

func TestLinkKeepsCaseDistinctNames(t *testing.T) {
	res := extractSrc(t, "a.c", `typedef float Float;
struct vec { float x; Float y; };
struct point { int x; };
typedef struct point Point;
typedef struct Point *point_ref;`)

	p := model.NewProject()
	Merge(p, []*Result{res})
	Link(p)

	for _, d := range p.Diagnostics {
		t.Errorf("unexpected diagnostic: %s", d)
	}

	alias, _ := p.Types.Get("TYPEDEF_FLOAT")
	if alias == nil || alias.Name != "Float" || alias.Kind != model.KindAlias {
		t.Fatalf("TYPEDEF_FLOAT = %+v, want the Float alias", alias)
	}
	prim, ok := p.Types.Get(alias.Aliased.ID)
	if !ok || prim.Name != "float" || prim.Kind != model.KindPrimitive || prim.ID != "TYPEDEF_FLOAT_2" {
		t.Fatalf("Float aliases %q = %+v, want primitive float at TYPEDEF_FLOAT_2", alias.Aliased.ID, prim)
	}

	vec, _ := p.Types.Get("TYPEDEF_VEC")
	if got := vec.Fields[0].Type.ID; got != prim.ID {
		t.Errorf("vec.x resolves to %s, want %s", got, prim.ID)
	}
	if got := vec.Fields[1].Type.ID; got != alias.ID {
		t.Errorf("vec.y resolves to %s, want %s", got, alias.ID)
	}

	point, _ := p.Types.Get("TYPEDEF_POINT")
	if point == nil || point.Name != "point" || point.Kind != model.KindStruct {
		t.Fatalf("TYPEDEF_POINT = %+v, want struct point", point)
	}
	id, ok := p.Types.Lookup("Point")
	if !ok || id != "TYPEDEF_POINT_2" {
		t.Fatalf("Lookup(Point) = %q, %v; want TYPEDEF_POINT_2", id, ok)
	}
	typedef, _ := p.Types.Get(id)
	if typedef.Kind != model.KindAlias || typedef.Aliased.ID != "TYPEDEF_POINT" {
		t.Errorf("Point = %+v, want alias of struct point", typedef)
	}

	// struct Point is a different tag and has no definition
	ref, _ := p.Types.Get("TYPEDEF_POINT_REF")
	fwd, _ := p.Types.Get(ref.Aliased.Inner.ID)
	if fwd == nil || !fwd.Forward || fwd.Tag != "Point" || fwd.ID != "TYPEDEF_POINT_3" {
		t.Errorf("struct Point = %+v, want forward at TYPEDEF_POINT_3", fwd)
	}
}

func TestModifierOnlyPrimitivesImplyInt(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"typedef unsigned u;", "unsigned int"},
		{"typedef unsigned int u;", "unsigned int"},
		{"typedef long unsigned u;", "unsigned long int"},
		{"typedef short u;", "short int"},
		{"typedef long long u;", "long long int"},
		{"typedef signed char u;", "signed char"},
		{"typedef long double u;", "long double"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			res := extractSrc(t, "p.h", tt.src)
			u := entityByName(res, "u")
			if u == nil {
				t.Fatalf("no entity in %q", tt.src)
			}
			if got := u.Aliased.Name; got != tt.want {
				t.Errorf("aliased = %q, want %q", got, tt.want)
			}
		})
	}
}
