package synth

import (
	"context"
	"testing"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/extract"
	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
)

func build(t *testing.T, files map[string]string, order ...string) *model.Project {
	t.Helper()
	p := model.NewProject()
	var results []*extract.Result
	for _, path := range order {
		toks, errs := lexer.Tokenize([]byte(files[path]))
		if len(errs) > 0 {
			t.Fatalf("%s: lex errors: %v", path, errs)
		}
		results = append(results, extract.File(path, toks))
	}
	extract.Merge(p, results)
	if err := Run(context.Background(), p); err != nil {
		t.Fatalf("Run: %v", err)
	}
	extract.Link(p)
	return p
}

func mustGet(t *testing.T, p *model.Project, id string) *model.TypeEntity {
	t.Helper()
	e, ok := p.Types.Get(id)
	if !ok {
		t.Fatalf("entity %s not registered; have %v", id, p.Types.IDs())
	}
	return e
}

func TestNestedMemberIsSynthesized(t *testing.T) {
	p := build(t, map[string]string{
		"widget.h": `typedef struct {
	struct { int x; int y; } pos;
	int w;
} widget_t;`,
	}, "widget.h")

	pos := mustGet(t, p, "TYPEDEF_WIDGET_T_POS")
	if !pos.Anonymous {
		t.Error("expected widget_t_pos to be anonymous")
	}
	if pos.Kind != model.KindStruct {
		t.Errorf("kind = %s, want struct", pos.Kind)
	}
	if pos.Owner == nil {
		t.Fatal("expected owner")
	}
	if pos.Owner.ParentID != "TYPEDEF_WIDGET_T" {
		t.Errorf("owner = %s, want TYPEDEF_WIDGET_T", pos.Owner.ParentID)
	}
	if len(pos.Owner.FieldPath) != 1 || pos.Owner.FieldPath[0] != "pos" {
		t.Errorf("field path = %v, want [pos]", pos.Owner.FieldPath)
	}
	if pos.Owner.SourceFile != "widget.h" {
		t.Errorf("source file = %q", pos.Owner.SourceFile)
	}
	if len(pos.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(pos.Fields))
	}

	widget := mustGet(t, p, "TYPEDEF_WIDGET_T")
	ref := widget.Fields[0].Type
	if ref.Kind != model.ExprNamed || ref.ID != "TYPEDEF_WIDGET_T_POS" {
		t.Errorf("pos field not rewritten: %+v", ref)
	}

	declared := false
	for _, id := range p.Files["widget.h"].Declared {
		if id == "TYPEDEF_WIDGET_T_POS" {
			declared = true
		}
	}
	if !declared {
		t.Error("expected widget.h to declare the synthesized entity")
	}
}

func TestDeepNestingUsesFieldChain(t *testing.T) {
	p := build(t, map[string]string{
		"a.h": `typedef struct {
	struct {
		union { int i; float f; } value;
	} slot;
} outer_t;`,
	}, "a.h")

	slot := mustGet(t, p, "TYPEDEF_OUTER_T_SLOT")
	value := mustGet(t, p, "TYPEDEF_OUTER_T_SLOT_VALUE")
	if value.Kind != model.KindUnion {
		t.Errorf("kind = %s, want union", value.Kind)
	}
	if value.Owner.ParentID != slot.ID {
		t.Errorf("owner = %s, want %s", value.Owner.ParentID, slot.ID)
	}
}

func TestAnonymousMemberUsesKeyword(t *testing.T) {
	p := build(t, map[string]string{
		"v.h": `typedef struct {
	int tag;
	union { int i; double d; };
} variant_t;`,
	}, "v.h")

	u := mustGet(t, p, "TYPEDEF_VARIANT_T_UNION")
	if u.Owner == nil || u.Owner.FieldPath[0] != "union" {
		t.Errorf("owner = %+v", u.Owner)
	}
}

func TestNameCollisionGetsSuffix(t *testing.T) {
	// a declared typedef is never displaced by a synthesized name
	p := build(t, map[string]string{
		"a.h": `typedef struct { struct { int a; } inner; } box_t;`,
		"b.h": `typedef struct { int b; } box_t_inner;`,
	}, "a.h", "b.h")

	declared := mustGet(t, p, "TYPEDEF_BOX_T_INNER")
	if declared.Anonymous {
		t.Error("the declared typedef owns the plain id")
	}
	synth := mustGet(t, p, "TYPEDEF_BOX_T_INNER_2")
	if !synth.Anonymous || synth.Owner.ParentID != "TYPEDEF_BOX_T" {
		t.Errorf("unexpected synthesized entity %+v", synth)
	}
}

func TestGlobalInlineType(t *testing.T) {
	p := build(t, map[string]string{
		"g.c": `struct { int a; } cfg;`,
	}, "g.c")

	cfg := mustGet(t, p, "TYPEDEF_CFG")
	if cfg.Owner != nil {
		t.Error("globals have no owner")
	}
	g := p.Files["g.c"].Globals[0]
	if g.Type.ID != cfg.ID {
		t.Errorf("global type = %+v", g.Type)
	}
}

func TestSharedInlineNodeSynthesizedOnce(t *testing.T) {
	p := build(t, map[string]string{
		"s.h": `typedef struct {
	struct { int x; } a, *b;
} pair_t;`,
	}, "s.h")

	mustGet(t, p, "TYPEDEF_PAIR_T_A")
	if _, ok := p.Types.Get("TYPEDEF_PAIR_T_B"); ok {
		t.Error("declarators sharing one body must share one entity")
	}
	pair := mustGet(t, p, "TYPEDEF_PAIR_T")
	if pair.Fields[1].Type.Inner.ID != "TYPEDEF_PAIR_T_A" {
		t.Errorf("b = %s", pair.Fields[1].Type)
	}
}

func TestFunctionParamAndReturn(t *testing.T) {
	p := build(t, map[string]string{
		"f.c": `struct { int ok; } check(struct { int n; } *req);`,
	}, "f.c")

	mustGet(t, p, "TYPEDEF_CHECK_RETURN")
	req := mustGet(t, p, "TYPEDEF_CHECK_REQ")
	if req.Owner != nil {
		t.Error("free function parameters have no owner")
	}
}

func TestCallbackFieldParam(t *testing.T) {
	p := build(t, map[string]string{
		"cb.h": `typedef struct {
	void (*on_event)(struct { int code; } *ev, int);
} listener_t;`,
	}, "cb.h")

	ev := mustGet(t, p, "TYPEDEF_LISTENER_T_ON_EVENT_EV")
	if ev.Opaque {
		t.Error("single function layer should be synthesized")
	}
	want := []string{"on_event", "ev"}
	if len(ev.Owner.FieldPath) != 2 || ev.Owner.FieldPath[0] != want[0] || ev.Owner.FieldPath[1] != want[1] {
		t.Errorf("field path = %v, want %v", ev.Owner.FieldPath, want)
	}
}

func TestTooComplexIsOpaque(t *testing.T) {
	p := build(t, map[string]string{
		"x.h": `typedef struct {
	void (*(*make)(void))(struct { int a; } *arg);
	void (*table[2])(struct { int b; } *arg);
} hard_t;`,
	}, "x.h")

	var ambiguous int
	for _, d := range p.Diagnostics {
		if d.Kind == diag.SynthesisAmbiguity {
			ambiguous++
			if d.Symbol != "TYPEDEF_HARD_T" {
				t.Errorf("symbol = %s", d.Symbol)
			}
		}
	}
	if ambiguous != 2 {
		t.Fatalf("expected 2 ambiguity diagnostics, got %d: %v", ambiguous, p.Diagnostics)
	}
	for _, e := range p.Types.All() {
		if e.Anonymous && !e.Opaque {
			t.Errorf("%s should be opaque", e.ID)
		}
	}
}

func TestNoInlineLeft(t *testing.T) {
	p := build(t, map[string]string{
		"m.h": `typedef struct {
	struct { struct { int z; } deep; } mid;
	union { struct { char c; } s; int i; } u;
} mix_t;
struct { enum { A, B } mode; } global_state;`,
	}, "m.h")

	check := func(x *model.TypeExpr) {
		model.Walk(x, func(n *model.TypeExpr) bool {
			if n.Kind == model.ExprInline {
				t.Errorf("inline body left behind: %s", n)
			}
			return true
		})
	}
	for _, e := range p.Types.All() {
		for _, x := range e.Exprs() {
			check(x)
		}
	}
	for _, g := range p.Files["m.h"].Globals {
		check(g.Type)
	}
	mustGet(t, p, "TYPEDEF_GLOBAL_STATE_MODE")
}

func TestCancelled(t *testing.T) {
	p := model.NewProject()
	toks, _ := lexer.Tokenize([]byte(`typedef struct { struct { int a; } b; } c_t;`))
	extract.Merge(p, []*extract.Result{extract.File("c.h", toks)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Run(ctx, p); err == nil {
		t.Fatal("expected context error")
	}
}
