package model

import (
	"encoding/json"
	"testing"
)

func TestCanonicalID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"pair_t", "TYPEDEF_PAIR_T"},
		{"widget_t_pos", "TYPEDEF_WIDGET_T_POS"},
		{"unsigned int", "TYPEDEF_UNSIGNED_INT"},
		{"MixedCase", "TYPEDEF_MIXEDCASE"},
	}

	for _, tt := range tests {
		if got := CanonicalID(tt.name); got != tt.want {
			t.Errorf("CanonicalID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path string
		want FileKind
	}{
		{"src/a.c", FileSource},
		{"src/a.CPP", FileSource},
		{"a.cc", FileSource},
		{"inc/a.h", FileHeader},
		{"inc/a.hpp", FileHeader},
	}
	for _, tt := range tests {
		if got := KindForPath(tt.path); got != tt.want {
			t.Errorf("KindForPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestRegistryUniqueName(t *testing.T) {
	r := NewRegistry()
	if got := r.UniqueName("w_pos"); got != "w_pos" {
		t.Errorf("UniqueName on empty registry = %q", got)
	}
	_ = r.Add(&TypeEntity{ID: CanonicalID("w_pos"), Name: "w_pos", Kind: KindStruct})
	if got := r.UniqueName("w_pos"); got != "w_pos_2" {
		t.Errorf("UniqueName = %q, want w_pos_2", got)
	}
	_ = r.Add(&TypeEntity{ID: CanonicalID("w_pos_2"), Name: "w_pos_2", Kind: KindStruct})
	if got := r.UniqueName("w_pos"); got != "w_pos_3" {
		t.Errorf("UniqueName = %q, want w_pos_3", got)
	}
}

func TestRegistryMergeForward(t *testing.T) {
	r := NewRegistry()
	fwd := &TypeEntity{ID: "TYPEDEF_NODE", Name: "node", Kind: KindStruct, Tag: "node", Forward: true}
	r.Merge(fwd)
	_ = r.Add(&TypeEntity{ID: "TYPEDEF_OTHER", Name: "other", Kind: KindEnum})

	def := &TypeEntity{ID: "TYPEDEF_NODE", Name: "node", Kind: KindStruct, Fields: []Field{{Name: "next"}}}
	kept, dup := r.Merge(def)
	if dup || kept != def {
		t.Fatalf("Merge(definition) = %v, %v; want definition kept", kept, dup)
	}
	if kept.Tag != "node" {
		t.Errorf("tag = %q, want carried over from forward declaration", kept.Tag)
	}
	if ids := r.IDs(); ids[0] != "TYPEDEF_NODE" {
		t.Errorf("IDs() = %v, want definition to keep the forward declaration's slot", ids)
	}

	again := &TypeEntity{ID: "TYPEDEF_NODE", Name: "node", Kind: KindStruct}
	if kept, dup := r.Merge(again); !dup || kept != def {
		t.Errorf("second definition should be reported as duplicate")
	}

	if id, ok := r.LookupTag("struct", "node"); !ok || id != "TYPEDEF_NODE" {
		t.Errorf("LookupTag(struct node) = %q, %v", id, ok)
	}
}

func TestRegistryRekeyAndRemove(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(&TypeEntity{ID: "TYPEDEF_A", Name: "a", Kind: KindStruct, Tag: "a"})
	_ = r.Add(&TypeEntity{ID: "TYPEDEF_B", Name: "b", Kind: KindUnion})

	if err := r.Rekey("TYPEDEF_A", "TYPEDEF_B"); err == nil {
		t.Error("Rekey onto an existing id should fail")
	}
	if err := r.Rekey("TYPEDEF_A", "TYPEDEF_C"); err != nil {
		t.Fatalf("Rekey: %v", err)
	}
	if id, _ := r.LookupTag("struct", "a"); id != "TYPEDEF_C" {
		t.Errorf("tag not retargeted, got %q", id)
	}
	if ids := r.IDs(); ids[0] != "TYPEDEF_C" || ids[1] != "TYPEDEF_B" {
		t.Errorf("IDs() = %v", ids)
	}

	r.Remove("TYPEDEF_C")
	if r.Has("TYPEDEF_C") || r.Len() != 1 {
		t.Errorf("Remove left %v", r.IDs())
	}
	if _, ok := r.LookupTag("struct", "a"); ok {
		t.Error("tag should be dropped with its entity")
	}
}

func TestRegistryJSONRoundTripKeepsOrder(t *testing.T) {
	r := NewRegistry()
	_ = r.Add(&TypeEntity{ID: "TYPEDEF_Z", Name: "z", Kind: KindPrimitive})
	_ = r.Add(&TypeEntity{ID: "TYPEDEF_A", Name: "a", Kind: KindAlias})

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	back := NewRegistry()
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}
	if ids := back.IDs(); len(ids) != 2 || ids[0] != "TYPEDEF_Z" {
		t.Errorf("IDs() after round trip = %v", ids)
	}
}

func TestTypeExprString(t *testing.T) {
	intT := Named("int", "")
	tests := []struct {
		name string
		expr *TypeExpr
		want string
	}{
		{"pointer", PointerTo(Named("char", "")), "char *"},
		{"array", ArrayOf(intT, "4"), "int [4]"},
		{"tagged", PointerTo(Named("node", "struct")), "struct node *"},
		{
			"function pointer",
			PointerTo(&TypeExpr{Kind: ExprFunction, Return: intT, Params: []Param{{Name: "p", Type: PointerTo(Named("char", ""))}}, Variadic: true}),
			"int (*)(char *p, ...)",
		},
		{"const pointer", &TypeExpr{Kind: ExprPointer, Inner: intT, Qualifiers: []string{"const"}}, "int *const"},
	}

	for _, tt := range tests {
		if got := tt.expr.String(); got != tt.want {
			t.Errorf("%s: String() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestWalkOrder(t *testing.T) {
	fn := &TypeExpr{
		Kind:   ExprFunction,
		Return: Named("r", ""),
		Params: []Param{{Type: Named("p1", "")}, {Type: PointerTo(Named("p2", ""))}},
	}
	var names []string
	Walk(PointerTo(fn), func(e *TypeExpr) bool {
		if e.Kind == ExprNamed {
			names = append(names, e.Name)
		}
		return true
	})
	want := []string{"r", "p1", "p2"}
	if len(names) != 3 || names[0] != want[0] || names[1] != want[1] || names[2] != want[2] {
		t.Errorf("Walk visited %v, want %v", names, want)
	}
}

func TestRegistryCaseDistinctNames(t *testing.T) {
	r := NewRegistry()
	alias := &TypeEntity{ID: CanonicalID("Float"), Name: "Float", Kind: KindAlias}
	if kept, dup := r.Merge(alias); dup || kept.ID != "TYPEDEF_FLOAT" {
		t.Fatalf("Merge(Float) = %s, %v", kept.ID, dup)
	}

	prim := r.AddUnique(&TypeEntity{ID: CanonicalID("float"), Name: "float", Kind: KindPrimitive})
	if prim.ID != "TYPEDEF_FLOAT_2" || prim.Name != "float" {
		t.Errorf("AddUnique(float) = %s %q, want TYPEDEF_FLOAT_2 keeping its name", prim.ID, prim.Name)
	}
	if got := r.UniqueID("FLOAT"); got != "TYPEDEF_FLOAT_3" {
		t.Errorf("UniqueID(FLOAT) = %s, want TYPEDEF_FLOAT_3", got)
	}

	tests := []struct {
		name string
		id   string
		ok   bool
	}{
		{"Float", "TYPEDEF_FLOAT", true},
		{"float", "TYPEDEF_FLOAT_2", true},
		{"FLOAT", "", false},
	}
	for _, tt := range tests {
		if id, ok := r.Lookup(tt.name); id != tt.id || ok != tt.ok {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.name, id, ok, tt.id, tt.ok)
		}
	}

	def := &TypeEntity{ID: CanonicalID("float"), Name: "float", Kind: KindStruct}
	if kept, dup := r.Merge(def); dup || kept != def || def.ID != "TYPEDEF_FLOAT_2" {
		t.Errorf("definition should replace the float primitive in place, got %s dup=%v", def.ID, dup)
	}

	r.SetName("TYPEDEF_FLOAT", "Real")
	if _, ok := r.Lookup("Float"); ok {
		t.Error("old spelling should be unindexed after SetName")
	}
	if id, _ := r.Lookup("Real"); id != "TYPEDEF_FLOAT" {
		t.Errorf("Lookup(Real) = %q", id)
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	back := NewRegistry()
	if err := json.Unmarshal(data, back); err != nil {
		t.Fatal(err)
	}
	if id, _ := back.Lookup("float"); id != "TYPEDEF_FLOAT_2" {
		t.Errorf("name index not rebuilt after unmarshal: Lookup(float) = %q", id)
	}
}
