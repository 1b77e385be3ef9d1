package index

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/abramin/cmodel/internal/config"
	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/model"
	"github.com/abramin/cmodel/internal/store"
)

// writeTree creates files under dir from a path -> content map.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

var fixture = map[string]string{
	"src/main.c": `#include "widget.h"
#include <stdio.h>

int main(void) { return 0; }
`,
	"include/widget.h": `#ifndef WIDGET_H
#define WIDGET_H
typedef struct {
	struct { int x; int y; } pos;
	int w;
} widget_t;
typedef widget_t *widget_ref;
#endif
`,
	"src/bad.c":      "const char *s = \"oops;\n",
	"build/gen.c":    `int generated;`,
	"src/msg.pb.h":   `typedef int msg_t;`,
	"docs/notes.txt": `not code`,
}

func fixtureConfig() *config.Config {
	cfg := config.Default()
	cfg.Parallelism = 2
	cfg.Transformations = []config.Container{{
		Name: "transformations_00_rename",
		Rename: map[string][]config.Rule{
			"structs": {{Pattern: "^widget_t$", Replacement: "gadget_t"}},
		},
	}}
	return cfg
}

func readProject(t *testing.T, path string) *model.Project {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	p := model.NewProject()
	if err := json.Unmarshal(data, p); err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
	return p
}

func TestIndexerRun(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, fixture)

	idx, err := NewIndexer(fixtureConfig(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := idx.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.FileCount != 3 {
		t.Errorf("FileCount = %d, want 3", res.FileCount)
	}
	if res.RunID == "" {
		t.Error("missing run id")
	}
	for _, name := range []string{ModelFile, TransformedModelFile, "index.db", "index.json"} {
		if _, err := os.Stat(filepath.Join(dir, ".cmodel", name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	before := readProject(t, res.ModelPath)
	if !before.Types.Has("TYPEDEF_WIDGET_T") || before.Types.Has("TYPEDEF_GADGET_T") {
		t.Error("model.json must hold the untransformed model")
	}

	after := readProject(t, res.TransformedPath)
	if after.Types.Has("TYPEDEF_WIDGET_T") || !after.Types.Has("TYPEDEF_GADGET_T") {
		t.Error("rename not applied to the transformed model")
	}
	ref, ok := after.Types.Get("TYPEDEF_WIDGET_REF")
	if !ok || ref.CanonicalTarget != "TYPEDEF_GADGET_T" {
		t.Errorf("widget_ref canonical target = %+v", ref)
	}
	if !after.Types.Has("TYPEDEF_WIDGET_T_POS") {
		t.Error("synthesized member missing")
	}
	rel := after.Files["src/main.c"].IncludeRelations
	if len(rel) != 1 || rel[0].To != "include/widget.h" {
		t.Errorf("main.c include relations = %+v", rel)
	}
	if after.RunID != res.RunID {
		t.Errorf("run id %q not emitted", res.RunID)
	}

	lexErrs := 0
	for _, d := range res.Summary.ByFile["src/bad.c"] {
		if d.Kind == diag.LexError {
			lexErrs++
		}
	}
	if lexErrs != 1 || res.Summary.ByKind[diag.LexError] != 1 {
		t.Errorf("expected one lex error in src/bad.c, got %+v", res.Summary.ByKind)
	}

	st, err := store.Open(filepath.Join(dir, ".cmodel"))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	stats, err := st.GetStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.FileCount != 3 || stats.EntityCount != res.EntityCount || stats.RunID != res.RunID {
		t.Errorf("stored stats %+v do not match result %+v", stats, res)
	}
}

func TestIndexerDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, fixture)

	var outputs [2][]byte
	for i := range outputs {
		idx, err := NewIndexer(fixtureConfig(), dir, nil)
		if err != nil {
			t.Fatal(err)
		}
		_, p, _, err := idx.Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		p.RunID = ""
		outputs[i], _ = json.Marshal(p)
	}
	if string(outputs[0]) != string(outputs[1]) {
		t.Error("two builds of the same tree differ")
	}
}

func TestIndexerRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, fixture)

	cfg := config.Default()
	cfg.Transformations = []config.Container{{
		Name:   "broken",
		Remove: map[string][]config.Rule{"functions": {{Pattern: "("}}},
	}}
	idx, err := NewIndexer(cfg, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Run(context.Background()); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
	if _, err := os.Stat(filepath.Join(dir, ".cmodel", ModelFile)); err == nil {
		t.Error("nothing should be written when the config is invalid")
	}
}

func TestIndexerCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, fixture)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	idx, err := NewIndexer(fixtureConfig(), dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := idx.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run with cancelled context = %v, want context.Canceled", err)
	}
}
