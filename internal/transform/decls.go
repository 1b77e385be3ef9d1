package transform

import (
	"fmt"
	"path"
	"regexp"

	"github.com/abramin/cmodel/internal/model"
)

func (a *applier) removeDecls(op Operation) int {
	removed := 0
	for _, p := range a.selectedPaths() {
		f := a.p.Files[p]
		var n int
		switch op.Category {
		case "functions":
			f.Functions, n = removeNamed(f.Functions, func(fn *model.Function) *string { return &fn.Name }, op.Pattern)
		case "macros":
			f.Macros, n = removeNamed(f.Macros, func(m *model.Macro) *string { return &m.Name }, op.Pattern)
		case "globals":
			f.Globals, n = removeNamed(f.Globals, func(g *model.Variable) *string { return &g.Name }, op.Pattern)
		case "includes":
			f.Includes, n = removeNamed(f.Includes, func(inc *model.Include) *string { return &inc.Name }, op.Pattern)
			f.IncludeRelations, _ = removeNamed(f.IncludeRelations, func(e *model.IncludeEdge) *string { return &e.To }, baseMatcher{op.Pattern})
		}
		removed += n
	}
	return removed
}

func (a *applier) renameDecls(op Operation) int {
	renamed := 0
	for _, p := range a.selectedPaths() {
		f := a.p.Files[p]
		var n int
		var dropped []string
		switch op.Category {
		case "functions":
			f.Functions, n, dropped = renameNamed(f.Functions, func(fn *model.Function) *string { return &fn.Name }, op)
		case "macros":
			f.Macros, n, dropped = renameNamed(f.Macros, func(m *model.Macro) *string { return &m.Name }, op)
		case "globals":
			f.Globals, n, dropped = renameNamed(f.Globals, func(g *model.Variable) *string { return &g.Name }, op)
		case "includes":
			f.Includes, n, dropped = renameNamed(f.Includes, func(inc *model.Include) *string { return &inc.Name }, op)
		}
		for _, d := range dropped {
			a.conflict(p, d, fmt.Sprintf("%s rename produced a duplicate %s; keeping the first", op.Category, d))
		}
		renamed += n
	}
	return renamed
}

type matcher interface {
	MatchString(string) bool
}

// baseMatcher matches a pattern against a path or its base name, so an
// include pattern like "^config\.h$" also drops the include relation to
// "inc/config.h".
type baseMatcher struct {
	re *regexp.Regexp
}

func (m baseMatcher) MatchString(s string) bool {
	return m.re.MatchString(s) || m.re.MatchString(path.Base(s))
}

func removeNamed[T any](items []T, name func(*T) *string, re matcher) ([]T, int) {
	out := items[:0]
	removed := 0
	for i := range items {
		if re.MatchString(*name(&items[i])) {
			removed++
			continue
		}
		out = append(out, items[i])
	}
	return out, removed
}

// renameNamed renames matching items in place and then drops items whose new
// name collides with an earlier item of a different original name. Items
// that shared a name before the rename, such as a prototype and its
// definition, stay together.
func renameNamed[T any](items []T, name func(*T) *string, op Operation) ([]T, int, []string) {
	orig := make([]string, len(items))
	renamed := 0
	for i := range items {
		n := name(&items[i])
		orig[i] = *n
		if !op.Pattern.MatchString(*n) {
			continue
		}
		next := op.Pattern.ReplaceAllString(*n, op.Replacement)
		if next == "" || next == *n {
			continue
		}
		*n = next
		renamed++
	}
	if renamed == 0 {
		return items, 0, nil
	}

	holder := make(map[string]string)
	out := make([]T, 0, len(items))
	var dropped []string
	for i := range items {
		n := *name(&items[i])
		if first, ok := holder[n]; ok && first != orig[i] {
			dropped = append(dropped, n)
			continue
		} else if !ok {
			holder[n] = orig[i]
		}
		out = append(out, items[i])
	}
	return out, renamed, dropped
}
