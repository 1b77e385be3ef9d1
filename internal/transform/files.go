package transform

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/abramin/cmodel/internal/model"
)

func (a *applier) matchFiles(op Operation) []string {
	var out []string
	for _, p := range a.selectedPaths() {
		if op.Pattern.MatchString(p) {
			out = append(out, p)
		}
	}
	return out
}

// removeFiles drops matching files, the entities they declare, and the
// include relations that point at them.
func (a *applier) removeFiles(op Operation) int {
	paths := a.matchFiles(op)
	if len(paths) == 0 {
		return 0
	}
	doomed := make(map[string]bool, len(paths))
	for _, p := range paths {
		doomed[p] = true
	}

	gone := make(map[string]bool)
	for _, e := range a.p.Types.All() {
		if doomed[e.File] {
			gone[e.ID] = true
		}
	}
	for _, p := range paths {
		for _, id := range a.p.Files[p].Declared {
			gone[id] = true
		}
	}
	// keep entities another surviving file also declares
	for path, f := range a.p.Files {
		if doomed[path] {
			continue
		}
		for _, id := range f.Declared {
			if e, ok := a.p.Types.Get(id); ok && !doomed[e.File] {
				delete(gone, id)
			}
		}
	}
	a.dropTypes(gone)

	for _, p := range paths {
		delete(a.p.Files, p)
		if a.selected != nil {
			delete(a.selected, p)
		}
	}
	for _, f := range a.p.Files {
		f.IncludeRelations = slices.DeleteFunc(f.IncludeRelations, func(e model.IncludeEdge) bool {
			return doomed[e.To] || doomed[e.From]
		})
	}
	return len(paths)
}

func (a *applier) renameFiles(op Operation) int {
	renamed := 0
	for _, old := range a.matchFiles(op) {
		next := strings.TrimPrefix(op.Pattern.ReplaceAllString(old, op.Replacement), "./")
		if next == "" || next == old {
			continue
		}
		renamed++
		f := a.p.Files[old]
		a.rewriteIncludes(old, next)

		if existing, ok := a.p.Files[next]; ok {
			a.conflict(old, old, fmt.Sprintf("renaming file to %s collides with an existing file; merged into it", next))
			mergeFile(existing, f)
		} else {
			f.Path = next
			f.Name = path.Base(next)
			f.Kind = model.KindForPath(next)
			a.p.Files[next] = f
		}
		delete(a.p.Files, old)
		if a.selected != nil && a.selected[old] {
			delete(a.selected, old)
			a.selected[next] = true
		}

		for _, e := range a.p.Types.All() {
			if e.File == old {
				e.File = next
			}
			if e.Owner != nil && e.Owner.SourceFile == old {
				e.Owner.SourceFile = next
			}
		}
		for _, g := range a.p.Files {
			for i := range g.IncludeRelations {
				if g.IncludeRelations[i].From == old {
					g.IncludeRelations[i].From = next
				}
				if g.IncludeRelations[i].To == old {
					g.IncludeRelations[i].To = next
				}
			}
		}
	}
	return renamed
}

// rewriteIncludes respells include directives that resolve to old so they
// resolve to next.
func (a *applier) rewriteIncludes(old, next string) {
	for _, p := range a.p.Paths() {
		f := a.p.Files[p]
		for i := range f.Includes {
			inc := &f.Includes[i]
			if a.includeRefers(f.Path, inc.Name, old) {
				inc.Name = respell(inc.Name, next)
			}
		}
	}
}

// includeRefers reports whether an include of name from includer reaches
// target: relative to the includer, as the full path, or as a path suffix
// no other project file shares.
func (a *applier) includeRefers(includer, name, target string) bool {
	if path.Join(path.Dir(includer), name) == target || name == target {
		return true
	}
	if !strings.HasSuffix(target, "/"+name) {
		return false
	}
	for p := range a.p.Files {
		if p != target && (p == name || strings.HasSuffix(p, "/"+name)) {
			return false
		}
	}
	return true
}

// respell keeps as many trailing path components of next as name had.
func respell(name, next string) string {
	k := strings.Count(name, "/") + 1
	parts := strings.Split(next, "/")
	if k >= len(parts) {
		return next
	}
	return strings.Join(parts[len(parts)-k:], "/")
}

func mergeFile(dst, src *model.SourceFile) {
	dst.Includes = append(dst.Includes, src.Includes...)
	dst.Macros = append(dst.Macros, src.Macros...)
	dst.Globals = append(dst.Globals, src.Globals...)
	dst.Functions = append(dst.Functions, src.Functions...)
	for _, id := range src.Declared {
		dst.Declare(id)
	}
	dst.IncludeRelations = append(dst.IncludeRelations, src.IncludeRelations...)
}
