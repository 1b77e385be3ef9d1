// Package resolve derives include relations for root source files and the
// declares, uses and contains relationship sets. Everything it writes is
// recomputed from scratch on each run.
package resolve

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/abramin/cmodel/internal/config"
	"github.com/abramin/cmodel/internal/model"
)

// Override is the per-root-file include setting.
type Override struct {
	IncludeDepth  int
	IncludeFilter []*regexp.Regexp
}

// Options controls include expansion.
type Options struct {
	IncludeDepth       int
	AlwaysShowIncludes bool
	// LocalOnly keeps only headers whose stem matches the root file's stem.
	LocalOnly bool
	// FileSpecific is keyed by the root file's base name.
	FileSpecific map[string]Override
}

// OptionsFromConfig compiles the include settings of cfg.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		IncludeDepth:       cfg.IncludeDepth,
		AlwaysShowIncludes: cfg.AlwaysShowIncludes,
		LocalOnly:          cfg.IncludeFilterLocalOnly,
		FileSpecific:       make(map[string]Override, len(cfg.FileSpecific)),
	}
	for name, fs := range cfg.FileSpecific {
		ov := Override{IncludeDepth: fs.IncludeDepth}
		for _, pat := range fs.IncludeFilter {
			re, err := regexp.Compile(pat)
			if err != nil {
				return Options{}, fmt.Errorf("file_specific %s: include_filter %q: %w", name, pat, err)
			}
			ov.IncludeFilter = append(ov.IncludeFilter, re)
		}
		// keys may be written as paths; roots are matched by base name
		opts.FileSpecific[path.Base(name)] = ov
	}
	return opts, nil
}

// Run fills every file's IncludeRelations and the project's Relations.
func Run(p *model.Project, opts Options) {
	r := newResolver(p)
	for _, fp := range r.paths {
		f := p.Files[fp]
		f.IncludeRelations = nil
		if f.Kind == model.FileSource {
			f.IncludeRelations = r.includes(f, opts)
		}
	}
	p.Relations = Relations(p)
}

type resolver struct {
	p      *model.Project
	paths  []string
	byBase map[string][]string
}

func newResolver(p *model.Project) *resolver {
	r := &resolver{p: p, paths: p.Paths(), byBase: make(map[string][]string)}
	for _, fp := range r.paths {
		base := path.Base(fp)
		r.byBase[base] = append(r.byBase[base], fp)
	}
	return r
}

func stem(name string) string {
	name = path.Base(name)
	return strings.TrimSuffix(name, path.Ext(name))
}

// lookup finds the project file an include names: next to the includer,
// then by path suffix, then the lexicographically smallest base name match.
func (r *resolver) lookup(includer, name string) string {
	if rel := path.Join(path.Dir(includer), name); r.p.Files[rel] != nil {
		return rel
	}
	clean := path.Clean(name)
	for _, p := range r.paths {
		if p == clean || strings.HasSuffix(p, "/"+clean) {
			return p
		}
	}
	if matches := r.byBase[path.Base(clean)]; len(matches) > 0 {
		return matches[0]
	}
	return ""
}

type queued struct {
	path  string
	depth int
}

// includes runs a breadth-first walk from root, recording each reachable
// header once at the depth it was first reached.
func (r *resolver) includes(root *model.SourceFile, opts Options) []model.IncludeEdge {
	depth := opts.IncludeDepth
	ov, hasOverride := opts.FileSpecific[path.Base(root.Name)]
	if hasOverride && ov.IncludeDepth > 0 {
		depth = ov.IncludeDepth
	}
	if depth < 1 {
		depth = 1
	}

	allowed := func(header string) bool {
		if opts.LocalOnly && stem(header) != stem(root.Name) {
			return false
		}
		if len(ov.IncludeFilter) == 0 {
			return true
		}
		for _, re := range ov.IncludeFilter {
			if re.MatchString(path.Base(header)) {
				return true
			}
		}
		return false
	}

	var edges []model.IncludeEdge
	seen := map[string]bool{root.Path: true}
	queue := []queued{{root.Path, 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= depth {
			continue
		}
		for _, inc := range r.p.Files[cur.path].Includes {
			target := r.lookup(cur.path, inc.Name)
			if target == "" || seen[target] {
				continue
			}
			seen[target] = true
			edge := model.IncludeEdge{From: cur.path, To: target, Depth: cur.depth + 1}
			if !allowed(target) {
				if opts.AlwaysShowIncludes {
					// placeholders are shown but never expanded
					edge.Placeholder = true
					edges = append(edges, edge)
				}
				continue
			}
			edges = append(edges, edge)
			queue = append(queue, queued{target, cur.depth + 1})
		}
	}
	return edges
}

// Relations derives the three relationship sets from the current model.
func Relations(p *model.Project) model.Relations {
	reg := p.Types
	var rel model.Relations

	for _, fp := range p.Paths() {
		for _, id := range p.Files[fp].Declared {
			if reg.Has(id) {
				rel.Declares = append(rel.Declares, model.Edge{Source: fp, Target: id})
			}
		}
	}

	for _, e := range reg.All() {
		for _, x := range e.Exprs() {
			model.Walk(x, func(n *model.TypeExpr) bool {
				if n.Kind == model.ExprNamed && n.ID != e.ID && reg.Has(n.ID) {
					rel.Uses = append(rel.Uses, model.Edge{Source: e.ID, Target: n.ID})
				}
				return true
			})
		}
		if e.Owner != nil && reg.Has(e.Owner.ParentID) {
			rel.Contains = append(rel.Contains, model.Edge{Source: e.Owner.ParentID, Target: e.ID})
		}
	}

	rel.Declares = sortEdges(rel.Declares)
	rel.Uses = sortEdges(rel.Uses)
	rel.Contains = sortEdges(rel.Contains)
	return rel
}

func sortEdges(edges []model.Edge) []model.Edge {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		return edges[i].Target < edges[j].Target
	})
	out := edges[:0]
	for _, e := range edges {
		if len(out) > 0 && out[len(out)-1] == e {
			continue
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return []model.Edge{}
	}
	return out
}
