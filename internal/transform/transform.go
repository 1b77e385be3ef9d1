// Package transform applies the configured rename and remove containers to a
// linked project model.
//
// Containers run in order. Inside a container every removal runs before any
// rename; categories follow config.Categories and patterns keep config order.
// Renames and removals keep the model referentially intact: every named
// reference, owner link, declared list and include statement follows.
package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/abramin/cmodel/internal/config"
	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/model"
)

// OpKind tags an Operation.
type OpKind string

const (
	OpRemove OpKind = "remove"
	OpRename OpKind = "rename"
)

// Operation is a compiled rename or remove rule.
type Operation struct {
	Kind        OpKind
	Category    string
	Pattern     *regexp.Regexp
	Replacement string
}

func (o Operation) String() string {
	if o.Kind == OpRename {
		return fmt.Sprintf("rename %s %q -> %q", o.Category, o.Pattern, o.Replacement)
	}
	return fmt.Sprintf("remove %s %q", o.Category, o.Pattern)
}

// Container is a compiled transformation stage.
type Container struct {
	Name      string
	Selection []*regexp.Regexp
	Removes   []Operation
	Renames   []Operation
}

// Compile turns the configured containers into operations, ordered for
// application.
func Compile(cfg *config.Config) ([]Container, error) {
	out := make([]Container, 0, len(cfg.Transformations))
	for _, ct := range cfg.Transformations {
		c := Container{Name: ct.Name}
		for _, s := range ct.FileSelection {
			re, err := regexp.Compile(s)
			if err != nil {
				return nil, fmt.Errorf("container %s: file_selection %q: %w", ct.Name, s, err)
			}
			c.Selection = append(c.Selection, re)
		}
		for cat := range ct.Rename {
			if !config.IsCategory(cat) {
				return nil, fmt.Errorf("container %s: unknown rename category %q", ct.Name, cat)
			}
		}
		for cat := range ct.Remove {
			if !config.IsCategory(cat) {
				return nil, fmt.Errorf("container %s: unknown remove category %q", ct.Name, cat)
			}
		}
		for _, cat := range config.Categories {
			for _, r := range ct.Remove[cat] {
				re, err := regexp.Compile(r.Pattern)
				if err != nil {
					return nil, fmt.Errorf("container %s: remove %s %q: %w", ct.Name, cat, r.Pattern, err)
				}
				c.Removes = append(c.Removes, Operation{Kind: OpRemove, Category: cat, Pattern: re})
			}
			for _, r := range ct.Rename[cat] {
				re, err := regexp.Compile(r.Pattern)
				if err != nil {
					return nil, fmt.Errorf("container %s: rename %s %q: %w", ct.Name, cat, r.Pattern, err)
				}
				c.Renames = append(c.Renames, Operation{
					Kind:        OpRename,
					Category:    cat,
					Pattern:     re,
					Replacement: Replacement(r.Replacement),
				})
			}
		}
		out = append(out, c)
	}
	return out, nil
}

var backref = regexp.MustCompile(`\\(\d+)|\\g<(\w+)>`)

// Replacement converts \1 and \g<name> group references to Go's ${1} and
// ${name}. Go-style $1 references pass through.
func Replacement(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return backref.ReplaceAllStringFunc(s, func(m string) string {
		sub := backref.FindStringSubmatch(m)
		if sub[1] != "" {
			return "${" + sub[1] + "}"
		}
		return "${" + sub[2] + "}"
	})
}

// ContainerReport counts what one container did.
type ContainerReport struct {
	Name      string `json:"name"`
	Files     int    `json:"files"`
	Removed   int    `json:"removed"`
	Renamed   int    `json:"renamed"`
	Conflicts int    `json:"conflicts"`
}

// Report summarizes an Apply run.
type Report struct {
	Containers []ContainerReport `json:"containers"`
}

// Totals sums the container counts.
func (r *Report) Totals() (removed, renamed, conflicts int) {
	for _, c := range r.Containers {
		removed += c.Removed
		renamed += c.Renamed
		conflicts += c.Conflicts
	}
	return removed, renamed, conflicts
}

type applier struct {
	p   *model.Project
	ct  *Container
	rep *ContainerReport

	// selected is nil when every file is selected.
	selected map[string]bool
}

// Apply runs containers against p in order. Conflicts are recorded as
// diagnostics on p. Cancellation is checked between containers; on
// cancellation the partially transformed project must be discarded.
func Apply(ctx context.Context, p *model.Project, containers []Container) (*Report, error) {
	rep := &Report{}
	for i := range containers {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		ct := &containers[i]
		a := &applier{p: p, ct: ct, rep: &ContainerReport{Name: ct.Name}}
		a.selectFiles()

		for _, op := range ct.Removes {
			a.rep.Removed += a.remove(op)
		}
		for _, op := range ct.Renames {
			a.rep.Renamed += a.rename(op)
		}
		rep.Containers = append(rep.Containers, *a.rep)
	}
	return rep, nil
}

func (a *applier) selectFiles() {
	if len(a.ct.Selection) == 0 {
		a.rep.Files = len(a.p.Files)
		return
	}
	a.selected = make(map[string]bool)
	for _, path := range a.p.Paths() {
		for _, re := range a.ct.Selection {
			if re.MatchString(path) {
				a.selected[path] = true
				break
			}
		}
	}
	a.rep.Files = len(a.selected)
}

func (a *applier) isSelected(path string) bool {
	return a.selected == nil || a.selected[path]
}

// selectedPaths returns the selected file paths in sorted order.
func (a *applier) selectedPaths() []string {
	var out []string
	for _, path := range a.p.Paths() {
		if a.isSelected(path) {
			out = append(out, path)
		}
	}
	return out
}

func (a *applier) remove(op Operation) int {
	switch op.Category {
	case "files":
		return a.removeFiles(op)
	case "functions", "macros", "globals", "includes":
		return a.removeDecls(op)
	}
	return a.removeTypes(op)
}

func (a *applier) rename(op Operation) int {
	switch op.Category {
	case "files":
		return a.renameFiles(op)
	case "functions", "macros", "globals", "includes":
		return a.renameDecls(op)
	}
	return a.renameTypes(op)
}

func (a *applier) conflict(file, symbol, msg string) {
	a.rep.Conflicts++
	a.p.Report(diag.Diagnostic{
		Kind:    diag.TransformationConflict,
		File:    file,
		Symbol:  symbol,
		Message: a.ct.Name + ": " + msg,
	})
}

// eachExpr calls fn for every node of every type expression in the project.
func (a *applier) eachExpr(fn func(*model.TypeExpr)) {
	visit := func(x *model.TypeExpr) {
		model.Walk(x, func(n *model.TypeExpr) bool {
			fn(n)
			return true
		})
	}
	for _, e := range a.p.Types.All() {
		for _, x := range e.Exprs() {
			visit(x)
		}
	}
	for _, path := range a.p.Paths() {
		f := a.p.Files[path]
		for _, g := range f.Globals {
			visit(g.Type)
		}
		for _, fn := range f.Functions {
			visit(fn.Return)
			for _, prm := range fn.Params {
				visit(prm.Type)
			}
		}
	}
}
