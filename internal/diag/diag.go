// Package diag defines the error taxonomy shared by every pipeline stage and
// the project-level summary built from it.
package diag

import (
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a diagnostic.
type Kind string

const (
	LexError               Kind = "lex_error"
	ExtractionError        Kind = "extraction_error"
	SynthesisAmbiguity     Kind = "synthesis_ambiguity"
	CycleErrorKind         Kind = "cycle_error"
	TransformationConflict Kind = "transformation_conflict"
)

// Kinds lists every diagnostic kind in reporting order.
var Kinds = []Kind{LexError, ExtractionError, SynthesisAmbiguity, CycleErrorKind, TransformationConflict}

// Diagnostic is a non-fatal problem attached to a file, symbol or field path.
type Diagnostic struct {
	Kind      Kind     `json:"kind"`
	File      string   `json:"file,omitempty"`
	Symbol    string   `json:"symbol,omitempty"`
	FieldPath []string `json:"field_path,omitempty"`
	Line      int      `json:"line,omitempty"`
	Message   string   `json:"message"`
}

func (d Diagnostic) String() string {
	var b strings.Builder
	b.WriteString(string(d.Kind))
	if d.File != "" {
		b.WriteString(" ")
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
	}
	if d.Symbol != "" {
		b.WriteString(" ")
		b.WriteString(d.Symbol)
		if len(d.FieldPath) > 0 {
			b.WriteString(".")
			b.WriteString(strings.Join(d.FieldPath, "."))
		}
	}
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// CycleError reports an alias or ownership cycle. Chain lists the ids in
// traversal order, ending with the id that closed the loop.
type CycleError struct {
	Chain []string
	Owner bool
}

func (e *CycleError) Error() string {
	what := "alias"
	if e.Owner {
		what = "ownership"
	}
	return fmt.Sprintf("%s cycle: %s", what, strings.Join(e.Chain, " -> "))
}

// Diagnostic converts the error into a project diagnostic.
func (e *CycleError) Diagnostic() Diagnostic {
	sym := ""
	if len(e.Chain) > 0 {
		sym = e.Chain[0]
	}
	return Diagnostic{Kind: CycleErrorKind, Symbol: sym, Message: e.Error()}
}

// Summary groups diagnostics for reporting.
type Summary struct {
	Total  int                     `json:"total"`
	ByKind map[Kind]int            `json:"by_kind"`
	ByFile map[string][]Diagnostic `json:"by_file"`
}

// Summarize builds a Summary. Diagnostics without a file are grouped under "".
func Summarize(diags []Diagnostic) Summary {
	s := Summary{
		Total:  len(diags),
		ByKind: make(map[Kind]int),
		ByFile: make(map[string][]Diagnostic),
	}
	for _, d := range diags {
		s.ByKind[d.Kind]++
		s.ByFile[d.File] = append(s.ByFile[d.File], d)
	}
	return s
}

// Files returns the affected files in sorted order.
func (s Summary) Files() []string {
	files := make([]string, 0, len(s.ByFile))
	for f := range s.ByFile {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Sort orders diagnostics by file, line, kind and message.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Message < b.Message
	})
}
