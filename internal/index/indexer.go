// Package index orchestrates a full run: discovery, decoding, parallel
// per-file parsing, the ordered whole-project stages, validation, emitted
// JSON and persistence.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abramin/cmodel/internal/canon"
	"github.com/abramin/cmodel/internal/config"
	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/extract"
	"github.com/abramin/cmodel/internal/lexer"
	"github.com/abramin/cmodel/internal/model"
	"github.com/abramin/cmodel/internal/resolve"
	"github.com/abramin/cmodel/internal/store"
	"github.com/abramin/cmodel/internal/synth"
	"github.com/abramin/cmodel/internal/transform"
	"github.com/abramin/cmodel/internal/validate"
)

// Output file names inside the output directory.
const (
	ModelFile            = "model.json"
	TransformedModelFile = "model_transformed.json"
)

// Indexer runs the whole pipeline for one project directory.
type Indexer struct {
	cfg        *config.Config
	projectDir string
	logger     *log.Logger
}

// Result contains the results of an indexing run.
type Result struct {
	RunID           string
	FileCount       int
	EntityCount     int
	DiagnosticCount int
	Transform       *transform.Report
	Summary         diag.Summary
	Duration        time.Duration
	DBPath          string
	ModelPath       string
	TransformedPath string
}

// NewIndexer creates a new indexer. A nil logger discards output.
func NewIndexer(cfg *config.Config, projectDir string, logger *log.Logger) (*Indexer, error) {
	absDir, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolving project directory: %w", err)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Indexer{
		cfg:        cfg,
		projectDir: absDir,
		logger:     logger,
	}, nil
}

// OutputDir returns the absolute output directory.
func (idx *Indexer) OutputDir() string {
	if filepath.IsAbs(idx.cfg.OutputDir) {
		return idx.cfg.OutputDir
	}
	return filepath.Join(idx.projectDir, idx.cfg.OutputDir)
}

// Build discovers and parses the project and runs every model stage. It
// returns the model as it was before transformation, already marshaled,
// and the transformed project.
func (idx *Indexer) Build(ctx context.Context) (before []byte, p *model.Project, rep *transform.Report, err error) {
	containers, err := transform.Compile(idx.cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compiling transformations: %w", err)
	}
	opts, err := resolve.OptionsFromConfig(idx.cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compiling include options: %w", err)
	}

	paths, err := Discover(idx.cfg, idx.projectDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("discovering files: %w", err)
	}
	idx.logger.Infof("Discovered %d files in %s", len(paths), idx.projectDir)

	results, err := idx.parse(ctx, paths)
	if err != nil {
		return nil, nil, nil, err
	}

	p = model.NewProject()
	p.RunID = uuid.NewString()
	extract.Merge(p, results)
	if err := synth.Run(ctx, p); err != nil {
		return nil, nil, nil, fmt.Errorf("synthesizing anonymous types: %w", err)
	}
	extract.Link(p)
	idx.canonicalize(p)
	resolve.Run(p, opts)
	idx.logger.Infof("Parsed %d files, %d type entities", len(p.Files), p.Types.Len())

	before, err = json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling model: %w", err)
	}

	rep, err = transform.Apply(ctx, p, containers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("applying transformations: %w", err)
	}
	for _, c := range rep.Containers {
		idx.logger.Infof("Container %s: %d files selected, %d removed, %d renamed, %d conflicts",
			c.Name, c.Files, c.Removed, c.Renamed, c.Conflicts)
	}
	idx.canonicalize(p)
	resolve.Run(p, opts)
	diag.Sort(p.Diagnostics)

	return before, p, rep, nil
}

// parse tokenizes and extracts every file in parallel. Results keep the
// order of paths.
func (idx *Indexer) parse(ctx context.Context, paths []string) ([]*extract.Result, error) {
	results := make([]*extract.Result, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if n := idx.cfg.Parallelism; n > 0 {
		g.SetLimit(n)
	}

	for i, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(filepath.Join(idx.projectDir, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("reading %s: %w", rel, err)
			}
			toks, lexErrs := lexer.Tokenize(Decode(src))
			res := extract.File(rel, toks)
			for _, le := range lexErrs {
				res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
					Kind:    diag.LexError,
					File:    rel,
					Line:    le.Line,
					Message: le.Message,
				})
			}
			results[i] = res
			idx.logger.Debugf("parsed %s: %d tokens, %d entities", rel, len(toks), len(res.Entities))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// canonicalize resolves alias chains, turning cycles into diagnostics. A
// cycle already reported by an earlier pass is not reported again.
func (idx *Indexer) canonicalize(p *model.Project) {
	known := make(map[string]bool)
	for _, d := range p.Diagnostics {
		if d.Kind == diag.CycleErrorKind {
			known[d.Message] = true
		}
	}
	err := canon.Run(p.Types)
	for _, c := range canon.Cycles(err) {
		d := c.Diagnostic()
		if !known[d.Message] {
			known[d.Message] = true
			p.Report(d)
		}
	}
}

// Run performs a complete indexing run and writes every output.
func (idx *Indexer) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	before, p, rep, err := idx.Build(ctx)
	if err != nil {
		return nil, err
	}

	v, err := validate.New()
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}
	if err := v.ValidateJSON(before); err != nil {
		return nil, fmt.Errorf("validating %s: %w", ModelFile, err)
	}
	after, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling transformed model: %w", err)
	}
	if err := v.ValidateJSON(after); err != nil {
		return nil, fmt.Errorf("validating %s: %w", TransformedModelFile, err)
	}

	outDir := idx.OutputDir()
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	modelPath := filepath.Join(outDir, ModelFile)
	if err := os.WriteFile(modelPath, before, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", ModelFile, err)
	}
	transformedPath := filepath.Join(outDir, TransformedModelFile)
	if err := os.WriteFile(transformedPath, after, 0644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", TransformedModelFile, err)
	}

	dbPath, err := idx.persist(p)
	if err != nil {
		return nil, err
	}

	summary := diag.Summarize(p.Diagnostics)
	for _, d := range p.Diagnostics {
		idx.logger.Warn(d.Message, "kind", d.Kind, "file", d.File, "line", d.Line, "symbol", d.Symbol)
	}
	idx.logger.Infof("Wrote %s and %s", modelPath, transformedPath)

	return &Result{
		RunID:           p.RunID,
		FileCount:       len(p.Files),
		EntityCount:     p.Types.Len(),
		DiagnosticCount: summary.Total,
		Transform:       rep,
		Summary:         summary,
		Duration:        time.Since(start),
		DBPath:          dbPath,
		ModelPath:       modelPath,
		TransformedPath: transformedPath,
	}, nil
}

func (idx *Indexer) persist(p *model.Project) (string, error) {
	st, err := store.Open(idx.OutputDir())
	if err != nil {
		return "", fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.Clear(); err != nil {
		return "", fmt.Errorf("clearing store: %w", err)
	}
	if err := st.SaveProject(p); err != nil {
		return "", fmt.Errorf("saving project: %w", err)
	}
	if err := st.SetMetadata("indexed_at", time.Now().Format(time.RFC3339)); err != nil {
		return "", fmt.Errorf("setting metadata: %w", err)
	}
	if err := st.SetMetadata("project_dir", idx.projectDir); err != nil {
		return "", fmt.Errorf("setting metadata: %w", err)
	}
	if idx.cfg.ProjectName != "" {
		if err := st.SetMetadata("project_name", idx.cfg.ProjectName); err != nil {
			return "", fmt.Errorf("setting metadata: %w", err)
		}
	}
	if err := st.WriteIndexJSON(); err != nil {
		return "", fmt.Errorf("writing index.json: %w", err)
	}
	return st.DBPath(), nil
}
