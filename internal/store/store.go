package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/model"

	_ "modernc.org/sqlite"
)

// Store handles persistence of the final project model to SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	dir    string // output directory holding index.db and index.json
}

// Open creates or opens the cmodel index database at dir/index.db,
// creating dir if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "index.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{
		db:     db,
		dbPath: dbPath,
		dir:    dir,
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBPath returns the path to the database file.
func (s *Store) DBPath() string {
	return s.dbPath
}

// Clear removes all data from the database (for re-indexing).
func (s *Store) Clear() error {
	tables := []string{"fields", "includes", "relations", "diagnostics", "entities", "files", "metadata"}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clearing table %s: %w", table, err)
		}
	}
	return nil
}

// SaveProject writes every file, entity, relation, include edge and
// diagnostic of p in one transaction.
func (s *Store) SaveProject(p *model.Project) (err error) {
	batch, err := s.BeginBatch()
	if err != nil {
		return fmt.Errorf("beginning batch: %w", err)
	}
	defer func() {
		if err != nil {
			batch.Rollback()
		}
	}()

	for _, path := range p.Paths() {
		f := p.Files[path]
		if err := batch.InsertFile(f); err != nil {
			return fmt.Errorf("inserting file %s: %w", path, err)
		}
	}
	for _, e := range p.Types.All() {
		if err := batch.InsertEntity(e); err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.ID, err)
		}
	}
	sets := []struct {
		kind  RelationKind
		edges []model.Edge
	}{
		{RelationDeclares, p.Relations.Declares},
		{RelationUses, p.Relations.Uses},
		{RelationContains, p.Relations.Contains},
	}
	for _, set := range sets {
		for _, e := range set.edges {
			if err := batch.InsertRelation(set.kind, e); err != nil {
				return fmt.Errorf("inserting %s relation: %w", set.kind, err)
			}
		}
	}
	for _, path := range p.Paths() {
		for _, e := range p.Files[path].IncludeRelations {
			if err := batch.InsertInclude(path, e); err != nil {
				return fmt.Errorf("inserting include %s -> %s: %w", path, e.To, err)
			}
		}
	}
	for _, d := range p.Diagnostics {
		if err := batch.InsertDiagnostic(d); err != nil {
			return fmt.Errorf("inserting diagnostic: %w", err)
		}
	}

	if p.RunID != "" {
		if err := batch.setMetadata("run_id", p.RunID); err != nil {
			return fmt.Errorf("setting run id: %w", err)
		}
	}
	return batch.Commit()
}

// SetMetadata stores a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetMetadata retrieves a value from the metadata table.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	return value, err
}

// Stats holds statistics about the indexed data.
type Stats struct {
	FileCount       int       `json:"file_count"`
	EntityCount     int       `json:"entity_count"`
	FieldCount      int       `json:"field_count"`
	RelationCount   int       `json:"relation_count"`
	IncludeCount    int       `json:"include_count"`
	DiagnosticCount int       `json:"diagnostic_count"`
	RunID           string    `json:"run_id,omitempty"`
	IndexedAt       time.Time `json:"indexed_at"`
}

// GetStats returns statistics about the indexed data.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}

	rows := []struct {
		table string
		dest  *int
	}{
		{"files", &stats.FileCount},
		{"entities", &stats.EntityCount},
		{"fields", &stats.FieldCount},
		{"relations", &stats.RelationCount},
		{"includes", &stats.IncludeCount},
		{"diagnostics", &stats.DiagnosticCount},
	}

	for _, r := range rows {
		err := s.db.QueryRow("SELECT COUNT(*) FROM " + r.table).Scan(r.dest)
		if err != nil {
			return nil, fmt.Errorf("counting %s: %w", r.table, err)
		}
	}

	if ts, err := s.GetMetadata("indexed_at"); err == nil {
		stats.IndexedAt, _ = time.Parse(time.RFC3339, ts)
	}
	stats.RunID, _ = s.GetMetadata("run_id")

	return stats, nil
}

// IndexMetadata holds metadata written to index.json as a quick summary.
type IndexMetadata struct {
	Version         string    `json:"version"`
	ProjectPath     string    `json:"project_path"`
	RunID           string    `json:"run_id,omitempty"`
	IndexedAt       time.Time `json:"indexed_at"`
	FileCount       int       `json:"file_count"`
	EntityCount     int       `json:"entity_count"`
	DiagnosticCount int       `json:"diagnostic_count"`
	Files           []string  `json:"files"`
}

// WriteIndexJSON writes index.json next to the database.
func (s *Store) WriteIndexJSON() error {
	stats, err := s.GetStats()
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	rows, err := s.db.Query("SELECT path FROM files ORDER BY path")
	if err != nil {
		return fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	files := []string{}
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return fmt.Errorf("scanning file: %w", err)
		}
		files = append(files, path)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading files: %w", err)
	}

	projectPath, _ := s.GetMetadata("project_dir")
	meta := &IndexMetadata{
		Version:         "1",
		ProjectPath:     projectPath,
		RunID:           stats.RunID,
		IndexedAt:       stats.IndexedAt,
		FileCount:       stats.FileCount,
		EntityCount:     stats.EntityCount,
		DiagnosticCount: stats.DiagnosticCount,
		Files:           files,
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling index.json: %w", err)
	}

	indexPath := filepath.Join(s.dir, "index.json")
	if err := os.WriteFile(indexPath, data, 0644); err != nil {
		return fmt.Errorf("writing index.json: %w", err)
	}

	return nil
}

// BeginBatch starts a transaction for batch inserts.
// Call Commit() when done, or Rollback() on error.
func (s *Store) BeginBatch() (*BatchTx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &BatchTx{tx: tx}, nil
}

// BatchTx wraps a transaction for batch operations.
type BatchTx struct {
	tx *sql.Tx
}

// Commit commits the batch transaction.
func (b *BatchTx) Commit() error {
	return b.tx.Commit()
}

// Rollback rolls back the batch transaction.
func (b *BatchTx) Rollback() error {
	return b.tx.Rollback()
}

// InsertFile inserts a file within the batch.
func (b *BatchTx) InsertFile(f *model.SourceFile) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_, err = b.tx.Exec(`
		INSERT INTO files (path, name, kind, include_count, macro_count, global_count, function_count, json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			include_count = excluded.include_count,
			macro_count = excluded.macro_count,
			global_count = excluded.global_count,
			function_count = excluded.function_count,
			json = excluded.json
	`, f.Path, f.Name, string(f.Kind), len(f.Includes), len(f.Macros), len(f.Globals), len(f.Functions), string(data))
	return err
}

// InsertEntity inserts an entity and its fields within the batch.
func (b *BatchTx) InsertEntity(e *model.TypeEntity) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	parent := ""
	if e.Owner != nil {
		parent = e.Owner.ParentID
	}
	_, err = b.tx.Exec(`
		INSERT INTO entities (id, name, kind, tag, file, line, anonymous, opaque, forward,
			parent_id, canonical_target, alias_chain, json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, string(e.Kind), e.Tag, e.File, e.Line, e.Anonymous, e.Opaque, e.Forward,
		parent, e.CanonicalTarget, strings.Join(e.AliasChain, ","), string(data))
	if err != nil {
		return err
	}

	for i, f := range e.Fields {
		typ := ""
		if f.Type != nil {
			typ = f.Type.String()
		}
		if _, err := b.tx.Exec(`
			INSERT INTO fields (entity_id, position, name, type, bit_width)
			VALUES (?, ?, ?, ?, ?)
		`, e.ID, i, f.Name, typ, f.BitWidth); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

// InsertRelation inserts a relationship edge within the batch.
func (b *BatchTx) InsertRelation(kind RelationKind, e model.Edge) error {
	_, err := b.tx.Exec(`
		INSERT INTO relations (kind, source, target)
		VALUES (?, ?, ?)
		ON CONFLICT(kind, source, target) DO NOTHING
	`, string(kind), e.Source, e.Target)
	return err
}

// InsertInclude inserts an include relation of a root file within the batch.
func (b *BatchTx) InsertInclude(root string, e model.IncludeEdge) error {
	_, err := b.tx.Exec(`
		INSERT INTO includes (root, from_file, to_file, depth, placeholder)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(root, to_file) DO UPDATE SET
			from_file = excluded.from_file,
			depth = MIN(includes.depth, excluded.depth),
			placeholder = excluded.placeholder
	`, root, e.From, e.To, e.Depth, e.Placeholder)
	return err
}

// InsertDiagnostic inserts a diagnostic within the batch.
func (b *BatchTx) InsertDiagnostic(d diag.Diagnostic) error {
	_, err := b.tx.Exec(`
		INSERT INTO diagnostics (kind, file, symbol, field_path, line, message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, string(d.Kind), d.File, d.Symbol, strings.Join(d.FieldPath, "."), d.Line, d.Message)
	return err
}

func (b *BatchTx) setMetadata(key, value string) error {
	_, err := b.tx.Exec(`
		INSERT INTO metadata (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
