package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/abramin/cmodel/internal/diag"
	"github.com/abramin/cmodel/internal/model"
)

// ErrNotFound is returned when a file or entity is not in the index.
var ErrNotFound = errors.New("not found")

// EntityFilter narrows ListEntities.
type EntityFilter struct {
	Kind  string // exact kind, empty for all
	Query string // substring of the name or id, case-insensitive
	File  string
	Limit int
}

// ListFiles returns every file summary ordered by path.
func (s *Store) ListFiles() ([]File, error) {
	rows, err := s.db.Query(`
		SELECT path, name, kind, include_count, macro_count, global_count, function_count
		FROM files ORDER BY path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.Path, &f.Name, &f.Kind, &f.IncludeCount, &f.MacroCount, &f.GlobalCount, &f.FunctionCount); err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// GetFile returns the full parsed file.
func (s *Store) GetFile(path string) (*model.SourceFile, error) {
	var data string
	err := s.db.QueryRow("SELECT json FROM files WHERE path = ?", path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var f model.SourceFile
	if err := json.Unmarshal([]byte(data), &f); err != nil {
		return nil, fmt.Errorf("decoding file %s: %w", path, err)
	}
	return &f, nil
}

// ListEntities returns entity summaries matching the filter, ordered by id.
func (s *Store) ListEntities(filter EntityFilter) ([]Entity, error) {
	query := `
		SELECT id, name, kind, tag, file, line, anonymous, opaque, forward,
			parent_id, canonical_target, alias_chain
		FROM entities WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Query != "" {
		query += " AND (name LIKE ? OR id LIKE ?)"
		like := "%" + filter.Query + "%"
		args = append(args, like, like)
	}
	if filter.File != "" {
		query += " AND file = ?"
		args = append(args, filter.File)
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := []Entity{}
	for rows.Next() {
		var e Entity
		var chain string
		if err := rows.Scan(&e.ID, &e.Name, &e.Kind, &e.Tag, &e.File, &e.Line, &e.Anonymous, &e.Opaque, &e.Forward,
			&e.ParentID, &e.CanonicalTarget, &chain); err != nil {
			return nil, err
		}
		if chain != "" {
			e.AliasChain = strings.Split(chain, ",")
		}
		entities = append(entities, e)
	}
	return entities, rows.Err()
}

// GetEntity returns the full entity with its type expressions.
func (s *Store) GetEntity(id string) (*model.TypeEntity, error) {
	var data string
	err := s.db.QueryRow("SELECT json FROM entities WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var e model.TypeEntity
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("decoding entity %s: %w", id, err)
	}
	return &e, nil
}

// GetFields returns an entity's fields in declaration order.
func (s *Store) GetFields(id string) ([]Field, error) {
	rows, err := s.db.Query(`
		SELECT entity_id, position, name, type, bit_width
		FROM fields WHERE entity_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := []Field{}
	for rows.Next() {
		var f Field
		if err := rows.Scan(&f.EntityID, &f.Position, &f.Name, &f.Type, &f.BitWidth); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// Outgoing returns the uses and contains edges whose source is id.
func (s *Store) Outgoing(id string) ([]Relation, error) {
	return s.relations(`
		SELECT kind, source, target FROM relations
		WHERE source = ? AND kind IN ('uses', 'contains')
		ORDER BY kind, target
	`, id)
}

// Incoming returns every edge whose target is id.
func (s *Store) Incoming(id string) ([]Relation, error) {
	return s.relations(`
		SELECT kind, source, target FROM relations
		WHERE target = ?
		ORDER BY kind, source
	`, id)
}

func (s *Store) relations(query string, args ...any) ([]Relation, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Relation{}
	for rows.Next() {
		var r Relation
		var kind string
		if err := rows.Scan(&kind, &r.Source, &r.Target); err != nil {
			return nil, err
		}
		r.Kind = RelationKind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetIncludes returns the include relation of a root file ordered by depth.
func (s *Store) GetIncludes(root string) ([]Include, error) {
	rows, err := s.db.Query(`
		SELECT root, from_file, to_file, depth, placeholder
		FROM includes WHERE root = ? ORDER BY depth, to_file
	`, root)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Include{}
	for rows.Next() {
		var inc Include
		if err := rows.Scan(&inc.Root, &inc.From, &inc.To, &inc.Depth, &inc.Placeholder); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

// ListDiagnostics returns diagnostics in insertion order, optionally
// restricted to one kind.
func (s *Store) ListDiagnostics(kind string) ([]diag.Diagnostic, error) {
	query := "SELECT kind, file, symbol, field_path, line, message FROM diagnostics"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}
	query += " ORDER BY id"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []diag.Diagnostic{}
	for rows.Next() {
		var d diag.Diagnostic
		var k, fieldPath string
		if err := rows.Scan(&k, &d.File, &d.Symbol, &fieldPath, &d.Line, &d.Message); err != nil {
			return nil, err
		}
		d.Kind = diag.Kind(k)
		if fieldPath != "" {
			d.FieldPath = strings.Split(fieldPath, ".")
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
