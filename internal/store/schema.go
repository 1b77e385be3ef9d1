package store

// schema contains the SQL statements to create the cmodel database schema.
const schema = `
-- Files table
CREATE TABLE IF NOT EXISTS files (
    path           TEXT PRIMARY KEY,
    name           TEXT NOT NULL,
    kind           TEXT NOT NULL,
    include_count  INTEGER DEFAULT 0,
    macro_count    INTEGER DEFAULT 0,
    global_count   INTEGER DEFAULT 0,
    function_count INTEGER DEFAULT 0,
    json           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_files_name ON files(name);
CREATE INDEX IF NOT EXISTS idx_files_kind ON files(kind);

-- Entities table
CREATE TABLE IF NOT EXISTS entities (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL,
    kind             TEXT NOT NULL,
    tag              TEXT,
    file             TEXT,
    line             INTEGER,
    anonymous        INTEGER DEFAULT 0,
    opaque           INTEGER DEFAULT 0,
    forward          INTEGER DEFAULT 0,
    parent_id        TEXT,
    canonical_target TEXT,
    alias_chain      TEXT,
    json             TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_entities_file ON entities(file);
CREATE INDEX IF NOT EXISTS idx_entities_parent ON entities(parent_id);

-- Fields table
CREATE TABLE IF NOT EXISTS fields (
    entity_id TEXT NOT NULL,
    position  INTEGER NOT NULL,
    name      TEXT NOT NULL,
    type      TEXT NOT NULL,
    bit_width TEXT,
    PRIMARY KEY (entity_id, position),
    FOREIGN KEY (entity_id) REFERENCES entities(id)
);

-- Relations table (declares, uses, contains)
CREATE TABLE IF NOT EXISTS relations (
    kind   TEXT NOT NULL,
    source TEXT NOT NULL,
    target TEXT NOT NULL,
    PRIMARY KEY (kind, source, target)
);

CREATE INDEX IF NOT EXISTS idx_relations_source ON relations(source);
CREATE INDEX IF NOT EXISTS idx_relations_target ON relations(target);

-- Include relations of root source files
CREATE TABLE IF NOT EXISTS includes (
    root        TEXT NOT NULL,
    from_file   TEXT NOT NULL,
    to_file     TEXT NOT NULL,
    depth       INTEGER NOT NULL,
    placeholder INTEGER DEFAULT 0,
    PRIMARY KEY (root, to_file),
    FOREIGN KEY (root) REFERENCES files(path)
);

-- Diagnostics table
CREATE TABLE IF NOT EXISTS diagnostics (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    kind       TEXT NOT NULL,
    file       TEXT,
    symbol     TEXT,
    field_path TEXT,
    line       INTEGER,
    message    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_kind ON diagnostics(kind);
CREATE INDEX IF NOT EXISTS idx_diagnostics_file ON diagnostics(file);

-- Metadata table for index info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`
