// Package sqlite implements the collection store: JSONL files in DataDir
// are the source of truth and a SQLite database, rebuilt from them on
// Attach, is the query engine.
package sqlite

// Schema DDL for all tables. Every row carries its collection_id so a
// collection can be replaced or removed with one DELETE per table.
const (
	createCollections = `CREATE TABLE collections (
    collection_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    allow_external INTEGER NOT NULL,
    roots TEXT NOT NULL,
    written_at TEXT NOT NULL
);`

	createContainers = `CREATE TABLE containers (
    collection_id TEXT NOT NULL,
    container_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    type TEXT NOT NULL,
    name TEXT NOT NULL,
    children TEXT NOT NULL,
    table_rows INTEGER,
    PRIMARY KEY (collection_id, container_id)
);`

	createFields = `CREATE TABLE fields (
    collection_id TEXT NOT NULL,
    container_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (collection_id, container_id, name)
);`

	createColumns = `CREATE TABLE columns (
    collection_id TEXT NOT NULL,
    container_id TEXT NOT NULL,
    ordinal INTEGER NOT NULL,
    name TEXT NOT NULL,
    value_type TEXT NOT NULL,
    target_type TEXT,
    description TEXT,
    shape TEXT,
    PRIMARY KEY (collection_id, container_id, name)
);`

	createCells = `CREATE TABLE cells (
    collection_id TEXT NOT NULL,
    container_id TEXT NOT NULL,
    column_name TEXT NOT NULL,
    row_index INTEGER NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (collection_id, container_id, column_name, row_index)
);`
)

// Index DDL for reads by collection and by type.
const (
	idxContainersType = `CREATE INDEX idx_containers_type ON containers(type);`
	idxFieldsKind     = `CREATE INDEX idx_fields_kind ON fields(collection_id, kind);`
	idxCellsColumn    = `CREATE INDEX idx_cells_column ON cells(collection_id, container_id, column_name);`
)

// schemaDDL lists all CREATE TABLE statements.
var schemaDDL = []string{
	createCollections,
	createContainers,
	createFields,
	createColumns,
	createCells,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxContainersType,
	idxFieldsKind,
	idxCellsColumn,
}

// collectionTables lists the tables holding per-collection rows, children
// before parents.
var collectionTables = []string{"cells", "columns", "fields", "containers", "collections"}
