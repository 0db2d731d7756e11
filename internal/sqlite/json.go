package sqlite

// JSON record structures that mirror the JSONL file format. Values are
// stored as JSON text produced by model.EncodeValue so their exact types
// survive the SQLite round trip.

// Field kinds in fields.jsonl.
const (
	fieldValue     = "value"
	fieldReference = "reference"
	fieldRegion    = "region"
)

// collectionJSON represents a collection in collections.jsonl.
type collectionJSON struct {
	CollectionID  string `json:"collection_id"`
	Name          string `json:"name"`
	AllowExternal bool   `json:"allow_external"`
	Roots         string `json:"roots"`
	WrittenAt     string `json:"written_at"`
}

// containerJSON represents a container in containers.jsonl. TableRows is
// nil for containers that are not tables.
type containerJSON struct {
	CollectionID string `json:"collection_id"`
	ContainerID  string `json:"container_id"`
	Ordinal      int    `json:"ordinal"`
	Type         string `json:"type"`
	Name         string `json:"name"`
	Children     string `json:"children"`
	TableRows    *int   `json:"table_rows"`
}

// fieldJSON represents one set attribute or dataset in fields.jsonl.
type fieldJSON struct {
	CollectionID string `json:"collection_id"`
	ContainerID  string `json:"container_id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Value        string `json:"value"`
}

// columnJSON represents a table column in columns.jsonl.
type columnJSON struct {
	CollectionID string `json:"collection_id"`
	ContainerID  string `json:"container_id"`
	Ordinal      int    `json:"ordinal"`
	Name         string `json:"name"`
	ValueType    string `json:"value_type"`
	TargetType   string `json:"target_type"`
	Description  string `json:"description"`
	Shape        string `json:"shape"`
}

// cellJSON represents one table cell in cells.jsonl.
type cellJSON struct {
	CollectionID string `json:"collection_id"`
	ContainerID  string `json:"container_id"`
	ColumnName   string `json:"column_name"`
	Row          int    `json:"row_index"`
	Value        string `json:"value"`
}
