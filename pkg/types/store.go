package types

import "context"

// Storage types produced by schema inference.
type StorageType string

const (
	StorageInteger StorageType = "INTEGER"
	StorageText    StorageType = "TEXT"
)

// FieldMapping pairs a column name with its storage type.
type FieldMapping struct {
	Name string
	Type StorageType
}

// SaveResult summarizes a bulk insert. LastInsertID is the rowid of the last
// inserted row; it is zero when nothing was written.
type SaveResult struct {
	RowsAffected int64
	LastInsertID int64
}

// LocalStore is the key/value-per-row relational cache. Every row not given an
// explicit primary key receives a synthetic, strictly increasing _localId.
// Operations report statement failures as *StorageError and never retry.
type LocalStore interface {
	// Attach opens the store described by config. Returns ErrAlreadyAttached
	// when called twice.
	Attach(config Config) error

	// Detach releases the store. Idempotent.
	Detach() error

	// PrepareTable creates the table if it does not exist. An empty primaryKey
	// adds a _localId autoincrement key. Existing tables are never altered.
	PrepareTable(ctx context.Context, table string, mappings []FieldMapping, primaryKey string) error

	// SaveRecords inserts records with one statement. The schema is inferred
	// from the first record; every record must use a subset of the table's
	// columns. An empty slice returns a zero result without touching storage.
	SaveRecords(ctx context.Context, table string, records []Record, primaryKey string) (SaveResult, error)

	// GetAllRecords returns every row in insertion order.
	GetAllRecords(ctx context.Context, table string) ([]Record, error)

	// GetRecords returns rows matching filter in insertion order. Returns
	// ErrMissingFilter when filter is empty.
	GetRecords(ctx context.Context, table string, filter Filter) ([]Record, error)

	// UpdateRecord sets every non-nil field of partial on the matching rows.
	UpdateRecord(ctx context.Context, table string, partial Record, filter Filter) (int64, error)

	// UpdateFieldValues sets every field of values on the matching rows.
	UpdateFieldValues(ctx context.Context, table string, values Record, filter Filter) (int64, error)

	// DeleteRecord removes the rows whose _localId equals localID.
	DeleteRecord(ctx context.Context, table string, localID int64) (int64, error)

	// ClearTable drops the table, tolerating a missing table.
	ClearTable(ctx context.Context, table string) error

	// ClearDatabase drops every table in the registry.
	ClearDatabase(ctx context.Context) error
}
