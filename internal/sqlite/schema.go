package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// InferSchema maps each field of record to a storage type: numbers and
// booleans are stored as INTEGER, everything else as TEXT. The mapping keeps
// the record's field order.
func InferSchema(record types.Record) []types.FieldMapping {
	mappings := make([]types.FieldMapping, 0, record.Len())
	record.Each(func(name string, value any) {
		mappings = append(mappings, types.FieldMapping{Name: name, Type: storageType(value)})
	})
	return mappings
}

func storageType(value any) types.StorageType {
	switch value.(type) {
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return types.StorageInteger
	default:
		return types.StorageText
	}
}

// createTableSQL renders CREATE TABLE IF NOT EXISTS for the mappings. With an
// empty primaryKey a _localId autoincrement key is prepended; AUTOINCREMENT
// keeps ids strictly increasing and never reused.
func createTableSQL(table string, mappings []types.FieldMapping, primaryKey string) (string, error) {
	if table == "" {
		return "", fmt.Errorf("%w: table name is empty", types.ErrInvalidArgument)
	}

	var cols []string
	seen := make(map[string]bool, len(mappings)+1)
	if primaryKey == "" {
		cols = append(cols, quoteIdent(types.LocalIDField)+" INTEGER PRIMARY KEY AUTOINCREMENT")
		seen[types.LocalIDField] = true
	}

	pkFound := primaryKey == ""
	for _, m := range mappings {
		if m.Name == "" {
			return "", fmt.Errorf("%w: empty field name", types.ErrInvalidArgument)
		}
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true

		typ := m.Type
		if typ == "" {
			typ = types.StorageText
		}
		col := quoteIdent(m.Name) + " " + string(typ)
		if m.Name == primaryKey {
			col += " PRIMARY KEY"
			pkFound = true
		}
		cols = append(cols, col)
	}
	if !pkFound {
		return "", fmt.Errorf("%w: primary key %q is not a field", types.ErrInvalidArgument, primaryKey)
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(cols, ", ")), nil
}

// quoteIdent quotes a table or column name for use in a statement.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
