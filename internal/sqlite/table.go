package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// storageErr wraps a driver error for the given operation. A missing table is
// reported as ErrTableNotFound so callers can tell it from other failures.
func storageErr(op, table string, err error) error {
	if strings.Contains(err.Error(), "no such table") {
		err = fmt.Errorf("%w: %v", types.ErrTableNotFound, err)
	}
	return &types.StorageError{Op: op, Table: table, Err: err}
}

// PrepareTable creates table with the given columns if it does not exist.
// An existing table is left untouched even when its columns differ.
func (s *Store) PrepareTable(ctx context.Context, table string, mappings []types.FieldMapping, primaryKey string) error {
	ddl, err := createTableSQL(table, mappings, primaryKey)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return storageErr("create table", table, err)
	}
	s.registry[table] = true
	return nil
}

// SaveRecords infers a schema from the first record, ensures the table and
// inserts every record with a single INSERT statement. Table creation and the
// insert share one transaction.
func (s *Store) SaveRecords(ctx context.Context, table string, records []types.Record, primaryKey string) (types.SaveResult, error) {
	if len(records) == 0 {
		return types.SaveResult{}, nil
	}

	ddl, err := createTableSQL(table, InferSchema(records[0]), primaryKey)
	if err != nil {
		return types.SaveResult{}, err
	}

	// Column list is the union of all record fields in first-seen order.
	var columns []string
	seen := make(map[string]bool)
	for _, r := range records {
		r.Each(func(name string, _ any) {
			if !seen[name] {
				seen[name] = true
				columns = append(columns, name)
			}
		})
	}
	if len(columns) == 0 {
		return types.SaveResult{}, fmt.Errorf("%w: records have no fields", types.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return types.SaveResult{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return types.SaveResult{}, storageErr("begin", table, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return types.SaveResult{}, storageErr("create table", table, err)
	}

	existing, err := tableColumns(ctx, tx, table)
	if err != nil {
		return types.SaveResult{}, err
	}
	for _, c := range columns {
		if !existing[c] {
			return types.SaveResult{}, fmt.Errorf("%w: table %s has no column %q", types.ErrSchemaMismatch, table, c)
		}
	}

	stmt, err := insertSQL(table, columns, records)
	if err != nil {
		return types.SaveResult{}, err
	}
	res, err := tx.ExecContext(ctx, stmt)
	if err != nil {
		return types.SaveResult{}, storageErr("insert", table, err)
	}
	if err := tx.Commit(); err != nil {
		return types.SaveResult{}, storageErr("commit", table, err)
	}
	s.registry[table] = true

	var out types.SaveResult
	out.RowsAffected, _ = res.RowsAffected()
	out.LastInsertID, _ = res.LastInsertId()
	s.log.Debugw("saved records", "table", table, "rows", out.RowsAffected)
	return out, nil
}

func insertSQL(table string, columns []string, records []types.Record) (string, error) {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", quoteIdent(table), strings.Join(quoted, ", "))
	for i, r := range records {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, c := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			lit, err := literal(r.Value(c))
			if err != nil {
				return "", fmt.Errorf("record %d field %s: %w", i, c, err)
			}
			b.WriteString(lit)
		}
		b.WriteByte(')')
	}
	return b.String(), nil
}

// tableColumns returns the set of column names of an existing table.
func tableColumns(ctx context.Context, q queryer, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, storageErr("table info", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, storageErr("table info", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("table info", table, err)
	}
	if len(cols) == 0 {
		return nil, storageErr("table info", table, fmt.Errorf("no such table: %s", table))
	}
	return cols, nil
}

// GetAllRecords returns every row of table in insertion order.
func (s *Store) GetAllRecords(ctx context.Context, table string) ([]types.Record, error) {
	return s.query(ctx, table, "", nil)
}

// GetRecords returns the rows of table matching filter in insertion order.
// Returns ErrMissingFilter when filter is empty.
func (s *Store) GetRecords(ctx context.Context, table string, filter types.Filter) ([]types.Record, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, table, where, args)
}

func (s *Store) query(ctx context.Context, table, where string, args []any) ([]types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table)+where+" ORDER BY rowid", args...)
	if err != nil {
		return nil, storageErr("select", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, storageErr("select", table, err)
	}

	results := []types.Record{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, storageErr("scan", table, err)
		}

		var r types.Record
		for i, c := range cols {
			v := vals[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			r.Set(c, v)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("select", table, err)
	}
	return results, nil
}

// UpdateRecord sets the non-nil fields of partial on every row matching
// filter. Nil fields are left unchanged, not set to NULL.
func (s *Store) UpdateRecord(ctx context.Context, table string, partial types.Record, filter types.Filter) (int64, error) {
	return s.update(ctx, "update record", table, partial, filter, true)
}

// UpdateFieldValues sets every field of values on each row matching filter.
func (s *Store) UpdateFieldValues(ctx context.Context, table string, values types.Record, filter types.Filter) (int64, error) {
	return s.update(ctx, "update field values", table, values, filter, false)
}

func (s *Store) update(ctx context.Context, op, table string, values types.Record, filter types.Filter, skipNil bool) (int64, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return 0, err
	}

	var sets []string
	var litErr error
	values.Each(func(name string, value any) {
		if litErr != nil || (skipNil && value == nil) {
			return
		}
		lit, err := literal(value)
		if err != nil {
			litErr = fmt.Errorf("field %s: %w", name, err)
			return
		}
		sets = append(sets, quoteIdent(name)+" = "+lit)
	})
	if litErr != nil {
		return 0, litErr
	}
	if len(sets) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	stmt := "UPDATE " + quoteIdent(table) + " SET " + strings.Join(sets, ", ") + where
	res, err := db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, storageErr(op, table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteRecord removes the rows of table whose _localId equals localID.
func (s *Store) DeleteRecord(ctx context.Context, table string, localID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	res, err := db.ExecContext(ctx,
		"DELETE FROM "+quoteIdent(table)+" WHERE "+quoteIdent(types.LocalIDField)+" = ?", localID)
	if err != nil {
		return 0, storageErr("delete", table, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearTable drops table. A table that does not exist is not an error.
func (s *Store) ClearTable(ctx context.Context, table string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(table)); err != nil {
		return storageErr("drop table", table, err)
	}
	return nil
}

// ClearDatabase drops every table in the registry.
func (s *Store) ClearDatabase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(s.registry))
	for name := range s.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return storageErr("drop table", name, err)
		}
	}
	s.log.Debugw("cleared database", "tables", len(names))
	return nil
}
