// Tests for table operations of the SQLite store.
package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

func TestSaveRecords_AssignsIncreasingLocalIDs(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	batch := func(names ...string) []types.Record {
		out := make([]types.Record, len(names))
		for i, n := range names {
			out[i] = types.NewRecord("name", n)
		}
		return out
	}

	res, err := s.SaveRecords(ctx, "items", batch("a", "b", "c"), "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.RowsAffected)
	assert.Equal(t, int64(3), res.LastInsertID)

	// Deleting the newest row must not let its id be handed out again.
	_, err = s.DeleteRecord(ctx, "items", 3)
	require.NoError(t, err)

	_, err = s.SaveRecords(ctx, "items", batch("d", "e"), "")
	require.NoError(t, err)

	rows, err := s.GetAllRecords(ctx, "items")
	require.NoError(t, err)
	require.Len(t, rows, 4)

	var last int64
	seen := make(map[int64]bool)
	for _, r := range rows {
		id, ok := r.LocalID()
		require.True(t, ok)
		assert.Greater(t, id, last)
		assert.False(t, seen[id])
		seen[id] = true
		last = id
	}
	assert.False(t, seen[3], "deleted id 3 must not be reused")
	assert.Equal(t, "e", rows[3].Value("name"))
}

func TestSaveRecords_EmptyIsNoop(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	res, err := s.SaveRecords(ctx, "never", nil, "")
	require.NoError(t, err)
	assert.Equal(t, types.SaveResult{}, res)

	res, err = s.SaveRecords(ctx, "never", []types.Record{}, "id")
	require.NoError(t, err)
	assert.Equal(t, types.SaveResult{}, res)

	names, err := s.Tables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, names, "never")
}

func TestGetRecords_RequiresFilter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("a", "x")}, "")
	require.NoError(t, err)

	_, err = s.GetRecords(ctx, "t", nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = s.GetRecords(ctx, "t", types.Filter{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSaveRecords_ValueCoercionRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("name", "A", "active", true, "count", 0),
	}, "")
	require.NoError(t, err)

	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, "A", rows[0].Value("name"))
	assert.Equal(t, int64(1), rows[0].Value("active"))
	// Numeric zero is falsy and is written as empty text.
	assert.Equal(t, "", rows[0].Value("count"))
}

func TestSaveRecords_CoercesFalsyAndNumbers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("flag", false, "n", 42, "f", 1.5, "s", "", "nil", nil),
	}, "")
	require.NoError(t, err)

	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, int64(0), r.Value("flag"))
	assert.Equal(t, int64(42), r.Value("n"))
	assert.Equal(t, 1.5, r.Value("f"))
	assert.Equal(t, "", r.Value("s"))
	assert.Equal(t, "", r.Value("nil"))
}

func TestSaveRecords_RejectsUnsupportedValues(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("name", "ok", "tags", []string{"a"}),
	}, "")
	assert.ErrorIs(t, err, types.ErrUnsupportedValue)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	_, err = s.GetAllRecords(ctx, "t")
	assert.ErrorIs(t, err, types.ErrTableNotFound, "failed batch rolls back table creation")
}

func TestSaveRecords_SchemaMismatch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("a", "1", "b", "2")}, "")
	require.NoError(t, err)

	// Subset of the existing columns is accepted.
	_, err = s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("b", "3")}, "")
	require.NoError(t, err)

	// A field the table does not have is rejected before anything is written.
	_, err = s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("a", "4", "c", "5")}, "")
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)

	// A later record in the batch may not add fields either.
	_, err = s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("a", "6"),
		types.NewRecord("a", "7", "zzz", "8"),
	}, "")
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)

	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Nil(t, rows[1].Value("a"), "columns absent from a batch stay NULL")
}

func TestSaveRecords_ExplicitPrimaryKey(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "rt", []types.Record{
		types.NewRecord("id", "012A", "label", "Visit"),
		types.NewRecord("id", "012B", "label", "Audit"),
	}, "id")
	require.NoError(t, err)

	rows, err := s.GetAllRecords(ctx, "rt")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.False(t, rows[0].Has(types.LocalIDField))
	assert.Equal(t, []string{"id", "label"}, rows[0].Keys())

	_, err = s.SaveRecords(ctx, "rt", []types.Record{types.NewRecord("id", "012A", "label", "dup")}, "id")
	assert.ErrorIs(t, err, types.ErrStorage)

	_, err = s.SaveRecords(ctx, "other", []types.Record{types.NewRecord("label", "x")}, "id")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestPrepareTable_DoesNotAlterExisting(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first := []types.FieldMapping{{Name: "a", Type: types.StorageText}}
	second := []types.FieldMapping{{Name: "a", Type: types.StorageText}, {Name: "b", Type: types.StorageInteger}}

	require.NoError(t, s.PrepareTable(ctx, "t", first, ""))
	require.NoError(t, s.PrepareTable(ctx, "t", second, ""))

	_, err := s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("a", "x", "b", 1)}, "")
	assert.ErrorIs(t, err, types.ErrSchemaMismatch)
}

func TestUpdateRecord_SkipsNilFields(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("status", "open", "name", "before"),
	}, "")
	require.NoError(t, err)

	n, err := s.UpdateRecord(ctx, "t", types.NewRecord("status", nil, "name", "X"),
		types.Where(types.Eq(types.LocalIDField, 1)))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "open", rows[0].Value("status"))
	assert.Equal(t, "X", rows[0].Value("name"))

	n, err = s.UpdateRecord(ctx, "t", types.NewRecord("status", nil), types.Where(types.Eq("name", "X")))
	require.NoError(t, err)
	assert.Zero(t, n, "an all-nil update writes nothing")

	_, err = s.UpdateRecord(ctx, "t", types.NewRecord("name", "Y"), nil)
	assert.ErrorIs(t, err, types.ErrMissingFilter)
}

func TestUpdateFieldValues_EscapesQuotes(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("name", "O'Brien's farm", "note", "x"),
		types.NewRecord("name", "plain", "note", "y"),
	}, "")
	require.NoError(t, err)

	rows, err := s.GetRecords(ctx, "t", types.Where(types.Eq("name", "O'Brien's farm")))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	n, err := s.UpdateFieldValues(ctx, "t",
		types.NewRecord("note", "it's'; DROP TABLE t; --", "name", nil),
		types.Where(types.Eq("note", "x")))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err = s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "it's'; DROP TABLE t; --", rows[0].Value("note"))
	assert.Equal(t, "", rows[0].Value("name"), "nil is written with the falsy rule")
	assert.Equal(t, "plain", rows[1].Value("name"))
}

func TestGetRecords_InFilter(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var recs []types.Record
	for _, sec := range []string{"s1", "s2", "s3", "s1"} {
		recs = append(recs, types.NewRecord("sectionId", sec))
	}
	_, err := s.SaveRecords(ctx, "items", recs, "")
	require.NoError(t, err)

	rows, err := s.GetRecords(ctx, "items", types.Where(types.In("sectionId", "s1", "s3")))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i], _ = r.LocalID()
	}
	assert.Equal(t, []int64{1, 3, 4}, ids)

	rows, err = s.GetRecords(ctx, "items", types.Where(types.In("sectionId")))
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = s.GetRecords(ctx, "items", types.Where(types.In("sectionId", "s1"), types.Eq(types.LocalIDField, 4)))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDeleteRecord(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{
		types.NewRecord("name", "a"),
		types.NewRecord("name", "b"),
	}, "")
	require.NoError(t, err)

	n, err := s.DeleteRecord(ctx, "t", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.DeleteRecord(ctx, "t", 99)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Value("name"))
}

func TestClearDatabase(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	for _, table := range []string{types.RecordTypesTable, types.SurveysTable, "adhoc"} {
		_, err := s.SaveRecords(ctx, table, []types.Record{types.NewRecord("a", "b")}, "")
		require.NoError(t, err)
	}

	require.NoError(t, s.ClearDatabase(ctx))
	require.NoError(t, s.ClearDatabase(ctx), "clearing twice tolerates missing tables")

	for _, table := range []string{types.RecordTypesTable, types.SurveysTable, "adhoc", types.LocalizationTable} {
		rows, err := s.GetAllRecords(ctx, table)
		assert.Empty(t, rows)
		assert.ErrorIs(t, err, types.ErrTableNotFound, table)
		assert.ErrorIs(t, err, types.ErrStorage, table)
	}
}

func TestClearTable(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, err := s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("a", "b")}, "")
	require.NoError(t, err)

	require.NoError(t, s.ClearTable(ctx, "t"))
	require.NoError(t, s.ClearTable(ctx, "t"))
	require.NoError(t, s.ClearTable(ctx, "missing"))

	_, err = s.GetAllRecords(ctx, "t")
	assert.ErrorIs(t, err, types.ErrTableNotFound)

	// The table comes back with a fresh schema on the next save.
	_, err = s.SaveRecords(ctx, "t", []types.Record{types.NewRecord("c", true)}, "")
	require.NoError(t, err)
	rows, err := s.GetAllRecords(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{types.LocalIDField, "c"}, rows[0].Keys())
}
