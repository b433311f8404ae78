package rowbuffer

import (
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/stretchr/testify/require"

	"mssqlparquet/internal/errs"
	"mssqlparquet/internal/schema"
	"mssqlparquet/internal/value"
)

func TestAppendRowEnforcesSharedLength(t *testing.T) {
	buf := New(2)
	require.NoError(t, buf.AppendRow([]value.TaggedValue{value.Int32(1), value.String("a")}))
	err := buf.AppendRow([]value.TaggedValue{value.Int32(2)})
	require.Error(t, err)
	require.Equal(t, 1, buf.RowCount())
}

func TestIngestPivotsRowsIntoColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "a").
		AddRow(2, nil).
		AddRow(3, "c")
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT id, name FROM t")
	require.NoError(t, err)
	defer sqlRows.Close()

	plan := &schema.SchemaPlan{
		Columns: []schema.ColumnPlan{
			{Name: "id", Repetition: parquet.Repetitions.Required, Catalog: value.ColumnCatalogEntry{Name: "id", SQLType: "int", Nullable: false}},
			{Name: "name", Repetition: parquet.Repetitions.Optional, Catalog: value.ColumnCatalogEntry{Name: "name", SQLType: "varchar", Nullable: true}},
		},
	}

	buf := New(2)
	require.NoError(t, Ingest(sqlRows, plan, buf))
	require.Equal(t, 3, buf.RowCount())

	idCol := buf.Columns()[0]
	require.Equal(t, int32(1), idCol.Values[0].I32)
	require.Equal(t, int32(2), idCol.Values[1].I32)
	require.Equal(t, int32(3), idCol.Values[2].I32)

	nameCol := buf.Columns()[1]
	require.False(t, nameCol.Values[0].Null())
	require.Equal(t, "a", nameCol.Values[0].S)
	require.True(t, nameCol.Values[1].Null())
	require.False(t, nameCol.Values[2].Null())
	require.Equal(t, "c", nameCol.Values[2].S)

	require.Equal(t, []int16{1, 0, 1}, nameCol.DefinitionLevels())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestRejectsResultWiderThanCatalog(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "name", "extra"}).AddRow(1, "a", "b")
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT id, name, extra FROM t")
	require.NoError(t, err)
	defer sqlRows.Close()

	plan := &schema.SchemaPlan{
		Columns: []schema.ColumnPlan{
			{Name: "id", Repetition: parquet.Repetitions.Required, Catalog: value.ColumnCatalogEntry{Name: "id", SQLType: "int"}},
			{Name: "name", Repetition: parquet.Repetitions.Optional, Catalog: value.ColumnCatalogEntry{Name: "name", SQLType: "varchar", Nullable: true}},
		},
	}

	buf := New(2)
	err = Ingest(sqlRows, plan, buf)
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.SchemaMismatch))
}

func TestIngestAllNullOptionalColumn(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"note"}).
		AddRow(nil).
		AddRow(nil).
		AddRow(nil)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT note FROM t")
	require.NoError(t, err)
	defer sqlRows.Close()

	plan := &schema.SchemaPlan{
		Columns: []schema.ColumnPlan{
			{Name: "note", Repetition: parquet.Repetitions.Optional, Catalog: value.ColumnCatalogEntry{Name: "note", SQLType: "varchar", Nullable: true}},
		},
	}

	buf := New(1)
	require.NoError(t, Ingest(sqlRows, plan, buf))
	require.Equal(t, 3, buf.RowCount())

	col := buf.Columns()[0]
	require.Empty(t, col.PresentCount())
	require.Equal(t, []int16{0, 0, 0}, col.DefinitionLevels())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestEmptyResultSetProducesEmptyBuffer(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id"})
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	sqlRows, err := db.Query("SELECT id FROM t")
	require.NoError(t, err)
	defer sqlRows.Close()

	plan := &schema.SchemaPlan{
		Columns: []schema.ColumnPlan{
			{Name: "id", Repetition: parquet.Repetitions.Required, Catalog: value.ColumnCatalogEntry{Name: "id", SQLType: "int"}},
		},
	}

	buf := New(1)
	require.NoError(t, Ingest(sqlRows, plan, buf))
	require.Equal(t, 0, buf.RowCount())
	require.Empty(t, buf.Columns()[0].Values)
	require.NoError(t, mock.ExpectationsWereMet())
}
