package writer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"mssqlparquet/internal/rowbuffer"
	"mssqlparquet/internal/schema"
	"mssqlparquet/internal/value"
)

func TestRunWritesSingleRowGroup(t *testing.T) {
	entries := []value.ColumnCatalogEntry{
		{Name: "id", SQLType: "int", Nullable: false},
		{Name: "name", SQLType: "varchar", Nullable: true},
	}
	plan, root, err := schema.Translate(entries)
	require.NoError(t, err)

	buf := rowbuffer.New(2)
	require.NoError(t, buf.AppendRow([]value.TaggedValue{value.Int32(1), value.String("a")}))
	require.NoError(t, buf.AppendRow([]value.TaggedValue{value.Int32(2), value.Null()}))
	require.NoError(t, buf.AppendRow([]value.TaggedValue{value.Int32(3), value.String("c")}))

	var out bytes.Buffer
	d := Driver{Compression: "snappy"}
	require.NoError(t, d.Run(&out, plan, root, buf))
	require.Greater(t, out.Len(), 0)
}

func TestRunWritesValidRowGroupForEmptyResultSet(t *testing.T) {
	entries := []value.ColumnCatalogEntry{
		{Name: "id", SQLType: "int", Nullable: false},
		{Name: "name", SQLType: "varchar", Nullable: true},
	}
	plan, root, err := schema.Translate(entries)
	require.NoError(t, err)

	buf := rowbuffer.New(2)

	var out bytes.Buffer
	d := Driver{Compression: "snappy"}
	require.NoError(t, d.Run(&out, plan, root, buf))
	require.Greater(t, out.Len(), 0)
}

func TestRunWithParallelValidateCatchesRequiredNull(t *testing.T) {
	entries := []value.ColumnCatalogEntry{
		{Name: "id", SQLType: "int", Nullable: false},
	}
	plan, root, err := schema.Translate(entries)
	require.NoError(t, err)

	buf := rowbuffer.New(1)
	require.NoError(t, buf.AppendRow([]value.TaggedValue{value.Null()}))

	var out bytes.Buffer
	d := Driver{ParallelValidate: true}
	err = d.Run(&out, plan, root, buf)
	require.Error(t, err)
}

func TestWriteFileRemovesPartialOutputOnFailure(t *testing.T) {
	entries := []value.ColumnCatalogEntry{
		{Name: "id", SQLType: "int", Nullable: false},
	}
	plan, root, err := schema.Translate(entries)
	require.NoError(t, err)

	buf := rowbuffer.New(1)
	require.NoError(t, buf.AppendRow([]value.TaggedValue{value.Null()}))

	path := filepath.Join(t.TempDir(), "out.parquet")
	d := Driver{}
	err = d.WriteFile(path, plan, root, buf)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestCodecForRejectsUnknown(t *testing.T) {
	_, err := CodecFor("made-up-codec")
	require.Error(t, err)
}
