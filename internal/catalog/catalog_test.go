package catalog

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestProbeViaInformationSchemaFallback(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Introspection (TOP (0) wrapped query) fails, forcing the
	// INFORMATION_SCHEMA fallback.
	mock.ExpectQuery(`SELECT TOP \(0\)`).WillReturnError(errIntrospectionUnsupported())

	rows := sqlmock.NewRows([]string{
		"column_name", "data_type", "is_nullable", "numeric_precision", "numeric_scale", "datetime_precision",
	}).
		AddRow("Id", "int", "NO", nil, nil, nil).
		AddRow("Price", "decimal", "YES", 18, 4, nil)

	mock.ExpectQuery(`INFORMATION_SCHEMA\.COLUMNS`).WillReturnRows(rows)

	p := New(db)
	entries, err := p.Probe(context.Background(), "SELECT id, price FROM dbo.Orders", nil)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	require.Equal(t, "id", entries[0].Name)
	require.Equal(t, "int", entries[0].SQLType)
	require.False(t, entries[0].Nullable)

	require.Equal(t, "price", entries[1].Name)
	require.Equal(t, "decimal", entries[1].SQLType)
	require.True(t, entries[1].Nullable)
	require.Equal(t, 18, entries[1].NumericPrecision)
	require.Equal(t, 4, entries[1].NumericScale)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveTableReference(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM dbo.Orders":        "Orders",
		"select a, b from [Sales].[Customers] where x = 1": "Customers",
		"SELECT * FROM t1 WHERE x IN (SELECT y FROM t2)":    "",
	}
	for query, want := range cases {
		require.Equal(t, want, resolveTableReference(query), "query=%q", query)
	}
}

func errIntrospectionUnsupported() error {
	return context.DeadlineExceeded
}
