package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Customer   Id  ": "customer_id",
		"OrderDate":         "orderdate",
		"":                  "",
		"a\tb\nc":           "a_b_c",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeName(in), "NormalizeName(%q)", in)
	}
}

func TestNormalizeSQLType(t *testing.T) {
	cases := map[string]string{
		"VARCHAR(50)":       "varchar",
		"  DECIMAL(18,4) ":  "decimal",
		"int":               "int",
		"BIGINT":            "bigint",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeSQLType(in), "NormalizeSQLType(%q)", in)
	}
}

func TestSyntheticColumnName(t *testing.T) {
	require.Equal(t, "col_0", SyntheticColumnName(0))
	require.Equal(t, "col_42", SyntheticColumnName(42))
}

func TestNewColumnCatalogEntryClampsRanges(t *testing.T) {
	e := NewColumnCatalogEntry("", "numeric(50,60)", true, 50, 60, 9, 3)
	require.Equal(t, "col_3", e.Name)
	require.Equal(t, 38, e.NumericPrecision)
	require.Equal(t, 38, e.NumericScale)
	require.Equal(t, 7, e.DatetimePrecision)
}

func TestDecimalByteLength(t *testing.T) {
	cases := map[int]int{
		0:  0,
		1:  1,
		9:  4,
		18: 8,
		38: 16,
	}
	for precision, want := range cases {
		require.Equal(t, want, DecimalByteLength(precision), "precision=%d", precision)
	}
}
