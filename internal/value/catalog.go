// Package value defines the data model shared by the catalog probe,
// schema translator and column encoders: the per-column catalog entry
// and the tagged, nullable value that flows out of the row stream.
package value

import (
	"math"
	"strconv"
	"strings"
)

// ColumnCatalogEntry describes one column of a SQL Server result set.
type ColumnCatalogEntry struct {
	Name              string
	SQLType           string
	Nullable          bool
	NumericPrecision  int
	NumericScale      int
	DatetimePrecision int
}

// NormalizeName trims, lowercases and collapses whitespace runs in a
// raw column name into single underscores, per the catalog contract.
func NormalizeName(name string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(name)))
	return strings.Join(fields, "_")
}

// NormalizeSQLType strips a parenthesized size/precision suffix and
// lowercases the remaining SQL type tag, e.g. "varchar(50)" -> "varchar".
func NormalizeSQLType(sqlType string) string {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// NewColumnCatalogEntry builds a normalized catalog entry from raw
// probe output, synthesizing a name when the projection is unnamed.
func NewColumnCatalogEntry(rawName, rawSQLType string, nullable bool, precision, scale, datetimePrecision int, index int) ColumnCatalogEntry {
	name := NormalizeName(rawName)
	if name == "" {
		name = SyntheticColumnName(index)
	}
	return ColumnCatalogEntry{
		Name:              name,
		SQLType:           NormalizeSQLType(rawSQLType),
		Nullable:          nullable,
		NumericPrecision:  clamp(precision, 0, 38),
		NumericScale:      clamp(scale, 0, 38),
		DatetimePrecision: clamp(datetimePrecision, 0, 7),
	}
}

// SyntheticColumnName produces the col_{index} placeholder the catalog
// probe uses for unnamed projected expressions (AmbiguousColumn).
func SyntheticColumnName(index int) string {
	return "col_" + strconv.Itoa(index)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DecimalByteLength computes the FIXED_LEN_BYTE_ARRAY length needed to
// hold a signed decimal of the given precision: ceil((precision *
// log2(10) + 1) / 8), the extra bit reserved for the sign.
func DecimalByteLength(precision int) int {
	if precision <= 0 {
		return 0
	}
	bits := float64(precision)*math.Log2(10) + 1
	return int(math.Ceil(bits / 8))
}
