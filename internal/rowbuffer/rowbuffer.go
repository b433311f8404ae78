// Package rowbuffer implements the Row Buffer: it pivots a row-at-a-time
// query stream into per-column sequences of TaggedValue, preserving the
// shared-length invariant spec.md §3 requires across all columns.
package rowbuffer

import (
	"database/sql"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"mssqlparquet/internal/errs"
	"mssqlparquet/internal/schema"
	"mssqlparquet/internal/value"
)

// Buffer accumulates the pivoted column vectors for one query's result
// set. Row order within every column is identical to arrival order.
type Buffer struct {
	columns []value.ColumnBuffer
	rows    int
}

// New allocates a Buffer for a schema of n columns.
func New(n int) *Buffer {
	return &Buffer{columns: make([]value.ColumnBuffer, n)}
}

// AppendRow appends one row's already-tagged fields to their respective
// ColumnBuffers. len(row) must equal the Buffer's column count.
func (b *Buffer) AppendRow(row []value.TaggedValue) error {
	if len(row) != len(b.columns) {
		return errs.New(errs.SchemaMismatch, "row has %d fields, catalog declares %d", len(row), len(b.columns))
	}
	for i, v := range row {
		b.columns[i].Values = append(b.columns[i].Values, v)
	}
	b.rows++
	return nil
}

// Columns returns the accumulated per-column buffers, indexed identically
// to the catalog and SchemaPlan.
func (b *Buffer) Columns() []value.ColumnBuffer { return b.columns }

// RowCount returns the number of rows appended so far.
func (b *Buffer) RowCount() int { return b.rows }

// Ingest drains rows from an open *sql.Rows into buf, converting each
// driver value into a value.TaggedValue according to plan's per-column
// physical layout. It consumes only the current result set; the caller
// decides whether to advance past result-set boundaries with
// rows.NextResultSet(), which the core does not do (spec.md §4.3: "skip
// non-row items").
func Ingest(rows *sql.Rows, plan *schema.SchemaPlan, buf *Buffer) error {
	columnCount := len(plan.Columns)

	resultColumns, err := rows.Columns()
	if err != nil {
		return errs.Wrap(errs.Upstream, err, "reading result set columns")
	}
	if len(resultColumns) != columnCount {
		return errs.New(errs.SchemaMismatch,
			"catalog declares %d columns but the result set has %d", columnCount, len(resultColumns))
	}

	scanDest := make([]any, columnCount)
	for i := range scanDest {
		scanDest[i] = new(any)
	}

	rowIndex := 0
	for rows.Next() {
		if err := rows.Scan(scanDest...); err != nil {
			return errs.Wrap(errs.Upstream, err, "scanning row %d", rowIndex)
		}

		tagged := make([]value.TaggedValue, columnCount)
		for i, col := range plan.Columns {
			raw := *(scanDest[i].(*any))
			v, err := convert(raw, col)
			if err != nil {
				return errs.Wrap(errs.Upstream, err, "converting column").WithColumn(col.Name).WithRow(rowIndex)
			}
			if v.Null() && col.Required() {
				return errs.New(errs.UnexpectedNull, "null value in REQUIRED column").WithColumn(col.Name).WithRow(rowIndex)
			}
			tagged[i] = v
		}
		if err := buf.AppendRow(tagged); err != nil {
			return err
		}
		rowIndex++
	}
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.Upstream, err, "row iteration failed after %d rows", rowIndex)
	}
	return nil
}

// convert maps a driver-returned value to the TaggedValue kind the
// column's SQL type implies. Unrecognized shapes map to null rather
// than erroring, mirroring the encoders' own "anything unexpected maps
// to null" policy for accepted-kind mismatches.
func convert(raw any, col schema.ColumnPlan) (value.TaggedValue, error) {
	if raw == nil {
		return value.Null(), nil
	}

	switch col.Catalog.SQLType {
	case "tinyint":
		n, ok := asInt64(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.Uint8(uint8(n)), nil
	case "smallint":
		n, ok := asInt64(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.Int16(int16(n)), nil
	case "int":
		n, ok := asInt64(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.Int32(int32(n)), nil
	case "bigint":
		n, ok := asInt64(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.Int64(n), nil
	case "real":
		f, ok := asFloat64(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.Float32(float32(f)), nil
	case "float":
		f, ok := asFloat64(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.Float64(f), nil
	case "bit":
		b, ok := raw.(bool)
		if !ok {
			return value.Null(), nil
		}
		return value.Bool(b), nil
	case "decimal", "numeric", "money", "smallmoney":
		return convertDecimal(raw, col)
	case "char", "varchar", "text", "nchar", "nvarchar", "ntext":
		s, ok := asString(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.String(s), nil
	case "xml":
		s, ok := asString(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.XML(s), nil
	case "binary", "varbinary", "image", "uniqueidentifier", "rowversion", "timestamp":
		bin, ok := raw.([]byte)
		if !ok {
			return value.Null(), nil
		}
		return value.Binary(bin), nil
	case "date":
		t, ok := raw.(time.Time)
		if !ok {
			return value.Null(), nil
		}
		u := t.UTC()
		midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		days := (midnight.Unix() - time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).Unix()) / 86400
		return value.Date(days), nil
	case "datetime", "smalldatetime":
		t, ok := raw.(time.Time)
		if !ok {
			return value.Null(), nil
		}
		epoch1900 := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
		delta := t.UTC().Sub(epoch1900)
		days := int64(delta.Hours() / 24)
		remainder := delta - time.Duration(days)*24*time.Hour
		ticks := int64(remainder.Seconds() * 300)
		return value.DateTimeSQL(days, ticks), nil
	case "datetime2", "datetimeoffset":
		t, ok := raw.(time.Time)
		if !ok {
			return value.Null(), nil
		}
		epoch0001 := time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
		u := t.UTC()
		midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
		days := (midnight.Unix() - epoch0001.Unix()) / 86400
		scale := col.Catalog.DatetimePrecision
		if scale == 0 {
			scale = 7
		}
		nanosSinceMidnight := u.Sub(midnight).Nanoseconds()
		increment := int64(9 - scale)
		if increment < 0 {
			increment = 0
		}
		increments := nanosSinceMidnight / pow10(increment)
		return value.DateTime2Value(days, increments, scale), nil
	case "time":
		t, ok := raw.(time.Time)
		if !ok {
			return value.Null(), nil
		}
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		nanos := t.Sub(midnight).Nanoseconds()
		return value.Time(nanos/1000, 6), nil
	default:
		s, ok := asString(raw)
		if !ok {
			return value.Null(), nil
		}
		return value.String(s), nil
	}
}

func convertDecimal(raw any, col schema.ColumnPlan) (value.TaggedValue, error) {
	scale := col.Catalog.NumericScale
	if (col.Catalog.SQLType == "money" || col.Catalog.SQLType == "smallmoney") && col.Catalog.NumericPrecision == 0 {
		scale = 4
	}

	switch v := raw.(type) {
	case []byte:
		mantissa, parsedScale, err := parseDecimalString(string(v))
		if err != nil {
			return value.TaggedValue{}, err
		}
		return value.NewDecimal(scaleMantissa(mantissa, parsedScale, scale), scale), nil
	case string:
		mantissa, parsedScale, err := parseDecimalString(v)
		if err != nil {
			return value.TaggedValue{}, err
		}
		return value.NewDecimal(scaleMantissa(mantissa, parsedScale, scale), scale), nil
	case int64:
		return value.NewDecimal(scaleMantissa(big.NewInt(v), 0, scale), scale), nil
	default:
		return value.Null(), nil
	}
}

// parseDecimalString turns a driver-formatted decimal literal like
// "-1234.5678" into its unscaled mantissa and the scale implied by the
// number of digits after the decimal point.
func parseDecimalString(s string) (*big.Int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, 0, fmt.Errorf("rowbuffer: empty decimal literal")
	}
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	parts := strings.SplitN(s, ".", 2)
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}

	mantissa, ok := new(big.Int).SetString(intPart+fracPart, 10)
	if !ok {
		return nil, 0, fmt.Errorf("rowbuffer: malformed decimal literal %q", s)
	}
	if negative {
		mantissa.Neg(mantissa)
	}
	return mantissa, len(fracPart), nil
}

// scaleMantissa rescales mantissa (currently at fromScale digits after
// the point) to toScale, by multiplying or dividing by a power of ten.
func scaleMantissa(mantissa *big.Int, fromScale, toScale int) *big.Int {
	if fromScale == toScale {
		return mantissa
	}
	diff := toScale - fromScale
	factor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(diff))), nil)
	result := new(big.Int)
	if diff > 0 {
		result.Mul(mantissa, factor)
	} else {
		result.Quo(mantissa, factor)
	}
	return result
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func pow10(n int64) int64 {
	if n <= 0 {
		return 1
	}
	result := int64(1)
	for i := int64(0); i < n; i++ {
		result *= 10
	}
	return result
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case int:
		return int64(v), true
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asString(raw any) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	default:
		return "", false
	}
}
