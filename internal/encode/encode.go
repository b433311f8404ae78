// Package encode implements the Column Encoders: one per Parquet
// physical type, each consuming a ColumnBuffer and the column's
// SchemaPlan entry and writing a single typed batch to an open column
// chunk writer. Variants the encoder doesn't accept map to null,
// mirroring spec.md §4.4's "all other variants are treated as null"
// policy rather than erroring.
package encode

import (
	"math/big"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	pschema "github.com/apache/arrow-go/v18/parquet/schema"

	"mssqlparquet/internal/errs"
	"mssqlparquet/internal/schema"
	"mssqlparquet/internal/value"
)

// daysEpoch0001To1970 is the day count between Parquet's epoch
// (1970-01-01) and the SQL Server DATE/DATETIME2 epoch (0001-01-01),
// applied by the INT32 encoder and the date component of DATETIME2.
const daysEpoch0001To1970 = 719162

// secondsPerDay and the 1/300-second DATETIME tick resolution feed the
// legacy datetime-to-milliseconds conversion.
const (
	secondsPerDay  = 86400
	ticksPerSecond = 300
)

// Encode writes one column's ColumnBuffer to an open column chunk
// writer, dispatching on the writer's concrete type exactly as the
// teacher's writeNextColumn switch does.
func Encode(col schema.ColumnPlan, buf value.ColumnBuffer, cw file.ColumnChunkWriter) error {
	if col.Required() {
		if err := requireNoNulls(col, buf); err != nil {
			return err
		}
	}

	switch w := cw.(type) {
	case *file.Int32ColumnChunkWriter:
		return encodeInt32(col, buf, w)
	case *file.Int64ColumnChunkWriter:
		return encodeInt64(col, buf, w)
	case *file.Float32ColumnChunkWriter:
		return encodeFloat(col, buf, w)
	case *file.Float64ColumnChunkWriter:
		return encodeDouble(col, buf, w)
	case *file.BooleanColumnChunkWriter:
		return encodeBool(col, buf, w)
	case *file.ByteArrayColumnChunkWriter:
		return encodeByteArray(col, buf, w)
	case *file.FixedLenByteArrayColumnChunkWriter:
		return encodeFixedLenByteArray(col, buf, w)
	default:
		return errs.New(errs.UnsupportedType, "no encoder for column writer type %T", cw).WithColumn(col.Name)
	}
}

// Validate performs every check Encode would otherwise discover
// partway through a WriteBatch call (REQUIRED-column nulls, decimal
// overflow) without writing anything. The Writer Driver's optional
// parallel mode runs this concurrently across columns ahead of the
// sequential write loop that NextColumn's ordering still demands.
func Validate(col schema.ColumnPlan, buf value.ColumnBuffer) error {
	if col.Required() {
		if err := requireNoNulls(col, buf); err != nil {
			return err
		}
	}
	if col.Physical != parquet.Types.FixedLenByteArray || col.DecimalPrecision == 0 {
		return nil
	}
	for i, v := range buf.Values {
		if v.Kind != value.KindDecimal {
			continue
		}
		if _, err := encodeDecimal(v.Dec.Mantissa, col.DecimalPrecision, col.DecimalByteLength); err != nil {
			return errs.Wrap(errs.DecimalOverflow, err, "validating decimal").WithColumn(col.Name).WithRow(i)
		}
	}
	return nil
}

func requireNoNulls(col schema.ColumnPlan, buf value.ColumnBuffer) error {
	for i, v := range buf.Values {
		if v.Null() {
			return errs.New(errs.UnexpectedNull, "null value in REQUIRED column").WithColumn(col.Name).WithRow(i)
		}
	}
	return nil
}

func defLevels(col schema.ColumnPlan, buf value.ColumnBuffer) []int16 {
	if col.Required() {
		return nil
	}
	return buf.DefinitionLevels()
}

// INT32 encoder. Accepts int32, int16/uint8 (widened), and date (shifted
// from the 0001-01-01 epoch to 1970-01-01). Everything else is null.
func encodeInt32(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.Int32ColumnChunkWriter) error {
	values := make([]int32, 0, len(buf.Values))
	for _, v := range buf.Values {
		switch v.Kind {
		case value.KindInt32, value.KindInt16, value.KindUint8:
			values = append(values, v.I32)
		case value.KindDate:
			values = append(values, int32(v.DateDays-daysEpoch0001To1970))
		case value.KindNull:
			// contributes no value, only a definition level of 0
		default:
			// unaccepted variant: treated as null per spec.md §4.4
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// INT64 encoder. Accepts int64, datetime (legacy 1900-01-01 epoch with
// 1/300s ticks) and datetime2 (0001-01-01 epoch with scale-sized
// sub-second increments), truncated to the column's TimeUnit.
func encodeInt64(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.Int64ColumnChunkWriter) error {
	values := make([]int64, 0, len(buf.Values))
	for _, v := range buf.Values {
		switch v.Kind {
		case value.KindInt64:
			values = append(values, v.I64)
		case value.KindDateTime:
			values = append(values, encodeLegacyDateTimeMillis(v))
		case value.KindDateTime2:
			values = append(values, encodeDateTime2(v.DT, col.TimeUnit))
		case value.KindTime:
			values = append(values, encodeTime(v.DT, col.TimeUnit))
		case value.KindNull:
		default:
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// encodeLegacyDateTimeMillis converts a DATETIME payload (days since
// 1900-01-01, ticks in 1/300s) to UTC milliseconds since 1970-01-01.
func encodeLegacyDateTimeMillis(v value.TaggedValue) int64 {
	daysSinceEpoch1900 := v.DateDays
	ticks := v.DT.Increments

	wholeSeconds := ticks / ticksPerSecond
	remainderTicks := ticks % ticksPerSecond
	millisFromTicks := remainderTicks * 1000 / ticksPerSecond

	daysSinceUnixEpoch := daysSinceEpoch1900 - daysEpoch1900To1970

	return daysSinceUnixEpoch*secondsPerDay*1000 + wholeSeconds*1000 + millisFromTicks
}

// daysEpoch1900To1970 is the day count from 1900-01-01 to 1970-01-01
// (70 years, 17 of them leap under the proleptic Gregorian rule since
// 1900 itself is not a leap year): 70*365 + 17 = 25567.
const daysEpoch1900To1970 = 25567

// encodeDateTime2 converts a DATETIME2-family payload (days since
// 0001-01-01, sub-second increments at a declared scale) into the
// column's chosen timestamp unit.
func encodeDateTime2(dt value.DateTime2, unit pschema.TimeUnitType) int64 {
	daysSinceUnixEpoch := dt.Days - daysEpoch0001To1970
	nanosSinceMidnight := dt.Increments * pow10(9-dt.Scale)
	totalNanos := daysSinceUnixEpoch*secondsPerDay*1_000_000_000 + nanosSinceMidnight

	switch unit {
	case pschema.TimeUnitNanos:
		return totalNanos
	case pschema.TimeUnitMicros:
		return totalNanos / 1_000
	default:
		return totalNanos / 1_000_000
	}
}

// encodeTime converts a TIME-family payload (sub-second increments at a
// declared scale, no date part) into the column's chosen unit.
func encodeTime(dt value.DateTime2, unit pschema.TimeUnitType) int64 {
	nanosSinceMidnight := dt.Increments * pow10(9-dt.Scale)
	switch unit {
	case pschema.TimeUnitNanos:
		return nanosSinceMidnight
	case pschema.TimeUnitMicros:
		return nanosSinceMidnight / 1_000
	default:
		return nanosSinceMidnight / 1_000_000
	}
}

func pow10(n int) int64 {
	if n <= 0 {
		return 1
	}
	result := int64(1)
	for i := 0; i < n; i++ {
		result *= 10
	}
	return result
}

// FLOAT encoder. Accepts only float32 (KindFloat32); any other variant
// is null, per spec.md §4.4's exact-kind-match rule.
func encodeFloat(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.Float32ColumnChunkWriter) error {
	values := make([]float32, 0, len(buf.Values))
	for _, v := range buf.Values {
		if v.Kind == value.KindFloat32 {
			values = append(values, v.F32)
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// DOUBLE encoder. Accepts only float64 (KindFloat64).
func encodeDouble(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.Float64ColumnChunkWriter) error {
	values := make([]float64, 0, len(buf.Values))
	for _, v := range buf.Values {
		if v.Kind == value.KindFloat64 {
			values = append(values, v.F64)
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// BOOLEAN encoder. Accepts only bit (KindBool).
func encodeBool(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.BooleanColumnChunkWriter) error {
	values := make([]bool, 0, len(buf.Values))
	for _, v := range buf.Values {
		if v.Kind == value.KindBool {
			values = append(values, v.B)
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// BYTE_ARRAY encoder. Accepts utf-8 string, xml, or raw binary. UTF-8
// validity is the producer's responsibility; this encoder does not
// re-validate, per spec.md §4.4.
func encodeByteArray(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.ByteArrayColumnChunkWriter) error {
	values := make([]parquet.ByteArray, 0, len(buf.Values))
	for _, v := range buf.Values {
		switch v.Kind {
		case value.KindString, value.KindXML:
			values = append(values, parquet.ByteArray(v.S))
		case value.KindBinary:
			values = append(values, parquet.ByteArray(v.Bin))
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// FIXED_LEN_BYTE_ARRAY encoder (decimals, uniqueidentifier, rowversion).
// For decimal-backed columns, extracts the signed mantissa, checks the
// declared-precision overflow bound, and two's-complement big-endian
// encodes it right-aligned into DecimalByteLength bytes, sign-extending
// the prefix. Raw binary (uniqueidentifier/rowversion) columns are
// copied verbatim; they carry no decimal interpretation.
func encodeFixedLenByteArray(col schema.ColumnPlan, buf value.ColumnBuffer, cw *file.FixedLenByteArrayColumnChunkWriter) error {
	values := make([]parquet.FixedLenByteArray, 0, len(buf.Values))
	for i, v := range buf.Values {
		switch v.Kind {
		case value.KindDecimal:
			encoded, err := encodeDecimal(v.Dec.Mantissa, col.DecimalPrecision, col.DecimalByteLength)
			if err != nil {
				return errs.Wrap(errs.DecimalOverflow, err, "encoding decimal").WithColumn(col.Name).WithRow(i)
			}
			values = append(values, encoded)
		case value.KindBinary:
			values = append(values, parquet.FixedLenByteArray(v.Bin))
		}
	}
	_, err := cw.WriteBatch(values, defLevels(col, buf), nil)
	return wrapWriteErr(err, col)
}

// encodeDecimal two's-complement big-endian encodes mantissa into
// length bytes, right-aligned, sign-extending the prefix (0x00 for
// non-negative, 0xFF for negative). Before encoding it asserts
// -10^precision <= mantissa <= 10^precision - 1, per spec.md §4.4's
// overflow rule — a tighter bound than the byte buffer's own capacity,
// since decimal_byte_length reserves headroom above the declared
// precision.
func encodeDecimal(mantissa *big.Int, precision, length int) ([]byte, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil)
	minInclusive := new(big.Int).Neg(bound)
	maxInclusive := new(big.Int).Sub(bound, big.NewInt(1))

	if mantissa.Cmp(minInclusive) < 0 || mantissa.Cmp(maxInclusive) > 0 {
		return nil, errs.New(errs.DecimalOverflow, "mantissa %s exceeds +-10^%d range", mantissa.String(), precision)
	}

	out := make([]byte, length)
	if mantissa.Sign() >= 0 {
		b := mantissa.Bytes()
		copy(out[length-len(b):], b)
		return out, nil
	}

	// Two's complement of a negative value: 2^(8*length) + mantissa.
	modulus := new(big.Int).Lsh(big.NewInt(1), uint(length*8))
	twos := new(big.Int).Add(modulus, mantissa)
	b := twos.Bytes()
	for i := 0; i < length-len(b); i++ {
		out[i] = 0xFF
	}
	copy(out[length-len(b):], b)
	return out, nil
}

func wrapWriteErr(err error, col schema.ColumnPlan) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.IOFailure, err, "writing column batch").WithColumn(col.Name)
}
