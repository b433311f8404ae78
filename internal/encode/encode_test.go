package encode

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/schema"
	"github.com/stretchr/testify/require"

	mschema "mssqlparquet/internal/schema"
	"mssqlparquet/internal/value"
)

func TestEncodeDecimalExactBytes(t *testing.T) {
	// Catalog (price decimal(18,4)), mantissa 12345678 -> 1234.5678.
	// decimal_byte_length = ceil((18*log2(10)+1)/8) = 8.
	encoded, err := encodeDecimal(big.NewInt(12345678), 18, 8)
	require.NoError(t, err)
	require.Len(t, encoded, 8)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0xbc, 0x61, 0x4e}, []byte(encoded))
}

func TestEncodeDecimalNegative(t *testing.T) {
	encoded, err := encodeDecimal(big.NewInt(-1), 9, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, []byte(encoded))
}

func TestEncodeDecimalOverflowAtPrecisionBound(t *testing.T) {
	// Exactly 10^precision overflows; -10^precision is the minimum
	// representable value and succeeds, per spec.md §8's boundary laws.
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(4), nil)

	_, err := encodeDecimal(bound, 4, 4)
	require.Error(t, err)

	minimum := new(big.Int).Neg(bound)
	_, err = encodeDecimal(minimum, 4, 4)
	require.NoError(t, err)
}

func TestDateEpochShift(t *testing.T) {
	// 738156 days after 0001-01-01 (2022-01-02) is 18994 days after
	// 1970-01-01; expect INT32 18994.
	got := int32(int64(738156) - daysEpoch0001To1970)
	require.Equal(t, int32(18994), got)
}

func TestEncodeLegacyDateTimeMillisWithinTolerance(t *testing.T) {
	// ticks=100 is 100/300 s = 0.333... s, i.e. 333ms once truncated to
	// millisecond resolution; the 1/300s tick resolution means the
	// analytically-expected value can only be pinned down to within a
	// few milliseconds, per spec.md §8's "|decoded_ms - expected_ms| <= 4".
	const daysSinceEpoch1900 = 44562
	v := value.DateTimeSQL(daysSinceEpoch1900, 100)
	got := encodeLegacyDateTimeMillis(v)

	expectedDaysSinceUnixEpoch := int64(daysSinceEpoch1900 - daysEpoch1900To1970)
	expected := expectedDaysSinceUnixEpoch*secondsPerDay*1000 + 333
	diff := got - expected
	if diff < 0 {
		diff = -diff
	}
	require.LessOrEqual(t, diff, int64(4))
}

func TestEncodeDateTime2NanosExact(t *testing.T) {
	// Days since 0001-01-01 = 738156 -> days since 1970-01-01 = 18994
	// (per the DAYS_0001_01_01_TO_1970_01_01 = 719162 constant);
	// increments = 5 at scale 7 -> 500 ns since midnight.
	dt := value.DateTime2{Days: 738156, Increments: 5, Scale: 7}
	got := encodeDateTime2(dt, schema.TimeUnitNanos)
	const daysSinceUnixEpoch = 738156 - 719162
	const expected = daysSinceUnixEpoch*86400*1_000_000_000 + 500
	require.Equal(t, int64(expected), got)
}

// TestEncodeDispatchesRealColumnWriters exercises seed scenario 1 from
// spec.md §8 end to end: a NOT NULL int column and a nullable varchar
// column, written through the real arrow-go column chunk writers the
// dispatch switch in Encode type-asserts against.
func TestEncodeDispatchesRealColumnWriters(t *testing.T) {
	entries := []value.ColumnCatalogEntry{
		{Name: "id", SQLType: "int", Nullable: false},
		{Name: "name", SQLType: "varchar", Nullable: true},
	}
	plan, root, err := mschema.Translate(entries)
	require.NoError(t, err)

	var out bytes.Buffer
	writer := file.NewParquetWriter(&out, root, file.WithWriterProps(parquet.NewWriterProperties()))
	rgw := writer.AppendRowGroup()

	idBuf := value.ColumnBuffer{Values: []value.TaggedValue{value.Int32(1), value.Int32(2), value.Int32(3)}}
	idWriter, err := rgw.NextColumn()
	require.NoError(t, err)
	require.NoError(t, Encode(plan.Columns[0], idBuf, idWriter))
	require.NoError(t, idWriter.Close())

	nameBuf := value.ColumnBuffer{Values: []value.TaggedValue{value.String("a"), value.Null(), value.String("c")}}
	nameWriter, err := rgw.NextColumn()
	require.NoError(t, err)
	require.NoError(t, Encode(plan.Columns[1], nameBuf, nameWriter))
	require.NoError(t, nameWriter.Close())

	require.NoError(t, rgw.Close())
	require.NoError(t, writer.Close())
	require.Greater(t, out.Len(), 0)
}

func TestRequiredColumnRejectsNull(t *testing.T) {
	col := mschema.ColumnPlan{Name: "id", Repetition: parquet.Repetitions.Required}
	buf := value.ColumnBuffer{Values: []value.TaggedValue{value.Int32(1), value.Null()}}
	err := requireNoNulls(col, buf)
	require.Error(t, err)
}
