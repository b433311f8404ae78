package value

import "math/big"

// Kind tags the payload carried by a TaggedValue. It mirrors the sum
// type the original Rust ColumnData enum expressed with pattern
// matching; here the match becomes a switch over Kind.
type Kind int

const (
	KindNull Kind = iota
	KindUint8
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindBool
	KindString
	KindXML
	KindBinary
	KindDate       // days since 0001-01-01
	KindDateTime   // days since 1900-01-01 + 1/300s ticks
	KindDateTime2  // days since 0001-01-01 + sub-second increments at a scale
	KindTime       // sub-second increments at a scale, no date part
	KindDecimal    // signed mantissa at the column's declared scale
)

// DateTime2 carries the datetime2-family payload: a day count since
// 0001-01-01 and a count of scale-sized increments since midnight.
type DateTime2 struct {
	Days       int64
	Increments int64
	Scale      int
}

// Decimal carries a signed, already-scaled mantissa (value =
// mantissa * 10^-scale). The mantissa is a big.Int because SQL
// Server's NUMERIC/DECIMAL precision (up to 38) can exceed 64 bits.
type Decimal struct {
	Mantissa *big.Int
	Scale    int
}

// TaggedValue is one cell of a result set: a SQL runtime type plus
// payload, with an explicit null marker. The zero value is null.
type TaggedValue struct {
	Kind Kind

	I32 int32
	I64 int64
	F32 float32
	F64 float64
	B   bool
	S   string
	Bin []byte

	DateDays int64 // KindDate
	DT       DateTime2
	Dec      Decimal
}

// Null reports whether the value carries no payload.
func (v TaggedValue) Null() bool { return v.Kind == KindNull }

func Null() TaggedValue { return TaggedValue{Kind: KindNull} }

func Uint8(v uint8) TaggedValue  { return TaggedValue{Kind: KindUint8, I32: int32(v)} }
func Int16(v int16) TaggedValue  { return TaggedValue{Kind: KindInt16, I32: int32(v)} }
func Int32(v int32) TaggedValue  { return TaggedValue{Kind: KindInt32, I32: v} }
func Int64(v int64) TaggedValue  { return TaggedValue{Kind: KindInt64, I64: v} }
func Float32(v float32) TaggedValue { return TaggedValue{Kind: KindFloat32, F32: v} }
func Float64(v float64) TaggedValue { return TaggedValue{Kind: KindFloat64, F64: v} }
func Bool(v bool) TaggedValue    { return TaggedValue{Kind: KindBool, B: v} }
func String(v string) TaggedValue { return TaggedValue{Kind: KindString, S: v} }
func XML(v string) TaggedValue    { return TaggedValue{Kind: KindXML, S: v} }
func Binary(v []byte) TaggedValue { return TaggedValue{Kind: KindBinary, Bin: v} }
func Date(daysSince0001 int64) TaggedValue {
	return TaggedValue{Kind: KindDate, DateDays: daysSince0001}
}

// DateTimeSQL carries the legacy DATETIME payload: days since
// 1900-01-01 and ticks in units of 1/300 second.
func DateTimeSQL(daysSince1900 int64, ticks int64) TaggedValue {
	return TaggedValue{Kind: KindDateTime, DateDays: daysSince1900, DT: DateTime2{Increments: ticks}}
}

func DateTime2Value(daysSince0001, increments int64, scale int) TaggedValue {
	return TaggedValue{Kind: KindDateTime2, DT: DateTime2{Days: daysSince0001, Increments: increments, Scale: scale}}
}

func Time(increments int64, scale int) TaggedValue {
	return TaggedValue{Kind: KindTime, DT: DateTime2{Increments: increments, Scale: scale}}
}

func NewDecimal(mantissa *big.Int, scale int) TaggedValue {
	return TaggedValue{Kind: KindDecimal, Dec: Decimal{Mantissa: mantissa, Scale: scale}}
}

// ColumnBuffer is the pivoted, per-column sequence of values produced
// by the Row Buffer. Its length always equals the row count.
type ColumnBuffer struct {
	Values []TaggedValue
}

// DefinitionLevels derives the 0/1 definition-level sequence for an
// OPTIONAL column: 1 where the value is present, 0 where null.
func (b ColumnBuffer) DefinitionLevels() []int16 {
	levels := make([]int16, len(b.Values))
	for i, v := range b.Values {
		if !v.Null() {
			levels[i] = 1
		}
	}
	return levels
}

// PresentCount returns the number of non-null values in the buffer.
func (b ColumnBuffer) PresentCount() int {
	n := 0
	for _, v := range b.Values {
		if !v.Null() {
			n++
		}
	}
	return n
}
