// Package schema implements the Schema Translator: turning an ordered
// column catalog into a Parquet group schema with logical annotations,
// plus the per-column physical layout the encoders need (decimal byte
// length, timestamp unit). The type-mapping table is the authoritative
// one spec.md §4.2 specifies, plus explicit mappings for money/smallmoney
// (decimal), uniqueidentifier and rowversion/timestamp (fixed-length
// binary) and datetimeoffset (timestamp).
package schema

import (
	"strings"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/schema"

	"mssqlparquet/internal/errs"
	"mssqlparquet/internal/value"
)

// rootName is the schema's group node name, kept verbatim from the
// original system's hard-coded literal; downstream consumers may
// already key off it.
const rootName = "schema_mvsh"

// ColumnPlan is one entry of the SchemaPlan: the physical layout a
// Column Encoder needs to write a batch for this column.
type ColumnPlan struct {
	Name              string
	Physical          parquet.Type
	Repetition        parquet.Repetition
	DecimalByteLength int             // only meaningful when Physical == FixedLenByteArray and Logical is a Decimal
	DecimalPrecision  int             // the precision the overflow bound (+-10^precision) is checked against
	TimeUnit          schema.TimeUnitType // only meaningful for Timestamp/Time logical columns
	Catalog           value.ColumnCatalogEntry
}

// Required reports whether the column carries no definition levels.
func (c ColumnPlan) Required() bool { return c.Repetition == parquet.Repetitions.Required }

// SchemaPlan is the ordered, catalog-indexed layout the Writer Driver
// and Column Encoders consume alongside the constructed group node.
type SchemaPlan struct {
	Columns []ColumnPlan
}

// Translate builds the SchemaPlan and Parquet group node for entries,
// in order. Every entry in spec.md §4.2's authoritative mapping table
// is handled explicitly; anything else falls back to the BYTE_ARRAY
// String safe default the table itself specifies.
func Translate(entries []value.ColumnCatalogEntry) (*SchemaPlan, *schema.GroupNode, error) {
	nodes := make([]schema.Node, len(entries))
	plan := &SchemaPlan{Columns: make([]ColumnPlan, len(entries))}

	for i, entry := range entries {
		if strings.TrimSpace(entry.Name) == "" {
			return nil, nil, errs.New(errs.InvalidColumnName, "column at index %d has a blank name", i).WithRow(-1)
		}

		col, node, err := translateColumn(entry, i)
		if err != nil {
			return nil, nil, err
		}
		plan.Columns[i] = col
		nodes[i] = node
	}

	root, err := schema.NewGroupNode(rootName, parquet.Repetitions.Required, nodes, -1)
	if err != nil {
		return nil, nil, errs.Wrap(errs.SchemaMismatch, err, "building root group node")
	}
	return plan, root, nil
}

func repetitionFor(entry value.ColumnCatalogEntry) parquet.Repetition {
	if entry.Nullable {
		return parquet.Repetitions.Optional
	}
	return parquet.Repetitions.Required
}

func translateColumn(entry value.ColumnCatalogEntry, fieldID int) (ColumnPlan, schema.Node, error) {
	repetition := repetitionFor(entry)
	plan := ColumnPlan{Name: entry.Name, Repetition: repetition, Catalog: entry}

	switch entry.SQLType {
	case "tinyint", "smallint", "int":
		plan.Physical = parquet.Types.Int32
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.Int32, int32(fieldID), -1)
		return plan, node, wrapNodeErr(err, entry)

	case "bigint":
		plan.Physical = parquet.Types.Int64
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.Int64, int32(fieldID), -1)
		return plan, node, wrapNodeErr(err, entry)

	case "real":
		plan.Physical = parquet.Types.Float
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.Float, int32(fieldID), -1)
		return plan, node, wrapNodeErr(err, entry)

	case "float":
		plan.Physical = parquet.Types.Double
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.Double, int32(fieldID), -1)
		return plan, node, wrapNodeErr(err, entry)

	case "bit":
		plan.Physical = parquet.Types.Boolean
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.Boolean, int32(fieldID), -1)
		return plan, node, wrapNodeErr(err, entry)

	case "decimal", "numeric":
		return decimalColumn(entry, fieldID, plan, repetition, entry.NumericPrecision, entry.NumericScale)

	case "money", "smallmoney":
		// SQL Server reports numeric_precision=19, numeric_scale=4 for
		// money via INFORMATION_SCHEMA; database/sql's DecimalSize()
		// surfaces the same pair. Fall back to those native defaults
		// when the probe strategy in use didn't populate them.
		precision, scale := entry.NumericPrecision, entry.NumericScale
		if precision == 0 {
			precision, scale = 19, 4
		}
		return decimalColumn(entry, fieldID, plan, repetition, precision, scale)

	case "char", "varchar", "text", "nchar", "nvarchar", "ntext", "xml":
		plan.Physical = parquet.Types.ByteArray
		node, err := schema.NewPrimitiveNodeLogical(entry.Name, repetition, schema.StringLogicalType{}, parquet.Types.ByteArray, -1, int32(fieldID))
		return plan, node, wrapNodeErr(err, entry)

	case "date":
		plan.Physical = parquet.Types.Int32
		node, err := schema.NewPrimitiveNodeLogical(entry.Name, repetition, schema.DateLogicalType{}, parquet.Types.Int32, -1, int32(fieldID))
		return plan, node, wrapNodeErr(err, entry)

	case "time":
		plan.Physical = parquet.Types.Int64
		plan.TimeUnit = schema.TimeUnitMicros
		logical := schema.NewTimeLogicalType(false, schema.TimeUnitMicros)
		node, err := schema.NewPrimitiveNodeLogical(entry.Name, repetition, logical, parquet.Types.Int64, -1, int32(fieldID))
		return plan, node, wrapNodeErr(err, entry)

	case "datetime", "smalldatetime", "datetime2", "datetimeoffset":
		plan.Physical = parquet.Types.Int64
		plan.TimeUnit = timeUnitFor(entry.DatetimePrecision)
		logical := schema.NewTimestampLogicalType(false, plan.TimeUnit)
		node, err := schema.NewPrimitiveNodeLogical(entry.Name, repetition, logical, parquet.Types.Int64, -1, int32(fieldID))
		return plan, node, wrapNodeErr(err, entry)

	case "binary", "varbinary", "image":
		plan.Physical = parquet.Types.ByteArray
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.ByteArray, int32(fieldID), -1)
		return plan, node, wrapNodeErr(err, entry)

	case "uniqueidentifier":
		plan.Physical = parquet.Types.FixedLenByteArray
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.FixedLenByteArray, int32(fieldID), 16)
		return plan, node, wrapNodeErr(err, entry)

	case "rowversion", "timestamp":
		plan.Physical = parquet.Types.FixedLenByteArray
		node, err := schema.NewPrimitiveNode(entry.Name, repetition, parquet.Types.FixedLenByteArray, int32(fieldID), 8)
		return plan, node, wrapNodeErr(err, entry)

	default:
		plan.Physical = parquet.Types.ByteArray
		node, err := schema.NewPrimitiveNodeLogical(entry.Name, repetition, schema.StringLogicalType{}, parquet.Types.ByteArray, -1, int32(fieldID))
		return plan, node, wrapNodeErr(err, entry)
	}
}

func decimalColumn(entry value.ColumnCatalogEntry, fieldID int, plan ColumnPlan, repetition parquet.Repetition, precision, scale int) (ColumnPlan, schema.Node, error) {
	plan.Physical = parquet.Types.FixedLenByteArray
	plan.DecimalByteLength = value.DecimalByteLength(precision)
	plan.DecimalPrecision = precision

	logical := schema.NewDecimalLogicalType(int32(precision), int32(scale))
	node, err := schema.NewPrimitiveNodeLogical(entry.Name, repetition, logical, parquet.Types.FixedLenByteArray, plan.DecimalByteLength, int32(fieldID))
	return plan, node, wrapNodeErr(err, entry)
}

// timeUnitFor picks the Parquet timestamp unit from datetime_precision
// per spec.md §4.2's table: [0,3] -> MILLIS, [4,6] -> MICROS, >=7 -> NANOS.
func timeUnitFor(datetimePrecision int) schema.TimeUnitType {
	switch {
	case datetimePrecision >= 7:
		return schema.TimeUnitNanos
	case datetimePrecision >= 4:
		return schema.TimeUnitMicros
	default:
		return schema.TimeUnitMillis
	}
}

func wrapNodeErr(err error, entry value.ColumnCatalogEntry) error {
	if err == nil {
		return nil
	}
	return errs.Wrap(errs.UnsupportedType, err, "building schema node for column").WithColumn(entry.Name)
}
