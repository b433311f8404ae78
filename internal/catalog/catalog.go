// Package catalog implements the Catalog Probe: it asks SQL Server
// what columns and types a query's result set will have, before a
// single row has been streamed. Three strategies are tried in order,
// each a fallback for when the previous one can't answer, exactly as
// spec.md §4.1 describes.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"mssqlparquet/internal/dbsession"
	"mssqlparquet/internal/errs"
	"mssqlparquet/internal/value"
)

// Prober issues the catalog-discovery queries against an open session.
type Prober struct {
	Session dbsession.Session
}

// New builds a Prober bound to an already-opened session.
func New(session dbsession.Session) *Prober {
	return &Prober{Session: session}
}

// Probe determines the ordered column catalog for query, trying
// sp_describe_first_result_set-style introspection first, then a
// static INFORMATION_SCHEMA lookup, then a minimal first-row fallback.
// Every call is tagged with a correlation id so log lines from
// concurrent probes against the same session stay distinguishable.
func (p *Prober) Probe(ctx context.Context, query string, args []any) ([]value.ColumnCatalogEntry, error) {
	probeID := uuid.New().String()
	log.Printf("catalog: probe %s starting", probeID)

	entries, introErr := p.probeViaColumnTypes(ctx, query, args)
	if introErr == nil {
		log.Printf("catalog: probe %s resolved %d columns via introspection", probeID, len(entries))
		return entries, nil
	}

	entries, schemaErr := p.probeViaInformationSchema(ctx, query)
	if schemaErr == nil {
		log.Printf("catalog: probe %s resolved %d columns via INFORMATION_SCHEMA", probeID, len(entries))
		return entries, nil
	}

	entries, rowErr := p.probeViaFirstRow(ctx, query, args)
	if rowErr == nil {
		log.Printf("catalog: probe %s resolved %d columns via first-row fallback", probeID, len(entries))
		return entries, nil
	}

	return nil, errs.Wrap(errs.CatalogUnavailable, rowErr,
		"all catalog probe strategies failed: introspection=%v, information_schema=%v", introErr, schemaErr)
}

// probeViaColumnTypes asks the driver for column metadata from a
// zero-row execution of the query, the Go analogue of
// sp_describe_first_result_set: database/sql's sql.ColumnType already
// surfaces nullability and numeric precision/scale without a raw
// EXEC sp_describe_first_result_set call.
func (p *Prober) probeViaColumnTypes(ctx context.Context, query string, args []any) ([]value.ColumnCatalogEntry, error) {
	wrapped := "SELECT TOP (0) * FROM (" + query + ") AS probe_subquery"

	rows, err := p.Session.QueryContext(ctx, wrapped, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: introspection query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("catalog: ColumnTypes failed: %w", err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("catalog: introspection returned no columns")
	}

	entries := make([]value.ColumnCatalogEntry, len(cols))
	for i, col := range cols {
		nullable, ok := col.Nullable()
		if !ok {
			nullable = true
		}
		precision, scale, hasDecimal := col.DecimalSize()
		sqlType := normalizeDriverTypeName(col.DatabaseTypeName())

		entries[i] = value.NewColumnCatalogEntry(
			col.Name(),
			sqlType,
			nullable,
			int(precision),
			int(scale),
			datetimePrecisionFor(sqlType, hasDecimal),
			i,
		)
	}
	return entries, nil
}

// datetimePrecisionFor fills in the datetime fractional-seconds scale
// the driver's generic sql.ColumnType doesn't expose: SQL Server's
// default is 7 for datetime2/time and a fixed 3 (millisecond) for the
// legacy datetime/smalldatetime family.
func datetimePrecisionFor(sqlType string, hasDecimalSize bool) int {
	if hasDecimalSize {
		return 0
	}
	switch sqlType {
	case "datetime2", "time", "datetimeoffset":
		return 7
	case "datetime", "smalldatetime":
		return 3
	default:
		return 0
	}
}

var fromTablePattern = regexp.MustCompile(`(?is)\bfrom\s+([\[\]\w\.]+)`)

// probeViaInformationSchema is the static fallback: it resolves a
// single table reference out of the query text and queries
// INFORMATION_SCHEMA.COLUMNS for it, mirroring the original system's
// connections.rs probe.
func (p *Prober) probeViaInformationSchema(ctx context.Context, query string) ([]value.ColumnCatalogEntry, error) {
	table := resolveTableReference(query)
	if table == "" {
		return nil, errs.New(errs.CatalogUnavailable, "could not resolve a single table reference for INFORMATION_SCHEMA fallback")
	}

	schemaQuery := `
		SELECT column_name, data_type, is_nullable, numeric_precision, numeric_scale, datetime_precision
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1
		ORDER BY ORDINAL_POSITION`

	rows, err := p.Session.QueryContext(ctx, schemaQuery, sql.Named("p1", table))
	if err != nil {
		return nil, fmt.Errorf("catalog: INFORMATION_SCHEMA query failed: %w", err)
	}
	defer rows.Close()

	var entries []value.ColumnCatalogEntry
	for i := 0; rows.Next(); i++ {
		var (
			columnName        string
			dataType          string
			isNullable        string
			numericPrecision  sql.NullInt64
			numericScale      sql.NullInt64
			datetimePrecision sql.NullInt64
		)
		if err := rows.Scan(&columnName, &dataType, &isNullable, &numericPrecision, &numericScale, &datetimePrecision); err != nil {
			return nil, fmt.Errorf("catalog: scanning INFORMATION_SCHEMA row: %w", err)
		}

		entries = append(entries, value.NewColumnCatalogEntry(
			columnName,
			dataType,
			strings.EqualFold(isNullable, "yes"),
			int(numericPrecision.Int64),
			int(numericScale.Int64),
			int(datetimePrecision.Int64),
			i,
		))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: INFORMATION_SCHEMA row iteration failed: %w", err)
	}
	if len(entries) == 0 {
		return nil, errs.New(errs.CatalogUnavailable, "INFORMATION_SCHEMA.COLUMNS returned no rows for table %q", table)
	}
	return entries, nil
}

func resolveTableReference(query string) string {
	matches := fromTablePattern.FindAllStringSubmatch(query, -1)
	if len(matches) != 1 {
		return ""
	}
	ref := matches[0][1]
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		ref = ref[i+1:]
	}
	return strings.Trim(ref, "[]")
}

// probeViaFirstRow derives a minimal catalog from the runtime type of
// the first row's values when no introspection is feasible: every
// column is treated as nullable with precision/scale zero.
func (p *Prober) probeViaFirstRow(ctx context.Context, query string, args []any) ([]value.ColumnCatalogEntry, error) {
	rows, err := p.Session.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog: first-row fallback query failed: %w", err)
	}
	defer rows.Close()

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("catalog: Columns failed: %w", err)
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("catalog: first-row fallback iteration failed: %w", err)
		}
		return nil, errs.New(errs.CatalogUnavailable, "first-row fallback found no rows to type from")
	}

	dest := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("catalog: scanning first row for type inference: %w", err)
	}

	entries := make([]value.ColumnCatalogEntry, len(names))
	for i, name := range names {
		entries[i] = value.NewColumnCatalogEntry(name, sqlTypeFromGoValue(dest[i]), true, 0, 0, 0, i)
	}
	return entries, nil
}

func sqlTypeFromGoValue(v any) string {
	switch v.(type) {
	case int64, int32, int16, int8:
		return "bigint"
	case float64, float32:
		return "float"
	case bool:
		return "bit"
	case []byte:
		return "varbinary"
	case string:
		return "varchar"
	default:
		return "varchar"
	}
}

// normalizeDriverTypeName maps go-mssqldb's DatabaseTypeName() values
// (e.g. "VARCHAR", "DECIMAL", "DATETIME2") onto the lowercase sql_type
// tags the Schema Translator's mapping table keys on.
func normalizeDriverTypeName(name string) string {
	return value.NormalizeSQLType(name)
}
