// Package errs defines the fatal error taxonomy of the core: every
// kind named in spec.md's error handling design, each carrying the
// column name / row index context the caller can attach with errors.As.
package errs

import (
	"errors"
	"fmt"

	pingcaperrors "github.com/pingcap/errors"
)

// Kind is one of the fatal error categories the core can surface.
type Kind string

const (
	CatalogUnavailable Kind = "catalog_unavailable"
	SchemaMismatch     Kind = "schema_mismatch"
	Upstream           Kind = "upstream"
	InvalidColumnName  Kind = "invalid_column_name"
	UnsupportedType    Kind = "unsupported_type"
	DecimalOverflow    Kind = "decimal_overflow"
	UnexpectedNull     Kind = "unexpected_null"
	IOFailure          Kind = "io_failure"
)

// Error is a taxonomy-tagged fatal error with optional column/row context.
type Error struct {
	Kind    Kind
	Column  string
	Row     int // -1 when not applicable
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" (column=%s)", e.Column)
	}
	if e.Row >= 0 {
		msg += fmt.Sprintf(" (row=%d)", e.Row)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error with no column/row context.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Row: -1, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error from a cause with no column/row context. The
// cause is run through pingcap/errors.Trace, the way every fallible
// helper in the teacher (operations.go, parquet_writer.go,
// streaming.go) annotates an error with a stack trace before
// propagating it upward.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Row: -1, Message: fmt.Sprintf(format, args...), Cause: pingcaperrors.Trace(cause)}
}

// WithColumn attaches column context to an Error, returning a copy.
func (e *Error) WithColumn(column string) *Error {
	clone := *e
	clone.Column = column
	return &clone
}

// WithRow attaches row context to an Error, returning a copy.
func (e *Error) WithRow(row int) *Error {
	clone := *e
	clone.Row = row
	return &clone
}

// Is reports whether err is an *Error of the given kind, so callers
// can test taxonomy membership with errors.Is-style usage:
// errs.Is(err, errs.DecimalOverflow).
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
