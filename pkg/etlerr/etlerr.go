// Package etlerr defines the closed set of error kinds the pipeline can
// surface, per the error handling design: construction-time errors
// (ConfigError, SchemaMismatch, CompileError) are returned directly;
// runtime errors (ExtractError, TransformError, LoadError, FieldTooLong,
// Cancelled) are delivered through a stage's on_error event and never
// thrown past a stage's public entry point.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind identifies which of the closed error categories an error belongs to.
type Kind string

const (
	KindConfig         Kind = "ConfigError"
	KindSchemaMismatch Kind = "SchemaMismatch"
	KindCompile        Kind = "CompileError"
	KindExtract        Kind = "ExtractError"
	KindEval           Kind = "EvalError"
	KindCoercion       Kind = "CoercionError"
	KindTypeMismatch   Kind = "TypeMismatch"
	KindLoad           Kind = "LoadError"
	KindFieldTooLong   Kind = "FieldTooLong"
	KindCancelled      Kind = "Cancelled"
	KindInvalidCondition Kind = "InvalidCondition"
)

// Error is the common error value for every kind in the closed list.
// Line is the record's line number when known, or 0 when not applicable
// (e.g. construction-time errors).
type Error struct {
	Kind  Kind
	Line  int64
	Expr  string // offending expression, for EvalError/CompileError
	Field string // offending field, for TypeMismatch/FieldTooLong/CoercionError
	Err   error
}

func (e *Error) Error() string {
	switch {
	case e.Expr != "" && e.Line > 0:
		return fmt.Sprintf("%s: %v (expr=%q line=%d)", e.Kind, e.Err, e.Expr, e.Line)
	case e.Expr != "":
		return fmt.Sprintf("%s: %v (expr=%q)", e.Kind, e.Err, e.Expr)
	case e.Field != "" && e.Line > 0:
		return fmt.Sprintf("%s: %v (field=%q line=%d)", e.Kind, e.Err, e.Field, e.Line)
	case e.Field != "":
		return fmt.Sprintf("%s: %v (field=%q)", e.Kind, e.Err, e.Field)
	case e.Line > 0:
		return fmt.Sprintf("%s: %v (line=%d)", e.Kind, e.Err, e.Line)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same Kind, so callers can
// write errors.Is(err, etlerr.Cancelled()) style checks.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return te.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, err error) *Error { return &Error{Kind: kind, Err: err} }

// Config wraps err as a ConfigError, surfaced at pipeline construction.
func Config(format string, args ...any) *Error {
	return newErr(KindConfig, fmt.Errorf(format, args...))
}

// SchemaMismatch wraps err as a SchemaMismatch, surfaced at construction.
func SchemaMismatch(format string, args ...any) *Error {
	return newErr(KindSchemaMismatch, fmt.Errorf(format, args...))
}

// Compile wraps err as a CompileError for an expression that failed to
// parse at pipeline construction time.
func Compile(expr string, err error) *Error {
	return &Error{Kind: KindCompile, Expr: expr, Err: err}
}

// Extract wraps err as a runtime ExtractError at the given input line.
func Extract(line int64, err error) *Error {
	return &Error{Kind: KindExtract, Line: line, Err: err}
}

// Eval wraps err as a runtime EvalError for expr at the given line.
func Eval(expr string, line int64, err error) *Error {
	return &Error{Kind: KindEval, Expr: expr, Line: line, Err: err}
}

// Coercion wraps err as a CoercionError for field at the given line.
func Coercion(field string, line int64, err error) *Error {
	return &Error{Kind: KindCoercion, Field: field, Line: line, Err: err}
}

// TypeMismatch wraps err as a TypeMismatch for field.
func TypeMismatch(field string, err error) *Error {
	return &Error{Kind: KindTypeMismatch, Field: field, Err: err}
}

// InvalidCondition wraps err for an expression used as a condition that
// evaluated to a non-boolean result.
func InvalidCondition(expr string, line int64) *Error {
	return &Error{Kind: KindInvalidCondition, Expr: expr, Line: line,
		Err: fmt.Errorf("condition did not evaluate to a boolean")}
}

// Load wraps err as a runtime LoadError at the given output line.
func Load(line int64, err error) *Error {
	return &Error{Kind: KindLoad, Line: line, Err: err}
}

// FieldTooLong reports that a string write exceeded a field's inline
// capacity.
func FieldTooLong(field string, want, capacity int) *Error {
	return &Error{Kind: KindFieldTooLong, Field: field,
		Err: fmt.Errorf("value of %d bytes exceeds field capacity of %d bytes", want, capacity)}
}

var cancelled = &Error{Kind: KindCancelled, Err: errors.New("operation cancelled")}

// Cancelled returns the sentinel error reported when a stage observes
// cooperative cancellation.
func Cancelled() *Error { return cancelled }
