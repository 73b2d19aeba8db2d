// Package gqlerr defines the error taxonomy shared by schema construction,
// argument validation and field resolution.
package gqlerr

import (
	"errors"
	"fmt"
	"strings"

	language "github.com/foyez/graphql/internal/language"
)

// Violation is a single problem found while assembling a schema.
type Violation struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// Violationf returns a violation without a source position.
func Violationf(format string, args ...any) *Violation {
	return &Violation{Message: fmt.Sprintf(format, args...)}
}

// ViolationAt returns a violation located at pos. pos may be nil.
func ViolationAt(pos *language.Position, format string, args ...any) *Violation {
	v := Violationf(format, args...)
	if pos != nil {
		if pos.Src != nil {
			v.File = pos.Src.Name
		}
		v.Line = pos.Line
		v.Column = pos.Column
	}
	return v
}

// SchemaError is fatal at startup: duplicate registrations and dangling
// type or directive references.
type SchemaError []*Violation

func (e SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("schema violations found:\n")
	for _, v := range e {
		b.WriteString("- ")
		b.WriteString(v.Message)
		if v.File != "" {
			fmt.Fprintf(&b, " %s:%d:%d", v.File, v.Line, v.Column)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// NewSchemaError returns a SchemaError holding one violation.
func NewSchemaError(format string, args ...any) SchemaError {
	return SchemaError{Violationf(format, args...)}
}

// IsSchemaError reports whether err is or wraps a SchemaError.
func IsSchemaError(err error) bool {
	var se SchemaError
	return errors.As(err, &se)
}

type ArgumentKind string

const (
	MissingRequired ArgumentKind = "missing-required"
	WrongType       ArgumentKind = "wrong-type"
	UnknownArgument ArgumentKind = "unknown-argument"
)

// ArgumentError reports arguments that do not match a field's declared
// argument shape. It is never retried.
type ArgumentError struct {
	Kind     ArgumentKind
	Argument string
	Message  string
}

func (e *ArgumentError) Error() string { return e.Message }

// Extensions returns the structured error entry fields.
func (e *ArgumentError) Extensions() map[string]any {
	return map[string]any{
		"code":     "BAD_USER_INPUT",
		"kind":     string(e.Kind),
		"argument": e.Argument,
	}
}

// NewArgumentError returns an ArgumentError for the named argument.
func NewArgumentError(kind ArgumentKind, argument, format string, args ...any) *ArgumentError {
	return &ArgumentError{Kind: kind, Argument: argument, Message: fmt.Sprintf(format, args...)}
}

type ResolverKind string

const (
	NotFound     ResolverKind = "not-found"
	Conflict     ResolverKind = "conflict"
	Unauthorized ResolverKind = "unauthorized"
	Internal     ResolverKind = "internal"
)

var codes = map[ResolverKind]string{
	NotFound:     "NOT_FOUND",
	Conflict:     "CONFLICT",
	Unauthorized: "UNAUTHORIZED",
	Internal:     "INTERNAL_SERVER_ERROR",
}

// ResolverError is the failure of a single field resolution.
type ResolverError struct {
	Kind    ResolverKind
	Message string
	// Details are merged into the error extensions, e.g. "invalidArgs".
	Details map[string]any
	Err     error
}

func (e *ResolverError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *ResolverError) Unwrap() error { return e.Err }

// Extensions returns the structured error entry fields.
func (e *ResolverError) Extensions() map[string]any {
	ext := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		ext[k] = v
	}
	ext["code"] = codes[e.Kind]
	ext["kind"] = string(e.Kind)
	return ext
}

// WithDetail returns e with an extra extension entry.
func (e *ResolverError) WithDetail(key string, value any) *ResolverError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newResolverError(kind ResolverKind, format string, args []any) *ResolverError {
	return &ResolverError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *ResolverError {
	return newResolverError(NotFound, format, args)
}

func Conflictf(format string, args ...any) *ResolverError {
	return newResolverError(Conflict, format, args)
}

func Unauthorizedf(format string, args ...any) *ResolverError {
	return newResolverError(Unauthorized, format, args)
}

func Internalf(format string, args ...any) *ResolverError {
	return newResolverError(Internal, format, args)
}

// AsResolverError classifies err. Errors that are not ResolverErrors become
// internal failures carrying the original message.
func AsResolverError(err error) *ResolverError {
	if err == nil {
		return nil
	}
	var re *ResolverError
	if errors.As(err, &re) {
		return re
	}
	return &ResolverError{Kind: Internal, Message: err.Error(), Err: err}
}

// KindOf returns the resolver error kind of err, or "" if err does not wrap
// a ResolverError.
func KindOf(err error) ResolverKind {
	var re *ResolverError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}
