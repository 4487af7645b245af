// Package core holds the types shared across every IntelliSql component:
// the query Context and Session, the Row/Schema/Frame wire-adjacent types,
// the Query state machine, and the closed error taxonomy of spec.md §7.
package core

import (
	"errors"
	"fmt"

	goerrors "gopkg.in/src-d/go-errors.v1"
)

// Kind identifies one of the nine error kinds spec.md §7 fixes, plus the
// four catalog-specific failure modes of spec.md §4.2. Every error
// IntelliSql returns across a package boundary carries exactly one Kind.
type Kind string

const (
	KindSyntaxError        Kind = "SyntaxError"
	KindValidationError    Kind = "ValidationError"
	KindUnsupportedFeature Kind = "UnsupportedFeature"
	KindSourceUnavailable  Kind = "SourceUnavailable"
	KindConnectTimeout     Kind = "ConnectTimeout"
	KindQueryTimeout       Kind = "QueryTimeout"
	KindTruncated          Kind = "Truncated"
	KindCancelled          Kind = "Cancelled"
	KindInternalError      Kind = "InternalError"

	KindUnknownSchema    Kind = "UnknownSchema"
	KindUnknownTable     Kind = "UnknownTable"
	KindAmbiguousColumn  Kind = "AmbiguousColumn"
	KindTypeNotSupported Kind = "TypeNotSupported"
)

// retryableKinds are the only kinds the data-source manager (C6) retries at
// the connector level; every other kind surfaces immediately (spec.md §7).
var retryableKinds = map[Kind]bool{
	KindConnectTimeout: true,
}

// Retryable reports whether errors of this kind are eligible for C6's
// bounded connector-level retry.
func (k Kind) Retryable() bool { return retryableKinds[k] }

// sqlStateByKind maps each error kind to the two-character SQL-state class
// spec.md §6/§7 requires on the wire. Class 08 and code HYT00 are
// retryable; 22/23/42 are not (spec.md §6).
var sqlStateByKind = map[Kind]string{
	KindSyntaxError:        "42",
	KindValidationError:    "42",
	KindUnsupportedFeature: "0A",
	KindSourceUnavailable:  "08",
	KindConnectTimeout:     "08",
	KindQueryTimeout:       "57",
	KindTruncated:          "01",
	KindCancelled:          "57",
	KindInternalError:      "58",
	KindUnknownSchema:      "42",
	KindUnknownTable:       "42",
	KindAmbiguousColumn:    "42",
	KindTypeNotSupported:   "42",
}

// SQLState returns the standard two-character SQL-state class for k.
func (k Kind) SQLState() string {
	if s, ok := sqlStateByKind[k]; ok {
		return s
	}
	return "58"
}

// kindRegistry associates each Kind with a go-errors.v1 kind, mirroring the
// pattern the teacher repo uses in auth/auth.go (errors.NewKind("...: %s"))
// -- the same library, now carrying IntelliSql's closed error taxonomy
// instead of auth-only sentinels.
var kindRegistry = map[Kind]*goerrors.Kind{
	KindSyntaxError:        goerrors.NewKind("%s"),
	KindValidationError:    goerrors.NewKind("%s"),
	KindUnsupportedFeature: goerrors.NewKind("%s"),
	KindSourceUnavailable:  goerrors.NewKind("%s"),
	KindConnectTimeout:     goerrors.NewKind("%s"),
	KindQueryTimeout:       goerrors.NewKind("%s"),
	KindTruncated:          goerrors.NewKind("%s"),
	KindCancelled:          goerrors.NewKind("%s"),
	KindInternalError:      goerrors.NewKind("%s"),
	KindUnknownSchema:      goerrors.NewKind("%s"),
	KindUnknownTable:       goerrors.NewKind("%s"),
	KindAmbiguousColumn:    goerrors.NewKind("%s"),
	KindTypeNotSupported:   goerrors.NewKind("%s"),
}

// Error is the single result type every IntelliSql operator and layer
// returns across a module boundary (spec.md §9: "a single result type with
// the closed error taxonomy of §7"), carrying the fields a caller needs to
// render spec.md §7's user-visible error contract: kind, SQL-state, an
// English message, the query id it occurred under, and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	QueryID string
	cause   error
	wrapped error // the go-errors.v1 instance; Is and Unwrap do not consult it
}

// NewErrorf builds an Error of the given kind with a formatted message.
func NewErrorf(kind Kind, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	k, ok := kindRegistry[kind]
	if !ok {
		k = kindRegistry[KindInternalError]
	}
	return &Error{Kind: kind, Message: msg, wrapped: k.New(msg)}
}

// Wrapf builds an Error of the given kind wrapping an underlying cause.
func Wrapf(kind Kind, cause error, format string, args ...interface{}) *Error {
	e := NewErrorf(kind, format, args...)
	e.cause = cause
	return e
}

// WithQueryID attaches the id of the query this error occurred under, as
// spec.md §3's invariant requires ("a query id is attached to ... every
// error produced in its lifetime").
func (e *Error) WithQueryID(id string) *Error {
	e2 := *e
	e2.QueryID = id
	return &e2
}

func (e *Error) Error() string {
	if e.QueryID != "" {
		return fmt.Sprintf("[%s] %s (query %s)", e.Kind, e.Message, e.QueryID)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause, if any, so errors.Is/As compose
// across IntelliSql's boundary and any wrapped connector/driver error.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same Kind, letting callers
// write `errors.Is(err, core.KindSourceUnavailable)`-style checks via
// errors.Is(err, core.NewErrorf(core.KindSourceUnavailable, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// AsKind extracts the Kind of err if it is (or wraps) an *Error, returning
// KindInternalError otherwise.
func AsKind(err error) Kind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindInternalError
}
