// Package storeerrors defines the typed error taxonomy shared across the
// local storage engine, grounded on the sentinel+wrap pattern of
// beads/internal/storage/sqlite/errors.go but generalized to the engine's
// own failure categories.
package storeerrors

import (
	"database/sql"
	"errors"
	"fmt"
)

// Kind classifies a storage error into one of the engine's failure categories.
type Kind int

const (
	// InvalidArgument indicates a null/empty required input at constructor
	// or method entry.
	InvalidArgument Kind = iota
	// StorageOpen indicates the database could not be opened: missing
	// driver, or a PRAGMA failed on connect.
	StorageOpen
	// StorageOperation indicates a query or transaction failed.
	StorageOperation
	// MigrationFailure indicates a patch could not progress; any backup
	// taken for the attempt was not consumed.
	MigrationFailure
	// Conflict indicates a unique-name collision surfaced to a caller that
	// did not opt into resolution.
	Conflict
	// NotFound indicates an explicit lookup that must succeed did not.
	NotFound
	// Runtime indicates an object became invalid mid-operation (a handler
	// or patch was dropped while in use).
	Runtime
	// Canceled indicates a backup or restore was canceled via the caller's
	// cancellation token.
	Canceled
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case StorageOpen:
		return "StorageOpen"
	case StorageOperation:
		return "StorageOperation"
	case MigrationFailure:
		return "MigrationFailure"
	case Conflict:
		return "Conflict"
	case NotFound:
		return "NotFound"
	case Runtime:
		return "Runtime"
	case Canceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type carried through the engine. base is a
// short, stable, translatable identifier; details holds the native error
// text or offending path. Messages are stable across releases so tests can
// assert on Code() directly.
type Error struct {
	Kind    Kind
	base    string
	details string
	Err     error
}

func (e *Error) Error() string {
	if e.details == "" {
		return e.base
	}
	return fmt.Sprintf("%s: %s", e.base, e.details)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns the stable, translatable base identifier for this error.
func (e *Error) Code() string { return e.base }

// Details returns the native error text or offending path, if any.
func (e *Error) Details() string { return e.details }

// Is reports whether target is an *Error with the same Kind, so callers can
// do errors.Is(err, storeerrors.New(storeerrors.NotFound, "", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, base, details string) *Error {
	return &Error{Kind: kind, base: base, details: details}
}

// Wrap builds an *Error around an underlying cause, using err's text as the
// details suffix.
func Wrap(kind Kind, base string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, base: base, details: err.Error(), Err: err}
}

// WrapDB wraps a database/sql error with operation context, converting
// sql.ErrNoRows to NotFound and everything else to StorageOperation.
func WrapDB(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Wrap(NotFound, op, err)
	}
	return Wrap(StorageOperation, op, err)
}

// OfKind reports whether err is a *Error of the given kind, anywhere in its
// chain.
func OfKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func IsNotFound(err error) bool         { return OfKind(err, NotFound) }
func IsConflict(err error) bool         { return OfKind(err, Conflict) }
func IsInvalidArgument(err error) bool  { return OfKind(err, InvalidArgument) }
func IsStorageOpen(err error) bool      { return OfKind(err, StorageOpen) }
func IsStorageOperation(err error) bool { return OfKind(err, StorageOperation) }
func IsMigrationFailure(err error) bool { return OfKind(err, MigrationFailure) }
func IsRuntime(err error) bool          { return OfKind(err, Runtime) }
func IsCanceled(err error) bool         { return OfKind(err, Canceled) }
