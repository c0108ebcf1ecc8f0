package memory

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures so callers can decide whether to recover.
type Kind string

const (
	// KindInvalidArgument: bad enum value, empty required field, schema mismatch.
	KindInvalidArgument Kind = "InvalidArgument"
	// KindNotFound: reference to a session (or observation) that does not exist.
	KindNotFound Kind = "NotFound"
	// KindStorage: the database is unavailable or a transaction aborted.
	KindStorage Kind = "StorageFailure"
	// KindProtocol: unknown tool name or malformed request envelope.
	KindProtocol Kind = "ProtocolFault"
)

// Error is the error type returned by every exported operation in this
// package. Inspect it with errors.As or KindOf.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Msg)
	if e.Err != nil {
		if e.Msg != "" {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ProtocolFault builds a KindProtocol error.
func ProtocolFault(op, format string, args ...any) *Error {
	return &Error{Kind: KindProtocol, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// storageErr wraps a driver error. Errors that already carry a Kind pass
// through untouched so validation failures raised inside a transaction keep
// their classification.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	msg := "storage failure"
	if isBusy(err) {
		msg = "database busy"
	}
	return &Error{Kind: KindStorage, Op: op, Msg: msg, Err: err}
}

// KindOf reports the Kind of err. Errors produced outside this package are
// treated as storage failures.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsInvalidArgument reports whether err is a KindInvalidArgument error.
func IsInvalidArgument(err error) bool { return KindOf(err) == KindInvalidArgument }

// isBusy detects SQLITE_BUSY and "database is locked" failures.
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
