// Package errx provides application error kinds shared by the record store,
// the access log cache and the HTTP layer. Kinds are coarse on purpose: the
// HTTP layer maps them to status codes and the resolver uses them to tell a
// missing record apart from unreadable storage.

package errx

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	// NotFound marks a lookup miss. It never escapes the resolver as an error.
	NotFound
	Invalid
	// Unavailable means storage could not be read at all.
	Unavailable
	// Corrupt means storage was read but its content could not be decoded.
	Corrupt
	// IO marks a failure on the write side (access log directories and files).
	IO
	Internal
)

type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{
		Op:   op,
		Kind: kind,
		Err:  err,
	}
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case Unknown:
		return "Unknown"
	case NotFound:
		return "NotFound"
	case Invalid:
		return "Invalid"
	case Unavailable:
		return "Unavailable"
	case Corrupt:
		return "Corrupt"
	case IO:
		return "IO"
	case Internal:
		return "Internal"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}

// IsStorageFailure reports whether err means the record store could not
// deliver a table.
func IsStorageFailure(err error) bool {
	switch KindOf(err) {
	case Unavailable, Corrupt:
		return true
	default:
		return false
	}
}
