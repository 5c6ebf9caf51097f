package store

import (
	"context"
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindTransient
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is the typed failure surfaced by every store backend and repository.
type Error struct {
	Kind  Kind
	Op    string
	Table string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Table != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Table, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *Error) Transient() bool { return e.Kind == KindTransient }

func E(kind Kind, op, table string, err error) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Err: err}
}

func Errorf(kind Kind, op, table, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Table: table, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain. Context
// deadline errors that never reached a backend are treated as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsTransient(err error) bool    { return KindOf(err) == KindTransient }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
