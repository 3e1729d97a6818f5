// Package errs defines the small error-kind taxonomy shared across
// plinking-duck's components: configuration mistakes caught at bind time,
// I/O failures, and features that are recognized but not implemented.
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error the way the rest of the module inspects it:
// by category, not by concrete type.
type Kind int

const (
	// Other is the zero value; errors constructed outside this package
	// (or via plain fmt.Errorf) are reported as Other by Classify.
	Other Kind = iota
	// InvalidInput covers malformed parameters, schema mismatches, and
	// anything else detected at bind time before I/O state exists.
	InvalidInput
	// IO covers file open/read failures, decoder-reported corruption,
	// and aligned-allocation failures.
	IO
	// NotImplemented covers recognized-but-unsupported feature requests
	// (dosage mode, phased mode).
	NotImplemented
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case IO:
		return "IO"
	case NotImplemented:
		return "NotImplemented"
	default:
		return "Other"
	}
}

// Error is a kind-tagged, op-labeled wrapper around a causing error.
type Error struct {
	Kind  Kind
	Op    string
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// E constructs a kind-tagged error for op, wrapping cause with pkg/errors
// so a stack trace is retained for IO-class failures. cause may be nil, in
// which case the error carries op alone.
func E(kind Kind, op string, cause error) error {
	if cause == nil {
		return &Error{Kind: kind, Op: op}
	}
	return &Error{Kind: kind, Op: op, cause: pkgerrors.WithStack(cause)}
}

// Errorf builds an InvalidInput error with a formatted message, the most
// common case at bind time.
func Errorf(format string, args ...interface{}) error {
	return &Error{Kind: InvalidInput, Op: fmt.Sprintf(format, args...)}
}

// IOErrorf builds an IO-class error with a formatted message.
func IOErrorf(format string, args ...interface{}) error {
	return &Error{Kind: IO, Op: fmt.Sprintf(format, args...)}
}

// NotImplementedf builds a NotImplemented-class error with a formatted message.
func NotImplementedf(format string, args ...interface{}) error {
	return &Error{Kind: NotImplemented, Op: fmt.Sprintf(format, args...)}
}

// Classify returns the Kind of err if it (or something it wraps) is an
// *Error, else Other.
func Classify(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Other
}
