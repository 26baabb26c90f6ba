package executor

import (
	"errors"
	"fmt"

	"github.com/roach88/fuseq/internal/backend"
	"github.com/roach88/fuseq/internal/expr"
	"github.com/roach88/fuseq/internal/fusion"
)

// CompileError reports a plan that cannot be turned into a callable.
//
// These errors are deterministic: compiling the same plan again fails the
// same way, so they are never retried.
type CompileError struct {
	// Code identifies the error category.
	Code CompileErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the expression that could not be compiled, when known.
	Node expr.Expr

	// Err is the underlying error, if any.
	Err error
}

// CompileErrorCode categorizes compile errors.
type CompileErrorCode string

const (
	// ErrCodeUnsupportedExpr indicates an expression kind the backend does
	// not implement.
	ErrCodeUnsupportedExpr CompileErrorCode = "UNSUPPORTED_EXPR"

	// ErrCodeNotSequence indicates a source or SelectMany selector that does
	// not produce a sequence.
	ErrCodeNotSequence CompileErrorCode = "NOT_SEQUENCE"

	// ErrCodeInvalidPlan indicates a plan that failed validation, e.g. a
	// lambda reading a variable nothing binds.
	ErrCodeInvalidPlan CompileErrorCode = "INVALID_PLAN"

	// ErrCodeInternal indicates a failure that correct input cannot cause.
	ErrCodeInternal CompileErrorCode = "INTERNAL"
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, expr.Format(e.Node))
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error { return e.Err }

// IsUnsupported returns true if the error reports an unsupported
// expression. Uses errors.As to handle wrapped errors.
func IsUnsupported(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeUnsupportedExpr
	}
	return false
}

// IsNotSequence returns true if the error reports a non-sequence source or
// selector.
func IsNotSequence(err error) bool {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code == ErrCodeNotSequence
	}
	return false
}

// newCompileError classifies an error from lowering or the backend.
func newCompileError(err error) *CompileError {
	var ue *backend.UnsupportedError
	if errors.As(err, &ue) {
		return &CompileError{Code: ErrCodeUnsupportedExpr, Message: ue.Reason, Node: ue.Node, Err: err}
	}
	var ns *fusion.NotSequenceError
	if errors.As(err, &ns) {
		return &CompileError{Code: ErrCodeNotSequence, Message: ns.Error(), Err: err}
	}
	return &CompileError{Code: ErrCodeInternal, Message: err.Error(), Err: err}
}
