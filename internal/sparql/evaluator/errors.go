package evaluator

import (
	"errors"
	"fmt"

	"github.com/rdfkit/trigraph/internal/store"
)

// EvaluationErrorKind discriminates the query-evaluation failure modes
// named in spec.md §7.
type EvaluationErrorKind int

const (
	// EvalType is a type error within an expression (e.g. adding a
	// string to an IRI). Inside a FILTER or BIND this does not by itself
	// terminate evaluation — SPARQL's three-valued logic treats it as an
	// unbound/false result at that one position — but any context that
	// does not silence errors (an aggregate's input, an ORDER BY key
	// comparison that can't fall back) surfaces it as this kind.
	EvalType EvaluationErrorKind = iota
	// EvalService is a SERVICE federation call failure; suppressed when
	// the clause carries SILENT.
	EvalService
	// EvalCancelled reports a cooperative cancellation or deadline hit
	// partway through evaluation.
	EvalCancelled
	// EvalStorage wraps a *store.StorageError surfaced while pulling
	// quads from the index.
	EvalStorage
)

func (k EvaluationErrorKind) String() string {
	switch k {
	case EvalType:
		return "type"
	case EvalService:
		return "service"
	case EvalCancelled:
		return "cancelled"
	case EvalStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// EvaluationError is the error type every evaluator operator returns
// (spec.md §7): a pull pipeline is a sequence of Result<Solution,
// EvaluationError> and the first error terminates it.
type EvaluationError struct {
	Kind EvaluationErrorKind
	Err  error
}

func (e *EvaluationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sparql evaluation error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("sparql evaluation error (%s)", e.Kind)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

func NewTypeError(format string, args ...any) *EvaluationError {
	return &EvaluationError{Kind: EvalType, Err: fmt.Errorf(format, args...)}
}

func NewServiceError(err error) *EvaluationError {
	return &EvaluationError{Kind: EvalService, Err: err}
}

var ErrCancelled = errors.New("query evaluation cancelled")

func NewCancelledError() *EvaluationError {
	return &EvaluationError{Kind: EvalCancelled, Err: ErrCancelled}
}

func NewStorageError(err error) *EvaluationError {
	return &EvaluationError{Kind: EvalStorage, Err: err}
}

// asEvaluationError wraps any non-EvaluationError (typically a
// *store.StorageError bubbling up from an index scan) as EvalStorage.
func asEvaluationError(err error) *EvaluationError {
	if err == nil {
		return nil
	}
	var ee *EvaluationError
	if errors.As(err, &ee) {
		return ee
	}
	var se *store.StorageError
	if errors.As(err, &se) {
		return NewStorageError(se)
	}
	return NewStorageError(err)
}
