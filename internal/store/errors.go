package store

import "errors"

// StorageError is the taxonomy from spec.md §7: Io, Corruption, Version,
// Conflict. Callers type-switch or errors.Is against the sentinels below.
type StorageError struct {
	Kind StorageErrorKind
	Err  error
}

type StorageErrorKind int

const (
	StorageErrorIo StorageErrorKind = iota
	StorageErrorCorruption
	StorageErrorVersion
	StorageErrorConflict
)

func (e *StorageError) Error() string {
	switch e.Kind {
	case StorageErrorCorruption:
		return "storage: corruption: " + e.Err.Error()
	case StorageErrorVersion:
		return "storage: version mismatch: " + e.Err.Error()
	case StorageErrorConflict:
		return "storage: writer conflict: " + e.Err.Error()
	default:
		return "storage: io: " + e.Err.Error()
	}
}

func (e *StorageError) Unwrap() error { return e.Err }

func NewIoError(err error) error          { return &StorageError{Kind: StorageErrorIo, Err: err} }
func NewCorruptionError(err error) error  { return &StorageError{Kind: StorageErrorCorruption, Err: err} }
func NewVersionError(err error) error     { return &StorageError{Kind: StorageErrorVersion, Err: err} }
func NewConflictError(err error) error    { return &StorageError{Kind: StorageErrorConflict, Err: err} }

// ErrNotFound signals a missing key within a Get; it is not itself a
// StorageError since a miss is an ordinary, expected outcome for callers
// probing pattern prefixes.
var ErrNotFound = errors.New("key not found")

// ErrTransactionRO is returned by Set/Delete on a read-only transaction.
var ErrTransactionRO = errors.New("transaction is read-only")

// ErrWriterBusy is returned by TryBegin when a writer transaction is
// already outstanding (spec.md §5's try-acquire variant).
var ErrWriterBusy = errors.New("a read-write transaction is already in progress")

func IsCorruption(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Kind == StorageErrorCorruption
}
