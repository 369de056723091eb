package models

import "fmt"

var (
	// ErrMissingHashKey means the record has no hash key and it can not be generated.
	ErrMissingHashKey = fmt.Errorf("Hash key is not found in the record")
	// ErrInvalidRecord means the record can not be parsed or converted to Item.
	ErrInvalidRecord = fmt.Errorf("Invalid log record")
	// ErrBatchWrite means BatchWriteItem failed. Items of the batch are requeued.
	ErrBatchWrite = fmt.Errorf("Failed to write items")
	// ErrProvisionTable means listing or creating the table failed.
	ErrProvisionTable = fmt.Errorf("Failed to provision table")
	// ErrTableNotFound means the table disappeared or is not available yet.
	ErrTableNotFound = fmt.Errorf("Table not found")
	// ErrTableAlreadyExists is returned by CreateTable if the table is already being created.
	ErrTableAlreadyExists = fmt.Errorf("Table already exists")
	// ErrClosed is returned for operations after Close.
	ErrClosed = fmt.Errorf("Stream is already closed")
)

type kindError struct {
	kind  error
	cause error
}

// WithKind binds a sentinel error to the cause. errors.Is(err, kind) returns
// true and errors.Cause / errors.Unwrap still reach the original cause.
func WithKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}

func (x *kindError) Error() string       { return x.kind.Error() + ": " + x.cause.Error() }
func (x *kindError) Is(target error) bool { return target == x.kind }
func (x *kindError) Unwrap() error        { return x.cause }
func (x *kindError) Cause() error         { return x.cause }
