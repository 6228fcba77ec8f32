package types

import (
	"errors"
	"fmt"
)

// Error classes. Typed errors below match their class with errors.Is.
var (
	ErrStorage         = errors.New("storage error")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrRemote          = errors.New("remote error")
	ErrUnexpected      = errors.New("unexpected error")
)

// Store and lookup errors.
var (
	ErrStoreDetached    = errors.New("store is detached")
	ErrAlreadyAttached  = errors.New("store is already attached")
	ErrTableNotFound    = errors.New("table does not exist")
	ErrNotFound         = errors.New("record not found")
	ErrMissingFilter    = fmt.Errorf("%w: filter is required", ErrInvalidArgument)
	ErrSchemaMismatch   = fmt.Errorf("%w: record fields do not match table schema", ErrInvalidArgument)
	ErrUnsupportedValue = fmt.Errorf("%w: unsupported field value", ErrInvalidArgument)
)

// Known remote error codes.
const (
	CodeInvalidRecordType = "invalid_record_type"
	CodeNoEditableFields  = "no_editable_fields"
)

// StorageError reports a failed statement against the local store.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is reports ErrStorage as a match so callers can test the error class.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// RemoteError reports a failed call to the remote system. Code is the
// lower-cased remote error code when the remote supplied one.
type RemoteError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("remote %s: %s", e.Code, msg)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("remote status %d: %s", e.StatusCode, msg)
	}
	return "remote: " + msg
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is reports ErrRemote as a match so callers can test the error class.
func (e *RemoteError) Is(target error) bool { return target == ErrRemote }

// RemoteCode returns the code of the first RemoteError in err's chain, or ""
// when there is none.
func RemoteCode(err error) string {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
