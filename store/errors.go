package store

import "fmt"

// ErrorCode enumerates the store-level failure kinds callers branch on,
// mirroring consensus.ErrorCode/TxError from the teacher.
type ErrorCode string

const (
	ErrNotFound     ErrorCode = "ERR_NOT_FOUND"
	ErrDuplicate    ErrorCode = "ERR_DUPLICATE"
	ErrShuttingDown ErrorCode = "ERR_SHUTTING_DOWN"
	ErrIO           ErrorCode = "ERR_IO"
	ErrInvalidArgs  ErrorCode = "ERR_INVALID_ARGS"
)

type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func storeErr(code ErrorCode, msg string) error {
	return &Error{Code: code, Msg: msg}
}

// IsNotFound reports whether err is a store.Error with code ErrNotFound.
func IsNotFound(err error) bool {
	se, ok := err.(*Error)
	return ok && se.Code == ErrNotFound
}

// IsDuplicate reports whether err is a store.Error with code ErrDuplicate.
func IsDuplicate(err error) bool {
	se, ok := err.(*Error)
	return ok && se.Code == ErrDuplicate
}

// ErrTreeRowMissing reports a commit_tree row expected by a tree-extension
// pass but absent from the store — an internal consistency failure, never
// expected in a correctly-sequenced caller.
func ErrTreeRowMissing(height uint32, offset uint64) error {
	return storeErr(ErrIO, fmt.Sprintf("commit_tree row missing at height=%d offset=%d", height, offset))
}
