package share

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure classes surfaced by the share services.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindNotFound
	KindStoreIO
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStoreIO:
		return "store_io"
	default:
		return "unknown"
	}
}

// Numeric error codes. 1xxx validation, 2xxx not found, 4xxx store I/O.
const (
	CodeInvalidArgument = 1004
	CodeMissingCode     = 1009
	CodeInvalidCode     = 1010
	CodeNoFiles         = 1011
	CodeInvalidFilename = 1012
	CodeFileTooLarge    = 1013
	CodeBatchTooLarge   = 1014
	CodeCodeInUse       = 1015
	CodeUploadCancelled = 1016
	CodeSweepInProgress = 1017
	CodeFileNotFound    = 2003
	CodeCodeNotFound    = 2005
	CodeStoreFailure    = 4002
)

// Error carries a Kind and a numeric code alongside the cause.
type Error struct {
	Kind Kind
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf classifies err. Errors that did not originate here count as store I/O.
func KindOf(err error) Kind {
	var shareErr *Error
	if errors.As(err, &shareErr) {
		return shareErr.Kind
	}
	return KindStoreIO
}

// CodeOf returns the numeric code of err, or CodeStoreFailure.
func CodeOf(err error) int {
	var shareErr *Error
	if errors.As(err, &shareErr) && shareErr.Code > 0 {
		return shareErr.Code
	}
	return CodeStoreFailure
}

// IsNotFound reports whether err is a KindNotFound error.
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsOversize reports whether err rejected an upload for exceeding a size cap.
func IsOversize(err error) bool {
	code := CodeOf(err)
	return KindOf(err) == KindValidation && (code == CodeFileTooLarge || code == CodeBatchTooLarge)
}

func validationError(code int, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Err: fmt.Errorf(format, args...)}
}

func notFoundError(code int, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Code: code, Err: fmt.Errorf(format, args...)}
}

func storeIOError(err error) *Error {
	var shareErr *Error
	if errors.As(err, &shareErr) {
		return shareErr
	}
	return &Error{Kind: KindStoreIO, Code: CodeStoreFailure, Err: err}
}
