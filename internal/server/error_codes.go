package server

import "codedrop/internal/share"

const (
	// Validation (1xxx)
	ErrCodeInvalidArgument = 1000
	ErrCodeInvalidJSON     = 1001
	ErrCodeRequestTooLarge = 1002
	ErrCodeInvalidID       = share.CodeInvalidArgument
	ErrCodeMissingRequired = share.CodeMissingCode
	ErrCodeInvalidCode     = share.CodeInvalidCode
	ErrCodeNoFiles         = share.CodeNoFiles

	// Domain state (2xxx)
	ErrCodeFileNotFound = share.CodeFileNotFound
	ErrCodeCodeNotFound = share.CodeCodeNotFound
	ErrCodeConflict     = 2102

	// Limits (3xxx)
	ErrCodeResourceExhausted = 3003

	// Internal/system (4xxx)
	ErrCodeInternal     = 4001
	ErrCodeStoreFailure = share.CodeStoreFailure
)

func defaultErrorCodeByStatus(status int) int {
	switch status {
	case 400:
		return ErrCodeInvalidArgument
	case 404:
		return ErrCodeFileNotFound
	case 409:
		return ErrCodeConflict
	case 413:
		return ErrCodeRequestTooLarge
	case 429:
		return ErrCodeResourceExhausted
	case 500:
		return ErrCodeInternal
	default:
		return 0
	}
}
