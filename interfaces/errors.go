package interfaces

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable code carried by error responses.
// Codes are part of the wire protocol and must never be renamed.
type ErrorCode string

const (
	// Decode failures (connection keeps serving).
	CodeMalformedFrame ErrorCode = "malformed_frame"
	CodeMissingField   ErrorCode = "missing_field"
	CodeLengthMismatch ErrorCode = "length_mismatch"
	CodeFrameTooLarge  ErrorCode = "frame_too_large"

	// Validation failures (request-local).
	CodeUnsupportedOperation ErrorCode = "unsupported_operation"
	CodeUnsupportedScheme    ErrorCode = "unsupported_scheme"
	CodeKeyNotFound          ErrorCode = "key_not_found"
	CodeInvalidRequest       ErrorCode = "invalid_request"

	// Crypto failures (request-local).
	CodeInvalidEncoding  ErrorCode = "invalid_encoding"
	CodeSigningFailure   ErrorCode = "signing_failure"
	CodeInvalidSignature ErrorCode = "invalid_signature"

	// Resource limits (reject new work only).
	CodeTooManyConnections ErrorCode = "too_many_connections"
	CodeShuttingDown       ErrorCode = "shutting_down"

	CodeInternal ErrorCode = "internal"
)

// CodedError attaches a stable wire code to an error so any failure on the
// request path can be mapped to its in-band response.
type CodedError struct {
	Code ErrorCode
	Err  error
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// Is matches any CodedError carrying the same code, so sentinel comparisons
// via errors.Is work across independently constructed instances.
func (e *CodedError) Is(target error) bool {
	t, ok := target.(*CodedError)
	return ok && t.Code == e.Code
}

// Errf builds a CodedError with a formatted message.
func Errf(code ErrorCode, format string, args ...any) *CodedError {
	return &CodedError{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the wire code from err, or CodeInternal if err carries
// none. A nil err has no code.
func CodeOf(err error) ErrorCode {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// Shared sentinels for the key store contract.
var (
	ErrKeyNotFound = &CodedError{Code: CodeKeyNotFound, Err: errors.New("key not found")}
	ErrStoreClosed = &CodedError{Code: CodeShuttingDown, Err: errors.New("key store closed")}
)
