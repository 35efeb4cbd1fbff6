// Package domainerrors carries coded, transport-agnostic errors out of the
// service layer. Handlers translate codes to HTTP status via ToHTTPStatus.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies a class of domain failure. Codes are part of the public API
// surface and are rendered as the "error" field of JSON error bodies.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"

	// Verification taxonomy.
	CodeInvalidProof           Code = "invalid_proof"
	CodeAgeIneligible          Code = "age_ineligible"
	CodeDuplicateIdentity      Code = "duplicate_identity"
	CodeSessionNotFound        Code = "session_not_found"
	CodeSessionExpired         Code = "session_expired"
	CodeSessionAlreadyConsumed Code = "session_already_consumed"
	CodeFreshnessExceeded      Code = "freshness_exceeded"
	CodeUpstreamUnavailable    Code = "upstream_unavailable"
	CodeAccountMerged          Code = "account_merged"
)

// Error is a domain error with a stable code and a client-safe message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds a domain error without an underlying cause.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and client-safe message to an underlying error.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether any domain error in err's chain carries code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is an alias of HasCode kept for handler readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost domain code, or CodeInternal if err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Retryable reports whether the caller may retry the same request unchanged.
func Retryable(err error) bool {
	return HasCode(err, CodeUpstreamUnavailable) || HasCode(err, CodeTimeout)
}

// ToHTTPStatus maps a domain code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeAccountMerged:
		return http.StatusForbidden
	case CodeNotFound, CodeSessionNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeDuplicateIdentity, CodeSessionAlreadyConsumed:
		return http.StatusConflict
	case CodeSessionExpired:
		return http.StatusGone
	case CodeInvalidProof, CodeAgeIneligible, CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeFreshnessExceeded:
		return http.StatusPreconditionRequired
	case CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
