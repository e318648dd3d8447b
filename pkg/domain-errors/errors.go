// Package domainerrors carries caller-visible error codes across layers.
//
// Services return *Error values; transports translate the code into a status.
// Stores return sentinel errors (pkg/platform/sentinel) which services wrap.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
	CodeUnavailable        Code = "unavailable"
	CodeInvariantViolation Code = "invariant_violation"

	// Share ledger rejections.
	CodeRecipientNotVerified       Code = "recipient_not_verified"
	CodePropertyInactive           Code = "property_inactive"
	CodeInvalidShareAmount         Code = "invalid_share_amount"
	CodeSupplyExceeded             Code = "supply_exceeded"
	CodeConcentrationLimitExceeded Code = "concentration_limit_exceeded"
	CodeNotOwner                   Code = "not_owner"
	CodePaused                     Code = "paused"
)

// Error is a coded error. Message is safe to return to callers except for
// CodeInternal, whose message is logged but never rendered.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
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

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput, CodeInvalidShareAmount:
		return http.StatusBadRequest
	// Missing credentials are rejected by middleware with 401 before a
	// service runs; a coded unauthorized error means the caller lacks a role.
	case CodeUnauthorized, CodeForbidden, CodeNotOwner:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodePropertyInactive, CodeSupplyExceeded,
		CodeConcentrationLimitExceeded, CodePaused, CodeInvariantViolation:
		return http.StatusConflict
	case CodeRecipientNotVerified:
		return http.StatusUnprocessableEntity
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
