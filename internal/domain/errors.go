package domain

import (
	"errors"
	"fmt"
)

// Error codes for the failure taxonomy. Every backend error is mapped to one
// of these before it crosses the workflow executor boundary; callers above
// the executor never see raw transport errors.
const (
	ErrCodeTransport      = "TRANSPORT_ERROR"
	ErrCodeProtocol       = "PROTOCOL_ERROR"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeUnknownService = "UNKNOWN_SERVICE"
)

// BackendError is a classified failure from one backend call.
type BackendError struct {
	Code    string `json:"code"`
	Service string `json:"service"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Code, e.Service, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Service, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewTransportError classifies connection, DNS and timeout failures.
func NewTransportError(service string, err error) *BackendError {
	return &BackendError{
		Code:    ErrCodeTransport,
		Service: service,
		Message: "request failed",
		Err:     err,
	}
}

// NewProtocolError classifies non-2xx responses.
func NewProtocolError(service string, status int) *BackendError {
	return &BackendError{
		Code:    ErrCodeProtocol,
		Service: service,
		Message: fmt.Sprintf("unexpected status %d", status),
	}
}

// NewValidationError classifies malformed or out-of-range response bodies.
func NewValidationError(service, message string) *BackendError {
	return &BackendError{
		Code:    ErrCodeValidation,
		Service: service,
		Message: message,
	}
}

// UnknownServiceError is a registry miss. Unlike the runtime taxonomy above
// it indicates a deployment error and is allowed to abort startup.
type UnknownServiceError struct {
	Name string
}

// Error implements the error interface.
func (e *UnknownServiceError) Error() string {
	return fmt.Sprintf("%s: no endpoint registered for service %q", ErrCodeUnknownService, e.Name)
}

// ErrorCode extracts the taxonomy code from err, or ErrCodeTransport when
// the error carries no classification.
func ErrorCode(err error) string {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Code
	}
	var use *UnknownServiceError
	if errors.As(err, &use) {
		return ErrCodeUnknownService
	}
	return ErrCodeTransport
}
