package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
)

// Error codes carried in HTTP error bodies.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUpstreamQuota       = "UPSTREAM_QUOTA"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInvalidModelOutput  = "INVALID_MODEL_OUTPUT"
	CodeConfig              = "CONFIG_ERROR"
	CodeInternal            = "INTERNAL_ERROR"
	CodeRedis               = "REDIS_ERROR"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Code    string
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Code:    codeForStatus(status),
		Message: message,
	}
}

// WithCode overrides the error code derived from the status.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// BadRequest reports invalid caller input.
func BadRequest(err error, message string) *AppError {
	return New(err, http.StatusBadRequest, message)
}

// TooManyRequests reports upstream quota exhaustion so callers can back off.
func TooManyRequests(err error, message string) *AppError {
	return New(err, http.StatusTooManyRequests, message)
}

// Internal reports a failure the caller cannot fix.
func Internal(err error, message string) *AppError {
	if message == "" {
		message = SystemErrorMessage
	}
	return New(err, http.StatusInternalServerError, message)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var ae *AppError
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeInvalidInput
	case http.StatusTooManyRequests:
		return CodeUpstreamQuota
	case http.StatusBadGateway:
		return CodeRedis
	default:
		return CodeInternal
	}
}

// Is reports whether the target matches the underlying error or the AppError itself.
func (e *AppError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to AppError or the wrapped error in a chain.
func (e *AppError) As(target any) bool {
	if t, ok := target.(**AppError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}
