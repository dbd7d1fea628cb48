package http

import (
	"fmt"
	"net/http"
)

// AppError is an API failure with the status it is reported under. Err is
// kept for logs and never serialised.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithError attaches the underlying cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func newAppError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

// BadRequestError is a 400, e.g. an inverted from/to range.
func BadRequestError(message string) *AppError {
	return newAppError("ERR_BAD_REQUEST", message, http.StatusBadRequest)
}

// UnprocessableError is a 422 for well-formed requests that cannot be
// analysed, e.g. too little history.
func UnprocessableError(message string) *AppError {
	return newAppError("ERR_UNPROCESSABLE", message, http.StatusUnprocessableEntity)
}

// TooManyRequestsError is a 429 from the per-client limiter.
func TooManyRequestsError(message string) *AppError {
	return newAppError("ERR_RATE_LIMITED", message, http.StatusTooManyRequests)
}

// InternalError is a 500.
func InternalError(message string) *AppError {
	return newAppError("ERR_INTERNAL", message, http.StatusInternalServerError)
}

// BadGatewayError is a 502 for price source or classifier failures.
func BadGatewayError(message string) *AppError {
	return newAppError("ERR_BAD_GATEWAY", message, http.StatusBadGateway)
}
