package models

import "fmt"

// Capture failure taxonomy. A single capture attempt that does not succeed
// is classified into exactly one of these codes.
const (
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeTimeout  = "TIMEOUT"
	ErrCodeDNS      = "DNS_ERROR"
	ErrCodeBlocked  = "BLOCKED"
	ErrCodeUnknown  = "UNKNOWN"
)

// Error codes used in API responses.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRunNotFound  = "RUN_NOT_FOUND"
	ErrCodeNotReady     = "NOT_READY"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// CaptureError is the internal error type carrying a capture failure code.
// It implements the error interface and supports error wrapping via Unwrap.
type CaptureError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *CaptureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// NewCaptureError creates a new CaptureError.
func NewCaptureError(code, message string, err error) *CaptureError {
	return &CaptureError{Code: code, Message: message, Err: err}
}
