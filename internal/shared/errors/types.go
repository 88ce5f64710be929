package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// ErrorType represents the classification of errors for retry logic
type ErrorType int

const (
	// ErrorTypeTransient - retry-able errors
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent - non-retry-able errors
	ErrorTypePermanent
	// ErrorTypeDegraded - the dependency is shedding load (circuit open)
	ErrorTypeDegraded
)

// TransientError represents an error that can be retried
type TransientError struct {
	Err        error
	StatusCode int // HTTP status code if applicable
	RetryAfter int // Seconds, from a Retry-After header
	Message    string
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err        error
	StatusCode int
	Message    string
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DegradedError is returned when a dependency is deliberately short-circuited.
type DegradedError struct {
	Err     error
	Message string
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("degraded error: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// IsTransient checks if an error is retry-able
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}
	if IsDegraded(err) {
		return false
	}

	if isNetworkError(err) || isSyscallError(err) {
		return true
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return IsTransientHTTPStatus(statusCode)
	}

	return false
}

// IsPermanent checks if an error is non-retry-able
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return false
	}

	if statusCode := extractHTTPStatusCode(err); statusCode > 0 {
		return IsPermanentHTTPStatus(statusCode)
	}

	lowerErr := strings.ToLower(err.Error())
	for _, pattern := range []string{"not found", "permission denied", "invalid", "unauthorized", "forbidden", "bad request"} {
		if strings.Contains(lowerErr, pattern) {
			return true
		}
	}
	return false
}

// IsDegraded checks if an error came from a short-circuited dependency
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// GetErrorType classifies an error
func GetErrorType(err error) ErrorType {
	switch {
	case err == nil:
		return ErrorTypePermanent
	case IsDegraded(err):
		return ErrorTypeDegraded
	case IsTransient(err):
		return ErrorTypeTransient
	default:
		// Unknown errors are not retried.
		return ErrorTypePermanent
	}
}

// StatusCode returns the HTTP status attached to a classified error, or 0.
func StatusCode(err error) int {
	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return permanentErr.StatusCode
	}
	return 0
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection refused", "connection reset", "broken pipe", "i/o timeout", "unexpected eof"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an upstream status is worth retrying.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsPermanentHTTPStatus reports whether an upstream status should fail immediately.
func IsPermanentHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusBadRequest,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusMethodNotAllowed,
		http.StatusConflict,
		http.StatusGone,
		http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// Matches "status 429", "HTTP 503", "API error 500:" style messages.
var statusPattern = regexp.MustCompile(`(?i)(?:status|http|error)[ :]+([1-5][0-9]{2})\b`)

func extractHTTPStatusCode(err error) int {
	match := statusPattern.FindStringSubmatch(err.Error())
	if len(match) < 2 {
		return 0
	}
	code, convErr := strconv.Atoi(match[1])
	if convErr != nil {
		return 0
	}
	return code
}

// NewTransientError creates a new transient error with a caller-facing message
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{Err: err, Message: message}
}

// NewPermanentError creates a new permanent error with a caller-facing message
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{Err: err, Message: message}
}

// NewDegradedError creates a new degraded error
func NewDegradedError(err error, message string) *DegradedError {
	return &DegradedError{Err: err, Message: message}
}
