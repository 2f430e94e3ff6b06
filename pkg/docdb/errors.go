package docdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/docdb-demos/internal/retry"
	"github.com/Sternrassler/docdb-demos/pkg/ratelimit"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassThrottled represents 429 request rate too large.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Sentinel errors matched by *Error through errors.Is.
var (
	// ErrNotFound matches 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrConflict matches 409 responses.
	ErrConflict = errors.New("resource already exists")
)

// Error is a failed request to the document service.
type Error struct {
	Op         string
	StatusCode int
	Class      ErrorClass
	Code       string
	Message    string
	ActivityID string

	// RetryAfter is the server's x-ms-retry-after-ms hint on 429.
	RetryAfter time.Duration

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("docdb %s: %s error (status %d): %v", e.Op, e.Class, e.StatusCode, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("docdb %s: %s error (status %d, %s): %s", e.Op, e.Class, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("docdb %s: %s error (status %d): %s", e.Op, e.Class, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches ErrNotFound and ErrConflict by status code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrConflict:
		return e.StatusCode == http.StatusConflict
	}
	return false
}

// StatusCode returns the HTTP status of err if it wraps an *Error.
func StatusCode(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		return e.StatusCode, true
	}
	return 0, false
}

// classifyStatus categorizes an HTTP status code.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassThrottled
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// errorBody is the JSON error payload returned by the service.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newStatusError(op string, status int, header http.Header, body []byte) *Error {
	e := &Error{
		Op:         op,
		StatusCode: status,
		Class:      classifyStatus(status),
		ActivityID: header.Get(headerActivityID),
		Message:    http.StatusText(status),
	}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Code = eb.Code
		if eb.Message != "" {
			e.Message = eb.Message
		}
	}

	if e.Class == ErrorClassThrottled {
		if d, ok := ratelimit.ParseRetryAfter(header); ok {
			e.RetryAfter = d
		}
	}
	return e
}

// shouldRetry determines if an error class should be retried.
func shouldRetry(class ErrorClass) bool {
	switch class {
	case ErrorClassClient:
		return false
	case ErrorClassServer, ErrorClassThrottled, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

// retryVerdict adapts request errors to the retry policy.
func retryVerdict(err error) retry.Verdict {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Verdict{Class: "cancelled"}
	}
	var e *Error
	if !errors.As(err, &e) {
		return retry.Verdict{Class: "unknown"}
	}
	return retry.Verdict{
		Class: string(e.Class),
		Retry: shouldRetry(e.Class),
		After: e.RetryAfter,
	}
}
