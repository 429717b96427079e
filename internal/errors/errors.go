// Package errors provides error categories and handling for the mirroring engine.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Parse represents URL or markup parsing failures.
	Parse
	// Render represents browser rendering failures.
	Render
	// Fetch represents network failures while fetching an asset.
	Fetch
	// HTTPStatus represents a non-ok response.
	HTTPStatus
	// Timeout represents an operation that exceeded its deadline.
	Timeout
	// Filesystem represents output tree failures. These abort the run.
	Filesystem
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Parse:
		return "parse"
	case Render:
		return "render"
	case Fetch:
		return "fetch"
	case HTTPStatus:
		return "http_status"
	case Timeout:
		return "timeout"
	case Filesystem:
		return "filesystem"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsFatal reports whether errors of this type must stop the crawl.
func (t ErrorType) IsFatal() bool {
	return t == Filesystem
}

// CrawlError represents a categorized crawl error.
type CrawlError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *CrawlError) Unwrap() error {
	return e.Cause
}

// Is matches another CrawlError of the same type.
func (e *CrawlError) Is(target error) bool {
	t, ok := target.(*CrawlError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewCrawlError creates a new CrawlError.
func NewCrawlError(errType ErrorType, url, operation, message string, cause error) *CrawlError {
	return &CrawlError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Parse, url, operation, "parsing failed", cause)
}

// NewRenderError creates a render error.
func NewRenderError(url string, cause error) *CrawlError {
	return NewCrawlError(Render, url, "render", "page rendering failed", cause)
}

// NewFetchError creates an asset fetch error.
func NewFetchError(url string, cause error) *CrawlError {
	return NewCrawlError(Fetch, url, "fetch", "asset fetch failed", cause)
}

// NewHTTPStatusError creates an error for a non-ok response.
func NewHTTPStatusError(url, operation string, statusCode int) *CrawlError {
	err := NewCrawlError(HTTPStatus, url, operation, fmt.Sprintf("server returned %d", statusCode), nil)
	err.StatusCode = statusCode
	return err
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *CrawlError {
	return NewCrawlError(Timeout, url, operation, "operation timed out", cause)
}

// NewFilesystemError creates a fatal output tree error.
func NewFilesystemError(path, operation string, cause error) *CrawlError {
	return NewCrawlError(Filesystem, path, operation, "output write failed", cause)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *CrawlError {
	return NewCrawlError(Cancelled, url, operation, "operation cancelled", nil)
}

// Categorize determines the error type from a generic error raised while
// performing operation on url.
func Categorize(err error, url, operation string) *CrawlError {
	if err == nil {
		return nil
	}

	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr
	}

	switch {
	case errors.Is(err, context.Canceled):
		return NewCancelledError(url, operation)
	case isTimeout(err):
		return NewTimeoutError(url, operation, err)
	case isFilesystemError(err):
		return NewFilesystemError(url, operation, err)
	case operation == "render":
		return NewRenderError(url, err)
	case operation == "fetch" || isNetworkError(err):
		return NewFetchError(url, err)
	}

	return NewCrawlError(Unknown, url, operation, err.Error(), err)
}

// CategorizeHTTPStatus creates an error from an HTTP status code, or nil for
// a 2xx status.
func CategorizeHTTPStatus(statusCode int, url, operation string) *CrawlError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return NewHTTPStatusError(url, operation, statusCode)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH)
}

func isFilesystemError(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr)
}

// IsFatal reports whether err must abort the crawl.
func IsFatal(err error) bool {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type.IsFatal()
	}
	return false
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.Type
	}
	return Unknown
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.StatusCode
	}
	return 0
}
