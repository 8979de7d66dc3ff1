// internal/engine/errors.go
package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors. Compare with errors.Is; typed errors below match them.
var (
	ErrServerIsDown    = errors.New("server is down")
	ErrUnauthorized    = errors.New("unauthorized: security token missing")
	ErrAuthentication  = errors.New("authentication failed")
	ErrNoSearchResults = errors.New("nothing found")
	ErrMalformedPage   = errors.New("malformed page")
	ErrInvalidRequest  = errors.New("invalid search request")
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	ErrCodeServerDown     ErrorCode = "SERVER_DOWN"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION"
	ErrCodeNoResults      ErrorCode = "NO_RESULTS"
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

var codeSentinels = map[ErrorCode]error{
	ErrCodeServerDown:     ErrServerIsDown,
	ErrCodeUnauthorized:   ErrUnauthorized,
	ErrCodeAuthentication: ErrAuthentication,
	ErrCodeNoResults:      ErrNoSearchResults,
	ErrCodeInvalidRequest: ErrInvalidRequest,
}

// Error wraps a crawl failure with its code and context
type Error struct {
	Code       ErrorCode
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Underlying)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Is matches errors with the same code and the sentinel for the code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	if s, ok := codeSentinels[e.Code]; ok && s == target {
		return true
	}
	return false
}

// NewError creates a new Error
func NewError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Underlying: err}
}

// ServerDown reports a 5xx answer from the target while authenticating or
// preparing a search.
func ServerDown(url string, status int) *Error {
	return NewError(ErrCodeServerDown, fmt.Sprintf("%s answered %d", url, status), nil)
}

// Unauthorized reports a page without the expected security token.
func Unauthorized(url string) *Error {
	return NewError(ErrCodeUnauthorized, fmt.Sprintf("no token on %s, session is not authenticated", url), nil)
}

// AuthenticationFailed reports a handshake step that did not yield the
// expected cookie or token.
func AuthenticationFailed(step, missing string) *Error {
	return NewError(ErrCodeAuthentication, fmt.Sprintf("%s: %s missing", step, missing), nil)
}

// NoSearchResults reports an expected empty outcome for term.
func NoSearchResults(term string) *Error {
	return NewError(ErrCodeNoResults, fmt.Sprintf("search term %q", term), nil)
}

// InvalidRequest wraps a search request that failed validation.
func InvalidRequest(err error) *Error {
	return NewError(ErrCodeInvalidRequest, "search request rejected", err)
}

// MalformedPageError reports a page whose structure does not match the site
// layout. It signals layout drift and is never silently dropped.
type MalformedPageError struct {
	URL   string
	Field string
	Err   error
}

func (e *MalformedPageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed page %s (%s): %v", e.URL, e.Field, e.Err)
	}
	return fmt.Sprintf("malformed page %s: %s not found", e.URL, e.Field)
}

func (e *MalformedPageError) Unwrap() error { return e.Err }

func (e *MalformedPageError) Is(target error) bool { return target == ErrMalformedPage }

// IsSessionFatal reports errors that end a whole batch of searches.
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrServerIsDown) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrAuthentication)
}
