// Package errors provides error types and handling for the navigation engine.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Type categorizes navigation errors for handling decisions.
type Type int

const (
	// Unknown is an uncategorized error.
	Unknown Type = iota
	// InvalidRouteKey represents a malformed location hash.
	InvalidRouteKey
	// RouteNotFound means neither the requested key nor the 404 fallback exists.
	RouteNotFound
	// FragmentLoadFailed means a named fragment's fetch failed or returned a non-OK status.
	FragmentLoadFailed
	// ScriptLoadFailed means an external script failed to load.
	ScriptLoadFailed
	// FragmentCycleDetected means the fragment recursion guard tripped.
	FragmentCycleDetected
	// Network represents transport-level failures.
	Network
	// Parse represents markup parsing failures.
	Parse
)

// String returns the string representation of Type.
func (t Type) String() string {
	switch t {
	case InvalidRouteKey:
		return "invalid_route_key"
	case RouteNotFound:
		return "route_not_found"
	case FragmentLoadFailed:
		return "fragment_load_failed"
	case ScriptLoadFailed:
		return "script_load_failed"
	case FragmentCycleDetected:
		return "fragment_cycle_detected"
	case Network:
		return "network"
	case Parse:
		return "parse"
	default:
		return "unknown"
	}
}

// Recoverable returns whether errors of this type degrade gracefully:
// rendering continues and the failure is only logged.
func (t Type) Recoverable() bool {
	switch t {
	case FragmentLoadFailed, ScriptLoadFailed, FragmentCycleDetected:
		return true
	default:
		return false
	}
}

// NavError represents a categorized navigation error.
type NavError struct {
	Type       Type
	Key        string // route key or fragment name, when applicable
	URL        string
	Op         string
	Message    string
	Cause      error
	StatusCode int
}

// Error implements the error interface.
func (e *NavError) Error() string {
	var b strings.Builder
	b.WriteString(e.Type.String())
	b.WriteString(" error during ")
	b.WriteString(e.Op)
	if e.Key != "" {
		fmt.Fprintf(&b, " for %q", e.Key)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " on %s", e.URL)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, " (caused by: %v)", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *NavError) Unwrap() error {
	return e.Cause
}

// Is matches NavErrors by type.
func (e *NavError) Is(target error) bool {
	t, ok := target.(*NavError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// New creates a NavError.
func New(errType Type, key, op, message string, cause error) *NavError {
	return &NavError{
		Type:    errType,
		Key:     key,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidRouteKey creates an error for a malformed hash value.
func NewInvalidRouteKey(hash string) *NavError {
	return New(InvalidRouteKey, hash, "normalize", "hash value is not a navigable path", nil)
}

// NewRouteNotFound creates an error for a key missing from the route table.
func NewRouteNotFound(key string) *NavError {
	return New(RouteNotFound, key, "resolve", "no route and no 404 fallback registered", nil)
}

// NewFragmentLoadFailed creates an error for a fragment fetch failure.
func NewFragmentLoadFailed(name, url string, cause error) *NavError {
	err := New(FragmentLoadFailed, name, "fragment_fetch", "fragment could not be loaded", cause)
	err.URL = url
	return err
}

// NewScriptLoadFailed creates an error for an external script load failure.
func NewScriptLoadFailed(url string, cause error) *NavError {
	err := New(ScriptLoadFailed, "", "script_load", "external script failed to load", cause)
	err.URL = url
	return err
}

// NewFragmentCycle creates an error for a fragment that references itself,
// directly or transitively. The branch lists the slot names from the page
// down to the offending slot.
func NewFragmentCycle(name string, branch []string) *NavError {
	msg := fmt.Sprintf("recursion guard tripped at %s", strings.Join(append(branch, name), " -> "))
	return New(FragmentCycleDetected, name, "fragment_resolve", msg, nil)
}

// NewNetworkError creates a transport-level error.
func NewNetworkError(url, op string, cause error) *NavError {
	err := New(Network, "", op, "network failure", cause)
	err.URL = url
	return err
}

// NewParseError creates a markup parsing error.
func NewParseError(url, op string, cause error) *NavError {
	err := New(Parse, "", op, "parsing failed", cause)
	err.URL = url
	return err
}

// FromHTTPStatus creates an error from a non-2xx HTTP status, or nil.
func FromHTTPStatus(statusCode int, url string) *NavError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	err := New(Network, "", "fetch", fmt.Sprintf("server returned %d", statusCode), nil)
	err.URL = url
	err.StatusCode = statusCode
	return err
}

// TypeOf extracts the error type from an error.
func TypeOf(err error) Type {
	var navErr *NavError
	if errors.As(err, &navErr) {
		return navErr.Type
	}
	return Unknown
}

// IsRecoverable reports whether rendering continues past this error.
func IsRecoverable(err error) bool {
	var navErr *NavError
	if errors.As(err, &navErr) {
		return navErr.Type.Recoverable()
	}
	return false
}

// StatusCode extracts the HTTP status code from an error, if any.
func StatusCode(err error) int {
	var navErr *NavError
	if errors.As(err, &navErr) {
		return navErr.StatusCode
	}
	return 0
}
