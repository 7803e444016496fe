package mythtv

import (
	"errors"
	"fmt"
)

// Sentinel errors for matching with errors.Is
var (
	// ErrTransport means the host could not be reached or the exchange broke
	// off (refused, timeout, reset, unreadable body).
	ErrTransport = errors.New("mythtv: transport failure")
	// ErrAPI means the host answered but rejected the call (non-2xx status or
	// an Abort/Warning payload).
	ErrAPI = errors.New("mythtv: api failure")
)

// TransportError wraps a network level failure for a single endpoint call
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports ErrTransport as a match so callers need not know the type
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// APIError is an application level failure reported by a reachable host
type APIError struct {
	Endpoint   string
	StatusCode int
	Kind       string // "Abort", "Warning" or "HTTP"
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s %d: %s", e.Endpoint, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Endpoint, e.Kind, e.Message)
}

// Is reports ErrAPI as a match so callers need not know the type
func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// IsAPI reports whether err is an application level failure
func IsAPI(err error) bool {
	return errors.Is(err, ErrAPI)
}
