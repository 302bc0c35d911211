package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrUnauthorized matches any *HTTPError with status 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnavailable matches any *NetworkError.
	ErrUnavailable = errors.New("server unavailable")
)

// HTTPError means the backend answered and rejected the request. The caller
// may retry with corrected input.
type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("http %d: %s", e.Status, msg)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && (e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden)
}

// NetworkError means the request did not complete: the backend was not
// reachable, the call timed out, or the response could not be read. It
// says nothing about the validity of the credentials.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("network error: %v", e.Err)
	}
	return fmt.Sprintf("network error: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrUnavailable }

// Timeout reports whether the request ran out of time.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// IsHTTPStatus reports whether err is an *HTTPError with the given status.
func IsHTTPStatus(err error, status int) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.Status == status
}

// Kind names the taxonomy class of err for logs and metrics: "http",
// "network" or "unclassified".
func Kind(err error) string {
	var (
		he *HTTPError
		ne *NetworkError
	)
	switch {
	case errors.As(err, &he):
		return "http"
	case errors.As(err, &ne):
		return "network"
	default:
		return "unclassified"
	}
}
