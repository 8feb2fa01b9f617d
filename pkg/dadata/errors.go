package dadata

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// APIError is a non-200 response from Dadata.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("dadata: returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("dadata: returned status %d: %s", e.StatusCode, e.Body)
}

// Transient reports whether the status indicates a temporary server-side
// problem.
func (e *APIError) Transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Fatal reports whether every further call would fail the same way:
// bad credentials, unpaid account or an exhausted daily quota.
func (e *APIError) Fatal() bool {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusForbidden:
		return true
	default:
		return false
	}
}

// RequestError is a request that got no response at all.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return "dadata: request: " + e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// Transient reports whether the failure was a timeout, reset or DNS error.
func (e *RequestError) Transient() bool { return IsTransient(e.Err) }

// IsTransient returns true if the error chain holds a transient APIError or
// a transient network failure (timeouts, resets, DNS).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsFatal returns true if the error chain holds an APIError that would
// repeat for every call.
func IsFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Fatal()
}
