package transport

import (
	"fmt"
	"net/http"
)

// Code classifies a transport failure. HTTP failures are keyed by status.
type Code string

const (
	CodeConnectionRefused Code = "CONNECTION_REFUSED"
	CodeTimeout           Code = "TIMEOUT"
	CodeNetworkError      Code = "NETWORK_ERROR"
	CodeHTTP400           Code = "HTTP_400"
	CodeHTTP401           Code = "HTTP_401"
	CodeHTTP403           Code = "HTTP_403"
	CodeHTTP404           Code = "HTTP_404"
	CodeHTTP429           Code = "HTTP_429"
	CodeHTTP500           Code = "HTTP_500"
	CodeHTTP502           Code = "HTTP_502"
	CodeHTTP503           Code = "HTTP_503"
	CodeHTTP4xx           Code = "HTTP_4XX"
	CodeHTTP5xx           Code = "HTTP_5XX"
	CodeUnknown           Code = "UNKNOWN"
)

// Error is the only failure shape surfaced by the transport client. The
// original error, HTTP status, and response body are attached when present.
type Error struct {
	Code       Code
	StatusCode int
	Body       []byte
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.StatusCode > 0 && len(e.Body) > 0:
		return fmt.Sprintf("transport error (%s): status %d: %s", e.Code, e.StatusCode, e.Body)
	case e.StatusCode > 0:
		return fmt.Sprintf("transport error (%s): status %d", e.Code, e.StatusCode)
	case e.Cause != nil:
		return fmt.Sprintf("transport error (%s): %v", e.Code, e.Cause)
	}
	return fmt.Sprintf("transport error (%s)", e.Code)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure is worth retrying: timeouts, generic
// network errors, 429 and 5xx. Other 4xx failures fail immediately.
func (e *Error) Retryable() bool {
	switch e.Code {
	case CodeTimeout, CodeNetworkError, CodeHTTP429, CodeHTTP500, CodeHTTP502, CodeHTTP503, CodeHTTP5xx:
		return true
	}
	return false
}

func codeForStatus(status int) Code {
	switch status {
	case http.StatusBadRequest:
		return CodeHTTP400
	case http.StatusUnauthorized:
		return CodeHTTP401
	case http.StatusForbidden:
		return CodeHTTP403
	case http.StatusNotFound:
		return CodeHTTP404
	case http.StatusTooManyRequests:
		return CodeHTTP429
	case http.StatusInternalServerError:
		return CodeHTTP500
	case http.StatusBadGateway:
		return CodeHTTP502
	case http.StatusServiceUnavailable:
		return CodeHTTP503
	}
	switch {
	case status >= 500:
		return CodeHTTP5xx
	case status >= 400:
		return CodeHTTP4xx
	}
	return CodeUnknown
}
