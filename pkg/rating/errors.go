package rating

import (
	"errors"
	"fmt"

	"github.com/tournevent/ratebridge/pkg/transport"
)

// Error codes form a flat, string-coded taxonomy. Transport failures keep
// their HTTP-status-keyed codes (e.g. "HTTP_429") when converted at the
// adapter boundary.
const (
	CodeValidation         = "VALIDATION"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidAddress     = "INVALID_ADDRESS"
	CodeInvalidPackage     = "INVALID_PACKAGE"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeNetworkError       = "NETWORK_ERROR"
	CodeTimeout            = "TIMEOUT"
	CodeConnectionRefused  = "CONNECTION_REFUSED"
	CodeInvalidResponse    = "INVALID_RESPONSE"
	CodeMalformedResponse  = "MALFORMED_RESPONSE"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	CodeCarrierNotFound    = "CARRIER_NOT_FOUND"
	CodeUnknown            = "UNKNOWN"
)

// CarrierError represents a classified failure from a carrier adapter. It is
// the only error shape surfaced past the orchestrator boundary; raw transport
// faults never leak through.
type CarrierError struct {
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Details    map[string]any
	Cause      error
}

// Error implements the error interface.
func (e *CarrierError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CarrierError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for CarrierError, matching on Code.
func (e *CarrierError) Is(target error) bool {
	t, ok := target.(*CarrierError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewCarrierError creates a new CarrierError.
func NewCarrierError(carrier, code, message string) *CarrierError {
	return &CarrierError{
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *CarrierError) WithCause(err error) *CarrierError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *CarrierError) WithStatusCode(code int) *CarrierError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *CarrierError) WithRetryable(retryable bool) *CarrierError {
	e.Retryable = retryable
	return e
}

// WithDetails attaches structured detail to the error.
func (e *CarrierError) WithDetails(details map[string]any) *CarrierError {
	e.Details = details
	return e
}

// maxBodyDetail caps how much of a carrier response body is carried into
// error details. Upstreams can return whole HTML error pages.
const maxBodyDetail = 512

// FromTransport converts a classified transport error into a CarrierError,
// keeping the transport code, HTTP status, and retryability. The response
// body, when present, goes into Details rather than the message.
func FromTransport(carrier string, terr *transport.Error) *CarrierError {
	cerr := &CarrierError{
		Carrier:    carrier,
		Code:       codeForTransport(terr.Code),
		Message:    "carrier request failed",
		StatusCode: terr.StatusCode,
		Retryable:  terr.Retryable(),
		Cause:      terr,
	}
	if len(terr.Body) > 0 {
		body := string(terr.Body)
		if len(body) > maxBodyDetail {
			body = body[:maxBodyDetail]
		}
		cerr.Details = map[string]any{"response_body": body}
	}
	return cerr
}

func codeForTransport(code transport.Code) string {
	switch code {
	case transport.CodeTimeout:
		return CodeTimeout
	case transport.CodeConnectionRefused:
		return CodeConnectionRefused
	case transport.CodeNetworkError:
		return CodeNetworkError
	case transport.CodeUnknown:
		return CodeUnknown
	default:
		// HTTP-status-keyed codes pass through unchanged.
		return string(code)
	}
}

// Sentinel errors for common rating scenarios.
var (
	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var cerr *CarrierError
	if errors.As(err, &cerr) {
		return cerr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}
