// Package fetcherr defines the error types shared by every provider adapter
// and the resolver. Callers branch on Code/Status, never on message text.
package fetcherr

import (
	"errors"
	"fmt"
)

// Machine-readable codes carried by APIError.
const (
	// CodeInvalidInput marks malformed caller input (bad barcode, short query).
	CodeInvalidInput = "invalid_input"
	// CodeAuthFailed marks rejected credentials upstream. Not retryable.
	CodeAuthFailed = "auth_failed"
	// CodeRateLimited marks a provider-reported rate limit (remote 429).
	CodeRateLimited = "rate_limited"
	// CodeRateLimitedLocal marks our own request budget being exhausted,
	// before any request was sent. Cheaper to hit than the remote's limit.
	CodeRateLimitedLocal = "rate_limited_local"
	// CodeFeatureUnavailable marks a provider feature gated behind an
	// access tier that is not enabled (e.g. barcode lookup).
	CodeFeatureUnavailable = "feature_unavailable"
	// CodeUpstream covers any other structured upstream 4xx/5xx.
	CodeUpstream = "upstream_error"
)

// APIError is a structured failure from a provider or from input validation.
type APIError struct {
	Status  int    // HTTP-like status, 0 when not applicable
	Code    string // one of the Code* constants
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api error %s (status %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
}

// NewAPIError builds an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{Status: status, Code: code, Message: message}
}

// NetworkError means the request never got a structured response:
// timeout, connection failure, DNS error.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AsAPIError unwraps err to an *APIError if there is one in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsCode reports whether err carries an APIError with the given code.
func IsCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// IsNetwork reports whether err is (or wraps) a NetworkError.
func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
