package connectors

import (
	"errors"
	"fmt"
)

// Error classes for broker calls. Auth failures and venue rejections are
// terminal: retrying them cannot succeed and risks duplicate orders.
// Network faults and rate limits are transient and safe to retry.
var (
	ErrAuth        = errors.New("broker authentication failed")
	ErrRejected    = errors.New("order rejected by venue")
	ErrRateLimited = errors.New("broker rate limit exceeded")
	ErrNetwork     = errors.New("broker network failure")
)

// APIError carries the HTTP status and raw body of a failed broker call
// and unwraps to one of the error classes above.
type APIError struct {
	StatusCode int
	Body       string
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("broker API error: HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// classifyStatus maps a non-2xx HTTP status to an error class.
func classifyStatus(status int, body string) error {
	apiErr := &APIError{StatusCode: status, Body: body}
	switch {
	case status == 401 || status == 403:
		apiErr.kind = ErrAuth
	case status == 429:
		apiErr.kind = ErrRateLimited
	case status >= 500 || status == 408:
		apiErr.kind = ErrNetwork
	default:
		apiErr.kind = ErrRejected
	}
	return apiErr
}

// IsRetryable reports whether the error class is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrRateLimited)
}
