package services

import (
	"fmt"
	"time"

	"github.com/desertthunder/vkpl/internal/shared"
)

// Catalog API error codes the client reacts to.
const (
	CodeAuthFailed       = 5
	CodeTooManyRequests  = 6
	CodeFloodControl     = 9
	CodeGroupAuthFailed  = 27
	CodeAppAuthFailed    = 28
	CodeRateLimitReached = 29
)

// Fixed backoff delays before a retried call.
const (
	RateLimitBackoff    = time.Second
	FloodControlBackoff = 10 * time.Second
)

// ErrorKind classifies a failed catalog call.
type ErrorKind int

const (
	KindTransport    ErrorKind = iota // network failure, timeout or undecodable payload
	KindUnauthorized                  // the token was rejected
	KindRateLimited                   // too many requests per second, retried after a short pause
	KindFloodControl                  // flood control, retried after a long pause
	KindUpstream                      // any other error object returned by the catalog
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindFloodControl:
		return "flood_control"
	case KindUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// CatalogError describes a failed catalog call.
//
// It unwraps to the matching sentinel in [shared] so callers can branch with errors.Is.
type CatalogError struct {
	Kind    ErrorKind
	Method  string
	Code    int    // catalog error code, 0 for transport failures
	Message string // catalog error message; never shown to end users
	Err     error  // underlying transport error, if any
}

func (e *CatalogError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Kind, e.Err)
	case e.Code != 0:
		return fmt.Sprintf("%s %s: code %d: %s", e.Method, e.Kind, e.Code, e.Message)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Kind, e.Message)
	}
}

// Unwrap returns the taxonomy sentinel and the underlying cause.
func (e *CatalogError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *CatalogError) sentinel() error {
	switch e.Kind {
	case KindTransport:
		return shared.ErrTransport
	case KindUnauthorized:
		return shared.ErrUnauthorized
	case KindRateLimited, KindFloodControl:
		return shared.ErrRateLimited
	default:
		return shared.ErrUpstream
	}
}

// Retryable reports whether the call may be repeated after [CatalogError.Backoff].
func (e *CatalogError) Retryable() bool {
	return e.Kind == KindRateLimited || e.Kind == KindFloodControl
}

// Backoff returns the pause before retrying, zero for errors that are not retried.
func (e *CatalogError) Backoff() time.Duration {
	switch e.Kind {
	case KindRateLimited:
		return RateLimitBackoff
	case KindFloodControl:
		return FloodControlBackoff
	default:
		return 0
	}
}

// classify maps a catalog error code to an [ErrorKind].
func classify(code int) ErrorKind {
	switch code {
	case CodeAuthFailed, CodeGroupAuthFailed, CodeAppAuthFailed:
		return KindUnauthorized
	case CodeTooManyRequests:
		return KindRateLimited
	case CodeFloodControl, CodeRateLimitReached:
		return KindFloodControl
	default:
		return KindUpstream
	}
}
