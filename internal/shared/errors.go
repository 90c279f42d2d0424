package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("missing required configuration")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential errors
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrTokenExpired       = fmt.Errorf("access token expired")

	// Catalog errors
	ErrTransport    = fmt.Errorf("catalog unreachable")
	ErrUnauthorized = fmt.Errorf("catalog authorization failed")
	ErrRateLimited  = fmt.Errorf("catalog rate limit exceeded")
	ErrUpstream     = fmt.Errorf("catalog request failed")

	// Search outcomes
	ErrTrackNotFound = fmt.Errorf("track not found")
	ErrEmptyQuery    = fmt.Errorf("empty query")
	ErrOwnerNotFound = fmt.Errorf("owner not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	ErrServiceUnavailable = fmt.Errorf("service unavailable")
)
