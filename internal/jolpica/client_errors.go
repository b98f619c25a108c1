package jolpica

import (
	"fmt"
)

// RateLimitError reports an exhausted rate budget, either the client-side
// trailing-hour budget or an upstream 429. RetryAfter carries the server's
// Retry-After hint in seconds, zero when unknown.
type RateLimitError struct {
	RetryAfter int
	ClientSide bool
}

func (e *RateLimitError) Error() string {
	if e.ClientSide {
		return "schedule API rate budget exhausted"
	}
	if e.RetryAfter > 0 {
		return fmt.Sprintf("schedule API rate limited, retry after %ds", e.RetryAfter)
	}
	return "schedule API rate limited"
}

// Is makes all rate limit errors match each other regardless of hint values.
func (e *RateLimitError) Is(target error) bool {
	_, ok := target.(*RateLimitError)
	return ok
}

// ServerError reports a non-2xx HTTP status other than 429.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("schedule API returned status %d", e.StatusCode)
}

// Is makes server errors match by type so callers can test with a zero value.
func (e *ServerError) Is(target error) bool {
	_, ok := target.(*ServerError)
	return ok
}
