package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedPayload means the body was not JSON or lacked a "results" array.
	ErrUnexpectedPayload = errors.New("unexpected listing payload")
	ErrStrategyNotFound  = errors.New("fetch strategy not found")
	ErrNoStrategy        = errors.New("no fetch strategy configured")
)

// HTTPStatusError is returned when the upstream answers with anything but 200.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}
