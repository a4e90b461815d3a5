package backend

import (
	stderrors "errors"
	"fmt"
)

// NetworkError is a transport level failure: the request never produced an
// HTTP response, or the response body could not be read or decoded.
type NetworkError struct {
	Op  string
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

// IsNetworkFailure reports whether err is a NetworkError or a StatusError.
// Both abandon the request; neither is retried.
func IsNetworkFailure(err error) bool {
	if err == nil {
		return false
	}
	var ne *NetworkError
	var se *StatusError
	return stderrors.As(err, &ne) || stderrors.As(err, &se)
}
