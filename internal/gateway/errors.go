package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// NetworkError is returned when a request could not be completed or the
// API answered with a non-2xx status. Status is zero for transport failures.
type NetworkError struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetching %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("fetching %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Temporary reports whether retrying the request may succeed.
func (e *NetworkError) Temporary() bool {
	if e.Err != nil {
		return true
	}
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests || e.Status == http.StatusRequestTimeout
}

// ClientError is returned when the API answered with a body that does not
// decode into the expected shape.
type ClientError struct {
	Endpoint string
	Err      error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Endpoint, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a NetworkError worth retrying.
func IsTemporary(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Temporary()
}
