package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned after a 401. The session has already been cleared and
// the login navigation triggered by the time the caller sees it.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a server-reported failure: a non-2xx status or a {success:false} body.
type APIError struct {
	Status  int
	Method  string
	Path    string
	Message string
	// Anonymous is set when the request carried no token.
	Anonymous bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
}

// Is makes errors.Is(err, ErrUnauthorized) hold for 401 responses to
// authenticated requests.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized && !e.Anonymous
}

// NetworkError means no usable response arrived (dial failure, timeout, cancellation,
// unreadable body).
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Message returns the text to show the user for err. Server messages are passed
// through verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrUnauthorized) {
		return "Your session has expired. Please log in again."
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return http.StatusText(apiErr.Status)
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return "Could not reach the server. Check your connection and try again."
	}
	return err.Error()
}
