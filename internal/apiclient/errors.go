package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthenticationRequired means the session has ended: a refresh was
// denied, or a request was rejected again with a freshly renewed token.
var ErrAuthenticationRequired = errors.New("unauthorized: please log in again")

// ErrMalformedResponse is returned when a successful auth response lacks a
// required field.
var ErrMalformedResponse = errors.New("malformed auth response")

// TransportError reports a network failure (StatusCode 0) or a response
// with a non-2xx status.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int
	// Body is a truncated preview for messages and logs.
	Body string
	Err  error
	// Response is the complete non-2xx response, nil for network failures.
	Response *Response
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: request execution error: %v", e.Method, e.Path, e.Err)
	}
	msg := fmt.Sprintf("%s %s: API request failed: %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is makes a 401 that survived a token refresh match ErrAuthenticationRequired.
func (e *TransportError) Is(target error) bool {
	return target == ErrAuthenticationRequired && e.StatusCode == http.StatusUnauthorized
}

// bodyPreview truncates response bodies kept in errors and logs.
func bodyPreview(body []byte) string {
	preview := string(body)
	if len(preview) > 200 {
		preview = preview[:200] + "..."
	}
	return preview
}
