package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RequestSpec describes one API call. It is immutable once built: accessors
// return copies.
type RequestSpec struct {
	path    string
	method  string
	body    any
	query   url.Values
	headers http.Header
}

// RequestOption configures a RequestSpec.
type RequestOption func(*RequestSpec)

// NewRequest builds a GET request for path, relative to the API prefix.
func NewRequest(path string, opts ...RequestOption) RequestSpec {
	r := RequestSpec{
		path:    path,
		method:  http.MethodGet,
		query:   url.Values{},
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithMethod sets the HTTP method.
func WithMethod(method string) RequestOption {
	return func(r *RequestSpec) {
		r.method = strings.ToUpper(method)
	}
}

// WithBody sets a value to be sent as JSON. It is ignored for GET.
func WithBody(body any) RequestOption {
	return func(r *RequestSpec) {
		r.body = body
	}
}

// WithQuery adds a scalar query parameter.
func WithQuery(key string, value any) RequestOption {
	return func(r *RequestSpec) {
		r.query.Add(key, fmt.Sprint(value))
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(r *RequestSpec) {
		r.headers.Set(key, value)
	}
}

func (r RequestSpec) Path() string   { return r.path }
func (r RequestSpec) Method() string { return r.method }
func (r RequestSpec) Body() any      { return r.body }

// Query returns a copy of the query parameters.
func (r RequestSpec) Query() url.Values {
	q := make(url.Values, len(r.query))
	for k, v := range r.query {
		q[k] = append([]string(nil), v...)
	}
	return q
}

// Header returns a copy of the caller-supplied headers.
func (r RequestSpec) Header() http.Header {
	return r.headers.Clone()
}

// sendsBody reports whether a JSON body goes on the wire.
func (r RequestSpec) sendsBody() bool {
	return r.body != nil && r.method != http.MethodGet
}

// target joins base, prefix and path and appends the percent-encoded query.
func (r RequestSpec) target(base, prefix string) string {
	u := strings.TrimRight(base, "/") + joinPath(prefix, r.path)
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

func joinPath(prefix, path string) string {
	prefix = strings.Trim(prefix, "/")
	path = strings.TrimLeft(path, "/")
	switch {
	case prefix == "":
		return "/" + path
	case path == "":
		return "/" + prefix
	default:
		return "/" + prefix + "/" + path
	}
}
