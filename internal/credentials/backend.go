//go:generate mockgen -source=backend.go -destination=mocks/backend.go -package=mocks Backend

package credentials

import (
	"context"
	"net/http"
)

// Attributes describe how a value should be held by a Backend. Backends that
// have no notion of an attribute ignore it.
type Attributes struct {
	Secure   bool
	SameSite http.SameSite
}

// refreshAttributes mirror the web client's refresh_token cookie flags.
var refreshAttributes = Attributes{Secure: true, SameSite: http.SameSiteStrictMode}

// Backend is a key-value persistence medium for credential fields.
type Backend interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string, attrs Attributes) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error

	// Name returns the name of the backend for logging
	Name() string
}
