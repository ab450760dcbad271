package env

import (
	"fmt"
	"time"
)

// GetOrDefault retrieves an environment variable with a default value
func GetOrDefault(key, defaultValue string) string {
	if value, ok := Get(key); ok {
		return value
	}
	return defaultValue
}

// GetDuration parses key as a time.Duration. When the variable is unset the
// default is returned with a nil error; when it is set but invalid the default
// is returned together with the parse error so callers can log it.
func GetDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := Get(key)
	if !ok {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid duration %q for %s: %w", raw, key, err)
	}
	return d, nil
}
