//go:build !js || !wasm

package env

import "os"

// Get retrieves an environment variable. Empty values count as unset.
func Get(key string) (string, bool) {
	value := os.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}
