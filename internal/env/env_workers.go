//go:build js && wasm

package env

import "github.com/syumai/workers/cloudflare"

// Get retrieves a variable from the Cloudflare Workers environment bindings.
func Get(key string) (string, bool) {
	value := cloudflare.Getenv(key)
	if value == "" {
		return "", false
	}
	return value, true
}
