package env

import "os"

// First returns the first non-empty variable among keys, or fallback.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	return fallback
}
