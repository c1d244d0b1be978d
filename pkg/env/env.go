package env

import "os"

// Get reads an environment variable, falling back when it is unset or empty.
// Used for the handful of knobs read before config is loaded.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
