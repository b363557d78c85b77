package env

import "os"

// Get reads an environment variable, falling back when it is unset or
// empty. Empty counts as unset because container runtimes routinely
// export blank values for optional settings.
func Get(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}
