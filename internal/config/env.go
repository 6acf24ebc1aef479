package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Str reads an environment variable, falling back to a default when unset
// or blank.
func Str(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// Bool reads an environment variable and returns a boolean value.
// Only "true" or "false" (case-insensitive) are recognised; any other
// value results in the provided default.
func Bool(key string, defaultValue bool) bool {
	val := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch val {
	case "":
		return defaultValue
	case "true":
		return true
	case "false":
		return false
	default:
		return defaultValue
	}
}

// Int reads an integer environment variable. Values that fail to parse or
// fall below min are replaced by the default.
func Int(key string, defaultValue, min int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < min {
		return defaultValue
	}
	return n
}

// Ms reads a millisecond-valued environment variable as a time.Duration.
// Negative or unparsable values fall back to the default.
func Ms(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n < 0 {
		return defaultValue
	}
	return time.Duration(n) * time.Millisecond
}
