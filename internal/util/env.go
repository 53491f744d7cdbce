// Package util holds small helpers shared across the assistant's packages.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolEnv reads a boolean switch such as MGA_DEBUG from the environment.
// Accepted spellings are true/1/yes/on and false/0/no/off, case-insensitive;
// an unset or unrecognized value falls back to defaultValue.
func ParseBoolEnv(key string, defaultValue bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if val == "" {
		return defaultValue
	}
	switch val {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		slog.Warn("ParseBoolEnv: unrecognized value, keeping default", "key", key, "value", val, "default", defaultValue)
		return defaultValue
	}
}
