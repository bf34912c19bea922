package health

import (
	"errors"
	"strings"
	"time"
)

// ErrNotConfigured marks an optional dependency that is switched off. It is
// reported as unknown rather than counted as a failure.
var ErrNotConfigured = errors.New("not configured")

// IsOverloadError detects errors caused by the dependency shedding load
func IsOverloadError(errMsg string) bool {
	lowerMsg := strings.ToLower(errMsg)
	overloadPatterns := []string{
		"too many connections",
		"max number of clients reached",
		"connection pool exhausted",
		"database is locked",
		"loading redis is loading",
	}

	for _, pattern := range overloadPatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}

	return false
}

// ParseCooldownDuration determines how long to back off after an overload error
func ParseCooldownDuration(errMsg string) time.Duration {
	lowerMsg := strings.ToLower(errMsg)

	// SQLite lock contention clears quickly
	if strings.Contains(lowerMsg, "database is locked") {
		return 5 * time.Second
	}

	return 30 * time.Second
}
