package health

import (
	"context"
	"time"
)

// HealthStatus represents the health state of a dependency
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusCooldown  HealthStatus = "cooldown"
	StatusUnknown   HealthStatus = "unknown"
)

// DependencyHealth tracks the health of one backing dependency
type DependencyHealth struct {
	Name          string       `json:"name"`
	Critical      bool         `json:"critical"`
	Status        HealthStatus `json:"status"`
	LatencyMs     int          `json:"latency_ms"`
	LastChecked   time.Time    `json:"last_checked,omitempty"`
	LastSuccessAt time.Time    `json:"last_success_at,omitempty"`
	FailureCount  int          `json:"failure_count"`
	LastError     string       `json:"last_error,omitempty"`
	CooldownUntil time.Time    `json:"cooldown_until,omitempty"`
}

// HealthCheckStrategy probes a single dependency
type HealthCheckStrategy interface {
	// Name identifies the dependency, e.g. "database".
	Name() string
	// Check performs a lightweight probe and returns any error encountered.
	Check(ctx context.Context) error
}
