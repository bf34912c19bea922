package health

import (
	"context"
	"fmt"
)

// Pinger is anything that can be pinged, such as *sql.DB or the Redis service
type Pinger interface {
	PingContext(ctx context.Context) error
}

// --- Database Health Check Strategy ---

// DatabaseHealthCheck pings the relational database
type DatabaseHealthCheck struct {
	DB Pinger
}

func (d *DatabaseHealthCheck) Name() string { return "database" }

func (d *DatabaseHealthCheck) Check(ctx context.Context) error {
	if d.DB == nil {
		return fmt.Errorf("database not configured")
	}
	return d.DB.PingContext(ctx)
}

// --- Redis Health Check Strategy ---

// RedisPinger is the subset of the Redis service used for health checks
type RedisPinger interface {
	Available() bool
	Ping(ctx context.Context) error
}

// RedisHealthCheck pings Redis when it is configured
type RedisHealthCheck struct {
	Redis RedisPinger
}

func (r *RedisHealthCheck) Name() string { return "redis" }

func (r *RedisHealthCheck) Check(ctx context.Context) error {
	if r.Redis == nil || !r.Redis.Available() {
		return ErrNotConfigured
	}
	return r.Redis.Ping(ctx)
}

// --- Func Health Check Strategy ---

// FuncHealthCheck adapts a plain function into a strategy
type FuncHealthCheck struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (f *FuncHealthCheck) Name() string { return f.CheckName }

func (f *FuncHealthCheck) Check(ctx context.Context) error { return f.Fn(ctx) }
