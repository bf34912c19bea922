package middleware

import (
	"log"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// LoginThrottle is a per-IP token bucket for credential endpoints
type LoginThrottle struct {
	perMinute int
	burst     int
	limiters  *cache.Cache
}

// NewLoginThrottle allows perMinute attempts per IP with the given burst.
// Idle buckets are dropped after ten minutes.
func NewLoginThrottle(perMinute, burst int) *LoginThrottle {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = 1
	}
	return &LoginThrottle{
		perMinute: perMinute,
		burst:     burst,
		limiters:  cache.New(10*time.Minute, 5*time.Minute),
	}
}

func (t *LoginThrottle) limiter(ip string) *rate.Limiter {
	if v, ok := t.limiters.Get(ip); ok {
		t.limiters.SetDefault(ip, v)
		return v.(*rate.Limiter)
	}
	l := rate.NewLimiter(rate.Every(time.Minute/time.Duration(t.perMinute)), t.burst)
	// Another request may have stored a limiter first
	if err := t.limiters.Add(ip, l, cache.DefaultExpiration); err != nil {
		if v, ok := t.limiters.Get(ip); ok {
			return v.(*rate.Limiter)
		}
	}
	return l
}

// Handler rejects requests from IPs that exhausted their bucket
func (t *LoginThrottle) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := t.limiter(c.IP()).Reserve()
		if delay := r.Delay(); delay > 0 {
			r.Cancel()
			log.Printf("🚫 [RATE-LIMIT] Login throttled for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many login attempts. Please wait before trying again.",
				"retry_after": int(math.Ceil(delay.Seconds())),
			})
		}
		return c.Next()
	}
}
