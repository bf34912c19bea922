package middleware

import (
	"log"
	"time"

	"pathfinder/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Authenticated write limits (per user ID)
	AuthenticatedMax        int
	AuthenticatedExpiration time.Duration

	// Login attempts per IP
	LoginPerMinute int
	LoginBurst     int
}

// NewRateLimitConfig builds limits from the application config
func NewRateLimitConfig(cfg *config.Config) *RateLimitConfig {
	rl := &RateLimitConfig{
		GlobalAPIMax:            cfg.RateLimitGlobalPerMinute,
		GlobalAPIExpiration:     1 * time.Minute,
		AuthenticatedMax:        60,
		AuthenticatedExpiration: 1 * time.Minute,
		LoginPerMinute:          cfg.RateLimitLoginPerMinute,
		LoginBurst:              5,
	}

	// Development mode: more lenient limits
	if cfg.Environment == "development" {
		rl.GlobalAPIMax = 1000
		rl.AuthenticatedMax = 300
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return rl
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(rl *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rl.GlobalAPIMax,
		Expiration: rl.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(rl.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// AuthenticatedRateLimiter limits writes per user, falling back to the IP
func AuthenticatedRateLimiter(rl *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        rl.AuthenticatedMax,
		Expiration: rl.AuthenticatedExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
				return "auth:" + userID
			}
			return "auth-ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			userID, _ := c.Locals("user_id").(string)
			log.Printf("⚠️  [RATE-LIMIT] Auth endpoint limit reached for user: %s on %s", userID, c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please wait before trying again.",
				"retry_after": int(rl.AuthenticatedExpiration.Seconds()),
			})
		},
	})
}
