package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithRequest returns a logger carrying the request's method, path and, when a
// session is attached, its user id.
func WithRequest(c *fiber.Ctx) *slog.Logger {
	logger := slog.With(
		"method", c.Method(),
		"path", c.Path(),
		"ip", c.IP(),
	)
	if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
		logger = WithUser(logger, userID)
	}
	return logger
}

// WithUser scopes a logger to a user.
func WithUser(logger *slog.Logger, userID string) *slog.Logger {
	return logger.With("user_id", userID)
}

// WithJob returns a logger for a background job run.
func WithJob(name string) *slog.Logger {
	return slog.With("job", name)
}
