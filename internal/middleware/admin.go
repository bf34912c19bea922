package middleware

import (
	"pathfinder/internal/config"
	"pathfinder/internal/models"

	"github.com/gofiber/fiber/v2"
)

// AdminMiddleware checks if the authenticated user is an admin.
// Users with role "admin" (the first registered user) and the IDs listed in
// SUPERADMIN_USER_IDS are allowed.
func AdminMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("user_id").(string)
		if !ok || userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		isAdmin := false

		if role, ok := c.Locals("user_role").(string); ok && role == models.RoleAdmin {
			isAdmin = true
		}

		if !isAdmin {
			isAdmin = IsSuperadmin(userID, cfg)
		}

		if !isAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Admin access required",
			})
		}

		c.Locals("is_admin", true)
		return c.Next()
	}
}

// IsSuperadmin reports whether userID is in the configured superadmin list
func IsSuperadmin(userID string, cfg *config.Config) bool {
	for _, adminID := range cfg.SuperadminUserIDs {
		if adminID == userID {
			return true
		}
	}
	return false
}
