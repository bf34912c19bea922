package handlers

import (
	"errors"

	"pathfinder/internal/logging"
	"pathfinder/internal/services"
	"pathfinder/internal/tags"

	"github.com/gofiber/fiber/v2"
)

// serviceError maps a service error onto an HTTP response. Unexpected errors
// are logged and reported as "Failed to <action>".
func serviceError(c *fiber.Ctx, err error, action string) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	case errors.Is(err, services.ErrAlreadyExists):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, services.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Invalid email or password",
		})
	case errors.Is(err, services.ErrPaymentsDisabled):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Payments are not available",
		})
	case errors.Is(err, tags.ErrUnresolvedTag):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Tags changed while saving, please retry",
		})
	}

	logging.WithRequest(c).Error("request failed", "action", action, "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to " + action,
	})
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
