package handlers

import (
	"time"

	"pathfinder/internal/health"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	health *health.Service
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(healthService *health.Service) *HealthHandler {
	return &HealthHandler{health: healthService}
}

// Handle probes dependencies and responds 503 when a critical one is down
// GET /health
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	h.health.CheckAll(c.UserContext())

	status := h.health.GetStatus()
	status["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	if !h.health.Healthy() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(status)
	}
	return c.JSON(status)
}
