package handlers

import (
	"pathfinder/internal/models"
	"pathfinder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OnboardingHandler stores onboarding answers
type OnboardingHandler struct {
	onboarding *services.OnboardingService
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(onboarding *services.OnboardingService) *OnboardingHandler {
	return &OnboardingHandler{onboarding: onboarding}
}

// Get returns the caller's onboarding profile
// GET /api/onboarding
func (h *OnboardingHandler) Get(c *fiber.Ctx) error {
	profile, err := h.onboarding.Get(c.UserContext(), userID(c))
	if err != nil {
		return serviceError(c, err, "load onboarding profile")
	}
	return c.JSON(profile)
}

// Update saves the fields present in the body
// PUT /api/onboarding
func (h *OnboardingHandler) Update(c *fiber.Ctx) error {
	var req models.UpdateOnboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	profile, err := h.onboarding.Update(c.UserContext(), userID(c), req)
	if err != nil {
		return serviceError(c, err, "save onboarding profile")
	}
	return c.JSON(profile)
}

// Recommended lists open opportunities matching the caller's interests
// GET /api/feed/recommended
func (h *OnboardingHandler) Recommended(c *fiber.Ctx) error {
	opps, err := h.onboarding.Recommended(c.UserContext(), userID(c), c.QueryInt("limit", 20))
	if err != nil {
		return serviceError(c, err, "load recommendations")
	}
	return c.JSON(fiber.Map{
		"opportunities": opps,
	})
}
