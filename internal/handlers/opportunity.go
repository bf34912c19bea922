package handlers

import (
	"log"

	"pathfinder/internal/models"
	"pathfinder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// OpportunityHandler serves the opportunity listing
type OpportunityHandler struct {
	opportunities *services.OpportunityService
}

// NewOpportunityHandler creates a new opportunity handler
func NewOpportunityHandler(opportunities *services.OpportunityService) *OpportunityHandler {
	return &OpportunityHandler{opportunities: opportunities}
}

// List returns opportunities matching the query filters
// GET /api/opportunities?tag=&kind=&q=&status=&limit=&offset=
func (h *OpportunityHandler) List(c *fiber.Ctx) error {
	filter := models.OpportunityFilter{
		Tag:    c.Query("tag"),
		Kind:   c.Query("kind"),
		Query:  c.Query("q"),
		Status: c.Query("status"),
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}

	opps, err := h.opportunities.List(c.UserContext(), filter)
	if err != nil {
		return serviceError(c, err, "list opportunities")
	}

	return c.JSON(fiber.Map{
		"opportunities": opps,
		"count":         len(opps),
	})
}

// Get returns a single opportunity
// GET /api/opportunities/:id
func (h *OpportunityHandler) Get(c *fiber.Ctx) error {
	opp, err := h.opportunities.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return serviceError(c, err, "load opportunity")
	}
	return c.JSON(opp)
}

// Create adds an opportunity (admin only)
// POST /api/admin/opportunities
func (h *OpportunityHandler) Create(c *fiber.Ctx) error {
	var in models.OpportunityInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	opp, err := h.opportunities.Create(c.UserContext(), in, userID(c))
	if err != nil {
		return serviceError(c, err, "create opportunity")
	}

	log.Printf("📝 Admin %s created opportunity %s", userID(c), opp.ID)
	return c.Status(fiber.StatusCreated).JSON(opp)
}

// Update replaces an opportunity's fields and tags (admin only)
// PUT /api/admin/opportunities/:id
func (h *OpportunityHandler) Update(c *fiber.Ctx) error {
	var in models.OpportunityInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	opp, err := h.opportunities.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return serviceError(c, err, "update opportunity")
	}
	return c.JSON(opp)
}

// Delete removes an opportunity (admin only)
// DELETE /api/admin/opportunities/:id
func (h *OpportunityHandler) Delete(c *fiber.Ctx) error {
	if err := h.opportunities.Delete(c.UserContext(), c.Params("id")); err != nil {
		return serviceError(c, err, "delete opportunity")
	}

	log.Printf("🗑️  Admin %s deleted opportunity %s", userID(c), c.Params("id"))
	return c.SendStatus(fiber.StatusNoContent)
}
