package handlers

import (
	"log"

	"pathfinder/internal/middleware"
	"pathfinder/internal/models"
	"pathfinder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// ToolkitHandler serves the toolkit catalog and purchases
type ToolkitHandler struct {
	toolkits *services.ToolkitService
	payments *services.PaymentService
}

// NewToolkitHandler creates a new toolkit handler
func NewToolkitHandler(toolkits *services.ToolkitService, payments *services.PaymentService) *ToolkitHandler {
	return &ToolkitHandler{toolkits: toolkits, payments: payments}
}

// List returns published toolkits with ownership for the caller
// GET /api/toolkits
func (h *ToolkitHandler) List(c *fiber.Ctx) error {
	toolkits, err := h.toolkits.List(c.UserContext(), userID(c), false)
	if err != nil {
		return serviceError(c, err, "list toolkits")
	}
	return c.JSON(fiber.Map{
		"toolkits":         toolkits,
		"checkout_enabled": h.payments.Enabled(),
	})
}

// Get returns a published toolkit by slug
// GET /api/toolkits/:slug
func (h *ToolkitHandler) Get(c *fiber.Ctx) error {
	toolkit, err := h.toolkits.GetBySlug(c.UserContext(), c.Params("slug"), userID(c))
	if err != nil {
		return serviceError(c, err, "load toolkit")
	}
	if !toolkit.Published && !middleware.CurrentSession(c).IsAdmin() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	}
	return c.JSON(toolkit)
}

// Checkout starts a payment for a toolkit
// POST /api/toolkits/:slug/checkout
func (h *ToolkitHandler) Checkout(c *fiber.Ctx) error {
	session := middleware.CurrentSession(c)
	if session == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	checkout, err := h.payments.CreateCheckout(c.UserContext(), session, c.Params("slug"))
	if err != nil {
		return serviceError(c, err, "start checkout")
	}
	return c.JSON(checkout)
}

// Purchases lists the caller's purchases
// GET /api/toolkits/purchases
func (h *ToolkitHandler) Purchases(c *fiber.Ctx) error {
	purchases, err := h.toolkits.ListPurchases(c.UserContext(), userID(c))
	if err != nil {
		return serviceError(c, err, "list purchases")
	}
	return c.JSON(fiber.Map{
		"purchases": purchases,
	})
}

// AdminList returns every toolkit, published or not
// GET /api/admin/toolkits
func (h *ToolkitHandler) AdminList(c *fiber.Ctx) error {
	toolkits, err := h.toolkits.List(c.UserContext(), "", true)
	if err != nil {
		return serviceError(c, err, "list toolkits")
	}
	return c.JSON(fiber.Map{
		"toolkits": toolkits,
	})
}

// Create adds a toolkit
// POST /api/admin/toolkits
func (h *ToolkitHandler) Create(c *fiber.Ctx) error {
	var in models.ToolkitInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	toolkit, err := h.toolkits.Create(c.UserContext(), in)
	if err != nil {
		return serviceError(c, err, "create toolkit")
	}

	log.Printf("📦 Admin %s created toolkit %s", userID(c), toolkit.Slug)
	return c.Status(fiber.StatusCreated).JSON(toolkit)
}

// Update replaces a toolkit's fields
// PUT /api/admin/toolkits/:id
func (h *ToolkitHandler) Update(c *fiber.Ctx) error {
	var in models.ToolkitInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	toolkit, err := h.toolkits.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return serviceError(c, err, "update toolkit")
	}
	return c.JSON(toolkit)
}
