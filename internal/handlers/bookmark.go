package handlers

import (
	"pathfinder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// BookmarkHandler manages a user's saved opportunities
type BookmarkHandler struct {
	bookmarks *services.BookmarkService
}

// NewBookmarkHandler creates a new bookmark handler
func NewBookmarkHandler(bookmarks *services.BookmarkService) *BookmarkHandler {
	return &BookmarkHandler{bookmarks: bookmarks}
}

// List returns the user's bookmarks, newest first
// GET /api/bookmarks
func (h *BookmarkHandler) List(c *fiber.Ctx) error {
	bookmarks, err := h.bookmarks.List(c.UserContext(), userID(c))
	if err != nil {
		return serviceError(c, err, "list bookmarks")
	}
	return c.JSON(fiber.Map{
		"bookmarks": bookmarks,
	})
}

// Add bookmarks an opportunity; repeating it is a no-op
// POST /api/bookmarks/:opportunityId
func (h *BookmarkHandler) Add(c *fiber.Ctx) error {
	if err := h.bookmarks.Add(c.UserContext(), userID(c), c.Params("opportunityId")); err != nil {
		return serviceError(c, err, "add bookmark")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
	})
}

// Remove deletes a bookmark
// DELETE /api/bookmarks/:opportunityId
func (h *BookmarkHandler) Remove(c *fiber.Ctx) error {
	if err := h.bookmarks.Remove(c.UserContext(), userID(c), c.Params("opportunityId")); err != nil {
		return serviceError(c, err, "remove bookmark")
	}
	return c.SendStatus(fiber.StatusNoContent)
}
