package handlers

import (
	"pathfinder/internal/services"

	"github.com/gofiber/fiber/v2"
)

// FeedHandler serves markdown articles
type FeedHandler struct {
	feed *services.FeedService
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feed *services.FeedService) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// List returns post summaries, newest first
// GET /api/feed?tag=&limit=
func (h *FeedHandler) List(c *fiber.Ctx) error {
	posts := h.feed.List(c.Query("tag"), c.QueryInt("limit", 0))
	return c.JSON(fiber.Map{
		"posts": posts,
	})
}

// Get returns a rendered post
// GET /api/feed/:slug
func (h *FeedHandler) Get(c *fiber.Ctx) error {
	post, err := h.feed.Get(c.Params("slug"))
	if err != nil {
		return serviceError(c, err, "load post")
	}
	return c.JSON(post)
}
