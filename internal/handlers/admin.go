package handlers

import (
	"errors"
	"fmt"
	"log"
	"time"

	"pathfinder/internal/health"
	"pathfinder/internal/jobs"
	"pathfinder/internal/services"
	"pathfinder/internal/sessioncache"
	"pathfinder/internal/tags"

	"github.com/gofiber/fiber/v2"
)

const maxImportSize = 5 * 1024 * 1024

// AdminHandler handles admin operations
type AdminHandler struct {
	tagStore      *tags.SQLStore
	resolver      *tags.Resolver
	exportService *services.ExportService
	userService   *services.UserService
	opportunities *services.OpportunityService
	feedService   *services.FeedService
	sessionCache  *sessioncache.Cache
	scheduler     *jobs.JobScheduler
	healthService *health.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	tagStore *tags.SQLStore,
	resolver *tags.Resolver,
	exportService *services.ExportService,
	userService *services.UserService,
	opportunities *services.OpportunityService,
	feedService *services.FeedService,
	sessionCache *sessioncache.Cache,
	scheduler *jobs.JobScheduler,
	healthService *health.Service,
) *AdminHandler {
	return &AdminHandler{
		tagStore:      tagStore,
		resolver:      resolver,
		exportService: exportService,
		userService:   userService,
		opportunities: opportunities,
		feedService:   feedService,
		sessionCache:  sessionCache,
		scheduler:     scheduler,
		healthService: healthService,
	}
}

// ListTags returns every tag ordered by name
// GET /api/admin/tags
func (h *AdminHandler) ListTags(c *fiber.Ctx) error {
	list, err := h.tagStore.List(c.UserContext())
	if err != nil {
		return serviceError(c, err, "list tags")
	}
	return c.JSON(fiber.Map{
		"tags":  list,
		"count": len(list),
	})
}

// ResolveTagsRequest is the body of ResolveTags
type ResolveTagsRequest struct {
	Names []string `json:"names"`
}

// ResolveTags normalizes names and returns their tags, creating missing ones
// POST /api/admin/tags/resolve
func (h *AdminHandler) ResolveTags(c *fiber.Ctx) error {
	var req ResolveTagsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resolved, err := h.resolver.ResolveFromNames(c.UserContext(), req.Names)
	if err != nil {
		return serviceError(c, err, "resolve tags")
	}

	return c.JSON(fiber.Map{
		"normalized": tags.Normalize(req.Names),
		"tag_ids":    resolved.TagIDs,
		"tag_names":  resolved.TagNames,
	})
}

// ExportOpportunities downloads every opportunity as an XLSX workbook
// GET /api/admin/export/opportunities
func (h *AdminHandler) ExportOpportunities(c *fiber.Ctx) error {
	buf, err := h.exportService.ExportOpportunities(c.UserContext())
	if err != nil {
		return serviceError(c, err, "export opportunities")
	}

	filename := fmt.Sprintf("opportunities-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

// ImportOpportunities creates opportunities from an uploaded XLSX workbook
// POST /api/admin/import/opportunities (multipart field "file")
func (h *AdminHandler) ImportOpportunities(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file provided",
		})
	}
	if fileHeader.Size > maxImportSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": fmt.Sprintf("File exceeds maximum size of %d MB", maxImportSize/1024/1024),
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return serviceError(c, err, "read upload")
	}
	defer file.Close()

	result, err := h.exportService.ImportOpportunities(c.UserContext(), file, userID(c))
	if err != nil {
		return serviceError(c, err, "import opportunities")
	}

	log.Printf("📥 Admin %s imported %d opportunities from %s", userID(c), result.Created, fileHeader.Filename)
	return c.JSON(result)
}

// GetStats returns counters useful on the admin dashboard
// GET /api/admin/stats
func (h *AdminHandler) GetStats(c *fiber.Ctx) error {
	users, err := h.userService.Count(c.UserContext())
	if err != nil {
		return serviceError(c, err, "load stats")
	}
	tagList, err := h.tagStore.List(c.UserContext())
	if err != nil {
		return serviceError(c, err, "load stats")
	}

	return c.JSON(fiber.Map{
		"users":                  users,
		"tags":                   len(tagList),
		"feed_posts":             h.feedService.Count(),
		"opportunity_list_cache": h.opportunities.ListCacheSize(),
		"session_cache":          h.sessionCache.Stats(),
		"health":                 h.healthService.GetAll(),
	})
}

// ListJobs returns the background job schedule
// GET /api/admin/jobs
func (h *AdminHandler) ListJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"jobs": h.scheduler.GetStatus(),
	})
}

// RunJob runs a background job immediately
// POST /api/admin/jobs/:name/run
func (h *AdminHandler) RunJob(c *fiber.Ctx) error {
	name := c.Params("name")
	err := h.scheduler.RunNow(c.UserContext(), name)
	if errors.Is(err, jobs.ErrJobNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Job not found",
		})
	}
	if err != nil {
		return serviceError(c, err, "run job")
	}

	log.Printf("▶️  Admin %s ran job %s", userID(c), name)
	return c.JSON(fiber.Map{
		"success": true,
		"job":     name,
	})
}

// ReloadFeed re-reads the content directory
// POST /api/admin/feed/reload
func (h *AdminHandler) ReloadFeed(c *fiber.Ctx) error {
	if err := h.feedService.Reload(); err != nil {
		return serviceError(c, err, "reload feed")
	}
	return c.JSON(fiber.Map{
		"posts": h.feedService.Count(),
	})
}
