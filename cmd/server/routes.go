package main

import (
	"log"
	"strings"

	"pathfinder/internal/config"
	"pathfinder/internal/handlers"
	"pathfinder/internal/middleware"
	"pathfinder/internal/sessioncache"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type routeDeps struct {
	auth       *handlers.AuthHandler
	opp        *handlers.OpportunityHandler
	bookmark   *handlers.BookmarkHandler
	toolkit    *handlers.ToolkitHandler
	onboarding *handlers.OnboardingHandler
	feed       *handlers.FeedHandler
	webhook    *handlers.WebhookHandler
	feedSocket *handlers.FeedSocketHandler
	health     *handlers.HealthHandler
	admin      *handlers.AdminHandler

	sessionCache *sessioncache.Cache
	sessions     middleware.SessionLookup
}

func setupRoutes(app *fiber.App, cfg *config.Config, rl *middleware.RateLimitConfig, d *routeDeps) {
	app.Get("/health", d.health.Handle)

	api := app.Group("/api")

	// Webhooks authenticate by signature, not session
	api.Post("/webhooks/dodo", d.webhook.HandleDodoWebhook)

	api.Use(middleware.Session(d.sessionCache, d.sessions))

	loginThrottle := middleware.NewLoginThrottle(rl.LoginPerMinute, rl.LoginBurst)
	api.Post("/auth/register", loginThrottle.Handler(), d.auth.Register)
	api.Post("/auth/login", loginThrottle.Handler(), d.auth.Login)
	api.Post("/auth/logout", d.auth.Logout)
	api.Get("/auth/me", d.auth.Me)

	// Public reads
	api.Get("/opportunities", d.opp.List)
	api.Get("/opportunities/:id", d.opp.Get)
	api.Get("/feed", d.feed.List)
	api.Get("/feed/recommended", middleware.RequireSession(), d.onboarding.Recommended)
	api.Get("/feed/:slug", d.feed.Get)

	// Toolkits; purchases is registered before /:slug so it is not taken as a slug
	api.Get("/toolkits", d.toolkit.List)
	api.Get("/toolkits/purchases", middleware.RequireSession(), d.toolkit.Purchases)
	api.Get("/toolkits/:slug", d.toolkit.Get)
	api.Post("/toolkits/:slug/checkout", middleware.RequireSession(), middleware.AuthenticatedRateLimiter(rl), d.toolkit.Checkout)

	bookmarks := api.Group("/bookmarks", middleware.RequireSession())
	bookmarks.Get("/", d.bookmark.List)
	bookmarks.Post("/:opportunityId", middleware.AuthenticatedRateLimiter(rl), d.bookmark.Add)
	bookmarks.Delete("/:opportunityId", d.bookmark.Remove)

	api.Get("/onboarding", middleware.RequireSession(), d.onboarding.Get)
	api.Put("/onboarding", middleware.RequireSession(), middleware.AuthenticatedRateLimiter(rl), d.onboarding.Update)

	admin := api.Group("/admin", middleware.RequireSession(), middleware.AdminMiddleware(cfg))
	admin.Get("/tags", d.admin.ListTags)
	admin.Post("/tags/resolve", d.admin.ResolveTags)
	admin.Post("/opportunities", d.opp.Create)
	admin.Put("/opportunities/:id", d.opp.Update)
	admin.Delete("/opportunities/:id", d.opp.Delete)
	admin.Get("/toolkits", d.toolkit.AdminList)
	admin.Post("/toolkits", d.toolkit.Create)
	admin.Put("/toolkits/:id", d.toolkit.Update)
	admin.Get("/export/opportunities", d.admin.ExportOpportunities)
	admin.Post("/import/opportunities", d.admin.ImportOpportunities)
	admin.Get("/stats", d.admin.GetStats)
	admin.Get("/jobs", d.admin.ListJobs)
	admin.Post("/jobs/:name/run", d.admin.RunJob)
	admin.Post("/feed/reload", d.admin.ReloadFeed)

	// Feed websocket; anonymous clients are allowed
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			c.Locals("client_ip", c.IP())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/feed", middleware.Session(d.sessionCache, d.sessions))
	app.Get("/ws/feed", websocket.New(d.feedSocket.Handle, websocket.Config{
		Origins: strings.Split(cfg.AllowedOrigins, ","),
	}))

	log.Println("✅ Routes registered")
}
