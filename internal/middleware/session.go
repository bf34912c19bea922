package middleware

import (
	"context"
	"log"
	"net/http"

	"pathfinder/internal/models"
	"pathfinder/internal/sessioncache"

	"github.com/gofiber/fiber/v2"
)

// SessionLookup resolves request headers to a session without caching
type SessionLookup interface {
	Lookup(ctx context.Context, headers http.Header) (*models.Session, error)
	// CookieName is the cookie that carries the session token
	CookieName() string
}

// Session resolves the caller's session once per request and stores it in
// c.Locals. Anonymous requests continue with no locals set.
//
// Requests carrying the session cookie go through the short-lived session
// cache. A bearer token without that cookie is looked up directly: the cache
// keys on the Cookie header alone, so unrelated cookies would otherwise group
// different bearers under one entry.
func Session(cache *sessioncache.Cache, sessions SessionLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := RequestHeaders(c)

		var session *models.Session
		var err error
		if headers.Get("Authorization") != "" && c.Cookies(sessions.CookieName()) == "" {
			session, err = sessions.Lookup(c.UserContext(), headers)
		} else {
			session, err = cache.Get(c.UserContext(), headers)
		}
		if err != nil {
			log.Printf("❌ [SESSION] Lookup failed for %s: %v", c.Path(), err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "Session service unavailable",
			})
		}

		if session != nil {
			c.Locals("user_id", session.UserID)
			c.Locals("user_email", session.Email)
			c.Locals("user_role", session.Role)
			c.Locals("session", session)
		}
		return c.Next()
	}
}

// RequireSession rejects requests without a resolved session
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentSession(c) == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}
		return c.Next()
	}
}

// CurrentSession returns the session stored by Session, or nil
func CurrentSession(c *fiber.Ctx) *models.Session {
	session, _ := c.Locals("session").(*models.Session)
	return session
}

// RequestHeaders copies the request headers into an http.Header
func RequestHeaders(c *fiber.Ctx) http.Header {
	headers := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		headers.Add(string(key), string(value))
	})
	return headers
}
