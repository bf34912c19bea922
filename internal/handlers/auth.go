package handlers

import (
	"log"
	"time"

	"pathfinder/internal/middleware"
	"pathfinder/internal/models"
	"pathfinder/internal/services"
	"pathfinder/internal/sessioncache"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles account and session endpoints
type AuthHandler struct {
	users        *services.UserService
	sessions     *services.SessionService
	cache        *sessioncache.Cache
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users *services.UserService, sessions *services.SessionService, cache *sessioncache.Cache, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		sessions:     sessions,
		cache:        cache,
		secureCookie: secureCookie,
	}
}

// AuthResponse is the response for successful authentication
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	User        *models.User `json:"user"`
	ExpiresAt   time.Time    `json:"expires_at"`
}

// Register creates a new user account and signs it in
// POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.users.Register(c.UserContext(), req)
	if err != nil {
		return serviceError(c, err, "create account")
	}

	if user.Role == models.RoleAdmin {
		log.Printf("🎉 First user registered as admin: %s", user.ID)
	}
	return h.startSession(c, user, fiber.StatusCreated)
}

// Login verifies credentials and sets the session cookie
// POST /api/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	user, err := h.users.Authenticate(c.UserContext(), req)
	if err != nil {
		return serviceError(c, err, "sign in")
	}

	return h.startSession(c, user, fiber.StatusOK)
}

func (h *AuthHandler) startSession(c *fiber.Ctx, user *models.User, status int) error {
	token, session, err := h.sessions.Issue(user)
	if err != nil {
		return serviceError(c, err, "create session")
	}

	c.Cookie(&fiber.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	log.Printf("✅ User signed in: %s", user.ID)
	return c.Status(status).JSON(AuthResponse{
		AccessToken: token,
		User:        user,
		ExpiresAt:   session.ExpiresAt,
	})
}

// Logout revokes the current session and clears the cookie
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if session := middleware.CurrentSession(c); session != nil {
		if err := h.sessions.Revoke(c.UserContext(), session); err != nil {
			return serviceError(c, err, "sign out")
		}
	}

	// Drop the memoized session for these credentials
	h.cache.Invalidate(middleware.RequestHeaders(c))

	c.Cookie(&fiber.Cookie{
		Name:     h.sessions.CookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(fiber.Map{
		"success": true,
	})
}

// Me returns the signed-in user
// GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	session := middleware.CurrentSession(c)
	if session == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Authentication required",
		})
	}

	user, err := h.users.GetByID(c.UserContext(), session.UserID)
	if err != nil {
		return serviceError(c, err, "load user")
	}

	return c.JSON(fiber.Map{
		"user":       user,
		"expires_at": session.ExpiresAt,
	})
}
