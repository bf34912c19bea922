package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pathfinder/internal/config"
	"pathfinder/internal/models"
	"pathfinder/internal/sessioncache"

	"github.com/gofiber/fiber/v2"
)

// fakeSessions resolves any credential to a fixed session and counts calls
type fakeSessions struct {
	calls   int64
	session *models.Session
	err     error
}

func (f *fakeSessions) Lookup(ctx context.Context, headers http.Header) (*models.Session, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	if headers.Get("Cookie") == "" && headers.Get("Authorization") == "" {
		return nil, nil
	}
	return f.session, nil
}

func (f *fakeSessions) CookieName() string { return "pf_session" }

// bearerSessions prefers the pf_session cookie and falls back to the bearer
// token, using the token itself as the user id
type bearerSessions struct {
	calls int64
}

func (b *bearerSessions) Lookup(ctx context.Context, headers http.Header) (*models.Session, error) {
	atomic.AddInt64(&b.calls, 1)
	req := http.Request{Header: headers}
	if cookie, err := req.Cookie("pf_session"); err == nil && cookie.Value != "" {
		return &models.Session{UserID: "cookie-" + cookie.Value}, nil
	}
	token := strings.TrimPrefix(headers.Get("Authorization"), "Bearer ")
	if token == "" {
		return nil, nil
	}
	return &models.Session{UserID: token}, nil
}

func (b *bearerSessions) CookieName() string { return "pf_session" }

func setupSessionApp(sessions *fakeSessions) (*fiber.App, *sessioncache.Cache) {
	cache := sessioncache.New(sessions.Lookup, sessioncache.WithTTL(time.Minute))

	app := fiber.New()
	app.Use(Session(cache, sessions))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		return c.SendString(userID)
	})
	app.Get("/private", RequireSession(), func(c *fiber.Ctx) error {
		return c.SendString(CurrentSession(c).Email)
	})
	return app, cache
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return resp
}

func TestSession_CookieRequestsAreCached(t *testing.T) {
	sessions := &fakeSessions{session: &models.Session{UserID: "user-1", Email: "a@example.com"}}
	app, cache := setupSessionApp(sessions)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Cookie", "pf_session=abc")
		resp := doRequest(t, app, req)
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("Expected 200, got %d", resp.StatusCode)
		}
	}

	if got := atomic.LoadInt64(&sessions.calls); got != 1 {
		t.Errorf("Expected 1 backing lookup, got %d", got)
	}
	if cache.Len() != 1 {
		t.Errorf("Expected 1 cache entry, got %d", cache.Len())
	}
}

func TestSession_BearerRequestsBypassCache(t *testing.T) {
	sessions := &fakeSessions{session: &models.Session{UserID: "user-1"}}
	app, cache := setupSessionApp(sessions)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer token")
		doRequest(t, app, req)
	}

	if got := atomic.LoadInt64(&sessions.calls); got != 2 {
		t.Errorf("Expected a lookup per bearer request, got %d", got)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected bearer requests to leave the cache empty, got %d entries", cache.Len())
	}
}

func TestSession_BearerWithUnrelatedCookie(t *testing.T) {
	sessions := &bearerSessions{}
	cache := sessioncache.New(sessions.Lookup, sessioncache.WithTTL(time.Minute))

	app := fiber.New()
	app.Use(Session(cache, sessions))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		return c.SendString(userID)
	})

	tests := []struct {
		name     string
		cookie   string
		bearer   string
		expected string
	}{
		{"first bearer", "theme=dark", "alice", "alice"},
		{"second bearer same cookie", "theme=dark", "bob", "bob"},
		{"first bearer again", "theme=dark", "alice", "alice"},
		{"session cookie wins", "theme=dark; pf_session=xyz", "bob", "cookie-xyz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/whoami", nil)
			req.Header.Set("Cookie", tt.cookie)
			req.Header.Set("Authorization", "Bearer "+tt.bearer)
			resp := doRequest(t, app, req)
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.expected {
				t.Errorf("Expected user_id %q, got %q", tt.expected, string(body))
			}
		})
	}

	// Only the request carrying pf_session was cached
	if cache.Len() != 1 {
		t.Errorf("Expected 1 cache entry, got %d", cache.Len())
	}
}

func TestSession_LookupFailure(t *testing.T) {
	sessions := &fakeSessions{err: errors.New("database down")}
	app, _ := setupSessionApp(sessions)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Cookie", "pf_session=abc")
	resp := doRequest(t, app, req)

	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", resp.StatusCode)
	}
}

func TestRequireSession(t *testing.T) {
	sessions := &fakeSessions{session: &models.Session{UserID: "user-1", Email: "a@example.com"}}
	app, _ := setupSessionApp(sessions)

	resp := doRequest(t, app, httptest.NewRequest("GET", "/private", nil))
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected 401 for anonymous request, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest("GET", "/private", nil)
	req.Header.Set("Cookie", "pf_session=abc")
	resp = doRequest(t, app, req)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected 200 with a session, got %d", resp.StatusCode)
	}
}

func TestRequestHeaders(t *testing.T) {
	app := fiber.New()
	var got http.Header
	app.Get("/", func(c *fiber.Ctx) error {
		got = RequestHeaders(c)
		return nil
	})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "a=1; b=2")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	doRequest(t, app, req)

	if got.Get("Cookie") != "a=1; b=2" {
		t.Errorf("Expected cookie header to be copied, got %q", got.Get("Cookie"))
	}
	if got.Get("X-Forwarded-For") != "10.0.0.1" {
		t.Errorf("Expected forwarded-for to be copied, got %q", got.Get("X-Forwarded-For"))
	}
}

func TestAdminMiddleware(t *testing.T) {
	cfg := &config.Config{SuperadminUserIDs: []string{"root-user"}}

	tests := []struct {
		name     string
		userID   string
		role     string
		expected int
	}{
		{"anonymous", "", "", fiber.StatusUnauthorized},
		{"regular user", "user-1", models.RoleUser, fiber.StatusForbidden},
		{"admin role", "user-2", models.RoleAdmin, fiber.StatusOK},
		{"superadmin list", "root-user", models.RoleUser, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Use(func(c *fiber.Ctx) error {
				if tt.userID != "" {
					c.Locals("user_id", tt.userID)
					c.Locals("user_role", tt.role)
				}
				return c.Next()
			})
			app.Get("/admin", AdminMiddleware(cfg), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp := doRequest(t, app, httptest.NewRequest("GET", "/admin", nil))
			if resp.StatusCode != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, resp.StatusCode)
			}
		})
	}
}

func TestLoginThrottle(t *testing.T) {
	throttle := NewLoginThrottle(1, 2)

	app := fiber.New()
	app.Post("/login", throttle.Handler(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	expected := []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}
	for i, want := range expected {
		resp := doRequest(t, app, httptest.NewRequest("POST", "/login", nil))
		if resp.StatusCode != want {
			t.Errorf("Attempt %d: expected %d, got %d", i+1, want, resp.StatusCode)
		}
	}
}

func TestGlobalAPIRateLimiter(t *testing.T) {
	rl := NewRateLimitConfig(&config.Config{RateLimitGlobalPerMinute: 2, RateLimitLoginPerMinute: 10})

	app := fiber.New()
	app.Use(GlobalAPIRateLimiter(rl))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	var last int
	for i := 0; i < 3; i++ {
		last = doRequest(t, app, httptest.NewRequest("GET", "/", nil)).StatusCode
	}
	if last != fiber.StatusTooManyRequests {
		t.Errorf("Expected third request to be limited, got %d", last)
	}
}
