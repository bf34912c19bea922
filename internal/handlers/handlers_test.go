package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pathfinder/internal/config"
	"pathfinder/internal/database"
	"pathfinder/internal/health"
	"pathfinder/internal/jobs"
	"pathfinder/internal/middleware"
	"pathfinder/internal/services"
	"pathfinder/internal/sessioncache"
	"pathfinder/internal/tags"
	"pathfinder/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

const testWebhookSecret = "whsec_test"

type testServer struct {
	app   *fiber.App
	db    *database.DB
	cache *sessioncache.Cache
}

func setupTestApp(t *testing.T) *testServer {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "handlers.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	jwtAuth, err := auth.NewLocalJWTAuth("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create auth: %v", err)
	}

	cfg := &config.Config{}
	tagStore := tags.NewSQLStore(db)
	resolver := tags.NewResolver(tagStore)
	users := services.NewUserService(db, jwtAuth)
	sessions := services.NewSessionService(jwtAuth, users, services.NewRevocationList(nil), "pf_session")
	cache := sessioncache.New(sessions.Lookup, sessioncache.WithTTL(time.Minute))
	opportunities := services.NewOpportunityService(db, resolver)
	bookmarks := services.NewBookmarkService(db, opportunities)
	toolkits := services.NewToolkitService(db)
	payments := services.NewPaymentService("", testWebhookSecret, "test", "http://localhost", db, users, toolkits)
	onboarding := services.NewOnboardingService(db, resolver, opportunities)
	feed := services.NewFeedService(t.TempDir())
	scheduler, err := jobs.NewJobScheduler(nil)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	if err := scheduler.Register(jobs.OpportunityExpiryJobName, "*/15 * * * *", jobs.NewOpportunityExpiry(opportunities)); err != nil {
		t.Fatalf("Failed to register job: %v", err)
	}
	healthService := health.NewService(1, time.Second)
	healthService.Register(&health.DatabaseHealthCheck{DB: db}, true)

	authHandler := NewAuthHandler(users, sessions, cache, false)
	oppHandler := NewOpportunityHandler(opportunities)
	bookmarkHandler := NewBookmarkHandler(bookmarks)
	toolkitHandler := NewToolkitHandler(toolkits, payments)
	onboardingHandler := NewOnboardingHandler(onboarding)
	feedHandler := NewFeedHandler(feed)
	webhookHandler := NewWebhookHandler(payments)
	healthHandler := NewHealthHandler(healthService)
	adminHandler := NewAdminHandler(tagStore, resolver, services.NewExportService(opportunities), users,
		opportunities, feed, cache, scheduler, healthService)

	app := fiber.New()
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/webhooks/dodo", webhookHandler.HandleDodoWebhook)
	api.Use(middleware.Session(cache, sessions))

	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)
	api.Post("/auth/logout", authHandler.Logout)
	api.Get("/auth/me", authHandler.Me)

	api.Get("/opportunities", oppHandler.List)
	api.Get("/opportunities/:id", oppHandler.Get)
	api.Get("/toolkits", toolkitHandler.List)
	api.Get("/toolkits/:slug", toolkitHandler.Get)
	api.Post("/toolkits/:slug/checkout", middleware.RequireSession(), toolkitHandler.Checkout)
	api.Get("/feed", feedHandler.List)
	api.Get("/feed/recommended", middleware.RequireSession(), onboardingHandler.Recommended)
	api.Get("/feed/:slug", feedHandler.Get)

	bookmarkRoutes := api.Group("/bookmarks", middleware.RequireSession())
	bookmarkRoutes.Get("/", bookmarkHandler.List)
	bookmarkRoutes.Post("/:opportunityId", bookmarkHandler.Add)
	bookmarkRoutes.Delete("/:opportunityId", bookmarkHandler.Remove)

	api.Get("/onboarding", middleware.RequireSession(), onboardingHandler.Get)
	api.Put("/onboarding", middleware.RequireSession(), onboardingHandler.Update)

	admin := api.Group("/admin", middleware.RequireSession(), middleware.AdminMiddleware(cfg))
	admin.Get("/tags", adminHandler.ListTags)
	admin.Post("/tags/resolve", adminHandler.ResolveTags)
	admin.Post("/opportunities", oppHandler.Create)
	admin.Put("/opportunities/:id", oppHandler.Update)
	admin.Delete("/opportunities/:id", oppHandler.Delete)
	admin.Post("/toolkits", toolkitHandler.Create)
	admin.Get("/export/opportunities", adminHandler.ExportOpportunities)
	admin.Get("/stats", adminHandler.GetStats)
	admin.Get("/jobs", adminHandler.ListJobs)
	admin.Post("/jobs/:name/run", adminHandler.RunJob)

	return &testServer{app: app, db: db, cache: cache}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request %s %s failed: %v", method, path, err)
	}

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]interface{}
	json.Unmarshal(raw, &decoded)
	return resp, decoded
}

func (s *testServer) register(t *testing.T, email string) *http.Cookie {
	t.Helper()
	resp, body := s.do(t, "POST", "/api/auth/register", map[string]string{
		"email": email, "password": "pathfinder2026",
	}, nil)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201 registering %s, got %d: %v", email, resp.StatusCode, body)
	}
	return sessionCookie(t, resp)
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, cookie := range resp.Cookies() {
		if cookie.Name == "pf_session" {
			return cookie
		}
	}
	t.Fatal("Expected session cookie in response")
	return nil
}

func TestAuth_SessionLifecycle(t *testing.T) {
	s := setupTestApp(t)
	cookie := s.register(t, "ada@example.com")

	if !cookie.HttpOnly {
		t.Error("Expected session cookie to be HttpOnly")
	}

	resp, body := s.do(t, "GET", "/api/auth/me", nil, cookie)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from /me, got %d", resp.StatusCode)
	}
	user := body["user"].(map[string]interface{})
	if user["email"] != "ada@example.com" || user["role"] != "admin" {
		t.Errorf("Expected first user to be admin ada@example.com, got %v", user)
	}
	if _, leaked := user["password_hash"]; leaked {
		t.Error("Password hash must never be serialized")
	}

	resp, _ = s.do(t, "POST", "/api/auth/logout", nil, cookie)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200 from logout, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, "GET", "/api/auth/me", nil, cookie)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected revoked session to be rejected, got %d", resp.StatusCode)
	}
}

func TestAuth_BearerToken(t *testing.T) {
	s := setupTestApp(t)
	_, body := s.do(t, "POST", "/api/auth/register", map[string]string{
		"email": "ada@example.com", "password": "pathfinder2026",
	}, nil)
	token, _ := body["access_token"].(string)
	if token == "" {
		t.Fatal("Expected access token in response")
	}

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected bearer token to authenticate, got %d", resp.StatusCode)
	}
	if s.cache.Len() != 0 {
		t.Errorf("Expected bearer lookups to bypass the session cache, got %d entries", s.cache.Len())
	}
}

func TestAuth_Errors(t *testing.T) {
	s := setupTestApp(t)
	s.register(t, "ada@example.com")

	tests := []struct {
		name     string
		path     string
		body     map[string]string
		expected int
	}{
		{"duplicate email", "/api/auth/register", map[string]string{"email": "ADA@example.com", "password": "pathfinder2026"}, fiber.StatusConflict},
		{"weak password", "/api/auth/register", map[string]string{"email": "bob@example.com", "password": "short"}, fiber.StatusBadRequest},
		{"invalid email", "/api/auth/register", map[string]string{"email": "nope", "password": "pathfinder2026"}, fiber.StatusBadRequest},
		{"wrong password", "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "wrongpass1"}, fiber.StatusUnauthorized},
		{"unknown user", "/api/auth/login", map[string]string{"email": "bob@example.com", "password": "pathfinder2026"}, fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := s.do(t, "POST", tt.path, tt.body, nil)
			if resp.StatusCode != tt.expected {
				t.Errorf("Expected %d, got %d: %v", tt.expected, resp.StatusCode, body)
			}
		})
	}

	resp, _ := s.do(t, "POST", "/api/auth/login", map[string]string{"email": "ada@example.com", "password": "pathfinder2026"}, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected login to succeed, got %d", resp.StatusCode)
	}
}

func TestOpportunities_AdminCreateAndPublicList(t *testing.T) {
	s := setupTestApp(t)
	adminCookie := s.register(t, "admin@example.com")
	userCookie := s.register(t, "student@example.com")

	input := map[string]interface{}{
		"title":        "ML Intern",
		"organization": "Acme",
		"kind":         "internship",
		"tags":         []string{"ai", "AI", " Research "},
	}

	resp, _ := s.do(t, "POST", "/api/admin/opportunities", input, userCookie)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Errorf("Expected non-admin create to be forbidden, got %d", resp.StatusCode)
	}

	resp, body := s.do(t, "POST", "/api/admin/opportunities", input, adminCookie)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, body)
	}
	created := body["tags"].([]interface{})
	if len(created) != 2 {
		t.Errorf("Expected case variants to share a tag, got %v", created)
	}

	resp, body = s.do(t, "GET", "/api/opportunities?tag=AI", nil, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body["count"].(float64) != 1 {
		t.Errorf("Expected 1 opportunity tagged AI, got %v", body["count"])
	}

	resp, body = s.do(t, "POST", "/api/admin/opportunities", map[string]interface{}{"title": "No org", "kind": "job"}, adminCookie)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected validation error, got %d: %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, "GET", "/api/opportunities/does-not-exist", nil, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestBookmarks(t *testing.T) {
	s := setupTestApp(t)
	adminCookie := s.register(t, "admin@example.com")

	_, opp := s.do(t, "POST", "/api/admin/opportunities", map[string]interface{}{
		"title": "Fellowship", "organization": "Acme", "kind": "fellowship",
	}, adminCookie)
	oppID := opp["id"].(string)

	resp, _ := s.do(t, "POST", "/api/bookmarks/"+oppID, nil, nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("Expected anonymous bookmark to be rejected, got %d", resp.StatusCode)
	}

	for i := 0; i < 2; i++ {
		resp, _ = s.do(t, "POST", "/api/bookmarks/"+oppID, nil, adminCookie)
		if resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("Expected 201, got %d", resp.StatusCode)
		}
	}

	resp, _ = s.do(t, "POST", "/api/bookmarks/missing", nil, adminCookie)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404 for unknown opportunity, got %d", resp.StatusCode)
	}

	_, body := s.do(t, "GET", "/api/bookmarks", nil, adminCookie)
	if list := body["bookmarks"].([]interface{}); len(list) != 1 {
		t.Errorf("Expected 1 bookmark, got %d", len(list))
	}

	resp, _ = s.do(t, "DELETE", "/api/bookmarks/"+oppID, nil, adminCookie)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
}

func TestOnboardingAndRecommendations(t *testing.T) {
	s := setupTestApp(t)
	cookie := s.register(t, "admin@example.com")

	s.do(t, "POST", "/api/admin/opportunities", map[string]interface{}{
		"title": "Design Intern", "organization": "Studio", "kind": "internship", "tags": []string{"Design"},
	}, cookie)

	resp, body := s.do(t, "PUT", "/api/onboarding", map[string]interface{}{
		"headline":  "Student",
		"interests": []string{"design", "DESIGN"},
		"completed": true,
	}, cookie)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, body)
	}
	if interests := body["interests"].([]interface{}); len(interests) != 1 {
		t.Errorf("Expected one interest, got %v", interests)
	}

	_, body = s.do(t, "GET", "/api/feed/recommended", nil, cookie)
	if opps := body["opportunities"].([]interface{}); len(opps) != 1 {
		t.Errorf("Expected 1 recommendation, got %d", len(opps))
	}

	resp, _ = s.do(t, "PUT", "/api/onboarding", map[string]interface{}{"graduation_year": 1700}, cookie)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected 400 for bad graduation year, got %d", resp.StatusCode)
	}
}

func TestToolkits(t *testing.T) {
	s := setupTestApp(t)
	cookie := s.register(t, "admin@example.com")

	resp, body := s.do(t, "POST", "/api/admin/toolkits", map[string]interface{}{
		"slug": "resume-kit", "title": "Resume Kit", "price_cents": 900, "dodo_product_id": "prod_1", "published": true,
	}, cookie)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("Expected 201, got %d: %v", resp.StatusCode, body)
	}

	_, body = s.do(t, "GET", "/api/toolkits", nil, nil)
	if list := body["toolkits"].([]interface{}); len(list) != 1 {
		t.Errorf("Expected 1 toolkit, got %d", len(list))
	}
	if body["checkout_enabled"] != false {
		t.Errorf("Expected checkout to be disabled without an API key")
	}

	resp, _ = s.do(t, "POST", "/api/toolkits/resume-kit/checkout", nil, cookie)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503 when payments are off, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, "GET", "/api/toolkits/missing", nil, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func signWebhook(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookHandler(t *testing.T) {
	s := setupTestApp(t)
	payload := []byte(`{"id":"evt_1","type":"payment.failed","data":{"payment_id":"pay_1"}}`)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		expected  int
	}{
		{"missing signature", payload, "", fiber.StatusUnauthorized},
		{"invalid signature", payload, "invalid_signature", fiber.StatusUnauthorized},
		{"empty payload", nil, "", fiber.StatusBadRequest},
		{"missing type", []byte(`{"id":"evt_2"}`), signWebhook([]byte(`{"id":"evt_2"}`)), fiber.StatusBadRequest},
		{"valid", payload, signWebhook(payload), fiber.StatusOK},
		{"duplicate", payload, signWebhook(payload), fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/webhooks/dodo", bytes.NewReader(tt.payload))
			req.Header.Set("Content-Type", "application/json")
			if tt.signature != "" {
				req.Header.Set("Webhook-Signature", tt.signature)
			}

			resp, err := s.app.Test(req, -1)
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			if resp.StatusCode != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, resp.StatusCode)
			}
		})
	}
}

func TestFeedHandler_NotFound(t *testing.T) {
	s := setupTestApp(t)

	resp, body := s.do(t, "GET", "/api/feed", nil, nil)
	if resp.StatusCode != fiber.StatusOK || len(body["posts"].([]interface{})) != 0 {
		t.Errorf("Expected empty feed, got %d %v", resp.StatusCode, body)
	}

	resp, _ = s.do(t, "GET", "/api/feed/missing", nil, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestAdminEndpoints(t *testing.T) {
	s := setupTestApp(t)
	cookie := s.register(t, "admin@example.com")

	resp, body := s.do(t, "POST", "/api/admin/tags/resolve", map[string]interface{}{
		"names": []string{" Go ", "go", "Rust", ""},
	}, cookie)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("Expected 200, got %d: %v", resp.StatusCode, body)
	}
	if ids := body["tag_ids"].([]interface{}); len(ids) != 3 || ids[0] != ids[1] {
		t.Errorf("Expected Go and go to share an id, got %v", ids)
	}

	_, body = s.do(t, "GET", "/api/admin/tags", nil, cookie)
	if body["count"].(float64) != 2 {
		t.Errorf("Expected 2 tags, got %v", body["count"])
	}

	resp, _ = s.do(t, "GET", "/api/admin/export/opportunities", nil, cookie)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "spreadsheetml") {
		t.Errorf("Expected XLSX download, got %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	resp, body = s.do(t, "GET", "/api/admin/stats", nil, cookie)
	if resp.StatusCode != fiber.StatusOK || body["users"].(float64) != 1 {
		t.Errorf("Unexpected stats: %d %v", resp.StatusCode, body)
	}

	_, body = s.do(t, "GET", "/api/admin/jobs", nil, cookie)
	if list := body["jobs"].([]interface{}); len(list) != 1 {
		t.Errorf("Expected 1 job, got %v", list)
	}

	resp, _ = s.do(t, "POST", "/api/admin/jobs/"+jobs.OpportunityExpiryJobName+"/run", nil, cookie)
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected job run to succeed, got %d", resp.StatusCode)
	}
	resp, _ = s.do(t, "POST", "/api/admin/jobs/nope/run", nil, cookie)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", resp.StatusCode)
	}
}

func TestHealthHandler(t *testing.T) {
	s := setupTestApp(t)

	resp, body := s.do(t, "GET", "/health", nil, nil)
	if resp.StatusCode != fiber.StatusOK || body["status"] != "healthy" {
		t.Errorf("Expected healthy, got %d %v", resp.StatusCode, body)
	}

	s.db.Close()
	resp, _ = s.do(t, "GET", "/health", nil, nil)
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("Expected 503 after database closed, got %d", resp.StatusCode)
	}
}
