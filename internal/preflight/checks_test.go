package preflight

import (
	"path/filepath"
	"testing"

	"pathfinder/internal/config"
	"pathfinder/internal/database"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Environment:           "development",
		JWTSecret:             "test-secret",
		ContentDir:            t.TempDir(),
		OpportunityExpiryCron: "*/15 * * * *",
		PurchaseCleanupCron:   "0 * * * *",
	}
}

func setupPreflightTest(t *testing.T) (*database.DB, func()) {
	db, err := database.New(filepath.Join(t.TempDir(), "preflight.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}

	return db, func() { db.Close() }
}

func TestNewChecker(t *testing.T) {
	db, cleanup := setupPreflightTest(t)
	defer cleanup()

	cfg := testConfig(t)
	checker := NewChecker(db, cfg)
	if checker == nil {
		t.Fatal("Expected non-nil checker")
	}
	if checker.db != db || checker.cfg != cfg {
		t.Error("Checker dependencies not set correctly")
	}
}

func TestCheckDatabaseConnection_Success(t *testing.T) {
	db, cleanup := setupPreflightTest(t)
	defer cleanup()

	result := NewChecker(db, testConfig(t)).checkDatabaseConnection()

	if result.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s'", result.Status)
	}
	if result.Name != "Database Connection" {
		t.Errorf("Expected name 'Database Connection', got '%s'", result.Name)
	}
}

func TestCheckDatabaseConnection_Failure(t *testing.T) {
	db, cleanup := setupPreflightTest(t)
	cleanup() // Close database immediately to simulate failure

	result := NewChecker(db, testConfig(t)).checkDatabaseConnection()

	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}
	if result.Error == nil {
		t.Error("Expected error to be set")
	}
}

func TestCheckDatabaseSchema_Success(t *testing.T) {
	db, cleanup := setupPreflightTest(t)
	defer cleanup()

	result := NewChecker(db, testConfig(t)).checkDatabaseSchema()

	if result.Status != "pass" {
		t.Errorf("Expected status 'pass', got '%s': %s", result.Status, result.Message)
	}
}

func TestCheckDatabaseSchema_MissingTable(t *testing.T) {
	db, err := database.New(filepath.Join(t.TempDir(), "incomplete.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	defer db.Close()

	// Don't initialize - tables won't exist
	result := NewChecker(db, testConfig(t)).checkDatabaseSchema()

	if result.Status != "fail" {
		t.Errorf("Expected status 'fail', got '%s'", result.Status)
	}
}

func TestCheckEnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(cfg *config.Config)
		expected string
	}{
		{"missing jwt secret", func(cfg *config.Config) { cfg.JWTSecret = "" }, "fail"},
		{"short secret in production", func(cfg *config.Config) { cfg.Environment = "production" }, "fail"},
		{"insecure cookie in production", func(cfg *config.Config) {
			cfg.Environment = "production"
			cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
		}, "warning"},
		{"payments without webhook secret", func(cfg *config.Config) { cfg.DodoAPIKey = "key" }, "warning"},
		{"payments disabled", func(cfg *config.Config) {}, "warning"},
		{"fully configured", func(cfg *config.Config) {
			cfg.DodoAPIKey = "key"
			cfg.DodoWebhookSecret = "whsec"
		}, "pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			result := (&Checker{cfg: cfg}).checkEnvironmentVariables()
			if result.Status != tt.expected {
				t.Errorf("Expected status '%s', got '%s': %s", tt.expected, result.Status, result.Message)
			}
		})
	}
}

func TestCheckJobSchedules(t *testing.T) {
	cfg := testConfig(t)
	if result := (&Checker{cfg: cfg}).checkJobSchedules(); result.Status != "pass" {
		t.Errorf("Expected default schedules to pass, got '%s': %s", result.Status, result.Message)
	}

	cfg.PurchaseCleanupCron = "hourly please"
	if result := (&Checker{cfg: cfg}).checkJobSchedules(); result.Status != "fail" {
		t.Errorf("Expected invalid cron to fail, got '%s'", result.Status)
	}
}

func TestCheckContentDirectory(t *testing.T) {
	cfg := testConfig(t)
	if result := (&Checker{cfg: cfg}).checkContentDirectory(); result.Status != "pass" {
		t.Errorf("Expected existing directory to pass, got '%s'", result.Status)
	}

	cfg.ContentDir = filepath.Join(cfg.ContentDir, "missing")
	if result := (&Checker{cfg: cfg}).checkContentDirectory(); result.Status != "warning" {
		t.Errorf("Expected missing directory to warn, got '%s'", result.Status)
	}
}

func TestRunAll(t *testing.T) {
	db, cleanup := setupPreflightTest(t)
	defer cleanup()

	results := NewChecker(db, testConfig(t)).RunAll()

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	if HasFailures(results) {
		for _, r := range results {
			t.Logf("%s: %s (%s)", r.Name, r.Status, r.Message)
		}
		t.Error("Expected no failures on an initialized database")
	}
}

func TestHasFailures(t *testing.T) {
	results := []CheckResult{
		{Status: "pass"},
		{Status: "pass"},
		{Status: "warning"},
	}

	if HasFailures(results) {
		t.Error("Expected no failures")
	}

	results = append(results, CheckResult{Status: "fail"})

	if !HasFailures(results) {
		t.Error("Expected failures to be detected")
	}
}

func TestQuickCheck(t *testing.T) {
	db, cleanup := setupPreflightTest(t)
	defer cleanup()

	checker := NewChecker(db, testConfig(t))
	results := checker.QuickCheck()

	if len(results) == 0 {
		t.Error("Expected results from quick check")
	}

	fullResults := checker.RunAll()
	if len(results) >= len(fullResults) {
		t.Error("Expected quick check to run fewer checks than full check")
	}
}
