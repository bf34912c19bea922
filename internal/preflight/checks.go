package preflight

import (
	"fmt"
	"log"
	"os"

	"pathfinder/internal/config"
	"pathfinder/internal/database"
	"pathfinder/internal/jobs"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	db  *database.DB
	cfg *config.Config
}

// NewChecker creates a new preflight checker
func NewChecker(db *database.DB, cfg *config.Config) *Checker {
	return &Checker{db: db, cfg: cfg}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
		c.checkDatabaseSchema(),
		c.checkEnvironmentVariables(),
		c.checkJobSchedules(),
		c.checkContentDirectory(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkDatabaseConnection verifies database connectivity
func (c *Checker) checkDatabaseConnection() CheckResult {
	if err := c.db.Ping(); err != nil {
		return CheckResult{
			Name:    "Database Connection",
			Status:  "fail",
			Message: "Cannot connect to database",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Database Connection",
		Status:  "pass",
		Message: fmt.Sprintf("Database connection successful (%s)", c.db.Dialect),
	}
}

// checkDatabaseSchema verifies all required tables exist
func (c *Checker) checkDatabaseSchema() CheckResult {
	for _, table := range database.RequiredTables {
		exists, err := c.db.TableExists(table)
		if err != nil || !exists {
			return CheckResult{
				Name:    "Database Schema",
				Status:  "fail",
				Message: fmt.Sprintf("Required table '%s' not found", table),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Database Schema",
		Status:  "pass",
		Message: fmt.Sprintf("All %d required tables exist", len(database.RequiredTables)),
	}
}

// checkEnvironmentVariables verifies required settings are present
func (c *Checker) checkEnvironmentVariables() CheckResult {
	if c.cfg.JWTSecret == "" {
		return CheckResult{
			Name:    "Environment Variables",
			Status:  "fail",
			Message: "JWT_SECRET is required to sign sessions",
		}
	}

	if c.cfg.IsProduction() {
		if len(c.cfg.JWTSecret) < 32 {
			return CheckResult{
				Name:    "Environment Variables",
				Status:  "fail",
				Message: "JWT_SECRET must be at least 32 characters in production",
			}
		}
		if !c.cfg.SessionCookieSecure {
			return CheckResult{
				Name:    "Environment Variables",
				Status:  "warning",
				Message: "SESSION_COOKIE_SECURE is off in production",
			}
		}
	}

	if c.cfg.DodoAPIKey != "" && c.cfg.DodoWebhookSecret == "" {
		return CheckResult{
			Name:    "Environment Variables",
			Status:  "warning",
			Message: "DODO_API_KEY is set but DODO_WEBHOOK_SECRET is missing; payment webhooks will be rejected",
		}
	}

	if c.cfg.DodoAPIKey == "" {
		return CheckResult{
			Name:    "Environment Variables",
			Status:  "warning",
			Message: "DodoPayments not configured (toolkit checkout disabled)",
		}
	}

	return CheckResult{
		Name:    "Environment Variables",
		Status:  "pass",
		Message: "All environment variables configured",
	}
}

// checkJobSchedules verifies the configured cron expressions parse
func (c *Checker) checkJobSchedules() CheckResult {
	schedules := map[string]string{
		"JOB_OPPORTUNITY_EXPIRY_CRON": c.cfg.OpportunityExpiryCron,
		"JOB_PURCHASE_CLEANUP_CRON":   c.cfg.PurchaseCleanupCron,
	}

	for name, expr := range schedules {
		if _, err := jobs.ParseCron(expr); err != nil {
			return CheckResult{
				Name:    "Job Schedules",
				Status:  "fail",
				Message: fmt.Sprintf("%s is not a valid cron expression", name),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Job Schedules",
		Status:  "pass",
		Message: fmt.Sprintf("%d job schedules valid", len(schedules)),
	}
}

// checkContentDirectory warns when the feed has nothing to serve
func (c *Checker) checkContentDirectory() CheckResult {
	info, err := os.Stat(c.cfg.ContentDir)
	if err != nil || !info.IsDir() {
		return CheckResult{
			Name:    "Content Directory",
			Status:  "warning",
			Message: fmt.Sprintf("Content directory %s not found (feed will be empty)", c.cfg.ContentDir),
		}
	}

	return CheckResult{
		Name:    "Content Directory",
		Status:  "pass",
		Message: fmt.Sprintf("Serving feed from %s", c.cfg.ContentDir),
	}
}

// QuickCheck runs minimal checks for fast startup
func (c *Checker) QuickCheck() []CheckResult {
	log.Println("⚡ Running quick pre-flight checks...")

	results := []CheckResult{
		c.checkDatabaseConnection(),
	}

	for _, result := range results {
		if result.Status == "pass" {
			log.Printf("   ✅ %s", result.Name)
		} else if result.Status == "fail" {
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
		}
	}

	return results
}
