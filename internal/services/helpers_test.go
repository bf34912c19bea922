package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"
	"pathfinder/internal/tags"
	"pathfinder/pkg/auth"
)

type testEnv struct {
	db            *database.DB
	auth          *auth.LocalJWTAuth
	users         *UserService
	opportunities *OpportunityService
	toolkits      *ToolkitService
	resolver      *tags.Resolver
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	jwtAuth, err := auth.NewLocalJWTAuth("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("Failed to create auth: %v", err)
	}

	resolver := tags.NewResolver(tags.NewSQLStore(db))

	return &testEnv{
		db:            db,
		auth:          jwtAuth,
		users:         NewUserService(db, jwtAuth),
		opportunities: NewOpportunityService(db, resolver),
		toolkits:      NewToolkitService(db),
		resolver:      resolver,
	}
}

func (e *testEnv) register(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), models.RegisterRequest{Email: email, Password: "pathfinder2026"})
	if err != nil {
		t.Fatalf("Failed to register %s: %v", email, err)
	}
	return user
}

func (e *testEnv) createOpportunity(t *testing.T, title string, tagNames ...string) *models.Opportunity {
	t.Helper()
	opp, err := e.opportunities.Create(context.Background(), models.OpportunityInput{
		Title:        title,
		Organization: "Acme",
		Kind:         models.KindInternship,
		Tags:         tagNames,
	}, "")
	if err != nil {
		t.Fatalf("Failed to create opportunity %q: %v", title, err)
	}
	return opp
}

func tagNamesOf(list []models.Tag) []string {
	names := make([]string, len(list))
	for i, tag := range list {
		names[i] = tag.Name
	}
	return names
}
