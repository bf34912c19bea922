package services

import (
	"context"
	"errors"
	"testing"
)

func TestBookmarkService(t *testing.T) {
	env := setupTestEnv(t)
	bookmarks := NewBookmarkService(env.db, env.opportunities)
	user := env.register(t, "ada@example.com")
	opp := env.createOpportunity(t, "Intern", "Go")
	ctx := context.Background()

	if err := bookmarks.Add(ctx, user.ID, opp.ID); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Adding twice is a no-op
	if err := bookmarks.Add(ctx, user.ID, opp.ID); err != nil {
		t.Fatalf("Second add failed: %v", err)
	}

	list, err := bookmarks.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 bookmark, got %d", len(list))
	}
	if list[0].Opportunity == nil || list[0].Opportunity.Title != "Intern" {
		t.Errorf("Expected bookmark to include its opportunity, got %+v", list[0].Opportunity)
	}

	if err := bookmarks.Add(ctx, user.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown opportunity, got %v", err)
	}

	if err := bookmarks.Remove(ctx, user.ID, opp.ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := bookmarks.Remove(ctx, user.ID, opp.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second remove, got %v", err)
	}
}

func TestBookmarkService_CascadeOnOpportunityDelete(t *testing.T) {
	env := setupTestEnv(t)
	bookmarks := NewBookmarkService(env.db, env.opportunities)
	user := env.register(t, "ada@example.com")
	opp := env.createOpportunity(t, "Intern")
	ctx := context.Background()

	if err := bookmarks.Add(ctx, user.ID, opp.ID); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := env.opportunities.Delete(ctx, opp.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	list, err := bookmarks.List(ctx, user.ID)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("Expected bookmarks to cascade, got %d", len(list))
	}
}
