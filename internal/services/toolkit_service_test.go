package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pathfinder/internal/models"
)

func createToolkit(t *testing.T, env *testEnv, slug string, published bool) *models.Toolkit {
	t.Helper()
	toolkit, err := env.toolkits.Create(context.Background(), models.ToolkitInput{
		Slug:          slug,
		Title:         "Toolkit " + slug,
		PriceCents:    1900,
		DodoProductID: "pdt_" + slug,
		Published:     published,
	})
	if err != nil {
		t.Fatalf("Failed to create toolkit: %v", err)
	}
	return toolkit
}

func TestToolkitService_CreateAndList(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	published := createToolkit(t, env, "resume-kit", true)
	createToolkit(t, env, "draft-kit", false)

	if published.Currency != "USD" {
		t.Errorf("Expected default currency USD, got %s", published.Currency)
	}

	public, err := env.toolkits.List(ctx, "", false)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(public) != 1 || public[0].Slug != "resume-kit" {
		t.Errorf("Expected only the published toolkit, got %+v", public)
	}

	all, err := env.toolkits.List(ctx, "", true)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 toolkits, got %d", len(all))
	}

	if _, err := env.toolkits.Create(ctx, models.ToolkitInput{Slug: "resume-kit", Title: "Dup"}); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("Expected ErrAlreadyExists for duplicate slug, got %v", err)
	}
}

func TestToolkitService_Validation(t *testing.T) {
	env := setupTestEnv(t)

	tests := []struct {
		name string
		in   models.ToolkitInput
	}{
		{"bad slug", models.ToolkitInput{Slug: "Resume Kit!", Title: "x"}},
		{"missing title", models.ToolkitInput{Slug: "kit"}},
		{"negative price", models.ToolkitInput{Slug: "kit", Title: "x", PriceCents: -1}},
		{"bad currency", models.ToolkitInput{Slug: "kit", Title: "x", Currency: "dollars"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.toolkits.Create(context.Background(), tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestToolkitService_UpsertBySlug(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	first, err := env.toolkits.UpsertBySlug(ctx, models.ToolkitInput{Slug: "kit", Title: "Kit", PriceCents: 100})
	if err != nil {
		t.Fatalf("UpsertBySlug failed: %v", err)
	}
	second, err := env.toolkits.UpsertBySlug(ctx, models.ToolkitInput{Slug: "kit", Title: "Kit v2", PriceCents: 200})
	if err != nil {
		t.Fatalf("UpsertBySlug failed: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Expected the same row to be updated, got %s and %s", first.ID, second.ID)
	}
	if second.Title != "Kit v2" || second.PriceCents != 200 {
		t.Errorf("Expected updated fields, got %+v", second)
	}
}

func TestToolkitService_PurchaseLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada@example.com")
	toolkit := createToolkit(t, env, "resume-kit", true)

	if _, err := env.toolkits.CreatePurchase(ctx, user.ID, toolkit.ID, "cks_1"); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	got, err := env.toolkits.GetBySlug(ctx, "resume-kit", user.ID)
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if got.Owned {
		t.Error("Expected pending purchase not to grant ownership")
	}

	n, err := env.toolkits.MarkPaidBySession(ctx, "cks_1", "pay_1")
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 purchase marked paid, got %d (%v)", n, err)
	}

	got, err = env.toolkits.GetBySlug(ctx, "resume-kit", user.ID)
	if err != nil {
		t.Fatalf("GetBySlug failed: %v", err)
	}
	if !got.Owned {
		t.Error("Expected paid purchase to grant ownership")
	}

	// Paid purchases are not paid twice
	n, err = env.toolkits.MarkPaidBySession(ctx, "cks_1", "pay_2")
	if err != nil || n != 0 {
		t.Errorf("Expected no change on second payment, got %d (%v)", n, err)
	}
}

func TestToolkitService_ExpirePending(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	user := env.register(t, "ada@example.com")
	toolkit := createToolkit(t, env, "kit", true)

	if _, err := env.toolkits.CreatePurchase(ctx, user.ID, toolkit.ID, "cks_old"); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}
	old := time.Now().Add(-48 * time.Hour).UTC().Truncate(time.Second)
	if _, err := env.db.Exec("UPDATE purchases SET created_at = ? WHERE checkout_session_id = ?", old, "cks_old"); err != nil {
		t.Fatalf("Failed to age purchase: %v", err)
	}
	if _, err := env.toolkits.CreatePurchase(ctx, user.ID, toolkit.ID, "cks_new"); err != nil {
		t.Fatalf("CreatePurchase failed: %v", err)
	}

	n, err := env.toolkits.ExpirePending(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ExpirePending failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 purchase expired, got %d", n)
	}

	purchases, err := env.toolkits.ListPurchases(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListPurchases failed: %v", err)
	}
	statuses := map[string]string{}
	for _, p := range purchases {
		statuses[p.CheckoutSessionID] = p.Status
	}
	if statuses["cks_old"] != models.PurchaseExpired || statuses["cks_new"] != models.PurchasePending {
		t.Errorf("Unexpected statuses: %v", statuses)
	}
}
