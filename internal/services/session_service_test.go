package services

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pathfinder/internal/models"
	"pathfinder/internal/sessioncache"
)

func newTestSessionService(env *testEnv) *SessionService {
	return NewSessionService(env.auth, env.users, NewRevocationList(nil), "pf_session")
}

func cookieHeaders(name, value string) http.Header {
	h := http.Header{}
	h.Set("Cookie", name+"="+value)
	return h
}

func TestSessionService_Lookup(t *testing.T) {
	env := setupTestEnv(t)
	sessions := newTestSessionService(env)
	user := env.register(t, "ada@example.com")
	ctx := context.Background()

	token, issued, err := sessions.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	session, err := sessions.Lookup(ctx, cookieHeaders("pf_session", token))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if session == nil || session.UserID != user.ID {
		t.Fatalf("Expected session for %s, got %+v", user.ID, session)
	}
	if session.Role != models.RoleAdmin {
		t.Errorf("Expected admin role, got %s", session.Role)
	}
	if session.TokenID != issued.TokenID {
		t.Errorf("Expected token id %s, got %s", issued.TokenID, session.TokenID)
	}

	bearer := http.Header{}
	bearer.Set("Authorization", "Bearer "+token)
	session, err = sessions.Lookup(ctx, bearer)
	if err != nil || session == nil {
		t.Errorf("Expected bearer token to resolve, got %+v, %v", session, err)
	}
}

func TestSessionService_LookupWithoutValidCredentials(t *testing.T) {
	env := setupTestEnv(t)
	sessions := newTestSessionService(env)
	ctx := context.Background()

	tests := []struct {
		name    string
		headers http.Header
	}{
		{"no headers", http.Header{}},
		{"other cookie", cookieHeaders("theme", "dark")},
		{"garbage token", cookieHeaders("pf_session", "garbage")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := sessions.Lookup(ctx, tt.headers)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if session != nil {
				t.Errorf("Expected no session, got %+v", session)
			}
		})
	}
}

func TestSessionService_RevokedTokenHasNoSession(t *testing.T) {
	env := setupTestEnv(t)
	sessions := newTestSessionService(env)
	user := env.register(t, "ada@example.com")
	ctx := context.Background()

	token, session, err := sessions.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := sessions.Revoke(ctx, session); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	got, err := sessions.Lookup(ctx, cookieHeaders("pf_session", token))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if got != nil {
		t.Errorf("Expected revoked token to have no session, got %+v", got)
	}
}

func TestSessionService_DeletedUserHasNoSession(t *testing.T) {
	env := setupTestEnv(t)
	sessions := newTestSessionService(env)
	user := env.register(t, "ada@example.com")

	token, _, err := sessions.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := env.db.Exec("DELETE FROM users WHERE id = ?", user.ID); err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}

	got, err := sessions.Lookup(context.Background(), cookieHeaders("pf_session", token))
	if err != nil || got != nil {
		t.Errorf("Expected no session and no error, got %+v, %v", got, err)
	}
}

func TestRevocationList_Local(t *testing.T) {
	list := NewRevocationList(nil)
	ctx := context.Background()

	if err := list.Revoke(ctx, "jti-1", time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	// Already-expired tokens need no record
	if err := list.Revoke(ctx, "jti-2", -time.Second); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	tests := []struct {
		id       string
		expected bool
	}{
		{"jti-1", true},
		{"jti-2", false},
		{"jti-3", false},
	}
	for _, tt := range tests {
		revoked, err := list.IsRevoked(ctx, tt.id)
		if err != nil {
			t.Fatalf("IsRevoked failed: %v", err)
		}
		if revoked != tt.expected {
			t.Errorf("IsRevoked(%s): expected %v, got %v", tt.id, tt.expected, revoked)
		}
	}
}

func TestSessionService_BehindCacheLooksUpOnce(t *testing.T) {
	env := setupTestEnv(t)
	sessions := newTestSessionService(env)
	user := env.register(t, "ada@example.com")

	token, _, err := sessions.Issue(user)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	var calls int64
	cache := sessioncache.New(func(ctx context.Context, headers http.Header) (*models.Session, error) {
		atomic.AddInt64(&calls, 1)
		return sessions.Lookup(ctx, headers)
	})

	headers := cookieHeaders("pf_session", token)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := cache.Get(context.Background(), headers)
			if err != nil || session == nil || session.UserID != user.ID {
				t.Errorf("Expected session for %s, got %+v, %v", user.ID, session, err)
			}
		}()
	}
	wg.Wait()

	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Errorf("Expected exactly one backing lookup, got %d", n)
	}
}
