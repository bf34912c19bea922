package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"pathfinder/internal/models"
	"pathfinder/pkg/auth"

	"github.com/patrickmn/go-cache"
)

const revokedKeyPrefix = "revoked:"

// RevocationList records logged-out token ids until they would have expired
// anyway. Redis is used when configured so every instance sees a logout;
// otherwise revocations live in process memory.
type RevocationList struct {
	redis *RedisService
	local *cache.Cache
}

// NewRevocationList creates a revocation list; redis may be nil
func NewRevocationList(redis *RedisService) *RevocationList {
	return &RevocationList{
		redis: redis,
		local: cache.New(time.Hour, 10*time.Minute),
	}
}

// Revoke marks tokenID revoked for ttl
func (r *RevocationList) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if r.redis.Available() {
		return r.redis.Set(ctx, revokedKeyPrefix+tokenID, "1", ttl)
	}
	r.local.Set(tokenID, struct{}{}, ttl)
	return nil
}

// IsRevoked reports whether tokenID has been revoked
func (r *RevocationList) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if r.redis.Available() {
		return r.redis.Exists(ctx, revokedKeyPrefix+tokenID)
	}
	_, found := r.local.Get(tokenID)
	return found, nil
}

// SessionService turns request credentials into a session
type SessionService struct {
	auth        *auth.LocalJWTAuth
	users       *UserService
	revocations *RevocationList
	cookieName  string
}

// NewSessionService creates a session service
func NewSessionService(jwtAuth *auth.LocalJWTAuth, users *UserService, revocations *RevocationList, cookieName string) *SessionService {
	return &SessionService{
		auth:        jwtAuth,
		users:       users,
		revocations: revocations,
		cookieName:  cookieName,
	}
}

// CookieName is the cookie carrying the session token
func (s *SessionService) CookieName() string {
	return s.cookieName
}

// Lookup resolves headers to a session. Missing, invalid, expired or revoked
// credentials give a nil session and nil error; errors are reserved for
// backing-store failures so they are never cached as "no session".
func (s *SessionService) Lookup(ctx context.Context, headers http.Header) (*models.Session, error) {
	start := time.Now()
	defer func() { GetMetrics().RecordSessionLookup(time.Since(start).Seconds()) }()

	token := s.tokenFromHeaders(headers)
	if token == "" {
		return nil, nil
	}

	claims, err := s.auth.VerifySession(token)
	if err != nil {
		return nil, nil
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token revocation: %w", err)
	}
	if revoked {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		TokenID: claims.TokenID,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Issue signs a session token for user
func (s *SessionService) Issue(user *models.User) (string, *models.Session, error) {
	token, claims, err := s.auth.IssueSession(user.ID, user.Email, user.Role)
	if err != nil {
		return "", nil, err
	}
	return token, &models.Session{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenID:   claims.TokenID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the session's token for the rest of its lifetime
func (s *SessionService) Revoke(ctx context.Context, session *models.Session) error {
	if session == nil || session.TokenID == "" {
		return nil
	}
	if err := s.revocations.Revoke(ctx, session.TokenID, time.Until(session.ExpiresAt)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	log.Printf("🔒 [SESSION] Revoked session for user %s", session.UserID)
	return nil
}

func (s *SessionService) tokenFromHeaders(headers http.Header) string {
	req := http.Request{Header: headers}
	if cookie, err := req.Cookie(s.cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, err := auth.ExtractToken(headers.Get("Authorization")); err == nil {
		return token
	}
	return ""
}
