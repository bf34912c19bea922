package models

import "time"

// Session is the resolved identity behind a request's credentials
type Session struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsAdmin reports whether the session belongs to an admin user
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
