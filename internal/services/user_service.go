package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"
	"pathfinder/pkg/auth"

	"github.com/google/uuid"
)

// UserService handles local accounts
type UserService struct {
	db   *database.DB
	auth *auth.LocalJWTAuth
}

// NewUserService creates a new user service
func NewUserService(db *database.DB, jwtAuth *auth.LocalJWTAuth) *UserService {
	return &UserService{db: db, auth: jwtAuth}
}

const userColumns = "id, email, password_hash, role, dodo_customer_id, created_at, last_login_at"

// utcNow is the timestamp written to every row. Second precision keeps
// SQLite's text timestamps comparable.
func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// Register creates an account. The first account ever created is an admin.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    utcNow(),
	}
	if count == 0 {
		user.Role = models.RoleAdmin
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, role, dodo_customer_id, created_at) VALUES (?, ?, ?, ?, '', ?)",
		user.ID, user.Email, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("email %w", ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user: %w", err)
	}

	log.Printf("✅ [USER] Registered %s (role=%s)", user.ID, user.Role)
	return user, nil
}

// Authenticate checks credentials and records the login time
func (s *UserService) Authenticate(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := s.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		log.Printf("⚠️  [USER] Unreadable password hash for %s: %v", user.ID, err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	now := utcNow()
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET last_login_at = ? WHERE id = ?", now, user.ID); err != nil {
		log.Printf("⚠️  [USER] Failed to record login for %s: %v", user.ID, err)
	} else {
		user.LastLoginAt = &now
	}

	return user, nil
}

// GetByID returns a user by id
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// GetByEmail returns a user by normalized email
func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", email)
}

// GetByDodoCustomerID returns the user linked to a payment customer
func (s *UserService) GetByDodoCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	return s.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE dodo_customer_id = ?", customerID)
}

// SetDodoCustomerID links a user to a payment customer
func (s *UserService) SetDodoCustomerID(ctx context.Context, userID, customerID string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET dodo_customer_id = ? WHERE id = ?", customerID, userID)
	if err != nil {
		return fmt.Errorf("failed to update customer id: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of registered users
func (s *UserService) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

func (s *UserService) getOne(ctx context.Context, query string, args ...interface{}) (*models.User, error) {
	var user models.User
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.DodoCustomerID, &user.CreatedAt, &lastLogin,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return &user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	return email, nil
}
