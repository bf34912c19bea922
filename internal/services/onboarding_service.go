package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"
	"pathfinder/internal/tags"
)

// OnboardingService stores onboarding answers and interest tags
type OnboardingService struct {
	db            *database.DB
	resolver      *tags.Resolver
	opportunities *OpportunityService
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(db *database.DB, resolver *tags.Resolver, opportunities *OpportunityService) *OnboardingService {
	return &OnboardingService{db: db, resolver: resolver, opportunities: opportunities}
}

// Get returns the user's profile; users who never saved one get an empty profile
func (s *OnboardingService) Get(ctx context.Context, userID string) (*models.OnboardingProfile, error) {
	profile := &models.OnboardingProfile{UserID: userID, Interests: []models.Tag{}}

	err := s.db.QueryRowContext(ctx,
		"SELECT headline, school, graduation_year, completed, updated_at FROM onboarding_profiles WHERE user_id = ?",
		userID,
	).Scan(&profile.Headline, &profile.School, &profile.GraduationYear, &profile.Completed, &profile.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return profile, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load onboarding profile: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT t.id, t.name, t.created_at
		FROM profile_interests pi JOIN tags t ON t.id = pi.tag_id
		WHERE pi.user_id = ? ORDER BY pi.position`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load interests: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interest: %w", err)
		}
		profile.Interests = append(profile.Interests, tag)
	}
	return profile, rows.Err()
}

// Update applies the fields present in req. Interests, when given, replace
// the stored list and are created as tags if new.
func (s *OnboardingService) Update(ctx context.Context, userID string, req models.UpdateOnboardingRequest) (*models.OnboardingProfile, error) {
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Headline != nil {
		current.Headline = strings.TrimSpace(*req.Headline)
	}
	if req.School != nil {
		current.School = strings.TrimSpace(*req.School)
	}
	if req.GraduationYear != nil {
		year := *req.GraduationYear
		if year != 0 && (year < 1950 || year > time.Now().Year()+10) {
			return nil, fmt.Errorf("%w: graduation_year out of range", ErrInvalidInput)
		}
		current.GraduationYear = year
	}
	if req.Completed != nil {
		current.Completed = *req.Completed
	}

	var interestIDs []string
	if req.Interests != nil {
		interestIDs, err = s.resolver.UpsertAndGetIDs(ctx, req.Interests)
		if err != nil {
			return nil, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO onboarding_profiles (user_id, headline, school, graduation_year, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			headline = excluded.headline, school = excluded.school, graduation_year = excluded.graduation_year,
			completed = excluded.completed, updated_at = excluded.updated_at`
	if s.db.Dialect == database.DialectMySQL {
		upsert = `INSERT INTO onboarding_profiles (user_id, headline, school, graduation_year, completed, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			headline = VALUES(headline), school = VALUES(school), graduation_year = VALUES(graduation_year),
			completed = VALUES(completed), updated_at = VALUES(updated_at)`
	}
	if _, err := tx.ExecContext(ctx, upsert,
		userID, current.Headline, current.School, current.GraduationYear, current.Completed, utcNow(),
	); err != nil {
		return nil, fmt.Errorf("failed to save onboarding profile: %w", err)
	}

	if req.Interests != nil {
		if _, err := tx.ExecContext(ctx, "DELETE FROM profile_interests WHERE user_id = ?", userID); err != nil {
			return nil, fmt.Errorf("failed to clear interests: %w", err)
		}
		for i, tagID := range uniqueIDs(interestIDs) {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO profile_interests (user_id, tag_id, position) VALUES (?, ?, ?)",
				userID, tagID, i,
			); err != nil {
				return nil, fmt.Errorf("failed to save interest: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit onboarding profile: %w", err)
	}

	return s.Get(ctx, userID)
}

// Recommended lists open opportunities sharing a tag with the user's interests
func (s *OnboardingService) Recommended(ctx context.Context, userID string, limit int) ([]models.Opportunity, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(profile.Interests))
	for i, tag := range profile.Interests {
		ids[i] = tag.ID
	}
	return s.opportunities.ListByTagIDs(ctx, ids, limit)
}
