package services

import (
	"context"
	"fmt"

	"pathfinder/internal/database"
	"pathfinder/internal/models"
)

// BookmarkService stores the opportunities a user saved
type BookmarkService struct {
	db            *database.DB
	opportunities *OpportunityService
}

// NewBookmarkService creates a new bookmark service
func NewBookmarkService(db *database.DB, opportunities *OpportunityService) *BookmarkService {
	return &BookmarkService{db: db, opportunities: opportunities}
}

// Add bookmarks an opportunity. Adding twice is a no-op.
func (s *BookmarkService) Add(ctx context.Context, userID, opportunityID string) error {
	if _, err := s.opportunities.Get(ctx, opportunityID); err != nil {
		return err
	}

	query := "INSERT INTO bookmarks (user_id, opportunity_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING"
	if s.db.Dialect == database.DialectMySQL {
		query = "INSERT IGNORE INTO bookmarks (user_id, opportunity_id, created_at) VALUES (?, ?, ?)"
	}
	if _, err := s.db.ExecContext(ctx, query, userID, opportunityID, utcNow()); err != nil {
		return fmt.Errorf("failed to add bookmark: %w", err)
	}
	return nil
}

// Remove deletes a bookmark
func (s *BookmarkService) Remove(ctx context.Context, userID, opportunityID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE user_id = ? AND opportunity_id = ?", userID, opportunityID)
	if err != nil {
		return fmt.Errorf("failed to remove bookmark: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the user's bookmarks, newest first, with their opportunities
func (s *BookmarkService) List(ctx context.Context, userID string) ([]models.Bookmark, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, opportunity_id, created_at FROM bookmarks WHERE user_id = ? ORDER BY created_at DESC, opportunity_id",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	bookmarks := []models.Bookmark{}
	for rows.Next() {
		var b models.Bookmark
		if err := rows.Scan(&b.UserID, &b.OpportunityID, &b.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan bookmark: %w", err)
		}
		bookmarks = append(bookmarks, b)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	for i := range bookmarks {
		opp, err := s.opportunities.Get(ctx, bookmarks[i].OpportunityID)
		if err != nil {
			return nil, err
		}
		bookmarks[i].Opportunity = opp
	}
	return bookmarks, nil
}
