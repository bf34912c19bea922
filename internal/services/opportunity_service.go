package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"
	"pathfinder/internal/tags"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	listCacheTTL     = 30 * time.Second
)

const opportunityColumns = "o.id, o.title, o.organization, o.description, o.location, o.remote, o.kind, o.apply_url, o.deadline, o.status, o.created_by, o.created_at, o.updated_at"

// OpportunityService manages opportunity listings and their tags
type OpportunityService struct {
	db        *database.DB
	resolver  *tags.Resolver
	listCache *cache.Cache
}

// NewOpportunityService creates a new opportunity service
func NewOpportunityService(db *database.DB, resolver *tags.Resolver) *OpportunityService {
	return &OpportunityService{
		db:        db,
		resolver:  resolver,
		listCache: cache.New(listCacheTTL, time.Minute),
	}
}

// Create validates input, resolves its tags and stores a new opportunity
func (s *OpportunityService) Create(ctx context.Context, in models.OpportunityInput, createdBy string) (*models.Opportunity, error) {
	if err := validateOpportunity(&in); err != nil {
		return nil, err
	}

	// Resolve before opening the transaction; the tag store uses its own connection
	resolved, err := s.resolver.ResolveFromNames(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	now := utcNow()
	opp := &models.Opportunity{
		ID:        uuid.New().String(),
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(opp, in)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO opportunities
		(id, title, organization, description, location, remote, kind, apply_url, deadline, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		opp.ID, opp.Title, opp.Organization, opp.Description, opp.Location, opp.Remote, opp.Kind,
		opp.ApplyURL, nullTime(opp.Deadline), opp.Status, opp.CreatedBy, opp.CreatedAt, opp.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert opportunity: %w", err)
	}

	if err := replaceOpportunityTags(ctx, tx, opp.ID, resolved.TagIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit opportunity: %w", err)
	}

	s.listCache.Flush()
	log.Printf("✅ [OPPORTUNITY] Created %s (%s, %d tags)", opp.ID, opp.Kind, len(resolved.TagIDs))

	return s.Get(ctx, opp.ID)
}

// Update replaces an opportunity's fields and tags
func (s *OpportunityService) Update(ctx context.Context, id string, in models.OpportunityInput) (*models.Opportunity, error) {
	if err := validateOpportunity(&in); err != nil {
		return nil, err
	}

	resolved, err := s.resolver.ResolveFromNames(ctx, in.Tags)
	if err != nil {
		return nil, err
	}

	opp := &models.Opportunity{ID: id, UpdatedAt: utcNow()}
	applyInput(opp, in)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// MySQL reports zero affected rows for a no-op update, so check existence first
	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM opportunities WHERE id = ?", id).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to load opportunity: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `UPDATE opportunities SET
		title = ?, organization = ?, description = ?, location = ?, remote = ?, kind = ?,
		apply_url = ?, deadline = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		opp.Title, opp.Organization, opp.Description, opp.Location, opp.Remote, opp.Kind,
		opp.ApplyURL, nullTime(opp.Deadline), opp.Status, opp.UpdatedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update opportunity: %w", err)
	}

	if err := replaceOpportunityTags(ctx, tx, id, resolved.TagIDs); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit opportunity: %w", err)
	}

	s.listCache.Flush()
	return s.Get(ctx, id)
}

// Delete removes an opportunity; its tag links and bookmarks cascade
func (s *OpportunityService) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM opportunities WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete opportunity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.listCache.Flush()
	log.Printf("🗑️  [OPPORTUNITY] Deleted %s", id)
	return nil
}

// Get returns one opportunity with its tags
func (s *OpportunityService) Get(ctx context.Context, id string) (*models.Opportunity, error) {
	opps, err := s.query(ctx, "SELECT "+opportunityColumns+" FROM opportunities o WHERE o.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(opps) == 0 {
		return nil, ErrNotFound
	}
	return &opps[0], nil
}

// List returns opportunities matching filter. Results are cached briefly and
// the cache is flushed on every write.
func (s *OpportunityService) List(ctx context.Context, filter models.OpportunityFilter) ([]models.Opportunity, error) {
	filter = normalizeFilter(filter)
	key := fmt.Sprintf("%+v", filter)
	if cached, found := s.listCache.Get(key); found {
		return copyOpportunities(cached.([]models.Opportunity)), nil
	}

	var where []string
	var args []interface{}

	if filter.Status != "all" {
		where = append(where, "o.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Kind != "" {
		where = append(where, "o.kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		where = append(where, "(LOWER(o.title) LIKE ? OR LOWER(o.organization) LIKE ? OR LOWER(o.description) LIKE ?)")
		args = append(args, like, like, like)
	}
	if filter.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM opportunity_tags ot JOIN tags t ON t.id = ot.tag_id
			WHERE ot.opportunity_id = o.id AND t.name_key = ?)`)
		args = append(args, tags.FoldKey(filter.Tag))
	}

	query := "SELECT " + opportunityColumns + " FROM opportunities o"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY o.deadline IS NULL, o.deadline, o.created_at DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	opps, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	s.listCache.Set(key, copyOpportunities(opps), cache.DefaultExpiration)
	return opps, nil
}

// copyOpportunities keeps callers from mutating a cached page
func copyOpportunities(opps []models.Opportunity) []models.Opportunity {
	out := make([]models.Opportunity, len(opps))
	copy(out, opps)
	for i := range out {
		if out[i].Tags != nil {
			out[i].Tags = append([]models.Tag(nil), out[i].Tags...)
		}
		if out[i].Deadline != nil {
			deadline := *out[i].Deadline
			out[i].Deadline = &deadline
		}
	}
	return out
}

// All returns every opportunity, oldest first
func (s *OpportunityService) All(ctx context.Context) ([]models.Opportunity, error) {
	return s.query(ctx, "SELECT "+opportunityColumns+" FROM opportunities o ORDER BY o.created_at, o.id")
}

// ListByTagIDs returns open opportunities carrying any of tagIDs, newest first
func (s *OpportunityService) ListByTagIDs(ctx context.Context, tagIDs []string, limit int) ([]models.Opportunity, error) {
	if len(tagIDs) == 0 {
		return []models.Opportunity{}, nil
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}

	args := make([]interface{}, 0, len(tagIDs)+2)
	args = append(args, models.OpportunityOpen)
	for _, id := range tagIDs {
		args = append(args, id)
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM opportunities o
		WHERE o.status = ? AND EXISTS (
			SELECT 1 FROM opportunity_tags ot WHERE ot.opportunity_id = o.id AND ot.tag_id IN (%s)
		)
		ORDER BY o.created_at DESC LIMIT ?`, opportunityColumns, database.Placeholders(len(tagIDs)))

	return s.query(ctx, query, args...)
}

// CloseExpired closes open opportunities whose deadline is before now
func (s *OpportunityService) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE opportunities SET status = ?, updated_at = ? WHERE status = ? AND deadline IS NOT NULL AND deadline < ?",
		models.OpportunityClosed, now.UTC().Truncate(time.Second), models.OpportunityOpen, now.UTC().Truncate(time.Second),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to close expired opportunities: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.listCache.Flush()
	}
	return n, nil
}

// ListCacheSize returns the number of cached list pages
func (s *OpportunityService) ListCacheSize() int {
	return s.listCache.ItemCount()
}

func (s *OpportunityService) query(ctx context.Context, query string, args ...interface{}) ([]models.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query opportunities: %w", err)
	}

	opps := []models.Opportunity{}
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		opps = append(opps, *opp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.attachTags(ctx, opps); err != nil {
		return nil, err
	}
	return opps, nil
}

func (s *OpportunityService) attachTags(ctx context.Context, opps []models.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}

	byID := make(map[string]*models.Opportunity, len(opps))
	args := make([]interface{}, len(opps))
	for i := range opps {
		opps[i].Tags = []models.Tag{}
		byID[opps[i].ID] = &opps[i]
		args[i] = opps[i].ID
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT ot.opportunity_id, t.id, t.name, t.created_at
		FROM opportunity_tags ot JOIN tags t ON t.id = ot.tag_id
		WHERE ot.opportunity_id IN (%s)
		ORDER BY ot.opportunity_id, ot.position`, database.Placeholders(len(opps))), args...)
	if err != nil {
		return fmt.Errorf("failed to load opportunity tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var oppID string
		var tag models.Tag
		if err := rows.Scan(&oppID, &tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan opportunity tag: %w", err)
		}
		if opp, ok := byID[oppID]; ok {
			opp.Tags = append(opp.Tags, tag)
		}
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	var opp models.Opportunity
	var deadline sql.NullTime
	err := row.Scan(
		&opp.ID, &opp.Title, &opp.Organization, &opp.Description, &opp.Location, &opp.Remote,
		&opp.Kind, &opp.ApplyURL, &deadline, &opp.Status, &opp.CreatedBy, &opp.CreatedAt, &opp.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan opportunity: %w", err)
	}
	if deadline.Valid {
		opp.Deadline = &deadline.Time
	}
	return &opp, nil
}

// replaceOpportunityTags rewrites the tag links in resolved order. Case
// variants share an id, so repeated ids are linked once.
func replaceOpportunityTags(ctx context.Context, tx *sql.Tx, opportunityID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM opportunity_tags WHERE opportunity_id = ?", opportunityID); err != nil {
		return fmt.Errorf("failed to clear opportunity tags: %w", err)
	}

	for i, tagID := range uniqueIDs(tagIDs) {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO opportunity_tags (opportunity_id, tag_id, position) VALUES (?, ?, ?)",
			opportunityID, tagID, i,
		); err != nil {
			return fmt.Errorf("failed to link tag: %w", err)
		}
	}
	return nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func validateOpportunity(in *models.OpportunityInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Organization = strings.TrimSpace(in.Organization)
	in.Kind = strings.ToLower(strings.TrimSpace(in.Kind))
	in.ApplyURL = strings.TrimSpace(in.ApplyURL)

	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.Organization == "" {
		return fmt.Errorf("%w: organization is required", ErrInvalidInput)
	}
	if !models.IsValidKind(in.Kind) {
		return fmt.Errorf("%w: kind must be one of %s", ErrInvalidInput, strings.Join(models.ValidKinds, ", "))
	}
	if in.Status == "" {
		in.Status = models.OpportunityOpen
	}
	if in.Status != models.OpportunityOpen && in.Status != models.OpportunityClosed {
		return fmt.Errorf("%w: status must be open or closed", ErrInvalidInput)
	}
	if in.ApplyURL != "" {
		u, err := url.Parse(in.ApplyURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: apply_url must be an http(s) URL", ErrInvalidInput)
		}
	}
	return nil
}

func applyInput(opp *models.Opportunity, in models.OpportunityInput) {
	opp.Title = in.Title
	opp.Organization = in.Organization
	opp.Description = in.Description
	opp.Location = in.Location
	opp.Remote = in.Remote
	opp.Kind = in.Kind
	opp.ApplyURL = in.ApplyURL
	opp.Status = in.Status
	if in.Deadline != nil {
		d := in.Deadline.UTC().Truncate(time.Second)
		opp.Deadline = &d
	}
}

func normalizeFilter(f models.OpportunityFilter) models.OpportunityFilter {
	f.Tag = strings.TrimSpace(f.Tag)
	f.Kind = strings.ToLower(strings.TrimSpace(f.Kind))
	f.Query = strings.TrimSpace(f.Query)
	if f.Status == "" {
		f.Status = models.OpportunityOpen
	}
	if f.Limit <= 0 || f.Limit > maxListLimit {
		f.Limit = defaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Truncate(time.Second)
}
