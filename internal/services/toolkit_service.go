package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const toolkitColumns = "t.id, t.slug, t.title, t.description, t.price_cents, t.currency, t.dodo_product_id, t.published, t.created_at, t.updated_at"

// ToolkitService manages paid toolkits and the purchases made for them
type ToolkitService struct {
	db *database.DB
}

// NewToolkitService creates a new toolkit service
func NewToolkitService(db *database.DB) *ToolkitService {
	return &ToolkitService{db: db}
}

// Create stores a new toolkit
func (s *ToolkitService) Create(ctx context.Context, in models.ToolkitInput) (*models.Toolkit, error) {
	if err := validateToolkit(&in); err != nil {
		return nil, err
	}

	now := utcNow()
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, `INSERT INTO toolkits
		(id, slug, title, description, price_cents, currency, dodo_product_id, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, in.Slug, in.Title, in.Description, in.PriceCents, in.Currency, in.DodoProductID, in.Published, now, now,
	)
	if database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("toolkit slug %w", ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create toolkit: %w", err)
	}

	log.Printf("✅ [TOOLKIT] Created %s (%s)", in.Slug, id)
	return s.GetByID(ctx, id)
}

// Update replaces a toolkit's fields
func (s *ToolkitService) Update(ctx context.Context, id string, in models.ToolkitInput) (*models.Toolkit, error) {
	if err := validateToolkit(&in); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `UPDATE toolkits SET
		slug = ?, title = ?, description = ?, price_cents = ?, currency = ?, dodo_product_id = ?, published = ?, updated_at = ?
		WHERE id = ?`,
		in.Slug, in.Title, in.Description, in.PriceCents, in.Currency, in.DodoProductID, in.Published, utcNow(), id,
	)
	if database.IsUniqueViolation(err) {
		return nil, fmt.Errorf("toolkit slug %w", ErrAlreadyExists)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update toolkit: %w", err)
	}
	return s.GetByID(ctx, id)
}

// UpsertBySlug creates the toolkit or overwrites the one with the same slug
func (s *ToolkitService) UpsertBySlug(ctx context.Context, in models.ToolkitInput) (*models.Toolkit, error) {
	if err := validateToolkit(&in); err != nil {
		return nil, err
	}

	now := utcNow()
	query := `INSERT INTO toolkits
		(id, slug, title, description, price_cents, currency, dodo_product_id, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO UPDATE SET
			title = excluded.title, description = excluded.description, price_cents = excluded.price_cents,
			currency = excluded.currency, dodo_product_id = excluded.dodo_product_id,
			published = excluded.published, updated_at = excluded.updated_at`
	if s.db.Dialect == database.DialectMySQL {
		query = `INSERT INTO toolkits
		(id, slug, title, description, price_cents, currency, dodo_product_id, published, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title), description = VALUES(description), price_cents = VALUES(price_cents),
			currency = VALUES(currency), dodo_product_id = VALUES(dodo_product_id),
			published = VALUES(published), updated_at = VALUES(updated_at)`
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.New().String(), in.Slug, in.Title, in.Description, in.PriceCents, in.Currency, in.DodoProductID, in.Published, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert toolkit: %w", err)
	}
	return s.GetBySlug(ctx, in.Slug, "")
}

// List returns toolkits ordered by title. Unpublished toolkits are included
// only when includeUnpublished is set. Owned is computed for userID.
func (s *ToolkitService) List(ctx context.Context, userID string, includeUnpublished bool) ([]models.Toolkit, error) {
	query := "SELECT " + toolkitColumns + ", " + ownedExpr + " FROM toolkits t"
	if !includeUnpublished {
		query += " WHERE t.published = ?"
	}
	query += " ORDER BY t.title"

	args := []interface{}{userID, models.PurchasePaid}
	if !includeUnpublished {
		args = append(args, true)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list toolkits: %w", err)
	}
	defer rows.Close()

	toolkits := []models.Toolkit{}
	for rows.Next() {
		t, err := scanToolkit(rows, true)
		if err != nil {
			return nil, err
		}
		toolkits = append(toolkits, *t)
	}
	return toolkits, rows.Err()
}

// GetBySlug returns a toolkit with Owned computed for userID
func (s *ToolkitService) GetBySlug(ctx context.Context, slug, userID string) (*models.Toolkit, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+toolkitColumns+", "+ownedExpr+" FROM toolkits t WHERE t.slug = ?",
		userID, models.PurchasePaid, slug,
	)
	return scanToolkit(row, true)
}

// GetByID returns a toolkit by id
func (s *ToolkitService) GetByID(ctx context.Context, id string) (*models.Toolkit, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+toolkitColumns+" FROM toolkits t WHERE t.id = ?", id)
	return scanToolkit(row, false)
}

const ownedExpr = "EXISTS (SELECT 1 FROM purchases p WHERE p.toolkit_id = t.id AND p.user_id = ? AND p.status = ?)"

func scanToolkit(row rowScanner, withOwned bool) (*models.Toolkit, error) {
	var t models.Toolkit
	dest := []interface{}{
		&t.ID, &t.Slug, &t.Title, &t.Description, &t.PriceCents, &t.Currency,
		&t.DodoProductID, &t.Published, &t.CreatedAt, &t.UpdatedAt,
	}
	if withOwned {
		dest = append(dest, &t.Owned)
	}
	err := row.Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan toolkit: %w", err)
	}
	return &t, nil
}

// CreatePurchase records a pending purchase for a checkout session
func (s *ToolkitService) CreatePurchase(ctx context.Context, userID, toolkitID, checkoutSessionID string) (*models.Purchase, error) {
	now := utcNow()
	p := &models.Purchase{
		ID:                uuid.New().String(),
		UserID:            userID,
		ToolkitID:         toolkitID,
		CheckoutSessionID: checkoutSessionID,
		Status:            models.PurchasePending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO purchases
		(id, user_id, toolkit_id, checkout_session_id, status, payment_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		p.ID, p.UserID, p.ToolkitID, p.CheckoutSessionID, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}
	return p, nil
}

// ListPurchases returns the user's purchases, newest first
func (s *ToolkitService) ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, toolkit_id, checkout_session_id, status, payment_id, created_at, updated_at
		FROM purchases WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	purchases := []models.Purchase{}
	for rows.Next() {
		var p models.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.ToolkitID, &p.CheckoutSessionID, &p.Status, &p.PaymentID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

// MarkPaidBySession completes the pending purchase created for a checkout session
func (s *ToolkitService) MarkPaidBySession(ctx context.Context, checkoutSessionID, paymentID string) (int64, error) {
	if checkoutSessionID == "" {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE purchases SET status = ?, payment_id = ?, updated_at = ? WHERE checkout_session_id = ? AND status = ?",
		models.PurchasePaid, paymentID, utcNow(), checkoutSessionID, models.PurchasePending,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark purchase paid: %w", err)
	}
	return res.RowsAffected()
}

// MarkOldestPendingPaid completes the user's oldest pending purchase. It is
// used when the payment event does not name a checkout session.
func (s *ToolkitService) MarkOldestPendingPaid(ctx context.Context, userID, paymentID string) (int64, error) {
	var purchaseID string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM purchases WHERE user_id = ? AND status = ? ORDER BY created_at, id LIMIT 1",
		userID, models.PurchasePending,
	).Scan(&purchaseID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find pending purchase: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE purchases SET status = ?, payment_id = ?, updated_at = ? WHERE id = ? AND status = ?",
		models.PurchasePaid, paymentID, utcNow(), purchaseID, models.PurchasePending,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark purchase paid: %w", err)
	}
	return res.RowsAffected()
}

// ExpirePending marks pending purchases created before cutoff as expired
func (s *ToolkitService) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE purchases SET status = ?, updated_at = ? WHERE status = ? AND created_at < ?",
		models.PurchaseExpired, utcNow(), models.PurchasePending, cutoff.UTC().Truncate(time.Second),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire purchases: %w", err)
	}
	return res.RowsAffected()
}

func validateToolkit(in *models.ToolkitInput) error {
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	in.Title = strings.TrimSpace(in.Title)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.DodoProductID = strings.TrimSpace(in.DodoProductID)

	if !slugPattern.MatchString(in.Slug) {
		return fmt.Errorf("%w: slug must be lowercase words separated by dashes", ErrInvalidInput)
	}
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.PriceCents < 0 {
		return fmt.Errorf("%w: price_cents cannot be negative", ErrInvalidInput)
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if len(in.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}
	return nil
}
