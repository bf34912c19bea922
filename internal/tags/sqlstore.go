package tags

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"

	"github.com/google/uuid"
)

// SQLStore keeps tags in the relational database
type SQLStore struct {
	db       *database.DB
	onCreate func(created int)
}

// NewSQLStore creates a tag store over db
func NewSQLStore(db *database.DB) *SQLStore {
	return &SQLStore{db: db}
}

// OnCreate registers fn to be called with the number of rows each insert created
func (s *SQLStore) OnCreate(fn func(created int)) {
	s.onCreate = fn
}

// FindByNames returns tags whose FoldKey matches any of names
func (s *SQLStore) FindByNames(ctx context.Context, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(names))
	for i, name := range names {
		args[i] = FoldKey(name)
	}
	query := fmt.Sprintf("SELECT id, name, created_at FROM tags WHERE name_key IN (%s)", database.Placeholders(len(names)))
	return s.query(ctx, query, args...)
}

// FindByIDs returns tags by identifier
func (s *SQLStore) FindByIDs(ctx context.Context, ids []string) ([]models.Tag, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id, name, created_at FROM tags WHERE id IN (%s)", database.Placeholders(len(ids)))
	return s.query(ctx, query, args...)
}

// List returns every tag ordered by name
func (s *SQLStore) List(ctx context.Context) ([]models.Tag, error) {
	return s.query(ctx, "SELECT id, name, created_at FROM tags ORDER BY name")
}

// Insert creates one row per name in a single statement
func (s *SQLStore) Insert(ctx context.Context, names []string, ignoreConflicts bool) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	rows := make([]models.Tag, len(names))
	args := make([]interface{}, 0, len(names)*4)
	values := make([]string, len(names))
	for i, name := range names {
		rows[i] = models.Tag{ID: uuid.New().String(), Name: name, CreatedAt: now}
		args = append(args, rows[i].ID, rows[i].Name, FoldKey(name), rows[i].CreatedAt)
		values[i] = "(?, ?, ?, ?)"
	}
	valueList := strings.Join(values, ", ")

	if !ignoreConflicts {
		_, err := s.db.ExecContext(ctx, "INSERT INTO tags (id, name, name_key, created_at) VALUES "+valueList, args...)
		if database.IsUniqueViolation(err) {
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("insert tags: %w", err)
		}
		log.Printf("🏷️  [TAGS] Created %d tag(s)", len(rows))
		s.notifyCreated(len(rows))
		return rows, nil
	}

	var created []models.Tag
	var err error
	if s.db.Dialect == database.DialectMySQL {
		// MySQL has no RETURNING; read back whichever of our ids made it in
		if _, err = s.db.ExecContext(ctx, "INSERT IGNORE INTO tags (id, name, name_key, created_at) VALUES "+valueList, args...); err != nil {
			return nil, fmt.Errorf("insert tags: %w", err)
		}
		ids := make([]string, len(rows))
		for i := range rows {
			ids[i] = rows[i].ID
		}
		created, err = s.FindByIDs(ctx, ids)
	} else {
		created, err = s.query(ctx,
			"INSERT INTO tags (id, name, name_key, created_at) VALUES "+valueList+" ON CONFLICT DO NOTHING RETURNING id, name, created_at",
			args...)
	}
	if err != nil {
		return nil, fmt.Errorf("insert tags: %w", err)
	}

	if len(created) > 0 {
		log.Printf("🏷️  [TAGS] Created %d of %d tag(s)", len(created), len(names))
		s.notifyCreated(len(created))
	}
	return created, nil
}

func (s *SQLStore) notifyCreated(n int) {
	if s.onCreate != nil {
		s.onCreate(n)
	}
}

func (s *SQLStore) query(ctx context.Context, query string, args ...interface{}) ([]models.Tag, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		var tag models.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}
