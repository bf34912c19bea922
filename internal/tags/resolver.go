// Package tags maps free-text labels to stable tag identifiers, creating tag
// rows on first use.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pathfinder/internal/models"
)

var (
	// ErrConflict is returned by a Store when a strict insert hits the
	// uniqueness constraint on tag names
	ErrConflict = errors.New("tag name already exists")

	// ErrUnresolvedTag means a normalized name ended up without an identifier
	// after lookup, insert and re-fetch. It indicates a broken Store.
	ErrUnresolvedTag = errors.New("tag could not be resolved")
)

// Store is the slice of the relational store the resolver needs
type Store interface {
	// FindByNames returns existing tags whose name matches any of names
	FindByNames(ctx context.Context, names []string) ([]models.Tag, error)
	// Insert creates tags for names and returns the rows it created. With
	// ignoreConflicts, names that already exist are skipped silently;
	// otherwise the whole batch fails with ErrConflict.
	Insert(ctx context.Context, names []string, ignoreConflicts bool) ([]models.Tag, error)
}

// Resolved pairs tag identifiers with the normalized names they came from
type Resolved struct {
	TagIDs   []string `json:"tag_ids"`
	TagNames []string `json:"tag_names"`
}

// Resolver turns label lists into tag identifiers
type Resolver struct {
	store Store
}

// NewResolver creates a resolver over store
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Normalize trims each name, drops blanks and removes exact duplicates while
// keeping first-occurrence order. Duplicates differing only in case are kept.
func Normalize(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// FoldKey is the case-insensitive identity of a tag name. Stores persist and
// match on it so the database and the resolver agree on which names collide.
func FoldKey(name string) string {
	return strings.ToLower(name)
}

// ResolveFromNames returns one identifier per normalized name, in input order.
// Missing tags are created in a single batch. If the batch collides with a
// concurrent writer the rows that won are re-fetched instead of failing.
func (r *Resolver) ResolveFromNames(ctx context.Context, rawNames []string) (Resolved, error) {
	names := Normalize(rawNames)
	if len(names) == 0 {
		return Resolved{TagIDs: []string{}, TagNames: []string{}}, nil
	}

	idx, err := r.lookupExisting(ctx, names)
	if err != nil {
		return Resolved{}, err
	}

	if missing := idx.missing(names); len(missing) > 0 {
		created, err := r.store.Insert(ctx, missing, false)
		switch {
		case errors.Is(err, ErrConflict):
			if err := r.recoverConflict(ctx, idx, missing); err != nil {
				return Resolved{}, err
			}
		case err != nil:
			return Resolved{}, fmt.Errorf("failed to create tags: %w", err)
		default:
			idx.add(created...)
		}
	}

	ids, err := idx.resolveAll(names)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{TagIDs: ids, TagNames: names}, nil
}

// UpsertAndGetIDs is the id-only variant of ResolveFromNames. It always
// inserts with conflicts ignored and re-queries whatever is still missing.
func (r *Resolver) UpsertAndGetIDs(ctx context.Context, rawNames []string) ([]string, error) {
	names := Normalize(rawNames)
	if len(names) == 0 {
		return []string{}, nil
	}

	idx, err := r.lookupExisting(ctx, names)
	if err != nil {
		return nil, err
	}

	if missing := idx.missing(names); len(missing) > 0 {
		if err := r.recoverConflict(ctx, idx, missing); err != nil {
			return nil, err
		}
	}

	return idx.resolveAll(names)
}

func (r *Resolver) lookupExisting(ctx context.Context, names []string) (*index, error) {
	existing, err := r.store.FindByNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tags: %w", err)
	}
	idx := newIndex()
	idx.add(existing...)
	return idx, nil
}

// recoverConflict inserts missing names ignoring conflicts, then re-fetches
// any name that some other writer created first.
func (r *Resolver) recoverConflict(ctx context.Context, idx *index, missing []string) error {
	created, err := r.store.Insert(ctx, missing, true)
	if err != nil {
		return fmt.Errorf("failed to create tags: %w", err)
	}
	idx.add(created...)

	if still := idx.missing(missing); len(still) > 0 {
		refetched, err := r.store.FindByNames(ctx, still)
		if err != nil {
			return fmt.Errorf("failed to re-fetch tags: %w", err)
		}
		idx.add(refetched...)
	}
	return nil
}

// index maps names to ids both exactly and case-insensitively
type index struct {
	exact map[string]string
	lower map[string]string
}

func newIndex() *index {
	return &index{
		exact: make(map[string]string),
		lower: make(map[string]string),
	}
}

func (idx *index) add(tags ...models.Tag) {
	for _, tag := range tags {
		idx.exact[tag.Name] = tag.ID
		key := FoldKey(tag.Name)
		if _, ok := idx.lower[key]; !ok {
			idx.lower[key] = tag.ID
		}
	}
}

func (idx *index) lookup(name string) (string, bool) {
	if id, ok := idx.exact[name]; ok {
		return id, true
	}
	id, ok := idx.lower[FoldKey(name)]
	return id, ok
}

// missing returns names with no case-insensitive match, keeping only the first
// spelling of each case-insensitive group
func (idx *index) missing(names []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, name := range names {
		key := FoldKey(name)
		if _, ok := idx.lower[key]; ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (idx *index) resolveAll(names []string) ([]string, error) {
	ids := make([]string, len(names))
	for i, name := range names {
		id, ok := idx.lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnresolvedTag, name)
		}
		ids[i] = id
	}
	return ids, nil
}
