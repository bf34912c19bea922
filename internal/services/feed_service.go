package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"pathfinder/internal/models"

	"github.com/fsnotify/fsnotify"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"
)

const maxFeedPostSize = 512 * 1024

// feedFrontMatter is the YAML header of a feed markdown file
type feedFrontMatter struct {
	Title       string   `yaml:"title"`
	Slug        string   `yaml:"slug"`
	Summary     string   `yaml:"summary"`
	PublishedAt string   `yaml:"published_at"`
	Tags        []string `yaml:"tags"`
	Draft       bool     `yaml:"draft"`
}

// FeedService serves markdown articles from a content directory
type FeedService struct {
	dir string
	md  goldmark.Markdown

	mu       sync.RWMutex
	posts    []models.FeedPost
	bySlug   map[string]int
	onReload func(count int)
}

// NewFeedService creates a feed over dir. Call Reload to load it.
func NewFeedService(dir string) *FeedService {
	return &FeedService{
		dir: dir,
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM, // GitHub Flavored Markdown (includes Table, Strikethrough, Linkify, TaskList)
			),
		),
		bySlug: map[string]int{},
	}
}

// OnReload registers fn to be called with the post count after each reload
func (s *FeedService) OnReload(fn func(count int)) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// Reload re-reads every *.md file. A missing directory yields an empty feed.
// Files that fail to parse are skipped and logged.
func (s *FeedService) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		log.Printf("⚠️  [FEED] Content directory %s does not exist, feed is empty", s.dir)
		s.swap(nil)
		s.notifyReload()
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read content directory: %w", err)
	}

	var posts []models.FeedPost
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		post, err := s.loadPost(path)
		if err != nil {
			log.Printf("⚠️  [FEED] Skipping %s: %v", entry.Name(), err)
			continue
		}
		if post != nil {
			posts = append(posts, *post)
		}
	}

	s.swap(posts)
	log.Printf("✅ [FEED] Loaded %d post(s) from %s", len(posts), s.dir)
	s.notifyReload()
	return nil
}

func (s *FeedService) notifyReload() {
	s.mu.RLock()
	fn, count := s.onReload, len(s.posts)
	s.mu.RUnlock()
	if fn != nil {
		fn(count)
	}
}

func (s *FeedService) swap(posts []models.FeedPost) {
	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].PublishedAt.After(posts[j].PublishedAt)
		}
		return posts[i].Slug < posts[j].Slug
	})

	bySlug := make(map[string]int, len(posts))
	kept := posts[:0]
	for _, post := range posts {
		if _, dup := bySlug[post.Slug]; dup {
			log.Printf("⚠️  [FEED] Duplicate slug %q in %s ignored", post.Slug, post.SourcePath)
			continue
		}
		bySlug[post.Slug] = len(kept)
		kept = append(kept, post)
	}

	s.mu.Lock()
	s.posts = kept
	s.bySlug = bySlug
	s.mu.Unlock()
}

// loadPost parses one file; drafts return nil
func (s *FeedService) loadPost(path string) (*models.FeedPost, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxFeedPostSize {
		return nil, fmt.Errorf("file exceeds maximum size of %d bytes", maxFeedPostSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	fm, body, err := parseFrontMatter(string(content))
	if err != nil {
		return nil, err
	}
	if fm.Draft {
		return nil, nil
	}

	slug := strings.TrimSpace(fm.Slug)
	if slug == "" {
		slug = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	slug = strings.ToLower(slug)

	title := strings.TrimSpace(fm.Title)
	if title == "" {
		title = slug
	}

	publishedAt := info.ModTime().UTC()
	if fm.PublishedAt != "" {
		publishedAt, err = parsePublishedAt(fm.PublishedAt)
		if err != nil {
			return nil, err
		}
	}

	var htmlBuf bytes.Buffer
	if err := s.md.Convert([]byte(body), &htmlBuf); err != nil {
		return nil, fmt.Errorf("failed to convert markdown: %w", err)
	}

	return &models.FeedPost{
		Slug:        slug,
		Title:       title,
		Summary:     strings.TrimSpace(fm.Summary),
		Tags:        fm.Tags,
		PublishedAt: publishedAt,
		HTML:        htmlBuf.String(),
		SourcePath:  path,
	}, nil
}

// List returns posts newest first without their HTML bodies. An empty tag
// matches every post; tag matching ignores case.
func (s *FeedService) List(tag string, limit int) []models.FeedPost {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.FeedPost{}
	for _, post := range s.posts {
		if tag != "" && !containsFold(post.Tags, tag) {
			continue
		}
		post.HTML = ""
		out = append(out, post)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Get returns a rendered post by slug
func (s *FeedService) Get(slug string) (*models.FeedPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.bySlug[strings.ToLower(slug)]
	if !ok {
		return nil, ErrNotFound
	}
	post := s.posts[i]
	return &post, nil
}

// Count returns the number of loaded posts
func (s *FeedService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Watch reloads the feed when files in the content directory change, until
// ctx is cancelled
func (s *FeedService) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", s.dir, err)
	}

	log.Printf("👁️  Watching %s for feed changes", s.dir)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.EqualFold(filepath.Ext(event.Name), ".md") {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDuration, func() {
				log.Printf("🔄 Detected changes in %s, reloading feed...", s.dir)
				if err := s.Reload(); err != nil {
					log.Printf("❌ Failed to reload feed: %v", err)
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}

// parseFrontMatter splits a YAML header delimited by "---" lines from the body
func parseFrontMatter(content string) (*feedFrontMatter, string, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.TrimSpace(content)

	fm := &feedFrontMatter{}
	if !strings.HasPrefix(content, "---\n") {
		return fm, content, nil
	}

	rest := content[4:]
	closingIdx := strings.Index(rest, "\n---")
	if closingIdx == -1 {
		return fm, content, nil
	}

	yamlContent := rest[:closingIdx]
	body := strings.TrimSpace(rest[closingIdx+4:])

	if err := yaml.Unmarshal([]byte(yamlContent), fm); err != nil {
		return nil, "", fmt.Errorf("invalid YAML frontmatter: %w", err)
	}

	return fm, body, nil
}

func parsePublishedAt(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid published_at %q", value)
}

func containsFold(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), want) {
			return true
		}
	}
	return false
}
