package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"pathfinder/internal/database"
	"pathfinder/internal/models"
	"pathfinder/internal/services"
	"pathfinder/internal/tags"
	"pathfinder/pkg/auth"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML layout accepted by the seed command
type seedFile struct {
	Admin *struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	} `yaml:"admin"`
	Tags          []string                  `yaml:"tags"`
	Opportunities []models.OpportunityInput `yaml:"opportunities"`
	Toolkits      []models.ToolkitInput     `yaml:"toolkits"`
}

type seedSummary struct {
	Tags                 int
	OpportunitiesCreated int
	OpportunitiesSkipped int
	Toolkits             int
}

type seeder struct {
	logger        *logrus.Logger
	users         *services.UserService
	resolver      *tags.Resolver
	opportunities *services.OpportunityService
	toolkits      *services.ToolkitService
}

func newSeeder(db *database.DB, jwtAuth *auth.LocalJWTAuth, logger *logrus.Logger) *seeder {
	resolver := tags.NewResolver(tags.NewSQLStore(db))
	return &seeder{
		logger:        logger,
		users:         services.NewUserService(db, jwtAuth),
		resolver:      resolver,
		opportunities: services.NewOpportunityService(db, resolver),
		toolkits:      services.NewToolkitService(db),
	}
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Apply is safe to re-run: existing users and opportunities (same title and
// organization) are left alone and toolkits are upserted by slug.
func (s *seeder) Apply(ctx context.Context, seed *seedFile) (*seedSummary, error) {
	summary := &seedSummary{}

	createdBy := ""
	if seed.Admin != nil {
		admin, err := s.ensureAdmin(ctx, seed.Admin.Email, seed.Admin.Password)
		if err != nil {
			return nil, err
		}
		createdBy = admin.ID
	}

	if len(seed.Tags) > 0 {
		resolved, err := s.resolver.ResolveFromNames(ctx, seed.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to seed tags: %w", err)
		}
		summary.Tags = len(resolved.TagNames)
		s.logger.WithFields(logrus.Fields{
			"names": resolved.TagNames,
		}).Info("Tags resolved")
	}

	existing, err := s.opportunities.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	for _, opp := range existing {
		seen[opportunityKey(opp.Title, opp.Organization)] = true
	}

	for _, in := range seed.Opportunities {
		key := opportunityKey(in.Title, in.Organization)
		if seen[key] {
			summary.OpportunitiesSkipped++
			s.logger.WithFields(logrus.Fields{
				"title":        in.Title,
				"organization": in.Organization,
			}).Debug("Opportunity exists, skipping")
			continue
		}
		opp, err := s.opportunities.Create(ctx, in, createdBy)
		if err != nil {
			return nil, fmt.Errorf("failed to seed opportunity %q: %w", in.Title, err)
		}
		s.logger.WithFields(logrus.Fields{
			"id":    opp.ID,
			"title": opp.Title,
			"tags":  len(opp.Tags),
		}).Info("Opportunity created")
		seen[key] = true
		summary.OpportunitiesCreated++
	}

	for _, in := range seed.Toolkits {
		toolkit, err := s.toolkits.UpsertBySlug(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("failed to seed toolkit %q: %w", in.Slug, err)
		}
		s.logger.WithFields(logrus.Fields{
			"id":        toolkit.ID,
			"slug":      toolkit.Slug,
			"published": toolkit.Published,
		}).Info("Toolkit upserted")
		summary.Toolkits++
	}

	return summary, nil
}

func (s *seeder) ensureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		if user.Role != models.RoleAdmin {
			s.logger.WithField("email", user.Email).Warn("Seed admin exists without the admin role")
		}
		return user, nil
	}
	if !errors.Is(err, services.ErrNotFound) {
		return nil, err
	}

	user, err = s.users.Register(ctx, models.RegisterRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to create seed admin: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"email": user.Email,
		"role":  user.Role,
	}).Info("Seed user created")
	return user, nil
}

func opportunityKey(title, organization string) string {
	return strings.ToLower(strings.TrimSpace(title)) + "|" + strings.ToLower(strings.TrimSpace(organization))
}
