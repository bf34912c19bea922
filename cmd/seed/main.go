package main

import (
	"context"
	"flag"
	"log"
	"time"

	"pathfinder/internal/config"
	"pathfinder/internal/database"
	"pathfinder/internal/logging"
	"pathfinder/pkg/auth"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	seedPath := flag.String("file", "seed.yaml", "YAML seed file")
	envPath := flag.String("env", ".env", "dotenv file to load before reading configuration")
	jsonLogs := flag.Bool("json", false, "emit JSON log lines")
	verbose := flag.Bool("v", false, "log skipped records")
	flag.Parse()

	logger := logrus.New()
	if *jsonLogs {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if err := godotenv.Load(*envPath); err != nil {
		log.Printf("⚠️  No .env file found: %v", err)
	}
	logging.Init()

	cfg := config.Load()

	seed, err := loadSeedFile(*seedPath)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	jwtAuth, err := auth.NewLocalJWTAuth(cfg.JWTSecret, cfg.SessionExpiry)
	if err != nil {
		log.Fatalf("❌ Failed to initialize auth: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	summary, err := newSeeder(db, jwtAuth, logger).Apply(ctx, seed)
	if err != nil {
		log.Fatalf("❌ Seed failed: %v", err)
	}

	logger.WithFields(logrus.Fields{
		"tags":                  summary.Tags,
		"opportunities_created": summary.OpportunitiesCreated,
		"opportunities_skipped": summary.OpportunitiesSkipped,
		"toolkits":              summary.Toolkits,
	}).Info("Seed complete")
}
