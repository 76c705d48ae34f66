package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/ahsanj/local-log-analyzer/internal/config"
	"github.com/ahsanj/local-log-analyzer/internal/db"
	"github.com/ahsanj/local-log-analyzer/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Initialize(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = cfg.DB.DSN()
	}

	conn, err := db.Connect(context.Background(), dsn, cfg.DB.LogLevel, cfg.Retry)
	if err != nil {
		logger.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("Running database migrations...", nil)
	if err := db.AutoMigrate(conn); err != nil {
		logger.Fatal("Migration failed", map[string]interface{}{"error": err.Error()})
	}
	logger.Info("✅ Database migrations completed successfully!", nil)
}
