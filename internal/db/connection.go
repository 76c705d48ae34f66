package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/models"
	"github.com/ahsanj/local-log-analyzer/internal/retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func gormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "warn":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Error
	}
}

// Connect opens the postgres connection, retrying while the database is
// still starting up
func Connect(ctx context.Context, dsn string, logLevel string, rc retry.Config) (*gorm.DB, error) {
	var conn *gorm.DB
	err := retry.Do(ctx, rc, "connect postgres", func() error {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormLogLevel(logLevel)),
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		conn = db
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connected successfully", nil)
	return conn, nil
}

// AutoMigrate creates or updates the tables of the postgres store
func AutoMigrate(db *gorm.DB) error {
	for _, model := range []interface{}{
		&models.LogFile{},
		&models.LogContent{},
		&models.LogEntry{},
		&models.AnalysisRecord{},
	} {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate %T: %w", model, err)
		}
	}

	logger.Info("Database migrations completed", nil)
	return nil
}
