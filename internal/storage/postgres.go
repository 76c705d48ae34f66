package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahsanj/local-log-analyzer/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const entryBatchSize = 500

// PostgresStore persists files, entries and analyses through gorm.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) CreateFile(ctx context.Context, file *models.LogFile, content []byte) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return fmt.Errorf("failed to create log file record: %w", err)
		}
		if err := tx.Create(&models.LogContent{LogFileID: file.ID, Data: content}).Error; err != nil {
			return fmt.Errorf("failed to store log content: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetFile(ctx context.Context, id string) (*models.LogFile, error) {
	var file models.LogFile
	if err := s.db.WithContext(ctx).First(&file, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get log file: %w", err)
	}
	return &file, nil
}

func (s *PostgresStore) ListFiles(ctx context.Context) ([]models.LogFile, error) {
	var files []models.LogFile
	if err := s.db.WithContext(ctx).Order("upload_time DESC").Order("id").Find(&files).Error; err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}

func (s *PostgresStore) GetContent(ctx context.Context, id string) ([]byte, error) {
	var content models.LogContent
	if err := s.db.WithContext(ctx).First(&content, "log_file_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to get log content: %w", err)
	}
	return content.Data, nil
}

func (s *PostgresStore) UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, reason string) error {
	res := s.db.WithContext(ctx).Model(&models.LogFile{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":         status,
		"failure_reason": reason,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update log file status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, analysis *models.LogAnalysis, entries []models.LogEntry) error {
	record, err := models.NewAnalysisRecord(analysis)
	if err != nil {
		return err
	}

	rows := make([]models.LogEntry, len(entries))
	for i := range entries {
		rows[i] = entries[i]
		rows[i].ID = 0
		rows[i].LogFileID = analysis.FileID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Lock the file row so a concurrent delete either waits for us or
		// makes us fail.
		var file models.LogFile
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&file, "id = ?", analysis.FileID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrFileNotFound
			}
			return fmt.Errorf("failed to lock log file: %w", err)
		}

		if err := tx.Where("log_file_id = ?", analysis.FileID).Delete(&models.LogEntry{}).Error; err != nil {
			return fmt.Errorf("failed to clear log entries: %w", err)
		}
		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, entryBatchSize).Error; err != nil {
				return fmt.Errorf("failed to save log entries: %w", err)
			}
		}
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(record).Error; err != nil {
			return fmt.Errorf("failed to save analysis: %w", err)
		}

		return tx.Model(&file).Updates(map[string]interface{}{
			"status":         models.FileStatusAnalyzed,
			"failure_reason": "",
			"entry_count":    len(rows),
		}).Error
	})
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, id string) (*models.LogAnalysis, error) {
	var record models.AnalysisRecord
	if err := s.db.WithContext(ctx).First(&record, "log_file_id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAnalysisNotFound
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return record.Analysis()
}

func (s *PostgresStore) GetEntries(ctx context.Context, id string) ([]models.LogEntry, error) {
	var entries []models.LogEntry
	if err := s.db.WithContext(ctx).Where("log_file_id = ?", id).Order("line_number").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to get log entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Unscoped().Where("id = ?", id).Delete(&models.LogFile{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete log file: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrFileNotFound
		}
		for _, model := range []interface{}{&models.LogEntry{}, &models.AnalysisRecord{}, &models.LogContent{}} {
			if err := tx.Where("log_file_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete file data: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
