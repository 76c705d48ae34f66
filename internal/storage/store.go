package storage

import (
	"context"
	"errors"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

var (
	ErrFileNotFound     = errors.New("file not found")
	ErrAnalysisNotFound = errors.New("analysis not found")
)

// Store persists ingested files, their raw content and the latest
// analysis result keyed by file id.
type Store interface {
	CreateFile(ctx context.Context, file *models.LogFile, content []byte) error
	GetFile(ctx context.Context, id string) (*models.LogFile, error)
	ListFiles(ctx context.Context) ([]models.LogFile, error)
	GetContent(ctx context.Context, id string) ([]byte, error)
	UpdateFileStatus(ctx context.Context, id string, status models.FileStatus, reason string) error

	// SaveResult replaces the entries and analysis of a file and marks it
	// analyzed. It fails with ErrFileNotFound if the file is gone.
	SaveResult(ctx context.Context, analysis *models.LogAnalysis, entries []models.LogEntry) error
	GetAnalysis(ctx context.Context, id string) (*models.LogAnalysis, error)
	GetEntries(ctx context.Context, id string) ([]models.LogEntry, error)

	// DeleteFile removes the file together with everything derived from it.
	DeleteFile(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close() error
}
