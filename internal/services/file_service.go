package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/models"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

// DefaultExtensions are the upload extensions accepted when none are configured.
var DefaultExtensions = []string{".log", ".txt", ".csv", ".syslog", ".json"}

// FileUploadResponse describes a newly ingested file.
type FileUploadResponse struct {
	FileID     string            `json:"file_id"`
	Filename   string            `json:"filename"`
	Size       int64             `json:"size"`
	Format     models.LogFormat  `json:"format"`
	UploadTime time.Time         `json:"upload_time"`
	Status     models.FileStatus `json:"status"`
	Checksum   string            `json:"checksum"`
}

// FileService ingests uploads and pasted text into the store.
type FileService struct {
	store      storage.Store
	limits     Limits
	extensions map[string]bool
	now        func() time.Time
}

func NewFileService(store storage.Store, limits Limits, extensions []string) *FileService {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	return &FileService{
		store:      store,
		limits:     limits,
		extensions: allowed,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores an uploaded file after checking its extension and size.
func (s *FileService) Upload(ctx context.Context, filename string, content []byte) (*FileUploadResponse, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: missing file name", ErrUnsupportedExtension)
	}
	ext := strings.ToLower(filepath.Ext(name))
	if !s.extensions[ext] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return s.ingest(ctx, name, content)
}

// Paste stores pasted text under a synthetic name.
func (s *FileService) Paste(ctx context.Context, content string) (*FileUploadResponse, error) {
	name := "pasted_content_" + s.now().Format("20060102_150405")
	return s.ingest(ctx, name, []byte(content))
}

func (s *FileService) ingest(ctx context.Context, name string, content []byte) (*FileUploadResponse, error) {
	if err := s.limits.Check(content); err != nil {
		return nil, err
	}
	text, err := DecodeContent(content)
	if err != nil {
		return nil, err
	}

	sum := blake2b.Sum256(content)

	file := &models.LogFile{
		ID:         uuid.New().String(),
		Filename:   name,
		Size:       int64(len(content)),
		Format:     DetectFormat(name, text),
		UploadTime: s.now(),
		Status:     models.FileStatusUploaded,
		Checksum:   hex.EncodeToString(sum[:]),
	}
	if err := s.store.CreateFile(ctx, file, text); err != nil {
		return nil, err
	}

	logger.WithLogFile(file.ID, file.Filename).WithFields(map[string]interface{}{
		"size":   file.Size,
		"format": file.Format,
	}).Info("Log file stored")

	return &FileUploadResponse{
		FileID:     file.ID,
		Filename:   file.Filename,
		Size:       file.Size,
		Format:     file.Format,
		UploadTime: file.UploadTime,
		Status:     file.Status,
		Checksum:   file.Checksum,
	}, nil
}

func (s *FileService) Get(ctx context.Context, id string) (*models.LogFile, error) {
	file, err := s.store.GetFile(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return file, nil
}

func (s *FileService) List(ctx context.Context) ([]models.LogFile, error) {
	return s.store.ListFiles(ctx)
}
