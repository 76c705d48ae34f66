package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

// MemoryStore keeps everything in process memory. It backs the CLI and
// single-node deployments without a database.
type MemoryStore struct {
	mu       sync.RWMutex
	files    map[string]models.LogFile
	contents map[string][]byte
	entries  map[string][]models.LogEntry
	analyses map[string]models.LogAnalysis
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:    make(map[string]models.LogFile),
		contents: make(map[string][]byte),
		entries:  make(map[string][]models.LogEntry),
		analyses: make(map[string]models.LogAnalysis),
	}
}

func (s *MemoryStore) CreateFile(_ context.Context, file *models.LogFile, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[file.ID] = *file
	s.contents[file.ID] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) GetFile(_ context.Context, id string) (*models.LogFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return &f, nil
}

func (s *MemoryStore) ListFiles(_ context.Context) ([]models.LogFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]models.LogFile, 0, len(s.files))
	for _, f := range s.files {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].UploadTime.Equal(files[j].UploadTime) {
			return files[i].UploadTime.After(files[j].UploadTime)
		}
		return files[i].ID < files[j].ID
	})
	return files, nil
}

func (s *MemoryStore) GetContent(_ context.Context, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contents[id]
	if !ok {
		return nil, ErrFileNotFound
	}
	return c, nil
}

func (s *MemoryStore) UpdateFileStatus(_ context.Context, id string, status models.FileStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[id]
	if !ok {
		return ErrFileNotFound
	}
	f.Status = status
	f.FailureReason = reason
	s.files[id] = f
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, analysis *models.LogAnalysis, entries []models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.files[analysis.FileID]
	if !ok {
		return ErrFileNotFound
	}
	s.entries[analysis.FileID] = entries
	s.analyses[analysis.FileID] = *analysis

	f.Status = models.FileStatusAnalyzed
	f.FailureReason = ""
	f.EntryCount = len(entries)
	s.files[analysis.FileID] = f
	return nil
}

func (s *MemoryStore) GetAnalysis(_ context.Context, id string) (*models.LogAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return nil, ErrFileNotFound
	}
	a, ok := s.analyses[id]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return &a, nil
}

func (s *MemoryStore) GetEntries(_ context.Context, id string) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[id]; !ok {
		return nil, ErrFileNotFound
	}
	entries, ok := s.entries[id]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return entries, nil
}

func (s *MemoryStore) DeleteFile(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return ErrFileNotFound
	}
	delete(s.files, id)
	delete(s.contents, id)
	delete(s.entries, id)
	delete(s.analyses, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
