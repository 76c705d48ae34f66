package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

func newFile(id string, uploaded time.Time) *models.LogFile {
	return &models.LogFile{
		ID:         id,
		Filename:   id + ".log",
		Format:     models.FormatPlainText,
		UploadTime: uploaded,
		Status:     models.FileStatusUploaded,
	}
}

func TestMemoryStoreFileLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetFile(ctx, "a"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound, got %v", err)
	}

	content := []byte("[INFO] hello")
	if err := s.CreateFile(ctx, newFile("a", time.Now()), content); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}
	content[0] = 'X'

	stored, err := s.GetContent(ctx, "a")
	if err != nil {
		t.Fatalf("GetContent failed: %v", err)
	}
	if string(stored) != "[INFO] hello" {
		t.Errorf("Expected the store to keep its own copy, got %q", stored)
	}

	if err := s.UpdateFileStatus(ctx, "a", models.FileStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateFileStatus failed: %v", err)
	}
	f, _ := s.GetFile(ctx, "a")
	if f.Status != models.FileStatusFailed || f.FailureReason != "boom" {
		t.Errorf("Expected failed status with reason, got %s %q", f.Status, f.FailureReason)
	}

	if err := s.DeleteFile(ctx, "a"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := s.GetContent(ctx, "a"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected content to be removed, got %v", err)
	}
	if err := s.DeleteFile(ctx, "a"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound on second delete, got %v", err)
	}
}

func TestMemoryStoreResults(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateFile(ctx, newFile("a", time.Now()), []byte("x")); err != nil {
		t.Fatalf("CreateFile failed: %v", err)
	}

	if _, err := s.GetAnalysis(ctx, "a"); !errors.Is(err, ErrAnalysisNotFound) {
		t.Errorf("Expected ErrAnalysisNotFound before analysis, got %v", err)
	}
	if _, err := s.GetEntries(ctx, "a"); !errors.Is(err, ErrAnalysisNotFound) {
		t.Errorf("Expected ErrAnalysisNotFound before analysis, got %v", err)
	}

	analysis := &models.LogAnalysis{FileID: "a", TotalEntries: 2}
	entries := []models.LogEntry{{LineNumber: 1, Message: "one"}, {LineNumber: 2, Message: "two"}}
	if err := s.SaveResult(ctx, analysis, entries); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	f, _ := s.GetFile(ctx, "a")
	if f.Status != models.FileStatusAnalyzed || f.EntryCount != 2 {
		t.Errorf("Expected analyzed file with 2 entries, got %s with %d", f.Status, f.EntryCount)
	}
	got, err := s.GetAnalysis(ctx, "a")
	if err != nil || got.TotalEntries != 2 {
		t.Errorf("Expected stored analysis, got %+v, %v", got, err)
	}
	stored, err := s.GetEntries(ctx, "a")
	if err != nil || len(stored) != 2 {
		t.Errorf("Expected 2 stored entries, got %d, %v", len(stored), err)
	}

	if err := s.SaveResult(ctx, &models.LogAnalysis{FileID: "gone"}, nil); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("Expected ErrFileNotFound for a missing file, got %v", err)
	}
}

func TestMemoryStoreListOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "new", "mid"} {
		uploaded := base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
		if err := s.CreateFile(ctx, newFile(id, uploaded), nil); err != nil {
			t.Fatalf("CreateFile failed: %v", err)
		}
	}

	files, err := s.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	expected := []string{"new", "mid", "old"}
	for i, id := range expected {
		if files[i].ID != id {
			t.Errorf("Expected file %d to be %s, got %s", i, id, files[i].ID)
		}
	}
}
