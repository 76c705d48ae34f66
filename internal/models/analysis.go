package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lib/pq"
)

type DateRange struct {
	Start *time.Time `json:"start" bson:"start,omitempty"`
	End   *time.Time `json:"end" bson:"end,omitempty"`
}

// LogAnalysis is the complete summary of one file's entries. A new analysis
// replaces the previous one; it is never patched.
type LogAnalysis struct {
	FileID              string           `json:"file_id" bson:"file_id"`
	Format              LogFormat        `json:"format" bson:"format"`
	TotalEntries        int              `json:"total_entries" bson:"total_entries"`
	DateRange           DateRange        `json:"date_range" bson:"date_range"`
	LevelDistribution   map[LogLevel]int `json:"level_distribution" bson:"level_distribution"`
	ServiceDistribution map[string]int   `json:"service_distribution" bson:"service_distribution"`
	ErrorPatterns       []PatternMatch   `json:"error_patterns" bson:"error_patterns"`
	Anomalies           []Anomaly        `json:"anomalies" bson:"anomalies"`
	TimeSeries          []TimeSeriesData `json:"time_series" bson:"time_series"`
	BucketInterval      string           `json:"bucket_interval" bson:"bucket_interval"`
	AnalyzedAt          time.Time        `json:"analyzed_at" bson:"analyzed_at"`
}

// AnalysisRecord is the persisted form of a LogAnalysis. Services and
// categories are denormalized into arrays for filtering in SQL.
type AnalysisRecord struct {
	LogFileID    string         `gorm:"primaryKey;size:36"`
	TotalEntries int            `gorm:"not null"`
	ErrorCount   int            `gorm:"not null"`
	Services     pq.StringArray `gorm:"type:text[]"`
	Categories   pq.StringArray `gorm:"type:text[]"`
	Payload      string         `gorm:"type:jsonb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AnalysisRecord) TableName() string {
	return "log_analyses"
}

// NewAnalysisRecord flattens an analysis for storage.
func NewAnalysisRecord(a *LogAnalysis) (*AnalysisRecord, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}

	services := make([]string, 0, len(a.ServiceDistribution))
	for svc := range a.ServiceDistribution {
		services = append(services, svc)
	}
	sort.Strings(services)

	seen := make(map[string]bool)
	categories := []string{}
	for _, p := range a.ErrorPatterns {
		if !seen[p.Category] {
			seen[p.Category] = true
			categories = append(categories, p.Category)
		}
	}

	errorCount := 0
	for lvl, n := range a.LevelDistribution {
		if lvl.IsError() {
			errorCount += n
		}
	}

	return &AnalysisRecord{
		LogFileID:    a.FileID,
		TotalEntries: a.TotalEntries,
		ErrorCount:   errorCount,
		Services:     pq.StringArray(services),
		Categories:   pq.StringArray(categories),
		Payload:      string(payload),
	}, nil
}

// Analysis decodes the stored payload.
func (r *AnalysisRecord) Analysis() (*LogAnalysis, error) {
	var a LogAnalysis
	if err := json.Unmarshal([]byte(r.Payload), &a); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &a, nil
}
