package models

import (
	"time"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// PatternMatch is a cluster of error entries sharing one normalized message signature
type PatternMatch struct {
	Pattern         string     `json:"pattern" bson:"pattern"`
	Count           int        `json:"count" bson:"count"`
	Examples        []string   `json:"examples" bson:"examples"`
	Severity        Severity   `json:"severity" bson:"severity"`
	Category        string     `json:"category" bson:"category"`
	FirstOccurrence *time.Time `json:"first_occurrence,omitempty" bson:"first_occurrence,omitempty"`
	LastOccurrence  *time.Time `json:"last_occurrence,omitempty" bson:"last_occurrence,omitempty"`
}

type AnomalyType string

const (
	AnomalyVolumeSpike    AnomalyType = "volume_spike"
	AnomalyErrorBurst     AnomalyType = "error_burst"
	AnomalySilenceGap     AnomalyType = "silence_gap"
	AnomalyServiceAnomaly AnomalyType = "service_anomaly"
)

type Anomaly struct {
	Type        AnomalyType `json:"type" bson:"type"`
	Description string      `json:"description" bson:"description"`
	Timestamp   time.Time   `json:"timestamp" bson:"timestamp"`
	Severity    Severity    `json:"severity" bson:"severity"`
	Count       int         `json:"count" bson:"count"`
}

// TimeSeriesData is one fixed-width bucket of the timeline
type TimeSeriesData struct {
	Timestamp  time.Time `json:"timestamp" bson:"timestamp"`
	ErrorCount int       `json:"error_count" bson:"error_count"`
	WarnCount  int       `json:"warn_count" bson:"warn_count"`
	InfoCount  int       `json:"info_count" bson:"info_count"`
	TotalCount int       `json:"total_count" bson:"total_count"`
}
