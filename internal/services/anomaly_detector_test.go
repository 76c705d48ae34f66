package services

import (
	"testing"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

var anomalyBase = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

// hourly builds n entries per hour, one slice element per hour.
func hourly(counts []int, level func(hour, i int) models.LogLevel, service func(hour, i int) string) []models.LogEntry {
	var entries []models.LogEntry
	for h, n := range counts {
		for i := 0; i < n; i++ {
			ts := anomalyBase.Add(time.Duration(h)*time.Hour + time.Duration(i)*time.Second)
			e := models.LogEntry{Timestamp: &ts, Level: models.LogLevelInfo, Message: "m"}
			if level != nil {
				e.Level = level(h, i)
			}
			if service != nil {
				e.Service = service(h, i)
			}
			entries = append(entries, e)
		}
	}
	return entries
}

func repeat(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestDetectVolumeSpike(t *testing.T) {
	counts := repeat(20, 2)
	counts[10] = 40

	anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly(counts, nil, nil), time.Hour)
	if len(anomalies) != 1 {
		t.Fatalf("Expected 1 anomaly, got %d: %+v", len(anomalies), anomalies)
	}
	a := anomalies[0]
	if a.Type != models.AnomalyVolumeSpike {
		t.Errorf("Expected volume_spike, got %s", a.Type)
	}
	if a.Count != 40 {
		t.Errorf("Expected count 40, got %d", a.Count)
	}
	if !a.Timestamp.Equal(anomalyBase.Add(10 * time.Hour)) {
		t.Errorf("Expected spike at hour 10, got %v", a.Timestamp)
	}
	if a.Severity != models.SeverityHigh {
		t.Errorf("Expected high severity, got %s", a.Severity)
	}
}

func TestDetectErrorBurst(t *testing.T) {
	counts := repeat(20, 5)
	level := func(hour, _ int) models.LogLevel {
		if hour == 7 {
			return models.LogLevelError
		}
		return models.LogLevelInfo
	}

	anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly(counts, level, nil), time.Hour)
	if len(anomalies) != 1 {
		t.Fatalf("Expected 1 anomaly, got %d: %+v", len(anomalies), anomalies)
	}
	if anomalies[0].Type != models.AnomalyErrorBurst {
		t.Errorf("Expected error_burst, got %s", anomalies[0].Type)
	}
	if anomalies[0].Count != 5 {
		t.Errorf("Expected count 5, got %d", anomalies[0].Count)
	}
	if !anomalies[0].Timestamp.Equal(anomalyBase.Add(7 * time.Hour)) {
		t.Errorf("Expected burst at hour 7, got %v", anomalies[0].Timestamp)
	}
}

func TestDetectSilenceGap(t *testing.T) {
	tests := []struct {
		name     string
		counts   []int
		start    int
		severity models.Severity
	}{
		{"short gap", []int{1, 1, 1, 0, 0, 0, 1, 1, 1, 1}, 3, models.SeverityMedium},
		{"long gap", []int{1, 1, 0, 0, 0, 0, 0, 0, 1, 1}, 2, models.SeverityHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly(tt.counts, nil, nil), time.Hour)
			if len(anomalies) != 1 {
				t.Fatalf("Expected 1 anomaly, got %d: %+v", len(anomalies), anomalies)
			}
			a := anomalies[0]
			if a.Type != models.AnomalySilenceGap {
				t.Errorf("Expected silence_gap, got %s", a.Type)
			}
			if a.Count != 0 {
				t.Errorf("Expected count 0, got %d", a.Count)
			}
			if !a.Timestamp.Equal(anomalyBase.Add(time.Duration(tt.start) * time.Hour)) {
				t.Errorf("Expected gap starting at hour %d, got %v", tt.start, a.Timestamp)
			}
			if a.Severity != tt.severity {
				t.Errorf("Expected %s, got %s", tt.severity, a.Severity)
			}
		})
	}
}

func TestDetectIgnoresShortGaps(t *testing.T) {
	counts := []int{1, 1, 0, 0, 1, 1, 1, 1}
	anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly(counts, nil, nil), time.Hour)
	for _, a := range anomalies {
		if a.Type == models.AnomalySilenceGap {
			t.Errorf("Expected no silence gap for two empty buckets, got %+v", a)
		}
	}
}

func TestDetectServiceAnomaly(t *testing.T) {
	counts := repeat(4, 10)
	service := func(hour, i int) string {
		if hour == 3 && i >= 6 {
			return "worker"
		}
		return "api"
	}

	anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly(counts, nil, service), time.Hour)
	if len(anomalies) != 1 {
		t.Fatalf("Expected 1 anomaly, got %d: %+v", len(anomalies), anomalies)
	}
	if anomalies[0].Type != models.AnomalyServiceAnomaly {
		t.Errorf("Expected service_anomaly, got %s", anomalies[0].Type)
	}
	if anomalies[0].Count != 4 {
		t.Errorf("Expected count 4, got %d", anomalies[0].Count)
	}
}

func TestDetectTooFewBuckets(t *testing.T) {
	anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly([]int{1, 50}, nil, nil), time.Hour)
	if anomalies == nil || len(anomalies) != 0 {
		t.Errorf("Expected empty result, got %v", anomalies)
	}
}

func TestDetectOrdersByTimestamp(t *testing.T) {
	counts := repeat(24, 2)
	counts[3], counts[4], counts[5] = 0, 0, 0
	counts[20] = 60

	anomalies := NewAnomalyDetector(DefaultAnomalyConfig()).Detect(hourly(counts, nil, nil), time.Hour)
	if len(anomalies) < 2 {
		t.Fatalf("Expected a gap and a spike, got %+v", anomalies)
	}
	for i := 1; i < len(anomalies); i++ {
		if anomalies[i].Timestamp.Before(anomalies[i-1].Timestamp) {
			t.Errorf("Expected anomalies sorted by timestamp, got %+v", anomalies)
		}
	}
	if anomalies[0].Type != models.AnomalySilenceGap {
		t.Errorf("Expected the gap first, got %s", anomalies[0].Type)
	}
}
