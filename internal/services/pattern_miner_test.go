package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

func TestNormalizeMessage(t *testing.T) {
	tests := []struct {
		message  string
		expected string
	}{
		{"Connection timeout after 30s", "Connection timeout after <NUM>s"},
		{"User 42 failed login from 10.0.0.1", "User <NUM> failed login from <IP>"},
		{"request 550e8400-e29b-41d4-a716-446655440000 failed", "request <UUID> failed"},
		{`failed to open "/tmp/x.log"`, "failed to open <STR>"},
		{"GET https://example.com/a?b=1 returned 500", "GET <URL> returned <NUM>"},
		{"at 2024-01-15T10:00:00Z job 7 crashed", "at <TS> job <NUM> crashed"},
		{"bad pointer 0xdeadbeef", "bad pointer <HEX>"},
		{"read /var/log/app.log failed", "read <PATH> failed"},
		{"value [abc] rejected", "value <VAL> rejected"},
		{"too    many   spaces", "too many spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := NormalizeMessage(tt.message)
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func errorEntry(level models.LogLevel, msg string, ts time.Time) models.LogEntry {
	return models.LogEntry{Level: level, Message: msg, RawLine: msg, Timestamp: &ts}
}

func TestMineGroupsBySignature(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	entries := []models.LogEntry{
		errorEntry(models.LogLevelError, "Connection timeout after 30s", base.Add(2*time.Minute)),
		errorEntry(models.LogLevelInfo, "Request served", base),
		errorEntry(models.LogLevelError, "Connection timeout after 45s", base),
		errorEntry(models.LogLevelFatal, "Disk full on /dev/sda1", base.Add(time.Minute)),
		errorEntry(models.LogLevelError, "Connection timeout after 5s", base.Add(5*time.Minute)),
		errorEntry(models.LogLevelError, "Connection timeout after 60s", base.Add(6*time.Minute)),
	}

	patterns := NewPatternMiner(DefaultPatternMinerConfig()).Mine(entries)
	if len(patterns) != 2 {
		t.Fatalf("Expected 2 patterns, got %d: %+v", len(patterns), patterns)
	}

	top := patterns[0]
	if top.Pattern != "Connection timeout after <NUM>s" {
		t.Errorf("Expected timeout signature first, got %q", top.Pattern)
	}
	if top.Count != 4 {
		t.Errorf("Expected count 4, got %d", top.Count)
	}
	if len(top.Examples) != 3 {
		t.Errorf("Expected 3 examples, got %d", len(top.Examples))
	}
	if top.Category != "timeout" {
		t.Errorf("Expected category timeout, got %s", top.Category)
	}
	if top.FirstOccurrence == nil || !top.FirstOccurrence.Equal(base) {
		t.Errorf("Expected first occurrence %v, got %v", base, top.FirstOccurrence)
	}
	if top.LastOccurrence == nil || !top.LastOccurrence.Equal(base.Add(6*time.Minute)) {
		t.Errorf("Expected last occurrence %v, got %v", base.Add(6*time.Minute), top.LastOccurrence)
	}

	disk := patterns[1]
	if disk.Category != "filesystem" {
		t.Errorf("Expected category filesystem, got %s", disk.Category)
	}
	if disk.Severity != models.SeverityHigh {
		t.Errorf("Expected high severity for fatal entries, got %s", disk.Severity)
	}
}

func TestMineSeverity(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	build := func(level models.LogLevel) []models.LogEntry {
		entries := []models.LogEntry{errorEntry(level, "Something odd happened", base)}
		for i := 0; i < 199; i++ {
			entries = append(entries, errorEntry(models.LogLevelInfo, fmt.Sprintf("ok %d", i), base))
		}
		return entries
	}
	miner := NewPatternMiner(DefaultPatternMinerConfig())

	tests := []struct {
		level    models.LogLevel
		expected models.Severity
	}{
		{models.LogLevelError, models.SeverityMedium},
		{models.LogLevelCritical, models.SeverityHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			patterns := miner.Mine(build(tt.level))
			if len(patterns) != 1 {
				t.Fatalf("Expected 1 pattern, got %d", len(patterns))
			}
			if patterns[0].Severity != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, patterns[0].Severity)
			}
		})
	}
}

func TestMineOrdering(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	entries := []models.LogEntry{
		errorEntry(models.LogLevelError, "zeta failed", base.Add(time.Minute)),
		errorEntry(models.LogLevelError, "alpha failed", base.Add(time.Minute)),
		errorEntry(models.LogLevelError, "late failure", base.Add(time.Hour)),
		errorEntry(models.LogLevelError, "early failure", base),
	}
	patterns := NewPatternMiner(DefaultPatternMinerConfig()).Mine(entries)

	expected := []string{"early failure", "alpha failed", "zeta failed", "late failure"}
	if len(patterns) != len(expected) {
		t.Fatalf("Expected %d patterns, got %d", len(expected), len(patterns))
	}
	for i, want := range expected {
		if patterns[i].Pattern != want {
			t.Errorf("Expected pattern %d to be %q, got %q", i, want, patterns[i].Pattern)
		}
	}
}

func TestMineCustomConfig(t *testing.T) {
	base := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	entries := []models.LogEntry{
		errorEntry(models.LogLevelWarn, "Connection slow", base),
		errorEntry(models.LogLevelError, "Connection refused", base),
	}
	miner := NewPatternMiner(PatternMinerConfig{
		Levels:     []models.LogLevel{models.LogLevelWarn},
		Categories: []CategoryRule{},
	})

	patterns := miner.Mine(entries)
	if len(patterns) != 1 {
		t.Fatalf("Expected only the WARN entry to be mined, got %d patterns", len(patterns))
	}
	if patterns[0].Category != "general" {
		t.Errorf("Expected general category without rules, got %s", patterns[0].Category)
	}
}

func TestMineUsesRawLineForEmptyMessage(t *testing.T) {
	entries := []models.LogEntry{{Level: models.LogLevelError, Message: "  ", RawLine: "ERROR code 12"}}
	patterns := NewPatternMiner(DefaultPatternMinerConfig()).Mine(entries)
	if len(patterns) != 1 || patterns[0].Pattern != "ERROR code <NUM>" {
		t.Fatalf("Expected signature from raw line, got %+v", patterns)
	}
	if patterns[0].FirstOccurrence != nil {
		t.Errorf("Expected no occurrence times without timestamps, got %v", patterns[0].FirstOccurrence)
	}
}
