package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

const (
	chatSampleEntries  = 10
	chatErrorEntries   = 5
	chatWarningEntries = 3
	chatTopServices    = 8
	chatTopPatterns    = 5
	chatMessageLimit   = 300
)

type ServiceCount struct {
	Service string `json:"service"`
	Count   int    `json:"count"`
}

// ChatContext is a read-only summary of one analyzed file, sized to fit
// into a language model prompt.
type ChatContext struct {
	FileID             string                  `json:"file_id"`
	Filename           string                  `json:"filename"`
	Format             models.LogFormat        `json:"format"`
	TotalEntries       int                     `json:"total_entries"`
	DateRange          models.DateRange        `json:"date_range"`
	LevelDistribution  map[models.LogLevel]int `json:"level_distribution"`
	TopServices        []ServiceCount          `json:"top_services"`
	TopPatterns        []models.PatternMatch   `json:"top_patterns"`
	Anomalies          []models.Anomaly        `json:"anomalies"`
	ErrorEntries       []models.LogEntry       `json:"error_entries"`
	WarningEntries     []models.LogEntry       `json:"warning_entries"`
	SampleEntries      []models.LogEntry       `json:"sample_entries"`
	SuggestedQuestions []string                `json:"suggested_questions"`
}

// BuildChatContext condenses an analysis and its entries.
func BuildChatContext(file *models.LogFile, analysis *models.LogAnalysis, entries []models.LogEntry) *ChatContext {
	c := &ChatContext{
		FileID:            file.ID,
		Filename:          file.Filename,
		Format:            file.Format,
		TotalEntries:      analysis.TotalEntries,
		DateRange:         analysis.DateRange,
		LevelDistribution: analysis.LevelDistribution,
		TopServices:       topServices(analysis.ServiceDistribution, chatTopServices),
		ErrorEntries:      []models.LogEntry{},
		WarningEntries:    []models.LogEntry{},
		SampleEntries:     []models.LogEntry{},
	}

	c.TopPatterns = analysis.ErrorPatterns
	if len(c.TopPatterns) > chatTopPatterns {
		c.TopPatterns = c.TopPatterns[:chatTopPatterns]
	}
	c.Anomalies = analysis.Anomalies

	for _, e := range entries {
		if len(c.SampleEntries) < chatSampleEntries {
			c.SampleEntries = append(c.SampleEntries, e)
		}
		switch {
		case e.Level.IsError() && len(c.ErrorEntries) < chatErrorEntries:
			c.ErrorEntries = append(c.ErrorEntries, e)
		case e.Level.IsWarn() && len(c.WarningEntries) < chatWarningEntries:
			c.WarningEntries = append(c.WarningEntries, e)
		}
	}

	c.SuggestedQuestions = c.suggestions()
	return c
}

func topServices(dist map[string]int, n int) []ServiceCount {
	out := make([]ServiceCount, 0, len(dist))
	for svc, count := range dist {
		out = append(out, ServiceCount{Service: svc, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Service < out[j].Service
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func (c *ChatContext) suggestions() []string {
	var s []string
	if c.TotalEntries > 0 {
		s = append(s, fmt.Sprintf("What are the main patterns in these %d log entries?", c.TotalEntries))
	}
	if len(c.ErrorEntries) > 0 {
		s = append(s, "Show me the most common error types", "What caused the recent errors?")
	}
	if len(c.TopServices) > 0 {
		s = append(s, fmt.Sprintf("Tell me about errors from %s", c.TopServices[0].Service))
	}
	s = append(s,
		"Summarize the log activity over time",
		"What anomalies do you detect in the logs?",
		"Which services are generating the most logs?",
	)
	if len(s) > 5 {
		s = s[:5]
	}
	return s
}

// Summary renders the context as prompt text.
func (c *ChatContext) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== LOG FILE ANALYSIS: %s (%s) ===\n", c.Filename, c.Format)
	fmt.Fprintf(&b, "Total Entries: %d\n", c.TotalEntries)
	if c.DateRange.Start != nil && c.DateRange.End != nil {
		fmt.Fprintf(&b, "Time Range: %s -> %s\n", c.DateRange.Start.Format(time.RFC3339), c.DateRange.End.Format(time.RFC3339))
	}

	levels := make([]string, 0, len(c.LevelDistribution))
	for lvl := range c.LevelDistribution {
		levels = append(levels, string(lvl))
	}
	sort.Strings(levels)
	for _, lvl := range levels {
		fmt.Fprintf(&b, "%s: %d\n", lvl, c.LevelDistribution[models.LogLevel(lvl)])
	}

	if len(c.TopServices) > 0 {
		parts := make([]string, len(c.TopServices))
		for i, s := range c.TopServices {
			parts[i] = fmt.Sprintf("%s=%d", s.Service, s.Count)
		}
		fmt.Fprintf(&b, "Services: %s\n", strings.Join(parts, ", "))
	}

	if len(c.TopPatterns) > 0 {
		b.WriteString("\n=== DETECTED ERROR PATTERNS ===\n")
		for i, p := range c.TopPatterns {
			fmt.Fprintf(&b, "PATTERN %d: [%s/%s] x%d %s\n", i+1, p.Severity, p.Category, p.Count, p.Pattern)
		}
	}
	if len(c.Anomalies) > 0 {
		b.WriteString("\n=== ANOMALIES ===\n")
		for _, an := range c.Anomalies {
			fmt.Fprintf(&b, "%s [%s] %s: %s\n", an.Timestamp.Format(time.RFC3339), an.Severity, an.Type, an.Description)
		}
	}
	if len(c.ErrorEntries) > 0 {
		fmt.Fprintf(&b, "\n=== ERROR ENTRIES (%d shown) ===\n", len(c.ErrorEntries))
		for i, e := range c.ErrorEntries {
			fmt.Fprintf(&b, "ERROR %d: line %d %s\n", i+1, e.LineNumber, truncate(e.Message, chatMessageLimit))
		}
	}
	if len(c.WarningEntries) > 0 {
		fmt.Fprintf(&b, "\n=== WARNING ENTRIES (%d shown) ===\n", len(c.WarningEntries))
		for i, e := range c.WarningEntries {
			fmt.Fprintf(&b, "WARN %d: line %d %s\n", i+1, e.LineNumber, truncate(e.Message, chatMessageLimit))
		}
	}
	if len(c.SampleEntries) > 0 {
		b.WriteString("\n=== SAMPLE LOG ENTRIES ===\n")
		for i, e := range c.SampleEntries {
			svc := e.Service
			if svc == "" {
				svc = "unknown"
			}
			fmt.Fprintf(&b, "SAMPLE %d: %s [%s] %s\n", i+1, e.Level, svc, truncate(e.Message, 150))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Stats is the compact statistics view of an analysis.
type Stats struct {
	TotalEntries        int                     `json:"total_entries"`
	DateRange           models.DateRange        `json:"date_range"`
	LevelDistribution   map[models.LogLevel]int `json:"level_distribution"`
	ServiceDistribution map[string]int          `json:"service_distribution"`
	PatternCount        int                     `json:"pattern_count"`
	AnomalyCount        int                     `json:"anomaly_count"`
	HasTimestamps       bool                    `json:"has_timestamps"`
	HasServices         bool                    `json:"has_services"`
}

func StatsOf(a *models.LogAnalysis) Stats {
	return Stats{
		TotalEntries:        a.TotalEntries,
		DateRange:           a.DateRange,
		LevelDistribution:   a.LevelDistribution,
		ServiceDistribution: a.ServiceDistribution,
		PatternCount:        len(a.ErrorPatterns),
		AnomalyCount:        len(a.Anomalies),
		HasTimestamps:       a.DateRange.Start != nil,
		HasServices:         len(a.ServiceDistribution) > 0,
	}
}
