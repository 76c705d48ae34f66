package services

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

const (
	detectSampleBytes = 2000
	detectSampleLines = 5
)

var syslogPrefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`),
	regexp.MustCompile(`^<\d{1,3}>`),
}

// DetectFormat classifies content as JSON lines, CSV, syslog or plain text.
// A .json, .csv or .syslog extension decides on its own; otherwise the
// first lines of sample are sniffed. Pass a nil sample for extension-only
// detection.
func DetectFormat(filename string, sample []byte) models.LogFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return models.FormatJSON
	case ".csv":
		return models.FormatCSV
	case ".syslog":
		return models.FormatSyslog
	}

	lines := sampleLines(sample)
	if len(lines) == 0 {
		return models.FormatPlainText
	}

	switch {
	case looksLikeJSON(lines):
		return models.FormatJSON
	case looksLikeCSV(lines):
		return models.FormatCSV
	case looksLikeSyslog(lines):
		return models.FormatSyslog
	default:
		return models.FormatPlainText
	}
}

// sampleLines returns up to the first five non-empty lines of the first
// 2000 bytes. A line cut by the window is dropped when a complete line
// precedes it.
func sampleLines(sample []byte) []string {
	if len(sample) == 0 {
		return nil
	}
	truncated := len(sample) > detectSampleBytes
	if truncated {
		sample = sample[:detectSampleBytes]
		if i := bytes.LastIndexByte(sample, '\n'); i >= 0 {
			sample = sample[:i]
		}
	}

	var lines []string
	for _, raw := range strings.Split(string(sample), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == detectSampleLines {
			break
		}
	}
	return lines
}

func looksLikeJSON(lines []string) bool {
	ok := 0
	for _, line := range lines {
		var obj map[string]interface{}
		if json.Unmarshal([]byte(line), &obj) == nil {
			ok++
		}
	}
	return ok >= min(3, len(lines))
}

func looksLikeCSV(lines []string) bool {
	if len(lines) < 2 {
		return false
	}
	first := strings.Count(lines[0], ",")
	second := strings.Count(lines[1], ",")
	diff := first - second
	if diff < 0 {
		diff = -diff
	}
	return first > 2 && diff <= 1
}

func looksLikeSyslog(lines []string) bool {
	matched := 0
	for _, line := range lines {
		for _, re := range syslogPrefixPatterns {
			if re.MatchString(line) {
				matched++
				break
			}
		}
	}
	return matched >= min(2, len(lines))
}
