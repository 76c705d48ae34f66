package services

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

const (
	patternExampleLimit  = 3
	defaultCategory      = "general"
	defaultHighFreqRatio = 0.01
)

// CategoryRule assigns Name to a signature matching any of Keywords.
// Keywords are regular expression fragments anchored at a word start.
type CategoryRule struct {
	Name     string   `mapstructure:"name" yaml:"name"`
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
}

// DefaultCategoryRules is the ordered keyword table. The first rule that
// matches wins.
func DefaultCategoryRules() []CategoryRule {
	return []CategoryRule{
		{Name: "timeout", Keywords: []string{"timeout", "timed out", "deadline exceeded"}},
		{Name: "connection", Keywords: []string{"connect", "refused", "unreachable", "reset by peer", "broken pipe"}},
		{Name: "authentication", Keywords: []string{"authenticat", "unauthori", "login", "credential", "token", "password"}},
		{Name: "permission", Keywords: []string{"permission", "forbidden", "access denied", "not allowed", "privilege"}},
		{Name: "database", Keywords: []string{"database", "sql", "query", "deadlock", "constraint", "transaction", "db"}},
		{Name: "memory", Keywords: []string{"memory", "oom", "heap", "allocat"}},
		{Name: "validation", Keywords: []string{"validat", "invalid", "malformed", "required", "bad request"}},
		{Name: "filesystem", Keywords: []string{"file", "director", "disk", "no such", "i/o"}},
		{Name: "network", Keywords: []string{"network", "socket", "dns", "host", "tcp", "http"}},
		{Name: "null_reference", Keywords: []string{"null pointer", "nil pointer", "nullpointer", "nonetype", "undefined"}},
		{Name: "serialization", Keywords: []string{"json", "serializ", "deserializ", "unmarshal", "marshal", "decod", "encod", "pars"}},
	}
}

// PatternMinerConfig tunes pattern mining.
type PatternMinerConfig struct {
	// Levels selects the entries that are mined.
	Levels []models.LogLevel
	// HighFrequencyRatio marks a pattern high severity once its count
	// exceeds this share of all entries.
	HighFrequencyRatio float64
	Categories         []CategoryRule
}

func DefaultPatternMinerConfig() PatternMinerConfig {
	return PatternMinerConfig{
		Levels:             []models.LogLevel{models.LogLevelError, models.LogLevelFatal, models.LogLevelCritical},
		HighFrequencyRatio: defaultHighFreqRatio,
		Categories:         DefaultCategoryRules(),
	}
}

type compiledCategory struct {
	name string
	re   *regexp.Regexp
}

// PatternMiner clusters error entries by normalized message signature.
type PatternMiner struct {
	levels     map[models.LogLevel]bool
	ratio      float64
	categories []compiledCategory
}

func NewPatternMiner(cfg PatternMinerConfig) *PatternMiner {
	def := DefaultPatternMinerConfig()
	if len(cfg.Levels) == 0 {
		cfg.Levels = def.Levels
	}
	if cfg.HighFrequencyRatio <= 0 {
		cfg.HighFrequencyRatio = def.HighFrequencyRatio
	}
	if cfg.Categories == nil {
		cfg.Categories = def.Categories
	}

	m := &PatternMiner{
		levels: make(map[models.LogLevel]bool, len(cfg.Levels)),
		ratio:  cfg.HighFrequencyRatio,
	}
	for _, lvl := range cfg.Levels {
		m.levels[lvl] = true
	}
	for _, rule := range cfg.Categories {
		if len(rule.Keywords) == 0 {
			continue
		}
		m.categories = append(m.categories, compiledCategory{
			name: rule.Name,
			re:   regexp.MustCompile(`(?i)\b(?:` + strings.Join(rule.Keywords, "|") + `)`),
		})
	}
	return m
}

type patternGroup struct {
	match models.PatternMatch
	fatal bool
}

// Mine returns every pattern sorted by count descending, then earliest
// first occurrence, then signature.
func (m *PatternMiner) Mine(entries []models.LogEntry) []models.PatternMatch {
	groups := make(map[string]*patternGroup)
	for i := range entries {
		e := &entries[i]
		if !m.levels[e.Level] {
			continue
		}

		text := e.Message
		if strings.TrimSpace(text) == "" {
			text = e.RawLine
		}
		sig := NormalizeMessage(text)

		g, ok := groups[sig]
		if !ok {
			g = &patternGroup{match: models.PatternMatch{
				Pattern:  sig,
				Examples: []string{},
				Category: m.categorize(sig),
			}}
			groups[sig] = g
		}
		g.match.Count++
		if len(g.match.Examples) < patternExampleLimit {
			g.match.Examples = append(g.match.Examples, e.RawLine)
		}
		if e.Level == models.LogLevelFatal || e.Level == models.LogLevelCritical {
			g.fatal = true
		}
		if e.Timestamp != nil {
			if g.match.FirstOccurrence == nil || e.Timestamp.Before(*g.match.FirstOccurrence) {
				g.match.FirstOccurrence = copyTime(*e.Timestamp)
			}
			if g.match.LastOccurrence == nil || e.Timestamp.After(*g.match.LastOccurrence) {
				g.match.LastOccurrence = copyTime(*e.Timestamp)
			}
		}
	}

	threshold := m.ratio * float64(len(entries))
	patterns := make([]models.PatternMatch, 0, len(groups))
	for _, g := range groups {
		g.match.Severity = models.SeverityMedium
		if float64(g.match.Count) > threshold || g.fatal {
			g.match.Severity = models.SeverityHigh
		}
		patterns = append(patterns, g.match)
	}

	sort.Slice(patterns, func(i, j int) bool {
		a, b := patterns[i], patterns[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		switch {
		case a.FirstOccurrence != nil && b.FirstOccurrence != nil:
			if !a.FirstOccurrence.Equal(*b.FirstOccurrence) {
				return a.FirstOccurrence.Before(*b.FirstOccurrence)
			}
		case a.FirstOccurrence != nil:
			return true
		case b.FirstOccurrence != nil:
			return false
		}
		return a.Pattern < b.Pattern
	})
	return patterns
}

func (m *PatternMiner) categorize(signature string) string {
	for _, c := range m.categories {
		if c.re.MatchString(signature) {
			return c.name
		}
	}
	return defaultCategory
}

var normalizers = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), "<TS>"},
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`), "<UUID>"},
	{regexp.MustCompile(`\b[a-zA-Z][a-zA-Z0-9+.\-]*://\S+`), "<URL>"},
	{regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`), "<IP>"},
	{regexp.MustCompile(`"[^"]*"`), "<STR>"},
	{regexp.MustCompile(`(^|[\s=:(,])'[^']*'`), "${1}<STR>"},
	{regexp.MustCompile(`\[[^\[\]]*\]`), "<VAL>"},
	{regexp.MustCompile(`\b0[xX][0-9a-fA-F]+\b|\b[0-9a-fA-F]{12,}\b`), "<HEX>"},
	{regexp.MustCompile(`(^|\s)(?:[A-Za-z]:)?(?:[/\\][\w.\-]+){2,}[/\\]?`), "${1}<PATH>"},
	{regexp.MustCompile(`\d+`), "<NUM>"},
	{regexp.MustCompile(`\s+`), " "},
}

// NormalizeMessage replaces volatile tokens (timestamps, ids, addresses,
// quoted and bracketed values, numbers) with placeholders so that
// messages differing only in those tokens share a signature.
func NormalizeMessage(msg string) string {
	for _, n := range normalizers {
		msg = n.re.ReplaceAllString(msg, n.repl)
	}
	return strings.TrimSpace(msg)
}

func copyTime(t time.Time) *time.Time {
	return &t
}
