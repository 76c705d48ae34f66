package services

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

const defaultMaxLineBytes = 1024 * 1024

// ParseOptions tunes the line parsers.
type ParseOptions struct {
	// MaxLineBytes bounds a single physical line. Longer lines abort the
	// parse with ErrResourceExceeded.
	MaxLineBytes int
	// ReferenceYear completes timestamps that carry no year (BSD syslog).
	ReferenceYear int
}

func (o ParseOptions) withDefaults() ParseOptions {
	if o.MaxLineBytes <= 0 {
		o.MaxLineBytes = defaultMaxLineBytes
	}
	if o.ReferenceYear == 0 {
		o.ReferenceYear = time.Now().UTC().Year()
	}
	return o
}

// EntryParser structures single log lines of one format. The set of
// implementations is closed: jsonParser, csvParser, syslogParser and
// plainTextParser. A parser may keep per-file state (the CSV header), so
// use a fresh one per input.
type EntryParser interface {
	Format() models.LogFormat
	parseLine(line string) lineResult
}

// lineResult is the outcome of one line. ok=false asks the driver for a
// fallback entry; schema marks a line that defined columns and yields no
// entry.
type lineResult struct {
	entry  models.LogEntry
	ok     bool
	schema bool
}

// NewEntryParser returns the parser for format. Unknown formats are parsed
// as plain text.
func NewEntryParser(format models.LogFormat, opts ParseOptions) EntryParser {
	opts = opts.withDefaults()
	switch format {
	case models.FormatJSON:
		return &jsonParser{refYear: opts.ReferenceYear}
	case models.FormatCSV:
		return &csvParser{refYear: opts.ReferenceYear}
	case models.FormatSyslog:
		return &syslogParser{refYear: opts.ReferenceYear}
	case models.FormatPlainText:
		return &plainTextParser{refYear: opts.ReferenceYear}
	default:
		return &plainTextParser{refYear: opts.ReferenceYear}
	}
}

// ParseEntries streams r line by line through p. Blank lines are skipped;
// every other line yields exactly one entry carrying its physical line
// number. The only failure is a line longer than opts.MaxLineBytes.
func ParseEntries(r io.Reader, p EntryParser, opts ParseOptions) ([]models.LogEntry, error) {
	opts = opts.withDefaults()

	// the scanner's limit is the larger of max and the initial capacity
	initial := min(64*1024, opts.MaxLineBytes)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initial), opts.MaxLineBytes)

	entries := []models.LogEntry{}
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		res := p.parseLine(raw)
		if res.schema {
			continue
		}
		entry := res.entry
		if !res.ok {
			entry = fallbackEntry(raw)
		}
		entry.LineNumber = lineNumber
		entry.RawLine = raw
		if entry.Metadata == nil {
			entry.Metadata = models.JSONB{}
		}
		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d is longer than %d bytes", ErrResourceExceeded, lineNumber+1, opts.MaxLineBytes)
		}
		return nil, fmt.Errorf("failed to read log content: %w", err)
	}
	return entries, nil
}

func fallbackEntry(raw string) models.LogEntry {
	return models.LogEntry{Message: raw, Metadata: models.JSONB{}}
}

// field synonyms shared by the JSON and CSV parsers, in priority order
var (
	timestampKeys = []string{"timestamp", "time", "ts", "@timestamp", "datetime", "date"}
	levelKeys     = []string{"level", "severity", "loglevel", "log_level", "lvl"}
	serviceKeys   = []string{"service", "svc", "logger", "component", "source"}
	messageKeys   = []string{"message", "msg", "description", "text"}
)

// ---------------------------------------------------------------------------
// JSON lines
// ---------------------------------------------------------------------------

type jsonParser struct {
	refYear int
}

func (*jsonParser) Format() models.LogFormat { return models.FormatJSON }

func (p *jsonParser) parseLine(line string) lineResult {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	var obj map[string]interface{}
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return lineResult{}
	}
	if _, err := dec.Token(); err != io.EOF {
		return lineResult{}
	}

	keys := foldKeys(obj)
	used := make(map[string]bool)
	entry := models.LogEntry{}

	if key, ok := pickKey(keys, timestampKeys); ok {
		if ts, ok := parseTimestamp(stringValue(obj[key]), p.refYear); ok {
			entry.Timestamp = ts
			used[key] = true
		}
	}
	if key, ok := pickKey(keys, levelKeys); ok {
		if lvl, ok := models.ParseLogLevel(stringValue(obj[key])); ok {
			entry.Level = lvl
			used[key] = true
		}
	}
	if key, ok := pickKey(keys, serviceKeys); ok {
		if svc := strings.TrimSpace(stringValue(obj[key])); svc != "" {
			entry.Service = svc
			used[key] = true
		}
	}
	if key, ok := pickKey(keys, messageKeys); ok {
		entry.Message = stringValue(obj[key])
		used[key] = true
	} else {
		entry.Message = line
	}

	entry.Metadata = models.JSONB{}
	for k, v := range obj {
		if !used[k] {
			entry.Metadata[k] = v
		}
	}
	return lineResult{entry: entry, ok: true}
}

// foldKeys maps lower-cased keys to the original key. When keys collide
// after folding the lexically smallest original wins.
func foldKeys(obj map[string]interface{}) map[string]string {
	folded := make(map[string]string, len(obj))
	for k := range obj {
		lk := strings.ToLower(k)
		if prev, ok := folded[lk]; !ok || k < prev {
			folded[lk] = k
		}
	}
	return folded
}

func pickKey(folded map[string]string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if k, ok := folded[c]; ok {
			return k, true
		}
	}
	return "", false
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

var csvDelimiters = []rune{',', ';', '\t', '|'}

type csvParser struct {
	refYear   int
	header    []string
	delimiter rune
	columns   map[string]int
}

func (*csvParser) Format() models.LogFormat { return models.FormatCSV }

func (p *csvParser) parseLine(line string) lineResult {
	if p.header == nil {
		p.readHeader(line)
		return lineResult{schema: true}
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = p.delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	record, err := r.Read()
	if err != nil || len(record) != len(p.header) {
		return lineResult{}
	}

	entry := models.LogEntry{Metadata: models.JSONB{}}
	used := make(map[int]bool)

	if i, ok := p.columns["timestamp"]; ok {
		if ts, ok := parseTimestamp(record[i], p.refYear); ok {
			entry.Timestamp = ts
			used[i] = true
		}
	}
	if i, ok := p.columns["level"]; ok {
		if lvl, ok := models.ParseLogLevel(record[i]); ok {
			entry.Level = lvl
			used[i] = true
		}
	}
	if i, ok := p.columns["service"]; ok {
		if svc := strings.TrimSpace(record[i]); svc != "" {
			entry.Service = svc
			used[i] = true
		}
	}
	if i, ok := p.columns["message"]; ok {
		entry.Message = record[i]
		used[i] = true
	} else {
		entry.Message = line
	}

	for i, value := range record {
		if !used[i] {
			entry.Metadata[p.header[i]] = value
		}
	}
	return lineResult{entry: entry, ok: true}
}

func (p *csvParser) readHeader(line string) {
	p.delimiter = detectDelimiter(line)

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = p.delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	cells, err := r.Read()
	if err != nil {
		cells = strings.Split(line, string(p.delimiter))
	}

	p.header = make([]string, len(cells))
	folded := make(map[string]int, len(cells))
	for i, cell := range cells {
		name := strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		p.header[i] = name
		if _, dup := folded[strings.ToLower(name)]; !dup {
			folded[strings.ToLower(name)] = i
		}
	}

	p.columns = make(map[string]int)
	for field, synonyms := range map[string][]string{
		"timestamp": timestampKeys,
		"level":     levelKeys,
		"service":   serviceKeys,
		"message":   messageKeys,
	} {
		for _, s := range synonyms {
			if i, ok := folded[s]; ok {
				p.columns[field] = i
				break
			}
		}
	}
}

func detectDelimiter(header string) rune {
	best, bestCount := ',', 0
	for _, d := range csvDelimiters {
		if n := strings.Count(header, string(d)); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// ---------------------------------------------------------------------------
// Syslog
// ---------------------------------------------------------------------------

var syslogPatterns = []*regexp.Regexp{
	// RFC 5424: <pri>version timestamp host app procid msgid [sd] msg
	regexp.MustCompile(`^<(?P<pri>\d{1,3})>\d{1,2}\s+(?P<ts>\S+)\s+(?P<host>\S+)\s+(?P<tag>\S+)\s+(?P<pid>\S+)\s+\S+\s+(?:-|\[.*?\])\s*(?P<msg>.*)$`),
	// RFC 3164: <pri>Mmm dd hh:mm:ss host tag[pid]: msg
	regexp.MustCompile(`^(?:<(?P<pri>\d{1,3})>)?(?P<ts>[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(?P<host>\S+)\s+(?P<tag>[^\s:\[]+)(?:\[(?P<pid>\d+)\])?:\s*(?P<msg>.*)$`),
	regexp.MustCompile(`^(?:<(?P<pri>\d{1,3})>)?(?P<ts>\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?)\s+(?P<host>\S+)\s+(?P<tag>[^\s:\[]+)(?:\[(?P<pid>\d+)\])?:?\s+(?P<msg>.*)$`),
	regexp.MustCompile(`^(?:<(?P<pri>\d{1,3})>)?(?P<ts>[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2})\s+(?P<msg>.*)$`),
}

var messageLevelPattern = regexp.MustCompile(`(?i)\b(fatal|critical|crit|error|err|warning|warn|info|debug|trace)\b`)

type syslogParser struct {
	refYear int
}

func (*syslogParser) Format() models.LogFormat { return models.FormatSyslog }

func (p *syslogParser) parseLine(line string) lineResult {
	for _, re := range syslogPatterns {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		group := func(name string) string {
			if i := re.SubexpIndex(name); i >= 0 {
				return m[i]
			}
			return ""
		}

		entry := models.LogEntry{Metadata: models.JSONB{}}
		ts, ok := parseTimestamp(group("ts"), p.refYear)
		if !ok {
			continue
		}
		entry.Timestamp = ts
		entry.Message = group("msg")

		if tag := group("tag"); tag != "" && tag != "-" {
			entry.Service = tag
		}
		if host := group("host"); host != "" && host != "-" {
			entry.Metadata["hostname"] = host
		}
		if pid := group("pid"); pid != "" && pid != "-" {
			entry.Metadata["pid"] = pid
		}

		if pri := group("pri"); pri != "" {
			n, _ := strconv.Atoi(pri)
			entry.Metadata["priority"] = n
			entry.Metadata["facility"] = n / 8
			entry.Level = syslogSeverityLevel(n % 8)
		} else if lm := messageLevelPattern.FindString(entry.Message); lm != "" {
			entry.Level, _ = models.ParseLogLevel(lm)
		}
		return lineResult{entry: entry, ok: true}
	}
	return lineResult{}
}

func syslogSeverityLevel(severity int) models.LogLevel {
	switch severity {
	case 0, 1, 2:
		return models.LogLevelCritical
	case 3:
		return models.LogLevelError
	case 4:
		return models.LogLevelWarn
	case 5, 6:
		return models.LogLevelInfo
	default:
		return models.LogLevelDebug
	}
}

// ---------------------------------------------------------------------------
// Plain text
// ---------------------------------------------------------------------------

var (
	plainTimestampPattern = regexp.MustCompile(`^\[?(?P<ts>` +
		`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:\s?(?:Z|[+-]\d{2}:?\d{2}))?` +
		`|\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?` +
		`|\d{1,2}/\d{1,2}/\d{4} \d{2}:\d{2}:\d{2}` +
		`|\d{1,2}\.\d{1,2}\.\d{4} \d{2}:\d{2}:\d{2}` +
		`|\d{2}/[A-Z][a-z]{2}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4}` +
		`|[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}` +
		`|\d{13}|\d{10}(?:\.\d{1,6})?` +
		`)\]?(?:\s+|$)`)
	plainLevelPattern   = regexp.MustCompile(`^(?:-\s*)?(?:\[(?P<bracket>[A-Za-z]+)\]|(?P<colon>[A-Za-z]+):|(?P<bare>[A-Z]+)(?:\s|$))\s*(?:-\s+)?`)
	plainServicePattern = regexp.MustCompile(`^\[(?P<svc>[^\]\s]{1,64})\]\s*`)
	keyValuePattern     = regexp.MustCompile(`(?:^|\s)([A-Za-z_][\w.]*)=("[^"]*"|\S+)`)
)

type plainTextParser struct {
	refYear int
}

func (*plainTextParser) Format() models.LogFormat { return models.FormatPlainText }

func (p *plainTextParser) parseLine(line string) lineResult {
	rest := strings.TrimSpace(line)
	entry := models.LogEntry{Metadata: models.JSONB{}}
	recognized := false

	if m := plainTimestampPattern.FindStringSubmatch(rest); m != nil {
		if ts, ok := parseTimestamp(m[plainTimestampPattern.SubexpIndex("ts")], p.refYear); ok {
			entry.Timestamp = ts
			rest = rest[len(m[0]):]
			recognized = true
		}
	}

	if m := plainLevelPattern.FindStringSubmatch(rest); m != nil {
		token := m[plainLevelPattern.SubexpIndex("bracket")] +
			m[plainLevelPattern.SubexpIndex("colon")] +
			m[plainLevelPattern.SubexpIndex("bare")]
		if lvl, ok := models.ParseLogLevel(token); ok {
			entry.Level = lvl
			rest = rest[len(m[0]):]
			recognized = true

			if sm := plainServicePattern.FindStringSubmatch(rest); sm != nil {
				entry.Service = sm[1]
				rest = rest[len(sm[0]):]
			}
		}
	}

	for _, kv := range keyValuePattern.FindAllStringSubmatch(rest, -1) {
		key, value := kv[1], strings.Trim(kv[2], `"`)
		entry.Metadata[key] = value
		recognized = true
		if entry.Service == "" && isServiceKey(key) {
			entry.Service = value
		}
	}

	if !recognized {
		return lineResult{}
	}
	entry.Message = strings.TrimSpace(rest)
	if entry.Message == "" {
		entry.Message = strings.TrimSpace(line)
	}
	return lineResult{entry: entry, ok: true}
}

func isServiceKey(key string) bool {
	for _, k := range serviceKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
