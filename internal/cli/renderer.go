package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Report is one analyzed file as printed by the CLI.
type Report struct {
	File     string              `json:"file"`
	Analysis *models.LogAnalysis `json:"analysis"`
	Entries  *services.EntryPage `json:"entries,omitempty"`
}

// Renderer writes reports to an output stream.
type Renderer interface {
	Render(r Report) error
	Flush() error
}

func NewRenderer(format string, w io.Writer, patternLimit int) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &TextRenderer{w: w, patternLimit: patternLimit}, nil
	case "json":
		return &JSONRenderer{enc: json.NewEncoder(w)}, nil
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return &YAMLRenderer{enc: enc}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// ---------------------------------------------------------------------------
// Text Renderer
// ---------------------------------------------------------------------------

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleFatal   = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("196")).
			Bold(true)
	styleBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// TextRenderer prints a colorized summary for terminals.
type TextRenderer struct {
	w            io.Writer
	patternLimit int
}

func (r *TextRenderer) Render(rep Report) error {
	a := rep.Analysis
	var b strings.Builder

	header := []string{
		styleTitle.Render(rep.File),
		fmt.Sprintf("format: %s   entries: %d   buckets: %s", a.Format, a.TotalEntries, a.BucketInterval),
	}
	if a.DateRange.Start != nil && a.DateRange.End != nil {
		header = append(header, styleMuted.Render(fmt.Sprintf("%s → %s",
			a.DateRange.Start.Format(time.RFC3339), a.DateRange.End.Format(time.RFC3339))))
	}
	b.WriteString(styleBox.Render(strings.Join(header, "\n")))
	b.WriteString("\n")

	if len(a.LevelDistribution) > 0 {
		b.WriteString(styleHeading.Render("Levels") + "\n")
		levels := make([]string, 0, len(a.LevelDistribution))
		for lvl := range a.LevelDistribution {
			levels = append(levels, string(lvl))
		}
		sort.Strings(levels)
		for _, lvl := range levels {
			fmt.Fprintf(&b, "  %s %d\n", styleLevel(models.LogLevel(lvl)), a.LevelDistribution[models.LogLevel(lvl)])
		}
	}

	if len(a.ServiceDistribution) > 0 {
		b.WriteString(styleHeading.Render("Services") + "\n")
		type kv struct {
			k string
			v int
		}
		svcs := make([]kv, 0, len(a.ServiceDistribution))
		for k, v := range a.ServiceDistribution {
			svcs = append(svcs, kv{k, v})
		}
		sort.Slice(svcs, func(i, j int) bool {
			if svcs[i].v != svcs[j].v {
				return svcs[i].v > svcs[j].v
			}
			return svcs[i].k < svcs[j].k
		})
		for _, s := range svcs {
			fmt.Fprintf(&b, "  %-24s %d\n", s.k, s.v)
		}
	}

	if len(a.ErrorPatterns) > 0 {
		b.WriteString(styleHeading.Render(fmt.Sprintf("Error patterns (%d)", len(a.ErrorPatterns))) + "\n")
		for i, p := range a.ErrorPatterns {
			if r.patternLimit > 0 && i >= r.patternLimit {
				fmt.Fprintf(&b, "  %s\n", styleMuted.Render(fmt.Sprintf("... %d more", len(a.ErrorPatterns)-i)))
				break
			}
			fmt.Fprintf(&b, "  %s %5d  %-14s %s\n", styleSeverity(p.Severity), p.Count, p.Category, p.Pattern)
		}
	}

	if len(a.Anomalies) > 0 {
		b.WriteString(styleHeading.Render(fmt.Sprintf("Anomalies (%d)", len(a.Anomalies))) + "\n")
		for _, an := range a.Anomalies {
			fmt.Fprintf(&b, "  %s %s %-16s %s\n",
				an.Timestamp.Format("2006-01-02 15:04"), styleSeverity(an.Severity), an.Type, an.Description)
		}
	}

	if rep.Entries != nil {
		b.WriteString(styleHeading.Render(fmt.Sprintf("Entries (%d of %d)", len(rep.Entries.Entries), rep.Entries.Total)) + "\n")
		for _, e := range rep.Entries.Entries {
			ts := "                   "
			if e.Timestamp != nil {
				ts = e.Timestamp.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(&b, "  %5d %s %s %s %s\n", e.LineNumber, styleMuted.Render(ts), styleLevel(e.Level), e.Service, e.Message)
		}
	}

	_, err := fmt.Fprintln(r.w, b.String())
	return err
}

func (r *TextRenderer) Flush() error { return nil }

func styleLevel(level models.LogLevel) string {
	padded := fmt.Sprintf("%-8s", level)
	switch {
	case level == models.LogLevelFatal || level == models.LogLevelCritical:
		return styleFatal.Render(padded)
	case level.IsError():
		return styleError.Render(padded)
	case level.IsWarn():
		return styleWarn.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

func styleSeverity(s models.Severity) string {
	padded := fmt.Sprintf("%-6s", s)
	switch s {
	case models.SeverityHigh:
		return styleError.Render(padded)
	case models.SeverityMedium:
		return styleWarn.Render(padded)
	default:
		return styleInfo.Render(padded)
	}
}

// ---------------------------------------------------------------------------
// JSON Renderer
// ---------------------------------------------------------------------------

// JSONRenderer prints one JSON object per report.
type JSONRenderer struct {
	enc *json.Encoder
}

func (r *JSONRenderer) Render(rep Report) error {
	return r.enc.Encode(rep)
}

func (r *JSONRenderer) Flush() error { return nil }

// ---------------------------------------------------------------------------
// YAML Renderer
// ---------------------------------------------------------------------------

// YAMLRenderer prints one YAML document per report, keyed like the JSON
// output.
type YAMLRenderer struct {
	enc *yaml.Encoder
}

func (r *YAMLRenderer) Render(rep Report) error {
	raw, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return r.enc.Encode(doc)
}

func (r *YAMLRenderer) Flush() error {
	return r.enc.Close()
}
