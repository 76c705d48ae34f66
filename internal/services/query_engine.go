package services

import (
	"strings"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

// EntryQuery is the fixed filter set of the entries browser. Empty
// filters match everything.
type EntryQuery struct {
	Offset  int
	Limit   int
	Level   string
	Service string
	Search  string
}

type EntryPage struct {
	Entries []models.LogEntry `json:"entries"`
	Total   int               `json:"total"`
	Offset  int               `json:"offset"`
	Limit   int               `json:"limit"`
}

// QueryEntries filters entries in their original order and returns one
// page plus the number of matching entries.
func QueryEntries(entries []models.LogEntry, q EntryQuery) EntryPage {
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Limit < 0 {
		q.Limit = 0
	}
	level := strings.TrimSpace(q.Level)
	service := strings.TrimSpace(q.Service)
	search := strings.ToLower(q.Search)

	page := EntryPage{Entries: []models.LogEntry{}, Offset: q.Offset, Limit: q.Limit}
	for i := range entries {
		e := &entries[i]
		if level != "" && !strings.EqualFold(string(e.Level), level) {
			continue
		}
		if service != "" && !strings.EqualFold(e.Service, service) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) {
			continue
		}
		if page.Total >= q.Offset && len(page.Entries) < q.Limit {
			page.Entries = append(page.Entries, *e)
		}
		page.Total++
	}
	return page
}
