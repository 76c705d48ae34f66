package services

import (
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05Z0700",
	"2006-01-02 15:04:05 Z07:00",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"02.01.2006 15:04:05",
	"02/Jan/2006:15:04:05 -0700",
	time.RFC1123Z,
	time.RFC1123,
	time.ANSIC,
	"2006-01-02",
}

const bsdLayout = "Jan _2 15:04:05"

// parseTimestamp understands the layouts found in common log formats plus
// unix epochs in seconds or milliseconds. BSD syslog stamps carry no year,
// so refYear is used. Results are always UTC.
func parseTimestamp(s string, refYear int) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	if t, ok := parseEpoch(s); ok {
		return &t, true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, true
		}
	}

	if t, err := time.Parse(bsdLayout, strings.Join(strings.Fields(s), " ")); err == nil {
		t = time.Date(refYear, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
		return &t, true
	}

	return nil, false
}

func parseEpoch(s string) (time.Time, bool) {
	intPart := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
	}
	for _, r := range intPart {
		if r < '0' || r > '9' {
			return time.Time{}, false
		}
	}

	switch len(intPart) {
	case 10:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return time.Time{}, false
		}
		sec := int64(f)
		nsec := int64((f - float64(sec)) * 1e9)
		return time.Unix(sec, nsec).UTC(), true
	case 13:
		if len(intPart) != len(s) {
			return time.Time{}, false
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
