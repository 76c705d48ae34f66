package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

const (
	defaultBucketInterval = time.Hour
	defaultMaxBuckets     = 5000
	day                   = 24 * time.Hour
)

// intervalLadder lists the bucket widths used when a timeline would
// otherwise exceed the bucket limit.
var intervalLadder = []time.Duration{
	time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
	6 * time.Hour,
	12 * time.Hour,
	day,
	7 * day,
	30 * day,
}

// ladderNames are the short names of intervalLadder, index for index.
var ladderNames = []string{"1m", "5m", "15m", "30m", "1h", "2h", "6h", "12h", "1d", "7d", "30d"}

// ParseInterval accepts the short timeline names (1m, 5m, 15m, 30m, 1h, 6h,
// 12h, 1d, ...) and any positive Go duration.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range ladderNames {
		if name == s {
			return intervalLadder[i], nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return d, nil
}

// FormatInterval is the inverse of ParseInterval for ladder widths.
func FormatInterval(d time.Duration) string {
	for i, v := range intervalLadder {
		if v == d {
			return ladderNames[i]
		}
	}
	return d.String()
}

// Aggregation holds the distribution and timeline part of an analysis.
type Aggregation struct {
	LevelDistribution   map[models.LogLevel]int
	ServiceDistribution map[string]int
	DateRange           models.DateRange
	TimeSeries          []models.TimeSeriesData
	Interval            time.Duration
}

// Aggregator computes distributions, the date range and the zero-filled
// time series.
type Aggregator struct {
	interval   time.Duration
	maxBuckets int
}

func NewAggregator(interval time.Duration, maxBuckets int) *Aggregator {
	if interval <= 0 {
		interval = defaultBucketInterval
	}
	if maxBuckets <= 0 {
		maxBuckets = defaultMaxBuckets
	}
	return &Aggregator{interval: interval, maxBuckets: maxBuckets}
}

// Interval returns the configured bucket width.
func (a *Aggregator) Interval() time.Duration {
	return a.interval
}

// EffectiveInterval returns the smallest width, starting from base, whose
// timeline over dr stays within the bucket limit.
func (a *Aggregator) EffectiveInterval(dr models.DateRange, base time.Duration) time.Duration {
	if base <= 0 {
		base = a.interval
	}
	if dr.Start == nil || dr.End == nil {
		return base
	}
	if bucketCount(*dr.Start, *dr.End, base) <= a.maxBuckets {
		return base
	}
	for _, d := range intervalLadder {
		if d <= base {
			continue
		}
		if bucketCount(*dr.Start, *dr.End, d) <= a.maxBuckets {
			return d
		}
	}
	// Wider than the ladder: grow in whole ladder-top steps.
	d := intervalLadder[len(intervalLadder)-1]
	for bucketCount(*dr.Start, *dr.End, d) > a.maxBuckets {
		d *= 2
	}
	return d
}

// Aggregate summarizes entries at the given bucket width.
func (a *Aggregator) Aggregate(entries []models.LogEntry, interval time.Duration) Aggregation {
	if interval <= 0 {
		interval = a.interval
	}
	agg := Aggregation{
		LevelDistribution:   make(map[models.LogLevel]int),
		ServiceDistribution: make(map[string]int),
		DateRange:           DateRangeOf(entries),
		TimeSeries:          []models.TimeSeriesData{},
		Interval:            interval,
	}

	for i := range entries {
		if entries[i].Level != "" {
			agg.LevelDistribution[entries[i].Level]++
		}
		if entries[i].Service != "" {
			agg.ServiceDistribution[entries[i].Service]++
		}
	}

	for _, b := range bucketize(entries, agg.DateRange, interval, false) {
		agg.TimeSeries = append(agg.TimeSeries, b.TimeSeriesData)
	}
	return agg
}

// TimeSeries builds only the timeline, e.g. for a different width than the
// stored analysis used.
func (a *Aggregator) TimeSeries(entries []models.LogEntry, interval time.Duration) ([]models.TimeSeriesData, time.Duration) {
	dr := DateRangeOf(entries)
	interval = a.EffectiveInterval(dr, interval)
	series := []models.TimeSeriesData{}
	for _, b := range bucketize(entries, dr, interval, false) {
		series = append(series, b.TimeSeriesData)
	}
	return series, interval
}

// DateRangeOf returns the min and max timestamps; both are nil when no
// entry has a timestamp.
func DateRangeOf(entries []models.LogEntry) models.DateRange {
	var dr models.DateRange
	for i := range entries {
		ts := entries[i].Timestamp
		if ts == nil {
			continue
		}
		if dr.Start == nil || ts.Before(*dr.Start) {
			dr.Start = copyTime(*ts)
		}
		if dr.End == nil || ts.After(*dr.End) {
			dr.End = copyTime(*ts)
		}
	}
	return dr
}

type bucket struct {
	models.TimeSeriesData
	services map[string]int
}

func bucketFloor(t time.Time, interval time.Duration) time.Time {
	return t.UTC().Truncate(interval)
}

// bucketOffset counts whole intervals from first to t. Both must already be
// bucket floors. Whole-second widths go through Unix seconds because
// time.Duration saturates at about 292 years.
func bucketOffset(first, t time.Time, interval time.Duration) int64 {
	if interval%time.Second == 0 {
		return (t.Unix() - first.Unix()) / int64(interval/time.Second)
	}
	return int64(t.Sub(first) / interval)
}

func bucketCount(start, end time.Time, interval time.Duration) int {
	first := bucketFloor(start, interval)
	last := bucketFloor(end, interval)
	return int(bucketOffset(first, last, interval)) + 1
}

// bucketize assigns timestamped entries to contiguous buckets spanning
// floor(start) to floor(end). Entries without a timestamp are skipped.
func bucketize(entries []models.LogEntry, dr models.DateRange, interval time.Duration, withServices bool) []bucket {
	if dr.Start == nil || dr.End == nil {
		return nil
	}
	first := bucketFloor(*dr.Start, interval)
	n := bucketCount(*dr.Start, *dr.End, interval)

	buckets := make([]bucket, n)
	ts := first
	for i := range buckets {
		buckets[i].Timestamp = ts
		ts = ts.Add(interval)
		if withServices {
			buckets[i].services = make(map[string]int)
		}
	}

	for i := range entries {
		e := &entries[i]
		if e.Timestamp == nil {
			continue
		}
		idx := int(bucketOffset(first, bucketFloor(*e.Timestamp, interval), interval))
		if idx < 0 || idx >= n {
			continue
		}
		b := &buckets[idx]
		b.TotalCount++
		switch {
		case e.Level.IsError():
			b.ErrorCount++
		case e.Level.IsWarn():
			b.WarnCount++
		case e.Level == models.LogLevelInfo:
			b.InfoCount++
		}
		if withServices && e.Service != "" {
			b.services[e.Service]++
		}
	}
	return buckets
}
