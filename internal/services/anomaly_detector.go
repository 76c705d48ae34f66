package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
)

// AnomalyConfig holds the detection thresholds.
type AnomalyConfig struct {
	// StdDevMultiplier is k in mean + k*stddev for spikes and bursts.
	StdDevMultiplier float64 `mapstructure:"stddev_multiplier"`
	// MinBuckets is the fewest buckets needed before anything is reported.
	MinBuckets int `mapstructure:"min_buckets"`
	// MinSilenceBuckets is the shortest run of empty buckets reported as a gap.
	MinSilenceBuckets int `mapstructure:"min_silence_buckets"`
	// ServiceShareFactor flags a service whose share of a bucket exceeds
	// this multiple of its overall share.
	ServiceShareFactor float64 `mapstructure:"service_share_factor"`
	// MinServiceBucketEntries ignores buckets too small for a share to mean
	// anything.
	MinServiceBucketEntries int `mapstructure:"min_service_bucket_entries"`
}

func DefaultAnomalyConfig() AnomalyConfig {
	return AnomalyConfig{
		StdDevMultiplier:        2,
		MinBuckets:              3,
		MinSilenceBuckets:       3,
		ServiceShareFactor:      2,
		MinServiceBucketEntries: 10,
	}
}

func (c AnomalyConfig) withDefaults() AnomalyConfig {
	def := DefaultAnomalyConfig()
	if c.StdDevMultiplier <= 0 {
		c.StdDevMultiplier = def.StdDevMultiplier
	}
	if c.MinBuckets <= 0 {
		c.MinBuckets = def.MinBuckets
	}
	if c.MinSilenceBuckets <= 0 {
		c.MinSilenceBuckets = def.MinSilenceBuckets
	}
	if c.ServiceShareFactor <= 0 {
		c.ServiceShareFactor = def.ServiceShareFactor
	}
	if c.MinServiceBucketEntries <= 0 {
		c.MinServiceBucketEntries = def.MinServiceBucketEntries
	}
	return c
}

// AnomalyDetector flags statistically unusual time buckets.
type AnomalyDetector struct {
	cfg AnomalyConfig
}

func NewAnomalyDetector(cfg AnomalyConfig) *AnomalyDetector {
	return &AnomalyDetector{cfg: cfg.withDefaults()}
}

// Detect buckets entries at interval and runs every rule. Results are
// ordered by timestamp, then type, then description.
func (d *AnomalyDetector) Detect(entries []models.LogEntry, interval time.Duration) []models.Anomaly {
	anomalies := []models.Anomaly{}
	if interval <= 0 {
		interval = defaultBucketInterval
	}

	buckets := bucketize(entries, DateRangeOf(entries), interval, true)
	if len(buckets) < d.cfg.MinBuckets {
		return anomalies
	}

	anomalies = append(anomalies, d.volumeSpikes(buckets)...)
	anomalies = append(anomalies, d.errorBursts(buckets)...)
	anomalies = append(anomalies, d.silenceGaps(buckets, interval)...)
	anomalies = append(anomalies, d.serviceAnomalies(buckets)...)

	sort.SliceStable(anomalies, func(i, j int) bool {
		a, b := anomalies[i], anomalies[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Description < b.Description
	})
	return anomalies
}

func (d *AnomalyDetector) volumeSpikes(buckets []bucket) []models.Anomaly {
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = float64(b.TotalCount)
	}
	var out []models.Anomaly
	for _, o := range d.outliers(values) {
		b := buckets[o.index]
		out = append(out, models.Anomaly{
			Type:        models.AnomalyVolumeSpike,
			Description: fmt.Sprintf("%d entries in one bucket, %.1f standard deviations above the mean of %.1f", b.TotalCount, o.z, o.mean),
			Timestamp:   b.Timestamp,
			Severity:    zSeverity(o.z),
			Count:       b.TotalCount,
		})
	}
	return out
}

func (d *AnomalyDetector) errorBursts(buckets []bucket) []models.Anomaly {
	values := make([]float64, len(buckets))
	for i, b := range buckets {
		values[i] = float64(b.ErrorCount)
	}
	var out []models.Anomaly
	for _, o := range d.outliers(values) {
		b := buckets[o.index]
		out = append(out, models.Anomaly{
			Type:        models.AnomalyErrorBurst,
			Description: fmt.Sprintf("%d errors in one bucket, %.1f standard deviations above the mean of %.1f", b.ErrorCount, o.z, o.mean),
			Timestamp:   b.Timestamp,
			Severity:    zSeverity(o.z),
			Count:       b.ErrorCount,
		})
	}
	return out
}

func (d *AnomalyDetector) silenceGaps(buckets []bucket, interval time.Duration) []models.Anomaly {
	var out []models.Anomaly
	flush := func(start, length int) {
		if length < d.cfg.MinSilenceBuckets {
			return
		}
		severity := models.SeverityMedium
		if length >= 2*d.cfg.MinSilenceBuckets {
			severity = models.SeverityHigh
		}
		out = append(out, models.Anomaly{
			Type:        models.AnomalySilenceGap,
			Description: fmt.Sprintf("No log entries for %d consecutive %s buckets", length, FormatInterval(interval)),
			Timestamp:   buckets[start].Timestamp,
			Severity:    severity,
			Count:       0,
		})
	}

	run := 0
	for i, b := range buckets {
		if b.TotalCount == 0 {
			run++
			continue
		}
		flush(i-run, run)
		run = 0
	}
	flush(len(buckets)-run, run)
	return out
}

func (d *AnomalyDetector) serviceAnomalies(buckets []bucket) []models.Anomaly {
	overall := make(map[string]int)
	total := 0
	for _, b := range buckets {
		total += b.TotalCount
		for svc, n := range b.services {
			overall[svc] += n
		}
	}
	if total == 0 || len(overall) < 2 {
		return nil
	}

	services := make([]string, 0, len(overall))
	for svc := range overall {
		services = append(services, svc)
	}
	sort.Strings(services)

	var out []models.Anomaly
	for _, b := range buckets {
		if b.TotalCount < d.cfg.MinServiceBucketEntries {
			continue
		}
		for _, svc := range services {
			n := b.services[svc]
			if n == 0 {
				continue
			}
			baseline := float64(overall[svc]) / float64(total)
			share := float64(n) / float64(b.TotalCount)
			ratio := share / baseline
			if ratio <= d.cfg.ServiceShareFactor {
				continue
			}
			severity := models.SeverityMedium
			if ratio >= 2*d.cfg.ServiceShareFactor {
				severity = models.SeverityHigh
			}
			out = append(out, models.Anomaly{
				Type:        models.AnomalyServiceAnomaly,
				Description: fmt.Sprintf("Service %s produced %.0f%% of entries in this bucket against %.0f%% overall", svc, share*100, baseline*100),
				Timestamp:   b.Timestamp,
				Severity:    severity,
				Count:       n,
			})
		}
	}
	return out
}

type outlier struct {
	index int
	z     float64
	mean  float64
}

// outliers returns the values above mean + k*stddev (population stddev).
func (d *AnomalyDetector) outliers(values []float64) []outlier {
	mean, std := meanStdDev(values)
	if std == 0 {
		return nil
	}
	threshold := mean + d.cfg.StdDevMultiplier*std
	var out []outlier
	for i, v := range values {
		if v > threshold {
			out = append(out, outlier{index: i, z: (v - mean) / std, mean: mean})
		}
	}
	return out
}

func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(values)))
}

func zSeverity(z float64) models.Severity {
	switch {
	case z >= 3:
		return models.SeverityHigh
	case z >= 2:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
