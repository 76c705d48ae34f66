package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/models"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultAnalysisTimeout = 5 * time.Minute

// AnalyzerConfig holds everything that shapes an analysis run.
type AnalyzerConfig struct {
	BucketInterval  time.Duration
	MaxBuckets      int
	AnalysisTimeout time.Duration
	Limits          Limits
	Patterns        PatternMinerConfig
	Anomalies       AnomalyConfig
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		BucketInterval:  defaultBucketInterval,
		MaxBuckets:      defaultMaxBuckets,
		AnalysisTimeout: defaultAnalysisTimeout,
		Limits:          DefaultLimits(),
		Patterns:        DefaultPatternMinerConfig(),
		Anomalies:       DefaultAnomalyConfig(),
	}
}

// cachedResult is the per-file cache entry. entries is nil until loaded.
type cachedResult struct {
	analysis *models.LogAnalysis
	entries  []models.LogEntry
}

// LogAnalyzer runs the analysis pipeline per file and owns the per-file
// result cache. At most one run per file id is in flight; later callers
// attach to it.
type LogAnalyzer struct {
	store      storage.Store
	cfg        AnalyzerConfig
	miner      *PatternMiner
	detector   *AnomalyDetector
	aggregator *Aggregator

	flights singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedResult
	generations map[string]uint64
}

func NewLogAnalyzer(store storage.Store, cfg AnalyzerConfig) *LogAnalyzer {
	if cfg.AnalysisTimeout <= 0 {
		cfg.AnalysisTimeout = defaultAnalysisTimeout
	}
	return &LogAnalyzer{
		store:       store,
		cfg:         cfg,
		miner:       NewPatternMiner(cfg.Patterns),
		detector:    NewAnomalyDetector(cfg.Anomalies),
		aggregator:  NewAggregator(cfg.BucketInterval, cfg.MaxBuckets),
		cache:       make(map[string]*cachedResult),
		generations: make(map[string]uint64),
	}
}

// Analyze recomputes the analysis of a stored file, replacing any cached
// or persisted result. A call made while a run for the same file is in
// flight waits for that run instead of starting another.
func (a *LogAnalyzer) Analyze(ctx context.Context, fileID string) (*models.LogAnalysis, error) {
	ch := a.flights.DoChan(fileID, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.AnalysisTimeout)
		defer cancel()
		return a.run(runCtx, fileID)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.LogAnalysis), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Analysis returns the cached or persisted analysis, running one if the
// file was never analyzed.
func (a *LogAnalyzer) Analysis(ctx context.Context, fileID string) (*models.LogAnalysis, error) {
	if c := a.cached(fileID); c != nil {
		return c.analysis, nil
	}

	gen := a.generation(fileID)
	file, err := a.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status == models.FileStatusAnalyzed {
		stored, err := a.store.GetAnalysis(ctx, fileID)
		switch {
		case err == nil:
			a.publish(fileID, gen, &cachedResult{analysis: stored})
			return stored, nil
		case !errors.Is(err, storage.ErrAnalysisNotFound):
			return nil, err
		}
	}
	return a.Analyze(ctx, fileID)
}

// Entries pages through the parsed entries of a file.
func (a *LogAnalyzer) Entries(ctx context.Context, fileID string, q EntryQuery) (EntryPage, error) {
	entries, err := a.entries(ctx, fileID)
	if err != nil {
		return EntryPage{}, err
	}
	return QueryEntries(entries, q), nil
}

// Timeline rebuilds the time series at a caller-chosen width. The width is
// coarsened when it would exceed the bucket limit.
func (a *LogAnalyzer) Timeline(ctx context.Context, fileID string, interval time.Duration) ([]models.TimeSeriesData, time.Duration, error) {
	entries, err := a.entries(ctx, fileID)
	if err != nil {
		return nil, 0, err
	}
	series, used := a.aggregator.TimeSeries(entries, interval)
	return series, used, nil
}

// ChatContext builds the summary view handed to the conversational layer.
func (a *LogAnalyzer) ChatContext(ctx context.Context, fileID string) (*ChatContext, error) {
	analysis, err := a.Analysis(ctx, fileID)
	if err != nil {
		return nil, err
	}
	entries, err := a.entries(ctx, fileID)
	if err != nil {
		return nil, err
	}
	file, err := a.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return BuildChatContext(file, analysis, entries), nil
}

// Delete removes a file and drops its cache entry. A run still in flight
// for the file is discarded when it finishes.
func (a *LogAnalyzer) Delete(ctx context.Context, fileID string) error {
	a.mu.Lock()
	a.generations[fileID]++
	delete(a.cache, fileID)
	a.mu.Unlock()
	a.flights.Forget(fileID)

	if err := a.store.DeleteFile(ctx, fileID); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, fileID)
		}
		return err
	}
	logger.WithLogFile(fileID, "").Info("Log file deleted")
	return nil
}

// AnalyzeContent runs the pipeline on content that is not stored, as the
// CLI does.
func (a *LogAnalyzer) AnalyzeContent(ctx context.Context, filename string, content []byte) (*models.LogAnalysis, []models.LogEntry, error) {
	text, err := DecodeContent(content)
	if err != nil {
		return nil, nil, err
	}
	format := DetectFormat(filename, text)
	return a.process(ctx, "", format, text, time.Now().UTC().Year())
}

func (a *LogAnalyzer) run(ctx context.Context, fileID string) (*models.LogAnalysis, error) {
	gen := a.generation(fileID)
	file, err := a.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	log := logger.WithLogFile(file.ID, file.Filename)
	start := time.Now()

	if err := a.store.UpdateFileStatus(ctx, fileID, models.FileStatusProcessing, ""); err != nil {
		return nil, a.notFound(fileID, err)
	}

	content, err := a.store.GetContent(ctx, fileID)
	if err != nil {
		return nil, a.fail(ctx, file, a.notFound(fileID, err))
	}
	text, err := DecodeContent(content)
	if err != nil {
		return nil, a.fail(ctx, file, err)
	}

	analysis, entries, err := a.process(ctx, fileID, file.Format, text, file.UploadTime.UTC().Year())
	if err != nil {
		return nil, a.fail(ctx, file, err)
	}

	if !a.current(fileID, gen) {
		log.Warn("Discarding analysis of deleted file")
		return nil, fmt.Errorf("%w: %s was deleted during analysis", ErrNotFound, fileID)
	}
	if err := a.store.SaveResult(ctx, analysis, entries); err != nil {
		return nil, a.fail(ctx, file, a.notFound(fileID, err))
	}
	if !a.publish(fileID, gen, &cachedResult{analysis: analysis, entries: entries}) {
		log.Warn("Discarding analysis of deleted file")
		return nil, fmt.Errorf("%w: %s was deleted during analysis", ErrNotFound, fileID)
	}

	log.WithFields(map[string]interface{}{
		"entries":   analysis.TotalEntries,
		"patterns":  len(analysis.ErrorPatterns),
		"anomalies": len(analysis.Anomalies),
		"duration":  time.Since(start).String(),
	}).Info("Log file analyzed")
	return analysis, nil
}

// process parses decoded text and fans the entry set out to the three
// consumers.
func (a *LogAnalyzer) process(ctx context.Context, fileID string, format models.LogFormat, text []byte, refYear int) (*models.LogAnalysis, []models.LogEntry, error) {
	if err := a.cfg.Limits.Check(text); err != nil {
		return nil, nil, err
	}

	opts := ParseOptions{MaxLineBytes: a.cfg.Limits.MaxLineBytes, ReferenceYear: refYear}
	entries, err := ParseEntries(bytes.NewReader(text), NewEntryParser(format, opts), opts)
	if err != nil {
		return nil, nil, err
	}
	for i := range entries {
		entries[i].LogFileID = fileID
	}

	interval := a.aggregator.EffectiveInterval(DateRangeOf(entries), a.aggregator.Interval())

	var (
		patterns  []models.PatternMatch
		anomalies []models.Anomaly
		agg       Aggregation
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		patterns = a.miner.Mine(entries)
		return gctx.Err()
	})
	g.Go(func() error {
		anomalies = a.detector.Detect(entries, interval)
		return gctx.Err()
	})
	g.Go(func() error {
		agg = a.aggregator.Aggregate(entries, interval)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("analysis aborted: %w", err)
	}

	analysis := &models.LogAnalysis{
		FileID:              fileID,
		Format:              format,
		TotalEntries:        len(entries),
		DateRange:           agg.DateRange,
		LevelDistribution:   agg.LevelDistribution,
		ServiceDistribution: agg.ServiceDistribution,
		ErrorPatterns:       patterns,
		Anomalies:           anomalies,
		TimeSeries:          agg.TimeSeries,
		BucketInterval:      FormatInterval(interval),
		AnalyzedAt:          time.Now().UTC(),
	}
	return analysis, entries, nil
}

func (a *LogAnalyzer) entries(ctx context.Context, fileID string) ([]models.LogEntry, error) {
	if c := a.cached(fileID); c != nil && c.entries != nil {
		return c.entries, nil
	}

	gen := a.generation(fileID)
	file, err := a.getFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status == models.FileStatusAnalyzed {
		analysis, aerr := a.store.GetAnalysis(ctx, fileID)
		entries, eerr := a.store.GetEntries(ctx, fileID)
		if aerr == nil && eerr == nil {
			a.publish(fileID, gen, &cachedResult{analysis: analysis, entries: entries})
			return entries, nil
		}
	}

	if _, err := a.Analyze(ctx, fileID); err != nil {
		return nil, err
	}
	c := a.cached(fileID)
	if c == nil || c.entries == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return c.entries, nil
}

func (a *LogAnalyzer) getFile(ctx context.Context, fileID string) (*models.LogFile, error) {
	file, err := a.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, a.notFound(fileID, err)
	}
	return file, nil
}

func (a *LogAnalyzer) notFound(fileID string, err error) error {
	if errors.Is(err, storage.ErrFileNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return err
}

// fail records the failure reason on the file and returns err.
func (a *LogAnalyzer) fail(ctx context.Context, file *models.LogFile, err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	logger.WithError(err, "log_analyzer").WithField("log_file_id", file.ID).Error("Log analysis failed")
	if uerr := a.store.UpdateFileStatus(context.WithoutCancel(ctx), file.ID, models.FileStatusFailed, err.Error()); uerr != nil && !errors.Is(uerr, storage.ErrFileNotFound) {
		logger.WithError(uerr, "log_analyzer").Warn("Failed to record analysis failure")
	}
	return err
}

func (a *LogAnalyzer) cached(fileID string) *cachedResult {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cache[fileID]
}

func (a *LogAnalyzer) generation(fileID string) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generations[fileID]
}

func (a *LogAnalyzer) current(fileID string, gen uint64) bool {
	return a.generation(fileID) == gen
}

// publish stores res unless the file was deleted since gen was read.
func (a *LogAnalyzer) publish(fileID string, gen uint64, res *cachedResult) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generations[fileID] != gen {
		return false
	}
	a.cache[fileID] = res
	return true
}
