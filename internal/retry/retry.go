package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/logger"
)

// Config holds retry configuration
type Config struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
	MaxWait     time.Duration `mapstructure:"max_wait"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

// DefaultConfig returns the backoff used for storage connections
func DefaultConfig() Config {
	return Config{
		MaxRetries:  5,
		InitialWait: 1 * time.Second,
		MaxWait:     30 * time.Second,
		Multiplier:  2.0,
	}
}

// Do executes fn with exponential backoff until it succeeds, the retries
// are used up or ctx is done.
func Do(ctx context.Context, cfg Config, op string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxRetries {
			break
		}

		wait := backoff(attempt, cfg)
		logger.Warn("Operation failed, retrying", map[string]interface{}{
			"operation": op,
			"attempt":   attempt + 1,
			"wait":      wait.String(),
			"error":     lastErr.Error(),
		})

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return lastErr
}

// backoff is InitialWait * Multiplier^attempt capped at MaxWait, with ±25% jitter.
func backoff(attempt int, cfg Config) time.Duration {
	wait := float64(cfg.InitialWait) * math.Pow(cfg.Multiplier, float64(attempt))
	if cfg.MaxWait > 0 && wait > float64(cfg.MaxWait) {
		wait = float64(cfg.MaxWait)
	}

	wait += wait * 0.25 * (rand.Float64()*2 - 1)

	if wait < float64(cfg.InitialWait) {
		wait = float64(cfg.InitialWait)
	}
	return time.Duration(wait)
}
