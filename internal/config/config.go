package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahsanj/local-log-analyzer/internal/models"
	"github.com/ahsanj/local-log-analyzer/internal/retry"
	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	ozzo "github.com/go-ozzo/ozzo-validation"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// DBConfig holds the postgres connection pieces used when no DATABASE_URL is set
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`
}

// DSN builds a key/value connection string
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type AnalysisConfig struct {
	BucketInterval    string                 `mapstructure:"bucket_interval"`
	MaxBuckets        int                    `mapstructure:"max_buckets"`
	Timeout           time.Duration          `mapstructure:"timeout"`
	HighFrequency     float64                `mapstructure:"high_frequency_ratio"`
	PatternLevels     []string               `mapstructure:"pattern_levels"`
	Anomalies         services.AnomalyConfig `mapstructure:"anomalies"`
	AllowedExtensions []string               `mapstructure:"allowed_extensions"`
}

type QueueConfig struct {
	AutoAnalyze bool `mapstructure:"auto_analyze"`
	Workers     int  `mapstructure:"workers"`
	Size        int  `mapstructure:"size"`
}

// Config is the complete application configuration
type Config struct {
	Port            string        `mapstructure:"port"`
	GinMode         string        `mapstructure:"gin_mode"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	JWTSecret       string        `mapstructure:"jwt_secret"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Storage     StorageConfig       `mapstructure:"storage"`
	DatabaseURL string              `mapstructure:"database_url"`
	DB          DBConfig            `mapstructure:"db"`
	Mongo       storage.MongoConfig `mapstructure:"mongo"`
	Retry       retry.Config        `mapstructure:"retry"`

	Limits   services.Limits `mapstructure:"limits"`
	Analysis AnalysisConfig  `mapstructure:"analysis"`
	Queue    QueueConfig     `mapstructure:"queue"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("cors_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("shutdown_timeout", "30s")
	v.SetDefault("jwt_secret", "")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "5432")
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "log_analyzer")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.log_level", "error")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "log_analyzer")
	v.SetDefault("mongo.timeout", "10s")
	v.SetDefault("mongo.max_pool_size", 100)

	rc := retry.DefaultConfig()
	v.SetDefault("retry.max_retries", rc.MaxRetries)
	v.SetDefault("retry.initial_wait", rc.InitialWait.String())
	v.SetDefault("retry.max_wait", rc.MaxWait.String())
	v.SetDefault("retry.multiplier", rc.Multiplier)

	limits := services.DefaultLimits()
	v.SetDefault("limits.max_file_size", limits.MaxFileSize)
	v.SetDefault("limits.max_lines", limits.MaxLines)
	v.SetDefault("limits.max_line_bytes", limits.MaxLineBytes)

	an := services.DefaultAnomalyConfig()
	pm := services.DefaultPatternMinerConfig()
	v.SetDefault("analysis.bucket_interval", "1h")
	v.SetDefault("analysis.max_buckets", 5000)
	v.SetDefault("analysis.timeout", "5m")
	v.SetDefault("analysis.high_frequency_ratio", pm.HighFrequencyRatio)
	v.SetDefault("analysis.pattern_levels", []string{"ERROR", "FATAL", "CRITICAL"})
	v.SetDefault("analysis.anomalies.stddev_multiplier", an.StdDevMultiplier)
	v.SetDefault("analysis.anomalies.min_buckets", an.MinBuckets)
	v.SetDefault("analysis.anomalies.min_silence_buckets", an.MinSilenceBuckets)
	v.SetDefault("analysis.anomalies.service_share_factor", an.ServiceShareFactor)
	v.SetDefault("analysis.anomalies.min_service_bucket_entries", an.MinServiceBucketEntries)
	v.SetDefault("analysis.allowed_extensions", services.DefaultExtensions)

	v.SetDefault("queue.auto_analyze", true)
	v.SetDefault("queue.workers", 2)
	v.SetDefault("queue.size", 100)
}

// Load reads .env, then the optional config file, then the environment.
// Nested keys map to env vars with dots replaced by underscores, so
// db.host is DB_HOST and storage.driver is STORAGE_DRIVER.
func Load(configPath string) (*Config, error) {
	// .env is optional, like in local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" && cfg.Storage.Driver == DriverPostgres {
		cfg.DatabaseURL = cfg.DB.DSN()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	if err := ozzo.ValidateStruct(&c,
		ozzo.Field(&c.Port, ozzo.Required),
		ozzo.Field(&c.GinMode, ozzo.In("debug", "release", "test")),
		ozzo.Field(&c.LogLevel, ozzo.In("trace", "debug", "info", "warn", "warning", "error", "fatal", "panic")),
		ozzo.Field(&c.LogFormat, ozzo.In("text", "json")),
	); err != nil {
		return err
	}
	if err := ozzo.ValidateStruct(&c.Storage,
		ozzo.Field(&c.Storage.Driver, ozzo.Required, ozzo.In(DriverMemory, DriverPostgres, DriverMongo)),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.Storage.Driver == DriverMongo {
		if err := ozzo.ValidateStruct(&c.Mongo,
			ozzo.Field(&c.Mongo.URI, ozzo.Required),
			ozzo.Field(&c.Mongo.Database, ozzo.Required),
		); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	if err := ozzo.ValidateStruct(&c.Limits,
		ozzo.Field(&c.Limits.MaxFileSize, ozzo.Min(int64(1))),
		ozzo.Field(&c.Limits.MaxLines, ozzo.Min(1)),
		ozzo.Field(&c.Limits.MaxLineBytes, ozzo.Min(1)),
	); err != nil {
		return fmt.Errorf("limits: %w", err)
	}
	if err := ozzo.ValidateStruct(&c.Analysis,
		ozzo.Field(&c.Analysis.BucketInterval, ozzo.Required, ozzo.By(validInterval)),
		ozzo.Field(&c.Analysis.MaxBuckets, ozzo.Min(1)),
		ozzo.Field(&c.Analysis.HighFrequency, ozzo.Min(0.0), ozzo.Max(1.0)),
	); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := ozzo.ValidateStruct(&c.Queue,
		ozzo.Field(&c.Queue.Workers, ozzo.Min(1)),
		ozzo.Field(&c.Queue.Size, ozzo.Min(1)),
	); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	return nil
}

func validInterval(value interface{}) error {
	s, _ := value.(string)
	_, err := services.ParseInterval(s)
	return err
}

// AnalyzerConfig converts the analysis settings for the services layer
func (c Config) AnalyzerConfig() services.AnalyzerConfig {
	out := services.DefaultAnalyzerConfig()
	if d, err := services.ParseInterval(c.Analysis.BucketInterval); err == nil {
		out.BucketInterval = d
	}
	out.MaxBuckets = c.Analysis.MaxBuckets
	out.AnalysisTimeout = c.Analysis.Timeout
	out.Limits = c.Limits
	out.Anomalies = c.Analysis.Anomalies
	out.Patterns.HighFrequencyRatio = c.Analysis.HighFrequency
	if len(c.Analysis.PatternLevels) > 0 {
		out.Patterns.Levels = out.Patterns.Levels[:0]
		for _, name := range c.Analysis.PatternLevels {
			if lvl, ok := models.ParseLogLevel(name); ok {
				out.Patterns.Levels = append(out.Patterns.Levels, lvl)
			}
		}
	}
	return out
}
