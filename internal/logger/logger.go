package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	Logger      *logrus.Logger // Main logger instance
	defaultOnce sync.Once
)

// Options configures the application logger
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // optional log file, stdout when empty
}

// Initialize sets up the logger with the given options
func Initialize(opts Options) {
	l := logrus.New()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			DisableColors:   opts.File != "",
		})
	}

	var out io.Writer = os.Stdout
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			fmt.Printf("Failed to create logs directory: %v\n", err)
		} else if f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err != nil {
			fmt.Printf("Failed to open log file: %v\n", err)
		} else {
			out = f
			l.SetReportCaller(true)
		}
	}
	l.SetOutput(out)

	Logger = l

	Logger.WithFields(logrus.Fields{
		"log_level":  level.String(),
		"log_format": opts.Format,
		"log_file":   opts.File,
	}).Debug("Logging system initialized")
}

// GetLogger returns the configured main logger instance
func GetLogger() *logrus.Logger {
	defaultOnce.Do(func() {
		if Logger == nil {
			Initialize(Options{Level: os.Getenv("LOG_LEVEL")})
		}
	})
	return Logger
}

// WithContext creates a logger with additional context fields
func WithContext(fields map[string]interface{}) *logrus.Entry {
	return GetLogger().WithFields(fields)
}

// WithComponent tags entries with the emitting component
func WithComponent(component string) *logrus.Entry {
	return GetLogger().WithField("component", component)
}

// WithLogFile creates a logger with log file context
func WithLogFile(logFileID string, filename string) *logrus.Entry {
	fields := logrus.Fields{"log_file_id": logFileID}
	if filename != "" {
		fields["filename"] = filename
	}
	return WithComponent("log_analyzer").WithFields(fields)
}

// WithJob creates a logger with job context
func WithJob(jobID string, logFileID string) *logrus.Entry {
	return WithComponent("analysis_queue").WithFields(logrus.Fields{
		"job_id":      jobID,
		"log_file_id": logFileID,
	})
}

// WithError creates a logger with error context
func WithError(err error, component string) *logrus.Entry {
	fields := logrus.Fields{"error": err.Error()}

	// Add stack trace for debug level
	if GetLogger().GetLevel() >= logrus.DebugLevel {
		fields["stack_trace"] = getStackTrace()
	}

	return WithComponent(component).WithFields(fields)
}

// getStackTrace returns a formatted stack trace
func getStackTrace() string {
	var stack []string
	for i := 2; i < 10; i++ {
		if pc, file, line, ok := runtime.Caller(i); ok {
			fn := runtime.FuncForPC(pc)
			stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, fn.Name()))
		}
	}
	return strings.Join(stack, "\n")
}

// Log levels convenience functions (with fields)
func Debug(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Warn(msg)
}

func Error(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Error(msg)
}

func Fatal(msg string, fields map[string]interface{}) {
	GetLogger().WithFields(fields).Fatal(msg)
}
