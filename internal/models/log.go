package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type LogLevel string

const (
	LogLevelError    LogLevel = "ERROR"
	LogLevelFatal    LogLevel = "FATAL"
	LogLevelCritical LogLevel = "CRITICAL"
	LogLevelWarn     LogLevel = "WARN"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelInfo     LogLevel = "INFO"
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelTrace    LogLevel = "TRACE"
)

var levelAliases = map[string]LogLevel{
	"ERROR":       LogLevelError,
	"ERR":         LogLevelError,
	"FATAL":       LogLevelFatal,
	"CRITICAL":    LogLevelCritical,
	"CRIT":        LogLevelCritical,
	"WARN":        LogLevelWarn,
	"WRN":         LogLevelWarn,
	"WARNING":     LogLevelWarning,
	"INFO":        LogLevelInfo,
	"INF":         LogLevelInfo,
	"INFORMATION": LogLevelInfo,
	"DEBUG":       LogLevelDebug,
	"DBG":         LogLevelDebug,
	"TRACE":       LogLevelTrace,
	"TRC":         LogLevelTrace,
}

// ParseLogLevel maps a level token to a known level, ignoring case.
func ParseLogLevel(s string) (LogLevel, bool) {
	lvl, ok := levelAliases[strings.ToUpper(strings.TrimSpace(s))]
	return lvl, ok
}

// IsError reports whether the level counts towards error totals.
func (l LogLevel) IsError() bool {
	return l == LogLevelError || l == LogLevelFatal || l == LogLevelCritical
}

func (l LogLevel) IsWarn() bool {
	return l == LogLevelWarn || l == LogLevelWarning
}

type LogFormat string

const (
	FormatJSON      LogFormat = "json"
	FormatCSV       LogFormat = "csv"
	FormatSyslog    LogFormat = "syslog"
	FormatPlainText LogFormat = "plain_text"
)

type FileStatus string

const (
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusProcessing FileStatus = "processing"
	FileStatusAnalyzed   FileStatus = "analyzed"
	FileStatusFailed     FileStatus = "failed"
)

type LogFile struct {
	ID            string         `json:"id" bson:"_id" gorm:"primaryKey;size:36"`
	Filename      string         `json:"filename" bson:"filename" gorm:"not null"`
	Size          int64          `json:"size" bson:"size"`
	Format        LogFormat      `json:"format" bson:"format" gorm:"size:16;not null"`
	UploadTime    time.Time      `json:"upload_time" bson:"upload_time"`
	Status        FileStatus     `json:"status" bson:"status" gorm:"size:16;default:'uploaded'"`
	FailureReason string         `json:"failure_reason,omitempty" bson:"failure_reason,omitempty" gorm:"type:text"`
	Checksum      string         `json:"checksum" bson:"checksum" gorm:"size:64;index"`
	EntryCount    int            `json:"entry_count" bson:"entry_count" gorm:"default:0"`
	CreatedAt     time.Time      `json:"-" bson:"-"`
	UpdatedAt     time.Time      `json:"-" bson:"-"`
	DeletedAt     gorm.DeletedAt `json:"-" bson:"-" gorm:"index"`
}

// LogContent holds the raw bytes of an ingested file, kept apart from
// LogFile so listings stay small.
type LogContent struct {
	LogFileID string `gorm:"primaryKey;size:36"`
	Data      []byte `gorm:"type:bytea"`
}

type LogEntry struct {
	ID         uint       `json:"-" bson:"-" gorm:"primaryKey"`
	LogFileID  string     `json:"-" bson:"log_file_id" gorm:"size:36;not null;index:idx_entries_file_line,priority:1"`
	LineNumber int        `json:"line_number" bson:"line_number" gorm:"not null;index:idx_entries_file_line,priority:2"`
	Timestamp  *time.Time `json:"timestamp" bson:"timestamp,omitempty"`
	Level      LogLevel   `json:"level,omitempty" bson:"level,omitempty" gorm:"size:16"`
	Service    string     `json:"service,omitempty" bson:"service,omitempty"`
	Message    string     `json:"message" bson:"message" gorm:"type:text"`
	RawLine    string     `json:"raw_line" bson:"raw_line" gorm:"type:text"`
	Metadata   JSONB      `json:"metadata" bson:"metadata" gorm:"type:jsonb"`
}

func (LogEntry) TableName() string {
	return "log_entries"
}

func (LogFile) TableName() string {
	return "log_files"
}

func (LogContent) TableName() string {
	return "log_contents"
}
