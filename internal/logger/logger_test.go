package logger

import (
	"errors"
	"testing"
)

func TestHelpersTagComponent(t *testing.T) {
	Initialize(Options{Level: "info"})

	tests := []struct {
		name      string
		component interface{}
		expected  string
	}{
		{"component", WithComponent("http").Data["component"], "http"},
		{"log file", WithLogFile("f1", "app.log").Data["component"], "log_analyzer"},
		{"job", WithJob("j1", "f1").Data["component"], "analysis_queue"},
		{"error", WithError(errors.New("boom"), "file_controller").Data["component"], "file_controller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.component != tt.expected {
				t.Errorf("Expected component %s, got %v", tt.expected, tt.component)
			}
		})
	}
}

func TestWithErrorFields(t *testing.T) {
	Initialize(Options{Level: "info"})

	entry := WithError(errors.New("boom"), "log_analyzer")
	if entry.Data["error"] != "boom" {
		t.Errorf("Expected error boom, got %v", entry.Data["error"])
	}
	if _, ok := entry.Data["stack_trace"]; ok {
		t.Error("Expected no stack trace at info level")
	}

	Initialize(Options{Level: "debug"})
	entry = WithError(errors.New("boom"), "log_analyzer")
	if _, ok := entry.Data["stack_trace"]; !ok {
		t.Error("Expected a stack trace at debug level")
	}
}

func TestWithLogFileOmitsEmptyFilename(t *testing.T) {
	Initialize(Options{Level: "info"})

	if _, ok := WithLogFile("f1", "").Data["filename"]; ok {
		t.Error("Expected no filename field")
	}
	if got := WithLogFile("f1", "app.log").Data["filename"]; got != "app.log" {
		t.Errorf("Expected filename app.log, got %v", got)
	}
}
