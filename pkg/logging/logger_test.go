package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogLevelInfo)

	WithJob(logger, "d-1", "push", "octo/hello").Info("Dispatched")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}

	for key, want := range map[string]string{
		"message":     "Dispatched",
		"level":       "info",
		"delivery_id": "d-1",
		"event":       "push",
		"repository":  "octo/hello",
	} {
		if entry[key] != want {
			t.Errorf("entry[%q] = %v, want %v", key, entry[key], want)
		}
	}
	if _, ok := entry["timestamp"]; !ok {
		t.Error("entry missing timestamp")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  logrus.Level
	}{
		{LogLevelDebug, logrus.DebugLevel},
		{LogLevelInfo, logrus.InfoLevel},
		{LogLevelWarn, logrus.WarnLevel},
		{LogLevelError, logrus.ErrorLevel},
		{LogLevel("verbose"), logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			if got := parseLogLevel(tt.level); got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, LogLevelInfo)

	SetLevel(logger, "debug")
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %v, want debug", logger.GetLevel())
	}

	SetLevel(logger, "nonsense")
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("level after unknown name = %v, want debug", logger.GetLevel())
	}
}
