package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerFanout(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("session started", "session_id", "ab12cd34")

	if !strings.Contains(stderr.String(), "session started") {
		t.Errorf("stderr output missing message: %q", stderr.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["msg"] != "session started" {
		t.Errorf("file msg = %v, want session started", entry["msg"])
	}
	if entry["session_id"] != "ab12cd34" {
		t.Errorf("file session_id = %v", entry["session_id"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)

	logger.Debug("noisy detail")
	logger.Info("routine event")

	if stderr.Len() != 0 || file.Len() != 0 {
		t.Errorf("sub-warn records should be dropped, got stderr=%q file=%q",
			stderr.String(), file.String())
	}
}
