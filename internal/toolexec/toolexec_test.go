package toolexec

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestRunUnconfiguredTool(t *testing.T) {
	r := NewRunner("exiftool", "", time.Second, nil, nil)

	if r.Available() {
		t.Error("Available() = true for empty path")
	}

	_, err := r.Run(context.Background())
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("error = %v, want ErrToolUnavailable", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	r := NewRunner("zsteg", "/nonexistent/zsteg-bin", time.Second, nil, nil)

	_, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if !errors.Is(err, ErrToolUnavailable) {
		t.Errorf("error = %v, want ErrToolUnavailable", err)
	}
}

func TestRunCapturesOutput(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/echo")
	}

	r := NewRunner("echo", "/bin/echo", time.Second, nil, nil)
	result, err := r.Run(context.Background(), "metadata: ok")
	if err != nil {
		t.Fatalf("Run error = %v", err)
	}
	if result.Output != "metadata: ok" {
		t.Errorf("Output = %q", result.Output)
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on /bin/sleep")
	}

	r := NewRunner("sleep", "/bin/sleep", 50*time.Millisecond, nil, nil)
	_, err := r.Run(context.Background(), "5")
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}
