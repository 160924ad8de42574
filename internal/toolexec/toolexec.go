// Package toolexec runs external analysis tools as bounded subprocesses.
package toolexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
)

// Sentinel errors for tool invocation.
var (
	// ErrToolUnavailable indicates the tool binary is missing or not configured.
	ErrToolUnavailable = errors.New("analysis tool unavailable")

	// ErrTimeout indicates the tool exceeded its hard deadline.
	ErrTimeout = errors.New("analysis tool timed out")
)

// Runner invokes one configured external tool with a hard timeout and
// captured output. A Runner with an empty Path reports ErrToolUnavailable
// for every invocation, which agents surface as degraded results.
type Runner struct {
	Name    string
	Path    string
	Timeout time.Duration

	metrics *metrics.Collector
	logger  *slog.Logger
}

// Result is the captured output of one tool invocation.
type Result struct {
	Output   string
	Duration time.Duration
}

// NewRunner creates a runner for one external tool. path may be empty
// when the tool is not deployed alongside the engine.
func NewRunner(name, path string, timeout time.Duration, mc *metrics.Collector, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{Name: name, Path: path, Timeout: timeout, metrics: mc, logger: logger}
}

// Available reports whether the tool can be invoked at all.
func (r *Runner) Available() bool {
	return r.Path != ""
}

// Run invokes the tool against args and returns its trimmed combined
// output. The subprocess is killed when either the runner timeout or the
// caller's context expires, whichever comes first.
func (r *Runner) Run(ctx context.Context, args ...string) (Result, error) {
	if !r.Available() {
		return Result{}, fmt.Errorf("%w: %s not configured", ErrToolUnavailable, r.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Path, args...)
	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	result := Result{
		Output:   strings.TrimSpace(string(output)),
		Duration: duration,
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		r.recordFailure(duration)
		r.logger.Warn("tool timed out", "tool", r.Name, "timeout", r.Timeout)
		return result, fmt.Errorf("%w: %s after %s", ErrTimeout, r.Name, r.Timeout)
	case errors.Is(err, exec.ErrNotFound):
		r.recordFailure(duration)
		return result, fmt.Errorf("%w: %s: %v", ErrToolUnavailable, r.Name, err)
	case err != nil:
		r.recordFailure(duration)
		r.logger.Warn("tool failed", "tool", r.Name, "error", err, "duration_ms", duration.Milliseconds())
		return result, fmt.Errorf("%w: %s exited with error: %v", ErrToolUnavailable, r.Name, err)
	}

	if r.metrics != nil {
		r.metrics.RecordTiming(metrics.OpToolInvoke, duration)
	}
	r.logger.Debug("tool completed", "tool", r.Name, "duration_ms", duration.Milliseconds())
	return result, nil
}

func (r *Runner) recordFailure(duration time.Duration) {
	if r.metrics != nil {
		r.metrics.RecordFailure(metrics.OpToolInvoke, duration)
	}
}
