package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/toolexec"
)

// lsbBitPositions is how many low bit positions the fallback extraction
// inspects per byte.
const lsbBitPositions = 3

// SteganographyAgent detects least-significant-bit payloads. It prefers
// the extraction pipeline's precomputed bitplane rows and falls back to
// in-process LSB extraction plus the external detection tool.
type SteganographyAgent struct {
	store     *store.Store
	stegoTool *toolexec.Runner
	maxSample int64
	logger    *slog.Logger
}

// NewSteganographyAgent creates the steganography agent.
func NewSteganographyAgent(st *store.Store, stegoTool *toolexec.Runner, maxSample int64, logger *slog.Logger) *SteganographyAgent {
	if maxSample <= 0 {
		maxSample = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SteganographyAgent{store: st, stegoTool: stegoTool, maxSample: maxSample, logger: logger}
}

var _ Agent = (*SteganographyAgent)(nil)

func (a *SteganographyAgent) ID() string { return "steganography_agent" }

func (a *SteganographyAgent) Capability() models.Capability { return models.CapabilitySteganography }

// Execute inspects the task's file for embedded bit-level payloads.
func (a *SteganographyAgent) Execute(ctx context.Context, task models.AnalysisTask) models.AgentResult {
	start := time.Now()

	output := map[string]any{}
	confidence := 0.0
	patternCount := 0

	// Precomputed bitplane rows cover image channels the in-process
	// fallback cannot reconstruct from raw bytes.
	var findings []models.BitplaneFinding
	if a.store != nil {
		if file, err := a.store.FileByPath(ctx, task.FilePath); err == nil {
			findings, err = a.store.BitplaneFindingsForFile(ctx, file.ID)
			if err != nil {
				return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("load bitplane findings: %v", err))
			}
			output["file_id"] = file.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("lookup file: %v", err))
		}
	}

	if len(findings) > 0 {
		planes := make([]map[string]any, 0, len(findings))
		for _, f := range findings {
			planes = append(planes, map[string]any{
				"channel":      f.Channel,
				"bit_position": f.BitPosition,
				"has_patterns": f.HasPatterns,
				"entropy":      f.Entropy,
			})
			if f.HasPatterns {
				patternCount++
			}
		}
		output["bitplanes"] = planes
		output["source"] = "precomputed"
		confidence = float64(patternCount) / float64(len(findings))
	} else {
		// Fallback: extract LSB streams from the raw bytes and rate
		// their regularity.
		data, err := readSample(task.FilePath, a.maxSample)
		if err != nil {
			return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, fmt.Sprintf("read file: %v", err))
		}
		if len(data) == 0 {
			return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, "empty file")
		}

		candidates := make([]map[string]any, 0, lsbBitPositions)
		best := 0.0
		for pos := 0; pos < lsbBitPositions; pos++ {
			bits := extractBitplane(data, pos)
			score := PeriodicityScore(bits)
			candidates = append(candidates, map[string]any{
				"bit_position": pos,
				"regularity":   score,
			})
			if score > best {
				best = score
			}
			if score >= 0.5 {
				patternCount++
			}
		}
		output["bitplanes"] = candidates
		output["source"] = "extracted"
		confidence = best

		// External tool corroboration, best effort.
		if a.stegoTool != nil && a.stegoTool.Available() {
			result, err := a.stegoTool.Run(ctx, task.FilePath)
			if err != nil {
				a.logger.Warn("stego tool degraded", "file", task.FilePath, "error", err)
				output["tool_error"] = err.Error()
			} else {
				output["tool_report"] = result.Output
			}
		}
	}

	output["patterns_found"] = patternCount
	output["has_patterns"] = patternCount > 0

	return models.AgentResult{
		TaskID:        task.ID,
		AgentID:       a.ID(),
		Capability:    a.Capability(),
		Success:       true,
		Output:        output,
		Confidence:    confidence,
		ExecutionTime: time.Since(start),
	}
}

// extractBitplane pulls the given bit position out of every byte,
// yielding one 0/1 value per input byte.
func extractBitplane(data []byte, pos int) []byte {
	bits := make([]byte, len(data))
	for i, b := range data {
		bits[i] = (b >> uint(pos)) & 1
	}
	return bits
}

// PeriodicityScore rates the regularity of a 0/1 stream in [0, 1] by
// searching for the period with the highest self-agreement. Random bit
// streams agree with any shift about half the time; that baseline maps
// to 0.
func PeriodicityScore(bits []byte) float64 {
	if len(bits) < 16 {
		return 0
	}

	const maxPeriod = 64
	best := 0.0
	limit := maxPeriod
	if limit > len(bits)/2 {
		limit = len(bits) / 2
	}

	for period := 1; period <= limit; period++ {
		matches := 0
		total := len(bits) - period
		for i := 0; i < total; i++ {
			if bits[i] == bits[i+period] {
				matches++
			}
		}
		agreement := float64(matches) / float64(total)
		score := (agreement - 0.5) * 2
		if score > best {
			best = score
		}
	}

	if best < 0 {
		best = 0
	}
	return best
}
