package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/toolexec"
)

// knownBadSignatures are signature names the carve pipeline emits for
// patterns that indicate obfuscation or embedded payloads.
var knownBadSignatures = map[string]bool{
	"XOR_ENCRYPTED": true,
	"UPX_PACKED":    true,
	"EMBEDDED_PE":   true,
	"EMBEDDED_ZIP":  true,
	"HIGH_ENTROPY":  true,
	"STEGO_MARKER":  true,
}

// suspicion score weights.
const (
	weightEntropy       = 0.5 // times normalized entropy on a 0-10 scale
	weightBadSignature  = 3.0
	weightStringDensity = 0.2 // per suspicious string, capped
	maxStringComponent  = 2.0
)

// FileAnalysisAgent computes entropy, binary/text classification,
// structural metadata, and a suspicion score for one carved file.
type FileAnalysisAgent struct {
	store        *store.Store
	metadataTool *toolexec.Runner
	maxSample    int64
	logger       *slog.Logger
}

// NewFileAnalysisAgent creates the file analysis agent. metadataTool may
// be an unconfigured runner; metadata extraction then degrades silently.
func NewFileAnalysisAgent(st *store.Store, metadataTool *toolexec.Runner, maxSample int64, logger *slog.Logger) *FileAnalysisAgent {
	if maxSample <= 0 {
		maxSample = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileAnalysisAgent{store: st, metadataTool: metadataTool, maxSample: maxSample, logger: logger}
}

var _ Agent = (*FileAnalysisAgent)(nil)

func (a *FileAnalysisAgent) ID() string { return "file_analysis_agent" }

func (a *FileAnalysisAgent) Capability() models.Capability { return models.CapabilityFileAnalysis }

// Execute analyzes the task's file. Missing files and tool failures are
// expected failure modes and never panic or return Go errors.
func (a *FileAnalysisAgent) Execute(ctx context.Context, task models.AnalysisTask) models.AgentResult {
	start := time.Now()

	data, err := readSample(task.FilePath, a.maxSample)
	if err != nil {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, fmt.Sprintf("read file: %v", err))
	}

	entropy := ShannonEntropy(data)
	binary := IsBinary(data)

	output := map[string]any{
		"entropy":      entropy,
		"is_binary":    binary,
		"sample_bytes": len(data),
	}

	// Store-side context: signatures and suspicious strings recorded by
	// the extraction pipeline, when the file is part of the investigation.
	var hasBadSignature bool
	suspiciousStrings := 0
	if a.store != nil {
		if file, err := a.store.FileByPath(ctx, task.FilePath); err == nil {
			suspiciousStrings = file.SuspiciousStrings
			output["file_id"] = file.ID
			output["recorded_entropy"] = file.Entropy

			sigs, err := a.store.SignaturesForFile(ctx, file.ID)
			if err != nil {
				return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("load signatures: %v", err))
			}
			names := make([]string, 0, len(sigs))
			for _, sig := range sigs {
				names = append(names, sig.SignatureName)
				if knownBadSignatures[sig.SignatureName] {
					hasBadSignature = true
				}
			}
			output["signatures"] = names
		} else if !errors.Is(err, store.ErrNotFound) {
			return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("lookup file: %v", err))
		}
	}

	// External structural metadata, best effort.
	if a.metadataTool != nil && a.metadataTool.Available() {
		result, err := a.metadataTool.Run(ctx, task.FilePath)
		if err != nil {
			a.logger.Warn("metadata tool degraded", "file", task.FilePath, "error", err)
			output["metadata_error"] = err.Error()
		} else {
			output["metadata"] = result.Output
		}
	}

	score := suspicionScore(entropy, hasBadSignature, suspiciousStrings)
	output["suspicion_score"] = score
	output["suspicious_strings"] = suspiciousStrings

	return models.AgentResult{
		TaskID:        task.ID,
		AgentID:       a.ID(),
		Capability:    a.Capability(),
		Success:       true,
		Output:        output,
		Confidence:    confidenceFromSample(len(data)),
		ExecutionTime: time.Since(start),
	}
}

// suspicionScore combines entropy, signature, and string evidence into
// a [0, 10] heuristic.
func suspicionScore(entropy float64, hasBadSignature bool, suspiciousStrings int) float64 {
	score := weightEntropy * (entropy / 8.0) * 10
	if hasBadSignature {
		score += weightBadSignature
	}
	stringComponent := weightStringDensity * float64(suspiciousStrings)
	if stringComponent > maxStringComponent {
		stringComponent = maxStringComponent
	}
	score += stringComponent

	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}
	return score
}

// confidenceFromSample scales confidence by how much of the file was
// actually inspected; 64KiB or more counts as full confidence.
func confidenceFromSample(n int) float64 {
	const fullSample = 64 * 1024
	if n >= fullSample {
		return 1
	}
	if n == 0 {
		return 0
	}
	return 0.5 + 0.5*float64(n)/fullSample
}

// readSample reads up to max bytes of the file at path.
func readSample(path string, max int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, max))
	if err != nil {
		return nil, err
	}
	return data, nil
}
