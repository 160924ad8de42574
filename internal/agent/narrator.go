package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
)

// Narrator turns discovered connections into a short prose insight via
// a local Ollama model. The platform deploys Ollama next to the engine;
// when it is absent the intelligence agent stays fully deterministic.
type Narrator struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewNarrator connects to the Ollama server at host. Returns (nil, nil)
// when host is empty, which callers treat as narration disabled.
func NewNarrator(host, model string, mc *metrics.Collector, logger *slog.Logger) (*Narrator, error) {
	if host == "" {
		return nil, nil
	}
	if model == "" {
		model = "llama3"
	}
	if logger == nil {
		logger = slog.Default()
	}

	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(host),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}

	return &Narrator{llm: llm, modelName: model, metrics: mc, logger: logger}, nil
}

// Narrate summarizes connections for one file into a single paragraph.
func (n *Narrator) Narrate(ctx context.Context, filePath string, connections []models.Connection) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are assisting a disk-image forensic investigation. ")
	fmt.Fprintf(&sb, "File %s is linked to other carved files by these shared patterns:\n", filePath)
	for _, c := range connections {
		fmt.Fprintf(&sb, "- %s (confidence %.2f, files %v)\n", c.Description, c.Confidence, c.FileIDs)
	}
	sb.WriteString("Summarize what these links suggest in at most three sentences. Do not speculate beyond the evidence.")

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, n.llm, sb.String())
	duration := time.Since(start)

	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordFailure(metrics.OpLLMGenerate, duration)
		}
		return "", fmt.Errorf("generate insight: %w", err)
	}

	if n.metrics != nil {
		n.metrics.RecordTiming(metrics.OpLLMGenerate, duration)
	}
	n.logger.Debug("insight narrated", "model", n.modelName, "duration_ms", duration.Milliseconds())
	return strings.TrimSpace(out), nil
}
