package agent

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
)

// retainThreshold is the plaintext score below which XOR candidates are
// discarded from agent output.
const retainThreshold = 6.0

// dictionaryLimit bounds how many previously successful keys are pulled
// from the store into the candidate dictionary.
const dictionaryLimit = 64

// CryptographyAgent brute-forces XOR decryption: all 256 single-byte
// keys, an IoC-estimated repeating key, and a dictionary of keys that
// already succeeded elsewhere in the investigation.
type CryptographyAgent struct {
	store     *store.Store
	maxKeyLen int
	maxSample int64
	logger    *slog.Logger
}

// NewCryptographyAgent creates the cryptography agent.
func NewCryptographyAgent(st *store.Store, maxKeyLen int, maxSample int64, logger *slog.Logger) *CryptographyAgent {
	if maxKeyLen <= 0 {
		maxKeyLen = 8
	}
	if maxSample <= 0 {
		maxSample = 1 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CryptographyAgent{store: st, maxKeyLen: maxKeyLen, maxSample: maxSample, logger: logger}
}

var _ Agent = (*CryptographyAgent)(nil)

func (a *CryptographyAgent) ID() string { return "cryptography_agent" }

func (a *CryptographyAgent) Capability() models.Capability { return models.CapabilityCryptography }

// candidate is one retained decryption candidate.
type candidate struct {
	Key     string  `json:"key"`
	KeyType string  `json:"key_type"`
	Score   float64 `json:"plaintext_score"`
	Preview string  `json:"preview,omitempty"`
}

// Execute attacks the task's file with XOR brute force.
func (a *CryptographyAgent) Execute(ctx context.Context, task models.AnalysisTask) models.AgentResult {
	start := time.Now()

	data, err := readSample(task.FilePath, a.maxSample)
	if err != nil {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, fmt.Sprintf("read file: %v", err))
	}
	if len(data) == 0 {
		return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInvalidInput, "empty file")
	}

	var candidates []candidate

	// Single-byte keys: exhaustive.
	singleKey, singleScore, singlePlain := CrackSingleByte(data)
	if singleScore >= retainThreshold {
		candidates = append(candidates, candidate{
			Key:     hex.EncodeToString([]byte{singleKey}),
			KeyType: "single_byte",
			Score:   singleScore,
			Preview: preview(singlePlain),
		})
	}

	// Repeating keys: estimate the length first, then attack only that
	// length column by column.
	keyLen := EstimateKeyLength(data, a.maxKeyLen)
	if keyLen > 1 {
		key := CrackRepeatingKey(data, keyLen)
		plain := XorBytes(data, key)
		if score := PlaintextScore(plain); score >= retainThreshold {
			candidates = append(candidates, candidate{
				Key:     hex.EncodeToString(key),
				KeyType: "multi_byte",
				Score:   score,
				Preview: preview(plain),
			})
		}
	}

	// Dictionary of keys that already worked on other carved files.
	if a.store != nil {
		known, err := a.store.SuccessfulXorKeys(ctx, dictionaryLimit)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return failure(task, a.ID(), a.Capability(), start, models.ErrorKindInternal, fmt.Sprintf("load key dictionary: %v", err))
		}
		for _, attempt := range known {
			key, err := hex.DecodeString(attempt.Key)
			if err != nil || len(key) == 0 {
				continue
			}
			plain := XorBytes(data, key)
			score := PlaintextScore(plain)
			if score >= retainThreshold && !hasKey(candidates, attempt.Key) {
				candidates = append(candidates, candidate{
					Key:     attempt.Key,
					KeyType: "dictionary",
					Score:   score,
					Preview: preview(plain),
				})
			}
		}
	}

	output := map[string]any{
		"candidates":           candidates,
		"candidate_count":      len(candidates),
		"estimated_key_length": keyLen,
		"sample_bytes":         len(data),
	}

	confidence := 0.0
	for _, c := range candidates {
		if v := c.Score / 10; v > confidence {
			confidence = v
		}
	}

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

func hasKey(candidates []candidate, key string) bool {
	for _, c := range candidates {
		if c.Key == key {
			return true
		}
	}
	return false
}

// preview returns the printable head of a decryption for operators.
func preview(plain []byte) string {
	const max = 80
	if len(plain) > max {
		plain = plain[:max]
	}
	out := make([]byte, len(plain))
	for i, b := range plain {
		if isPrintable(b) && b != '\n' && b != '\r' && b != '\t' {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
