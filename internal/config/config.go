// Package config holds runtime configuration for the analysis engine.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration values, read once at startup.
type Config struct {
	// Artifact datastore (read-only carve database)
	DatabasePath string

	// HTTP server
	ListenAddr string

	// Orchestrator
	WorkerPoolSize  int
	MaxTaskAttempts int
	TaskTimeout     time.Duration
	RetryBackoff    time.Duration

	// External analysis tools (empty path disables the wrapper)
	MetadataTool string
	StegoTool    string
	ToolTimeout  time.Duration

	// Cryptography agent bounds
	MaxXorKeyLength int
	MaxSampleBytes  int64

	// Correlation graph
	GraphCacheTTL  time.Duration
	GraphCacheSize int

	// Optional Ollama-backed insight narration. Empty host disables it.
	OllamaHost  string
	OllamaModel string

	// Demo mode serves canned orchestration results without touching
	// the agents.
	DemoMode bool

	// Logging
	LogFile      string
	LogLevelName string
	LogLevel     slog.Level
}

// Load reads configuration from an optional YAML file (ARK_CONFIG_FILE)
// with environment variables taking precedence over file values.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("ARK_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := applyFile(&cfg, data); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.DatabasePath = getEnv("ARK_DATABASE_PATH", cfg.DatabasePath)
	cfg.ListenAddr = getEnv("ARK_LISTEN_ADDR", cfg.ListenAddr)
	cfg.WorkerPoolSize = getEnvInt("ARK_WORKER_POOL_SIZE", cfg.WorkerPoolSize)
	cfg.MaxTaskAttempts = getEnvInt("ARK_MAX_TASK_ATTEMPTS", cfg.MaxTaskAttempts)
	cfg.TaskTimeout = getEnvDuration("ARK_TASK_TIMEOUT", cfg.TaskTimeout)
	cfg.RetryBackoff = getEnvDuration("ARK_RETRY_BACKOFF", cfg.RetryBackoff)
	cfg.MetadataTool = getEnv("ARK_METADATA_TOOL", cfg.MetadataTool)
	cfg.StegoTool = getEnv("ARK_STEGO_TOOL", cfg.StegoTool)
	cfg.ToolTimeout = getEnvDuration("ARK_TOOL_TIMEOUT", cfg.ToolTimeout)
	cfg.MaxXorKeyLength = getEnvInt("ARK_MAX_XOR_KEY_LENGTH", cfg.MaxXorKeyLength)
	cfg.MaxSampleBytes = getEnvInt64("ARK_MAX_SAMPLE_BYTES", cfg.MaxSampleBytes)
	cfg.GraphCacheTTL = getEnvDuration("ARK_GRAPH_CACHE_TTL", cfg.GraphCacheTTL)
	cfg.GraphCacheSize = getEnvInt("ARK_GRAPH_CACHE_SIZE", cfg.GraphCacheSize)
	cfg.OllamaHost = getEnv("ARK_OLLAMA_HOST", cfg.OllamaHost)
	cfg.OllamaModel = getEnv("ARK_OLLAMA_MODEL", cfg.OllamaModel)
	cfg.DemoMode = getEnvBool("ARK_DEMO_MODE", cfg.DemoMode)
	cfg.LogFile = getEnv("ARK_LOG_FILE", cfg.LogFile)
	cfg.LogLevelName = getEnv("ARK_LOG_LEVEL", cfg.LogLevelName)
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	return cfg, nil
}

// fileConfig mirrors Config for the YAML layer. Durations are strings
// ("60s"), and absent keys leave the current value untouched.
type fileConfig struct {
	DatabasePath    *string `yaml:"database_path"`
	ListenAddr      *string `yaml:"listen_addr"`
	WorkerPoolSize  *int    `yaml:"worker_pool_size"`
	MaxTaskAttempts *int    `yaml:"max_task_attempts"`
	TaskTimeout     *string `yaml:"task_timeout"`
	RetryBackoff    *string `yaml:"retry_backoff"`
	MetadataTool    *string `yaml:"metadata_tool"`
	StegoTool       *string `yaml:"stego_tool"`
	ToolTimeout     *string `yaml:"tool_timeout"`
	MaxXorKeyLength *int    `yaml:"max_xor_key_length"`
	MaxSampleBytes  *int64  `yaml:"max_sample_bytes"`
	GraphCacheTTL   *string `yaml:"graph_cache_ttl"`
	GraphCacheSize  *int    `yaml:"graph_cache_size"`
	OllamaHost      *string `yaml:"ollama_host"`
	OllamaModel     *string `yaml:"ollama_model"`
	DemoMode        *bool   `yaml:"demo_mode"`
	LogFile         *string `yaml:"log_file"`
	LogLevelName    *string `yaml:"log_level"`
}

func applyFile(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setDuration := func(dst *time.Duration, src *string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.ListenAddr, fc.ListenAddr)
	setInt(&cfg.WorkerPoolSize, fc.WorkerPoolSize)
	setInt(&cfg.MaxTaskAttempts, fc.MaxTaskAttempts)
	setString(&cfg.MetadataTool, fc.MetadataTool)
	setString(&cfg.StegoTool, fc.StegoTool)
	setInt(&cfg.MaxXorKeyLength, fc.MaxXorKeyLength)
	setInt(&cfg.GraphCacheSize, fc.GraphCacheSize)
	setString(&cfg.OllamaHost, fc.OllamaHost)
	setString(&cfg.OllamaModel, fc.OllamaModel)
	setString(&cfg.LogFile, fc.LogFile)
	setString(&cfg.LogLevelName, fc.LogLevelName)
	if fc.MaxSampleBytes != nil {
		cfg.MaxSampleBytes = *fc.MaxSampleBytes
	}
	if fc.DemoMode != nil {
		cfg.DemoMode = *fc.DemoMode
	}

	if err := setDuration(&cfg.TaskTimeout, fc.TaskTimeout); err != nil {
		return fmt.Errorf("task_timeout: %w", err)
	}
	if err := setDuration(&cfg.RetryBackoff, fc.RetryBackoff); err != nil {
		return fmt.Errorf("retry_backoff: %w", err)
	}
	if err := setDuration(&cfg.ToolTimeout, fc.ToolTimeout); err != nil {
		return fmt.Errorf("tool_timeout: %w", err)
	}
	if err := setDuration(&cfg.GraphCacheTTL, fc.GraphCacheTTL); err != nil {
		return fmt.Errorf("graph_cache_ttl: %w", err)
	}
	return nil
}

func defaults() Config {
	return Config{
		DatabasePath:    "forensic.db",
		ListenAddr:      ":8001",
		WorkerPoolSize:  3,
		MaxTaskAttempts: 3,
		TaskTimeout:     60 * time.Second,
		RetryBackoff:    500 * time.Millisecond,
		ToolTimeout:     30 * time.Second,
		MaxXorKeyLength: 8,
		MaxSampleBytes:  1 << 20,
		GraphCacheTTL:   60 * time.Second,
		GraphCacheSize:  32,
		OllamaModel:     "llama3",
		LogFile:         "/tmp/ark-engine.log",
		LogLevelName:    "INFO",
		LogLevel:        slog.LevelInfo,
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
