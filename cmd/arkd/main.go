// Package main provides the Ark forensic analysis daemon.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/agent"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/config"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/graph"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/orchestrator"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/server"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/toolexec"
)

func main() {
	if err := run(); err != nil {
		slog.Error("arkd failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLog := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting arkd", "addr", cfg.ListenAddr, "database", cfg.DatabasePath, "demo", cfg.DemoMode)

	mc := metrics.NewCollector()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DatabasePath, mc, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var narrator *agent.Narrator
	if cfg.OllamaHost != "" {
		narrator, err = agent.NewNarrator(cfg.OllamaHost, cfg.OllamaModel, mc, logger)
		if err != nil {
			logger.Warn("narrator unavailable, insights will be rule-based", "error", err)
		}
	}

	metadataTool := toolexec.NewRunner("metadata", cfg.MetadataTool, cfg.ToolTimeout, mc, logger)
	stegoTool := toolexec.NewRunner("stego", cfg.StegoTool, cfg.ToolTimeout, mc, logger)

	registry := agent.NewRegistry()
	registry.Register(agent.NewFileAnalysisAgent(st, metadataTool, cfg.MaxSampleBytes, logger))
	registry.Register(agent.NewSteganographyAgent(st, stegoTool, cfg.MaxSampleBytes, logger))
	registry.Register(agent.NewCryptographyAgent(st, cfg.MaxXorKeyLength, cfg.MaxSampleBytes, logger))
	registry.Register(agent.NewIntelligenceAgent(st, narrator, logger))

	var orch orchestrator.Orchestrator
	if cfg.DemoMode {
		orch = orchestrator.NewStub()
	} else {
		orch = orchestrator.NewEngine(registry, orchestrator.Config{
			PoolSize:     cfg.WorkerPoolSize,
			MaxAttempts:  cfg.MaxTaskAttempts,
			TaskTimeout:  cfg.TaskTimeout,
			RetryBackoff: cfg.RetryBackoff,
		}, mc, logger)
	}
	defer orch.Close()

	builder := graph.NewBuilder(st, cfg.GraphCacheSize, cfg.GraphCacheTTL, mc, logger)

	srv := server.New(cfg.ListenAddr, orch, registry, builder, mc, logger)
	if err := srv.Run(ctx); err != nil {
		return err
	}

	logger.Info("arkd stopped")
	return nil
}
