package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/graph"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
)

// localBuilder opens the artifact database directly and returns a graph
// builder over it, for querying without a running daemon.
func localBuilder(ctx context.Context, dbPath string) (*graph.Builder, func(), error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := store.Open(ctx, dbPath, nil, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}

	b := graph.NewBuilder(st, 1, time.Minute, metrics.NewCollector(), logger)
	cleanup := func() { st.Close() }
	return b, cleanup, nil
}
