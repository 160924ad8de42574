// Package store provides read-only access to the investigation's
// forensic carve database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
)

// Store wraps the carve database with typed, read-only queries.
// It is safe for concurrent use; database/sql handles pooling.
type Store struct {
	db      *sql.DB
	metrics *metrics.Collector
	logger  *slog.Logger
}

// Open opens the carve database at path in read-only mode and verifies
// the connection. The returned Store must be closed by the caller.
func Open(ctx context.Context, path string, mc *metrics.Collector, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}

	// The engine never writes to the carve database.
	if _, err := db.ExecContext(ctx, "PRAGMA query_only=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set query_only on %s: %w", path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opened forensic datastore", "path", path)

	return &Store{db: db, metrics: mc, logger: logger}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// record times one query for the stats endpoint.
func (s *Store) record(start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordTiming(metrics.OpDBQuery, time.Since(start))
	}
}
