package search

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresURLSink records source URLs surfaced during web research so
// they can be reviewed for ingestion into the document store. Writes
// are best-effort; the conversation never waits on or fails from them.
type PostgresURLSink struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresURLSink creates a sink over an existing pool.
func NewPostgresURLSink(pool *pgxpool.Pool, logger *slog.Logger) *PostgresURLSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresURLSink{pool: pool, logger: logger}
}

// EnsureSchema creates the discovered_sources table if missing.
func (s *PostgresURLSink) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS discovered_sources (
			url        TEXT PRIMARY KEY,
			hit_count  INTEGER NOT NULL DEFAULT 1,
			first_seen TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_seen  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

// Record upserts the URLs, bumping hit counts for repeats.
func (s *PostgresURLSink) Record(ctx context.Context, urls []string) {
	for _, u := range urls {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO discovered_sources (url) VALUES ($1)
			ON CONFLICT (url) DO UPDATE
			SET hit_count = discovered_sources.hit_count + 1,
			    last_seen = now()`, u)
		if err != nil {
			s.logger.Warn("recording discovered source failed", "url", u, "error", err)
		}
	}
}
