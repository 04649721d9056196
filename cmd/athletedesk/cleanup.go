package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/athletedesk/athletedesk/pkg/config"
	"github.com/athletedesk/athletedesk/pkg/graph/checkpoint"
)

func cleanupCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete checkpoints past the retention window",
		Long: `Removes expired run checkpoints along with their audit writes and
state blobs. Intended to run on a schedule (cron or equivalent).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCleanup(cmd.Context(), olderThan)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0,
		"retention override, e.g. 168h (defaults to the configured retention)")
	return cmd
}

func runCleanup(ctx context.Context, olderThan time.Duration) error {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	if olderThan <= 0 {
		olderThan = cfg.Checkpoint.Retention
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	store, err := checkpoint.NewPostgresStore(ctx, pool)
	if err != nil {
		return fmt.Errorf("preparing checkpoint store: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	result, err := store.CleanupBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cleaning up checkpoints: %w", err)
	}

	slog.Info("checkpoint cleanup complete",
		"cutoff", cutoff.Format(time.RFC3339),
		"checkpoints", result.Checkpoints,
		"writes", result.Writes,
		"blobs", result.Blobs)
	return nil
}
