package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/athletedesk/athletedesk/pkg/config"
	"github.com/athletedesk/athletedesk/pkg/embeddings"
	"github.com/athletedesk/athletedesk/pkg/vectorstore"
)

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <chunks.json>",
		Short: "Embed and load governance document chunks",
		Long: `Reads a JSON array of {"content": ..., "metadata": {...}} chunks,
embeds each one, and inserts them into the document table. Metadata
should carry documentTitle, sourceUrl, documentType, sectionTitle,
ngbId, topicDomain, and authorityLevel where known.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), args[0])
		},
	}
}

func runIngest(ctx context.Context, path string) error {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading chunks file: %w", err)
	}
	var chunks []vectorstore.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("parsing chunks file: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("no chunks in %s", path)
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.LLM.GoogleAPIKey, cfg.Embeddings.Model, int32(cfg.Embeddings.Dimension))
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	store, err := vectorstore.New(pool, cfg.Postgres.DocumentTable, embedder)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	if err := store.Add(ctx, chunks); err != nil {
		return err
	}
	slog.Info("ingestion complete", "chunks", len(chunks), "table", cfg.Postgres.DocumentTable)
	return nil
}
