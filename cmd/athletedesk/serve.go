package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/athletedesk/athletedesk/pkg/agent"
	"github.com/athletedesk/athletedesk/pkg/agent/nodes"
	"github.com/athletedesk/athletedesk/pkg/config"
	"github.com/athletedesk/athletedesk/pkg/embeddings"
	"github.com/athletedesk/athletedesk/pkg/graph/checkpoint"
	"github.com/athletedesk/athletedesk/pkg/graph/observability"
	"github.com/athletedesk/athletedesk/pkg/llm"
	"github.com/athletedesk/athletedesk/pkg/resilience"
	"github.com/athletedesk/athletedesk/pkg/search"
	"github.com/athletedesk/athletedesk/pkg/server"
	"github.com/athletedesk/athletedesk/pkg/summary"
	"github.com/athletedesk/athletedesk/pkg/vectorstore"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the help desk HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(settingsPath)
	if err != nil {
		return err
	}
	log := slog.Default()

	shutdownTelemetry, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := shutdownTelemetry(c); err != nil {
			log.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	var metrics observability.MetricsRecorder = observability.NoopMetrics{}
	if cfg.Telemetry.Metrics {
		metrics = observability.NewMetricsRecorder()
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	// One breaker per external dependency so an outage in one provider
	// does not trip the others.
	breakerOpts := []resilience.BreakerOption{
		resilience.WithBreakerLogger(log),
		resilience.WithBreakerMetrics(metrics),
	}
	reasoningBreaker := resilience.NewBreaker("llm-reasoning", resilience.DefaultBreakerConfig(), breakerOpts...)
	fastBreaker := resilience.NewBreaker("llm-fast", resilience.DefaultBreakerConfig(), breakerOpts...)
	searchBreaker := resilience.NewBreaker("web-search", resilience.DefaultBreakerConfig(), breakerOpts...)
	embeddingBreaker := resilience.NewBreaker("embeddings", resilience.DefaultBreakerConfig(), breakerOpts...)

	reasoning, fast, err := buildModels(ctx, cfg.LLM)
	if err != nil {
		return err
	}

	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.LLM.GoogleAPIKey, cfg.Embeddings.Model, int32(cfg.Embeddings.Dimension))
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	store, err := vectorstore.New(pool, cfg.Postgres.DocumentTable, embedder,
		vectorstore.WithEmbeddingBreaker(embeddingBreaker))
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	searcher, err := search.NewDuckDuckGo(cfg.Retrieval.WebResultLimit)
	if err != nil {
		return fmt.Errorf("creating web searcher: %w", err)
	}
	urlSink := search.NewPostgresURLSink(pool, log)
	if err := urlSink.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing discovered_sources table: %w", err)
	}

	nodeSet := nodes.NewNodes(
		nodes.Config{
			RetrievalLimit: cfg.Retrieval.TopK,
			WebResultLimit: cfg.Retrieval.WebResultLimit,
		},
		reasoning, fast, store, searcher, urlSink,
		reasoningBreaker, fastBreaker, searchBreaker,
	)

	compiled, err := agent.Build(nodeSet, agent.Features{
		QueryPlanner:       cfg.Features.QueryPlanner,
		RetrievalExpansion: cfg.Features.RetrievalExpansion,
		EmotionalSupport:   cfg.Features.EmotionalSupport,
		QualityCheck:       cfg.Features.QualityCheck,
		MaxQualityRetries:  cfg.Features.MaxQualityRetries,
	})
	if err != nil {
		return fmt.Errorf("building conversation graph: %w", err)
	}

	runnerOpts := []agent.RunnerOption{
		agent.WithLogger(log),
		agent.WithMetrics(metrics),
	}
	if cfg.Telemetry.Tracing {
		runnerOpts = append(runnerOpts, agent.WithSpans(observability.NewSpanManager()))
	}
	if cfg.Checkpoint.Enabled {
		ckpt, err := checkpoint.NewPostgresStore(ctx, pool)
		if err != nil {
			return fmt.Errorf("preparing checkpoint store: %w", err)
		}
		runnerOpts = append(runnerOpts, agent.WithCheckpointStore(ckpt))
	}
	if cfg.Redis.URL != "" {
		summaries, err := summary.NewRedisStore(ctx, cfg.Redis.URL, cfg.Redis.SummaryTTL)
		if err != nil {
			return fmt.Errorf("connecting summary store: %w", err)
		}
		defer summaries.Close()
		runnerOpts = append(runnerOpts,
			agent.WithSummaryStore(summaries),
			agent.WithSummarizer(fast, fastBreaker),
		)
	}

	runner := agent.NewRunner(compiled, runnerOpts...)
	handler := server.NewHandler(runner)

	log.Info("starting help desk", "addr", cfg.Server.Addr,
		"planner", cfg.Features.QueryPlanner,
		"expansion", cfg.Features.RetrievalExpansion,
		"quality_check", cfg.Features.QualityCheck)
	return handler.Router(cfg.Server.AllowOrigins).Run(cfg.Server.Addr)
}

// buildModels returns the reasoning and fast clients for the configured
// provider.
func buildModels(ctx context.Context, cfg config.LLMConfig) (reasoning, fast nodes.TextGenerator, err error) {
	switch cfg.Provider {
	case "anthropic":
		r, err := llm.NewAnthropic(cfg.AnthropicAPIKey, cfg.ReasoningModel)
		if err != nil {
			return nil, nil, fmt.Errorf("creating reasoning model: %w", err)
		}
		f, err := llm.NewAnthropic(cfg.AnthropicAPIKey, cfg.FastModel, llm.WithMaxTokens(1024))
		if err != nil {
			return nil, nil, fmt.Errorf("creating fast model: %w", err)
		}
		return r, f, nil
	default:
		r, err := llm.NewGoogleAI(ctx, cfg.GoogleAPIKey, cfg.ReasoningModel)
		if err != nil {
			return nil, nil, fmt.Errorf("creating reasoning model: %w", err)
		}
		f, err := llm.NewGoogleAI(ctx, cfg.GoogleAPIKey, cfg.FastModel, llm.WithMaxTokens(1024))
		if err != nil {
			return nil, nil, fmt.Errorf("creating fast model: %w", err)
		}
		return r, f, nil
	}
}
